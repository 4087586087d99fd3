// Package metrics defines the custom Prometheus collectors of the portal API.
// It is the single source of truth for metric names, labels, and help strings.
//
// Call Register once at startup with the registry that backs /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "portal"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// LoginAttemptsTotal counts login attempts.
// Label:
//   - result: "success", "not_found", "bad_password", "invalid" or "error"
var LoginAttemptsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// RegistrationsTotal counts registration attempts.
// Label:
//   - result: "created", "conflict", "invalid" or "error"
var RegistrationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of registration attempts, by result.",
	},
	[]string{"result"},
)

// TokenVerificationsTotal counts bearer token checks on protected routes.
// Label:
//   - result: "valid", "missing", "invalid", "revoked" or "error"
var TokenVerificationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_verifications_total",
		Help:      "Total number of session token verifications, by result.",
	},
	[]string{"result"},
)

// AuthorizationDeniedTotal counts role checks that rejected a valid identity.
// Label:
//   - role: the caller's role
var AuthorizationDeniedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authorization_denied_total",
		Help:      "Total number of requests rejected for insufficient role.",
	},
	[]string{"role"},
)

// UserDeletionsTotal counts admin delete requests.
// Label:
//   - result: "deleted" or "absent" (idempotent no-op)
var UserDeletionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "user_deletions_total",
		Help:      "Total number of admin user deletions, by result.",
	},
	[]string{"result"},
)

// ── Lead relay metrics ────────────────────────────────────────────────────────

// LeadsForwardedTotal counts webhook deliveries.
// Label:
//   - result: "ok", "error" (retries exhausted), "unavailable" (breaker open)
//     or "abandoned" (request cancelled)
var LeadsForwardedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "leads_forwarded_total",
		Help:      "Total number of leads delivered to the spreadsheet webhook, by result.",
	},
	[]string{"result"},
)

// LeadsQueueDepth tracks the number of leads waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index
var LeadsQueueDepth = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "leads_queue_depth",
		Help:      "Current number of leads pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// LeadForwardDuration measures a single webhook delivery.
var LeadForwardDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "lead_forward_duration_seconds",
		Help:      "Duration of a single lead delivery to the webhook.",
		Buckets:   prometheus.DefBuckets,
	},
)

// Register adds every collector of this package to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		LoginAttemptsTotal,
		RegistrationsTotal,
		TokenVerificationsTotal,
		AuthorizationDeniedTotal,
		UserDeletionsTotal,
		LeadsForwardedTotal,
		LeadsQueueDepth,
		LeadForwardDuration,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
