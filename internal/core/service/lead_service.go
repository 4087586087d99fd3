package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/energosales/portal/internal/core/domain"
	"github.com/energosales/portal/internal/core/ports"
)

type leadService struct {
	relay ports.LeadRelay
	log   zerolog.Logger
	now   func() time.Time
}

// NewLeadService returns a LeadService that hands accepted leads to relay.
func NewLeadService(relay ports.LeadRelay, log zerolog.Logger) ports.LeadService {
	return &leadService{relay: relay, log: log, now: time.Now}
}

// Submit stamps the operator identity onto the lead and waits for the relay
// to deliver it.
func (s *leadService) Submit(ctx context.Context, claims *domain.Claims, in ports.LeadInput) error {
	if err := domain.RequireRole(claims, domain.RoleOperator); err != nil {
		return err
	}

	lead := domain.Lead{
		FullName:     strings.TrimSpace(in.FullName),
		Phone:        strings.TrimSpace(in.Phone),
		BirthDate:    strings.TrimSpace(in.BirthDate),
		Region:       strings.TrimSpace(in.Region),
		Document:     strings.TrimSpace(in.Document),
		Message:      strings.TrimSpace(in.Message),
		Telephony:    domain.Telephony(strings.TrimSpace(in.Telephony)),
		OperatorID:   claims.UserID,
		OperatorName: claims.Name,
		SubmittedAt:  s.now().UTC(),
	}
	if err := validateLead(lead); err != nil {
		return err
	}

	if err := s.relay.Deliver(ctx, lead); err != nil {
		s.log.Warn().Err(err).Int64("operator_id", claims.UserID).Msg("lead not delivered")
		return err
	}

	s.log.Debug().Int64("operator_id", claims.UserID).Msg("lead delivered")
	return nil
}

func validateLead(l domain.Lead) error {
	for _, f := range []struct{ name, value string }{
		{"fio", l.FullName},
		{"phone", l.Phone},
		{"dataroz", l.BirthDate},
		{"region", l.Region},
		{"document", l.Document},
		{"message", l.Message},
	} {
		if f.value == "" {
			return domain.Invalid("%s is required", f.name)
		}
	}
	if !l.Telephony.Valid() {
		return domain.Invalid("purchaseType must be one of %s, %s", domain.TelephonyWhatsapp, domain.TelephonyMicrosip)
	}
	return nil
}
