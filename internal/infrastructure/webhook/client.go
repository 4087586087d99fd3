package webhook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/energosales/portal/internal/core/domain"
)

const defaultTimeout = 10 * time.Second

// Config describes the spreadsheet webhook endpoint.
type Config struct {
	URL     string
	Timeout time.Duration
	// HTTPClient overrides the default client; its Timeout is left untouched.
	HTTPClient *http.Client
}

// Client posts leads to the spreadsheet webhook behind a circuit breaker so a
// dead endpoint does not tie up dispatcher workers.
type Client struct {
	url  string
	http *http.Client
	cb   *gobreaker.CircuitBreaker
	log  zerolog.Logger
}

// Form field names expected by the spreadsheet's Apps Script handler.
const (
	fieldFullName    = "fio"
	fieldPhone       = "phone"
	fieldBirthDate   = "dataroz"
	fieldRegion      = "region"
	fieldDocument    = "document"
	fieldMessage     = "message"
	fieldTelephony   = "purchaseType"
	fieldAccountName = "accountName"
)

func encodeLead(lead domain.Lead) url.Values {
	return url.Values{
		fieldFullName:    {lead.FullName},
		fieldPhone:       {lead.Phone},
		fieldBirthDate:   {lead.BirthDate},
		fieldRegion:      {lead.Region},
		fieldDocument:    {lead.Document},
		fieldMessage:     {lead.Message},
		fieldTelephony:   {string(lead.Telephony)},
		fieldAccountName: {lead.OperatorName},
	}
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	c := &Client{url: cfg.URL, http: hc, log: log}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "lead-webhook",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
	return c
}

// Forward posts lead as a URL-encoded form. Non-2xx responses count as
// failures. While the breaker is open calls fail fast with an error matching
// domain.ErrRelayUnavailable.
func (c *Client) Forward(ctx context.Context, lead domain.Lead) error {
	body := encodeLead(lead).Encode()

	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, c.post(ctx, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", domain.ErrRelayUnavailable, err)
	}
	return err
}

func (c *Client) post(ctx context.Context, body string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}
