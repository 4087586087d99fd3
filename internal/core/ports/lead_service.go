package ports

import (
	"context"

	"github.com/energosales/portal/internal/core/domain"
)

// LeadInput is the DTO passed from the transport layer to LeadService.
type LeadInput struct {
	FullName  string
	Phone     string
	BirthDate string
	Region    string
	Document  string
	Message   string
	Telephony string
}

// LeadService accepts apps panel submissions from operators.
type LeadService interface {
	// Submit returns once the lead has been delivered or delivery has failed.
	Submit(ctx context.Context, claims *domain.Claims, in LeadInput) error
}

// LeadRelay delivers leads in order per operator and reports the outcome.
type LeadRelay interface {
	Deliver(ctx context.Context, lead domain.Lead) error
}

// LeadSink delivers a single lead to its external destination.
type LeadSink interface {
	Forward(ctx context.Context, lead domain.Lead) error
}
