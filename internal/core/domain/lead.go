package domain

import (
	"errors"
	"time"
)

var (
	// ErrLeadDelivery means the spreadsheet webhook did not accept the lead.
	ErrLeadDelivery = errors.New("lead delivery failed")
	// ErrRelayUnavailable means the relay refused to try: its circuit breaker
	// is open or it is shutting down.
	ErrRelayUnavailable = errors.New("lead relay unavailable")
)

// Telephony is the channel the operator used to reach the client.
type Telephony string

const (
	TelephonyWhatsapp Telephony = "Whatsapp"
	TelephonyMicrosip Telephony = "Microsip"
)

func (t Telephony) Valid() bool {
	return t == TelephonyWhatsapp || t == TelephonyMicrosip
}

// Lead is a call outcome captured by an operator in the apps panel and relayed
// to the spreadsheet webhook. Every client field is mandatory; BirthDate is
// kept as typed because the sheet stores it verbatim.
type Lead struct {
	FullName  string
	Phone     string
	BirthDate string
	Region    string
	Document  string
	Message   string
	Telephony Telephony

	OperatorID   int64
	OperatorName string
	SubmittedAt  time.Time
}
