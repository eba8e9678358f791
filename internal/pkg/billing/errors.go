package billing

import (
	"errors"
	"net/http"
)

var (
	ErrWebhookSecretMissing  = errors.New("webhook secret not configured")
	ErrSignatureMissing      = errors.New("webhook signature missing")
	ErrSignatureInvalid      = errors.New("invalid webhook signature")
	ErrInvalidPayload        = errors.New("invalid webhook payload")
	ErrMissingField          = errors.New("missing required field")
	ErrDeliveryInProgress    = errors.New("delivery already being processed")
	ErrCheckoutNotConfigured = errors.New("checkout not configured")
)

// IngestError carries the HTTP status chosen by the ingestion pipeline.
// EventID is set once the delivery has been logged.
type IngestError struct {
	Status  int
	Message string
	EventID uint
	Err     error
}

func (e *IngestError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// Details is the client-facing error detail, empty for server side faults.
func (e *IngestError) Details() string {
	if e.Err == nil || e.Status == http.StatusInternalServerError && e.EventID == 0 {
		return ""
	}
	return e.Err.Error()
}
