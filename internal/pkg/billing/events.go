package billing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// EventKind is the closed set of webhook events the ingestor acts on.
type EventKind int

const (
	KindUnknown EventKind = iota
	KindPaymentCompleted
	KindSubscriptionCreated
	KindSubscriptionUpdated
	KindSubscriptionCanceled
	KindPaymentFailed
)

var kindNames = map[EventKind]string{
	KindUnknown:              "unknown",
	KindPaymentCompleted:     "payment_completed",
	KindSubscriptionCreated:  "subscription_created",
	KindSubscriptionUpdated:  "subscription_updated",
	KindSubscriptionCanceled: "subscription_canceled",
	KindPaymentFailed:        "payment_failed",
}

func (k EventKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseEventKind maps provider event type names, including the Stripe style
// aliases Creem forwards, onto an EventKind.
func ParseEventKind(eventType string) EventKind {
	switch strings.ToLower(strings.TrimSpace(eventType)) {
	case "payment.completed", "invoice.payment_succeeded":
		return KindPaymentCompleted
	case "subscription.created", "customer.subscription.created":
		return KindSubscriptionCreated
	case "subscription.updated", "customer.subscription.updated":
		return KindSubscriptionUpdated
	case "subscription.deleted", "subscription.canceled", "customer.subscription.deleted":
		return KindSubscriptionCanceled
	case "payment.failed", "invoice.payment_failed":
		return KindPaymentFailed
	default:
		return KindUnknown
	}
}

// Event is a parsed webhook delivery. Exactly one of Payment or
// Subscription is set for known kinds, neither for KindUnknown.
type Event struct {
	Type         string
	Kind         EventKind
	UserID       string
	Payment      *PaymentEvent
	Subscription *SubscriptionEvent
	// Payload is the raw body, stored as metadata on audit and ledger rows
	Payload string
}

// PaymentEvent is the normalized payload of payment events.
type PaymentEvent struct {
	UserID    string
	PaymentID string
	ProductID string
	Amount    float64
	Credits   int64
}

// SubscriptionEvent is the normalized payload of subscription events.
// Nil pointers mean the provider did not send the field.
type SubscriptionEvent struct {
	UserID             string
	ExternalID         string
	PlanID             string
	PlanName           string
	Status             string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	TrialEnd           *time.Time
	CancelAtPeriodEnd  *bool
	CreditsPerMonth    int64
	PricePerMonth      float64
}

// DefaultCreditsPerMonth applies when a subscription event carries no grant.
const DefaultCreditsPerMonth = 100

// ParseEvent decodes a raw webhook body and normalizes it by event kind.
// It only fails on undecodable JSON; required field checks are left to
// the per-kind handlers so the failure is recorded on the event row.
func ParseEvent(body []byte) (*Event, error) {
	var env rawEnvelope
	if err := decode(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	ev := &Event{Type: strings.TrimSpace(env.Type.String()), Payload: string(body)}
	if ev.Type == "" {
		ev.Type = strings.TrimSpace(env.EventType.String())
	}
	ev.Kind = ParseEventKind(ev.Type)
	ev.UserID = firstNonEmpty(env.CustomerID.String(), env.UserID.String(), env.Customer.String(), env.Metadata.UserID.String())

	switch ev.Kind {
	case KindPaymentCompleted, KindPaymentFailed:
		ev.Payment = env.payment()
	case KindSubscriptionCreated, KindSubscriptionUpdated, KindSubscriptionCanceled:
		sub, err := env.subscription(body)
		if err != nil {
			return nil, err
		}
		ev.Subscription = sub
	}
	return ev, nil
}

func decode(body []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data after JSON object")
	}
	return nil
}

type rawMetadata struct {
	UserID          flexString `json:"user_id"`
	ProductID       flexString `json:"product_id"`
	Credits         flexInt    `json:"credits"`
	CreditsPerMonth flexInt    `json:"credits_per_month"`
}

type rawEnvelope struct {
	Type          flexString       `json:"type"`
	EventType     flexString       `json:"event_type"`
	ID            flexString       `json:"id"`
	PaymentIntent flexString       `json:"payment_intent"`
	CustomerID    flexString       `json:"customer_id"`
	Customer      flexString       `json:"customer"`
	UserID        flexString       `json:"user_id"`
	ProductID     flexString       `json:"product_id"`
	Amount        flexFloat        `json:"amount"`
	AmountPaid    flexFloat        `json:"amount_paid"`
	Credits       flexInt          `json:"credits"`
	Metadata      rawMetadata      `json:"metadata"`
	Subscription  *json.RawMessage `json:"subscription"`
}

type rawPrice struct {
	ID         flexString `json:"id"`
	Nickname   flexString `json:"nickname"`
	UnitAmount flexFloat  `json:"unit_amount"`
}

type rawSubscription struct {
	ID                 flexString  `json:"id"`
	Status             flexString  `json:"status"`
	PlanID             flexString  `json:"plan_id"`
	PlanName           flexString  `json:"plan_name"`
	CurrentPeriodStart flexInt     `json:"current_period_start"`
	CurrentPeriodEnd   flexInt     `json:"current_period_end"`
	TrialEnd           flexInt     `json:"trial_end"`
	CancelAtPeriodEnd  *bool       `json:"cancel_at_period_end"`
	CreditsPerMonth    flexInt     `json:"credits_per_month"`
	PricePerMonth      flexFloat   `json:"price_per_month"`
	Metadata           rawMetadata `json:"metadata"`
	Items              struct {
		Data []struct {
			Price rawPrice `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func (e *rawEnvelope) payment() *PaymentEvent {
	p := &PaymentEvent{
		UserID:    firstNonEmpty(e.CustomerID.String(), e.Customer.String(), e.Metadata.UserID.String(), e.UserID.String()),
		PaymentID: firstNonEmpty(e.ID.String(), e.PaymentIntent.String()),
		ProductID: firstNonEmpty(e.ProductID.String(), e.Metadata.ProductID.String()),
	}
	switch {
	case e.Amount.Set:
		p.Amount = e.Amount.Value
	case e.AmountPaid.Set:
		p.Amount = e.AmountPaid.Value
	}
	switch {
	case e.Credits.Set:
		p.Credits = e.Credits.Value
	case e.Metadata.Credits.Set:
		p.Credits = e.Metadata.Credits.Value
	}
	return p
}

// subscription reads the nested "subscription" object, or the top level
// body when the provider sends the subscription itself as the event or
// only references it by id.
func (e *rawEnvelope) subscription(body []byte) (*SubscriptionEvent, error) {
	src := body
	if e.Subscription != nil && isJSONObject(*e.Subscription) {
		src = *e.Subscription
	}
	var raw rawSubscription
	if err := decode(src, &raw); err != nil {
		return nil, fmt.Errorf("%w: subscription: %v", ErrInvalidPayload, err)
	}

	s := &SubscriptionEvent{
		UserID:             firstNonEmpty(e.CustomerID.String(), e.Customer.String(), e.Metadata.UserID.String(), raw.Metadata.UserID.String(), e.UserID.String()),
		ExternalID:         raw.ID.String(),
		PlanID:             raw.PlanID.String(),
		PlanName:           raw.PlanName.String(),
		Status:             strings.ToLower(raw.Status.String()),
		CurrentPeriodStart: raw.CurrentPeriodStart.Time(),
		CurrentPeriodEnd:   raw.CurrentPeriodEnd.Time(),
		TrialEnd:           raw.TrialEnd.Time(),
		CancelAtPeriodEnd:  raw.CancelAtPeriodEnd,
		CreditsPerMonth:    DefaultCreditsPerMonth,
	}

	var price *rawPrice
	if len(raw.Items.Data) > 0 {
		price = &raw.Items.Data[0].Price
	}
	if s.PlanID == "" && price != nil {
		s.PlanID = price.ID.String()
	}
	if s.PlanName == "" && price != nil {
		s.PlanName = price.Nickname.String()
	}

	switch {
	case raw.CreditsPerMonth.Set:
		s.CreditsPerMonth = raw.CreditsPerMonth.Value
	case raw.Metadata.CreditsPerMonth.Set:
		s.CreditsPerMonth = raw.Metadata.CreditsPerMonth.Value
	}
	if s.CreditsPerMonth < 0 {
		s.CreditsPerMonth = 0
	}

	switch {
	case raw.PricePerMonth.Set:
		s.PricePerMonth = raw.PricePerMonth.Value
	case price != nil && price.UnitAmount.Set:
		s.PricePerMonth = math.Round(price.UnitAmount.Value) / 100
	}
	return s, nil
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// flexString accepts a JSON string or number. Objects, arrays and null
// decode to the empty string.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	case '{', '[', 'n', 't', 'f':
		*f = ""
	default:
		*f = flexString(b)
	}
	return nil
}

func (f flexString) String() string {
	return strings.TrimSpace(string(f))
}

// flexInt accepts numbers and numeric strings. Fractions are truncated.
// Set is false for absent, null or unparsable values.
type flexInt struct {
	Value int64
	Set   bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	v, ok := parseFlexNumber(b)
	if !ok {
		*f = flexInt{}
		return nil
	}
	*f = flexInt{Value: int64(v), Set: true}
	return nil
}

// Time interprets the value as epoch seconds. Zero and unset give nil.
func (f flexInt) Time() *time.Time {
	if !f.Set || f.Value <= 0 {
		return nil
	}
	t := time.Unix(f.Value, 0).UTC()
	return &t
}

type flexFloat struct {
	Value float64
	Set   bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	v, ok := parseFlexNumber(b)
	if !ok {
		*f = flexFloat{}
		return nil
	}
	*f = flexFloat{Value: v, Set: true}
	return nil
}

func parseFlexNumber(b []byte) (float64, bool) {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return 0, false
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(b, &s); err != nil {
			return 0, false
		}
		s = strings.TrimSpace(s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
