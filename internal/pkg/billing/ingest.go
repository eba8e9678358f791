package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/animora/animora/app/models"
	"github.com/animora/animora/app/repository"
	"github.com/animora/animora/internal/pkg/credits"
	"github.com/animora/animora/internal/pkg/subscriptions"
)

// Ledger is the subset of the credit ledger used by webhook handlers.
type Ledger interface {
	AddCredits(ctx context.Context, p credits.AddParams) (*models.CreditAccount, *models.CreditTransaction, error)
	AddCreditsOnce(ctx context.Context, p credits.AddParams) (*models.CreditAccount, bool, error)
}

// SubscriptionStore is the subset of the subscription store used by webhook handlers.
type SubscriptionStore interface {
	Create(ctx context.Context, sub *models.Subscription) error
	Upsert(ctx context.Context, sub *models.Subscription) error
	UpdateByExternalID(ctx context.Context, externalID string, status models.SubscriptionStatus, extra subscriptions.Fields) (*models.Subscription, error)
	CancelByExternalID(ctx context.Context, externalID string, at time.Time) (*models.Subscription, error)
}

// PackCatalog resolves the credits a one-time product grants.
type PackCatalog interface {
	CreditsForProduct(ctx context.Context, productID string) (int64, bool, error)
}

// Archiver stores raw delivery bodies outside the database.
type Archiver interface {
	Archive(ctx context.Context, source, deliveryID string, receivedAt time.Time, body []byte) error
}

// Deps are the collaborators of an Ingestor. Packs, Locker and Archiver are optional.
type Deps struct {
	Events        repository.WebhookEventRepository
	Payments      repository.PaymentRepository
	Ledger        Ledger
	Subscriptions SubscriptionStore
	Packs         PackCatalog
	Locker        Locker
	Archiver      Archiver
}

// Delivery is one inbound webhook call as received.
type Delivery struct {
	Source    string
	Body      []byte
	Signature string
}

// Result describes a delivery that was logged and processed successfully.
type Result struct {
	EventID    uint
	DeliveryID string
	Kind       EventKind
	Processed  bool
}

// Ingestor verifies, logs and dispatches webhook deliveries.
type Ingestor struct {
	verifier *SignatureVerifier
	dedupe   bool
	deps     Deps
	now      func() time.Time
}

// NewIngestor wires an ingestor. A nil Locker becomes NoopLocker.
func NewIngestor(cfg *Config, deps Deps) *Ingestor {
	if deps.Locker == nil {
		deps.Locker = NoopLocker{}
	}
	return &Ingestor{
		verifier: cfg.Verifier(),
		dedupe:   cfg.Dedupe,
		deps:     deps,
		now:      time.Now,
	}
}

// Handle runs a delivery through verify, log, dispatch and mark. Every
// failure is returned as *IngestError.
func (in *Ingestor) Handle(ctx context.Context, d Delivery) (*Result, error) {
	source := strings.ToLower(strings.TrimSpace(d.Source))
	if source == "" {
		source = models.WebhookSourceCreem
	}

	if err := in.verifier.Verify(d.Body, d.Signature); err != nil {
		if errors.Is(err, ErrWebhookSecretMissing) {
			log.Errorf("[Webhook] %s webhook secret not configured", source)
			return nil, &IngestError{Status: http.StatusInternalServerError, Message: "Webhook secret not configured", Err: err}
		}
		log.Warnf("[Webhook] Rejected %s delivery: %v", source, err)
		return nil, &IngestError{Status: http.StatusUnauthorized, Message: "Invalid signature", Err: err}
	}

	ev, err := ParseEvent(d.Body)
	if err != nil {
		log.Warnf("[Webhook] Undecodable %s payload: %v", source, err)
		return nil, &IngestError{Status: http.StatusBadRequest, Message: "Invalid JSON payload", Err: err}
	}

	eventType := ev.Type
	if eventType == "" {
		eventType = "unknown"
	}
	record := &models.WebhookEvent{
		DeliveryID:  uuid.NewString(),
		EventType:   eventType,
		Source:      source,
		PayloadJSON: string(d.Body),
	}
	if ev.UserID != "" {
		uid := ev.UserID
		record.UserID = &uid
	}
	if err := in.deps.Events.Create(ctx, record); err != nil {
		log.Errorf("[Webhook] Failed to log %s event %s: %v", source, eventType, err)
		return nil, &IngestError{Status: http.StatusInternalServerError, Message: "Failed to log webhook event", Err: err}
	}
	log.Infof("[Webhook] Received %s event %s (id=%d kind=%s)", source, eventType, record.ID, ev.Kind)

	in.archive(ctx, record)

	procErr := in.dispatch(ctx, source, ev)

	errMsg := ""
	if procErr != nil {
		errMsg = procErr.Error()
	}
	if err := in.deps.Events.MarkProcessed(ctx, record.ID, procErr == nil, errMsg); err != nil {
		log.Errorf("[Webhook] Failed to mark event %d: %v", record.ID, err)
	}

	if procErr != nil {
		log.Errorf("[Webhook] Processing %s event %d failed: %v", eventType, record.ID, procErr)
		return nil, &IngestError{
			Status:  http.StatusInternalServerError,
			Message: "Failed to process webhook",
			EventID: record.ID,
			Err:     procErr,
		}
	}

	return &Result{
		EventID:    record.ID,
		DeliveryID: record.DeliveryID,
		Kind:       ev.Kind,
		Processed:  true,
	}, nil
}

func (in *Ingestor) archive(ctx context.Context, record *models.WebhookEvent) {
	if in.deps.Archiver == nil {
		return
	}
	if err := in.deps.Archiver.Archive(ctx, record.Source, record.DeliveryID, record.CreatedAt, []byte(record.PayloadJSON)); err != nil {
		log.Warnf("[Webhook] Failed to archive event %d: %v", record.ID, err)
	}
}

func (in *Ingestor) dispatch(ctx context.Context, source string, ev *Event) error {
	switch ev.Kind {
	case KindPaymentCompleted:
		return in.handlePaymentCompleted(ctx, source, ev.Payment, ev.Payload)
	case KindSubscriptionCreated:
		return in.handleSubscriptionCreated(ctx, source, ev.Subscription, ev.Payload)
	case KindSubscriptionUpdated:
		return in.handleSubscriptionUpdated(ctx, ev.Subscription)
	case KindSubscriptionCanceled:
		return in.handleSubscriptionCanceled(ctx, ev.Subscription)
	case KindPaymentFailed:
		return in.handlePaymentFailed(ctx, ev.Payment, ev.Payload)
	case KindUnknown:
		log.Infof("[Webhook] Unhandled event type %q acknowledged", ev.Type)
		return nil
	default:
		return fmt.Errorf("no handler for event kind %s", ev.Kind)
	}
}

func (in *Ingestor) handlePaymentCompleted(ctx context.Context, source string, p *PaymentEvent, payload string) error {
	if p == nil || p.UserID == "" || p.PaymentID == "" {
		return fmt.Errorf("%w: user_id or payment_id", ErrMissingField)
	}

	if p.Credits == 0 && p.ProductID != "" && in.deps.Packs != nil {
		amount, ok, err := in.deps.Packs.CreditsForProduct(ctx, p.ProductID)
		if err != nil {
			return err
		}
		if ok {
			p.Credits = amount
		} else {
			log.Warnf("[Webhook] Payment %s for unknown product %s carries no credits", p.PaymentID, p.ProductID)
		}
	}

	if p.Credits > 0 {
		credited, err := in.creditOnce(ctx, source, credits.AddParams{
			UserID:      p.UserID,
			Amount:      p.Credits,
			Type:        models.CreditTransactionPurchase,
			Description: "Credits purchase - Payment " + p.PaymentID,
			ReferenceID: p.PaymentID,
			Metadata:    payload,
		})
		if err != nil {
			return fmt.Errorf("add credits: %w", err)
		}
		if !credited {
			return nil
		}
	}

	in.recordPayment(ctx, &models.PaymentRecord{
		UserID:            p.UserID,
		ExternalPaymentID: p.PaymentID,
		Amount:            p.Amount,
		Status:            models.PaymentStatusCompleted,
		CreditsPurchased:  p.Credits,
		MetadataJSON:      payload,
	})
	return nil
}

func (in *Ingestor) handlePaymentFailed(ctx context.Context, p *PaymentEvent, payload string) error {
	if p == nil || p.UserID == "" || p.PaymentID == "" {
		return fmt.Errorf("%w: user_id or payment_id", ErrMissingField)
	}
	in.recordPayment(ctx, &models.PaymentRecord{
		UserID:            p.UserID,
		ExternalPaymentID: p.PaymentID,
		Amount:            p.Amount,
		Status:            models.PaymentStatusFailed,
		MetadataJSON:      payload,
	})
	return nil
}

// recordPayment writes the payment audit row. Failures are logged only,
// the ledger mutation before it is authoritative.
func (in *Ingestor) recordPayment(ctx context.Context, rec *models.PaymentRecord) {
	if in.deps.Payments == nil {
		return
	}
	if err := in.deps.Payments.Create(ctx, rec); err != nil {
		log.Warnf("[Webhook] Failed to record %s payment %s: %v", rec.Status, rec.ExternalPaymentID, err)
	}
}

func (in *Ingestor) handleSubscriptionCreated(ctx context.Context, source string, s *SubscriptionEvent, payload string) error {
	if s == nil || s.UserID == "" {
		return fmt.Errorf("%w: user_id or subscription", ErrMissingField)
	}

	sub := &models.Subscription{
		UserID:             s.UserID,
		PlanID:             s.PlanID,
		PlanName:           s.PlanName,
		Status:             NormalizeStatus(s.Status, models.SubscriptionStatusActive),
		CurrentPeriodStart: s.CurrentPeriodStart,
		CurrentPeriodEnd:   s.CurrentPeriodEnd,
		TrialEnd:           s.TrialEnd,
		CreditsPerMonth:    s.CreditsPerMonth,
		PricePerMonth:      s.PricePerMonth,
	}
	if s.CancelAtPeriodEnd != nil {
		sub.CancelAtPeriodEnd = *s.CancelAtPeriodEnd
	}

	var err error
	if s.ExternalID != "" {
		extID := s.ExternalID
		sub.ExternalSubscriptionID = &extID
		err = in.deps.Subscriptions.Upsert(ctx, sub)
	} else {
		err = in.deps.Subscriptions.Create(ctx, sub)
	}
	if err != nil {
		return fmt.Errorf("store subscription: %w", err)
	}

	if sub.CreditsPerMonth > 0 {
		if _, err := in.creditOnce(ctx, source, credits.AddParams{
			UserID:      s.UserID,
			Amount:      sub.CreditsPerMonth,
			Type:        models.CreditTransactionPurchase,
			Description: "Monthly credits - " + sub.PlanName,
			ReferenceID: s.ExternalID,
			Metadata:    payload,
		}); err != nil {
			return fmt.Errorf("add monthly credits: %w", err)
		}
	}
	return nil
}

func (in *Ingestor) handleSubscriptionUpdated(ctx context.Context, s *SubscriptionEvent) error {
	if s == nil || s.ExternalID == "" {
		return fmt.Errorf("%w: subscription id", ErrMissingField)
	}

	var status models.SubscriptionStatus
	if s.Status != "" {
		status = NormalizeStatus(s.Status, models.SubscriptionStatusActive)
	}
	_, err := in.deps.Subscriptions.UpdateByExternalID(ctx, s.ExternalID, status, subscriptions.Fields{
		CurrentPeriodStart: s.CurrentPeriodStart,
		CurrentPeriodEnd:   s.CurrentPeriodEnd,
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		TrialEnd:           s.TrialEnd,
	})
	if err != nil {
		return fmt.Errorf("update subscription %s: %w", s.ExternalID, err)
	}
	return nil
}

func (in *Ingestor) handleSubscriptionCanceled(ctx context.Context, s *SubscriptionEvent) error {
	if s == nil || s.ExternalID == "" {
		return fmt.Errorf("%w: subscription id", ErrMissingField)
	}
	if _, err := in.deps.Subscriptions.CancelByExternalID(ctx, s.ExternalID, in.now()); err != nil {
		return fmt.Errorf("cancel subscription %s: %w", s.ExternalID, err)
	}
	return nil
}

// creditOnce adds credits unless dedupe is on and the reference id was
// already credited for the user. It reports whether credits were added.
// The ledger checks the reference inside its own transaction, the Redis
// lock only keeps concurrent redeliveries from queueing on the account row.
func (in *Ingestor) creditOnce(ctx context.Context, source string, p credits.AddParams) (bool, error) {
	if !in.dedupe || p.ReferenceID == "" {
		_, _, err := in.deps.Ledger.AddCredits(ctx, p)
		return err == nil, err
	}

	release, ok, err := in.deps.Locker.Acquire(ctx, source+":"+p.UserID+":"+p.ReferenceID, lockTTL)
	if err != nil {
		return false, fmt.Errorf("acquire delivery lock: %w", err)
	}
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrDeliveryInProgress, p.ReferenceID)
	}
	defer release()

	_, applied, err := in.deps.Ledger.AddCreditsOnce(ctx, p)
	if err != nil {
		return false, err
	}
	if !applied {
		log.Infof("[Webhook] Reference %s already credited for user %s, skipping", p.ReferenceID, p.UserID)
	}
	return applied, nil
}

// PendingEvents lists failed or unprocessed events that are still within
// the retry budget, oldest first.
func (in *Ingestor) PendingEvents(ctx context.Context, limit int) ([]models.WebhookEvent, error) {
	return in.deps.Events.ListUnprocessed(ctx, clampLimit(limit), models.MaxWebhookRetries)
}

// UserEvents lists the events attributed to a user, newest first.
func (in *Ingestor) UserEvents(ctx context.Context, userID string, limit int) ([]models.WebhookEvent, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id", ErrMissingField)
	}
	return in.deps.Events.ListByUserID(ctx, userID, clampLimit(limit))
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 50
	case limit > 200:
		return 200
	default:
		return limit
	}
}
