package subscriptions

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/animora/animora/app/models"
	"github.com/animora/animora/app/repository"
)

var (
	ErrUserRequired         = errors.New("subscriptions: user_id is required")
	ErrSubscriptionNotFound = errors.New("subscriptions: subscription not found")
	ErrPlanNotFound         = errors.New("subscriptions: plan not found")
	ErrInvalidStatus        = errors.New("subscriptions: invalid status")
	ErrExternalIDRequired   = errors.New("subscriptions: external subscription id is required")
)

// Fields holds optional column updates. Nil fields are left untouched.
type Fields struct {
	PlanID             *string
	PlanName           *string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  *bool
	CreditsPerMonth    *int64
	PricePerMonth      *float64
	TrialEnd           *time.Time
	CanceledAt         *time.Time
}

func (f Fields) updates() map[string]interface{} {
	u := make(map[string]interface{})
	if f.PlanID != nil {
		u["plan_id"] = *f.PlanID
	}
	if f.PlanName != nil {
		u["plan_name"] = *f.PlanName
	}
	if f.CurrentPeriodStart != nil {
		u["current_period_start"] = *f.CurrentPeriodStart
	}
	if f.CurrentPeriodEnd != nil {
		u["current_period_end"] = *f.CurrentPeriodEnd
	}
	if f.CancelAtPeriodEnd != nil {
		u["cancel_at_period_end"] = *f.CancelAtPeriodEnd
	}
	if f.CreditsPerMonth != nil {
		u["credits_per_month"] = *f.CreditsPerMonth
	}
	if f.PricePerMonth != nil {
		u["price_per_month"] = *f.PricePerMonth
	}
	if f.TrialEnd != nil {
		u["trial_end"] = *f.TrialEnd
	}
	if f.CanceledAt != nil {
		u["canceled_at"] = *f.CanceledAt
	}
	return u
}

// Service is the subscription store together with the plan catalog.
type Service struct {
	subs  repository.SubscriptionRepository
	plans repository.PlanRepository
	now   func() time.Time
}

// NewService creates a subscription service from injected repositories.
func NewService(subs repository.SubscriptionRepository, plans repository.PlanRepository) *Service {
	return &Service{subs: subs, plans: plans, now: time.Now}
}

// GetCurrent returns the user's active subscription or nil when there is none.
func (s *Service) GetCurrent(ctx context.Context, userID string) (*models.Subscription, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserRequired
	}
	sub, err := s.subs.GetActiveByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

// GetHistory returns every subscription of the user, newest first.
func (s *Service) GetHistory(ctx context.Context, userID string) ([]models.Subscription, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserRequired
	}
	return s.subs.ListByUserID(ctx, userID)
}

// HasActive reports whether the user has a subscription in status active.
func (s *Service) HasActive(ctx context.Context, userID string) (bool, error) {
	sub, err := s.GetCurrent(ctx, userID)
	if err != nil {
		return false, err
	}
	return sub != nil && sub.Status == models.SubscriptionStatusActive, nil
}

// Create inserts a new subscription row.
func (s *Service) Create(ctx context.Context, sub *models.Subscription) error {
	if err := s.prepare(sub); err != nil {
		return err
	}
	return s.subs.Create(ctx, sub)
}

// Upsert inserts the subscription or refreshes the row with the same
// external subscription id.
func (s *Service) Upsert(ctx context.Context, sub *models.Subscription) error {
	if sub.ExternalSubscriptionID == nil || strings.TrimSpace(*sub.ExternalSubscriptionID) == "" {
		return ErrExternalIDRequired
	}
	if err := s.prepare(sub); err != nil {
		return err
	}
	return s.subs.UpsertByExternalID(ctx, sub)
}

func (s *Service) prepare(sub *models.Subscription) error {
	sub.UserID = strings.TrimSpace(sub.UserID)
	if sub.UserID == "" {
		return ErrUserRequired
	}
	if sub.Status == "" {
		sub.Status = models.SubscriptionStatusActive
	}
	if !sub.Status.Valid() {
		return ErrInvalidStatus
	}
	if sub.PlanID == "" {
		sub.PlanID = "unknown"
	}
	if sub.PlanName == "" {
		sub.PlanName = "Unknown Plan"
	}
	if sub.Status == models.SubscriptionStatusCanceled && sub.CanceledAt == nil {
		now := s.now()
		sub.CanceledAt = &now
	}
	return sub.Validate()
}

// UpdateStatus sets the status of subscription id and merges extra fields.
// Moving to canceled stamps canceled_at unless the caller supplied one.
func (s *Service) UpdateStatus(ctx context.Context, id uint, status models.SubscriptionStatus, extra Fields) (*models.Subscription, error) {
	updates, err := s.statusUpdates(status, extra)
	if err != nil {
		return nil, err
	}
	return s.translate(s.subs.UpdateByID(ctx, id, updates))
}

// UpdateStatusForUser is UpdateStatus restricted to subscriptions owned by
// userID. A subscription of another user is reported as not found.
func (s *Service) UpdateStatusForUser(ctx context.Context, userID string, id uint, status models.SubscriptionStatus) (*models.Subscription, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserRequired
	}
	sub, err := s.translate(s.subs.GetByID(ctx, id))
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		return nil, ErrSubscriptionNotFound
	}
	return s.UpdateStatus(ctx, id, status, Fields{})
}

// UpdateByExternalID applies a provider update to the row addressed by the
// external subscription id. A zero status leaves the status unchanged.
func (s *Service) UpdateByExternalID(ctx context.Context, externalID string, status models.SubscriptionStatus, extra Fields) (*models.Subscription, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, ErrExternalIDRequired
	}
	var (
		updates map[string]interface{}
		err     error
	)
	if status == "" {
		updates = extra.updates()
	} else if updates, err = s.statusUpdates(status, extra); err != nil {
		return nil, err
	}
	return s.translate(s.subs.UpdateByExternalID(ctx, externalID, updates))
}

// CancelByExternalID marks the provider subscription canceled at the given time.
func (s *Service) CancelByExternalID(ctx context.Context, externalID string, at time.Time) (*models.Subscription, error) {
	return s.UpdateByExternalID(ctx, externalID, models.SubscriptionStatusCanceled, Fields{CanceledAt: &at})
}

func (s *Service) statusUpdates(status models.SubscriptionStatus, extra Fields) (map[string]interface{}, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	updates := extra.updates()
	updates["status"] = status
	if status == models.SubscriptionStatusCanceled {
		if _, ok := updates["canceled_at"]; !ok {
			updates["canceled_at"] = s.now()
		}
	}
	return updates, nil
}

func (s *Service) translate(sub *models.Subscription, err error) (*models.Subscription, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return sub, nil
}

// ListPlans returns the active plan catalog ordered for display.
func (s *Service) ListPlans(ctx context.Context) ([]models.SubscriptionPlan, error) {
	return s.plans.ListActive(ctx)
}

// GetPlan returns an active or inactive plan by id.
func (s *Service) GetPlan(ctx context.Context, id string) (*models.SubscriptionPlan, error) {
	plan, err := s.plans.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return plan, nil
}
