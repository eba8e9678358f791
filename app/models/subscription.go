package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusInactive SubscriptionStatus = "inactive"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
)

// Valid reports whether s is one of the known subscription states.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionStatusActive,
		SubscriptionStatusInactive,
		SubscriptionStatusCanceled,
		SubscriptionStatusPastDue,
		SubscriptionStatusTrialing:
		return true
	default:
		return false
	}
}

// Subscription mirrors a provider subscription. Rows are never deleted;
// cancellation is a status transition.
type Subscription struct {
	ID                     uint               `gorm:"primaryKey" json:"id"`
	UserID                 string             `gorm:"type:varchar(191);not null;index:idx_subscriptions_user_status,priority:1" json:"user_id" validate:"required,max=191"`
	PlanID                 string             `gorm:"type:varchar(191);not null;default:'unknown'" json:"plan_id" validate:"required"`
	PlanName               string             `gorm:"type:varchar(191);not null;default:'Unknown Plan'" json:"plan_name"`
	Status                 SubscriptionStatus `gorm:"type:varchar(32);not null;default:'active';index:idx_subscriptions_user_status,priority:2" json:"status" validate:"required,oneof=active inactive canceled past_due trialing"`
	CurrentPeriodStart     *time.Time         `gorm:"type:timestamp;default:null" json:"current_period_start"`
	CurrentPeriodEnd       *time.Time         `gorm:"type:timestamp;default:null" json:"current_period_end"`
	CancelAtPeriodEnd      bool               `gorm:"default:false" json:"cancel_at_period_end"`
	CreditsPerMonth        int64              `gorm:"not null;default:0" json:"credits_per_month" validate:"gte=0"`
	PricePerMonth          float64            `gorm:"type:decimal(10,2);not null;default:0" json:"price_per_month" validate:"gte=0"`
	ExternalSubscriptionID *string            `gorm:"type:varchar(191);default:null;uniqueIndex" json:"external_subscription_id"`
	TrialEnd               *time.Time         `gorm:"type:timestamp;default:null" json:"trial_end"`
	CanceledAt             *time.Time         `gorm:"type:timestamp;default:null" json:"canceled_at"`
	CreatedAt              time.Time          `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt              time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Subscription) Validate() error {
	v := validator.New()

	return v.Struct(s)
}
