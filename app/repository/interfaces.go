package repository

import (
	"context"
	"errors"

	"github.com/animora/animora/app/models"
	"gorm.io/gorm"
)

// ErrInsufficientBalance is returned by CreditRepository.ApplyDelta when a
// debit would drive the balance below zero. The account is left unchanged.
var ErrInsufficientBalance = errors.New("repository: insufficient balance")

// CreditRepository defines the ledger storage operations. ApplyDelta is the
// only way balances change and must be atomic per account.
type CreditRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.CreditAccount, error)
	Initialize(ctx context.Context, account *models.CreditAccount) error
	CreateIfNotExists(ctx context.Context, account *models.CreditAccount) (bool, *models.CreditAccount, error)
	ApplyDelta(ctx context.Context, entry *models.CreditTransaction) (*models.CreditAccount, error)
	ApplyCreditOnce(ctx context.Context, entry *models.CreditTransaction) (*models.CreditAccount, bool, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error)
	HasReference(ctx context.Context, userID, referenceID string) (bool, error)
}

// SubscriptionRepository defines subscription row operations. Update methods
// return gorm.ErrRecordNotFound when no row matches.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *models.Subscription) error
	UpsertByExternalID(ctx context.Context, sub *models.Subscription) error
	GetByID(ctx context.Context, id uint) (*models.Subscription, error)
	GetActiveByUserID(ctx context.Context, userID string) (*models.Subscription, error)
	ListByUserID(ctx context.Context, userID string) ([]models.Subscription, error)
	UpdateByID(ctx context.Context, id uint, updates map[string]interface{}) (*models.Subscription, error)
	UpdateByExternalID(ctx context.Context, externalID string, updates map[string]interface{}) (*models.Subscription, error)
}

// PlanRepository reads the subscription plan catalog.
type PlanRepository interface {
	ListActive(ctx context.Context) ([]models.SubscriptionPlan, error)
	GetByID(ctx context.Context, id string) (*models.SubscriptionPlan, error)
}

// PackRepository reads the one-time credit pack catalog.
type PackRepository interface {
	ListActive(ctx context.Context) ([]models.CreditPack, error)
	GetByProductID(ctx context.Context, productID string) (*models.CreditPack, error)
}

// WebhookEventRepository stores the webhook audit log.
type WebhookEventRepository interface {
	Create(ctx context.Context, event *models.WebhookEvent) error
	GetByID(ctx context.Context, id uint) (*models.WebhookEvent, error)
	MarkProcessed(ctx context.Context, id uint, success bool, errorMessage string) error
	ListUnprocessed(ctx context.Context, limit, maxRetries int) ([]models.WebhookEvent, error)
	ListByUserID(ctx context.Context, userID string, limit int) ([]models.WebhookEvent, error)
}

// PaymentRepository stores payment audit rows.
type PaymentRepository interface {
	Create(ctx context.Context, record *models.PaymentRecord) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	Credit       CreditRepository
	Subscription SubscriptionRepository
	Plan         PlanRepository
	Pack         PackRepository
	WebhookEvent WebhookEventRepository
	Payment      PaymentRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Credit:       NewCreditRepository(db),
		Subscription: NewSubscriptionRepository(db),
		Plan:         NewPlanRepository(db),
		Pack:         NewPackRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
		Payment:      NewPaymentRepository(db),
	}
}
