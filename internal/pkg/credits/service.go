package credits

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/animora/animora/app/models"
	"github.com/animora/animora/app/repository"
	"github.com/animora/animora/internal/pkg/env"
)

// Sentinel errors returned by the ledger.
var (
	ErrUserRequired        = errors.New("credits: user_id is required")
	ErrInvalidAmount       = errors.New("credits: amount must be positive")
	ErrInsufficientCredits = errors.New("credits: insufficient credits")
	ErrAccountNotFound     = errors.New("credits: account not found")
	ErrInvalidType         = errors.New("credits: transaction type cannot add credits")
	ErrReferenceRequired   = errors.New("credits: reference_id is required")
)

const (
	// DefaultSignupGrant is given to accounts created lazily on first lookup.
	DefaultSignupGrant  = 10
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
	defaultUsageText    = "Credit usage"
	defaultPurchaseText = "Credit purchase"
	maxDescriptionRunes = 255
)

// AddParams describes a balance increase.
type AddParams struct {
	UserID      string
	Amount      int64
	Type        models.CreditTransactionType
	Description string
	ReferenceID string
	Metadata    string
}

// Service is the credit ledger. All balance changes go through the
// repository's atomic ApplyDelta.
type Service struct {
	repo        repository.CreditRepository
	signupGrant int64
}

// NewService creates a ledger service from an injected repository.
func NewService(repo repository.CreditRepository, signupGrant int64) *Service {
	if signupGrant < 0 {
		signupGrant = 0
	}
	return &Service{repo: repo, signupGrant: signupGrant}
}

// LoadSignupGrant reads CREDITS_SIGNUP_GRANT, falling back to DefaultSignupGrant.
func LoadSignupGrant() int64 {
	return int64(env.GetEnvInt("CREDITS_SIGNUP_GRANT", DefaultSignupGrant))
}

// SignupGrant is the starting balance for lazily created accounts.
func (s *Service) SignupGrant() int64 {
	return s.signupGrant
}

// GetBalance returns the account or ErrAccountNotFound.
func (s *Service) GetBalance(ctx context.Context, userID string) (*models.CreditAccount, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserRequired
	}
	account, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

// Initialize creates the account with the given starting balance. Calling
// it again resets the account to that balance.
func (s *Service) Initialize(ctx context.Context, userID string, initialBalance int64) (*models.CreditAccount, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserRequired
	}
	if initialBalance < 0 {
		return nil, ErrInvalidAmount
	}

	account := &models.CreditAccount{
		UserID:         userID,
		Balance:        initialBalance,
		TotalPurchased: initialBalance,
		TotalUsed:      0,
	}
	if err := s.repo.Initialize(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// GetOrInitialize returns the account, creating it with the signup grant
// when absent. Concurrent first requests create exactly one account.
func (s *Service) GetOrInitialize(ctx context.Context, userID string) (*models.CreditAccount, error) {
	account, err := s.GetBalance(ctx, userID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	seed := &models.CreditAccount{
		UserID:         strings.TrimSpace(userID),
		Balance:        s.signupGrant,
		TotalPurchased: s.signupGrant,
	}
	created, stored, err := s.repo.CreateIfNotExists(ctx, seed)
	if err != nil {
		return nil, err
	}
	if created {
		log.Infof("[Credits] Initialized account for user %s with %d credits", seed.UserID, s.signupGrant)
	}
	return stored, nil
}

// HasEnough reports whether the balance covers amount. A missing account
// counts as a zero balance.
func (s *Service) HasEnough(ctx context.Context, userID string, amount int64) (bool, error) {
	account, err := s.GetBalance(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return amount <= 0, nil
		}
		return false, err
	}
	return account.Balance >= amount, nil
}

// UseCredits debits amount and appends a usage transaction. It fails with
// ErrInsufficientCredits, leaving the balance untouched, when the balance
// is lower than amount.
func (s *Service) UseCredits(ctx context.Context, userID string, amount int64, description string) (*models.CreditAccount, *models.CreditTransaction, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil, ErrUserRequired
	}
	if amount <= 0 {
		return nil, nil, ErrInvalidAmount
	}

	entry := &models.CreditTransaction{
		UserID:      userID,
		Type:        models.CreditTransactionUsage,
		Amount:      -amount,
		Description: normalizeDescription(description, defaultUsageText),
	}
	account, err := s.repo.ApplyDelta(ctx, entry)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientBalance), errors.Is(err, gorm.ErrRecordNotFound):
			return nil, nil, ErrInsufficientCredits
		default:
			return nil, nil, fmt.Errorf("use credits: %w", err)
		}
	}
	return account, entry, nil
}

// AddCredits credits amount and appends a transaction carrying the optional
// reference id. Missing accounts are created with a zero balance first.
func (s *Service) AddCredits(ctx context.Context, p AddParams) (*models.CreditAccount, *models.CreditTransaction, error) {
	entry, err := creditEntry(p)
	if err != nil {
		return nil, nil, err
	}

	account, err := s.repo.ApplyDelta(ctx, entry)
	if err != nil {
		return nil, nil, fmt.Errorf("add credits: %w", err)
	}
	return account, entry, nil
}

// AddCreditsOnce is AddCredits keyed by p.ReferenceID: when the user already
// has a transaction with that reference nothing changes and applied is
// false. The lookup and the credit run in one transaction.
func (s *Service) AddCreditsOnce(ctx context.Context, p AddParams) (account *models.CreditAccount, applied bool, err error) {
	entry, err := creditEntry(p)
	if err != nil {
		return nil, false, err
	}
	if entry.ReferenceID == nil {
		return nil, false, ErrReferenceRequired
	}

	account, applied, err = s.repo.ApplyCreditOnce(ctx, entry)
	if err != nil {
		return nil, false, fmt.Errorf("add credits once: %w", err)
	}
	return account, applied, nil
}

func creditEntry(p AddParams) (*models.CreditTransaction, error) {
	userID := strings.TrimSpace(p.UserID)
	if userID == "" {
		return nil, ErrUserRequired
	}
	if p.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	txType := p.Type
	if txType == "" {
		txType = models.CreditTransactionPurchase
	}
	if !txType.IsCredit() {
		return nil, ErrInvalidType
	}

	entry := &models.CreditTransaction{
		UserID:       userID,
		Type:         txType,
		Amount:       p.Amount,
		Description:  normalizeDescription(p.Description, defaultPurchaseText),
		MetadataJSON: p.Metadata,
	}
	if ref := strings.TrimSpace(p.ReferenceID); ref != "" {
		entry.ReferenceID = &ref
	}
	return entry, nil
}

// ListTransactions returns the newest transactions first, capped at limit.
func (s *Service) ListTransactions(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserRequired
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return s.repo.ListTransactions(ctx, userID, limit)
}

// HasReference reports whether a transaction with referenceID was already
// recorded for the user.
func (s *Service) HasReference(ctx context.Context, userID, referenceID string) (bool, error) {
	userID = strings.TrimSpace(userID)
	referenceID = strings.TrimSpace(referenceID)
	if userID == "" || referenceID == "" {
		return false, nil
	}
	return s.repo.HasReference(ctx, userID, referenceID)
}

func normalizeDescription(desc, fallback string) string {
	d := strings.TrimSpace(desc)
	if d == "" {
		return fallback
	}
	r := []rune(d)
	if len(r) > maxDescriptionRunes {
		d = string(r[:maxDescriptionRunes])
	}
	return d
}
