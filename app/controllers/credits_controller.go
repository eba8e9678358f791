package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/animora/animora/app/models"
	"github.com/animora/animora/internal/pkg/credits"
)

type creditAction string

const (
	creditActionUse creditAction = "use"
	creditActionAdd creditAction = "add"
)

type creditsRequest struct {
	UserID      string       `json:"user_id" validate:"required,max=191"`
	Action      creditAction `json:"action" validate:"required,oneof=use add"`
	Amount      int64        `json:"amount" validate:"gt=0"`
	Description string       `json:"description" validate:"max=255"`
	ReferenceID string       `json:"reference_id" validate:"max=191"`
}

// CreditsController exposes the credit ledger over HTTP
type CreditsController struct {
	ledger *credits.Service
	packs  *credits.Catalog
}

// NewCreditsController creates a credits controller
func NewCreditsController(ledger *credits.Service, packs *credits.Catalog) *CreditsController {
	return &CreditsController{ledger: ledger, packs: packs}
}

// HandleGetCredits returns the user's account, creating it with the signup
// grant on first access.
func (cc *CreditsController) HandleGetCredits(c *fiber.Ctx) error {
	userID := queryUserID(c)
	if userID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "User ID is required", nil)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	account, err := cc.ledger.GetOrInitialize(ctx, userID)
	if err != nil {
		fiberlog.Errorf("[Credits] Failed to load credits for %s: %v", userID, err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to get credits", err)
	}

	return c.JSON(fiber.Map{"success": true, "credits": account})
}

// HandlePostCredits uses or adds credits.
// Request: JSON { user_id, action: "use"|"add", amount, description?, reference_id? }
func (cc *CreditsController) HandlePostCredits(c *fiber.Ctx) error {
	var req creditsRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := validate.Struct(&req); err != nil {
		return validationError(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	var (
		account *models.CreditAccount
		entry   *models.CreditTransaction
		err     error
	)
	switch req.Action {
	case creditActionUse:
		account, entry, err = cc.ledger.UseCredits(ctx, req.UserID, req.Amount, req.Description)
	case creditActionAdd:
		account, entry, err = cc.ledger.AddCredits(ctx, credits.AddParams{
			UserID:      req.UserID,
			Amount:      req.Amount,
			Type:        models.CreditTransactionPurchase,
			Description: req.Description,
			ReferenceID: req.ReferenceID,
		})
	}
	if err != nil {
		switch {
		case errors.Is(err, credits.ErrInsufficientCredits):
			return errorResponse(c, fiber.StatusBadRequest, "Insufficient credits", nil)
		case errors.Is(err, credits.ErrInvalidAmount), errors.Is(err, credits.ErrUserRequired):
			return errorResponse(c, fiber.StatusBadRequest, "Invalid request", err)
		default:
			fiberlog.Errorf("[Credits] %s of %d credits for %s failed: %v", req.Action, req.Amount, req.UserID, err)
			return errorResponse(c, fiber.StatusInternalServerError, "Failed to process credit transaction", err)
		}
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"credits":     account,
		"transaction": entry,
	})
}

// HandleGetTransactions lists the newest ledger entries of a user.
func (cc *CreditsController) HandleGetTransactions(c *fiber.Ctx) error {
	userID := queryUserID(c)
	if userID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "User ID is required", nil)
	}
	limit := c.QueryInt("limit", credits.DefaultHistoryLimit)

	ctx, cancel := requestContext(c)
	defer cancel()

	txs, err := cc.ledger.ListTransactions(ctx, userID, limit)
	if err != nil {
		fiberlog.Errorf("[Credits] Failed to list transactions for %s: %v", userID, err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to get transactions", err)
	}
	if txs == nil {
		txs = []models.CreditTransaction{}
	}

	return c.JSON(fiber.Map{"success": true, "transactions": txs})
}

// HandleGetPacks lists the one-time credit packs on sale.
func (cc *CreditsController) HandleGetPacks(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	packs, err := cc.packs.ListPacks(ctx)
	if err != nil {
		fiberlog.Errorf("[Credits] Failed to list credit packs: %v", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to get credit packs", err)
	}
	if packs == nil {
		packs = []models.CreditPack{}
	}

	return c.JSON(fiber.Map{"success": true, "packs": packs})
}
