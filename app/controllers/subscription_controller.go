package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/animora/animora/app/models"
	"github.com/animora/animora/internal/pkg/billing"
	"github.com/animora/animora/internal/pkg/subscriptions"
)

type subscriptionQuery string

const (
	subscriptionQueryCurrent subscriptionQuery = "current"
	subscriptionQueryHistory subscriptionQuery = "history"
	subscriptionQueryPlans   subscriptionQuery = "plans"
)

type subscriptionAction string

const (
	subscriptionActionCreate     subscriptionAction = "create"
	subscriptionActionCancel     subscriptionAction = "cancel"
	subscriptionActionReactivate subscriptionAction = "reactivate"
)

type subscriptionRequest struct {
	Action         subscriptionAction `json:"action" validate:"required,oneof=create cancel reactivate"`
	UserID         string             `json:"user_id" validate:"required,max=191"`
	PlanID         string             `json:"plan_id" validate:"required_if=Action create"`
	SubscriptionID uint               `json:"subscription_id" validate:"required_unless=Action create"`
}

// CheckoutProvider creates hosted checkout sessions at the payment provider
type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, userID string, plan *models.SubscriptionPlan) (string, error)
}

// SubscriptionController exposes the subscription store and plan catalog
type SubscriptionController struct {
	subs     *subscriptions.Service
	checkout CheckoutProvider
}

// NewSubscriptionController creates a subscription controller
func NewSubscriptionController(subs *subscriptions.Service, checkout CheckoutProvider) *SubscriptionController {
	return &SubscriptionController{subs: subs, checkout: checkout}
}

// HandleGetSubscriptions returns the current subscription, the history or
// the plan catalog depending on ?type=.
func (sc *SubscriptionController) HandleGetSubscriptions(c *fiber.Ctx) error {
	userID := queryUserID(c)
	if userID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "User ID is required", nil)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	switch subscriptionQuery(c.Query("type", string(subscriptionQueryCurrent))) {
	case subscriptionQueryCurrent:
		sub, err := sc.subs.GetCurrent(ctx, userID)
		if err != nil {
			return sc.serverError(c, "Failed to get subscriptions", err)
		}
		return c.JSON(fiber.Map{"success": true, "subscription": sub})

	case subscriptionQueryHistory:
		subs, err := sc.subs.GetHistory(ctx, userID)
		if err != nil {
			return sc.serverError(c, "Failed to get subscriptions", err)
		}
		if subs == nil {
			subs = []models.Subscription{}
		}
		return c.JSON(fiber.Map{"success": true, "subscriptions": subs})

	case subscriptionQueryPlans:
		plans, err := sc.subs.ListPlans(ctx)
		if err != nil {
			return sc.serverError(c, "Failed to get plans", err)
		}
		if plans == nil {
			plans = []models.SubscriptionPlan{}
		}
		return c.JSON(fiber.Map{"success": true, "plans": plans})

	default:
		return errorResponse(c, fiber.StatusBadRequest, "Invalid type parameter", nil)
	}
}

// HandlePostSubscriptions starts a checkout or toggles a subscription.
// Request: JSON { action: "create"|"cancel"|"reactivate", user_id, plan_id?, subscription_id? }
func (sc *SubscriptionController) HandlePostSubscriptions(c *fiber.Ctx) error {
	var req subscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := validate.Struct(&req); err != nil {
		return validationError(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	switch req.Action {
	case subscriptionActionCreate:
		return sc.createCheckout(ctx, c, req)
	case subscriptionActionCancel:
		return sc.setStatus(ctx, c, req, models.SubscriptionStatusCanceled, "Subscription canceled successfully")
	case subscriptionActionReactivate:
		return sc.setStatus(ctx, c, req, models.SubscriptionStatusActive, "Subscription reactivated successfully")
	}
	return errorResponse(c, fiber.StatusBadRequest, "Invalid action", nil)
}

func (sc *SubscriptionController) createCheckout(ctx context.Context, c *fiber.Ctx, req subscriptionRequest) error {
	plan, err := sc.subs.GetPlan(ctx, req.PlanID)
	if err != nil {
		if errors.Is(err, subscriptions.ErrPlanNotFound) {
			return errorResponse(c, fiber.StatusBadRequest, "Invalid plan ID", nil)
		}
		return sc.serverError(c, "Failed to process subscription request", err)
	}
	if !plan.IsActive {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid plan ID", nil)
	}

	url, err := sc.checkout.CreateCheckoutSession(ctx, req.UserID, plan)
	if err != nil {
		if errors.Is(err, billing.ErrCheckoutNotConfigured) {
			fiberlog.Error("[Subscriptions] Creem checkout is not configured (CREEM_API_KEY/CREEM_API_URL)")
			return errorResponse(c, fiber.StatusInternalServerError, "Checkout not configured", nil)
		}
		return sc.serverError(c, "Failed to create checkout session", err)
	}

	return c.JSON(fiber.Map{
		"success":      true,
		"checkout_url": url,
		"plan":         plan,
	})
}

func (sc *SubscriptionController) setStatus(ctx context.Context, c *fiber.Ctx, req subscriptionRequest, status models.SubscriptionStatus, message string) error {
	sub, err := sc.subs.UpdateStatusForUser(ctx, req.UserID, req.SubscriptionID, status)
	if err != nil {
		if errors.Is(err, subscriptions.ErrSubscriptionNotFound) {
			return errorResponse(c, fiber.StatusNotFound, "Subscription not found", nil)
		}
		return sc.serverError(c, "Failed to update subscription", err)
	}

	return c.JSON(fiber.Map{
		"success":      true,
		"message":      message,
		"subscription": sub,
	})
}

func (sc *SubscriptionController) serverError(c *fiber.Ctx, message string, err error) error {
	fiberlog.Errorf("[Subscriptions] %s: %v", message, err)
	return errorResponse(c, fiber.StatusInternalServerError, message, err)
}
