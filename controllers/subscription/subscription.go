package subscriptionController

import (
	"errors"
	"log"
	"time"

	"examportal/config"
	"examportal/database"
	"examportal/middleware"
	"examportal/models"
	"examportal/services/ledger"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// Subscribe starts a subscription: the first period is debited immediately,
// later periods are billed by the scheduler.
func Subscribe(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	var user models.User
	if err := database.Database.Db.Where("id = ? AND is_deleted = false", userId).First(&user).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Access Denied!", nil)
	}

	reqData, ok := c.Locals("validatedSubscribe").(*struct {
		Plan   string `json:"plan"`
		Price  string `json:"price"`
		Period string `json:"period"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	price, err := decimal.NewFromString(reqData.Price)
	if err != nil || price.IsNegative() || price.IsZero() {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Price must be greater than 0!", nil)
	}

	var existing int64
	database.Database.Db.Model(&models.Subscription{}).
		Where("user_id = ? AND status IN ? AND is_deleted = false",
			userId, []string{models.SubscriptionActive, models.SubscriptionSuspended}).
		Count(&existing)
	if existing > 0 {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "You already have a subscription!", nil)
	}

	period := reqData.Period
	if period == "" {
		period = models.PeriodMonthly
	}

	sub := models.Subscription{
		UserID:    userId,
		Plan:      reqData.Plan,
		Price:     price,
		Period:    period,
		Status:    models.SubscriptionActive,
		StartedAt: time.Now(),
	}
	sub.NextBillingAt = sub.NextPeriod(sub.StartedAt)

	txn, err := ledger.ApplyMutation(ledger.MutationInput{
		UserID:      userId,
		Type:        models.TransactionTypeSubscription,
		Direction:   models.DirectionDebit,
		Amount:      price,
		Description: "Subscription started: " + reqData.Plan,
		Metadata:    map[string]any{"plan": reqData.Plan, "period": period},
		Actor:       user.Email,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Insufficient wallet balance!", nil)
		}
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Something went wrong!", nil)
	}

	if err := database.Database.Db.Create(&sub).Error; err != nil {
		log.Printf("[SUBSCRIPTION] Subscription create failed for user %d after debit %d: %v", userId, txn.ID, err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to create subscription!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Subscribed successfully!", fiber.Map{
		"subscription":  sub,
		"transactionId": txn.ID,
		"balanceAfter":  txn.BalanceAfter,
	})
}

// GetSubscription returns the caller's current subscription
func GetSubscription(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	var sub models.Subscription
	if err := database.Database.Db.
		Where("user_id = ? AND is_deleted = false", userId).
		Order("created_at DESC").
		First(&sub).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "No subscription found!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Subscription fetched!", sub)
}

// Cancel cancels the caller's subscription. The cancellation fee is charged
// best effort: a wallet that cannot cover it does not block the cancellation.
func Cancel(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	var user models.User
	if err := database.Database.Db.Where("id = ? AND is_deleted = false", userId).First(&user).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Access Denied!", nil)
	}

	var sub models.Subscription
	if err := database.Database.Db.
		Where("user_id = ? AND status IN ? AND is_deleted = false",
			userId, []string{models.SubscriptionActive, models.SubscriptionSuspended}).
		First(&sub).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "No active subscription found!", nil)
	}

	feeCharged := false
	fee, err := decimal.NewFromString(config.AppConfig.CancellationFee)
	if err == nil && fee.IsPositive() {
		_, feeErr := ledger.ApplyMutation(ledger.MutationInput{
			UserID:      userId,
			Type:        models.TransactionTypeCancellationFee,
			Direction:   models.DirectionDebit,
			Amount:      fee,
			Description: "Cancellation fee: " + sub.Plan,
			Metadata:    map[string]any{"subscriptionId": sub.ID, "plan": sub.Plan},
			Actor:       user.Email,
		})
		if feeErr == nil {
			feeCharged = true
		} else if !errors.Is(feeErr, ledger.ErrInsufficientBalance) {
			return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Something went wrong!", nil)
		}
	}

	now := time.Now()
	sub.Status = models.SubscriptionCancelled
	sub.CancelledAt = &now
	if err := database.Database.Db.Save(&sub).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to cancel subscription!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Subscription cancelled!", fiber.Map{
		"subscription": sub,
		"feeCharged":   feeCharged,
	})
}
