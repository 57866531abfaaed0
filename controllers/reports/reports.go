package reportsController

import (
	"time"

	"examportal/database"
	"examportal/middleware"
	"examportal/models"
	"examportal/services/ledger"

	"github.com/gofiber/fiber/v2"
)

// parseDateQuery parses an optional YYYY-MM-DD query param
func parseDateQuery(c *fiber.Ctx, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, false
	}
	return &t, true
}

// GetTransactionStats returns the caller's per-type transaction statistics
func GetTransactionStats(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	from, ok := parseDateQuery(c, "from")
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid from date, use YYYY-MM-DD!", nil)
	}
	to, ok := parseDateQuery(c, "to")
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid to date, use YYYY-MM-DD!", nil)
	}

	stats, err := ledger.StatsByType(userId, from, to)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch stats!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Transaction stats fetched!", stats)
}

// GetReferralStats returns the caller's referral earnings summary
func GetReferralStats(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	summary, err := ledger.ReferralStats(userId)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch referral stats!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Referral stats fetched!", summary)
}

// GetFinancialReport returns platform-wide monthly financials (Admin only)
func GetFinancialReport(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	var admin models.User
	if err := database.Database.Db.
		Where("id = ? AND is_deleted = false AND role IN ?", userId, []string{"ADMIN", "SUPER-ADMIN"}).
		First(&admin).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Access Denied! Admin role required.", nil)
	}

	now := time.Now()
	start := now.AddDate(0, -3, 0)
	end := now

	if from, ok := parseDateQuery(c, "startDate"); !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid startDate, use YYYY-MM-DD!", nil)
	} else if from != nil {
		start = *from
	}
	if to, ok := parseDateQuery(c, "endDate"); !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid endDate, use YYYY-MM-DD!", nil)
	} else if to != nil {
		end = *to
	}
	if end.Before(start) {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "endDate must be after startDate!", nil)
	}

	report, err := ledger.BuildFinancialReport(start, end)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to build report!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Financial report generated!", report)
}
