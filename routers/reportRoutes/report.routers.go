package reportRoutes

import (
	reportsController "examportal/controllers/reports"
	"examportal/middleware"

	"github.com/gofiber/fiber/v2"
)

func SetupReportRoutes(app *fiber.App) {
	reportGroup := app.Group("/reports")

	// User routes
	reportGroup.Get("/transactions", middleware.JWTMiddleware, reportsController.GetTransactionStats)
	reportGroup.Get("/referrals", middleware.JWTMiddleware, reportsController.GetReferralStats)

	// Admin routes
	reportGroup.Get("/financial", middleware.JWTMiddleware, reportsController.GetFinancialReport)
}
