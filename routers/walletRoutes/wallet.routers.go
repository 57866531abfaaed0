package walletRoutes

import (
	walletController "examportal/controllers/wallet"
	"examportal/middleware"
	walletValidator "examportal/validators/wallet"

	"github.com/gofiber/fiber/v2"
)

func SetupWalletRoutes(app *fiber.App) {
	walletGroup := app.Group("/wallet")

	// User routes
	walletGroup.Get("/balance", middleware.JWTMiddleware, walletController.GetWalletBalance)
	walletGroup.Post("/topup", walletValidator.Topup(), middleware.JWTMiddleware, walletController.InitiateTopup)
	walletGroup.Get("/history", middleware.JWTMiddleware, walletController.GetWalletHistory)
	walletGroup.Post("/purchase-exam", walletValidator.PurchaseExam(), middleware.JWTMiddleware, walletController.PurchaseExam)
	walletGroup.Post("/refund", walletValidator.Refund(), middleware.JWTMiddleware, walletController.RequestRefund)

	// Admin routes
	adminGroup := walletGroup.Group("/admin")
	adminGroup.Get("/stats", middleware.JWTMiddleware, walletController.GetWalletStats)
	adminGroup.Get("/transactions", middleware.JWTMiddleware, walletController.GetAllTransactions)
	adminGroup.Post("/add-balance", walletValidator.AddBalance(), middleware.JWTMiddleware, walletController.AddBalance)
	adminGroup.Post("/deduct-balance", walletValidator.DeductBalance(), middleware.JWTMiddleware, walletController.DeductBalance)
	adminGroup.Get("/user-balance", middleware.JWTMiddleware, walletController.GetUserBalance)
	adminGroup.Get("/user-history", middleware.JWTMiddleware, walletController.GetUserWalletHistory)
}
