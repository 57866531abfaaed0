package main

import (
	"examportal/config"
	"examportal/database"
	reportRoutes "examportal/routers/reportRoutes"
	subscriptionRoutes "examportal/routers/subscriptionRoutes"
	walletRoutes "examportal/routers/walletRoutes"
	webhookRoutes "examportal/routers/webhookRoutes"
	"examportal/services/ledger"
	"examportal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"log"
)

func main() {
	config.LoadConfig()
	database.ConnectDb()
	database.ConnectRedis()

	// Wire the ledger's outbound effects
	ledger.SetNotifier(utils.SendTransactionEmail)
	ledger.SetRefundIssuer(utils.IssueRefund)

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE",        // Allowed HTTP methods
		AllowHeaders: "Content-Type,Authorization", // Allowed headers
	}))

	// Enable the built-in logger middleware to log all requests
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status} ${latency}\n",
	}))

	walletRoutes.SetupWalletRoutes(app)
	webhookRoutes.SetupWebhookRoutes(app)
	reportRoutes.SetupReportRoutes(app)
	subscriptionRoutes.SetupSubscriptionRoutes(app)

	utils.InitializeBillingScheduler()

	log.Printf("Server is running on port %s", config.AppConfig.Port)
	log.Fatal(app.Listen(":" + config.AppConfig.Port))
}
