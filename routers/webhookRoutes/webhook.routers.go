package webhookRoutes

import (
	webhookController "examportal/controllers/webhook"

	"github.com/gofiber/fiber/v2"
)

func SetupWebhookRoutes(app *fiber.App) {
	webhookGroup := app.Group("/webhooks")

	// Authenticated by HMAC signature, not JWT
	webhookGroup.Post("/gateway", webhookController.HandleGatewayWebhook)
}
