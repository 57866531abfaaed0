package subscriptionRoutes

import (
	subscriptionController "examportal/controllers/subscription"
	"examportal/middleware"
	subscriptionValidator "examportal/validators/subscription"

	"github.com/gofiber/fiber/v2"
)

func SetupSubscriptionRoutes(app *fiber.App) {
	subscriptionGroup := app.Group("/subscription")

	subscriptionGroup.Post("/subscribe", subscriptionValidator.Subscribe(), middleware.JWTMiddleware, subscriptionController.Subscribe)
	subscriptionGroup.Get("/", middleware.JWTMiddleware, subscriptionController.GetSubscription)
	subscriptionGroup.Post("/cancel", middleware.JWTMiddleware, subscriptionController.Cancel)
}
