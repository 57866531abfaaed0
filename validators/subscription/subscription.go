package subscriptionValidator

import (
	"examportal/middleware"
	"examportal/models"

	"github.com/gofiber/fiber/v2"
)

// Subscribe validates a new subscription request
func Subscribe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(struct {
			Plan   string `json:"plan"`
			Price  string `json:"price"`
			Period string `json:"period"`
		})

		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)

		if reqData.Plan == "" {
			errors["plan"] = "Plan is required!"
		}
		if reqData.Price == "" {
			errors["price"] = "Price is required!"
		}
		if reqData.Period != "" && reqData.Period != models.PeriodMonthly && reqData.Period != models.PeriodYearly {
			errors["period"] = "Period must be MONTHLY or YEARLY!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedSubscribe", reqData)
		return c.Next()
	}
}
