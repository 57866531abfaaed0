package webhookController

import (
	"context"
	"errors"
	"log"
	"time"

	"examportal/middleware"
	"examportal/services/ledger"

	"github.com/gofiber/fiber/v2"
)

// signatureHeader carries the gateway's HMAC over the raw request body
const signatureHeader = "X-Gateway-Signature"

// HandleGatewayWebhook receives payment events from the gateway. The provider
// retries on any non-2xx, so business failures that are already recorded on a
// ledger row still return 200; only transient errors ask for a retry.
func HandleGatewayWebhook(c *fiber.Ctx) error {
	payload := c.Body()
	signature := c.Get(signatureHeader)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := ledger.HandleWebhookEvent(ctx, payload, signature)
	switch {
	case err == nil:
		return middleware.JsonResponse(c, fiber.StatusOK, true, "Event processed!", nil)
	case errors.Is(err, ledger.ErrUnauthorized):
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Invalid signature!", nil)
	case errors.Is(err, ledger.ErrValidation):
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Malformed event!", nil)
	case errors.Is(err, ledger.ErrGateway):
		return middleware.JsonResponse(c, fiber.StatusServiceUnavailable, false, "Temporary failure, retry later!", nil)
	case errors.Is(err, ledger.ErrInsufficientBalance):
		// Recorded as FAILED on the pending row; the gateway must not retry.
		return middleware.JsonResponse(c, fiber.StatusOK, true, "Event recorded as failed!", nil)
	case errors.Is(err, ledger.ErrNotFound):
		log.Printf("[WEBHOOK] Event references an unknown charge: %v", err)
		return middleware.JsonResponse(c, fiber.StatusOK, true, "Event acknowledged!", nil)
	default:
		return middleware.JsonResponse(c, fiber.StatusServiceUnavailable, false, "Temporary failure, retry later!", nil)
	}
}
