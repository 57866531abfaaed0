package utils

import (
	"fmt"
	"time"

	"examportal/config"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// TopupIntent is the provider's handle for a payment awaiting confirmation.
// Its IntentID becomes the ledger's idempotency key for webhook events.
type TopupIntent struct {
	IntentID    string `json:"id"`
	CheckoutURL string `json:"checkoutUrl"`
	Status      string `json:"status"`
}

func gatewayClient() *resty.Client {
	return resty.New().
		SetBaseURL(config.AppConfig.GatewayApiURL).
		SetAuthToken(config.AppConfig.GatewayApiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)
}

// CreateTopupIntent registers a payment intent with the provider
func CreateTopupIntent(userID uint, amount decimal.Decimal, currency string) (*TopupIntent, error) {
	var intent TopupIntent
	resp, err := gatewayClient().R().
		SetBody(map[string]any{
			"amount":   amount.StringFixed(2),
			"currency": currency,
			"metadata": map[string]any{"userId": userID},
		}).
		SetResult(&intent).
		Post("/payment_intents")
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("gateway returned %s: %s", resp.Status(), resp.String())
	}
	if intent.IntentID == "" {
		return nil, fmt.Errorf("gateway response missing intent id")
	}
	return &intent, nil
}

// IssueRefund asks the provider to reverse (part of) a charge and returns the
// gateway refund id
func IssueRefund(intentID string, amount decimal.Decimal) (string, error) {
	var result struct {
		RefundID string `json:"id"`
		Status   string `json:"status"`
	}
	resp, err := gatewayClient().R().
		SetBody(map[string]any{
			"paymentIntent": intentID,
			"amount":        amount.StringFixed(2),
		}).
		SetResult(&result).
		Post("/refunds")
	if err != nil {
		return "", fmt.Errorf("gateway request failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("gateway returned %s: %s", resp.Status(), resp.String())
	}
	if result.RefundID == "" {
		return "", fmt.Errorf("gateway response missing refund id")
	}
	return result.RefundID, nil
}
