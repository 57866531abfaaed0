package ledger

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"examportal/config"
	"examportal/database"
	"examportal/models"

	"github.com/shopspring/decimal"
)

// Webhook event kinds recognized from the payment provider
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventChargeRefunded   = "charge.refunded"
)

// WebhookEvent is the provider's callback payload. IntentID is the
// idempotency key: events are deduplicated on it, never on arrival order.
type WebhookEvent struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	IntentID      string          `json:"intentId"`
	UserID        uint            `json:"userId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Gateway       string          `json:"gateway"`
	PaymentMethod string          `json:"paymentMethod"`
	RefundID      string          `json:"refundId"`
	FailureReason string          `json:"failureReason"`
}

// VerifySignature checks the HMAC-SHA256 hex signature of a raw webhook body
// against the shared secret. An empty configured secret rejects everything.
func VerifySignature(payload []byte, signature string) bool {
	secret := config.AppConfig.GatewayWebhookSecret
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignPayload produces the signature the provider would send for a payload
func SignPayload(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(config.AppConfig.GatewayWebhookSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// HandleWebhookEvent translates one provider callback into ledger state.
// Safe under at-least-once and out-of-order delivery: replays of an event
// whose terminal state is already recorded are no-ops, and events arriving
// before (or instead of) a locally created pending row create the transaction
// directly in the implied terminal state.
//
// Signature failures reject outright; every other failure is the caller's to
// acknowledge or retry per the error taxonomy.
func HandleWebhookEvent(ctx context.Context, payload []byte, signature string) error {
	if !VerifySignature(payload, signature) {
		return fmt.Errorf("%w: webhook signature mismatch", ErrUnauthorized)
	}

	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("%w: malformed webhook payload", ErrValidation)
	}
	if event.IntentID == "" {
		return fmt.Errorf("%w: webhook event missing intentId", ErrValidation)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}

	var err error
	switch event.Type {
	case EventPaymentSucceeded:
		err = reconcilePayment(ctx, event, models.TransactionStatusCompleted)
	case EventPaymentFailed:
		err = reconcilePayment(ctx, event, models.TransactionStatusFailed)
	case EventChargeRefunded:
		err = reconcileRefund(ctx, event)
	default:
		log.Printf("[WEBHOOK] Ignoring unhandled event type %q (event %s)", event.Type, event.ID)
		return nil
	}

	if errors.Is(err, ErrDuplicateEvent) {
		log.Printf("[WEBHOOK] Duplicate delivery of event %s (intent %s), no-op", event.ID, event.IntentID)
		return nil
	}
	return err
}

// reconcilePayment resolves a payment.succeeded/payment.failed event against
// the ledger.
func reconcilePayment(ctx context.Context, event WebhookEvent, desired models.TransactionStatus) error {
	db := database.Database.Db.WithContext(ctx)

	existing, err := findByGatewayID(db, event.IntentID)
	switch {
	case err == nil:
		if existing.Status == desired {
			return ErrDuplicateEvent
		}
		if existing.Status == models.TransactionStatusPending {
			_, finErr := FinalizePending(existing.ID, desired, event.FailureReason, "gateway")
			if errors.Is(finErr, ErrInsufficientBalance) {
				// Business failure, already recorded on the row. Acknowledge
				// so the provider does not retry a permanently failed debit.
				return nil
			}
			return finErr
		}
		// Terminal but different from the event's implied state. The ledger
		// never rewrites terminal rows; log for reconciliation review.
		log.Printf("[WEBHOOK] Conflicting replay for intent %s: row %d is %s, event implies %s",
			event.IntentID, existing.ID, existing.Status, desired)
		return nil

	case errors.Is(err, ErrNotFound):
		// Event arrived before, or instead of, a locally created pending row.
		return createFromEvent(event, desired)

	default:
		return err
	}
}

// createFromEvent records a transaction directly in the terminal state implied
// by a webhook event that has no local counterpart.
func createFromEvent(event WebhookEvent, desired models.TransactionStatus) error {
	if event.UserID == 0 {
		return fmt.Errorf("%w: webhook event for unknown intent carries no userId", ErrValidation)
	}
	if event.Amount.IsZero() || event.Amount.IsNegative() {
		return fmt.Errorf("%w: webhook event amount must be greater than 0", ErrValidation)
	}

	if desired == models.TransactionStatusCompleted {
		_, err := ApplyMutation(MutationInput{
			UserID:          event.UserID,
			Type:            models.TransactionTypeWalletTopup,
			Direction:       models.DirectionCredit,
			Amount:          event.Amount,
			Description:     "Wallet top-up confirmed by payment gateway",
			Actor:           "gateway",
			Gateway:         event.Gateway,
			GatewayIntentID: event.IntentID,
			PaymentMethod:   event.PaymentMethod,
		})
		return err
	}

	// A failed payment with no local row still gets a FAILED entry so the
	// external id stays mapped and replays dedupe against it.
	intentID := event.IntentID
	draft := &models.Transaction{
		UserID:          event.UserID,
		Type:            models.TransactionTypeWalletTopup,
		Direction:       models.DirectionCredit,
		Amount:          event.Amount,
		Currency:        event.Currency,
		Description:     "Wallet top-up rejected by payment gateway",
		Status:          models.TransactionStatusFailed,
		Gateway:         event.Gateway,
		GatewayIntentID: &intentID,
		PaymentMethod:   event.PaymentMethod,
		ErrorMessage:    event.FailureReason,
	}
	if err := draft.AppendAudit("created", "gateway", ""); err != nil {
		return err
	}
	if err := draft.AppendAudit("failed", "gateway", event.FailureReason); err != nil {
		return err
	}
	_, err := Append(draft)
	return err
}

// reconcileRefund resolves a charge.refunded event. The provider already
// reversed the money, so no new gateway refund is issued; the event's refund
// id is recorded for dedup.
func reconcileRefund(ctx context.Context, event WebhookEvent) error {
	if event.RefundID == "" {
		return fmt.Errorf("%w: charge.refunded event missing refundId", ErrValidation)
	}

	db := database.Database.Db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.Transaction{}).
		Where("gateway_refund_id = ? AND type = ?", event.RefundID, models.TransactionTypeRefund).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicateEvent
	}

	original, err := findByGatewayID(db, event.IntentID)
	if err != nil {
		return err
	}
	if original.Status == models.TransactionStatusRefunded {
		return ErrDuplicateEvent
	}
	if !refundable(original.Status) {
		return fmt.Errorf("%w: charge.refunded for transaction %d in status %s",
			ErrValidation, original.ID, original.Status)
	}

	amt := event.Amount
	if amt.IsZero() {
		refunded, err := refundedAmount(db, original.ID)
		if err != nil {
			return err
		}
		amt = original.Amount.Sub(refunded)
	}

	_, err = applyRefund(original.ID, amt, "Charge refunded by payment gateway", "gateway", event.RefundID)
	return err
}
