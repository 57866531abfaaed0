package ledger

import (
	"errors"
	"fmt"
	"strings"

	"examportal/database"
	"examportal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// refundIssuer asks the payment provider to reverse a charge and returns the
// gateway refund id. Wired in main; nil means reversals are wallet-only.
var refundIssuer func(intentID string, amount decimal.Decimal) (string, error)

// SetRefundIssuer installs the gateway refund collaborator
func SetRefundIssuer(fn func(intentID string, amount decimal.Decimal) (string, error)) {
	refundIssuer = fn
}

func refundable(status models.TransactionStatus) bool {
	return status == models.TransactionStatusCompleted || status == models.TransactionStatusPartiallyRefunded
}

// refundedAmount sums the completed refunds already linked to a transaction
func refundedAmount(tx *gorm.DB, originalID uint) (decimal.Decimal, error) {
	var refunded decimal.Decimal
	row := tx.Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("related_transaction_id = ? AND type = ? AND status = ? AND is_deleted = false",
			originalID, models.TransactionTypeRefund, models.TransactionStatusCompleted).
		Row()
	if err := row.Scan(&refunded); err != nil {
		return decimal.Zero, err
	}
	return refunded, nil
}

// Refund creates a compensating transaction against a completed (or partially
// refunded) transaction. The default amount is the full remaining refundable
// amount; partial refunds are capped per-transaction by the original amount
// minus prior refunds, not by the live wallet balance.
//
// Externally-mediated originals are reversed at the gateway first; a gateway
// failure leaves the original untouched so the caller can retry safely.
func Refund(txnID uint, amount *decimal.Decimal, reason, actor string) (*models.Transaction, error) {
	original, err := FindByID(txnID)
	if err != nil {
		return nil, err
	}
	if !refundable(original.Status) {
		return nil, fmt.Errorf("%w: transaction %d is %s, only COMPLETED or PARTIALLY_REFUNDED can be refunded",
			ErrValidation, txnID, original.Status)
	}

	refunded, err := refundedAmount(database.Database.Db, original.ID)
	if err != nil {
		return nil, err
	}
	remaining := original.Amount.Sub(refunded)

	amt := remaining
	if amount != nil {
		amt = *amount
	}
	if amt.IsZero() || amt.IsNegative() {
		return nil, fmt.Errorf("%w: refund amount must be greater than 0", ErrValidation)
	}
	if amt.GreaterThan(remaining) {
		return nil, fmt.Errorf("%w: refund %s exceeds remaining refundable %s",
			ErrValidation, amt.StringFixed(2), remaining.StringFixed(2))
	}

	var gatewayRefundID string
	if original.GatewayIntentID != nil && refundIssuer != nil {
		gatewayRefundID, err = refundIssuer(*original.GatewayIntentID, amt)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGateway, err)
		}
	}

	return applyRefund(original.ID, amt, reason, actor, gatewayRefundID)
}

// applyRefund writes the linked reversal row, the balance update and the
// original's status change in one database transaction under the user's lock.
// Reached from Refund and from charge.refunded webhook events (which carry the
// gateway's own refund id and skip issuing a new one).
func applyRefund(originalID uint, amt decimal.Decimal, reason, actor, gatewayRefundID string) (*models.Transaction, error) {
	if actor == "" {
		actor = "system"
	}

	var refundTxn *models.Transaction
	var original models.Transaction

	txErr := func() error {
		// The lock must cover the re-read of the original, the refunded-sum
		// and the balance write, or two concurrent refunds could both pass
		// the remaining-amount check.
		owner, err := FindByID(originalID)
		if err != nil {
			return err
		}
		unlock := lockUser(owner.UserID)
		defer unlock()

		return database.Database.Db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("id = ? AND is_deleted = false", originalID).First(&original).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: transaction %d", ErrNotFound, originalID)
				}
				return err
			}
			if !refundable(original.Status) {
				return fmt.Errorf("%w: transaction %d is %s", ErrValidation, original.ID, original.Status)
			}

			refunded, err := refundedAmount(tx, original.ID)
			if err != nil {
				return err
			}
			remaining := original.Amount.Sub(refunded)
			if amt.GreaterThan(remaining) {
				return fmt.Errorf("%w: refund %s exceeds remaining refundable %s",
					ErrValidation, amt.StringFixed(2), remaining.StringFixed(2))
			}

			var user models.User
			if err := tx.Where("id = ? AND is_deleted = false", original.UserID).First(&user).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: user %d", ErrNotFound, original.UserID)
				}
				return err
			}

			direction := original.Direction.Inverse()
			before := user.WalletBalance
			after, err := nextBalance(before, amt, direction, models.TransactionTypeRefund)
			if err != nil {
				return err
			}

			originalIDCopy := original.ID
			draft := &models.Transaction{
				UserID:               original.UserID,
				Type:                 models.TransactionTypeRefund,
				Direction:            direction,
				Amount:               amt,
				Description:          "Refund of " + original.Reference + ": " + reason,
				Gateway:              original.Gateway,
				RelatedTransactionID: &originalIDCopy,
				BalanceBefore:        before,
				BalanceAfter:         after,
				Status:               models.TransactionStatusCompleted,
				Reason:               reason,
			}
			if gatewayRefundID != "" {
				id := gatewayRefundID
				draft.GatewayRefundID = &id
			}
			if err := draft.AppendAudit("created", actor, reason); err != nil {
				return err
			}
			if err := draft.AppendAudit("completed", actor, ""); err != nil {
				return err
			}
			if err := appendTx(tx, draft); err != nil {
				return err
			}

			if err := tx.Model(&models.User{}).Where("id = ?", user.ID).
				Update("wallet_balance", after).Error; err != nil {
				return err
			}

			newStatus := models.TransactionStatusPartiallyRefunded
			if refunded.Add(amt).Equal(original.Amount) {
				newStatus = models.TransactionStatusRefunded
			}
			if !original.Status.CanTransition(newStatus) {
				return fmt.Errorf("%w: %s cannot move to %s", ErrValidation, original.Status, newStatus)
			}
			original.Status = newStatus
			if gatewayRefundID != "" {
				id := gatewayRefundID
				original.GatewayRefundID = &id
			}
			if err := original.AppendAudit(strings.ToLower(string(newStatus)), actor, reason); err != nil {
				return err
			}
			if err := tx.Save(&original).Error; err != nil {
				return err
			}

			refundTxn = draft
			return nil
		})
	}()
	if txErr != nil {
		return nil, txErr
	}

	notify(database.Database.Db, refundTxn)
	if original.Status == models.TransactionStatusRefunded {
		notify(database.Database.Db, &original)
	}
	return refundTxn, nil
}
