package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"examportal/database"
	"examportal/models"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// userLocks serializes all balance mutations per user. Every path that reads
// a balance and writes a new one (purchase, finalized top-up, refund, admin
// adjustment) must hold the user's lock for the whole read-compute-write.
var userLocks sync.Map

func lockUser(userID uint) func() {
	v, _ := userLocks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// MutationInput describes one credit or debit against a wallet
type MutationInput struct {
	UserID      uint
	Type        models.TransactionType
	Direction   models.TransactionDirection
	Amount      decimal.Decimal
	Description string
	Metadata    map[string]any
	Actor       string // audit actor, defaults to "system"

	// Admin details for manual adjustments
	AdminID uint
	Reason  string

	// Gateway details for externally-mediated transactions
	Gateway         string
	GatewayOrderID  string
	GatewayIntentID string
	PaymentMethod   string

	// Type-specific payloads
	Referral *models.ReferralDetails
	Discount *models.DiscountDetails

	// Refund linkage
	RelatedTransactionID *uint
}

func (in MutationInput) actor() string {
	if in.Actor == "" {
		return "system"
	}
	return in.Actor
}

// buildDraft turns a mutation input into an unsaved ledger row
func buildDraft(in MutationInput) (*models.Transaction, error) {
	draft := &models.Transaction{
		UserID:               in.UserID,
		Type:                 in.Type,
		Direction:            in.Direction,
		Amount:               in.Amount,
		Description:          in.Description,
		AdminID:              in.AdminID,
		Reason:               in.Reason,
		Gateway:              in.Gateway,
		GatewayOrderID:       in.GatewayOrderID,
		PaymentMethod:        in.PaymentMethod,
		RelatedTransactionID: in.RelatedTransactionID,
	}
	if in.GatewayIntentID != "" {
		id := in.GatewayIntentID
		draft.GatewayIntentID = &id
	}
	if in.Metadata != nil {
		raw, err := json.Marshal(in.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: metadata not serializable", ErrValidation)
		}
		draft.Metadata = datatypes.JSON(raw)
	}
	if in.Referral != nil {
		if err := draft.SetReferralDetails(in.Referral); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	if in.Discount != nil {
		if err := draft.SetDiscountDetails(in.Discount); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	return draft, nil
}

// nextBalance applies one mutation to a balance, rejecting debits that would
// go negative unless the type permits an overdraft.
func nextBalance(before, amount decimal.Decimal, direction models.TransactionDirection, typ models.TransactionType) (decimal.Decimal, error) {
	if direction == models.DirectionCredit {
		return before.Add(amount), nil
	}
	after := before.Sub(amount)
	if after.IsNegative() && !typ.AllowsOverdraft() {
		return before, fmt.Errorf("%w: balance %s, debit %s", ErrInsufficientBalance, before.StringFixed(2), amount.StringFixed(2))
	}
	return after, nil
}

// ApplyMutation applies one credit/debit atomically: the COMPLETED ledger row
// and the cached balance update are written in the same database transaction,
// under the user's lock.
func ApplyMutation(input MutationInput) (*models.Transaction, error) {
	draft, err := buildDraft(input)
	if err != nil {
		return nil, err
	}
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	unlock := lockUser(input.UserID)
	defer unlock()

	txErr := database.Database.Db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("id = ? AND is_deleted = false", input.UserID).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: user %d", ErrNotFound, input.UserID)
			}
			return err
		}

		before := user.WalletBalance
		after, err := nextBalance(before, draft.Amount, draft.Direction, draft.Type)
		if err != nil {
			return err
		}

		draft.BalanceBefore = before
		draft.BalanceAfter = after
		draft.Status = models.TransactionStatusCompleted
		if err := draft.AppendAudit("created", input.actor(), draft.Description); err != nil {
			return err
		}
		if err := draft.AppendAudit("completed", input.actor(), ""); err != nil {
			return err
		}

		if err := appendTx(tx, draft); err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", user.ID).
			Update("wallet_balance", after).Error
	})
	if txErr != nil {
		return nil, txErr
	}

	notify(database.Database.Db, draft)
	return draft, nil
}

// MarkPending persists a PENDING row without touching the balance. Used when
// external confirmation must arrive first; the balance snapshots stay zero
// until FinalizePending applies the mutation.
func MarkPending(input MutationInput) (*models.Transaction, error) {
	draft, err := buildDraft(input)
	if err != nil {
		return nil, err
	}
	draft.Status = models.TransactionStatusPending
	if err := draft.AppendAudit("created", input.actor(), draft.Description); err != nil {
		return nil, err
	}
	return Append(draft)
}

// FinalizePending transitions a PENDING row to COMPLETED (applying the balance
// mutation now) or FAILED (no balance effect). Calling it again with the same
// outcome returns the existing terminal row without side effects.
func FinalizePending(txnID uint, outcome models.TransactionStatus, detail, actor string) (*models.Transaction, error) {
	if outcome != models.TransactionStatusCompleted && outcome != models.TransactionStatusFailed {
		return nil, fmt.Errorf("%w: outcome must be COMPLETED or FAILED", ErrValidation)
	}
	if actor == "" {
		actor = "system"
	}

	txn, err := FindByID(txnID)
	if err != nil {
		return nil, err
	}
	if txn.Status == outcome {
		return txn, nil // idempotent replay
	}
	if txn.Status != models.TransactionStatusPending {
		return nil, fmt.Errorf("%w: transaction %d is %s, not PENDING", ErrValidation, txnID, txn.Status)
	}

	unlock := lockUser(txn.UserID)
	defer unlock()

	var insufficient bool
	txErr := database.Database.Db.Transaction(func(tx *gorm.DB) error {
		// Re-read under the lock: a concurrent webhook replay may have won.
		var current models.Transaction
		if err := tx.Where("id = ?", txnID).First(&current).Error; err != nil {
			return err
		}
		if current.Status == outcome {
			txn = &current
			return nil
		}
		if current.Status != models.TransactionStatusPending {
			return fmt.Errorf("%w: transaction %d is %s, not PENDING", ErrValidation, txnID, current.Status)
		}

		if outcome == models.TransactionStatusFailed {
			current.Status = models.TransactionStatusFailed
			current.ErrorMessage = detail
			if err := current.AppendAudit("failed", actor, detail); err != nil {
				return err
			}
			if err := tx.Save(&current).Error; err != nil {
				return err
			}
			txn = &current
			return nil
		}

		var user models.User
		if err := tx.Where("id = ? AND is_deleted = false", current.UserID).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: user %d", ErrNotFound, current.UserID)
			}
			return err
		}

		before := user.WalletBalance
		after, err := nextBalance(before, current.Amount, current.Direction, current.Type)
		if err != nil {
			// The confirmed debit cannot be applied: record the failure on the
			// row instead of leaving it PENDING forever.
			insufficient = true
			current.Status = models.TransactionStatusFailed
			current.ErrorMessage = err.Error()
			if auditErr := current.AppendAudit("failed", actor, err.Error()); auditErr != nil {
				return auditErr
			}
			if saveErr := tx.Save(&current).Error; saveErr != nil {
				return saveErr
			}
			txn = &current
			return nil
		}

		current.Status = models.TransactionStatusCompleted
		current.BalanceBefore = before
		current.BalanceAfter = after
		if err := current.AppendAudit("completed", actor, detail); err != nil {
			return err
		}
		if err := tx.Save(&current).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).
			Update("wallet_balance", after).Error; err != nil {
			return err
		}
		txn = &current
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	if insufficient {
		notify(database.Database.Db, txn)
		return txn, fmt.Errorf("%w: pending debit could not be applied", ErrInsufficientBalance)
	}

	notify(database.Database.Db, txn)
	return txn, nil
}
