package ledger

import (
	"errors"
	"fmt"
	"time"

	"examportal/config"
	"examportal/database"
	"examportal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// notifier delivers fire-and-forget transaction emails. Wired in main; a nil
// notifier is a no-op. Notification failure never affects the ledger write.
var notifier func(user *models.User, txn *models.Transaction)

// SetNotifier installs the notification collaborator
func SetNotifier(fn func(user *models.User, txn *models.Transaction)) {
	notifier = fn
}

func notify(tx *gorm.DB, txn *models.Transaction) {
	if notifier == nil {
		return
	}
	var user models.User
	if err := tx.Where("id = ? AND is_deleted = false", txn.UserID).First(&user).Error; err != nil {
		return
	}
	snapshot := *txn
	go notifier(&user, &snapshot)
}

// validateDraft checks the required fields of a new ledger entry
func validateDraft(draft *models.Transaction) error {
	switch {
	case draft.UserID == 0:
		return fmt.Errorf("%w: userId is required", ErrValidation)
	case !draft.Type.Valid():
		return fmt.Errorf("%w: unknown transaction type %q", ErrValidation, draft.Type)
	case draft.Direction != models.DirectionCredit && draft.Direction != models.DirectionDebit:
		return fmt.Errorf("%w: direction must be CREDIT or DEBIT", ErrValidation)
	case draft.Amount.IsNegative() || draft.Amount.IsZero():
		return fmt.Errorf("%w: amount must be greater than 0", ErrValidation)
	case draft.Description == "":
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	return nil
}

// appendTx validates the draft, assigns its reference and writes it using the
// given handle (a gorm transaction when called from the mutator).
func appendTx(tx *gorm.DB, draft *models.Transaction) error {
	if err := validateDraft(draft); err != nil {
		return err
	}
	if draft.Reference == "" {
		draft.Reference = uuid.NewString()
	}
	if draft.Currency == "" {
		draft.Currency = config.AppConfig.Currency
	}
	if draft.TransactionDate.IsZero() {
		draft.TransactionDate = time.Now()
	}
	return tx.Create(draft).Error
}

// Append validates and persists a new ledger entry without touching any
// balance. Balance-affecting writes go through ApplyMutation/FinalizePending.
func Append(draft *models.Transaction) (*models.Transaction, error) {
	if err := appendTx(database.Database.Db, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// CachedBalance returns the wallet's cached balance, which always equals the
// BalanceAfter of the user's most recent completed transaction.
func CachedBalance(userID uint) (decimal.Decimal, error) {
	var user models.User
	if err := database.Database.Db.Where("id = ? AND is_deleted = false", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, fmt.Errorf("%w: user %d", ErrNotFound, userID)
		}
		return decimal.Zero, err
	}
	return user.WalletBalance, nil
}

// HistoryFilter narrows FindByUser results
type HistoryFilter struct {
	Type   models.TransactionType
	Status models.TransactionStatus
	From   *time.Time
	To     *time.Time
	Page   int
	Limit  int
}

// FindByUser returns a user's transactions newest first, paginated
func FindByUser(userID uint, filter HistoryFilter) ([]models.Transaction, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 10
	}

	query := database.Database.Db.Model(&models.Transaction{}).
		Where("user_id = ? AND is_deleted = false", userID)

	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		query = query.Where("transaction_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("transaction_date < ?", *filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var transactions []models.Transaction
	err := query.
		Order("transaction_date DESC").
		Order("id DESC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&transactions).Error
	return transactions, total, err
}

// FindByGatewayID looks a transaction up by its external gateway intent id.
// Used exclusively for webhook idempotency checks.
func FindByGatewayID(intentID string) (*models.Transaction, error) {
	return findByGatewayID(database.Database.Db, intentID)
}

func findByGatewayID(tx *gorm.DB, intentID string) (*models.Transaction, error) {
	if intentID == "" {
		return nil, fmt.Errorf("%w: empty gateway intent id", ErrValidation)
	}
	var txn models.Transaction
	err := tx.Where("gateway_intent_id = ? AND is_deleted = false", intentID).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: gateway intent %s", ErrNotFound, intentID)
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// FindByID loads one transaction
func FindByID(id uint) (*models.Transaction, error) {
	var txn models.Transaction
	err := database.Database.Db.Where("id = ? AND is_deleted = false", id).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: transaction %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}
