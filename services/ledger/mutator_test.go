package ledger

import (
	"sync"
	"testing"

	"examportal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyMutationCreditUpdatesBalanceAndSnapshots(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "100.00")

	txn, err := ApplyMutation(MutationInput{
		UserID:      user.ID,
		Type:        models.TransactionTypeWalletTopup,
		Direction:   models.DirectionCredit,
		Amount:      mustDecimal(t, "25.50"),
		Description: "top-up",
		Actor:       "asha@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, models.TransactionStatusCompleted, txn.Status)
	assert.True(t, txn.BalanceBefore.Equal(mustDecimal(t, "100.00")))
	assert.True(t, txn.BalanceAfter.Equal(mustDecimal(t, "125.50")))
	assert.True(t, txn.BalanceAfter.Equal(txn.BalanceBefore.Add(txn.Amount)))

	balance, err := CachedBalance(user.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(txn.BalanceAfter))

	entries, err := txn.AuditEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "created", entries[0].Action)
	assert.Equal(t, "completed", entries[1].Action)
	assert.Equal(t, "asha@example.com", entries[0].Actor)
}

func TestApplyMutationDebitToExactZero(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "40.00")

	txn, err := ApplyMutation(MutationInput{
		UserID:      user.ID,
		Type:        models.TransactionTypeExamPurchase,
		Direction:   models.DirectionDebit,
		Amount:      mustDecimal(t, "40.00"),
		Description: "exam",
	})
	require.NoError(t, err)
	assert.True(t, txn.BalanceAfter.IsZero())
}

func TestApplyMutationInsufficientBalance(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "10.00")

	_, err := ApplyMutation(MutationInput{
		UserID:      user.ID,
		Type:        models.TransactionTypeExamPurchase,
		Direction:   models.DirectionDebit,
		Amount:      mustDecimal(t, "10.01"),
		Description: "exam",
	})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// Rejected mutation leaves no row and no balance change
	var count int64
	db.Model(&models.Transaction{}).Where("user_id = ?", user.ID).Count(&count)
	assert.EqualValues(t, 0, count)

	balance, err := CachedBalance(user.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(mustDecimal(t, "10.00")))
}

func TestApplyMutationAdminAdjustmentMayOverdraw(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "10.00")

	txn, err := ApplyMutation(MutationInput{
		UserID:      user.ID,
		Type:        models.TransactionTypeAdminAdjustment,
		Direction:   models.DirectionDebit,
		Amount:      mustDecimal(t, "25.00"),
		Description: "chargeback recovery",
		AdminID:     42,
		Reason:      "chargeback",
	})
	require.NoError(t, err)
	assert.True(t, txn.BalanceAfter.Equal(mustDecimal(t, "-15.00")))
}

func TestApplyMutationUnknownUser(t *testing.T) {
	setupTestDB(t)

	_, err := ApplyMutation(MutationInput{
		UserID:      777,
		Type:        models.TransactionTypeWalletTopup,
		Direction:   models.DirectionCredit,
		Amount:      mustDecimal(t, "5.00"),
		Description: "top-up",
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentMutationsKeepBalanceChainConsistent(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "100.00")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := ApplyMutation(MutationInput{
				UserID:      user.ID,
				Type:        models.TransactionTypeWalletTopup,
				Direction:   models.DirectionCredit,
				Amount:      mustDecimal(t, "10.00"),
				Description: "top-up",
			})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := ApplyMutation(MutationInput{
				UserID:      user.ID,
				Type:        models.TransactionTypeExamPurchase,
				Direction:   models.DirectionDebit,
				Amount:      mustDecimal(t, "10.00"),
				Description: "exam",
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	balance, err := CachedBalance(user.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(mustDecimal(t, "100.00")), "got %s", balance)

	// Every row's BalanceBefore must equal the previous row's BalanceAfter
	var rows []models.Transaction
	require.NoError(t, db.
		Where("user_id = ? AND status = ?", user.ID, models.TransactionStatusCompleted).
		Order("id ASC").
		Find(&rows).Error)
	require.Len(t, rows, 20)

	prev := mustDecimal(t, "100.00")
	for _, row := range rows {
		assert.True(t, row.BalanceBefore.Equal(prev),
			"row %d: balanceBefore %s, expected %s", row.ID, row.BalanceBefore, prev)
		prev = row.BalanceAfter
	}
	assert.True(t, prev.Equal(balance))
}

func TestMarkPendingLeavesBalanceUntouched(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "50.00")

	txn, err := MarkPending(MutationInput{
		UserID:          user.ID,
		Type:            models.TransactionTypeWalletTopup,
		Direction:       models.DirectionCredit,
		Amount:          mustDecimal(t, "30.00"),
		Description:     "top-up awaiting gateway",
		GatewayIntentID: "pi_pending_1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, txn.Status)
	assert.True(t, txn.BalanceBefore.IsZero())
	assert.True(t, txn.BalanceAfter.IsZero())

	balance, err := CachedBalance(user.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(mustDecimal(t, "50.00")))
}

func TestFinalizePendingCompleted(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "50.00")

	pending, err := MarkPending(MutationInput{
		UserID:      user.ID,
		Type:        models.TransactionTypeWalletTopup,
		Direction:   models.DirectionCredit,
		Amount:      mustDecimal(t, "30.00"),
		Description: "top-up awaiting gateway",
	})
	require.NoError(t, err)

	done, err := FinalizePending(pending.ID, models.TransactionStatusCompleted, "card charged", "gateway")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, done.Status)
	assert.True(t, done.BalanceBefore.Equal(mustDecimal(t, "50.00")))
	assert.True(t, done.BalanceAfter.Equal(mustDecimal(t, "80.00")))

	// Replaying the same outcome is a no-op, not a double credit
	again, err := FinalizePending(pending.ID, models.TransactionStatusCompleted, "card charged", "gateway")
	require.NoError(t, err)
	assert.Equal(t, done.ID, again.ID)

	balance, err := CachedBalance(user.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(mustDecimal(t, "80.00")))

	var count int64
	db.Model(&models.Transaction{}).Where("user_id = ?", user.ID).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestFinalizePendingFailed(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "50.00")

	pending, err := MarkPending(MutationInput{
		UserID:      user.ID,
		Type:        models.TransactionTypeWalletTopup,
		Direction:   models.DirectionCredit,
		Amount:      mustDecimal(t, "30.00"),
		Description: "top-up awaiting gateway",
	})
	require.NoError(t, err)

	failed, err := FinalizePending(pending.ID, models.TransactionStatusFailed, "card declined", "gateway")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, failed.Status)
	assert.Equal(t, "card declined", failed.ErrorMessage)

	balance, err := CachedBalance(user.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(mustDecimal(t, "50.00")))
}

func TestFinalizePendingDebitWithInsufficientBalance(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "10.00")

	pending, err := MarkPending(MutationInput{
		UserID:      user.ID,
		Type:        models.TransactionTypeExamPurchase,
		Direction:   models.DirectionDebit,
		Amount:      mustDecimal(t, "50.00"),
		Description: "deferred purchase",
	})
	require.NoError(t, err)

	_, err = FinalizePending(pending.ID, models.TransactionStatusCompleted, "", "gateway")
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// The row is failed rather than stuck pending
	reloaded, err := FindByID(pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, reloaded.Status)
	assert.NotEmpty(t, reloaded.ErrorMessage)

	balance, err := CachedBalance(user.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(mustDecimal(t, "10.00")))
}

func TestFinalizePendingRejectsTerminalRows(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "100.00")

	txn, err := ApplyMutation(MutationInput{
		UserID:      user.ID,
		Type:        models.TransactionTypeExamPurchase,
		Direction:   models.DirectionDebit,
		Amount:      mustDecimal(t, "10.00"),
		Description: "exam",
	})
	require.NoError(t, err)

	_, err = FinalizePending(txn.ID, models.TransactionStatusFailed, "", "gateway")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestFinalizePendingRejectsNonTerminalOutcome(t *testing.T) {
	setupTestDB(t)

	_, err := FinalizePending(1, models.TransactionStatusPending, "", "gateway")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = FinalizePending(1, models.TransactionStatusRefunded, "", "gateway")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNextBalanceRejectsNegativeForRegularDebits(t *testing.T) {
	before := decimal.NewFromInt(10)

	_, err := nextBalance(before, decimal.NewFromInt(11), models.DirectionDebit, models.TransactionTypeExamPurchase)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	after, err := nextBalance(before, decimal.NewFromInt(11), models.DirectionDebit, models.TransactionTypeAdminAdjustment)
	require.NoError(t, err)
	assert.True(t, after.Equal(decimal.NewFromInt(-1)))
}
