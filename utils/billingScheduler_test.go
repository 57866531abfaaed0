package utils

import (
	"path/filepath"
	"testing"
	"time"

	"examportal/config"
	"examportal/database"
	"examportal/models"
	"examportal/services/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupBillingDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "billing.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Transaction{}, &models.Subscription{}))

	database.Database = database.DbInstance{Db: db}
	database.RedisClient = nil
	ledger.SetNotifier(nil)
	ledger.SetRefundIssuer(nil)

	config.AppConfig = &config.Config{Currency: "USD"}

	return db
}

func TestProcessDueSubscriptionsDebitsAndAdvances(t *testing.T) {
	db := setupBillingDB(t)

	user := &models.User{Name: "Ravi", Email: "ravi@example.com", Password: "x",
		WalletBalance: decimal.NewFromInt(100)}
	require.NoError(t, db.Create(user).Error)

	due := time.Now().Add(-time.Hour)
	sub := &models.Subscription{
		UserID:        user.ID,
		Plan:          "premium",
		Price:         decimal.NewFromInt(30),
		Period:        models.PeriodMonthly,
		Status:        models.SubscriptionActive,
		StartedAt:     due.AddDate(0, -1, 0),
		NextBillingAt: due,
	}
	require.NoError(t, db.Create(sub).Error)

	ProcessDueSubscriptions()

	balance, err := ledger.CachedBalance(user.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(70)))

	var reloaded models.Subscription
	require.NoError(t, db.First(&reloaded, sub.ID).Error)
	assert.Equal(t, models.SubscriptionActive, reloaded.Status)
	assert.True(t, reloaded.NextBillingAt.After(time.Now()))

	var txn models.Transaction
	require.NoError(t, db.Where("user_id = ? AND type = ?",
		user.ID, models.TransactionTypeSubscription).First(&txn).Error)
	assert.Equal(t, models.TransactionStatusCompleted, txn.Status)

	// Running again before the next period bills nothing
	ProcessDueSubscriptions()
	balance, err = ledger.CachedBalance(user.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(70)))
}

func TestProcessDueSubscriptionsSuspendsOnInsufficientBalance(t *testing.T) {
	db := setupBillingDB(t)

	user := &models.User{Name: "Ravi", Email: "ravi@example.com", Password: "x",
		WalletBalance: decimal.NewFromInt(5)}
	require.NoError(t, db.Create(user).Error)

	sub := &models.Subscription{
		UserID:        user.ID,
		Plan:          "premium",
		Price:         decimal.NewFromInt(30),
		Period:        models.PeriodMonthly,
		Status:        models.SubscriptionActive,
		StartedAt:     time.Now().AddDate(0, -1, 0),
		NextBillingAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, db.Create(sub).Error)

	ProcessDueSubscriptions()

	var reloaded models.Subscription
	require.NoError(t, db.First(&reloaded, sub.ID).Error)
	assert.Equal(t, models.SubscriptionSuspended, reloaded.Status)

	balance, err := ledger.CachedBalance(user.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(5)))
}

func TestExpireStalePending(t *testing.T) {
	db := setupBillingDB(t)

	user := &models.User{Name: "Ravi", Email: "ravi@example.com", Password: "x"}
	require.NoError(t, db.Create(user).Error)

	stale, err := ledger.MarkPending(ledger.MutationInput{
		UserID:      user.ID,
		Type:        models.TransactionTypeWalletTopup,
		Direction:   models.DirectionCredit,
		Amount:      decimal.NewFromInt(40),
		Description: "top-up awaiting gateway",
	})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Transaction{}).Where("id = ?", stale.ID).
		Update("created_at", time.Now().Add(-2*stalePendingAge)).Error)

	fresh, err := ledger.MarkPending(ledger.MutationInput{
		UserID:      user.ID,
		Type:        models.TransactionTypeWalletTopup,
		Direction:   models.DirectionCredit,
		Amount:      decimal.NewFromInt(40),
		Description: "top-up awaiting gateway",
	})
	require.NoError(t, err)

	ExpireStalePending()

	var reloaded models.Transaction
	require.NoError(t, db.First(&reloaded, stale.ID).Error)
	assert.Equal(t, models.TransactionStatusCancelled, reloaded.Status)
	assert.NotEmpty(t, reloaded.ErrorMessage)

	reloaded = models.Transaction{}
	require.NoError(t, db.First(&reloaded, fresh.ID).Error)
	assert.Equal(t, models.TransactionStatusPending, reloaded.Status)
}
