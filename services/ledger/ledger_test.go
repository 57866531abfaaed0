package ledger

import (
	"path/filepath"
	"testing"

	"examportal/config"
	"examportal/database"
	"examportal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB points the global database handle at a throwaway sqlite file and
// resets the collaborators wired in main.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "ledger.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Transaction{},
		&models.Exam{},
		&models.Subscription{},
	))

	database.Database = database.DbInstance{Db: db}
	database.RedisClient = nil
	SetNotifier(nil)
	SetRefundIssuer(nil)

	config.AppConfig = &config.Config{
		Currency:             "USD",
		GatewayWebhookSecret: "test-secret",
		ReferralBonus:        "5.00",
		DiscountPercent:      10,
		CancellationFee:      "2.00",
	}

	return db
}

func createUser(t *testing.T, db *gorm.DB, balance string) *models.User {
	t.Helper()

	user := &models.User{
		Name:          "Asha Verma",
		Email:         "asha@example.com",
		Mobile:        "9876500001",
		Role:          "USER",
		Password:      "hashed-password",
		WalletBalance: mustDecimal(t, balance),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestAppendAssignsReferenceCurrencyAndDate(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "0")

	txn, err := Append(&models.Transaction{
		UserID:      user.ID,
		Type:        models.TransactionTypeWalletTopup,
		Direction:   models.DirectionCredit,
		Amount:      mustDecimal(t, "10.00"),
		Description: "manual entry",
		Status:      models.TransactionStatusPending,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, txn.Reference)
	assert.Equal(t, "USD", txn.Currency)
	assert.False(t, txn.TransactionDate.IsZero())
}

func TestAppendRejectsInvalidDrafts(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "0")

	cases := []struct {
		name  string
		draft models.Transaction
	}{
		{"missing user", models.Transaction{
			Type: models.TransactionTypeWalletTopup, Direction: models.DirectionCredit,
			Amount: mustDecimal(t, "10"), Description: "x",
		}},
		{"unknown type", models.Transaction{
			UserID: user.ID, Type: "GIFT_CARD", Direction: models.DirectionCredit,
			Amount: mustDecimal(t, "10"), Description: "x",
		}},
		{"zero amount", models.Transaction{
			UserID: user.ID, Type: models.TransactionTypeWalletTopup, Direction: models.DirectionCredit,
			Amount: decimal.Zero, Description: "x",
		}},
		{"missing description", models.Transaction{
			UserID: user.ID, Type: models.TransactionTypeWalletTopup, Direction: models.DirectionCredit,
			Amount: mustDecimal(t, "10"),
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Append(&tc.draft)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestCachedBalanceUnknownUser(t *testing.T) {
	setupTestDB(t)

	_, err := CachedBalance(9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindByUserFiltersAndPaginates(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "500")

	for i := 0; i < 3; i++ {
		_, err := ApplyMutation(MutationInput{
			UserID:      user.ID,
			Type:        models.TransactionTypeWalletTopup,
			Direction:   models.DirectionCredit,
			Amount:      mustDecimal(t, "10.00"),
			Description: "top-up",
		})
		require.NoError(t, err)
	}
	_, err := ApplyMutation(MutationInput{
		UserID:      user.ID,
		Type:        models.TransactionTypeExamPurchase,
		Direction:   models.DirectionDebit,
		Amount:      mustDecimal(t, "25.00"),
		Description: "exam",
	})
	require.NoError(t, err)

	all, total, err := FindByUser(user.ID, HistoryFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Len(t, all, 4)
	// Newest first
	assert.Equal(t, models.TransactionTypeExamPurchase, all[0].Type)

	topups, total, err := FindByUser(user.ID, HistoryFilter{Type: models.TransactionTypeWalletTopup})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, topups, 3)

	page2, total, err := FindByUser(user.ID, HistoryFilter{Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Len(t, page2, 1)
}

func TestFindByGatewayID(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "0")

	_, err := FindByGatewayID("pi_missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = MarkPending(MutationInput{
		UserID:          user.ID,
		Type:            models.TransactionTypeWalletTopup,
		Direction:       models.DirectionCredit,
		Amount:          mustDecimal(t, "20.00"),
		Description:     "top-up",
		GatewayIntentID: "pi_123",
	})
	require.NoError(t, err)

	found, err := FindByGatewayID("pi_123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.UserID)
	assert.Equal(t, models.TransactionStatusPending, found.Status)
}
