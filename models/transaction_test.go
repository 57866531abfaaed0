package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from    TransactionStatus
		to      TransactionStatus
		allowed bool
	}{
		{TransactionStatusPending, TransactionStatusCompleted, true},
		{TransactionStatusPending, TransactionStatusFailed, true},
		{TransactionStatusPending, TransactionStatusCancelled, true},
		{TransactionStatusPending, TransactionStatusRefunded, false},
		{TransactionStatusCompleted, TransactionStatusRefunded, true},
		{TransactionStatusCompleted, TransactionStatusPartiallyRefunded, true},
		{TransactionStatusCompleted, TransactionStatusPending, false},
		{TransactionStatusCompleted, TransactionStatusFailed, false},
		{TransactionStatusPartiallyRefunded, TransactionStatusRefunded, true},
		{TransactionStatusPartiallyRefunded, TransactionStatusPartiallyRefunded, true},
		{TransactionStatusPartiallyRefunded, TransactionStatusCompleted, false},
		{TransactionStatusFailed, TransactionStatusCompleted, false},
		{TransactionStatusCancelled, TransactionStatusCompleted, false},
		{TransactionStatusRefunded, TransactionStatusCompleted, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestStatusIsTerminal(t *testing.T) {
	assert.False(t, TransactionStatusPending.IsTerminal())
	assert.False(t, TransactionStatusCompleted.IsTerminal())
	assert.False(t, TransactionStatusPartiallyRefunded.IsTerminal())
	assert.True(t, TransactionStatusFailed.IsTerminal())
	assert.True(t, TransactionStatusCancelled.IsTerminal())
	assert.True(t, TransactionStatusRefunded.IsTerminal())
}

func TestTransactionTypeValid(t *testing.T) {
	assert.True(t, TransactionTypeWalletTopup.Valid())
	assert.True(t, TransactionTypeCancellationFee.Valid())
	assert.False(t, TransactionType("GIFT_CARD").Valid())
	assert.False(t, TransactionType("").Valid())
}

func TestAllowsOverdraft(t *testing.T) {
	assert.True(t, TransactionTypeAdminAdjustment.AllowsOverdraft())
	assert.False(t, TransactionTypeExamPurchase.AllowsOverdraft())
	assert.False(t, TransactionTypeRefund.AllowsOverdraft())
	assert.False(t, TransactionTypeSubscription.AllowsOverdraft())
}

func TestDirectionInverse(t *testing.T) {
	assert.Equal(t, DirectionDebit, DirectionCredit.Inverse())
	assert.Equal(t, DirectionCredit, DirectionDebit.Inverse())
}

func TestAppendAuditKeepsEarlierEntries(t *testing.T) {
	txn := &Transaction{}

	require.NoError(t, txn.AppendAudit("created", "system", "initial"))
	require.NoError(t, txn.AppendAudit("completed", "gateway", ""))

	entries, err := txn.AuditEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "created", entries[0].Action)
	assert.Equal(t, "system", entries[0].Actor)
	assert.Equal(t, "initial", entries[0].Details)
	assert.Equal(t, "completed", entries[1].Action)
	assert.False(t, entries[1].Timestamp.IsZero())
}

func TestReferralDetailsOnlyOnBonusRows(t *testing.T) {
	details := &ReferralDetails{ReferredUserID: 7, Source: "exam_purchase"}

	wrong := &Transaction{Type: TransactionTypeWalletTopup}
	assert.ErrorIs(t, wrong.SetReferralDetails(details), ErrDetailTypeMismatch)

	bonus := &Transaction{Type: TransactionTypeReferralBonus}
	require.NoError(t, bonus.SetReferralDetails(details))

	decoded, err := bonus.ReferralInfo()
	require.NoError(t, err)
	require.NotNil(t, decoded)
	assert.EqualValues(t, 7, decoded.ReferredUserID)
	assert.Equal(t, "exam_purchase", decoded.Source)
}

func TestDiscountDetailsOnDiscountAndPurchaseRows(t *testing.T) {
	details := &DiscountDetails{Code: "WELCOME10", Percent: 10, AmountOff: decimal.NewFromFloat(4.50)}

	wrong := &Transaction{Type: TransactionTypeRefund}
	assert.ErrorIs(t, wrong.SetDiscountDetails(details), ErrDetailTypeMismatch)

	purchase := &Transaction{Type: TransactionTypeExamPurchase}
	require.NoError(t, purchase.SetDiscountDetails(details))

	decoded, err := purchase.DiscountInfo()
	require.NoError(t, err)
	require.NotNil(t, decoded)
	assert.Equal(t, "WELCOME10", decoded.Code)
	assert.True(t, decoded.AmountOff.Equal(decimal.NewFromFloat(4.50)))
}

func TestDetailInfoNilWhenAbsent(t *testing.T) {
	txn := &Transaction{Type: TransactionTypeExamPurchase}

	referral, err := txn.ReferralInfo()
	require.NoError(t, err)
	assert.Nil(t, referral)

	discount, err := txn.DiscountInfo()
	require.NoError(t, err)
	assert.Nil(t, discount)
}
