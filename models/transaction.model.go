package models

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrDetailTypeMismatch is returned when a type-specific payload is attached
// to a row of the wrong type.
var ErrDetailTypeMismatch = errors.New("detail payload does not match transaction type")

// TransactionType defines the type of wallet transaction
type TransactionType string

const (
	TransactionTypeWalletTopup     TransactionType = "WALLET_TOPUP"
	TransactionTypeExamPurchase    TransactionType = "EXAM_PURCHASE"
	TransactionTypeReferralBonus   TransactionType = "REFERRAL_BONUS"
	TransactionTypeRefund          TransactionType = "REFUND"
	TransactionTypeAdminAdjustment TransactionType = "ADMIN_ADJUSTMENT"
	TransactionTypeDiscount        TransactionType = "DISCOUNT_APPLICATION"
	TransactionTypeSubscription    TransactionType = "SUBSCRIPTION_PAYMENT"
	TransactionTypeCancellationFee TransactionType = "CANCELLATION_FEE"
)

// TransactionDirection defines whether a transaction adds to or removes from the wallet
type TransactionDirection string

const (
	DirectionCredit TransactionDirection = "CREDIT"
	DirectionDebit  TransactionDirection = "DEBIT"
)

// TransactionStatus defines the status of a transaction
type TransactionStatus string

const (
	TransactionStatusPending           TransactionStatus = "PENDING"
	TransactionStatusCompleted         TransactionStatus = "COMPLETED"
	TransactionStatusFailed            TransactionStatus = "FAILED"
	TransactionStatusCancelled         TransactionStatus = "CANCELLED"
	TransactionStatusRefunded          TransactionStatus = "REFUNDED"
	TransactionStatusPartiallyRefunded TransactionStatus = "PARTIALLY_REFUNDED"
)

// statusTransitions enumerates every legal status change. Anything not listed
// here is terminal.
var statusTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending:           {TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled},
	TransactionStatusCompleted:         {TransactionStatusRefunded, TransactionStatusPartiallyRefunded},
	TransactionStatusPartiallyRefunded: {TransactionStatusRefunded, TransactionStatusPartiallyRefunded},
}

// AuditEntry is one line of a transaction's audit trail
type AuditEntry struct {
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Details   string    `json:"details,omitempty"`
}

// ReferralDetails is the payload carried only by REFERRAL_BONUS transactions.
// The row's UserID is the referrer receiving the bonus.
type ReferralDetails struct {
	ReferredUserID uint   `json:"referredUserId"`
	Source         string `json:"source"` // e.g. exam_purchase
}

// DiscountDetails is the payload carried only by DISCOUNT_APPLICATION rows and
// by EXAM_PURCHASE rows that had a discount applied.
type DiscountDetails struct {
	Code      string          `json:"code"`
	Percent   int             `json:"percent"`
	AmountOff decimal.Decimal `json:"amountOff"`
}

// Transaction is one wallet ledger entry. Rows are never deleted; corrections
// are new rows linked through RelatedTransactionID. After creation only
// Status, ErrorMessage, AuditTrail, the balance snapshots of a finalized
// pending row and the gateway refund id are ever updated.
type Transaction struct {
	gorm.Model
	Reference string               `gorm:"type:varchar(40);uniqueIndex;not null" json:"reference"` // ledger-assigned UUID
	UserID    uint                 `gorm:"not null;index" json:"userId"`
	Type      TransactionType      `gorm:"type:varchar(50);not null;index" json:"type"`
	Direction TransactionDirection `gorm:"type:varchar(10);not null" json:"direction"`
	Amount    decimal.Decimal      `gorm:"type:decimal(15,2);not null" json:"amount"`
	Currency  string               `gorm:"type:varchar(10);not null" json:"currency"`

	BalanceBefore decimal.Decimal `gorm:"type:decimal(15,2)" json:"balanceBefore"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(15,2)" json:"balanceAfter"`

	Status      TransactionStatus `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	Description string            `gorm:"type:text" json:"description"`
	Metadata    datatypes.JSON    `json:"metadata,omitempty"`

	// Payment gateway details, present only for externally-mediated rows.
	// GatewayIntentID is the idempotency key for webhook processing: one
	// external identifier maps to at most one row.
	Gateway         string          `gorm:"type:varchar(50)" json:"gateway,omitempty"`
	GatewayOrderID  string          `gorm:"type:varchar(100)" json:"gatewayOrderId,omitempty"`
	GatewayIntentID *string         `gorm:"type:varchar(100);uniqueIndex" json:"gatewayIntentId,omitempty"`
	GatewayRefundID *string         `gorm:"type:varchar(100)" json:"gatewayRefundId,omitempty"`
	PaymentMethod   string          `gorm:"type:varchar(50)" json:"paymentMethod,omitempty"`
	GatewayFee      decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"gatewayFee"`

	// Refund linkage: a REFUND row points at the transaction it reverses.
	// Always a foreign key, never an embedded copy.
	RelatedTransactionID *uint `gorm:"index" json:"relatedTransactionId,omitempty"`

	// Type-specific payloads, null unless the row's Type matches.
	Referral datatypes.JSON `json:"referral,omitempty"`
	Discount datatypes.JSON `json:"discount,omitempty"`

	// Admin details (for manual adjustments)
	AdminID uint   `gorm:"default:0" json:"adminId,omitempty"`
	Reason  string `gorm:"type:text" json:"reason,omitempty"`

	AuditTrail   datatypes.JSON `json:"auditTrail"`
	ErrorMessage string         `gorm:"type:text" json:"errorMessage,omitempty"`

	TransactionDate time.Time `gorm:"not null;index" json:"transactionDate"`
	IsDeleted       bool      `gorm:"default:false" json:"isDeleted"`

	// Relations - omit in JSON by default (only load when needed)
	User               User         `gorm:"foreignKey:UserID" json:"-"`
	RelatedTransaction *Transaction `gorm:"foreignKey:RelatedTransactionID" json:"-"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// AllowsOverdraft reports whether a debit of this type may drive the wallet
// balance negative. Only manual admin adjustments may.
func (t TransactionType) AllowsOverdraft() bool {
	return t == TransactionTypeAdminAdjustment
}

// Valid reports whether t is one of the closed set of transaction types
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeWalletTopup, TransactionTypeExamPurchase, TransactionTypeReferralBonus,
		TransactionTypeRefund, TransactionTypeAdminAdjustment, TransactionTypeDiscount,
		TransactionTypeSubscription, TransactionTypeCancellationFee:
		return true
	}
	return false
}

// Inverse returns the opposite direction
func (d TransactionDirection) Inverse() TransactionDirection {
	if d == DirectionCredit {
		return DirectionDebit
	}
	return DirectionCredit
}

// IsTerminal reports whether no further status transition is possible
func (s TransactionStatus) IsTerminal() bool {
	return len(statusTransitions[s]) == 0
}

// CanTransition reports whether s -> to is a legal status change
func (s TransactionStatus) CanTransition(to TransactionStatus) bool {
	for _, next := range statusTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsCompleted checks if the transaction is completed
func (t *Transaction) IsCompleted() bool {
	return t.Status == TransactionStatusCompleted
}

// AppendAudit adds an entry to the transaction's audit trail. The trail is
// append-only; entries are never rewritten.
func (t *Transaction) AppendAudit(action, actor, details string) error {
	var trail []AuditEntry
	if len(t.AuditTrail) > 0 {
		if err := json.Unmarshal(t.AuditTrail, &trail); err != nil {
			return err
		}
	}
	trail = append(trail, AuditEntry{
		Action:    action,
		Timestamp: time.Now().UTC(),
		Actor:     actor,
		Details:   details,
	})
	raw, err := json.Marshal(trail)
	if err != nil {
		return err
	}
	t.AuditTrail = datatypes.JSON(raw)
	return nil
}

// AuditEntries decodes the audit trail
func (t *Transaction) AuditEntries() ([]AuditEntry, error) {
	var trail []AuditEntry
	if len(t.AuditTrail) == 0 {
		return trail, nil
	}
	err := json.Unmarshal(t.AuditTrail, &trail)
	return trail, err
}

// SetReferralDetails attaches the referral payload; valid only on REFERRAL_BONUS rows
func (t *Transaction) SetReferralDetails(d *ReferralDetails) error {
	if t.Type != TransactionTypeReferralBonus {
		return ErrDetailTypeMismatch
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	t.Referral = datatypes.JSON(raw)
	return nil
}

// ReferralInfo decodes the referral payload, nil when absent
func (t *Transaction) ReferralInfo() (*ReferralDetails, error) {
	if len(t.Referral) == 0 {
		return nil, nil
	}
	var d ReferralDetails
	if err := json.Unmarshal(t.Referral, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// SetDiscountDetails attaches the discount payload
func (t *Transaction) SetDiscountDetails(d *DiscountDetails) error {
	if t.Type != TransactionTypeDiscount && t.Type != TransactionTypeExamPurchase {
		return ErrDetailTypeMismatch
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	t.Discount = datatypes.JSON(raw)
	return nil
}

// DiscountInfo decodes the discount payload, nil when absent
func (t *Transaction) DiscountInfo() (*DiscountDetails, error) {
	if len(t.Discount) == 0 {
		return nil, nil
	}
	var d DiscountDetails
	if err := json.Unmarshal(t.Discount, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
