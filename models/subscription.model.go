package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SubscriptionStatus enum values
const (
	SubscriptionActive    = "ACTIVE"
	SubscriptionSuspended = "SUSPENDED" // billing failed, retried on the next run
	SubscriptionCancelled = "CANCELLED"
)

// SubscriptionPeriod enum values
const (
	PeriodMonthly = "MONTHLY"
	PeriodYearly  = "YEARLY"
)

// Subscription tracks a user's recurring plan. The billing scheduler debits
// the wallet each period via the ledger mutator.
type Subscription struct {
	gorm.Model
	UserID        uint            `gorm:"not null;index" json:"userId"`
	Plan          string          `gorm:"not null;type:varchar(50)" json:"plan"`
	Price         decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"price"`
	Period        string          `gorm:"type:varchar(20);default:'MONTHLY'" json:"period"`
	Status        string          `gorm:"not null;type:varchar(20);default:'ACTIVE'" json:"status"`
	StartedAt     time.Time       `gorm:"not null" json:"startedAt"`
	NextBillingAt time.Time       `gorm:"not null;index" json:"nextBillingAt"`
	CancelledAt   *time.Time      `json:"cancelledAt"`
	IsDeleted     bool            `gorm:"default:false" json:"isDeleted"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// NextPeriod returns the billing date one period after from
func (s *Subscription) NextPeriod(from time.Time) time.Time {
	if s.Period == PeriodYearly {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}
