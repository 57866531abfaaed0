package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	ProfileImage    string `gorm:"default:''"`
	Name            string `gorm:"default:''"`
	Email           string `gorm:"unique;not null"`
	Mobile          string `gorm:"default:''"`
	Role            string `gorm:"default:'USER'"` // USER, ADMIN, SUPER-ADMIN
	Password        string `gorm:"not null"`
	IsEmailVerified bool   `gorm:"default:false"`

	// WalletBalance is the cached balance. It always equals the BalanceAfter
	// of the user's most recent COMPLETED transaction and is written only by
	// the ledger mutator, inside the same transaction as the ledger row.
	WalletBalance decimal.Decimal `gorm:"type:decimal(15,2);default:0"`

	ReferralCode string `gorm:"type:varchar(20);index"`
	ReferredBy   *uint  `gorm:"index"` // user who referred this one

	LastLogin    time.Time  `gorm:"default:NULL"`
	IsBlocked    bool       `gorm:"default:false"`
	BlockedUntil *time.Time `json:"blocked_until"`
	IsDeleted    bool       `gorm:"default:false"`
}
