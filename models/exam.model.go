package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Exam is the purchasable unit. Question content, attempts and grading live in
// the exam management service; the wallet only needs the price row.
type Exam struct {
	gorm.Model
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category" gorm:"type:varchar(50)"` // LISTENING, READING, WRITING, SPEAKING, FULL
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(15,2);not null"`
	Status      string          `json:"status" gorm:"default:'DRAFT'"` // DRAFT, ACTIVE, INACTIVE
	IsDeleted   bool            `gorm:"default:false"`
}
