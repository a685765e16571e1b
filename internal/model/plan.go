package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Plan is an investment account owned by one user.
// The running balance lives in CurrentCapital; InitialCapital never changes after creation.
type Plan struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         int64           `gorm:"index;not null" json:"user_id"`
	Period         string          `gorm:"type:varchar(32);not null" json:"period"` // plan tier
	Currency       string          `gorm:"type:varchar(8);not null" json:"currency"`
	InitialCapital decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"initial_capital"`
	CurrentCapital decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"current_capital"`
	StartDate      time.Time       `gorm:"not null" json:"start_date"`
	IsCurrent      bool            `gorm:"index;not null" json:"is_current"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Plan) TableName() string {
	return "plan"
}
