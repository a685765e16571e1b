package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MovementSideBuy  = "buy"
	MovementSideSell = "sell"
)

// MovementItem is one imported broker trade.
type MovementItem struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	MovementReportID *int64          `gorm:"index" json:"movement_report_id,omitempty"`
	AccountNumber    string          `gorm:"type:varchar(64);not null" json:"account_number" validate:"required"`
	Currency         string          `gorm:"type:varchar(8);not null" json:"currency" validate:"required"`
	Broker           string          `gorm:"type:varchar(64);not null" json:"broker" validate:"required"`
	Position         string          `gorm:"type:varchar(64);not null" json:"position" validate:"required"`
	Symbol           string          `gorm:"type:varchar(32);not null" json:"symbol" validate:"required"`
	Side             string          `gorm:"type:varchar(8);not null" json:"side" validate:"oneof=buy sell"`
	Volume           string          `gorm:"type:varchar(32);not null" json:"volume" validate:"required"`
	OpenPrice        decimal.Decimal `gorm:"type:decimal(20,5);not null" json:"open_price"`
	TimeOpen         time.Time       `gorm:"not null" json:"time_open" validate:"required"`
	Commission       decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"commission"`
	GrossPL          decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"gross_pl"`
}

func (MovementItem) TableName() string {
	return "movement_item"
}

// MovementReport groups imported trades into a statement for a client's broker account.
type MovementReport struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         int64           `gorm:"index;not null" json:"user_id"`
	AccountNumber  string          `gorm:"type:varchar(64);not null" json:"account_number"`
	Currency       string          `gorm:"type:varchar(8);not null" json:"currency"`
	Broker         string          `gorm:"type:varchar(64);not null" json:"broker"`
	TotalReturn    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_return"`
	PersonalReturn decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"personal_return"`
	OperatingCosts decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"operating_costs"`
	FirmProfit     decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"firm_profit"`
	Insurance      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"insurance"`
	OpenFrame      time.Time       `gorm:"not null" json:"open_frame"`
	CloseFrame     time.Time       `gorm:"not null" json:"close_frame"`
	IssuedAt       time.Time       `gorm:"not null" json:"issued_at"`
	Items          []MovementItem  `gorm:"foreignKey:MovementReportID" json:"items,omitempty"`
}

func (MovementReport) TableName() string {
	return "movement_report"
}
