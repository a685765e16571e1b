package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report is a periodic statement for a plan.
//
// Reports are append-only: the only allowed change is deleting the latest one,
// which undoes its capital effect on the plan.
type Report struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	PlanID         int64           `gorm:"not null;uniqueIndex:uk_report_plan_seq,priority:1" json:"plan_id"`
	Sequence       int64           `gorm:"not null;uniqueIndex:uk_report_plan_seq,priority:2" json:"sequence"`
	OpeningCapital decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"opening_capital"`
	Gain           decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"gain"`
	Extraction     decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"extraction"`
	Deposit        decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"deposit"`
	ClosingCapital decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"closing_capital"`
	PeriodReturn   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"period_return"`
	TotalReturn    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_return"`
	IssuedAt       time.Time       `gorm:"index;not null" json:"issued_at"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (Report) TableName() string {
	return "report"
}

// CapitalEffect is what the report added to the plan's capital.
// Creating a report adds it, deleting the report subtracts it.
func (r *Report) CapitalEffect() decimal.Decimal {
	return r.Gain.Sub(r.Extraction).Add(r.Deposit)
}

// ReportTotals aggregates the reports of one plan (or of all plans).
type ReportTotals struct {
	Count      int64           `json:"count"`
	Gain       decimal.Decimal `json:"gain"`
	Extraction decimal.Decimal `json:"extraction"`
	Deposit    decimal.Decimal `json:"deposit"`
}

// Net is the aggregated capital effect of the reports.
func (t ReportTotals) Net() decimal.Decimal {
	return t.Gain.Sub(t.Extraction).Add(t.Deposit)
}
