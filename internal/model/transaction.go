package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionTypeDeposit    = "deposito"
	TransactionTypeWithdrawal = "retiro"
)

const (
	TransactionStatusPending   = "pendiente"
	TransactionStatusCompleted = "completado"
	TransactionStatusCancelled = "cancelado"
)

// ValidStatusTransitions lists the moves out of each status. Terminal statuses have no entry.
var ValidStatusTransitions = map[string][]string{
	TransactionStatusPending: {TransactionStatusCompleted, TransactionStatusCancelled},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// Transaction is a client deposit or withdrawal request against a plan.
// Capital moves only when the request is completed.
type Transaction struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	PlanID        int64           `gorm:"index;not null" json:"plan_id"`
	UserID        int64           `gorm:"index;not null" json:"user_id"`
	Type          string          `gorm:"type:varchar(16);not null" json:"type"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Status        string          `gorm:"type:varchar(16);index;not null" json:"status"`
	Date          time.Time       `gorm:"index;not null" json:"date"`
	ResolvedAt    *time.Time      `json:"resolved_at"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "plan_transaction"
}

// SignedAmount is the capital effect of completing the transaction:
// positive for deposits, negative for withdrawals.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Type == TransactionTypeWithdrawal {
		return t.Amount.Neg()
	}
	return t.Amount
}

// TransactionTotals aggregates transactions by type.
type TransactionTotals struct {
	Count       int64           `json:"count"`
	Deposits    decimal.Decimal `json:"deposits"`
	Withdrawals decimal.Decimal `json:"withdrawals"`
}

// Net is deposits minus withdrawals.
func (t TransactionTotals) Net() decimal.Decimal {
	return t.Deposits.Sub(t.Withdrawals)
}
