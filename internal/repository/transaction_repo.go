package repository

import (
	"context"
	"errors"
	"time"

	"advisorledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.Transaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

func (r *TransactionRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64, forUpdate bool) (*model.Transaction, error) {
	if tx == nil {
		tx = r.db
	}
	q := tx.WithContext(ctx)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var trans model.Transaction
	err := q.Where("id = ?", id).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &trans, nil
}

// UpdateStatus moves a transaction from fromStatus to toStatus. The status is part of
// the WHERE clause, so a concurrent resolution that got there first leaves zero rows
// affected and the call fails with ErrTransactionStatusInvalid.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, fromStatus, toStatus string, resolvedAt time.Time) error {
	if !model.CanTransitionTo(fromStatus, toStatus) {
		return ErrTransactionStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(map[string]interface{}{
			"status":      toStatus,
			"resolved_at": resolvedAt,
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrTransactionStatusInvalid
	}

	return nil
}

func (r *TransactionRepository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).Where("id = ?", id).Delete(&model.Transaction{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *TransactionRepository) ListByPlanID(ctx context.Context, tx *gorm.DB, planID int64) ([]*model.Transaction, error) {
	if tx == nil {
		tx = r.db
	}
	var transactions []*model.Transaction
	err := tx.WithContext(ctx).
		Where("plan_id = ?", planID).
		Order("date DESC, id DESC").
		Find(&transactions).Error
	return transactions, err
}

// ListBetween returns transactions dated in [from, to). planID 0 covers every plan
// and an empty status matches any status.
func (r *TransactionRepository) ListBetween(ctx context.Context, tx *gorm.DB, planID int64, status string, from, to time.Time) ([]*model.Transaction, error) {
	if tx == nil {
		tx = r.db
	}
	query := tx.WithContext(ctx).Where("date >= ? AND date < ?", from, to)
	if planID != 0 {
		query = query.Where("plan_id = ?", planID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var transactions []*model.Transaction
	err := query.Order("date ASC").Find(&transactions).Error
	return transactions, err
}

// Totals counts transactions and sums their amounts by type. planID 0 covers every
// plan and an empty status matches any status.
func (r *TransactionRepository) Totals(ctx context.Context, tx *gorm.DB, planID int64, status string) (model.TransactionTotals, error) {
	if tx == nil {
		tx = r.db
	}
	query := tx.WithContext(ctx).Model(&model.Transaction{})
	if planID != 0 {
		query = query.Where("plan_id = ?", planID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var totals model.TransactionTotals
	err := query.
		Select("COUNT(*), "+
			"COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE 0 END), 0), "+
			"COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE 0 END), 0)",
			model.TransactionTypeDeposit, model.TransactionTypeWithdrawal).
		Row().
		Scan(&totals.Count, &totals.Deposits, &totals.Withdrawals)
	return totals, err
}
