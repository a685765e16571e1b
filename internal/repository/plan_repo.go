package repository

import (
	"context"
	"errors"

	"advisorledger/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) Create(ctx context.Context, tx *gorm.DB, plan *model.Plan) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(plan).Error
}

// GetByID loads a plan. With forUpdate the row stays locked until the surrounding
// transaction ends, which serializes every capital change on the plan.
func (r *PlanRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64, forUpdate bool) (*model.Plan, error) {
	if tx == nil {
		tx = r.db
	}
	q := tx.WithContext(ctx)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var plan model.Plan
	err := q.Where("id = ?", id).First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return &plan, nil
}

func (r *PlanRepository) GetCurrentByUserID(ctx context.Context, tx *gorm.DB, userID int64) (*model.Plan, error) {
	if tx == nil {
		tx = r.db
	}
	var plan model.Plan
	err := tx.WithContext(ctx).
		Where("user_id = ? AND is_current = ?", userID, true).
		Order("id DESC").
		First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return &plan, nil
}

func (r *PlanRepository) ListCurrent(ctx context.Context, tx *gorm.DB) ([]*model.Plan, error) {
	if tx == nil {
		tx = r.db
	}
	var plans []*model.Plan
	err := tx.WithContext(ctx).
		Where("is_current = ?", true).
		Order("id ASC").
		Find(&plans).Error
	return plans, err
}

// ClearCurrent flips every current plan of the user to non-current.
func (r *PlanRepository) ClearCurrent(ctx context.Context, tx *gorm.DB, userID int64) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.Plan{}).
		Where("user_id = ? AND is_current = ?", userID, true).
		Update("is_current", false).Error
}

func (r *PlanRepository) UpdateCapital(ctx context.Context, tx *gorm.DB, planID int64, capital decimal.Decimal) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.Plan{}).
		Where("id = ?", planID).
		Update("current_capital", capital).Error
}

// SumActiveCapital totals the current capital of current plans whose owner is active.
func (r *PlanRepository) SumActiveCapital(ctx context.Context, tx *gorm.DB) (decimal.Decimal, error) {
	if tx == nil {
		tx = r.db
	}
	var total decimal.Decimal
	err := tx.WithContext(ctx).
		Model(&model.Plan{}).
		Select("COALESCE(SUM(plan.current_capital), 0)").
		Joins("JOIN users ON users.id = plan.user_id").
		Where("plan.is_current = ? AND users.is_active = ? AND users.is_deleted = ?", true, true, false).
		Row().
		Scan(&total)
	return total, err
}
