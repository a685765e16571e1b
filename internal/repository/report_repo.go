package repository

import (
	"context"
	"errors"
	"time"

	"advisorledger/internal/model"

	"gorm.io/gorm"
)

type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Create(ctx context.Context, tx *gorm.DB, report *model.Report) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(report).Error
}

func (r *ReportRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Report, error) {
	if tx == nil {
		tx = r.db
	}
	var report model.Report
	err := tx.WithContext(ctx).Where("id = ?", id).First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return &report, nil
}

// Latest returns the report with the highest sequence for the plan.
func (r *ReportRepository) Latest(ctx context.Context, tx *gorm.DB, planID int64) (*model.Report, error) {
	if tx == nil {
		tx = r.db
	}
	var report model.Report
	err := tx.WithContext(ctx).
		Where("plan_id = ?", planID).
		Order("sequence DESC").
		First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return &report, nil
}

func (r *ReportRepository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).Where("id = ?", id).Delete(&model.Report{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrReportNotFound
	}
	return nil
}

// Totals counts and sums the reports of a plan. planID 0 covers every plan.
func (r *ReportRepository) Totals(ctx context.Context, tx *gorm.DB, planID int64) (model.ReportTotals, error) {
	if tx == nil {
		tx = r.db
	}
	query := tx.WithContext(ctx).Model(&model.Report{})
	if planID != 0 {
		query = query.Where("plan_id = ?", planID)
	}
	var totals model.ReportTotals
	err := query.
		Select("COUNT(*), COALESCE(SUM(gain), 0), COALESCE(SUM(extraction), 0), COALESCE(SUM(deposit), 0)").
		Row().
		Scan(&totals.Count, &totals.Gain, &totals.Extraction, &totals.Deposit)
	return totals, err
}

func (r *ReportRepository) ListByPlanID(ctx context.Context, tx *gorm.DB, planID int64) ([]*model.Report, error) {
	if tx == nil {
		tx = r.db
	}
	var reports []*model.Report
	err := tx.WithContext(ctx).
		Where("plan_id = ?", planID).
		Order("sequence ASC").
		Find(&reports).Error
	return reports, err
}

// ListIssuedBetween returns reports issued in [from, to). planID 0 covers every plan.
func (r *ReportRepository) ListIssuedBetween(ctx context.Context, tx *gorm.DB, planID int64, from, to time.Time) ([]*model.Report, error) {
	if tx == nil {
		tx = r.db
	}
	query := tx.WithContext(ctx).Where("issued_at >= ? AND issued_at < ?", from, to)
	if planID != 0 {
		query = query.Where("plan_id = ?", planID)
	}
	var reports []*model.Report
	err := query.Order("issued_at ASC").Find(&reports).Error
	return reports, err
}
