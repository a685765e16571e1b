package repository

import (
	"context"
	"errors"

	"advisorledger/internal/model"

	"gorm.io/gorm"
)

type MovementRepository struct {
	db *gorm.DB
}

func NewMovementRepository(db *gorm.DB) *MovementRepository {
	return &MovementRepository{db: db}
}

func (r *MovementRepository) CreateItems(ctx context.Context, tx *gorm.DB, items []*model.MovementItem) error {
	if tx == nil {
		tx = r.db
	}
	if len(items) == 0 {
		return nil
	}
	return tx.WithContext(ctx).CreateInBatches(items, 100).Error
}

func (r *MovementRepository) CreateReport(ctx context.Context, tx *gorm.DB, report *model.MovementReport) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Omit("Items").Create(report).Error
}

// AttachItems links free items to a report. Every id must exist and be unattached,
// otherwise nothing is changed by the caller's transaction and ErrMovementItemsUnavailable is returned.
func (r *MovementRepository) AttachItems(ctx context.Context, tx *gorm.DB, reportID int64, itemIDs []int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.MovementItem{}).
		Where("id IN ? AND movement_report_id IS NULL", itemIDs).
		Update("movement_report_id", reportID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected != int64(len(itemIDs)) {
		return ErrMovementItemsUnavailable
	}
	return nil
}

func (r *MovementRepository) DetachItems(ctx context.Context, tx *gorm.DB, reportID int64) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.MovementItem{}).
		Where("movement_report_id = ?", reportID).
		Update("movement_report_id", nil).Error
}

func (r *MovementRepository) GetReport(ctx context.Context, tx *gorm.DB, id int64) (*model.MovementReport, error) {
	if tx == nil {
		tx = r.db
	}
	var report model.MovementReport
	err := tx.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("time_open DESC")
		}).
		Where("id = ?", id).
		First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMovementReportNotFound
		}
		return nil, err
	}
	return &report, nil
}

func (r *MovementRepository) DeleteReport(ctx context.Context, tx *gorm.DB, id int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).Where("id = ?", id).Delete(&model.MovementReport{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMovementReportNotFound
	}
	return nil
}

func (r *MovementRepository) ListUnattached(ctx context.Context, tx *gorm.DB, accountNumber string) ([]*model.MovementItem, error) {
	if tx == nil {
		tx = r.db
	}
	query := tx.WithContext(ctx).Where("movement_report_id IS NULL")
	if accountNumber != "" {
		query = query.Where("account_number = ?", accountNumber)
	}
	var items []*model.MovementItem
	err := query.Order("time_open ASC").Find(&items).Error
	return items, err
}
