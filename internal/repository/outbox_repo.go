package repository

import (
	"context"

	"advisorledger/internal/model"

	"gorm.io/gorm"
)

// OutboxRepository stores notification events until the relay has handed them to
// the broker. Rows only move PENDING -> SENT or PENDING -> FAILED.
type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Enqueue records an event inside the caller's transaction so it commits together
// with the notification it announces.
func (r *OutboxRepository) Enqueue(ctx context.Context, tx *gorm.DB, msg *model.OutboxMessage) error {
	if tx == nil {
		tx = r.db
	}
	msg.Status = model.OutboxStatusPending
	msg.RetryCount = 0
	return tx.WithContext(ctx).Create(msg).Error
}

// NextBatch returns up to limit undelivered events, oldest first.
func (r *OutboxRepository) NextBatch(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	var messages []*model.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ?", model.OutboxStatusPending).
		Order("id ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

// MarkDelivered settles a pending event. ErrOutboxMessageSettled means another
// relay already settled it.
func (r *OutboxRepository) MarkDelivered(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ? AND status = ?", id, model.OutboxStatusPending).
		Update("status", model.OutboxStatusSent)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOutboxMessageSettled
	}
	return nil
}

// RecordFailedAttempt counts one failed publish and parks the event as FAILED once
// maxRetry attempts have failed. It reports whether the event was parked.
func (r *OutboxRepository) RecordFailedAttempt(ctx context.Context, id int64, maxRetry int) (bool, error) {
	parked := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.OutboxMessage{}).
			Where("id = ? AND status = ?", id, model.OutboxStatusPending).
			UpdateColumn("retry_count", gorm.Expr("retry_count + 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrOutboxMessageSettled
		}
		result = tx.Model(&model.OutboxMessage{}).
			Where("id = ? AND retry_count >= ?", id, maxRetry).
			Update("status", model.OutboxStatusFailed)
		if result.Error != nil {
			return result.Error
		}
		parked = result.RowsAffected > 0
		return nil
	})
	return parked, err
}

// CountByStatus reports how many events are in status, e.g. the undelivered backlog.
func (r *OutboxRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}
