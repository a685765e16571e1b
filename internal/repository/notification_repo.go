package repository

import (
	"context"

	"advisorledger/internal/model"

	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, tx *gorm.DB, n *model.Notification) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(n).Error
}

// ListUnread returns the unread notifications of a user, high priority first.
func (r *NotificationRepository) ListUnread(ctx context.Context, userID int64) ([]*model.Notification, error) {
	var notifications []*model.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND `read` = ?", userID, false).
		Order("CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, created_at DESC, id DESC").
		Find(&notifications).Error
	return notifications, err
}

// MarkRead flags the given notifications of the user as read and returns how many changed.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID int64, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Update("read", true)
	return result.RowsAffected, result.Error
}
