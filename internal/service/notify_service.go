package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"advisorledger/internal/errs"
	"advisorledger/internal/model"
	"advisorledger/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const EventNotificationCreated = "notification.created"

// NotificationEvent is the Kafka payload relayed by the outbox sender.
type NotificationEvent struct {
	NotificationID int64     `json:"notification_id"`
	UserID         int64     `json:"user_id"`
	Type           string    `json:"type"`
	Priority       string    `json:"priority"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"created_at"`
}

// NotificationService stores in-app notifications and queues them for Kafka
// through the outbox table in the same DB transaction.
type NotificationService struct {
	db               *gorm.DB
	notificationRepo *repository.NotificationRepository
	outboxRepo       *repository.OutboxRepository
	topic            string
	log              zerolog.Logger
}

func NewNotificationService(db *gorm.DB, topic string, logger zerolog.Logger) *NotificationService {
	return &NotificationService{
		db:               db,
		notificationRepo: repository.NewNotificationRepository(db),
		outboxRepo:       repository.NewOutboxRepository(db),
		topic:            topic,
		log:              logger.With().Str("component", "NotificationService").Logger(),
	}
}

func (s *NotificationService) Notify(ctx context.Context, userID int64, n Notice) error {
	const op = "notification.notify"
	notification := &model.Notification{
		UserID:   userID,
		Title:    n.Title,
		Message:  n.Message,
		Type:     n.Type,
		Priority: n.Priority,
	}
	if notification.Type == "" {
		notification.Type = model.NotificationTypeOther
	}
	if notification.Priority == "" {
		notification.Priority = model.PriorityLow
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.notificationRepo.Create(ctx, tx, notification); err != nil {
			return fmt.Errorf("create notification: %w", err)
		}

		payload, err := json.Marshal(NotificationEvent{
			NotificationID: notification.ID,
			UserID:         userID,
			Type:           notification.Type,
			Priority:       notification.Priority,
			Title:          notification.Title,
			Message:        notification.Message,
			CreatedAt:      notification.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("marshal notification event: %w", err)
		}

		msg := &model.OutboxMessage{
			MessageKey: uuid.NewString(),
			Topic:      s.topic,
			EventType:  EventNotificationCreated,
			UserID:     userID,
			Payload:    string(payload),
		}
		if err := s.outboxRepo.Enqueue(ctx, tx, msg); err != nil {
			return fmt.Errorf("create outbox message: %w", err)
		}
		return nil
	})
	if err != nil {
		return errs.Wrap(errs.Persistence, op, err)
	}

	s.log.Debug().Int64("user_id", userID).Int64("notification_id", notification.ID).Msg("notification queued")
	return nil
}

func (s *NotificationService) ListUnread(ctx context.Context, userID int64) ([]*model.Notification, error) {
	list, err := s.notificationRepo.ListUnread(ctx, userID)
	if err != nil {
		return nil, storeError("notification.list_unread", err)
	}
	return list, nil
}

// MarkRead flags the given notifications of the user as read and returns how many changed.
func (s *NotificationService) MarkRead(ctx context.Context, userID int64, ids []int64) (int64, error) {
	const op = "notification.mark_read"
	if len(ids) == 0 {
		return 0, errs.E(errs.Validation, op, "no notification ids given")
	}
	n, err := s.notificationRepo.MarkRead(ctx, userID, ids)
	if err != nil {
		return 0, storeError(op, err)
	}
	return n, nil
}
