package job

import (
	"context"
	"errors"
	"time"

	"advisorledger/internal/model"
	"advisorledger/internal/repository"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Publisher delivers one message to the broker. *mq.Producer implements it.
type Publisher interface {
	Publish(topic, key, value string) error
}

// OutboxSender relays pending outbox rows to Kafka. A row is marked SENT once the
// broker acknowledges it and FAILED after maxRetry unsuccessful attempts.
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	publisher  Publisher
	log        zerolog.Logger
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
	maxRetry   int
}

func NewOutboxSender(db *gorm.DB, publisher Publisher, interval time.Duration, maxRetry int, log zerolog.Logger) *OutboxSender {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if maxRetry <= 0 {
		maxRetry = 5
	}
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		publisher:  publisher,
		log:        log.With().Str("component", "OutboxSender").Logger(),
		stopCh:     make(chan struct{}),
		interval:   interval,
		batchSize:  100,
		maxRetry:   maxRetry,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.log.Info().Dur("interval", s.interval).Msg("outbox sender started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("context done, outbox sender exiting")
			return
		case <-s.stopCh:
			s.log.Info().Msg("outbox sender stopped")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// processPendingMessages drains one batch and returns how many messages were sent.
func (s *OutboxSender) processPendingMessages(ctx context.Context) int {
	messages, err := s.outboxRepo.NextBatch(ctx, s.batchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("load pending messages failed")
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if ctx.Err() != nil {
			break
		}
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}

	if len(messages) == s.batchSize {
		if backlog, err := s.outboxRepo.CountByStatus(ctx, model.OutboxStatusPending); err == nil && backlog > 0 {
			s.log.Warn().Int64("backlog", backlog).Msg("outbox backlog after full batch")
		}
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	log := s.log.With().Int64("id", msg.ID).Int64("user_id", msg.UserID).
		Str("event", msg.EventType).Str("key", msg.MessageKey).Logger()

	err := s.publisher.Publish(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		switch updateErr := s.outboxRepo.MarkDelivered(ctx, msg.ID); {
		case errors.Is(updateErr, repository.ErrOutboxMessageSettled):
			log.Warn().Msg("message settled by another relay")
		case updateErr != nil:
			// the message may be delivered again; consumers dedupe on the key
			log.Error().Err(updateErr).Msg("mark sent failed")
		default:
			log.Debug().Msg("message sent")
		}
		return true
	}

	log.Warn().Err(err).Int("retry", msg.RetryCount).Msg("publish failed")

	parked, err := s.outboxRepo.RecordFailedAttempt(ctx, msg.ID, s.maxRetry)
	switch {
	case err != nil:
		log.Error().Err(err).Msg("record failed attempt")
	case parked:
		log.Error().Int("max_retry", s.maxRetry).Msg("message exceeded max retries, marked failed")
	}
	return false
}
