package repository

import (
	"context"
	"time"

	"github.com/yashturmbekar/PMCRMS-sub002/internal/model"

	"gorm.io/gorm"
)

// OutboxRepository persists assignment notifications for asynchronous
// delivery. Enqueue runs inside the assignment transaction; the dispatcher
// works through pending rows on its own schedule.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg *model.NotificationOutbox) error
	FetchPending(ctx context.Context, limit int) ([]model.NotificationOutbox, error)
	MarkSent(ctx context.Context, msg *model.NotificationOutbox) error
	MarkFailed(ctx context.Context, msg *model.NotificationOutbox, reason string) error
}

type outboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) Enqueue(ctx context.Context, msg *model.NotificationOutbox) error {
	return GetDB(ctx, r.db).Create(msg).Error
}

func (r *outboxRepository) FetchPending(ctx context.Context, limit int) ([]model.NotificationOutbox, error) {
	var msgs []model.NotificationOutbox
	err := GetDB(ctx, r.db).
		Where("status = ? AND attempts < ?", model.OutboxPending, model.MaxOutboxAttempts).
		Order("created_at ASC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, msg *model.NotificationOutbox) error {
	now := time.Now()
	msg.Status = model.OutboxSent
	msg.SentAt = &now
	return GetDB(ctx, r.db).Model(msg).
		Updates(map[string]interface{}{
			"status":   model.OutboxSent,
			"sent_at":  now,
			"attempts": gorm.Expr("attempts + 1"),
		}).Error
}

func (r *outboxRepository) MarkFailed(ctx context.Context, msg *model.NotificationOutbox, reason string) error {
	msg.Attempts++
	msg.LastError = reason
	status := model.OutboxPending
	if msg.Attempts >= model.MaxOutboxAttempts {
		status = model.OutboxFailed
	}
	msg.Status = status
	return GetDB(ctx, r.db).Model(msg).
		Updates(map[string]interface{}{
			"status":     status,
			"attempts":   msg.Attempts,
			"last_error": reason,
		}).Error
}
