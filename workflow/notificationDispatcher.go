package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/project_billing/config"
	"github.com/mmdatafocus/project_billing/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationDispatcher delivers outbox rows written by approve/reject.
// Delivery failures are retried with backoff and never surface to the API caller.
type NotificationDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	Notifier     Notifier
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	now func() time.Time
}

func NewNotificationDispatcher(db *gorm.DB, logger *logrus.Logger, notifier Notifier) *NotificationDispatcher {
	return &NotificationDispatcher{
		DB:             db,
		Logger:         logger,
		Notifier:       notifier,
		DispatcherID:   uuid.NewString(),
		BatchSize:      50,
		PollInterval:   time.Duration(config.NotifyPollMillis()) * time.Millisecond,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    config.NotifyMaxAttempts(),
		InitialBackoff: 5 * time.Second,
		MaxBackoff:     10 * time.Minute,
	}
}

func (d *NotificationDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, err := d.DispatchOnce(ctx); err != nil && d.Logger != nil && ctx.Err() == nil {
			config.LogError(d.Logger, "NotificationDispatcher", "DispatchOnce", "claim batch", nil, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

func (d *NotificationDispatcher) clock() time.Time {
	if d.now != nil {
		return d.now().UTC()
	}
	return time.Now().UTC()
}

// DispatchOnce claims one batch and sends it. It returns how many rows were sent.
func (d *NotificationDispatcher) DispatchOnce(ctx context.Context) (int, error) {
	db := d.DB
	if db == nil || d.Notifier == nil {
		return 0, nil
	}
	now := d.clock()
	staleBefore := now.Add(-d.LockTimeout)

	var claimed []models.NotificationRecord
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Eligible:
		// - PENDING / FAILED and due
		// - PROCESSING with a stale lock (dispatcher died mid-batch)
		q := tx.
			Where(`
				(
					publish_status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
				)
				OR
				(
					publish_status = ? AND locked_at IS NOT NULL AND locked_at <= ?
				)
			`, []string{models.OutboxPublishStatusPending, models.OutboxPublishStatusFailed}, now, models.OutboxPublishStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize)
		if config.SupportsRowLocking(tx) {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		for i := range claimed {
			if d.MaxAttempts > 0 && claimed[i].PublishAttempts >= d.MaxAttempts {
				msg := fmt.Sprintf("max delivery attempts exceeded (%d)", d.MaxAttempts)
				claimed[i].PublishStatus = models.OutboxPublishStatusDead
				if err := tx.Model(&models.NotificationRecord{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
					"publish_status":     models.OutboxPublishStatusDead,
					"last_publish_error": &msg,
					"next_attempt_at":    nil,
					"locked_at":          nil,
					"locked_by":          nil,
				}).Error; err != nil {
					return err
				}
				continue
			}

			claimed[i].PublishStatus = models.OutboxPublishStatusProcessing
			claimed[i].PublishAttempts++
			if err := tx.Model(&models.NotificationRecord{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusProcessing,
				"locked_at":          &now,
				"locked_by":          d.DispatcherID,
				"publish_attempts":   gorm.Expr("publish_attempts + 1"),
				"last_publish_error": nil,
				"next_attempt_at":    nil,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, rec := range claimed {
		if rec.PublishStatus == models.OutboxPublishStatusDead {
			continue
		}
		n, perr := rec.Notification()
		if perr != nil {
			// a payload that cannot be decoded will never succeed
			d.markFailed(ctx, rec, perr, d.MaxAttempts)
			continue
		}
		msgID, sendErr := d.Notifier.Send(ctx, n)
		if sendErr != nil {
			d.markFailed(ctx, rec, sendErr, rec.PublishAttempts)
			continue
		}
		d.markSent(ctx, rec, msgID)
		sent++
	}
	return sent, nil
}

func (d *NotificationDispatcher) markSent(ctx context.Context, rec models.NotificationRecord, providerID string) {
	now := d.clock()
	err := d.DB.WithContext(ctx).Model(&models.NotificationRecord{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"publish_status":      models.OutboxPublishStatusSent,
			"sent_at":             &now,
			"provider_message_id": &providerID,
			"locked_at":           nil,
			"locked_by":           nil,
			"next_attempt_at":     nil,
		}).Error
	if err != nil && d.Logger != nil {
		config.LogError(d.Logger, "NotificationDispatcher", "markSent", rec.DocumentId, rec.ID, err)
	}
}

func (d *NotificationDispatcher) markFailed(ctx context.Context, rec models.NotificationRecord, sendErr error, attempt int) {
	db := d.DB.WithContext(ctx)
	msg := sendErr.Error()

	if d.MaxAttempts > 0 && attempt >= d.MaxAttempts {
		err := db.Model(&models.NotificationRecord{}).
			Where("id = ?", rec.ID).
			Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusDead,
				"last_publish_error": &msg,
				"next_attempt_at":    nil,
				"locked_at":          nil,
				"locked_by":          nil,
			}).Error
		if err != nil && d.Logger != nil {
			config.LogError(d.Logger, "NotificationDispatcher", "markFailed", rec.DocumentId, rec.ID, err)
		}

		if d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{
				"field":          "NotificationDispatcher",
				"tenant_id":      rec.TenantId,
				"record_id":      rec.ID,
				"document_id":    rec.DocumentId,
				"attempt":        attempt,
				"correlation_id": rec.CorrelationId,
			}).Error("notification moved to DEAD after max attempts: " + msg)
		}
		return
	}

	next := d.clock().Add(d.backoff(attempt))
	err := db.Model(&models.NotificationRecord{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusFailed,
			"last_publish_error": &msg,
			"next_attempt_at":    &next,
			"locked_at":          nil,
			"locked_by":          nil,
		}).Error
	if err != nil && d.Logger != nil {
		config.LogError(d.Logger, "NotificationDispatcher", "markFailed", rec.DocumentId, rec.ID, err)
	}

	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"field":           "NotificationDispatcher",
			"tenant_id":       rec.TenantId,
			"record_id":       rec.ID,
			"document_id":     rec.DocumentId,
			"attempt":         attempt,
			"next_attempt_at": next.Format(time.RFC3339Nano),
			"correlation_id":  rec.CorrelationId,
		}).Error("notification delivery failed: " + msg)
	}
}

// backoff doubles from InitialBackoff per attempt, capped at MaxBackoff.
func (d *NotificationDispatcher) backoff(attempt int) time.Duration {
	backoff := d.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if d.MaxBackoff > 0 && backoff > d.MaxBackoff {
			return d.MaxBackoff
		}
	}
	return backoff
}
