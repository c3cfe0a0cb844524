package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mmdatafocus/project_billing/config"
	"github.com/mmdatafocus/project_billing/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Outbox publish statuses for NotificationRecord.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

type NotificationEvent string

const (
	NotificationEventApproved NotificationEvent = "APPROVED"
	NotificationEventRejected NotificationEvent = "REJECTED"
)

// ApproverLabel is how the acting party is named in notifications.
const ApproverLabel = "Finance Team"

// ApprovalNotification is the message handed to the notifier.
type ApprovalNotification struct {
	Event          NotificationEvent `json:"event"`
	RecipientName  string            `json:"recipientName"`
	RecipientEmail string            `json:"recipientEmail"`
	DocumentNumber string            `json:"documentNumber"`
	DocumentType   string            `json:"documentType"`
	Amount         decimal.Decimal   `json:"amount"`
	ProjectName    string            `json:"projectName"`
	ApproverLabel  string            `json:"approverLabel"`
	Reason         *string           `json:"reason,omitempty"`
}

// NotificationRecord is the transactional outbox row. It is written in the same
// transaction as the status change and delivered by the dispatcher after commit.
type NotificationRecord struct {
	ID                uint64            `gorm:"primaryKey;autoIncrement;index:idx_notification_dispatch,priority:3" json:"id"`
	TenantId          string            `gorm:"size:64;not null;index" json:"tenantId"`
	Event             NotificationEvent `gorm:"size:16;not null" json:"event"`
	DocumentKind      DocumentKind      `gorm:"size:32;not null" json:"documentKind"`
	DocumentId        string            `gorm:"size:36;not null;index" json:"documentId"`
	RecipientEmail    string            `gorm:"size:255;not null" json:"recipientEmail"`
	Payload           string            `gorm:"type:text;not null" json:"payload"`
	PublishStatus     string            `gorm:"size:20;not null;default:'PENDING';index:idx_notification_dispatch,priority:1" json:"publishStatus"`
	PublishAttempts   int               `gorm:"not null;default:0" json:"publishAttempts"`
	NextAttemptAt     *time.Time        `gorm:"index:idx_notification_dispatch,priority:2" json:"nextAttemptAt"`
	LockedAt          *time.Time        `json:"lockedAt"`
	LockedBy          *string           `gorm:"size:100" json:"lockedBy"`
	LastPublishError  *string           `gorm:"type:text" json:"lastPublishError"`
	SentAt            *time.Time        `json:"sentAt"`
	ProviderMessageId *string           `gorm:"size:255" json:"providerMessageId"`
	CorrelationId     string            `gorm:"size:64;index" json:"correlationId"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

func (r NotificationRecord) Notification() (ApprovalNotification, error) {
	var n ApprovalNotification
	err := json.Unmarshal([]byte(r.Payload), &n)
	return n, err
}

// enqueueNotification writes the outbox row inside tx. A creator without an email
// address is logged and skipped; it never fails the transition.
func enqueueNotification(tx *gorm.DB, event NotificationEvent, rec BillingRecord, reason *string) error {
	ctx := tx.Statement.Context
	h := rec.Header()
	logger := config.GetLogger()

	var creator User
	if err := tx.Where("id = ?", h.CreatedById).Take(&creator).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(logrus.Fields{
				"field":         "enqueueNotification",
				"document_id":   h.ID,
				"created_by_id": h.CreatedById,
			}).Warn("notification skipped: creator not found")
			return nil
		}
		return err
	}
	if creator.Email == "" {
		logger.WithFields(logrus.Fields{
			"field":       "enqueueNotification",
			"document_id": h.ID,
			"user_id":     creator.ID,
		}).Warn("notification skipped: creator has no email")
		return nil
	}

	var project Project
	if err := tx.Where("id = ?", h.ProjectId).Take(&project).Error; err != nil {
		return err
	}

	payload := ApprovalNotification{
		Event:          event,
		RecipientName:  creator.Name,
		RecipientEmail: creator.Email,
		DocumentNumber: h.DocumentNumber,
		DocumentType:   rec.DocumentKind().Label(),
		Amount:         rec.PayableTotal(),
		ProjectName:    project.Name,
		ApproverLabel:  ApproverLabel,
	}
	if event == NotificationEventRejected {
		payload.Reason = reason
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	record := NotificationRecord{
		TenantId:       h.TenantId,
		Event:          event,
		DocumentKind:   rec.DocumentKind(),
		DocumentId:     h.ID,
		RecipientEmail: creator.Email,
		Payload:        string(body),
		PublishStatus:  OutboxPublishStatusPending,
		CorrelationId:  cid,
	}
	return tx.Create(&record).Error
}

// ReplayNotification moves a FAILED or DEAD record back into the dispatch queue.
func ReplayNotification(ctx context.Context, db *gorm.DB, id uint64) (*NotificationRecord, error) {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&NotificationRecord{}).
		Where("id = ? AND publish_status IN ?", id, []string{OutboxPublishStatusFailed, OutboxPublishStatusDead}).
		Updates(map[string]interface{}{
			"publish_status":     OutboxPublishStatusPending,
			"publish_attempts":   0,
			"next_attempt_at":    &now,
			"locked_at":          nil,
			"locked_by":          nil,
			"last_publish_error": nil,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	var rec NotificationRecord
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrNotFound("notification %d not found", id)
		}
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, utils.ErrConflict("notification %d is %s; only FAILED or DEAD notifications can be replayed", id, rec.PublishStatus)
	}
	return &rec, nil
}

// ReplayDeadNotifications requeues every DEAD record (optionally for one tenant).
func ReplayDeadNotifications(ctx context.Context, db *gorm.DB, tenantId string) (int64, error) {
	now := time.Now().UTC()
	q := db.WithContext(ctx).Model(&NotificationRecord{}).Where("publish_status = ?", OutboxPublishStatusDead)
	if tenantId != "" {
		q = q.Where("tenant_id = ?", tenantId)
	}
	res := q.Updates(map[string]interface{}{
		"publish_status":     OutboxPublishStatusPending,
		"publish_attempts":   0,
		"next_attempt_at":    &now,
		"locked_at":          nil,
		"locked_by":          nil,
		"last_publish_error": nil,
	})
	return res.RowsAffected, res.Error
}

func GetNotification(ctx context.Context, db *gorm.DB, id uint64) (*NotificationRecord, error) {
	var rec NotificationRecord
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrNotFound("notification %d not found", id)
		}
		return nil, err
	}
	return &rec, nil
}

// OutboxStatusCount is one row of CountNotificationsByStatus.
type OutboxStatusCount struct {
	PublishStatus string `json:"publishStatus"`
	Count         int64  `json:"count"`
}

func CountNotificationsByStatus(ctx context.Context, db *gorm.DB) ([]OutboxStatusCount, error) {
	var rows []OutboxStatusCount
	err := db.WithContext(ctx).Model(&NotificationRecord{}).
		Select("publish_status, COUNT(*) AS count").
		Group("publish_status").
		Order("publish_status").
		Scan(&rows).Error
	return rows, err
}
