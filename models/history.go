package models

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mmdatafocus/project_billing/config"
	"github.com/mmdatafocus/project_billing/utils"
	"gorm.io/gorm"
)

type HistoryAction string

const (
	HistoryActionCreate  HistoryAction = "CREATE"
	HistoryActionUpdate  HistoryAction = "UPDATE"
	HistoryActionDelete  HistoryAction = "DELETE"
	HistoryActionApprove HistoryAction = "APPROVE"
	HistoryActionReject  HistoryAction = "REJECT"
	HistoryActionPayment HistoryAction = "PAYMENT"
)

// DocumentHistory is the audit trail of a billing document. One row per change.
type DocumentHistory struct {
	ID             uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantId       string         `gorm:"size:64;not null;index" json:"tenantId"`
	DocumentKind   DocumentKind   `gorm:"size:32;not null;index:,composite:history_ref" json:"documentKind"`
	DocumentId     string         `gorm:"size:36;not null;index:,composite:history_ref" json:"documentId"`
	DocumentNumber string         `gorm:"size:32" json:"documentNumber"`
	Action         HistoryAction  `gorm:"size:16;not null" json:"action"`
	StatusBefore   DocumentStatus `gorm:"size:16" json:"statusBefore"`
	StatusAfter    DocumentStatus `gorm:"size:16" json:"statusAfter"`
	Reason         *string        `gorm:"type:text" json:"reason"`
	Before         string         `gorm:"type:text" json:"-"`
	After          string         `gorm:"type:text" json:"-"`
	Description    string         `gorm:"type:text" json:"description"`
	UserId         string         `gorm:"size:36;not null" json:"userId"`
	UserName       string         `gorm:"size:100" json:"userName"`
	CorrelationId  string         `gorm:"size:64" json:"correlationId"`
	CreatedAt      time.Time      `json:"createdAt"`
}

type historyEntry struct {
	action      HistoryAction
	record      BillingRecord
	before      any
	after       any
	from        DocumentStatus
	to          DocumentStatus
	reason      *string
	description string
}

// createHistory writes inside the caller's transaction; the actor comes from tx's context.
func createHistory(tx *gorm.DB, e historyEntry) error {
	ctx := tx.Statement.Context
	actor, err := utils.ActorFromContext(ctx)
	if err != nil {
		return err
	}
	b, _ := json.Marshal(e.before)
	a, _ := json.Marshal(e.after)
	cid, _ := utils.GetCorrelationIdFromContext(ctx)

	h := e.record.Header()
	history := DocumentHistory{
		TenantId:       actor.TenantId,
		DocumentKind:   e.record.DocumentKind(),
		DocumentId:     h.ID,
		DocumentNumber: h.DocumentNumber,
		Action:         e.action,
		StatusBefore:   e.from,
		StatusAfter:    e.to,
		Reason:         e.reason,
		Before:         string(b),
		After:          string(a),
		Description:    e.description,
		UserId:         actor.UserId,
		UserName:       actor.Name,
		CorrelationId:  cid,
	}
	return tx.Create(&history).Error
}

func describeStatusChange(kind DocumentKind, number string, from, to DocumentStatus) string {
	return fmt.Sprintf("%s %s changed from %s to %s.", kind.Label(), number, from, to)
}

// GetDocumentHistory returns the audit trail, oldest first.
func GetDocumentHistory(ctx context.Context, kind DocumentKind, id string) ([]*DocumentHistory, error) {
	actor, err := utils.ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	db := config.GetDB().WithContext(ctx)
	if _, err := loadDocument(db, kind, actor.TenantId, id, false); err != nil {
		return nil, err
	}

	var results []*DocumentHistory
	err = db.Where("tenant_id = ? AND document_kind = ? AND document_id = ?", actor.TenantId, kind, id).
		Order("created_at, id").
		Find(&results).Error
	return results, err
}
