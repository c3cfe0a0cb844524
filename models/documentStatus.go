package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/project_billing/config"
	"github.com/mmdatafocus/project_billing/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/mmdatafocus/project_billing/models")

const documentLockTTL = 15 * time.Second

func documentLockKey(kind DocumentKind, id string) string {
	return fmt.Sprintf("lock:doc:%s:%s", kind, id)
}

type transitionRequest struct {
	kind   DocumentKind
	id     string
	action ApprovalAction
	reason *string
	target DocumentStatus
}

// ApproveDocument moves a pending document to APPROVED and queues the creator's notification.
func ApproveDocument(ctx context.Context, kind DocumentKind, id string) (BillingRecord, error) {
	return applyTransition(ctx, transitionRequest{kind: kind, id: id, action: ApprovalActionApprove})
}

// RejectDocument cancels a document. Rejecting a cancelled document returns it unchanged.
func RejectDocument(ctx context.Context, kind DocumentKind, id string, reason *string) (BillingRecord, error) {
	if reason != nil {
		r := strings.TrimSpace(*reason)
		if r == "" {
			reason = nil
		} else {
			reason = &r
		}
	}
	return applyTransition(ctx, transitionRequest{kind: kind, id: id, action: ApprovalActionReject, reason: reason})
}

// SetPaymentStatus marks an invoice or vendor bill paid (or reverses it) and
// adjusts the project financials in the same transaction.
func SetPaymentStatus(ctx context.Context, kind DocumentKind, id string, target DocumentStatus) (BillingRecord, error) {
	return applyTransition(ctx, transitionRequest{kind: kind, id: id, action: ApprovalActionPaymentStatus, target: target})
}

func applyTransition(ctx context.Context, req transitionRequest) (BillingRecord, error) {
	ctx, span := tracer.Start(ctx, "billing."+string(req.action))
	defer span.End()
	span.SetAttributes(
		attribute.String("document.kind", string(req.kind)),
		attribute.String("document.id", req.id),
	)

	actor, err := utils.ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	role := UserRole(actor.Role)
	// role gate runs before the lock and the lookup
	if !role.CanApprove() {
		if req.action == ApprovalActionPaymentStatus {
			return nil, utils.ErrForbidden("only Sales/Finance or Admin users can change payment status")
		}
		return nil, utils.ErrForbidden("only Sales/Finance or Admin users can %s documents", req.action)
	}
	rules := DefaultTransitionRules()
	logger := config.GetLogger()

	release, locked := config.ObtainLock(ctx, documentLockKey(req.kind, req.id), documentLockTTL)
	defer release()
	if !locked {
		logger.WithFields(logrus.Fields{
			"field":       "applyTransition",
			"document_id": req.id,
		}).Debug("document lock unavailable, relying on conditional update")
	}

	var (
		result  BillingRecord
		changed bool
	)
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := loadDocument(tx, req.kind, actor.TenantId, req.id, true)
		if err != nil {
			return err
		}
		h := rec.Header()
		from := h.Status

		var decision Decision
		if req.action == ApprovalActionPaymentStatus {
			decision, err = rules.DecidePayment(req.kind, from, req.target, role)
		} else {
			decision, err = rules.Decide(req.kind, from, req.action, role)
		}
		if err != nil {
			return err
		}
		if decision.NoOp {
			result = rec
			return nil
		}

		now := nextUpdatedAt(h.UpdatedAt)
		updates := map[string]interface{}{
			"status":     decision.Next,
			"updated_at": now,
		}
		switch req.action {
		case ApprovalActionApprove:
			updates["approved_by_id"] = actor.UserId
			updates["approved_at"] = now
		case ApprovalActionReject:
			updates["rejected_by_id"] = actor.UserId
			updates["rejected_at"] = now
			updates["rejection_reason"] = req.reason
		}

		res := tx.Model(newRecord(req.kind)).
			Where("tenant_id = ? AND id = ? AND status = ?", actor.TenantId, req.id, from).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.ErrConflict("%s %s changed while processing, reload and retry", req.kind.Label(), h.DocumentNumber)
		}

		if req.kind.HasPaymentStatus() {
			if err := applyFinancialRollup(tx, rec, from, decision.Next); err != nil {
				return err
			}
		}

		updated, err := loadDocument(tx, req.kind, actor.TenantId, req.id, false)
		if err != nil {
			return err
		}
		if err := createHistory(tx, historyEntry{
			action:      historyActionFor(req.action),
			record:      updated,
			before:      rec,
			after:       updated,
			from:        from,
			to:          decision.Next,
			reason:      req.reason,
			description: describeStatusChange(req.kind, h.DocumentNumber, from, decision.Next),
		}); err != nil {
			return err
		}

		switch req.action {
		case ApprovalActionApprove:
			err = enqueueNotification(tx, NotificationEventApproved, updated, nil)
		case ApprovalActionReject:
			err = enqueueNotification(tx, NotificationEventRejected, updated, req.reason)
		}
		if err != nil {
			return err
		}
		result = updated
		changed = true
		return nil
	})
	if err != nil {
		if utils.KindOf(err) == "" {
			config.LogError(logger, "models", "applyTransition", req.id, req.action, err)
		}
		span.RecordError(err)
		return nil, err
	}
	if changed {
		invalidateApprovalCaches(actor.TenantId)
	}
	return result, nil
}

func historyActionFor(action ApprovalAction) HistoryAction {
	switch action {
	case ApprovalActionApprove:
		return HistoryActionApprove
	case ApprovalActionReject:
		return HistoryActionReject
	}
	return HistoryActionPayment
}
