package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/project_billing/config"
	"github.com/mmdatafocus/project_billing/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NewDocument is the create payload. Tax, DueDate and the parent reference are
// only accepted for the kinds that carry them.
type NewDocument struct {
	ProjectId         string        `json:"projectId" validate:"required"`
	CounterpartyName  string        `json:"counterpartyName" validate:"required,max=255"`
	CounterpartyEmail string        `json:"counterpartyEmail" validate:"omitempty,email"`
	Amount            *utils.Amount `json:"amount" validate:"required"`
	Tax               *utils.Amount `json:"tax"`
	Status            string        `json:"status"`
	Notes             string        `json:"notes"`
	DueDate           *time.Time    `json:"dueDate"`
	SalesOrderId      *string       `json:"salesOrderId"`
	PurchaseOrderId   *string       `json:"purchaseOrderId"`
}

// DocumentUpdate holds owner edits; nil fields are left unchanged.
type DocumentUpdate struct {
	CounterpartyName  *string       `json:"counterpartyName" validate:"omitempty,min=1,max=255"`
	CounterpartyEmail *string       `json:"counterpartyEmail" validate:"omitempty,email"`
	Amount            *utils.Amount `json:"amount"`
	Tax               *utils.Amount `json:"tax"`
	Status            *string       `json:"status"`
	Notes             *string       `json:"notes"`
	DueDate           *time.Time    `json:"dueDate"`
}

type DocumentFilter struct {
	Status    *DocumentStatus
	ProjectId *string
	Search    *string
}

type DocumentPage struct {
	Edges    []Edge[BillingRecord] `json:"edges"`
	PageInfo *PageInfo             `json:"pageInfo"`
}

func documentNotFound(kind DocumentKind, id string) error {
	return utils.ErrNotFound("%s %s not found", kind.Label(), id)
}

// loadDocument reads one document of kind for the tenant. With forUpdate the row
// is locked on dialects that support it; callers still predicate their writes on
// the status they read.
func loadDocument(tx *gorm.DB, kind DocumentKind, tenantId string, id string, forUpdate bool) (BillingRecord, error) {
	rec := newRecord(kind)
	q := tx.Where("tenant_id = ? AND id = ?", tenantId, id)
	if forUpdate && config.SupportsRowLocking(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.Take(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, documentNotFound(kind, id)
		}
		return nil, err
	}
	return rec, nil
}

func validateAmounts(amount decimal.Decimal, tax *decimal.Decimal) error {
	fields := map[string]string{}
	if amount.IsNegative() {
		fields["amount"] = "gte"
	}
	if tax != nil && tax.IsNegative() {
		fields["tax"] = "gte"
	}
	if len(fields) > 0 {
		return utils.ErrValidationFields("amounts must not be negative", fields)
	}
	return nil
}

// checkKindFields rejects fields that do not belong to kind.
func (in NewDocument) checkKindFields(kind DocumentKind) error {
	fields := map[string]string{}
	if !kind.HasPaymentStatus() {
		if in.Tax != nil {
			fields["tax"] = "not allowed"
		}
		if in.DueDate != nil {
			fields["dueDate"] = "not allowed"
		}
	}
	if in.SalesOrderId != nil && kind != DocumentKindInvoice {
		fields["salesOrderId"] = "not allowed"
	}
	if in.PurchaseOrderId != nil && kind != DocumentKindVendorBill {
		fields["purchaseOrderId"] = "not allowed"
	}
	if len(fields) > 0 {
		return utils.ErrValidationFields(kind.Label()+" does not accept some fields", fields)
	}
	return nil
}

func (in NewDocument) parentId() *string {
	if in.SalesOrderId != nil && strings.TrimSpace(*in.SalesOrderId) != "" {
		return in.SalesOrderId
	}
	if in.PurchaseOrderId != nil && strings.TrimSpace(*in.PurchaseOrderId) != "" {
		return in.PurchaseOrderId
	}
	return nil
}

func buildRecord(kind DocumentKind, header DocumentHeader, in NewDocument) BillingRecord {
	var tax *decimal.Decimal
	if in.Tax != nil {
		t := in.Tax.Decimal
		tax = &t
	}
	taxed := TaxedDocument{
		Tax:         tax,
		TotalAmount: ComputeTotal(header.Amount, tax),
		DueDate:     in.DueDate,
	}
	switch kind {
	case DocumentKindSalesOrder:
		return &SalesOrder{DocumentHeader: header}
	case DocumentKindPurchaseOrder:
		return &PurchaseOrder{DocumentHeader: header}
	case DocumentKindInvoice:
		return &CustomerInvoice{DocumentHeader: header, TaxedDocument: taxed, SalesOrderId: in.parentId()}
	case DocumentKindVendorBill:
		return &VendorBill{DocumentHeader: header, TaxedDocument: taxed, PurchaseOrderId: in.parentId()}
	}
	return nil
}

// canCreateFor: Admin and Sales/Finance on any project, a Project Manager on projects they manage.
func canCreateFor(actor utils.Actor, project *Project) bool {
	switch UserRole(actor.Role) {
	case UserRoleAdmin, UserRoleSalesFinance:
		return true
	case UserRoleProjectManager:
		return project.ManagerId == actor.UserId
	}
	return false
}

func CreateDocument(ctx context.Context, kind DocumentKind, input NewDocument) (BillingRecord, error) {
	actor, err := utils.ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := input.checkKindFields(kind); err != nil {
		return nil, err
	}
	var tax *decimal.Decimal
	if input.Tax != nil {
		tax = &input.Tax.Decimal
	}
	if err := validateAmounts(input.Amount.Decimal, tax); err != nil {
		return nil, err
	}
	status := DocumentStatusDraft
	if strings.TrimSpace(input.Status) != "" {
		s, ok := ParseDocumentStatus(input.Status)
		if !ok || !s.IsPending() {
			return nil, utils.ErrValidation("new documents must be DRAFT or SENT")
		}
		status = s
	}

	db := config.GetDB().WithContext(ctx)
	project, err := utils.FetchModel[Project](ctx, db, actor.TenantId, input.ProjectId)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.ErrValidation("project %s not found", input.ProjectId)
		}
		return nil, err
	}
	if !canCreateFor(actor, project) {
		return nil, utils.ErrForbidden("you cannot create documents for project %s", project.Name)
	}
	if parentId := input.parentId(); parentId != nil {
		if err := validateParent(db, kind, actor.TenantId, *parentId, project.ID); err != nil {
			return nil, err
		}
	}

	year := time.Now().In(config.AppLocation()).Year()
	release, _ := config.ObtainLock(ctx, sequenceLockKey(kind, actor.TenantId, year), 10*time.Second)
	defer release()

	var created BillingRecord
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		err = db.Transaction(func(tx *gorm.DB) error {
			seq, err := nextSequence(tx, kind, actor.TenantId, year)
			if err != nil {
				return err
			}
			header := DocumentHeader{
				TenantId:          actor.TenantId,
				DocumentNumber:    FormatDocumentNumber(kind, year, seq),
				SequenceYear:      year,
				SequenceNo:        seq,
				ProjectId:         project.ID,
				CounterpartyName:  strings.TrimSpace(input.CounterpartyName),
				CounterpartyEmail: strings.TrimSpace(input.CounterpartyEmail),
				Amount:            input.Amount.Decimal,
				Status:            status,
				Notes:             input.Notes,
				CreatedById:       actor.UserId,
				Kind:              kind,
			}
			rec := buildRecord(kind, header, input)
			if err := tx.Create(rec).Error; err != nil {
				return err
			}
			if err := createHistory(tx, historyEntry{
				action:      HistoryActionCreate,
				record:      rec,
				after:       rec,
				to:          status,
				description: rec.DocumentKind().Label() + " " + header.DocumentNumber + " created.",
			}); err != nil {
				return err
			}
			created = rec
			return nil
		})
		if err == nil {
			break
		}
		if !isDuplicateKeyError(err) {
			return nil, err
		}
		config.GetLogger().WithField("attempt", attempt).Warn("document number collision, retrying: " + err.Error())
	}
	if err != nil {
		return nil, utils.ErrConflict("could not allocate a document number, please retry")
	}
	invalidateApprovalCaches(actor.TenantId)
	return created, nil
}

func validateParent(db *gorm.DB, kind DocumentKind, tenantId string, parentId string, projectId string) error {
	parentKind, ok := kind.ParentKind()
	if !ok {
		return utils.ErrValidation("%s cannot reference a parent document", kind.Label())
	}
	parent, err := loadDocument(db, parentKind, tenantId, parentId, false)
	if err != nil {
		if utils.KindOf(err) == utils.KindNotFound {
			return utils.ErrValidation("%s %s not found", parentKind.Label(), parentId)
		}
		return err
	}
	h := parent.Header()
	if h.ProjectId != projectId {
		return utils.ErrValidation("%s %s belongs to a different project", parentKind.Label(), h.DocumentNumber)
	}
	if h.Status == DocumentStatusCancelled {
		return utils.ErrValidation("%s %s is cancelled", parentKind.Label(), h.DocumentNumber)
	}
	return nil
}

func canEdit(actor utils.Actor, h *DocumentHeader) bool {
	return UserRole(actor.Role) == UserRoleAdmin || h.CreatedById == actor.UserId
}

// UpdateDocument applies owner edits while the document is still pending.
// totalAmount is recomputed whenever amount or tax change.
func UpdateDocument(ctx context.Context, kind DocumentKind, id string, input DocumentUpdate) (BillingRecord, error) {
	actor, err := utils.ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if !kind.HasPaymentStatus() && (input.Tax != nil || input.DueDate != nil) {
		return nil, utils.ErrValidation("%s does not have tax or due date", kind.Label())
	}

	var result BillingRecord
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := loadDocument(tx, kind, actor.TenantId, id, true)
		if err != nil {
			return err
		}
		h := rec.Header()
		if !canEdit(actor, h) {
			return utils.ErrForbidden("only the creator or an admin can edit this %s", strings.ToLower(kind.Label()))
		}
		if !h.Status.IsEditable() {
			return utils.ErrInvalidTransition("Cannot edit a %s %s", strings.ToLower(string(h.Status)), strings.ToLower(kind.Label()))
		}
		before := snapshot(rec)

		updates := map[string]interface{}{}
		if input.CounterpartyName != nil {
			updates["counterparty_name"] = strings.TrimSpace(*input.CounterpartyName)
		}
		if input.CounterpartyEmail != nil {
			updates["counterparty_email"] = strings.TrimSpace(*input.CounterpartyEmail)
		}
		if input.Notes != nil {
			updates["notes"] = *input.Notes
		}
		nextStatus := h.Status
		if input.Status != nil {
			s, ok := ParseDocumentStatus(*input.Status)
			if !ok || !s.IsPending() {
				return utils.ErrValidation("status can only be changed between DRAFT and SENT here")
			}
			nextStatus = s
			updates["status"] = s
		}

		amount := h.Amount
		if input.Amount != nil {
			amount = input.Amount.Decimal
			updates["amount"] = amount
		}
		if kind.HasPaymentStatus() {
			taxed := taxedPart(rec)
			tax := taxed.Tax
			if input.Tax != nil {
				t := input.Tax.Decimal
				tax = &t
				updates["tax"] = tax
			}
			if err := validateAmounts(amount, tax); err != nil {
				return err
			}
			if input.Amount != nil || input.Tax != nil {
				updates["total_amount"] = ComputeTotal(amount, tax)
			}
			if input.DueDate != nil {
				updates["due_date"] = input.DueDate
			}
		} else if err := validateAmounts(amount, nil); err != nil {
			return err
		}

		if len(updates) == 0 {
			result = rec
			return nil
		}
		updates["updated_at"] = nextUpdatedAt(h.UpdatedAt)

		res := tx.Model(newRecord(kind)).
			Where("tenant_id = ? AND id = ? AND status = ?", actor.TenantId, id, h.Status).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.ErrConflict("%s %s was modified concurrently, reload and retry", kind.Label(), h.DocumentNumber)
		}

		updated, err := loadDocument(tx, kind, actor.TenantId, id, false)
		if err != nil {
			return err
		}
		if err := createHistory(tx, historyEntry{
			action:      HistoryActionUpdate,
			record:      updated,
			before:      before,
			after:       updated,
			from:        h.Status,
			to:          nextStatus,
			description: kind.Label() + " " + h.DocumentNumber + " updated.",
		}); err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	invalidateApprovalCaches(actor.TenantId)
	return result, nil
}

// DeleteDocument soft-deletes a pending or cancelled document. An order that
// still has invoices or bills referencing it cannot be deleted.
func DeleteDocument(ctx context.Context, kind DocumentKind, id string) error {
	actor, err := utils.ActorFromContext(ctx)
	if err != nil {
		return err
	}
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := loadDocument(tx, kind, actor.TenantId, id, true)
		if err != nil {
			return err
		}
		h := rec.Header()
		if !canEdit(actor, h) {
			return utils.ErrForbidden("only the creator or an admin can delete this %s", strings.ToLower(kind.Label()))
		}
		if !h.Status.IsPending() && h.Status != DocumentStatusCancelled {
			return utils.ErrInvalidTransition("Cannot delete a %s %s", strings.ToLower(string(h.Status)), strings.ToLower(kind.Label()))
		}
		if childKind, ok := kind.ChildKind(); ok {
			n, err := countChildren(tx, childKind, actor.TenantId, id)
			if err != nil {
				return err
			}
			if n > 0 {
				return utils.ErrConflict("%s %s has %d dependent %s document(s) and cannot be deleted",
					kind.Label(), h.DocumentNumber, n, strings.ToLower(childKind.Label()))
			}
		}

		res := tx.Where("tenant_id = ? AND id = ? AND status = ?", actor.TenantId, id, h.Status).Delete(newRecord(kind))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.ErrConflict("%s %s was modified concurrently, reload and retry", kind.Label(), h.DocumentNumber)
		}
		return createHistory(tx, historyEntry{
			action:      HistoryActionDelete,
			record:      rec,
			before:      rec,
			from:        h.Status,
			description: kind.Label() + " " + h.DocumentNumber + " deleted.",
		})
	})
	if err != nil {
		return err
	}
	invalidateApprovalCaches(actor.TenantId)
	return nil
}

func countChildren(tx *gorm.DB, childKind DocumentKind, tenantId string, parentId string) (int64, error) {
	column := "sales_order_id"
	if childKind == DocumentKindVendorBill {
		column = "purchase_order_id"
	}
	var n int64
	err := tx.Model(newRecord(childKind)).
		Where("tenant_id = ? AND "+column+" = ?", tenantId, parentId).
		Count(&n).Error
	return n, err
}

func GetDocument(ctx context.Context, kind DocumentKind, id string) (BillingRecord, error) {
	actor, err := utils.ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return loadDocument(config.GetDB().WithContext(ctx), kind, actor.TenantId, id, false)
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// escapeLike makes user input match literally inside a LIKE pattern using '!' as the escape.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// ListDocuments pages through one kind, newest first.
func ListDocuments(ctx context.Context, kind DocumentKind, filter DocumentFilter, limit int, after *string) (*DocumentPage, error) {
	actor, err := utils.ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	q := config.GetDB().WithContext(ctx).Where("tenant_id = ?", actor.TenantId)
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.ProjectId != nil && *filter.ProjectId != "" {
		q = q.Where("project_id = ?", *filter.ProjectId)
	}
	if filter.Search != nil && strings.TrimSpace(*filter.Search) != "" {
		like := "%" + escapeLike(strings.TrimSpace(*filter.Search)) + "%"
		q = q.Where("(document_number LIKE ? ESCAPE '!' OR counterparty_name LIKE ? ESCAPE '!')", like, like)
	}

	var (
		edges    []Edge[BillingRecord]
		pageInfo *PageInfo
	)
	switch kind {
	case DocumentKindSalesOrder:
		edges, pageInfo, err = fetchPageNewestFirst[SalesOrder](q, limit, after)
	case DocumentKindPurchaseOrder:
		edges, pageInfo, err = fetchPageNewestFirst[PurchaseOrder](q, limit, after)
	case DocumentKindInvoice:
		edges, pageInfo, err = fetchPageNewestFirst[CustomerInvoice](q, limit, after)
	case DocumentKindVendorBill:
		edges, pageInfo, err = fetchPageNewestFirst[VendorBill](q, limit, after)
	default:
		return nil, errUnknownKind
	}
	if err != nil {
		return nil, err
	}
	return &DocumentPage{Edges: edges, PageInfo: pageInfo}, nil
}

// taxedPart exposes the tax columns of an invoice or bill.
func taxedPart(rec BillingRecord) *TaxedDocument {
	switch r := rec.(type) {
	case *CustomerInvoice:
		return &r.TaxedDocument
	case *VendorBill:
		return &r.TaxedDocument
	}
	return &TaxedDocument{}
}

// snapshot copies the record so history keeps the pre-change state.
func snapshot(rec BillingRecord) BillingRecord {
	switch r := rec.(type) {
	case *SalesOrder:
		c := *r
		return &c
	case *PurchaseOrder:
		c := *r
		return &c
	case *CustomerInvoice:
		c := *r
		return &c
	case *VendorBill:
		c := *r
		return &c
	}
	return rec
}
