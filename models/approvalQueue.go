package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/project_billing/config"
	"github.com/mmdatafocus/project_billing/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

type PartyRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// PendingDocument is one row of the approval queue.
type PendingDocument struct {
	Kind              DocumentKind     `json:"kind"`
	ID                string           `json:"id"`
	DocumentNumber    string           `json:"documentNumber"`
	ProjectId         string           `json:"projectId"`
	ProjectName       string           `json:"projectName"`
	CounterpartyName  string           `json:"counterpartyName"`
	CounterpartyEmail string           `json:"counterpartyEmail"`
	Amount            decimal.Decimal  `json:"amount"`
	Tax               *decimal.Decimal `json:"tax,omitempty"`
	TotalAmount       *decimal.Decimal `json:"totalAmount,omitempty"`
	DueDate           *time.Time       `json:"dueDate,omitempty"`
	Status            DocumentStatus   `json:"status"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
	CreatedBy         *PartyRef        `json:"createdBy"`
}

type ApprovalSummary struct {
	SalesOrders    int `json:"salesOrders"`
	PurchaseOrders int `json:"purchaseOrders"`
	Invoices       int `json:"invoices"`
	VendorBills    int `json:"vendorBills"`
	TotalPending   int `json:"totalPending"`
}

type PendingApprovals struct {
	SalesOrders    []*PendingDocument `json:"salesOrders"`
	PurchaseOrders []*PendingDocument `json:"purchaseOrders"`
	Invoices       []*PendingDocument `json:"invoices"`
	VendorBills    []*PendingDocument `json:"vendorBills"`
	Summary        ApprovalSummary    `json:"summary"`
}

type MonthlyDecisions struct {
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
}

type ApprovalStats struct {
	Pending   ApprovalSummary  `json:"pending"`
	ThisMonth MonthlyDecisions `json:"thisMonth"`
}

// Directory resolves display data for queue rows. The HTTP layer passes its
// per-request dataloaders; DBDirectory is the plain fallback.
type Directory interface {
	ProjectNames(ctx context.Context, ids []string) (map[string]string, error)
	Users(ctx context.Context, ids []string) (map[string]*PartyRef, error)
}

type DBDirectory struct{}

func (DBDirectory) ProjectNames(ctx context.Context, ids []string) (map[string]string, error) {
	projects, err := MapProjects(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(projects))
	for id, p := range projects {
		names[id] = p.Name
	}
	return names, nil
}

func (DBDirectory) Users(ctx context.Context, ids []string) (map[string]*PartyRef, error) {
	return MapUserRefs(ctx, ids)
}

// MapProjects loads projects of the actor's tenant by id.
func MapProjects(ctx context.Context, ids []string) (map[string]*Project, error) {
	result := make(map[string]*Project, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	tenantId, _ := utils.GetTenantIdFromContext(ctx)
	var projects []*Project
	if err := config.GetDB().WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantId, ids).
		Find(&projects).Error; err != nil {
		return nil, err
	}
	for _, p := range projects {
		result[p.ID] = p
	}
	return result, nil
}

// MapUserRefs loads id, name and email for users of the actor's tenant.
func MapUserRefs(ctx context.Context, ids []string) (map[string]*PartyRef, error) {
	result := make(map[string]*PartyRef, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	tenantId, _ := utils.GetTenantIdFromContext(ctx)
	var users []User
	if err := config.GetDB().WithContext(ctx).
		Select("id", "name", "email").
		Where("tenant_id = ? AND id IN ?", tenantId, ids).
		Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		result[u.ID] = &PartyRef{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	return result, nil
}

func requireApprover(ctx context.Context) (utils.Actor, error) {
	actor, err := utils.ActorFromContext(ctx)
	if err != nil {
		return actor, err
	}
	if !UserRole(actor.Role).CanApprove() {
		return actor, utils.ErrForbidden("only Sales/Finance or Admin users can view pending approvals")
	}
	return actor, nil
}

func findPending[T any, PT recordPtr[T]](db *gorm.DB, tenantId string) ([]BillingRecord, error) {
	var rows []T
	err := db.Where("tenant_id = ? AND status IN ?", tenantId, PendingStatuses).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	records := make([]BillingRecord, 0, len(rows))
	for i := range rows {
		records = append(records, PT(&rows[i]))
	}
	return records, nil
}

func pendingOfKind(db *gorm.DB, kind DocumentKind, tenantId string) ([]BillingRecord, error) {
	switch kind {
	case DocumentKindSalesOrder:
		return findPending[SalesOrder](db, tenantId)
	case DocumentKindPurchaseOrder:
		return findPending[PurchaseOrder](db, tenantId)
	case DocumentKindInvoice:
		return findPending[CustomerInvoice](db, tenantId)
	case DocumentKindVendorBill:
		return findPending[VendorBill](db, tenantId)
	}
	return nil, errUnknownKind
}

// ListPendingApprovals returns every DRAFT or SENT document of the tenant, grouped by kind,
// newest first, with project and creator resolved through dir.
func ListPendingApprovals(ctx context.Context, dir Directory) (*PendingApprovals, error) {
	ctx, span := tracer.Start(ctx, "billing.pendingApprovals")
	defer span.End()

	actor, err := requireApprover(ctx)
	if err != nil {
		return nil, err
	}
	if dir == nil {
		dir = DBDirectory{}
	}
	db := config.GetDB().WithContext(ctx)

	grouped := make(map[DocumentKind][]BillingRecord, len(AllDocumentKinds))
	var projectIds, userIds []string
	for _, kind := range AllDocumentKinds {
		records, err := pendingOfKind(db, kind, actor.TenantId)
		if err != nil {
			return nil, err
		}
		grouped[kind] = records
		for _, rec := range records {
			projectIds = append(projectIds, rec.Header().ProjectId)
			userIds = append(userIds, rec.Header().CreatedById)
		}
	}

	projectNames, err := dir.ProjectNames(ctx, utils.UniqueSlice(projectIds))
	if err != nil {
		return nil, err
	}
	users, err := dir.Users(ctx, utils.UniqueSlice(userIds))
	if err != nil {
		return nil, err
	}

	result := &PendingApprovals{
		SalesOrders:    toPendingDocuments(grouped[DocumentKindSalesOrder], projectNames, users),
		PurchaseOrders: toPendingDocuments(grouped[DocumentKindPurchaseOrder], projectNames, users),
		Invoices:       toPendingDocuments(grouped[DocumentKindInvoice], projectNames, users),
		VendorBills:    toPendingDocuments(grouped[DocumentKindVendorBill], projectNames, users),
	}
	result.Summary = ApprovalSummary{
		SalesOrders:    len(result.SalesOrders),
		PurchaseOrders: len(result.PurchaseOrders),
		Invoices:       len(result.Invoices),
		VendorBills:    len(result.VendorBills),
	}
	result.Summary.TotalPending = result.Summary.SalesOrders + result.Summary.PurchaseOrders +
		result.Summary.Invoices + result.Summary.VendorBills
	span.SetAttributes(attribute.Int("billing.pending", result.Summary.TotalPending))
	return result, nil
}

func toPendingDocuments(records []BillingRecord, projectNames map[string]string, users map[string]*PartyRef) []*PendingDocument {
	docs := make([]*PendingDocument, 0, len(records))
	for _, rec := range records {
		h := rec.Header()
		doc := &PendingDocument{
			Kind:              rec.DocumentKind(),
			ID:                h.ID,
			DocumentNumber:    h.DocumentNumber,
			ProjectId:         h.ProjectId,
			ProjectName:       projectNames[h.ProjectId],
			CounterpartyName:  h.CounterpartyName,
			CounterpartyEmail: h.CounterpartyEmail,
			Amount:            h.Amount,
			Status:            h.Status,
			CreatedAt:         h.CreatedAt,
			UpdatedAt:         h.UpdatedAt,
			CreatedBy:         users[h.CreatedById],
		}
		if doc.CreatedBy == nil {
			doc.CreatedBy = &PartyRef{ID: h.CreatedById}
		}
		if rec.DocumentKind().HasPaymentStatus() {
			taxed := taxedPart(rec)
			total := taxed.TotalAmount
			doc.Tax = taxed.Tax
			doc.TotalAmount = &total
			doc.DueDate = taxed.DueDate
		}
		docs = append(docs, doc)
	}
	return docs
}

func approvalStatsCacheKey(tenantId string) string {
	return "ApprovalStats:" + tenantId
}

func invalidateApprovalCaches(tenantId string) {
	if err := config.RemoveRedisKey(approvalStatsCacheKey(tenantId)); err != nil {
		config.GetLogger().WithField("tenant_id", tenantId).Warn("approval stats cache invalidation failed: " + err.Error())
	}
}

// monthStart is the first instant of now's month in loc.
func monthStart(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
}

// GetApprovalStats counts pending documents and this month's decisions. A decision
// counts when the document is APPROVED or CANCELLED and was last updated this month.
func GetApprovalStats(ctx context.Context) (*ApprovalStats, error) {
	ctx, span := tracer.Start(ctx, "billing.approvalStats")
	defer span.End()

	actor, err := requireApprover(ctx)
	if err != nil {
		return nil, err
	}

	ttl := config.ApprovalStatsCacheTTL()
	key := approvalStatsCacheKey(actor.TenantId)
	if ttl > 0 {
		var cached ApprovalStats
		if ok, err := config.GetRedisObject(key, &cached); err == nil && ok {
			return &cached, nil
		}
	}

	db := config.GetDB().WithContext(ctx)
	since := monthStart(time.Now(), config.AppLocation()).UTC()

	stats := &ApprovalStats{}
	for _, kind := range AllDocumentKinds {
		var pending, approved, rejected int64
		base := func() *gorm.DB {
			return db.Model(newRecord(kind)).Where("tenant_id = ?", actor.TenantId)
		}
		if err := base().Where("status IN ?", PendingStatuses).Count(&pending).Error; err != nil {
			return nil, err
		}
		if err := base().Where("status = ? AND updated_at >= ?", DocumentStatusApproved, since).Count(&approved).Error; err != nil {
			return nil, err
		}
		if err := base().Where("status = ? AND updated_at >= ?", DocumentStatusCancelled, since).Count(&rejected).Error; err != nil {
			return nil, err
		}
		switch kind {
		case DocumentKindSalesOrder:
			stats.Pending.SalesOrders = int(pending)
		case DocumentKindPurchaseOrder:
			stats.Pending.PurchaseOrders = int(pending)
		case DocumentKindInvoice:
			stats.Pending.Invoices = int(pending)
		case DocumentKindVendorBill:
			stats.Pending.VendorBills = int(pending)
		}
		stats.Pending.TotalPending += int(pending)
		stats.ThisMonth.Approved += approved
		stats.ThisMonth.Rejected += rejected
	}

	if ttl > 0 {
		if err := config.SetRedisObject(key, stats, ttl); err != nil {
			config.GetLogger().WithField("tenant_id", actor.TenantId).Warn("approval stats cache write failed: " + err.Error())
		}
	}
	return stats, nil
}
