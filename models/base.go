package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DocumentHeader holds the columns every billing document shares.
type DocumentHeader struct {
	ID                string          `gorm:"primaryKey;size:36" json:"id"`
	TenantId          string          `gorm:"size:64;not null;index:,unique,composite:tenant_number;index:,composite:tenant_status" json:"tenantId"`
	DocumentNumber    string          `gorm:"size:32;not null;index:,unique,composite:tenant_number" json:"documentNumber"`
	SequenceYear      int             `gorm:"not null" json:"sequenceYear"`
	SequenceNo        int             `gorm:"not null" json:"sequenceNo"`
	ProjectId         string          `gorm:"size:36;not null;index" json:"projectId"`
	CounterpartyName  string          `gorm:"size:255;not null" json:"counterpartyName"`
	CounterpartyEmail string          `gorm:"size:255" json:"counterpartyEmail"`
	Amount            decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"amount"`
	Status            DocumentStatus  `gorm:"size:16;not null;index:,composite:tenant_status" json:"status"`
	Notes             string          `gorm:"type:text" json:"notes"`
	CreatedById       string          `gorm:"size:36;not null;index" json:"createdById"`
	ApprovedById      *string         `gorm:"size:36" json:"approvedById"`
	ApprovedAt        *time.Time      `json:"approvedAt"`
	RejectedById      *string         `gorm:"size:36" json:"rejectedById"`
	RejectedAt        *time.Time      `json:"rejectedAt"`
	RejectionReason   *string         `gorm:"type:text" json:"rejectionReason"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
	DeletedAt         gorm.DeletedAt  `gorm:"index" json:"-"`

	Kind DocumentKind `gorm:"-" json:"kind"`
}

func (h *DocumentHeader) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}

// BillingRecord is implemented by exactly the four document kinds below; see newRecord.
type BillingRecord interface {
	Header() *DocumentHeader
	DocumentKind() DocumentKind
	// PayableTotal is what rolls up and what notifications quote: totalAmount
	// for invoices and bills, amount for orders.
	PayableTotal() decimal.Decimal
}

// newRecord returns an empty pointer of the concrete type for kind.
func newRecord(kind DocumentKind) BillingRecord {
	switch kind {
	case DocumentKindSalesOrder:
		return &SalesOrder{}
	case DocumentKindPurchaseOrder:
		return &PurchaseOrder{}
	case DocumentKindInvoice:
		return &CustomerInvoice{}
	case DocumentKindVendorBill:
		return &VendorBill{}
	}
	panic("models: unknown document kind " + string(kind))
}

// TaxedDocument is the extra state shared by invoices and bills.
type TaxedDocument struct {
	Tax         *decimal.Decimal `gorm:"type:decimal(20,4)" json:"tax"`
	TotalAmount decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"totalAmount"`
	DueDate     *time.Time       `json:"dueDate"`
}

// ComputeTotal returns amount + (tax or 0).
func ComputeTotal(amount decimal.Decimal, tax *decimal.Decimal) decimal.Decimal {
	if tax == nil {
		return amount
	}
	return amount.Add(*tax)
}

// nextUpdatedAt keeps updatedAt strictly increasing at millisecond precision,
// which is the coarsest precision of the supported dialects.
func nextUpdatedAt(prev time.Time) time.Time {
	now := time.Now().UTC().Truncate(time.Millisecond)
	floor := prev.UTC().Truncate(time.Millisecond).Add(time.Millisecond)
	if now.Before(floor) {
		return floor
	}
	return now
}
