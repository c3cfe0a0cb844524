package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// VendorBill is a supplier's bill; it may reference the purchase order it settles.
type VendorBill struct {
	DocumentHeader
	TaxedDocument
	PurchaseOrderId *string `gorm:"size:36;index" json:"purchaseOrderId"`
}

func (b *VendorBill) Header() *DocumentHeader { return &b.DocumentHeader }
func (b *VendorBill) DocumentKind() DocumentKind { return DocumentKindVendorBill }
func (b *VendorBill) PayableTotal() decimal.Decimal { return b.TotalAmount }

func (b *VendorBill) AfterFind(tx *gorm.DB) error {
	b.Kind = DocumentKindVendorBill
	return nil
}
