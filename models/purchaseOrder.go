package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PurchaseOrder struct {
	DocumentHeader
}

func (o *PurchaseOrder) Header() *DocumentHeader { return &o.DocumentHeader }
func (o *PurchaseOrder) DocumentKind() DocumentKind { return DocumentKindPurchaseOrder }
func (o *PurchaseOrder) PayableTotal() decimal.Decimal { return o.Amount }

func (o *PurchaseOrder) AfterFind(tx *gorm.DB) error {
	o.Kind = DocumentKindPurchaseOrder
	return nil
}
