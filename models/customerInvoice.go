package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CustomerInvoice bills a customer; it may reference the sales order it was raised from.
type CustomerInvoice struct {
	DocumentHeader
	TaxedDocument
	SalesOrderId *string `gorm:"size:36;index" json:"salesOrderId"`
}

func (i *CustomerInvoice) Header() *DocumentHeader { return &i.DocumentHeader }
func (i *CustomerInvoice) DocumentKind() DocumentKind { return DocumentKindInvoice }
func (i *CustomerInvoice) PayableTotal() decimal.Decimal { return i.TotalAmount }

func (i *CustomerInvoice) AfterFind(tx *gorm.DB) error {
	i.Kind = DocumentKindInvoice
	return nil
}
