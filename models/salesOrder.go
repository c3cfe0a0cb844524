package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SalesOrder struct {
	DocumentHeader
}

func (o *SalesOrder) Header() *DocumentHeader { return &o.DocumentHeader }
func (o *SalesOrder) DocumentKind() DocumentKind { return DocumentKindSalesOrder }
func (o *SalesOrder) PayableTotal() decimal.Decimal { return o.Amount }

func (o *SalesOrder) AfterFind(tx *gorm.DB) error {
	o.Kind = DocumentKindSalesOrder
	return nil
}
