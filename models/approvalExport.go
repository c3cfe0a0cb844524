package models

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const summarySheet = "Summary"

var pendingHeadings = []string{
	"Document Number", "Project", "Counterparty", "Amount", "Tax", "Total", "Status", "Created By", "Created At",
}

func (d *PendingDocument) cellValues() []interface{} {
	total := d.Amount
	if d.TotalAmount != nil {
		total = *d.TotalAmount
	}
	tax := ""
	if d.Tax != nil {
		tax = d.Tax.StringFixed(2)
	}
	createdBy := ""
	if d.CreatedBy != nil {
		createdBy = d.CreatedBy.Name
	}
	return []interface{}{
		d.DocumentNumber,
		d.ProjectName,
		d.CounterpartyName,
		d.Amount.InexactFloat64(),
		tax,
		total.InexactFloat64(),
		string(d.Status),
		createdBy,
		d.CreatedAt.Format("2006-01-02 15:04"),
	}
}

func writeRow(f *excelize.File, sheet string, rowNo int, values []interface{}) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, rowNo)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

// ExportPendingApprovalsXLSX renders the approval queue as a workbook: a Summary
// sheet followed by one sheet per document kind.
func ExportPendingApprovalsXLSX(ctx context.Context, dir Directory) ([]byte, error) {
	queue, err := ListPendingApprovals(ctx, dir)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	summaryRows := [][]interface{}{
		{"Document Type", "Pending"},
		{DocumentKindSalesOrder.Label(), queue.Summary.SalesOrders},
		{DocumentKindPurchaseOrder.Label(), queue.Summary.PurchaseOrders},
		{DocumentKindInvoice.Label(), queue.Summary.Invoices},
		{DocumentKindVendorBill.Label(), queue.Summary.VendorBills},
		{"Total", queue.Summary.TotalPending},
	}
	for i, row := range summaryRows {
		if err := writeRow(f, summarySheet, i+1, row); err != nil {
			return nil, err
		}
	}

	sheets := []struct {
		kind DocumentKind
		docs []*PendingDocument
	}{
		{DocumentKindSalesOrder, queue.SalesOrders},
		{DocumentKindPurchaseOrder, queue.PurchaseOrders},
		{DocumentKindInvoice, queue.Invoices},
		{DocumentKindVendorBill, queue.VendorBills},
	}
	for _, s := range sheets {
		name := s.kind.Label() + "s"
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
		headings := make([]interface{}, len(pendingHeadings))
		for i, h := range pendingHeadings {
			headings[i] = h
		}
		if err := writeRow(f, name, 1, headings); err != nil {
			return nil, err
		}
		for i, d := range s.docs {
			if err := writeRow(f, name, i+2, d.cellValues()); err != nil {
				return nil, fmt.Errorf("write %s row %d: %w", name, i+2, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
