package models_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/mmdatafocus/project_billing/config"
	"github.com/mmdatafocus/project_billing/models"
	"github.com/mmdatafocus/project_billing/utils"
)

func TestCreateDocument_AssignsSequentialNumbers(t *testing.T) {
	f := newFixture(t)
	year := time.Now().In(config.AppLocation()).Year()

	first := f.create(t, f.pm, models.DocumentKindSalesOrder, models.NewDocument{})
	second := f.create(t, f.pm, models.DocumentKindSalesOrder, models.NewDocument{})
	inv := f.create(t, f.pm, models.DocumentKindInvoice, models.NewDocument{})

	if want := fmt.Sprintf("SO-%d-0001", year); first.Header().DocumentNumber != want {
		t.Fatalf("first number = %s, want %s", first.Header().DocumentNumber, want)
	}
	if want := fmt.Sprintf("SO-%d-0002", year); second.Header().DocumentNumber != want {
		t.Fatalf("second number = %s, want %s", second.Header().DocumentNumber, want)
	}
	if want := fmt.Sprintf("INV-%d-0001", year); inv.Header().DocumentNumber != want {
		t.Fatalf("invoice number = %s, want %s", inv.Header().DocumentNumber, want)
	}

	// deleted numbers are not reissued
	if err := models.DeleteDocument(f.as(f.pm), models.DocumentKindSalesOrder, second.Header().ID); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	third := f.create(t, f.pm, models.DocumentKindSalesOrder, models.NewDocument{})
	if want := fmt.Sprintf("SO-%d-0003", year); third.Header().DocumentNumber != want {
		t.Fatalf("third number = %s, want %s", third.Header().DocumentNumber, want)
	}
}

func TestCreateDocument_Permissions(t *testing.T) {
	f := newFixture(t)
	other, err := models.CreateProject(f.as(f.admin), models.NewProject{Name: "Internal Tools"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	_, err = models.CreateDocument(f.as(f.member), models.DocumentKindSalesOrder, models.NewDocument{
		ProjectId: f.project.ID, CounterpartyName: "Acme", Amount: amount("1"),
	})
	if utils.KindOf(err) != utils.KindForbidden {
		t.Fatalf("team member: expected forbidden, got %v", err)
	}

	_, err = models.CreateDocument(f.as(f.pm), models.DocumentKindSalesOrder, models.NewDocument{
		ProjectId: other.ID, CounterpartyName: "Acme", Amount: amount("1"),
	})
	if utils.KindOf(err) != utils.KindForbidden {
		t.Fatalf("pm on foreign project: expected forbidden, got %v", err)
	}

	if _, err := models.CreateDocument(f.as(f.finance), models.DocumentKindPurchaseOrder, models.NewDocument{
		ProjectId: other.ID, CounterpartyName: "Supplier Co", Amount: amount("1"),
	}); err != nil {
		t.Fatalf("finance create: %v", err)
	}
}

func TestCreateDocument_Validation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name  string
		kind  models.DocumentKind
		input models.NewDocument
	}{
		{"missing counterparty", models.DocumentKindSalesOrder, models.NewDocument{ProjectId: f.project.ID, Amount: amount("1")}},
		{"missing amount", models.DocumentKindSalesOrder, models.NewDocument{ProjectId: f.project.ID, CounterpartyName: "A"}},
		{"negative amount", models.DocumentKindInvoice, models.NewDocument{ProjectId: f.project.ID, CounterpartyName: "A", Amount: amount("-5")}},
		{"tax on order", models.DocumentKindSalesOrder, models.NewDocument{ProjectId: f.project.ID, CounterpartyName: "A", Amount: amount("1"), Tax: amount("1")}},
		{"approved status", models.DocumentKindSalesOrder, models.NewDocument{ProjectId: f.project.ID, CounterpartyName: "A", Amount: amount("1"), Status: "APPROVED"}},
		{"unknown project", models.DocumentKindSalesOrder, models.NewDocument{ProjectId: "nope", CounterpartyName: "A", Amount: amount("1")}},
		{"bad email", models.DocumentKindSalesOrder, models.NewDocument{ProjectId: f.project.ID, CounterpartyName: "A", CounterpartyEmail: "not-an-email", Amount: amount("1")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := models.CreateDocument(f.as(f.admin), tc.kind, tc.input)
			if utils.KindOf(err) != utils.KindValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateDocument_InvoiceTotalAndParent(t *testing.T) {
	f := newFixture(t)
	so := f.create(t, f.pm, models.DocumentKindSalesOrder, models.NewDocument{})
	soId := so.Header().ID

	rec := f.create(t, f.pm, models.DocumentKindInvoice, models.NewDocument{
		Amount: amount("250.50"), Tax: amount("12.25"), SalesOrderId: &soId,
	})
	inv, ok := rec.(*models.CustomerInvoice)
	if !ok {
		t.Fatalf("unexpected record type %T", rec)
	}
	assertDecimal(t, "totalAmount", inv.TotalAmount, "262.75")
	if inv.SalesOrderId == nil || *inv.SalesOrderId != soId {
		t.Fatalf("parent not linked")
	}

	other, err := models.CreateProject(f.as(f.pm), models.NewProject{Name: "Mobile App"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	_, err = models.CreateDocument(f.as(f.pm), models.DocumentKindInvoice, models.NewDocument{
		ProjectId: other.ID, CounterpartyName: "Acme", Amount: amount("1"), SalesOrderId: &soId,
	})
	if utils.KindOf(err) != utils.KindValidation {
		t.Fatalf("cross-project parent: expected validation error, got %v", err)
	}

	err = models.DeleteDocument(f.as(f.pm), models.DocumentKindSalesOrder, soId)
	if utils.KindOf(err) != utils.KindConflict {
		t.Fatalf("deleting a parent with invoices: expected conflict, got %v", err)
	}
}

func TestUpdateDocument_RecomputesTotalWhilePending(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t, f.finance, models.DocumentKindVendorBill, models.NewDocument{Amount: amount("100"), Tax: amount("5")})
	id := rec.Header().ID

	updated, err := models.UpdateDocument(f.as(f.finance), models.DocumentKindVendorBill, id, models.DocumentUpdate{Amount: amount("200")})
	if err != nil {
		t.Fatalf("UpdateDocument: %v", err)
	}
	assertDecimal(t, "totalAmount", updated.(*models.VendorBill).TotalAmount, "205")

	_, err = models.UpdateDocument(f.as(f.pm), models.DocumentKindVendorBill, id, models.DocumentUpdate{Amount: amount("1")})
	if utils.KindOf(err) != utils.KindForbidden {
		t.Fatalf("non-owner edit: expected forbidden, got %v", err)
	}

	if _, err := models.ApproveDocument(f.as(f.admin), models.DocumentKindVendorBill, id); err != nil {
		t.Fatalf("approve: %v", err)
	}
	_, err = models.UpdateDocument(f.as(f.finance), models.DocumentKindVendorBill, id, models.DocumentUpdate{Amount: amount("1")})
	if utils.KindOf(err) != utils.KindInvalidTransition {
		t.Fatalf("edit after approval: expected invalid transition, got %v", err)
	}
}

func TestDeleteDocument_OnlyPendingOrCancelled(t *testing.T) {
	f := newFixture(t)
	po := f.create(t, f.finance, models.DocumentKindPurchaseOrder, models.NewDocument{})
	if _, err := models.ApproveDocument(f.as(f.admin), models.DocumentKindPurchaseOrder, po.Header().ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	err := models.DeleteDocument(f.as(f.finance), models.DocumentKindPurchaseOrder, po.Header().ID)
	if utils.KindOf(err) != utils.KindInvalidTransition {
		t.Fatalf("deleting approved: expected invalid transition, got %v", err)
	}
	if _, err := models.RejectDocument(f.as(f.admin), models.DocumentKindPurchaseOrder, po.Header().ID, nil); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if err := models.DeleteDocument(f.as(f.finance), models.DocumentKindPurchaseOrder, po.Header().ID); err != nil {
		t.Fatalf("deleting cancelled: %v", err)
	}
	_, err = models.GetDocument(f.as(f.finance), models.DocumentKindPurchaseOrder, po.Header().ID)
	if utils.KindOf(err) != utils.KindNotFound {
		t.Fatalf("expected deleted document to be gone, got %v", err)
	}
}

func TestListDocuments_PagesNewestFirst(t *testing.T) {
	f := newFixture(t)
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, f.create(t, f.pm, models.DocumentKindSalesOrder, models.NewDocument{}).Header().ID)
	}

	page, err := models.ListDocuments(f.as(f.admin), models.DocumentKindSalesOrder, models.DocumentFilter{}, 2, nil)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(page.Edges) != 2 || !*page.PageInfo.HasNextPage {
		t.Fatalf("unexpected first page: %d edges", len(page.Edges))
	}
	if page.Edges[0].Node.Header().ID != ids[4] || page.Edges[1].Node.Header().ID != ids[3] {
		t.Fatalf("first page is not newest first")
	}

	var seen []string
	after := &page.PageInfo.EndCursor
	for _, e := range page.Edges {
		seen = append(seen, e.Node.Header().ID)
	}
	for {
		next, err := models.ListDocuments(f.as(f.admin), models.DocumentKindSalesOrder, models.DocumentFilter{}, 2, after)
		if err != nil {
			t.Fatalf("ListDocuments: %v", err)
		}
		for _, e := range next.Edges {
			seen = append(seen, e.Node.Header().ID)
		}
		if !*next.PageInfo.HasNextPage {
			break
		}
		after = &next.PageInfo.EndCursor
	}
	if len(seen) != 5 {
		t.Fatalf("paged %d documents, want 5", len(seen))
	}

	status := models.DocumentStatusApproved
	if _, err := models.ApproveDocument(f.as(f.finance), models.DocumentKindSalesOrder, ids[0]); err != nil {
		t.Fatalf("approve: %v", err)
	}
	filtered, err := models.ListDocuments(f.as(f.admin), models.DocumentKindSalesOrder, models.DocumentFilter{Status: &status}, 10, nil)
	if err != nil {
		t.Fatalf("ListDocuments filtered: %v", err)
	}
	if len(filtered.Edges) != 1 || filtered.Edges[0].Node.Header().ID != ids[0] {
		t.Fatalf("status filter returned %d edges", len(filtered.Edges))
	}
}

func TestListDocuments_SearchMatchesWildcardsLiterally(t *testing.T) {
	f := newFixture(t)
	literal := f.create(t, f.pm, models.DocumentKindSalesOrder, models.NewDocument{CounterpartyName: "Acme_Ltd 100%"})
	f.create(t, f.pm, models.DocumentKindSalesOrder, models.NewDocument{CounterpartyName: "AcmeXLtd 1000"})

	cases := []struct {
		search string
		want   int
	}{
		{"Acme_", 1},
		{"100%", 1},
		{"Acme", 2},
		{"Acme!", 0},
	}
	for _, tc := range cases {
		search := tc.search
		page, err := models.ListDocuments(f.as(f.admin), models.DocumentKindSalesOrder, models.DocumentFilter{Search: &search}, 10, nil)
		if err != nil {
			t.Fatalf("ListDocuments(%q): %v", tc.search, err)
		}
		if len(page.Edges) != tc.want {
			t.Fatalf("search %q matched %d documents, want %d", tc.search, len(page.Edges), tc.want)
		}
		if tc.want == 1 && page.Edges[0].Node.Header().ID != literal.Header().ID {
			t.Fatalf("search %q matched the wrong document", tc.search)
		}
	}
}
