package models_test

import (
	"testing"

	"github.com/mmdatafocus/project_billing/models"
	"github.com/mmdatafocus/project_billing/utils"
)

func TestApproveDocument_ApprovesAndQueuesNotification(t *testing.T) {
	f := newFixture(t)
	inv := f.create(t, f.pm, models.DocumentKindInvoice, models.NewDocument{Amount: amount("100"), Tax: amount("10")})

	got, err := models.ApproveDocument(f.as(f.finance), models.DocumentKindInvoice, inv.Header().ID)
	if err != nil {
		t.Fatalf("ApproveDocument: %v", err)
	}
	h := got.Header()
	if h.Status != models.DocumentStatusApproved {
		t.Fatalf("status = %s, want APPROVED", h.Status)
	}
	if h.ApprovedById == nil || *h.ApprovedById != f.finance.ID || h.ApprovedAt == nil {
		t.Fatalf("approver not recorded: %+v", h)
	}
	if !h.UpdatedAt.After(inv.Header().UpdatedAt) {
		t.Fatalf("updatedAt did not move forward: %s -> %s", inv.Header().UpdatedAt, h.UpdatedAt)
	}

	rows := f.notifications(t, h.ID)
	if len(rows) != 1 {
		t.Fatalf("expected 1 queued notification, got %d", len(rows))
	}
	if rows[0].PublishStatus != models.OutboxPublishStatusPending || rows[0].Event != models.NotificationEventApproved {
		t.Fatalf("unexpected outbox row: %+v", rows[0])
	}
	n, err := rows[0].Notification()
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if n.RecipientEmail != f.pm.Email || n.RecipientName != f.pm.Name {
		t.Fatalf("recipient = %s <%s>", n.RecipientName, n.RecipientEmail)
	}
	if n.DocumentType != "Invoice" || n.ProjectName != f.project.Name || n.ApproverLabel != "Finance Team" {
		t.Fatalf("unexpected payload: %+v", n)
	}
	assertDecimal(t, "notification amount", n.Amount, "110")
	if n.Reason != nil {
		t.Fatalf("approval should carry no reason, got %q", *n.Reason)
	}

	history, err := models.GetDocumentHistory(f.as(f.admin), models.DocumentKindInvoice, h.ID)
	if err != nil {
		t.Fatalf("GetDocumentHistory: %v", err)
	}
	if len(history) != 2 || history[1].Action != models.HistoryActionApprove {
		t.Fatalf("unexpected history: %+v", history)
	}
	if history[1].StatusBefore != models.DocumentStatusDraft || history[1].StatusAfter != models.DocumentStatusApproved {
		t.Fatalf("history statuses = %s -> %s", history[1].StatusBefore, history[1].StatusAfter)
	}
}

func TestApproveDocument_RoleGate(t *testing.T) {
	f := newFixture(t)
	so := f.create(t, f.pm, models.DocumentKindSalesOrder, models.NewDocument{})

	for _, u := range []*models.User{f.member, f.pm} {
		_, err := models.ApproveDocument(f.as(u), models.DocumentKindSalesOrder, so.Header().ID)
		if utils.KindOf(err) != utils.KindForbidden {
			t.Fatalf("%s: expected forbidden, got %v", u.Role, err)
		}
	}
	reloaded, err := models.GetDocument(f.as(f.admin), models.DocumentKindSalesOrder, so.Header().ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if reloaded.Header().Status != models.DocumentStatusDraft {
		t.Fatalf("status changed to %s", reloaded.Header().Status)
	}
	if rows := f.notifications(t, so.Header().ID); len(rows) != 0 {
		t.Fatalf("forbidden request queued %d notifications", len(rows))
	}
}

func TestApproveDocument_RoleGateBeforeLookup(t *testing.T) {
	f := newFixture(t)
	for _, u := range []*models.User{f.member, f.pm} {
		_, err := models.ApproveDocument(f.as(u), models.DocumentKindInvoice, "does-not-exist")
		if utils.KindOf(err) != utils.KindForbidden {
			t.Fatalf("%s approving a missing id: expected forbidden, got %v", u.Role, err)
		}
		_, err = models.RejectDocument(f.as(u), models.DocumentKindInvoice, "does-not-exist", nil)
		if utils.KindOf(err) != utils.KindForbidden {
			t.Fatalf("%s rejecting a missing id: expected forbidden, got %v", u.Role, err)
		}
	}
}

func TestApproveDocument_AlreadyApproved(t *testing.T) {
	f := newFixture(t)
	po := f.create(t, f.finance, models.DocumentKindPurchaseOrder, models.NewDocument{})
	if _, err := models.ApproveDocument(f.as(f.finance), models.DocumentKindPurchaseOrder, po.Header().ID); err != nil {
		t.Fatalf("first approve: %v", err)
	}
	_, err := models.ApproveDocument(f.as(f.admin), models.DocumentKindPurchaseOrder, po.Header().ID)
	if utils.KindOf(err) != utils.KindInvalidTransition {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if err.Error() != "Purchase Order is already approved" {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestApproveDocument_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := models.ApproveDocument(f.as(f.admin), models.DocumentKindVendorBill, "missing")
	if utils.KindOf(err) != utils.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestApproveDocument_OtherTenantNotFound(t *testing.T) {
	f := newFixture(t)
	so := f.create(t, f.pm, models.DocumentKindSalesOrder, models.NewDocument{})

	outsider := f.user(t, "outsider", "Olga Outsider", models.UserRoleAdmin)
	ctx := utils.WithActor(f.as(outsider), utils.Actor{
		TenantId: "tenant-b", UserId: outsider.ID, Name: outsider.Name, Role: string(outsider.Role),
	})
	_, err := models.ApproveDocument(ctx, models.DocumentKindSalesOrder, so.Header().ID)
	if utils.KindOf(err) != utils.KindNotFound {
		t.Fatalf("expected not found across tenants, got %v", err)
	}
}

func TestRejectDocument_StoresReasonAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	vb := f.create(t, f.finance, models.DocumentKindVendorBill, models.NewDocument{Status: "SENT"})
	reason := "  duplicate bill  "

	first, err := models.RejectDocument(f.as(f.finance), models.DocumentKindVendorBill, vb.Header().ID, &reason)
	if err != nil {
		t.Fatalf("RejectDocument: %v", err)
	}
	h := first.Header()
	if h.Status != models.DocumentStatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", h.Status)
	}
	if h.RejectionReason == nil || *h.RejectionReason != "duplicate bill" {
		t.Fatalf("rejection reason = %v", h.RejectionReason)
	}
	if h.RejectedById == nil || *h.RejectedById != f.finance.ID {
		t.Fatalf("rejecter not recorded")
	}

	second, err := models.RejectDocument(f.as(f.admin), models.DocumentKindVendorBill, vb.Header().ID, nil)
	if err != nil {
		t.Fatalf("second reject: %v", err)
	}
	if !second.Header().UpdatedAt.Equal(h.UpdatedAt) {
		t.Fatalf("no-op reject wrote the row: %s -> %s", h.UpdatedAt, second.Header().UpdatedAt)
	}

	rows := f.notifications(t, h.ID)
	if len(rows) != 1 {
		t.Fatalf("expected exactly 1 notification, got %d", len(rows))
	}
	n, err := rows[0].Notification()
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if n.Event != models.NotificationEventRejected || n.Reason == nil || *n.Reason != "duplicate bill" {
		t.Fatalf("unexpected payload: %+v", n)
	}
	if n.RecipientEmail != f.finance.Email {
		t.Fatalf("recipient = %s, want creator %s", n.RecipientEmail, f.finance.Email)
	}

	_, err = models.ApproveDocument(f.as(f.admin), models.DocumentKindVendorBill, h.ID)
	if utils.KindOf(err) != utils.KindInvalidTransition {
		t.Fatalf("approving a cancelled bill: expected invalid transition, got %v", err)
	}
}

func TestRejectDocument_ApprovedCanBeRejected(t *testing.T) {
	f := newFixture(t)
	so := f.create(t, f.pm, models.DocumentKindSalesOrder, models.NewDocument{})
	if _, err := models.ApproveDocument(f.as(f.finance), models.DocumentKindSalesOrder, so.Header().ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	got, err := models.RejectDocument(f.as(f.finance), models.DocumentKindSalesOrder, so.Header().ID, nil)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got.Header().Status != models.DocumentStatusCancelled {
		t.Fatalf("status = %s", got.Header().Status)
	}
	if rows := f.notifications(t, so.Header().ID); len(rows) != 2 {
		t.Fatalf("expected approve and reject notifications, got %d", len(rows))
	}
}

func TestApproveDocument_CreatorWithoutEmailSkipsNotification(t *testing.T) {
	f := newFixture(t)
	so := f.create(t, f.pm, models.DocumentKindSalesOrder, models.NewDocument{})
	if err := f.db.Model(&models.User{}).Where("id = ?", f.pm.ID).Update("email", "").Error; err != nil {
		t.Fatalf("clear email: %v", err)
	}
	if _, err := models.ApproveDocument(f.as(f.finance), models.DocumentKindSalesOrder, so.Header().ID); err != nil {
		t.Fatalf("approve should not fail without recipient: %v", err)
	}
	if rows := f.notifications(t, so.Header().ID); len(rows) != 0 {
		t.Fatalf("expected no notification, got %d", len(rows))
	}
}

func TestSetPaymentStatus_RollsUpInvoiceRevenue(t *testing.T) {
	f := newFixture(t)
	inv := f.create(t, f.pm, models.DocumentKindInvoice, models.NewDocument{Amount: amount("100"), Tax: amount("10")})
	id := inv.Header().ID

	if _, err := models.ApproveDocument(f.as(f.finance), models.DocumentKindInvoice, id); err != nil {
		t.Fatalf("approve: %v", err)
	}
	assertDecimal(t, "revenue after approve", f.reloadProject(t).Revenue, "0")

	if _, err := models.SetPaymentStatus(f.as(f.finance), models.DocumentKindInvoice, id, models.DocumentStatusPaid); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	assertDecimal(t, "revenue after paid", f.reloadProject(t).Revenue, "110")

	// a repeated request is a no-op and must not double count
	if _, err := models.SetPaymentStatus(f.as(f.finance), models.DocumentKindInvoice, id, models.DocumentStatusPaid); err != nil {
		t.Fatalf("repeat mark paid: %v", err)
	}
	assertDecimal(t, "revenue after repeat", f.reloadProject(t).Revenue, "110")

	_, err := models.SetPaymentStatus(f.as(f.finance), models.DocumentKindInvoice, id, models.DocumentStatusApproved)
	if utils.KindOf(err) != utils.KindForbidden {
		t.Fatalf("finance reversing a payment: expected forbidden, got %v", err)
	}

	if _, err := models.SetPaymentStatus(f.as(f.admin), models.DocumentKindInvoice, id, models.DocumentStatusApproved); err != nil {
		t.Fatalf("admin reverse: %v", err)
	}
	p := f.reloadProject(t)
	assertDecimal(t, "revenue after reverse", p.Revenue, "0")
	assertDecimal(t, "profit after reverse", p.Profit, "0")
}

func TestSetPaymentStatus_RollsUpVendorBillSpentAndProfit(t *testing.T) {
	f := newFixture(t)
	vb := f.create(t, f.finance, models.DocumentKindVendorBill, models.NewDocument{Amount: amount("40"), Tax: amount("2"), Status: "SENT"})

	if _, err := models.SetPaymentStatus(f.as(f.finance), models.DocumentKindVendorBill, vb.Header().ID, models.DocumentStatusPaid); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	p := f.reloadProject(t)
	assertDecimal(t, "spent", p.Spent, "42")
	assertDecimal(t, "profit", p.Profit, "-42")

	_, err := models.ApproveDocument(f.as(f.admin), models.DocumentKindVendorBill, vb.Header().ID)
	if utils.KindOf(err) != utils.KindInvalidTransition || err.Error() != "Cannot approve a paid vendor bill" {
		t.Fatalf("approving a paid bill: %v", err)
	}
	_, err = models.RejectDocument(f.as(f.admin), models.DocumentKindVendorBill, vb.Header().ID, nil)
	if utils.KindOf(err) != utils.KindInvalidTransition {
		t.Fatalf("rejecting a paid bill: %v", err)
	}

	if _, err := models.SetPaymentStatus(f.as(f.admin), models.DocumentKindVendorBill, vb.Header().ID, models.DocumentStatusOverdue); err != nil {
		t.Fatalf("admin reverse: %v", err)
	}
	p = f.reloadProject(t)
	assertDecimal(t, "spent after reverse", p.Spent, "0")
	assertDecimal(t, "profit after reverse", p.Profit, "0")
}

func TestSetPaymentStatus_CannotStandInForApproval(t *testing.T) {
	f := newFixture(t)
	inv := f.create(t, f.pm, models.DocumentKindInvoice, models.NewDocument{Status: "SENT"})
	id := inv.Header().ID

	_, err := models.SetPaymentStatus(f.as(f.finance), models.DocumentKindInvoice, id, models.DocumentStatusApproved)
	if utils.KindOf(err) != utils.KindInvalidTransition {
		t.Fatalf("SENT -> APPROVED via payment status: expected invalid transition, got %v", err)
	}
	got, err := models.GetDocument(f.as(f.admin), models.DocumentKindInvoice, id)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.Header().Status != models.DocumentStatusSent || got.Header().ApprovedById != nil {
		t.Fatalf("document changed: status=%s approvedBy=%v", got.Header().Status, got.Header().ApprovedById)
	}
	if rows := f.notifications(t, id); len(rows) != 0 {
		t.Fatalf("expected no notification, got %d", len(rows))
	}

	if _, err := models.ApproveDocument(f.as(f.finance), models.DocumentKindInvoice, id); err != nil {
		t.Fatalf("approve: %v", err)
	}
	for _, u := range []*models.User{f.finance, f.admin} {
		_, err = models.SetPaymentStatus(f.as(u), models.DocumentKindInvoice, id, models.DocumentStatusSent)
		if utils.KindOf(err) != utils.KindInvalidTransition {
			t.Fatalf("%s APPROVED -> SENT via payment status: expected invalid transition, got %v", u.Role, err)
		}
	}
	got, err = models.GetDocument(f.as(f.admin), models.DocumentKindInvoice, id)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.Header().Status != models.DocumentStatusApproved {
		t.Fatalf("status = %s, want APPROVED", got.Header().Status)
	}
}

func TestPaidDocuments_RefuseApproveAndReject(t *testing.T) {
	cases := []struct {
		kind    models.DocumentKind
		revenue string
		spent   string
	}{
		{models.DocumentKindInvoice, "110", "0"},
		{models.DocumentKindVendorBill, "0", "110"},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			f := newFixture(t)
			doc := f.create(t, f.finance, tc.kind, models.NewDocument{Amount: amount("100"), Tax: amount("10"), Status: "SENT"})
			id := doc.Header().ID
			if _, err := models.SetPaymentStatus(f.as(f.finance), tc.kind, id, models.DocumentStatusPaid); err != nil {
				t.Fatalf("mark paid: %v", err)
			}
			before := f.reloadProject(t)
			queued := len(f.notifications(t, id))

			for _, u := range []*models.User{f.finance, f.admin} {
				if _, err := models.ApproveDocument(f.as(u), tc.kind, id); utils.KindOf(err) != utils.KindInvalidTransition {
					t.Fatalf("%s approve paid: expected invalid transition, got %v", u.Role, err)
				}
				if _, err := models.RejectDocument(f.as(u), tc.kind, id, nil); utils.KindOf(err) != utils.KindInvalidTransition {
					t.Fatalf("%s reject paid: expected invalid transition, got %v", u.Role, err)
				}
			}

			got, err := models.GetDocument(f.as(f.admin), tc.kind, id)
			if err != nil {
				t.Fatalf("GetDocument: %v", err)
			}
			if got.Header().Status != models.DocumentStatusPaid {
				t.Fatalf("status = %s, want PAID", got.Header().Status)
			}
			after := f.reloadProject(t)
			assertDecimal(t, "revenue", after.Revenue, tc.revenue)
			assertDecimal(t, "spent", after.Spent, tc.spent)
			assertDecimal(t, "profit", after.Profit, before.Profit.String())
			if n := len(f.notifications(t, id)); n != queued {
				t.Fatalf("notifications = %d, want %d", n, queued)
			}
		})
	}
}

func TestSetPaymentStatus_OrdersHaveNoPaymentStatus(t *testing.T) {
	f := newFixture(t)
	so := f.create(t, f.pm, models.DocumentKindSalesOrder, models.NewDocument{})
	_, err := models.SetPaymentStatus(f.as(f.admin), models.DocumentKindSalesOrder, so.Header().ID, models.DocumentStatusPaid)
	if utils.KindOf(err) != utils.KindInvalidTransition {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestTransitions_UpdatedAtStrictlyIncreases(t *testing.T) {
	f := newFixture(t)
	inv := f.create(t, f.pm, models.DocumentKindInvoice, models.NewDocument{})
	id := inv.Header().ID
	prev := inv.Header().UpdatedAt

	steps := []func() (models.BillingRecord, error){
		func() (models.BillingRecord, error) {
			return models.ApproveDocument(f.as(f.finance), models.DocumentKindInvoice, id)
		},
		func() (models.BillingRecord, error) {
			return models.SetPaymentStatus(f.as(f.finance), models.DocumentKindInvoice, id, models.DocumentStatusPaid)
		},
		func() (models.BillingRecord, error) {
			return models.SetPaymentStatus(f.as(f.admin), models.DocumentKindInvoice, id, models.DocumentStatusSent)
		},
		func() (models.BillingRecord, error) {
			return models.RejectDocument(f.as(f.admin), models.DocumentKindInvoice, id, nil)
		},
	}
	for i, step := range steps {
		rec, err := step()
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if !rec.Header().UpdatedAt.After(prev) {
			t.Fatalf("step %d: updatedAt %s is not after %s", i, rec.Header().UpdatedAt, prev)
		}
		prev = rec.Header().UpdatedAt
	}
}

func TestRebuildProjectFinancials_CorrectsDrift(t *testing.T) {
	f := newFixture(t)
	inv := f.create(t, f.pm, models.DocumentKindInvoice, models.NewDocument{Amount: amount("300"), Status: "SENT"})
	vb := f.create(t, f.finance, models.DocumentKindVendorBill, models.NewDocument{Amount: amount("120"), Status: "SENT"})
	for _, d := range []models.BillingRecord{inv, vb} {
		if _, err := models.SetPaymentStatus(f.as(f.finance), d.DocumentKind(), d.Header().ID, models.DocumentStatusPaid); err != nil {
			t.Fatalf("mark paid: %v", err)
		}
	}
	if err := f.db.Model(&models.Project{}).Where("id = ?", f.project.ID).
		Updates(map[string]interface{}{"revenue": "999", "spent": "100"}).Error; err != nil {
		t.Fatalf("corrupt project: %v", err)
	}

	_, err := models.RebuildProjectFinancials(f.as(f.finance), f.project.ID)
	if utils.KindOf(err) != utils.KindForbidden {
		t.Fatalf("finance rebuild: expected forbidden, got %v", err)
	}

	drift, err := models.RebuildProjectFinancials(f.as(f.admin), f.project.ID)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if !drift.Changed {
		t.Fatalf("expected drift to be reported")
	}
	p := f.reloadProject(t)
	assertDecimal(t, "revenue", p.Revenue, "300")
	assertDecimal(t, "spent", p.Spent, "120")
	// profit was -120 with spent 120; corrupting spent to 100 left profit alone,
	// so the rebuild moves it by -(120-100).
	assertDecimal(t, "profit", p.Profit, "-140")
}
