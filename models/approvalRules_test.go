package models

import (
	"testing"

	"github.com/mmdatafocus/project_billing/utils"
)

func TestDecide(t *testing.T) {
	rules := TransitionRules{}
	cases := []struct {
		name    string
		current DocumentStatus
		action  ApprovalAction
		role    UserRole
		want    DocumentStatus
		noOp    bool
		errKind utils.ErrorKind
		errMsg  string
	}{
		{"draft approve", DocumentStatusDraft, ApprovalActionApprove, UserRoleSalesFinance, DocumentStatusApproved, false, "", ""},
		{"sent approve", DocumentStatusSent, ApprovalActionApprove, UserRoleAdmin, DocumentStatusApproved, false, "", ""},
		{"overdue approve", DocumentStatusOverdue, ApprovalActionApprove, UserRoleAdmin, DocumentStatusApproved, false, "", ""},
		{"draft reject", DocumentStatusDraft, ApprovalActionReject, UserRoleSalesFinance, DocumentStatusCancelled, false, "", ""},
		{"approved reject", DocumentStatusApproved, ApprovalActionReject, UserRoleSalesFinance, DocumentStatusCancelled, false, "", ""},
		{"approved approve", DocumentStatusApproved, ApprovalActionApprove, UserRoleSalesFinance, "", false, utils.KindInvalidTransition, "Invoice is already approved"},
		{"paid approve", DocumentStatusPaid, ApprovalActionApprove, UserRoleAdmin, "", false, utils.KindInvalidTransition, "Cannot approve a paid invoice"},
		{"paid reject", DocumentStatusPaid, ApprovalActionReject, UserRoleAdmin, "", false, utils.KindInvalidTransition, "Cannot reject a paid invoice"},
		{"cancelled reject", DocumentStatusCancelled, ApprovalActionReject, UserRoleAdmin, DocumentStatusCancelled, true, "", ""},
		{"cancelled approve", DocumentStatusCancelled, ApprovalActionApprove, UserRoleAdmin, "", false, utils.KindInvalidTransition, "Cannot approve a cancelled invoice"},
		{"team member", DocumentStatusDraft, ApprovalActionApprove, UserRoleTeamMember, "", false, utils.KindForbidden, ""},
		{"project manager", DocumentStatusSent, ApprovalActionReject, UserRoleProjectManager, "", false, utils.KindForbidden, ""},
		{"forbidden wins over state", DocumentStatusPaid, ApprovalActionApprove, UserRoleTeamMember, "", false, utils.KindForbidden, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := rules.Decide(DocumentKindInvoice, tc.current, tc.action, tc.role)
			if tc.errKind != "" {
				if utils.KindOf(err) != tc.errKind {
					t.Fatalf("expected %s error, got %v", tc.errKind, err)
				}
				if tc.errMsg != "" && err.Error() != tc.errMsg {
					t.Fatalf("message = %q, want %q", err.Error(), tc.errMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Next != tc.want || d.NoOp != tc.noOp {
				t.Fatalf("decision = %+v, want next=%s noOp=%v", d, tc.want, tc.noOp)
			}
		})
	}
}

func TestDecide_ReapproveCancelledFlag(t *testing.T) {
	rules := TransitionRules{AllowReapproveCancelled: true}
	d, err := rules.Decide(DocumentKindSalesOrder, DocumentStatusCancelled, ApprovalActionApprove, UserRoleAdmin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Next != DocumentStatusApproved {
		t.Fatalf("next = %s, want APPROVED", d.Next)
	}
}

func TestDecide_MessagesUseDocumentType(t *testing.T) {
	rules := TransitionRules{}
	_, err := rules.Decide(DocumentKindVendorBill, DocumentStatusPaid, ApprovalActionReject, UserRoleAdmin)
	if err == nil || err.Error() != "Cannot reject a paid vendor bill" {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = rules.Decide(DocumentKindPurchaseOrder, DocumentStatusApproved, ApprovalActionApprove, UserRoleAdmin)
	if err == nil || err.Error() != "Purchase Order is already approved" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDecidePayment(t *testing.T) {
	rules := TransitionRules{}
	cases := []struct {
		name    string
		kind    DocumentKind
		current DocumentStatus
		target  DocumentStatus
		role    UserRole
		want    DocumentStatus
		noOp    bool
		errKind utils.ErrorKind
	}{
		{"approved to paid", DocumentKindInvoice, DocumentStatusApproved, DocumentStatusPaid, UserRoleSalesFinance, DocumentStatusPaid, false, ""},
		{"sent to paid", DocumentKindVendorBill, DocumentStatusSent, DocumentStatusPaid, UserRoleSalesFinance, DocumentStatusPaid, false, ""},
		{"overdue to paid", DocumentKindInvoice, DocumentStatusOverdue, DocumentStatusPaid, UserRoleAdmin, DocumentStatusPaid, false, ""},
		{"paid to approved by admin", DocumentKindInvoice, DocumentStatusPaid, DocumentStatusApproved, UserRoleAdmin, DocumentStatusApproved, false, ""},
		{"paid to sent by finance", DocumentKindInvoice, DocumentStatusPaid, DocumentStatusSent, UserRoleSalesFinance, "", false, utils.KindForbidden},
		{"paid to paid", DocumentKindInvoice, DocumentStatusPaid, DocumentStatusPaid, UserRoleSalesFinance, DocumentStatusPaid, true, ""},
		{"draft to paid", DocumentKindInvoice, DocumentStatusDraft, DocumentStatusPaid, UserRoleAdmin, "", false, utils.KindInvalidTransition},
		{"cancelled to paid", DocumentKindVendorBill, DocumentStatusCancelled, DocumentStatusPaid, UserRoleAdmin, "", false, utils.KindInvalidTransition},
		{"order", DocumentKindSalesOrder, DocumentStatusApproved, DocumentStatusPaid, UserRoleAdmin, "", false, utils.KindInvalidTransition},
		{"bad target", DocumentKindInvoice, DocumentStatusApproved, DocumentStatusCancelled, UserRoleAdmin, "", false, utils.KindValidation},
		{"team member", DocumentKindInvoice, DocumentStatusApproved, DocumentStatusPaid, UserRoleTeamMember, "", false, utils.KindForbidden},
		{"sent to approved", DocumentKindInvoice, DocumentStatusSent, DocumentStatusApproved, UserRoleSalesFinance, "", false, utils.KindInvalidTransition},
		{"approved to sent", DocumentKindInvoice, DocumentStatusApproved, DocumentStatusSent, UserRoleAdmin, "", false, utils.KindInvalidTransition},
		{"overdue to approved", DocumentKindVendorBill, DocumentStatusOverdue, DocumentStatusApproved, UserRoleAdmin, "", false, utils.KindInvalidTransition},
		{"sent to overdue", DocumentKindVendorBill, DocumentStatusSent, DocumentStatusOverdue, UserRoleSalesFinance, "", false, utils.KindInvalidTransition},
		{"draft to sent", DocumentKindInvoice, DocumentStatusDraft, DocumentStatusSent, UserRoleAdmin, "", false, utils.KindInvalidTransition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := rules.DecidePayment(tc.kind, tc.current, tc.target, tc.role)
			if tc.errKind != "" {
				if utils.KindOf(err) != tc.errKind {
					t.Fatalf("expected %s error, got %v", tc.errKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Next != tc.want || d.NoOp != tc.noOp {
				t.Fatalf("decision = %+v, want next=%s noOp=%v", d, tc.want, tc.noOp)
			}
		})
	}
}
