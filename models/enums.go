package models

import "strings"

type DocumentKind string

const (
	DocumentKindSalesOrder    DocumentKind = "sales-orders"
	DocumentKindPurchaseOrder DocumentKind = "purchase-orders"
	DocumentKindInvoice       DocumentKind = "invoices"
	DocumentKindVendorBill    DocumentKind = "vendor-bills"
)

// AllDocumentKinds is the closed set of billing documents, in queue order.
var AllDocumentKinds = []DocumentKind{
	DocumentKindSalesOrder,
	DocumentKindPurchaseOrder,
	DocumentKindInvoice,
	DocumentKindVendorBill,
}

func ParseDocumentKind(s string) (DocumentKind, bool) {
	k := DocumentKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case DocumentKindSalesOrder, DocumentKindPurchaseOrder, DocumentKindInvoice, DocumentKindVendorBill:
		return k, true
	}
	return "", false
}

// Label is the human readable document type used in messages and notifications.
func (k DocumentKind) Label() string {
	switch k {
	case DocumentKindSalesOrder:
		return "Sales Order"
	case DocumentKindPurchaseOrder:
		return "Purchase Order"
	case DocumentKindInvoice:
		return "Invoice"
	case DocumentKindVendorBill:
		return "Vendor Bill"
	}
	return string(k)
}

func (k DocumentKind) NumberPrefix() string {
	switch k {
	case DocumentKindSalesOrder:
		return "SO"
	case DocumentKindPurchaseOrder:
		return "PO"
	case DocumentKindInvoice:
		return "INV"
	case DocumentKindVendorBill:
		return "VB"
	}
	return "DOC"
}

// HasPaymentStatus is true for the kinds that can be marked PAID and roll up into project financials.
func (k DocumentKind) HasPaymentStatus() bool {
	return k == DocumentKindInvoice || k == DocumentKindVendorBill
}

// ParentKind is the order an invoice or bill may reference.
func (k DocumentKind) ParentKind() (DocumentKind, bool) {
	switch k {
	case DocumentKindInvoice:
		return DocumentKindSalesOrder, true
	case DocumentKindVendorBill:
		return DocumentKindPurchaseOrder, true
	}
	return "", false
}

// ChildKind is the inverse of ParentKind.
func (k DocumentKind) ChildKind() (DocumentKind, bool) {
	switch k {
	case DocumentKindSalesOrder:
		return DocumentKindInvoice, true
	case DocumentKindPurchaseOrder:
		return DocumentKindVendorBill, true
	}
	return "", false
}

type DocumentStatus string

const (
	DocumentStatusDraft     DocumentStatus = "DRAFT"
	DocumentStatusSent      DocumentStatus = "SENT"
	DocumentStatusApproved  DocumentStatus = "APPROVED"
	DocumentStatusPaid      DocumentStatus = "PAID"
	DocumentStatusCancelled DocumentStatus = "CANCELLED"
	DocumentStatusOverdue   DocumentStatus = "OVERDUE"
)

// PendingStatuses are the statuses shown in the approval queue.
var PendingStatuses = []DocumentStatus{DocumentStatusDraft, DocumentStatusSent}

func ParseDocumentStatus(s string) (DocumentStatus, bool) {
	st := DocumentStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case DocumentStatusDraft, DocumentStatusSent, DocumentStatusApproved,
		DocumentStatusPaid, DocumentStatusCancelled, DocumentStatusOverdue:
		return st, true
	}
	return "", false
}

func (s DocumentStatus) IsPending() bool {
	return s == DocumentStatusDraft || s == DocumentStatusSent
}

// IsEditable reports whether owner edits are still allowed.
func (s DocumentStatus) IsEditable() bool {
	return s.IsPending()
}

type UserRole string

const (
	UserRoleAdmin          UserRole = "ADMIN"
	UserRoleProjectManager UserRole = "PROJECT_MANAGER"
	UserRoleTeamMember     UserRole = "TEAM_MEMBER"
	UserRoleSalesFinance   UserRole = "SALES_FINANCE"
)

func ParseUserRole(s string) (UserRole, bool) {
	r := UserRole(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case UserRoleAdmin, UserRoleProjectManager, UserRoleTeamMember, UserRoleSalesFinance:
		return r, true
	}
	return "", false
}

// CanApprove is the finance gate shared by the transition engine and the approval queue.
func (r UserRole) CanApprove() bool {
	return r == UserRoleSalesFinance || r == UserRoleAdmin
}

type ApprovalAction string

const (
	ApprovalActionApprove       ApprovalAction = "approve"
	ApprovalActionReject        ApprovalAction = "reject"
	ApprovalActionPaymentStatus ApprovalAction = "payment-status"
)
