package models

import (
	"strings"

	"github.com/mmdatafocus/project_billing/config"
	"github.com/mmdatafocus/project_billing/utils"
)

// Decision is the outcome of a permitted request. NoOp means nothing is written.
type Decision struct {
	Next DocumentStatus
	NoOp bool
}

// TransitionRules decides approve/reject and payment status requests without touching storage.
type TransitionRules struct {
	AllowReapproveCancelled bool
}

func DefaultTransitionRules() TransitionRules {
	return TransitionRules{AllowReapproveCancelled: config.AllowReapproveCancelled()}
}

// Decide applies the role gate and the approval state table.
func (r TransitionRules) Decide(kind DocumentKind, current DocumentStatus, action ApprovalAction, role UserRole) (Decision, error) {
	if !role.CanApprove() {
		return Decision{}, utils.ErrForbidden("only Sales/Finance or Admin users can %s documents", action)
	}
	noun := strings.ToLower(kind.Label())

	switch action {
	case ApprovalActionApprove:
		switch current {
		case DocumentStatusDraft, DocumentStatusSent, DocumentStatusOverdue:
			return Decision{Next: DocumentStatusApproved}, nil
		case DocumentStatusApproved:
			return Decision{}, utils.ErrInvalidTransition("%s is already approved", kind.Label())
		case DocumentStatusPaid:
			return Decision{}, utils.ErrInvalidTransition("Cannot approve a paid %s", noun)
		case DocumentStatusCancelled:
			if r.AllowReapproveCancelled {
				return Decision{Next: DocumentStatusApproved}, nil
			}
			return Decision{}, utils.ErrInvalidTransition("Cannot approve a cancelled %s", noun)
		}
	case ApprovalActionReject:
		switch current {
		case DocumentStatusDraft, DocumentStatusSent, DocumentStatusOverdue, DocumentStatusApproved:
			return Decision{Next: DocumentStatusCancelled}, nil
		case DocumentStatusPaid:
			return Decision{}, utils.ErrInvalidTransition("Cannot reject a paid %s", noun)
		case DocumentStatusCancelled:
			return Decision{Next: DocumentStatusCancelled, NoOp: true}, nil
		}
	default:
		return Decision{}, utils.ErrValidation("unknown action %q", action)
	}
	return Decision{}, utils.ErrInvalidTransition("%s has unknown status %s", kind.Label(), current)
}

// DecidePayment handles the separate mark-paid update for invoices and vendor bills.
// Moving out of PAID reverses the rollup and is restricted to admins.
func (r TransitionRules) DecidePayment(kind DocumentKind, current DocumentStatus, target DocumentStatus, role UserRole) (Decision, error) {
	if !kind.HasPaymentStatus() {
		return Decision{}, utils.ErrInvalidTransition("%s has no payment status", kind.Label())
	}
	if !role.CanApprove() {
		return Decision{}, utils.ErrForbidden("only Sales/Finance or Admin users can change payment status")
	}
	switch target {
	case DocumentStatusPaid, DocumentStatusSent, DocumentStatusApproved, DocumentStatusOverdue:
	default:
		return Decision{}, utils.ErrValidation("payment status must be one of PAID, SENT, APPROVED, OVERDUE")
	}
	if current == target {
		return Decision{Next: current, NoOp: true}, nil
	}

	noun := strings.ToLower(kind.Label())
	// approval moves belong to Decide; this path only enters or leaves PAID
	if current != DocumentStatusPaid && target != DocumentStatusPaid {
		return Decision{}, utils.ErrInvalidTransition("Cannot move a %s from %s to %s through payment status", noun, current, target)
	}
	switch current {
	case DocumentStatusDraft:
		return Decision{}, utils.ErrInvalidTransition("Cannot change payment status of a draft %s", noun)
	case DocumentStatusCancelled:
		return Decision{}, utils.ErrInvalidTransition("Cannot change payment status of a cancelled %s", noun)
	case DocumentStatusPaid:
		if role != UserRoleAdmin {
			return Decision{}, utils.ErrForbidden("only an admin can reverse a payment")
		}
	}
	return Decision{Next: target}, nil
}
