// Package approval holds the role-gated state machine for withdrawals and
// works. Every role and transition check goes through the tables here.
package approval

import (
	"github.com/google/uuid"

	"payoutdesk/internal/domain"
	"payoutdesk/pkg/errors"
)

// WithdrawalEdge is a single permitted withdrawal status change.
type WithdrawalEdge struct {
	From domain.WithdrawalStatus
	To   domain.WithdrawalStatus
}

var (
	edgeStartReview = WithdrawalEdge{domain.WithdrawalStatusNew, domain.WithdrawalStatusWaiting}
	edgeConfirm     = WithdrawalEdge{domain.WithdrawalStatusWaiting, domain.WithdrawalStatusReceived}
	edgeReject      = WithdrawalEdge{domain.WithdrawalStatusWaiting, domain.WithdrawalStatusBlock}
)

// capabilities is the Role -> allowed withdrawal edges table.
var capabilities = map[domain.Role]map[WithdrawalEdge]bool{
	domain.RoleTeamLead: {
		edgeStartReview: true,
		edgeReject:      true,
	},
	domain.RoleCoordinator: {
		edgeStartReview: true,
		edgeConfirm:     true,
		edgeReject:      true,
	},
	domain.RoleFinance: {
		edgeStartReview: true,
		edgeConfirm:     true,
		edgeReject:      true,
	},
	domain.RoleAdmin: {
		edgeStartReview: true,
		edgeConfirm:     true,
		edgeReject:      true,
	},
}

// edges that require a non-empty reviewer comment.
var commentRequired = map[WithdrawalEdge]bool{
	edgeReject: true,
}

// workTransitions lists the permitted work status changes.
var workTransitions = map[domain.WorkStatus]map[domain.WorkStatus]bool{
	domain.WorkStatusActive: {
		domain.WorkStatusCompleted: true,
		domain.WorkStatusCancelled: true,
		domain.WorkStatusBlocked:   true,
	},
	domain.WorkStatusBlocked: {
		domain.WorkStatusActive: true,
	},
}

// Roles that may mutate any work regardless of ownership.
var workSupervisors = []domain.Role{domain.RoleCoordinator, domain.RoleAdmin}

// IsWithdrawalEdge reports whether from -> to exists in the state machine at all.
func IsWithdrawalEdge(from, to domain.WithdrawalStatus) bool {
	e := WithdrawalEdge{from, to}
	return e == edgeStartReview || e == edgeConfirm || e == edgeReject
}

// CheckWithdrawalTransition validates that actor may move a withdrawal from
// -> to. Unknown edges fail with InvalidTransition before any role check so a
// caller never learns about permissions for impossible moves.
func CheckWithdrawalTransition(actor domain.Principal, from, to domain.WithdrawalStatus, comment string) error {
	if !IsWithdrawalEdge(from, to) {
		return errors.New(errors.CodeInvalidTransition, "cannot move withdrawal from %s to %s", from, to)
	}
	edge := WithdrawalEdge{from, to}
	if !capabilities[actor.Role][edge] {
		return errors.New(errors.CodeForbidden, "role %s may not move withdrawal from %s to %s", actor.Role, from, to)
	}
	if commentRequired[edge] && comment == "" {
		return errors.New(errors.CodeValidation, "a comment is required when moving withdrawal to %s", to)
	}
	return nil
}

// AllowedWithdrawalTargets lists the statuses actor may move a withdrawal in
// status from into.
func AllowedWithdrawalTargets(actor domain.Principal, from domain.WithdrawalStatus) []domain.WithdrawalStatus {
	var out []domain.WithdrawalStatus
	for _, e := range []WithdrawalEdge{edgeStartReview, edgeConfirm, edgeReject} {
		if e.From == from && capabilities[actor.Role][e] {
			out = append(out, e.To)
		}
	}
	return out
}

// CanReview reports whether the role takes part in withdrawal review at all.
func CanReview(role domain.Role) bool {
	return len(capabilities[role]) > 0
}

// CheckWorkTransition validates the work status pair.
func CheckWorkTransition(from, to domain.WorkStatus) error {
	if !workTransitions[from][to] {
		return errors.New(errors.CodeInvalidTransition, "cannot move work from %s to %s", from, to)
	}
	return nil
}

// CanMutateWork reports whether actor may change the status of work. teamLead
// is the owner's team lead, uuid.Nil when the owner has none.
func CanMutateWork(actor domain.Principal, work *domain.Work, teamLead uuid.UUID) bool {
	if actor.HasRole(workSupervisors...) {
		return true
	}
	if actor.ID == work.OwnerID {
		return true
	}
	return teamLead != uuid.Nil && actor.ID == teamLead && actor.HasRole(domain.RoleTeamLead)
}

// CanDeleteWork reports whether actor may delete work.
func CanDeleteWork(actor domain.Principal, work *domain.Work) bool {
	return actor.ID == work.OwnerID || actor.HasRole(domain.RoleAdmin)
}

// CanViewAll reports whether the role sees every work and withdrawal.
func CanViewAll(role domain.Role) bool {
	switch role {
	case domain.RoleCoordinator, domain.RoleFinance, domain.RoleAdmin:
		return true
	}
	return false
}
