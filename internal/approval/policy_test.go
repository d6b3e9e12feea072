package approval

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"payoutdesk/internal/domain"
	"payoutdesk/pkg/errors"
)

var allWithdrawalStatuses = []domain.WithdrawalStatus{
	domain.WithdrawalStatusNew,
	domain.WithdrawalStatusWaiting,
	domain.WithdrawalStatusReceived,
	domain.WithdrawalStatusBlock,
}

var allRoles = []domain.Role{
	domain.RoleOperator,
	domain.RoleTeamLead,
	domain.RoleCoordinator,
	domain.RoleHR,
	domain.RoleFinance,
	domain.RoleAdmin,
}

func actor(role domain.Role) domain.Principal {
	return domain.Principal{ID: uuid.New(), Role: role, Status: domain.PrincipalStatusActive}
}

func TestWithdrawalCapabilityTable(t *testing.T) {
	tests := []struct {
		from, to domain.WithdrawalStatus
		allowed  []domain.Role
	}{
		{domain.WithdrawalStatusNew, domain.WithdrawalStatusWaiting,
			[]domain.Role{domain.RoleTeamLead, domain.RoleCoordinator, domain.RoleFinance, domain.RoleAdmin}},
		{domain.WithdrawalStatusWaiting, domain.WithdrawalStatusReceived,
			[]domain.Role{domain.RoleCoordinator, domain.RoleFinance, domain.RoleAdmin}},
		{domain.WithdrawalStatusWaiting, domain.WithdrawalStatusBlock,
			[]domain.Role{domain.RoleTeamLead, domain.RoleCoordinator, domain.RoleFinance, domain.RoleAdmin}},
	}

	for _, tt := range tests {
		for _, role := range allRoles {
			err := CheckWithdrawalTransition(actor(role), tt.from, tt.to, "reason")
			if contains(tt.allowed, role) {
				assert.NoError(t, err, "%s %s->%s", role, tt.from, tt.to)
			} else {
				assert.Equal(t, errors.CodeForbidden, errors.CodeOf(err), "%s %s->%s", role, tt.from, tt.to)
			}
		}
	}
}

func TestNoReverseOrSkippingEdges(t *testing.T) {
	admin := actor(domain.RoleAdmin)
	for _, from := range allWithdrawalStatuses {
		for _, to := range allWithdrawalStatuses {
			if IsWithdrawalEdge(from, to) {
				continue
			}
			err := CheckWithdrawalTransition(admin, from, to, "reason")
			assert.Equal(t, errors.CodeInvalidTransition, errors.CodeOf(err), "%s->%s", from, to)
		}
	}
	// terminal states have no outgoing edge
	for _, to := range allWithdrawalStatuses {
		assert.False(t, IsWithdrawalEdge(domain.WithdrawalStatusReceived, to))
		assert.False(t, IsWithdrawalEdge(domain.WithdrawalStatusBlock, to))
	}
}

func TestRejectRequiresComment(t *testing.T) {
	err := CheckWithdrawalTransition(actor(domain.RoleFinance), domain.WithdrawalStatusWaiting, domain.WithdrawalStatusBlock, "")
	assert.Equal(t, errors.CodeValidation, errors.CodeOf(err))

	err = CheckWithdrawalTransition(actor(domain.RoleFinance), domain.WithdrawalStatusWaiting, domain.WithdrawalStatusReceived, "")
	assert.NoError(t, err)
}

func TestAllowedWithdrawalTargets(t *testing.T) {
	assert.Equal(t,
		[]domain.WithdrawalStatus{domain.WithdrawalStatusBlock},
		AllowedWithdrawalTargets(actor(domain.RoleTeamLead), domain.WithdrawalStatusWaiting))
	assert.Equal(t,
		[]domain.WithdrawalStatus{domain.WithdrawalStatusReceived, domain.WithdrawalStatusBlock},
		AllowedWithdrawalTargets(actor(domain.RoleFinance), domain.WithdrawalStatusWaiting))
	assert.Empty(t, AllowedWithdrawalTargets(actor(domain.RoleOperator), domain.WithdrawalStatusNew))
}

func TestWorkTransitions(t *testing.T) {
	ok := [][2]domain.WorkStatus{
		{domain.WorkStatusActive, domain.WorkStatusCompleted},
		{domain.WorkStatusActive, domain.WorkStatusCancelled},
		{domain.WorkStatusActive, domain.WorkStatusBlocked},
		{domain.WorkStatusBlocked, domain.WorkStatusActive},
	}
	for _, p := range ok {
		assert.NoError(t, CheckWorkTransition(p[0], p[1]))
	}

	bad := [][2]domain.WorkStatus{
		{domain.WorkStatusCompleted, domain.WorkStatusActive},
		{domain.WorkStatusCancelled, domain.WorkStatusActive},
		{domain.WorkStatusBlocked, domain.WorkStatusCompleted},
		{domain.WorkStatusActive, domain.WorkStatusActive},
	}
	for _, p := range bad {
		assert.Equal(t, errors.CodeInvalidTransition, errors.CodeOf(CheckWorkTransition(p[0], p[1])))
	}
}

func TestCanMutateWork(t *testing.T) {
	owner := actor(domain.RoleOperator)
	lead := actor(domain.RoleTeamLead)
	otherLead := actor(domain.RoleTeamLead)
	work := &domain.Work{ID: uuid.New(), OwnerID: owner.ID}

	assert.True(t, CanMutateWork(owner, work, lead.ID))
	assert.True(t, CanMutateWork(lead, work, lead.ID))
	assert.False(t, CanMutateWork(otherLead, work, lead.ID))
	assert.False(t, CanMutateWork(otherLead, work, uuid.Nil))
	assert.True(t, CanMutateWork(actor(domain.RoleCoordinator), work, uuid.Nil))
	assert.True(t, CanMutateWork(actor(domain.RoleAdmin), work, uuid.Nil))
	assert.False(t, CanMutateWork(actor(domain.RoleFinance), work, uuid.Nil))
	assert.False(t, CanMutateWork(actor(domain.RoleOperator), work, uuid.Nil))
}

func TestCanDeleteWork(t *testing.T) {
	owner := actor(domain.RoleOperator)
	work := &domain.Work{ID: uuid.New(), OwnerID: owner.ID}

	assert.True(t, CanDeleteWork(owner, work))
	assert.True(t, CanDeleteWork(actor(domain.RoleAdmin), work))
	assert.False(t, CanDeleteWork(actor(domain.RoleCoordinator), work))
	assert.False(t, CanDeleteWork(actor(domain.RoleTeamLead), work))
}

func contains(roles []domain.Role, r domain.Role) bool {
	for _, x := range roles {
		if x == r {
			return true
		}
	}
	return false
}
