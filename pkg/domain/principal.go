package domain

import "github.com/google/uuid"

// Role is the authorization role of an authenticated principal.
type Role string

const (
	RoleOperator    Role = "operator"
	RoleTeamLead    Role = "team_lead"
	RoleCoordinator Role = "coordinator"
	RoleHR          Role = "hr"
	RoleFinance     Role = "finance"
	RoleAdmin       Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOperator, RoleTeamLead, RoleCoordinator, RoleHR, RoleFinance, RoleAdmin:
		return true
	}
	return false
}

type PrincipalStatus string

const (
	PrincipalStatusActive   PrincipalStatus = "active"
	PrincipalStatusInactive PrincipalStatus = "inactive"
)

// Principal is the authenticated caller of a request. It is immutable for the
// duration of that request.
type Principal struct {
	ID     uuid.UUID       `json:"id"`
	Role   Role            `json:"role"`
	Status PrincipalStatus `json:"status"`
}

// Active reports whether the principal may act at all.
func (p Principal) Active() bool {
	return p.ID != uuid.Nil && p.Status == PrincipalStatusActive && p.Role.Valid()
}

// HasRole reports whether the principal's role is one of roles.
func (p Principal) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}
