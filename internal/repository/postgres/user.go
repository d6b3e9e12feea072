package postgres

import (
	"context"
	"database/sql"

	"payoutdesk/internal/domain"
	"payoutdesk/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// UserRepository reads principals and the team lead relation from users.
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindPrincipal loads the stored role and status of a user.
func (r *UserRepository) FindPrincipal(ctx context.Context, id uuid.UUID) (domain.Principal, error) {
	var row struct {
		ID     uuid.UUID              `db:"id"`
		Role   domain.Role            `db:"role"`
		Status domain.PrincipalStatus `db:"status"`
	}
	query := `SELECT id, role, status FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return domain.Principal{}, errors.New(errors.CodeUnauthorized, "unknown principal")
		}
		return domain.Principal{}, errors.Wrap(err, "failed to find principal")
	}
	return domain.Principal{ID: row.ID, Role: row.Role, Status: row.Status}, nil
}

// TeamLeadOf returns the user's team lead, or uuid.Nil when there is none.
func (r *UserRepository) TeamLeadOf(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	var lead uuid.NullUUID
	query := `SELECT team_lead_id FROM users WHERE id = $1`
	err := r.db.GetContext(ctx, &lead, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return uuid.Nil, nil
		}
		return uuid.Nil, errors.Wrap(err, "failed to find team lead")
	}
	if !lead.Valid {
		return uuid.Nil, nil
	}
	return lead.UUID, nil
}

// MembersOf lists the users led by leadID.
func (r *UserRepository) MembersOf(ctx context.Context, leadID uuid.UUID) ([]uuid.UUID, error) {
	members := []uuid.UUID{}
	query := `SELECT id FROM users WHERE team_lead_id = $1 ORDER BY id`
	if err := r.db.SelectContext(ctx, &members, query, leadID); err != nil {
		return nil, errors.Wrap(err, "failed to list team members")
	}
	return members, nil
}
