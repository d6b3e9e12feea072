package postgres

import (
	"context"

	"payoutdesk/internal/domain"
	"payoutdesk/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// WithdrawalCommentRepository persists the withdrawal audit trail.
type WithdrawalCommentRepository struct {
	db *sqlx.DB
}

// NewWithdrawalCommentRepository creates a new WithdrawalCommentRepository.
func NewWithdrawalCommentRepository(db *sqlx.DB) *WithdrawalCommentRepository {
	return &WithdrawalCommentRepository{db: db}
}

// Create inserts a new audit entry.
func (r *WithdrawalCommentRepository) Create(ctx context.Context, c *domain.WithdrawalComment) error {
	query := `
		INSERT INTO withdrawal_comments (
			id, withdrawal_id, actor_id, from_status, to_status, comment, created_at
		) VALUES (
			:id, :withdrawal_id, :actor_id, :from_status, :to_status, :comment, :created_at
		)
	`

	_, err := r.db.NamedExecContext(ctx, query, c)
	if err != nil {
		return errors.Wrap(err, "failed to create withdrawal comment")
	}

	return nil
}

// FindByWithdrawalID returns the audit trail of a withdrawal, oldest first.
func (r *WithdrawalCommentRepository) FindByWithdrawalID(ctx context.Context, withdrawalID uuid.UUID) ([]*domain.WithdrawalComment, error) {
	comments := []*domain.WithdrawalComment{}
	query := `
		SELECT id, withdrawal_id, actor_id, from_status, to_status, comment, created_at
		FROM withdrawal_comments
		WHERE withdrawal_id = $1
		ORDER BY created_at ASC
	`
	err := r.db.SelectContext(ctx, &comments, query, withdrawalID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find withdrawal comments")
	}
	return comments, nil
}
