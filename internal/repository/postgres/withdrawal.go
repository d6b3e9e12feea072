// ==============================================================================
// WITHDRAWAL REPOSITORY - internal/repository/postgres/withdrawal.go
// ==============================================================================
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"payoutdesk/internal/domain"
	"payoutdesk/pkg/errors"
)

const withdrawalColumns = `id, work_id, withdrawal_amount, status, reviewer_comment, created_at, updated_at`

type WithdrawalRepository struct {
	db *sqlx.DB
}

func NewWithdrawalRepository(db *sqlx.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

// Create inserts the withdrawal only while its work is active.
func (r *WithdrawalRepository) Create(ctx context.Context, w *domain.Withdrawal) error {
	query := `
		INSERT INTO withdrawals (
			id, work_id, withdrawal_amount, status, reviewer_comment, created_at, updated_at
		)
		SELECT $1, $2, $3, $4, $5, $6, $7
		WHERE EXISTS (SELECT 1 FROM works WHERE id = $2 AND status = $8)
	`
	result, err := r.db.ExecContext(ctx, query,
		w.ID, w.WorkID, w.WithdrawalAmount, w.Status, w.ReviewerComment, w.CreatedAt, w.UpdatedAt,
		domain.WorkStatusActive,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" { // foreign_key_violation
			return errors.ErrWorkNotFound
		}
		return errors.Wrap(err, "failed to create withdrawal")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.New(errors.CodeInvalidWorkState, "work %s is not active", w.WorkID)
	}
	return nil
}

func (r *WithdrawalRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error) {
	w := &domain.Withdrawal{}
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1`
	if err := r.db.GetContext(ctx, w, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrWithdrawalNotFound
		}
		return nil, errors.Wrap(err, "failed to find withdrawal by id")
	}
	return w, nil
}

func (r *WithdrawalRepository) FindByWorkID(ctx context.Context, workID uuid.UUID) ([]*domain.Withdrawal, error) {
	items := []*domain.Withdrawal{}
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE work_id = $1 ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &items, query, workID); err != nil {
		return nil, errors.Wrap(err, "failed to find withdrawals by work")
	}
	return items, nil
}

// FindByStatus lists withdrawals in status, oldest first.
func (r *WithdrawalRepository) FindByStatus(ctx context.Context, status domain.WithdrawalStatus) ([]*domain.Withdrawal, error) {
	items := []*domain.Withdrawal{}
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE status = $1 ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &items, query, status); err != nil {
		return nil, errors.Wrap(err, "failed to find withdrawals by status")
	}
	return items, nil
}

// FindCreatedBetween returns withdrawals with created_at in [from, to).
func (r *WithdrawalRepository) FindCreatedBetween(ctx context.Context, from, to time.Time) ([]*domain.Withdrawal, error) {
	items := []*domain.Withdrawal{}
	query := `
		SELECT ` + withdrawalColumns + ` FROM withdrawals
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at ASC
	`
	if err := r.db.SelectContext(ctx, &items, query, from, to); err != nil {
		return nil, errors.Wrap(err, "failed to load withdrawals for window")
	}
	return items, nil
}

// UpdateStatus is a compare-and-swap on status. A non-empty comment replaces
// the reviewer comment.
func (r *WithdrawalRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.WithdrawalStatus, comment string, at time.Time) error {
	query := `
		UPDATE withdrawals SET
			status = $1,
			reviewer_comment = CASE WHEN $2 = '' THEN reviewer_comment ELSE $2 END,
			updated_at = $3
		WHERE id = $4 AND status = $5
	`
	result, err := r.db.ExecContext(ctx, query, to, comment, at, id, from)
	if err != nil {
		return errors.Wrap(err, "failed to update withdrawal status")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return errors.New(errors.CodeConflict, "withdrawal %s is no longer %s", id, from)
	}
	return nil
}
