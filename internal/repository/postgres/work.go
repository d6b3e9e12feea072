// ==============================================================================
// WORK REPOSITORY - internal/repository/postgres/work.go
// ==============================================================================
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"payoutdesk/internal/domain"
	"payoutdesk/pkg/errors"
)

const workColumns = `id, owner_id, counterparty_id, counterparty_currency, deposit_amount, status, created_at, updated_at`

type WorkRepository struct {
	db *sqlx.DB
}

func NewWorkRepository(db *sqlx.DB) *WorkRepository {
	return &WorkRepository{db: db}
}

func (r *WorkRepository) Create(ctx context.Context, work *domain.Work) error {
	query := `
		INSERT INTO works (
			id, owner_id, counterparty_id, counterparty_currency, deposit_amount, status, created_at, updated_at
		) VALUES (
			:id, :owner_id, :counterparty_id, :counterparty_currency, :deposit_amount, :status, :created_at, :updated_at
		)
	`
	_, err := r.db.NamedExecContext(ctx, query, work)
	return errors.Wrap(err, "failed to create work")
}

func (r *WorkRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Work, error) {
	work := &domain.Work{}
	query := `SELECT ` + workColumns + ` FROM works WHERE id = $1`
	err := r.db.GetContext(ctx, work, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrWorkNotFound
		}
		return nil, errors.Wrap(err, "failed to find work by id")
	}
	return work, nil
}

func (r *WorkRepository) FindAll(ctx context.Context) ([]*domain.Work, error) {
	works := []*domain.Work{}
	query := `SELECT ` + workColumns + ` FROM works ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &works, query); err != nil {
		return nil, errors.Wrap(err, "failed to list works")
	}
	return works, nil
}

func (r *WorkRepository) FindByOwners(ctx context.Context, owners []uuid.UUID) ([]*domain.Work, error) {
	return r.findIn(ctx, "owner_id", owners, "failed to list works by owner")
}

// FindByIDs returns the works with the given ids; unknown ids are absent.
func (r *WorkRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Work, error) {
	return r.findIn(ctx, "id", ids, "failed to fetch works by ids")
}

func (r *WorkRepository) findIn(ctx context.Context, column string, ids []uuid.UUID, msg string) ([]*domain.Work, error) {
	works := []*domain.Work{}
	if len(ids) == 0 {
		return works, nil
	}
	query, args, err := sqlx.In(`SELECT `+workColumns+` FROM works WHERE `+column+` IN (?) ORDER BY created_at DESC`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}
	query = r.db.Rebind(query)

	if err := r.db.SelectContext(ctx, &works, query, args...); err != nil {
		return nil, errors.Wrap(err, msg)
	}
	return works, nil
}

// UpdateStatus moves the work from -> to only if it is still in from.
func (r *WorkRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.WorkStatus, at time.Time) error {
	query := `UPDATE works SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	result, err := r.db.ExecContext(ctx, query, to, at, id, from)
	if err != nil {
		return errors.Wrap(err, "failed to update work status")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return errors.New(errors.CodeConflict, "work %s is no longer %s", id, from)
	}
	return nil
}

// Delete removes a work and its withdrawals in one transaction. The work row
// and every withdrawal row are locked before the guard is evaluated, so a
// concurrent status swap either lands first and blocks the delete or waits
// and then finds its row gone.
func (r *WorkRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := r.deleteTx(ctx, tx, id); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "failed to commit work deletion")
}

func (r *WorkRepository) deleteTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	var status domain.WorkStatus
	if err := tx.GetContext(ctx, &status, `SELECT status FROM works WHERE id = $1 FOR UPDATE`, id); err != nil {
		if err == sql.ErrNoRows {
			return errors.ErrWorkNotFound
		}
		return errors.Wrap(err, "failed to lock work")
	}
	if status == domain.WorkStatusCompleted {
		return errors.New(errors.CodeConflict, "work %s is completed", id)
	}

	var statuses []domain.WithdrawalStatus
	if err := tx.SelectContext(ctx, &statuses, `SELECT status FROM withdrawals WHERE work_id = $1 FOR UPDATE`, id); err != nil {
		return errors.Wrap(err, "failed to lock withdrawals")
	}
	for _, st := range statuses {
		if st == domain.WithdrawalStatusWaiting || st == domain.WithdrawalStatusReceived {
			return errors.New(errors.CodeConflict, "work %s has waiting or received withdrawals", id)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM withdrawals WHERE work_id = $1`, id); err != nil {
		return errors.Wrap(err, "failed to delete withdrawals")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM works WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "failed to delete work")
	}
	return nil
}
