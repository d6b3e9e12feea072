// ==============================================================================
// CURRENCY RATE REPOSITORY - internal/repository/postgres/currency_rate.go
// ==============================================================================
package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"payoutdesk/internal/domain"
	"payoutdesk/pkg/errors"
)

// CurrencyRateRepository serves the currency_rates table as a rate source.
type CurrencyRateRepository struct {
	db *sqlx.DB
}

func NewCurrencyRateRepository(db *sqlx.DB) *CurrencyRateRepository {
	return &CurrencyRateRepository{db: db}
}

func (r *CurrencyRateRepository) Name() string {
	return "postgres"
}

// Rates returns every stored rate to the reporting currency.
func (r *CurrencyRateRepository) Rates(ctx context.Context) ([]domain.CurrencyRate, error) {
	rates := []domain.CurrencyRate{}
	query := `
		SELECT currency_code, rate_to_reporting, updated_at
		FROM currency_rates
		ORDER BY currency_code
	`
	if err := r.db.SelectContext(ctx, &rates, query); err != nil {
		return nil, errors.Wrap(err, "failed to load currency rates")
	}
	return rates, nil
}

// Upsert stores the rate for one currency.
func (r *CurrencyRateRepository) Upsert(ctx context.Context, rate *domain.CurrencyRate) error {
	query := `
		INSERT INTO currency_rates (currency_code, rate_to_reporting, updated_at)
		VALUES (:currency_code, :rate_to_reporting, :updated_at)
		ON CONFLICT (currency_code) DO UPDATE SET
			rate_to_reporting = EXCLUDED.rate_to_reporting,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.NamedExecContext(ctx, query, rate)
	return errors.Wrap(err, "failed to upsert currency rate")
}
