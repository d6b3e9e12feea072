// ==============================================================================
// FOREX RATE SOURCES - internal/forex/providers.go
// ==============================================================================
package forex

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"payoutdesk/internal/domain"
)

// StaticRateSource serves a fixed table, typically the configured fallback
// rates used when the rate store has no entry for a currency.
type StaticRateSource struct {
	name  string
	rates map[string]decimal.Decimal
}

func NewStaticRateSource(name string, rates map[string]decimal.Decimal) *StaticRateSource {
	return &StaticRateSource{name: name, rates: rates}
}

func (p *StaticRateSource) Name() string {
	return p.name
}

func (p *StaticRateSource) Rates(ctx context.Context) ([]domain.CurrencyRate, error) {
	codes := make([]string, 0, len(p.rates))
	for code := range p.rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	now := time.Now()
	out := make([]domain.CurrencyRate, 0, len(codes))
	for _, code := range codes {
		out = append(out, domain.CurrencyRate{
			CurrencyCode: domain.Currency(code),
			Rate:         p.rates[code],
			UpdatedAt:    now,
		})
	}
	return out, nil
}
