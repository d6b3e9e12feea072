// Package forex implements rate-table retrieval, caching, and conversion into
// the reporting currency.
//
// ==============================================================================
// FOREX SERVICE - internal/forex/service.go
// ==============================================================================
package forex

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"payoutdesk/internal/domain"
	"payoutdesk/pkg/logger"
)

const sharedCacheKey = "forex:rate-table"

// Service provides the current rate table. Reads are served from an
// in-process snapshot that is safe for concurrent readers; the snapshot is
// rebuilt from the shared cache or the rate sources once it expires.
type Service struct {
	converter Converter
	sources   []RateSource
	cache     RateCache
	ttl       time.Duration
	logger    logger.Logger
	now       func() time.Time

	mu        sync.RWMutex
	snapshot  domain.RateTable
	expiresAt time.Time
}

// NewService constructs a forex Service. Sources are consulted in order and
// the first source to price a currency wins. cache may be nil.
func NewService(reporting domain.Currency, sources []RateSource, cache RateCache, ttl time.Duration, log logger.Logger) *Service {
	return &Service{
		converter: NewConverter(reporting),
		sources:   sources,
		cache:     cache,
		ttl:       ttl,
		logger:    log,
		now:       time.Now,
	}
}

// Converter returns the converter bound to the reporting currency.
func (s *Service) Converter() Converter {
	return s.converter
}

// Table returns the current rate table. The returned map is a copy.
func (s *Service) Table(ctx context.Context) (domain.RateTable, error) {
	s.mu.RLock()
	if s.snapshot != nil && s.now().Before(s.expiresAt) {
		table := s.snapshot.Clone()
		s.mu.RUnlock()
		return table, nil
	}
	s.mu.RUnlock()

	// Try Distributed Cache (Redis)
	if s.cache != nil {
		if table, err := s.cache.Get(ctx, sharedCacheKey); err == nil && len(table) > 0 {
			s.store(table)
			return table.Clone(), nil
		}
	}

	return s.Refresh(ctx)
}

// Refresh rebuilds the table from the sources, bypassing every cache layer,
// and publishes the result to the in-process snapshot and the shared cache.
func (s *Service) Refresh(ctx context.Context) (domain.RateTable, error) {
	table := make(domain.RateTable)
	for i := len(s.sources) - 1; i >= 0; i-- {
		source := s.sources[i]
		rates, err := source.Rates(ctx)
		if err != nil {
			s.logger.Warn("Rate source failed", map[string]interface{}{
				"source": source.Name(),
				"error":  err.Error(),
			})
			continue
		}
		for _, r := range rates {
			if !r.Rate.IsPositive() {
				s.logger.Warn("Ignoring non-positive rate", map[string]interface{}{
					"source":   source.Name(),
					"currency": r.CurrencyCode,
					"rate":     r.Rate.String(),
				})
				continue
			}
			table[r.CurrencyCode] = r.Rate
		}
	}
	table[s.converter.ReportingCurrency()] = decimal.NewFromInt(1)

	if len(table) == 1 && len(s.sources) > 0 {
		// Only the reporting currency survived: every source failed or was empty.
		s.mu.RLock()
		stale := s.snapshot
		s.mu.RUnlock()
		if stale != nil {
			s.logger.Warn("Serving stale rate table", nil)
			return stale.Clone(), nil
		}
	}

	s.store(table)

	if s.cache != nil {
		if err := s.cache.Set(ctx, sharedCacheKey, table, s.ttl); err != nil {
			s.logger.Warn("Failed to publish rate table", map[string]interface{}{"error": err.Error()})
		}
	}

	s.logger.Debug("Rate table refreshed", map[string]interface{}{"currencies": len(table)})
	return table.Clone(), nil
}

// Convert is a convenience wrapper converting with the current table.
func (s *Service) Convert(ctx context.Context, amount decimal.Decimal, currency domain.Currency) (decimal.Decimal, error) {
	table, err := s.Table(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return s.converter.ToReporting(amount, currency, table)
}

// RefreshJob adapts Refresh to a scheduler callback.
func (s *Service) RefreshJob() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := s.Refresh(ctx); err != nil {
		s.logger.Error("Failed to refresh rate table", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Service) store(table domain.RateTable) {
	s.mu.Lock()
	s.snapshot = table.Clone()
	s.expiresAt = s.now().Add(s.ttl)
	s.mu.Unlock()
}

// RateCache defines shared cache operations for rate tables.
type RateCache interface {
	Get(ctx context.Context, key string) (domain.RateTable, error)
	Set(ctx context.Context, key string, table domain.RateTable, ttl time.Duration) error
}

// RateSource supplies reporting-currency rates.
type RateSource interface {
	Name() string
	Rates(ctx context.Context) ([]domain.CurrencyRate, error)
}
