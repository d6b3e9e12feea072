package forex

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"payoutdesk/internal/domain"
	"payoutdesk/pkg/logger"
)

type MockRateSource struct {
	mock.Mock
}

func (m *MockRateSource) Name() string { return "mock" }

func (m *MockRateSource) Rates(ctx context.Context) ([]domain.CurrencyRate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CurrencyRate), args.Error(1)
}

func rate(code domain.Currency, v string) domain.CurrencyRate {
	return domain.CurrencyRate{CurrencyCode: code, Rate: decimal.RequireFromString(v)}
}

func TestTablePrefersEarlierSources(t *testing.T) {
	primary := new(MockRateSource)
	primary.On("Rates", mock.Anything).Return([]domain.CurrencyRate{rate(domain.EUR, "1.08")}, nil)
	fallback := NewStaticRateSource("fallback", map[string]decimal.Decimal{
		"EUR": decimal.RequireFromString("1.05"),
		"GBP": decimal.RequireFromString("1.27"),
	})

	svc := NewService(domain.USD, []RateSource{primary, fallback}, nil, time.Minute, logger.NewNop())
	table, err := svc.Table(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "1.08", table[domain.EUR].String())
	assert.Equal(t, "1.27", table[domain.GBP].String())
	assert.Equal(t, "1", table[domain.USD].String())
}

func TestTableServesSnapshotUntilExpiry(t *testing.T) {
	source := new(MockRateSource)
	source.On("Rates", mock.Anything).Return([]domain.CurrencyRate{rate(domain.EUR, "1.05")}, nil)

	svc := NewService(domain.USD, []RateSource{source}, nil, time.Minute, logger.NewNop())
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_, err := svc.Table(context.Background())
	require.NoError(t, err)
	_, err = svc.Table(context.Background())
	require.NoError(t, err)
	source.AssertNumberOfCalls(t, "Rates", 1)

	now = now.Add(2 * time.Minute)
	_, err = svc.Table(context.Background())
	require.NoError(t, err)
	source.AssertNumberOfCalls(t, "Rates", 2)
}

func TestRefreshKeepsStaleTableWhenSourcesFail(t *testing.T) {
	source := new(MockRateSource)
	source.On("Rates", mock.Anything).Return([]domain.CurrencyRate{rate(domain.EUR, "1.05")}, nil).Once()
	source.On("Rates", mock.Anything).Return(nil, errors.New("db down"))

	svc := NewService(domain.USD, []RateSource{source}, nil, time.Minute, logger.NewNop())
	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	table, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.05", table[domain.EUR].String())
}

func TestRefreshSkipsNonPositiveRates(t *testing.T) {
	source := new(MockRateSource)
	source.On("Rates", mock.Anything).Return([]domain.CurrencyRate{
		rate(domain.EUR, "0"),
		rate(domain.GBP, "1.27"),
	}, nil)

	svc := NewService(domain.USD, []RateSource{source}, nil, time.Minute, logger.NewNop())
	table, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	_, hasEUR := table[domain.EUR]
	assert.False(t, hasEUR)
	assert.Contains(t, table, domain.GBP)
}

func TestTableIsSafeForConcurrentReaders(t *testing.T) {
	fallback := NewStaticRateSource("fallback", map[string]decimal.Decimal{"EUR": decimal.RequireFromString("1.05")})
	svc := NewService(domain.USD, []RateSource{fallback}, nil, time.Millisecond, logger.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			table, err := svc.Table(context.Background())
			assert.NoError(t, err)
			table[domain.GBP] = decimal.NewFromInt(2) // callers own their copy
		}()
	}
	wg.Wait()

	table, err := svc.Table(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, table, domain.GBP)
}

func TestConvertUsesCurrentTable(t *testing.T) {
	fallback := NewStaticRateSource("fallback", map[string]decimal.Decimal{"EUR": decimal.RequireFromString("1.05")})
	svc := NewService(domain.USD, []RateSource{fallback}, nil, time.Minute, logger.NewNop())

	got, err := svc.Convert(context.Background(), decimal.NewFromInt(100), domain.EUR)
	require.NoError(t, err)
	assert.Equal(t, "105", got.String())
}
