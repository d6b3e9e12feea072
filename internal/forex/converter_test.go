package forex

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payoutdesk/internal/domain"
	"payoutdesk/pkg/errors"
)

func testTable() domain.RateTable {
	return domain.RateTable{
		domain.EUR: decimal.RequireFromString("1.05"),
		domain.GBP: decimal.RequireFromString("1.2731"),
	}
}

func TestToReportingSameCurrencyIsIdentity(t *testing.T) {
	c := NewConverter(domain.USD)
	amount := decimal.RequireFromString("123.456789")

	got, err := c.ToReporting(amount, domain.USD, domain.RateTable{})
	require.NoError(t, err)
	assert.True(t, amount.Equal(got))
}

func TestToReportingMultipliesExactly(t *testing.T) {
	c := NewConverter(domain.USD)

	got, err := c.ToReporting(decimal.RequireFromString("0.333"), domain.GBP, testTable())
	require.NoError(t, err)
	// no intermediate rounding
	assert.Equal(t, "0.4239423", got.String())
}

func TestToReportingUnknownCurrency(t *testing.T) {
	c := NewConverter(domain.USD)

	_, err := c.ToReporting(decimal.NewFromInt(10), "JPY", testTable())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownCurrency))
	assert.Equal(t, errors.CodeUnknownCurrency, errors.CodeOf(err))
}

func TestToReportingIsLinear(t *testing.T) {
	c := NewConverter(domain.USD)
	table := testTable()
	pairs := [][2]string{
		{"0.01", "0.02"},
		{"100", "30"},
		{"12345.6789", "0.0001"},
		{"0.333", "0.667"},
	}

	for _, cur := range []domain.Currency{domain.EUR, domain.GBP, domain.USD} {
		for _, p := range pairs {
			a := decimal.RequireFromString(p[0])
			b := decimal.RequireFromString(p[1])

			sum, err := c.ToReporting(a.Add(b), cur, table)
			require.NoError(t, err)
			ca, err := c.ToReporting(a, cur, table)
			require.NoError(t, err)
			cb, err := c.ToReporting(b, cur, table)
			require.NoError(t, err)

			assert.True(t, sum.Equal(ca.Add(cb)), "%s %s+%s", cur, p[0], p[1])
		}
	}
}
