package forex

import (
	"github.com/shopspring/decimal"

	"payoutdesk/internal/domain"
	"payoutdesk/pkg/errors"
)

// Converter normalizes amounts into a single reporting currency. It is
// stateless; the rate table is supplied on every call.
type Converter struct {
	reporting domain.Currency
}

// NewConverter returns a Converter targeting the reporting currency.
func NewConverter(reporting domain.Currency) Converter {
	return Converter{reporting: reporting}
}

// ReportingCurrency returns the target currency.
func (c Converter) ReportingCurrency() domain.Currency {
	return c.reporting
}

// ToReporting converts amount from currency into the reporting currency.
// The product is exact; rounding is left to the presentation boundary.
func (c Converter) ToReporting(amount decimal.Decimal, currency domain.Currency, table domain.RateTable) (decimal.Decimal, error) {
	if currency == c.reporting {
		return amount, nil
	}
	rate, ok := table[currency]
	if !ok {
		return decimal.Zero, errors.New(errors.CodeUnknownCurrency, "no rate for currency %s", currency)
	}
	return amount.Mul(rate), nil
}
