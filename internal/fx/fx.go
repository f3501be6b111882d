// Package fx converts fixed-point decimal amounts between currencies via a
// USD bridge over static rate tables.
//
// All monetary values use shopspring/decimal — never float64 for money.
// A Converter is an immutable snapshot: rates cannot change under an
// in-flight operation, and tests can inject deterministic tables.
package fx

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrUnsupportedCurrency is returned when either rate table lacks an entry
// for a requested currency.
var ErrUnsupportedCurrency = errors.New("fx: unsupported currency")

// Scale is the number of fractional digits kept for intermediate USD values
// and conversion results.
const Scale int32 = 8

// Rates holds the two static tables: currency→USD multipliers and
// USD→currency multipliers, keyed by ISO-style currency codes.
type Rates struct {
	ToUSD   map[string]decimal.Decimal
	FromUSD map[string]decimal.Decimal
}

// Converter performs currency conversion over an immutable rate snapshot.
// It is a pure calculator: no state, no side effects.
type Converter struct {
	toUSD   map[string]decimal.Decimal
	fromUSD map[string]decimal.Decimal
}

// NewConverter copies the given tables into an immutable snapshot.
func NewConverter(rates Rates) *Converter {
	c := &Converter{
		toUSD:   make(map[string]decimal.Decimal, len(rates.ToUSD)),
		fromUSD: make(map[string]decimal.Decimal, len(rates.FromUSD)),
	}
	for code, r := range rates.ToUSD {
		c.toUSD[code] = r
	}
	for code, r := range rates.FromUSD {
		c.fromUSD[code] = r
	}
	return c
}

// Convert converts amount from one currency to another through an
// intermediate USD value. Matching currencies return the amount unchanged.
// The intermediate USD amount is rounded to Scale fractional digits before
// the second leg, as is the final result.
func (c *Converter) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}

	toUSD, ok := c.toUSD[from]
	if !ok {
		return decimal.Zero, ErrUnsupportedCurrency
	}
	fromUSD, ok := c.fromUSD[to]
	if !ok {
		return decimal.Zero, ErrUnsupportedCurrency
	}

	usd := amount.Mul(toUSD).Round(Scale)
	return usd.Mul(fromUSD).Round(Scale), nil
}

// Rate returns the conversion rate beneficiary-amount / source-amount for the
// given currency pair: 1 for matching currencies.
func (c *Converter) Rate(from, to string) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	toUSD, ok := c.toUSD[from]
	if !ok {
		return decimal.Zero, ErrUnsupportedCurrency
	}
	fromUSD, ok := c.fromUSD[to]
	if !ok {
		return decimal.Zero, ErrUnsupportedCurrency
	}

	return toUSD.Mul(fromUSD).Round(Scale), nil
}

// Supports reports whether both tables carry the given currency.
func (c *Converter) Supports(code string) bool {
	_, to := c.toUSD[code]
	_, from := c.fromUSD[code]
	return to && from
}

// DefaultRates returns the built-in static tables. Production deployments
// override these from configuration.
func DefaultRates() Rates {
	d := func(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }
	return Rates{
		ToUSD: map[string]decimal.Decimal{
			"USD": d(1),
			"EUR": d(1.09),
			"GBP": d(1.27),
			"CAD": d(0.74),
			"NGN": d(0.00065),
			"GHS": d(0.064),
			"KES": d(0.0077),
			"ZAR": d(0.055),
			"JPY": d(0.0067),
		},
		FromUSD: map[string]decimal.Decimal{
			"USD": d(1),
			"EUR": d(0.917431),
			"GBP": d(0.787402),
			"CAD": d(1.351351),
			"NGN": d(1538.461538),
			"GHS": d(15.625),
			"KES": d(129.87013),
			"ZAR": d(18.181818),
			"JPY": d(149.253731),
		},
	}
}
