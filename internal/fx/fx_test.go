package fx_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regionspay/invest-engine/internal/fx"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// testConverter uses round-number tables so expected values are easy to
// compute by hand: 1 EUR = 2 USD, 1 GBP = 4 USD.
func testConverter() *fx.Converter {
	return fx.NewConverter(fx.Rates{
		ToUSD: map[string]decimal.Decimal{
			"USD": d(1),
			"EUR": d(2),
			"GBP": d(4),
		},
		FromUSD: map[string]decimal.Decimal{
			"USD": d(1),
			"EUR": d(0.5),
			"GBP": d(0.25),
		},
	})
}

func TestConvert_SameCurrency(t *testing.T) {
	c := testConverter()

	got, err := c.Convert(d(123.456), "USD", "USD")
	require.NoError(t, err)
	assert.True(t, got.Equal(d(123.456)), "got %s", got)
}

func TestConvert_ViaUSDBridge(t *testing.T) {
	c := testConverter()

	// 10 EUR → 20 USD → 5 GBP
	got, err := c.Convert(d(10), "EUR", "GBP")
	require.NoError(t, err)
	assert.True(t, got.Equal(d(5)), "got %s", got)
}

func TestConvert_ToUSD(t *testing.T) {
	c := testConverter()

	got, err := c.Convert(d(3), "GBP", "USD")
	require.NoError(t, err)
	assert.True(t, got.Equal(d(12)), "got %s", got)
}

func TestConvert_UnsupportedCurrency(t *testing.T) {
	c := testConverter()

	_, err := c.Convert(d(10), "XXX", "USD")
	assert.ErrorIs(t, err, fx.ErrUnsupportedCurrency)

	_, err = c.Convert(d(10), "USD", "XXX")
	assert.ErrorIs(t, err, fx.ErrUnsupportedCurrency)
}

func TestRate(t *testing.T) {
	c := testConverter()

	rate, err := c.Rate("EUR", "GBP")
	require.NoError(t, err)
	assert.True(t, rate.Equal(d(0.5)), "got %s", rate)

	rate, err = c.Rate("USD", "USD")
	require.NoError(t, err)
	assert.True(t, rate.Equal(d(1)))

	_, err = c.Rate("USD", "XXX")
	assert.ErrorIs(t, err, fx.ErrUnsupportedCurrency)
}

// Round-trip conversion must come back within rounding tolerance for every
// currency pair present in both tables.
func TestConvert_RoundTrip(t *testing.T) {
	c := fx.NewConverter(fx.DefaultRates())
	codes := []string{"USD", "EUR", "GBP", "CAD", "NGN", "GHS", "KES", "ZAR", "JPY"}
	tolerance := d(0.001) // relative

	for _, from := range codes {
		for _, to := range codes {
			amount := d(250)
			mid, err := c.Convert(amount, from, to)
			require.NoError(t, err, "%s->%s", from, to)
			back, err := c.Convert(mid, to, from)
			require.NoError(t, err, "%s->%s", to, from)

			relErr := back.Sub(amount).Abs().Div(amount)
			assert.True(t, relErr.LessThan(tolerance),
				"%s->%s->%s: 250 came back as %s", from, to, from, back)
		}
	}
}

func TestSupports(t *testing.T) {
	c := testConverter()
	assert.True(t, c.Supports("EUR"))
	assert.False(t, c.Supports("XXX"))
}
