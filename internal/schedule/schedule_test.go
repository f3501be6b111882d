package schedule_test

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regionspay/invest-engine/internal/schedule"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func generate(t *testing.T, principal, rate float64, days int, seed int64) schedule.Schedule {
	t.Helper()
	s, err := schedule.Generate(schedule.Params{
		Principal:           d(principal),
		AnnualReturnPercent: d(rate),
		MaturityPeriodDays:  days,
	}, rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	return s
}

func TestTarget(t *testing.T) {
	// 1000 USD at 12% over 30 days ≈ 9.8630
	target := schedule.Target(d(1000), d(12), 30)
	assert.True(t, target.Sub(d(9.8630)).Abs().LessThan(d(0.001)),
		"target = %s", target)
}

func TestGenerate_SumEqualsTarget(t *testing.T) {
	cases := []struct {
		principal float64
		rate      float64
		days      int
	}{
		{1000, 12, 30},
		{50, 8, 7},
		{250000, 14.5, 365},
		{99.99, 10, 90},
		{1000, 12, 1},
	}

	for _, tc := range cases {
		for seed := int64(1); seed <= 5; seed++ {
			s := generate(t, tc.principal, tc.rate, tc.days, seed)
			require.Len(t, s.Increments, tc.days)

			sum := decimal.Zero
			for _, inc := range s.Increments {
				sum = sum.Add(inc)
			}
			// Exact by construction; 1e-6 tolerance guards decimal exponent
			// normalization only.
			assert.True(t, sum.Sub(s.Target).Abs().LessThan(d(0.000001)),
				"principal=%v days=%d seed=%d: sum=%s target=%s",
				tc.principal, tc.days, seed, sum, s.Target)
		}
	}
}

func TestGenerate_DeterministicWithSeed(t *testing.T) {
	a := generate(t, 1000, 12, 30, 42)
	b := generate(t, 1000, 12, 30, 42)

	require.Len(t, b.Increments, len(a.Increments))
	for i := range a.Increments {
		assert.True(t, a.Increments[i].Equal(b.Increments[i]),
			"increment %d differs: %s vs %s", i, a.Increments[i], b.Increments[i])
	}
}

func TestGenerate_DownsideFloor(t *testing.T) {
	s := generate(t, 1000, 12, 365, 7)

	// Before rescaling no sample may go below −20% of the per-day mean; after
	// rescaling (a positive factor near 1) increments stay well above −mean.
	mean := s.Target.Div(d(365))
	floor := mean.Mul(d(-1))
	for i, inc := range s.Increments {
		assert.True(t, inc.GreaterThan(floor),
			"increment %d = %s breaches floor %s", i, inc, floor)
	}
}

func TestGenerate_InvalidInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	_, err := schedule.Generate(schedule.Params{
		Principal:           decimal.Zero,
		AnnualReturnPercent: d(12),
		MaturityPeriodDays:  30,
	}, rng)
	assert.ErrorIs(t, err, schedule.ErrInvalidPrincipal)

	_, err = schedule.Generate(schedule.Params{
		Principal:           d(1000),
		AnnualReturnPercent: d(12),
		MaturityPeriodDays:  0,
	}, rng)
	assert.ErrorIs(t, err, schedule.ErrInvalidPeriod)
}

func TestGenerate_VolatilitySpreadsIncrements(t *testing.T) {
	low, err := schedule.Generate(schedule.Params{
		Principal:           d(1000),
		AnnualReturnPercent: d(12),
		MaturityPeriodDays:  180,
		Volatility:          0.05,
	}, rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	high, err := schedule.Generate(schedule.Params{
		Principal:           d(1000),
		AnnualReturnPercent: d(12),
		MaturityPeriodDays:  180,
		Volatility:          0.9,
	}, rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	spread := func(s schedule.Schedule) decimal.Decimal {
		min, max := s.Increments[0], s.Increments[0]
		for _, inc := range s.Increments {
			if inc.LessThan(min) {
				min = inc
			}
			if inc.GreaterThan(max) {
				max = inc
			}
		}
		return max.Sub(min)
	}

	assert.True(t, spread(high).GreaterThan(spread(low)),
		"high-volatility spread %s should exceed low-volatility spread %s",
		spread(high), spread(low))
}
