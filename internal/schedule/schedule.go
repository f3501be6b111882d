// Package schedule generates accrual schedules: a sequence of daily value
// increments whose sum equals a position's target total return.
//
// Sampling uses float64 (Box–Muller needs transcendental math); results are
// converted to decimal immediately and the rescale to the target is performed
// in decimal so the sum invariant holds exactly.
package schedule

import (
	"errors"
	"math"
	"math/rand"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidPrincipal is returned when principal <= 0.
	ErrInvalidPrincipal = errors.New("schedule: principal must be positive")

	// ErrInvalidPeriod is returned when the maturity period is not at least
	// one day.
	ErrInvalidPeriod = errors.New("schedule: maturity period must be at least one day")
)

// DefaultVolatility is the moderate volatility factor used when a caller
// does not configure one: per-day standard deviation as a fraction of the
// per-day mean increment.
const DefaultVolatility = 0.35

// IncrementScale is the number of decimal places increments are rounded to.
const IncrementScale int32 = 8

// DaysPerYear annualizes the target return.
var DaysPerYear = decimal.NewFromInt(365)

// Params are the inputs to schedule generation.
type Params struct {
	Principal           decimal.Decimal
	AnnualReturnPercent decimal.Decimal
	MaturityPeriodDays  int

	// Volatility scales per-day randomness; 0 selects DefaultVolatility.
	Volatility float64
}

// Schedule is a generated accrual schedule.
type Schedule struct {
	Increments []decimal.Decimal
	Target     decimal.Decimal // exact sum of Increments
}

// Target computes the total return a schedule distributes:
//
//	principal * (rate/100) * (days/365)
func Target(principal, annualReturnPercent decimal.Decimal, days int) decimal.Decimal {
	return principal.
		Mul(annualReturnPercent).
		Div(decimal.NewFromInt(100)).
		Mul(decimal.NewFromInt(int64(days))).
		Div(DaysPerYear)
}

// Generate produces one increment per day of the maturity period.
//
// Each day is sampled from a normal distribution centered on target/days,
// clamped to no worse than −20% of the per-day mean so the walk never takes
// large negative excursions, then every increment is rescaled so the sum
// equals the target exactly. The random source is injected so callers can
// reproduce exact sequences.
func Generate(p Params, rng *rand.Rand) (Schedule, error) {
	if p.Principal.LessThanOrEqual(decimal.Zero) {
		return Schedule{}, ErrInvalidPrincipal
	}
	if p.MaturityPeriodDays < 1 {
		return Schedule{}, ErrInvalidPeriod
	}

	vol := p.Volatility
	if vol <= 0 {
		vol = DefaultVolatility
	}

	days := p.MaturityPeriodDays
	target := Target(p.Principal, p.AnnualReturnPercent, days)

	mean := target.InexactFloat64() / float64(days)
	stddev := math.Abs(mean) * vol
	floor := -0.2 * math.Abs(mean) // downside floor

	samples := make([]float64, days)
	var sum float64
	for i := range samples {
		v := mean + normal(rng)*stddev
		if v < floor {
			v = floor
		}
		samples[i] = v
		sum += v
	}

	increments := make([]decimal.Decimal, days)

	if sum == 0 {
		// Degenerate draw: fall back to a flat schedule.
		even := target.Div(decimal.NewFromInt(int64(days))).Round(IncrementScale)
		for i := range increments {
			increments[i] = even
		}
	} else {
		// Rescale in decimal so increments sum to the target.
		decSum := decimal.NewFromFloat(sum)
		for i, v := range samples {
			increments[i] = decimal.NewFromFloat(v).
				Mul(target).
				Div(decSum).
				Round(IncrementScale)
		}
	}

	// Absorb rounding residue into the final increment: the sum invariant is
	// exact, not approximate.
	partial := decimal.Zero
	for _, inc := range increments[:days-1] {
		partial = partial.Add(inc)
	}
	increments[days-1] = target.Sub(partial)

	return Schedule{Increments: increments, Target: target}, nil
}

// normal returns a standard normal sample via the Box–Muller transform.
func normal(rng *rand.Rand) float64 {
	u1 := rng.Float64()
	for u1 == 0 {
		u1 = rng.Float64()
	}
	u2 := rng.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}
