// Package sim drives randomized operation sequences against a pool and
// checks that the curve invariant holds across them.
package sim

import (
	"fmt"
	"math/big"

	"bondScope/internal/curve"
	"bondScope/internal/fixed"
	"bondScope/internal/pool"
)

// DefaultTolerance is the allowed invariant-per-share movement per
// operation, 2^-20 in raw 64.64 units. Rounding always favors the pool, so
// observed drift sits far below this bound; anything above it means a bug.
var DefaultTolerance = new(big.Int).Lsh(big.NewInt(1), 44)

// Checker recomputes the invariant-per-share metric for a pool and tracks
// its movement between observations.
type Checker struct {
	tolerance *big.Int
	last      *big.Int
}

// NewChecker builds a checker with the given raw tolerance. A nil tolerance
// selects DefaultTolerance.
func NewChecker(tolerance *big.Int) *Checker {
	if tolerance == nil {
		tolerance = DefaultTolerance
	}
	return &Checker{tolerance: new(big.Int).Set(tolerance)}
}

// Metric computes invariant(base, bond, a) / totalShares in 64.64 form.
func (c *Checker) Metric(p *pool.Pool, now uint64) (fixed.Fixed, error) {
	a, err := curve.Exponent(now, p.Config().Maturity, p.DecayConstant())
	if err != nil {
		return fixed.Fixed{}, err
	}
	scale := p.Config().Scale
	if scale == nil {
		scale = pool.DefaultScale
	}
	base, err := fixed.FromUnits(p.BaseReserve(), scale)
	if err != nil {
		return fixed.Fixed{}, fmt.Errorf("base reserve: %w", err)
	}
	bond, err := fixed.FromUnits(p.BondReserve(), scale)
	if err != nil {
		return fixed.Fixed{}, fmt.Errorf("bond reserve: %w", err)
	}
	inv, err := curve.Invariant(base, bond, a)
	if err != nil {
		return fixed.Fixed{}, err
	}
	shares, err := fixed.FromUnits(p.TotalShares(), scale)
	if err != nil {
		return fixed.Fixed{}, fmt.Errorf("total shares: %w", err)
	}
	if shares.IsZero() {
		return fixed.Fixed{}, fmt.Errorf("empty pool: %w", curve.ErrInsufficientReserves)
	}
	return fixed.Div(inv, shares)
}

// Observe records the current metric and returns the signed raw drift since
// the previous observation. The first observation returns zero drift. A
// drift magnitude above the tolerance is reported as an error.
func (c *Checker) Observe(p *pool.Pool, now uint64) (*big.Int, error) {
	metric, err := c.Metric(p, now)
	if err != nil {
		return nil, err
	}
	raw := metric.Raw()
	if c.last == nil {
		c.last = raw
		return big.NewInt(0), nil
	}

	drift := new(big.Int).Sub(raw, c.last)
	c.last = raw
	if new(big.Int).Abs(drift).Cmp(c.tolerance) > 0 {
		return drift, fmt.Errorf("sim: invariant drift %s exceeds tolerance %s", drift, c.tolerance)
	}
	return drift, nil
}

// Reset forgets the previous observation, for use across liquidity events
// that legitimately move the per-share metric baseline.
func (c *Checker) Reset() {
	c.last = nil
}
