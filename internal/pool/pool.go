// Package pool holds the reserve and share bookkeeping for a single
// bond/base pair. The pool owns its two reserve balances and the liquidity
// share supply; per-holder share balances and actual asset custody live
// outside it, so operations take already-received amounts as parameters and
// return the amounts the caller must transfer out. Every operation mutates
// state all-or-nothing under one mutex: a failure leaves the pool exactly as
// it was.
package pool

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"bondScope/internal/curve"
	"bondScope/internal/fixed"
)

// Policy errors. All are recoverable by the caller retrying with adjusted
// parameters; arithmetic errors from the fixed package are not.
var (
	ErrInvalidAmount      = errors.New("pool: amount must be positive")
	ErrInsufficientShares = errors.New("pool: insufficient shares")
	ErrSlippageExceeded   = errors.New("pool: slippage exceeded")
	ErrRatioMismatch      = errors.New("pool: deposit ratio mismatch")
)

// DefaultScale is the base-unit scale for 18-decimal assets.
var DefaultScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Config fixes a pool's immutable parameters at construction.
type Config struct {
	BaseAsset   string
	BondAsset   string
	Maturity    uint64
	DecayPeriod uint64   // seconds over which the exponent decays, e.g. four years
	Scale       *big.Int // base units per whole token; DefaultScale when nil
}

// Pool is the stateful reserve ledger. All exported methods serialize on the
// internal mutex; independent pools share nothing and run fully concurrently.
type Pool struct {
	cfg   Config
	k     fixed.Fixed
	scale *big.Int

	mu          sync.Mutex
	baseReserve *big.Int
	bondReserve *big.Int
	totalShares *big.Int
}

// New constructs an empty pool. Reserves and shares start at zero; the first
// mint fixes the initial price ratio.
func New(cfg Config) (*Pool, error) {
	if cfg.BaseAsset == "" || cfg.BondAsset == "" {
		return nil, fmt.Errorf("pool: asset ids are required")
	}
	if cfg.BaseAsset == cfg.BondAsset {
		return nil, fmt.Errorf("pool: base and bond assets must differ")
	}
	if cfg.Maturity == 0 {
		return nil, fmt.Errorf("pool: maturity is required")
	}
	if cfg.DecayPeriod == 0 {
		return nil, fmt.Errorf("pool: decay period is required")
	}
	scale := cfg.Scale
	if scale == nil {
		scale = DefaultScale
	}
	if scale.Sign() <= 0 {
		return nil, fmt.Errorf("pool: scale must be positive")
	}
	k, err := fixed.FromFraction(1, int64(cfg.DecayPeriod))
	if err != nil {
		return nil, fmt.Errorf("pool: decay constant: %w", err)
	}
	return &Pool{
		cfg:         cfg,
		k:           k,
		scale:       new(big.Int).Set(scale),
		baseReserve: big.NewInt(0),
		bondReserve: big.NewInt(0),
		totalShares: big.NewInt(0),
	}, nil
}

// Config returns the construction parameters.
func (p *Pool) Config() Config {
	return p.cfg
}

// DecayConstant returns k = 1/decayPeriod in 64.64 form.
func (p *Pool) DecayConstant() fixed.Fixed {
	return p.k
}

// Matured reports whether trading has closed.
func (p *Pool) Matured(now uint64) bool {
	return now >= p.cfg.Maturity
}

// BaseReserve returns a copy of the base reserve in base units.
func (p *Pool) BaseReserve() *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.baseReserve)
}

// BondReserve returns a copy of the bond reserve in base units.
func (p *Pool) BondReserve() *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.bondReserve)
}

// TotalShares returns a copy of the liquidity share supply.
func (p *Pool) TotalShares() *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.totalShares)
}

// Mint deposits liquidity and issues shares. The genesis mint takes both
// amounts as given and issues baseIn shares, implicitly setting the initial
// price. Later mints follow the proportional-fill policy: shares are sized
// by the smaller proportional leg, the consumed amounts are recomputed from
// the issued shares rounded up, and any surplus stays with the caller via
// the returned baseUsed/bondUsed. A deposit too small to mint a single share
// is rejected with ErrRatioMismatch.
func (p *Pool) Mint(now uint64, baseIn, bondIn *big.Int) (shares, baseUsed, bondUsed *big.Int, err error) {
	if baseIn == nil || bondIn == nil || baseIn.Sign() <= 0 || bondIn.Sign() <= 0 {
		return nil, nil, nil, ErrInvalidAmount
	}
	if p.Matured(now) {
		return nil, nil, nil, fmt.Errorf("pool: mint at %d: %w", now, curve.ErrPastMaturity)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.totalShares.Sign() == 0 {
		p.baseReserve = new(big.Int).Set(baseIn)
		p.bondReserve = new(big.Int).Set(bondIn)
		p.totalShares = new(big.Int).Set(baseIn)
		return new(big.Int).Set(baseIn), new(big.Int).Set(baseIn), new(big.Int).Set(bondIn), nil
	}

	byBase := new(big.Int).Mul(baseIn, p.totalShares)
	byBase.Quo(byBase, p.baseReserve)
	byBond := new(big.Int).Mul(bondIn, p.totalShares)
	byBond.Quo(byBond, p.bondReserve)

	shares = byBase
	if byBond.Cmp(byBase) < 0 {
		shares = byBond
	}
	if shares.Sign() == 0 {
		return nil, nil, nil, fmt.Errorf("pool: deposit too small for one share: %w", ErrRatioMismatch)
	}

	baseUsed = ceilDiv(new(big.Int).Mul(shares, p.baseReserve), p.totalShares)
	bondUsed = ceilDiv(new(big.Int).Mul(shares, p.bondReserve), p.totalShares)

	p.baseReserve.Add(p.baseReserve, baseUsed)
	p.bondReserve.Add(p.bondReserve, bondUsed)
	p.totalShares.Add(p.totalShares, shares)
	return shares, baseUsed, bondUsed, nil
}

// Burn redeems shares for the proportional slice of both reserves. Burning
// is allowed before and after maturity, but may never fully drain either
// reserve: at least one base unit of each must remain so the curve's power
// domain stays valid.
func (p *Pool) Burn(now uint64, sharesIn *big.Int) (baseOut, bondOut *big.Int, err error) {
	if sharesIn == nil || sharesIn.Sign() <= 0 {
		return nil, nil, ErrInvalidAmount
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if sharesIn.Cmp(p.totalShares) > 0 {
		return nil, nil, fmt.Errorf("pool: burn %s of %s shares: %w", sharesIn, p.totalShares, ErrInsufficientShares)
	}

	baseOut = new(big.Int).Mul(sharesIn, p.baseReserve)
	baseOut.Quo(baseOut, p.totalShares)
	bondOut = new(big.Int).Mul(sharesIn, p.bondReserve)
	bondOut.Quo(bondOut, p.totalShares)

	one := big.NewInt(1)
	if new(big.Int).Sub(p.baseReserve, baseOut).Cmp(one) < 0 ||
		new(big.Int).Sub(p.bondReserve, bondOut).Cmp(one) < 0 {
		return nil, nil, fmt.Errorf("pool: burn would drain a reserve: %w", ErrInsufficientShares)
	}

	p.baseReserve.Sub(p.baseReserve, baseOut)
	p.bondReserve.Sub(p.bondReserve, bondOut)
	p.totalShares.Sub(p.totalShares, sharesIn)
	return baseOut, bondOut, nil
}

// SellBase trades an exact base amount in for bond out. The output is
// floor-rounded to base units; a nil minBondOut means no slippage floor.
func (p *Pool) SellBase(now uint64, baseIn, minBondOut *big.Int) (*big.Int, error) {
	return p.trade(now, baseIn, minBondOut, sellBaseKind)
}

// SellBond trades an exact bond amount in for base out.
func (p *Pool) SellBond(now uint64, bondIn, minBaseOut *big.Int) (*big.Int, error) {
	return p.trade(now, bondIn, minBaseOut, sellBondKind)
}

// BuyBond trades base in for an exact bond amount out. The required input is
// ceil-rounded to base units; a nil maxBaseIn means no slippage cap.
func (p *Pool) BuyBond(now uint64, bondOut, maxBaseIn *big.Int) (*big.Int, error) {
	return p.trade(now, bondOut, maxBaseIn, buyBondKind)
}

// BuyBase trades bond in for an exact base amount out.
func (p *Pool) BuyBase(now uint64, baseOut, maxBondIn *big.Int) (*big.Int, error) {
	return p.trade(now, baseOut, maxBondIn, buyBaseKind)
}

type tradeKind int

const (
	sellBaseKind tradeKind = iota
	sellBondKind
	buyBondKind
	buyBaseKind
)

func (p *Pool) trade(now uint64, amount, limit *big.Int, kind tradeKind) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	a, err := curve.Exponent(now, p.cfg.Maturity, p.k)
	if err != nil {
		return nil, err
	}
	if p.totalShares.Sign() == 0 {
		return nil, fmt.Errorf("pool: no liquidity: %w", curve.ErrInsufficientReserves)
	}

	base, err := fixed.FromUnits(p.baseReserve, p.scale)
	if err != nil {
		return nil, fmt.Errorf("pool: base reserve: %w", err)
	}
	bond, err := fixed.FromUnits(p.bondReserve, p.scale)
	if err != nil {
		return nil, fmt.Errorf("pool: bond reserve: %w", err)
	}
	amt, err := fixed.FromUnits(amount, p.scale)
	if err != nil {
		return nil, fmt.Errorf("pool: trade amount: %w", err)
	}

	switch kind {
	case sellBaseKind:
		out, err := curve.BondOutForBaseIn(amt, base, bond, a)
		if err != nil {
			return nil, err
		}
		bondOut := out.ToUnits(p.scale)
		if err := p.checkRemaining(p.bondReserve, bondOut); err != nil {
			return nil, err
		}
		if limit != nil && bondOut.Cmp(limit) < 0 {
			return nil, fmt.Errorf("pool: bond out %s below minimum %s: %w", bondOut, limit, ErrSlippageExceeded)
		}
		p.baseReserve.Add(p.baseReserve, amount)
		p.bondReserve.Sub(p.bondReserve, bondOut)
		return bondOut, nil

	case sellBondKind:
		out, err := curve.BaseOutForBondIn(amt, base, bond, a)
		if err != nil {
			return nil, err
		}
		baseOut := out.ToUnits(p.scale)
		if err := p.checkRemaining(p.baseReserve, baseOut); err != nil {
			return nil, err
		}
		if limit != nil && baseOut.Cmp(limit) < 0 {
			return nil, fmt.Errorf("pool: base out %s below minimum %s: %w", baseOut, limit, ErrSlippageExceeded)
		}
		p.bondReserve.Add(p.bondReserve, amount)
		p.baseReserve.Sub(p.baseReserve, baseOut)
		return baseOut, nil

	case buyBondKind:
		in, err := curve.BaseInForBondOut(amt, base, bond, a)
		if err != nil {
			return nil, err
		}
		baseIn := in.ToUnitsCeil(p.scale)
		if err := p.checkRemaining(p.bondReserve, amount); err != nil {
			return nil, err
		}
		if limit != nil && baseIn.Cmp(limit) > 0 {
			return nil, fmt.Errorf("pool: base in %s above maximum %s: %w", baseIn, limit, ErrSlippageExceeded)
		}
		p.baseReserve.Add(p.baseReserve, baseIn)
		p.bondReserve.Sub(p.bondReserve, amount)
		return baseIn, nil

	case buyBaseKind:
		in, err := curve.BondInForBaseOut(amt, base, bond, a)
		if err != nil {
			return nil, err
		}
		bondIn := in.ToUnitsCeil(p.scale)
		if err := p.checkRemaining(p.baseReserve, amount); err != nil {
			return nil, err
		}
		if limit != nil && bondIn.Cmp(limit) > 0 {
			return nil, fmt.Errorf("pool: bond in %s above maximum %s: %w", bondIn, limit, ErrSlippageExceeded)
		}
		p.bondReserve.Add(p.bondReserve, bondIn)
		p.baseReserve.Sub(p.baseReserve, amount)
		return bondIn, nil
	}
	return nil, fmt.Errorf("pool: unknown trade kind %d", kind)
}

// checkRemaining rejects trades that would leave the paying reserve below
// one base unit.
func (p *Pool) checkRemaining(reserve, out *big.Int) error {
	rest := new(big.Int).Sub(reserve, out)
	if rest.Cmp(big.NewInt(1)) < 0 {
		return fmt.Errorf("pool: trade would drain reserve: %w", curve.ErrInsufficientReserves)
	}
	return nil
}

func ceilDiv(num, den *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
