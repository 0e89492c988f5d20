// Package curve prices trades against the time-decaying constant-power
// invariant base^a + bond^a, where the exponent a shrinks from 1 as maturity
// recedes into the future and returns to 1 at maturity. All functions are
// stateless: they take reserves and the exponent and solve the invariant
// equation for the one unknown side. Because x^a is strictly monotonic for
// positive x, the root is computed directly with Pow rather than searched.
package curve

import (
	"errors"
	"fmt"

	"bondScope/internal/fixed"
)

// Policy errors surfaced to callers as rejected operations.
var (
	ErrPastMaturity         = errors.New("curve: past maturity")
	ErrInsufficientReserves = errors.New("curve: insufficient reserves")
)

// Exponent returns a = 1 - k*(maturity-now) in 64.64 form. Trading contexts
// require now < maturity; redemption paths never call this.
func Exponent(now, maturity uint64, k fixed.Fixed) (fixed.Fixed, error) {
	if now >= maturity {
		return fixed.Fixed{}, fmt.Errorf("curve: now %d >= maturity %d: %w", now, maturity, ErrPastMaturity)
	}
	ttm := fixed.FromInt64(int64(maturity - now))
	decay, err := fixed.Mul(k, ttm)
	if err != nil {
		return fixed.Fixed{}, fmt.Errorf("curve: decay term: %w", err)
	}
	a, err := fixed.Sub(fixed.One(), decay)
	if err != nil {
		return fixed.Fixed{}, fmt.Errorf("curve: exponent: %w", err)
	}
	if a.Sign() <= 0 {
		return fixed.Fixed{}, fmt.Errorf("curve: time to maturity %d at or beyond decay period: %w", maturity-now, fixed.ErrNonPositiveBase)
	}
	return a, nil
}

// Invariant computes (base^a + bond^a)^(1/a) for positive reserves. Callers
// divide by the share supply to obtain the per-share correctness metric.
func Invariant(baseReserve, bondReserve, a fixed.Fixed) (fixed.Fixed, error) {
	sum, err := reserveSum(baseReserve, bondReserve, a)
	if err != nil {
		return fixed.Fixed{}, err
	}
	inv, err := fixed.Pow(sum, fixed.One(), a)
	if err != nil {
		return fixed.Fixed{}, fmt.Errorf("curve: invariant root: %w", err)
	}
	return inv, nil
}

// BondOutForBaseIn solves for the bond amount released when baseIn is added
// to the base reserve.
func BondOutForBaseIn(baseIn, baseReserve, bondReserve, a fixed.Fixed) (fixed.Fixed, error) {
	if baseIn.Sign() <= 0 {
		return fixed.Fixed{}, fmt.Errorf("curve: non-positive base input: %w", ErrInsufficientReserves)
	}
	newBase, err := fixed.Add(baseReserve, baseIn)
	if err != nil {
		return fixed.Fixed{}, fmt.Errorf("curve: grown base reserve: %w", err)
	}
	newBond, err := solveCounterReserve(baseReserve, bondReserve, newBase, a)
	if err != nil {
		return fixed.Fixed{}, err
	}
	out, err := fixed.Sub(bondReserve, newBond)
	if err != nil {
		return fixed.Fixed{}, fmt.Errorf("curve: bond out: %w", err)
	}
	if out.Sign() < 0 {
		return fixed.Fixed{}, fmt.Errorf("curve: bond reserve would go negative: %w", ErrInsufficientReserves)
	}
	return out, nil
}

// BaseOutForBondIn solves for the base amount released when bondIn is added
// to the bond reserve.
func BaseOutForBondIn(bondIn, baseReserve, bondReserve, a fixed.Fixed) (fixed.Fixed, error) {
	if bondIn.Sign() <= 0 {
		return fixed.Fixed{}, fmt.Errorf("curve: non-positive bond input: %w", ErrInsufficientReserves)
	}
	newBond, err := fixed.Add(bondReserve, bondIn)
	if err != nil {
		return fixed.Fixed{}, fmt.Errorf("curve: grown bond reserve: %w", err)
	}
	newBase, err := solveCounterReserve(bondReserve, baseReserve, newBond, a)
	if err != nil {
		return fixed.Fixed{}, err
	}
	out, err := fixed.Sub(baseReserve, newBase)
	if err != nil {
		return fixed.Fixed{}, fmt.Errorf("curve: base out: %w", err)
	}
	if out.Sign() < 0 {
		return fixed.Fixed{}, fmt.Errorf("curve: base reserve would go negative: %w", ErrInsufficientReserves)
	}
	return out, nil
}

// BaseInForBondOut solves the exact-output form: the base amount that must be
// paid in so that bondOut can leave the bond reserve.
func BaseInForBondOut(bondOut, baseReserve, bondReserve, a fixed.Fixed) (fixed.Fixed, error) {
	if bondOut.Sign() <= 0 {
		return fixed.Fixed{}, fmt.Errorf("curve: non-positive bond output: %w", ErrInsufficientReserves)
	}
	newBond, err := fixed.Sub(bondReserve, bondOut)
	if err != nil {
		return fixed.Fixed{}, fmt.Errorf("curve: shrunk bond reserve: %w", err)
	}
	if newBond.Sign() <= 0 {
		return fixed.Fixed{}, fmt.Errorf("curve: bond reserve would be drained: %w", ErrInsufficientReserves)
	}
	newBase, err := solveCounterReserve(bondReserve, baseReserve, newBond, a)
	if err != nil {
		return fixed.Fixed{}, err
	}
	in, err := fixed.Sub(newBase, baseReserve)
	if err != nil {
		return fixed.Fixed{}, fmt.Errorf("curve: base in: %w", err)
	}
	if in.Sign() < 0 {
		in = fixed.Zero()
	}
	return in, nil
}

// BondInForBaseOut solves the exact-output form: the bond amount that must be
// paid in so that baseOut can leave the base reserve.
func BondInForBaseOut(baseOut, baseReserve, bondReserve, a fixed.Fixed) (fixed.Fixed, error) {
	if baseOut.Sign() <= 0 {
		return fixed.Fixed{}, fmt.Errorf("curve: non-positive base output: %w", ErrInsufficientReserves)
	}
	newBase, err := fixed.Sub(baseReserve, baseOut)
	if err != nil {
		return fixed.Fixed{}, fmt.Errorf("curve: shrunk base reserve: %w", err)
	}
	if newBase.Sign() <= 0 {
		return fixed.Fixed{}, fmt.Errorf("curve: base reserve would be drained: %w", ErrInsufficientReserves)
	}
	newBond, err := solveCounterReserve(baseReserve, bondReserve, newBase, a)
	if err != nil {
		return fixed.Fixed{}, err
	}
	in, err := fixed.Sub(newBond, bondReserve)
	if err != nil {
		return fixed.Fixed{}, fmt.Errorf("curve: bond in: %w", err)
	}
	if in.Sign() < 0 {
		in = fixed.Zero()
	}
	return in, nil
}

// solveCounterReserve solves known^a + counter^a = newKnown^a + x^a for x,
// given the known side's reserve before and after the trade.
func solveCounterReserve(known, counter, newKnown, a fixed.Fixed) (fixed.Fixed, error) {
	sum, err := reserveSum(known, counter, a)
	if err != nil {
		return fixed.Fixed{}, err
	}
	moved, err := fixed.Pow(newKnown, a, fixed.One())
	if err != nil {
		return fixed.Fixed{}, fmt.Errorf("curve: new reserve power: %w", err)
	}
	rhs, err := fixed.Sub(sum, moved)
	if err != nil {
		return fixed.Fixed{}, fmt.Errorf("curve: invariant remainder: %w", err)
	}
	if rhs.Sign() <= 0 {
		return fixed.Fixed{}, fmt.Errorf("curve: trade would drain counter reserve: %w", ErrInsufficientReserves)
	}
	x, err := fixed.Pow(rhs, fixed.One(), a)
	if err != nil {
		return fixed.Fixed{}, fmt.Errorf("curve: counter reserve root: %w", err)
	}
	return x, nil
}

func reserveSum(baseReserve, bondReserve, a fixed.Fixed) (fixed.Fixed, error) {
	if baseReserve.Sign() <= 0 || bondReserve.Sign() <= 0 {
		return fixed.Fixed{}, fmt.Errorf("curve: reserves must be positive: %w", ErrInsufficientReserves)
	}
	bp, err := fixed.Pow(baseReserve, a, fixed.One())
	if err != nil {
		return fixed.Fixed{}, fmt.Errorf("curve: base reserve power: %w", err)
	}
	yp, err := fixed.Pow(bondReserve, a, fixed.One())
	if err != nil {
		return fixed.Fixed{}, fmt.Errorf("curve: bond reserve power: %w", err)
	}
	sum, err := fixed.Add(bp, yp)
	if err != nil {
		return fixed.Fixed{}, fmt.Errorf("curve: reserve power sum: %w", err)
	}
	return sum, nil
}
