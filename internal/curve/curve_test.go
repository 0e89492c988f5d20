package curve

import (
	"errors"
	"math/big"
	"testing"

	"bondScope/internal/fixed"
)

const (
	oneYear    = uint64(31556952)
	fourYears  = uint64(126144000)
	testNow    = uint64(1_700_000_000)
	testExpiry = testNow + oneYear
)

func testDecayConstant(t *testing.T) fixed.Fixed {
	t.Helper()
	k, err := fixed.FromFraction(1, int64(fourYears))
	if err != nil {
		t.Fatalf("decay constant: %v", err)
	}
	return k
}

func testExponent(t *testing.T) fixed.Fixed {
	t.Helper()
	a, err := Exponent(testNow, testExpiry, testDecayConstant(t))
	if err != nil {
		t.Fatalf("exponent: %v", err)
	}
	return a
}

// driftTolerance is the invariant equality bound used across the engine:
// 2^-20 in 64.64 whole-token units.
var driftTolerance = new(big.Int).Lsh(big.NewInt(1), 44)

func absRawDiff(a, b fixed.Fixed) *big.Int {
	d := new(big.Int).Sub(a.Raw(), b.Raw())
	return d.Abs(d)
}

func TestExponentRange(t *testing.T) {
	a := testExponent(t)
	if a.Sign() <= 0 || a.Cmp(fixed.One()) >= 0 {
		t.Fatalf("exponent out of (0,1): %s", a)
	}

	// One year of a four-year period decays the exponent to roughly 3/4.
	lo, _ := fixed.FromFraction(74, 100)
	hi, _ := fixed.FromFraction(76, 100)
	if a.Cmp(lo) < 0 || a.Cmp(hi) > 0 {
		t.Fatalf("exponent outside expected band: %s", a)
	}
}

func TestExponentPastMaturity(t *testing.T) {
	k := testDecayConstant(t)
	if _, err := Exponent(testExpiry, testExpiry, k); !errors.Is(err, ErrPastMaturity) {
		t.Fatalf("expected past maturity, got %v", err)
	}
	if _, err := Exponent(testExpiry+1, testExpiry, k); !errors.Is(err, ErrPastMaturity) {
		t.Fatalf("expected past maturity, got %v", err)
	}
}

func TestExponentBeyondDecayPeriod(t *testing.T) {
	k := testDecayConstant(t)
	if _, err := Exponent(testNow, testNow+fourYears+1, k); err == nil {
		t.Fatalf("expected error for exponent at or below zero")
	}
}

func TestSellBondScenario(t *testing.T) {
	base := fixed.FromInt64(1000)
	bond := fixed.FromInt64(1100)
	a := testExponent(t)

	before, err := Invariant(base, bond, a)
	if err != nil {
		t.Fatalf("invariant: %v", err)
	}

	in := fixed.FromInt64(10)
	out, err := BaseOutForBondIn(in, base, bond, a)
	if err != nil {
		t.Fatalf("sell bond: %v", err)
	}
	// Before maturity the bond trades below par: ten bonds fetch less than
	// ten base.
	if out.Sign() <= 0 {
		t.Fatalf("expected positive base out, got %s", out)
	}
	if out.Cmp(in) >= 0 {
		t.Fatalf("bond sold at or above par: %s", out)
	}

	newBase, err := fixed.Sub(base, out)
	if err != nil {
		t.Fatalf("new base: %v", err)
	}
	newBond, err := fixed.Add(bond, in)
	if err != nil {
		t.Fatalf("new bond: %v", err)
	}
	after, err := Invariant(newBase, newBond, a)
	if err != nil {
		t.Fatalf("invariant after: %v", err)
	}
	if absRawDiff(before, after).Cmp(driftTolerance) > 0 {
		t.Fatalf("invariant drift too large: %s vs %s", before, after)
	}
}

func TestSellBaseScenario(t *testing.T) {
	base := fixed.FromInt64(1000)
	bond := fixed.FromInt64(1100)
	a := testExponent(t)

	before, err := Invariant(base, bond, a)
	if err != nil {
		t.Fatalf("invariant: %v", err)
	}

	in := fixed.FromInt64(10)
	out, err := BondOutForBaseIn(in, base, bond, a)
	if err != nil {
		t.Fatalf("sell base: %v", err)
	}
	// The mirror direction: a discounted bond means base buys more than par.
	if out.Cmp(in) <= 0 {
		t.Fatalf("expected more than ten bonds out, got %s", out)
	}

	newBase, err := fixed.Add(base, in)
	if err != nil {
		t.Fatalf("new base: %v", err)
	}
	newBond, err := fixed.Sub(bond, out)
	if err != nil {
		t.Fatalf("new bond: %v", err)
	}
	after, err := Invariant(newBase, newBond, a)
	if err != nil {
		t.Fatalf("invariant after: %v", err)
	}
	if absRawDiff(before, after).Cmp(driftTolerance) > 0 {
		t.Fatalf("invariant drift too large: %s vs %s", before, after)
	}
}

func TestMonotonicity(t *testing.T) {
	base := fixed.FromInt64(1000)
	bond := fixed.FromInt64(1100)
	a := testExponent(t)

	prev := fixed.Zero()
	for _, n := range []int64{1, 5, 10, 50, 100} {
		out, err := BondOutForBaseIn(fixed.FromInt64(n), base, bond, a)
		if err != nil {
			t.Fatalf("sell %d base: %v", n, err)
		}
		if out.Cmp(prev) <= 0 {
			t.Fatalf("selling more base must yield more bond: %s <= %s", out, prev)
		}
		prev = out
	}
}

func TestExactOutputMirrors(t *testing.T) {
	base := fixed.FromInt64(1000)
	bond := fixed.FromInt64(1100)
	a := testExponent(t)

	bondOut, err := BondOutForBaseIn(fixed.FromInt64(10), base, bond, a)
	if err != nil {
		t.Fatalf("sell base: %v", err)
	}
	baseIn, err := BaseInForBondOut(bondOut, base, bond, a)
	if err != nil {
		t.Fatalf("buy bond: %v", err)
	}
	if absRawDiff(baseIn, fixed.FromInt64(10)).Cmp(driftTolerance) > 0 {
		t.Fatalf("exact-output mirror drift: %s", baseIn)
	}

	baseOut, err := BaseOutForBondIn(fixed.FromInt64(10), base, bond, a)
	if err != nil {
		t.Fatalf("sell bond: %v", err)
	}
	bondIn, err := BondInForBaseOut(baseOut, base, bond, a)
	if err != nil {
		t.Fatalf("buy base: %v", err)
	}
	if absRawDiff(bondIn, fixed.FromInt64(10)).Cmp(driftTolerance) > 0 {
		t.Fatalf("exact-output mirror drift: %s", bondIn)
	}
}

func TestDrainRejected(t *testing.T) {
	base := fixed.FromInt64(1000)
	bond := fixed.FromInt64(1100)
	a := testExponent(t)

	if _, err := BaseInForBondOut(bond, base, bond, a); !errors.Is(err, ErrInsufficientReserves) {
		t.Fatalf("expected insufficient reserves, got %v", err)
	}
	if _, err := BondInForBaseOut(base, base, bond, a); !errors.Is(err, ErrInsufficientReserves) {
		t.Fatalf("expected insufficient reserves, got %v", err)
	}
	if _, err := BondOutForBaseIn(fixed.Zero(), base, bond, a); !errors.Is(err, ErrInsufficientReserves) {
		t.Fatalf("expected insufficient reserves for zero input, got %v", err)
	}
	if _, err := Invariant(fixed.Zero(), bond, a); !errors.Is(err, ErrInsufficientReserves) {
		t.Fatalf("expected insufficient reserves for zero reserve, got %v", err)
	}
}
