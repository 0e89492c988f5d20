package fixed

import (
	"errors"
	"math/big"
	"testing"
)

func mustFraction(t *testing.T, num, den int64) Fixed {
	t.Helper()
	f, err := FromFraction(num, den)
	if err != nil {
		t.Fatalf("fraction %d/%d: %v", num, den, err)
	}
	return f
}

func rawDiff(a, b Fixed) *big.Int {
	d := new(big.Int).Sub(a.Raw(), b.Raw())
	return d.Abs(d)
}

func TestAddSub(t *testing.T) {
	a := FromInt64(3)
	b := mustFraction(t, 1, 2)

	sum, err := Add(a, b)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if sum.String() != "3.5" {
		t.Fatalf("sum mismatch: %s", sum)
	}

	diff, err := Sub(a, b)
	if err != nil {
		t.Fatalf("sub: %v", err)
	}
	if diff.String() != "2.5" {
		t.Fatalf("diff mismatch: %s", diff)
	}
}

func TestAddOverflow(t *testing.T) {
	max, err := New(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1)))
	if err != nil {
		t.Fatalf("max: %v", err)
	}
	if _, err := Add(max, One()); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}

	min, err := New(new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127)))
	if err != nil {
		t.Fatalf("min: %v", err)
	}
	if _, err := Sub(min, One()); !errors.Is(err, ErrUnderflow) {
		t.Fatalf("expected underflow, got %v", err)
	}
}

func TestMul(t *testing.T) {
	got, err := Mul(mustFraction(t, 3, 2), FromInt64(2))
	if err != nil {
		t.Fatalf("mul: %v", err)
	}
	if got.Cmp(FromInt64(3)) != 0 {
		t.Fatalf("mul mismatch: %s", got)
	}

	if _, err := Mul(FromInt64(1<<32), FromInt64(1<<32)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestDiv(t *testing.T) {
	got, err := Div(One(), FromInt64(2))
	if err != nil {
		t.Fatalf("div: %v", err)
	}
	if got.Cmp(mustFraction(t, 1, 2)) != 0 {
		t.Fatalf("div mismatch: %s", got)
	}

	if _, err := Div(One(), Zero()); !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected division by zero, got %v", err)
	}
}

func TestPowExact(t *testing.T) {
	got, err := Pow(FromInt64(4), One(), FromInt64(2))
	if err != nil {
		t.Fatalf("pow 4^(1/2): %v", err)
	}
	if got.Cmp(FromInt64(2)) != 0 {
		t.Fatalf("4^(1/2) mismatch: %s", got)
	}

	got, err = Pow(FromInt64(2), FromInt64(3), One())
	if err != nil {
		t.Fatalf("pow 2^3: %v", err)
	}
	if got.Cmp(FromInt64(8)) != 0 {
		t.Fatalf("2^3 mismatch: %s", got)
	}

	got, err = Pow(FromInt64(7), Zero(), One())
	if err != nil {
		t.Fatalf("pow 7^0: %v", err)
	}
	if got.Cmp(One()) != 0 {
		t.Fatalf("7^0 mismatch: %s", got)
	}
}

func TestPowDomain(t *testing.T) {
	if _, err := Pow(Zero(), One(), One()); !errors.Is(err, ErrNonPositiveBase) {
		t.Fatalf("expected non-positive base, got %v", err)
	}
	neg, err := FromInt64(3).Neg()
	if err != nil {
		t.Fatalf("neg: %v", err)
	}
	if _, err := Pow(neg, One(), One()); !errors.Is(err, ErrNonPositiveBase) {
		t.Fatalf("expected non-positive base, got %v", err)
	}
	if _, err := Pow(FromInt64(3), One(), Zero()); !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected division by zero, got %v", err)
	}
	if _, err := Log2(Zero()); !errors.Is(err, ErrNonPositiveBase) {
		t.Fatalf("expected non-positive base, got %v", err)
	}
}

func TestPowIdentity(t *testing.T) {
	tolerance := big.NewInt(1 << 6)
	for _, n := range []int64{2, 3, 17, 1000, 1100} {
		x := FromInt64(n)
		got, err := Pow(x, One(), One())
		if err != nil {
			t.Fatalf("pow %d^1: %v", n, err)
		}
		if rawDiff(got, x).Cmp(tolerance) > 0 {
			t.Fatalf("%d^1 drift too large: %s vs %s", n, got, x)
		}
	}
}

func TestExp2Log2RoundTrip(t *testing.T) {
	// Log2 truncates its Q128 accumulator to 64 fractional bits, and Exp2
	// magnifies that by ln2 * value, so the tolerance scales with the input.
	for _, n := range []int64{2, 3, 150, 1024} {
		x := FromInt64(n)
		lg, err := Log2(x)
		if err != nil {
			t.Fatalf("log2 %d: %v", n, err)
		}
		back, err := Exp2(lg)
		if err != nil {
			t.Fatalf("exp2: %v", err)
		}
		if rawDiff(back, x).Cmp(big.NewInt(2*n)) > 0 {
			t.Fatalf("round trip %d drift: %s", n, back)
		}
	}
}

func TestExp2Exact(t *testing.T) {
	got, err := Exp2(FromInt64(10))
	if err != nil {
		t.Fatalf("exp2 10: %v", err)
	}
	if got.Cmp(FromInt64(1024)) != 0 {
		t.Fatalf("2^10 mismatch: %s", got)
	}

	neg, err := FromInt64(1).Neg()
	if err != nil {
		t.Fatalf("neg: %v", err)
	}
	got, err = Exp2(neg)
	if err != nil {
		t.Fatalf("exp2 -1: %v", err)
	}
	if got.Cmp(mustFraction(t, 1, 2)) != 0 {
		t.Fatalf("2^-1 mismatch: %s", got)
	}

	if _, err := Exp2(FromInt64(64)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestPowDeterminism(t *testing.T) {
	base := mustFraction(t, 1100, 1)
	num := mustFraction(t, 3, 4)
	a, err := Pow(base, num, One())
	if err != nil {
		t.Fatalf("pow: %v", err)
	}
	b, err := Pow(base, num, One())
	if err != nil {
		t.Fatalf("pow: %v", err)
	}
	if a.Raw().Cmp(b.Raw()) != 0 {
		t.Fatalf("pow not bit-stable: %s vs %s", a.Raw(), b.Raw())
	}
}

func TestUnits(t *testing.T) {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	one, err := FromUnits(new(big.Int).Set(scale), scale)
	if err != nil {
		t.Fatalf("from units: %v", err)
	}
	if one.Cmp(One()) != 0 {
		t.Fatalf("one token mismatch: %s", one)
	}

	half := new(big.Int).Quo(scale, big.NewInt(2))
	f, err := FromUnits(half, scale)
	if err != nil {
		t.Fatalf("from units: %v", err)
	}
	if f.Cmp(mustFraction(t, 1, 2)) != 0 {
		t.Fatalf("half token mismatch: %s", f)
	}
	if f.ToUnits(scale).Cmp(half) != 0 {
		t.Fatalf("to units mismatch: %s", f.ToUnits(scale))
	}

	third := mustFraction(t, 1, 3)
	floor := third.ToUnits(scale)
	ceil := third.ToUnitsCeil(scale)
	if new(big.Int).Sub(ceil, floor).Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("ceil should exceed floor by one unit: %s vs %s", ceil, floor)
	}
}

func TestString(t *testing.T) {
	if s := FromInt64(42).String(); s != "42" {
		t.Fatalf("string mismatch: %s", s)
	}
	if s := mustFraction(t, -5, 2).String(); s != "-2.5" {
		t.Fatalf("string mismatch: %s", s)
	}
}
