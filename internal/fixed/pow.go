package fixed

import (
	"fmt"
	"math/big"
)

// The power operation is built from a binary logarithm and a binary
// exponential, both evaluated with 128 fractional bits so the 64 fractional
// bits finally delivered are accurate to a couple of ulp for magnitudes the
// curve works with. log2 extracts the integer part from the bit length and
// recovers fractional bits one at a time by repeated squaring; exp2 runs
// binary exponentiation over a table of 2^(2^-i) constants derived once from
// iterated integer square roots. No lookup constant is hand-transcribed, so
// the table cannot drift from the algorithm that consumes it.

const powFracBits = 128

var (
	oneQ128  = new(big.Int).Lsh(big.NewInt(1), powFracBits)
	maskQ128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), powFracBits), big.NewInt(1))

	// expTable[i] = 2^(2^-(i+1)) in Q128.
	expTable [powFracBits]*big.Int
)

func init() {
	c := new(big.Int).Lsh(big.NewInt(2), 2*powFracBits)
	for i := 0; i < powFracBits; i++ {
		c.Sqrt(c)
		expTable[i] = new(big.Int).Set(c)
		c = new(big.Int).Lsh(expTable[i], powFracBits)
	}
}

// Log2 returns the base-2 logarithm. The argument must be positive.
func Log2(x Fixed) (Fixed, error) {
	if x.raw().Sign() <= 0 {
		return Fixed{}, fmt.Errorf("fixed: log2 of %s: %w", x, ErrNonPositiveBase)
	}
	v := log2Q128(x.raw())
	v.Quo(v, oneRaw)
	if err := checkRange(v); err != nil {
		return Fixed{}, err
	}
	return Fixed{v: v}, nil
}

// Exp2 returns 2 raised to x. Results larger than the representable range
// fail with ErrOverflow; results smaller than one ulp truncate to zero.
func Exp2(x Fixed) (Fixed, error) {
	xq := new(big.Int).Lsh(x.raw(), powFracBits-fracBits)
	r, err := exp2Q128(xq)
	if err != nil {
		return Fixed{}, err
	}
	v := r.Rsh(r, powFracBits-fracBits)
	if err := checkRange(v); err != nil {
		return Fixed{}, err
	}
	return Fixed{v: v}, nil
}

// Pow computes base^(num/den) through the identity
// base^e = exp2(e * log2(base)). The base must be strictly positive; the
// denominator must be non-zero.
func Pow(base, num, den Fixed) (Fixed, error) {
	if base.raw().Sign() <= 0 {
		return Fixed{}, fmt.Errorf("fixed: pow base %s: %w", base, ErrNonPositiveBase)
	}
	if den.raw().Sign() == 0 {
		return Fixed{}, fmt.Errorf("fixed: pow exponent denominator: %w", ErrDivisionByZero)
	}
	if num.raw().Sign() == 0 {
		return One(), nil
	}

	t := log2Q128(base.raw())
	t.Mul(t, num.raw())
	t.Quo(t, den.raw())

	r, err := exp2Q128(t)
	if err != nil {
		return Fixed{}, err
	}
	v := r.Rsh(r, powFracBits-fracBits)
	if err := checkRange(v); err != nil {
		return Fixed{}, err
	}
	return Fixed{v: v}, nil
}

// log2Q128 computes log2 of a positive raw 64.64 value, returned in Q128.
func log2Q128(raw *big.Int) *big.Int {
	msb := raw.BitLen() - 1

	result := big.NewInt(int64(msb - fracBits))
	result.Lsh(result, powFracBits)

	// Normalize into [2^128, 2^129), then square out fractional bits.
	z := new(big.Int).Lsh(raw, uint(powFracBits-msb))
	bit := new(big.Int).Lsh(big.NewInt(1), powFracBits-1)
	for i := 0; i < powFracBits; i++ {
		z.Mul(z, z)
		z.Rsh(z, powFracBits)
		if z.BitLen() > powFracBits+1 {
			z.Rsh(z, 1)
			result.Add(result, bit)
		}
		bit.Rsh(bit, 1)
	}
	return result
}

// exp2Q128 computes 2^x for a signed Q128 argument, returned in Q128.
func exp2Q128(x *big.Int) (*big.Int, error) {
	frac := new(big.Int).And(x, maskQ128)
	n := new(big.Int).Sub(x, frac)
	n.Rsh(n, powFracBits)

	if n.Cmp(big.NewInt(63)) >= 0 {
		return nil, fmt.Errorf("fixed: exp2 exponent too large: %w", ErrOverflow)
	}
	if n.Cmp(big.NewInt(-2*powFracBits)) < 0 {
		return big.NewInt(0), nil
	}

	r := new(big.Int).Set(oneQ128)
	for i := 0; i < powFracBits; i++ {
		if frac.Bit(powFracBits-1-i) == 1 {
			r.Mul(r, expTable[i])
			r.Rsh(r, powFracBits)
		}
	}

	shift := n.Int64()
	if shift >= 0 {
		r.Lsh(r, uint(shift))
	} else {
		r.Rsh(r, uint(-shift))
	}
	return r, nil
}
