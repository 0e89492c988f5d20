// Package fixed implements signed 64.64 fixed-point arithmetic on top of
// math/big integers. A value is its raw backing integer divided by 2^64, and
// every public operation fails instead of wrapping when the raw result leaves
// the 128-bit range. All arithmetic is integer-only, so results are
// bit-for-bit identical across platforms.
package fixed

import (
	"errors"
	"fmt"
	"math/big"
)

// Arithmetic domain errors. These are fatal to the calling operation and are
// never retried internally.
var (
	ErrOverflow        = errors.New("fixed: overflow")
	ErrUnderflow       = errors.New("fixed: underflow")
	ErrDivisionByZero  = errors.New("fixed: division by zero")
	ErrNonPositiveBase = errors.New("fixed: non-positive base")
)

const fracBits = 64

var (
	oneRaw = new(big.Int).Lsh(big.NewInt(1), fracBits)
	maxRaw = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minRaw = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

// Fixed is an immutable signed 64.64 value. The zero Fixed is the number zero.
type Fixed struct {
	v *big.Int
}

func (f Fixed) raw() *big.Int {
	if f.v == nil {
		return big.NewInt(0)
	}
	return f.v
}

// Raw returns a copy of the backing integer (value * 2^64).
func (f Fixed) Raw() *big.Int {
	return new(big.Int).Set(f.raw())
}

// Zero returns the zero value.
func Zero() Fixed {
	return Fixed{}
}

// One returns the value 1.
func One() Fixed {
	return Fixed{v: new(big.Int).Set(oneRaw)}
}

// New builds a Fixed from a raw backing integer.
func New(raw *big.Int) (Fixed, error) {
	if raw == nil {
		return Fixed{}, fmt.Errorf("fixed: nil raw value")
	}
	v := new(big.Int).Set(raw)
	if err := checkRange(v); err != nil {
		return Fixed{}, err
	}
	return Fixed{v: v}, nil
}

// FromInt64 converts an integer count of whole units.
func FromInt64(n int64) Fixed {
	v := big.NewInt(n)
	v.Lsh(v, fracBits)
	return Fixed{v: v}
}

// FromFraction returns num/den as a Fixed value.
func FromFraction(num, den int64) (Fixed, error) {
	if den == 0 {
		return Fixed{}, fmt.Errorf("fixed: fraction %d/%d: %w", num, den, ErrDivisionByZero)
	}
	v := big.NewInt(num)
	v.Lsh(v, fracBits)
	v.Quo(v, big.NewInt(den))
	if err := checkRange(v); err != nil {
		return Fixed{}, err
	}
	return Fixed{v: v}, nil
}

// FromUnits converts a base-unit amount at the given scale (for example
// 10^18 base units per whole token) into a Fixed count of whole tokens,
// truncating toward zero.
func FromUnits(amount, scale *big.Int) (Fixed, error) {
	if amount == nil || scale == nil {
		return Fixed{}, fmt.Errorf("fixed: nil amount or scale")
	}
	if scale.Sign() == 0 {
		return Fixed{}, fmt.Errorf("fixed: zero scale: %w", ErrDivisionByZero)
	}
	v := new(big.Int).Lsh(amount, fracBits)
	v.Quo(v, scale)
	if err := checkRange(v); err != nil {
		return Fixed{}, err
	}
	return Fixed{v: v}, nil
}

// ToUnits converts back to base units at the given scale, rounding down.
func (f Fixed) ToUnits(scale *big.Int) *big.Int {
	v := new(big.Int).Mul(f.raw(), scale)
	return v.Rsh(v, fracBits)
}

// ToUnitsCeil converts back to base units at the given scale, rounding up.
func (f Fixed) ToUnitsCeil(scale *big.Int) *big.Int {
	v := new(big.Int).Mul(f.raw(), scale)
	rem := new(big.Int)
	v.QuoRem(v, oneRaw, rem)
	if rem.Sign() > 0 {
		v.Add(v, big.NewInt(1))
	}
	return v
}

// Sign reports -1, 0, or +1.
func (f Fixed) Sign() int {
	return f.raw().Sign()
}

// Cmp compares f against other.
func (f Fixed) Cmp(other Fixed) int {
	return f.raw().Cmp(other.raw())
}

// IsZero reports whether the value is exactly zero.
func (f Fixed) IsZero() bool {
	return f.raw().Sign() == 0
}

// Abs returns the absolute value. Abs of the minimum raw value overflows.
func (f Fixed) Abs() (Fixed, error) {
	v := new(big.Int).Abs(f.raw())
	if err := checkRange(v); err != nil {
		return Fixed{}, err
	}
	return Fixed{v: v}, nil
}

// Neg returns the negated value.
func (f Fixed) Neg() (Fixed, error) {
	v := new(big.Int).Neg(f.raw())
	if err := checkRange(v); err != nil {
		return Fixed{}, err
	}
	return Fixed{v: v}, nil
}

// String renders the value in decimal with up to 18 fractional digits.
func (f Fixed) String() string {
	v := f.raw()
	sign := ""
	abs := new(big.Int).Abs(v)
	if v.Sign() < 0 {
		sign = "-"
	}
	ip := new(big.Int).Rsh(abs, fracBits)
	frac := new(big.Int).And(abs, new(big.Int).Sub(oneRaw, big.NewInt(1)))
	if frac.Sign() == 0 {
		return sign + ip.String()
	}
	frac.Mul(frac, new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	frac.Rsh(frac, fracBits)
	digits := fmt.Sprintf("%018s", frac.String())
	for len(digits) > 1 && digits[len(digits)-1] == '0' {
		digits = digits[:len(digits)-1]
	}
	return sign + ip.String() + "." + digits
}

// Add returns a+b.
func Add(a, b Fixed) (Fixed, error) {
	v := new(big.Int).Add(a.raw(), b.raw())
	if err := checkRange(v); err != nil {
		return Fixed{}, err
	}
	return Fixed{v: v}, nil
}

// Sub returns a-b.
func Sub(a, b Fixed) (Fixed, error) {
	v := new(big.Int).Sub(a.raw(), b.raw())
	if err := checkRange(v); err != nil {
		return Fixed{}, err
	}
	return Fixed{v: v}, nil
}

// Mul returns a*b. The product is carried at double width before the
// rescale by 2^64, so no intermediate precision is lost.
func Mul(a, b Fixed) (Fixed, error) {
	v := new(big.Int).Mul(a.raw(), b.raw())
	v.Quo(v, oneRaw)
	if err := checkRange(v); err != nil {
		return Fixed{}, err
	}
	return Fixed{v: v}, nil
}

// Div returns a/b. The dividend is widened by 2^64 before dividing so
// fractional precision survives the quotient.
func Div(a, b Fixed) (Fixed, error) {
	if b.raw().Sign() == 0 {
		return Fixed{}, ErrDivisionByZero
	}
	v := new(big.Int).Lsh(a.raw(), fracBits)
	v.Quo(v, b.raw())
	if err := checkRange(v); err != nil {
		return Fixed{}, err
	}
	return Fixed{v: v}, nil
}

func checkRange(v *big.Int) error {
	if v.Cmp(maxRaw) > 0 {
		return ErrOverflow
	}
	if v.Cmp(minRaw) < 0 {
		return ErrUnderflow
	}
	return nil
}
