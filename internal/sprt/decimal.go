package sprt

import (
	"math"
	"math/big"
)

// Precision is the mantissa size, in bits, of every test statistic
const Precision = 512

// NewDecimal returns x at statistic precision
func NewDecimal(x float64) *big.Float {
	return new(big.Float).SetPrec(Precision).SetFloat64(x)
}

// NewDecimalInt returns n at statistic precision
func NewDecimalInt(n int64) *big.Float {
	return new(big.Float).SetPrec(Precision).SetInt64(n)
}

// One returns a fresh unit statistic
func One() *big.Float {
	return NewDecimalInt(1)
}

// Clone copies x at statistic precision
func Clone(x *big.Float) *big.Float {
	return new(big.Float).SetPrec(Precision).Set(x)
}

// PowInt raises base to a non-negative integer power by repeated squaring
func PowInt(base *big.Float, n int64) *big.Float {
	result := One()
	if n <= 0 {
		return result
	}
	b := Clone(base)
	for n > 0 {
		if n&1 == 1 {
			result.Mul(result, b)
		}
		n >>= 1
		if n > 0 {
			b.Mul(b, b)
		}
	}
	return result
}

// Pow raises base to a non-negative real power. The integer part of exp is
// applied exactly; a fractional remainder goes through float64.
func Pow(base *big.Float, exp float64) *big.Float {
	whole, frac := math.Modf(exp)
	result := PowInt(base, int64(whole))
	if frac > 0 {
		b, _ := base.Float64()
		result.Mul(result, NewDecimal(math.Pow(b, frac)))
	}
	return result
}

// Threshold returns 1/alpha, the value a statistic must reach to reject its null
func Threshold(alpha float64) *big.Float {
	return new(big.Float).SetPrec(Precision).Quo(One(), NewDecimal(alpha))
}

// Inverse returns 1/x as a float64; a zero statistic maps to +Inf
func Inverse(x *big.Float) float64 {
	if x.Sign() == 0 {
		return math.Inf(1)
	}
	inv, _ := new(big.Float).SetPrec(Precision).Quo(One(), x).Float64()
	return inv
}
