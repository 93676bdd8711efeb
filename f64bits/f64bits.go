// Package f64bits carries float64 values through integer lanes. A Float holds
// the exact IEEE 754 binary64 bit pattern of a float64 in a uint64, for
// kernels that implement binary64 arithmetic on integers. The encoding is a
// bijection: every bit pattern, including NaN payloads and infinities, round
// trips unchanged.
package f64bits

import (
	"math"
	"structs"
)

// Float is the bit pattern of a float64.
type Float uint64

func FromFloat64(v float64) Float {
	return Float(math.Float64bits(v))
}

// FromInt converts i by way of float64.
func FromInt(i int) Float {
	return FromFloat64(float64(i))
}

func (f Float) Float64() float64 {
	return math.Float64frombits(uint64(f))
}

func (f Float) Bits() uint64 {
	return uint64(f)
}

// Complex is a pair of bit-aliased float64, real part first.
type Complex struct {
	_ structs.HostLayout

	Re Float
	Im Float
}

func FromComplex128(c complex128) Complex {
	return Complex{Re: FromFloat64(real(c)), Im: FromFloat64(imag(c))}
}

func ComplexFromInt(re, im int) Complex {
	return Complex{Re: FromInt(re), Im: FromInt(im)}
}

func (c Complex) Complex128() complex128 {
	return complex(c.Re.Float64(), c.Im.Float64())
}
