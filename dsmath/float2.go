// Package dsmath implements double-single arithmetic: a float64 is carried as
// an unevaluated sum of two float32, a high part and a low correction, which
// gives roughly 48 bits of significand on hardware that only has float32.
//
// Float2 and Complex2 have the memory layout kernels expect (vec2<f32> and
// vec4<f32> in WGSL), so slices of them can be handed to a device as-is. The
// arithmetic in this package mirrors what the kernels compute and backs the
// CPU implementations of those kernels.
package dsmath

import (
	"math"
	"structs"

	"golang.org/x/exp/constraints"
)

// splitter is 2^29+1. Multiplying by it and cancelling leaves the top 24
// significant bits of a float64, which is exactly what a float32 holds.
const splitter = 1<<29 + 1

// Float2 is a double-single real. Its value is float64(Hi) + float64(Lo).
type Float2 struct {
	_ structs.HostLayout

	Hi float32
	Lo float32
}

var (
	Pi     = Split(math.Pi)
	HalfPi = Split(math.Pi / 2)
	Ln2    = Split(math.Ln2)

	one = Float2{Hi: 1}
)

// Split converts v to a double-single pair. Zero maps to (0, 0). Values that
// don't fit in a float32 (infinities, NaN, magnitudes beyond
// math.MaxFloat32) map to (float32(v), 0).
//
// The pair is within 2^-47·|v| of v for |v| ≥ 2^-102. Below that the low
// part is a float32 subnormal and the error is only bounded by
// 2^-47·|v| + 2^-150.
func Split(v float64) Float2 {
	if v == 0 {
		return Float2{}
	}
	if math.IsNaN(v) || math.Abs(v) > math.MaxFloat32 {
		return Float2{Hi: float32(v)}
	}
	t := float64(v * splitter)
	hi := float32(t - (t - v))
	lo := float32(v - float64(hi))
	return Float2{Hi: hi, Lo: lo}
}

// FromFloat32 returns (f, 0).
func FromFloat32(f float32) Float2 {
	return Float2{Hi: f}
}

// FromInt converts i by way of float64.
func FromInt(i int) Float2 {
	return Split(float64(i))
}

// FromNumber converts any integer or float by way of float64.
func FromNumber[T constraints.Integer | constraints.Float](v T) Float2 {
	return Split(float64(v))
}

// Float64 recomposes the pair. Both parts are widened before adding.
func (a Float2) Float64() float64 {
	return float64(a.Hi) + float64(a.Lo)
}

func (a Float2) IsZero() bool {
	return a.Hi == 0 && a.Lo == 0
}

func (a Float2) IsNaN() bool {
	return a.Hi != a.Hi || a.Lo != a.Lo
}

func (a Float2) Neg() Float2 {
	return Float2{Hi: -a.Hi, Lo: -a.Lo}
}

func (a Float2) Abs() Float2 {
	if a.Hi < 0 || (a.Hi == 0 && a.Lo < 0) {
		return a.Neg()
	}
	return a
}

// Cmp returns -1, 0 or 1. Pairs are ordered by their high parts first. The
// result is 0 if either operand is NaN.
func (a Float2) Cmp(b Float2) int {
	switch {
	case a.Lt(b):
		return -1
	case a.Gt(b):
		return 1
	default:
		return 0
	}
}

func (a Float2) Eq(b Float2) bool { return a.Hi == b.Hi && a.Lo == b.Lo }
func (a Float2) Ne(b Float2) bool { return !a.Eq(b) }
func (a Float2) Lt(b Float2) bool { return a.Hi < b.Hi || (a.Hi == b.Hi && a.Lo < b.Lo) }
func (a Float2) Gt(b Float2) bool { return a.Hi > b.Hi || (a.Hi == b.Hi && a.Lo > b.Lo) }
func (a Float2) Le(b Float2) bool { return a.Lt(b) || a.Eq(b) }
func (a Float2) Ge(b Float2) bool { return a.Gt(b) || a.Eq(b) }
