// Package escape implements the escape-time estimate of the Mandelbrot set
// with derivative tracking, which yields a distance estimate and a continuous
// potential for points that escape.
//
// Iterate is the float64 reference. The Mandelbrot kernels compute the same
// recurrence in double-single or bit-aliased arithmetic and write
// PairedRecord or BitsRecord values, which convert back to Result.
package escape

import (
	"math"
	"math/cmplx"
)

// Result describes the orbit of one point.
type Result struct {
	// Iterations is the number of transitions performed before escaping, or
	// maxIter if the point did not escape.
	Iterations int
	Escaped    bool
	// Distance and Potential are NaN unless Escaped.
	Distance  float64
	Potential float64
	// Z is the last iterate and SquaredMagnitude is |Z|².
	Z                complex128
	SquaredMagnitude float64
}

// Iterate follows z ← z² + c from z = 0, tracking the derivative
// d ← 2·z·d + 1 (updated before z), until |z|² exceeds bailout or maxIter
// transitions have happened. A maxIter of zero or less performs no
// transitions.
func Iterate(c complex128, maxIter int, bailout float64) Result {
	var z, d complex128
	var norm float64
	for i := range max(maxIter, 0) {
		d = 2*z*d + 1
		z = z*z + c
		norm = real(z)*real(z) + imag(z)*imag(z)
		if norm > bailout {
			a := math.Sqrt(norm)
			return Result{
				Iterations:       i + 1,
				Escaped:          true,
				Distance:         a * math.Log(a) / cmplx.Abs(d) / 2,
				Potential:        Potential(norm),
				Z:                z,
				SquaredMagnitude: norm,
			}
		}
	}
	return Result{
		Iterations:       max(maxIter, 0),
		Distance:         math.NaN(),
		Potential:        math.NaN(),
		Z:                z,
		SquaredMagnitude: norm,
	}
}

// Potential returns log2(log(|z|²)/2/ln 2) for an escaped iterate with the
// given squared magnitude.
func Potential(norm float64) float64 {
	return math.Log(math.Log(norm)/2/math.Ln2) / math.Ln2
}

// IterateAll applies Iterate to every point.
func IterateAll(cs []complex128, maxIter int, bailout float64) []Result {
	out := make([]Result, len(cs))
	for i, c := range cs {
		out[i] = Iterate(c, maxIter, bailout)
	}
	return out
}
