// Copyright 2023 the Vello Authors
// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT OR Unlicense

// Package cpu provides CPU implementations of the kernels.
//
// The double-single kernels replicate the WGSL kernels operation for
// operation, so their results are bit-identical to a GPU that rounds every
// float32 operation. The bit-aliased kernels only exist here. They compute
// in float64 on the host, and MandelbrotBits calls escape.Iterate itself, so
// comparing them against a float64 reference checks record marshalling, not
// arithmetic.
package cpu

import (
	"fmt"
	"math"
	"unsafe"

	"honnef.co/go/dsgpu/dsmath"
	"honnef.co/go/dsgpu/escape"
	"honnef.co/go/dsgpu/f64bits"
	"honnef.co/go/dsgpu/kernels"
	"honnef.co/go/safeish"
)

// Buffer is the host memory bound to one kernel argument.
type Buffer []byte

// Func runs the invocations [start, end) of a kernel. Invocations past the
// end of the kernel's input are ignored, like in the WGSL kernels.
type Func func(start, end uint32, args []Buffer)

// Registry maps kernel names to their CPU implementations.
var Registry = map[string]Func{
	"add_arrays":         AddArrays,
	"add_complex_arrays": AddComplexArrays,
	"mandelbrot":         Mandelbrot,
	"mandelbrot_ds":      MandelbrotDS,
	"real_ops_ds":        RealOpsDS,
	"complex_ops_ds":     ComplexOpsDS,
	"real_ops_bits":      RealOpsBits,
	"complex_ops_bits":   ComplexOpsBits,
	"mandelbrot_bits":    MandelbrotBits,
}

func fromBytes[E any, T *E](b []byte) T {
	if uintptr(len(b)) < unsafe.Sizeof(*new(E)) {
		panic(fmt.Sprintf(
			"buffer of size %d cannot represent object of size %d", len(b), unsafe.Sizeof(*new(E))))
	}

	return safeish.Cast[T](&b[0])
}

func span[E any](start, end uint32, s []E) (uint32, uint32) {
	n := uint32(len(s))
	return min(start, n), min(end, n)
}

var complexOne = dsmath.ComplexFromInt(1, 0)

func AddArrays(start, end uint32, args []Buffer) {
	a := safeish.SliceCast[[]dsmath.Float2](args[0])
	b := safeish.SliceCast[[]dsmath.Float2](args[1])
	x := *fromBytes[dsmath.Float2](args[2])
	sums := safeish.SliceCast[[]dsmath.Float2](args[3])

	start, end = span(start, end, sums)
	for ix := start; ix < end; ix++ {
		sums[ix] = a[ix].Add(b[ix]).Add(x)
	}
}

func AddComplexArrays(start, end uint32, args []Buffer) {
	a := safeish.SliceCast[[]dsmath.Complex2](args[0])
	b := safeish.SliceCast[[]dsmath.Complex2](args[1])
	sums := safeish.SliceCast[[]dsmath.Complex2](args[2])

	start, end = span(start, end, sums)
	for ix := start; ix < end; ix++ {
		sums[ix] = a[ix].Add(b[ix])
	}
}

// Mandelbrot writes only the iteration count of each point.
func Mandelbrot(start, end uint32, args []Buffer) {
	points := safeish.SliceCast[[]dsmath.Complex2](args[0])
	maxIter := *fromBytes[int32](args[1])
	bailout := *fromBytes[dsmath.Float2](args[2])
	counts := safeish.SliceCast[[]int32](args[3])

	start, end = span(start, end, points)
	for ix := start; ix < end; ix++ {
		c := points[ix]
		var z dsmath.Complex2
		count := max(maxIter, 0)
		for i := range maxIter {
			z = z.Sqr().Add(c)
			if z.Norm().Gt(bailout) {
				count = i + 1
				break
			}
		}
		counts[ix] = count
	}
}

func MandelbrotDS(start, end uint32, args []Buffer) {
	points := safeish.SliceCast[[]dsmath.Complex2](args[0])
	maxIter := *fromBytes[int32](args[1])
	bailout := *fromBytes[dsmath.Float2](args[2])
	records := safeish.SliceCast[[]escape.PairedRecord](args[3])

	start, end = span(start, end, points)
	for ix := start; ix < end; ix++ {
		records[ix] = iterateDS(points[ix], maxIter, bailout)
	}
}

func iterateDS(c dsmath.Complex2, maxIter int32, bailout dsmath.Float2) escape.PairedRecord {
	var z, d dsmath.Complex2
	var norm dsmath.Float2
	for i := range maxIter {
		d = z.Mul(d).MulFloat32(2).Add(complexOne)
		z = z.Sqr().Add(c)
		norm = z.Norm()
		if norm.Gt(bailout) {
			a := norm.Sqrt()
			return escape.PairedRecord{
				Iterations:       i + 1,
				Escaped:          1,
				Distance:         a.Mul(a.Log()).Div(d.Abs()).MulFloat32(0.5),
				Potential:        potentialDS(norm),
				SquaredMagnitude: norm,
				Z:                z,
			}
		}
	}
	return escape.PairedRecord{
		Iterations:       max(maxIter, 0),
		SquaredMagnitude: norm,
		Z:                z,
	}
}

func potentialDS(norm dsmath.Float2) dsmath.Float2 {
	l := norm.Log().MulFloat32(0.5).Div(dsmath.Ln2)
	return l.Log().Div(dsmath.Ln2)
}

// MandelbrotBits iterates with escape.Iterate and stores the results
// bit-aliased. Its output is the float64 reference by construction.
func MandelbrotBits(start, end uint32, args []Buffer) {
	points := safeish.SliceCast[[]f64bits.Complex](args[0])
	maxIter := *fromBytes[int32](args[1])
	bailout := *fromBytes[f64bits.Float](args[2])
	records := safeish.SliceCast[[]escape.BitsRecord](args[3])

	start, end = span(start, end, points)
	for ix := start; ix < end; ix++ {
		res := escape.Iterate(points[ix].Complex128(), int(maxIter), bailout.Float64())
		rec := escape.BitsRecord{
			Iterations:       int32(res.Iterations),
			SquaredMagnitude: f64bits.FromFloat64(res.SquaredMagnitude),
			Z:                f64bits.FromComplex128(res.Z),
		}
		if res.Escaped {
			rec.Escaped = 1
			rec.Distance = f64bits.FromFloat64(res.Distance)
			rec.Potential = f64bits.FromFloat64(res.Potential)
		}
		records[ix] = rec
	}
}

func RealOpsDS(start, end uint32, args []Buffer) {
	a := safeish.SliceCast[[]dsmath.Float2](args[0])
	b := safeish.SliceCast[[]dsmath.Float2](args[1])
	results := safeish.SliceCast[[]kernels.RealOps](args[2])

	start, end = span(start, end, results)
	for ix := start; ix < end; ix++ {
		x, y := a[ix], b[ix]
		results[ix] = kernels.RealOps{
			Add:  x.Add(y),
			Sub:  x.Sub(y),
			Mul:  x.Mul(y),
			Div:  x.Div(y),
			Sqrt: x.Sqrt(),
			Log:  x.Log(),
			Exp:  x.Exp(),
			Pow:  x.Pow(y),
		}
	}
}

func ComplexOpsDS(start, end uint32, args []Buffer) {
	a := safeish.SliceCast[[]dsmath.Complex2](args[0])
	b := safeish.SliceCast[[]dsmath.Complex2](args[1])
	results := safeish.SliceCast[[]kernels.ComplexOps](args[2])

	start, end = span(start, end, results)
	for ix := start; ix < end; ix++ {
		x, y := a[ix], b[ix]
		results[ix] = kernels.ComplexOps{
			Add: x.Add(y),
			Sub: x.Sub(y),
			Mul: x.Mul(y),
			Div: x.Div(y),
			Sqr: x.Sqr(),
		}
	}
}

func RealOpsBits(start, end uint32, args []Buffer) {
	a := safeish.SliceCast[[]f64bits.Float](args[0])
	b := safeish.SliceCast[[]f64bits.Float](args[1])
	results := safeish.SliceCast[[]kernels.RealOpsBits](args[2])

	start, end = span(start, end, results)
	for ix := start; ix < end; ix++ {
		x, y := a[ix].Float64(), b[ix].Float64()
		results[ix] = kernels.RealOpsBits{
			Add:  f64bits.FromFloat64(x + y),
			Sub:  f64bits.FromFloat64(x - y),
			Mul:  f64bits.FromFloat64(x * y),
			Div:  f64bits.FromFloat64(x / y),
			Sqrt: f64bits.FromFloat64(math.Sqrt(x)),
			Log:  f64bits.FromFloat64(math.Log(x)),
			Exp:  f64bits.FromFloat64(math.Exp(x)),
			Pow:  f64bits.FromFloat64(math.Pow(x, y)),
		}
	}
}

func ComplexOpsBits(start, end uint32, args []Buffer) {
	a := safeish.SliceCast[[]f64bits.Complex](args[0])
	b := safeish.SliceCast[[]f64bits.Complex](args[1])
	results := safeish.SliceCast[[]kernels.ComplexOpsBits](args[2])

	start, end = span(start, end, results)
	for ix := start; ix < end; ix++ {
		x, y := a[ix].Complex128(), b[ix].Complex128()
		results[ix] = kernels.ComplexOpsBits{
			Add: f64bits.FromComplex128(x + y),
			Sub: f64bits.FromComplex128(x - y),
			Mul: f64bits.FromComplex128(x * y),
			Div: f64bits.FromComplex128(x / y),
			Sqr: f64bits.FromComplex128(x * x),
		}
	}
}
