package validate

import (
	"fmt"
	"math"

	"honnef.co/go/dsgpu/dispatch"
	"honnef.co/go/dsgpu/dsmath"
	"honnef.co/go/dsgpu/f64bits"
	"honnef.co/go/dsgpu/kernels"
	"honnef.co/go/dsgpu/profiler"
)

var (
	realOpNames    = []string{"add", "sub", "mul", "div", "sqrt", "log", "exp", "pow"}
	complexOpNames = []string{
		"add.re", "add.im", "sub.re", "sub.im", "mul.re", "mul.im",
		"div.re", "div.im", "sqr.re", "sqr.im",
	}
)

func checkLengths(a, b int) error {
	if a != b {
		return fmt.Errorf("operands have %d and %d elements", a, b)
	}
	return nil
}

func splitAll(vs []float64) []dsmath.Float2 {
	out := make([]dsmath.Float2, len(vs))
	for i, v := range vs {
		out[i] = dsmath.Split(v)
	}
	return out
}

func splitAllComplex(cs []complex128) []dsmath.Complex2 {
	out := make([]dsmath.Complex2, len(cs))
	for i, c := range cs {
		out[i] = dsmath.SplitComplex(c)
	}
	return out
}

// AddArrays computes a + b + x in double-single arithmetic.
func AddArrays(dev dispatch.Device, a, b []float64, x float64) (*Report, error) {
	if err := checkLengths(len(a), len(b)); err != nil {
		return nil, err
	}
	const kernel = "add_arrays"
	r := newReport(dev, kernel, len(a), "sum")
	g := profiler.Start(kernel)

	hg := g.Nest("host")
	want := make([]float64, len(a))
	for i := range a {
		want[i] = a[i] + b[i] + x
	}
	hg.End()

	sums, err := run(g, dev, kernel, dsmath.Float2{},
		bindArray(splitAll(a)), bindArray(splitAll(b)), bindValue(dsmath.Split(x)))
	if err != nil {
		return nil, err
	}
	g.End()
	r.Timing = g.Result()

	for i := range want {
		r.compare(i, complex(a[i], b[i]), []float64{want[i]}, []float64{sums[i].Float64()})
	}
	return r, nil
}

// AddComplexArrays computes a + b in double-single arithmetic.
func AddComplexArrays(dev dispatch.Device, a, b []complex128) (*Report, error) {
	if err := checkLengths(len(a), len(b)); err != nil {
		return nil, err
	}
	const kernel = "add_complex_arrays"
	r := newReport(dev, kernel, len(a), "sum.re", "sum.im")
	g := profiler.Start(kernel)

	hg := g.Nest("host")
	want := make([]complex128, len(a))
	for i := range a {
		want[i] = a[i] + b[i]
	}
	hg.End()

	sums, err := run(g, dev, kernel, dsmath.Complex2{},
		bindArray(splitAllComplex(a)), bindArray(splitAllComplex(b)))
	if err != nil {
		return nil, err
	}
	g.End()
	r.Timing = g.Result()

	for i, w := range want {
		r.compareComplex(i, a[i], []complex128{w}, []complex128{sums[i].Complex128()})
	}
	return r, nil
}

func hostRealOps(x, y float64) []float64 {
	return []float64{x + y, x - y, x * y, x / y, math.Sqrt(x), math.Log(x), math.Exp(x), math.Pow(x, y)}
}

// RealOps applies add, sub, mul, div, sqrt, log, exp and pow to every pair
// of operands. Sqrt, log and exp apply to a.
func RealOps(dev dispatch.Device, a, b []float64, path Path) (*Report, error) {
	if err := checkLengths(len(a), len(b)); err != nil {
		return nil, err
	}
	var kernel string
	switch path {
	case Paired:
		kernel = "real_ops_ds"
	case Bits:
		kernel = "real_ops_bits"
	default:
		return nil, fmt.Errorf("invalid path %v", path)
	}
	r := newReport(dev, kernel, len(a), realOpNames...)
	g := profiler.Start(kernel)

	hg := g.Nest("host")
	want := make([][]float64, len(a))
	for i := range a {
		want[i] = hostRealOps(a[i], b[i])
	}
	hg.End()

	got := make([][]float64, len(a))
	switch path {
	case Paired:
		res, err := run(g, dev, kernel, kernels.RealOps{}, bindArray(splitAll(a)), bindArray(splitAll(b)))
		if err != nil {
			return nil, err
		}
		for i, o := range res {
			got[i] = []float64{
				o.Add.Float64(), o.Sub.Float64(), o.Mul.Float64(), o.Div.Float64(),
				o.Sqrt.Float64(), o.Log.Float64(), o.Exp.Float64(), o.Pow.Float64(),
			}
		}
	case Bits:
		ab := make([]f64bits.Float, len(a))
		bb := make([]f64bits.Float, len(b))
		for i := range a {
			ab[i], bb[i] = f64bits.FromFloat64(a[i]), f64bits.FromFloat64(b[i])
		}
		res, err := run(g, dev, kernel, kernels.RealOpsBits{}, bindArray(ab), bindArray(bb))
		if err != nil {
			return nil, err
		}
		for i, o := range res {
			got[i] = []float64{
				o.Add.Float64(), o.Sub.Float64(), o.Mul.Float64(), o.Div.Float64(),
				o.Sqrt.Float64(), o.Log.Float64(), o.Exp.Float64(), o.Pow.Float64(),
			}
		}
	}
	g.End()
	r.Timing = g.Result()

	for i := range want {
		r.compare(i, complex(a[i], b[i]), want[i], got[i])
	}
	return r, nil
}

func flatten(cs ...complex128) []float64 {
	out := make([]float64, 0, 2*len(cs))
	for _, c := range cs {
		out = append(out, real(c), imag(c))
	}
	return out
}

// ComplexOps applies add, sub, mul, div and squaring to every pair of
// operands. Squaring applies to a.
func ComplexOps(dev dispatch.Device, a, b []complex128, path Path) (*Report, error) {
	if err := checkLengths(len(a), len(b)); err != nil {
		return nil, err
	}
	var kernel string
	switch path {
	case Paired:
		kernel = "complex_ops_ds"
	case Bits:
		kernel = "complex_ops_bits"
	default:
		return nil, fmt.Errorf("invalid path %v", path)
	}
	r := newReport(dev, kernel, len(a), complexOpNames...)
	g := profiler.Start(kernel)

	hg := g.Nest("host")
	want := make([][]complex128, len(a))
	for i := range a {
		x, y := a[i], b[i]
		want[i] = []complex128{x + y, x - y, x * y, x / y, x * x}
	}
	hg.End()

	got := make([][]complex128, len(a))
	switch path {
	case Paired:
		res, err := run(g, dev, kernel, kernels.ComplexOps{},
			bindArray(splitAllComplex(a)), bindArray(splitAllComplex(b)))
		if err != nil {
			return nil, err
		}
		for i, o := range res {
			got[i] = []complex128{o.Add.Complex128(), o.Sub.Complex128(), o.Mul.Complex128(), o.Div.Complex128(), o.Sqr.Complex128()}
		}
	case Bits:
		ab := make([]f64bits.Complex, len(a))
		bb := make([]f64bits.Complex, len(b))
		for i := range a {
			ab[i], bb[i] = f64bits.FromComplex128(a[i]), f64bits.FromComplex128(b[i])
		}
		res, err := run(g, dev, kernel, kernels.ComplexOpsBits{}, bindArray(ab), bindArray(bb))
		if err != nil {
			return nil, err
		}
		for i, o := range res {
			got[i] = []complex128{o.Add.Complex128(), o.Sub.Complex128(), o.Mul.Complex128(), o.Div.Complex128(), o.Sqr.Complex128()}
		}
	}
	g.End()
	r.Timing = g.Result()

	for i := range want {
		r.compareComplex(i, a[i], want[i], got[i])
	}
	return r, nil
}
