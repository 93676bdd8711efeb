package cpu

import (
	"math"
	"testing"

	"honnef.co/go/dsgpu/dsmath"
	"honnef.co/go/dsgpu/escape"
	"honnef.co/go/dsgpu/f64bits"
	"honnef.co/go/dsgpu/kernels"
	"honnef.co/go/safeish"
)

func bytesOf[T any](s []T) Buffer {
	return safeish.SliceCast[[]byte](s)
}

func value[T any](v T) Buffer {
	return bytesOf([]T{v})
}

func TestRegistryMatchesCatalogue(t *testing.T) {
	for _, k := range kernels.All() {
		if _, ok := Registry[k.Name]; !ok {
			t.Errorf("kernel %s has no CPU implementation", k.Name)
		}
	}
	for name := range Registry {
		if _, ok := kernels.Lookup(name); !ok {
			t.Errorf("CPU kernel %s isn't in the catalogue", name)
		}
	}
}

func TestAddArrays(t *testing.T) {
	a := []dsmath.Float2{dsmath.Split(1.5), dsmath.Split(math.Pi), dsmath.Split(-2e-9)}
	b := []dsmath.Float2{dsmath.Split(0.25), dsmath.Split(math.E), dsmath.Split(1e-9)}
	x := dsmath.Split(1.0 / 3)
	sums := make([]dsmath.Float2, len(a))

	// Invocations past the end are ignored.
	AddArrays(0, 64, []Buffer{bytesOf(a), bytesOf(b), value(x), bytesOf(sums)})
	for i := range a {
		if want := a[i].Add(b[i]).Add(x); sums[i] != want {
			t.Errorf("sums[%d] = %v, want %v", i, sums[i], want)
		}
	}
}

func TestAddComplexArrays(t *testing.T) {
	a := []dsmath.Complex2{dsmath.SplitComplex(1 + 2i), dsmath.SplitComplex(complex(math.Pi, -math.E))}
	b := []dsmath.Complex2{dsmath.SplitComplex(3 - 1i), dsmath.SplitComplex(0.5 + 0.5i)}
	sums := make([]dsmath.Complex2, len(a))

	AddComplexArrays(0, 1, []Buffer{bytesOf(a), bytesOf(b), bytesOf(sums)})
	if want := a[0].Add(b[0]); sums[0] != want {
		t.Errorf("sums[0] = %v, want %v", sums[0], want)
	}
	if sums[1] != (dsmath.Complex2{}) {
		t.Errorf("invocation outside [start, end) wrote %v", sums[1])
	}
}

var mandelbrotPoints = []complex128{1, -1, 0, 0.5 + 0.5i, -0.75 + 0.1i, 2 + 2i, -2}

func TestMandelbrotDSMatchesReference(t *testing.T) {
	const maxIter = 200
	points := make([]dsmath.Complex2, len(mandelbrotPoints))
	for i, c := range mandelbrotPoints {
		points[i] = dsmath.SplitComplex(c)
	}
	records := make([]escape.PairedRecord, len(points))
	MandelbrotDS(0, uint32(len(points)), []Buffer{
		bytesOf(points), value(int32(maxIter)), value(dsmath.FromInt(4)), bytesOf(records),
	})

	for i, c := range mandelbrotPoints {
		want := escape.Iterate(c, maxIter, 4)
		got := records[i].Result()
		if got.Iterations != want.Iterations || got.Escaped != want.Escaped {
			t.Errorf("%v: got %d iterations (escaped=%t), want %d (escaped=%t)",
				c, got.Iterations, got.Escaped, want.Iterations, want.Escaped)
			continue
		}
		if !want.Escaped {
			if !math.IsNaN(got.Distance) || !math.IsNaN(got.Potential) {
				t.Errorf("%v: interior point has distance %g and potential %g", c, got.Distance, got.Potential)
			}
			continue
		}
		for _, q := range []struct {
			name      string
			got, want float64
		}{
			{"distance", got.Distance, want.Distance},
			{"potential", got.Potential, want.Potential},
			{"|z|²", got.SquaredMagnitude, want.SquaredMagnitude},
		} {
			if math.Abs(q.got-q.want) > 1e-6*max(1, math.Abs(q.want)) {
				t.Errorf("%v: %s = %g, want %g", c, q.name, q.got, q.want)
			}
		}
	}
}

func TestMandelbrotCounts(t *testing.T) {
	points := []dsmath.Complex2{dsmath.SplitComplex(1), dsmath.SplitComplex(-1), dsmath.SplitComplex(10)}
	counts := make([]int32, len(points))
	Mandelbrot(0, 3, []Buffer{bytesOf(points), value(int32(50)), value(dsmath.FromInt(4)), bytesOf(counts)})
	if want := []int32{3, 50, 1}; counts[0] != want[0] || counts[1] != want[1] || counts[2] != want[2] {
		t.Errorf("got counts %v, want %v", counts, want)
	}

	Mandelbrot(0, 3, []Buffer{bytesOf(points), value(int32(-5)), value(dsmath.FromInt(4)), bytesOf(counts)})
	for i, n := range counts {
		if n != 0 {
			t.Errorf("counts[%d] = %d with a negative iteration limit", i, n)
		}
	}
}

func TestMandelbrotBits(t *testing.T) {
	points := make([]f64bits.Complex, len(mandelbrotPoints))
	for i, c := range mandelbrotPoints {
		points[i] = f64bits.FromComplex128(c)
	}
	records := make([]escape.BitsRecord, len(points))
	MandelbrotBits(0, uint32(len(points)), []Buffer{
		bytesOf(points), value(int32(100)), value(f64bits.FromFloat64(4)), bytesOf(records),
	})
	for i, c := range mandelbrotPoints {
		want := escape.Iterate(c, 100, 4)
		got := records[i].Result()
		if got.Iterations != want.Iterations || got.Escaped != want.Escaped || got.Z != want.Z {
			t.Errorf("%v: got %+v, want %+v", c, got, want)
		}
		if want.Escaped && (got.Distance != want.Distance || got.Potential != want.Potential) {
			t.Errorf("%v: got distance %g potential %g, want %g and %g",
				c, got.Distance, got.Potential, want.Distance, want.Potential)
		}
	}
}

func TestRealOps(t *testing.T) {
	xs := []float64{2, 0.5, math.Pi}
	ys := []float64{3, -1.25, math.E}

	a := make([]dsmath.Float2, len(xs))
	b := make([]dsmath.Float2, len(ys))
	for i := range xs {
		a[i], b[i] = dsmath.Split(xs[i]), dsmath.Split(ys[i])
	}
	results := make([]kernels.RealOps, len(xs))
	RealOpsDS(0, 64, []Buffer{bytesOf(a), bytesOf(b), bytesOf(results)})
	for i := range xs {
		r := results[i]
		if r.Add != a[i].Add(b[i]) || r.Div != a[i].Div(b[i]) || r.Pow != a[i].Pow(b[i]) || r.Exp != a[i].Exp() {
			t.Errorf("%d: double-single results don't match dsmath: %+v", i, r)
		}
	}

	ab := make([]f64bits.Float, len(xs))
	bb := make([]f64bits.Float, len(ys))
	for i := range xs {
		ab[i], bb[i] = f64bits.FromFloat64(xs[i]), f64bits.FromFloat64(ys[i])
	}
	bits := make([]kernels.RealOpsBits, len(xs))
	RealOpsBits(0, 64, []Buffer{bytesOf(ab), bytesOf(bb), bytesOf(bits)})
	for i, x := range xs {
		y := ys[i]
		r := bits[i]
		if r.Mul.Float64() != x*y || r.Sqrt.Float64() != math.Sqrt(x) || r.Log.Float64() != math.Log(x) || r.Pow.Float64() != math.Pow(x, y) {
			t.Errorf("%d: bit-aliased results don't match float64: %+v", i, r)
		}
	}
}

func TestComplexOps(t *testing.T) {
	xs := []complex128{1 + 2i, -0.5 + 0.25i}
	ys := []complex128{3 - 1i, 2 + 2i}

	a := make([]dsmath.Complex2, len(xs))
	b := make([]dsmath.Complex2, len(ys))
	ab := make([]f64bits.Complex, len(xs))
	bb := make([]f64bits.Complex, len(ys))
	for i := range xs {
		a[i], b[i] = dsmath.SplitComplex(xs[i]), dsmath.SplitComplex(ys[i])
		ab[i], bb[i] = f64bits.FromComplex128(xs[i]), f64bits.FromComplex128(ys[i])
	}
	results := make([]kernels.ComplexOps, len(xs))
	bits := make([]kernels.ComplexOpsBits, len(xs))
	ComplexOpsDS(0, 2, []Buffer{bytesOf(a), bytesOf(b), bytesOf(results)})
	ComplexOpsBits(0, 2, []Buffer{bytesOf(ab), bytesOf(bb), bytesOf(bits)})

	for i := range xs {
		if results[i].Mul != a[i].Mul(b[i]) || results[i].Sqr != a[i].Sqr() {
			t.Errorf("%d: double-single results don't match dsmath: %+v", i, results[i])
		}
		if got, want := bits[i].Div.Complex128(), xs[i]/ys[i]; got != want {
			t.Errorf("%d: quotient = %v, want %v", i, got, want)
		}
		if got, want := bits[i].Sqr.Complex128(), xs[i]*xs[i]; got != want {
			t.Errorf("%d: square = %v, want %v", i, got, want)
		}
	}
}

func TestShortUniformPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected a panic for a short uniform")
		}
	}()
	points := []dsmath.Complex2{{}}
	counts := make([]int32, 1)
	Mandelbrot(0, 1, []Buffer{bytesOf(points), value(int32(1)), value(int16(4)), bytesOf(counts)})
}
