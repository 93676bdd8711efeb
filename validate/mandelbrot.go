package validate

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"honnef.co/go/dsgpu/dispatch"
	"honnef.co/go/dsgpu/dsmath"
	"honnef.co/go/dsgpu/escape"
	"honnef.co/go/dsgpu/f64bits"
	"honnef.co/go/dsgpu/profiler"
)

// Grid is a rectangle of points in the complex plane, sampled row by row.
type Grid struct {
	X0, Y0 float64
	DX, DY float64
	Width  int
	Height int
}

// DefaultGrid covers [-2.5, 0.5] × [-1.5, 1.5] with width × height points.
func DefaultGrid(width, height int) Grid {
	return Grid{
		X0:     -2.5,
		Y0:     -1.5,
		DX:     3 / float64(width),
		DY:     3 / float64(height),
		Width:  width,
		Height: height,
	}
}

// Coords returns the grid's points in row-major order.
func (g Grid) Coords() []complex128 {
	out := make([]complex128, 0, g.Width*g.Height)
	for y := range g.Height {
		y0 := g.Y0 + g.DY*float64(y)
		for x := range g.Width {
			x0 := g.X0 + g.DX*float64(x)
			out = append(out, complex(x0, y0))
		}
	}
	return out
}

// ErrMaxIter is returned for iteration limits the kernels can't represent.
var ErrMaxIter = errors.New("validate: iteration limit exceeds int32")

func checkMaxIter(maxIter int) error {
	if maxIter > math.MaxInt32 {
		return fmt.Errorf("%w: %d", ErrMaxIter, maxIter)
	}
	return nil
}

// pairedEps is the unit roundoff of double-single arithmetic.
const pairedEps = 0x1p-48

// conditionLimit bounds the estimated relative rounding error of an orbit
// whose distance and potential get compared.
const conditionLimit = 1e-9

// conditioned reports whether the escaped orbit w of c is stable enough to
// compare its distance estimate and potential. A relative error ε in c or
// in any iterate moves the last iterate by up to about ε·|c|·|dz/dc|, and
// every iteration contributes such an error. |dz/dc| follows from the
// distance estimate.
func conditioned(c complex128, w escape.Result) bool {
	if !w.Escaped || !(w.Distance > 0) {
		return false
	}
	a := math.Sqrt(w.SquaredMagnitude)
	deriv := a * math.Log(a) / (2 * w.Distance)
	amp := float64(w.Iterations) * deriv * max(cmplx.Abs(c), 1) / a
	return amp*pairedEps <= conditionLimit
}

func mandelbrotKernel(path Path) (string, error) {
	switch path {
	case Paired:
		return "mandelbrot_ds", nil
	case Bits:
		return "mandelbrot_bits", nil
	default:
		return "", fmt.Errorf("invalid path %v", path)
	}
}

// Mandelbrot runs the escape-time kernel for path on every point and
// compares iteration counts, escape status, distance estimates and
// potentials with escape.Iterate. On the CPU device the Bits path runs
// escape.Iterate as its kernel, so its report only checks the record layout.
func Mandelbrot(dev dispatch.Device, cs []complex128, maxIter int, bailout float64, path Path) (*Report, error) {
	kernel, err := mandelbrotKernel(path)
	if err != nil {
		return nil, err
	}
	if err := checkMaxIter(maxIter); err != nil {
		return nil, err
	}
	r := newReport(dev, kernel, len(cs), "iterations", "distance", "potential")
	g := profiler.Start(kernel)

	hg := g.Nest("host")
	want := escape.IterateAll(cs, maxIter, bailout)
	hg.End()

	var got []escape.Result
	switch path {
	case Paired:
		points := make([]dsmath.Complex2, len(cs))
		for i, c := range cs {
			points[i] = dsmath.SplitComplex(c)
		}
		recs, err := run(g, dev, kernel, escape.PairedRecord{},
			bindArray(points), bindValue(int32(maxIter)), bindValue(dsmath.Split(bailout)))
		if err != nil {
			return nil, err
		}
		got = make([]escape.Result, len(recs))
		for i, rec := range recs {
			got[i] = rec.Result()
		}
	case Bits:
		points := make([]f64bits.Complex, len(cs))
		for i, c := range cs {
			points[i] = f64bits.FromComplex128(c)
		}
		recs, err := run(g, dev, kernel, escape.BitsRecord{},
			bindArray(points), bindValue(int32(maxIter)), bindValue(f64bits.FromFloat64(bailout)))
		if err != nil {
			return nil, err
		}
		got = make([]escape.Result, len(recs))
		for i, rec := range recs {
			got[i] = rec.Result()
		}
	}
	g.End()
	r.Timing = g.Result()

	for i, c := range cs {
		w, d := want[i], got[i]
		wv := []float64{float64(w.Iterations), w.Distance, w.Potential}
		dv := []float64{float64(d.Iterations), d.Distance, d.Potential}
		r.sample(i, c, wv, dv)
		if w.Escaped != d.Escaped {
			r.EscapeMismatches++
		}
		if w.Iterations != d.Iterations {
			r.IterationMismatches++
			continue
		}
		if !w.Escaped || !d.Escaped {
			continue
		}
		if !conditioned(c, w) {
			r.Unmeasured++
			continue
		}
		de := relErr(d.Distance, w.Distance)
		pe := scaledErr(d.Potential, w.Potential)
		r.MaxDistanceRelErr = max(r.MaxDistanceRelErr, de)
		r.MaxPotentialRelErr = max(r.MaxPotentialRelErr, pe)
		r.note(i, de)
		r.note(i, pe)
	}
	return r, nil
}

// MandelbrotCounts runs the count-only escape-time kernel and compares its
// iteration counts with escape.Iterate.
func MandelbrotCounts(dev dispatch.Device, cs []complex128, maxIter int, bailout float64) (*Report, error) {
	const kernel = "mandelbrot"
	if err := checkMaxIter(maxIter); err != nil {
		return nil, err
	}
	r := newReport(dev, kernel, len(cs), "iterations")
	g := profiler.Start(kernel)

	hg := g.Nest("host")
	want := make([]int, len(cs))
	for i, c := range cs {
		want[i] = escape.Iterate(c, maxIter, bailout).Iterations
	}
	hg.End()

	points := make([]dsmath.Complex2, len(cs))
	for i, c := range cs {
		points[i] = dsmath.SplitComplex(c)
	}
	counts, err := run(g, dev, kernel, int32(0),
		bindArray(points), bindValue(int32(maxIter)), bindValue(dsmath.Split(bailout)))
	if err != nil {
		return nil, err
	}
	g.End()
	r.Timing = g.Result()

	for i, c := range cs {
		if int(counts[i]) != want[i] {
			r.IterationMismatches++
		}
		r.sample(i, c, []float64{float64(want[i])}, []float64{float64(counts[i])})
	}
	return r, nil
}
