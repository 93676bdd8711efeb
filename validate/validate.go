// Package validate runs kernels on a device and compares their results with
// the same computation in float64 on the host. Every function returns a
// Report; nothing is printed.
package validate

import (
	"fmt"
	"math"
	"math/cmplx"
	"slices"

	"honnef.co/go/dsgpu/dispatch"
	"honnef.co/go/dsgpu/profiler"
)

// Path selects the float64 emulation a kernel uses.
type Path int

const (
	// Paired is double-single arithmetic on float32 pairs.
	Paired Path = iota + 1
	// Bits is float64 bit-aliased into 64-bit lanes.
	Bits
)

func (p Path) String() string {
	switch p {
	case Paired:
		return "paired"
	case Bits:
		return "bits"
	default:
		return fmt.Sprintf("Path(%d)", int(p))
	}
}

// ParsePath parses the result of Path.String.
func ParsePath(s string) (Path, error) {
	switch s {
	case "paired":
		return Paired, nil
	case "bits":
		return Bits, nil
	default:
		return 0, fmt.Errorf("unknown path %q", s)
	}
}

const maxSamples = 3

// Sample is one compared element. Want and Got hold the report's
// Quantities in order.
type Sample struct {
	Index int
	Input complex128
	Want  []float64
	Got   []float64
}

type Report struct {
	Kernel string
	Device string
	Points int
	// Quantities names the values compared per element.
	Quantities []string

	// Escape-time kernels only. Distance and potential errors are only
	// measured on escaped points where host and device agree on the
	// iteration count and whose orbit is well conditioned; Unmeasured counts
	// the escaped points left out for being ill conditioned. Potential
	// errors are scaled by max(|potential|, 1).
	IterationMismatches int
	EscapeMismatches    int
	Unmeasured          int
	MaxDistanceRelErr   float64
	MaxPotentialRelErr  float64

	// MaxRelErr is the largest relative error of any compared value.
	// Complex values are compared by magnitude, |got-want|/|want|.
	MaxRelErr float64
	// MaxRelErrIndex is the element MaxRelErr was measured on.
	MaxRelErrIndex int

	// Samples are the first few elements.
	Samples []Sample
	// Timing has the spans "host", "bind", "device" and "read".
	Timing profiler.Result
}

// Agrees reports whether the device matched the host: at most a fraction
// tol of the points may disagree on iteration count or escape status, and
// no compared value may have a relative error above tol.
func (r *Report) Agrees(tol float64) bool {
	if r.Points > 0 {
		bad := max(r.IterationMismatches, r.EscapeMismatches)
		if float64(bad)/float64(r.Points) > tol {
			return false
		}
	}
	return r.MaxRelErr <= tol
}

func (r *Report) span(label string) profiler.Result {
	res, _ := r.Timing.Find(label)
	return res
}

// HostTime is the time the host reference took.
func (r *Report) HostTime() profiler.Result { return r.span("host") }

// DeviceTime is the time from launch to completion on the device.
func (r *Report) DeviceTime() profiler.Result { return r.span("device") }

// relErr returns the relative error of got, or the absolute error if want
// is zero. Two NaNs agree, a single NaN doesn't.
func relErr(got, want float64) float64 {
	switch {
	case math.IsNaN(got) && math.IsNaN(want):
		return 0
	case math.IsNaN(got) || math.IsNaN(want):
		return math.Inf(1)
	case got == want:
		return 0
	case want == 0:
		return math.Abs(got)
	default:
		return math.Abs(got-want) / math.Abs(want)
	}
}

// cmplxRelErr is relErr for complex values, measured against the
// magnitude of want rather than per component.
func cmplxRelErr(got, want complex128) float64 {
	switch {
	case cmplx.IsNaN(got) && cmplx.IsNaN(want):
		return 0
	case cmplx.IsNaN(got) || cmplx.IsNaN(want):
		return math.Inf(1)
	case got == want:
		return 0
	case want == 0:
		return cmplx.Abs(got)
	default:
		return cmplx.Abs(got-want) / cmplx.Abs(want)
	}
}

// scaledErr is the error of got relative to max(|want|, 1). It suits
// quantities such as the potential that pass through zero.
func scaledErr(got, want float64) float64 {
	if math.IsNaN(got) || math.IsNaN(want) {
		return relErr(got, want)
	}
	return math.Abs(got-want) / max(math.Abs(want), 1)
}

func (r *Report) note(i int, e float64) {
	if e > r.MaxRelErr {
		r.MaxRelErr = e
		r.MaxRelErrIndex = i
	}
}

func (r *Report) sample(i int, input complex128, want, got []float64) {
	if i < maxSamples {
		r.Samples = append(r.Samples, Sample{Index: i, Input: input, Want: want, Got: got})
	}
}

// compare records the element-wise errors of got against want.
func (r *Report) compare(i int, input complex128, want, got []float64) {
	for j := range want {
		r.note(i, relErr(got[j], want[j]))
	}
	r.sample(i, input, want, got)
}

// compareComplex is compare for complex results.
func (r *Report) compareComplex(i int, input complex128, want, got []complex128) {
	for j := range want {
		r.note(i, cmplxRelErr(got[j], want[j]))
	}
	r.sample(i, input, flatten(want...), flatten(got...))
}

// run binds the arguments, launches kernel and returns a copy of its
// results.
func run[T any](
	g *profiler.Group,
	dev dispatch.Device,
	kernel string,
	init T,
	bind ...func(*dispatch.Engine) error,
) ([]T, error) {
	bg := g.Nest("bind")
	eng, err := dispatch.New(dev, kernel)
	if err != nil {
		return nil, err
	}
	for _, b := range bind {
		if err := b(eng); err != nil {
			return nil, err
		}
	}
	bg.End()

	dg := g.Nest("device")
	if err := dispatch.Launch(eng, init); err != nil {
		return nil, err
	}
	dg.End()

	rg := g.Nest("read")
	defer rg.End()
	out, err := dispatch.Results[T](eng)
	if err != nil {
		return nil, err
	}
	return slices.Clone(out), nil
}

func bindArray[T any](values []T) func(*dispatch.Engine) error {
	return func(e *dispatch.Engine) error {
		return dispatch.Bind(e, values, dispatch.Input)
	}
}

func bindValue[T dispatch.Scalar](v T) func(*dispatch.Engine) error {
	return func(e *dispatch.Engine) error {
		return dispatch.BindValue(e, v)
	}
}

func newReport(dev dispatch.Device, kernel string, points int, quantities ...string) *Report {
	var name string
	if dev != nil {
		name = dev.Name()
	}
	return &Report{
		Kernel:     kernel,
		Device:     name,
		Points:     points,
		Quantities: quantities,
	}
}
