package escape

import (
	"math"
	"structs"

	"honnef.co/go/dsgpu/dsmath"
	"honnef.co/go/dsgpu/f64bits"
)

// PairedRecord is the per-point output of the double-single Mandelbrot
// kernel. It matches this WGSL struct:
//
//	struct Record {
//	    iterations: i32,
//	    escaped: u32,
//	    distance: vec2<f32>,
//	    potential: vec2<f32>,
//	    norm: vec2<f32>,
//	    z: vec4<f32>,
//	}
type PairedRecord struct {
	_ structs.HostLayout

	Iterations       int32
	Escaped          uint32
	Distance         dsmath.Float2
	Potential        dsmath.Float2
	SquaredMagnitude dsmath.Float2
	Z                dsmath.Complex2
}

// BitsRecord is the per-point output of the bit-aliased Mandelbrot kernel.
type BitsRecord struct {
	_ structs.HostLayout

	Iterations       int32
	Escaped          uint32
	Distance         f64bits.Float
	Potential        f64bits.Float
	SquaredMagnitude f64bits.Float
	Z                f64bits.Complex
}

func (r PairedRecord) Result() Result {
	res := Result{
		Iterations:       int(r.Iterations),
		Escaped:          r.Escaped != 0,
		Distance:         r.Distance.Float64(),
		Potential:        r.Potential.Float64(),
		Z:                r.Z.Complex128(),
		SquaredMagnitude: r.SquaredMagnitude.Float64(),
	}
	if !res.Escaped {
		res.Distance, res.Potential = math.NaN(), math.NaN()
	}
	return res
}

func (r BitsRecord) Result() Result {
	res := Result{
		Iterations:       int(r.Iterations),
		Escaped:          r.Escaped != 0,
		Distance:         r.Distance.Float64(),
		Potential:        r.Potential.Float64(),
		Z:                r.Z.Complex128(),
		SquaredMagnitude: r.SquaredMagnitude.Float64(),
	}
	if !res.Escaped {
		res.Distance, res.Potential = math.NaN(), math.NaN()
	}
	return res
}
