// Package kernels is the catalogue of compute kernels: their names, argument
// bindings, work-group sizes and WGSL sources. Every kernel has a CPU
// implementation in kernels/cpu; those with a Source also run on GPUs.
//
// Kernel arguments are bound positionally. Arrays are storage buffers and
// small values are uniforms; the last binding is always the result array.
package kernels

import (
	"embed"
	"fmt"
	"io/fs"
	"maps"
	"structs"

	"honnef.co/go/dsgpu/dsmath"
	"honnef.co/go/dsgpu/f64bits"
)

//go:embed wgsl
var sources embed.FS

type BindType int

const (
	// Storage is a read-write storage buffer.
	Storage BindType = iota + 1
	// ReadOnly is a read-only storage buffer.
	ReadOnly
	// Uniform is a small value bound inline.
	Uniform
)

func (typ BindType) IsMutable() bool {
	return typ == Storage
}

func (typ BindType) String() string {
	switch typ {
	case Storage:
		return "storage"
	case ReadOnly:
		return "read-only storage"
	case Uniform:
		return "uniform"
	default:
		return fmt.Sprintf("BindType(%d)", int(typ))
	}
}

type Kernel struct {
	Name          string
	WorkgroupSize [3]uint32
	Bindings      []BindType
	// Source is the WGSL file the kernel is built from, preprocessed with
	// Defines. It is empty for kernels that only exist on the CPU.
	Source  string
	Defines []string
}

func (k *Kernel) HasWGSL() bool {
	return k.Source != ""
}

// WGSL returns the preprocessed WGSL source of the kernel.
func (k *Kernel) WGSL() ([]byte, error) {
	root, err := fs.Sub(sources, "wgsl")
	if err != nil {
		return nil, err
	}
	return k.WGSLFrom(root)
}

// WGSLFrom is like WGSL but reads the kernel sources from root, which has the
// kernel files at the top level and shared imports in shared/.
func (k *Kernel) WGSLFrom(root fs.FS) ([]byte, error) {
	if !k.HasWGSL() {
		return nil, fmt.Errorf("kernel %q has no WGSL implementation", k.Name)
	}
	src, err := fs.ReadFile(root, k.Source)
	if err != nil {
		return nil, err
	}
	shared, err := fs.Sub(root, "shared")
	if err != nil {
		return nil, err
	}
	defines := maps.Clone(defaultDefines)
	for _, d := range k.Defines {
		defines[d] = struct{}{}
	}
	p := Preprocessor{
		Imports: shared,
		Defines: defines,
	}
	out, err := p.Preprocess(src, k.Source)
	if err != nil {
		return nil, err
	}
	return Postprocess(out), nil
}

var defaultDefines = map[string]struct{}{"full": {}}

const wgSize = 64

var catalogue = []Kernel{
	{
		Name:          "add_arrays",
		WorkgroupSize: [3]uint32{wgSize, 1, 1},
		Bindings:      []BindType{ReadOnly, ReadOnly, Uniform, Storage},
		Source:        "add_arrays.wgsl",
	},
	{
		Name:          "add_complex_arrays",
		WorkgroupSize: [3]uint32{wgSize, 1, 1},
		Bindings:      []BindType{ReadOnly, ReadOnly, Storage},
		Source:        "add_complex_arrays.wgsl",
	},
	{
		Name:          "mandelbrot",
		WorkgroupSize: [3]uint32{wgSize, 1, 1},
		Bindings:      []BindType{ReadOnly, Uniform, Uniform, Storage},
		Source:        "mandelbrot.wgsl",
	},
	{
		Name:          "mandelbrot_ds",
		WorkgroupSize: [3]uint32{wgSize, 1, 1},
		Bindings:      []BindType{ReadOnly, Uniform, Uniform, Storage},
		Source:        "mandelbrot.wgsl",
		Defines:       []string{"derivative"},
	},
	{
		Name:          "real_ops_ds",
		WorkgroupSize: [3]uint32{wgSize, 1, 1},
		Bindings:      []BindType{ReadOnly, ReadOnly, Storage},
		Source:        "real_ops.wgsl",
	},
	{
		Name:          "complex_ops_ds",
		WorkgroupSize: [3]uint32{wgSize, 1, 1},
		Bindings:      []BindType{ReadOnly, ReadOnly, Storage},
		Source:        "complex_ops.wgsl",
	},
	// WGSL has no 64-bit integer type, so the bit-aliased kernels only run on
	// the CPU.
	{
		Name:          "real_ops_bits",
		WorkgroupSize: [3]uint32{wgSize, 1, 1},
		Bindings:      []BindType{ReadOnly, ReadOnly, Storage},
	},
	{
		Name:          "complex_ops_bits",
		WorkgroupSize: [3]uint32{wgSize, 1, 1},
		Bindings:      []BindType{ReadOnly, ReadOnly, Storage},
	},
	{
		Name:          "mandelbrot_bits",
		WorkgroupSize: [3]uint32{wgSize, 1, 1},
		Bindings:      []BindType{ReadOnly, Uniform, Uniform, Storage},
	},
}

// Lookup returns the kernel with the given name.
func Lookup(name string) (*Kernel, bool) {
	for i := range catalogue {
		if catalogue[i].Name == name {
			return &catalogue[i], true
		}
	}
	return nil, false
}

// All returns a copy of the catalogue.
func All() []Kernel {
	out := make([]Kernel, len(catalogue))
	copy(out, catalogue)
	return out
}

// RealOps is the result record of real_ops_ds: every operation applied to
// one pair of operands a and b. Sqrt, Log and Exp apply to a, Pow is a**b.
type RealOps struct {
	_ structs.HostLayout

	Add  dsmath.Float2
	Sub  dsmath.Float2
	Mul  dsmath.Float2
	Div  dsmath.Float2
	Sqrt dsmath.Float2
	Log  dsmath.Float2
	Exp  dsmath.Float2
	Pow  dsmath.Float2
}

// ComplexOps is the result record of complex_ops_ds. Sqr squares a.
type ComplexOps struct {
	_ structs.HostLayout

	Add dsmath.Complex2
	Sub dsmath.Complex2
	Mul dsmath.Complex2
	Div dsmath.Complex2
	Sqr dsmath.Complex2
}

// RealOpsBits is the bit-aliased counterpart of RealOps.
type RealOpsBits struct {
	_ structs.HostLayout

	Add  f64bits.Float
	Sub  f64bits.Float
	Mul  f64bits.Float
	Div  f64bits.Float
	Sqrt f64bits.Float
	Log  f64bits.Float
	Exp  f64bits.Float
	Pow  f64bits.Float
}

// ComplexOpsBits is the bit-aliased counterpart of ComplexOps.
type ComplexOpsBits struct {
	_ structs.HostLayout

	Add f64bits.Complex
	Sub f64bits.Complex
	Mul f64bits.Complex
	Div f64bits.Complex
	Sqr f64bits.Complex
}
