package dsmath

import (
	"structs"
)

// Complex2 is a double-single complex number. In kernels it is a vec4<f32>
// whose xy components hold the real pair and zw the imaginary pair.
type Complex2 struct {
	_ structs.HostLayout

	Re Float2
	Im Float2
}

// SplitComplex splits both components of c. A zero component maps to (0, 0).
func SplitComplex(c complex128) Complex2 {
	return Complex2{Re: Split(real(c)), Im: Split(imag(c))}
}

func ComplexFromFloat2(re, im Float2) Complex2 {
	return Complex2{Re: re, Im: im}
}

func ComplexFromFloat32(re, im float32) Complex2 {
	return Complex2{Re: FromFloat32(re), Im: FromFloat32(im)}
}

func ComplexFromInt(re, im int) Complex2 {
	return Complex2{Re: FromInt(re), Im: FromInt(im)}
}

// Complex128 recomposes both components.
func (c Complex2) Complex128() complex128 {
	return complex(c.Re.Float64(), c.Im.Float64())
}

func (c Complex2) Add(d Complex2) Complex2 {
	return Complex2{Re: c.Re.Add(d.Re), Im: c.Im.Add(d.Im)}
}

func (c Complex2) Sub(d Complex2) Complex2 {
	return Complex2{Re: c.Re.Sub(d.Re), Im: c.Im.Sub(d.Im)}
}

func (c Complex2) Mul(d Complex2) Complex2 {
	return Complex2{
		Re: c.Re.Mul(d.Re).Sub(c.Im.Mul(d.Im)),
		Im: c.Re.Mul(d.Im).Add(c.Im.Mul(d.Re)),
	}
}

// Sqr returns c², computing the imaginary part as 2·re·im.
func (c Complex2) Sqr() Complex2 {
	return Complex2{
		Re: c.Re.Sqr().Sub(c.Im.Sqr()),
		Im: c.Re.Mul(c.Im).MulFloat32(2),
	}
}

// MulFloat32 scales both components.
func (c Complex2) MulFloat32(f float32) Complex2 {
	return Complex2{Re: c.Re.MulFloat32(f), Im: c.Im.MulFloat32(f)}
}

func (c Complex2) Div(d Complex2) Complex2 {
	den := d.Norm()
	return Complex2{
		Re: c.Re.Mul(d.Re).Add(c.Im.Mul(d.Im)).Div(den),
		Im: c.Im.Mul(d.Re).Sub(c.Re.Mul(d.Im)).Div(den),
	}
}

// Norm returns the squared magnitude re² + im².
func (c Complex2) Norm() Float2 {
	return c.Re.Sqr().Add(c.Im.Sqr())
}

// Abs returns the magnitude.
func (c Complex2) Abs() Float2 {
	return c.Norm().Sqrt()
}

// Arg returns the phase angle.
func (c Complex2) Arg() Float2 {
	return Atan2(c.Im, c.Re)
}
