package dsmath

import (
	"math"
)

// Sqrt uses one Newton correction of the float32 reciprocal square root of
// the high part. Negative arguments return NaN.
func (a Float2) Sqrt() Float2 {
	switch {
	case a.IsZero():
		return Float2{}
	case a.Hi < 0:
		return Float2{Hi: float32(math.NaN())}
	case math.IsInf(float64(a.Hi), 1):
		return a
	}
	xn := float32(1 / math.Sqrt(float64(a.Hi)))
	yn := a.Hi * xn
	diff := a.Sub(Float2{Hi: yn}.Sqr()).Hi
	p, e := twoProd(xn, diff)
	return Float2{Hi: yn}.Add(Float2{Hi: p / 2, Lo: e / 2})
}

const (
	// Beyond these the result is no longer a finite, normal float32.
	expOverflow  = 88.72
	expUnderflow = -87.33

	expTerms = 24
)

// Exp reduces the argument by multiples of ln 2 and sums the Taylor series
// of the remainder.
func (a Float2) Exp() Float2 {
	switch {
	case a.IsNaN():
		return a
	case a.Hi > expOverflow:
		return Float2{Hi: float32(math.Inf(1))}
	case a.Hi < expUnderflow:
		return Float2{}
	case a.IsZero():
		return one
	}

	k := math.Round(float64(a.Hi) / math.Ln2)
	r := a.Sub(Ln2.MulFloat32(float32(k)))

	s := one.Add(r)
	t := r
	for m := 2; m < expTerms; m++ {
		t = t.Mul(r).Div(Float2{Hi: float32(m)})
		s = s.Add(t)
		if math.Abs(float64(t.Hi)) < 1e-17 {
			break
		}
	}
	return s.ldexp(int(k))
}

// ldexp scales by 2^k. Both halves scale exactly unless they leave the
// float32 range.
func (a Float2) ldexp(k int) Float2 {
	return Float2{
		Hi: float32(math.Ldexp(float64(a.Hi), k)),
		Lo: float32(math.Ldexp(float64(a.Lo), k)),
	}
}

// Log starts from the float32 logarithm of the high part and applies one
// Newton step on exp. Log(0) is -Inf, negative arguments return NaN.
func (a Float2) Log() Float2 {
	switch {
	case a.Eq(one):
		return Float2{}
	case a.IsZero():
		return Float2{Hi: float32(math.Inf(-1))}
	case a.Hi < 0 || a.IsNaN():
		return Float2{Hi: float32(math.NaN())}
	case math.IsInf(float64(a.Hi), 1):
		return a
	}
	xi := Float2{Hi: float32(math.Log(float64(a.Hi)))}
	return xi.Add(xi.Neg().Exp().Mul(a)).Sub(one)
}

// Pow returns a**b as exp(b·log a).
func (a Float2) Pow(b Float2) Float2 {
	return b.Mul(a.Log()).Exp()
}

// PowInt returns a**n by repeated squaring.
func (a Float2) PowInt(n int) Float2 {
	if n < 0 {
		return one.Div(a.PowInt(-n))
	}
	r := one
	for n > 0 {
		if n&1 == 1 {
			r = r.Mul(a)
		}
		a = a.Sqr()
		n >>= 1
	}
	return r
}

// atanFraction evaluates the continued fraction of atan with n terms. It
// converges quickly for |a| <= 1.
func atanFraction(a Float2, n int) Float2 {
	a2 := a.Sqr()
	d := FromInt(2*n + 1)
	for k := n; k > 0; k-- {
		f := FromInt(2*k - 1)
		k2 := FromInt(k * k)
		d = f.Add(k2.Mul(a2).Div(d))
	}
	return a.Div(d)
}

func (a Float2) Atan() Float2 {
	const terms = 21
	switch {
	case a.IsZero() || a.IsNaN():
		return a
	case a.Hi < 0:
		return a.Neg().Atan().Neg()
	case a.Gt(one):
		return HalfPi.Sub(atanFraction(one.Div(a), terms))
	default:
		return atanFraction(a, terms)
	}
}

// Atan2 returns the angle of the point (x, y), in (-π, π].
func Atan2(y, x Float2) Float2 {
	zero := Float2{}
	switch {
	case x.Gt(zero):
		return y.Div(x).Atan()
	case x.Lt(zero) && y.Ge(zero):
		return y.Div(x).Atan().Add(Pi)
	case x.Lt(zero) && y.Lt(zero):
		return y.Div(x).Atan().Sub(Pi)
	case y.Gt(zero):
		return HalfPi
	case y.Lt(zero):
		return HalfPi.Neg()
	default:
		return zero
	}
}
