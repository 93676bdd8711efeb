package dsmath

// The error-free transformations below depend on every float32 operation
// being rounded on its own. Explicit float32 conversions keep the compiler
// from fusing a multiply into a following add.

// quickTwoSum requires |a| >= |b|.
func quickTwoSum(a, b float32) (s, e float32) {
	s = a + b
	e = b - (s - a)
	return s, e
}

func twoSum(a, b float32) (s, e float32) {
	s = a + b
	v := s - a
	e = (a - (s - v)) + (b - v)
	return s, e
}

// split32 divides the significand of a into two halves of 12 bits each.
func split32(a float32) (hi, lo float32) {
	const split = 1<<12 + 1
	t := float32(a * split)
	hi = t - (t - a)
	lo = a - hi
	return hi, lo
}

// twoProd returns p = fl(a*b) and the exact rounding error e = a*b - p.
func twoProd(a, b float32) (p, e float32) {
	p = float32(a * b)
	ahi, alo := split32(a)
	bhi, blo := split32(b)
	e = ((float32(ahi*bhi) - p) + float32(ahi*blo) + float32(alo*bhi)) + float32(alo*blo)
	return p, e
}

func (a Float2) Add(b Float2) Float2 {
	s, e := twoSum(a.Hi, b.Hi)
	t, f := twoSum(a.Lo, b.Lo)
	e += t
	s, e = quickTwoSum(s, e)
	e += f
	s, e = quickTwoSum(s, e)
	return Float2{Hi: s, Lo: e}
}

func (a Float2) Sub(b Float2) Float2 {
	return a.Add(b.Neg())
}

func (a Float2) Mul(b Float2) Float2 {
	p, e := twoProd(a.Hi, b.Hi)
	e += float32(a.Hi * b.Lo)
	e += float32(a.Lo * b.Hi)
	p, e = quickTwoSum(p, e)
	return Float2{Hi: p, Lo: e}
}

func (a Float2) Sqr() Float2 {
	p, e := twoProd(a.Hi, a.Hi)
	e += float32(float32(2*a.Hi) * a.Lo)
	p, e = quickTwoSum(p, e)
	return Float2{Hi: p, Lo: e}
}

// MulFloat32 multiplies a by a plain float32.
func (a Float2) MulFloat32(b float32) Float2 {
	p, e := twoProd(a.Hi, b)
	e += float32(a.Lo * b)
	p, e = quickTwoSum(p, e)
	return Float2{Hi: p, Lo: e}
}

// Div returns a/b. One correction step is applied to the float32 quotient of
// the high parts.
func (a Float2) Div(b Float2) Float2 {
	xn := 1 / b.Hi
	yn := a.Hi * xn
	diff := a.Sub(b.MulFloat32(yn)).Hi
	p, e := twoProd(xn, diff)
	return Float2{Hi: yn}.Add(Float2{Hi: p, Lo: e})
}
