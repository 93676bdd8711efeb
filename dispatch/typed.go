package dispatch

import (
	"fmt"

	"golang.org/x/exp/constraints"
	"honnef.co/go/dsgpu/dsmath"
	"honnef.co/go/dsgpu/f64bits"
	"honnef.co/go/safeish"
)

// Scalar is the set of values that can be bound inline. f64bits.Float is
// covered by constraints.Integer.
type Scalar interface {
	constraints.Integer | ~float32 | dsmath.Float2 | dsmath.Complex2 | f64bits.Complex
}

// Bind binds values as an array to the next slot.
func Bind[T any](e *Engine, values []T, role Role) error {
	return e.BindArray(asBytes(values), LayoutOf[T](), role)
}

// Allocate binds count copies of init to the next slot.
func Allocate[T any](e *Engine, count int, init T, role Role) error {
	return e.AllocateArray(count, safeish.AsBytes(&init), LayoutOf[T](), role)
}

// BindValue binds v inline to the next slot.
func BindValue[T Scalar](e *Engine, v T) error {
	return e.BindScalar(safeish.AsBytes(&v))
}

// BindFloat64 binds v as a double-single pair.
func BindFloat64(e *Engine, v float64) error {
	return BindValue(e, dsmath.Split(v))
}

// BindComplex128 binds c as a double-single complex pair.
func BindComplex128(e *Engine, c complex128) error {
	return BindValue(e, dsmath.SplitComplex(c))
}

// Launch launches the kernel with a result array of T, each element set to
// init.
func Launch[T any](e *Engine, init T) error {
	return e.Launch(safeish.AsBytes(&init), LayoutOf[T]())
}

// Results returns the result array as a []T. The slice aliases the result
// buffer.
func Results[T any](e *Engine) ([]T, error) {
	data, layout, err := e.ReadResult()
	if err != nil {
		return nil, err
	}
	if want := LayoutOf[T](); layout != want {
		return nil, fmt.Errorf("%w: result has layout %+v, reading as %+v", ErrInvalidLayout, layout, want)
	}
	return fromBytes[T](data), nil
}

// Run launches the kernel and returns its results.
func Run[T any](e *Engine, init T) ([]T, error) {
	if err := Launch(e, init); err != nil {
		return nil, err
	}
	return Results[T](e)
}
