package dispatch

import (
	"fmt"
	"unsafe"

	"honnef.co/go/safeish"
)

// Layout describes how one element of a bound array is laid out in memory.
// Size is the number of meaningful bytes, Stride the distance between
// consecutive elements and Align the required alignment of each element.
type Layout struct {
	Size   int
	Stride int
	Align  int
}

// LayoutOf returns the in-memory layout of T. Go pads every type to a
// multiple of its alignment, so Stride equals Size.
func LayoutOf[T any]() Layout {
	var zero T
	return Layout{
		Size:   int(unsafe.Sizeof(zero)),
		Stride: int(unsafe.Sizeof(zero)),
		Align:  int(unsafe.Alignof(zero)),
	}
}

func (l Layout) validate() error {
	switch {
	case l.Size <= 0:
		return fmt.Errorf("%w: size %d", ErrInvalidLayout, l.Size)
	case l.Stride < l.Size:
		return fmt.Errorf("%w: stride %d smaller than size %d", ErrInvalidLayout, l.Stride, l.Size)
	case l.Align <= 0 || l.Align&(l.Align-1) != 0:
		return fmt.Errorf("%w: alignment %d is not a power of two", ErrInvalidLayout, l.Align)
	case l.Stride%l.Align != 0:
		return fmt.Errorf("%w: stride %d not a multiple of alignment %d", ErrInvalidLayout, l.Stride, l.Align)
	}
	return nil
}

// replicate returns count copies of elem, each padded to the stride.
func (l Layout) replicate(elem []byte, count int) []byte {
	out := make([]byte, l.Stride*count)
	for i := range count {
		copy(out[i*l.Stride:i*l.Stride+l.Size], elem)
	}
	return out
}

func asBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return safeish.SliceCast[[]byte](s)
}

func fromBytes[T any](b []byte) []T {
	if len(b) == 0 {
		return nil
	}
	return safeish.SliceCast[[]T](b)
}
