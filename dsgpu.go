// Package dsgpu emulates float64 precision on compute devices that only
// handle float32, and dispatches single compute kernels against such devices.
//
// Wide values travel to a kernel in one of two encodings. A double-single
// pair ([dsmath.Float2], [dsmath.Complex2]) splits a float64 into two float32
// whose sum approximates it, and kernels do their arithmetic on the pair. A
// bit-aliased lane ([f64bits.Float], [f64bits.Complex]) carries the exact
// float64 bits in a uint64 for kernels that implement binary64 arithmetic on
// integers.
//
// The [dispatch] package binds kernel arguments to positional slots, launches
// a kernel exactly once and hands back its result array. Devices live in
// engine/cpu_engine and engine/wgpu_engine. The escape package holds the
// reference escape-time estimator that the Mandelbrot kernels are validated
// against, and validate turns such comparisons into structured reports.
package dsgpu
