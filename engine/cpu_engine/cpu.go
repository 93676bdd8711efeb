// Package cpu_engine implements dispatch.Device by running the kernels in
// kernels/cpu on the host. Work-groups run concurrently on a bounded number
// of goroutines.
package cpu_engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"honnef.co/go/dsgpu"
	"honnef.co/go/dsgpu/dispatch"
	"honnef.co/go/dsgpu/kernels"
	"honnef.co/go/dsgpu/kernels/cpu"
)

// ErrKernelFault is reported by Wait when a kernel panicked, typically
// because a bound buffer was too short.
var ErrKernelFault = errors.New("kernel fault")

type Options struct {
	// MaxGroupSize is the largest work-group. Defaults to 256.
	MaxGroupSize int
	// Workers is the number of work-groups run at once. Defaults to
	// GOMAXPROCS.
	Workers int
	// Registry maps kernel names to implementations. Defaults to
	// cpu.Registry.
	Registry map[string]cpu.Func
}

type Device struct {
	opts Options
}

var _ dispatch.Device = (*Device)(nil)

func New(opts *Options) *Device {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.MaxGroupSize <= 0 {
		o.MaxGroupSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Registry == nil {
		o.Registry = cpu.Registry
	}
	return &Device{opts: o}
}

func (d *Device) Name() string { return "cpu" }

func (d *Device) NewLibrary() (dispatch.Library, error) {
	return library{d}, nil
}

func (d *Device) NewQueue() (dispatch.Queue, error) {
	return queue{d}, nil
}

func (d *Device) NewPipeline(fn dispatch.Function) (dispatch.Pipeline, error) {
	f, ok := fn.(*function)
	if !ok {
		return nil, fmt.Errorf("function %q doesn't belong to the CPU device", fn.Name())
	}
	return &pipeline{fn: f, maxGroupSize: d.opts.MaxGroupSize}, nil
}

func (d *Device) NewBuffer(data []byte) (dispatch.Buffer, error) {
	buf := make(cpu.Buffer, len(data))
	copy(buf, data)
	return &buffer{data: buf}, nil
}

type library struct {
	dev *Device
}

// Function returns the named kernel if the registry implements it. Kernels
// in the catalogue also get their bindings checked on submission.
func (l library) Function(name string) (dispatch.Function, bool) {
	fn, ok := l.dev.opts.Registry[name]
	if !ok {
		return nil, false
	}
	k, _ := kernels.Lookup(name)
	return &function{name: name, fn: fn, kernel: k}, true
}

type function struct {
	name   string
	fn     cpu.Func
	kernel *kernels.Kernel
}

func (f *function) Name() string { return f.name }

type pipeline struct {
	fn           *function
	maxGroupSize int
}

func (p *pipeline) MaxGroupSize() int { return p.maxGroupSize }

type buffer struct {
	data cpu.Buffer
}

func (b *buffer) Bytes() []byte { return b.data }

type queue struct {
	dev *Device
}

func (q queue) NewCommandBuffer() (dispatch.CommandBuffer, error) {
	return &commandBuffer{dev: q.dev}, nil
}

type slot struct {
	data   cpu.Buffer
	typ    kernels.BindType
	access dispatch.Access
}

type encoder struct {
	pipeline *pipeline
	slots    []slot
	grid     int
	group    int
	ended    bool
}

func (enc *encoder) SetPipeline(p dispatch.Pipeline) {
	enc.pipeline, _ = p.(*pipeline)
}

func (enc *encoder) set(n int, s slot) {
	for len(enc.slots) <= n {
		enc.slots = append(enc.slots, slot{})
	}
	enc.slots[n] = s
}

func (enc *encoder) SetBuffer(n int, buf dispatch.Buffer, access dispatch.Access) {
	typ := kernels.ReadOnly
	if access == dispatch.ReadWrite {
		typ = kernels.Storage
	}
	enc.set(n, slot{data: buf.Bytes(), typ: typ, access: access})
}

func (enc *encoder) SetBytes(n int, data []byte) {
	buf := make(cpu.Buffer, len(data))
	copy(buf, data)
	enc.set(n, slot{data: buf, typ: kernels.Uniform})
}

func (enc *encoder) Dispatch(grid, group int) {
	enc.grid = grid
	enc.group = group
}

func (enc *encoder) End() {
	enc.ended = true
}

type commandBuffer struct {
	dev  *Device
	enc  *encoder
	done chan struct{}
	err  error
}

func (cb *commandBuffer) NewEncoder() (dispatch.Encoder, error) {
	if cb.enc != nil {
		return nil, errors.New("command buffer already has an encoder")
	}
	cb.enc = &encoder{}
	return cb.enc, nil
}

func (cb *commandBuffer) validate() error {
	enc := cb.enc
	switch {
	case cb.done != nil:
		return errors.New("command buffer already committed")
	case enc == nil:
		return errors.New("no encoder")
	case !enc.ended:
		return errors.New("encoding hasn't ended")
	case enc.pipeline == nil:
		return errors.New("no pipeline set")
	case enc.grid <= 0 || enc.group <= 0:
		return fmt.Errorf("invalid dispatch of %d items in groups of %d", enc.grid, enc.group)
	case enc.group > enc.pipeline.maxGroupSize:
		return fmt.Errorf("work-group size %d exceeds maximum of %d", enc.group, enc.pipeline.maxGroupSize)
	}
	for i, s := range enc.slots {
		if s.typ == 0 {
			return fmt.Errorf("slot %d is unbound", i)
		}
	}
	k := enc.pipeline.fn.kernel
	if k == nil {
		return nil
	}
	if len(enc.slots) != len(k.Bindings) {
		return fmt.Errorf("kernel %s takes %d arguments, got %d", k.Name, len(k.Bindings), len(enc.slots))
	}
	for i, s := range enc.slots {
		if s.typ != k.Bindings[i] {
			return fmt.Errorf("kernel %s expects a %s binding in slot %d, got %s", k.Name, k.Bindings[i], i, s.typ)
		}
	}
	return nil
}

func (cb *commandBuffer) Commit() error {
	if err := cb.validate(); err != nil {
		return err
	}
	cb.done = make(chan struct{})
	go func() {
		defer close(cb.done)
		cb.err = cb.run()
	}()
	return nil
}

func (cb *commandBuffer) run() error {
	enc := cb.enc
	fn := enc.pipeline.fn
	args := make([]cpu.Buffer, len(enc.slots))
	for i, s := range enc.slots {
		args[i] = s.data
	}
	numWgs := (enc.grid + enc.group - 1) / enc.group
	dsgpu.Logger().Debug("running CPU kernel", "kernel", fn.name, "workgroups", numWgs, "workers", cb.dev.opts.Workers)

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(cb.dev.opts.Workers)
	for wg := range numWgs {
		start := uint32(wg * enc.group)
		end := uint32(min((wg+1)*enc.group, enc.grid))
		g.Go(func() (err error) {
			if ctx.Err() != nil {
				return nil
			}
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: kernel %s, work-group %d: %v", ErrKernelFault, fn.name, wg, r)
				}
			}()
			fn.fn(start, end, args)
			return nil
		})
	}
	return g.Wait()
}

func (cb *commandBuffer) Wait() error {
	if cb.done == nil {
		return errors.New("command buffer wasn't committed")
	}
	<-cb.done
	return cb.err
}
