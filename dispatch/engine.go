// Package dispatch launches a single compute kernel on a device.
//
// An Engine is created for one kernel, has its arguments bound in the order
// the kernel declares them, is launched once and then yields its result
// array:
//
//	eng, err := dispatch.New(dev, "add_arrays")
//	...
//	dispatch.Bind(eng, a, dispatch.Input)      // slot 0
//	dispatch.Bind(eng, b, dispatch.Input)      // slot 1
//	dispatch.BindValue(eng, x)                 // slot 2
//	out, err := dispatch.Run(eng, dsmath.Float2{}) // slot 3
//
// Every array bound to an engine must have the same number of elements; the
// first array fixes that count and it becomes the launch grid. Errors are
// final: after a failed bind the engine refuses to launch, and an engine
// cannot be launched twice. Engines are not safe for concurrent use, but
// distinct engines share nothing and may run in parallel.
package dispatch

import (
	"fmt"

	"honnef.co/go/dsgpu"
)

// Role distinguishes kernel inputs from the array the kernel writes its
// results to.
type Role int

const (
	Input Role = iota + 1
	Output
)

type state int

const (
	stateBinding state = iota
	stateLaunched
	stateDone
)

type Engine struct {
	kernel   string
	dev      Device
	cmd      CommandBuffer
	enc      Encoder
	pipeline Pipeline

	slot    int
	count   int
	counted bool

	inputs       []Buffer
	result       Buffer
	resultSlot   int
	resultLayout Layout

	state state
	// err is the first binding failure. It is returned by Launch.
	err error
}

// New resolves the device resources needed to run kernel. Each resolution
// step has its own error; the first failure is returned and nothing is
// retried.
func New(dev Device, kernel string) (*Engine, error) {
	if dev == nil {
		return nil, setupError(ErrDeviceUnavailable, kernel, nil)
	}
	lib, err := dev.NewLibrary()
	if err != nil || lib == nil {
		return nil, setupError(ErrLibraryUnavailable, kernel, err)
	}
	queue, err := dev.NewQueue()
	if err != nil || queue == nil {
		return nil, setupError(ErrQueueUnavailable, kernel, err)
	}
	cmd, err := queue.NewCommandBuffer()
	if err != nil || cmd == nil {
		return nil, setupError(ErrCommandBufferUnavailable, kernel, err)
	}
	enc, err := cmd.NewEncoder()
	if err != nil || enc == nil {
		return nil, setupError(ErrEncoderUnavailable, kernel, err)
	}
	fn, ok := lib.Function(kernel)
	if !ok {
		return nil, setupError(ErrKernelNotFound, kernel, nil)
	}
	pipeline, err := dev.NewPipeline(fn)
	if err != nil || pipeline == nil {
		return nil, setupError(ErrPipelineBuild, kernel, err)
	}

	dsgpu.Logger().Debug("kernel resolved", "kernel", kernel, "device", dev.Name(), "max_group_size", pipeline.MaxGroupSize())
	return &Engine{
		kernel:   kernel,
		dev:      dev,
		cmd:      cmd,
		enc:      enc,
		pipeline: pipeline,
	}, nil
}

func (e *Engine) Kernel() string { return e.kernel }

// Slot returns the slot the next argument will be bound to.
func (e *Engine) Slot() int { return e.slot }

// Count returns the element count fixed by the first bound array, or 0.
func (e *Engine) Count() int { return e.count }

func (e *Engine) fail(err error) error {
	if e.err == nil {
		e.err = err
	}
	return err
}

func (e *Engine) checkBinding() error {
	if e.state != stateBinding {
		return ErrSpent
	}
	if e.err != nil {
		return e.err
	}
	return nil
}

// BindArray binds data, an array of elements laid out according to layout,
// to the next slot. The first array fixes the element count; later arrays
// must match it.
func (e *Engine) BindArray(data []byte, layout Layout, role Role) error {
	if err := e.checkBinding(); err != nil {
		return err
	}
	if err := layout.validate(); err != nil {
		return e.fail(err)
	}
	if len(data)%layout.Stride != 0 {
		return e.fail(fmt.Errorf("%w: %d bytes is not a multiple of stride %d", ErrInvalidLayout, len(data), layout.Stride))
	}
	return e.bindArray(data, len(data)/layout.Stride, layout, role)
}

// AllocateArray binds count copies of init to the next slot. init holds one
// element of layout.Size bytes.
func (e *Engine) AllocateArray(count int, init []byte, layout Layout, role Role) error {
	if err := e.checkBinding(); err != nil {
		return err
	}
	if err := layout.validate(); err != nil {
		return e.fail(err)
	}
	if len(init) != layout.Size {
		return e.fail(fmt.Errorf("%w: initial value has %d bytes, want %d", ErrInvalidLayout, len(init), layout.Size))
	}
	if count < 0 {
		return e.fail(fmt.Errorf("%w: negative element count %d", ErrAllocation, count))
	}
	return e.bindArray(layout.replicate(init, count), count, layout, role)
}

func (e *Engine) bindArray(data []byte, n int, layout Layout, role Role) error {
	if !e.counted {
		e.count = n
		e.counted = true
	} else if n != e.count {
		return e.fail(fmt.Errorf("%w: slot %d has %d elements, want %d", ErrCountMismatch, e.slot, n, e.count))
	}
	if n == 0 {
		return e.fail(fmt.Errorf("%w: slot %d is empty", ErrAllocation, e.slot))
	}
	if role == Output && e.result != nil {
		return e.fail(fmt.Errorf("%w: result already bound at slot %d", ErrInvalidLayout, e.resultSlot))
	}
	buf, err := e.dev.NewBuffer(data)
	if err != nil || buf == nil {
		if err == nil {
			return e.fail(fmt.Errorf("%w: slot %d, %d bytes", ErrAllocation, e.slot, len(data)))
		}
		return e.fail(fmt.Errorf("%w: slot %d, %d bytes: %w", ErrAllocation, e.slot, len(data), err))
	}

	access := ReadOnly
	if role == Output {
		access = ReadWrite
		e.result = buf
		e.resultSlot = e.slot
		e.resultLayout = layout
	} else {
		e.inputs = append(e.inputs, buf)
	}
	e.enc.SetBuffer(e.slot, buf, access)
	e.slot++
	return nil
}

// BindScalar binds value inline to the next slot. It does not affect the
// element count.
func (e *Engine) BindScalar(value []byte) error {
	if err := e.checkBinding(); err != nil {
		return err
	}
	if len(value) == 0 {
		return e.fail(fmt.Errorf("%w: empty scalar at slot %d", ErrInvalidLayout, e.slot))
	}
	e.enc.SetBytes(e.slot, value)
	e.slot++
	return nil
}

// Launch allocates the result array at the next slot, with every element set
// to init, and runs the kernel over all elements. It fails if an Output array
// has already been bound. It blocks until the device
// has finished. Failures after binding are reported as *LaunchError.
//
// An engine launches at most once, whether or not the launch succeeds.
func (e *Engine) Launch(init []byte, layout Layout) error {
	if e.state != stateBinding {
		return ErrSpent
	}
	if e.err != nil {
		return e.err
	}
	e.state = stateLaunched

	if e.count == 0 {
		return &LaunchError{Kernel: e.kernel, Stage: StageAllocation, Err: ErrEmptyGrid}
	}
	if e.result != nil {
		return &LaunchError{Kernel: e.kernel, Stage: StageAllocation, Err: fmt.Errorf("%w: result already bound at slot %d", ErrInvalidLayout, e.resultSlot)}
	}
	// Launch owns the state transition, so bind directly.
	if err := layout.validate(); err != nil {
		return &LaunchError{Kernel: e.kernel, Stage: StageAllocation, Err: err}
	}
	if len(init) != layout.Size {
		return &LaunchError{Kernel: e.kernel, Stage: StageAllocation, Err: fmt.Errorf("%w: initial value has %d bytes, want %d", ErrInvalidLayout, len(init), layout.Size)}
	}
	if err := e.bindArray(layout.replicate(init, e.count), e.count, layout, Output); err != nil {
		return &LaunchError{Kernel: e.kernel, Stage: StageAllocation, Err: err}
	}

	group := min(e.count, e.pipeline.MaxGroupSize())
	if group < 1 {
		group = 1
	}
	log := dsgpu.Logger()
	log.Debug("launching kernel", "kernel", e.kernel, "grid", e.count, "group", group, "slots", e.slot)

	e.enc.SetPipeline(e.pipeline)
	e.enc.Dispatch(e.count, group)
	e.enc.End()
	if err := e.cmd.Commit(); err != nil {
		return &LaunchError{Kernel: e.kernel, Stage: StageSubmission, Err: err}
	}
	if err := e.cmd.Wait(); err != nil {
		return &LaunchError{Kernel: e.kernel, Stage: StageDevice, Err: err}
	}
	e.state = stateDone
	log.Debug("kernel completed", "kernel", e.kernel)
	return nil
}

// ReadResult returns the contents of the result array and its element
// layout. It fails with ErrNotLaunched unless Launch succeeded.
func (e *Engine) ReadResult() ([]byte, Layout, error) {
	if e.state != stateDone {
		return nil, Layout{}, ErrNotLaunched
	}
	return e.result.Bytes(), e.resultLayout, nil
}
