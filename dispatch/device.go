package dispatch

// Device is a compute device. The engine resolves everything it needs from
// the device in a fixed order: library, queue, command buffer, encoder,
// kernel function, pipeline. Implementations live in engine/cpu_engine and
// engine/wgpu_engine; tests substitute their own.
type Device interface {
	Name() string
	NewLibrary() (Library, error)
	NewQueue() (Queue, error)
	NewPipeline(fn Function) (Pipeline, error)
	// NewBuffer allocates device-visible memory initialized with data.
	NewBuffer(data []byte) (Buffer, error)
}

// Library is the device's collection of compiled kernels.
type Library interface {
	Function(name string) (Function, bool)
}

type Function interface {
	Name() string
}

type Pipeline interface {
	// MaxGroupSize is the largest number of work items the device runs in one
	// work-group for this pipeline.
	MaxGroupSize() int
}

type Queue interface {
	NewCommandBuffer() (CommandBuffer, error)
}

type CommandBuffer interface {
	NewEncoder() (Encoder, error)
	// Commit submits the encoded work.
	Commit() error
	// Wait blocks until the submitted work has completed.
	Wait() error
}

// Access says whether a kernel may write to a bound buffer.
type Access int

const (
	ReadOnly Access = iota + 1
	ReadWrite
)

type Encoder interface {
	SetPipeline(p Pipeline)
	SetBuffer(slot int, buf Buffer, access Access)
	// SetBytes binds a small value inline.
	SetBytes(slot int, data []byte)
	// Dispatch runs grid work items in work-groups of group items.
	Dispatch(grid, group int)
	End()
}

type Buffer interface {
	// Bytes returns the host-visible contents. For buffers a kernel writes
	// to, the contents reflect the kernel's output once the command buffer
	// has completed.
	Bytes() []byte
}
