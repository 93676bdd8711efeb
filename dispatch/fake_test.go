package dispatch

import (
	"errors"
	"fmt"
)

var errInjected = errors.New("injected failure")

// fakeDevice records what the engine asks of it and runs kernels written in
// Go against the bound slots when the command buffer is committed.
type fakeDevice struct {
	failAt     string
	maxGroup   int
	failAlloc  int // fail the n-th allocation, counting from 1
	commitErr  error
	waitErr    error
	kernels    map[string]func(grid int, slots map[int][]byte)
	allocs     int
	events     []string
	dispatched bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		maxGroup: 256,
		kernels: map[string]func(int, map[int][]byte){
			"noop": func(int, map[int][]byte) {},
		},
	}
}

func (d *fakeDevice) Name() string { return "fake" }

func (d *fakeDevice) NewLibrary() (Library, error) {
	if d.failAt == "library" {
		return nil, errInjected
	}
	return fakeLibrary{d}, nil
}

func (d *fakeDevice) NewQueue() (Queue, error) {
	if d.failAt == "queue" {
		return nil, errInjected
	}
	return fakeQueue{d}, nil
}

func (d *fakeDevice) NewPipeline(fn Function) (Pipeline, error) {
	if d.failAt == "pipeline" {
		return nil, errInjected
	}
	return fakePipeline{fn: fn.(fakeFunction), max: d.maxGroup}, nil
}

func (d *fakeDevice) NewBuffer(data []byte) (Buffer, error) {
	d.allocs++
	if d.allocs == d.failAlloc {
		return nil, errInjected
	}
	return &fakeBuffer{data: append([]byte(nil), data...)}, nil
}

type fakeLibrary struct{ d *fakeDevice }

func (l fakeLibrary) Function(name string) (Function, bool) {
	if _, ok := l.d.kernels[name]; !ok {
		return nil, false
	}
	return fakeFunction(name), true
}

type fakeFunction string

func (f fakeFunction) Name() string { return string(f) }

type fakePipeline struct {
	fn  fakeFunction
	max int
}

func (p fakePipeline) MaxGroupSize() int { return p.max }

type fakeQueue struct{ d *fakeDevice }

func (q fakeQueue) NewCommandBuffer() (CommandBuffer, error) {
	if q.d.failAt == "commandbuffer" {
		return nil, errInjected
	}
	return &fakeCommandBuffer{d: q.d}, nil
}

type fakeCommandBuffer struct {
	d   *fakeDevice
	enc *fakeEncoder
}

func (c *fakeCommandBuffer) NewEncoder() (Encoder, error) {
	if c.d.failAt == "encoder" {
		return nil, errInjected
	}
	c.enc = &fakeEncoder{d: c.d, slots: map[int][]byte{}}
	return c.enc, nil
}

func (c *fakeCommandBuffer) Commit() error {
	if c.d.commitErr != nil {
		return c.d.commitErr
	}
	c.d.events = append(c.d.events, "commit")
	c.d.dispatched = true
	c.d.kernels[string(c.enc.pipeline.fn)](c.enc.grid, c.enc.slots)
	return nil
}

func (c *fakeCommandBuffer) Wait() error {
	c.d.events = append(c.d.events, "wait")
	return c.d.waitErr
}

type fakeEncoder struct {
	d        *fakeDevice
	pipeline fakePipeline
	slots    map[int][]byte
	grid     int
	group    int
}

func (e *fakeEncoder) SetPipeline(p Pipeline) {
	e.pipeline = p.(fakePipeline)
	e.d.events = append(e.d.events, "pipeline")
}

func (e *fakeEncoder) SetBuffer(slot int, buf Buffer, access Access) {
	e.slots[slot] = buf.(*fakeBuffer).data
	mode := "ro"
	if access == ReadWrite {
		mode = "rw"
	}
	e.d.events = append(e.d.events, fmt.Sprintf("buffer %d %s", slot, mode))
}

func (e *fakeEncoder) SetBytes(slot int, data []byte) {
	e.slots[slot] = append([]byte(nil), data...)
	e.d.events = append(e.d.events, fmt.Sprintf("bytes %d", slot))
}

func (e *fakeEncoder) Dispatch(grid, group int) {
	e.grid, e.group = grid, group
	e.d.events = append(e.d.events, fmt.Sprintf("dispatch %d %d", grid, group))
}

func (e *fakeEncoder) End() {
	e.d.events = append(e.d.events, "end")
}

type fakeBuffer struct{ data []byte }

func (b *fakeBuffer) Bytes() []byte { return b.data }
