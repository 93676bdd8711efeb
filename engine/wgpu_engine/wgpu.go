// Package wgpu_engine implements dispatch.Device on top of WebGPU. Kernels
// are the WGSL kernels of the catalogue; kernels without a WGSL
// implementation are not available.
package wgpu_engine

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"strings"
	"sync"

	"github.com/gogpu/naga"
	"honnef.co/go/dsgpu"
	"honnef.co/go/dsgpu/dispatch"
	"honnef.co/go/dsgpu/kernels"
	"honnef.co/go/wgpu"
)

type Options struct {
	// Label prefixes the labels of all GPU objects.
	Label string
	// SkipValidation skips validating kernels with naga before handing them
	// to the driver.
	SkipValidation bool
}

type Device struct {
	dev   *wgpu.Device
	queue *wgpu.Queue
	opts  Options

	mu        sync.Mutex
	pool      resourcePool
	pipelines map[string]*pipeline
}

var _ dispatch.Device = (*Device)(nil)

func New(dev *wgpu.Device, queue *wgpu.Queue, opts *Options) (*Device, error) {
	if dev == nil || queue == nil {
		return nil, errors.New("wgpu_engine: need both a device and a queue")
	}
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.Label == "" {
		o.Label = "dsgpu"
	}
	return &Device{
		dev:   dev,
		queue: queue,
		opts:  o,
		pool: resourcePool{
			bufs: make(map[bufferProperties][]*wgpu.Buffer),
		},
		pipelines: make(map[string]*pipeline),
	}, nil
}

func (d *Device) Name() string { return "wgpu" }

func (d *Device) NewLibrary() (dispatch.Library, error) {
	return library{}, nil
}

func (d *Device) NewQueue() (dispatch.Queue, error) {
	return queue{d}, nil
}

// Release frees the buffers pooled by the device.
func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pool.release()
}

func (d *Device) label(s string) string {
	return d.opts.Label + " " + s
}

type library struct{}

func (library) Function(name string) (dispatch.Function, bool) {
	k, ok := kernels.Lookup(name)
	if !ok || !k.HasWGSL() {
		return nil, false
	}
	return function{k}, true
}

type function struct {
	kernel *kernels.Kernel
}

func (f function) Name() string { return f.kernel.Name }

type pipeline struct {
	kernel          *kernels.Kernel
	pipeline        *wgpu.ComputePipeline
	bindGroupLayout *wgpu.BindGroupLayout
}

func (p *pipeline) MaxGroupSize() int { return int(p.kernel.WorkgroupSize[0]) }

// naga doesn't implement all of WGSL yet. Kernels it can't handle are left
// to the driver to validate.
func isNagaLimitation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported")
}

func (d *Device) NewPipeline(fn dispatch.Function) (dispatch.Pipeline, error) {
	f, ok := fn.(function)
	if !ok {
		return nil, fmt.Errorf("function %q doesn't belong to the wgpu device", fn.Name())
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pipelines[f.kernel.Name]; ok {
		return p, nil
	}

	src, err := f.kernel.WGSL()
	if err != nil {
		return nil, err
	}
	if !d.opts.SkipValidation {
		if _, err := naga.Compile(string(src)); err != nil {
			if !isNagaLimitation(err) {
				return nil, fmt.Errorf("invalid WGSL: %w", err)
			}
			dsgpu.Logger().Debug("skipping kernel validation", "kernel", f.kernel.Name, "reason", err)
		}
	}

	p := d.createComputePipeline(f.kernel, src)
	d.pipelines[f.kernel.Name] = p
	return p, nil
}

func bindGroupLayoutEntries(k *kernels.Kernel) []wgpu.BindGroupLayoutEntry {
	entries := make([]wgpu.BindGroupLayoutEntry, len(k.Bindings))
	for i, bindType := range k.Bindings {
		var typ wgpu.BufferBindingType
		switch bindType {
		case kernels.Storage:
			typ = wgpu.BufferBindingTypeStorage
		case kernels.ReadOnly:
			typ = wgpu.BufferBindingTypeReadOnlyStorage
		case kernels.Uniform:
			typ = wgpu.BufferBindingTypeUniform
		default:
			panic(fmt.Sprintf("invalid bind type %d", bindType))
		}
		entries[i] = wgpu.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: wgpu.ShaderStageCompute,
			Buffer: &wgpu.BufferBindingLayout{
				Type:             typ,
				HasDynamicOffset: false,
				MinBindingSize:   0,
			},
		}
	}
	return entries
}

func (d *Device) createComputePipeline(k *kernels.Kernel, wgsl []byte) *pipeline {
	label := d.label(k.Name)
	shaderModule := d.dev.CreateShaderModule(wgpu.ShaderModuleDescriptor{
		Label:  label,
		Source: wgpu.ShaderSourceWGSL(wgsl),
	})
	bindGroupLayout := d.dev.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Entries: bindGroupLayoutEntries(k),
	})
	computePipelineLayout := d.dev.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		BindGroupLayouts: []*wgpu.BindGroupLayout{bindGroupLayout},
	})
	p := d.dev.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  label,
		Layout: computePipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     shaderModule,
			EntryPoint: "main",
		},
	})
	computePipelineLayout.Release()

	return &pipeline{
		kernel:          k,
		pipeline:        p,
		bindGroupLayout: bindGroupLayout,
	}
}

func alignUp(n, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}

// buffer is an array argument. The host copy is what Bytes returns; for
// writable buffers it is refreshed from the GPU when the command buffer
// completes.
type buffer struct {
	gpu  *wgpu.Buffer
	size uint64
	host []byte
}

func (b *buffer) Bytes() []byte { return b.host }

const storageUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc

func (d *Device) upload(data []byte, usage wgpu.BufferUsage, align uint64, label string) (*wgpu.Buffer, uint64) {
	size := alignUp(max(uint64(len(data)), 1), align)
	d.mu.Lock()
	buf := d.pool.getBuf(size, d.label(label), usage, d.dev)
	d.mu.Unlock()
	if uint64(len(data)) != size {
		padded := make([]byte, size)
		copy(padded, data)
		data = padded
	}
	d.queue.WriteBuffer(buf, 0, data)
	return buf, size
}

func (d *Device) NewBuffer(data []byte) (dispatch.Buffer, error) {
	if len(data) == 0 {
		return nil, errors.New("zero-sized storage buffer")
	}
	buf, size := d.upload(data, storageUsage, 4, "array")
	host := make([]byte, len(data))
	copy(host, data)
	return &buffer{gpu: buf, size: size, host: host}, nil
}

type queue struct {
	dev *Device
}

func (q queue) NewCommandBuffer() (dispatch.CommandBuffer, error) {
	return &commandBuffer{dev: q.dev}, nil
}

type slot struct {
	buf    *wgpu.Buffer
	size   uint64
	typ    kernels.BindType
	output *buffer
}

type encoder struct {
	dev      *Device
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

func (enc *encoder) SetBuffer(n int, b dispatch.Buffer, access dispatch.Access) {
	buf, ok := b.(*buffer)
	if !ok {
		panic(fmt.Sprintf("buffer of type %T doesn't belong to the wgpu device", b))
	}
	s := slot{buf: buf.gpu, size: buf.size, typ: kernels.ReadOnly}
	if access == dispatch.ReadWrite {
		s.typ = kernels.Storage
		s.output = buf
	}
	enc.set(n, s)
}

// SetBytes binds data as a uniform. Uniform bindings are padded to 16 bytes.
func (enc *encoder) SetBytes(n int, data []byte) {
	buf, size := enc.dev.upload(data, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst, 16, "uniform")
	enc.set(n, slot{buf: buf, size: size, typ: kernels.Uniform})
}

func (enc *encoder) Dispatch(grid, group int) {
	enc.grid = grid
	enc.group = group
}

func (enc *encoder) End() {
	enc.ended = true
}

type download struct {
	staging *wgpu.Buffer
	size    uint64
	dst     *buffer
}

type commandBuffer struct {
	dev       *Device
	enc       *encoder
	committed bool
	downloads []download
}

func (cb *commandBuffer) NewEncoder() (dispatch.Encoder, error) {
	if cb.enc != nil {
		return nil, errors.New("command buffer already has an encoder")
	}
	cb.enc = &encoder{dev: cb.dev}
	return cb.enc, nil
}

func (cb *commandBuffer) validate() error {
	enc := cb.enc
	switch {
	case cb.committed:
		return errors.New("command buffer already committed")
	case enc == nil:
		return errors.New("no encoder")
	case !enc.ended:
		return errors.New("encoding hasn't ended")
	case enc.pipeline == nil:
		return errors.New("no pipeline set")
	case enc.grid <= 0 || enc.group <= 0:
		return fmt.Errorf("invalid dispatch of %d items in groups of %d", enc.grid, enc.group)
	case enc.group > enc.pipeline.MaxGroupSize():
		return fmt.Errorf("work-group size %d exceeds maximum of %d", enc.group, enc.pipeline.MaxGroupSize())
	}
	k := enc.pipeline.kernel
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

func workgroups(grid int, wgSize uint32) uint32 {
	return uint32((uint64(grid) + uint64(wgSize) - 1) / uint64(wgSize))
}

func (cb *commandBuffer) Commit() error {
	if err := cb.validate(); err != nil {
		return err
	}
	cb.committed = true
	d := cb.dev
	enc := cb.enc
	p := enc.pipeline

	entries := make([]wgpu.BindGroupEntry, len(enc.slots))
	for i, s := range enc.slots {
		entries[i] = wgpu.BindGroupEntry{
			Binding: uint32(i),
			Buffer:  s.buf,
			Size:    s.size,
		}
	}
	bindGroup := d.dev.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout:  p.bindGroupLayout,
		Entries: entries,
	})

	numWgs := workgroups(enc.grid, p.kernel.WorkgroupSize[0])
	dsgpu.Logger().Debug("dispatching kernel", "kernel", p.kernel.Name, "workgroups", numWgs)

	encoder := d.dev.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: d.label(p.kernel.Name)})
	cpass := encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: p.kernel.Name})
	cpass.SetPipeline(p.pipeline)
	cpass.SetBindGroup(0, bindGroup, nil)
	cpass.DispatchWorkgroups(numWgs, 1, 1)
	cpass.End()
	bindGroup.Release()
	cpass.Release()

	for _, s := range enc.slots {
		if s.output == nil {
			continue
		}
		usage := wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst
		d.mu.Lock()
		staging := d.pool.getBuf(s.size, d.label("download"), usage, d.dev)
		d.mu.Unlock()
		encoder.CopyBufferToBuffer(s.buf, 0, staging, 0, s.size)
		cb.downloads = append(cb.downloads, download{staging: staging, size: s.size, dst: s.output})
	}

	cmd := encoder.Finish(nil)
	encoder.Release()
	d.queue.Submit(cmd)
	cmd.Release()
	return nil
}

func (cb *commandBuffer) Wait() error {
	if !cb.committed {
		return errors.New("command buffer wasn't committed")
	}
	d := cb.dev
	chs := make([]<-chan error, len(cb.downloads))
	for i, dl := range cb.downloads {
		chs[i] = dl.staging.Map(d.dev, wgpu.MapModeRead, 0, int(dl.size))
	}
	var errs []error
	for i, dl := range cb.downloads {
		if err := awaitMap(d.dev.Poll, chs[i]); err != nil {
			errs = append(errs, fmt.Errorf("mapping result buffer: %w", err))
			continue
		}
		copy(dl.dst.host, dl.staging.ReadOnlyMappedRange(0, int(dl.size)))
		dl.staging.Unmap()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, dl := range cb.downloads {
		d.pool.putBuf(dl.staging)
	}
	for _, s := range cb.enc.slots {
		d.pool.putBuf(s.buf)
	}
	cb.downloads = nil
	return errors.Join(errs...)
}

// awaitMap drives device maintenance until the map request behind ch
// completes. Map callbacks only fire from inside a device poll.
func awaitMap(poll func(wait bool) bool, ch <-chan error) error {
	for {
		select {
		case err := <-ch:
			return err
		default:
			poll(true)
		}
	}
}

type bufferProperties struct {
	size   uint64
	usages wgpu.BufferUsage
}

// resourcePool recycles buffers between launches. Sizes are rounded up to
// size classes so that buffers of similar size can be shared.
type resourcePool struct {
	bufs map[bufferProperties][]*wgpu.Buffer
}

func (pool *resourcePool) getBuf(
	size uint64,
	name string,
	usage wgpu.BufferUsage,
	dev *wgpu.Device,
) *wgpu.Buffer {
	const sizeClassBits = 1

	roundedSize := poolSizeClass(size, sizeClassBits)
	props := bufferProperties{
		size:   roundedSize,
		usages: usage,
	}
	if bufVec, ok := pool.bufs[props]; ok {
		if len(bufVec) > 0 {
			buf := bufVec[len(bufVec)-1]
			bufVec = bufVec[:len(bufVec)-1]
			pool.bufs[props] = bufVec
			return buf
		}
	}
	return dev.CreateBuffer(&wgpu.BufferDescriptor{
		Label: name,
		Size:  roundedSize,
		Usage: usage,
	})
}

func (pool *resourcePool) putBuf(buf *wgpu.Buffer) {
	props := bufferProperties{
		size:   buf.Size(),
		usages: buf.Usage(),
	}
	pool.bufs[props] = append(pool.bufs[props], buf)
}

func (pool *resourcePool) release() {
	for props, bufs := range pool.bufs {
		for _, buf := range bufs {
			buf.Release()
		}
		delete(pool.bufs, props)
	}
}

func poolSizeClass(x uint64, numBits uint32) uint64 {
	if x > 1<<numBits {
		a := bits.LeadingZeros64(x - 1)
		b := (x - 1) | (((math.MaxUint64 / 2) >> numBits) >> a)
		return b + 1
	} else {
		return 1 << numBits
	}
}
