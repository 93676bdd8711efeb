package wgpu_engine

import (
	"errors"
	"testing"

	"honnef.co/go/dsgpu/kernels"
	"honnef.co/go/wgpu"
)

func TestPoolSizeClass(t *testing.T) {
	tests := []struct {
		in, want uint64
	}{
		{1, 2},
		{2, 2},
		{3, 3},
		{4, 4},
		{5, 6},
		{7, 8},
		{64, 64},
		{65, 96},
		{90, 96},
		{97, 128},
		{100, 128},
		{1 << 20, 1 << 20},
		{1<<20 + 1, 3 << 19},
	}
	for _, tt := range tests {
		if got := poolSizeClass(tt.in, 1); got != tt.want {
			t.Errorf("poolSizeClass(%d, 1) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		n, align, want uint64
	}{
		{1, 4, 4},
		{4, 4, 4},
		{5, 4, 8},
		{4, 16, 16},
		{16, 16, 16},
		{17, 16, 32},
	}
	for _, tt := range tests {
		if got := alignUp(tt.n, tt.align); got != tt.want {
			t.Errorf("alignUp(%d, %d) = %d, want %d", tt.n, tt.align, got, tt.want)
		}
	}
}

func TestWorkgroups(t *testing.T) {
	tests := []struct {
		grid int
		want uint32
	}{
		{1, 1},
		{63, 1},
		{64, 1},
		{65, 2},
		{1000, 16},
	}
	for _, tt := range tests {
		if got := workgroups(tt.grid, 64); got != tt.want {
			t.Errorf("workgroups(%d, 64) = %d, want %d", tt.grid, got, tt.want)
		}
	}
}

func TestBindGroupLayoutEntries(t *testing.T) {
	k, ok := kernels.Lookup("add_arrays")
	if !ok {
		t.Fatal("add_arrays missing from catalogue")
	}
	entries := bindGroupLayoutEntries(k)
	want := []wgpu.BufferBindingType{
		wgpu.BufferBindingTypeReadOnlyStorage,
		wgpu.BufferBindingTypeReadOnlyStorage,
		wgpu.BufferBindingTypeUniform,
		wgpu.BufferBindingTypeStorage,
	}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.Binding != uint32(i) {
			t.Errorf("entry %d has binding %d", i, e.Binding)
		}
		if e.Visibility != wgpu.ShaderStageCompute {
			t.Errorf("entry %d isn't visible to compute", i)
		}
		if e.Buffer == nil || e.Buffer.Type != want[i] {
			t.Errorf("entry %d has the wrong buffer type", i)
		}
	}
}

func TestLibrary(t *testing.T) {
	var lib library
	for _, k := range kernels.All() {
		fn, ok := lib.Function(k.Name)
		if ok != k.HasWGSL() {
			t.Errorf("%s: available = %t, has WGSL = %t", k.Name, ok, k.HasWGSL())
		}
		if ok && fn.Name() != k.Name {
			t.Errorf("%s: function is named %q", k.Name, fn.Name())
		}
	}
	if _, ok := lib.Function("nope"); ok {
		t.Error("found a kernel that doesn't exist")
	}
}

func TestNagaLimitation(t *testing.T) {
	if !isNagaLimitation(errors.New("spirv: atomics not yet implemented")) {
		t.Error("didn't recognize a missing naga feature")
	}
	if isNagaLimitation(errors.New("unknown identifier 'ds_add'")) {
		t.Error("treated a real error as a naga limitation")
	}
}

func TestNewRequiresDevice(t *testing.T) {
	if _, err := New(nil, nil, nil); err == nil {
		t.Error("New succeeded without a device")
	}
}

// Wait itself needs a real adapter to map buffers, so the polling loop is
// exercised directly with a fake device poll that completes the map after
// a few rounds of maintenance.
func TestAwaitMapPolls(t *testing.T) {
	ch := make(chan error, 1)
	polls := 0
	poll := func(wait bool) bool {
		if !wait {
			t.Errorf("poll called without waiting")
		}
		polls++
		if polls == 3 {
			ch <- nil
		}
		return polls >= 3
	}
	if err := awaitMap(poll, ch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if polls != 3 {
		t.Errorf("got %d polls, want 3", polls)
	}
}

func TestAwaitMapError(t *testing.T) {
	want := errors.New("map failed")
	ch := make(chan error, 1)
	ch <- want
	poll := func(bool) bool {
		t.Errorf("poll called for a completed map")
		return true
	}
	if err := awaitMap(poll, ch); !errors.Is(err, want) {
		t.Errorf("got %v, want %v", err, want)
	}
}
