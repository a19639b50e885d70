package gpu

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/openfluke/neuralterrain/detector"
	"github.com/openfluke/neuralterrain/tensor"
	"github.com/openfluke/webgpu/wgpu"
)

// Backend runs tensor arithmetic on the shared WebGPU device.
//
// Results are read back into Tensor.Data so CPU consumers always see them.
// While the budget allows, the device copy of each result stays resident and
// is reused when the tensor feeds a later op; Release on the tensor frees it.
// Tensors produced here must not have Data mutated in place; call Evict first.
type Backend struct {
	ctx    *Context
	report *detector.Report
	budget uint64
	logger *slog.Logger

	mu       sync.Mutex
	kernels  map[int]*AxpbyKernel
	resident map[*tensor.Tensor]*wgpu.Buffer
	used     uint64
}

// BackendOption customises a Backend.
type BackendOption func(*Backend)

// WithBudget overrides the detector's memory budget, in bytes.
func WithBudget(bytes uint64) BackendOption {
	return func(b *Backend) { b.budget = bytes }
}

// WithLogger sets the backend's logger.
func WithLogger(l *slog.Logger) BackendOption {
	return func(b *Backend) { b.logger = l }
}

// NewBackend opens the GPU context and sizes the backend from the adapter
// report. It returns ErrNoGPU when no adapter is usable.
func NewBackend(opts ...BackendOption) (*Backend, error) {
	c, err := GetContext()
	if err != nil {
		return nil, err
	}
	rep := detector.FromAdapter(c.Adapter)
	b := &Backend{
		ctx:      c,
		report:   rep,
		budget:   rep.Recommended.BudgetBytes,
		logger:   slog.Default(),
		kernels:  make(map[int]*AxpbyKernel),
		resident: make(map[*tensor.Tensor]*wgpu.Buffer),
	}
	for _, o := range opts {
		o(b)
	}
	b.logger.Info("gpu backend ready",
		"adapter", rep.Name,
		"backend", rep.Backend,
		"budget_mb", b.budget>>20,
		"workgroup", rep.Recommended.WorkgroupX)
	return b, nil
}

// Name returns "webgpu".
func (b *Backend) Name() string { return "webgpu" }

// Report returns the adapter report the backend was sized from.
func (b *Backend) Report() *detector.Report { return b.report }

// ResidentBytes returns the device memory held by live result tensors.
func (b *Backend) ResidentBytes() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}

// Scale multiplies all elements by a scalar: result = t * k
func (b *Backend) Scale(t *tensor.Tensor, k float32) (*tensor.Tensor, error) {
	return b.AddScaled(t, k, t, 0)
}

// Add performs element-wise addition: result = a + other
func (b *Backend) Add(a, other *tensor.Tensor) (*tensor.Tensor, error) {
	return b.AddScaled(a, 1, other, 1)
}

// AddScaled computes result = a*ka + other*kb on the device.
func (b *Backend) AddScaled(a *tensor.Tensor, ka float32, other *tensor.Tensor, kb float32) (*tensor.Tensor, error) {
	if a == nil || other == nil || a.Released() || other.Released() {
		return nil, tensor.ErrReleased
	}
	if !a.Shape.Equal(other.Shape) {
		return nil, fmt.Errorf("%w: %v vs %v", tensor.ErrShapeMismatch, a.Shape, other.Shape)
	}
	n := a.Shape.Len()
	bytes := uint64(n * 4)
	if max := b.report.Recommended.MaxElements; max != 0 && uint64(n) > max {
		return nil, fmt.Errorf("%w: %d elements exceeds binding limit %d", ErrBudgetExceeded, n, max)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Working set: output plus any operand not already resident.
	need := bytes
	if b.resident[a] == nil {
		need += bytes
	}
	if other != a && b.resident[other] == nil {
		need += bytes
	}
	if need > b.budget {
		return nil, fmt.Errorf("%w: op needs %d bytes, budget %d", ErrBudgetExceeded, need, b.budget)
	}

	kernel, err := b.kernel(n)
	if err != nil {
		return nil, err
	}

	var temps []*wgpu.Buffer
	defer func() {
		for _, t := range temps {
			FreeBuffer(t)
		}
	}()
	bufA, err := b.operand(a, &temps)
	if err != nil {
		return nil, err
	}
	bufB := bufA
	if other != a {
		if bufB, err = b.operand(other, &temps); err != nil {
			return nil, err
		}
	}
	coeff, err := NewFloatBuffer([]float32{ka, kb}, wgpu.BufferUsageStorage)
	if err != nil {
		return nil, err
	}
	temps = append(temps, coeff)

	out, err := NewStorageBuffer("Axpby_Out", n)
	if err != nil {
		return nil, err
	}
	if err := kernel.Run(b.ctx, bufA, bufB, coeff, out); err != nil {
		FreeBuffer(out)
		return nil, err
	}
	data, err := ReadBuffer(out, n)
	if err != nil {
		FreeBuffer(out)
		return nil, err
	}

	result, err := tensor.FromSlice(a.Shape.Width, a.Shape.Height, a.Shape.Channels, data)
	if err != nil {
		FreeBuffer(out)
		return nil, err
	}
	if b.used+bytes > b.budget {
		// Over budget: keep the host copy only.
		FreeBuffer(out)
		return result, nil
	}
	b.pin(result, out, bytes)
	return result, nil
}

// Evict drops the device copy of t, if any. The host copy is untouched.
func (b *Backend) Evict(t *tensor.Tensor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unpin(t)
}

// Close frees every compiled kernel. Resident buffers stay owned by their
// tensors.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for n, k := range b.kernels {
		k.Cleanup()
		delete(b.kernels, n)
	}
}

func (b *Backend) kernel(n int) (*AxpbyKernel, error) {
	if k, ok := b.kernels[n]; ok {
		return k, nil
	}
	k := &AxpbyKernel{Spec: AxpbySpec{Size: n, WorkgroupX: b.report.Recommended.WorkgroupX}}
	if err := k.Compile(b.ctx, fmt.Sprintf("Axpby_%d", n)); err != nil {
		return nil, fmt.Errorf("compile axpby(%d): %w", n, err)
	}
	b.kernels[n] = k
	return k, nil
}

// operand returns the device buffer for t, uploading it when it is not
// resident. Uploaded buffers are appended to temps for the caller to free.
func (b *Backend) operand(t *tensor.Tensor, temps *[]*wgpu.Buffer) (*wgpu.Buffer, error) {
	if buf := b.resident[t]; buf != nil {
		return buf, nil
	}
	buf, err := NewFloatBuffer(t.Data, storageUsage)
	if err != nil {
		return nil, err
	}
	*temps = append(*temps, buf)
	return buf, nil
}

func (b *Backend) pin(t *tensor.Tensor, buf *wgpu.Buffer, bytes uint64) {
	b.resident[t] = buf
	b.used += bytes
	t.OnRelease(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.unpin(t)
	})
}

func (b *Backend) unpin(t *tensor.Tensor) {
	buf, ok := b.resident[t]
	if !ok {
		return
	}
	delete(b.resident, t)
	b.used -= buf.GetSize()
	FreeBuffer(buf)
}
