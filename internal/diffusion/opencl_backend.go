//go:build opencl

package diffusion

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unsafe"

	"github.com/charmbracelet/log"
	"github.com/jgillich/go-opencl/cl"
)

const verifyTolerance = 1e-6

const grayScottKernelSource = `typedef struct {
    uint width;
    uint height;
    uint size;
    float timestep;
    float diffusion_a;
    float diffusion_b;
    float feed;
    float kill;
} params_t;

float laplacian(__global const float* f, uint w, uint xl, uint x, uint xr, uint up, uint mid, uint down)
{
    return -f[mid + x]
        + 0.2f * (f[mid + xl] + f[mid + xr] + f[up + x] + f[down + x])
        + 0.05f * (f[up + xl] + f[up + xr] + f[down + xl] + f[down + xr]);
}

__kernel void gray_scott_step(
    __constant params_t* p,
    __global const float* a_in,
    __global const float* b_in,
    __global float* a_out,
    __global float* b_out)
{
    uint idx = get_global_id(0);
    if (idx >= p->size) {
        return;
    }
    uint w = p->width;
    uint h = p->height;
    uint x = idx % w;
    uint y = idx / w;
    uint xl = (x + w - 1) % w;
    uint xr = (x + 1) % w;
    uint up = ((y + h - 1) % h) * w;
    uint mid = y * w;
    uint down = ((y + 1) % h) * w;

    float a = a_in[idx];
    float b = b_in[idx];
    float lap_a = laplacian(a_in, w, xl, x, xr, up, mid, down);
    float lap_b = laplacian(b_in, w, xl, x, xr, up, mid, down);
    float r = a * b * b;
    a_out[idx] = clamp(a + (p->diffusion_a * lap_a - r + p->feed * (1.0f - a)) * p->timestep, 0.0f, 1.0f);
    b_out[idx] = clamp(b + (p->diffusion_b * lap_b + r - (p->kill + p->feed) * b) * p->timestep, 0.0f, 1.0f);
}`

// clBuffer is a device allocation holding n float32 values or one parameter block.
type clBuffer struct {
	label string
	mem   *cl.MemObject
	n     int
}

func (b *clBuffer) Label() string { return b.label }

func (b *clBuffer) Release() {
	if b.mem != nil {
		b.mem.Release()
		b.mem = nil
	}
}

// OpenCLBackend dispatches the kernel on an OpenCL device through one
// in-order command queue.
type OpenCLBackend struct {
	context    *cl.Context
	queue      *cl.CommandQueue
	program    *cl.Program
	kernel     *cl.Kernel
	deviceName string
	maxAlloc   int64
	bound      Binding
	verify     bool
	scratch    []float32
	logger     *log.Logger
}

// NewOpenCLBackend picks the first GPU device, falling back to a CPU device,
// and builds the kernel program for it.
func NewOpenCLBackend(opts OpenCLOptions) (*OpenCLBackend, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		msg := "querying OpenCL platforms"
		if strings.Contains(err.Error(), "-1001") {
			msg += ": no ICD loader reported any platforms; install OpenCL drivers and verify with `clinfo`"
		}
		return nil, fmt.Errorf("%s: %w", msg, err)
	}
	if len(platforms) == 0 {
		return nil, errors.New("no OpenCL platforms available; ensure a vendor driver is installed and detected by `clinfo`")
	}
	device := firstDevice(platforms, cl.DeviceTypeGPU)
	if device == nil {
		device = firstDevice(platforms, cl.DeviceTypeCPU)
	}
	if device == nil {
		return nil, errors.New("no suitable OpenCL devices found")
	}

	context, err := cl.CreateContext([]*cl.Device{device})
	if err != nil {
		return nil, fmt.Errorf("creating OpenCL context: %w", mapCLError(err))
	}
	queue, err := context.CreateCommandQueue(device, 0)
	if err != nil {
		context.Release()
		return nil, fmt.Errorf("creating OpenCL command queue: %w", mapCLError(err))
	}
	program, err := context.CreateProgramWithSource([]string{grayScottKernelSource})
	if err != nil {
		queue.Release()
		context.Release()
		return nil, fmt.Errorf("creating OpenCL program: %w", mapCLError(err))
	}
	if err := program.BuildProgram([]*cl.Device{device}, ""); err != nil {
		program.Release()
		queue.Release()
		context.Release()
		if buildErr, ok := err.(cl.BuildError); ok {
			return nil, fmt.Errorf("building OpenCL program: %s", string(buildErr))
		}
		return nil, fmt.Errorf("building OpenCL program: %w", err)
	}
	kernel, err := program.CreateKernel("gray_scott_step")
	if err != nil {
		program.Release()
		queue.Release()
		context.Release()
		return nil, fmt.Errorf("creating OpenCL kernel: %w", mapCLError(err))
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &OpenCLBackend{
		context:    context,
		queue:      queue,
		program:    program,
		kernel:     kernel,
		deviceName: device.Name(),
		maxAlloc:   device.MaxMemAllocSize(),
		verify:     opts.Verify,
		logger:     logger,
	}, nil
}

func firstDevice(platforms []*cl.Platform, kind cl.DeviceType) *cl.Device {
	for _, p := range platforms {
		devices, err := p.GetDevices(kind)
		if err != nil && err != cl.ErrDeviceNotFound {
			continue
		}
		if len(devices) > 0 {
			return devices[0]
		}
	}
	return nil
}

// mapCLError folds OpenCL status codes into the package's fatal error kinds.
func mapCLError(err error) error {
	switch err {
	case nil:
		return nil
	case cl.ErrMemObjectAllocationFailure, cl.ErrOutOfResources, cl.ErrOutOfHostMemory:
		return fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	case cl.ErrInvalidContext, cl.ErrInvalidCommandQueue, cl.ErrDeviceNotAvailable:
		return fmt.Errorf("%w: %v", ErrDeviceLost, err)
	}
	return err
}

func (o *OpenCLBackend) Name() string { return "opencl (" + o.deviceName + ")" }

func (o *OpenCLBackend) MaxBufferLen() int {
	n := o.maxAlloc / int64(unsafe.Sizeof(float32(0)))
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

func (o *OpenCLBackend) NewField(label string, init []float32) (Buffer, error) {
	byteSize := len(init) * int(unsafe.Sizeof(float32(0)))
	mem, err := o.context.CreateEmptyBuffer(cl.MemReadWrite, byteSize)
	if err != nil {
		return nil, fmt.Errorf("allocating %s: %w", label, mapCLError(err))
	}
	buf := &clBuffer{label: label, mem: mem, n: len(init)}
	if err := o.WriteField(buf, init); err != nil {
		buf.Release()
		return nil, err
	}
	return buf, nil
}

func (o *OpenCLBackend) NewParams(label string, block ParameterBlock) (Buffer, error) {
	mem, err := o.context.CreateEmptyBuffer(cl.MemReadOnly, ParameterBlockSize)
	if err != nil {
		return nil, fmt.Errorf("allocating %s: %w", label, mapCLError(err))
	}
	buf := &clBuffer{label: label, mem: mem, n: 1}
	if err := o.WriteParams(buf, block); err != nil {
		buf.Release()
		return nil, err
	}
	return buf, nil
}

func (o *OpenCLBackend) buffer(b Buffer) (*clBuffer, error) {
	cb, ok := b.(*clBuffer)
	if !ok || cb.mem == nil {
		return nil, fmt.Errorf("%s is not a live OpenCL buffer", b.Label())
	}
	return cb, nil
}

// WriteField uploads values with a blocking write so the host slice is free
// for reuse as soon as it returns.
func (o *OpenCLBackend) WriteField(dst Buffer, values []float32) error {
	buf, err := o.buffer(dst)
	if err != nil {
		return err
	}
	if len(values) != buf.n {
		return fmt.Errorf("writing %s: %d values into buffer of %d", buf.label, len(values), buf.n)
	}
	if _, err := o.queue.EnqueueWriteBufferFloat32(buf.mem, true, 0, values, nil); err != nil {
		return fmt.Errorf("writing %s: %w", buf.label, mapCLError(err))
	}
	if o.verify {
		return o.verifyBufferMatchesSlice(buf, values)
	}
	return nil
}

func (o *OpenCLBackend) WriteParams(dst Buffer, block ParameterBlock) error {
	buf, err := o.buffer(dst)
	if err != nil {
		return err
	}
	data, err := block.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := o.queue.EnqueueWriteBuffer(buf.mem, true, 0, len(data), unsafe.Pointer(&data[0]), nil); err != nil {
		return fmt.Errorf("writing %s: %w", buf.label, mapCLError(err))
	}
	return nil
}

// bind sets kernel arguments for the buffers that differ from the last dispatch.
func (o *OpenCLBackend) bind(b Binding) error {
	args := [...]struct {
		cur, next Buffer
	}{
		{o.bound.Params, b.Params},
		{o.bound.AIn, b.AIn},
		{o.bound.BIn, b.BIn},
		{o.bound.AOut, b.AOut},
		{o.bound.BOut, b.BOut},
	}
	for i, arg := range args {
		if arg.cur == arg.next {
			continue
		}
		buf, err := o.buffer(arg.next)
		if err != nil {
			return err
		}
		if err := o.kernel.SetArgBuffer(i, buf.mem); err != nil {
			return fmt.Errorf("setting kernel argument %d to %s: %w", i, buf.label, mapCLError(err))
		}
	}
	o.bound = b
	return nil
}

func (o *OpenCLBackend) Dispatch(b Binding, groups int) error {
	if err := o.bind(b); err != nil {
		o.bound = Binding{}
		return fmt.Errorf("binding buffers: %w", err)
	}
	global := []int{groups * GroupSize}
	local := []int{GroupSize}
	if _, err := o.queue.EnqueueNDRangeKernel(o.kernel, nil, global, local, nil); err != nil {
		return fmt.Errorf("enqueueing kernel: %w", mapCLError(err))
	}
	return nil
}

func (o *OpenCLBackend) ReadField(src Buffer, dst []float32) error {
	buf, err := o.buffer(src)
	if err != nil {
		return err
	}
	if len(dst) != buf.n {
		return fmt.Errorf("reading %s: %d values into buffer of %d", buf.label, buf.n, len(dst))
	}
	if _, err := o.queue.EnqueueReadBufferFloat32(buf.mem, true, 0, dst, nil); err != nil {
		return fmt.Errorf("reading %s: %w", buf.label, mapCLError(err))
	}
	return nil
}

func (o *OpenCLBackend) Finish() error {
	if err := o.queue.Finish(); err != nil {
		return fmt.Errorf("waiting for queue: %w", mapCLError(err))
	}
	return nil
}

func (o *OpenCLBackend) ensureScratch(size int) []float32 {
	if cap(o.scratch) < size {
		o.scratch = make([]float32, size)
	}
	o.scratch = o.scratch[:size]
	return o.scratch
}

func (o *OpenCLBackend) verifyBufferMatchesSlice(buf *clBuffer, host []float32) error {
	if len(host) == 0 {
		return nil
	}
	scratch := o.ensureScratch(len(host))
	if _, err := o.queue.EnqueueReadBufferFloat32(buf.mem, true, 0, scratch, nil); err != nil {
		return fmt.Errorf("reading %s for verification: %w", buf.label, mapCLError(err))
	}
	for i, hv := range host {
		if diff := math.Abs(float64(scratch[i] - hv)); diff > verifyTolerance {
			return fmt.Errorf("%s mismatch at index %d: device=%f host=%f diff=%f", buf.label, i, scratch[i], hv, diff)
		}
	}
	o.logger.Debug("verified upload", "buffer", buf.label, "values", len(host))
	return nil
}

func (o *OpenCLBackend) Close() {
	if o.kernel != nil {
		o.kernel.Release()
		o.kernel = nil
	}
	if o.program != nil {
		o.program.Release()
		o.program = nil
	}
	if o.queue != nil {
		o.queue.Release()
		o.queue = nil
	}
	if o.context != nil {
		o.context.Release()
		o.context = nil
	}
	o.bound = Binding{}
}

// DeviceName returns the OpenCL device name.
func (o *OpenCLBackend) DeviceName() string {
	return o.deviceName
}
