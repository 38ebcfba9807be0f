package diffusion

import (
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// maxHostCells caps CPU fields at 4 GiB per buffer.
const maxHostCells = 1 << 30

var errForeignBuffer = errors.New("buffer was not created by this backend")

// hostBuffer is a field stored in host memory.
type hostBuffer struct {
	label string
	data  []float32
}

func (b *hostBuffer) Label() string { return b.label }
func (b *hostBuffer) Release()      { b.data = nil }

// hostParams holds the flushed parameter block as the kernel sees it.
type hostParams struct {
	label string
	block ParameterBlock
}

func (p *hostParams) Label() string { return p.label }
func (p *hostParams) Release()      {}

// groupSpan is a contiguous run of work groups [start, end) handled by one worker.
type groupSpan struct{ start, end int }

// CPUBackend runs the kernel on the host, fanning each dispatch out across
// worker goroutines.
type CPUBackend struct {
	workers int
}

// NewCPUBackend returns a backend using the given number of workers; values
// below one select GOMAXPROCS.
func NewCPUBackend(workers int) *CPUBackend {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &CPUBackend{workers: workers}
}

func (c *CPUBackend) Name() string {
	return fmt.Sprintf("cpu (%d workers)", c.workers)
}

func (c *CPUBackend) MaxBufferLen() int { return maxHostCells }

// Workers returns the number of goroutines a dispatch fans out to.
func (c *CPUBackend) Workers() int { return c.workers }

func (c *CPUBackend) NewField(label string, init []float32) (Buffer, error) {
	data := make([]float32, len(init))
	copy(data, init)
	return &hostBuffer{label: label, data: data}, nil
}

func (c *CPUBackend) NewParams(label string, block ParameterBlock) (Buffer, error) {
	return &hostParams{label: label, block: block}, nil
}

func (c *CPUBackend) WriteField(dst Buffer, values []float32) error {
	buf, ok := dst.(*hostBuffer)
	if !ok {
		return fmt.Errorf("writing %s: %w", dst.Label(), errForeignBuffer)
	}
	if len(values) != len(buf.data) {
		return fmt.Errorf("writing %s: %d values into buffer of %d", buf.label, len(values), len(buf.data))
	}
	copy(buf.data, values)
	return nil
}

func (c *CPUBackend) WriteParams(dst Buffer, block ParameterBlock) error {
	p, ok := dst.(*hostParams)
	if !ok {
		return fmt.Errorf("writing %s: %w", dst.Label(), errForeignBuffer)
	}
	p.block = block
	return nil
}

func (c *CPUBackend) ReadField(src Buffer, dst []float32) error {
	buf, ok := src.(*hostBuffer)
	if !ok {
		return fmt.Errorf("reading %s: %w", src.Label(), errForeignBuffer)
	}
	if len(dst) != len(buf.data) {
		return fmt.Errorf("reading %s: %d values into buffer of %d", buf.label, len(buf.data), len(dst))
	}
	copy(dst, buf.data)
	return nil
}

// Dispatch runs the kernel over groups work groups and returns once every
// worker has finished.
func (c *CPUBackend) Dispatch(bind Binding, groups int) error {
	p, ok := bind.Params.(*hostParams)
	if !ok {
		return fmt.Errorf("binding params: %w", errForeignBuffer)
	}
	var fields [4]*hostBuffer
	for i, b := range [...]Buffer{bind.AIn, bind.BIn, bind.AOut, bind.BOut} {
		hb, ok := b.(*hostBuffer)
		if !ok {
			return fmt.Errorf("binding %s: %w", b.Label(), errForeignBuffer)
		}
		if len(hb.data) < int(p.block.Size) {
			return fmt.Errorf("binding %s: holds %d values, kernel expects %d", hb.label, len(hb.data), p.block.Size)
		}
		fields[i] = hb
	}

	block := p.block
	size := int(block.Size)
	var eg errgroup.Group
	for _, sp := range partitionGroups(groups, c.workers) {
		start := sp.start * GroupSize
		end := min(sp.end*GroupSize, size)
		if start >= end {
			continue
		}
		eg.Go(func() error {
			stepCells(&block, fields[0].data, fields[1].data, fields[2].data, fields[3].data, start, end)
			return nil
		})
	}
	return eg.Wait()
}

// Finish is a no-op: Dispatch already waits for its workers.
func (c *CPUBackend) Finish() error { return nil }

func (c *CPUBackend) Close() {}

// partitionGroups splits groups into at most workers contiguous spans of
// near-equal length.
func partitionGroups(groups, workers int) []groupSpan {
	if groups <= 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > groups {
		workers = groups
	}
	spans := make([]groupSpan, 0, workers)
	per, extra := groups/workers, groups%workers
	start := 0
	for i := 0; i < workers; i++ {
		n := per
		if i < extra {
			n++
		}
		spans = append(spans, groupSpan{start: start, end: start + n})
		start += n
	}
	return spans
}

// stepCells applies one Gray-Scott update to cells [start, end) on a
// toroidal grid, reading the in fields and writing the out fields.
func stepCells(p *ParameterBlock, aIn, bIn, aOut, bOut []float32, start, end int) {
	w := int(p.Width)
	h := int(p.Height)
	da, db := p.DiffusionA, p.DiffusionB
	feed, kill, dt := p.Feed, p.Kill, p.Timestep
	for idx := start; idx < end; idx++ {
		x := idx % w
		y := idx / w
		xl, xr := x-1, x+1
		if xl < 0 {
			xl = w - 1
		}
		if xr == w {
			xr = 0
		}
		up, down := y-1, y+1
		if up < 0 {
			up = h - 1
		}
		if down == h {
			down = 0
		}
		mid := y * w
		up *= w
		down *= w

		a := aIn[idx]
		b := bIn[idx]
		lapA := -a +
			0.2*(aIn[mid+xl]+aIn[mid+xr]+aIn[up+x]+aIn[down+x]) +
			0.05*(aIn[up+xl]+aIn[up+xr]+aIn[down+xl]+aIn[down+xr])
		lapB := -b +
			0.2*(bIn[mid+xl]+bIn[mid+xr]+bIn[up+x]+bIn[down+x]) +
			0.05*(bIn[up+xl]+bIn[up+xr]+bIn[down+xl]+bIn[down+xr])

		r := a * b * b
		aOut[idx] = clamp01(a + (da*lapA-r+feed*(1-a))*dt)
		bOut[idx] = clamp01(b + (db*lapB+r-(kill+feed)*b)*dt)
	}
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
