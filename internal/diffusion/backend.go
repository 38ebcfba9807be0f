// Package diffusion owns the Gray-Scott simulation state: two ping-ponged
// concentration fields on a compute backend, the kernel parameter block and
// the per-step dispatch bookkeeping.
package diffusion

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"RDS/internal/config"
)

// GroupSize is the number of cells handled by one kernel work group.
const GroupSize = 64

var (
	// ErrInvalidConfig marks configuration errors; no engine is created.
	ErrInvalidConfig = config.ErrInvalid
	// ErrDeviceLost marks a lost execution context. It is fatal.
	ErrDeviceLost = errors.New("compute device lost")
	// ErrOutOfMemory marks a device or host allocation failure. It is fatal.
	ErrOutOfMemory = errors.New("compute device out of memory")
)

// Buffer is a device-resident allocation created by a Backend.
type Buffer interface {
	Label() string
	Release()
}

// Binding selects the buffers one dispatch reads and writes.
type Binding struct {
	Params Buffer
	AIn    Buffer
	BIn    Buffer
	AOut   Buffer
	BOut   Buffer
}

// check rejects bindings whose read and write roles alias.
func (b Binding) check() error {
	ins := [...]Buffer{b.AIn, b.BIn}
	outs := [...]Buffer{b.AOut, b.BOut}
	for _, in := range ins {
		for _, out := range outs {
			if in == out {
				return fmt.Errorf("binding reads and writes %s in one dispatch", in.Label())
			}
		}
	}
	if b.AOut == b.BOut {
		return fmt.Errorf("binding writes both fields to %s", b.AOut.Label())
	}
	return nil
}

// Backend executes the reaction-diffusion kernel on a compute device.
// Implementations are used from a single goroutine.
type Backend interface {
	// Name identifies the backend and device for logs.
	Name() string
	// MaxBufferLen is the largest field, in float32 elements, the device can hold.
	MaxBufferLen() int
	NewField(label string, init []float32) (Buffer, error)
	NewParams(label string, block ParameterBlock) (Buffer, error)
	WriteField(dst Buffer, values []float32) error
	WriteParams(dst Buffer, block ParameterBlock) error
	// Dispatch runs one kernel invocation over groups work groups.
	Dispatch(bind Binding, groups int) error
	// ReadField copies a field into dst once all prior work has retired.
	ReadField(src Buffer, dst []float32) error
	// Finish blocks until all enqueued work has retired.
	Finish() error
	Close()
}

// OpenCLOptions configures NewOpenCLBackend.
type OpenCLOptions struct {
	// Verify reads back every field upload and compares it to the host copy.
	Verify bool
	Logger *log.Logger
}

// groupCount returns ceil(size / GroupSize).
func groupCount(size int) int {
	return (size + GroupSize - 1) / GroupSize
}
