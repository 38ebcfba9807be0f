//go:build !opencl

package diffusion

import "errors"

var errOpenCLDisabled = errors.New("OpenCL support is not enabled; rebuild with -tags opencl")

// OpenCLBackend is unavailable in builds without the opencl tag.
type OpenCLBackend struct{}

func NewOpenCLBackend(OpenCLOptions) (*OpenCLBackend, error) {
	return nil, errOpenCLDisabled
}

func (o *OpenCLBackend) Name() string      { return "opencl (disabled)" }
func (o *OpenCLBackend) MaxBufferLen() int { return 0 }

func (o *OpenCLBackend) NewField(string, []float32) (Buffer, error) {
	return nil, errOpenCLDisabled
}

func (o *OpenCLBackend) NewParams(string, ParameterBlock) (Buffer, error) {
	return nil, errOpenCLDisabled
}

func (o *OpenCLBackend) WriteField(Buffer, []float32) error       { return errOpenCLDisabled }
func (o *OpenCLBackend) WriteParams(Buffer, ParameterBlock) error { return errOpenCLDisabled }
func (o *OpenCLBackend) Dispatch(Binding, int) error              { return errOpenCLDisabled }
func (o *OpenCLBackend) ReadField(Buffer, []float32) error        { return errOpenCLDisabled }
func (o *OpenCLBackend) Finish() error                            { return errOpenCLDisabled }
func (o *OpenCLBackend) Close()                                   {}

func (o *OpenCLBackend) DeviceName() string { return "" }
