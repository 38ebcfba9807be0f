package diffusion

import (
	"errors"
	"fmt"
)

// fakeBuffer is a host-side buffer that remembers its contents.
type fakeBuffer struct {
	label    string
	data     []float32
	block    ParameterBlock
	released bool
}

func (b *fakeBuffer) Label() string { return b.label }
func (b *fakeBuffer) Release()      { b.released = true }

// fakeBackend records every call an engine makes and performs no compute.
type fakeBackend struct {
	maxLen int

	fields        []*fakeBuffer
	params        *fakeBuffer
	paramWrites   []ParameterBlock
	fieldWrites   []string
	dispatches    []Binding
	dispatchSizes []int
	calls         []string

	failDispatch    error
	failWriteParams error
	failNewField    int // fail the n-th NewField call (1-based); 0 disables
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{maxLen: maxHostCells}
}

func (f *fakeBackend) Name() string      { return "fake" }
func (f *fakeBackend) MaxBufferLen() int { return f.maxLen }

func (f *fakeBackend) NewField(label string, init []float32) (Buffer, error) {
	if f.failNewField > 0 && len(f.fields)+1 == f.failNewField {
		return nil, ErrOutOfMemory
	}
	data := make([]float32, len(init))
	copy(data, init)
	b := &fakeBuffer{label: label, data: data}
	f.fields = append(f.fields, b)
	return b, nil
}

func (f *fakeBackend) NewParams(label string, block ParameterBlock) (Buffer, error) {
	f.params = &fakeBuffer{label: label, block: block}
	return f.params, nil
}

func (f *fakeBackend) WriteField(dst Buffer, values []float32) error {
	b := dst.(*fakeBuffer)
	copy(b.data, values)
	f.fieldWrites = append(f.fieldWrites, b.label)
	f.calls = append(f.calls, "write "+b.label)
	return nil
}

func (f *fakeBackend) WriteParams(dst Buffer, block ParameterBlock) error {
	if f.failWriteParams != nil {
		return f.failWriteParams
	}
	dst.(*fakeBuffer).block = block
	f.paramWrites = append(f.paramWrites, block)
	f.calls = append(f.calls, "params")
	return nil
}

func (f *fakeBackend) Dispatch(bind Binding, groups int) error {
	if f.failDispatch != nil {
		return f.failDispatch
	}
	f.dispatches = append(f.dispatches, bind)
	f.dispatchSizes = append(f.dispatchSizes, groups)
	f.calls = append(f.calls, "dispatch")
	return nil
}

func (f *fakeBackend) ReadField(src Buffer, dst []float32) error {
	b := src.(*fakeBuffer)
	if len(dst) != len(b.data) {
		return fmt.Errorf("size mismatch")
	}
	copy(dst, b.data)
	return nil
}

func (f *fakeBackend) Finish() error { return nil }
func (f *fakeBackend) Close()        {}

// field returns the buffer created with the given label.
func (f *fakeBackend) field(label string) *fakeBuffer {
	for _, b := range f.fields {
		if b.label == label {
			return b
		}
	}
	return nil
}

var errInjected = errors.New("injected failure")
