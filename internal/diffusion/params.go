package diffusion

import (
	"encoding/binary"
	"fmt"
	"math"

	"RDS/internal/config"
)

// ParameterBlockSize is the encoded size of a ParameterBlock in bytes.
const ParameterBlockSize = 8 * 4

// ParameterBlock mirrors the kernel's runtime parameters. The field order is
// the wire order the kernel addresses positionally.
type ParameterBlock struct {
	Width      uint32
	Height     uint32
	Size       uint32
	Timestep   float32
	DiffusionA float32
	DiffusionB float32
	Feed       float32
	Kill       float32
}

// NewParameterBlock derives the block from a configuration.
func NewParameterBlock(cfg config.Config) ParameterBlock {
	return ParameterBlock{
		Width:      cfg.Width,
		Height:     cfg.Height,
		Size:       cfg.Width * cfg.Height,
		Timestep:   cfg.Timestep,
		DiffusionA: cfg.DiffusionA,
		DiffusionB: cfg.DiffusionB,
		Feed:       cfg.Feed,
		Kill:       cfg.Kill,
	}
}

// MarshalBinary encodes the block little endian in wire order.
func (p ParameterBlock) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, ParameterBlockSize)
	buf = binary.LittleEndian.AppendUint32(buf, p.Width)
	buf = binary.LittleEndian.AppendUint32(buf, p.Height)
	buf = binary.LittleEndian.AppendUint32(buf, p.Size)
	for _, f := range [...]float32{p.Timestep, p.DiffusionA, p.DiffusionB, p.Feed, p.Kill} {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	return buf, nil
}

// UnmarshalBinary decodes a block produced by MarshalBinary.
func (p *ParameterBlock) UnmarshalBinary(data []byte) error {
	if len(data) != ParameterBlockSize {
		return fmt.Errorf("parameter block: want %d bytes, got %d", ParameterBlockSize, len(data))
	}
	word := func(i int) uint32 { return binary.LittleEndian.Uint32(data[i*4:]) }
	p.Width = word(0)
	p.Height = word(1)
	p.Size = word(2)
	p.Timestep = math.Float32frombits(word(3))
	p.DiffusionA = math.Float32frombits(word(4))
	p.DiffusionB = math.Float32frombits(word(5))
	p.Feed = math.Float32frombits(word(6))
	p.Kill = math.Float32frombits(word(7))
	return nil
}
