// Package render turns concentration fields into RGBA pixels.
package render

import (
	"fmt"
	"image/color"
	"sort"
)

// Stop is one colour stop of a gradient, at Pos in [0,1].
type Stop struct {
	Pos   float32
	Color color.RGBA
}

// Palette is a gradient resolved into a 256-entry lookup table.
type Palette struct {
	lut [256]color.RGBA
}

// NewPalette builds a palette from at least one stop. Stops are sorted by
// position; values before the first or after the last take its colour.
func NewPalette(stops ...Stop) (*Palette, error) {
	if len(stops) == 0 {
		return nil, fmt.Errorf("palette needs at least one stop")
	}
	s := append([]Stop(nil), stops...)
	sort.Slice(s, func(i, j int) bool { return s[i].Pos < s[j].Pos })

	p := &Palette{}
	j := 0
	for i := range p.lut {
		t := float32(i) / 255
		for j < len(s)-1 && s[j+1].Pos <= t {
			j++
		}
		switch {
		case t <= s[0].Pos:
			p.lut[i] = s[0].Color
		case j == len(s)-1:
			p.lut[i] = s[j].Color
		default:
			lo, hi := s[j], s[j+1]
			p.lut[i] = lerp(lo.Color, hi.Color, (t-lo.Pos)/(hi.Pos-lo.Pos))
		}
	}
	return p, nil
}

// Default returns the palette the viewer starts with: saturated A renders
// black and the B-rich pattern renders warm to white.
func Default() *Palette {
	p, _ := NewPalette(
		Stop{0.0, color.RGBA{255, 255, 255, 255}},
		Stop{0.2, color.RGBA{255, 214, 92, 255}},
		Stop{0.45, color.RGBA{206, 64, 42, 255}},
		Stop{0.7, color.RGBA{48, 28, 96, 255}},
		Stop{1.0, color.RGBA{0, 0, 0, 255}},
	)
	return p
}

// At returns the colour for v, clamped to [0,1].
func (p *Palette) At(v float32) color.RGBA {
	return p.lut[index(v)]
}

// FillRGBA writes one pixel per cell into dst, colouring each cell by
// clamp(a-b). dst must hold 4*len(a) bytes.
func FillRGBA(dst []byte, a, b []float32, p *Palette) error {
	if len(a) != len(b) {
		return fmt.Errorf("field lengths differ: %d and %d", len(a), len(b))
	}
	if len(dst) != 4*len(a) {
		return fmt.Errorf("pixel buffer holds %d bytes, need %d", len(dst), 4*len(a))
	}
	for i := range a {
		c := p.lut[index(a[i]-b[i])]
		o := i * 4
		dst[o] = c.R
		dst[o+1] = c.G
		dst[o+2] = c.B
		dst[o+3] = c.A
	}
	return nil
}

func index(v float32) int {
	// NaN fails both comparisons and lands on zero.
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return int(v*255 + 0.5)
}

func lerp(a, b color.RGBA, t float32) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(float32(x) + (float32(y)-float32(x))*t + 0.5)
	}
	return color.RGBA{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), mix(a.A, b.A)}
}
