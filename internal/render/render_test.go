package render

import (
	"image/color"
	"math"
	"testing"
)

func TestPaletteEndpoints(t *testing.T) {
	black := color.RGBA{0, 0, 0, 255}
	white := color.RGBA{255, 255, 255, 255}
	p, err := NewPalette(Stop{1, white}, Stop{0, black})
	if err != nil {
		t.Fatal(err)
	}
	if p.At(0) != black || p.At(1) != white {
		t.Fatalf("endpoints = %v, %v", p.At(0), p.At(1))
	}
	if p.At(-3) != black || p.At(7) != white {
		t.Fatal("out of range values not clamped")
	}
	if mid := p.At(0.5); mid.R < 126 || mid.R > 129 {
		t.Fatalf("midpoint = %v", mid)
	}
	if p.At(float32(math.NaN())) != black {
		t.Fatal("NaN should map to the first entry")
	}
}

func TestPaletteNeedsStops(t *testing.T) {
	if _, err := NewPalette(); err == nil {
		t.Fatal("empty palette accepted")
	}
}

func TestFillRGBA(t *testing.T) {
	p := Default()
	a := []float32{1, 0, 0.5}
	b := []float32{0, 1, 0.5}
	dst := make([]byte, 12)
	if err := FillRGBA(dst, a, b, p); err != nil {
		t.Fatal(err)
	}
	// a-b = 1 is saturated A, a-b <= 0 is the pattern core.
	if got := (color.RGBA{dst[0], dst[1], dst[2], dst[3]}); got != p.At(1) {
		t.Fatalf("pixel 0 = %v, want %v", got, p.At(1))
	}
	if got := (color.RGBA{dst[4], dst[5], dst[6], dst[7]}); got != p.At(0) {
		t.Fatalf("pixel 1 = %v, want %v", got, p.At(0))
	}
	for i := 3; i < len(dst); i += 4 {
		if dst[i] != 255 {
			t.Fatalf("alpha at %d = %d", i, dst[i])
		}
	}

	if err := FillRGBA(make([]byte, 8), a, b, p); err == nil {
		t.Fatal("short pixel buffer accepted")
	}
	if err := FillRGBA(dst, a, b[:2], p); err == nil {
		t.Fatal("mismatched fields accepted")
	}
}
