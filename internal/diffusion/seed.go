package diffusion

// Seed returns the initial A and B concentrations for a width x height grid.
// B is present in a rectangle spanning the middle fifth of the linear index
// range and the middle fifth of the columns; everywhere else A is saturated.
// Grids narrower or shorter than five cells may have no seeded cells.
func Seed(width, height int) (a, b []float32) {
	if width <= 0 || height <= 0 {
		return nil, nil
	}
	size := width * height
	a = make([]float32, size)
	b = make([]float32, size)

	rowLo, rowHi := size*2/5, size*3/5
	colLo, colHi := width*2/5, width*3/5
	for i := 0; i < size; i++ {
		col := i % width
		if i > rowLo && i < rowHi && col > colLo && col < colHi {
			b[i] = 1
			continue
		}
		a[i] = 1
	}
	return a, b
}
