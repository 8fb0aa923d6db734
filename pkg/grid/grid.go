// Package grid computes non-overlapping (or boundedly overlapping) screen
// placements for a batch of equally sized windows. Planning is pure: the
// caller applies the resulting layout through the window control layer.
package grid

// Margin is the fixed border, in pixels, kept free on all four screen edges.
const Margin = 20

// Params describes one planning request.
type Params struct {
	// Count is the number of windows to place.
	Count int `yaml:"count"`
	// CellWidth and CellHeight are the target window dimensions.
	CellWidth  int `yaml:"cell_width"`
	CellHeight int `yaml:"cell_height"`
	// ScreenWidth and ScreenHeight are the full screen dimensions; the
	// usable area is the screen minus Margin on every side.
	ScreenWidth  int `yaml:"screen_width"`
	ScreenHeight int `yaml:"screen_height"`
	// MaxOverlapPct is the largest acceptable overlap between adjacent
	// cells, as a percentage of the cell dimension (0 = edge to edge).
	MaxOverlapPct int `yaml:"max_overlap_pct"`
}

// Cell is the placement of one window, top-left corner in screen coordinates.
type Cell struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// Layout is a computed grid plan. Cells are in row-major window order:
// window i sits at row i/Cols, column i%Cols.
type Layout struct {
	Cols  int    `yaml:"cols"`
	Rows  int    `yaml:"rows"`
	StepX int    `yaml:"step_x"`
	StepY int    `yaml:"step_y"`
	Cells []Cell `yaml:"cells"`
}

// Plan packs p.Count windows into rows and columns inside the usable screen
// area. A two-row layout is preferred; when the width-constrained column
// maximum cannot accommodate it, columns are capped and rows grow instead.
// Horizontal and vertical steps never drop below the overlap budget unless
// compression is unavoidable to fit the available area.
func Plan(p Params) Layout {
	if p.Count <= 0 {
		return Layout{}
	}

	availW := p.ScreenWidth - 2*Margin
	availH := p.ScreenHeight - 2*Margin

	effectiveStep := overlapStep(p.CellWidth, p.MaxOverlapPct)

	maxCols := 1
	if availW >= p.CellWidth {
		maxCols = 1 + (availW-p.CellWidth)/effectiveStep
	}

	// Prefer two rows; fall back to the width-constrained maximum.
	desiredCols := ceilDiv(p.Count, 2)
	var cols, rows int
	if desiredCols <= maxCols {
		cols = desiredCols
		rows = 2
	} else {
		cols = maxCols
		rows = ceilDiv(p.Count, cols)
	}

	stepX, totalW := axisStep(cols, p.CellWidth, availW, effectiveStep)
	stepY, totalH := axisStep(rows, p.CellHeight, availH, overlapStep(p.CellHeight, p.MaxOverlapPct))

	xStart := Margin + positive(availW-totalW)/2
	yStart := Margin + positive(availH-totalH)/2

	cells := make([]Cell, p.Count)
	for i := range cells {
		row := i / cols
		col := i % cols
		cells[i] = Cell{
			X: xStart + col*stepX,
			Y: yStart + row*stepY,
		}
	}

	return Layout{
		Cols:  cols,
		Rows:  rows,
		StepX: stepX,
		StepY: stepY,
		Cells: cells,
	}
}

// overlapStep is the minimum advance between adjacent window origins that
// respects the overlap budget, clamped to at least one pixel.
func overlapStep(cell, maxOverlapPct int) int {
	step := cell * (100 - maxOverlapPct) / 100
	if step < 1 {
		step = 1
	}
	return step
}

// axisStep chooses the advance between window origins along one axis.
// Windows that fit edge to edge with slack are spread evenly across the
// available span, never tighter than the overlap step; otherwise they are
// compressed to the tightest step that still fits.
func axisStep(count, cell, avail, overlapStep int) (step, total int) {
	if count <= 1 {
		return 0, cell
	}

	minTotal := cell + (count-1)*overlapStep
	if minTotal <= avail {
		step = (avail - cell) / (count - 1)
		if step < overlapStep {
			step = overlapStep
		}
	} else {
		step = (avail - cell) / (count - 1)
		if step < 1 {
			step = 1
		}
	}

	return step, cell + (count-1)*step
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func positive(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
