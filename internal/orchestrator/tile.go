package orchestrator

import (
	"math"

	"github.com/kan-bayashi/svt/internal/geom"
)

const (
	minGridDim = 2
	maxGridDim = 6
)

// gridSize picks a near-square tile grid for the given image area (in
// cells) and cell aspect ratio (cell pixel height:width, e.g. 2.0 means a
// cell is twice as tall as wide), clamped to [2,6] on each axis per the
// tile-mode grid sizing rule.
func gridSize(area geom.Rect, cellAspect float64) (cols, rows int) {
	if area.Width <= 0 || area.Height <= 0 {
		return minGridDim, minGridDim
	}
	if cellAspect <= 0 {
		cellAspect = 1
	}

	// Convert cell-space dimensions into a common "square pixel" unit so
	// the grid split accounts for cells not being square themselves.
	wUnits := float64(area.Width)
	hUnits := float64(area.Height) * cellAspect

	const targetTiles = 16.0
	ratio := wUnits / hUnits
	if ratio <= 0 {
		ratio = 1
	}

	c := math.Round(math.Sqrt(targetTiles * ratio))
	r := math.Round(targetTiles / c)

	cols = clampInt(int(c), minGridDim, maxGridDim)
	rows = clampInt(int(r), minGridDim, maxGridDim)
	return cols, rows
}

// MoveTileCursor moves the tile cursor by (dx, dy) cells within its
// current page, wrapping at the page edges, and reports whether the move
// crossed into a different page (the only case that invalidates the
// render — an intra-page cursor move is a cheap overlay redraw).
func (a *App) MoveTileCursor(dx, dy, cols, rows int) (pageChanged bool) {
	if len(a.Images) == 0 || cols <= 0 || rows <= 0 {
		return false
	}
	pageSize := cols * rows
	page := a.TileCursor / pageSize
	local := a.TileCursor % pageSize
	col := local % cols
	row := local / cols

	col = wrap(col+dx, cols)
	row = wrap(row+dy, rows)

	newIndex := page*pageSize + row*cols + col
	if newIndex >= len(a.Images) {
		newIndex = wrap(newIndex, len(a.Images))
	}

	a.TileCursor = newIndex
	pageChanged = newIndex/pageSize != page
	if pageChanged {
		a.invalidateRender()
	}
	return pageChanged
}

// MoveTilePage moves the tile cursor a whole page forward/backward,
// clamped to the valid page range, snapping the cursor to the first tile
// of the destination page.
func (a *App) MoveTilePage(delta, cols, rows int) {
	if len(a.Images) == 0 || cols <= 0 || rows <= 0 {
		return
	}
	pageSize := cols * rows
	totalPages := ceilDiv(len(a.Images), pageSize)
	if totalPages < 1 {
		totalPages = 1
	}
	page := a.TileCursor / pageSize
	newPage := clampInt(page+delta, 0, totalPages-1)
	if newPage == page {
		return
	}
	a.TileCursor = newPage * pageSize
	a.invalidateRender()
}

// CurrentGrid returns the tile grid dimensions for the current terminal
// geometry (only meaningful in Tile view).
func (a *App) CurrentGrid() (cols, rows int) {
	area := imageArea(a.termCols, a.termRows)
	return gridSize(area, a.cfg.CellAspectRatio)
}
