package writer

import (
	"bytes"
	"fmt"

	"github.com/kan-bayashi/svt/internal/geom"
)

const cursorColorSGR = "\x1b[36m" // cyan

// tileCursorRows draws (or, when blank, erases) a box-drawing border around
// one tile cell. Tile boundaries are computed with the same cell-first
// formula the compositor uses, so the overlay snaps to composite tiles
// exactly.
func tileCursorRows(req TileCursorRequest) [][]byte {
	cols := req.Grid.Width
	rows := req.Grid.Height
	if cols == 0 || rows == 0 {
		return nil
	}

	var out [][]byte
	if req.PrevIndex != req.Index && req.PrevIndex >= 0 {
		out = append(out, cursorBox(req, req.PrevIndex, true)...)
	}
	out = append(out, cursorBox(req, req.Index, false)...)
	return out
}

func cursorBox(req TileCursorRequest, index int, blank bool) [][]byte {
	cols := req.Grid.Width
	rows := req.Grid.Height
	col := index % cols
	row := index / cols

	// geom.TileBoundary's cellPixels argument of 1 keeps the result in
	// cell units directly — req.ImageArea is already a cell rectangle.
	// internal/imageproc/tile.go's compositor passes the same cell counts
	// with the real cell pixel size, so its boundaries are exactly these
	// multiplied out to pixels.
	cellX0 := geom.TileBoundary(col, req.ImageArea.Width, cols, 1)
	cellX1 := geom.TileBoundary(col+1, req.ImageArea.Width, cols, 1)
	cellY0 := geom.TileBoundary(row, req.ImageArea.Height, rows, 1)
	cellY1 := geom.TileBoundary(row+1, req.ImageArea.Height, rows, 1)
	if cellX1 <= cellX0 {
		cellX1 = cellX0 + 1
	}
	if cellY1 <= cellY0 {
		cellY1 = cellY0 + 1
	}

	width := cellX1 - cellX0

	tl, tr, bl, br := "┌", "┐", "└", "┘"
	horiz, vert := "─", "│"
	if blank {
		tl, tr, bl, br, horiz, vert = " ", " ", " ", " ", " ", " "
	}

	var rowsOut [][]byte

	var top bytes.Buffer
	if !blank {
		top.WriteString(cursorColorSGR)
	}
	fmt.Fprintf(&top, "\x1b[%d;%dH", req.ImageArea.Y+cellY0+1, req.ImageArea.X+cellX0+1)
	top.WriteString(tl)
	for i := 0; i < width-2; i++ {
		top.WriteString(horiz)
	}
	if width > 1 {
		top.WriteString(tr)
	}
	if !blank {
		top.WriteString("\x1b[0m")
	}
	rowsOut = append(rowsOut, top.Bytes())

	var bottom bytes.Buffer
	if !blank {
		bottom.WriteString(cursorColorSGR)
	}
	fmt.Fprintf(&bottom, "\x1b[%d;%dH", req.ImageArea.Y+cellY1, req.ImageArea.X+cellX0+1)
	bottom.WriteString(bl)
	for i := 0; i < width-2; i++ {
		bottom.WriteString(horiz)
	}
	if width > 1 {
		bottom.WriteString(br)
	}
	if !blank {
		bottom.WriteString("\x1b[0m")
	}
	rowsOut = append(rowsOut, bottom.Bytes())

	for y := cellY0 + 1; y < cellY1-1; y++ {
		var left, right bytes.Buffer
		if !blank {
			left.WriteString(cursorColorSGR)
		}
		fmt.Fprintf(&left, "\x1b[%d;%dH%s", req.ImageArea.Y+y+1, req.ImageArea.X+cellX0+1, vert)
		if !blank {
			left.WriteString("\x1b[0m")
		}
		rowsOut = append(rowsOut, left.Bytes())

		if !blank {
			right.WriteString(cursorColorSGR)
		}
		fmt.Fprintf(&right, "\x1b[%d;%dH%s", req.ImageArea.Y+y+1, req.ImageArea.X+cellX1, vert)
		if !blank {
			right.WriteString("\x1b[0m")
		}
		rowsOut = append(rowsOut, right.Bytes())
	}

	return rowsOut
}
