package orchestrator

import (
	"github.com/kan-bayashi/svt/internal/geom"
	"github.com/kan-bayashi/svt/internal/input"
	"github.com/kan-bayashi/svt/internal/mode"
	"github.com/kan-bayashi/svt/internal/writer"
)

// Dispatch applies one decoded input command against the current mode.
// CmdCopyPath/CmdCopyBitmap are not handled here: they need the clipboard
// facade and are wired directly by the caller (internal/cmd).
func (a *App) Dispatch(cmd input.Command, count int) {
	switch cmd {
	case input.CmdQuit:
		a.Quit()
	case input.CmdCursorDown:
		a.handleAxis(0, 1, count)
	case input.CmdCursorUp:
		a.handleAxis(0, -1, count)
	case input.CmdCursorLeft:
		a.handleAxis(-1, 0, count)
	case input.CmdCursorRight:
		a.handleAxis(1, 0, count)
	case input.CmdPageNext:
		a.handlePage(1, count)
	case input.CmdPagePrev:
		a.handlePage(-1, count)
	case input.CmdGoFirst:
		if count > 1 {
			a.GoTo1Based(count)
		} else {
			a.GoFirst()
		}
	case input.CmdGoLast:
		if count > 1 {
			a.GoTo1Based(count)
		} else {
			a.GoLast()
		}
	case input.CmdToggleFit:
		a.ToggleFitMode()
	case input.CmdReload:
		a.Reload()
	case input.CmdToggleView:
		a.ToggleViewMode()
	case input.CmdCommitTile:
		if a.ViewMode == mode.Tile {
			a.SelectTile()
		}
	}
}

// handleAxis resolves one directional key: a Single-view step (next/prev
// by count) or, in Tile view, count repeated tile-cursor moves along one
// axis, redrawing the cursor overlay unless the move crossed a page (which
// invalidates the whole render instead).
func (a *App) handleAxis(dx, dy, count int) {
	if a.ViewMode == mode.Single {
		a.MoveBy((dx + dy) * count)
		return
	}

	cols, rows := a.CurrentGrid()
	prev := a.TileCursor
	pageChanged := false
	for i := 0; i < count; i++ {
		if a.MoveTileCursor(dx, dy, cols, rows) {
			pageChanged = true
		}
	}
	if !pageChanged {
		a.emitTileCursorOverlay(prev, cols, rows)
	}
}

func (a *App) handlePage(delta, count int) {
	if a.ViewMode == mode.Single {
		a.MoveBy(delta * count)
		return
	}
	cols, rows := a.CurrentGrid()
	a.MoveTilePage(delta*count, cols, rows)
}

func (a *App) emitTileCursorOverlay(prevIndex, cols, rows int) {
	area := imageArea(a.termCols, a.termRows)
	// The overlay positions boxes within the page grid, so both indices
	// are passed relative to the current page's first tile.
	pageStart := a.currentPageStart(cols, rows)
	a.writer.SendTileCursor(writer.TileCursorRequest{
		Grid:       geom.CellSize{Width: cols, Height: rows},
		Index:      a.TileCursor - pageStart,
		PrevIndex:  prevIndex - pageStart,
		ImageArea:  area,
		CellPixels: a.cellSize,
	})
}
