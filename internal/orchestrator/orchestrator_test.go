package orchestrator

import (
	"testing"

	"github.com/kan-bayashi/svt/internal/config"
	"github.com/kan-bayashi/svt/internal/geom"
	"github.com/kan-bayashi/svt/internal/imageproc"
	"github.com/kan-bayashi/svt/internal/input"
	"github.com/kan-bayashi/svt/internal/mode"
	"github.com/kan-bayashi/svt/internal/prefetch"
	"github.com/kan-bayashi/svt/internal/writer"
)

func newTestApp(t *testing.T, n int) *App {
	t.Helper()
	images := make([]string, n)
	for i := range images {
		images[i] = string(rune('a' + i))
	}
	cfg := config.Default()
	proc := imageproc.New(8, 2)
	pool := prefetch.New(1)
	w := writer.New(&discard{}, false)
	t.Cleanup(func() {
		pool.Shutdown()
		w.Shutdown()
	})
	return New(images, cfg, proc, pool, w, false)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestMoveByWrapsModularly(t *testing.T) {
	a := newTestApp(t, 3)
	a.MoveBy(1)
	if a.CurrentIndex != 1 {
		t.Fatalf("index = %d, want 1", a.CurrentIndex)
	}
	a.MoveBy(-2)
	if a.CurrentIndex != 2 {
		t.Fatalf("index = %d, want 2 (wrapped)", a.CurrentIndex)
	}
}

func TestGoTo1BasedClamps(t *testing.T) {
	a := newTestApp(t, 3)
	a.GoTo1Based(999)
	if a.CurrentIndex != 2 {
		t.Fatalf("index = %d, want 2 (clamped)", a.CurrentIndex)
	}
	if a.TileCursor != 2 {
		t.Fatalf("tile cursor = %d, want 2 (kept in lockstep)", a.TileCursor)
	}
}

func TestToggleViewModeCarriesSelection(t *testing.T) {
	a := newTestApp(t, 5)
	a.CurrentIndex = 3
	a.ToggleViewMode()
	if a.ViewMode != mode.Tile || a.TileCursor != 3 {
		t.Fatalf("got view=%v cursor=%d, want Tile cursor=3", a.ViewMode, a.TileCursor)
	}
	a.TileCursor = 1
	a.ToggleViewMode()
	if a.ViewMode != mode.Single || a.CurrentIndex != 1 {
		t.Fatalf("got view=%v index=%d, want Single index=1", a.ViewMode, a.CurrentIndex)
	}
}

func TestSelectTileCommitsAndSwitchesToSingle(t *testing.T) {
	a := newTestApp(t, 5)
	a.ViewMode = mode.Tile
	a.TileCursor = 4
	a.SelectTile()
	if a.ViewMode != mode.Single || a.CurrentIndex != 4 {
		t.Fatalf("got view=%v index=%d, want Single index=4", a.ViewMode, a.CurrentIndex)
	}
}

func TestMoveTileCursorWrapsWithinPageAndReportsPageChange(t *testing.T) {
	a := newTestApp(t, 9)
	a.ViewMode = mode.Tile
	cols, rows := 3, 3
	a.TileCursor = 2 // top-right of the page

	changed := a.MoveTileCursor(1, 0, cols, rows)
	if changed || a.TileCursor != 0 {
		t.Fatalf("expected wrap to col 0 on same page (no page change), got cursor=%d changed=%v", a.TileCursor, changed)
	}
}

func TestMoveTilePageSnapsToFirstTileAndClamps(t *testing.T) {
	a := newTestApp(t, 20)
	a.ViewMode = mode.Tile
	cols, rows := 3, 3 // page size 9, pages: 0-8, 9-17, 18-19
	a.TileCursor = 0

	a.MoveTilePage(1, cols, rows)
	if a.TileCursor != 9 {
		t.Fatalf("tile cursor = %d, want 9", a.TileCursor)
	}
	a.MoveTilePage(5, cols, rows)
	if a.TileCursor != 18 {
		t.Fatalf("tile cursor = %d, want 18 (clamped to last page)", a.TileCursor)
	}
	a.MoveTilePage(-5, cols, rows)
	if a.TileCursor != 0 {
		t.Fatalf("tile cursor = %d, want 0 (clamped to first page)", a.TileCursor)
	}
}

func TestGridSizeClampsToTwoAndSix(t *testing.T) {
	cols, rows := gridSize(geom.Rect{Width: 1, Height: 1}, 2.0)
	if cols < minGridDim || cols > maxGridDim || rows < minGridDim || rows > maxGridDim {
		t.Fatalf("grid = %dx%d, want within [2,6]", cols, rows)
	}
	cols, rows = gridSize(geom.Rect{Width: 1000, Height: 1000}, 2.0)
	if cols < minGridDim || cols > maxGridDim || rows < minGridDim || rows > maxGridDim {
		t.Fatalf("grid = %dx%d, want within [2,6]", cols, rows)
	}
}

func TestDispatchSingleViewAxisMovesByCount(t *testing.T) {
	a := newTestApp(t, 5)
	a.Dispatch(input.CmdCursorDown, 3)
	if a.CurrentIndex != 3 {
		t.Fatalf("index = %d, want 3", a.CurrentIndex)
	}
	a.Dispatch(input.CmdCursorUp, 1)
	if a.CurrentIndex != 2 {
		t.Fatalf("index = %d, want 2", a.CurrentIndex)
	}
}

func TestDispatchQuitSetsShouldQuit(t *testing.T) {
	a := newTestApp(t, 1)
	a.Dispatch(input.CmdQuit, 1)
	if !a.ShouldQuit() {
		t.Fatal("expected ShouldQuit to be true after CmdQuit")
	}
}

func TestReloadClearsStateAndCache(t *testing.T) {
	a := newTestApp(t, 2)
	a.SetTerminalGeometry(80, 24, geom.CellSize{Width: 8, Height: 16})
	a.ingest(a.Images[0], geom.Size{W: 100, H: 100}, mode.Normal, geom.Size{W: 200, H: 200}, geom.Size{W: 100, H: 100}, [][]byte{[]byte("x")})
	a.pendingRequest = &cacheKey{key: "y"}
	a.inFlightTransmit = true

	a.Reload()

	if a.pendingRequest != nil {
		t.Fatal("expected pendingRequest to be cleared")
	}
	if a.inFlightTransmit {
		t.Fatal("expected inFlightTransmit to be cleared")
	}
	if _, ok := a.renderCache.Peek(cacheKey{key: a.Images[0], w: 100, h: 100, fit: mode.Normal}); ok {
		t.Fatal("expected render cache to be purged")
	}
}

func TestRenderCacheEvictsLeastRecentlyUsed(t *testing.T) {
	a := newTestApp(t, 4)
	cfgSmall := config.Default()
	cfgSmall.RenderCacheSize = 2
	a = New(a.Images, cfgSmall, a.processor, a.prefetchPool, a.writer, false)

	target := geom.Size{W: 10, H: 10}
	chunks := [][]byte{[]byte("x")}
	for _, key := range []string{"A", "B"} {
		a.ingest(key, target, mode.Normal, target, target, chunks)
	}
	a.ingest("C", target, mode.Normal, target, target, chunks)
	if _, ok := a.renderCache.Peek(cacheKey{key: "A", w: 10, h: 10, fit: mode.Normal}); ok {
		t.Fatal("expected A to be evicted as the oldest entry")
	}

	// Touch B, then insert D: C (now oldest untouched) should go, B stay.
	if _, ok := a.renderCache.Get(cacheKey{key: "B", w: 10, h: 10, fit: mode.Normal}); !ok {
		t.Fatal("expected B to still be cached")
	}
	a.ingest("D", target, mode.Normal, target, target, chunks)
	if _, ok := a.renderCache.Peek(cacheKey{key: "C", w: 10, h: 10, fit: mode.Normal}); ok {
		t.Fatal("expected C to be evicted after B was touched")
	}
	if _, ok := a.renderCache.Peek(cacheKey{key: "B", w: 10, h: 10, fit: mode.Normal}); !ok {
		t.Fatal("expected touched B to survive")
	}
}

func TestInvalidateRenderBumpsEpochWhenIdle(t *testing.T) {
	a := newTestApp(t, 1)
	a.kgpState.SetLast(geom.Rect{X: 0, Y: 0, Width: 10, Height: 10}, 7)
	startEpoch := a.renderEpoch

	a.invalidateRender()

	if a.renderEpoch != startEpoch+1 {
		t.Fatalf("renderEpoch = %d, want %d", a.renderEpoch, startEpoch+1)
	}
	if _, ok := a.kgpState.LastKgpID(); ok {
		t.Fatal("expected kgpState to be invalidated")
	}
}

func TestInvalidateRenderLeavesInFlightTransmitAlone(t *testing.T) {
	a := newTestApp(t, 1)
	a.kgpState.SetLast(geom.Rect{X: 0, Y: 0, Width: 10, Height: 10}, 7)
	a.inFlightTransmit = true
	startEpoch := a.renderEpoch

	a.invalidateRender()

	if a.renderEpoch != startEpoch {
		t.Fatalf("renderEpoch = %d, want unchanged %d (transmit in flight)", a.renderEpoch, startEpoch)
	}
	if !a.inFlightTransmit {
		t.Fatal("expected inFlightTransmit to remain true when a transmit was in flight")
	}
	if _, ok := a.kgpState.LastKgpID(); !ok {
		t.Fatal("expected kgpState to remain valid when a transmit was in flight")
	}
}
