// Package orchestrator is the single-goroutine owner of selection state,
// the render cache, and the placement record. It drives the image
// processor, the prefetch pool, and the terminal writer, but never writes
// terminal bytes itself.
package orchestrator

import (
	"fmt"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kan-bayashi/svt/internal/config"
	"github.com/kan-bayashi/svt/internal/geom"
	"github.com/kan-bayashi/svt/internal/imageproc"
	"github.com/kan-bayashi/svt/internal/mode"
	"github.com/kan-bayashi/svt/internal/prefetch"
	"github.com/kan-bayashi/svt/internal/protocol"
	"github.com/kan-bayashi/svt/internal/writer"
)

// RenderedImage is one render-cache entry: a fully decoded/resized/encoded
// single image or tile-page composite.
type RenderedImage struct {
	Key          string
	Target       geom.Size
	FitMode      mode.FitMode
	OriginalSize geom.Size
	ActualSize   geom.Size
	Chunks       [][]byte
}

// cacheKey is also reused, unconverted, to track the currently pending
// processor request key (the two concerns share the same identity).
type cacheKey struct {
	key string
	w   int
	h   int
	fit mode.FitMode
}

// App is the orchestrator: image list, mode/selection state, the render
// cache, the placement record, and the handles to the three worker
// components. Exactly one goroutine should ever call its methods.
type App struct {
	Images       []string
	ViewMode     mode.ViewMode
	CurrentIndex int
	TileCursor   int
	FitMode      mode.FitMode

	quit bool

	processor    *imageproc.Processor
	prefetchPool *prefetch.Pool
	writer       *writer.Writer

	kgpState protocol.KgpState
	kgpID    uint32
	isTmux   bool

	pendingRequest   *cacheKey
	pendingDisplay   *geom.Rect
	inFlightTransmit bool
	renderEpoch      uint64
	clearAfterNav    bool

	renderCache   *lru.Cache[cacheKey, RenderedImage]
	originalSizes map[string]geom.Size

	lastPrefetchSig *prefetch.Signature

	cfg config.Config

	termCols, termRows int
	cellSize           geom.CellSize
}

// New builds an App around already-started processor/prefetch/writer
// handles and clears any stale terminal-side image cache.
func New(images []string, cfg config.Config, proc *imageproc.Processor, pool *prefetch.Pool, w *writer.Writer, isTmux bool) *App {
	cache, _ := lru.New[cacheKey, RenderedImage](cfg.RenderCacheSize)
	a := &App{
		Images:        images,
		FitMode:       mode.Normal,
		processor:     proc,
		prefetchPool:  pool,
		writer:        w,
		kgpID:         protocol.DeriveID(os.Getpid()),
		isTmux:        isTmux,
		renderCache:   cache,
		originalSizes: make(map[string]geom.Size),
		cfg:           cfg,
	}
	w.SendClearAll(writer.ClearAllRequest{Area: nil, Mux: isTmux})
	return a
}

// ShouldQuit reports whether CmdQuit has been dispatched.
func (a *App) ShouldQuit() bool { return a.quit }

// SetTerminalGeometry records the terminal's current size (in cells) and
// the pixel size of one cell, used by every render/prefetch/status
// computation below.
func (a *App) SetTerminalGeometry(cols, rows int, cellSize geom.CellSize) {
	a.termCols, a.termRows = cols, rows
	a.cellSize = cellSize
}

func wrap(v, n int) int {
	if n <= 0 {
		return 0
	}
	m := v % n
	if m < 0 {
		m += n
	}
	return m
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func sameRect(a, b geom.Rect) bool {
	return a.X == b.X && a.Y == b.Y && a.Width == b.Width && a.Height == b.Height
}

// imageArea is the terminal area available to the image, excluding the
// one-row status bar at the bottom.
func imageArea(cols, rows int) geom.Rect {
	if rows < 1 {
		rows = 1
	}
	return geom.Rect{X: 0, Y: 0, Width: cols, Height: rows - 1}
}

// MoveBy advances the current selection by delta, wrapping modularly over
// the image list. A no-op delta or empty list does nothing.
func (a *App) MoveBy(delta int) {
	if delta == 0 || len(a.Images) == 0 {
		return
	}
	a.CurrentIndex = wrap(a.CurrentIndex+delta, len(a.Images))
	a.invalidateRender()
}

func (a *App) goToIndex(index int) {
	if len(a.Images) == 0 {
		return
	}
	index = clampInt(index, 0, len(a.Images)-1)
	if a.CurrentIndex == index {
		return
	}
	a.CurrentIndex = index
	a.invalidateRender()
}

// GoFirst, GoLast, and GoTo1Based move the current selection directly,
// keeping the tile cursor in lockstep so a later view-mode toggle starts
// from the same image.
func (a *App) GoFirst() { a.GoToIndexWithTile(0) }
func (a *App) GoLast()  { a.GoToIndexWithTile(len(a.Images) - 1) }
func (a *App) GoTo1Based(n int) {
	a.GoToIndexWithTile(n - 1)
}

// GoToIndexWithTile clamps i to the list bounds and sets both the current
// selection and the tile cursor to it.
func (a *App) GoToIndexWithTile(i int) {
	if len(a.Images) == 0 {
		return
	}
	i = clampInt(i, 0, len(a.Images)-1)
	a.CurrentIndex = i
	a.TileCursor = i
	a.invalidateRender()
}

// ToggleFitMode flips Normal/Fit.
func (a *App) ToggleFitMode() {
	a.FitMode = a.FitMode.Next()
	a.invalidateRender()
}

// ToggleViewMode flips Single/Tile, carrying the selection across: Single
// to Tile copies the current index into the tile cursor, Tile to Single
// copies the tile cursor back into the current index.
func (a *App) ToggleViewMode() {
	if a.ViewMode == mode.Single {
		a.TileCursor = a.CurrentIndex
		a.ViewMode = mode.Tile
	} else {
		a.CurrentIndex = a.TileCursor
		a.ViewMode = mode.Single
	}
	a.invalidateRender()
}

// SelectTile snaps the current selection to the tile cursor and switches
// to Single view (the "enter" key, committing a tile selection).
func (a *App) SelectTile() {
	a.CurrentIndex = a.TileCursor
	a.ViewMode = mode.Single
	a.invalidateRender()
}

// Reload cancels any in-flight output, clears the render cache and the
// placement record, and drops the pending processor request, forcing a
// full re-decode/re-send on the next tick.
func (a *App) Reload() {
	a.cancelImageOutput()
	a.renderCache.Purge()
	a.originalSizes = make(map[string]geom.Size)
	a.pendingRequest = nil
	a.kgpState.Reset()
}

// HandleResize does everything Reload does, plus clears whatever KGP
// overlay the writer still has on screen (the old placement no longer
// corresponds to the new terminal geometry).
func (a *App) HandleResize() {
	// Clear first: Reload resets the placement record, and the overlay
	// clear needs its area.
	a.clearKgpOverlay()
	a.Reload()
}

// invalidateRender drops the pending processor request and cancels any
// outstanding prefetch work, then applies the post-navigation cancellation
// rule: if a transmit is actively in flight, let it finish (an interrupted
// transmit risks a blank screen); otherwise bump the epoch and invalidate
// the placement record so the next render doesn't mistake stale
// bookkeeping for an already-correct display.
func (a *App) invalidateRender() {
	a.pendingRequest = nil
	a.prefetchPool.Cancel()
	if !a.inFlightTransmit {
		a.cancelImageOutput()
	}
}

func (a *App) cancelImageOutput() {
	a.renderEpoch++
	cancelArea := a.pendingDisplay

	a.writer.SendCancelImage(writer.CancelImageRequest{Area: cancelArea, Epoch: a.renderEpoch})
	a.clearAfterNav = true
	a.inFlightTransmit = false
	a.pendingDisplay = nil
	a.kgpState.Invalidate()
}

func (a *App) clearKgpOverlay() {
	area := a.kgpState.LastArea()
	if area == nil {
		return
	}
	a.writer.SendClearAll(writer.ClearAllRequest{Area: area, Mux: a.isTmux})
}

// Quit marks the application for exit; the caller's event loop checks
// ShouldQuit and unwinds.
func (a *App) Quit() { a.quit = true }

// ClearOverlay removes any KGP placement still on screen. The caller's
// event loop calls this once, on the way out, after ShouldQuit becomes true.
func (a *App) ClearOverlay() { a.clearKgpOverlay() }

// currentPageStart returns the first image index of the tile page the
// tile cursor currently sits on.
func (a *App) currentPageStart(cols, rows int) int {
	pageSize := cols * rows
	if pageSize <= 0 {
		return 0
	}
	return (a.TileCursor / pageSize) * pageSize
}

// cacheKeyFor resolves the identity the render cache/processor use for the
// current selection: the image path in Single view, or a synthetic
// per-page key in Tile view (so different pages don't collide).
func (a *App) cacheKeyFor(cols, rows int) (string, bool) {
	if len(a.Images) == 0 {
		return "", false
	}
	if a.ViewMode == mode.Single {
		return a.Images[a.CurrentIndex], true
	}
	return fmt.Sprintf("__tile_page_%d", a.currentPageStart(cols, rows)), true
}

func placementArea(area geom.Rect, actual geom.Size, cellSize geom.CellSize, vm mode.ViewMode) geom.Rect {
	cellsW := ceilDiv(actual.W, cellSize.Width)
	cellsH := ceilDiv(actual.H, cellSize.Height)
	if cellsW > area.Width {
		cellsW = area.Width
	}
	if cellsH > area.Height {
		cellsH = area.Height
	}
	if vm == mode.Tile {
		return geom.Rect{X: area.X, Y: area.Y, Width: cellsW, Height: cellsH}
	}
	offX := (area.Width - cellsW) / 2
	offY := (area.Height - cellsH) / 2
	return geom.Rect{X: area.X + offX, Y: area.Y + offY, Width: cellsW, Height: cellsH}
}

// PrepareRenderRequest is the render-reconciliation tick. allowTransmission
// is the navigation-latch gate: while navigating, this does nothing so
// status updates stay responsive.
func (a *App) PrepareRenderRequest(allowTransmission bool) {
	if len(a.Images) == 0 || !allowTransmission {
		return
	}

	area := imageArea(a.termCols, a.termRows)
	if area.Width <= 0 || area.Height <= 0 || a.cellSize.Width == 0 || a.cellSize.Height == 0 {
		return
	}
	target := geom.Size{W: area.Width * a.cellSize.Width, H: area.Height * a.cellSize.Height}

	cols, rows := 0, 0
	if a.ViewMode == mode.Tile {
		cols, rows = gridSize(area, a.cfg.CellAspectRatio)
	}
	key, ok := a.cacheKeyFor(cols, rows)
	if !ok {
		return
	}
	ck := cacheKey{key: key, w: target.W, h: target.H, fit: a.FitMode}
	oldArea := a.kgpState.LastArea()

	if rendered, ok := a.renderCache.Get(ck); ok {
		placement := placementArea(area, rendered.ActualSize, a.cellSize, a.ViewMode)

		id, hasID := a.kgpState.LastKgpID()
		if a.kgpState.LastArea() != nil && sameRect(*a.kgpState.LastArea(), placement) && hasID && id == a.kgpID {
			return
		}
		if a.pendingDisplay != nil && sameRect(*a.pendingDisplay, placement) {
			return
		}
		if a.inFlightTransmit {
			return
		}

		a.inFlightTransmit = true
		if a.clearAfterNav {
			a.writer.SendClearAll(writer.ClearAllRequest{Area: nil, Mux: a.isTmux})
			a.clearAfterNav = false
		}
		a.writer.SendImageTransmit(writer.ImageTransmitRequest{
			Chunks:  rendered.Chunks,
			Area:    placement,
			KgpID:   a.kgpID,
			OldArea: oldArea,
			Epoch:   a.renderEpoch,
			Mux:     a.isTmux,
		})
		a.pendingDisplay = &placement
		return
	}

	if a.pendingRequest != nil && *a.pendingRequest == ck {
		return
	}
	a.pendingRequest = &ck

	if a.ViewMode == mode.Single {
		a.processor.Submit(imageproc.Request{
			Path:          key,
			Target:        target,
			FitMode:       a.FitMode,
			KgpID:         a.kgpID,
			Mux:           a.isTmux,
			CompressLevel: a.cfg.CompressionLevel(),
			PixelBudget:   int(a.cfg.TmuxKittyMaxPixels),
			Filter:        mode.ParseFilter(a.cfg.ResizeFilter),
			TraceWorker:   a.cfg.TraceWorker,
			TracePath:     a.cfg.WorkerTracePath,
			ViewMode:      mode.Single,
		})
		return
	}

	pageStart := a.currentPageStart(cols, rows)
	pageEnd := pageStart + cols*rows
	if pageEnd > len(a.Images) {
		pageEnd = len(a.Images)
	}
	a.processor.Submit(imageproc.Request{
		Path:          key,
		Target:        target,
		FitMode:       a.FitMode,
		KgpID:         a.kgpID,
		Mux:           a.isTmux,
		CompressLevel: a.cfg.CompressionLevel(),
		PixelBudget:   int(a.cfg.TmuxKittyMaxPixels),
		Filter:        mode.ParseFilter(a.cfg.TileFilter),
		ViewMode:      mode.Tile,
		Paths:         a.Images[pageStart:pageEnd],
		Cols:          cols,
		Rows:          rows,
		CellSize:      a.cellSize,
	})
}

// PrefetchAdjacent speculatively prepares adjacent items around the
// current selection when idle and fully displayed: in Single view, a
// parallel batch through the prefetch pool; in Tile view, one queued
// composite page through the main processor (spec.md §4.3 — a composite
// job isn't parallelizable as an individual item, so it rides the
// processor instead of the prefetch pool, and only the first missing
// adjacent page is submitted per tick).
func (a *App) PrefetchAdjacent(indicator writer.Indicator) {
	if a.pendingRequest != nil {
		return
	}
	if indicator == writer.Busy {
		return
	}
	n := len(a.Images)
	if n <= 1 {
		return
	}

	area := imageArea(a.termCols, a.termRows)
	if area.Width <= 0 || area.Height <= 0 || a.cellSize.Width == 0 || a.cellSize.Height == 0 {
		return
	}
	target := geom.Size{W: area.Width * a.cellSize.Width, H: area.Height * a.cellSize.Height}

	if a.ViewMode == mode.Tile {
		a.prefetchTilePages(area, target, n)
		return
	}
	a.prefetchSingleImages(target, n)
}

func (a *App) prefetchSingleImages(target geom.Size, n int) {
	if a.cfg.PrefetchCount <= 0 {
		return
	}

	sig := prefetch.Signature{Mode: "single", Key: a.Images[a.CurrentIndex], Width: target.W, Height: target.H, FitMode: int(a.FitMode)}
	if a.lastPrefetchSig != nil && *a.lastPrefetchSig == sig {
		return
	}
	a.lastPrefetchSig = &sig

	var paths []string
	for _, idx := range prefetch.SingleIndices(a.CurrentIndex, n) {
		if len(paths) >= a.cfg.PrefetchCount {
			break
		}
		path := a.Images[idx]
		ck := cacheKey{key: path, w: target.W, h: target.H, fit: a.FitMode}
		if _, ok := a.renderCache.Peek(ck); ok {
			continue
		}
		paths = append(paths, path)
	}
	if len(paths) == 0 {
		return
	}

	a.prefetchPool.Batch(prefetch.Request{
		Paths:         paths,
		Target:        target,
		FitMode:       a.FitMode,
		Epoch:         a.prefetchPool.CurrentEpoch(),
		KgpID:         a.kgpID,
		Mux:           a.isTmux,
		CompressLevel: a.cfg.CompressionLevel(),
		PixelBudget:   int(a.cfg.TmuxKittyMaxPixels),
		Filter:        mode.ParseFilter(a.cfg.ResizeFilter),
	})
}

// prefetchTilePages builds adjacent page indices (next page first, no
// wraparound) and submits the first one not already in the render cache
// as one composite processor request, stopping after that single
// submission per spec.md §4.3.
func (a *App) prefetchTilePages(area geom.Rect, target geom.Size, n int) {
	cols, rows := gridSize(area, a.cfg.CellAspectRatio)
	pageSize := cols * rows
	if pageSize <= 0 {
		return
	}
	pageStart := a.currentPageStart(cols, rows)

	sig := prefetch.Signature{Mode: "tile", Key: fmt.Sprintf("page-%d", pageStart), Width: target.W, Height: target.H, FitMode: int(a.FitMode)}
	if a.lastPrefetchSig != nil && *a.lastPrefetchSig == sig {
		return
	}

	for _, start := range prefetch.TilePageIndices(pageStart, pageSize, n) {
		key := fmt.Sprintf("__tile_page_%d", start)
		ck := cacheKey{key: key, w: target.W, h: target.H, fit: a.FitMode}
		if _, ok := a.renderCache.Peek(ck); ok {
			continue
		}

		end := start + pageSize
		if end > n {
			end = n
		}
		a.lastPrefetchSig = &sig
		a.processor.Submit(imageproc.Request{
			Path:          key,
			Target:        target,
			FitMode:       a.FitMode,
			KgpID:         a.kgpID,
			Mux:           a.isTmux,
			CompressLevel: a.cfg.CompressionLevel(),
			PixelBudget:   int(a.cfg.TmuxKittyMaxPixels),
			Filter:        mode.ParseFilter(a.cfg.TileFilter),
			ViewMode:      mode.Tile,
			Paths:         a.Images[start:end],
			Cols:          cols,
			Rows:          rows,
			CellSize:      a.cellSize,
		})
		return
	}
}

func (a *App) ingest(key string, target geom.Size, fit mode.FitMode, original, actual geom.Size, chunks [][]byte) {
	ck := cacheKey{key: key, w: target.W, h: target.H, fit: fit}
	a.renderCache.Add(ck, RenderedImage{
		Key:          key,
		Target:       target,
		FitMode:      fit,
		OriginalSize: original,
		ActualSize:   actual,
		Chunks:       chunks,
	})
	if a.pendingRequest != nil && *a.pendingRequest == ck {
		a.pendingRequest = nil
	}
	if original.W > 0 && original.H > 0 {
		a.originalSizes[key] = original
	}
}

// PollWorker drains completed processor results into the render cache.
func (a *App) PollWorker() {
	for {
		select {
		case res, ok := <-a.processor.Results():
			if !ok {
				return
			}
			a.ingest(res.Path, res.Target, res.FitMode, res.OriginalSize, res.ActualSize, res.Chunks)
		default:
			return
		}
	}
}

// PollPrefetch drains completed prefetch results into the render cache,
// discarding anything stamped with a stale epoch.
func (a *App) PollPrefetch() {
	for {
		select {
		case res, ok := <-a.prefetchPool.Results():
			if !ok {
				return
			}
			if res.Epoch < a.prefetchPool.CurrentEpoch() {
				continue
			}
			r := res.Result
			a.ingest(r.Path, r.Target, r.FitMode, r.OriginalSize, r.ActualSize, r.Chunks)
		default:
			return
		}
	}
}

// PollWriter drains writer completions. A transmit-done for the current
// epoch clears the in-flight flag and promotes the pending display into
// the placement record.
func (a *App) PollWriter() {
	for {
		select {
		case res, ok := <-a.writer.Results():
			if !ok {
				return
			}
			if res.Epoch != a.renderEpoch {
				continue
			}
			if res.Kind == writer.TransmitDone {
				a.inFlightTransmit = false
			}
			if a.pendingDisplay != nil {
				a.kgpState.SetLast(*a.pendingDisplay, a.kgpID)
				a.pendingDisplay = nil
			}
		default:
			return
		}
	}
}

// StatusIndicator reports Busy unless the current selection is fully
// reconciled: no pending display, no in-flight transmit, a cache hit whose
// placement matches the placement record exactly.
func (a *App) StatusIndicator(allowTransmission bool) writer.Indicator {
	if !allowTransmission || a.pendingDisplay != nil || a.inFlightTransmit || len(a.Images) == 0 {
		return writer.Busy
	}

	area := imageArea(a.termCols, a.termRows)
	if area.Width <= 0 || area.Height <= 0 || a.cellSize.Width == 0 || a.cellSize.Height == 0 {
		return writer.Busy
	}
	target := geom.Size{W: area.Width * a.cellSize.Width, H: area.Height * a.cellSize.Height}

	cols, rows := 0, 0
	if a.ViewMode == mode.Tile {
		cols, rows = gridSize(area, a.cfg.CellAspectRatio)
	}
	key, ok := a.cacheKeyFor(cols, rows)
	if !ok {
		return writer.Busy
	}
	ck := cacheKey{key: key, w: target.W, h: target.H, fit: a.FitMode}
	rendered, ok := a.renderCache.Peek(ck)
	if !ok {
		return writer.Busy
	}

	placement := placementArea(area, rendered.ActualSize, a.cellSize, a.ViewMode)
	id, hasID := a.kgpState.LastKgpID()
	if a.kgpState.LastArea() == nil || !sameRect(*a.kgpState.LastArea(), placement) || !hasID || id != a.kgpID {
		return writer.Busy
	}

	switch {
	case a.ViewMode == mode.Tile:
		return writer.Tile
	case a.FitMode == mode.Fit:
		return writer.Fit
	default:
		return writer.Ready
	}
}
