// Package writer is the only component allowed to write terminal bytes.
// It owns a FIFO task of KGP byte blocks plus a separately-latched status
// line, serializing everything so escape sequences from different sources
// never interleave.
package writer

import (
	"bufio"
	"container/list"
	"fmt"
	"io"
	"time"

	"github.com/kan-bayashi/svt/internal/geom"
	"github.com/kan-bayashi/svt/internal/protocol"
)

// Indicator is the status line's colored glyph variant.
type Indicator int

const (
	Busy Indicator = iota
	Ready
	Fit
	Tile
)

// ResultKind distinguishes what kind of task just finished.
type ResultKind int

const (
	TransmitDone ResultKind = iota
)

// Result is an epoch-tagged completion notification.
type Result struct {
	Kind  ResultKind
	KgpID uint32
	Epoch uint64
}

// StatusRequest updates the latched status line. A non-empty Override
// replaces Text for rendering until OverrideDeadline passes, then the
// writer reverts to the last non-override request on its own — callers
// never need to send a follow-up request to clear it (used for the brief
// clipboard-feedback message after y/Y).
type StatusRequest struct {
	Text      string
	Cols      int
	Rows      int
	Indicator Indicator

	Override         string
	OverrideDeadline time.Time
}

// ImageTransmitRequest erases the old area, transmits already-encoded
// chunks, and places an image.
type ImageTransmitRequest struct {
	Chunks  [][]byte
	Area    geom.Rect
	KgpID   uint32
	OldArea *geom.Rect
	Epoch   uint64
	Mux     bool
}

// ClearAllRequest removes every KGP overlay from the terminal.
type ClearAllRequest struct {
	Area *geom.Rect
	Mux  bool
}

// CancelImageRequest advances the epoch and drops the active task without
// erasing (erasure happens on the next transmit).
type CancelImageRequest struct {
	Area  *geom.Rect
	Epoch uint64
}

// TileCursorRequest draws the cell-aligned cursor box at Index in tile
// view, first erasing (with blank glyphs) the box at PrevIndex when
// PrevIndex is non-negative and differs from Index. Both indices are
// positions within the current page's grid.
type TileCursorRequest struct {
	Grid       geom.CellSize // cols, rows interpreted via Width/Height
	Index      int
	PrevIndex  int
	ImageArea  geom.Rect
	CellPixels geom.CellSize
}

// RawRequest writes a pre-built escape sequence straight through, serialized
// alongside every other task (used for the OSC 52 clipboard write so it
// never interleaves with an in-progress KGP transmit).
type RawRequest struct {
	Bytes []byte
}

type request struct {
	status   *StatusRequest
	image    *ImageTransmitRequest
	clear    *ClearAllRequest
	cancel   *CancelImageRequest
	cursor   *TileCursorRequest
	raw      *RawRequest
	shutdown bool
}

// Writer runs the sole terminal-writing goroutine.
type Writer struct {
	reqCh    chan request
	resultCh chan Result
	out      io.Writer
	isTTY    bool
}

const flushThreshold = 64 * 1024

// New starts a Writer. isTTY gates whether any bytes are actually emitted;
// when false (output redirected to a file/pipe) tasks complete immediately
// with no bytes written.
func New(out io.Writer, isTTY bool) *Writer {
	w := &Writer{
		reqCh:    make(chan request, 32),
		resultCh: make(chan Result, 32),
		out:      out,
		isTTY:    isTTY,
	}
	go w.loop()
	return w
}

func (w *Writer) SendStatus(req StatusRequest) { w.reqCh <- request{status: &req} }

// SendStatusOverride latches text as the status line for duration, after
// which the writer reverts to whatever it last rendered via SendStatus.
func (w *Writer) SendStatusOverride(text string, duration time.Duration) {
	w.reqCh <- request{status: &StatusRequest{Override: text, OverrideDeadline: time.Now().Add(duration)}}
}
func (w *Writer) SendImageTransmit(req ImageTransmitRequest) { w.reqCh <- request{image: &req} }
func (w *Writer) SendClearAll(req ClearAllRequest) { w.reqCh <- request{clear: &req} }
func (w *Writer) SendCancelImage(req CancelImageRequest) { w.reqCh <- request{cancel: &req} }
func (w *Writer) SendTileCursor(req TileCursorRequest) { w.reqCh <- request{cursor: &req} }
func (w *Writer) SendRaw(req RawRequest) { w.reqCh <- request{raw: &req} }
func (w *Writer) Shutdown() { w.reqCh <- request{shutdown: true} }

// Results returns the channel on which epoch-tagged completions arrive.
func (w *Writer) Results() <-chan Result {
	return w.resultCh
}

type task struct {
	blocks      *list.List // of []byte
	kgpID       uint32
	epoch       uint64
	clearsDirty bool
}

func (w *Writer) loop() {
	bw := bufio.NewWriter(w.out)

	var lastStatus *StatusRequest
	statusDirty := false
	var current *task
	var currentEpoch uint64
	var dirtyArea *geom.Rect
	bytesSinceFlush := 0
	shouldQuit := false

	var overrideText string
	var overrideUntil time.Time

	flush := func() {
		_ = bw.Flush()
		bytesSinceFlush = 0
	}

	apply := func(r request) {
		switch {
		case r.shutdown:
			shouldQuit = true
		case r.status != nil:
			if r.status.Override != "" {
				overrideText = r.status.Override
				overrideUntil = r.status.OverrideDeadline
			} else {
				lastStatus = r.status
			}
			statusDirty = true
		case r.clear != nil:
			current = nil
			dirtyArea = nil
			if w.isTTY {
				if r.clear.Area != nil {
					for _, row := range protocol.EraseRows(*r.clear.Area) {
						bw.Write(row)
					}
				}
				bw.Write(protocol.DeleteAll(r.clear.Mux))
				bw.WriteString("\x1b[0m")
				flush()
			}
		case r.cancel != nil:
			if r.cancel.Epoch >= currentEpoch {
				currentEpoch = r.cancel.Epoch
				current = nil
			}
			if r.cancel.Area != nil {
				if dirtyArea != nil {
					u := geom.Union(*dirtyArea, *r.cancel.Area)
					dirtyArea = &u
				} else {
					a := *r.cancel.Area
					dirtyArea = &a
				}
			}
			if w.isTTY {
				bw.WriteString("\x1b[0m")
				flush()
			}
		case r.image != nil:
			req := r.image
			if req.Epoch < currentEpoch {
				return
			}
			currentEpoch = req.Epoch
			current = buildTransmitTask(*req, dirtyArea)
		case r.cursor != nil:
			if w.isTTY {
				for _, row := range tileCursorRows(*r.cursor) {
					bw.Write(row)
				}
				flush()
			}
		case r.raw != nil:
			if w.isTTY {
				bw.Write(r.raw.Bytes)
				flush()
			}
		}
	}

	for {
		if shouldQuit {
			return
		}

		if current == nil && !statusDirty {
			if overrideText != "" {
				remaining := time.Until(overrideUntil)
				if remaining <= 0 {
					overrideText = ""
					statusDirty = true
				} else {
					select {
					case r, ok := <-w.reqCh:
						if !ok {
							return
						}
						apply(r)
					case <-time.After(remaining):
						overrideText = ""
						statusDirty = true
					}
				}
			} else {
				r, ok := <-w.reqCh
				if !ok {
					return
				}
				apply(r)
			}
		}

		drain := true
		for drain {
			select {
			case r := <-w.reqCh:
				apply(r)
				if shouldQuit {
					return
				}
			default:
				drain = false
			}
		}

		if statusDirty {
			if overrideText != "" && !time.Now().Before(overrideUntil) {
				overrideText = ""
			}
			if lastStatus != nil && w.isTTY {
				effective := *lastStatus
				if overrideText != "" {
					effective.Text = overrideText
				}
				renderStatus(bw, effective)
				flush()
			}
			statusDirty = false
		}

		if current != nil {
			t := current
			if t.epoch != currentEpoch {
				current = nil
				continue
			}
			if !w.isTTY {
				w.resultCh <- Result{Kind: TransmitDone, KgpID: t.kgpID, Epoch: t.epoch}
				if t.clearsDirty {
					dirtyArea = nil
				}
				current = nil
				continue
			}
			if front := t.blocks.Front(); front != nil {
				chunk := front.Value.([]byte)
				t.blocks.Remove(front)
				if len(chunk) > 0 {
					bw.Write(chunk)
					bytesSinceFlush += len(chunk)
					if bytesSinceFlush >= flushThreshold {
						flush()
					}
				}
			} else {
				flush()
				w.resultCh <- Result{Kind: TransmitDone, KgpID: t.kgpID, Epoch: t.epoch}
				if t.clearsDirty {
					dirtyArea = nil
				}
				current = nil
			}
		}
	}
}

// cleanupRects returns the dirty-minus-new strips that must be erased
// before a new placement lands, in load-bearing order.
func cleanupRects(area geom.Rect, dirty *geom.Rect) []geom.Rect {
	if dirty == nil {
		return nil
	}
	return geom.Diff(*dirty, area)
}

func buildTransmitTask(req ImageTransmitRequest, dirtyArea *geom.Rect) *task {
	blocks := list.New()
	push := func(b []byte) { blocks.PushBack(b) }

	if req.OldArea != nil {
		for _, row := range protocol.EraseRows(*req.OldArea) {
			push(row)
		}
	}
	for _, cleanup := range cleanupRects(req.Area, dirtyArea) {
		for _, row := range protocol.EraseRows(cleanup) {
			push(row)
		}
	}

	push(protocol.DeleteByID(req.KgpID, req.Mux))
	for _, c := range req.Chunks {
		push(c)
	}
	for _, row := range protocol.PlaceRows(req.Area, req.KgpID) {
		push(row)
	}

	return &task{
		blocks:      blocks,
		kgpID:       req.KgpID,
		epoch:       req.Epoch,
		clearsDirty: dirtyArea != nil,
	}
}

// renderStatus draws the single-line Powerline-style HUD: a colored
// indicator glyph, a separator, then the clipped status body. The
// background is painted first via an ECH fill so the cleared cells
// inherit it before the glyph and text are written over it.
func renderStatus(w io.Writer, req StatusRequest) {
	if req.Cols == 0 || req.Rows == 0 {
		return
	}
	row := req.Rows
	glyph, segStyle := indicatorStyle(req.Indicator)

	const overhead = 2 // glyph + one separator space
	available := req.Cols - overhead
	if available < 0 {
		available = 0
	}
	clipped := clipStatus(req.Text, available)

	fmt.Fprintf(w, "\x1b[%d;1H%s\x1b[%dX", row, segStyle, req.Cols)
	fmt.Fprintf(w, "\x1b[%d;1H%s%s %s\x1b[0m", row, segStyle, glyph, clipped)
}
