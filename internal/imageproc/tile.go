package imageproc

import (
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/kan-bayashi/svt/internal/geom"
	"github.com/kan-bayashi/svt/internal/mode"
)

// processTile composites the visible tile page into one RGBA canvas. Each
// tile is decoded/resized independently (with an LRU-cached thumbnail) and
// copied centered within its padded inner rectangle; tiles that fail to
// decode are left transparent and compositing proceeds.
func (p *Processor) processTile(req Request) {
	if len(req.Paths) == 0 || req.Cols == 0 || req.Rows == 0 {
		return
	}

	canvasW, canvasH := req.Target.W, req.Target.H
	canvas := image.NewNRGBA(image.Rect(0, 0, canvasW, canvasH))

	cellW, cellH := req.CellSize.Width, req.CellSize.Height
	if cellW <= 0 {
		cellW = 8
	}
	if cellH <= 0 {
		cellH = 16
	}
	// Boundaries are computed in cells first, then scaled by the cell
	// pixel size, so adjacent tiles land on integer-cell edges and the
	// writer's cursor overlay snaps to them exactly.
	canvasCellsW := canvasW / cellW
	canvasCellsH := canvasH / cellH

	padding := cellW
	if cellH > padding {
		padding = cellH
	}

	filterName := req.Filter.String()

	var layout []tilePlacement

	for i, path := range req.Paths {
		if i >= req.Cols*req.Rows {
			break
		}
		col := i % req.Cols
		row := i / req.Cols

		tileX0 := geom.TileBoundary(col, canvasCellsW, req.Cols, cellW)
		tileX1 := geom.TileBoundary(col+1, canvasCellsW, req.Cols, cellW)
		tileY0 := geom.TileBoundary(row, canvasCellsH, req.Rows, cellH)
		tileY1 := geom.TileBoundary(row+1, canvasCellsH, req.Rows, cellH)
		tileW := tileX1 - tileX0
		tileH := tileY1 - tileY0

		halfPad := padding / 2
		innerW := tileW - halfPad*2
		innerH := tileH - halfPad*2
		if innerW <= 0 || innerH <= 0 {
			continue
		}

		layout = append(layout, tilePlacement{
			x:      tileX0 + halfPad,
			y:      tileY0 + halfPad,
			filter: req.Filter,
			key:    thumbKey{path: path, innerW: innerW, innerH: innerH, filterName: filterName},
		})
	}

	if newer, preempted := p.preempted(); preempted {
		p.parkAndRun(newer)
		return
	}

	thumbs := p.thumbnails(layout)

	if newer, preempted := p.preempted(); preempted {
		p.parkAndRun(newer)
		return
	}

	for i, pl := range layout {
		thumb := thumbs[i]
		if thumb == nil {
			continue
		}
		tb := thumb.Bounds()
		scaledW, scaledH := tb.Dx(), tb.Dy()

		offsetX := (pl.key.innerW - scaledW) / 2
		offsetY := (pl.key.innerH - scaledH) / 2
		x := pl.x + offsetX
		y := pl.y + offsetY

		if x+scaledW <= canvasW && y+scaledH <= canvasH {
			canvas = imaging.Overlay(canvas, thumb, image.Pt(x, y), 1.0)
		}
	}

	chunks := encodeImage(canvas, req.KgpID, req.Mux, req.CompressLevel)
	size := geom.Size{W: canvasW, H: canvasH}

	p.resultCh <- Result{
		Path:         req.Path,
		Target:       req.Target,
		FitMode:      req.FitMode,
		OriginalSize: size,
		ActualSize:   size,
		Chunks:       chunks,
	}
}

// tilePlacement is one tile's resolved on-canvas top-left corner (before
// thumbnail centering) plus the thumbnail cache key it needs resolved.
type tilePlacement struct {
	x, y   int
	filter mode.Filter
	key    thumbKey
}

// thumbnails resolves every placed tile's decoded, resized bitmap,
// dispatching cache misses to the tile worker pool in parallel and
// updating the thumbnail cache itself (the cache stays owned by the
// processor goroutine; workers only decode and resize). The returned
// slice is positional with items, nil where decoding failed. Each miss
// gets its own single-buffered response channel so a completion can be
// paired back to its originating index regardless of which order the
// pool finishes the jobs in.
func (p *Processor) thumbnails(items []tilePlacement) []image.Image {
	out := make([]image.Image, len(items))
	var misses []int

	for i, it := range items {
		if img, ok := p.thumbs.Get(it.key); ok {
			out[i] = img
			continue
		}
		misses = append(misses, i)
	}
	if len(misses) == 0 {
		return out
	}

	resps := make([]chan tileJobResult, len(misses))
	for n, i := range misses {
		resps[n] = make(chan tileJobResult, 1)
		p.tileJobs <- tileJob{path: items[i].key.path, innerW: items[i].key.innerW, innerH: items[i].key.innerH, filter: items[i].filter, resp: resps[n]}
	}
	for n, i := range misses {
		r := <-resps[n]
		if !r.ok {
			continue
		}
		out[i] = r.img
		p.thumbs.Add(items[i].key, r.img)
	}
	return out
}

// resizeThumb scales img to fit within (innerW, innerH) without upscaling,
// preserving aspect ratio, using the caller's configured tile filter.
func resizeThumb(img image.Image, innerW, innerH int, filter mode.Filter) image.Image {
	b := img.Bounds()
	origW, origH := b.Dx(), b.Dy()
	scaleW := float64(innerW) / float64(origW)
	scaleH := float64(innerH) / float64(origH)
	scale := math.Min(math.Min(scaleW, scaleH), 1.0)
	scaledW := int(math.Max(math.Floor(float64(origW)*scale), 1))
	scaledH := int(math.Max(math.Floor(float64(origH)*scale), 1))
	return imaging.Resize(img, scaledW, scaledH, resampleFilter(filter))
}
