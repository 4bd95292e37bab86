// Package imageproc decodes, resizes, and encodes images for the terminal
// writer. It owns a one-slot decoded-image cache and a bounded thumbnail
// cache, and runs on its own goroutine behind a single-producer/
// single-consumer request channel so that at most one request is ever in
// progress.
package imageproc

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"time"

	"github.com/disintegration/imaging"
	lru "github.com/hashicorp/golang-lru/v2"
	_ "golang.org/x/image/webp"

	"github.com/kan-bayashi/svt/internal/geom"
	"github.com/kan-bayashi/svt/internal/mode"
	"github.com/kan-bayashi/svt/internal/protocol"
)

// Request is one unit of work, selected by ViewMode: a single-image render
// of Path (mode.Single) or a tile composite of Paths (mode.Tile).
type Request struct {
	Path          string
	Target        geom.Size
	FitMode       mode.FitMode
	KgpID         uint32
	Mux           bool
	CompressLevel *int
	PixelBudget   int
	Filter        mode.Filter
	TraceWorker   bool
	TracePath     string

	ViewMode mode.ViewMode
	Paths    []string // tile mode: paths for the visible page, row-major
	Cols     int
	Rows     int
	CellSize geom.CellSize // terminal cell size in pixels, for tile padding
}

// Result is the outcome of a Request: the original and actual pixel sizes
// plus the encoded KGP chunks ready for the writer.
type Result struct {
	Path         string
	Target       geom.Size
	FitMode      mode.FitMode
	OriginalSize geom.Size
	ActualSize   geom.Size
	Chunks       [][]byte
}

// Processor runs the decode/resize/encode pipeline on its own goroutine.
type Processor struct {
	reqCh    chan Request
	resultCh chan Result

	decodedPath string
	decodedImg  image.Image

	thumbs   *lru.Cache[thumbKey, image.Image]
	tileJobs chan tileJob
}

type thumbKey struct {
	path       string
	innerW     int
	innerH     int
	filterName string
}

// tileJob is one thumbnail decode/resize handed to the tile worker pool.
// Workers are pure compute: they never touch the thumbnail cache, which
// stays owned by the processor goroutine (the same rule as the one-slot
// decoded-image cache).
type tileJob struct {
	path   string
	innerW int
	innerH int
	filter mode.Filter
	resp   chan tileJobResult
}

type tileJobResult struct {
	img image.Image
	ok  bool
}

// New starts a Processor goroutine and a dedicated tile-thumbnail worker
// pool. thumbCacheSize bounds the tile-mode thumbnail cache (spec default:
// 500 entries); tileThreads sizes the pool used to decode/resize tile
// thumbnails in parallel during composite jobs (spec default: 4, clamped
// to [1,8] by config).
func New(thumbCacheSize, tileThreads int) *Processor {
	thumbs, _ := lru.New[thumbKey, image.Image](thumbCacheSize)
	if tileThreads < 1 {
		tileThreads = 1
	}
	p := &Processor{
		reqCh:    make(chan Request, 8),
		resultCh: make(chan Result, 8),
		thumbs:   thumbs,
		tileJobs: make(chan tileJob, tileThreads*2),
	}
	for i := 0; i < tileThreads; i++ {
		go p.tileWorker()
	}
	go p.loop()
	return p
}

// tileWorker decodes and resizes one tile thumbnail at a time, forever.
// Pure compute: no shared state beyond the job/response channels.
func (p *Processor) tileWorker() {
	for job := range p.tileJobs {
		img, ok := decodeFile(job.path)
		if !ok {
			job.resp <- tileJobResult{}
			continue
		}
		job.resp <- tileJobResult{img: resizeThumb(img, job.innerW, job.innerH, job.filter), ok: true}
	}
}

// Submit enqueues a request. Non-blocking from the caller's perspective up
// to the channel's buffer; callers that need fire-and-forget semantics
// should select on a done/quit channel alongside this send.
func (p *Processor) Submit(req Request) {
	p.reqCh <- req
}

// Results returns the channel on which completed results are delivered.
func (p *Processor) Results() <-chan Result {
	return p.resultCh
}

func (p *Processor) loop() {
	for {
		req, ok := <-p.reqCh
		if !ok {
			return
		}
		req = p.drainToLatest(req)
		p.parkAndRun(req)
	}
}

// drainToLatest collects any requests already queued behind current and
// keeps only the newest, mirroring the Rust worker's mpsc drain.
func (p *Processor) drainToLatest(current Request) Request {
	for {
		select {
		case newer := <-p.reqCh:
			current = newer
		default:
			return current
		}
	}
}

// preempted reports whether a newer request has arrived, parking it as
// pending for the caller to pick up on its next loop iteration.
func (p *Processor) preempted() (Request, bool) {
	select {
	case newer := <-p.reqCh:
		return p.drainToLatest(newer), true
	default:
		return Request{}, false
	}
}

func (p *Processor) processSingle(req Request) {
	decodeStart := time.Now()
	img, ok := p.decode(req.Path)
	if !ok {
		return
	}
	decodeElapsed := time.Since(decodeStart)

	if newer, preempted := p.preempted(); preempted {
		p.parkAndRun(newer)
		return
	}

	origW, origH := img.Bounds().Dx(), img.Bounds().Dy()
	target := ComputeTarget(geom.Size{W: origW, H: origH}, req.Target, req.FitMode)

	if req.FitMode != mode.Fit && req.PixelBudget > 0 {
		target = applyPixelBudget(target, req.PixelBudget)
	}

	resizeStart := time.Now()
	resized := resizeTo(img, target, origW, origH, req.Filter)
	resizeElapsed := time.Since(resizeStart)
	actualW, actualH := resized.Bounds().Dx(), resized.Bounds().Dy()

	if newer, preempted := p.preempted(); preempted {
		p.parkAndRun(newer)
		return
	}

	encodeStart := time.Now()
	chunks := encodeImage(resized, req.KgpID, req.Mux, req.CompressLevel)
	encodeElapsed := time.Since(encodeStart)

	if req.TraceWorker {
		traceWorker(req, decodeElapsed, resizeElapsed, encodeElapsed,
			geom.Size{W: origW, H: origH}, geom.Size{W: actualW, H: actualH})
	}

	p.resultCh <- Result{
		Path:         req.Path,
		Target:       req.Target,
		FitMode:      req.FitMode,
		OriginalSize: geom.Size{W: origW, H: origH},
		ActualSize:   geom.Size{W: actualW, H: actualH},
		Chunks:       chunks,
	}
}

// parkAndRun re-enters the loop with a request already known to be the
// latest, skipping the blocking receive.
func (p *Processor) parkAndRun(req Request) {
	switch req.ViewMode {
	case mode.Tile:
		p.processTile(req)
	default:
		p.processSingle(req)
	}
}

// ProcessStandalone runs the single-image decode/resize/encode pipeline
// without a Processor's goroutine, request channel, or decode cache. It is
// used by the prefetch pool, whose workers each process one path in
// parallel and have no notion of "the next request" to preempt for.
func ProcessStandalone(req Request) (Result, bool) {
	decodeStart := time.Now()
	img, ok := decodeFile(req.Path)
	if !ok {
		return Result{}, false
	}
	decodeElapsed := time.Since(decodeStart)

	origW, origH := img.Bounds().Dx(), img.Bounds().Dy()
	target := ComputeTarget(geom.Size{W: origW, H: origH}, req.Target, req.FitMode)

	if req.FitMode != mode.Fit && req.PixelBudget > 0 {
		target = applyPixelBudget(target, req.PixelBudget)
	}

	resizeStart := time.Now()
	resized := resizeTo(img, target, origW, origH, req.Filter)
	resizeElapsed := time.Since(resizeStart)
	actualW, actualH := resized.Bounds().Dx(), resized.Bounds().Dy()

	encodeStart := time.Now()
	chunks := encodeImage(resized, req.KgpID, req.Mux, req.CompressLevel)
	encodeElapsed := time.Since(encodeStart)

	if req.TraceWorker {
		traceWorker(req, decodeElapsed, resizeElapsed, encodeElapsed,
			geom.Size{W: origW, H: origH}, geom.Size{W: actualW, H: actualH})
	}

	return Result{
		Path:         req.Path,
		Target:       req.Target,
		FitMode:      req.FitMode,
		OriginalSize: geom.Size{W: origW, H: origH},
		ActualSize:   geom.Size{W: actualW, H: actualH},
		Chunks:       chunks,
	}, true
}

// DecodeFile decodes path with the same registered codecs the processor
// uses internally. Exported for the clipboard "copy bitmap" command, which
// needs a plain image.Image rather than KGP-encoded chunks.
func DecodeFile(path string) (image.Image, bool) {
	return decodeFile(path)
}

func (p *Processor) decode(path string) (image.Image, bool) {
	if p.decodedPath == path && p.decodedImg != nil {
		return p.decodedImg, true
	}
	img, ok := decodeFile(path)
	if !ok {
		return nil, false
	}
	p.decodedPath = path
	p.decodedImg = img
	return img, true
}

// traceWorker appends one timing line per processed request to the
// configured trace file. Best-effort: an unopenable file drops the line.
func traceWorker(req Request, decodeD, resizeD, encodeD time.Duration, orig, actual geom.Size) {
	if req.TracePath == "" {
		return
	}
	f, err := os.OpenFile(req.TracePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "kgp_id=%d path=%q decode=%s resize=%s encode=%s orig=(%d,%d) target=(%d,%d) actual=(%d,%d)\n",
		req.KgpID, req.Path, decodeD, resizeD, encodeD,
		orig.W, orig.H, req.Target.W, req.Target.H, actual.W, actual.H)
}

func decodeFile(path string) (image.Image, bool) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, false
	}
	return img, true
}

// ComputeTarget returns the resized dimensions for orig under max given
// fit. Normal only shrinks when orig exceeds max; Fit always scales to the
// largest size that fits within max, which may upscale.
func ComputeTarget(orig, max geom.Size, fit mode.FitMode) geom.Size {
	if fit == mode.Normal && orig.W <= max.W && orig.H <= max.H {
		return orig
	}
	scaleW := float64(max.W) / float64(orig.W)
	scaleH := float64(max.H) / float64(orig.H)
	scale := math.Min(scaleW, scaleH)
	w := int(math.Max(math.Floor(float64(orig.W)*scale), 1))
	h := int(math.Max(math.Floor(float64(orig.H)*scale), 1))
	return geom.Size{W: w, H: h}
}

// applyPixelBudget downscales target so its pixel count does not exceed
// budget, preserving aspect ratio.
func applyPixelBudget(target geom.Size, budget int) geom.Size {
	targetPixels := target.W * target.H
	if targetPixels <= budget || targetPixels == 0 {
		return target
	}
	down := math.Sqrt(float64(budget) / float64(targetPixels))
	w := int(math.Max(math.Floor(float64(target.W)*down), 1))
	h := int(math.Max(math.Floor(float64(target.H)*down), 1))
	return geom.Size{W: w, H: h}
}

func resizeTo(img image.Image, target geom.Size, origW, origH int, filter mode.Filter) image.Image {
	if target.W == origW && target.H == origH {
		return img
	}
	return imaging.Resize(img, target.W, target.H, resampleFilter(filter))
}

// resampleFilter maps the protocol-level filter enum onto a concrete
// disintegration/imaging kernel. "triangle" has no identically-named
// imaging.ResampleFilter; imaging.Linear is bilinear interpolation, the
// standard triangle-filter kernel.
func resampleFilter(f mode.Filter) imaging.ResampleFilter {
	switch f {
	case mode.FilterNearest:
		return imaging.NearestNeighbor
	case mode.FilterTriangle:
		return imaging.Linear
	case mode.FilterCatmullRom:
		return imaging.CatmullRom
	case mode.FilterGaussian:
		return imaging.Gaussian
	case mode.FilterLanczos3:
		return imaging.Lanczos
	default:
		return imaging.Linear
	}
}

func encodeImage(img image.Image, id uint32, mux bool, compressLevel *int) [][]byte {
	rgba := toNRGBA(img)
	b := rgba.Bounds()
	w, h := b.Dx(), b.Dy()

	pixels := make([]byte, 0, w*h*4)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := rgba.Pix[(y-b.Min.Y)*rgba.Stride : (y-b.Min.Y)*rgba.Stride+w*4]
		pixels = append(pixels, row...)
	}
	return protocol.TransmitChunks(pixels, w, h, protocol.RGBA, id, mux, compressLevel)
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	return imaging.Clone(img)
}
