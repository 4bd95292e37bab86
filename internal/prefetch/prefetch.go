// Package prefetch speculatively prepares adjacent images while the
// foreground image is displayed, so the next navigation finds a cache hit.
// It runs a dedicated worker pool independent of the image processor, with
// epoch-based cancellation so stale work never overwrites fresh results.
package prefetch

import (
	"sync"
	"sync/atomic"

	"github.com/kan-bayashi/svt/internal/geom"
	"github.com/kan-bayashi/svt/internal/imageproc"
	"github.com/kan-bayashi/svt/internal/mode"
)

// Request is a batch of paths to decode/resize/encode speculatively.
type Request struct {
	Paths         []string
	Target        geom.Size
	FitMode       mode.FitMode
	Epoch         uint64
	KgpID         uint32
	Mux           bool
	CompressLevel *int
	PixelBudget   int
	Filter        mode.Filter
}

// Result pairs a completed item with the epoch its batch was submitted
// under, so the receiver can discard anything older than the current epoch.
type Result struct {
	Epoch  uint64
	Result imageproc.Result
}

type command struct {
	batch    *Request
	shutdown bool
}

// Pool runs a dedicated worker pool for parallel prefetch decode/resize.
type Pool struct {
	commandCh chan command
	resultCh  chan Result
	epoch     atomic.Uint64

	wg sync.WaitGroup
}

// New starts a Pool with threadCount workers (clamped to [1, 8] by the
// caller's configuration).
func New(threadCount int) *Pool {
	if threadCount < 1 {
		threadCount = 1
	}
	p := &Pool{
		commandCh: make(chan command, 4),
		resultCh:  make(chan Result, 64),
	}
	go p.coordinate(threadCount)
	return p
}

// Batch submits a batch for prefetching. Fire-and-forget.
func (p *Pool) Batch(req Request) {
	p.commandCh <- command{batch: &req}
}

// Cancel invalidates all in-flight and queued prefetch work by advancing
// the epoch.
func (p *Pool) Cancel() uint64 {
	return p.epoch.Add(1)
}

// CurrentEpoch returns the epoch new requests should be stamped with.
func (p *Pool) CurrentEpoch() uint64 {
	return p.epoch.Load()
}

// Shutdown stops the coordinator and its workers.
func (p *Pool) Shutdown() {
	p.commandCh <- command{shutdown: true}
}

// Results returns the channel completed (possibly stale) results arrive on.
// Callers should discard anything whose Epoch is older than CurrentEpoch().
func (p *Pool) Results() <-chan Result {
	return p.resultCh
}

func (p *Pool) coordinate(threadCount int) {
	jobs := make(chan prefetchJob, threadCount*2)
	var workers sync.WaitGroup
	for i := 0; i < threadCount; i++ {
		workers.Add(1)
		go p.work(jobs, &workers)
	}

	for cmd := range p.commandCh {
		if cmd.shutdown {
			break
		}
		req := cmd.batch
		if req.Epoch < p.epoch.Load() {
			continue // stale by the time it was dispatched
		}
		for _, path := range req.Paths {
			jobs <- prefetchJob{path: path, req: req}
		}
	}
	close(jobs)
	workers.Wait()
	close(p.resultCh)
}

type prefetchJob struct {
	path string
	req  *Request
}

func (p *Pool) work(jobs <-chan prefetchJob, wg *sync.WaitGroup) {
	defer wg.Done()
	for job := range jobs {
		if p.epoch.Load() > job.req.Epoch {
			continue // cancelled before we started
		}
		result, ok := processOne(job.path, job.req)
		if !ok {
			continue
		}
		if p.epoch.Load() > job.req.Epoch {
			continue // cancelled while processing
		}
		p.resultCh <- Result{Epoch: job.req.Epoch, Result: result}
	}
}

// processOne runs one item through the same decode/resize/encode pipeline
// the main processor uses, independently (prefetch workers don't share the
// processor's one-slot decode cache or its request channel).
func processOne(path string, req *Request) (imageproc.Result, bool) {
	return imageproc.ProcessStandalone(imageproc.Request{
		Path:          path,
		Target:        req.Target,
		FitMode:       req.FitMode,
		KgpID:         req.KgpID,
		Mux:           req.Mux,
		CompressLevel: req.CompressLevel,
		PixelBudget:   req.PixelBudget,
		Filter:        req.Filter,
		ViewMode:      mode.Single,
	})
}
