package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kan-bayashi/svt/internal/config"
	"github.com/kan-bayashi/svt/internal/imagelist"
	"github.com/kan-bayashi/svt/internal/imageproc"
	"github.com/kan-bayashi/svt/internal/input"
	"github.com/kan-bayashi/svt/internal/orchestrator"
	"github.com/kan-bayashi/svt/internal/prefetch"
	"github.com/kan-bayashi/svt/internal/term"
	"github.com/kan-bayashi/svt/internal/writer"
)

func run(ctx context.Context, paths []string, debug bool) error {
	cfg := config.Load()
	if debug {
		cfg.Debug = true
	}

	level := slog.LevelWarn
	if cfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	images, err := imagelist.Build(paths)
	if err != nil {
		return fmt.Errorf("svt: %w", err)
	}

	isTmux := term.IsTmux()
	if isTmux {
		term.EnsureTmuxPassthrough()
	}
	useAltScreen := cfg.ForceAltScreen || (!cfg.NoAltScreen && !isTmux)

	t := term.New(term.Stdout, os.Stdin.Fd())
	if err := t.EnterRaw(); err != nil {
		return fmt.Errorf("svt: %w", err)
	}
	defer t.Teardown()
	if useAltScreen {
		t.EnterAltScreen()
	}
	t.HideCursor()

	proc := imageproc.New(cfg.ThumbnailCacheSize, cfg.TileThreads)
	pool := prefetch.New(cfg.PrefetchThreads)
	w := writer.New(term.Stdout, term.IsTerminal(os.Stdout.Fd()))
	defer func() {
		pool.Shutdown()
		w.Shutdown()
	}()

	app := orchestrator.New(images, cfg, proc, pool, w, isTmux)

	cols, rows, _ := term.Size(os.Stdout.Fd())
	cellSize := term.CellSize(os.Stdout.Fd())
	app.SetTerminalGeometry(cols, rows, cellSize)

	keys := startKeyReader(os.Stdin)
	decoder := &input.Decoder{}

	navLatch := time.Duration(cfg.NavLatchMS) * time.Millisecond
	navUntil := time.Now().Add(-time.Second)

	var lastStatus string
	var lastCols, lastRows int
	lastIndicator := writer.Indicator(-1)

	for {
		if app.ShouldQuit() {
			app.ClearOverlay()
			break
		}

		app.PollWorker()
		app.PollPrefetch()
		app.PollWriter()

		if quit := drainKeys(app, decoder, keys, w, isTmux, &navUntil, navLatch); quit {
			continue
		}

		cols, rows, _ = term.Size(os.Stdout.Fd())
		if cols != lastCols || rows != lastRows {
			cellSize = term.CellSize(os.Stdout.Fd())
			app.SetTerminalGeometry(cols, rows, cellSize)
			app.HandleResize()
		}

		allowTransmission := !time.Now().Before(navUntil)

		status := app.StatusText()
		indicator := app.StatusIndicator(allowTransmission)
		if status != lastStatus || cols != lastCols || rows != lastRows || indicator != lastIndicator {
			app.SendStatus(allowTransmission)
			lastStatus, lastCols, lastRows, lastIndicator = status, cols, rows, indicator
		}

		app.PrepareRenderRequest(allowTransmission)
		if allowTransmission && indicator != writer.Busy {
			app.PrefetchAdjacent(indicator)
		}

		tick := 16 * time.Millisecond
		if time.Now().Before(navUntil) {
			tick = time.Millisecond
		}

		select {
		case <-ctx.Done():
			app.Quit()
		case k, ok := <-keys:
			if !ok {
				app.Quit()
				continue
			}
			applyDecoded(app, decoder.Feed(k), w, isTmux, &navUntil, navLatch)
		case <-time.After(tick):
		}
	}

	return nil
}

// drainKeys processes every currently buffered key without blocking,
// stopping early once a navigation command lands so the status bar stays
// responsive to the result of a single keystroke at a time.
func drainKeys(app *orchestrator.App, dec *input.Decoder, keys <-chan input.Key, w *writer.Writer, mux bool, navUntil *time.Time, navLatch time.Duration) (quit bool) {
	for {
		select {
		case k, ok := <-keys:
			if !ok {
				app.Quit()
				return true
			}
			decoded := dec.Feed(k)
			if decoded.Command == input.CmdQuit {
				app.Dispatch(decoded.Command, decoded.Count)
				return true
			}
			if applyDecoded(app, decoded, w, mux, navUntil, navLatch) {
				return false
			}
		default:
			return false
		}
	}
}

// applyDecoded dispatches one decoded command, handling the two clipboard
// commands directly (they need the writer/clipboard facade, not the
// orchestrator), and reports whether it was a navigation command.
func applyDecoded(app *orchestrator.App, decoded input.Decoded, w *writer.Writer, mux bool, navUntil *time.Time, navLatch time.Duration) (wasNav bool) {
	switch decoded.Command {
	case input.CmdNone:
		return false
	case input.CmdCopyPath:
		copyCurrentPath(app, w, mux)
		return false
	case input.CmdCopyBitmap:
		copyCurrentBitmap(app, w)
		return false
	case input.CmdQuit:
		app.Dispatch(decoded.Command, decoded.Count)
		return false
	default:
		app.Dispatch(decoded.Command, decoded.Count)
		*navUntil = time.Now().Add(navLatch)
		return true
	}
}
