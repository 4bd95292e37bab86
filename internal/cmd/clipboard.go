package cmd

import (
	"bytes"
	"image/png"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/kan-bayashi/svt/internal/clipboard"
	"github.com/kan-bayashi/svt/internal/imageproc"
	"github.com/kan-bayashi/svt/internal/orchestrator"
	"github.com/kan-bayashi/svt/internal/writer"
)

// clipboardFeedbackDuration is how long a y/Y clipboard result briefly
// overrides the status line before it reverts to the normal HUD.
const clipboardFeedbackDuration = 1500 * time.Millisecond

// copyCurrentPath writes the current image's absolute path to the system
// clipboard via OSC 52, routed through the writer so it never interleaves
// with an in-progress KGP transmit.
func copyCurrentPath(app *orchestrator.App, w *writer.Writer, mux bool) {
	if len(app.Images) == 0 {
		return
	}
	path := app.Images[app.CurrentIndex]
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	w.SendRaw(writer.RawRequest{Bytes: clipboard.OSC52(abs, mux)})
	w.SendStatusOverride("Copied path: "+filepath.Base(abs), clipboardFeedbackDuration)
}

// copyCurrentBitmap re-decodes the current image file and writes it to the
// OS clipboard as PNG bytes (the "Y" key, distinct from "y"'s path copy).
func copyCurrentBitmap(app *orchestrator.App, w *writer.Writer) {
	if len(app.Images) == 0 {
		return
	}
	path := app.Images[app.CurrentIndex]
	img, ok := imageproc.DecodeFile(path)
	if !ok {
		slog.Warn("copy bitmap: failed to decode image", "path", path)
		w.SendStatusOverride("Copy failed: could not decode image", clipboardFeedbackDuration)
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		slog.Warn("copy bitmap: failed to encode PNG", "path", path, "error", err)
		w.SendStatusOverride("Copy failed: could not encode PNG", clipboardFeedbackDuration)
		return
	}
	if err := clipboard.WriteNative(buf.Bytes()); err != nil {
		slog.Warn("copy bitmap: failed to write to clipboard", "error", err)
		w.SendStatusOverride("Copy failed: "+err.Error(), clipboardFeedbackDuration)
		return
	}
	w.SendStatusOverride("Copied bitmap: "+filepath.Base(path), clipboardFeedbackDuration)
}
