package orchestrator

import (
	"fmt"
	"path/filepath"

	"github.com/kan-bayashi/svt/internal/mode"
	"github.com/kan-bayashi/svt/internal/writer"
)

// Nerdfont icons and the Powerline separator, matching the glyphs the
// original status line used.
const (
	iconImage  = ""
	iconFit    = "\U000f004c "
	iconNormal = ""
	iconTile   = "1 "
	sep        = ""
)

func (a *App) currentImageName() string {
	if len(a.Images) == 0 {
		return "unknown"
	}
	return filepath.Base(a.Images[a.CurrentIndex])
}

// StatusText builds the status line's text: a mode icon, the 1-based
// position and total, a separator, the image icon, the current file name,
// and its original resolution when known.
func (a *App) StatusText() string {
	modeIcon := iconNormal
	switch {
	case a.ViewMode == mode.Tile:
		modeIcon = iconTile
	case a.FitMode == mode.Fit:
		modeIcon = iconFit
	}

	resolution := ""
	if len(a.Images) > 0 {
		if sz, ok := a.originalSizes[a.Images[a.CurrentIndex]]; ok {
			resolution = fmt.Sprintf(" [%dx%d]", sz.W, sz.H)
		}
	}

	status := fmt.Sprintf("%s%d/%d %s %s%s%s",
		modeIcon,
		a.CurrentIndex+1,
		len(a.Images),
		sep,
		iconImage,
		a.currentImageName(),
		resolution,
	)

	if a.cfg.Debug {
		status += fmt.Sprintf(" cell:%dx%d tmux:%v", a.cellSize.Width, a.cellSize.Height, a.isTmux)
	}

	return status
}

// SendStatus renders the current status line and indicator to the writer.
func (a *App) SendStatus(allowTransmission bool) {
	a.writer.SendStatus(writer.StatusRequest{
		Text:      a.StatusText(),
		Cols:      a.termCols,
		Rows:      a.termRows,
		Indicator: a.StatusIndicator(allowTransmission),
	})
}
