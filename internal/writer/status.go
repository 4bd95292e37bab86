package writer

import (
	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/exp/charmtone"
)

// indicatorStyle maps a status indicator to its glyph and the SGR prefix
// for its Powerline-style segment (foreground glyph/text color over a
// filled background).
func indicatorStyle(ind Indicator) (glyph string, style string) {
	var fg, bg = charmtone.Ash, charmtone.Charcoal
	switch ind {
	case Busy:
		glyph, fg = "●", charmtone.Sriracha
	case Ready:
		glyph, fg = "●", charmtone.Guac
	case Fit:
		glyph, fg = "◆", charmtone.Zest
	case Tile:
		glyph, fg = "▦", charmtone.Malibu
	default:
		glyph = "●"
	}
	return glyph, ansi.NewStyle().ForegroundColor(fg).BackgroundColor(bg).String()
}

// clipStatus truncates s to at most maxWidth terminal columns, never
// splitting a character. Width-aware rather than byte-aware: CJK and
// emoji cells count as two columns.
func clipStatus(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if ansi.StringWidth(s) <= maxWidth {
		return s
	}
	return ansi.Truncate(s, maxWidth, "")
}
