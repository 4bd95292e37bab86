// Package term is a thin facade over the raw terminal operations svt
// needs: TTY detection, alt-screen entry/exit, raw-mode, cursor
// visibility, and size queries.
package term

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/x/term"
	"golang.org/x/sys/unix"

	"github.com/kan-bayashi/svt/internal/geom"
)

const (
	enterAltScreen = "\x1b[?1049h"
	exitAltScreen  = "\x1b[?1049l"
	hideCursor     = "\x1b[?25l"
	showCursor     = "\x1b[?25h"
)

// Terminal manages the raw-mode/alt-screen lifecycle around one file
// descriptor (normally os.Stdout for writes, os.Stdin for raw mode).
type Terminal struct {
	out   io.Writer
	inFd  uintptr
	state *term.State
	altOn bool
}

// IsTerminal reports whether fd refers to a terminal device.
func IsTerminal(fd uintptr) bool {
	return term.IsTerminal(fd)
}

// Size returns the terminal's column/row count for fd.
func Size(fd uintptr) (cols, rows int, err error) {
	return term.GetSize(fd)
}

// PixelSize returns the terminal's pixel dimensions for fd via the
// standard TIOCGWINSZ ioctl's Xpixel/Ypixel fields. Many terminals leave
// these zero; callers should fall back to an assumed cell size when so.
func PixelSize(fd uintptr) (width, height int, err error) {
	ws, err := unix.IoctlGetWinsize(int(fd), unix.TIOCGWINSZ)
	if err != nil {
		return 0, 0, fmt.Errorf("query window size: %w", err)
	}
	return int(ws.Xpixel), int(ws.Ypixel), nil
}

// CellSize returns the pixel dimensions of a single terminal cell, derived
// from the pixel and character geometry. Falls back to a conservative
// 8x16 assumption (a common monospace cell) when the terminal doesn't
// report pixel geometry.
func CellSize(fd uintptr) geom.CellSize {
	const fallbackW, fallbackH = 8, 16

	cols, rows, err := Size(fd)
	if err != nil || cols == 0 || rows == 0 {
		return geom.CellSize{Width: fallbackW, Height: fallbackH}
	}
	pxW, pxH, err := PixelSize(fd)
	if err != nil || pxW == 0 || pxH == 0 {
		return geom.CellSize{Width: fallbackW, Height: fallbackH}
	}
	return geom.CellSize{Width: pxW / cols, Height: pxH / rows}
}

// New wraps out (the write side, typically stdout) and the input file
// descriptor that raw mode applies to (typically stdin).
func New(out io.Writer, inFd uintptr) *Terminal {
	return &Terminal{out: out, inFd: inFd}
}

// EnterRaw puts the input fd into raw mode, stashing the previous state
// for Restore.
func (t *Terminal) EnterRaw() error {
	state, err := term.MakeRaw(t.inFd)
	if err != nil {
		return fmt.Errorf("enter raw mode: %w", err)
	}
	t.state = state
	return nil
}

// Restore undoes EnterRaw, if it was called.
func (t *Terminal) Restore() error {
	if t.state == nil {
		return nil
	}
	err := term.Restore(t.inFd, t.state)
	t.state = nil
	return err
}

// EnterAltScreen switches to the terminal's alternate screen buffer.
func (t *Terminal) EnterAltScreen() {
	fmt.Fprint(t.out, enterAltScreen)
	t.altOn = true
}

// ExitAltScreen restores the primary screen buffer, if the alternate one
// is active.
func (t *Terminal) ExitAltScreen() {
	if !t.altOn {
		return
	}
	fmt.Fprint(t.out, exitAltScreen)
	t.altOn = false
}

// HideCursor and ShowCursor toggle the terminal cursor's visibility.
func (t *Terminal) HideCursor() { fmt.Fprint(t.out, hideCursor) }
func (t *Terminal) ShowCursor() { fmt.Fprint(t.out, showCursor) }

// Teardown restores cursor visibility, the primary screen, and raw mode,
// best-effort, in the reverse order they were set up. Safe to call even if
// some of those were never entered.
func (t *Terminal) Teardown() {
	t.ShowCursor()
	t.ExitAltScreen()
	_ = t.Restore()
}

// Stdout is the conventional output target for the terminal writer.
var Stdout io.Writer = os.Stdout
