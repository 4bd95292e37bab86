// Package clipboard builds the OSC 52 escape sequence for the terminal
// writer and wraps the OS clipboard facade used by the "Y" key (copy
// image bitmap) and the "y" key (copy path, via OSC 52).
package clipboard

import (
	"bytes"
	"encoding/base64"

	"github.com/atotto/clipboard"

	"github.com/kan-bayashi/svt/internal/protocol"
)

// OSC52 builds the "set system clipboard" escape sequence for text,
// wrapped for a multiplexer pass-through when mux is set.
func OSC52(text string, mux bool) []byte {
	encoded := base64.StdEncoding.EncodeToString([]byte(text))

	var buf bytes.Buffer
	buf.WriteString("\x1b]52;c;")
	buf.WriteString(encoded)
	buf.WriteByte(0x07)

	return wrap(buf.Bytes(), mux)
}

func wrap(seq []byte, mux bool) []byte {
	if !mux {
		return seq
	}
	// OSC sequences use the BEL/ST terminator rather than KGP's ESC\, but
	// the tmux envelope rule is the same: double embedded ESCs and wrap in
	// the passthrough start/close pair.
	return protocol.WrapOSC(seq)
}

// WriteNative writes bytes to the OS clipboard via the platform facade
// (used by the "Y" key, which copies the decoded image bitmap rather than
// its path).
func WriteNative(data []byte) error {
	return clipboard.WriteAll(string(data))
}
