// Package protocol builds Kitty Graphics Protocol (KGP) byte sequences:
// transmit chunks, Unicode placement rows, erase rows, and delete
// operations, each with a pass-through envelope for tmux. The codec has no
// I/O of its own — every function here returns bytes for the caller (the
// terminal writer) to write.
package protocol

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"fmt"

	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/ansi/kitty"

	"github.com/kan-bayashi/svt/internal/geom"
)

// PixelFormat is the KGP "f=" value: 24-bit RGB or 32-bit RGBA.
type PixelFormat int

const (
	RGB  PixelFormat = 24
	RGBA PixelFormat = 32
)

// chunkSize is the maximum number of base64 characters per transmit block,
// per original_source/src/kgp.rs.
const chunkSize = 4096

// TransmitChunks builds the byte blocks that transmit and place (by Unicode
// placement) a raw pixel buffer. The first block carries the full header;
// continuation blocks carry only the "m=" flag. compressLevel == nil means
// the payload is sent uncompressed.
func TransmitChunks(pixels []byte, w, h int, format PixelFormat, id uint32, mux bool, compressLevel *int) [][]byte {
	payload := pixels
	compressed := false
	if compressLevel != nil {
		if z, ok := deflate(pixels, *compressLevel); ok {
			payload = z
			compressed = true
		}
	}

	encoded := base64.StdEncoding.EncodeToString(payload)
	if len(encoded) == 0 {
		return nil
	}

	var chunks [][]byte
	for i := 0; i < len(encoded); i += chunkSize {
		end := min(i+chunkSize, len(encoded))
		chunk := encoded[i:end]
		more := 0
		if end < len(encoded) {
			more = 1
		}

		var buf bytes.Buffer
		if i == 0 {
			compFlag := ""
			if compressed {
				compFlag = ",o=z"
			}
			fmt.Fprintf(&buf, "\x1b_Gq=2,a=T,C=1,U=1,f=%d,s=%d,v=%d,i=%d%s,m=%d;", int(format), w, h, id, compFlag, more)
		} else {
			fmt.Fprintf(&buf, "\x1b_Gm=%d;", more)
		}
		buf.WriteString(chunk)
		buf.WriteString("\x1b\\")

		chunks = append(chunks, wrap(buf.Bytes(), mux))
	}
	return chunks
}

// PlaceRows builds one byte block per row of area, each placing placeholder
// cells (U+10EEEE + three diacritics encoding row, column, and the
// identifier's high octet) colored by an SGR foreground carrying the other
// three identifier octets.
func PlaceRows(area geom.Rect, id uint32) [][]byte {
	if area.Empty() {
		return nil
	}

	idExtra := (id >> 24) & 0xff
	r := (id >> 16) & 0xff
	g := (id >> 8) & 0xff
	b := id & 0xff

	rows := make([][]byte, 0, area.Height)
	for y := 0; y < area.Height; y++ {
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "\x1b[38;2;%d;%d;%dm", r, g, b)
		fmt.Fprintf(&buf, "\x1b[%d;%dH", area.Y+y+1, area.X+1)
		for x := 0; x < area.Width; x++ {
			buf.WriteRune(kitty.Placeholder)
			buf.WriteRune(diacritic(y))
			buf.WriteRune(diacritic(x))
			buf.WriteRune(diacritic(int(idExtra)))
		}
		buf.WriteString("\x1b[0m")
		rows = append(rows, buf.Bytes())
	}
	return rows
}

// EraseRows builds one byte block per row of area: a cursor move followed
// by an "erase N characters" request sized to the rectangle's width.
func EraseRows(area geom.Rect) [][]byte {
	if area.Empty() {
		return nil
	}
	rows := make([][]byte, 0, area.Height)
	for y := 0; y < area.Height; y++ {
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "\x1b[%d;%dH\x1b[%dX", area.Y+y+1, area.X+1, area.Width)
		rows = append(rows, buf.Bytes())
	}
	return rows
}

// DeleteAll removes every graphic the terminal holds: both stored data
// (d=a) and free-standing placements (d=A).
func DeleteAll(mux bool) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x1b_Gq=2,a=d,d=a\x1b\\")
	buf.WriteString("\x1b_Gq=2,a=d,d=A\x1b\\")
	return wrap(buf.Bytes(), mux)
}

// DeleteByID removes the graphic data and placements for one identifier.
func DeleteByID(id uint32, mux bool) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "\x1b_Gq=2,a=d,d=i,i=%d\x1b\\", id)
	return wrap(buf.Bytes(), mux)
}

// wrap envelopes seq for a multiplexer pass-through when mux is set,
// doubling embedded ESCs as tmux requires.
func wrap(seq []byte, mux bool) []byte {
	if !mux {
		return seq
	}
	return []byte(ansi.TmuxPassthrough(string(seq)))
}

// WrapOSC envelopes a non-KGP escape sequence (e.g. an OSC 52 clipboard
// request) the same way wrap does for KGP sequences, exported for
// internal/clipboard.
func WrapOSC(seq []byte) []byte {
	return []byte(ansi.TmuxPassthrough(string(seq)))
}

// diacriticTableSize is the length of the fixed KGP diacritic table.
const diacriticTableSize = 297

// diacritic returns the fixed-table diacritic for index n, clamping to the
// table's first entry once n exceeds its bounds (spec.md §4.1: "accepted
// pixel cost on extreme displays").
func diacritic(n int) rune {
	if n < 0 || n >= diacriticTableSize {
		n = 0
	}
	return kitty.Diacritic(n)
}

func deflate(data []byte, level int) ([]byte, bool) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, false
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}
