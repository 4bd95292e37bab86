package protocol

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi/kitty"

	"github.com/kan-bayashi/svt/internal/geom"
)

func TestEraseRowsCursorMoves(t *testing.T) {
	area := geom.Rect{X: 2, Y: 3, Width: 4, Height: 2}
	rows := EraseRows(area)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	all := bytes.Join(rows, nil)
	s := string(all)
	if !strings.Contains(s, "\x1b[4;3H") {
		t.Errorf("missing first row cursor move, got %q", s)
	}
	if !strings.Contains(s, "\x1b[5;3H") {
		t.Errorf("missing second row cursor move, got %q", s)
	}
	if !strings.Contains(s, "\x1b[4X") {
		t.Errorf("missing erase-4-chars request, got %q", s)
	}
}

func TestTransmitChunksRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{1, 2, 3}, 3000) // forces multiple chunks
	chunks := TransmitChunks(payload, 10, 10, RGB, 0x11121314, false, nil)
	if len(chunks) < 2 {
		t.Fatalf("expected payload to span multiple chunks, got %d", len(chunks))
	}

	first := string(chunks[0])
	if !strings.HasPrefix(first, "\x1b_Gq=2,a=T,C=1,U=1,f=24,s=10,v=10,i=") {
		n := 60
		if len(first) < n {
			n = len(first)
		}
		t.Fatalf("unexpected header: %q", first[:n])
	}
	if !strings.Contains(first, ",m=1;") {
		t.Errorf("first chunk should set m=1 (more data follows)")
	}

	last := string(chunks[len(chunks)-1])
	if !strings.HasPrefix(last, "\x1b_Gm=0;") {
		n := 20
		if len(last) < n {
			n = len(last)
		}
		t.Errorf("last continuation chunk should have m=0, got %q", last[:n])
	}

	// Round-trip: concatenated base64 bodies decode back to the payload.
	var b64 strings.Builder
	for i, c := range chunks {
		s := string(c)
		s = strings.TrimSuffix(s, "\x1b\\")
		semi := strings.IndexByte(s, ';')
		b64.WriteString(s[semi+1:])
		_ = i
	}
	decoded, err := base64.StdEncoding.DecodeString(b64.String())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(decoded, payload) {
		t.Fatalf("round-trip mismatch: got %d bytes, want %d", len(decoded), len(payload))
	}
}

func TestTransmitChunksSingleBlock(t *testing.T) {
	chunks := TransmitChunks([]byte{1, 2, 3, 4}, 2, 2, RGBA, 7, false, nil)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for tiny payload, got %d", len(chunks))
	}
	if !strings.Contains(string(chunks[0]), ",m=0;") {
		t.Errorf("single chunk should be final (m=0)")
	}
}

func TestDeleteByID(t *testing.T) {
	got := string(DeleteByID(42, false))
	want := "\x1b_Gq=2,a=d,d=i,i=42\x1b\\"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestDeleteAllCoversBothVariants(t *testing.T) {
	got := string(DeleteAll(false))
	if !strings.Contains(got, "d=a") || !strings.Contains(got, "d=A") {
		t.Fatalf("expected both d=a and d=A, got %q", got)
	}
}

func TestPlaceRowsClampsOutOfRangeIndex(t *testing.T) {
	area := geom.Rect{X: 0, Y: 0, Width: 1, Height: 400}
	rows := PlaceRows(area, 1)
	if len(rows) != 400 {
		t.Fatalf("expected 400 rows, got %d", len(rows))
	}
	// Should not panic for y >= 297; diacritic() clamps internally.
	// Row 300's row diacritic clamps to the table's first entry, as do the
	// column (0) and zero high-octet diacritics.
	want := string(kitty.Placeholder) + string(kitty.Diacritic(0)) + string(kitty.Diacritic(0)) + string(kitty.Diacritic(0))
	if !strings.Contains(string(rows[300]), want) {
		t.Fatalf("row 300 did not clamp its row diacritic to the first table entry: %q", rows[300])
	}
}

func TestPlaceRowsAlwaysWritesThreeDiacriticsPerCell(t *testing.T) {
	table := make(map[rune]bool, diacriticTableSize)
	for i := 0; i < diacriticTableSize; i++ {
		table[kitty.Diacritic(i)] = true
	}

	// id=1 has a zero high octet; the identifier diacritic must still be
	// emitted (as the table's first entry) for every cell.
	area := geom.Rect{X: 0, Y: 0, Width: 3, Height: 2}
	for _, row := range PlaceRows(area, 1) {
		placeholders, diacritics := 0, 0
		for _, r := range string(row) {
			switch {
			case r == kitty.Placeholder:
				placeholders++
			case table[r]:
				diacritics++
			}
		}
		if placeholders != area.Width {
			t.Fatalf("expected %d placeholders per row, got %d", area.Width, placeholders)
		}
		if diacritics != area.Width*3 {
			t.Fatalf("expected %d diacritics per row (three per cell), got %d", area.Width*3, diacritics)
		}
	}
}

func TestDeriveIDChannelsAreSafe(t *testing.T) {
	for _, pid := range []int{1, 2, 100, 99999, 0} {
		id := DeriveID(pid)
		b0 := byte(id)
		b1 := byte(id >> 8)
		b2 := byte(id >> 16)
		if b0 < 0x10 || b1 < 0x10 || b2 < 0x10 {
			t.Errorf("pid %d: id=%08x has an unsafe near-zero octet", pid, id)
		}
	}
}

func TestDeriveIDStableForSamePID(t *testing.T) {
	if DeriveID(4242) != DeriveID(4242) {
		t.Fatalf("DeriveID should be a pure function of pid")
	}
}
