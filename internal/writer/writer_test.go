package writer

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/kan-bayashi/svt/internal/geom"
)

func TestClipStatusClipsByDisplayWidth(t *testing.T) {
	if got := clipStatus("hello world", 5); got != "hello" {
		t.Fatalf("got %q", got)
	}
	if got := clipStatus("hi", 100); got != "hi" {
		t.Fatalf("got %q", got)
	}
	// CJK runes occupy two columns each: a 5-column budget fits two full
	// characters (4 columns) and must not split the third.
	if got := clipStatus("日本語", 5); got != "日本" {
		t.Fatalf("got %q, want two double-width characters in five columns", got)
	}
	if got := clipStatus("日本語テスト", 6); got != "日本語" {
		t.Fatalf("got %q, want three double-width characters in six columns", got)
	}
	if got := clipStatus("日本語", 0); got != "" {
		t.Fatalf("got %q, want empty at zero width", got)
	}
}

func waitResult(t *testing.T, w *Writer) Result {
	t.Helper()
	select {
	case r := <-w.Results():
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for writer result")
		return Result{}
	}
}

func TestImageTransmitOrderErasesThenDeletesThenPlaces(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, true)
	defer w.Shutdown()

	old := geom.Rect{X: 0, Y: 0, Width: 4, Height: 2}
	area := geom.Rect{X: 0, Y: 0, Width: 4, Height: 2}
	w.SendImageTransmit(ImageTransmitRequest{
		Chunks:  [][]byte{[]byte("\x1b_Gchunk\x1b\\")},
		Area:    area,
		KgpID:   7,
		OldArea: &old,
		Epoch:   1,
	})

	res := waitResult(t, w)
	if res.Kind != TransmitDone || res.KgpID != 7 || res.Epoch != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	out := buf.String()
	eraseIdx := strings.Index(out, "\x1b[1;1H\x1b[4X")
	deleteIdx := strings.Index(out, "\x1b_Gq=2,a=d,d=i,i=7")
	transmitIdx := strings.Index(out, "\x1b_Gchunk")
	if eraseIdx < 0 || deleteIdx < 0 || transmitIdx < 0 {
		t.Fatalf("missing expected segment in output: %q", out)
	}
	if !(eraseIdx < deleteIdx && deleteIdx < transmitIdx) {
		t.Fatalf("wrong order: erase=%d delete=%d transmit=%d, out=%q", eraseIdx, deleteIdx, transmitIdx, out)
	}
	// Placement rows open with the SGR foreground carrying id 7's low octets.
	placeIdx := strings.Index(out, "\x1b[38;2;0;0;7m")
	if placeIdx < 0 || placeIdx < transmitIdx {
		t.Fatalf("placement must follow transmit: transmit=%d place=%d, out=%q", transmitIdx, placeIdx, out)
	}
}

func TestCancelImageDoesNotErase(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, true)
	defer w.Shutdown()

	area := geom.Rect{X: 0, Y: 0, Width: 4, Height: 2}
	w.SendCancelImage(CancelImageRequest{Area: &area, Epoch: 5})

	// No result is sent for a bare cancel; give the writer a moment to
	// process the request and assert no erase escape made it to the wire.
	time.Sleep(50 * time.Millisecond)
	if strings.Contains(buf.String(), "X") && strings.Contains(buf.String(), "\x1b[4X") {
		t.Fatalf("cancel must not erase: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "\x1b[0m") {
		t.Fatalf("cancel should flush an SGR reset: %q", buf.String())
	}
}

// TestStatusOverrideExpiresOnItsOwn checks the deadline-backed override:
// the override text renders first, then the writer reverts to the base
// status on its own once the deadline passes, with no further requests.
func TestStatusOverrideExpiresOnItsOwn(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, true)
	defer w.Shutdown()

	w.SendStatus(StatusRequest{Text: "base status", Cols: 40, Rows: 24, Indicator: Ready})
	time.Sleep(30 * time.Millisecond)
	if !strings.Contains(buf.String(), "base status") {
		t.Fatalf("expected base status rendered, got %q", buf.String())
	}

	w.SendStatusOverride("Copied path", 60*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	if !strings.Contains(buf.String(), "Copied path") {
		t.Fatalf("expected override rendered, got %q", buf.String())
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		out := buf.String()
		if strings.LastIndex(out, "base status") > strings.LastIndex(out, "Copied path") {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("override never reverted to base status on its own: %q", buf.String())
}

func TestNonTTYCompletesWithoutWriting(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, false)
	defer w.Shutdown()

	w.SendImageTransmit(ImageTransmitRequest{
		Chunks: [][]byte{[]byte("\x1b_Gchunk\x1b\\")},
		Area:   geom.Rect{X: 0, Y: 0, Width: 2, Height: 2},
		KgpID:  3,
		Epoch:  1,
	})
	res := waitResult(t, w)
	if res.Kind != TransmitDone || res.KgpID != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if buf.Len() != 0 {
		t.Fatalf("non-tty writer must not write bytes, got %q", buf.String())
	}
}
