package geom

import "testing"

func TestIntersectEdgeTouching(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 10, Height: 10}
	b := Rect{X: 10, Y: 0, Width: 10, Height: 10}
	if _, ok := Intersect(a, b); ok {
		t.Fatalf("edge-touching rectangles should not intersect")
	}
}

func TestDiffCoversSetDifference(t *testing.T) {
	old := Rect{X: 0, Y: 0, Width: 10, Height: 10}
	newR := Rect{X: 5, Y: 5, Width: 10, Height: 10}

	strips := Diff(old, newR)

	area := 0
	seen := map[[4]int]bool{}
	for _, s := range strips {
		key := [4]int{s.X, s.Y, s.Width, s.Height}
		if seen[key] {
			t.Fatalf("duplicate strip %+v", s)
		}
		seen[key] = true
		area += s.Width * s.Height
		for _, other := range strips {
			if other == s {
				continue
			}
			if _, ok := Intersect(s, other); ok {
				t.Fatalf("strips %+v and %+v overlap", s, other)
			}
		}
	}

	if area != 75 {
		t.Fatalf("expected total strip area 75 (scenario 4 of spec), got %d", area)
	}
}

func TestDiffNoOverlapReturnsWholeOld(t *testing.T) {
	old := Rect{X: 0, Y: 0, Width: 5, Height: 5}
	newR := Rect{X: 100, Y: 100, Width: 5, Height: 5}
	strips := Diff(old, newR)
	if len(strips) != 1 || strips[0] != old {
		t.Fatalf("expected whole old rect back, got %+v", strips)
	}
}

func TestDiffFullyCoveredReturnsNoStrips(t *testing.T) {
	old := Rect{X: 2, Y: 2, Width: 4, Height: 4}
	newR := Rect{X: 0, Y: 0, Width: 20, Height: 20}
	strips := Diff(old, newR)
	if len(strips) != 0 {
		t.Fatalf("expected no strips when fully covered, got %+v", strips)
	}
}

func TestUnionEnclosesBoth(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 5, Height: 5}
	b := Rect{X: 10, Y: 10, Width: 5, Height: 5}
	u := Union(a, b)
	want := Rect{X: 0, Y: 0, Width: 15, Height: 15}
	if u != want {
		t.Fatalf("got %+v, want %+v", u, want)
	}
}

// TestTileBoundaryAgreesAcrossCallers drives the two real call shapes:
// internal/imageproc/tile.go's compositor (cell count scaled out by the
// cell pixel size) and internal/writer/cursor.go's cursorBox (same cell
// count with cellPixels=1), and checks the compositor's pixel boundary is
// exactly the cursor's cell boundary multiplied out — i.e. every tile edge
// is cell-aligned.
func TestTileBoundaryAgreesAcrossCallers(t *testing.T) {
	for _, tc := range []struct {
		areaCellWidth, cellPixelWidth, cols int
	}{
		{81, 10, 4},
		{40, 8, 3},
		{123, 9, 7},
	} {
		for col := 0; col <= tc.cols; col++ {
			pixelBoundary := TileBoundary(col, tc.areaCellWidth, tc.cols, tc.cellPixelWidth)
			cellBoundary := TileBoundary(col, tc.areaCellWidth, tc.cols, 1)
			if pixelBoundary != cellBoundary*tc.cellPixelWidth {
				t.Fatalf("compositor/cursor boundary mismatch for col=%d %+v: pixelBoundary=%d, cellBoundary=%d",
					col, tc, pixelBoundary, cellBoundary)
			}
		}
	}
}
