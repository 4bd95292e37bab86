package imageproc

import (
	"testing"

	"github.com/kan-bayashi/svt/internal/geom"
	"github.com/kan-bayashi/svt/internal/mode"
)

func TestComputeTargetNormalLeavesSmallImageAlone(t *testing.T) {
	got := ComputeTarget(geom.Size{W: 100, H: 50}, geom.Size{W: 800, H: 600}, mode.Normal)
	if got != (geom.Size{W: 100, H: 50}) {
		t.Fatalf("got %+v, want unchanged size", got)
	}
}

func TestComputeTargetNormalShrinksOversized(t *testing.T) {
	got := ComputeTarget(geom.Size{W: 2000, H: 1000}, geom.Size{W: 800, H: 600}, mode.Normal)
	// scale = min(800/2000, 600/1000) = min(0.4, 0.6) = 0.4
	want := geom.Size{W: 800, H: 400}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestComputeTargetFitAlwaysScalesAndMayUpscale(t *testing.T) {
	got := ComputeTarget(geom.Size{W: 100, H: 50}, geom.Size{W: 800, H: 600}, mode.Fit)
	// scale = min(800/100, 600/50) = min(8, 12) = 8
	want := geom.Size{W: 800, H: 400}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestComputeTargetMinimumOnePixel(t *testing.T) {
	got := ComputeTarget(geom.Size{W: 10000, H: 1}, geom.Size{W: 1, H: 1}, mode.Fit)
	if got.W < 1 || got.H < 1 {
		t.Fatalf("got %+v, dimensions must be >= 1", got)
	}
}

func TestApplyPixelBudgetLeavesUnderBudgetAlone(t *testing.T) {
	got := applyPixelBudget(geom.Size{W: 100, H: 100}, 1_500_000)
	if got != (geom.Size{W: 100, H: 100}) {
		t.Fatalf("got %+v, want unchanged", got)
	}
}

func TestApplyPixelBudgetDownscalesOverBudget(t *testing.T) {
	// 2000x2000 = 4,000,000 pixels, budget 1,000,000 -> down = sqrt(0.25) = 0.5
	got := applyPixelBudget(geom.Size{W: 2000, H: 2000}, 1_000_000)
	want := geom.Size{W: 1000, H: 1000}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if got.W*got.H > 1_000_000 {
		t.Fatalf("result %+v still exceeds budget", got)
	}
}

func TestResampleFilterCoversAllEnumValues(t *testing.T) {
	for _, f := range []mode.Filter{
		mode.FilterNearest, mode.FilterTriangle, mode.FilterCatmullRom,
		mode.FilterGaussian, mode.FilterLanczos3,
	} {
		// Just ensure no panic / zero-value fallthrough surprises.
		_ = resampleFilter(f)
	}
}
