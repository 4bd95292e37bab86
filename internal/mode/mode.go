// Package mode holds the small enumerations shared across the processor,
// prefetch pool, writer, and orchestrator: view mode, fit mode, and the
// resize filter selector.
package mode

// ViewMode selects between a single full-screen image and a tile grid.
type ViewMode int

const (
	Single ViewMode = iota
	Tile
)

func (m ViewMode) String() string {
	if m == Tile {
		return "tile"
	}
	return "single"
}

// FitMode selects whether resizing may only shrink (Normal) or may also
// upscale to fill the viewport (Fit).
type FitMode int

const (
	Normal FitMode = iota
	Fit
)

// Next toggles between Normal and Fit.
func (m FitMode) Next() FitMode {
	if m == Fit {
		return Normal
	}
	return Fit
}

func (m FitMode) String() string {
	if m == Fit {
		return "fit"
	}
	return "normal"
}

// Filter names a resize filter, independent of the resize library used to
// implement it.
type Filter int

const (
	FilterNearest Filter = iota
	FilterTriangle
	FilterCatmullRom
	FilterGaussian
	FilterLanczos3
)

// ParseFilter maps a config string to a Filter, defaulting to Triangle for
// unrecognized values (mirrors original_source/src/config.rs::parse_filter_type).
func ParseFilter(s string) Filter {
	switch s {
	case "nearest":
		return FilterNearest
	case "triangle":
		return FilterTriangle
	case "catmullrom", "catmull-rom":
		return FilterCatmullRom
	case "gaussian":
		return FilterGaussian
	case "lanczos3", "lanczos":
		return FilterLanczos3
	default:
		return FilterTriangle
	}
}

func (f Filter) String() string {
	switch f {
	case FilterNearest:
		return "nearest"
	case FilterTriangle:
		return "triangle"
	case FilterCatmullRom:
		return "catmullrom"
	case FilterGaussian:
		return "gaussian"
	case FilterLanczos3:
		return "lanczos3"
	default:
		return "triangle"
	}
}
