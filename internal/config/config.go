// Package config loads svt's configuration with environment variables
// taking precedence over a JSON config file, which takes precedence over
// built-in defaults; every value is clamped to a safe range afterward.
package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// Config mirrors every tunable the processor, prefetch pool, and writer
// read at startup.
type Config struct {
	NavLatchMS         uint64  `json:"nav_latch_ms"`
	ForceAltScreen     bool    `json:"force_alt_screen"`
	NoAltScreen        bool    `json:"no_alt_screen"`
	RenderCacheSize    int     `json:"render_cache_size"`
	ThumbnailCacheSize int     `json:"thumbnail_cache_size"`
	PrefetchCount      int     `json:"prefetch_count"`
	Debug              bool    `json:"debug"`
	KgpNoCompress      bool    `json:"kgp_no_compress"`
	CompressLevel      int     `json:"compress_level"`
	TmuxKittyMaxPixels uint64  `json:"tmux_kitty_max_pixels"`
	TraceWorker        bool    `json:"trace_worker"`
	WorkerTracePath    string  `json:"worker_trace_path"`
	CellAspectRatio    float64 `json:"cell_aspect_ratio"`
	ResizeFilter       string  `json:"resize_filter"`
	TileFilter         string  `json:"tile_filter"`
	PrefetchThreads    int     `json:"prefetch_threads"`
	TileThreads        int     `json:"tile_threads"`
}

// Default returns the built-in configuration, matching the original
// implementation's defaults field for field.
func Default() Config {
	return Config{
		NavLatchMS:         150,
		RenderCacheSize:    100,
		ThumbnailCacheSize: 500,
		PrefetchCount:      5,
		CompressLevel:      6,
		TmuxKittyMaxPixels: 1_500_000,
		WorkerTracePath:    filepath.Join(os.TempDir(), "svt-worker.log"),
		CellAspectRatio:    2.0,
		ResizeFilter:       "triangle",
		TileFilter:         "nearest",
		PrefetchThreads:    2,
		TileThreads:        4,
	}
}

// Load reads the config file (if present), applies environment overrides,
// clamps every value, and returns the result. Never returns an error: a
// missing or unreadable file just falls back to defaults, matching the
// "best-effort config" posture of the original.
func Load() Config {
	cfg := loadFromFile()
	cfg.applyEnvOverrides()
	cfg.clamp()
	return cfg
}

func configPath() (string, bool) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", false
	}
	return filepath.Join(dir, "svt", "config.json"), true
}

func loadFromFile() Config {
	cfg := Default()
	path, ok := configPath()
	if !ok {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		slog.Warn("failed to parse config file, using defaults", "path", path, "error", err)
		return Default()
	}
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v, ok := envUint64("SVT_NAV_LATCH_MS"); ok {
		c.NavLatchMS = v
	}
	if _, ok := os.LookupEnv("SVT_FORCE_ALT_SCREEN"); ok {
		c.ForceAltScreen = true
	}
	if _, ok := os.LookupEnv("SVT_NO_ALT_SCREEN"); ok {
		c.NoAltScreen = true
	}
	if v, ok := envInt("SVT_RENDER_CACHE_SIZE"); ok {
		c.RenderCacheSize = v
	}
	if v, ok := envInt("SVT_THUMBNAIL_CACHE_SIZE"); ok {
		c.ThumbnailCacheSize = v
	}
	if v, ok := envInt("SVT_PREFETCH_COUNT"); ok {
		c.PrefetchCount = v
	}
	if _, ok := os.LookupEnv("SVT_DEBUG"); ok {
		c.Debug = true
	}
	if _, ok := os.LookupEnv("SVT_KGP_NO_COMPRESS"); ok {
		c.KgpNoCompress = true
	}
	if v, ok := envInt("SVT_COMPRESS_LEVEL"); ok {
		c.CompressLevel = v
	}
	if v, ok := envUint64("SVT_TMUX_KITTY_MAX_PIXELS"); ok {
		c.TmuxKittyMaxPixels = v
	}
	if _, ok := os.LookupEnv("SVT_TRACE_WORKER"); ok {
		c.TraceWorker = true
	}
	if v, ok := os.LookupEnv("SVT_WORKER_TRACE_PATH"); ok {
		c.WorkerTracePath = v
	}
	if v, ok := envFloat("SVT_CELL_ASPECT_RATIO"); ok {
		c.CellAspectRatio = v
	}
	if v, ok := os.LookupEnv("SVT_RESIZE_FILTER"); ok {
		c.ResizeFilter = v
	}
	if v, ok := os.LookupEnv("SVT_TILE_FILTER"); ok {
		c.TileFilter = v
	}
	if v, ok := envInt("SVT_PREFETCH_THREADS"); ok {
		c.PrefetchThreads = v
	}
	if v, ok := envInt("SVT_TILE_THREADS"); ok {
		c.TileThreads = v
	}
}

const (
	maxNavLatchMS      = 5_000
	maxRenderCacheSize = 500
	maxThumbCacheSize  = 2_000
	maxCompressLevel   = 9
)

func (c *Config) clamp() {
	if c.NavLatchMS > maxNavLatchMS {
		c.NavLatchMS = maxNavLatchMS
	}
	c.RenderCacheSize = clampInt(c.RenderCacheSize, 1, maxRenderCacheSize)
	c.ThumbnailCacheSize = clampInt(c.ThumbnailCacheSize, 1, maxThumbCacheSize)
	c.CompressLevel = clampInt(c.CompressLevel, 0, maxCompressLevel)
	c.CellAspectRatio = clampFloat(c.CellAspectRatio, 1.0, 4.0)
	c.PrefetchThreads = clampInt(c.PrefetchThreads, 1, 8)
	c.TileThreads = clampInt(c.TileThreads, 1, 8)
}

// CompressionLevel returns the zlib level to pass through to the codec, or
// nil when compression is disabled.
func (c Config) CompressionLevel() *int {
	if c.KgpNoCompress {
		return nil
	}
	lvl := c.CompressLevel
	return &lvl
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func envUint64(key string) (uint64, bool) {
	s, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envInt(key string) (int, bool) {
	s, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envFloat(key string) (float64, bool) {
	s, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
