// Package config loads the optional YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the full slide-editor configuration.
type Config struct {
	Editor  EditorConfig  `yaml:"editor"`
	Ingest  IngestConfig  `yaml:"ingest"`
	OCR     OCRConfig     `yaml:"ocr"`
	Inpaint InpaintConfig `yaml:"inpaint"`
	Export  ExportConfig  `yaml:"export"`
	Fonts   []FontFile    `yaml:"fonts"`
	Log     LogConfig     `yaml:"log"`
}

// EditorConfig tunes the canvas interaction and history.
type EditorConfig struct {
	MinRectSize  float64 `yaml:"min_rect_size"`
	HandleSize   float64 `yaml:"handle_size"`
	PanStep      float64 `yaml:"pan_step"`
	ZoomStep     float64 `yaml:"zoom_step"`
	MinZoom      float64 `yaml:"min_zoom"`
	MaxZoom      float64 `yaml:"max_zoom"`
	FitMargin    float64 `yaml:"fit_margin"`
	HistoryDepth int     `yaml:"history_depth"`
}

// IngestConfig limits uploads and configures PDF rasterization.
type IngestConfig struct {
	MaxFileSize int64  `yaml:"max_file_size"` // bytes
	PDFDPI      int    `yaml:"pdf_dpi"`
	Pdftoppm    string `yaml:"pdftoppm"` // executable name or path
}

// OCRConfig configures Tesseract.
type OCRConfig struct {
	Languages     string  `yaml:"languages"` // e.g. "eng+kor+jpn"
	TessdataPath  string  `yaml:"tessdata_path"`
	MinConfidence float64 `yaml:"min_confidence"`
}

// InpaintConfig configures background reconstruction.
type InpaintConfig struct {
	Enabled *bool   `yaml:"enabled"`
	Method  string  `yaml:"method"` // telea | ns
	Radius  float64 `yaml:"radius"`
	Feather int     `yaml:"feather"`
	Dilate  int     `yaml:"dilate"`
}

// ExportConfig configures slide export.
type ExportConfig struct {
	JPEGQuality int `yaml:"jpeg_quality"`
}

// FontFile registers a TrueType or OpenType file under a family name.
type FontFile struct {
	Family string `yaml:"family"`
	Weight string `yaml:"weight"` // normal | bold
	Path   string `yaml:"path"`
}

// LogConfig configures the default slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	e := &c.Editor
	if e.MinRectSize == 0 {
		e.MinRectSize = 5
	}
	if e.HandleSize == 0 {
		e.HandleSize = 8
	}
	if e.PanStep == 0 {
		e.PanStep = 50
	}
	if e.ZoomStep == 0 {
		e.ZoomStep = 0.1
	}
	if e.MinZoom == 0 {
		e.MinZoom = 0.1
	}
	if e.MaxZoom == 0 {
		e.MaxZoom = 10
	}
	if e.FitMargin == 0 {
		e.FitMargin = 80
	}
	if e.HistoryDepth == 0 {
		e.HistoryDepth = 50
	}

	if c.Ingest.MaxFileSize == 0 {
		c.Ingest.MaxFileSize = 50 << 20
	}
	if c.Ingest.PDFDPI == 0 {
		c.Ingest.PDFDPI = 144
	}
	if c.Ingest.Pdftoppm == "" {
		c.Ingest.Pdftoppm = "pdftoppm"
	}

	if c.OCR.Languages == "" {
		c.OCR.Languages = "eng+kor+jpn"
	}

	if c.Inpaint.Enabled == nil {
		on := true
		c.Inpaint.Enabled = &on
	}
	if c.Inpaint.Method == "" {
		c.Inpaint.Method = "telea"
	}
	if c.Inpaint.Radius == 0 {
		c.Inpaint.Radius = 5
	}
	if c.Inpaint.Feather == 0 {
		c.Inpaint.Feather = 8
	}
	if c.Inpaint.Dilate == 0 {
		c.Inpaint.Dilate = 3
	}

	if c.Export.JPEGQuality == 0 {
		c.Export.JPEGQuality = 95
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// DefaultPath returns ~/.config/slide-editor/config.yaml or the platform
// equivalent.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(dir, "slide-editor", "config.yaml")
}

// Load reads path and fills unset fields with defaults. A missing file is
// not an error and yields DefaultConfig.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML config data and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

// Validate checks that values are consistent.
func (c *Config) Validate() error {
	e := c.Editor
	if e.MinZoom <= 0 || e.MaxZoom <= 0 {
		return fmt.Errorf("editor: zoom limits must be > 0")
	}
	if e.MinZoom > e.MaxZoom {
		return fmt.Errorf("editor: min_zoom %g exceeds max_zoom %g", e.MinZoom, e.MaxZoom)
	}
	if e.MinRectSize < 0 || e.HandleSize <= 0 || e.PanStep <= 0 {
		return fmt.Errorf("editor: sizes must be positive")
	}
	if e.ZoomStep <= 0 || e.ZoomStep >= 1 {
		return fmt.Errorf("editor: zoom_step must be in (0, 1)")
	}
	if e.HistoryDepth < 0 {
		return fmt.Errorf("editor: history_depth must be >= 0")
	}
	if c.Ingest.MaxFileSize < 0 {
		return fmt.Errorf("ingest: max_file_size must be > 0")
	}
	if c.Ingest.PDFDPI < 36 || c.Ingest.PDFDPI > 600 {
		return fmt.Errorf("ingest: pdf_dpi %d out of range 36-600", c.Ingest.PDFDPI)
	}
	switch c.Inpaint.Method {
	case "telea", "ns":
	default:
		return fmt.Errorf("inpaint: unsupported method %q (use telea or ns)", c.Inpaint.Method)
	}
	if c.Export.JPEGQuality < 1 || c.Export.JPEGQuality > 100 {
		return fmt.Errorf("export: jpeg_quality must be 1-100")
	}
	for i, f := range c.Fonts {
		if f.Family == "" || f.Path == "" {
			return fmt.Errorf("fonts[%d]: family and path are required", i)
		}
		switch strings.ToLower(f.Weight) {
		case "", "normal", "bold":
		default:
			return fmt.Errorf("fonts[%d]: unsupported weight %q", i, f.Weight)
		}
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// InpaintEnabled reports whether background reconstruction is on.
func (c *Config) InpaintEnabled() bool {
	return c.Inpaint.Enabled == nil || *c.Inpaint.Enabled
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log: %w", err)
	}
	return lvl, nil
}

// NewLogger builds a logger writing to stderr per the log section.
func (l LogConfig) NewLogger() *slog.Logger {
	lvl, err := l.SlogLevel()
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
