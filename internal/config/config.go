// Package config loads the optional HCL settings file:
//
//	history_limit          = 50
//	paste_offset           = 20
//	default_template_width = 800
//	log_level              = "info"
//	presets_db             = "presets.db"
//
// Every attribute is optional; missing ones keep their defaults.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/agentic-research/folio/internal/editor"
	"github.com/agentic-research/folio/internal/history"
	"github.com/agentic-research/folio/internal/layout"
	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/rs/zerolog"
)

// ErrInvalid is returned for a file that parses but holds unusable values.
var ErrInvalid = errors.New("invalid configuration")

// DefaultPath is where the CLI looks when no --config flag is given.
const DefaultPath = "folio.hcl"

// Config holds the editor and CLI settings.
type Config struct {
	HistoryLimit          int     `hcl:"history_limit,optional" validate:"gte=1,lte=10000"`
	PasteOffset           float64 `hcl:"paste_offset,optional" validate:"gte=0"`
	DefaultTemplateWidth  float64 `hcl:"default_template_width,optional" validate:"gt=0"`
	DefaultTemplateHeight float64 `hcl:"default_template_height,optional" validate:"gt=0"`
	LogLevel              string  `hcl:"log_level,optional" validate:"oneof=trace debug info warn error"`
	LogFile               string  `hcl:"log_file,optional"`
	PresetsDB             string  `hcl:"presets_db,optional" validate:"required"`
}

var validate = validator.New()

// Default returns the built-in settings.
func Default() *Config {
	opts := layout.DefaultOptions()
	return &Config{
		HistoryLimit:          history.DefaultLimit,
		PasteOffset:           opts.PasteOffset,
		DefaultTemplateWidth:  opts.TemplateWidth,
		DefaultTemplateHeight: opts.TemplateHeight,
		LogLevel:              "info",
		PresetsDB:             "presets.db",
	}
}

// Parse decodes HCL source over the defaults. filename is used in
// diagnostics and must end in .hcl.
func Parse(filename string, src []byte) (*Config, error) {
	cfg := Default()
	if err := hclsimple.Decode(filename, src, nil, cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, filename, err)
	}
	return cfg, nil
}

// Load reads the file at path. When optional is set, a missing file yields
// the defaults.
func Load(path string, optional bool) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, src)
}

// Layout returns the template and paste settings.
func (c *Config) Layout() layout.Options {
	return layout.Options{
		PasteOffset:    c.PasteOffset,
		TemplateWidth:  c.DefaultTemplateWidth,
		TemplateHeight: c.DefaultTemplateHeight,
	}
}

// Editor returns session options logging to log.
func (c *Config) Editor(log zerolog.Logger) editor.Options {
	return editor.Options{
		Layout:       c.Layout(),
		HistoryLimit: c.HistoryLimit,
		Logger:       log,
	}
}
