// Package config loads the optional pricetag.hcl file.
//
//	currency        = "₹"
//	installed_fonts = ["Inter/Regular", "Inter/Bold"]
//	pages_selector  = "$.document.children[*]"
//
//	fallback_font {
//	  family = "Inter"
//	  style  = "Regular"
//	}
//
//	associate {
//	  row_tolerance = 8
//	  row_slack     = 4
//	  nearest_slack = 40
//	  left_penalty  = 10
//	}
//
//	export { scale = 2 }
//
//	log {
//	  level  = "info"
//	  format = "text"
//	}
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/agentic-research/pricetag/internal/associate"
	"github.com/agentic-research/pricetag/internal/graph"
	"github.com/agentic-research/pricetag/internal/logging"
	"github.com/hashicorp/hcl/v2/hclsimple"
)

// DefaultFile is read when no path is given and the file exists.
const DefaultFile = "pricetag.hcl"

type Config struct {
	Currency       string   `hcl:"currency,optional"`
	InstalledFonts []string `hcl:"installed_fonts,optional"`
	PagesSelector  string   `hcl:"pages_selector,optional"`

	FallbackFont *FontBlock      `hcl:"fallback_font,block"`
	Associate    *AssociateBlock `hcl:"associate,block"`
	Export       *ExportBlock    `hcl:"export,block"`
	Log          *LogBlock       `hcl:"log,block"`
}

type FontBlock struct {
	Family string `hcl:"family,optional"`
	Style  string `hcl:"style,optional"`
}

type AssociateBlock struct {
	RowTolerance float64 `hcl:"row_tolerance,optional"`
	RowSlack     float64 `hcl:"row_slack,optional"`
	NearestSlack float64 `hcl:"nearest_slack,optional"`
	LeftPenalty  float64 `hcl:"left_penalty,optional"`
}

type ExportBlock struct {
	Scale float64 `hcl:"scale,optional"`
}

type LogBlock struct {
	Level  string `hcl:"level,optional"`
	Format string `hcl:"format,optional"`
}

// Default returns the built-in settings.
func Default() *Config {
	a := associate.DefaultOptions()
	return &Config{
		Currency:      "₹",
		PagesSelector: "$.document.children[*]",
		FallbackFont:  &FontBlock{Family: "Inter", Style: "Regular"},
		Associate: &AssociateBlock{
			RowTolerance: a.RowTolerance,
			RowSlack:     a.RowSlack,
			NearestSlack: a.NearestSlack,
			LeftPenalty:  a.LeftPenalty,
		},
		Export: &ExportBlock{Scale: 2},
		Log:    &LogBlock{Level: "info", Format: "text"},
	}
}

// Parse decodes src over the defaults. filename must end in .hcl or .json.
func Parse(filename string, src []byte) (*Config, error) {
	cfg := Default()
	if err := hclsimple.Decode(filename, src, nil, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", filename, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", filename, err)
	}
	return cfg, nil
}

// Load reads path. An empty path falls back to DefaultFile, whose absence is
// not an error; an explicit path must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	src, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, src)
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	var errs []error
	if a := c.Associate; a != nil {
		for _, f := range []struct {
			name string
			v    float64
		}{
			{"row_tolerance", a.RowTolerance},
			{"row_slack", a.RowSlack},
			{"nearest_slack", a.NearestSlack},
			{"left_penalty", a.LeftPenalty},
		} {
			if f.v < 0 {
				errs = append(errs, fmt.Errorf("associate.%s must not be negative, got %v", f.name, f.v))
			}
		}
	}
	if c.Export != nil && c.Export.Scale <= 0 {
		errs = append(errs, fmt.Errorf("export.scale must be positive, got %v", c.Export.Scale))
	}
	if c.FallbackFont != nil && c.FallbackFont.Family == "" {
		errs = append(errs, errors.New("fallback_font.family must be set"))
	}
	if c.Log != nil {
		if _, err := logging.ParseLevel(c.Log.Level); err != nil {
			errs = append(errs, fmt.Errorf("log.level: %w", err))
		}
		if f := c.Log.Format; f != "" && f != "text" && f != "json" {
			errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", f))
		}
	}
	if strings.TrimSpace(c.PagesSelector) == "" {
		errs = append(errs, errors.New("pages_selector must be set"))
	}
	if _, err := c.Fonts(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// AssociateOptions converts the associate block.
func (c *Config) AssociateOptions() associate.Options {
	if c.Associate == nil {
		return associate.DefaultOptions()
	}
	return associate.Options{
		LeftPenalty:  c.Associate.LeftPenalty,
		RowTolerance: c.Associate.RowTolerance,
		RowSlack:     c.Associate.RowSlack,
		NearestSlack: c.Associate.NearestSlack,
	}
}

// Fallback returns the fallback font.
func (c *Config) Fallback() graph.FontName {
	if c.FallbackFont == nil {
		return graph.FontName{Family: "Inter", Style: "Regular"}
	}
	return graph.FontName{Family: c.FallbackFont.Family, Style: c.FallbackFont.Style}
}

// LogLevel returns the parsed log level, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	if c.Log == nil {
		return slog.LevelInfo
	}
	lvl, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// LogFormat returns "text" or "json".
func (c *Config) LogFormat() string {
	if c.Log == nil || c.Log.Format == "" {
		return "text"
	}
	return c.Log.Format
}

// ExportScale returns the configured raster scale.
func (c *Config) ExportScale() float64 {
	if c.Export == nil {
		return 2
	}
	return c.Export.Scale
}

// Fonts parses installed_fonts entries of the form "Family/Style".
// A nil result means no catalog was configured.
func (c *Config) Fonts() ([]graph.FontName, error) {
	if len(c.InstalledFonts) == 0 {
		return nil, nil
	}
	out := make([]graph.FontName, 0, len(c.InstalledFonts))
	for _, s := range c.InstalledFonts {
		f, err := ParseFont(s)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// ParseFont splits "Family/Style". The style is everything after the last slash.
func ParseFont(s string) (graph.FontName, error) {
	i := strings.LastIndex(s, "/")
	if i <= 0 || i == len(s)-1 {
		return graph.FontName{}, fmt.Errorf("installed font %q: want Family/Style", s)
	}
	return graph.FontName{
		Family: strings.TrimSpace(s[:i]),
		Style:  strings.TrimSpace(s[i+1:]),
	}, nil
}
