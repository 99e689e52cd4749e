// Package config loads kdimage settings from YAML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/setanarut/kdimage"
	"github.com/setanarut/kdimage/ppm"
	"github.com/setanarut/kdimage/utils"
	"gopkg.in/yaml.v3"
)

// Config is the full kdimage configuration.
type Config struct {
	Build   BuildConfig   `yaml:"build"`
	Output  OutputConfig  `yaml:"output"`
	Palette PaletteConfig `yaml:"palette"`
}

// BuildConfig mirrors kdimage.Options with file-friendly types.
type BuildConfig struct {
	MaxDepth          int    `yaml:"max_depth"`
	VarianceThreshold int    `yaml:"variance_threshold"`
	MinRegionPixels   int    `yaml:"min_region_pixels"`
	FirstAxis         string `yaml:"first_axis"` // vertical | horizontal
	Separators        bool   `yaml:"separators"`
	SeparatorColor    string `yaml:"separator_color"` // hex, e.g. "#ffffff"
	Seed              uint64 `yaml:"seed"`            // 0 picks a random seed
	Parallel          bool   `yaml:"parallel"`
	ParallelMinPixels int    `yaml:"parallel_min_pixels"`
}

// OutputConfig controls the written files.
type OutputConfig struct {
	Format   string `yaml:"format"`    // ascii | binary (PPM outputs only)
	MaxWidth int    `yaml:"max_width"` // downscale wider inputs, 0 keeps the size
}

// PaletteConfig controls the dominant color report.
type PaletteConfig struct {
	Size   int    `yaml:"size"`
	Method string `yaml:"method"` // dominantcolor | kmeans
}

// DefaultConfig returns the settings matching kdimage.DefaultOptions.
func DefaultConfig() *Config {
	opt := kdimage.DefaultOptions()
	return &Config{
		Build: BuildConfig{
			MaxDepth:          opt.MaxDepth,
			VarianceThreshold: opt.VarianceThreshold,
			MinRegionPixels:   opt.MinRegionPixels,
			FirstAxis:         opt.FirstAxis.String(),
			SeparatorColor:    opt.SeparatorColor.String(),
			ParallelMinPixels: opt.ParallelMinPixels,
		},
		Output: OutputConfig{
			Format: ppm.FormatASCII.String(),
		},
		Palette: PaletteConfig{
			Size:   6,
			Method: utils.PaletteMethodDominantColor.String(),
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.BuilderOptions(); err != nil {
		errs = append(errs, err)
	}
	if _, err := ppm.ParseFormat(c.Output.Format); err != nil {
		errs = append(errs, fmt.Errorf("output.format: %w", err))
	}
	if c.Output.MaxWidth < 0 {
		errs = append(errs, fmt.Errorf("output.max_width must be >= 0"))
	}
	if c.Palette.Size < 0 {
		errs = append(errs, fmt.Errorf("palette.size must be >= 0"))
	}
	if _, err := utils.ParsePaletteMethod(c.Palette.Method); err != nil {
		errs = append(errs, fmt.Errorf("palette.method: %w", err))
	}
	return errors.Join(errs...)
}

// BuilderOptions converts the build section to kdimage.Options.
func (c *Config) BuilderOptions() (kdimage.Options, error) {
	b := c.Build
	opt := kdimage.Options{
		MaxDepth:          b.MaxDepth,
		VarianceThreshold: b.VarianceThreshold,
		MinRegionPixels:   b.MinRegionPixels,
		DrawSeparators:    b.Separators,
		Parallel:          b.Parallel,
		ParallelMinPixels: b.ParallelMinPixels,
	}
	axis, err := ParseAxis(b.FirstAxis)
	if err != nil {
		return opt, fmt.Errorf("build.first_axis: %w", err)
	}
	opt.FirstAxis = axis
	sep, err := ParseColor(b.SeparatorColor)
	if err != nil {
		return opt, fmt.Errorf("build.separator_color: %w", err)
	}
	opt.SeparatorColor = sep
	if err := opt.Validate(); err != nil {
		return opt, fmt.Errorf("build: %w", err)
	}
	return opt, nil
}

func ParseAxis(s string) (kdimage.Axis, error) {
	switch strings.ToLower(s) {
	case "vertical", "v", "x", "":
		return kdimage.Vertical, nil
	case "horizontal", "h", "y":
		return kdimage.Horizontal, nil
	}
	return 0, fmt.Errorf("unknown axis %q", s)
}

// ParseColor accepts "#rrggbb" or "rrggbb".
func ParseColor(s string) (kdimage.Color, error) {
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return kdimage.Color{}, err
	}
	r, g, b := c.RGB255()
	return kdimage.Color{R: r, G: g, B: b}, nil
}
