package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/lucidpdf/textlayer/fonts"
	"github.com/lucidpdf/textlayer/overlay"
)

// Profile is an engine tuning file. Zero-valued fields keep the engine
// defaults, so a profile only states what it changes:
//
//	calibration = 0.9
//	min_font_size = 6
//	font_file = "fonts/NotoSans-Regular.ttf"
type Profile struct {
	Calibration        float64 `toml:"calibration"`
	MinFontSize        float64 `toml:"min_font_size"`
	MaxFontSize        float64 `toml:"max_font_size"`
	MinHorizontalScale float64 `toml:"min_horizontal_scale"`

	// FontFile embeds a TrueType face instead of built-in Helvetica.
	// FontName overrides the face name recorded in the output.
	FontFile string `toml:"font_file"`
	FontName string `toml:"font_name"`
}

// LoadProfile reads and validates a TOML tuning profile.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("config: read profile: %w", err)
	}
	var p Profile
	if err := toml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("config: parse profile %s: %w", path, err)
	}
	if err := p.validate(); err != nil {
		return Profile{}, fmt.Errorf("config: profile %s: %w", path, err)
	}
	return p, nil
}

func (p Profile) validate() error {
	if p.Calibration < 0 {
		return fmt.Errorf("calibration must be positive, got %g", p.Calibration)
	}
	if p.MinFontSize < 0 || p.MaxFontSize < 0 {
		return fmt.Errorf("font size bounds must be positive")
	}
	if p.MinFontSize > 0 && p.MaxFontSize > 0 && p.MaxFontSize < p.MinFontSize {
		return fmt.Errorf("max_font_size %g below min_font_size %g", p.MaxFontSize, p.MinFontSize)
	}
	if p.MinHorizontalScale < 0 || p.MinHorizontalScale > 1 {
		return fmt.Errorf("min_horizontal_scale must be within (0, 1], got %g", p.MinHorizontalScale)
	}
	return nil
}

// Apply folds the profile into an engine config, loading the font file
// when one is named.
func (p Profile) Apply(cfg overlay.Config) (overlay.Config, error) {
	if p.Calibration > 0 {
		cfg.Calibration = p.Calibration
	}
	if p.MinFontSize > 0 {
		cfg.MinFontSize = p.MinFontSize
	}
	if p.MaxFontSize > 0 {
		cfg.MaxFontSize = p.MaxFontSize
	}
	if p.MinHorizontalScale > 0 {
		cfg.MinHorizontalScale = p.MinHorizontalScale
	}
	if p.FontFile != "" {
		data, err := os.ReadFile(p.FontFile)
		if err != nil {
			return cfg, fmt.Errorf("config: read font: %w", err)
		}
		name := p.FontName
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(p.FontFile), filepath.Ext(p.FontFile))
		}
		face, err := fonts.LoadTrueType(name, data)
		if err != nil {
			return cfg, fmt.Errorf("config: load font %s: %w", p.FontFile, err)
		}
		cfg.Font = face
	}
	return cfg, nil
}
