package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Locale is all location-specific configuration for one monitored region.
// Adding a region is adding a YAML file to the locales directory.
type Locale struct {
	Name        string `yaml:"-"` // file stem, set by the loader
	DisplayName string `yaml:"display_name"`

	// Fallback labels used when no member report resolved a sub-region.
	FallbackLocation    string `yaml:"fallback_location"`
	FallbackUnspecified string `yaml:"fallback_location_unspecified"`

	// Coverage circles. A report with coordinates inside any of them is
	// tagged with this region.
	Centers []Center `yaml:"centers"`

	// Keywords for relevance geography matching and keyword-based region
	// tagging.
	GeoKeywords []string `yaml:"geo_keywords"`

	// Gazetteer JSON files (sub-regions, landmarks), relative to the
	// locale file unless absolute.
	GazetteerFiles []string `yaml:"gazetteer_files"`

	// Feed URLs polled for this region.
	RSSFeeds []string `yaml:"rss_feeds"`
}

// Center is a coverage circle.
type Center struct {
	Lat      float64 `yaml:"lat"`
	Lon      float64 `yaml:"lon"`
	RadiusKm float64 `yaml:"radius_km"`
}

// LoadLocale reads a locale YAML file and resolves its gazetteer paths.
func LoadLocale(path string) (*Locale, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var loc Locale
	if err := yaml.Unmarshal(data, &loc); err != nil {
		return nil, fmt.Errorf("parse locale: %w", err)
	}

	base := filepath.Dir(path)
	for i, gf := range loc.GazetteerFiles {
		if !filepath.IsAbs(gf) {
			loc.GazetteerFiles[i] = filepath.Join(base, gf)
		}
	}

	if loc.FallbackLocation == "" {
		loc.FallbackLocation = loc.DisplayName + " area"
	}
	if loc.FallbackUnspecified == "" {
		loc.FallbackUnspecified = loc.DisplayName + " (unspecified)"
	}

	return &loc, nil
}
