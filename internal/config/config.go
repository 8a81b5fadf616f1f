// Package config holds the immutable runtime configuration. It is built
// once at startup and passed into components at construction; nothing in
// here is mutated after Load returns.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sightwatch/sightwatch/internal/report"
)

// TrustedReportMaxAge is the staleness window for pre-vetted sources.
// Ordinary sources use ReportMaxAgeSeconds; trusted platforms have already
// vetted their reports so they get a longer fixed horizon.
const TrustedReportMaxAge = 6 * time.Hour

// Config is the full runtime configuration.
type Config struct {
	DBPath      string
	LogDir      string
	LogLevel    string
	MetricsAddr string // empty disables the /metrics listener
	DryRun      bool

	CorrelationWindowSeconds        int
	MinCorroborationSources         int
	GeoProximityKm                  float64
	CorrelationCheckIntervalSeconds int
	ClusterExpiryHours              float64
	ReportMaxAgeSeconds             int
	RetentionDays                   int

	// Trust tier membership. Sources not listed in either set are
	// treated as community sources.
	TrustedSources []string
	CuratedSources []string

	// Region locale files. Regions preserves declaration order, which is
	// also the tie-break order for keyword-based region tagging.
	LocalesDir string
	Regions    []string

	Locales []*Locale
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_path", "sightwatch.db")
	v.SetDefault("log_dir", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("dry_run", false)

	v.SetDefault("correlation_window_seconds", 10800)
	v.SetDefault("min_corroboration_sources", 2)
	v.SetDefault("geo_proximity_km", 3.0)
	v.SetDefault("correlation_check_interval_seconds", 60)
	v.SetDefault("cluster_expiry_hours", 6.0)
	v.SetDefault("report_max_age_seconds", 10800)
	v.SetDefault("retention_days", 7)

	v.SetDefault("trusted_sources", []string{"fieldnet", "watchmap"})
	v.SetDefault("curated_sources", []string{"rss"})

	v.SetDefault("locales_dir", "locales")
	v.SetDefault("regions", []string{})
}

// Load reads configuration from viper (config file plus SIGHTWATCH_* env)
// and loads all region locales.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	cfg := &Config{
		DBPath:      v.GetString("db_path"),
		LogDir:      v.GetString("log_dir"),
		LogLevel:    v.GetString("log_level"),
		MetricsAddr: v.GetString("metrics_addr"),
		DryRun:      v.GetBool("dry_run"),

		CorrelationWindowSeconds:        v.GetInt("correlation_window_seconds"),
		MinCorroborationSources:         v.GetInt("min_corroboration_sources"),
		GeoProximityKm:                  v.GetFloat64("geo_proximity_km"),
		CorrelationCheckIntervalSeconds: v.GetInt("correlation_check_interval_seconds"),
		ClusterExpiryHours:              v.GetFloat64("cluster_expiry_hours"),
		ReportMaxAgeSeconds:             v.GetInt("report_max_age_seconds"),
		RetentionDays:                   v.GetInt("retention_days"),

		TrustedSources: v.GetStringSlice("trusted_sources"),
		CuratedSources: v.GetStringSlice("curated_sources"),

		LocalesDir: v.GetString("locales_dir"),
		Regions:    v.GetStringSlice("regions"),
	}

	if err := cfg.loadLocales(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadLocales loads the region files named in Regions, or every YAML in
// LocalesDir (sorted by name) when Regions is empty.
func (c *Config) loadLocales() error {
	names := c.Regions
	if len(names) == 0 {
		entries, err := os.ReadDir(c.LocalesDir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("read locales dir: %w", err)
		}
		for _, e := range entries {
			if strings.HasSuffix(e.Name(), ".yaml") || strings.HasSuffix(e.Name(), ".yml") {
				name := strings.TrimSuffix(strings.TrimSuffix(e.Name(), ".yaml"), ".yml")
				names = append(names, name)
			}
		}
		sort.Strings(names)
		c.Regions = names
	}

	for _, name := range names {
		loc, err := LoadLocale(filepath.Join(c.LocalesDir, name+".yaml"))
		if err != nil {
			return fmt.Errorf("locale %q: %w", name, err)
		}
		loc.Name = name
		c.Locales = append(c.Locales, loc)
	}
	return nil
}

// Window is the temporal scope for pairwise scoring and the recent-report
// query.
func (c *Config) Window() time.Duration {
	return time.Duration(c.CorrelationWindowSeconds) * time.Second
}

// CheckInterval is the correlator cadence.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.CorrelationCheckIntervalSeconds) * time.Second
}

// ClusterExpiry is the phase-1 active-cluster horizon.
func (c *Config) ClusterExpiry() time.Duration {
	return time.Duration(c.ClusterExpiryHours * float64(time.Hour))
}

// ReportMaxAge is the pre-enqueue staleness cutoff for ordinary sources.
func (c *Config) ReportMaxAge() time.Duration {
	return time.Duration(c.ReportMaxAgeSeconds) * time.Second
}

// TrustFor returns the filtering tier for a source type.
func (c *Config) TrustFor(st report.SourceType) report.Trust {
	for _, s := range c.TrustedSources {
		if report.SourceType(s) == st {
			return report.TrustTrusted
		}
	}
	for _, s := range c.CuratedSources {
		if report.SourceType(s) == st {
			return report.TrustCurated
		}
	}
	return report.TrustCommunity
}

// Locale returns the locale for a region name, or nil.
func (c *Config) Locale(region string) *Locale {
	for _, l := range c.Locales {
		if l.Name == region {
			return l
		}
	}
	return nil
}
