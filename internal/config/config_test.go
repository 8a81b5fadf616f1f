package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/sightwatch/sightwatch/internal/report"
)

func writeLocale(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const metrotownYAML = `display_name: Metrotown
centers:
  - lat: 40.7128
    lon: -74.0060
    radius_km: 30
geo_keywords: [metrotown, riverside]
gazetteer_files: [gazetteers/metrotown.json]
rss_feeds: [https://example.com/feed.xml]
`

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	v.Set("locales_dir", t.TempDir()) // empty, no locales

	cfg, err := Load(v)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.CorrelationWindowSeconds != 10800 {
		t.Errorf("window = %d", cfg.CorrelationWindowSeconds)
	}
	if cfg.MinCorroborationSources != 2 {
		t.Errorf("min sources = %d", cfg.MinCorroborationSources)
	}
	if cfg.GeoProximityKm != 3.0 {
		t.Errorf("proximity = %v", cfg.GeoProximityKm)
	}
	if cfg.Window() != 3*time.Hour {
		t.Errorf("Window() = %v", cfg.Window())
	}
	if cfg.CheckInterval() != time.Minute {
		t.Errorf("CheckInterval() = %v", cfg.CheckInterval())
	}
	if cfg.ClusterExpiry() != 6*time.Hour {
		t.Errorf("ClusterExpiry() = %v", cfg.ClusterExpiry())
	}
	if cfg.RetentionDays != 7 {
		t.Errorf("retention = %d", cfg.RetentionDays)
	}
}

func TestTrustFor(t *testing.T) {
	v := viper.New()
	v.Set("locales_dir", t.TempDir())
	cfg, err := Load(v)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		src  report.SourceType
		want report.Trust
	}{
		{report.SourceFieldNet, report.TrustTrusted},
		{report.SourceWatchMap, report.TrustTrusted},
		{report.SourceRSS, report.TrustCurated},
		{report.SourceBluesky, report.TrustCommunity},
		{report.SourceType("somewhere-new"), report.TrustCommunity},
	}
	for _, tt := range tests {
		if got := cfg.TrustFor(tt.src); got != tt.want {
			t.Errorf("TrustFor(%s) = %v, want %v", tt.src, got, tt.want)
		}
	}
}

func TestTrustTiersConfigurable(t *testing.T) {
	v := viper.New()
	v.Set("locales_dir", t.TempDir())
	v.Set("trusted_sources", []string{"bluesky"})
	v.Set("curated_sources", []string{})

	cfg, err := Load(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TrustFor(report.SourceBluesky) != report.TrustTrusted {
		t.Error("override not applied")
	}
	if cfg.TrustFor(report.SourceRSS) != report.TrustCommunity {
		t.Error("curated override not applied")
	}
}

func TestLoadLocales(t *testing.T) {
	dir := t.TempDir()
	writeLocale(t, dir, "metrotown.yaml", metrotownYAML)
	writeLocale(t, dir, "lakeport.yaml", "display_name: Lakeport\n")

	v := viper.New()
	v.Set("locales_dir", dir)

	cfg, err := Load(v)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Locales) != 2 {
		t.Fatalf("loaded %d locales", len(cfg.Locales))
	}
	// Sorted by name when regions is not set.
	if cfg.Regions[0] != "lakeport" || cfg.Regions[1] != "metrotown" {
		t.Errorf("Regions = %v", cfg.Regions)
	}

	loc := cfg.Locale("metrotown")
	if loc == nil {
		t.Fatal("Locale(metrotown) = nil")
	}
	if loc.DisplayName != "Metrotown" {
		t.Errorf("DisplayName = %q", loc.DisplayName)
	}
	if len(loc.Centers) != 1 || loc.Centers[0].RadiusKm != 30 {
		t.Errorf("Centers = %+v", loc.Centers)
	}
	// Gazetteer paths resolve relative to the locale file.
	want := filepath.Join(dir, "gazetteers", "metrotown.json")
	if len(loc.GazetteerFiles) != 1 || loc.GazetteerFiles[0] != want {
		t.Errorf("GazetteerFiles = %v, want %q", loc.GazetteerFiles, want)
	}

	if cfg.Locale("nowhere") != nil {
		t.Error("unknown region returned a locale")
	}
}

func TestLocaleFallbackDefaults(t *testing.T) {
	dir := t.TempDir()
	writeLocale(t, dir, "lakeport.yaml", "display_name: Lakeport\n")

	loc, err := LoadLocale(filepath.Join(dir, "lakeport.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if loc.FallbackLocation != "Lakeport area" {
		t.Errorf("FallbackLocation = %q", loc.FallbackLocation)
	}
	if loc.FallbackUnspecified != "Lakeport (unspecified)" {
		t.Errorf("FallbackUnspecified = %q", loc.FallbackUnspecified)
	}
}

func TestLoadRegionSubset(t *testing.T) {
	dir := t.TempDir()
	writeLocale(t, dir, "metrotown.yaml", metrotownYAML)
	writeLocale(t, dir, "lakeport.yaml", "display_name: Lakeport\n")

	v := viper.New()
	v.Set("locales_dir", dir)
	v.Set("regions", []string{"metrotown"})

	cfg, err := Load(v)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Locales) != 1 || cfg.Locales[0].Name != "metrotown" {
		t.Errorf("Locales = %+v", cfg.Locales)
	}
}

func TestLoadMissingLocaleFails(t *testing.T) {
	v := viper.New()
	v.Set("locales_dir", t.TempDir())
	v.Set("regions", []string{"ghost"})

	if _, err := Load(v); err == nil {
		t.Fatal("missing locale file did not error")
	}
}
