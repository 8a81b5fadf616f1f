// Package report defines the types that flow through the pipeline: raw
// reports produced by collectors, processed reports owned by the store,
// and corroborated incidents handed to the notifier.
package report

import "time"

// SourceType identifies the platform a report came from.
type SourceType string

const (
	SourceRSS      SourceType = "rss"
	SourceBluesky  SourceType = "bluesky"
	SourceReddit   SourceType = "reddit"
	SourceTwitter  SourceType = "twitter"
	SourceFieldNet SourceType = "fieldnet" // pre-vetted community reporting platform
	SourceWatchMap SourceType = "watchmap" // pre-vetted community reporting platform
)

// Trust is the filtering tier applied to a source.
type Trust int

const (
	// TrustCommunity covers social posts: accepted unless a retrospective
	// signal is present without a real-time signal offsetting it.
	TrustCommunity Trust = iota

	// TrustCurated covers syndicated news feeds: accepted only with a
	// real-time signal or in the absence of retrospective signals.
	TrustCurated

	// TrustTrusted covers pre-vetted community reporting platforms.
	// Their reports bypass keyword filtering entirely.
	TrustTrusted
)

// Raw is the normalized output of any collector. Identity is
// (SourceType, SourceID); re-delivery of the same identity is a no-op.
type Raw struct {
	SourceType SourceType
	SourceID   string
	SourceURL  string
	Author     string
	Text       string
	Timestamp  time.Time // when originally posted
	Collected  time.Time // when we fetched it
	Metadata   map[string]any
}

// Coordinates returns structured coordinates from the metadata bag, if the
// source supplied them.
func (r Raw) Coordinates() (lat, lon float64, ok bool) {
	lat, latOK := metaFloat(r.Metadata, "latitude")
	lon, lonOK := metaFloat(r.Metadata, "longitude")
	return lat, lon, latOK && lonOK
}

// LocationDescription returns the free-text location the source supplied
// alongside structured coordinates, if any.
func (r Raw) LocationDescription() string {
	if r.Metadata == nil {
		return ""
	}
	if s, ok := r.Metadata["location_description"].(string); ok {
		return s
	}
	return ""
}

func metaFloat(m map[string]any, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Processed is a stored report plus its processing annotations. It is
// created once per identity and mutated once by the ingestion pipeline;
// ClusterID is set at most once, by the correlator.
type Processed struct {
	ID           int64
	SourceType   SourceType
	SourceID     string
	SourceURL    string
	Author       string
	OriginalText string
	CleanedText  string
	Timestamp    time.Time
	Collected    time.Time
	Relevant     bool
	Region       string
	Place        string // resolved sub-region name, "" if unresolved
	Latitude     *float64
	Longitude    *float64
	Keywords     []string
	ClusterID    *int64
	Notified     bool
	Expired      bool
}

// Text returns the cleaned text, falling back to the original.
func (p *Processed) Text() string {
	if p.CleanedText != "" {
		return p.CleanedText
	}
	return p.OriginalText
}

// HasCoordinates reports whether both latitude and longitude are resolved.
func (p *Processed) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// IncidentType distinguishes a first alert from an update to an
// already-notified incident.
type IncidentType string

const (
	IncidentNew    IncidentType = "new"
	IncidentUpdate IncidentType = "update"
)

// Incident is a corroborated cluster of reports handed to the notifier.
// For updates, NewReports holds only the members attached this cycle;
// Reports always holds the full membership.
type Incident struct {
	ClusterID   int64
	Reports     []Processed
	NewReports  []Processed
	Location    string
	Latitude    *float64
	Longitude   *float64
	Confidence  float64
	MemberCount int
	SourceTypes []SourceType
	Earliest    time.Time
	Latest      time.Time
	Type        IncidentType
	Region      string
}
