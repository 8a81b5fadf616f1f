// Package ingest turns raw collector output into stored, annotated
// reports: staleness gate, identity dedup, text cleanup, relevance check,
// location resolution and region tagging.
package ingest

import (
	"fmt"
	"time"

	"github.com/sightwatch/sightwatch/internal/config"
	"github.com/sightwatch/sightwatch/internal/geo"
	"github.com/sightwatch/sightwatch/internal/logging"
	"github.com/sightwatch/sightwatch/internal/region"
	"github.com/sightwatch/sightwatch/internal/relevance"
	"github.com/sightwatch/sightwatch/internal/report"
	"github.com/sightwatch/sightwatch/internal/store"
)

// Outcome classifies what the pipeline did with one raw report.
type Outcome string

const (
	OutcomeStale      Outcome = "stale"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeIrrelevant Outcome = "irrelevant"
	OutcomeAccepted   Outcome = "accepted"
)

// Pipeline processes raw reports one at a time. It is the queue's single
// consumer.
type Pipeline struct {
	store    *store.Store
	cfg      *config.Config
	checker  *relevance.Checker
	resolver *geo.Resolver
	tagger   *region.Tagger

	// Observer, when set, sees the outcome of every processed report.
	Observer func(Outcome)
}

// NewPipeline wires the processing stages together.
func NewPipeline(st *store.Store, cfg *config.Config, checker *relevance.Checker, resolver *geo.Resolver, tagger *region.Tagger) *Pipeline {
	return &Pipeline{
		store:    st,
		cfg:      cfg,
		checker:  checker,
		resolver: resolver,
		tagger:   tagger,
	}
}

// Run drains the queue until it is closed.
func (p *Pipeline) Run(q *Queue[report.Raw]) {
	for {
		raw, ok := q.Pop()
		if !ok {
			return
		}
		outcome, err := p.Process(raw, time.Now())
		if err != nil {
			logging.Error("Report processing failed",
				"source", raw.SourceType, "id", raw.SourceID, "error", err)
			continue
		}
		if p.Observer != nil {
			p.Observer(outcome)
		}
		logging.Debug("Report processed",
			"source", raw.SourceType, "id", raw.SourceID, "outcome", outcome)
	}
}

// Process runs one raw report through every stage. Re-delivery of a known
// identity stops at the dedup stage and changes nothing.
func (p *Pipeline) Process(raw report.Raw, now time.Time) (Outcome, error) {
	trust := p.cfg.TrustFor(raw.SourceType)

	maxAge := p.cfg.ReportMaxAge()
	if trust == report.TrustTrusted {
		maxAge = config.TrustedReportMaxAge
	}
	if now.Sub(raw.Timestamp) > maxAge {
		return OutcomeStale, nil
	}

	id, inserted, err := p.store.InsertRaw(raw)
	if err != nil {
		return "", fmt.Errorf("store raw report: %w", err)
	}
	if !inserted {
		return OutcomeDuplicate, nil
	}

	cleaned := relevance.CleanText(raw.Text)
	res := p.checker.Check(cleaned, trust)
	if trust == report.TrustTrusted {
		// Trusted platforms skip keyword filtering; record the
		// provenance as the matched keyword instead.
		res.Keywords = []string{string(raw.SourceType) + " report"}
	}

	p0 := &report.Processed{
		ID:          id,
		SourceType:  raw.SourceType,
		SourceID:    raw.SourceID,
		CleanedText: cleaned,
		Relevant:    res.Relevant,
		Keywords:    res.Keywords,
	}

	if !res.Relevant {
		if err := p.store.UpdateProcessing(p0); err != nil {
			return "", err
		}
		return OutcomeIrrelevant, nil
	}

	p.resolveLocation(raw, cleaned, p0)
	p0.Region = p.tagger.Tag(cleaned, p0.Latitude, p0.Longitude)

	if err := p.store.UpdateProcessing(p0); err != nil {
		return "", err
	}
	return OutcomeAccepted, nil
}

// Reannotate re-runs cleaning, relevance, location and region tagging over
// an already-stored report, then persists the result. Used after keyword or
// gazetteer changes. Coordinates that came from the source are kept; only
// text-derived annotations are recomputed.
func (p *Pipeline) Reannotate(r *report.Processed) error {
	trust := p.cfg.TrustFor(r.SourceType)
	cleaned := relevance.CleanText(r.OriginalText)
	res := p.checker.Check(cleaned, trust)
	if trust == report.TrustTrusted {
		res.Keywords = []string{string(r.SourceType) + " report"}
	}

	r.CleanedText = cleaned
	r.Relevant = res.Relevant
	r.Keywords = res.Keywords

	if res.Relevant {
		if r.HasCoordinates() {
			if name, ok := p.resolver.ResolveCoordinates(*r.Latitude, *r.Longitude); ok {
				r.Place = name
			}
		} else {
			place, lat, lon := p.resolver.Primary(p.resolver.Extract(cleaned))
			r.Place = place
			r.Latitude = lat
			r.Longitude = lon
		}
		r.Region = p.tagger.Tag(cleaned, r.Latitude, r.Longitude)
	}

	return p.store.UpdateProcessing(r)
}

// resolveLocation fills Place and coordinates. Structured coordinates from
// the source win; the place name then comes from the nearest gazetteer
// entry, or the source's own location description. Without coordinates the
// text is mined for location candidates.
func (p *Pipeline) resolveLocation(raw report.Raw, cleaned string, out *report.Processed) {
	if lat, lon, ok := raw.Coordinates(); ok {
		out.Latitude = &lat
		out.Longitude = &lon
		if name, ok := p.resolver.ResolveCoordinates(lat, lon); ok {
			out.Place = name
		} else if desc := raw.LocationDescription(); desc != "" {
			out.Place = desc
		}
		return
	}

	cands := p.resolver.Extract(cleaned)
	place, lat, lon := p.resolver.Primary(cands)
	out.Place = place
	out.Latitude = lat
	out.Longitude = lon
}
