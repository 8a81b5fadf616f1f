package geo

import (
	"regexp"
	"sort"
	"strings"
)

// NearestMatchRadiusKm bounds coordinate-to-gazetteer snapping: a structured
// coordinate only adopts a gazetteer name when a centroid is this close.
const NearestMatchRadiusKm = 5.0

// Candidate is one possible location mention found in text.
type Candidate struct {
	Text       string // surface text as matched
	Place      string // gazetteer name, "" when unknown
	Lat        *float64
	Lon        *float64
	Confidence float64
}

// Resolver extracts location candidates from cleaned text.
type Resolver struct {
	gaz *Gazetteer
}

// NewResolver builds a Resolver over a loaded gazetteer.
func NewResolver(g *Gazetteer) *Resolver {
	return &Resolver{gaz: g}
}

// Locative prepositions and capitalized spans approximate place-entity
// recognition over text the gazetteer doesn't know.
var (
	prepEntityRe = regexp.MustCompile(`\b(?:at|near|in|on|by|outside|around)\s+([A-Z][A-Za-z']*(?:[ -][A-Z][A-Za-z']*)*)`)
	multiWordRe  = regexp.MustCompile(`\b([A-Z][A-Za-z']+(?:[ -][A-Z][A-Za-z']+)+)\b`)
)

var entityStopwords = map[string]bool{
	"the": true, "a": true, "i": true, "we": true, "they": true,
	"this": true, "that": true, "my": true, "our": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

// Extract finds location candidates in cleaned text. Gazetteer phrase
// matches score 0.9; entity spans matching a gazetteer name score 0.7;
// unknown entity spans score 0.3 and carry no coordinates. Candidates are
// deduplicated by matched surface text.
func (r *Resolver) Extract(text string) []Candidate {
	lower := strings.ToLower(text)
	seen := make(map[string]bool)
	var out []Candidate

	// Pass 1: gazetteer phrases, longest first.
	for _, phrase := range r.gaz.phrases {
		if !containsWord(lower, phrase) || seen[phrase] {
			continue
		}
		seen[phrase] = true
		p := r.gaz.byName[phrase]
		lat, lon := p.Centroid.Lat, p.Centroid.Lon
		out = append(out, Candidate{
			Text:       phrase,
			Place:      p.Name,
			Lat:        &lat,
			Lon:        &lon,
			Confidence: 0.9,
		})
	}

	// Pass 2: generic place-entity spans over the original casing.
	for _, span := range entitySpans(text) {
		key := strings.ToLower(span)
		if seen[key] {
			continue
		}
		seen[key] = true
		if p, ok := r.gaz.Lookup(span); ok {
			lat, lon := p.Centroid.Lat, p.Centroid.Lon
			out = append(out, Candidate{
				Text:       span,
				Place:      p.Name,
				Lat:        &lat,
				Lon:        &lon,
				Confidence: 0.7,
			})
		} else {
			out = append(out, Candidate{Text: span, Confidence: 0.3})
		}
	}

	return out
}

// Primary picks the best candidate: named sub-region first, then
// confidence. Returns zero values when there are no candidates.
func (r *Resolver) Primary(cands []Candidate) (place string, lat, lon *float64) {
	if len(cands) == 0 {
		return "", nil, nil
	}
	ranked := make([]Candidate, len(cands))
	copy(ranked, cands)
	sort.SliceStable(ranked, func(i, j int) bool {
		ni, nj := ranked[i].Place != "", ranked[j].Place != ""
		if ni != nj {
			return ni
		}
		return ranked[i].Confidence > ranked[j].Confidence
	})
	best := ranked[0]
	return best.Place, best.Lat, best.Lon
}

// ResolveCoordinates snaps a structured coordinate to the nearest gazetteer
// place, if one lies within NearestMatchRadiusKm.
func (r *Resolver) ResolveCoordinates(lat, lon float64) (string, bool) {
	p, dist := r.gaz.Nearest(lat, lon)
	if p == nil || dist > NearestMatchRadiusKm {
		return "", false
	}
	return p.Name, true
}

func entitySpans(text string) []string {
	var spans []string
	for _, m := range prepEntityRe.FindAllStringSubmatch(text, -1) {
		spans = append(spans, m[1])
	}
	for _, m := range multiWordRe.FindAllStringSubmatch(text, -1) {
		spans = append(spans, m[1])
	}

	var out []string
	for _, s := range spans {
		first := strings.ToLower(strings.SplitN(s, " ", 2)[0])
		if entityStopwords[first] {
			continue
		}
		out = append(out, s)
	}
	return out
}

// containsWord reports whether text contains phrase bounded by
// non-alphanumeric characters on both sides.
func containsWord(text, phrase string) bool {
	idx := strings.Index(text, phrase)
	for idx >= 0 {
		leftOK := idx == 0 || !isAlphaNum(text[idx-1])
		end := idx + len(phrase)
		rightOK := end >= len(text) || !isAlphaNum(text[end])
		if leftOK && rightOK {
			return true
		}
		next := strings.Index(text[idx+1:], phrase)
		if next < 0 {
			return false
		}
		idx = idx + 1 + next
	}
	return false
}

func isAlphaNum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
