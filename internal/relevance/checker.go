// Package relevance decides whether a report describes current, on-topic
// field activity. Matching is two-tier (topic + geography) with
// trust-tier-aware acceptance rules on top.
package relevance

import (
	"regexp"
	"strings"

	"github.com/sightwatch/sightwatch/internal/report"
)

// realtimeSignals strongly indicate CURRENT activity. Their presence
// overrides retrospective patterns.
var realtimeSignals = regexp.MustCompile(
	`\b(?:` +
		`right now|happening now|currently at|as of now|` +
		`just saw|just spotted|spotted at|seen at|` +
		`heads up|avoid the area|stay away from|` +
		`confirmed sighting|unconfirmed sighting|sighting reported|` +
		`community report|rapid response|know your rights|` +
		`they are here|on site now` +
		`)\b`)

// retrospectiveSignals indicate coverage of past events, legal proceedings
// or policy, not a live report.
var retrospectiveSignals = regexp.MustCompile(
	`\b(?:` +
		`arrested for|charged with|pleaded guilty|found guilty|sentenced to|` +
		`indicted|arraigned|convicted of|faces charges|facing charges|` +
		`court order|court documents|lawsuit|legal challenge|` +
		`appeals court|district court|federal court|supreme court|` +
		`executive order|policy change|legislation|lawmakers|house bill|` +
		`press conference|in a statement|released a statement|` +
		`according to a report|study finds|data shows|statistics show|` +
		`fiscal year|annual report|` +
		`officials said|sources say|` +
		`earlier today|yesterday|last week|last month|` +
		`opinion:|editorial:|analysis:|commentary:` +
		`)\b`)

// Checker applies cleaning-independent relevance rules. Construct once with
// the merged keyword configuration; safe for concurrent use.
type Checker struct {
	exactRe  *regexp.Regexp
	exactSet map[string]bool
	phrases  []string
	geo      []string
	noiseRe  *regexp.Regexp
	realtime *regexp.Regexp
	retro    *regexp.Regexp
}

// Result reports the relevance decision and the keywords that drove it.
type Result struct {
	Relevant bool
	Keywords []string // topic matches followed by geography matches
}

// NewChecker builds a Checker from a keyword configuration.
func NewChecker(kw Keywords) *Checker {
	c := &Checker{
		exactSet: make(map[string]bool, len(kw.ExactTopics)),
		phrases:  kw.PhraseTopics,
		realtime: realtimeSignals,
		retro:    retrospectiveSignals,
	}
	for _, t := range kw.ExactTopics {
		c.exactSet[strings.ToLower(t)] = true
	}
	for _, g := range kw.Geo {
		c.geo = append(c.geo, strings.ToLower(g))
	}
	if len(kw.ExactTopics) > 0 {
		parts := make([]string, len(kw.ExactTopics))
		for i, t := range kw.ExactTopics {
			parts[i] = regexp.QuoteMeta(strings.ToLower(t))
		}
		c.exactRe = regexp.MustCompile(`\b(?:` + strings.Join(parts, "|") + `)\b`)
	}
	if len(kw.NoiseIdioms) > 0 {
		parts := make([]string, len(kw.NoiseIdioms))
		for i, n := range kw.NoiseIdioms {
			parts[i] = regexp.QuoteMeta(strings.ToLower(n))
		}
		c.noiseRe = regexp.MustCompile(`\b(?:` + strings.Join(parts, "|") + `)\b`)
	}
	return c
}

// Check evaluates cleaned text under the given trust tier. Trusted sources
// are accepted unconditionally; their platforms already vetted the report.
func (c *Checker) Check(cleaned string, trust report.Trust) Result {
	if trust == report.TrustTrusted {
		return Result{Relevant: true}
	}

	lower := strings.ToLower(cleaned)

	topic := c.matchTopics(lower)
	geo := c.matchGeo(lower)
	if len(topic) == 0 || len(geo) == 0 {
		return Result{}
	}

	// If every topic hit is a bare ambiguous token, a noise idiom kills
	// the report.
	if c.onlyAmbiguous(topic) && c.noiseRe != nil && c.noiseRe.MatchString(lower) {
		return Result{}
	}

	// A live signal always wins; without one, retrospective coverage
	// (court cases, policy, statistics) is rejected. Curated and
	// community tiers share this rule; they differ upstream, in the
	// trusted bypass and the staleness windows.
	if c.realtime.MatchString(lower) {
		return Result{Relevant: true, Keywords: append(topic, geo...)}
	}
	if c.retro.MatchString(lower) {
		return Result{}
	}
	return Result{Relevant: true, Keywords: append(topic, geo...)}
}

func (c *Checker) matchTopics(lower string) []string {
	var matches []string
	if c.exactRe != nil {
		matches = append(matches, c.exactRe.FindAllString(lower, -1)...)
	}
	for _, p := range c.phrases {
		if strings.Contains(lower, p) {
			matches = append(matches, p)
		}
	}
	return matches
}

func (c *Checker) matchGeo(lower string) []string {
	var matches []string
	for _, g := range c.geo {
		if strings.Contains(lower, g) {
			matches = append(matches, g)
		}
	}
	return matches
}

func (c *Checker) onlyAmbiguous(topic []string) bool {
	for _, t := range topic {
		if !c.exactSet[t] {
			return false
		}
	}
	return true
}
