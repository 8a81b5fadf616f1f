package collect

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/sightwatch/sightwatch/internal/report"
)

// RSSFeed collects from one RSS/Atom feed for one region.
type RSSFeed struct {
	name     string
	url      string
	region   string
	interval time.Duration
	parser   *gofeed.Parser
	gate     *HostGate
}

// NewRSSFeed builds a feed collector. The region is a hint carried in
// metadata; the pipeline still tags authoritatively.
func NewRSSFeed(name, feedURL, region string, interval time.Duration, gate *HostGate) *RSSFeed {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	parser.Client = &http.Client{Timeout: 30 * time.Second}
	return &RSSFeed{
		name:     name,
		url:      feedURL,
		region:   region,
		interval: interval,
		parser:   parser,
		gate:     gate,
	}
}

func (f *RSSFeed) Name() string { return f.name }

func (f *RSSFeed) Type() report.SourceType { return report.SourceRSS }

func (f *RSSFeed) PollInterval() time.Duration { return f.interval }

func (f *RSSFeed) Collect(ctx context.Context) ([]report.Raw, error) {
	if err := f.gate.Allow(ctx, f.url); err != nil {
		return nil, err
	}

	feed, err := f.parser.ParseURLWithContext(f.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", f.url, err)
	}

	now := time.Now()
	items := make([]report.Raw, 0, len(feed.Items))
	for _, entry := range feed.Items {
		// Stable identity from the article link.
		id := fmt.Sprintf("%x", sha256.Sum256([]byte(entry.Link)))[:16]

		published := now
		if entry.PublishedParsed != nil {
			published = *entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			published = *entry.UpdatedParsed
		}

		text := entry.Title
		if entry.Description != "" {
			text += ". " + entry.Description
		}

		author := ""
		if entry.Author != nil {
			author = entry.Author.Name
		}
		if author == "" {
			author = f.name
		}

		items = append(items, report.Raw{
			SourceType: report.SourceRSS,
			SourceID:   id,
			SourceURL:  entry.Link,
			Author:     author,
			Text:       text,
			Timestamp:  published,
			Collected:  now,
			Metadata:   map[string]any{"feed": f.name, "region_hint": f.region},
		})
	}
	return items, nil
}
