package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sightwatch/sightwatch/internal/report"
)

const defaultBlueskyEndpoint = "https://public.api.bsky.app/xrpc/app.bsky.feed.searchPosts"

// Bluesky searches recent public posts for a set of query terms.
type Bluesky struct {
	endpoint string
	terms    []string
	interval time.Duration
	sessions *SessionPool
	gate     *HostGate
}

// NewBluesky builds a Bluesky search collector. Each term is searched
// separately per pass; results are merged. Requests go out over a session
// acquired from the pool for the duration of one pass.
func NewBluesky(terms []string, interval time.Duration, gate *HostGate, sessions *SessionPool) *Bluesky {
	if sessions == nil {
		sessions = NewSessionPool(1)
	}
	return &Bluesky{
		endpoint: defaultBlueskyEndpoint,
		terms:    terms,
		interval: interval,
		sessions: sessions,
		gate:     gate,
	}
}

func (b *Bluesky) Name() string { return "bluesky" }

func (b *Bluesky) Type() report.SourceType { return report.SourceBluesky }

func (b *Bluesky) PollInterval() time.Duration { return b.interval }

type blueskyPost struct {
	URI    string `json:"uri"`
	Author struct {
		Handle string `json:"handle"`
	} `json:"author"`
	Record struct {
		Text      string    `json:"text"`
		CreatedAt time.Time `json:"createdAt"`
	} `json:"record"`
	IndexedAt time.Time `json:"indexedAt"`
}

type blueskySearchResponse struct {
	Posts []blueskyPost `json:"posts"`
}

func (b *Bluesky) Collect(ctx context.Context) ([]report.Raw, error) {
	sess, err := b.sessions.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire session: %w", err)
	}
	defer b.sessions.Release(sess)

	now := time.Now()
	seen := make(map[string]bool)
	var items []report.Raw

	for _, term := range b.terms {
		posts, err := b.search(ctx, sess, term)
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", term, err)
		}
		for _, p := range posts {
			if p.URI == "" || seen[p.URI] {
				continue
			}
			seen[p.URI] = true

			posted := p.Record.CreatedAt
			if posted.IsZero() {
				posted = p.IndexedAt
			}
			items = append(items, report.Raw{
				SourceType: report.SourceBluesky,
				SourceID:   p.URI,
				Author:     p.Author.Handle,
				Text:       p.Record.Text,
				Timestamp:  posted,
				Collected:  now,
				Metadata:   map[string]any{"query": term},
			})
		}
	}
	return items, nil
}

func (b *Bluesky) search(ctx context.Context, sess *Session, term string) ([]blueskyPost, error) {
	if err := b.gate.Allow(ctx, b.endpoint); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("q", term)
	q.Set("sort", "latest")
	q.Set("limit", "50")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := sess.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var parsed blueskySearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return parsed.Posts, nil
}
