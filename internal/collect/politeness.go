package collect

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"

	"github.com/sightwatch/sightwatch/internal/logging"
)

const userAgent = "sightwatch/1.0"

// HostGate throttles outbound requests per host and honors robots.txt.
// Shared by every HTTP-based collector.
type HostGate struct {
	mu       sync.Mutex
	client   *http.Client
	limiters map[string]*rate.Limiter
	robots   map[string]*robotstxt.RobotsData
}

// NewHostGate builds a gate using the given client for robots.txt fetches.
func NewHostGate(client *http.Client) *HostGate {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HostGate{
		client:   client,
		limiters: make(map[string]*rate.Limiter),
		robots:   make(map[string]*robotstxt.RobotsData),
	}
}

// Allow blocks until the host's rate limit admits a request, then checks
// robots.txt. Returns an error when the path is disallowed.
func (g *HostGate) Allow(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}

	if err := g.limiter(u.Host).Wait(ctx); err != nil {
		return err
	}

	robots := g.robotsFor(ctx, u)
	if robots != nil && !robots.TestAgent(u.Path, userAgent) {
		return fmt.Errorf("disallowed by robots.txt: %s", rawURL)
	}
	return nil
}

func (g *HostGate) limiter(host string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.limiters[host]
	if !ok {
		// One request every two seconds per host, small burst.
		l = rate.NewLimiter(rate.Every(2*time.Second), 2)
		g.limiters[host] = l
	}
	return l
}

// robotsFor fetches and caches a host's robots.txt. Fetch failures are
// treated as allow-all; a host that can't serve robots.txt shouldn't block
// collection.
func (g *HostGate) robotsFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	g.mu.Lock()
	if data, ok := g.robots[u.Host]; ok {
		g.mu.Unlock()
		return data
	}
	g.mu.Unlock()

	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	var data *robotstxt.RobotsData
	if err == nil {
		req.Header.Set("User-Agent", userAgent)
		resp, err := g.client.Do(req)
		if err == nil {
			data, err = robotstxt.FromResponse(resp)
			resp.Body.Close()
			if err != nil {
				logging.Debug("robots.txt unparseable", "host", u.Host, "error", err)
				data = nil
			}
		}
	}

	g.mu.Lock()
	g.robots[u.Host] = data
	g.mu.Unlock()
	return data
}
