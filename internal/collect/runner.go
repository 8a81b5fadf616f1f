package collect

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/sightwatch/sightwatch/internal/config"
	"github.com/sightwatch/sightwatch/internal/ingest"
	"github.com/sightwatch/sightwatch/internal/logging"
	"github.com/sightwatch/sightwatch/internal/report"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 60 * time.Second

	// After this many consecutive failures the backoff resets, giving a
	// recovering platform a fast retry instead of the full cap.
	failureResetCount = 10

	collectTimeout = 45 * time.Second
)

// Runner polls one collector on its own cadence and feeds the ingestion
// queue. Failures back off exponentially without affecting other runners.
type Runner struct {
	collector Collector
	queue     *ingest.Queue[report.Raw]
	cfg       *config.Config

	// seen short-circuits re-deliveries before they reach the queue. The
	// store's identity constraint is still the authority.
	seen *gocache.Cache

	// Observer, when set, is called with the fetch count after each
	// successful collection pass.
	Observer func(source string, fetched int)

	backoff      time.Duration
	consecErrors int
}

// NewRunner builds a runner for one collector.
func NewRunner(c Collector, q *ingest.Queue[report.Raw], cfg *config.Config) *Runner {
	return &Runner{
		collector: c,
		queue:     q,
		cfg:       cfg,
		seen:      gocache.New(12*time.Hour, 30*time.Minute),
		backoff:   initialBackoff,
	}
}

// Run polls until the context is cancelled.
func (r *Runner) Run(ctx context.Context) {
	logging.Info("Collector started",
		"collector", r.collector.Name(), "interval", r.collector.PollInterval())

	for {
		delay := r.poll(ctx)
		select {
		case <-ctx.Done():
			logging.Info("Collector stopped", "collector", r.collector.Name())
			return
		case <-time.After(delay):
		}
	}
}

// poll runs one collection pass and returns how long to wait before the
// next one.
func (r *Runner) poll(ctx context.Context) time.Duration {
	cctx, cancel := context.WithTimeout(ctx, collectTimeout)
	items, err := r.collector.Collect(cctx)
	cancel()

	if err != nil {
		r.consecErrors++
		delay := r.backoff
		if r.consecErrors >= failureResetCount {
			logging.Warn("Collector failing persistently, resetting backoff",
				"collector", r.collector.Name(), "failures", r.consecErrors)
			r.backoff = initialBackoff
			r.consecErrors = 0
		} else {
			r.backoff *= 2
			if r.backoff > maxBackoff {
				r.backoff = maxBackoff
			}
		}
		logging.Warn("Collection failed",
			"collector", r.collector.Name(), "error", err, "retry_in", delay)
		return delay
	}

	r.backoff = initialBackoff
	r.consecErrors = 0

	if r.Observer != nil {
		r.Observer(string(r.collector.Type()), len(items))
	}

	queued := r.enqueue(items, time.Now())
	if queued > 0 {
		logging.Info("Reports collected",
			"collector", r.collector.Name(), "fetched", len(items), "queued", queued)
	}
	return r.collector.PollInterval()
}

// enqueue pushes fresh, unseen reports and returns how many made it.
func (r *Runner) enqueue(items []report.Raw, now time.Time) int {
	maxAge := r.cfg.ReportMaxAge()
	if r.cfg.TrustFor(r.collector.Type()) == report.TrustTrusted {
		maxAge = config.TrustedReportMaxAge
	}

	queued := 0
	for _, item := range items {
		if now.Sub(item.Timestamp) > maxAge {
			continue
		}
		key := string(item.SourceType) + "/" + item.SourceID
		if _, dup := r.seen.Get(key); dup {
			continue
		}
		r.seen.Set(key, struct{}{}, gocache.DefaultExpiration)
		r.queue.Push(item)
		queued++
	}
	return queued
}
