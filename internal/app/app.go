// Package app wires the full service together: collectors feeding the
// ingestion queue, the pipeline draining it, the correlation loop, and the
// housekeeping timers.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sightwatch/sightwatch/internal/collect"
	"github.com/sightwatch/sightwatch/internal/config"
	"github.com/sightwatch/sightwatch/internal/correlate"
	"github.com/sightwatch/sightwatch/internal/geo"
	"github.com/sightwatch/sightwatch/internal/ingest"
	"github.com/sightwatch/sightwatch/internal/logging"
	"github.com/sightwatch/sightwatch/internal/metrics"
	"github.com/sightwatch/sightwatch/internal/notify"
	"github.com/sightwatch/sightwatch/internal/region"
	"github.com/sightwatch/sightwatch/internal/relevance"
	"github.com/sightwatch/sightwatch/internal/report"
	"github.com/sightwatch/sightwatch/internal/store"
)

const (
	feedPollInterval    = 5 * time.Minute
	socialPollInterval  = 2 * time.Minute
	expirySweepInterval = 5 * time.Minute
	purgeInterval       = 24 * time.Hour
)

// App owns every long-running component of the service.
type App struct {
	cfg        *config.Config
	store      *store.Store
	queue      *ingest.Queue[report.Raw]
	pipeline   *ingest.Pipeline
	correlator *correlate.Correlator
	notifier   notify.Notifier
	exporter   *metrics.Exporter
	sessions   *collect.SessionPool
	runners    []*collect.Runner
}

// Keywords assembles the full keyword configuration: built-in topic tiers
// plus every locale's geography set.
func Keywords(cfg *config.Config) relevance.Keywords {
	kw := relevance.DefaultKeywords()
	for _, loc := range cfg.Locales {
		kw.Geo = append(kw.Geo, loc.GeoKeywords...)
	}
	return kw
}

// BuildPipeline constructs the ingestion pipeline over an open store. Also
// used standalone by the reprocess command.
func BuildPipeline(st *store.Store, cfg *config.Config) (*ingest.Pipeline, error) {
	var gazFiles []string
	for _, loc := range cfg.Locales {
		gazFiles = append(gazFiles, loc.GazetteerFiles...)
	}
	gaz, err := geo.Load(gazFiles...)
	if err != nil {
		return nil, fmt.Errorf("load gazetteers: %w", err)
	}
	logging.Info("Gazetteer loaded", "places", gaz.Len(), "regions", len(cfg.Locales))

	return ingest.NewPipeline(st, cfg,
		relevance.NewChecker(Keywords(cfg)),
		geo.NewResolver(gaz),
		region.NewTagger(cfg.Locales)), nil
}

// New builds the full service from configuration.
func New(cfg *config.Config) (*App, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	pipeline, err := BuildPipeline(st, cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	exporter := metrics.New()
	queue := ingest.NewQueue[report.Raw]()
	pipeline.Observer = func(o ingest.Outcome) {
		exporter.ReportsProcessed.WithLabelValues(string(o)).Inc()
	}

	a := &App{
		cfg:        cfg,
		store:      st,
		queue:      queue,
		pipeline:   pipeline,
		correlator: correlate.New(st, cfg),
		notifier:   notify.NewLogNotifier(),
		exporter:   exporter,
		sessions:   collect.NewSessionPool(2),
	}
	a.buildRunners(Keywords(cfg))
	return a, nil
}

// buildRunners creates one runner per configured source: every locale's
// feeds, plus one social search collector over the topic phrases.
func (a *App) buildRunners(kw relevance.Keywords) {
	gate := collect.NewHostGate(nil)

	for _, loc := range a.cfg.Locales {
		for i, feedURL := range loc.RSSFeeds {
			name := fmt.Sprintf("%s-feed-%d", loc.Name, i+1)
			c := collect.NewRSSFeed(name, feedURL, loc.Name, feedPollInterval, gate)
			a.addRunner(c)
		}
	}

	a.addRunner(collect.NewBluesky(kw.PhraseTopics, socialPollInterval, gate, a.sessions))
}

func (a *App) addRunner(c collect.Collector) {
	r := collect.NewRunner(c, a.queue, a.cfg)
	r.Observer = func(source string, fetched int) {
		a.exporter.ReportsCollected.WithLabelValues(source).Add(float64(fetched))
	}
	a.runners = append(a.runners, r)
}

// Run starts everything and blocks until the context is cancelled, then
// drains the queue and shuts down cleanly.
func (a *App) Run(ctx context.Context) error {
	logging.Info("Service starting",
		"regions", len(a.cfg.Locales), "collectors", len(a.runners), "dry_run", a.cfg.DryRun)

	var metricsSrv *http.Server
	if a.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.exporter.Handler())
		metricsSrv = &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux}
		go func() {
			logging.Info("Metrics listener up", "addr", a.cfg.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Error("Metrics listener failed", "error", err)
			}
		}()
	}

	var collectors sync.WaitGroup
	for _, r := range a.runners {
		collectors.Add(1)
		go func(r *collect.Runner) {
			defer collectors.Done()
			r.Run(ctx)
		}(r)
	}

	pipelineDone := make(chan struct{})
	go func() {
		defer close(pipelineDone)
		a.pipeline.Run(a.queue)
	}()

	var loops sync.WaitGroup
	loops.Add(2)
	go func() {
		defer loops.Done()
		a.correlationLoop(ctx)
	}()
	go func() {
		defer loops.Done()
		a.housekeepingLoop(ctx)
	}()

	<-ctx.Done()
	logging.Info("Shutting down")

	collectors.Wait()
	a.sessions.Shutdown()
	a.queue.Close()
	<-pipelineDone
	loops.Wait()

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		metricsSrv.Shutdown(shutdownCtx)
		cancel()
	}

	return a.store.Close()
}

// correlationLoop runs the clustering pass on a fixed cadence.
func (a *App) correlationLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.CheckInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		cycle := uuid.NewString()[:8]
		now := time.Now()
		a.exporter.QueueDepth.Set(float64(a.queue.Len()))

		incidents, err := a.correlator.RunCycle(now)
		a.exporter.CycleDuration.Observe(time.Since(now).Seconds())
		a.exporter.CorrelationCycles.Inc()
		if err != nil {
			logging.Error("Correlation cycle error", "cycle", cycle, "error", err)
		}
		if len(incidents) > 0 {
			logging.Info("Correlation cycle produced incidents",
				"cycle", cycle, "incidents", len(incidents))
		}
		a.handleIncidents(ctx, incidents)

		if active, err := a.store.ActiveClusters(now.Add(-a.cfg.ClusterExpiry())); err == nil {
			a.exporter.ClustersActive.Set(float64(len(active)))
		}
	}
}

// handleIncidents delivers each incident and records the bookkeeping that
// keeps update notifications incremental. In dry-run mode nothing is sent
// or recorded, so the next real run will re-emit.
func (a *App) handleIncidents(ctx context.Context, incidents []report.Incident) {
	for _, inc := range incidents {
		if a.cfg.DryRun {
			logging.Info("Dry run, suppressing notification",
				"cluster", inc.ClusterID, "kind", inc.Type, "location", inc.Location)
			continue
		}

		ids := make([]int64, len(inc.NewReports))
		for i := range inc.NewReports {
			ids[i] = inc.NewReports[i].ID
		}
		msg := notify.FormatAlert(inc)

		if err := a.notifier.Notify(ctx, inc); err != nil {
			logging.Error("Notification failed",
				"cluster", inc.ClusterID, "kind", inc.Type, "error", err)
			// Record the attempt; cluster state stays pending so the next
			// cycle retries.
			if lerr := a.store.LogNotification(inc.ClusterID, inc.Type, ids, msg, false); lerr != nil {
				logging.Error("Notification log write failed", "cluster", inc.ClusterID, "error", lerr)
			}
			continue
		}

		if err := a.store.LogNotification(inc.ClusterID, inc.Type, ids, msg, true); err != nil {
			logging.Error("Notification log write failed", "cluster", inc.ClusterID, "error", err)
		}
		if err := a.store.MarkClusterNotified(inc.ClusterID); err != nil {
			logging.Error("Cluster bookkeeping failed", "cluster", inc.ClusterID, "error", err)
		}
		a.exporter.Notifications.WithLabelValues(string(inc.Type)).Inc()
	}
}

// housekeepingLoop expires reports out of the correlation pool and purges
// old rows past retention.
func (a *App) housekeepingLoop(ctx context.Context) {
	expire := time.NewTicker(expirySweepInterval)
	purge := time.NewTicker(purgeInterval)
	defer expire.Stop()
	defer purge.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-expire.C:
			// Trusted reports live longer; expire at the wider horizon
			// and let the correlation window bound the rest.
			horizon := a.cfg.ReportMaxAge()
			if config.TrustedReportMaxAge > horizon {
				horizon = config.TrustedReportMaxAge
			}
			n, err := a.store.ExpireReportsBefore(time.Now().Add(-horizon))
			if err != nil {
				logging.Error("Expiry sweep failed", "error", err)
				continue
			}
			if n > 0 {
				a.exporter.ReportsExpired.Add(float64(n))
				logging.Info("Reports expired", "count", n)
			}
		case <-purge.C:
			cutoff := time.Now().AddDate(0, 0, -a.cfg.RetentionDays)
			n, err := a.store.PurgeOlderThan(cutoff)
			if err != nil {
				logging.Error("Retention purge failed", "error", err)
				continue
			}
			logging.Info("Retention purge complete", "deleted", n)
		}
	}
}
