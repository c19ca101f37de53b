package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/samvad-hq/indicator-client/internal/config"
	"github.com/samvad-hq/indicator-client/internal/jobs"
	"github.com/samvad-hq/indicator-client/internal/journal"
	"github.com/samvad-hq/indicator-client/internal/logger"
	"github.com/samvad-hq/indicator-client/internal/metrics"
	"github.com/samvad-hq/indicator-client/pkg/indicatorclient"
	"github.com/samvad-hq/indicator-client/pkg/sinks"
)

var errServiceUnhealthy = errors.New("indicator service is not healthy")

// Runner drives the indicator client from the jobs file on an interval. It
// journals submitted async tasks, resumes them after restarts and fans every
// finished result out to the configured sinks.
type Runner struct {
	cfg         *config.Config
	client      *indicatorclient.Client
	jobs        *jobs.Registry
	fanout      *sinks.Fanout
	journal     journal.Journal
	metrics     *metrics.Metrics
	resultOpts  indicatorclient.ResultOptions
	interval    time.Duration
	concurrency int
	log         logger.Logger
}

// NewRunner builds a runner runtime from config files.
func NewRunner(ctx context.Context, cfg *config.Config, log logger.Logger) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	jobReg, err := jobs.LoadRegistry(cfg.JobsFile)
	if err != nil {
		return nil, fmt.Errorf("load jobs registry: %w", err)
	}
	jobList := jobReg.All()
	jobIDs := make([]string, 0, len(jobList))
	for _, j := range jobList {
		jobIDs = append(jobIDs, j.ID)
	}
	log.InfoObj("jobs registry loaded", "jobs_meta", map[string]any{
		"count": len(jobIDs),
		"ids":   jobIDs,
	})

	sinkReg, err := sinks.LoadRegistry(cfg.SinksFile)
	if err != nil {
		return nil, fmt.Errorf("load sinks registry: %w", err)
	}
	enabledSinks := sinkReg.Enabled()
	if len(enabledSinks) == 0 {
		return nil, fmt.Errorf("no sinks configured")
	}

	built, err := sinks.BuildAll(ctx, sinks.DefaultRegistry(), enabledSinks, log)
	if err != nil {
		return nil, fmt.Errorf("build sinks: %w", err)
	}
	fanout := sinks.NewFanout(built)
	sinkSummaries := make([]map[string]string, 0, len(enabledSinks))
	for _, sc := range enabledSinks {
		sinkSummaries = append(sinkSummaries, map[string]string{
			"id":   sc.ID,
			"type": sc.Type,
		})
	}
	log.InfoObj("sinks registry loaded", "sinks_meta", map[string]any{
		"count": len(sinkSummaries),
		"sinks": sinkSummaries,
	})

	jrnl, err := journal.New(cfg.JournalType, cfg.JournalPath, journal.Options{
		RecordTTL:       cfg.JournalTTL,
		CleanupInterval: cfg.JournalCleanup,
	})
	if err != nil {
		fanout.Close()
		return nil, fmt.Errorf("init journal: %w", err)
	}
	log.InfoObj("journal initialized", "journal_config", map[string]any{
		"type":                     cfg.JournalType,
		"path":                     cfg.JournalPath,
		"record_ttl_seconds":       int(cfg.JournalTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.JournalCleanup.Seconds()),
	})

	m := metrics.New()
	client := indicatorclient.New(cfg.ServiceBaseURL,
		indicatorclient.WithTimeout(cfg.RequestTimeout),
		indicatorclient.WithLogger(log),
		indicatorclient.WithObserver(m),
	)

	return &Runner{
		cfg:     cfg,
		client:  client,
		jobs:    jobReg,
		fanout:  fanout,
		journal: jrnl,
		metrics: m,
		resultOpts: indicatorclient.ResultOptions{
			Wait:         true,
			Timeout:      cfg.TaskTimeout,
			PollInterval: cfg.PollInterval,
		},
		interval:    cfg.RunInterval,
		concurrency: cfg.JobConcurrency,
		log:         log,
	}, nil
}

// Client returns the indicator client the runner drives.
func (r *Runner) Client() *indicatorclient.Client { return r.client }

// Run starts the job loop until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("runner is not initialized")
	}
	defer r.close()

	stopMetrics := r.serveMetrics()
	defer stopMetrics()

	r.log.InfoObj("runner loop starting", "runner_state", map[string]any{
		"jobs_count":      r.jobs.Len(),
		"sinks_count":     r.fanout.Size(),
		"run_interval":    r.interval.String(),
		"job_concurrency": r.concurrency,
		"service":         r.client.BaseURL(),
	})

	if err := r.runOnce(ctx); err != nil {
		r.log.ErrorObj("initial run failed", "error", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.InfoObj("runner loop exiting", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if err := r.runOnce(ctx); err != nil {
				r.log.ErrorObj("scheduled run failed", "error", err)
			}
		}
	}
}

// runOnce performs a single pass: resume journaled tasks, then every job.
func (r *Runner) runOnce(ctx context.Context) error {
	start := time.Now()
	if !r.client.HealthCheck(ctx) {
		r.log.WarnObj("run skipped", "service", r.client.BaseURL())
		return errServiceUnhealthy
	}

	list := r.jobs.All()
	r.log.InfoObj("run started", "run_meta", map[string]any{
		"jobs_count": len(list),
		"started_at": start.UTC(),
	})

	var errs []error
	if err := r.resumePending(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := r.runJobs(ctx, list); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	r.log.InfoObj("run completed", "run_meta", map[string]any{
		"jobs_count": len(list),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

// serveMetrics starts the /metrics listener when an address is configured.
func (r *Runner) serveMetrics() func() {
	if r.cfg.MetricsAddr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", r.metrics.Handler())
	srv := &http.Server{
		Addr:              r.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.log.ErrorObj("metrics listener failed", "error", err)
		}
	}()
	r.log.InfoObj("metrics listener started", "metrics_addr", r.cfg.MetricsAddr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// close releases the journal and sinks, logging any errors encountered.
func (r *Runner) close() {
	if err := r.journal.Close(); err != nil {
		r.log.ErrorObj("journal close failed", "error", err)
	}
	if err := r.fanout.Close(); err != nil {
		r.log.ErrorObj("sinks close failed", "error", err)
	}
}
