package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/samvad-hq/indicator-client/internal/jobs"
	"github.com/samvad-hq/indicator-client/internal/journal"
	"github.com/samvad-hq/indicator-client/pkg/indicatorclient"
	"github.com/samvad-hq/indicator-client/pkg/sinks"
	"golang.org/x/sync/errgroup"
)

// unit is one client call derived from a job.
type unit struct {
	job       jobs.Job
	symbol    string
	indicator string
}

// expand maps a job to its client calls. Sync and async jobs run once per
// symbol, validate jobs once per (symbol, indicator) and batch jobs once.
func expand(j jobs.Job) []unit {
	switch j.Mode {
	case jobs.ModeBatch:
		return []unit{{job: j}}
	case jobs.ModeValidate:
		out := make([]unit, 0, len(j.Symbols)*len(j.Indicators))
		for _, s := range j.Symbols {
			for _, ind := range j.Indicators {
				out = append(out, unit{job: j, symbol: s, indicator: ind})
			}
		}
		return out
	default:
		out := make([]unit, 0, len(j.Symbols))
		for _, s := range j.Symbols {
			out = append(out, unit{job: j, symbol: s})
		}
		return out
	}
}

// runJobs executes every unit of every job with at most r.concurrency in flight.
// A failing unit does not stop the others; all failures are joined.
func (r *Runner) runJobs(ctx context.Context, list []jobs.Job) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(r.concurrency)

	for _, j := range list {
		for _, u := range expand(j) {
			g.Go(func() error {
				err := r.runUnit(ctx, u)
				r.metrics.JobFinished(u.job.Mode, err)
				if err != nil {
					r.log.ErrorObj("job failed", "job_error", map[string]any{
						"job_id": u.job.ID,
						"mode":   u.job.Mode,
						"symbol": u.symbol,
						"error":  err.Error(),
					})
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
				return nil
			})
		}
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (r *Runner) runUnit(ctx context.Context, u unit) error {
	j := u.job
	switch j.Mode {
	case jobs.ModeSync:
		p, err := r.client.CalculateIndicators(ctx, indicatorclient.CalculateRequest{
			Symbol:     u.symbol,
			Indicators: j.Indicators,
			StartDate:  j.StartDate,
			EndDate:    j.EndDate,
			UseCache:   j.UseCache,
		})
		if err != nil {
			return fmt.Errorf("job %s calculate %s: %w", j.ID, u.symbol, err)
		}
		return r.publish(ctx, sinks.NewEvent(j.ID, j.Mode, u.symbol, j.Indicators, "", p.Raw()))

	case jobs.ModeAsync:
		return r.runAsync(ctx, u)

	case jobs.ModeBatch:
		p, err := r.client.BatchCalculate(ctx, indicatorclient.BatchRequest{
			Symbols:    j.Symbols,
			Indicators: j.Indicators,
			StartDate:  j.StartDate,
			EndDate:    j.EndDate,
		})
		if err != nil {
			return fmt.Errorf("job %s batch: %w", j.ID, err)
		}
		return r.publish(ctx, sinks.NewEvent(j.ID, j.Mode, "", j.Indicators, "", p.Raw()))

	case jobs.ModeValidate:
		p, err := r.client.ValidateCalculation(ctx, indicatorclient.ValidateRequest{
			Symbol:    u.symbol,
			Indicator: u.indicator,
			StartDate: j.StartDate,
			EndDate:   j.EndDate,
		})
		if err != nil {
			return fmt.Errorf("job %s validate %s/%s: %w", j.ID, u.symbol, u.indicator, err)
		}
		return r.publish(ctx, sinks.NewEvent(j.ID, j.Mode, u.symbol, []string{u.indicator}, "", p.Raw()))

	default:
		return fmt.Errorf("job %s: unsupported mode %q", j.ID, j.Mode)
	}
}

func (r *Runner) runAsync(ctx context.Context, u unit) error {
	j := u.job
	id, err := r.client.CalculateIndicatorsAsync(ctx, indicatorclient.AsyncCalculateRequest{
		Symbol:     u.symbol,
		Indicators: j.Indicators,
		StartDate:  j.StartDate,
		EndDate:    j.EndDate,
		Parameters: j.Parameters,
	})
	if err != nil {
		return fmt.Errorf("job %s submit %s: %w", j.ID, u.symbol, err)
	}

	rec := journal.TaskRecord{TaskID: string(id), JobID: j.ID, Symbol: u.symbol}
	if err := r.journal.Track(rec); err != nil {
		r.log.WarnObj("journal track failed", "journal_error", map[string]any{
			"task_id": id,
			"error":   err.Error(),
		})
	}
	return r.awaitAndPublish(ctx, rec)
}

// resumePending finishes tasks submitted by an earlier pass or process.
func (r *Runner) resumePending(ctx context.Context) error {
	pending, err := r.journal.Pending()
	if err != nil {
		return fmt.Errorf("list journaled tasks: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}
	r.log.InfoObj("resuming journaled tasks", "pending_count", len(pending))

	var errs []error
	for _, rec := range pending {
		if err := r.awaitAndPublish(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// awaitAndPublish waits for a tracked task and publishes its result. The
// record stays journaled only when the task may still finish later.
func (r *Runner) awaitAndPublish(ctx context.Context, rec journal.TaskRecord) error {
	id := indicatorclient.TaskHandle(rec.TaskID)
	p, err := r.client.GetAsyncTaskResult(ctx, id, r.resultOpts)
	if err != nil {
		if settled(err) {
			r.forget(rec.TaskID)
		}
		return fmt.Errorf("job %s task %s: %w", rec.JobID, rec.TaskID, err)
	}

	mode, indicators := jobs.ModeAsync, []string(nil)
	if j, ok := r.jobs.ByID(rec.JobID); ok {
		mode, indicators = j.Mode, j.Indicators
	}
	if err := r.publish(ctx, sinks.NewEvent(rec.JobID, mode, rec.Symbol, indicators, rec.TaskID, p.Raw())); err != nil {
		return err
	}
	r.forget(rec.TaskID)
	return nil
}

// settled reports whether err means the task will never yield a result.
func settled(err error) bool {
	var failed *indicatorclient.TaskFailedError
	if errors.As(err, &failed) {
		return true
	}
	var reqErr *indicatorclient.RequestError
	return errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusNotFound
}

func (r *Runner) forget(taskID string) {
	if err := r.journal.Done(taskID); err != nil {
		r.log.WarnObj("journal done failed", "journal_error", map[string]any{
			"task_id": taskID,
			"error":   err.Error(),
		})
	}
}

func (r *Runner) publish(ctx context.Context, evt sinks.Event) error {
	n, err := r.fanout.Publish(ctx, evt)
	if n > 0 {
		r.metrics.EventsPublished.Inc()
	}
	if err != nil {
		return fmt.Errorf("publish event %s for job %s: %w", evt.ID, evt.JobID, err)
	}
	return nil
}
