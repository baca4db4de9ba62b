// Package feed runs one refresh of the payment chart per scheduler tick.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"payout-charts/internal/alerting"
	"payout-charts/internal/metrics"
	"payout-charts/internal/render"
	"payout-charts/internal/scheduler"
	"payout-charts/internal/series"
	"payout-charts/internal/source"
)

// Options carry the per-account settings of a feed.
type Options struct {
	Account string
	// StaleAfter is consulted on every tick; nil or non-positive falls back to series.DefaultStaleAfter.
	StaleAfter func() time.Duration
}

// Deps are the collaborators of a feed. Reporter and Metrics are optional.
type Deps struct {
	Scheduler *scheduler.Scheduler
	Source    source.EventSource
	Surface   render.Surface
	Labels    series.LabelFormatter
	Reporter  alerting.Reporter
	Metrics   *metrics.Metrics
}

// Feed re-materializes an account's payment series and pushes it to a surface.
type Feed struct {
	opts   Options
	deps   Deps
	logger zerolog.Logger

	// mu serializes scheduled ticks with out-of-band refreshes.
	mu sync.Mutex
}

// New constructs a feed.
func New(opts Options, deps Deps, logger zerolog.Logger) *Feed {
	if deps.Labels == nil {
		deps.Labels = series.LabelFunc(func(t time.Time) string { return t.Format(time.RFC3339) })
	}
	return &Feed{
		opts:   opts,
		deps:   deps,
		logger: logger.With().Str("component", "feed").Str("account", opts.Account).Logger(),
	}
}

// Run blocks on the scheduler until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	if f.deps.Scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return f.deps.Scheduler.Run(ctx, f.Tick)
}

// Start arms the scheduler without blocking.
func (f *Feed) Start(ctx context.Context) error {
	if f.deps.Scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return f.deps.Scheduler.Start(ctx, f.Tick)
}

// Stop disarms the scheduler.
func (f *Feed) Stop() {
	if f.deps.Scheduler != nil {
		f.deps.Scheduler.Stop()
	}
}

// Tick performs one refresh. A surface that is not ready turns the tick into a no-op.
// Invalid events are reported and returned; the caller keeps scheduling either way.
func (f *Feed) Tick(ctx context.Context, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	started := time.Now()
	tickID := uuid.NewString()
	logger := f.logger.With().Str("tick_id", tickID).Logger()

	if !f.deps.Surface.IsReady() {
		logger.Debug().Str("surface", f.deps.Surface.Name()).Msg("surface not ready; skipping tick")
		f.count(metrics.ResultSkipped)
		return nil
	}
	defer f.observe(started)

	points, err := f.build(ctx, now)
	if err != nil {
		var invalid *series.InvalidEventError
		if errors.As(err, &invalid) {
			f.count(metrics.ResultInvalid)
			f.report(ctx, logger, alerting.Report{TickID: tickID, Tick: now, Account: f.opts.Account, Err: err})
			return err
		}
		f.count(metrics.ResultFailed)
		return err
	}

	if err := f.deps.Surface.PushSeries(points); err != nil {
		f.count(metrics.ResultFailed)
		f.surfaceError(err)
		return fmt.Errorf("push series: %w", err)
	}

	f.count(metrics.ResultPushed)
	if f.deps.Metrics != nil {
		f.deps.Metrics.SeriesPoints.Set(float64(len(points)))
		f.deps.Metrics.LastPush.Set(float64(now.Unix()))
		if n := len(points); n > 0 && points[n-1].Synthetic {
			f.deps.Metrics.Sentinels.Inc()
		}
	}
	logger.Debug().Int("points", len(points)).Msg("series pushed")
	return nil
}

// RefreshFunc returns a callback running one tick at clock's reading, for surfaces
// that need a series before the next scheduled tick. Errors are logged.
func (f *Feed) RefreshFunc(ctx context.Context, clock func() time.Time) func() {
	return func() {
		if err := f.Tick(ctx, clock()); err != nil {
			f.logger.Error().Err(err).Msg("out-of-band refresh failed")
		}
	}
}

// Preview builds the series a tick at now would push, without pushing it.
func (f *Feed) Preview(ctx context.Context, now time.Time) ([]series.PlottedPoint, error) {
	return f.build(ctx, now)
}

func (f *Feed) build(ctx context.Context, now time.Time) ([]series.PlottedPoint, error) {
	events, err := f.deps.Source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot payments: %w", err)
	}

	points, err := series.Materialize(events, f.deps.Labels)
	if err != nil {
		return nil, err
	}
	return series.ApplyLivenessGap(points, now, f.staleAfter(), f.deps.Labels), nil
}

func (f *Feed) staleAfter() time.Duration {
	if f.opts.StaleAfter == nil {
		return series.DefaultStaleAfter
	}
	return f.opts.StaleAfter()
}

func (f *Feed) report(ctx context.Context, logger zerolog.Logger, report alerting.Report) {
	if f.deps.Reporter == nil {
		logger.Error().Err(report.Err).Msg("payment series rejected")
		return
	}
	outcome := "sent"
	if err := f.deps.Reporter.Report(ctx, report); err != nil {
		outcome = "failed"
		logger.Error().Err(err).Msg("failed to deliver error report")
	}
	if f.deps.Metrics != nil {
		f.deps.Metrics.Reports.WithLabelValues(outcome).Inc()
	}
}

func (f *Feed) surfaceError(err error) {
	if f.deps.Metrics == nil {
		return
	}
	failed := failedSurfaces(err)
	if len(failed) == 0 {
		failed = []string{f.deps.Surface.Name()}
	}
	for _, name := range failed {
		f.deps.Metrics.SurfaceErrors.WithLabelValues(name).Inc()
	}
}

func failedSurfaces(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var names []string
		for _, e := range joined.Unwrap() {
			names = append(names, failedSurfaces(e)...)
		}
		return names
	}
	var pushErr *render.PushError
	if errors.As(err, &pushErr) {
		return []string{pushErr.Surface}
	}
	return nil
}

func (f *Feed) count(result string) {
	if f.deps.Metrics != nil {
		f.deps.Metrics.Ticks.WithLabelValues(result).Inc()
	}
}

func (f *Feed) observe(started time.Time) {
	if f.deps.Metrics != nil {
		f.deps.Metrics.TickDuration.Observe(time.Since(started).Seconds())
	}
}
