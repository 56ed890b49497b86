// Package runloop owns the session: it repeatedly scans the results pane, hands each
// eligible listing to the application driver, counts successes, and loads more results
// until the operator stops it or the result set is exhausted.
package runloop

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/jonathan/apply-agent/internal/apply"
	"github.com/jonathan/apply-agent/internal/logger"
	"github.com/jonathan/apply-agent/internal/metrics"
	"github.com/jonathan/apply-agent/internal/page"
	"github.com/jonathan/apply-agent/internal/scanner"
	"github.com/jonathan/apply-agent/internal/search"
	"github.com/jonathan/apply-agent/internal/types"
	"github.com/jonathan/apply-agent/internal/wait"
)

// Notifier receives outgoing events. Implementations must not block.
type Notifier interface {
	Publish(e types.Event)
}

// StopReason explains why Run returned.
type StopReason string

const (
	// ReasonStopped means the running flag was cleared
	ReasonStopped StopReason = "stopped"
	// ReasonExhausted means scrolling produced no new listings
	ReasonExhausted StopReason = "exhausted"
	// ReasonLimit means MaxApplications was reached
	ReasonLimit StopReason = "limit"
	// ReasonNavigationRequired means the page is not the target search
	ReasonNavigationRequired StopReason = "navigation-required"
)

// Result summarizes one Run.
type Result struct {
	Applied   uint
	Processed int
	Reason    StopReason
}

// Options configures the run loop and the scanner and driver it builds.
type Options struct {
	Timing  wait.Timing
	Clock   wait.Clock
	Markers page.Markers
	// MatchTitle also requires listing titles to contain the configured job title.
	MatchTitle bool
	// AutoNavigate loads the canonical search when the page shows something else.
	AutoNavigate bool
	// DisableScroll ends the run after the first batch instead of loading more results.
	DisableScroll bool
	// MaxApplications stops the run once this many applications were submitted (0 = no limit).
	MaxApplications uint
	Notifier        Notifier
	Metrics         *metrics.Collector
	Logger          *zap.SugaredLogger
}

func (o Options) withDefaults() Options {
	o.Timing = o.Timing.WithDefaults()
	if o.Clock == nil {
		o.Clock = wait.RealClock{}
	}
	if o.Markers.Selectors == nil {
		o.Markers = page.DefaultMarkers()
	}
	if o.Notifier == nil {
		o.Notifier = discard{}
	}
	if o.Logger == nil {
		o.Logger = logger.Named("runloop")
	}
	return o
}

type discard struct{}

func (discard) Publish(types.Event) {}

// Runner executes one run over a page.View for the settings held in a RunState.
type Runner struct {
	view    page.View
	state   *RunState
	opts    Options
	scanner *scanner.Scanner
	driver  *apply.Driver
	log     *zap.SugaredLogger
}

// NewRunner wires a scanner and driver for state's current settings.
func NewRunner(view page.View, state *RunState, opts Options) *Runner {
	opts = opts.withDefaults()
	settings := state.Settings()
	log := opts.Logger.With(logger.FieldSessionID, state.SessionID.String())

	return &Runner{
		view:  view,
		state: state,
		opts:  opts,
		scanner: scanner.New(view, scanner.Options{
			MatchTitle: opts.MatchTitle,
			JobTitle:   settings.JobTitle,
			Markers:    opts.Markers,
			Logger:     log.With(logger.FieldComponent, "scanner"),
		}),
		driver: apply.New(view, apply.Options{
			Timing:  opts.Timing,
			Markers: opts.Markers,
			Clock:   opts.Clock,
			Running: state.Running,
			Logger:  log.With(logger.FieldComponent, "driver"),
		}),
		log: log,
	}
}

// Run processes listings until the state is stopped, the result set is exhausted, the
// application limit is reached, or a session-fatal error occurs. Per-listing failures never
// end the run. A cancelled ctx ends the run with ctx.Err().
func (r *Runner) Run(ctx context.Context) (Result, error) {
	settings := r.state.Settings()
	result := Result{Reason: ReasonStopped}

	if err := r.ensureSearch(ctx, settings); err != nil {
		if errors.Is(err, ErrNavigationRequired) {
			result.Reason = ReasonNavigationRequired
		}
		return result, err
	}

	r.log.Infow("run started", logger.FieldTitle, settings.JobTitle, "location", settings.Location, "job_type", settings.JobType)

	// offset is the number of listings already handled; scrolling only appends.
	offset := 0
	emptyScans := 0
	retry := backoff.WithMaxRetries(r.opts.Timing.EmptyScan.NewBackOff(), uint64(r.opts.Timing.MaxEmptyScans))
	for r.state.Running() {
		if err := r.opts.Clock.Sleep(ctx, r.opts.Timing.SettleDelay); err != nil {
			return r.finish(result, err)
		}
		if !r.state.Running() {
			break
		}

		batch, err := r.scanner.Scan(ctx)
		if err != nil {
			return r.finish(result, &SessionError{Message: "failed to scan listings", Cause: err})
		}
		r.opts.Metrics.RecordScan(batch.Rendered)

		if batch.Rendered == 0 {
			emptyScans++
			delay := retry.NextBackOff()
			if delay == backoff.Stop {
				r.log.Infow("no listings rendered, giving up", "empty_scans", emptyScans)
				r.renavigate(ctx, settings)
				result.Reason = ReasonExhausted
				return r.finish(result, nil)
			}
			r.log.Debugw("no listings rendered yet, retrying", "empty_scans", emptyScans, "delay", delay)
			if err := r.opts.Clock.Sleep(ctx, delay); err != nil {
				return r.finish(result, err)
			}
			continue
		}
		emptyScans = 0
		retry.Reset()

		halted, err := r.processBatch(ctx, batch, offset, &result)
		if err != nil {
			return r.finish(result, err)
		}
		if halted {
			break
		}
		offset = batch.Rendered

		exhausted, err := r.loadMore(ctx, batch.Rendered)
		if err != nil {
			return r.finish(result, err)
		}
		if exhausted {
			r.log.Infow("no more listings loading", "rendered", batch.Rendered)
			r.renavigate(ctx, settings)
			result.Reason = ReasonExhausted
			return r.finish(result, nil)
		}
	}

	return r.finish(result, nil)
}

func (r *Runner) finish(result Result, err error) (Result, error) {
	r.log.Infow("run finished",
		"reason", string(result.Reason),
		logger.FieldApplied, result.Applied,
		"processed", result.Processed,
		"error", err)
	return result, err
}

// checkSearch reports ErrNavigationRequired, wrapped with the target URL, when view is not
// showing the canonical search for settings.
func checkSearch(ctx context.Context, view page.View, settings types.Settings) error {
	current, err := view.Location(ctx)
	if err != nil {
		return &SessionError{Message: "cannot determine current page", Cause: err}
	}
	if search.Matches(current, settings) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNavigationRequired, search.BuildURL(settings))
}

// ensureSearch makes sure the page shows the canonical search for settings.
func (r *Runner) ensureSearch(ctx context.Context, settings types.Settings) error {
	err := checkSearch(ctx, r.view, settings)
	if err == nil {
		return nil
	}
	target := search.BuildURL(settings)
	if !errors.Is(err, ErrNavigationRequired) || !r.opts.AutoNavigate {
		r.log.Infow("page is not the target search", logger.FieldURL, target, "error", err)
		return err
	}

	r.log.Infow("navigating to job search", logger.FieldURL, target)
	if err := r.view.Navigate(ctx, target); err != nil {
		return &SessionError{Message: "failed to navigate to job search", Cause: err}
	}
	return r.opts.Clock.Sleep(ctx, r.opts.Timing.SettleDelay)
}

// renavigate reloads the canonical search once after the result set ran dry. Failures are
// only logged; the run is ending anyway.
func (r *Runner) renavigate(ctx context.Context, settings types.Settings) {
	target := search.BuildURL(settings)
	if err := r.view.Navigate(ctx, target); err != nil {
		r.log.Warnw("failed to refresh job search", logger.FieldURL, target, "error", err)
	}
}

// processBatch drives every eligible listing at or after offset. It reports halted when
// the run must not continue to load more results.
func (r *Runner) processBatch(ctx context.Context, batch *scanner.Batch, offset int, result *Result) (bool, error) {
	for candidate, err := range batch.Candidates(ctx) {
		if !r.state.Running() {
			return true, nil
		}
		if err != nil {
			r.log.Warnw("skipping listing that could not be inspected", "index", candidate.Index, "error", err)
			continue
		}
		if candidate.Index < offset {
			continue
		}

		outcome := r.process(ctx, candidate)
		result.Processed++
		r.opts.Metrics.RecordOutcome(outcome)

		if !outcome.IsApplied() {
			r.opts.Notifier.Publish(types.Event{
				Type:      types.EventStatus,
				SessionID: r.state.SessionID.String(),
				Applied:   r.state.Applied(),
				Text:      fmt.Sprintf("%s: %s", candidate.Identity.Title, outcome),
			})
		}

		if outcome.IsApplied() {
			applied := r.state.recordApplied()
			result.Applied++
			r.opts.Metrics.SetApplied(applied)
			r.opts.Notifier.Publish(types.Event{
				Type:      types.EventProgress,
				SessionID: r.state.SessionID.String(),
				Applied:   applied,
			})
			r.log.Infow("applied", logger.FieldTitle, candidate.Identity.Title,
				logger.FieldOrganization, candidate.Identity.Organization, logger.FieldApplied, applied)

			if r.opts.MaxApplications > 0 && applied >= r.opts.MaxApplications {
				r.log.Infow("application limit reached", "limit", r.opts.MaxApplications)
				result.Reason = ReasonLimit
				r.state.Stop()
				return true, nil
			}
		}

		if err := r.opts.Clock.Sleep(ctx, r.opts.Timing.SettleDelay); err != nil {
			return true, err
		}
	}
	return !r.state.Running(), nil
}

// process selects the listing, lets the detail pane render, and hands off to the driver.
func (r *Runner) process(ctx context.Context, candidate types.Candidate) types.Outcome {
	r.log.Infow("processing listing", logger.FieldTitle, candidate.Identity.Title,
		logger.FieldOrganization, candidate.Identity.Organization)

	if err := r.view.Click(ctx, candidate.Node); err != nil {
		return types.Errored(fmt.Sprintf("failed to select listing: %v", err), 0)
	}
	if err := r.opts.Clock.Sleep(ctx, r.opts.Timing.SettleDelay); err != nil || !r.state.Running() {
		return types.Declined(apply.ReasonStopped, 0)
	}
	return r.driver.Drive(ctx, candidate)
}

// loadMore scrolls for more results and reports whether the rendered count stayed the same.
func (r *Runner) loadMore(ctx context.Context, before int) (bool, error) {
	if r.opts.DisableScroll {
		return true, nil
	}

	r.log.Debug("scrolling to load more listings")
	if err := r.view.ScrollToBottom(ctx); err != nil {
		return false, &SessionError{Message: "failed to scroll results", Cause: err}
	}
	if err := r.opts.Clock.Sleep(ctx, r.opts.Timing.SettleDelay); err != nil {
		return false, err
	}

	after, err := r.scanner.Count(ctx)
	if err != nil {
		return false, &SessionError{Message: "failed to count listings", Cause: err}
	}
	return after <= before, nil
}
