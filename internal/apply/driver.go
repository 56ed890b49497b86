// Package apply drives a single listing's application flow to a terminal outcome.
//
// The driver is a bounded polling state machine. Each tick waits for the page to settle,
// then acts on at most one affordance, checked in a fixed priority order:
// inline error, continue, review, submit. A flow that shows no controls at all is stuck;
// a flow that never reaches submit is stuck once the attempt budget runs out.
package apply

import (
	"context"

	"go.uber.org/zap"

	"github.com/jonathan/apply-agent/internal/logger"
	"github.com/jonathan/apply-agent/internal/page"
	"github.com/jonathan/apply-agent/internal/types"
	"github.com/jonathan/apply-agent/internal/wait"
)

// Reasons attached to non-applied outcomes.
const (
	ReasonNoApplyAction   = "no fast-apply action"
	ReasonStopped         = "stopped"
	ReasonNoControls      = "no actionable controls"
	ReasonBudgetExhausted = "attempt budget exhausted"
	ReasonInlineError     = "inline error"
)

// Options configures a Driver.
type Options struct {
	Timing  wait.Timing
	Markers page.Markers
	Clock   wait.Clock
	// Running is polled at every suspension point; returning false abandons the flow.
	Running func() bool
	Logger  *zap.SugaredLogger
}

// Driver advances the application flow for one candidate at a time.
type Driver struct {
	view    page.View
	timing  wait.Timing
	markers page.Markers
	clock   wait.Clock
	running func() bool
	log     *zap.SugaredLogger
}

// New creates a driver acting on view.
func New(view page.View, opts Options) *Driver {
	if opts.Markers.Selectors == nil {
		opts.Markers = page.DefaultMarkers()
	}
	if opts.Clock == nil {
		opts.Clock = wait.RealClock{}
	}
	if opts.Running == nil {
		opts.Running = func() bool { return true }
	}
	if opts.Logger == nil {
		opts.Logger = logger.Named("driver")
	}
	return &Driver{
		view:    view,
		timing:  opts.Timing.WithDefaults(),
		markers: opts.Markers,
		clock:   opts.Clock,
		running: opts.Running,
		log:     opts.Logger,
	}
}

// Drive opens the application flow for c (whose detail pane must already be showing) and
// advances it until a terminal outcome. Failures are folded into the outcome; Drive never
// returns an error and emits exactly one outcome per call.
func (d *Driver) Drive(ctx context.Context, c types.Candidate) types.Outcome {
	log := d.log.With(logger.FieldTitle, c.Identity.Title, logger.FieldOrganization, c.Identity.Organization)

	openers, err := d.view.FindByLabelSubstring(ctx, nil, d.markers.DetailApplyLabel)
	if err != nil {
		return d.finish(log, types.Errored(err.Error(), 0))
	}
	if len(openers) == 0 {
		return d.finish(log, types.Declined(ReasonNoApplyAction, 0))
	}

	log.Debug("opening application flow")
	if err := d.view.Click(ctx, openers[0]); err != nil {
		return d.finish(log, types.Errored(err.Error(), 0))
	}
	if err := d.clock.Sleep(ctx, d.timing.ActionDelay); err != nil {
		return d.finish(log, types.Declined(ReasonStopped, 0))
	}

	return d.finish(log, d.advance(ctx, log))
}

func (d *Driver) advance(ctx context.Context, log *zap.SugaredLogger) types.Outcome {
	for tick := 1; tick <= d.timing.MaxTicks; tick++ {
		if err := d.clock.Sleep(ctx, d.timing.TickDelay); err != nil {
			return types.Declined(ReasonStopped, tick-1)
		}
		if !d.running() {
			return types.Declined(ReasonStopped, tick-1)
		}

		outcome, done := d.step(ctx, log, tick)
		if done {
			return outcome
		}
	}
	return types.Stuck(ReasonBudgetExhausted, d.timing.MaxTicks)
}

// step evaluates the page once and acts on the first matching affordance.
func (d *Driver) step(ctx context.Context, log *zap.SugaredLogger, tick int) (types.Outcome, bool) {
	errorsShown, err := d.view.FindByRole(ctx, nil, page.RoleErrorFeedback)
	if err != nil {
		return types.Errored(err.Error(), tick), true
	}
	if len(errorsShown) > 0 {
		text, err := d.view.Text(ctx, errorsShown[0])
		if err != nil || text == "" {
			text = ReasonInlineError
		}
		return types.Errored(text, tick), true
	}

	for _, label := range []string{d.markers.ContinueLabel, d.markers.ReviewLabel} {
		clicked, err := d.clickLabel(ctx, label)
		if err != nil {
			return types.Errored(err.Error(), tick), true
		}
		if clicked {
			log.Debugw("advanced flow", "control", label, logger.FieldTicks, tick)
			return types.Outcome{}, false
		}
	}

	submitted, err := d.clickLabel(ctx, d.markers.SubmitLabel)
	if err != nil {
		return types.Errored(err.Error(), tick), true
	}
	if submitted {
		log.Debugw("submitted application", logger.FieldTicks, tick)
		d.dismissConfirmation(ctx, log)
		return types.Applied(tick), true
	}

	controls, err := d.view.FindByRole(ctx, nil, page.RoleButton)
	if err != nil {
		return types.Errored(err.Error(), tick), true
	}
	if len(controls) == 0 {
		return types.Stuck(ReasonNoControls, tick), true
	}

	return types.Outcome{}, false
}

// dismissConfirmation closes the post-submit dialog when one appears. The application is
// already submitted, so failures here only get logged.
func (d *Driver) dismissConfirmation(ctx context.Context, log *zap.SugaredLogger) {
	if err := d.clock.Sleep(ctx, d.timing.ActionDelay); err != nil {
		return
	}
	if _, err := d.clickLabel(ctx, d.markers.DismissLabel); err != nil {
		log.Warnw("failed to dismiss confirmation", "error", err)
	}
}

// clickLabel activates the first button labeled exactly label. Job cards carry controls such
// as "Dismiss <title> job" that a substring match would hit first.
func (d *Driver) clickLabel(ctx context.Context, label string) (bool, error) {
	if label == "" {
		return false, nil
	}
	nodes, err := d.view.FindByLabel(ctx, nil, label)
	if err != nil {
		return false, err
	}
	if len(nodes) == 0 {
		return false, nil
	}
	if err := d.view.Click(ctx, nodes[0]); err != nil {
		return false, err
	}
	return true, nil
}

func (d *Driver) finish(log *zap.SugaredLogger, outcome types.Outcome) types.Outcome {
	log.Infow("application finished",
		logger.FieldOutcome, string(outcome.Kind),
		"reason", outcome.Reason,
		logger.FieldTicks, outcome.Ticks)
	return outcome
}
