package runloop

import (
	"context"
	"errors"
	"sync"

	"github.com/jonathan/apply-agent/internal/logger"
	"github.com/jonathan/apply-agent/internal/page"
	"github.com/jonathan/apply-agent/internal/types"
)

// Controller is the single place where runs are started and stopped. At most one run loop
// is active at a time; Start while running stops the active loop and resumes the same
// session with the new settings. The hand-over publishes no intermediate Stopped status.
type Controller struct {
	ctx  context.Context
	view page.View
	opts Options

	// ctrlMu serializes Start, Stop and Reset.
	ctrlMu sync.Mutex

	mu     sync.Mutex
	state  *RunState
	phase  string
	done   chan struct{}
	result Result
	err    error
	// handoff is set while Start replaces a running loop.
	handoff bool
}

// NewController creates an idle controller. Runs inherit ctx; cancelling it stops them.
func NewController(ctx context.Context, view page.View, opts Options) *Controller {
	opts = opts.withDefaults()
	done := make(chan struct{})
	close(done)
	return &Controller{
		ctx:   ctx,
		view:  view,
		opts:  opts,
		phase: types.PhaseStopped,
		done:  done,
	}
}

// Start validates settings and launches a run loop. It returns once the loop is launched.
// Without AutoNavigate, a page that is not showing the target search is rejected with
// ErrNavigationRequired and any active run keeps going.
func (c *Controller) Start(settings types.Settings) error {
	c.ctrlMu.Lock()
	defer c.ctrlMu.Unlock()

	settings = settings.Normalize()
	if err := settings.Validate(); err != nil {
		verr := &ValidationError{Cause: err}
		c.opts.Notifier.Publish(types.Event{Type: types.EventError, Text: verr.Error()})
		return verr
	}

	if !c.opts.AutoNavigate {
		if err := checkSearch(c.ctx, c.view, settings); err != nil {
			c.reject(err)
			return err
		}
	}

	c.mu.Lock()
	state := c.state
	done := c.done
	resume := state != nil && state.Running()
	c.handoff = resume
	c.mu.Unlock()

	if state != nil {
		state.Stop()
	}
	<-done

	if resume {
		state.replaceSettings(settings)
		c.opts.Logger.Infow("restarting session with new settings", logger.FieldSessionID, state.SessionID.String())
	} else {
		state = NewRunState(settings)
		c.opts.Logger.Infow("starting session", logger.FieldSessionID, state.SessionID.String())
	}
	state.start()

	done = make(chan struct{})
	c.mu.Lock()
	c.state = state
	c.done = done
	c.phase = types.PhaseRunning
	c.result = Result{}
	c.err = nil
	c.handoff = false
	c.mu.Unlock()

	c.opts.Metrics.SetRunning(true)
	c.opts.Metrics.SetApplied(state.Applied())
	c.opts.Notifier.Publish(types.Event{
		Type:      types.EventStatus,
		SessionID: state.SessionID.String(),
		Applied:   state.Applied(),
		Text:      types.PhaseRunning,
	})

	runner := NewRunner(c.view, state, c.opts)
	go c.loop(runner, state, done)
	return nil
}

func (c *Controller) loop(runner *Runner, state *RunState, done chan struct{}) {
	defer close(done)

	result, err := runner.Run(c.ctx)
	state.Stop()

	phase := phaseFor(err)
	if isFailure(err) {
		c.opts.Logger.Errorw("run failed", logger.FieldSessionID, state.SessionID.String(), "error", err)
		c.opts.Notifier.Publish(types.Event{
			Type:      types.EventError,
			SessionID: state.SessionID.String(),
			Text:      err.Error(),
		})
	}

	c.mu.Lock()
	handoff := c.handoff
	if !handoff {
		c.phase = phase
	}
	c.result = result
	c.err = err
	c.mu.Unlock()

	if handoff {
		return
	}
	c.opts.Metrics.SetRunning(false)
	c.opts.Notifier.Publish(types.Event{
		Type:      types.EventStatus,
		SessionID: state.SessionID.String(),
		Applied:   state.Applied(),
		Text:      phase,
	})
}

// reject reports a Start refused before any loop was touched. The phase only changes when
// no run is active.
func (c *Controller) reject(err error) {
	c.opts.Logger.Infow("start rejected", "error", err)
	if isFailure(err) {
		c.opts.Notifier.Publish(types.Event{Type: types.EventError, Text: err.Error()})
	}

	c.mu.Lock()
	idle := c.state == nil || !c.state.Running()
	phase := phaseFor(err)
	if idle {
		c.phase = phase
	}
	c.mu.Unlock()

	if idle {
		c.opts.Notifier.Publish(types.Event{Type: types.EventStatus, Text: phase})
	}
}

func isFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrNavigationRequired)
}

func phaseFor(err error) string {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return types.PhaseStopped
	case errors.Is(err, ErrNavigationRequired):
		return types.PhaseNavigationRequired
	default:
		return types.PhaseErrorPrefix + err.Error()
	}
}

// Stop clears the running flag. The loop exits at its next suspension point; Stop does not
// wait for it. Stopping an idle controller is a no-op.
func (c *Controller) Stop() {
	c.ctrlMu.Lock()
	defer c.ctrlMu.Unlock()

	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	if state == nil || !state.Running() {
		return
	}
	c.opts.Logger.Infow("stop requested", logger.FieldSessionID, state.SessionID.String())
	state.Stop()
}

// Reset stops any active run, waits for it to exit, and forgets the session.
func (c *Controller) Reset() {
	c.ctrlMu.Lock()
	defer c.ctrlMu.Unlock()

	c.mu.Lock()
	state := c.state
	done := c.done
	c.mu.Unlock()

	if state != nil {
		state.Stop()
	}
	<-done

	c.mu.Lock()
	c.state = nil
	c.phase = types.PhaseStopped
	c.result = Result{}
	c.err = nil
	c.mu.Unlock()
	c.opts.Metrics.SetApplied(0)
}

// Status returns a snapshot of the current session.
func (c *Controller) Status() types.RunStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := types.RunStatus{Phase: c.phase}
	if c.state != nil {
		status.SessionID = c.state.SessionID.String()
		status.Running = c.state.Running()
		status.Applied = c.state.Applied()
		status.Settings = c.state.Settings()
	}
	return status
}

// Done returns a channel closed when the current loop has exited.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Wait blocks until the current loop exits and returns how it ended.
func (c *Controller) Wait() (Result, error) {
	<-c.Done()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result, c.err
}
