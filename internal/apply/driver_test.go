package apply

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/apply-agent/internal/page"
	"github.com/jonathan/apply-agent/internal/page/pagetest"
	"github.com/jonathan/apply-agent/internal/types"
	"github.com/jonathan/apply-agent/internal/wait"
)

var markers = page.DefaultMarkers()

func testTiming() wait.Timing {
	return wait.Timing{
		SettleDelay: 2 * time.Second,
		TickDelay:   time.Second,
		ActionDelay: 500 * time.Millisecond,
		MaxTicks:    20,
	}
}

func setup(flow []pagetest.Screen) (*pagetest.View, *wait.VirtualClock, types.Candidate) {
	view := pagetest.New("https://www.linkedin.com/jobs/search/", pagetest.FastApply("Go Developer", "Acme", flow))
	view.Select(0)
	candidate := types.Candidate{Identity: types.Identity{Title: "Go Developer", Organization: "Acme"}, IsFastApply: true}
	return view, wait.NewVirtualClock(), candidate
}

func TestDrive_HappyPath(t *testing.T) {
	view, clock, candidate := setup(pagetest.HappyFlow())
	d := New(view, Options{Timing: testTiming(), Clock: clock})

	outcome := d.Drive(context.Background(), candidate)

	assert.Equal(t, types.OutcomeApplied, outcome.Kind)
	assert.Equal(t, 3, outcome.Ticks, "one affordance per tick")
	assert.Equal(t, []string{
		"Easy Apply to Go Developer",
		markers.ContinueLabel,
		markers.ReviewLabel,
		markers.SubmitLabel,
		markers.DismissLabel,
	}, view.Clicks())
	assert.Equal(t, []time.Duration{
		500 * time.Millisecond,
		time.Second, time.Second, time.Second,
		500 * time.Millisecond,
	}, clock.Sleeps())
}

func TestDrive_IgnoresCardControls(t *testing.T) {
	listing := pagetest.FastApply("Go Developer", "Acme", pagetest.HappyFlow())
	listing.Controls = []string{"Dismiss Go Developer job", "Continue to next step later"}
	view := pagetest.New("https://www.linkedin.com/jobs/search/", listing)
	view.Select(0)
	clock := wait.NewVirtualClock()
	d := New(view, Options{Timing: testTiming(), Clock: clock})

	outcome := d.Drive(context.Background(), types.Candidate{Identity: types.Identity{Title: "Go Developer"}})

	assert.Equal(t, types.OutcomeApplied, outcome.Kind)
	assert.Equal(t, []string{
		"Easy Apply to Go Developer",
		markers.ContinueLabel,
		markers.ReviewLabel,
		markers.SubmitLabel,
		markers.DismissLabel,
	}, view.Clicks())
}

type labelRecorder struct {
	*page.Document
	clicked []string
}

func (r *labelRecorder) Click(ctx context.Context, n page.Node) error {
	if sel, ok := n.(*goquery.Selection); ok {
		r.clicked = append(r.clicked, sel.AttrOr("aria-label", ""))
	}
	return r.Document.Click(ctx, n)
}

const confirmationSnapshot = `<html><body>
<ul>
  <li class="job-card-container">
    <div class="artdeco-entity-lockup__title">Frontend Engineer</div>
    <button aria-label="Dismiss Frontend Engineer job">x</button>
  </li>
</ul>
<div class="jobs-details">
  <button class="jobs-apply-button" aria-label="Easy Apply to Frontend Engineer at Acme">Easy Apply</button>
</div>
<div role="dialog">
  <button aria-label="Submit application">Submit</button>
  <button aria-label="Dismiss">x</button>
</div>
</body></html>`

func TestDrive_DismissesDialogNotCard(t *testing.T) {
	doc, err := page.ParseDocument("https://www.linkedin.com/jobs/search/", confirmationSnapshot, markers)
	require.NoError(t, err)
	view := &labelRecorder{Document: doc}
	d := New(view, Options{Timing: testTiming(), Clock: wait.NewVirtualClock()})

	outcome := d.Drive(context.Background(), types.Candidate{Identity: types.Identity{Title: "Frontend Engineer"}})

	assert.Equal(t, types.Applied(1), outcome)
	assert.Equal(t, []string{
		"Easy Apply to Frontend Engineer at Acme",
		markers.SubmitLabel,
		markers.DismissLabel,
	}, view.clicked)
}

func TestDrive_SubmitWithoutConfirmation(t *testing.T) {
	view, clock, candidate := setup([]pagetest.Screen{{Labels: []string{markers.SubmitLabel}}})
	d := New(view, Options{Timing: testTiming(), Clock: clock})

	outcome := d.Drive(context.Background(), candidate)

	assert.True(t, outcome.IsApplied())
	assert.Equal(t, 1, outcome.Ticks)
	assert.NotContains(t, view.Clicks(), markers.DismissLabel)
}

func TestDrive_BudgetExhausted(t *testing.T) {
	tests := []struct {
		name     string
		maxTicks int
	}{
		{name: "default budget", maxTicks: 20},
		{name: "custom budget", maxTicks: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := []pagetest.Screen{{Labels: []string{"Upload resume"}, Sticky: true}}
			view, clock, candidate := setup(flow)
			timing := testTiming()
			timing.MaxTicks = tt.maxTicks
			d := New(view, Options{Timing: timing, Clock: clock})

			outcome := d.Drive(context.Background(), candidate)

			assert.Equal(t, types.OutcomeStuck, outcome.Kind)
			assert.Equal(t, ReasonBudgetExhausted, outcome.Reason)
			assert.Equal(t, tt.maxTicks, outcome.Ticks)
			assert.Equal(t, tt.maxTicks+1, clock.Count(), "action delay plus one delay per tick")
		})
	}
}

func TestDrive_ContinueNeverReachesSubmit(t *testing.T) {
	flow := []pagetest.Screen{{Labels: []string{markers.ContinueLabel}, Sticky: true}}
	view, clock, candidate := setup(flow)
	d := New(view, Options{Timing: testTiming(), Clock: clock})

	outcome := d.Drive(context.Background(), candidate)

	assert.Equal(t, types.OutcomeStuck, outcome.Kind)
	assert.Equal(t, 20, outcome.Ticks)

	continues := 0
	for _, c := range view.Clicks() {
		if c == markers.ContinueLabel {
			continues++
		}
	}
	assert.Equal(t, 20, continues)
}

func TestDrive_ErrorTakesPriority(t *testing.T) {
	flow := []pagetest.Screen{{
		Error:  "Please enter a valid answer",
		Labels: []string{markers.ContinueLabel, markers.SubmitLabel},
	}}
	view, clock, candidate := setup(flow)
	d := New(view, Options{Timing: testTiming(), Clock: clock})

	outcome := d.Drive(context.Background(), candidate)

	assert.Equal(t, types.OutcomeErrored, outcome.Kind)
	assert.Equal(t, "Please enter a valid answer", outcome.Reason)
	assert.Equal(t, 1, outcome.Ticks)
	assert.NotContains(t, view.Clicks(), markers.ContinueLabel)
	assert.NotContains(t, view.Clicks(), markers.SubmitLabel)
}

func TestDrive_ErrorAfterSteps(t *testing.T) {
	flow := []pagetest.Screen{
		{Labels: []string{markers.ContinueLabel}},
		{Error: "File is required", Labels: []string{markers.ReviewLabel}},
	}
	view, clock, candidate := setup(flow)
	d := New(view, Options{Timing: testTiming(), Clock: clock})

	outcome := d.Drive(context.Background(), candidate)

	assert.Equal(t, types.Errored("File is required", 2), outcome)
}

func TestDrive_NoControls(t *testing.T) {
	view, clock, candidate := setup([]pagetest.Screen{{}})
	d := New(view, Options{Timing: testTiming(), Clock: clock})

	outcome := d.Drive(context.Background(), candidate)

	assert.Equal(t, types.Stuck(ReasonNoControls, 1), outcome)
}

func TestDrive_NoApplyAction(t *testing.T) {
	view := pagetest.New("", pagetest.Listing{Title: "External", Text: "Easy Apply"})
	view.Select(0)
	clock := wait.NewVirtualClock()
	d := New(view, Options{Timing: testTiming(), Clock: clock})

	outcome := d.Drive(context.Background(), types.Candidate{})

	assert.Equal(t, types.Declined(ReasonNoApplyAction, 0), outcome)
	assert.Empty(t, view.Clicks())
	assert.Zero(t, clock.Count())
}

func TestDrive_StopRequested(t *testing.T) {
	flow := []pagetest.Screen{{Labels: []string{markers.ContinueLabel}, Sticky: true}}
	view, clock, candidate := setup(flow)

	running := true
	clock.OnSleep = func(n int, _ time.Duration) {
		if n == 4 {
			running = false
		}
	}
	d := New(view, Options{Timing: testTiming(), Clock: clock, Running: func() bool { return running }})

	outcome := d.Drive(context.Background(), candidate)

	assert.Equal(t, types.OutcomeDeclined, outcome.Kind)
	assert.Equal(t, ReasonStopped, outcome.Reason)
	assert.Equal(t, 2, outcome.Ticks)
}

func TestDrive_ContextCancelled(t *testing.T) {
	view, clock, candidate := setup(pagetest.HappyFlow())
	d := New(view, Options{Timing: testTiming(), Clock: clock})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcome := d.Drive(ctx, candidate)

	assert.Equal(t, types.Declined(ReasonStopped, 0), outcome)
}

func TestDrive_ViewFailure(t *testing.T) {
	view, clock, candidate := setup(pagetest.HappyFlow())
	clock.OnSleep = func(n int, _ time.Duration) {
		if n == 2 {
			view.SetFail("find", errors.New("target closed"))
		}
	}
	d := New(view, Options{Timing: testTiming(), Clock: clock})

	outcome := d.Drive(context.Background(), candidate)

	require.Equal(t, types.OutcomeErrored, outcome.Kind)
	assert.Contains(t, outcome.Reason, "target closed")
	assert.Equal(t, 1, outcome.Ticks)
}
