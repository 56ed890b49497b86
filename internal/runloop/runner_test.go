package runloop

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/apply-agent/internal/page"
	"github.com/jonathan/apply-agent/internal/page/pagetest"
	"github.com/jonathan/apply-agent/internal/search"
	"github.com/jonathan/apply-agent/internal/types"
	"github.com/jonathan/apply-agent/internal/wait"
)

var markers = page.DefaultMarkers()

type recorder struct {
	mu     sync.Mutex
	events []types.Event
}

func (r *recorder) Publish(e types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofType(t types.EventType) []types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func testTiming() wait.Timing {
	return wait.Timing{
		SettleDelay:   2 * time.Second,
		TickDelay:     time.Second,
		ActionDelay:   500 * time.Millisecond,
		MaxTicks:      20,
		MaxEmptyScans: 2,
		EmptyScan:     wait.Constant{Interval: 3 * time.Second},
	}
}

func testSettings() types.Settings {
	return types.Settings{
		JobTitle: "Go Developer",
		JobType:  types.JobTypeRemote,
		Location: "Berlin",
	}.Normalize()
}

func errorFlow(msg string) []pagetest.Screen {
	return []pagetest.Screen{{Error: msg, Labels: []string{markers.ContinueLabel}}}
}

func fastListings(titles ...string) []pagetest.Listing {
	out := make([]pagetest.Listing, 0, len(titles))
	for _, title := range titles {
		out = append(out, pagetest.FastApply(title, "Acme", pagetest.HappyFlow()))
	}
	return out
}

func newRunner(view *pagetest.View, clock wait.Clock, notifier Notifier, mutate func(*Options)) (*Runner, *RunState) {
	state := NewRunState(testSettings())
	state.start()
	opts := Options{Timing: testTiming(), Clock: clock, Notifier: notifier}
	if mutate != nil {
		mutate(&opts)
	}
	return NewRunner(view, state, opts), state
}

func listingClicks(view *pagetest.View) []string {
	var out []string
	for _, c := range view.Clicks() {
		if title, ok := strings.CutPrefix(c, "listing:"); ok {
			out = append(out, title)
		}
	}
	return out
}

func TestRun_EndToEnd(t *testing.T) {
	target := search.BuildURL(testSettings())
	view := pagetest.New(target,
		pagetest.Listing{Title: "Frontend Engineer", Organization: "Globex"},
		pagetest.FastApply("Go Developer", "Acme", pagetest.HappyFlow()),
		pagetest.FastApply("Platform Engineer", "Initech", errorFlow("Phone number is required")),
	)
	events := &recorder{}
	runner, state := newRunner(view, wait.NewVirtualClock(), events, nil)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Result{Applied: 1, Processed: 2, Reason: ReasonExhausted}, result)
	assert.Equal(t, uint(1), state.Applied())
	assert.Equal(t, []string{"Go Developer", "Platform Engineer"}, listingClicks(view), "ineligible listing is never selected")
	assert.Equal(t, 1, view.Scrolls())
	assert.Equal(t, []string{target}, view.Navigations(), "search is reloaded once the results run dry")

	progress := events.ofType(types.EventProgress)
	require.Len(t, progress, 1)
	assert.Equal(t, uint(1), progress[0].Applied)
	assert.Equal(t, state.SessionID.String(), progress[0].SessionID)

	statuses := events.ofType(types.EventStatus)
	require.Len(t, statuses, 1, "failed listings are reported as status")
	assert.Contains(t, statuses[0].Text, "Platform Engineer")
	assert.Contains(t, statuses[0].Text, "Phone number is required")
}

func TestRun_CounterOnlyCountsApplied(t *testing.T) {
	target := search.BuildURL(testSettings())
	view := pagetest.New(target,
		pagetest.FastApply("A", "Acme", pagetest.HappyFlow()),
		pagetest.FastApply("B", "Acme", errorFlow("required")),
		pagetest.FastApply("C", "Acme", []pagetest.Screen{{Labels: []string{"Upload resume"}, Sticky: true}}),
		pagetest.FastApply("D", "Acme", nil),
		pagetest.FastApply("E", "Acme", pagetest.HappyFlow()),
	)
	events := &recorder{}
	runner, state := newRunner(view, wait.NewVirtualClock(), events, nil)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint(2), result.Applied)
	assert.Equal(t, 5, result.Processed)
	assert.Equal(t, uint(2), state.Applied())

	progress := events.ofType(types.EventProgress)
	require.Len(t, progress, 2)
	assert.Equal(t, uint(1), progress[0].Applied)
	assert.Equal(t, uint(2), progress[1].Applied)
}

func TestRun_StopMidBatch(t *testing.T) {
	target := search.BuildURL(testSettings())
	view := pagetest.New(target, fastListings("A", "B", "C")...)
	clock := wait.NewVirtualClock()
	runner, state := newRunner(view, clock, nil, nil)

	// The eighth sleep is the settle after the first application completes.
	clock.OnSleep = func(n int, _ time.Duration) {
		if n == 8 {
			state.Stop()
		}
	}

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Result{Applied: 1, Processed: 1, Reason: ReasonStopped}, result)
	assert.Equal(t, []string{"A"}, listingClicks(view))
	assert.Zero(t, view.Scrolls())
	assert.Empty(t, view.Navigations())
}

func TestRun_StopDuringDrive(t *testing.T) {
	target := search.BuildURL(testSettings())
	view := pagetest.New(target, fastListings("A", "B")...)
	clock := wait.NewVirtualClock()
	runner, state := newRunner(view, clock, nil, nil)

	clock.OnSleep = func(n int, _ time.Duration) {
		if n == 4 {
			state.Stop()
		}
	}

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint(0), result.Applied)
	assert.Equal(t, ReasonStopped, result.Reason)
	assert.NotContains(t, view.Clicks(), markers.SubmitLabel)
}

func TestRun_NavigationRequired(t *testing.T) {
	view := pagetest.New("https://www.linkedin.com/feed/", fastListings("A")...)
	runner, _ := newRunner(view, wait.NewVirtualClock(), nil, nil)

	result, err := runner.Run(context.Background())

	require.ErrorIs(t, err, ErrNavigationRequired)
	assert.Contains(t, err.Error(), search.BuildURL(testSettings()))
	assert.Equal(t, ReasonNavigationRequired, result.Reason)
	assert.Empty(t, view.Navigations())
	assert.Empty(t, view.Clicks())
}

func TestRun_AutoNavigateAndEmptyScans(t *testing.T) {
	target := search.BuildURL(testSettings())
	view := pagetest.New("https://www.linkedin.com/feed/")
	clock := wait.NewVirtualClock()
	runner, _ := newRunner(view, clock, nil, func(o *Options) { o.AutoNavigate = true })

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ReasonExhausted, result.Reason)
	assert.Equal(t, []string{target, target}, view.Navigations())
	assert.Equal(t, []time.Duration{
		2 * time.Second,
		2 * time.Second, 3 * time.Second,
		2 * time.Second, 3 * time.Second,
		2 * time.Second,
	}, clock.Sleeps(), "empty scans are bounded and backed off")
}

func TestRun_EmptyScansBackOffExponentially(t *testing.T) {
	view := pagetest.New(search.BuildURL(testSettings()))
	clock := wait.NewVirtualClock()
	runner, _ := newRunner(view, clock, nil, func(o *Options) {
		o.Timing.MaxEmptyScans = 3
		o.Timing.EmptyScan = wait.Exponential{Initial: time.Second, Max: 3 * time.Second}
	})

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ReasonExhausted, result.Reason)
	assert.Equal(t, []time.Duration{
		2 * time.Second, time.Second,
		2 * time.Second, 2 * time.Second,
		2 * time.Second, 3 * time.Second,
		2 * time.Second,
	}, clock.Sleeps())
}

func TestRun_SlowLoadingResults(t *testing.T) {
	target := search.BuildURL(testSettings())
	view := pagetest.New(target, fastListings("A")...)
	view.Rendered = 0
	clock := wait.NewVirtualClock()
	runner, _ := newRunner(view, clock, nil, nil)

	clock.OnSleep = func(n int, _ time.Duration) {
		if n == 2 {
			view.Rendered = 1
		}
	}

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint(1), result.Applied)
	assert.Equal(t, []string{"A"}, listingClicks(view))
}

func TestRun_ScrollLoadsMore(t *testing.T) {
	target := search.BuildURL(testSettings())
	view := pagetest.New(target, fastListings("A", "B", "C", "D")...)
	view.Rendered = 2
	view.PageSize = 2
	runner, _ := newRunner(view, wait.NewVirtualClock(), nil, nil)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint(4), result.Applied)
	assert.Equal(t, []string{"A", "B", "C", "D"}, listingClicks(view), "each listing is handled once")
	assert.Equal(t, 2, view.Scrolls())
}

func TestRun_DisableScroll(t *testing.T) {
	target := search.BuildURL(testSettings())
	view := pagetest.New(target, fastListings("A", "B")...)
	view.Rendered = 1
	view.PageSize = 1
	runner, _ := newRunner(view, wait.NewVirtualClock(), nil, func(o *Options) { o.DisableScroll = true })

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Result{Applied: 1, Processed: 1, Reason: ReasonExhausted}, result)
	assert.Zero(t, view.Scrolls())
}

func TestRun_MaxApplications(t *testing.T) {
	target := search.BuildURL(testSettings())
	view := pagetest.New(target, fastListings("A", "B", "C")...)
	runner, state := newRunner(view, wait.NewVirtualClock(), nil, func(o *Options) { o.MaxApplications = 2 })

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Result{Applied: 2, Processed: 2, Reason: ReasonLimit}, result)
	assert.False(t, state.Running())
}

func TestRun_SessionErrors(t *testing.T) {
	boom := errors.New("target closed")
	tests := []struct {
		name string
		op   string
	}{
		{name: "location", op: "location"},
		{name: "scan", op: "find"},
		{name: "scroll", op: "scroll"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := pagetest.New(search.BuildURL(testSettings()))
			view.SetFail(tt.op, boom)
			runner, _ := newRunner(view, wait.NewVirtualClock(), nil, func(o *Options) {
				o.Timing.MaxEmptyScans = 100
			})
			if tt.op == "scroll" {
				view.Listings = fastListings("A")
				view.Rendered = 1
			}

			_, err := runner.Run(context.Background())

			var serr *SessionError
			require.ErrorAs(t, err, &serr)
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestRun_ListingClickFailureIsNotFatal(t *testing.T) {
	target := search.BuildURL(testSettings())
	view := pagetest.New(target, fastListings("A", "B")...)
	view.SetFail("click", errors.New("detached"))
	runner, _ := newRunner(view, wait.NewVirtualClock(), nil, nil)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Result{Applied: 0, Processed: 2, Reason: ReasonExhausted}, result)
}

func TestRun_ContextCancelled(t *testing.T) {
	target := search.BuildURL(testSettings())
	view := pagetest.New(target, fastListings("A", "B")...)
	clock := wait.NewVirtualClock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner, _ := newRunner(view, clock, nil, nil)

	clock.OnSleep = func(n int, _ time.Duration) {
		if n == 8 {
			cancel()
		}
	}

	result, err := runner.Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint(1), result.Applied)
}
