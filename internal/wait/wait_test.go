package wait

import (
	"context"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealClock_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RealClock{}.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRealClock_ZeroDuration(t *testing.T) {
	err := RealClock{}.Sleep(context.Background(), 0)
	assert.NoError(t, err)
}

func TestVirtualClock_RecordsSleeps(t *testing.T) {
	clock := NewVirtualClock()
	var seen []int
	clock.OnSleep = func(n int, _ time.Duration) { seen = append(seen, n) }

	require.NoError(t, clock.Sleep(context.Background(), time.Second))
	require.NoError(t, clock.Sleep(context.Background(), 2*time.Second))

	assert.Equal(t, 3*time.Second, clock.Elapsed())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.Sleeps())
	assert.Equal(t, 2, clock.Count())
	assert.Equal(t, []int{1, 2}, seen)
}

func sequence(s Strategy, n int) []time.Duration {
	b := s.NewBackOff()
	out := make([]time.Duration, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, b.NextBackOff())
	}
	return out
}

func TestStrategies(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		expected []time.Duration
	}{
		{"constant", Constant{Interval: 2 * time.Second}, []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second}},
		{"linear", Linear{Initial: time.Second}, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}},
		{"linear capped", Linear{Initial: time.Second, Max: 2 * time.Second}, []time.Duration{time.Second, 2 * time.Second, 2 * time.Second}},
		{"exponential", Exponential{Initial: time.Second}, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}},
		{"exponential capped", Exponential{Initial: time.Second, Max: 5 * time.Second}, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sequence(tt.strategy, len(tt.expected)))
		})
	}
}

func TestStrategies_ManyAttemptsStayCapped(t *testing.T) {
	for _, s := range []Strategy{
		Exponential{Initial: time.Second, Max: 10 * time.Second},
		Linear{Initial: time.Second, Max: 10 * time.Second},
	} {
		delays := sequence(s, 200)
		assert.Equal(t, 10*time.Second, delays[len(delays)-1])
		for _, d := range delays {
			assert.Positive(t, d)
		}
	}

	uncapped := sequence(Exponential{Initial: time.Second}, 200)
	for _, d := range uncapped {
		assert.Positive(t, d, "uncapped growth never wraps negative")
	}
	assert.Equal(t, MaxBackOff, uncapped[len(uncapped)-1])
}

func TestStrategies_Reset(t *testing.T) {
	b := Linear{Initial: time.Second}.NewBackOff()
	b.NextBackOff()
	b.NextBackOff()
	b.Reset()
	assert.Equal(t, time.Second, b.NextBackOff())

	limited := backoff.WithMaxRetries(Constant{Interval: time.Second}.NewBackOff(), 2)
	assert.Equal(t, time.Second, limited.NextBackOff())
	assert.Equal(t, time.Second, limited.NextBackOff())
	assert.Equal(t, backoff.Stop, limited.NextBackOff())
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("", time.Second, 0)
	require.NoError(t, err)
	assert.IsType(t, Constant{}, s)

	s, err = ParseStrategy("Linear", time.Second, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, Linear{Initial: time.Second, Max: time.Minute}, s)

	_, err = ParseStrategy("fibonacci", time.Second, 0)
	assert.Error(t, err)
}

func TestTiming_WithDefaults(t *testing.T) {
	timing := Timing{MaxTicks: 5}.WithDefaults()

	assert.Equal(t, 5, timing.MaxTicks)
	assert.Equal(t, DefaultSettleDelay, timing.SettleDelay)
	assert.Equal(t, DefaultTickDelay, timing.TickDelay)
	assert.Equal(t, DefaultMaxEmptyScans, timing.MaxEmptyScans)
	assert.NotNil(t, timing.EmptyScan)
}
