package wait

import (
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Strategy describes a retry delay policy. Each call to NewBackOff starts a fresh sequence;
// the caller sleeps on its own Clock, so the sequences work with VirtualClock too.
type Strategy interface {
	NewBackOff() backoff.BackOff
}

// Constant always waits Interval.
type Constant struct {
	Interval time.Duration
}

// NewBackOff returns a constant sequence.
func (c Constant) NewBackOff() backoff.BackOff {
	return backoff.NewConstantBackOff(c.Interval)
}

// Linear waits Initial * attempt, capped at Max.
type Linear struct {
	Initial time.Duration
	Max     time.Duration
}

// NewBackOff returns a linear sequence.
func (l Linear) NewBackOff() backoff.BackOff {
	return &linearBackOff{initial: l.Initial, max: capOrMax(l.Max)}
}

type linearBackOff struct {
	initial time.Duration
	max     time.Duration
	attempt int64
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	if b.initial > 0 && b.attempt > int64(b.max/b.initial) {
		return b.max
	}
	return b.initial * time.Duration(b.attempt)
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}

// Exponential doubles the wait each attempt starting at Initial, capped at Max.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewBackOff returns a jitter-free exponential sequence that never gives up on its own.
func (e Exponential) NewBackOff() backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     e.Initial,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         capOrMax(e.Max),
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

// MaxBackOff bounds strategies configured without a Max.
const MaxBackOff = 24 * time.Hour

func capOrMax(d time.Duration) time.Duration {
	if d <= 0 {
		return MaxBackOff
	}
	return d
}

// ParseStrategy builds a strategy from its config name. An empty name means constant.
func ParseStrategy(name string, base, maxDelay time.Duration) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "constant":
		return Constant{Interval: base}, nil
	case "linear":
		return Linear{Initial: base, Max: maxDelay}, nil
	case "exponential":
		return Exponential{Initial: base, Max: maxDelay}, nil
	default:
		return nil, fmt.Errorf("unknown backoff strategy %q", name)
	}
}
