package wait

import "time"

// Default timing values, taken from the delays the application flow needs to settle.
const (
	DefaultSettleDelay   = 2 * time.Second
	DefaultTickDelay     = 1 * time.Second
	DefaultActionDelay   = 1 * time.Second
	DefaultMaxTicks      = 20
	DefaultMaxEmptyScans = 5
	DefaultEmptyScanMax  = 10 * time.Second
)

// Timing is the scheduling policy shared by the run loop and the driver.
type Timing struct {
	// SettleDelay is waited after page-level actions (selecting a listing, scrolling, navigating).
	SettleDelay time.Duration
	// TickDelay is waited before every driver tick.
	TickDelay time.Duration
	// ActionDelay is waited after opening the apply flow and after submitting.
	ActionDelay time.Duration
	// MaxTicks is the driver attempt budget.
	MaxTicks int
	// MaxEmptyScans bounds consecutive scans that find no rendered listings.
	MaxEmptyScans int
	// EmptyScan is the backoff between empty scans.
	EmptyScan Strategy
}

// DefaultTiming returns the production timing policy.
func DefaultTiming() Timing {
	return Timing{
		SettleDelay:   DefaultSettleDelay,
		TickDelay:     DefaultTickDelay,
		ActionDelay:   DefaultActionDelay,
		MaxTicks:      DefaultMaxTicks,
		MaxEmptyScans: DefaultMaxEmptyScans,
		EmptyScan:     Constant{Interval: DefaultSettleDelay},
	}
}

// WithDefaults fills zero fields from DefaultTiming.
func (t Timing) WithDefaults() Timing {
	d := DefaultTiming()
	if t.SettleDelay <= 0 {
		t.SettleDelay = d.SettleDelay
	}
	if t.TickDelay <= 0 {
		t.TickDelay = d.TickDelay
	}
	if t.ActionDelay <= 0 {
		t.ActionDelay = d.ActionDelay
	}
	if t.MaxTicks <= 0 {
		t.MaxTicks = d.MaxTicks
	}
	if t.MaxEmptyScans <= 0 {
		t.MaxEmptyScans = d.MaxEmptyScans
	}
	if t.EmptyScan == nil {
		t.EmptyScan = Constant{Interval: t.SettleDelay}
	}
	return t
}
