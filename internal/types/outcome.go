package types

import "fmt"

// OutcomeKind tags the terminal result of one application attempt.
type OutcomeKind string

const (
	// OutcomeApplied means the submit control was activated
	OutcomeApplied OutcomeKind = "applied"
	// OutcomeDeclined means the flow was never entered (no apply action, run stopped)
	OutcomeDeclined OutcomeKind = "declined"
	// OutcomeStuck means no terminal condition was reached within the attempt budget
	OutcomeStuck OutcomeKind = "stuck"
	// OutcomeErrored means the page showed an inline error or could not be inspected
	OutcomeErrored OutcomeKind = "errored"
)

// Outcome is the result of driving one candidate. It is consumed by the run loop and never stored.
type Outcome struct {
	Kind   OutcomeKind `json:"kind"`
	Reason string      `json:"reason,omitempty"`
	Ticks  int         `json:"ticks"`
}

// Applied builds an Applied outcome.
func Applied(ticks int) Outcome {
	return Outcome{Kind: OutcomeApplied, Ticks: ticks}
}

// Declined builds a Declined outcome.
func Declined(reason string, ticks int) Outcome {
	return Outcome{Kind: OutcomeDeclined, Reason: reason, Ticks: ticks}
}

// Stuck builds a Stuck outcome.
func Stuck(reason string, ticks int) Outcome {
	return Outcome{Kind: OutcomeStuck, Reason: reason, Ticks: ticks}
}

// Errored builds an Errored outcome.
func Errored(reason string, ticks int) Outcome {
	return Outcome{Kind: OutcomeErrored, Reason: reason, Ticks: ticks}
}

// IsApplied reports whether the outcome counts toward the applied total.
func (o Outcome) IsApplied() bool {
	return o.Kind == OutcomeApplied
}

func (o Outcome) String() string {
	if o.Reason == "" {
		return string(o.Kind)
	}
	return fmt.Sprintf("%s(%s)", o.Kind, o.Reason)
}
