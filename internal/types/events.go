package types

import "time"

// EventType names an outgoing notification.
type EventType string

const (
	// EventProgress carries the applied counter after a successful application
	EventProgress EventType = "progress"
	// EventStatus carries the coarse phase or a per-listing note
	EventStatus EventType = "status"
	// EventError carries a session-fatal condition surfaced to the operator
	EventError EventType = "error"
)

// Event is a fire-and-forget notification emitted by the run loop and controller.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Applied   uint      `json:"applied,omitempty"`
	Text      string    `json:"text,omitempty"`
	At        time.Time `json:"at"`
}

// Coarse phases reported as status text.
const (
	PhaseRunning            = "Running"
	PhaseStopped            = "Stopped"
	PhaseNavigationRequired = "Navigation required"
	PhaseErrorPrefix        = "Error: "
)

// RunStatus is a point-in-time snapshot of the controller.
type RunStatus struct {
	SessionID string   `json:"session_id,omitempty"`
	Running   bool     `json:"running"`
	Applied   uint     `json:"applied"`
	Phase     string   `json:"phase"`
	Settings  Settings `json:"settings"`
}
