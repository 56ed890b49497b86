package runloop

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/jonathan/apply-agent/internal/types"
)

// RunState is the state of one session. The running flag is the only value written from
// outside the loop (by Stop); the loop reads it at every suspension point.
type RunState struct {
	SessionID uuid.UUID

	running atomic.Bool
	applied atomic.Uint64

	mu       sync.RWMutex
	settings types.Settings
}

// NewRunState creates an idle session with the given settings.
func NewRunState(settings types.Settings) *RunState {
	return &RunState{
		SessionID: uuid.New(),
		settings:  settings,
	}
}

// Running reports whether the loop should keep going.
func (s *RunState) Running() bool {
	return s.running.Load()
}

// Stop asks the loop to exit at its next suspension point.
func (s *RunState) Stop() {
	s.running.Store(false)
}

func (s *RunState) start() {
	s.running.Store(true)
}

// Applied returns the number of applications submitted in this session.
func (s *RunState) Applied() uint {
	return uint(s.applied.Load())
}

func (s *RunState) recordApplied() uint {
	return uint(s.applied.Add(1))
}

// Settings returns the settings of the current run.
func (s *RunState) Settings() types.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// replaceSettings must only be called while no loop is running.
func (s *RunState) replaceSettings(settings types.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}
