package timer

import "time"

// Mode selects the nominal countdown duration.
type Mode string

const (
	ModeFocus Mode = "FOCUS"
	ModeBreak Mode = "BREAK"
)

// Next returns the other mode.
func (m Mode) Next() Mode {
	if m == ModeFocus {
		return ModeBreak
	}
	return ModeFocus
}

// Phase is the scheduler's position in its state machine.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseRunning Phase = "running"
	PhasePaused  Phase = "paused"
	PhaseExpired Phase = "expired"
)

// EventType defines the type of scheduler event.
type EventType string

const (
	EventStateChange EventType = "state_change"
	EventProgress    EventType = "progress"
	EventExpired     EventType = "expired"
	EventClockError  EventType = "clock_error"
)

// Snapshot is the UI-observable timer state.
type Snapshot struct {
	Mode        Mode    `json:"mode"`
	Phase       Phase   `json:"phase"`
	Active      bool    `json:"isActive"`
	Remaining   int     `json:"remainingSeconds"`
	Initial     int     `json:"initialSeconds"`
	Progress    float64 `json:"progressPercent"`
	DisplayTime string  `json:"displayTime"`
	ClockError  string  `json:"clockError,omitempty"`
}

// Event is a scheduler update for observers.
type Event struct {
	Type     EventType
	Snapshot Snapshot
	At       time.Time
}
