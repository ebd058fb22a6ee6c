package domain

import (
	"time"
)

// EventType defines the category of a machine event.
type EventType string

const (
	EventStateChanged EventType = "state_changed"
	EventDisposed     EventType = "disposed"
)

// StateChangeEvent is posted whenever a machine's cursor moves.
type StateChangeEvent struct {
	Type      EventType `json:"type"`
	MachineID string    `json:"machine_id"`
	Sequence  uint64    `json:"sequence"` // Monotonic per machine, starting at 1
	OldState  string    `json:"old_state"`
	NewState  string    `json:"new_state"`
	Cause     string    `json:"cause"` // Transition name, or the implicit termination marker
	Timestamp time.Time `json:"timestamp"`
}
