package domain

// Status is the lifecycle status of a machine, not to be confused with a graph State.
type Status string

const (
	StatusUninitialized Status = "uninitialized" // Constructed, cursor at the root
	StatusActive        Status = "active"        // Initialized, accepting transitions
	StatusTerminated    Status = "terminated"    // Terminated, no further transitions
	StatusDisposed      Status = "disposed"      // Sink status, every call but Dispose fails
)

// TerminatedStateName is the name of the implicit pseudo-state a machine moves to
// when termination resolves no action anywhere in the scope chain.
const TerminatedStateName = "terminated"
