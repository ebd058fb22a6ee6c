package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNullArgument is returned when a required constructor field is empty or missing.
	ErrNullArgument = errors.New("null argument")

	// ErrMalformedGraph is returned when a graph document is structurally invalid.
	ErrMalformedGraph = errors.New("malformed graph")

	// ErrInvalidState is returned when a lifecycle call is not legal in the machine's current status.
	ErrInvalidState = errors.New("invalid machine state")

	// ErrUnknownTransition is returned when a transition name is not declared on the current state.
	ErrUnknownTransition = errors.New("unknown transition")

	// ErrUnknownOperation is returned when an operation name is not declared on the current state.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrUnresolvedReference is returned when a transition target cannot be found in the scope chain.
	ErrUnresolvedReference = errors.New("unresolved reference")

	// ErrMachineNotFound is returned when an instance ID has no registered machine.
	ErrMachineNotFound = errors.New("machine not found")

	// ErrMachineExists is returned when an instance ID is already registered.
	ErrMachineExists = errors.New("machine already exists")
)

// NullArgumentError names the required field that was missing.
type NullArgumentError struct {
	Type  string
	Field string
}

func (e *NullArgumentError) Error() string {
	return fmt.Sprintf("%s: %s is required", e.Type, e.Field)
}

func (e *NullArgumentError) Unwrap() error { return ErrNullArgument }

func nullArgument(typ, field string) error {
	return &NullArgumentError{Type: typ, Field: field}
}

// MalformedGraphError reports a structural defect in a graph document.
type MalformedGraphError struct {
	Element string // Path or name of the offending element
	Reason  string
}

func (e *MalformedGraphError) Error() string {
	return fmt.Sprintf("malformed graph at %s: %s", e.Element, e.Reason)
}

func (e *MalformedGraphError) Unwrap() error { return ErrMalformedGraph }

// InvalidStateError is returned when an operation is attempted in a status that forbids it.
type InvalidStateError struct {
	Operation string
	Status    Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s: machine is %s", e.Operation, e.Status)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// UnknownTransitionError names the requested transition and the state it was requested from.
type UnknownTransitionError struct {
	Transition string
	State      string
}

func (e *UnknownTransitionError) Error() string {
	return fmt.Sprintf("transition %q is not declared on state %q", e.Transition, e.State)
}

func (e *UnknownTransitionError) Unwrap() error { return ErrUnknownTransition }

// UnknownOperationError names the requested operation and the state it was requested from.
type UnknownOperationError struct {
	Operation string
	State     string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("operation %q is not declared on state %q", e.Operation, e.State)
}

func (e *UnknownOperationError) Unwrap() error { return ErrUnknownOperation }

// UnresolvedReferenceError is returned when a target name cannot be resolved.
type UnresolvedReferenceError struct {
	Target string
	State  string // Declaring state the resolution started from
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("target %q cannot be resolved relative to state %q", e.Target, e.State)
}

func (e *UnresolvedReferenceError) Unwrap() error { return ErrUnresolvedReference }

// Issue is a single problem found while validating a graph.
type Issue struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return i.Key + ": " + i.Message
}

// IssuesError aggregates every validation issue found in one pass.
type IssuesError struct {
	Issues []Issue
}

func (e *IssuesError) Error() string {
	if len(e.Issues) == 1 {
		return e.Issues[0].String()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation issues:\n", len(e.Issues))
	for i, issue := range e.Issues {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, issue)
	}
	return sb.String()
}

// IssuesOf returns the issues carried by err, or nil if err is not an IssuesError.
func IssuesOf(err error) []Issue {
	var ie *IssuesError
	if errors.As(err, &ie) {
		return ie.Issues
	}
	return nil
}
