package domain

import (
	"fmt"
	"slices"
)

// State is a named node of the lifecycle graph.
//
// States are immutable once built. Nested states may be shared between several
// parents and may form cycles, so a State has no parent pointer: the ancestry of
// a state is always the path it was reached by.
type State struct {
	name         string
	triggers     []*Trigger
	transitions  []*Transition
	operations   []*Operation
	capabilities []*Capability
	states       []*State
}

// StateSpec holds the declarations of a State.
type StateSpec struct {
	Triggers     []*Trigger
	Transitions  []*Transition
	Operations   []*Operation
	Capabilities []*Capability
	States       []*State
}

// NewState builds an acyclic State from fully built children.
// Use GraphBuilder for graphs with shared or cyclic nested states.
func NewState(name string, spec StateSpec) (*State, error) {
	s := &State{name: name}
	if err := s.define(spec); err != nil {
		return nil, err
	}
	return s, nil
}

// define validates and copies spec into s. It is only called before s escapes.
func (s *State) define(spec StateSpec) error {
	if s.name == "" {
		return nullArgument("state", "name")
	}

	events := make(map[TriggerEvent]bool)
	for _, t := range spec.Triggers {
		if t == nil {
			return nullArgument("state "+s.name, "trigger")
		}
		if events[t.event] {
			return &MalformedGraphError{Element: s.name, Reason: fmt.Sprintf("duplicate %s trigger", t.event)}
		}
		events[t.event] = true
	}

	names := make(map[string]bool)
	for _, t := range spec.Transitions {
		if t == nil {
			return nullArgument("state "+s.name, "transition")
		}
		if names[t.name] {
			return &MalformedGraphError{Element: s.name, Reason: fmt.Sprintf("duplicate transition %q", t.name)}
		}
		names[t.name] = true
	}

	names = make(map[string]bool)
	for _, o := range spec.Operations {
		if o == nil {
			return nullArgument("state "+s.name, "operation")
		}
		if names[o.name] {
			return &MalformedGraphError{Element: s.name, Reason: fmt.Sprintf("duplicate operation %q", o.name)}
		}
		names[o.name] = true
	}

	for _, c := range spec.Capabilities {
		if c == nil {
			return nullArgument("state "+s.name, "capability")
		}
	}

	names = make(map[string]bool)
	for _, child := range spec.States {
		if child == nil {
			return nullArgument("state "+s.name, "state")
		}
		if names[child.name] {
			return &MalformedGraphError{Element: s.name, Reason: fmt.Sprintf("duplicate nested state %q", child.name)}
		}
		names[child.name] = true
	}

	s.triggers = slices.Clone(spec.Triggers)
	s.transitions = slices.Clone(spec.Transitions)
	s.operations = slices.Clone(spec.Operations)
	s.capabilities = slices.Clone(spec.Capabilities)
	s.states = slices.Clone(spec.States)
	return nil
}

// Name returns the state name.
func (s *State) Name() string { return s.name }

// Triggers returns the triggers declared on this state.
func (s *State) Triggers() []*Trigger { return slices.Clone(s.triggers) }

// Transitions returns the transitions declared directly on this state.
func (s *State) Transitions() []*Transition { return slices.Clone(s.transitions) }

// Operations returns the operations declared directly on this state.
func (s *State) Operations() []*Operation { return slices.Clone(s.operations) }

// Capabilities returns the capability bindings declared directly on this state.
func (s *State) Capabilities() []*Capability { return slices.Clone(s.capabilities) }

// States returns the nested states, which may be shared with other parents.
func (s *State) States() []*State { return slices.Clone(s.states) }

// IsTerminal reports whether the state has no transitions and no nested states.
func (s *State) IsTerminal() bool {
	return len(s.transitions) == 0 && len(s.states) == 0
}

// Trigger returns the trigger declared here for event, or nil.
func (s *State) Trigger(event TriggerEvent) *Trigger {
	for _, t := range s.triggers {
		if t.event == event {
			return t
		}
	}
	return nil
}

// Transition returns the transition declared here under name, or nil.
func (s *State) Transition(name string) *Transition {
	for _, t := range s.transitions {
		if t.name == name {
			return t
		}
	}
	return nil
}

// Operation returns the operation declared here under name, or nil.
func (s *State) Operation(name string) *Operation {
	for _, o := range s.operations {
		if o.name == name {
			return o
		}
	}
	return nil
}

// Child returns the nested state named name, or nil.
func (s *State) Child(name string) *State {
	for _, c := range s.states {
		if c.name == name {
			return c
		}
	}
	return nil
}

func (s *State) String() string {
	return fmt.Sprintf("state(%s)", s.name)
}

// Equal reports deep structural equality, tolerating shared and cyclic nesting.
func (s *State) Equal(other *State) bool {
	return statesEqual(s, other, make(map[[2]*State]bool))
}

func statesEqual(a, b *State, seen map[[2]*State]bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a == b {
		return true
	}
	key := [2]*State{a, b}
	if seen[key] {
		// Already being compared higher up the stack; assume equal (coinduction).
		return true
	}
	seen[key] = true

	if a.name != b.name ||
		!slices.EqualFunc(a.triggers, b.triggers, (*Trigger).Equal) ||
		!slices.EqualFunc(a.transitions, b.transitions, (*Transition).Equal) ||
		!slices.EqualFunc(a.operations, b.operations, (*Operation).Equal) ||
		!slices.EqualFunc(a.capabilities, b.capabilities, (*Capability).Equal) ||
		len(a.states) != len(b.states) {
		return false
	}
	for i := range a.states {
		if !statesEqual(a.states[i], b.states[i], seen) {
			return false
		}
	}
	return true
}

// Hash returns a hash consistent with Equal. Nested states contribute their
// names only, which keeps hashing finite on cyclic graphs.
func (s *State) Hash() uint64 {
	h := newHasher("state")
	if s == nil {
		return h.sum()
	}
	h.str(s.name)
	for _, t := range s.triggers {
		h.u64(t.Hash())
	}
	for _, t := range s.transitions {
		h.u64(t.Hash())
	}
	for _, o := range s.operations {
		h.u64(o.Hash())
	}
	for _, c := range s.capabilities {
		h.u64(c.Hash())
	}
	for _, child := range s.states {
		h.str(child.name)
	}
	return h.sum()
}

// Walk visits every state reachable from root exactly once, depth first,
// passing the path it was first discovered by (root first, visited state last).
// Returning false from fn prunes the subtree below that state.
func Walk(root *State, fn func(path []*State) bool) {
	if root == nil {
		return
	}
	visited := make(map[*State]bool)
	var visit func(path []*State)
	visit = func(path []*State) {
		current := path[len(path)-1]
		if visited[current] {
			return
		}
		visited[current] = true
		if !fn(path) {
			return
		}
		for _, child := range current.states {
			visit(append(slices.Clip(path), child))
		}
	}
	visit([]*State{root})
}
