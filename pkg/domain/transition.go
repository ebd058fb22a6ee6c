package domain

import (
	"encoding/json"
	"fmt"
)

// Transition is a named edge from its declaring state to a target state.
// The target is a name resolved through the scope chain when the transition is
// applied; a Transition never owns the State it points at.
type Transition struct {
	name      string
	target    string
	operation *Operation
}

// NewTransition creates a Transition. Name and target are required, the operation is optional.
func NewTransition(name, target string, operation *Operation) (*Transition, error) {
	if name == "" {
		return nil, nullArgument("transition", "name")
	}
	if target == "" {
		return nil, nullArgument("transition", "target")
	}
	return &Transition{name: name, target: target, operation: operation}, nil
}

// Name returns the transition name.
func (t *Transition) Name() string { return t.name }

// Target returns the unresolved target name.
func (t *Transition) Target() string { return t.target }

// Operation returns the operation run before the cursor moves, or nil.
func (t *Transition) Operation() *Operation { return t.operation }

// ActionName implements Action.
func (t *Transition) ActionName() string { return t.name }

func (t *Transition) isAction() {}

// Equal reports structural equality.
func (t *Transition) Equal(other *Transition) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.name == other.name &&
		t.target == other.target &&
		t.operation.Equal(other.operation)
}

// Hash returns a hash consistent with Equal.
func (t *Transition) Hash() uint64 {
	h := newHasher("transition")
	if t == nil {
		return h.sum()
	}
	h.str(t.name)
	h.str(t.target)
	if t.operation != nil {
		h.u64(t.operation.Hash())
	}
	return h.sum()
}

func (t *Transition) String() string {
	if t.operation != nil {
		return fmt.Sprintf("transition(%s -> %s, %s)", t.name, t.target, t.operation)
	}
	return fmt.Sprintf("transition(%s -> %s)", t.name, t.target)
}

type transitionJSON struct {
	Name      string     `json:"name"`
	Target    string     `json:"target"`
	Operation *Operation `json:"operation,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (t *Transition) MarshalJSON() ([]byte, error) {
	return json.Marshal(transitionJSON{Name: t.name, Target: t.target, Operation: t.operation})
}

// UnmarshalJSON implements json.Unmarshaler, enforcing constructor validation.
func (t *Transition) UnmarshalJSON(data []byte) error {
	var raw transitionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	tr, err := NewTransition(raw.Name, raw.Target, raw.Operation)
	if err != nil {
		return err
	}
	*t = *tr
	return nil
}
