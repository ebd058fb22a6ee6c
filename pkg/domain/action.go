package domain

import (
	"encoding/json"
	"fmt"
)

// Action is what a Trigger fires: either a *Transition or an *Operation.
type Action interface {
	// ActionName returns the name of the transition or operation.
	ActionName() string
	isAction()
}

// Operation is a named, opaque unit of behavior.
// The engine never executes it; an OperationExecutor supplied by the host does.
type Operation struct {
	name string
}

// NewOperation creates an Operation. The name is required.
func NewOperation(name string) (*Operation, error) {
	if name == "" {
		return nil, nullArgument("operation", "name")
	}
	return &Operation{name: name}, nil
}

// Name returns the operation name.
func (o *Operation) Name() string { return o.name }

// ActionName implements Action.
func (o *Operation) ActionName() string { return o.name }

func (o *Operation) isAction() {}

// Equal reports whether both operations carry the same name.
func (o *Operation) Equal(other *Operation) bool {
	if o == nil || other == nil {
		return o == other
	}
	return o.name == other.name
}

// Hash returns a hash consistent with Equal.
func (o *Operation) Hash() uint64 {
	h := newHasher("operation")
	if o != nil {
		h.str(o.name)
	}
	return h.sum()
}

func (o *Operation) String() string {
	return fmt.Sprintf("operation(%s)", o.name)
}

type operationJSON struct {
	Name string `json:"name"`
}

// MarshalJSON implements json.Marshaler.
func (o *Operation) MarshalJSON() ([]byte, error) {
	return json.Marshal(operationJSON{Name: o.name})
}

// UnmarshalJSON implements json.Unmarshaler, enforcing constructor validation.
func (o *Operation) UnmarshalJSON(data []byte) error {
	var raw operationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	op, err := NewOperation(raw.Name)
	if err != nil {
		return err
	}
	*o = *op
	return nil
}

// Capability names a capability contract that is safe to invoke while a state is
// current. It is descriptive only; collaborators consult it, the engine does not enforce it.
type Capability struct {
	name string
}

// NewCapability creates a Capability binding. The name is required.
func NewCapability(name string) (*Capability, error) {
	if name == "" {
		return nil, nullArgument("capability", "name")
	}
	return &Capability{name: name}, nil
}

// Name returns the capability name.
func (c *Capability) Name() string { return c.name }

// Equal reports whether both bindings name the same capability.
func (c *Capability) Equal(other *Capability) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.name == other.name
}

// Hash returns a hash consistent with Equal.
func (c *Capability) Hash() uint64 {
	h := newHasher("capability")
	if c != nil {
		h.str(c.name)
	}
	return h.sum()
}

func (c *Capability) String() string {
	return fmt.Sprintf("capability(%s)", c.name)
}

// MarshalJSON implements json.Marshaler.
func (c *Capability) MarshalJSON() ([]byte, error) {
	return json.Marshal(operationJSON{Name: c.name})
}

// UnmarshalJSON implements json.Unmarshaler, enforcing constructor validation.
func (c *Capability) UnmarshalJSON(data []byte) error {
	var raw operationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	capability, err := NewCapability(raw.Name)
	if err != nil {
		return err
	}
	*c = *capability
	return nil
}
