package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TriggerEvent is the lifecycle event a Trigger reacts to.
type TriggerEvent string

const (
	EventInitialization TriggerEvent = "initialization"
	EventTermination    TriggerEvent = "termination"
)

// ParseTriggerEvent accepts the event keyword in any case.
func ParseTriggerEvent(s string) (TriggerEvent, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(EventInitialization):
		return EventInitialization, nil
	case string(EventTermination):
		return EventTermination, nil
	case "":
		return "", nullArgument("trigger", "event")
	}
	return "", &MalformedGraphError{Element: "trigger", Reason: fmt.Sprintf("unknown event %q", s)}
}

// Trigger binds a lifecycle event to an action declared on a state.
type Trigger struct {
	event  TriggerEvent
	action Action
}

// NewTrigger creates a Trigger. Both event and action are required.
func NewTrigger(event TriggerEvent, action Action) (*Trigger, error) {
	if event == "" {
		return nil, nullArgument("trigger", "event")
	}
	if event != EventInitialization && event != EventTermination {
		return nil, &MalformedGraphError{Element: "trigger", Reason: fmt.Sprintf("unknown event %q", event)}
	}
	if isNilAction(action) {
		return nil, nullArgument("trigger", "action")
	}
	return &Trigger{event: event, action: action}, nil
}

func isNilAction(a Action) bool {
	switch v := a.(type) {
	case nil:
		return true
	case *Transition:
		return v == nil
	case *Operation:
		return v == nil
	}
	return false
}

// Event returns the lifecycle event.
func (t *Trigger) Event() TriggerEvent { return t.event }

// Action returns the bound *Transition or *Operation.
func (t *Trigger) Action() Action { return t.action }

// Equal reports structural equality.
func (t *Trigger) Equal(other *Trigger) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.event != other.event {
		return false
	}
	return actionsEqual(t.action, other.action)
}

func actionsEqual(a, b Action) bool {
	switch av := a.(type) {
	case *Transition:
		bv, ok := b.(*Transition)
		return ok && av.Equal(bv)
	case *Operation:
		bv, ok := b.(*Operation)
		return ok && av.Equal(bv)
	}
	return false
}

// Hash returns a hash consistent with Equal.
func (t *Trigger) Hash() uint64 {
	h := newHasher("trigger")
	if t == nil {
		return h.sum()
	}
	h.str(string(t.event))
	switch a := t.action.(type) {
	case *Transition:
		h.u64(a.Hash())
	case *Operation:
		h.u64(a.Hash())
	}
	return h.sum()
}

func (t *Trigger) String() string {
	return fmt.Sprintf("trigger(%s: %v)", t.event, t.action)
}

type triggerJSON struct {
	Event      TriggerEvent `json:"event"`
	Transition *Transition  `json:"transition,omitempty"`
	Operation  *Operation   `json:"operation,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (t *Trigger) MarshalJSON() ([]byte, error) {
	raw := triggerJSON{Event: t.event}
	switch a := t.action.(type) {
	case *Transition:
		raw.Transition = a
	case *Operation:
		raw.Operation = a
	}
	return json.Marshal(raw)
}

// UnmarshalJSON implements json.Unmarshaler, enforcing constructor validation.
func (t *Trigger) UnmarshalJSON(data []byte) error {
	var raw triggerJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Transition != nil && raw.Operation != nil {
		return &MalformedGraphError{Element: "trigger", Reason: "declares both a transition and an operation"}
	}
	var action Action
	if raw.Transition != nil {
		action = raw.Transition
	} else if raw.Operation != nil {
		action = raw.Operation
	}
	event, err := ParseTriggerEvent(string(raw.Event))
	if err != nil {
		return err
	}
	tr, err := NewTrigger(event, action)
	if err != nil {
		return err
	}
	*t = *tr
	return nil
}
