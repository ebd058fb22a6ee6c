package compiler

import (
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

// Parser converts a graph document into the immutable domain graph.
type Parser struct {
	format Format
}

// NewParser creates a parser for the given document format.
func NewParser(format Format) *Parser {
	if format == "" {
		format = FormatXML
	}
	return &Parser{format: format}
}

// Parse decodes data and returns the root state.
// Structural defects are reported as *domain.MalformedGraphError.
func (p *Parser) Parse(data []byte) (*domain.State, error) {
	var (
		root *StateNode
		err  error
	)
	switch p.format {
	case FormatYAML:
		root, err = decodeYAML(data)
	case FormatXML:
		root, err = decodeXML(data)
	default:
		return nil, fmt.Errorf("unsupported graph format %q", p.format)
	}
	if err != nil {
		return nil, err
	}
	return Compile(root)
}

// Compile turns a syntax tree into a sealed graph. State references are resolved
// document-wide by defining name and yield the very same *domain.State.
func Compile(root *StateNode) (*domain.State, error) {
	if root == nil {
		return nil, malformed("document", "no root state")
	}
	if root.Ref != "" {
		return nil, malformed(root.Ref, "root element cannot be a state reference")
	}
	c := &compilation{
		builder: domain.NewGraphBuilder(),
		byName:  make(map[string][]domain.StateRef),
		refs:    make(map[*StateNode]domain.StateRef),
	}
	rootRef, err := c.declare(root, "")
	if err != nil {
		return nil, err
	}
	for _, p := range c.pending {
		if err := c.define(p); err != nil {
			return nil, err
		}
	}
	return c.builder.Build(rootRef)
}

type pendingState struct {
	node *StateNode
	path string
}

type compilation struct {
	builder *domain.GraphBuilder
	byName  map[string][]domain.StateRef
	refs    map[*StateNode]domain.StateRef
	pending []pendingState
}

// declare reserves every defining node, depth first, so references can point
// forward as well as backward.
func (c *compilation) declare(node *StateNode, parent string) (domain.StateRef, error) {
	if node.Name == "" {
		return -1, malformed(joinPath(parent, "<state>"), "missing required attribute \"name\"")
	}
	path := joinPath(parent, node.Name)
	if node.Ref != "" {
		return -1, malformed(path, "a state cannot both define and reference (%q)", node.Ref)
	}

	ref, err := c.builder.Declare(node.Name)
	if err != nil {
		return -1, err
	}
	c.byName[node.Name] = append(c.byName[node.Name], ref)
	c.refs[node] = ref
	c.pending = append(c.pending, pendingState{node: node, path: path})

	seen := make(map[string]bool)
	for i := range node.States {
		child := &node.States[i]
		name := child.Name
		if child.Ref != "" && child.Name == "" {
			name = child.Ref
		}
		if name != "" && seen[name] {
			return -1, malformed(path, "duplicate nested state %q", name)
		}
		seen[name] = true
		if child.Ref != "" && child.Name == "" {
			continue
		}
		if _, err := c.declare(child, path); err != nil {
			return -1, err
		}
	}
	return ref, nil
}

func (c *compilation) define(p pendingState) error {
	node, path := p.node, p.path
	var def domain.StateDef

	events := make(map[domain.TriggerEvent]bool)
	for i := range node.Triggers {
		trigger, err := compileTrigger(&node.Triggers[i], path)
		if err != nil {
			return err
		}
		if events[trigger.Event()] {
			return malformed(path, "duplicate %s trigger", trigger.Event())
		}
		events[trigger.Event()] = true
		def.Triggers = append(def.Triggers, trigger)
	}

	names := make(map[string]bool)
	for i := range node.Transitions {
		transition, err := compileTransition(&node.Transitions[i], path)
		if err != nil {
			return err
		}
		if names[transition.Name()] {
			return malformed(path, "duplicate transition %q", transition.Name())
		}
		names[transition.Name()] = true
		def.Transitions = append(def.Transitions, transition)
	}

	names = make(map[string]bool)
	for i := range node.Operations {
		op, err := compileOperation(&node.Operations[i], path)
		if err != nil {
			return err
		}
		if names[op.Name()] {
			return malformed(path, "duplicate operation %q", op.Name())
		}
		names[op.Name()] = true
		def.Operations = append(def.Operations, op)
	}

	for _, cn := range node.Capabilities {
		capability, err := domain.NewCapability(cn.Name)
		if err != nil {
			return malformed(path+"/capability", "missing required attribute \"name\"")
		}
		def.Capabilities = append(def.Capabilities, capability)
	}

	for i := range node.States {
		child := &node.States[i]
		if child.Ref != "" && child.Name == "" {
			refs := c.byName[child.Ref]
			switch len(refs) {
			case 0:
				return malformed(path+"/state-ref["+child.Ref+"]", "no state named %q is defined in the document", child.Ref)
			case 1:
				def.Children = append(def.Children, refs[0])
			default:
				return malformed(path+"/state-ref["+child.Ref+"]", "reference is ambiguous: %d states are named %q", len(refs), child.Ref)
			}
			continue
		}
		if child.Name == "" && child.Ref == "" {
			return malformed(joinPath(path, "<state>"), "missing required attribute \"name\"")
		}
		def.Children = append(def.Children, c.refs[child])
	}

	return c.builder.Define(c.refs[node], def)
}

func compileTrigger(node *TriggerNode, path string) (*domain.Trigger, error) {
	element := path + "/trigger[" + node.Event + "]"
	event, err := domain.ParseTriggerEvent(node.Event)
	if err != nil {
		if node.Event == "" {
			return nil, malformed(element, "missing required attribute \"event\"")
		}
		return nil, malformed(element, "unknown event %q", node.Event)
	}

	count := 0
	if node.Transition != nil {
		count++
	}
	if node.Operation != nil {
		count++
	}
	count = max(count, node.actions)
	if count != 1 {
		return nil, malformed(element, "must contain exactly one transition or operation, found %d", count)
	}

	var action domain.Action
	if node.Transition != nil {
		action, err = compileTransition(node.Transition, element)
	} else {
		action, err = compileOperation(node.Operation, element)
	}
	if err != nil {
		return nil, err
	}
	return domain.NewTrigger(event, action)
}

func compileTransition(node *TransitionNode, path string) (*domain.Transition, error) {
	element := path + "/transition[" + node.Name + "]"
	if node.Name == "" {
		return nil, malformed(element, "missing required attribute \"name\"")
	}
	if node.Target == "" {
		return nil, malformed(element, "missing required attribute \"target\"")
	}
	var op *domain.Operation
	if node.Operation != nil {
		var err error
		if op, err = compileOperation(node.Operation, element); err != nil {
			return nil, err
		}
	}
	return domain.NewTransition(node.Name, node.Target, op)
}

func compileOperation(node *OperationNode, path string) (*domain.Operation, error) {
	if node.Name == "" {
		return nil, malformed(path+"/operation", "missing required attribute \"name\"")
	}
	return domain.NewOperation(node.Name)
}
