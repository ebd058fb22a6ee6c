package compiler

import (
	"fmt"
	"io"

	"github.com/aretw0/arbor/pkg/domain"
)

// Encode writes root as a graph document. The first occurrence of every state is
// written as a definition and each later occurrence as a state reference, so
// shared and cyclic graphs survive a round trip through Parse.
func Encode(w io.Writer, root *domain.State, format Format) error {
	node, err := Decompile(root)
	if err != nil {
		return err
	}
	switch format {
	case FormatYAML:
		return encodeYAML(w, node)
	case FormatXML, "":
		return encodeXML(w, node)
	}
	return fmt.Errorf("unsupported graph format %q", format)
}

// Decompile converts a graph back into its syntax tree.
func Decompile(root *domain.State) (*StateNode, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: nil root state", domain.ErrNullArgument)
	}
	owners := make(map[string]int)
	domain.Walk(root, func(path []*domain.State) bool {
		owners[path[len(path)-1].Name()]++
		return true
	})
	d := &decompiler{owners: owners, emitted: make(map[*domain.State]bool)}
	return d.state(root)
}

type decompiler struct {
	owners  map[string]int
	emitted map[*domain.State]bool
}

func (d *decompiler) state(s *domain.State) (*StateNode, error) {
	d.emitted[s] = true
	node := &StateNode{Name: s.Name()}

	for _, t := range s.Triggers() {
		tn := TriggerNode{Event: string(t.Event())}
		switch a := t.Action().(type) {
		case *domain.Transition:
			tn.Transition = transitionNode(a)
		case *domain.Operation:
			tn.Operation = &OperationNode{Name: a.Name()}
		}
		node.Triggers = append(node.Triggers, tn)
	}
	for _, t := range s.Transitions() {
		node.Transitions = append(node.Transitions, *transitionNode(t))
	}
	for _, o := range s.Operations() {
		node.Operations = append(node.Operations, OperationNode{Name: o.Name()})
	}
	for _, c := range s.Capabilities() {
		node.Capabilities = append(node.Capabilities, CapabilityNode{Name: c.Name()})
	}
	for _, child := range s.States() {
		if d.emitted[child] {
			if d.owners[child.Name()] > 1 {
				return nil, fmt.Errorf("%w: shared state %q cannot be referenced, its name is not unique in the graph",
					domain.ErrMalformedGraph, child.Name())
			}
			node.States = append(node.States, StateNode{Ref: child.Name()})
			continue
		}
		cn, err := d.state(child)
		if err != nil {
			return nil, err
		}
		node.States = append(node.States, *cn)
	}
	return node, nil
}

func transitionNode(t *domain.Transition) *TransitionNode {
	tn := &TransitionNode{Name: t.Name(), Target: t.Target()}
	if op := t.Operation(); op != nil {
		tn.Operation = &OperationNode{Name: op.Name()}
	}
	return tn
}
