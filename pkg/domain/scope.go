package domain

import (
	"slices"
	"strings"
)

// A scope chain is a path of states from the root (index 0) to the state a lookup
// starts from (last index). Because states can be shared, the chain is always the
// path a state was reached by, never a stored parent link.

// ResolveTarget resolves a transition target declared on the last state of path
// and returns the path to the resolved state.
//
// Supported forms:
//
//	name      children of the declaring state, then children of each ancestor
//	          toward the root, then the root itself
//	a/b       resolve a as above, then b among the children of a
//	/a/b      absolute, starting at the root
//	../a      relative to the parent of the declaring state
//	.         the declaring state itself
func ResolveTarget(path []*State, target string) ([]*State, error) {
	if len(path) == 0 {
		return nil, nullArgument("scope", "path")
	}
	declaring := path[len(path)-1].name
	resolved := resolve(slices.Clip(path), target)
	if resolved == nil {
		return nil, &UnresolvedReferenceError{Target: target, State: declaring}
	}
	return resolved, nil
}

func resolve(path []*State, target string) []*State {
	switch {
	case target == "":
		return nil
	case target == "/":
		return path[:1]
	case strings.HasPrefix(target, "/"):
		return descend(path[:1], strings.Split(strings.TrimPrefix(target, "/"), "/"))
	case strings.HasPrefix(target, "../"), target == "..":
		return descend(path, strings.Split(target, "/"))
	}

	segments := strings.Split(target, "/")
	first := lookup(path, segments[0])
	if first == nil {
		return nil
	}
	return descend(first, segments[1:])
}

// lookup applies the scope-chain rule for a single plain name.
func lookup(path []*State, name string) []*State {
	if name == "." {
		return path
	}
	for i := len(path) - 1; i >= 0; i-- {
		if child := path[i].Child(name); child != nil {
			return append(slices.Clip(path[:i+1]), child)
		}
	}
	if path[0].name == name {
		return path[:1]
	}
	return nil
}

// descend walks segments strictly: children, "." or "..".
func descend(path []*State, segments []string) []*State {
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(path) < 2 {
				return nil
			}
			path = path[:len(path)-1]
		default:
			child := path[len(path)-1].Child(seg)
			if child == nil {
				return nil
			}
			path = append(slices.Clip(path), child)
		}
	}
	return path
}

// ResolveTrigger returns the nearest trigger for event along the scope chain,
// starting at the last state of path, and the index in path of the declaring
// state. It returns (nil, -1) when no state in the chain declares one.
func ResolveTrigger(path []*State, event TriggerEvent) (*Trigger, int) {
	for i := len(path) - 1; i >= 0; i-- {
		if t := path[i].Trigger(event); t != nil {
			return t, i
		}
	}
	return nil, -1
}

// ResolveOperation returns the nearest declared operation named name along the
// scope chain, and the index in path of the declaring state.
func ResolveOperation(path []*State, name string) (*Operation, int) {
	for i := len(path) - 1; i >= 0; i-- {
		if op := path[i].Operation(name); op != nil {
			return op, i
		}
	}
	return nil, -1
}

// ActiveCapabilities returns the capability bindings of every state in the chain,
// nearest first, without duplicates.
func ActiveCapabilities(path []*State) []*Capability {
	var out []*Capability
	seen := make(map[string]bool)
	for i := len(path) - 1; i >= 0; i-- {
		for _, c := range path[i].capabilities {
			if !seen[c.name] {
				seen[c.name] = true
				out = append(out, c)
			}
		}
	}
	return out
}

// PathString renders a scope chain as slash-separated state names.
func PathString(path []*State) string {
	names := make([]string, len(path))
	for i, s := range path {
		names[i] = s.name
	}
	return strings.Join(names, "/")
}
