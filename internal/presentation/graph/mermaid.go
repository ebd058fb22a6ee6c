package graph

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

// GraphOverlay contains dynamic machine data to visualize on the graph.
type GraphOverlay struct {
	Path []*domain.State // Scope chain of a machine, root first
}

// GenerateMermaid produces a Mermaid flowchart of the state graph rooted at root.
// Each distinct state is drawn once, even when shared or part of a cycle.
// It applies semantic styling:
// - Root: ((Circle))
// - Terminal: ([Stadium])
// - Default: [Rectangle]
// Nesting is drawn as dotted edges, transitions and triggers as labelled arrows.
// Targets that do not resolve point to a flagged placeholder node.
func GenerateMermaid(root *domain.State, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	if root == nil {
		return sb.String()
	}

	ids := make(map[*domain.State]string)
	domain.Walk(root, func(path []*domain.State) bool {
		ids[path[len(path)-1]] = sanitizeMermaidID(domain.PathString(path))
		return true
	})

	missing := make(map[string]bool)
	edge := func(from string, path []*domain.State, label, target string, dotted bool) {
		to := ""
		if resolved, err := domain.ResolveTarget(path, target); err == nil {
			to = ids[resolved[len(resolved)-1]]
		}
		if to == "" {
			to = "missing_" + sanitizeMermaidID(target)
			if !missing[to] {
				missing[to] = true
				fmt.Fprintf(&sb, "    %s{{\"? %s\"}}\n", to, escape(target))
			}
		}
		if dotted {
			fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n", from, escape(label), to)
			return
		}
		fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", from, escape(label), to)
	}

	domain.Walk(root, func(path []*domain.State) bool {
		state := path[len(path)-1]
		id := ids[state]

		opener, closer := "[", "]"
		switch {
		case state == root:
			opener, closer = "((", "))"
		case state.IsTerminal():
			opener, closer = "([", "])"
		}
		label := escape(state.Name())
		if ops := state.Operations(); len(ops) > 0 {
			names := make([]string, len(ops))
			for i, op := range ops {
				names[i] = escape(op.Name())
			}
			label += " <br/> ⚙ " + strings.Join(names, ", ")
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", id, opener, label, closer)

		for _, child := range state.States() {
			fmt.Fprintf(&sb, "    %s -.- %s\n", id, ids[child])
		}
		for _, t := range state.Transitions() {
			edge(id, path, t.Name(), t.Target(), false)
		}
		for _, trigger := range state.Triggers() {
			if t, ok := trigger.Action().(*domain.Transition); ok {
				edge(id, path, "⏵ "+string(trigger.Event())+": "+t.Name(), t.Target(), true)
			}
		}
		return true
	})

	if len(missing) > 0 {
		sb.WriteString("    classDef missing fill:#ffcdd2,stroke:#b71c1c,color:#000;\n")
		for _, id := range slices.Sorted(maps.Keys(missing)) {
			fmt.Fprintf(&sb, "    class %s missing;\n", id)
		}
	}

	// Apply Overlay Styles
	if overlay != nil && len(overlay.Path) > 0 {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef scope fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		last := len(overlay.Path) - 1
		for i, s := range overlay.Path {
			id, ok := ids[s]
			if !ok {
				// The implicit terminated state is not part of the graph.
				continue
			}
			if i == last {
				fmt.Fprintf(&sb, "    class %s current;\n", id)
			} else {
				fmt.Fprintf(&sb, "    class %s scope;\n", id)
			}
		}
	}

	return sb.String()
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
