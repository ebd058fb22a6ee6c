package graph_test

import (
	"os"
	"strings"
	"testing"

	"github.com/aretw0/arbor/internal/compiler"
	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFile(t *testing.T, name string) *domain.State {
	t.Helper()
	data, err := os.ReadFile("../../../testdata/" + name)
	require.NoError(t, err)
	root, err := compiler.NewParser(compiler.FormatXML).Parse(data)
	require.NoError(t, err)
	return root
}

func parseDoc(t *testing.T, doc string) *domain.State {
	t.Helper()
	root, err := compiler.NewParser(compiler.FormatXML).Parse([]byte(doc))
	require.NoError(t, err)
	return root
}

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		root     func(t *testing.T) *domain.State
		contains []string
		excludes []string
	}{
		{
			name: "Shapes",
			root: func(t *testing.T) *domain.State { return parseFile(t, "example.xml") },
			contains: []string{
				"graph TD",
				"component((\"component\"))",
				"component_started[\"started <br/> ⚙ audit\"]",
				"component_stopped[\"stopped\"]",
				"component_terminated([\"terminated\"])",
			},
		},
		{
			name: "Edges",
			root: func(t *testing.T) *domain.State { return parseFile(t, "example.xml") },
			contains: []string{
				"component -.- component_started",
				"component -. \"⏵ initialization: init\" .-> component_started",
				"component_started -- \"stop\" --> component_stopped",
				"component_started -. \"⏵ termination: stop\" .-> component_terminated",
				"component_stopped -- \"start\" --> component_started",
			},
			excludes: []string{"missing"},
		},
		{
			name: "Shared And Cyclic States Are Drawn Once",
			root: func(t *testing.T) *domain.State { return parseFile(t, "cyclic.xml") },
			contains: []string{
				"service_running_paused -.- service_running",
				"service_maintenance -.- service_running_paused",
				"service_running_paused -- \"reset\" --> service_running",
				"service_maintenance -- \"leave\" --> service_running",
			},
		},
		{
			name: "Unresolved Target",
			root: func(t *testing.T) *domain.State {
				return parseDoc(t, `<state name="a"><state name="b"><transition name="go" target="nowhere"/></state></state>`)
			},
			contains: []string{
				"missing_nowhere{{\"? nowhere\"}}",
				"a_b -- \"go\" --> missing_nowhere",
				"class missing_nowhere missing;",
			},
		},
		{
			name: "ID Sanitization And Escaping",
			root: func(t *testing.T) *domain.State {
				return parseDoc(t, `<state name="my app"><state name="hyphen-ated"><operation name="say &quot;hi&quot;"/></state></state>`)
			},
			contains: []string{
				"my_app_hyphen_ated([\"hyphen-ated <br/> ⚙ say 'hi'\"])",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.root(t), nil)
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, got, unwanted)
			}
		})
	}
}

func TestGenerateMermaid_NodesAreUnique(t *testing.T) {
	got := graph.GenerateMermaid(parseFile(t, "cyclic.xml"), nil)
	assert.Equal(t, 1, strings.Count(got, "service_running[\""))
	assert.Equal(t, 1, strings.Count(got, "service_running_paused[\""))
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	root := parseFile(t, "example.xml")
	started := root.Child("started")

	got := graph.GenerateMermaid(root, &graph.GraphOverlay{Path: []*domain.State{root, started}})
	assert.Contains(t, got, "classDef current")
	assert.Contains(t, got, "class component scope;")
	assert.Contains(t, got, "class component_started current;")
	assert.NotContains(t, got, "class component_stopped")
}

func TestGenerateMermaid_OverlaySkipsImplicitState(t *testing.T) {
	root := parseFile(t, "example.xml")
	pseudo, err := domain.NewState("terminated", domain.StateSpec{})
	require.NoError(t, err)

	got := graph.GenerateMermaid(root, &graph.GraphOverlay{Path: []*domain.State{root, pseudo}})
	assert.Contains(t, got, "class component scope;")
	assert.NotContains(t, got, "current;")
}

func TestGenerateMermaid_NilRoot(t *testing.T) {
	assert.Equal(t, "graph TD\n", graph.GenerateMermaid(nil, nil))
}
