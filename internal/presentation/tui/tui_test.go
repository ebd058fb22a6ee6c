package tui_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuesMarkdown(t *testing.T) {
	t.Run("Clean", func(t *testing.T) {
		md := tui.IssuesMarkdown("graph.xml", nil)
		assert.Contains(t, md, "# Validation of `graph.xml`")
		assert.Contains(t, md, "resolves")
	})

	t.Run("Issues Are Tabulated", func(t *testing.T) {
		md := tui.IssuesMarkdown("graph.xml", []domain.Issue{
			{Key: "root/transition:go", Message: "target a|b not found"},
		})
		assert.Contains(t, md, "**1** issue(s)")
		assert.Contains(t, md, "| `root/transition:go` | target a\\|b not found |")
	})
}

func TestGraphMarkdown(t *testing.T) {
	assert.Equal(t, "```mermaid\ngraph TD\n```\n", tui.GraphMarkdown("graph TD\n"))
}

func TestRenderer(t *testing.T) {
	render := tui.NewRenderer()
	out, err := render("# Title")
	require.NoError(t, err)
	assert.Contains(t, out, "Title")
}

func TestStyler_Ascii(t *testing.T) {
	s := tui.NewStyler(termenv.Ascii)

	root, err := domain.NewState("root", domain.StateSpec{})
	require.NoError(t, err)

	assert.Equal(t, "root (active)", s.State([]*domain.State{root}, domain.StatusActive))
	assert.Equal(t, "transitions: a, b", s.Choices("transitions", []string{"a", "b"}))
	assert.Equal(t, "operations: none", s.Choices("operations", nil))
	assert.Equal(t, "✗ boom", s.Error(errors.New("boom")))
	assert.Equal(t, "#2 a -[go]-> b", s.Event(domain.StateChangeEvent{
		Type: domain.EventStateChanged, Sequence: 2, OldState: "a", NewState: "b", Cause: "go",
	}))
	assert.Equal(t, "#3 disposed", s.Event(domain.StateChangeEvent{Type: domain.EventDisposed, Sequence: 3}))
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf)
	assert.Contains(t, buf.String(), "|_.__/")
}
