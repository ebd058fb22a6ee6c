package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// IssuesMarkdown formats a validation report as markdown.
func IssuesMarkdown(source string, issues []domain.Issue) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Validation of `%s`\n\n", source)
	if len(issues) == 0 {
		sb.WriteString("✅ Every transition target and trigger action resolves.\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "❌ Found **%d** issue(s).\n\n", len(issues))
	sb.WriteString("| Element | Problem |\n|---|---|\n")
	for _, issue := range issues {
		fmt.Fprintf(&sb, "| `%s` | %s |\n", issue.Key, strings.ReplaceAll(issue.Message, "|", "\\|"))
	}
	return sb.String()
}

// GraphMarkdown wraps a Mermaid diagram in a fenced block.
func GraphMarkdown(mermaid string) string {
	return "```mermaid\n" + mermaid + "```\n"
}
