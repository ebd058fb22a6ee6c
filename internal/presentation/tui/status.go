package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/muesli/termenv"
)

// Styler colors short status lines for an interactive session.
// With the termenv.Ascii profile it produces plain text.
type Styler struct {
	profile termenv.Profile
}

// NewStyler returns a Styler for the given color profile.
func NewStyler(profile termenv.Profile) *Styler {
	return &Styler{profile: profile}
}

// State renders the cursor path and machine status, e.g. "component/started (active)".
func (s *Styler) State(path []*domain.State, status domain.Status) string {
	names := make([]string, len(path))
	for i, st := range path {
		names[i] = st.Name()
	}
	cursor := s.profile.String(strings.Join(names, "/")).Foreground(s.profile.Color("#22d3ee")).Bold()
	return fmt.Sprintf("%s (%s)", cursor, s.status(status))
}

func (s *Styler) status(status domain.Status) termenv.Style {
	out := s.profile.String(string(status))
	switch status {
	case domain.StatusActive:
		return out.Foreground(s.profile.Color("#4ade80"))
	case domain.StatusTerminated:
		return out.Foreground(s.profile.Color("#fbbf24"))
	case domain.StatusDisposed:
		return out.Foreground(s.profile.Color("#f87171"))
	}
	return out.Faint()
}

// Choices renders the names a user can type next.
func (s *Styler) Choices(label string, names []string) string {
	if len(names) == 0 {
		return s.profile.String(label + ": none").Faint().String()
	}
	return fmt.Sprintf("%s: %s", s.profile.String(label).Faint(), strings.Join(names, ", "))
}

// Error renders an error line.
func (s *Styler) Error(err error) string {
	return s.profile.String("✗ " + err.Error()).Foreground(s.profile.Color("#f87171")).String()
}

// Event renders a state change event.
func (s *Styler) Event(e domain.StateChangeEvent) string {
	if e.Type == domain.EventDisposed {
		return s.profile.String(fmt.Sprintf("#%d disposed", e.Sequence)).Faint().String()
	}
	return s.profile.String(fmt.Sprintf("#%d %s -[%s]-> %s", e.Sequence, e.OldState, e.Cause, e.NewState)).Faint().String()
}
