// Package file loads graph documents from the local filesystem.
package file

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/arbor/internal/compiler"
	"github.com/aretw0/arbor/pkg/domain"
)

// Loader implements ports.GraphLoader for a single document on disk.
// The file is read on every Load, so edits are picked up without restarting.
type Loader struct {
	path   string
	format compiler.Format
}

// Option configures a Loader.
type Option func(*Loader)

// WithFormat overrides the format detected from the file extension.
func WithFormat(format compiler.Format) Option {
	return func(l *Loader) {
		if format != "" {
			l.format = format
		}
	}
}

// New creates a loader for path. Files ending in .yaml, .yml or .json are read
// as YAML, anything else as XML.
func New(path string, opts ...Option) *Loader {
	l := &Loader{path: path, format: compiler.FormatFromPath(path)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the document path.
func (l *Loader) Path() string { return l.path }

// Load reads and parses the document.
func (l *Loader) Load(ctx context.Context) (*domain.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.path == "" {
		return nil, &domain.NullArgumentError{Type: "file loader", Field: "path"}
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph %s: %w", l.path, err)
	}
	root, err := compiler.NewParser(l.format).Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.path, err)
	}
	return root, nil
}
