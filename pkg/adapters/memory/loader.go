package memory

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aretw0/arbor/internal/compiler"
	"github.com/aretw0/arbor/pkg/domain"
)

// Loader implements ports.GraphLoader over a document held in memory.
type Loader struct {
	data   []byte
	parser *compiler.Parser
}

// NewLoader creates a loader for a document in the given format ("xml" or "yaml").
func NewLoader(document string, format compiler.Format) *Loader {
	return &Loader{
		data:   []byte(document),
		parser: compiler.NewParser(format),
	}
}

// NewFromState creates a loader that serves an already built graph.
// The graph is encoded once, so every Load returns a fresh, equal copy.
// This handles serialization automatically, improving DX for tests.
func NewFromState(root *domain.State) (*Loader, error) {
	var buf bytes.Buffer
	if err := compiler.Encode(&buf, root, compiler.FormatXML); err != nil {
		return nil, fmt.Errorf("failed to encode graph: %w", err)
	}
	return &Loader{data: buf.Bytes(), parser: compiler.NewParser(compiler.FormatXML)}, nil
}

// Load parses the document.
func (l *Loader) Load(ctx context.Context) (*domain.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.parser.Parse(l.data)
}
