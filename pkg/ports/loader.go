package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// GraphLoader builds the immutable state graph from some source.
// This allows the storage layer (file system, memory) to be decoupled.
type GraphLoader interface {
	// Load returns the root state of the graph.
	// Structural document defects are reported as *domain.MalformedGraphError.
	Load(ctx context.Context) (*domain.State, error)
}
