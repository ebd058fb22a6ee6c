package tests

import (
	"context"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// GraphLoaderContractTest is a reusable test suite that verifies if an adapter complies with ports.GraphLoader.
// wantRoot is the name of the root state the loader is expected to produce.
func GraphLoaderContractTest(t *testing.T, loader ports.GraphLoader, wantRoot string) {
	t.Helper()

	t.Run("Load_Success", func(t *testing.T) {
		root, err := loader.Load(context.Background())
		require.NoError(t, err)
		require.NotNil(t, root)
		assert.Equal(t, wantRoot, root.Name())
	})

	t.Run("Load_Repeatable", func(t *testing.T) {
		first, err := loader.Load(context.Background())
		require.NoError(t, err)
		second, err := loader.Load(context.Background())
		require.NoError(t, err)
		assert.True(t, first.Equal(second), "repeated loads must yield equal graphs")
	})

	t.Run("Load_Canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := loader.Load(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

// MalformedLoaderTest verifies that a loader reports document defects as ErrMalformedGraph.
func MalformedLoaderTest(t *testing.T, loader ports.GraphLoader) {
	t.Helper()
	_, err := loader.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedGraph)
}
