package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/arbor/internal/compiler"
	"github.com/aretw0/arbor/pkg/adapters/file"
	"github.com/aretw0/arbor/pkg/domain"
	contract "github.com/aretw0/arbor/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLoader_Contract(t *testing.T) {
	contract.GraphLoaderContractTest(t, file.New("../../../testdata/example.xml"), "component")
	contract.GraphLoaderContractTest(t, file.New("../../../testdata/example.yaml"), "component")
}

func TestFileLoader_FormatsAgree(t *testing.T) {
	ctx := context.Background()
	fromXML, err := file.New("../../../testdata/example.xml").Load(ctx)
	require.NoError(t, err)
	fromYAML, err := file.New("../../../testdata/example.yaml").Load(ctx)
	require.NoError(t, err)

	assert.True(t, fromXML.Equal(fromYAML))
	assert.Equal(t, fromXML.Hash(), fromYAML.Hash())
}

func TestFileLoader_WithFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.txt")
	require.NoError(t, os.WriteFile(path, []byte("name: solo\n"), 0644))

	root, err := file.New(path, file.WithFormat(compiler.FormatYAML)).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "solo", root.Name())
}

func TestFileLoader_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := file.New(filepath.Join(t.TempDir(), "missing.xml")).Load(ctx)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = file.New("").Load(ctx)
	assert.ErrorIs(t, err, domain.ErrNullArgument)

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.xml")
	require.NoError(t, os.WriteFile(bad, []byte(`<state name="a"><trigger event="boot"/></state>`), 0644))
	contract.MalformedLoaderTest(t, file.New(bad))
}
