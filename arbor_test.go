package arbor_test

import (
	"context"
	"testing"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/compiler"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const brokenDocument = `
<state name="root">
  <trigger event="initialization">
    <transition name="init" target="missing"/>
  </trigger>
  <state name="child">
    <transition name="back" target="root"/>
    <transition name="away" target="elsewhere"/>
  </state>
</state>`

func TestNew_FromFile(t *testing.T) {
	eng, err := arbor.New("testdata/example.xml", arbor.WithStrictValidation())
	require.NoError(t, err)
	assert.Equal(t, "example.xml", eng.Name)
	assert.Equal(t, "component", eng.Graph().Name())
	assert.Empty(t, eng.Validate())
}

func TestNew_RequiresPathOrLoader(t *testing.T) {
	_, err := arbor.New("")
	assert.Error(t, err)
}

func TestNew_StrictValidation(t *testing.T) {
	loader := memory.NewLoader(brokenDocument, compiler.FormatXML)

	_, err := arbor.New("", arbor.WithLoader(loader), arbor.WithStrictValidation())
	require.Error(t, err)
	issues := domain.IssuesOf(err)
	require.Len(t, issues, 2)
	assert.Equal(t, "root/trigger:initialization", issues[0].Key)
	assert.Equal(t, "root/child/transition:away", issues[1].Key)

	// Lenient mode loads the graph and leaves the report to the caller.
	eng, err := arbor.New("", arbor.WithLoader(loader))
	require.NoError(t, err)
	assert.Len(t, eng.Validate(), 2)
}

func TestNew_MalformedDocument(t *testing.T) {
	loader := memory.NewLoader(`<state name="a"><transition name="x"/></state>`, compiler.FormatXML)
	_, err := arbor.New("", arbor.WithLoader(loader))
	assert.ErrorIs(t, err, domain.ErrMalformedGraph)
}

func TestEngine_NewMachine(t *testing.T) {
	eng, err := arbor.New("testdata/example.xml")
	require.NoError(t, err)

	m, err := eng.NewMachine(arbor.WithMachineID("m-1"))
	require.NoError(t, err)
	defer m.Dispose()

	assert.Equal(t, "m-1", m.ID())
	assert.Same(t, eng.Graph(), m.Root())

	ctx := context.Background()
	state, err := m.Initialize(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "started", state.Name())
}

func TestEngine_ReloadKeepsRunningMachines(t *testing.T) {
	eng, err := arbor.New("testdata/example.xml")
	require.NoError(t, err)

	m, err := eng.NewMachine()
	require.NoError(t, err)
	defer m.Dispose()

	before := eng.Graph()
	require.NoError(t, eng.Reload(context.Background()))

	assert.NotSame(t, before, eng.Graph())
	assert.True(t, before.Equal(eng.Graph()))
	assert.Same(t, before, m.Root())
}
