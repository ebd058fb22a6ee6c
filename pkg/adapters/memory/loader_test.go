package memory_test

import (
	"testing"

	"github.com/aretw0/arbor/internal/compiler"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	contract "github.com/aretw0/arbor/pkg/ports/tests"
	"github.com/stretchr/testify/require"
)

const document = `
<state name="door">
  <trigger event="initialization">
    <transition name="install" target="closed"/>
  </trigger>
  <state name="closed">
    <transition name="open" target="opened"/>
  </state>
  <state name="opened">
    <transition name="close" target="closed"/>
  </state>
</state>`

func TestInMemoryLoader_Contract(t *testing.T) {
	contract.GraphLoaderContractTest(t, memory.NewLoader(document, compiler.FormatXML), "door")
}

func TestInMemoryLoader_YAML(t *testing.T) {
	loader := memory.NewLoader("name: door\nstates:\n  - name: closed\n", compiler.FormatYAML)
	contract.GraphLoaderContractTest(t, loader, "door")
}

func TestInMemoryLoader_Malformed(t *testing.T) {
	contract.MalformedLoaderTest(t, memory.NewLoader(`<state><state name="x"/></state>`, compiler.FormatXML))
}

func TestNewFromState(t *testing.T) {
	closed, err := domain.NewState("closed", domain.StateSpec{})
	require.NoError(t, err)
	root, err := domain.NewState("door", domain.StateSpec{States: []*domain.State{closed}})
	require.NoError(t, err)

	loader, err := memory.NewFromState(root)
	require.NoError(t, err)
	contract.GraphLoaderContractTest(t, loader, "door")

	_, err = memory.NewFromState(nil)
	require.ErrorIs(t, err, domain.ErrNullArgument)
}
