package arbor_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/compiler"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/registry"
)

// ExampleNew_memory demonstrates how to use the Engine with an in-memory graph document.
func ExampleNew_memory() {
	loader := memory.NewLoader(`
<state name="lamp">
  <trigger event="initialization">
    <transition name="plug" target="off"/>
  </trigger>
  <state name="off">
    <transition name="toggle" target="on">
      <operation name="power"/>
    </transition>
  </state>
  <state name="on">
    <transition name="toggle" target="off"/>
  </state>
</state>`, compiler.FormatXML)

	executor := ports.ExecutorFunc(func(_ context.Context, op *domain.Operation, _ any) error {
		fmt.Println("executing", op.Name())
		return nil
	})

	// Path is only a label because we are providing a loader.
	engine, err := arbor.New("lamp", arbor.WithLoader(loader), arbor.WithExecutor(executor))
	if err != nil {
		log.Fatal(err)
	}

	m, err := engine.NewMachine()
	if err != nil {
		log.Fatal(err)
	}
	defer m.Dispose()

	ctx := context.Background()
	state, _ := m.Initialize(ctx, nil)
	fmt.Println("state:", state.Name())

	state, _ = m.Apply(ctx, "toggle", nil)
	fmt.Println("state:", state.Name())

	state, _ = m.Terminate(ctx, nil)
	fmt.Println("state:", state.Name(), m.Status())

	// Output:
	// state: off
	// executing power
	// state: on
	// state: terminated terminated
}

// ExampleNew_dsl builds the graph in Go and binds operations to handlers.
func ExampleNew_dsl() {
	b := dsl.New("job").OnInitialize("queue", "waiting")
	b.State("waiting").GoDo("run", "running", "spawn")
	b.State("running").Operation("report").Go("finish", "done")
	b.State("done")

	loader, err := b.Loader()
	if err != nil {
		log.Fatal(err)
	}

	handlers := registry.NewRegistry(nil)
	handlers.Register("spawn", func(context.Context, any) error {
		fmt.Println("spawned")
		return nil
	})
	handlers.Register("report", func(_ context.Context, arg any) error {
		fmt.Println("progress:", arg)
		return nil
	})

	engine, err := arbor.New("job", arbor.WithLoader(loader), arbor.WithExecutor(handlers))
	if err != nil {
		log.Fatal(err)
	}
	m, err := engine.NewMachine()
	if err != nil {
		log.Fatal(err)
	}
	defer m.Dispose()

	ctx := context.Background()
	m.Initialize(ctx, nil)
	m.Apply(ctx, "run", nil)
	m.Execute(ctx, "report", "50%")
	state, _ := m.Apply(ctx, "finish", nil)
	fmt.Println("state:", state.Name(), state.IsTerminal())

	// Output:
	// spawned
	// progress: 50%
	// state: done true
}
