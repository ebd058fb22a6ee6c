/*
Package arbor is a hierarchical, declarative state-machine engine for managing the lifecycle of components.

A lifecycle is described once as an immutable graph of nested states. Each state may declare named
transitions, delegated operations, capability bindings and initialization or termination triggers.
Nested states can be shared between parents and may form cycles, so a state never knows its parent:
names are resolved along the path the machine took to reach it (the scope chain).

# Concept

The Engine owns the graph. A Machine interprets it for one managed instance: it keeps a cursor,
accepts transitions declared on the active state, hands operations to a host-provided executor
and posts every state change to an asynchronous dispatcher. The host decides what an operation
actually does; Arbor only decides which one applies. Ready-made executors run operations as
local commands (pkg/adapters/process) or as registered Go functions (pkg/registry), and graphs
can be written in Go with pkg/dsl instead of XML or YAML.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/arbor"
	)

	func main() {
		eng, err := arbor.New("./lifecycle.xml", arbor.WithStrictValidation())
		if err != nil {
			log.Fatal(err)
		}

		m, err := eng.NewMachine()
		if err != nil {
			log.Fatal(err)
		}
		defer m.Dispose()

		ctx := context.Background()
		if _, err := m.Initialize(ctx, nil); err != nil {
			log.Fatal(err)
		}
		if _, err := m.Apply(ctx, "stop", nil); err != nil {
			log.Fatal(err)
		}
		if _, err := m.Terminate(ctx, nil); err != nil {
			log.Fatal(err)
		}
	}
*/
package arbor
