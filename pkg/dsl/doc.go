/*
Package dsl provides a Go DSL (Domain Specific Language) for programmatically constructing Arbor graphs.

It allows developers to define hierarchical state machines using a type-safe, fluent builder pattern
instead of relying on external XML or YAML documents. This is particularly useful for dynamic graph
generation, unit testing, and leveraging IDE autocompletion/type-checking.

The builder produces the same syntax tree the document parser does, so a built graph obeys
exactly the same structural rules (unique child names, one action per trigger, resolvable
state references).

Example usage:

	door := dsl.New("door").
		OnInitialize("install", "closed")

	door.State("closed").
		Go("open", "opened")

	door.State("opened").
		GoDo("close", "closed", "log").
		Operation("log")

	root, err := door.Build()
	// ... or door.Loader() to pass to arbor.New(...)
*/
package dsl
