/*
Package domain contains the immutable graph model of the Arbor lifecycle engine.

The graph is declared once, shared read-only by every machine built against it,
and may contain shared and cyclic nested states. This package is kept pure and
free of I/O, following the hexagonal layout used across the project.

# Key Entities

  - State: a named node declaring triggers, transitions, operations, capability
    bindings and nested states.
  - Transition: a named edge to a target resolved by name through the scope chain.
  - Operation: an opaque label executed by the host, never by the engine.
  - Trigger: binds the initialization or termination event to a Transition or Operation.
  - GraphBuilder: assembles shared and cyclic graphs without leaking partial states.
*/
package domain
