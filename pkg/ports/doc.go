/*
Package ports defines the driven ports (interfaces) for the Arbor engine.

These interfaces decouple the interpreter from the code that hosts it: where
graphs come from, how operations run against live instances, and how state-change
notifications reach observers.

# Key Interfaces

  - GraphLoader: builds the shared graph (e.g., from a file or memory).
  - OperationExecutor: runs a named operation against the managed instance.
  - EventDispatcher: delivers notifications asynchronously, in order.
  - Listener: receives those notifications.
*/
package ports
