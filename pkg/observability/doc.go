/*
Package observability provides listeners for monitoring machines.

Metrics exports Prometheus counters and gauges for state changes, and LogListener
writes every state change to a structured logger. Both are ports.Listener values:
subscribe them to a dispatcher shared by the machines you want to observe.
*/
package observability
