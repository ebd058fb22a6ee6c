/*
Package session keeps the live machines of a process, one per managed instance.

A Machine assumes a single writer. The Manager provides that guarantee: every
access to an instance goes through a per-instance lock, reference counted so idle
instances cost nothing, and optionally backed by a distributed lock so several
replicas can share the same instance IDs.
*/
package session
