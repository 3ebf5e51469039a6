// Package queue provides the write-behind queue of the save service.
//
// The queue is a concurrent map keyed by identifier, so repeated saves of the same key
// before a flush coalesce to the latest value and every key is written at most once
// per batch.
//
// Lifecycle of a batch:
//
//	Put ... Put  ->  Drain()  ->  (write batch)  ->  Complete(ok)
//
// Drain swaps the live map for a fresh one under an exclusive lock. The old map becomes
// the in-flight batch, it stays readable through Get until Complete is called. Puts
// share the lock, so a Put concurrent with a Drain lands either in the drained batch
// or in the fresh map, never in neither.
//
// Complete(false) moves the in-flight entries back into the live map with LoadOrStore
// semantics: a key saved again while the batch was in flight keeps its newer value.
package queue
