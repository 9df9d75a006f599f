// Package breaker implements a tri-state circuit breaker with pluggable state storage.
//
// A Breaker guards one dependency. It starts CLOSED and lets calls through,
// opens after FailureThreshold failures, rejects calls until RecoveryTimeout
// has passed since the last failure, then admits a limited number of probes
// in HALF_OPEN. SuccessThreshold probe successes close it again and any probe
// failure reopens it.
//
// State lives in a Store so that several workers can share it. Every
// transition is computed from a snapshot and committed with CompareAndSwap,
// retrying on conflict. MemoryStore keeps state in process; the badger
// storage package provides a persistent store shared by every process
// that opens the same database.
//
// The breaker never blocks callers on storage problems: when the store
// cannot be read, CanExecute allows the call and the error is logged.
package breaker
