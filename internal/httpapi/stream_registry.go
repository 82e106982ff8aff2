package httpapi

import (
	"sync"
	"sync/atomic"
)

// StreamRegistry tracks open live-caption viewer streams and supports
// graceful draining. When draining is enabled, new streams are rejected
// while connected viewers finish naturally.
//
// The mu mutex makes the draining check and wg.Add atomic in Add(), preventing
// a TOCTOU race where StartDraining+Wait could be called between the draining
// check and wg.Add.
type StreamRegistry struct {
	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
	count    atomic.Int64
}

// NewStreamRegistry creates a new StreamRegistry.
func NewStreamRegistry() *StreamRegistry {
	return &StreamRegistry{}
}

// Add registers a new viewer stream. Returns false if the registry is
// draining, meaning no new streams should be accepted. The draining check
// and WaitGroup increment are performed atomically under a mutex.
func (sr *StreamRegistry) Add() bool {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	if sr.draining {
		return false
	}
	sr.wg.Add(1)
	sr.count.Add(1)
	return true
}

// Done marks a stream as closed. Must be called exactly once per successful Add.
func (sr *StreamRegistry) Done() {
	sr.count.Add(-1)
	sr.wg.Done()
}

// StartDraining sets the draining flag so that future Add calls return false.
// This is safe to call concurrently with Add — the mutex ensures no Add can
// slip through after StartDraining returns.
func (sr *StreamRegistry) StartDraining() {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.draining = true
}

// IsDraining reports whether the registry is in draining mode.
func (sr *StreamRegistry) IsDraining() bool {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return sr.draining
}

// ActiveCount returns the number of currently open streams.
func (sr *StreamRegistry) ActiveCount() int64 {
	return sr.count.Load()
}

// Wait blocks until all streams have closed (all Done calls matched Add calls).
func (sr *StreamRegistry) Wait() {
	sr.wg.Wait()
}
