// Package mirror implements the observable-container pattern the design
// describes: a writer-owned container publishes deltas to any number of
// mirrored containers living on consumer-chosen executors, so UI or HTTP
// threads can read engine state without ever blocking the engine's event
// loop. The delta-delivery primitive is
// github.com/lightningnetwork/lnd/queue.ConcurrentQueue, the same
// unbounded-buffering concurrent queue lnd vendors as its own
// micro-package for cross-goroutine handoff.
package mirror

import (
	"sync"

	"github.com/lightningnetwork/lnd/queue"
)

// DeltaKind distinguishes the three delta shapes a mirrored collection can
// publish.
type DeltaKind int

const (
	Added DeltaKind = iota
	Removed
	Replaced
)

// Delta is one change to a writer-owned collection of type
// map[K]V, addressed by key.
type Delta[K comparable, V any] struct {
	Kind     DeltaKind
	Key      K
	Value    V // set for Added/Replaced
	OldValue V // set for Replaced
}

// Executor runs a function on whatever thread a consumer wants deltas
// applied on — a UI's main-thread dispatcher, an HTTP handler's goroutine,
// or, in tests, direct synchronous invocation.
type Executor func(func())

// Writer owns a map[K]V and publishes every mutation as a Delta to any
// number of registered Mirrors. Only the owning goroutine (the engine event
// loop, by design) may call the mutating methods.
type Writer[K comparable, V any] struct {
	mu      sync.RWMutex
	data    map[K]V
	mirrors []*Mirror[K, V]
}

// NewWriter creates an empty observable collection.
func NewWriter[K comparable, V any]() *Writer[K, V] {
	return &Writer[K, V]{data: make(map[K]V)}
}

// Snapshot returns a shallow copy of the current contents, for any direct
// (non-mirrored) read a caller on the owning goroutine wants.
func (w *Writer[K, V]) Snapshot() map[K]V {
	w.mu.RLock()
	defer w.mu.RUnlock()
	cp := make(map[K]V, len(w.data))
	for k, v := range w.data {
		cp[k] = v
	}
	return cp
}

// Put inserts or replaces the value at key, publishing Added or Replaced.
func (w *Writer[K, V]) Put(key K, value V) {
	w.mu.Lock()
	old, existed := w.data[key]
	w.data[key] = value
	mirrors := append([]*Mirror[K, V](nil), w.mirrors...)
	w.mu.Unlock()

	var d Delta[K, V]
	if existed {
		d = Delta[K, V]{Kind: Replaced, Key: key, Value: value, OldValue: old}
	} else {
		d = Delta[K, V]{Kind: Added, Key: key, Value: value}
	}
	for _, m := range mirrors {
		m.publish(d)
	}
}

// Get reads a single key directly from the writer, for owning-goroutine
// callers that want one value without a full Snapshot copy.
func (w *Writer[K, V]) Get(key K) (V, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v, ok := w.data[key]
	return v, ok
}

// Delete removes key, publishing Removed. A no-op if key isn't present.
func (w *Writer[K, V]) Delete(key K) {
	w.mu.Lock()
	old, existed := w.data[key]
	if !existed {
		w.mu.Unlock()
		return
	}
	delete(w.data, key)
	mirrors := append([]*Mirror[K, V](nil), w.mirrors...)
	w.mu.Unlock()

	d := Delta[K, V]{Kind: Removed, Key: key, OldValue: old}
	for _, m := range mirrors {
		m.publish(d)
	}
}

// NewMirror registers a Mirror that will receive every future delta from w,
// applying it via exec. The initial snapshot is taken under w's lock so it
// is consistent with the very first delta the Mirror receives.
func (w *Writer[K, V]) NewMirror(exec Executor) *Mirror[K, V] {
	w.mu.Lock()
	defer w.mu.Unlock()

	data := make(map[K]V, len(w.data))
	for k, v := range w.data {
		data[k] = v
	}
	m := &Mirror[K, V]{
		data:  data,
		exec:  exec,
		queue: queue.NewConcurrentQueue(64),
	}
	m.queue.Start()
	w.mirrors = append(w.mirrors, m)

	go m.drain()
	return m
}

// Mirror is a read-only, eventually-consistent copy of a Writer's
// collection, kept up to date via queued deltas applied on the consumer's
// chosen Executor.
type Mirror[K comparable, V any] struct {
	mu    sync.RWMutex
	data  map[K]V
	exec  Executor
	queue *queue.ConcurrentQueue

	onChange func(Delta[K, V])
}

// OnChange registers a callback invoked (on the mirror's executor) for
// every applied delta. Used by the engine's DiskManager bridge to react to
// changes rather than poll Snapshot.
func (m *Mirror[K, V]) OnChange(fn func(Delta[K, V])) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

func (m *Mirror[K, V]) publish(d Delta[K, V]) {
	m.queue.ChanIn() <- d
}

func (m *Mirror[K, V]) drain() {
	for item := range m.queue.ChanOut() {
		d := item.(Delta[K, V])
		m.exec(func() {
			m.mu.Lock()
			switch d.Kind {
			case Added, Replaced:
				m.data[d.Key] = d.Value
			case Removed:
				delete(m.data, d.Key)
			}
			cb := m.onChange
			m.mu.Unlock()
			if cb != nil {
				cb(d)
			}
		})
	}
}

// Snapshot returns a shallow copy of the mirror's current contents.
func (m *Mirror[K, V]) Snapshot() map[K]V {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := make(map[K]V, len(m.data))
	for k, v := range m.data {
		cp[k] = v
	}
	return cp
}

// Get reads a single key.
func (m *Mirror[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

// Close stops the mirror's drain goroutine. The Writer keeps a dangling
// reference; that's acceptable for the lifetime of an engine process,
// matching lnd's own posture on unregistered listeners.
func (m *Mirror[K, V]) Close() {
	m.queue.Stop()
}

// Inline is an Executor that runs fn synchronously on the calling
// goroutine — the executor the tests and the engine's DiskManager bridge
// use, having no UI thread to marshal onto.
func Inline(fn func()) {
	fn()
}
