// Package stally counts messages and bytes per message kind.
//
// A [Tracker] is written by one side of the transport
// (the receive loop, or the request sender)
// and read by anything that wants to display or export the counts.
// [Collector] exports a Tracker to Prometheus.
package stally

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Entry is the running count of messages and bytes for one kind.
type Entry struct {
	Count uint64
	Bytes uint64
}

// Add returns the sum of e and o.
func (e Entry) Add(o Entry) Entry {
	return Entry{Count: e.Count + o.Count, Bytes: e.Bytes + o.Bytes}
}

// Key is the constraint on tracker keys:
// message or request kinds, which name themselves for labels.
type Key interface {
	comparable
	fmt.Stringer
}

// Tracker holds one [Entry] per key.
// Entries only grow until [Tracker.Reset].
// All methods are safe for concurrent use.
type Tracker[K Key] struct {
	mu      sync.Mutex
	entries map[K]Entry
}

// NewTracker returns an empty Tracker.
func NewTracker[K Key]() *Tracker[K] {
	return &Tracker[K]{entries: make(map[K]Entry)}
}

// Record adds one message of size bytes under k.
func (t *Tracker[K]) Record(k K, size int) {
	if size < 0 {
		panic(fmt.Errorf("BUG: negative size %d recorded for %s", size, k))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entries[k]
	e.Count++
	e.Bytes += uint64(size)
	t.entries[k] = e
}

// Get returns the entry for k, or the zero Entry if none was recorded.
func (t *Tracker[K]) Get(k K) Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[k]
}

// Snapshot returns a copy of every recorded entry.
func (t *Tracker[K]) Snapshot() map[K]Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.entries)
}

// Total returns the sum over all keys.
func (t *Tracker[K]) Total() Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	var sum Entry
	for _, e := range t.entries {
		sum = sum.Add(e)
	}
	return sum
}

// Reset discards every entry.
func (t *Tracker[K]) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.entries)
}

// SortedKeys returns the keys of a snapshot ordered by their String form,
// for stable display.
func SortedKeys[K Key](snap map[K]Entry) []K {
	return slices.SortedFunc(maps.Keys(snap), func(a, b K) int {
		return cmp.Compare(a.String(), b.String())
	})
}
