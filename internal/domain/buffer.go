package domain

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Entry is anything that can be stored in a venue-owned Buffer.
type Entry interface {
	Venue() VenueID
}

// Buffer is a fixed-capacity FIFO of recent entries owned by one venue.
// The oldest entry is evicted when a new one arrives at capacity.
// Uses a ring buffer so Add never allocates after construction.
type Buffer[T Entry] struct {
	mu    sync.RWMutex
	venue VenueID

	items []T
	head  int // next write position
	count int
}

// NewBuffer creates an empty buffer for venue. Capacity must be positive.
func NewBuffer[T Entry](capacity int, venue VenueID) *Buffer[T] {
	if capacity <= 0 {
		panic(fmt.Sprintf("Buffer: capacity must be positive, got %d", capacity))
	}
	return &Buffer[T]{
		venue: venue,
		items: make([]T, capacity),
	}
}

// Venue returns the owning venue.
func (b *Buffer[T]) Venue() VenueID {
	return b.venue
}

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int {
	return len(b.items)
}

// Len returns the number of stored entries.
func (b *Buffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Add appends entry and reports whether it was stored.
// Entries from another venue are rejected without touching the buffer.
func (b *Buffer[T]) Add(entry T) bool {
	if entry.Venue() != b.venue {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = entry
	b.head = (b.head + 1) % len(b.items)
	if b.count < len(b.items) {
		b.count++
	}
	return true
}

// Latest returns the most recently added entry.
func (b *Buffer[T]) Latest() (T, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.latestLocked()
}

func (b *Buffer[T]) latestLocked() (T, bool) {
	var zero T
	if b.count == 0 {
		return zero, false
	}
	idx := b.head - 1
	if idx < 0 {
		idx = len(b.items) - 1
	}
	return b.items[idx], true
}

// Entries returns a copy of the stored entries, oldest first.
func (b *Buffer[T]) Entries() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]T, 0, b.count)
	start := b.head - b.count
	if start < 0 {
		start += len(b.items)
	}
	for i := 0; i < b.count; i++ {
		out = append(out, b.items[(start+i)%len(b.items)])
	}
	return out
}

// MarshalJSON encodes the entries oldest first.
func (b *Buffer[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Entries())
}
