package memory

import (
	"sync"
	"time"

	"github.com/yaajosh/chat-simulator/core"
)

// DefaultCapacity is the number of entries kept when no capacity is given.
const DefaultCapacity = 20

// Buffer is a process-local rolling window of conversation entries.
//
// Concurrency: protected by RWMutex.
// Invariant: Len() <= Capacity() at all times.
type Buffer struct {
	mu       sync.RWMutex
	capacity int
	entries  []core.Entry
	now      func() time.Time
}

// NewBuffer creates a buffer holding at most capacity entries. A capacity
// below one yields DefaultCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		capacity: capacity,
		entries:  make([]core.Entry, 0, capacity),
		now:      time.Now,
	}
}

// WithClock sets the time source used to stamp recorded entries.
func (b *Buffer) WithClock(now func() time.Time) *Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
	return b
}

// Record appends an entry and evicts from the front until the buffer fits
// its capacity.
func (b *Buffer) Record(speaker, text string) core.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := core.Entry{Speaker: speaker, Text: text, At: b.now()}
	b.entries = append(b.entries, e)
	if over := len(b.entries) - b.capacity; over > 0 {
		// shift in place so the backing array does not grow without bound
		n := copy(b.entries, b.entries[over:])
		clear(b.entries[n:])
		b.entries = b.entries[:n]
	}
	return e
}

// RecentWindow returns up to n of the most recent entries in chronological
// order. The result is a copy.
func (b *Buffer) RecentWindow(n int) []core.Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n <= 0 {
		return []core.Entry{}
	}
	if n > len(b.entries) {
		n = len(b.entries)
	}
	out := make([]core.Entry, n)
	copy(out, b.entries[len(b.entries)-n:])
	return out
}

// Len returns the number of stored entries.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Capacity returns the fixed maximum size.
func (b *Buffer) Capacity() int { return b.capacity }

// Reset drops all entries.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.entries)
	b.entries = b.entries[:0]
}
