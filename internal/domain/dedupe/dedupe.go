// Package dedupe defines the interface for idempotency tracking.
//
// Frame submissions may be retried by flaky clients; the ingest path records
// frame IDs here to keep processing at-most-once per frame.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records seen frame IDs to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an ID from the seen set, allowing it to be retried.
	// Used when a frame was marked seen but failed to enter the pipeline
	// (e.g. mailbox rejected it).
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// Option applies a configuration option to the in-memory deduper.
type Option func(*ringDeduper)

// WithMaxSize bounds the number of IDs kept in memory. When the bound is
// reached the oldest recorded ID is evicted. A non-positive size keeps the
// default.
func WithMaxSize(maxSize int) Option {
	return func(d *ringDeduper) {
		if maxSize > 0 {
			d.maxSize = maxSize
		}
	}
}

// ringDeduper implements Deduper with a map for membership and a fixed-size
// ring of insertion order for FIFO eviction.
type ringDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	ring    []string
	next    int
	maxSize int
	size    atomic.Int64
}

const defaultMaxSize = 50000

// NewInMemoryDeduper creates a bounded in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &ringDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]struct{}, d.maxSize)
	d.ring = make([]string, d.maxSize)
	return d
}

// SeenAndRecord atomically checks if id was seen and records it if not.
func (d *ringDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}

	// Evict whatever occupied this ring slot before reusing it.
	if old := d.ring[d.next]; old != "" {
		if _, ok := d.seen[old]; ok {
			delete(d.seen, old)
			d.size.Add(-1)
		}
	}
	d.ring[d.next] = id
	d.next = (d.next + 1) % d.maxSize

	d.seen[id] = struct{}{}
	d.size.Add(1)
	return false
}

// Unrecord removes an ID from the seen set. The ring slot is left in place;
// it simply no-ops at eviction time.
func (d *ringDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		delete(d.seen, id)
		d.size.Add(-1)
	}
}

// Size returns the current number of tracked IDs.
func (d *ringDeduper) Size() int64 {
	return d.size.Load()
}
