// Package queue provides the per-session frame mailbox.
//
// Video frames are not a backlog to drain: only the newest one matters. The
// mailbox holds a single slot that newer frames overwrite, and exposes a
// notification channel the detection loop blocks on. A frame whose timestamp
// does not advance past the slot's is dropped at the door, which is how the
// loop avoids redundant work on stalled or duplicate deliveries.
package queue

import (
	"context"
	"sync"

	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/metrics"
)

// Frame is the payload type flowing through the mailbox.
// Using the model.Frame type for type safety.
type Frame = model.Frame

// Mailbox provides overwrite-on-newer offer and blocking take semantics.
type Mailbox interface {
	// Offer places a frame in the slot if its timestamp advances past the
	// current occupant's. Returns false if the frame was stale or the
	// mailbox is closed.
	Offer(ctx context.Context, f Frame) bool

	// Take blocks until a frame is available, the context is canceled, or
	// the mailbox is closed. The second return is false in the latter two
	// cases.
	Take(ctx context.Context) (Frame, bool)

	// Peek returns the newest offered frame without consuming it. Used by
	// the drift tick, which samples the latest landmarks rather than
	// joining the frame cadence.
	Peek() (Frame, bool)

	// Close shuts the mailbox; blocked Take calls return.
	Close() error
}

// InMemoryMailbox implements Mailbox with a single guarded slot.
type InMemoryMailbox struct {
	mu     sync.Mutex
	slot   Frame
	filled bool
	taken  bool
	notify chan struct{}
	closed bool
}

// NewInMemoryMailbox creates an empty mailbox.
func NewInMemoryMailbox() *InMemoryMailbox {
	return &InMemoryMailbox{
		notify: make(chan struct{}, 1),
	}
}

// Offer places a frame in the slot when it advances the timestamp.
func (m *InMemoryMailbox) Offer(_ context.Context, f Frame) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		metrics.RecordErrorByComponent("mailbox", "closed")
		return false
	}
	if m.filled && !f.Timestamp.After(m.slot.Timestamp) {
		metrics.RecordFrameStale()
		return false
	}

	m.slot = f
	m.filled = true
	m.taken = false

	// Non-blocking: one pending notification is enough, the consumer
	// always reads the newest slot.
	select {
	case m.notify <- struct{}{}:
	default:
	}
	return true
}

// Take blocks until an unconsumed frame is present.
func (m *InMemoryMailbox) Take(ctx context.Context) (Frame, bool) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return Frame{}, false
		}
		if m.filled && !m.taken {
			m.taken = true
			f := m.slot
			m.mu.Unlock()
			return f, true
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return Frame{}, false
		case _, ok := <-m.notify:
			if !ok {
				return Frame{}, false
			}
		}
	}
}

// Peek returns the newest offered frame without consuming it.
func (m *InMemoryMailbox) Peek() (Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.filled {
		return Frame{}, false
	}
	return m.slot, true
}

// Close shuts the mailbox and wakes any blocked Take. Closing an already
// closed mailbox returns ErrClosed.
func (m *InMemoryMailbox) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.closed = true
	close(m.notify)
	return nil
}
