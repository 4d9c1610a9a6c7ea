// Package framehub fans captured frames out to a dynamic set of
// subscribers. Publishing never blocks: the hub keeps a bounded ring of
// recent frames and slow subscribers skip ahead, learning exactly how
// many frames they missed.
package framehub

import (
	"errors"
	"fmt"
	"sync"
)

var ErrClosed = errors.New("framehub: hub closed")

// ErrLagged reports that a subscriber fell behind and its cursor was
// advanced to the oldest frame still retained.
type ErrLagged struct {
	Skipped uint64
}

func (e *ErrLagged) Error() string {
	return fmt.Sprintf("framehub: subscriber lagged, skipped %d frames", e.Skipped)
}

// Hub is a broadcast channel with bounded history.
type Hub[T any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	ring     []T
	capacity int
	// seq is the sequence number of the next frame to publish. Frames
	// [seq-len(retained), seq) are retained; older ones are overwritten.
	seq    uint64
	closed bool
	subs   map[*Subscription[T]]struct{}
}

// Subscription is a single subscriber's cursor into the hub.
type Subscription[T any] struct {
	hub    *Hub[T]
	cursor uint64
	done   bool
}

func New[T any](capacity int) *Hub[T] {
	if capacity < 1 {
		capacity = 1
	}
	h := &Hub[T]{
		ring:     make([]T, capacity),
		capacity: capacity,
		subs:     make(map[*Subscription[T]]struct{}),
	}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Publish stores the frame and wakes all waiting subscribers. It never
// blocks on slow receivers. Publishing on a closed hub is a no-op.
func (h *Hub[T]) Publish(f T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.ring[h.seq%uint64(h.capacity)] = f
	h.seq++
	h.cond.Broadcast()
}

// Subscribe registers a new subscriber. It only sees frames published
// after this call.
func (h *Hub[T]) Subscribe() *Subscription[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := &Subscription[T]{hub: h, cursor: h.seq}
	h.subs[s] = struct{}{}
	return s
}

// SubscriberCount returns the number of live subscriptions.
func (h *Hub[T]) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close wakes all blocked subscribers. Frames already retained stay
// readable until each subscriber drains them.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.cond.Broadcast()
}

// oldest returns the sequence number of the oldest retained frame.
func (h *Hub[T]) oldest() uint64 {
	if h.seq > uint64(h.capacity) {
		return h.seq - uint64(h.capacity)
	}
	return 0
}

// Recv blocks until a frame is available, the hub closes, or the
// subscription is cancelled. If the subscriber fell behind the retained
// window it returns *ErrLagged with the exact number of frames lost and
// jumps the cursor to the oldest retained frame; the next Recv then
// delivers that frame.
func (s *Subscription[T]) Recv() (T, error) {
	var zero T
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	for {
		if s.done {
			return zero, ErrClosed
		}
		if oldest := h.oldest(); s.cursor < oldest {
			skipped := oldest - s.cursor
			s.cursor = oldest
			return zero, &ErrLagged{Skipped: skipped}
		}
		if s.cursor < h.seq {
			f := h.ring[s.cursor%uint64(h.capacity)]
			s.cursor++
			return f, nil
		}
		if h.closed {
			return zero, ErrClosed
		}
		h.cond.Wait()
	}
}

// Cancel removes the subscription. Any blocked Recv returns ErrClosed.
func (s *Subscription[T]) Cancel() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	delete(h.subs, s)
	h.cond.Broadcast()
}
