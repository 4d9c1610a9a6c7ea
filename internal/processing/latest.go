package processing

import "sync"

// Latest is a single-slot last-write-wins channel for processed
// frames. A new Set overwrites any unread value; readers either poll
// Get or block in Await for the next change.
type Latest struct {
	mu     sync.Mutex
	cond   *sync.Cond
	value  ProcessedFrame
	seq    uint64
	hasVal bool
	closed bool
}

func NewLatest() *Latest {
	l := &Latest{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Set publishes a new value, superseding any previous one.
func (l *Latest) Set(v ProcessedFrame) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.value = v
	l.hasVal = true
	l.seq++
	l.cond.Broadcast()
}

// Clear publishes the empty "no frame" value.
func (l *Latest) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.value = ProcessedFrame{}
	l.hasVal = false
	l.seq++
	l.cond.Broadcast()
}

// Get returns the current value. ok is false when the slot is empty.
func (l *Latest) Get() (v ProcessedFrame, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.hasVal
}

// Await blocks until the slot changes past since, then returns the
// current value and its sequence number. Callers pass the returned seq
// back in to wait for the next change; pass 0 to get the first value.
// ok is false once the slot is closed.
func (l *Latest) Await(since uint64) (v ProcessedFrame, seq uint64, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.seq <= since && !l.closed {
		l.cond.Wait()
	}
	if l.closed {
		return ProcessedFrame{}, l.seq, false
	}
	return l.value, l.seq, true
}

// Close wakes all waiters permanently.
func (l *Latest) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.cond.Broadcast()
}
