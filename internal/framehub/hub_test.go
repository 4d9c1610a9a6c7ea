package framehub

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// The hub is parameterized over the payload; a bare byte stands in for
// a frame in these tests.

func TestFanOutInOrder(t *testing.T) {
	h := New[byte](10)
	const subs = 3
	const frames = 5

	var wg sync.WaitGroup
	results := make([][]byte, subs)
	for i := 0; i < subs; i++ {
		s := h.Subscribe()
		wg.Add(1)
		go func(i int, s *Subscription[byte]) {
			defer wg.Done()
			for {
				f, err := s.Recv()
				if errors.Is(err, ErrClosed) {
					return
				}
				if err != nil {
					t.Errorf("Recv: %v", err)
					return
				}
				results[i] = append(results[i], f)
			}
		}(i, s)
	}

	for n := byte(1); n <= frames; n++ {
		h.Publish(n)
	}
	h.Close()
	wg.Wait()

	for i, got := range results {
		if len(got) != frames {
			t.Fatalf("subscriber %d got %d frames, want %d", i, len(got), frames)
		}
		for j, b := range got {
			if b != byte(j+1) {
				t.Errorf("subscriber %d frame %d = %d, want %d", i, j, b, j+1)
			}
		}
	}
}

func TestSubscriberSeesOnlyLaterFrames(t *testing.T) {
	h := New[byte](10)
	h.Publish(1)
	h.Publish(2)

	s := h.Subscribe()
	h.Publish(3)
	h.Close()

	f, err := s.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if f != 3 {
		t.Errorf("first frame = %d, want 3", f)
	}
	if _, err := s.Recv(); !errors.Is(err, ErrClosed) {
		t.Errorf("Recv after drain = %v, want ErrClosed", err)
	}
}

func TestLaggedSubscriberSkipCount(t *testing.T) {
	h := New[byte](3)
	s := h.Subscribe()

	// 5 frames into a capacity-3 ring: frames 1 and 2 are evicted.
	for n := byte(1); n <= 5; n++ {
		h.Publish(n)
	}

	_, err := s.Recv()
	var lag *ErrLagged
	if !errors.As(err, &lag) {
		t.Fatalf("Recv = %v, want *ErrLagged", err)
	}
	if lag.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", lag.Skipped)
	}

	// Cursor jumped to the oldest retained frame.
	for want := byte(3); want <= 5; want++ {
		f, err := s.Recv()
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		if f != want {
			t.Errorf("frame = %d, want %d", f, want)
		}
	}
}

func TestTwoSubscribersOneStalled(t *testing.T) {
	h := New[byte](3)
	fast := h.Subscribe()
	slow := h.Subscribe()

	if got := h.SubscriberCount(); got != 2 {
		t.Fatalf("SubscriberCount() = %d, want 2", got)
	}

	for n := byte(1); n <= 5; n++ {
		h.Publish(n)
		// fast keeps up frame by frame
		f, err := fast.Recv()
		if err != nil {
			t.Fatalf("fast Recv: %v", err)
		}
		if f != n {
			t.Errorf("fast frame = %d, want %d", f, n)
		}
	}

	_, err := slow.Recv()
	var lag *ErrLagged
	if !errors.As(err, &lag) {
		t.Fatalf("slow Recv = %v, want *ErrLagged", err)
	}
	if lag.Skipped != 2 {
		t.Errorf("slow Skipped = %d, want 2", lag.Skipped)
	}
	// a lagged subscriber is still subscribed
	if got := h.SubscriberCount(); got != 2 {
		t.Errorf("SubscriberCount() after lag = %d, want 2", got)
	}
	f, err := slow.Recv()
	if err != nil {
		t.Fatalf("slow Recv: %v", err)
	}
	if f != 3 {
		t.Errorf("slow resumed at %d, want 3", f)
	}
	if got := h.SubscriberCount(); got != 2 {
		t.Errorf("SubscriberCount() at end = %d, want 2", got)
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	h := New[byte](2)
	_ = h.Subscribe() // never reads

	done := make(chan struct{})
	go func() {
		for n := byte(0); n < 50; n++ {
			h.Publish(n)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a stalled subscriber")
	}
}

func TestSubscriberCount(t *testing.T) {
	h := New[byte](4)
	if n := h.SubscriberCount(); n != 0 {
		t.Fatalf("SubscriberCount = %d, want 0", n)
	}
	a := h.Subscribe()
	b := h.Subscribe()
	if n := h.SubscriberCount(); n != 2 {
		t.Fatalf("SubscriberCount = %d, want 2", n)
	}
	a.Cancel()
	if n := h.SubscriberCount(); n != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", n)
	}
	b.Cancel()
	if n := h.SubscriberCount(); n != 0 {
		t.Fatalf("SubscriberCount = %d, want 0", n)
	}
}

func TestCancelUnblocksRecv(t *testing.T) {
	h := New[byte](4)
	s := h.Subscribe()

	errc := make(chan error, 1)
	go func() {
		_, err := s.Recv()
		errc <- err
	}()

	time.Sleep(20 * time.Millisecond)
	s.Cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("Recv after Cancel = %v, want ErrClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Recv did not return after Cancel")
	}
}
