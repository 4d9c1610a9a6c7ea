package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmitAndDrain(t *testing.T) {
	p := New(4, 16)
	var ran atomic.Int32

	for i := 0; i < 10; i++ {
		if !p.Submit(func() { ran.Add(1) }) {
			t.Fatalf("Submit %d rejected", i)
		}
	}

	p.StopAccepting()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p.Drain(ctx)

	if got := ran.Load(); got != 10 {
		t.Errorf("tasks ran = %d, want 10", got)
	}
}

func TestRejectsWhenQueueFull(t *testing.T) {
	p := New(1, 1)
	block := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	p.Submit(func() { defer wg.Done(); <-block }) // occupies the worker
	p.Submit(func() {})                           // fills the queue

	rejected := 0
	for i := 0; i < 5; i++ {
		if !p.Submit(func() {}) {
			rejected++
		}
	}
	if rejected == 0 {
		t.Error("no submissions rejected with a full queue")
	}
	if got := p.Rejected(); got == 0 {
		t.Errorf("Rejected() = %d, want > 0", got)
	}

	close(block)
	wg.Wait()
	p.StopAccepting()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p.Drain(ctx)
}

func TestSubmitAfterStopAccepting(t *testing.T) {
	p := New(1, 4)
	p.StopAccepting()
	if p.Submit(func() {}) {
		t.Error("Submit accepted after StopAccepting")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p.Drain(ctx)
}

func TestPanickingTaskDoesNotKillPool(t *testing.T) {
	p := New(1, 4)
	var ran atomic.Bool

	p.Submit(func() { panic("boom") })
	p.Submit(func() { ran.Store(true) })

	p.StopAccepting()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p.Drain(ctx)

	if !ran.Load() {
		t.Error("task after panic never ran")
	}
}
