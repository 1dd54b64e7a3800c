package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestShutdownRunsHooksInPriorityOrder(t *testing.T) {
	h := NewShutdownHandler(time.Second, nil)

	var mu sync.Mutex
	var order []string
	record := func(name string) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	h.RegisterHook("store", 90, record("store"))
	h.RegisterHook("http", 10, record("http"))
	h.RegisterHook("worker", 20, record("worker"))

	h.Start()
	h.Shutdown()

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"http", "worker", "store"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestShutdownContinuesPastFailingHook(t *testing.T) {
	h := NewShutdownHandler(time.Second, nil)

	ran := make(chan struct{})
	h.RegisterHook("broken", 10, func(ctx context.Context) error {
		return errors.New("teardown failed")
	})
	h.RegisterHook("after", 20, func(ctx context.Context) error {
		close(ran)
		return nil
	})

	h.Start()
	h.Shutdown()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("hook after failing hook never ran")
	}
}

func TestShutdownBeforeStartIsNoop(t *testing.T) {
	h := NewShutdownHandler(time.Second, nil)
	h.Shutdown()

	select {
	case <-h.Done():
		t.Fatal("done closed without Start")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestShutdownIdempotent(t *testing.T) {
	h := NewShutdownHandler(time.Second, nil)
	var calls int
	var mu sync.Mutex
	h.RegisterHook("once", 10, func(ctx context.Context) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})

	h.Start()
	h.Shutdown()
	h.Shutdown()

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete")
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("hook ran %d times, want 1", calls)
	}
}
