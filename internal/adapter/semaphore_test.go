package adapter

import (
	"context"
	"testing"
	"time"
)

func TestDynamicSemaphore(t *testing.T) {
	ctx := context.Background()

	t.Run("unlimited always grants", func(t *testing.T) {
		s := newDynamicSemaphore(0)
		for i := 0; i < 100; i++ {
			if err := s.Acquire(ctx); err != nil {
				t.Fatalf("Acquire returned error: %v", err)
			}
		}
		if s.Acquired() != 100 {
			t.Errorf("Acquired = %d, want 100", s.Acquired())
		}
	})

	t.Run("release unblocks a waiter", func(t *testing.T) {
		s := newDynamicSemaphore(1)
		if err := s.Acquire(ctx); err != nil {
			t.Fatalf("Acquire returned error: %v", err)
		}

		acquired := make(chan error, 1)
		go func() {
			acquired <- s.Acquire(ctx)
		}()

		select {
		case <-acquired:
			t.Fatal("second Acquire should block while the slot is held")
		case <-time.After(50 * time.Millisecond):
		}

		s.Release()

		select {
		case err := <-acquired:
			if err != nil {
				t.Errorf("Acquire after Release returned error: %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Release did not unblock the waiter")
		}
	})

	t.Run("cancellation unblocks with context error", func(t *testing.T) {
		s := newDynamicSemaphore(1)
		if err := s.Acquire(ctx); err != nil {
			t.Fatalf("Acquire returned error: %v", err)
		}

		cancelCtx, cancel := context.WithCancel(ctx)
		acquired := make(chan error, 1)
		go func() {
			acquired <- s.Acquire(cancelCtx)
		}()

		time.Sleep(20 * time.Millisecond)
		cancel()

		select {
		case err := <-acquired:
			if err != context.Canceled {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("cancellation did not unblock the waiter")
		}
	})

	t.Run("raising the limit admits waiters", func(t *testing.T) {
		s := newDynamicSemaphore(1)
		if err := s.Acquire(ctx); err != nil {
			t.Fatalf("Acquire returned error: %v", err)
		}

		acquired := make(chan error, 1)
		go func() {
			acquired <- s.Acquire(ctx)
		}()

		time.Sleep(20 * time.Millisecond)
		s.SetLimit(2)

		select {
		case err := <-acquired:
			if err != nil {
				t.Errorf("Acquire after SetLimit returned error: %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("SetLimit did not admit the waiter")
		}
	})

	t.Run("negative limit clamps to unlimited", func(t *testing.T) {
		s := newDynamicSemaphore(-5)
		if s.Limit() != 0 {
			t.Errorf("Limit = %d, want 0", s.Limit())
		}
	})
}
