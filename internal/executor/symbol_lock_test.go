package executor

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSymbolLocks_Exclusive(t *testing.T) {
	locks := NewSymbolLocks()
	unlock, err := locks.Acquire(context.Background(), "AAPL", 0)
	if err != nil {
		t.Fatal(err)
	}

	acquired := make(chan struct{})
	go func() {
		u, err := locks.Acquire(context.Background(), "AAPL", 0)
		if err != nil {
			t.Errorf("second acquire: %v", err)
			return
		}
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(20 * time.Millisecond):
	}

	// Other keys are independent.
	other, err := locks.Acquire(context.Background(), "MSFT", 0)
	if err != nil {
		t.Fatal(err)
	}
	other()

	unlock()
	unlock() // idempotent

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the lock")
	}
}

func TestSymbolLocks_ContextCancel(t *testing.T) {
	locks := NewSymbolLocks()
	unlock, _ := locks.Acquire(context.Background(), "AAPL", 0)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := locks.Acquire(ctx, "AAPL", 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}

	unlock()
	if n := locks.Len(); n != 0 {
		t.Errorf("lock table has %d entries after release", n)
	}
}
