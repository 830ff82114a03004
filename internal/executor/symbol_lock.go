package executor

import (
	"context"
	"sync"
	"time"

	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/domain"
)

type keyLock struct {
	ch   chan struct{}
	refs int
}

// SymbolLocks is an in-process keyed mutex implementing domain.LockManager.
// Acquire blocks until the key is free or ctx ends; it never returns
// domain.ErrLockHeld. Entries are dropped once nobody holds or waits on them.
type SymbolLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

// NewSymbolLocks creates an empty lock table.
func NewSymbolLocks() *SymbolLocks {
	return &SymbolLocks{locks: make(map[string]*keyLock)}
}

// Acquire implements domain.LockManager. ttl is ignored: an in-process holder
// cannot disappear without releasing.
func (s *SymbolLocks) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	s.mu.Lock()
	kl, ok := s.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		s.locks[key] = kl
	}
	kl.refs++
	s.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		s.release(key, kl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.ch
			s.release(key, kl)
		})
	}, nil
}

func (s *SymbolLocks) release(key string, kl *keyLock) {
	s.mu.Lock()
	kl.refs--
	if kl.refs == 0 {
		delete(s.locks, key)
	}
	s.mu.Unlock()
}

// Len returns the number of keys currently held or waited on.
func (s *SymbolLocks) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}

var _ domain.LockManager = (*SymbolLocks)(nil)
