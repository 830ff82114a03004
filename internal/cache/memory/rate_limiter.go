package memory

import (
	"context"
	"sync"
	"time"

	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/domain"
)

// RateLimiter is a fixed-window counter per key, used when Redis is off.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	start time.Time
	count int
}

// NewRateLimiter creates an empty RateLimiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{windows: make(map[string]*window), now: time.Now}
}

// Allow counts one request for key and reports whether it is within limit
// for the current window.
func (r *RateLimiter) Allow(_ context.Context, key string, limit int, per time.Duration) (bool, error) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.windows[key]
	if !ok || now.Sub(w.start) >= per {
		w = &window{start: now}
		r.windows[key] = w
		if len(r.windows) > 10_000 {
			r.evict(now, per)
		}
	}
	w.count++
	return w.count <= limit, nil
}

func (r *RateLimiter) evict(now time.Time, per time.Duration) {
	for k, w := range r.windows {
		if now.Sub(w.start) >= per {
			delete(r.windows, k)
		}
	}
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
