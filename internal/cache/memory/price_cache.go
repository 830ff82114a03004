// Package memory provides process-local implementations of the cache
// interfaces for deployments without Redis.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/domain"
)

type quote struct {
	price float64
	ts    time.Time
}

// PriceCache implements domain.PriceCache in memory.
type PriceCache struct {
	mu     sync.RWMutex
	prices map[string]quote
}

// NewPriceCache creates an empty PriceCache.
func NewPriceCache() *PriceCache {
	return &PriceCache{prices: make(map[string]quote)}
}

// SetPrice stores the latest price for symbol. Older timestamps are ignored.
func (c *PriceCache) SetPrice(_ context.Context, symbol string, price float64, ts time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.prices[symbol]; ok && ts.Before(cur.ts) {
		return nil
	}
	c.prices[symbol] = quote{price: price, ts: ts}
	return nil
}

// GetPrice returns domain.ErrNotFound for unknown symbols.
func (c *PriceCache) GetPrice(_ context.Context, symbol string) (float64, time.Time, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.prices[symbol]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return q.price, q.ts, nil
}

// GetPrices returns the known prices among symbols.
func (c *PriceCache) GetPrices(_ context.Context, symbols []string) (map[string]float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		if q, ok := c.prices[s]; ok {
			out[s] = q.price
		}
	}
	return out, nil
}

var _ domain.PriceCache = (*PriceCache)(nil)
