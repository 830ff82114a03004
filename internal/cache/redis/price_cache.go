package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/domain"
)

// setPriceLua writes price and ts only when ts is not older than the stored
// one, so out-of-order feed messages cannot move a price backwards in time.
const setPriceLua = `
local cur = redis.call('HGET', KEYS[1], 'ts')
if cur and tonumber(cur) > tonumber(ARGV[2]) then
    return 0
end
redis.call('HSET', KEYS[1], 'price', ARGV[1], 'ts', ARGV[2])
if tonumber(ARGV[3]) > 0 then
    redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`

// PriceCache implements domain.PriceCache with one hash per symbol at
// "{prefix}:price:{symbol}" holding "price" and "ts" (Unix nanoseconds).
type PriceCache struct {
	c     *Client
	ttl   time.Duration
	setSc *redis.Script
}

// NewPriceCache creates a PriceCache. Entries expire after ttl; zero keeps
// them forever.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	return &PriceCache{c: c, ttl: ttl, setSc: redis.NewScript(setPriceLua)}
}

func (pc *PriceCache) key(symbol string) string {
	return pc.c.Key("price", symbol)
}

// SetPrice stores the latest price for symbol.
func (pc *PriceCache) SetPrice(ctx context.Context, symbol string, price float64, ts time.Time) error {
	err := pc.setSc.Run(ctx, pc.c.Underlying(), []string{pc.key(symbol)},
		strconv.FormatFloat(price, 'f', -1, 64),
		strconv.FormatInt(ts.UnixNano(), 10),
		pc.ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis: set price %s: %w", symbol, err)
	}
	return nil
}

// GetPrice returns domain.ErrNotFound when the symbol has no price.
func (pc *PriceCache) GetPrice(ctx context.Context, symbol string) (float64, time.Time, error) {
	vals, err := pc.c.Underlying().HGetAll(ctx, pc.key(symbol)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get price %s: %w", symbol, err)
	}
	price, ts, ok, err := parseQuote(vals)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse price %s: %w", symbol, err)
	}
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return price, ts, nil
}

// GetPrices fetches several symbols in one pipeline. Unknown symbols are
// omitted from the result.
func (pc *PriceCache) GetPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}

	pipe := pc.c.Underlying().Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(symbols))
	for _, s := range symbols {
		cmds[s] = pipe.HGetAll(ctx, pc.key(s))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get prices pipeline: %w", err)
	}

	for s, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil {
			continue
		}
		if price, _, ok, err := parseQuote(vals); err == nil && ok {
			out[s] = price
		}
	}
	return out, nil
}

func parseQuote(vals map[string]string) (float64, time.Time, bool, error) {
	ps, ok := vals["price"]
	if !ok {
		return 0, time.Time{}, false, nil
	}
	price, err := strconv.ParseFloat(ps, 64)
	if err != nil {
		return 0, time.Time{}, false, err
	}
	var ts time.Time
	if raw, ok := vals["ts"]; ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, time.Time{}, false, err
		}
		ts = time.Unix(0, n).UTC()
	}
	return price, ts, true, nil
}

var _ domain.PriceCache = (*PriceCache)(nil)
