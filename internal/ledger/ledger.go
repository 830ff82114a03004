// Package ledger keeps the in-memory table of open positions, at most one
// per symbol, and applies confirmed trades to it.
package ledger

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/domain"
)

// Action describes what applying a trade did to a position.
type Action string

const (
	ActionOpened    Action = "opened"
	ActionIncreased Action = "increased"
	ActionReduced   Action = "reduced"
	ActionClosed    Action = "closed"
	ActionFlipped   Action = "flipped"
)

// Change is the result of TrackPosition. Position is nil when the trade left
// the symbol flat.
type Change struct {
	Symbol           string
	Action           Action
	RealizedPnL      float64
	UnrealizedBefore float64
	UnrealizedAfter  float64
	UnrealizedDelta  float64
	Position         *domain.Position
}

// entry holds the exact values behind a domain.Position.
type entry struct {
	side      domain.PositionSide
	qty       decimal.Decimal
	avg       decimal.Decimal
	current   decimal.Decimal
	realized  decimal.Decimal
	strategy  string
	entryTime time.Time
	updatedAt time.Time
}

func (e *entry) unrealized() decimal.Decimal {
	return unrealizedOf(e.side, e.avg, e.current, e.qty)
}

func unrealizedOf(side domain.PositionSide, avg, current, qty decimal.Decimal) decimal.Decimal {
	if side == domain.PositionShort {
		return avg.Sub(current).Mul(qty)
	}
	return current.Sub(avg).Mul(qty)
}

func (e *entry) position(symbol string) domain.Position {
	return domain.Position{
		Symbol:        symbol,
		Side:          e.side,
		Quantity:      e.qty.InexactFloat64(),
		AvgPrice:      e.avg.InexactFloat64(),
		CurrentPrice:  e.current.InexactFloat64(),
		UnrealizedPnL: e.unrealized().InexactFloat64(),
		RealizedPnL:   e.realized.InexactFloat64(),
		Strategy:      e.strategy,
		EntryTime:     e.entryTime,
		UpdatedAt:     e.updatedAt,
	}
}

// Ledger is safe for concurrent use. Readers always see a state between two
// complete mutations.
type Ledger struct {
	mu        sync.RWMutex
	positions map[string]*entry
	now       func() time.Time
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		positions: make(map[string]*entry),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source used for UpdatedAt stamps.
func (l *Ledger) SetClock(now func() time.Time) {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
}

func validateTrade(symbol string, t domain.Trade) error {
	switch {
	case strings.TrimSpace(symbol) == "":
		return fmt.Errorf("ledger: empty symbol: %w", domain.ErrInvalidTrade)
	case t.Symbol != "" && t.Symbol != symbol:
		return fmt.Errorf("ledger: trade symbol %q does not match %q: %w", t.Symbol, symbol, domain.ErrInvalidTrade)
	case !t.Side.Valid():
		return fmt.Errorf("ledger: unknown side %q: %w", t.Side, domain.ErrInvalidTrade)
	case !(t.Quantity > 0) || math.IsInf(t.Quantity, 0):
		return fmt.Errorf("ledger: quantity %v must be positive: %w", t.Quantity, domain.ErrInvalidTrade)
	case !(t.Price > 0) || math.IsInf(t.Price, 0):
		return fmt.Errorf("ledger: price %v must be positive: %w", t.Price, domain.ErrInvalidTrade)
	}
	return nil
}

// TrackPosition applies a confirmed trade to the position for symbol.
//
// Flat: the trade opens a position at its fill price. Same side: quantities
// merge at the weighted average price. Opposite side: the position is reduced,
// closed when the quantities match exactly, or flipped to the trade's side for
// the excess quantity at the fill price. The latest known price after any
// trade is the fill price.
func (l *Ledger) TrackPosition(symbol string, t domain.Trade) (Change, error) {
	if err := validateTrade(symbol, t); err != nil {
		return Change{}, err
	}

	qty := decimal.NewFromFloat(t.Quantity)
	price := decimal.NewFromFloat(t.Price)
	side := domain.SideFor(t.Side)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entryTime := t.Timestamp
	if entryTime.IsZero() {
		entryTime = now
	}

	chg := Change{Symbol: symbol}
	before := decimal.Zero
	realized := decimal.Zero

	e, ok := l.positions[symbol]
	switch {
	case !ok:
		e = &entry{
			side:      side,
			qty:       qty,
			avg:       price,
			current:   price,
			strategy:  t.Strategy,
			entryTime: entryTime,
			updatedAt: now,
		}
		l.positions[symbol] = e
		chg.Action = ActionOpened

	case e.side == side:
		before = e.unrealized()
		total := e.qty.Add(qty)
		e.avg = e.qty.Mul(e.avg).Add(qty.Mul(price)).Div(total)
		e.qty = total
		e.current = price
		e.updatedAt = now
		chg.Action = ActionIncreased

	default:
		before = e.unrealized()
		remaining := e.qty.Sub(qty)
		switch remaining.Sign() {
		case 0:
			realized = unrealizedOf(e.side, e.avg, price, e.qty)
			delete(l.positions, symbol)
			chg.Action = ActionClosed
			e = nil
		case 1:
			realized = unrealizedOf(e.side, e.avg, price, qty)
			e.qty = remaining
			e.current = price
			e.realized = e.realized.Add(realized)
			e.updatedAt = now
			chg.Action = ActionReduced
		default:
			realized = unrealizedOf(e.side, e.avg, price, e.qty)
			e = &entry{
				side:      side,
				qty:       remaining.Abs(),
				avg:       price,
				current:   price,
				strategy:  t.Strategy,
				entryTime: entryTime,
				updatedAt: now,
			}
			l.positions[symbol] = e
			chg.Action = ActionFlipped
		}
	}

	after := decimal.Zero
	if e != nil {
		after = e.unrealized()
		pos := e.position(symbol)
		chg.Position = &pos
	}
	chg.RealizedPnL = realized.InexactFloat64()
	chg.UnrealizedBefore = before.InexactFloat64()
	chg.UnrealizedAfter = after.InexactFloat64()
	chg.UnrealizedDelta = after.Sub(before).InexactFloat64()
	return chg, nil
}

// Position returns a copy of the position for symbol.
func (l *Ledger) Position(symbol string) (domain.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.positions[symbol]
	if !ok {
		return domain.Position{}, false
	}
	return e.position(symbol), true
}

// OpenPositions returns copies of every open position sorted by symbol.
func (l *Ledger) OpenPositions() []domain.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Position, 0, len(l.positions))
	for sym, e := range l.positions {
		out = append(out, e.position(sym))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// UpdatePositionPrice marks the position for symbol to price and returns the
// updated copy. Unknown symbols and non-positive or infinite prices are
// ignored.
func (l *Ledger) UpdatePositionPrice(symbol string, price float64) (domain.Position, bool) {
	if !(price > 0) || math.IsInf(price, 0) {
		return domain.Position{}, false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.positions[symbol]
	if !ok {
		return domain.Position{}, false
	}
	e.current = decimal.NewFromFloat(price)
	e.updatedAt = l.now()
	return e.position(symbol), true
}

// ClosePosition removes the entry for symbol and returns it as it was.
func (l *Ledger) ClosePosition(symbol string) (domain.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.positions[symbol]
	if !ok {
		return domain.Position{}, false
	}
	delete(l.positions, symbol)
	return e.position(symbol), true
}

// TotalUnrealizedPnL sums unrealized P&L over all open positions.
func (l *Ledger) TotalUnrealizedPnL() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := decimal.Zero
	for _, e := range l.positions {
		total = total.Add(e.unrealized())
	}
	return total.InexactFloat64()
}

// Exposure sums quantity times current price over all open positions.
func (l *Ledger) Exposure() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := decimal.Zero
	for _, e := range l.positions {
		total = total.Add(e.qty.Mul(e.current))
	}
	return total.InexactFloat64()
}

// PositionCount returns the number of open positions.
func (l *Ledger) PositionCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.positions)
}
