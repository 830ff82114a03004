package ledger

import (
	"fmt"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/domain"
)

type step struct {
	Symbol string
	Buy    bool
	Qty    int
	Price  int
}

func (s step) trade() domain.Trade {
	side := domain.OrderSideSell
	if s.Buy {
		side = domain.OrderSideBuy
	}
	return domain.Trade{
		ID:       fmt.Sprintf("%s-%d-%d", s.Symbol, s.Qty, s.Price),
		Symbol:   s.Symbol,
		Side:     side,
		Quantity: float64(s.Qty),
		Price:    float64(s.Price),
		Status:   domain.TradeStatusFilled,
	}
}

func stepsGen() gopter.Gen {
	return gen.SliceOf(gen.Struct(reflect.TypeOf(step{}), map[string]gopter.Gen{
		"Symbol": gen.OneConstOf("AAPL", "MSFT", "TSLA"),
		"Buy":    gen.Bool(),
		"Qty":    gen.IntRange(1, 200),
		"Price":  gen.IntRange(1, 500),
	}))
}

func closeEnough(a, b float64) bool {
	return math.Abs(a-b) <= 1e-6*math.Max(1, math.Abs(b))
}

func TestProperty_OneEntryPerSymbol(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("open positions are unique, sorted and non-empty", prop.ForAll(
		func(steps []step) bool {
			l := New()
			for _, s := range steps {
				if _, err := l.TrackPosition(s.Symbol, s.trade()); err != nil {
					return false
				}
			}
			open := l.OpenPositions()
			if len(open) != l.PositionCount() || len(open) > 3 {
				return false
			}
			for i, p := range open {
				if p.Quantity <= 0 {
					return false
				}
				if i > 0 && open[i-1].Symbol >= p.Symbol {
					return false
				}
			}
			return true
		},
		stepsGen(),
	))

	properties.TestingRun(t)
}

func TestProperty_NetQuantityConserved(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("signed position equals signed sum of fills", prop.ForAll(
		func(steps []step) bool {
			l := New()
			net := map[string]int{}
			for _, s := range steps {
				if s.Buy {
					net[s.Symbol] += s.Qty
				} else {
					net[s.Symbol] -= s.Qty
				}
				if _, err := l.TrackPosition(s.Symbol, s.trade()); err != nil {
					return false
				}
			}
			for sym, want := range net {
				pos, ok := l.Position(sym)
				if want == 0 {
					if ok {
						return false
					}
					continue
				}
				got := pos.Quantity
				if pos.Side == domain.PositionShort {
					got = -got
				}
				if !ok || got != float64(want) {
					return false
				}
			}
			return true
		},
		stepsGen(),
	))

	properties.TestingRun(t)
}

func TestProperty_TotalUnrealizedMatchesDeltas(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("total unrealized is the sum of positions and of applied deltas", prop.ForAll(
		func(steps []step) bool {
			l := New()
			var deltas float64
			for _, s := range steps {
				chg, err := l.TrackPosition(s.Symbol, s.trade())
				if err != nil {
					return false
				}
				deltas += chg.UnrealizedDelta
			}
			var sum float64
			for _, p := range l.OpenPositions() {
				sum += p.UnrealizedPnL
			}
			total := l.TotalUnrealizedPnL()
			return closeEnough(total, sum) && closeEnough(total, deltas)
		},
		stepsGen(),
	))

	properties.TestingRun(t)
}
