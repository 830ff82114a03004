package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/domain"
	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/ledger"
	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAdapter fills every order at the request price unless fn overrides it.
type fakeAdapter struct {
	mu    sync.Mutex
	calls []domain.OrderRequest
	fn    func(ctx context.Context, req domain.OrderRequest) (*domain.Trade, error)
}

func (a *fakeAdapter) Execute(ctx context.Context, req domain.OrderRequest) (*domain.Trade, error) {
	a.mu.Lock()
	a.calls = append(a.calls, req)
	n := len(a.calls)
	a.mu.Unlock()
	if a.fn != nil {
		return a.fn(ctx, req)
	}
	return fill(req, req.Price, n), nil
}

func (a *fakeAdapter) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

func fill(req domain.OrderRequest, price float64, n int) *domain.Trade {
	return &domain.Trade{
		ID:        fmt.Sprintf("FAKE-%d", n),
		SignalID:  req.SignalID,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Quantity:  req.Quantity,
		Price:     price,
		Status:    domain.TradeStatusFilled,
		Strategy:  req.Strategy,
		Timestamp: time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC),
	}
}

type gateFunc func(ctx context.Context, sig domain.TradeSignal) (domain.RiskCheckResult, error)

func (f gateFunc) Evaluate(ctx context.Context, sig domain.TradeSignal) (domain.RiskCheckResult, error) {
	return f(ctx, sig)
}

var passGate = gateFunc(func(context.Context, domain.TradeSignal) (domain.RiskCheckResult, error) {
	return domain.Pass(), nil
})

func testLimits() domain.RiskLimits {
	return domain.RiskLimits{
		MaxDailyLoss:    100,
		MaxPositionSize: 1_000_000,
		MaxDrawdown:     0.5,
	}
}

func newTestOrchestrator(gate service.QualityGate, adapter ExecutionAdapter, limits domain.RiskLimits) *Orchestrator {
	risk := service.NewRiskService(limits, discardLogger())
	return NewOrchestrator(ledger.New(), gate, risk, adapter, nil, Config{DefaultQuantity: 10}, discardLogger())
}

func signal(id, symbol string, dir domain.SignalDirection, qty, price float64) domain.TradeSignal {
	sig := domain.TradeSignal{
		ID:         id,
		Symbol:     symbol,
		Direction:  dir,
		Confidence: 0.9,
		Strategy:   "test",
	}
	if qty > 0 {
		sig.Quantity = domain.Float(qty)
	}
	if price > 0 {
		sig.Price = domain.Float(price)
	}
	return sig
}

func TestHandleSignal_OpensPosition(t *testing.T) {
	adapter := &fakeAdapter{}
	o := newTestOrchestrator(passGate, adapter, testLimits())

	trade, err := o.HandleSignal(context.Background(), signal("s1", "aapl", domain.DirectionLong, 100, 10))
	if err != nil {
		t.Fatalf("HandleSignal: %v", err)
	}
	if trade == nil {
		t.Fatal("expected a trade")
	}
	if trade.Side != domain.OrderSideBuy || trade.Symbol != "AAPL" || trade.SignalID != "s1" {
		t.Errorf("unexpected trade %+v", trade)
	}

	pos, ok := o.Ledger().Position("AAPL")
	if !ok || pos.Side != domain.PositionLong || pos.Quantity != 100 || pos.AvgPrice != 10 {
		t.Errorf("position = %+v, %v", pos, ok)
	}
	if o.DailyPnL() != 0 {
		t.Errorf("daily pnl = %v, want 0", o.DailyPnL())
	}
}

func TestHandleSignal_DefaultQuantityAndShort(t *testing.T) {
	adapter := &fakeAdapter{}
	o := newTestOrchestrator(passGate, adapter, testLimits())

	trade, err := o.HandleSignal(context.Background(), signal("s1", "TSLA", domain.DirectionShort, 0, 200))
	if err != nil || trade == nil {
		t.Fatalf("trade=%v err=%v", trade, err)
	}
	if adapter.calls[0].Quantity != 10 || adapter.calls[0].Side != domain.OrderSideSell {
		t.Errorf("request = %+v", adapter.calls[0])
	}
	pos, _ := o.Ledger().Position("TSLA")
	if pos.Side != domain.PositionShort {
		t.Errorf("side = %s", pos.Side)
	}
}

func TestProcess_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		gate      service.QualityGate
		setup     func(t *testing.T, o *Orchestrator)
		sig       domain.TradeSignal
		wantCheck string
	}{
		{
			name: "quality gate",
			gate: gateFunc(func(context.Context, domain.TradeSignal) (domain.RiskCheckResult, error) {
				return domain.Fail(domain.CheckQualityGate, "low confidence"), nil
			}),
			sig:       signal("g", "AAPL", domain.DirectionLong, 1, 10),
			wantCheck: domain.CheckQualityGate,
		},
		{
			name: "gate error is a rejection",
			gate: gateFunc(func(context.Context, domain.TradeSignal) (domain.RiskCheckResult, error) {
				return domain.RiskCheckResult{}, errors.New("scorer unavailable")
			}),
			sig:       signal("g", "AAPL", domain.DirectionLong, 1, 10),
			wantCheck: domain.CheckQualityGate,
		},
		{
			name: "symbol collision",
			gate: passGate,
			setup: func(t *testing.T, o *Orchestrator) {
				mustTrade(t, o, signal("open", "AAPL", domain.DirectionLong, 1, 10))
			},
			sig:       signal("again", "AAPL", domain.DirectionShort, 1, 10),
			wantCheck: domain.CheckSymbol,
		},
		{
			name:      "close without position",
			gate:      passGate,
			sig:       signal("c", "AAPL", domain.DirectionClose, 0, 10),
			wantCheck: domain.CheckNoPosition,
		},
		{
			name: "duplicate signal id",
			gate: passGate,
			setup: func(t *testing.T, o *Orchestrator) {
				mustTrade(t, o, signal("dup", "MSFT", domain.DirectionLong, 1, 10))
			},
			sig:       signal("dup", "AAPL", domain.DirectionLong, 1, 10),
			wantCheck: domain.CheckDuplicate,
		},
		{
			name: "daily loss before symbol collision",
			gate: passGate,
			setup: func(t *testing.T, o *Orchestrator) {
				mustTrade(t, o, signal("open", "AAPL", domain.DirectionLong, 100, 10))
				mustTrade(t, o, signal("cut", "AAPL", domain.DirectionClose, 50, 8))
				if got := o.DailyPnL(); got != -100 {
					t.Fatalf("daily pnl = %v, want -100", got)
				}
			},
			sig:       signal("next", "AAPL", domain.DirectionLong, 1, 10),
			wantCheck: domain.CheckDailyLoss,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := &fakeAdapter{}
			o := newTestOrchestrator(tt.gate, adapter, testLimits())
			if tt.setup != nil {
				tt.setup(t, o)
			}
			callsBefore := adapter.callCount()
			before := o.Ledger().OpenPositions()
			pnlBefore := o.DailyPnL()

			out, err := o.Process(context.Background(), tt.sig)
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			if out.Trade != nil || out.Result.Passed {
				t.Fatalf("expected rejection, got %+v", out)
			}
			if out.Result.Check != tt.wantCheck {
				t.Errorf("check = %q, want %q (%s)", out.Result.Check, tt.wantCheck, out.Result.Reason)
			}
			if adapter.callCount() != callsBefore {
				t.Error("adapter called for a rejected signal")
			}
			if after := o.Ledger().OpenPositions(); !reflect.DeepEqual(before, after) {
				t.Errorf("ledger changed: %v -> %v", before, after)
			}
			if o.DailyPnL() != pnlBefore {
				t.Error("daily pnl changed on rejection")
			}
		})
	}
}

func mustTrade(t *testing.T, o *Orchestrator, sig domain.TradeSignal) *domain.Trade {
	t.Helper()
	trade, err := o.HandleSignal(context.Background(), sig)
	if err != nil {
		t.Fatalf("HandleSignal(%s): %v", sig.ID, err)
	}
	if trade == nil {
		t.Fatalf("HandleSignal(%s): no trade", sig.ID)
	}
	return trade
}

func TestRiskCheckOrder(t *testing.T) {
	// Exposure over the cap and a collision on the same symbol: the size
	// check runs first.
	limits := testLimits()
	limits.MaxPositionSize = 500
	o := newTestOrchestrator(passGate, &fakeAdapter{}, limits)
	mustTrade(t, o, signal("open", "AAPL", domain.DirectionLong, 100, 10))

	res := o.Evaluate(context.Background(), signal("x", "AAPL", domain.DirectionLong, 1, 10))
	if res.Check != domain.CheckPositionSize {
		t.Errorf("check = %q, want position_size", res.Check)
	}

	// A close is still allowed through the collision check but is stopped by
	// the size cap, which precedes it.
	res = o.Evaluate(context.Background(), signal("y", "AAPL", domain.DirectionClose, 0, 10))
	if res.Check != domain.CheckPositionSize {
		t.Errorf("close check = %q, want position_size", res.Check)
	}
}

func TestClose_MapsToOppositeSide(t *testing.T) {
	adapter := &fakeAdapter{}
	o := newTestOrchestrator(passGate, adapter, testLimits())
	mustTrade(t, o, signal("open", "AAPL", domain.DirectionLong, 100, 10))

	trade := mustTrade(t, o, signal("part", "AAPL", domain.DirectionClose, 40, 12))
	if trade.Side != domain.OrderSideSell || trade.Quantity != 40 {
		t.Fatalf("partial close trade = %+v", trade)
	}
	pos, _ := o.Ledger().Position("AAPL")
	if pos.Quantity != 60 || pos.AvgPrice != 10 || pos.UnrealizedPnL != 120 {
		t.Errorf("position after reduce = %+v", pos)
	}
	if got := o.DailyPnL(); got != 120 {
		t.Errorf("daily pnl = %v, want 120", got)
	}

	// Oversized close quantity is clamped to the position.
	trade = mustTrade(t, o, signal("rest", "AAPL", domain.DirectionClose, 500, 0))
	if trade.Quantity != 60 || trade.Price != 12 {
		t.Fatalf("full close trade = %+v", trade)
	}
	if _, ok := o.Ledger().Position("AAPL"); ok {
		t.Error("position not removed")
	}
	if got := o.DailyPnL(); got != 0 {
		t.Errorf("daily pnl = %v, want 0", got)
	}
}

func TestAdapterNoFill(t *testing.T) {
	adapter := &fakeAdapter{fn: func(context.Context, domain.OrderRequest) (*domain.Trade, error) {
		return nil, nil
	}}
	o := newTestOrchestrator(passGate, adapter, testLimits())

	out, err := o.Process(context.Background(), signal("s", "AAPL", domain.DirectionLong, 1, 10))
	if err != nil {
		t.Fatal(err)
	}
	if out.Trade != nil || out.Result.Check != domain.CheckBroker {
		t.Errorf("outcome = %+v", out)
	}
	if o.Ledger().PositionCount() != 0 {
		t.Error("ledger changed without a fill")
	}

	// The same signal may be retried since nothing was applied.
	adapter.fn = nil
	mustTrade(t, o, signal("s", "AAPL", domain.DirectionLong, 1, 10))
}

func TestAdapterFault_IsFatal(t *testing.T) {
	adapter := &fakeAdapter{fn: func(context.Context, domain.OrderRequest) (*domain.Trade, error) {
		return nil, fmt.Errorf("malformed: %w", domain.ErrAdapterFault)
	}}
	o := newTestOrchestrator(passGate, adapter, testLimits())
	sig := signal("s", "AAPL", domain.DirectionLong, 1, 10)

	trade, err := o.HandleSignal(context.Background(), sig)
	if trade != nil {
		t.Error("trade returned with error")
	}
	var te *domain.TradeExecutionError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want TradeExecutionError", err)
	}
	if te.Signal.ID != "s" || !errors.Is(err, domain.ErrAdapterFault) {
		t.Errorf("error = %+v", te)
	}
	if o.Ledger().PositionCount() != 0 || o.DailyPnL() != 0 {
		t.Error("state changed on fatal error")
	}
}

func TestConfirmedTradeAppliedDespiteCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	adapter := &fakeAdapter{}
	adapter.fn = func(_ context.Context, req domain.OrderRequest) (*domain.Trade, error) {
		cancel()
		return fill(req, 10, 1), nil
	}
	o := newTestOrchestrator(passGate, adapter, testLimits())

	trade, err := o.HandleSignal(ctx, signal("s", "AAPL", domain.DirectionLong, 5, 10))
	if err != nil || trade == nil {
		t.Fatalf("trade=%v err=%v", trade, err)
	}
	if pos, ok := o.Ledger().Position("AAPL"); !ok || pos.Quantity != 5 {
		t.Errorf("position = %+v", pos)
	}
}

func TestApplyConfirmedTrade_AtMostOnce(t *testing.T) {
	o := newTestOrchestrator(passGate, &fakeAdapter{}, testLimits())
	tr := domain.Trade{
		ID: "B-1", SignalID: "sig-1", Symbol: "AAPL",
		Side: domain.OrderSideBuy, Quantity: 3, Price: 10, Status: domain.TradeStatusFilled,
	}

	applied, err := o.ApplyConfirmedTrade(context.Background(), tr)
	if err != nil || !applied {
		t.Fatalf("first apply = %v, %v", applied, err)
	}
	applied, err = o.ApplyConfirmedTrade(context.Background(), tr)
	if err != nil || applied {
		t.Fatalf("second apply = %v, %v", applied, err)
	}
	if pos, _ := o.Ledger().Position("AAPL"); pos.Quantity != 3 {
		t.Errorf("qty = %v, want 3", pos.Quantity)
	}

	out, err := o.Process(context.Background(), signal("sig-1", "MSFT", domain.DirectionLong, 1, 10))
	if err != nil || out.Result.Check != domain.CheckDuplicate {
		t.Errorf("replayed signal outcome = %+v, %v", out, err)
	}

	if _, err := o.ApplyConfirmedTrade(context.Background(), domain.Trade{ID: "x"}); !errors.Is(err, domain.ErrInvalidTrade) {
		t.Errorf("trade without signal id: err = %v", err)
	}
}

func TestConcurrentSameSymbol_Serialized(t *testing.T) {
	release := make(chan struct{})
	var inFlight, maxInFlight int32
	adapter := &fakeAdapter{}
	adapter.fn = func(_ context.Context, req domain.OrderRequest) (*domain.Trade, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&inFlight, -1)
		return fill(req, 10, 1), nil
	}
	o := newTestOrchestrator(passGate, adapter, testLimits())

	const n = 8
	var wg sync.WaitGroup
	trades := make(chan *domain.Trade, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr, err := o.HandleSignal(context.Background(), signal(fmt.Sprintf("s%d", i), "AAPL", domain.DirectionLong, 1, 10))
			if err != nil {
				t.Errorf("HandleSignal: %v", err)
			}
			trades <- tr
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(trades)

	executed := 0
	for tr := range trades {
		if tr != nil {
			executed++
		}
	}
	if executed != 1 {
		t.Errorf("executed = %d, want exactly 1", executed)
	}
	if adapter.callCount() != 1 {
		t.Errorf("adapter calls = %d, want 1", adapter.callCount())
	}
	if maxInFlight != 1 {
		t.Errorf("max in flight = %d, want 1", maxInFlight)
	}
	if pos, _ := o.Ledger().Position("AAPL"); pos.Quantity != 1 {
		t.Errorf("qty = %v, want 1", pos.Quantity)
	}
}

func TestConcurrentDifferentSymbols(t *testing.T) {
	o := newTestOrchestrator(passGate, &fakeAdapter{}, testLimits())
	symbols := []string{"AAPL", "MSFT", "TSLA", "NVDA", "AMZN"}

	var wg sync.WaitGroup
	for i, sym := range symbols {
		wg.Add(1)
		go func(i int, sym string) {
			defer wg.Done()
			if _, err := o.HandleSignal(context.Background(), signal(fmt.Sprintf("s%d", i), sym, domain.DirectionLong, 2, 10)); err != nil {
				t.Errorf("HandleSignal: %v", err)
			}
		}(i, sym)
	}
	wg.Wait()

	if got := o.Ledger().PositionCount(); got != len(symbols) {
		t.Errorf("positions = %d, want %d", got, len(symbols))
	}
}

type flakyLocks struct {
	failures int32
	inner    *SymbolLocks
}

func (f *flakyLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if atomic.AddInt32(&f.failures, -1) >= 0 {
		return nil, domain.ErrLockHeld
	}
	return f.inner.Acquire(ctx, key, ttl)
}

func TestLockHeld_Retried(t *testing.T) {
	risk := service.NewRiskService(testLimits(), discardLogger())
	locks := &flakyLocks{failures: 2, inner: NewSymbolLocks()}
	o := NewOrchestrator(ledger.New(), passGate, risk, &fakeAdapter{}, locks, Config{}, discardLogger())

	mustTrade(t, o, signal("s", "AAPL", domain.DirectionLong, 1, 10))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	locks.failures = 100
	_, err := o.HandleSignal(ctx, signal("t", "MSFT", domain.DirectionLong, 1, 10))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestResetDailyPnL(t *testing.T) {
	o := newTestOrchestrator(passGate, &fakeAdapter{}, testLimits())
	mustTrade(t, o, signal("open", "AAPL", domain.DirectionLong, 10, 10))
	mustTrade(t, o, signal("part", "AAPL", domain.DirectionClose, 5, 12))
	if o.DailyPnL() == 0 {
		t.Fatal("expected non-zero daily pnl")
	}

	snap := o.Snapshot()
	if snap.DailyPnL != o.DailyPnL() || len(snap.Positions) != 1 {
		t.Errorf("snapshot = %+v", snap)
	}

	o.ResetDailyPnL()
	if o.DailyPnL() != 0 {
		t.Errorf("daily pnl after reset = %v", o.DailyPnL())
	}
	if o.Ledger().PositionCount() != 1 {
		t.Error("reset touched the ledger")
	}
}

func TestUpdatePriceDoesNotMoveDailyPnL(t *testing.T) {
	o := newTestOrchestrator(passGate, &fakeAdapter{}, testLimits())
	mustTrade(t, o, signal("open", "AAPL", domain.DirectionLong, 10, 10))

	pos, ok := o.UpdatePrice(context.Background(), "AAPL", 15)
	if !ok || pos.UnrealizedPnL != 50 {
		t.Fatalf("mark = %+v, %v", pos, ok)
	}
	if o.DailyPnL() != 0 {
		t.Errorf("daily pnl = %v, want 0", o.DailyPnL())
	}
	if m := o.RiskMetrics(); m.Exposure != 150 || m.TotalUnrealizedPnL != 50 || m.OpenPositions != 1 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestClosePositionAdmin(t *testing.T) {
	o := newTestOrchestrator(passGate, &fakeAdapter{}, testLimits())
	if _, err := o.ClosePosition(context.Background(), "AAPL"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	mustTrade(t, o, signal("open", "AAPL", domain.DirectionLong, 10, 10))
	if _, err := o.ClosePosition(context.Background(), "AAPL"); err != nil {
		t.Fatal(err)
	}
	if o.Ledger().PositionCount() != 0 {
		t.Error("position still open")
	}
}

func TestRun_ProcessesUntilChannelClosed(t *testing.T) {
	o := newTestOrchestrator(passGate, &fakeAdapter{}, testLimits())
	ch := make(chan domain.TradeSignal, 3)
	ch <- signal("a", "AAPL", domain.DirectionLong, 1, 10)
	ch <- signal("b", "MSFT", domain.DirectionShort, 1, 10)
	ch <- signal("c", "AAPL", domain.DirectionLong, 1, 10)
	close(ch)
	o.SetSignalSource(ch)

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := o.Ledger().PositionCount(); got != 2 {
		t.Errorf("positions = %d, want 2", got)
	}
}

func TestRun_DryRunExecutesNothing(t *testing.T) {
	adapter := &fakeAdapter{}
	o := newTestOrchestrator(passGate, adapter, testLimits())
	ch := make(chan domain.TradeSignal, 1)
	ch <- signal("a", "AAPL", domain.DirectionLong, 1, 10)
	close(ch)
	o.SetSignalSource(ch)
	o.SetDryRun(true)

	if err := o.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if adapter.callCount() != 0 || o.Ledger().PositionCount() != 0 {
		t.Error("dry run executed a trade")
	}
}

type recordingBus struct {
	mu        sync.Mutex
	published map[string]int
	streamed  int
}

func (b *recordingBus) Publish(_ context.Context, channel string, _ []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.published == nil {
		b.published = map[string]int{}
	}
	b.published[channel]++
	return nil
}

func (b *recordingBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *recordingBus) StreamAppend(context.Context, string, []byte) error {
	b.mu.Lock()
	b.streamed++
	b.mu.Unlock()
	return nil
}

func (b *recordingBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type failingStore struct{ calls int }

func (s *failingStore) Record(context.Context, domain.Trade) error { s.calls++; return errors.New("db down") }
func (s *failingStore) ExistsForSignal(context.Context, string) (bool, error) {
	return false, nil
}
func (s *failingStore) ListBySymbol(context.Context, string, domain.ListOpts) ([]domain.Trade, error) {
	return nil, nil
}

func TestSideChannels_BestEffort(t *testing.T) {
	o := newTestOrchestrator(passGate, &fakeAdapter{}, testLimits())
	bus := &recordingBus{}
	store := &failingStore{}
	o.SetEventBus(bus)
	o.SetTradeStore(store)

	mustTrade(t, o, signal("a", "AAPL", domain.DirectionLong, 1, 10))
	o.Process(context.Background(), signal("b", "AAPL", domain.DirectionLong, 1, 10))

	if store.calls != 1 {
		t.Errorf("store calls = %d", store.calls)
	}
	if bus.published[domain.ChannelTrades] != 1 || bus.streamed != 1 {
		t.Errorf("published = %v, streamed = %d", bus.published, bus.streamed)
	}
	if bus.published[domain.ChannelOutcomes] != 1 {
		t.Errorf("rejection not published: %v", bus.published)
	}
	if o.Ledger().PositionCount() != 1 {
		t.Error("store failure affected the ledger")
	}
}

type persistedStore struct {
	failingStore
	known map[string]bool
	err   error
}

func (s *persistedStore) ExistsForSignal(_ context.Context, id string) (bool, error) {
	return s.known[id], s.err
}

func TestProcess_DuplicateFromTradeStore(t *testing.T) {
	adapter := &fakeAdapter{}
	o := newTestOrchestrator(passGate, adapter, testLimits())
	o.SetTradeStore(&persistedStore{known: map[string]bool{"old": true}})

	out, err := o.Process(context.Background(), signal("old", "AAPL", domain.DirectionLong, 1, 10))
	if err != nil {
		t.Fatal(err)
	}
	if out.Result.Check != domain.CheckDuplicate || adapter.callCount() != 0 {
		t.Fatalf("result = %+v, adapter calls = %d", out.Result, adapter.callCount())
	}
}

func TestProcess_TradeStoreLookupFailsOpen(t *testing.T) {
	o := newTestOrchestrator(passGate, &fakeAdapter{}, testLimits())
	o.SetTradeStore(&persistedStore{err: errors.New("db down")})

	mustTrade(t, o, signal("new", "AAPL", domain.DirectionLong, 1, 10))
}

type countingNotifier struct{ events []string }

func (n *countingNotifier) Notify(_ context.Context, event, _, _ string) error {
	n.events = append(n.events, event)
	return nil
}

func TestProcess_CancelledLockWaitIsNotFatal(t *testing.T) {
	risk := service.NewRiskService(testLimits(), discardLogger())
	locks := &flakyLocks{failures: 1 << 20, inner: NewSymbolLocks()}
	adapter := &fakeAdapter{}
	o := NewOrchestrator(ledger.New(), passGate, risk, adapter, locks, Config{}, discardLogger())
	notifier := &countingNotifier{}
	o.SetNotifier(notifier)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	out, err := o.Process(ctx, signal("wait", "AAPL", domain.DirectionLong, 1, 10))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
	var te *domain.TradeExecutionError
	if errors.As(err, &te) {
		t.Error("cancelled lock wait reported as a trade execution error")
	}
	if out.Trade != nil || adapter.callCount() != 0 || o.Ledger().PositionCount() != 0 {
		t.Errorf("side effects after cancellation: out=%+v calls=%d", out, adapter.callCount())
	}
	if len(notifier.events) != 0 {
		t.Errorf("notifications = %v, want none", notifier.events)
	}
}

func TestApplyConfirmedTrade_SkipsUnfilledAndRecorded(t *testing.T) {
	base := domain.Trade{
		ID: "B-1", SignalID: "sig-1", Symbol: "AAPL",
		Side: domain.OrderSideBuy, Quantity: 10, Price: 5, Status: domain.TradeStatusFilled,
	}
	withStatus := func(st domain.TradeStatus) domain.Trade {
		tr := base
		tr.Status = st
		return tr
	}

	tests := []struct {
		name     string
		trade    domain.Trade
		recorded bool
		wantErr  error
	}{
		{"cancelled", withStatus(domain.TradeStatusCancelled), false, domain.ErrInvalidTrade},
		{"rejected", withStatus(domain.TradeStatusRejected), false, domain.ErrInvalidTrade},
		{"pending", withStatus(domain.TradeStatusPending), false, domain.ErrInvalidTrade},
		{"missing status", withStatus(""), false, domain.ErrInvalidTrade},
		{"already in trade store", base, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrchestrator(passGate, &fakeAdapter{}, testLimits())
			o.SetTradeStore(&persistedStore{known: map[string]bool{"sig-1": tt.recorded}})

			applied, err := o.ApplyConfirmedTrade(context.Background(), tt.trade)
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && err != nil {
				t.Fatalf("err = %v", err)
			}
			if applied {
				t.Error("trade reported as applied")
			}
			if n := o.Ledger().PositionCount(); n != 0 {
				t.Errorf("ledger holds %d positions, want 0", n)
			}
			if o.DailyPnL() != 0 {
				t.Errorf("daily pnl = %v, want 0", o.DailyPnL())
			}
		})
	}
}
