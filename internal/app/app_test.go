package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/cache/memory"
	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/config"
	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/domain"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Server.Enabled = false
	return &cfg
}

func TestWire_InProcessFallbacks(t *testing.T) {
	deps, cleanup, err := Wire(context.Background(), testConfig(), testLogger())
	if err != nil {
		t.Fatalf("Wire: %v", err)
	}
	defer cleanup()

	if _, ok := deps.PriceCache.(*memory.PriceCache); !ok {
		t.Errorf("price cache = %T, want *memory.PriceCache", deps.PriceCache)
	}
	if _, ok := deps.SignalBus.(*memory.SignalBus); !ok {
		t.Errorf("signal bus = %T, want *memory.SignalBus", deps.SignalBus)
	}
	if _, ok := deps.RateLimiter.(*memory.RateLimiter); !ok {
		t.Errorf("rate limiter = %T, want *memory.RateLimiter", deps.RateLimiter)
	}
	if deps.LockManager != nil || deps.TradeStore != nil || deps.AuditStore != nil || deps.Archiver != nil {
		t.Error("optional dependencies should be nil when disabled")
	}
	if len(deps.Health) != 0 {
		t.Errorf("health deps = %v, want none", deps.Health)
	}
	if deps.Notifier.Enabled() {
		t.Error("notifier enabled without senders")
	}
}

func TestWire_NotifierFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Notify.DiscordWebhookURL = "http://127.0.0.1:1/hook"

	deps, cleanup, err := Wire(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("Wire: %v", err)
	}
	defer cleanup()
	if !deps.Notifier.Enabled() {
		t.Error("notifier should be enabled with a discord webhook")
	}
}

func TestBuildOrchestrator_ExecutesSignal(t *testing.T) {
	cfg := testConfig()
	deps, cleanup, err := Wire(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("Wire: %v", err)
	}
	defer cleanup()

	orch := BuildOrchestrator(cfg, deps, testLogger())
	price, qty := 100.0, 2.0
	trade, err := orch.HandleSignal(context.Background(), domain.TradeSignal{
		ID:         "sig-1",
		Symbol:     "aapl",
		Direction:  domain.DirectionLong,
		Confidence: 0.9,
		Price:      &price,
		Quantity:   &qty,
	})
	if err != nil {
		t.Fatalf("HandleSignal: %v", err)
	}
	if trade == nil {
		t.Fatal("expected a trade")
	}
	pos, ok := orch.Ledger().Position("AAPL")
	if !ok || pos.Quantity != 2 {
		t.Fatalf("position = %+v, %v", pos, ok)
	}

	// below the configured minimum confidence
	trade, err = orch.HandleSignal(context.Background(), domain.TradeSignal{
		ID:         "sig-2",
		Symbol:     "MSFT",
		Direction:  domain.DirectionLong,
		Confidence: 0.3,
		Price:      &price,
	})
	if err != nil || trade != nil {
		t.Fatalf("low confidence: trade=%v err=%v", trade, err)
	}
}

func TestRunPipeline_ConsumesBusSignals(t *testing.T) {
	cfg := testConfig()
	deps, cleanup, err := Wire(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("Wire: %v", err)
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fills, err := deps.SignalBus.Subscribe(ctx, domain.ChannelTrades)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	a := New(cfg, testLogger())
	done := make(chan error, 1)
	go func() { done <- a.runPipeline(ctx, deps, false) }()

	price := 50.0
	payload, _ := json.Marshal(domain.TradeSignal{
		ID:         "bus-1",
		Symbol:     "TSLA",
		Direction:  domain.DirectionLong,
		Confidence: 0.8,
		Price:      &price,
	})

	// The feeder subscribes asynchronously; republishing is safe because the
	// signal ID makes repeats duplicates.
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	deadline := time.After(3 * time.Second)
	var evt map[string]any
wait:
	for {
		select {
		case <-tick.C:
			_ = deps.SignalBus.Publish(ctx, domain.ChannelSignals, payload)
		case msg := <-fills:
			if err := json.Unmarshal(msg, &evt); err != nil {
				t.Fatalf("decode fill: %v", err)
			}
			break wait
		case <-deadline:
			t.Fatal("no fill published")
		}
	}
	if evt["signal_id"] != "bus-1" || evt["symbol"] != "TSLA" {
		t.Errorf("fill event = %v", evt)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("runPipeline: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("pipeline did not stop")
	}
}

func TestRun_UnsupportedMode(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = "backtest"
	a := New(cfg, testLogger())
	defer a.Close()

	err := a.Run(context.Background())
	if err == nil || errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want unsupported mode", err)
	}
}
