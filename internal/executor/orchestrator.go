package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/domain"
	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/ledger"
	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/metrics"
	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/service"
)

const (
	lockRetryInterval = 25 * time.Millisecond
	sideChannelBudget = 5 * time.Second
)

// Notifier delivers operator notifications.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config holds the execution settings read once at construction.
type Config struct {
	DefaultQuantity float64
	LockTTL         time.Duration
	JournalTTL      time.Duration
	CleanupInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.DefaultQuantity <= 0 {
		c.DefaultQuantity = 1
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 30 * time.Second
	}
	if c.JournalTTL <= 0 {
		c.JournalTTL = 24 * time.Hour
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Minute
	}
	return c
}

// Orchestrator runs each signal through the quality gate and the risk
// checks, places the order through the execution adapter and applies the
// confirmed trade to the ledger. It owns the daily P&L accumulator.
//
// mu guards dailyPnL and peakEquity and is held for the synchronous check
// section and for the apply section, never across the adapter call. A
// per-symbol lock is held for the whole handling of a signal so same-symbol
// signals are serialized.
type Orchestrator struct {
	ledger  *ledger.Ledger
	gate    service.QualityGate
	risk    *service.RiskService
	adapter ExecutionAdapter
	locks   domain.LockManager
	journal *Journal
	cfg     Config

	mu         sync.Mutex
	dailyPnL   decimal.Decimal
	peakEquity float64

	signalCh <-chan domain.TradeSignal
	dryRun   bool

	bus      domain.SignalBus
	audit    domain.AuditStore
	trades   domain.TradeStore
	notifier Notifier

	now    func() time.Time
	logger *slog.Logger
}

// NewOrchestrator creates an Orchestrator. locks may be nil, in which case an
// in-process SymbolLocks is used.
func NewOrchestrator(
	led *ledger.Ledger,
	gate service.QualityGate,
	risk *service.RiskService,
	adapter ExecutionAdapter,
	locks domain.LockManager,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	cfg = cfg.withDefaults()
	if locks == nil {
		locks = NewSymbolLocks()
	}
	return &Orchestrator{
		ledger:     led,
		gate:       gate,
		risk:       risk,
		adapter:    adapter,
		locks:      locks,
		journal:    NewJournal(cfg.JournalTTL),
		cfg:        cfg,
		peakEquity: risk.Limits().StartingEquity,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.With(slog.String("component", "orchestrator")),
	}
}

// SetSignalSource sets the channel consumed by Run. Must be called before Run.
func (o *Orchestrator) SetSignalSource(ch <-chan domain.TradeSignal) { o.signalCh = ch }

// SetDryRun makes Run evaluate signals without executing them.
func (o *Orchestrator) SetDryRun(dry bool) { o.dryRun = dry }

// SetEventBus enables publishing of trade, position and outcome events.
func (o *Orchestrator) SetEventBus(bus domain.SignalBus) { o.bus = bus }

// SetAuditStore enables the audit log.
func (o *Orchestrator) SetAuditStore(audit domain.AuditStore) { o.audit = audit }

// SetTradeStore enables persistence of applied fills.
func (o *Orchestrator) SetTradeStore(trades domain.TradeStore) { o.trades = trades }

// SetNotifier enables operator notifications.
func (o *Orchestrator) SetNotifier(n Notifier) { o.notifier = n }

// Ledger returns the ledger this orchestrator mutates.
func (o *Orchestrator) Ledger() *ledger.Ledger { return o.ledger }

// HandleSignal processes sig and returns the applied trade, or nil when the
// signal was rejected or the broker did not fill it.
func (o *Orchestrator) HandleSignal(ctx context.Context, sig domain.TradeSignal) (*domain.Trade, error) {
	out, err := o.Process(ctx, sig)
	if err != nil {
		return nil, err
	}
	return out.Trade, nil
}

// Process is HandleSignal that also reports why a signal was not executed.
// Rejections are not errors. Errors are either *domain.TradeExecutionError or
// the ctx error when ctx ended while waiting for the symbol lock. The ledger
// is unchanged in both cases.
func (o *Orchestrator) Process(ctx context.Context, sig domain.TradeSignal) (domain.SignalOutcome, error) {
	sig = sig.Normalize(o.now())
	log := o.logger.With(
		slog.String("signal_id", sig.ID),
		slog.String("symbol", sig.Symbol),
		slog.String("direction", string(sig.Direction)),
		slog.String("strategy", sig.Strategy),
	)

	if res := o.screen(ctx, sig); !res.Passed {
		return o.reject(ctx, log, sig, res), nil
	}

	unlock, err := o.lockSymbol(ctx, sig.Symbol)
	if err != nil {
		if ctx.Err() != nil {
			// Nothing reached the broker.
			metrics.SignalsTotal.WithLabelValues("cancelled").Inc()
			log.InfoContext(ctx, "orchestrator: cancelled waiting for symbol lock")
			return domain.SignalOutcome{SignalID: sig.ID}, fmt.Errorf("orchestrator: lock %s: %w", sig.Symbol, ctx.Err())
		}
		return o.fatal(ctx, log, sig, fmt.Errorf("orchestrator: lock %s: %w", sig.Symbol, err))
	}
	defer unlock()

	if o.journal.Applied(sig.ID) || o.persisted(ctx, log, sig.ID) {
		return o.reject(ctx, log, sig, domain.Fail(domain.CheckDuplicate, "signal already applied")), nil
	}

	o.mu.Lock()
	res := o.risk.PreTradeCheck(ctx, sig, o.ledger, o.pnlLocked())
	var req domain.OrderRequest
	if res.Passed {
		req, res = o.buildOrder(sig)
	}
	o.mu.Unlock()
	if !res.Passed {
		return o.reject(ctx, log, sig, res), nil
	}

	start := time.Now()
	trade, err := o.adapter.Execute(ctx, req)
	elapsed := float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		metrics.BrokerLatency.WithLabelValues("error").Observe(elapsed)
		return o.fatal(ctx, log, sig, err)
	}
	if trade == nil {
		metrics.BrokerLatency.WithLabelValues("not_filled").Observe(elapsed)
		return o.reject(ctx, log, sig, domain.Fail(domain.CheckBroker, "order was not filled")), nil
	}
	metrics.BrokerLatency.WithLabelValues("filled").Observe(elapsed)

	// A confirmed trade is always applied, whatever the state of ctx.
	chg, applied, err := o.apply(*trade)
	if err != nil {
		return o.fatal(ctx, log, sig, fmt.Errorf("orchestrator: apply trade %s: %w", trade.ID, err))
	}
	if !applied {
		return o.reject(ctx, log, sig, domain.Fail(domain.CheckAlreadyDone, "trade for signal already applied")), nil
	}

	metrics.SignalsTotal.WithLabelValues("executed").Inc()
	log.InfoContext(ctx, "orchestrator: trade applied",
		slog.String("trade_id", trade.ID),
		slog.String("side", string(trade.Side)),
		slog.Float64("quantity", trade.Quantity),
		slog.Float64("price", trade.Price),
		slog.String("action", string(chg.Action)),
		slog.Float64("pnl_delta", chg.UnrealizedDelta),
	)
	o.publishFill(ctx, *trade, chg)

	return domain.SignalOutcome{SignalID: sig.ID, Trade: trade, Result: domain.Pass()}, nil
}

// Evaluate runs the duplicate check, the quality gate and the risk checks
// without executing anything.
func (o *Orchestrator) Evaluate(ctx context.Context, sig domain.TradeSignal) domain.RiskCheckResult {
	sig = sig.Normalize(o.now())
	if res := o.screen(ctx, sig); !res.Passed {
		return res
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	res := o.risk.PreTradeCheck(ctx, sig, o.ledger, o.pnlLocked())
	if res.Passed {
		_, res = o.buildOrder(sig)
	}
	return res
}

// ApplyConfirmedTrade applies a broker-confirmed trade whose handling was
// interrupted, for example by a crash after the broker call. It reports
// whether the trade was applied; a trade whose signal was already applied, in
// the journal or in the trade store, is skipped. Only filled trades are
// accepted.
func (o *Orchestrator) ApplyConfirmedTrade(ctx context.Context, trade domain.Trade) (bool, error) {
	if trade.SignalID == "" {
		return false, fmt.Errorf("orchestrator: confirmed trade %s has no signal id: %w", trade.ID, domain.ErrInvalidTrade)
	}
	if trade.Status != domain.TradeStatusFilled {
		return false, fmt.Errorf("orchestrator: confirmed trade %s has status %q: %w", trade.ID, trade.Status, domain.ErrInvalidTrade)
	}

	unlock, err := o.lockSymbol(ctx, trade.Symbol)
	if err != nil {
		return false, fmt.Errorf("orchestrator: lock %s: %w", trade.Symbol, err)
	}
	defer unlock()

	log := o.logger.With(slog.String("signal_id", trade.SignalID), slog.String("symbol", trade.Symbol))
	if o.persisted(ctx, log, trade.SignalID) {
		log.InfoContext(ctx, "orchestrator: confirmed trade already recorded", slog.String("trade_id", trade.ID))
		return false, nil
	}

	chg, applied, err := o.apply(trade)
	if err != nil {
		return false, fmt.Errorf("orchestrator: apply confirmed trade %s: %w", trade.ID, err)
	}
	if !applied {
		o.logger.InfoContext(ctx, "orchestrator: confirmed trade already applied",
			slog.String("signal_id", trade.SignalID),
			slog.String("trade_id", trade.ID),
		)
		return false, nil
	}

	o.logger.InfoContext(ctx, "orchestrator: confirmed trade reconciled",
		slog.String("signal_id", trade.SignalID),
		slog.String("trade_id", trade.ID),
		slog.String("action", string(chg.Action)),
	)
	o.publishFill(ctx, trade, chg)
	return true, nil
}

// DailyPnL returns the daily P&L accumulator.
func (o *Orchestrator) DailyPnL() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dailyPnL.InexactFloat64()
}

// ResetDailyPnL zeroes the daily P&L and restarts the equity peak.
func (o *Orchestrator) ResetDailyPnL() {
	o.mu.Lock()
	prev := o.dailyPnL.InexactFloat64()
	o.dailyPnL = decimal.Zero
	o.peakEquity = o.risk.Limits().StartingEquity
	o.mu.Unlock()

	metrics.DailyPnL.Set(0)
	o.logger.Info("orchestrator: daily pnl reset", slog.Float64("previous", prev))
}

// RiskMetrics returns the limits and their current utilization.
func (o *Orchestrator) RiskMetrics() domain.RiskMetrics {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.risk.Metrics(o.ledger, o.pnlLocked(), o.now())
}

// Snapshot captures positions, daily P&L and risk metrics consistently.
func (o *Orchestrator) Snapshot() domain.LedgerSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return domain.LedgerSnapshot{
		TakenAt:   o.now(),
		DailyPnL:  o.dailyPnL.InexactFloat64(),
		Risk:      o.risk.Metrics(o.ledger, o.pnlLocked(), o.now()),
		Positions: o.ledger.OpenPositions(),
	}
}

// UpdatePrice marks the open position for symbol to price. Daily P&L only
// moves on applied trades, so it is not touched here.
func (o *Orchestrator) UpdatePrice(ctx context.Context, symbol string, price float64) (domain.Position, bool) {
	pos, ok := o.ledger.UpdatePositionPrice(symbol, price)
	if !ok {
		return pos, false
	}
	metrics.Exposure.Set(o.ledger.Exposure())
	o.publish(ctx, domain.ChannelPositions, map[string]any{
		"event":          "position_marked",
		"symbol":         pos.Symbol,
		"current_price":  pos.CurrentPrice,
		"unrealized_pnl": pos.UnrealizedPnL,
	})
	return pos, true
}

// ClosePosition removes the ledger entry for symbol without a trade. It is an
// administrative operation and does not touch daily P&L.
func (o *Orchestrator) ClosePosition(ctx context.Context, symbol string) (domain.Position, error) {
	unlock, err := o.lockSymbol(ctx, symbol)
	if err != nil {
		return domain.Position{}, fmt.Errorf("orchestrator: lock %s: %w", symbol, err)
	}
	defer unlock()

	pos, ok := o.ledger.ClosePosition(symbol)
	if !ok {
		return domain.Position{}, fmt.Errorf("orchestrator: close %s: %w", symbol, domain.ErrNotFound)
	}
	metrics.OpenPositions.Set(float64(o.ledger.PositionCount()))
	metrics.Exposure.Set(o.ledger.Exposure())

	o.logger.WarnContext(ctx, "orchestrator: position removed by operator",
		slog.String("symbol", symbol),
		slog.Float64("quantity", pos.Quantity),
	)
	o.publish(ctx, domain.ChannelPositions, map[string]any{
		"event":  "position_removed",
		"symbol": symbol,
	})
	o.auditLog(ctx, "position_removed", map[string]any{
		"symbol":   symbol,
		"side":     string(pos.Side),
		"quantity": pos.Quantity,
	})
	return pos, nil
}

// Run consumes the signal source until ctx is cancelled, then drains the
// signals already buffered and returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.signalCh == nil {
		return errors.New("orchestrator: no signal source")
	}
	o.logger.Info("orchestrator started", slog.Bool("dry_run", o.dryRun))
	defer o.logger.Info("orchestrator stopped")

	cleanupTicker := time.NewTicker(o.cfg.CleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.drain()
			return ctx.Err()

		case sig, ok := <-o.signalCh:
			if !ok {
				return nil
			}
			o.handle(ctx, sig)

		case <-cleanupTicker.C:
			if n := o.journal.Cleanup(); n > 0 {
				o.logger.Debug("orchestrator: journal cleaned", slog.Int("expired", n))
			}
		}
	}
}

func (o *Orchestrator) handle(ctx context.Context, sig domain.TradeSignal) {
	if o.dryRun {
		sig = sig.Normalize(o.now())
		res := o.Evaluate(ctx, sig)
		o.logger.InfoContext(ctx, "orchestrator: dry run evaluation",
			slog.String("signal_id", sig.ID),
			slog.String("symbol", sig.Symbol),
			slog.Bool("passed", res.Passed),
			slog.String("check", res.Check),
			slog.String("reason", res.Reason),
		)
		o.publish(ctx, domain.ChannelOutcomes, map[string]any{
			"event":     "signal_evaluated",
			"signal_id": sig.ID,
			"symbol":    sig.Symbol,
			"passed":    res.Passed,
			"check":     res.Check,
			"reason":    res.Reason,
		})
		return
	}

	if _, err := o.Process(ctx, sig); err != nil {
		o.logger.ErrorContext(ctx, "orchestrator: signal handling failed",
			slog.String("signal_id", sig.ID),
			slog.String("error", err.Error()),
		)
	}
}

// drain handles signals already buffered in the channel after cancellation
// with a short-lived context so shutdown does not hang on the broker.
func (o *Orchestrator) drain() {
	for {
		select {
		case sig, ok := <-o.signalCh:
			if !ok {
				return
			}
			o.logger.Warn("orchestrator: draining signal after shutdown", slog.String("signal_id", sig.ID))
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			o.handle(drainCtx, sig)
			cancel()
		default:
			return
		}
	}
}

// screen runs the checks that need neither the symbol lock nor mu.
func (o *Orchestrator) screen(ctx context.Context, sig domain.TradeSignal) domain.RiskCheckResult {
	if o.journal.Applied(sig.ID) {
		return domain.Fail(domain.CheckDuplicate, "signal already applied")
	}

	res, err := o.gate.Evaluate(ctx, sig)
	if err != nil {
		return domain.Fail(domain.CheckQualityGate, "quality gate error: "+err.Error())
	}
	if !res.Passed && res.Check == "" {
		res.Check = domain.CheckQualityGate
	}
	return res
}

// buildOrder maps a signal that passed the risk checks to an order. Caller
// holds mu. A CLOSE takes the side opposite the open position and never more
// than its quantity.
func (o *Orchestrator) buildOrder(sig domain.TradeSignal) (domain.OrderRequest, domain.RiskCheckResult) {
	req := domain.OrderRequest{
		SignalID:   sig.ID,
		Symbol:     sig.Symbol,
		Price:      sig.PriceOr(0),
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
		Strategy:   sig.Strategy,
	}

	switch sig.Direction {
	case domain.DirectionLong:
		req.Side = domain.OrderSideBuy
		req.Quantity = sig.QuantityOr(o.cfg.DefaultQuantity)
	case domain.DirectionShort:
		req.Side = domain.OrderSideSell
		req.Quantity = sig.QuantityOr(o.cfg.DefaultQuantity)
	case domain.DirectionClose:
		pos, ok := o.ledger.Position(sig.Symbol)
		if !ok {
			return req, domain.Fail(domain.CheckNoPosition, "no open position to close for "+sig.Symbol)
		}
		req.Side = pos.Side.ClosingSide()
		req.Quantity = pos.Quantity
		if sig.Quantity != nil && *sig.Quantity < pos.Quantity {
			req.Quantity = *sig.Quantity
		}
		if req.Price == 0 {
			req.Price = pos.CurrentPrice
		}
	default:
		return req, domain.Fail(domain.CheckQualityGate, fmt.Sprintf("unknown direction %q", sig.Direction))
	}

	if !(req.Quantity > 0) {
		return req, domain.Fail(domain.CheckQualityGate, "order quantity must be positive")
	}
	return req, domain.Pass()
}

// apply mutates the ledger and the daily P&L for a confirmed trade. It does
// not observe any context.
func (o *Orchestrator) apply(t domain.Trade) (ledger.Change, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.journal.Applied(t.SignalID) {
		return ledger.Change{}, false, nil
	}

	chg, err := o.ledger.TrackPosition(t.Symbol, t)
	if err != nil {
		return ledger.Change{}, false, err
	}

	o.dailyPnL = o.dailyPnL.Add(decimal.NewFromFloat(chg.UnrealizedDelta))
	daily := o.dailyPnL.InexactFloat64()
	if equity := o.risk.Equity(daily); equity > o.peakEquity {
		o.peakEquity = equity
	}
	o.journal.Record(t.SignalID)

	metrics.TradesTotal.WithLabelValues(string(t.Side), string(chg.Action)).Inc()
	metrics.RealizedPnLTotal.Add(chg.RealizedPnL)
	metrics.DailyPnL.Set(daily)
	metrics.Exposure.Set(o.ledger.Exposure())
	metrics.OpenPositions.Set(float64(o.ledger.PositionCount()))
	return chg, true, nil
}

// persisted reports whether the trade store already holds a fill for the
// signal, which covers signals applied before a restart. Store errors fail
// open.
func (o *Orchestrator) persisted(ctx context.Context, log *slog.Logger, signalID string) bool {
	if o.trades == nil {
		return false
	}
	ok, err := o.trades.ExistsForSignal(ctx, signalID)
	if err != nil {
		log.WarnContext(ctx, "orchestrator: fill lookup failed", slog.String("error", err.Error()))
		metrics.SideChannelErrors.WithLabelValues("trade_store").Inc()
		return false
	}
	return ok
}

// pnlLocked returns the accounting state. Caller holds mu.
func (o *Orchestrator) pnlLocked() service.PnLState {
	return service.PnLState{
		DailyPnL:   o.dailyPnL.InexactFloat64(),
		PeakEquity: o.peakEquity,
	}
}

func (o *Orchestrator) lockSymbol(ctx context.Context, symbol string) (func(), error) {
	for {
		unlock, err := o.locks.Acquire(ctx, "symbol:"+symbol, o.cfg.LockTTL)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, domain.ErrLockHeld) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

func (o *Orchestrator) reject(ctx context.Context, log *slog.Logger, sig domain.TradeSignal, res domain.RiskCheckResult) domain.SignalOutcome {
	outcome := "rejected"
	if res.Check == domain.CheckDuplicate || res.Check == domain.CheckAlreadyDone {
		outcome = "duplicate"
	}
	metrics.SignalsTotal.WithLabelValues(outcome).Inc()
	metrics.RejectionsTotal.WithLabelValues(res.Check).Inc()

	log.InfoContext(ctx, "orchestrator: signal rejected",
		slog.String("check", res.Check),
		slog.String("reason", res.Reason),
	)

	detail := map[string]any{
		"event":     "signal_rejected",
		"signal_id": sig.ID,
		"symbol":    sig.Symbol,
		"direction": string(sig.Direction),
		"strategy":  sig.Strategy,
		"check":     res.Check,
		"reason":    res.Reason,
	}
	o.publish(ctx, domain.ChannelOutcomes, detail)
	o.auditLog(ctx, "signal_rejected", detail)

	return domain.SignalOutcome{SignalID: sig.ID, Result: res}
}

func (o *Orchestrator) fatal(ctx context.Context, log *slog.Logger, sig domain.TradeSignal, err error) (domain.SignalOutcome, error) {
	metrics.SignalsTotal.WithLabelValues("failed").Inc()
	log.ErrorContext(ctx, "orchestrator: signal handling aborted", slog.String("error", err.Error()))

	if o.notifier != nil {
		sctx, cancel := o.sideContext(ctx)
		defer cancel()
		msg := fmt.Sprintf("signal %s (%s %s): %v", sig.ID, sig.Direction, sig.Symbol, err)
		if nerr := o.notifier.Notify(sctx, "error", "Trade execution failed", msg); nerr != nil {
			o.sideChannelFailed(ctx, "notify", nerr)
		}
	}
	return domain.SignalOutcome{SignalID: sig.ID}, domain.NewTradeExecutionError(sig, err)
}

// publishFill fans a filled trade out to the best-effort side channels.
func (o *Orchestrator) publishFill(ctx context.Context, t domain.Trade, chg ledger.Change) {
	evt := map[string]any{
		"event":        "trade_filled",
		"trade_id":     t.ID,
		"signal_id":    t.SignalID,
		"symbol":       t.Symbol,
		"side":         string(t.Side),
		"quantity":     t.Quantity,
		"price":        t.Price,
		"strategy":     t.Strategy,
		"action":       string(chg.Action),
		"realized_pnl": chg.RealizedPnL,
		"pnl_delta":    chg.UnrealizedDelta,
		"timestamp":    t.Timestamp,
	}
	o.publish(ctx, domain.ChannelTrades, evt)

	posEvt := map[string]any{
		"event":  "position_" + string(chg.Action),
		"symbol": t.Symbol,
	}
	if chg.Position != nil {
		posEvt["position"] = chg.Position
	}
	o.publish(ctx, domain.ChannelPositions, posEvt)
	o.publish(ctx, domain.ChannelRisk, o.RiskMetrics())

	sctx, cancel := o.sideContext(ctx)
	defer cancel()

	if o.bus != nil {
		if payload, err := json.Marshal(evt); err == nil {
			if err := o.bus.StreamAppend(sctx, domain.StreamTrades, payload); err != nil {
				o.sideChannelFailed(ctx, "stream", err)
			}
		}
	}
	if o.trades != nil {
		if err := o.trades.Record(sctx, t); err != nil {
			o.sideChannelFailed(ctx, "trade_store", err)
		}
	}
	o.auditLog(ctx, "trade_filled", evt)
	if o.notifier != nil {
		title := fmt.Sprintf("Trade filled: %s %s", t.Side, t.Symbol)
		msg := fmt.Sprintf("%.4f @ %.4f (%s, %s)", t.Quantity, t.Price, chg.Action, t.Strategy)
		if err := o.notifier.Notify(sctx, "trade_filled", title, msg); err != nil {
			o.sideChannelFailed(ctx, "notify", err)
		}
	}
}

func (o *Orchestrator) publish(ctx context.Context, channel string, v any) {
	if o.bus == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		o.sideChannelFailed(ctx, "bus", err)
		return
	}
	sctx, cancel := o.sideContext(ctx)
	defer cancel()
	if err := o.bus.Publish(sctx, channel, payload); err != nil {
		o.sideChannelFailed(ctx, "bus", err)
	}
}

func (o *Orchestrator) auditLog(ctx context.Context, event string, detail map[string]any) {
	if o.audit == nil {
		return
	}
	sctx, cancel := o.sideContext(ctx)
	defer cancel()
	if err := o.audit.Log(sctx, event, detail); err != nil {
		o.sideChannelFailed(ctx, "audit", err)
	}
}

// sideContext detaches side-channel work from the caller's cancellation so
// a trade that was applied is still reported.
func (o *Orchestrator) sideContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), sideChannelBudget)
}

func (o *Orchestrator) sideChannelFailed(ctx context.Context, channel string, err error) {
	metrics.SideChannelErrors.WithLabelValues(channel).Inc()
	o.logger.WarnContext(ctx, "orchestrator: side channel failed",
		slog.String("channel", channel),
		slog.String("error", err.Error()),
	)
}
