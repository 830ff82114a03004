package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/domain"
)

// PositionBook is the read-only view of the position ledger that the risk
// checks need.
type PositionBook interface {
	Position(symbol string) (domain.Position, bool)
	Exposure() float64
	PositionCount() int
	TotalUnrealizedPnL() float64
}

// PnLState is the orchestrator-owned accounting state read by the checks.
type PnLState struct {
	DailyPnL   float64
	PeakEquity float64
}

// RiskService evaluates the ordered pre-trade risk checks. It holds no
// mutable state; callers supply the ledger view and P&L snapshot and are
// responsible for keeping them consistent for the duration of a check.
type RiskService struct {
	limits domain.RiskLimits
	logger *slog.Logger
}

// NewRiskService creates a RiskService. Limits are fixed for its lifetime.
func NewRiskService(limits domain.RiskLimits, logger *slog.Logger) *RiskService {
	if limits.DrawdownMode == "" {
		limits.DrawdownMode = domain.DrawdownDailyPnLRatio
	}
	return &RiskService{
		limits: limits,
		logger: logger.With(slog.String("component", "risk_service")),
	}
}

// Limits returns the configured limits.
func (s *RiskService) Limits() domain.RiskLimits {
	return s.limits
}

// PreTradeCheck runs the risk checks in their fixed order and returns the
// first failure, or a passing result.
//
// Checks performed:
//  1. Daily loss: daily P&L at or below -MaxDailyLoss
//  2. Position size: total exposure at or above MaxPositionSize
//  3. Drawdown: current drawdown at or above MaxDrawdown
//  4. Symbol collision: a position already exists and the signal is not CLOSE
//  5. No position: a CLOSE for a flat symbol
func (s *RiskService) PreTradeCheck(ctx context.Context, sig domain.TradeSignal, book PositionBook, pnl PnLState) domain.RiskCheckResult {
	if pnl.DailyPnL <= -s.limits.MaxDailyLoss {
		return s.fail(ctx, sig, domain.CheckDailyLoss,
			fmt.Sprintf("daily loss limit reached: pnl %.2f, limit %.2f", pnl.DailyPnL, s.limits.MaxDailyLoss))
	}

	if exposure := book.Exposure(); exposure >= s.limits.MaxPositionSize {
		return s.fail(ctx, sig, domain.CheckPositionSize,
			fmt.Sprintf("position size limit reached: exposure %.2f, limit %.2f", exposure, s.limits.MaxPositionSize))
	}

	if dd := s.Drawdown(pnl); dd >= s.limits.MaxDrawdown {
		return s.fail(ctx, sig, domain.CheckDrawdown,
			fmt.Sprintf("drawdown limit reached: %.4f, limit %.4f (%s)", dd, s.limits.MaxDrawdown, s.limits.DrawdownMode))
	}

	_, open := book.Position(sig.Symbol)
	if open && sig.Direction != domain.DirectionClose {
		return s.fail(ctx, sig, domain.CheckSymbol,
			fmt.Sprintf("position already open for %s", sig.Symbol))
	}
	if !open && sig.Direction == domain.DirectionClose {
		return s.fail(ctx, sig, domain.CheckNoPosition,
			fmt.Sprintf("no open position to close for %s", sig.Symbol))
	}

	return domain.Pass()
}

func (s *RiskService) fail(ctx context.Context, sig domain.TradeSignal, check, reason string) domain.RiskCheckResult {
	s.logger.WarnContext(ctx, "risk_service: check failed",
		slog.String("signal_id", sig.ID),
		slog.String("symbol", sig.Symbol),
		slog.String("check", check),
		slog.String("reason", reason),
	)
	return domain.Fail(check, reason)
}

// Equity returns starting equity plus the day's P&L.
func (s *RiskService) Equity(dailyPnL float64) float64 {
	return s.limits.StartingEquity + dailyPnL
}

// Drawdown returns the current drawdown fraction for the configured mode.
func (s *RiskService) Drawdown(pnl PnLState) float64 {
	switch s.limits.DrawdownMode {
	case domain.DrawdownPeakEquity:
		equity := s.Equity(pnl.DailyPnL)
		peak := math.Max(pnl.PeakEquity, math.Max(equity, s.limits.StartingEquity))
		if peak <= 0 {
			return 0
		}
		return (peak - equity) / peak
	default:
		if s.limits.MaxPositionSize <= 0 {
			return 0
		}
		return math.Abs(pnl.DailyPnL) / s.limits.MaxPositionSize
	}
}

// Metrics builds a snapshot of limits and their current utilization.
func (s *RiskService) Metrics(book PositionBook, pnl PnLState, now time.Time) domain.RiskMetrics {
	exposure := book.Exposure()
	dd := s.Drawdown(pnl)

	m := domain.RiskMetrics{
		MaxDailyLoss:       s.limits.MaxDailyLoss,
		MaxPositionSize:    s.limits.MaxPositionSize,
		MaxDrawdown:        s.limits.MaxDrawdown,
		DrawdownMode:       s.limits.DrawdownMode,
		DailyPnL:           pnl.DailyPnL,
		Exposure:           exposure,
		Drawdown:           dd,
		OpenPositions:      book.PositionCount(),
		TotalUnrealizedPnL: book.TotalUnrealizedPnL(),
		AsOf:               now,
	}
	if s.limits.DrawdownMode == domain.DrawdownPeakEquity {
		m.Equity = s.Equity(pnl.DailyPnL)
		m.PeakEquity = math.Max(pnl.PeakEquity, math.Max(m.Equity, s.limits.StartingEquity))
	}
	m.DailyLossUtilization = ratio(math.Max(0, -pnl.DailyPnL), s.limits.MaxDailyLoss)
	m.PositionSizeUtilization = ratio(exposure, s.limits.MaxPositionSize)
	m.DrawdownUtilization = ratio(dd, s.limits.MaxDrawdown)
	return m
}

func ratio(v, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return v / limit
}
