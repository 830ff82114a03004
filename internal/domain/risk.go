package domain

import "time"

// Names of the pre-trade checks, in evaluation order after the quality gate.
const (
	CheckDuplicate    = "duplicate"
	CheckQualityGate  = "quality_gate"
	CheckDailyLoss    = "daily_loss"
	CheckPositionSize = "position_size"
	CheckDrawdown     = "drawdown"
	CheckSymbol       = "symbol_collision"
	CheckNoPosition   = "no_position"
	CheckBroker       = "broker"
	CheckAlreadyDone  = "already_applied"
)

// RiskCheckResult is the transient verdict of a gate or risk check.
type RiskCheckResult struct {
	Passed bool   `json:"passed"`
	Check  string `json:"check,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Pass is the zero-reason passing result.
func Pass() RiskCheckResult {
	return RiskCheckResult{Passed: true}
}

// Fail builds a failing result for the named check.
func Fail(check, reason string) RiskCheckResult {
	return RiskCheckResult{Passed: false, Check: check, Reason: reason}
}

// DrawdownMode selects how the drawdown check measures drawdown.
type DrawdownMode string

const (
	// DrawdownDailyPnLRatio is |dailyPnL| / maxPositionSize. It is a
	// placeholder metric kept for compatibility, not a peak-to-trough measure.
	DrawdownDailyPnLRatio DrawdownMode = "daily_pnl_ratio"
	// DrawdownPeakEquity is (peak - equity) / peak over the trading day.
	DrawdownPeakEquity DrawdownMode = "peak_equity"
)

// RiskLimits are read once at orchestrator construction.
type RiskLimits struct {
	MaxDailyLoss    float64
	MaxPositionSize float64
	MaxDrawdown     float64
	DrawdownMode    DrawdownMode
	StartingEquity  float64
}

// RiskMetrics is a point-in-time snapshot of limits and utilization.
type RiskMetrics struct {
	MaxDailyLoss            float64      `json:"max_daily_loss"`
	MaxPositionSize         float64      `json:"max_position_size"`
	MaxDrawdown             float64      `json:"max_drawdown"`
	DrawdownMode            DrawdownMode `json:"drawdown_mode"`
	DailyPnL                float64      `json:"daily_pnl"`
	Exposure                float64      `json:"exposure"`
	Drawdown                float64      `json:"drawdown"`
	PeakEquity              float64      `json:"peak_equity,omitempty"`
	Equity                  float64      `json:"equity,omitempty"`
	DailyLossUtilization    float64      `json:"daily_loss_utilization"`
	PositionSizeUtilization float64      `json:"position_size_utilization"`
	DrawdownUtilization     float64      `json:"drawdown_utilization"`
	OpenPositions           int          `json:"open_positions"`
	TotalUnrealizedPnL      float64      `json:"total_unrealized_pnl"`
	AsOf                    time.Time    `json:"as_of"`
}

// SignalOutcome is the full result of handling one signal: either a trade or
// the check that stopped it.
type SignalOutcome struct {
	SignalID string          `json:"signal_id"`
	Trade    *Trade          `json:"trade,omitempty"`
	Result   RiskCheckResult `json:"result"`
}

// Executed reports whether the signal produced an applied trade.
func (o SignalOutcome) Executed() bool {
	return o.Trade != nil
}
