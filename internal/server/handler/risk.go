package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// RiskHandler serves risk metrics and the daily P&L.
type RiskHandler struct {
	engine Engine
	logger *slog.Logger
}

// NewRiskHandler creates a RiskHandler.
func NewRiskHandler(engine Engine, logger *slog.Logger) *RiskHandler {
	return &RiskHandler{engine: engine, logger: logger}
}

// GetRisk returns limits and utilization.
// GET /api/risk
func (h *RiskHandler) GetRisk(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.RiskMetrics())
}

// GetPnL returns the daily P&L accumulator.
// GET /api/pnl
func (h *RiskHandler) GetPnL(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"daily_pnl": h.engine.DailyPnL(),
		"as_of":     time.Now().UTC().Format(time.RFC3339),
	})
}

// ResetPnL zeroes the daily P&L out of schedule.
// POST /api/pnl/reset
func (h *RiskHandler) ResetPnL(w http.ResponseWriter, r *http.Request) {
	prev := h.engine.DailyPnL()
	h.engine.ResetDailyPnL()
	h.logger.InfoContext(r.Context(), "handler: daily pnl reset by operator", slog.Float64("previous", prev))
	writeJSON(w, http.StatusOK, map[string]any{"previous_daily_pnl": prev, "daily_pnl": 0})
}
