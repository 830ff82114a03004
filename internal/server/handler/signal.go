package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/domain"
)

// SignalHandler accepts trade signals over HTTP.
type SignalHandler struct {
	engine Engine
	logger *slog.Logger
}

// NewSignalHandler creates a SignalHandler.
func NewSignalHandler(engine Engine, logger *slog.Logger) *SignalHandler {
	return &SignalHandler{engine: engine, logger: logger}
}

func (h *SignalHandler) decode(w http.ResponseWriter, r *http.Request) (domain.TradeSignal, bool) {
	var sig domain.TradeSignal
	if err := decodeJSON(w, r, &sig); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return sig, false
	}
	return sig.Normalize(time.Now()), true
}

// Submit handles a signal. Executed signals return 201 with the trade;
// rejections return 200 with the failed check.
// POST /api/signals
func (h *SignalHandler) Submit(w http.ResponseWriter, r *http.Request) {
	sig, ok := h.decode(w, r)
	if !ok {
		return
	}

	out, err := h.engine.Process(r.Context(), sig)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusServiceUnavailable, "request cancelled before execution")
			return
		}
		var te *domain.TradeExecutionError
		if errors.As(err, &te) {
			h.logger.ErrorContext(r.Context(), "handler: trade execution failed",
				slog.String("signal_id", te.Signal.ID),
				slog.String("error", err.Error()),
			)
		}
		writeError(w, http.StatusBadGateway, "trade execution failed")
		return
	}

	status := http.StatusOK
	if out.Executed() {
		status = http.StatusCreated
	}
	writeJSON(w, status, out)
}

// Evaluate runs the gate and risk checks without executing.
// POST /api/signals/evaluate
func (h *SignalHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	sig, ok := h.decode(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"signal_id": sig.ID,
		"result":    h.engine.Evaluate(r.Context(), sig),
	})
}
