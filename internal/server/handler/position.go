package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/domain"
)

// PositionHandler serves ledger, price and fill-history endpoints.
type PositionHandler struct {
	engine    Engine
	positions PositionReader
	prices    domain.PriceCache // optional
	trades    domain.TradeStore // optional
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler. prices and trades may be nil.
func NewPositionHandler(engine Engine, positions PositionReader, prices domain.PriceCache, trades domain.TradeStore, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		engine:    engine,
		positions: positions,
		prices:    prices,
		trades:    trades,
		logger:    logger,
	}
}

type listPositionsResponse struct {
	Positions []domain.Position `json:"positions"`
	Count     int               `json:"count"`
}

// ListPositions returns every open position.
// GET /api/positions
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions := h.positions.OpenPositions()
	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions, Count: len(positions)})
}

// GetPosition returns the position for one symbol.
// GET /api/positions/{symbol}
func (h *PositionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	sym := symbolParam(r)
	pos, ok := h.positions.Position(sym)
	if !ok {
		writeError(w, http.StatusNotFound, "no open position for "+sym)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

// ClosePosition removes a ledger entry without trading.
// DELETE /api/positions/{symbol}
func (h *PositionHandler) ClosePosition(w http.ResponseWriter, r *http.Request) {
	sym := symbolParam(r)
	pos, err := h.engine.ClosePosition(r.Context(), sym)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no open position for "+sym)
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: close position failed",
			slog.String("symbol", sym),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to close position")
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

type priceRequest struct {
	Price float64 `json:"price"`
}

// UpdatePrice records a price and marks the open position to it.
// PUT /api/prices/{symbol}
func (h *PositionHandler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	sym := symbolParam(r)
	var req priceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !(req.Price > 0) {
		writeError(w, http.StatusBadRequest, "price must be positive")
		return
	}

	if h.prices != nil {
		if err := h.prices.SetPrice(r.Context(), sym, req.Price, time.Now().UTC()); err != nil {
			h.logger.WarnContext(r.Context(), "handler: cache price failed",
				slog.String("symbol", sym),
				slog.String("error", err.Error()),
			)
		}
	}

	pos, marked := h.engine.UpdatePrice(r.Context(), sym, req.Price)
	resp := map[string]any{"symbol": sym, "price": req.Price, "marked": marked}
	if marked {
		resp["position"] = pos
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListTrades returns the recorded fills for a symbol.
// GET /api/trades/{symbol}
func (h *PositionHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	if h.trades == nil {
		writeError(w, http.StatusServiceUnavailable, "trade history is not enabled")
		return
	}
	sym := symbolParam(r)
	trades, err := h.trades.ListBySymbol(r.Context(), sym, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list trades failed",
			slog.String("symbol", sym),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": trades})
}
