package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeEngine struct {
	processErr error
	cancelErr  error
	closeErr   error
}

func (e *fakeEngine) Process(_ context.Context, sig domain.TradeSignal) (domain.SignalOutcome, error) {
	if e.cancelErr != nil {
		return domain.SignalOutcome{SignalID: sig.ID}, fmt.Errorf("orchestrator: lock %s: %w", sig.Symbol, e.cancelErr)
	}
	if e.processErr != nil {
		return domain.SignalOutcome{SignalID: sig.ID}, domain.NewTradeExecutionError(sig, e.processErr)
	}
	return domain.SignalOutcome{SignalID: sig.ID, Result: domain.Pass()}, nil
}

func (e *fakeEngine) Evaluate(context.Context, domain.TradeSignal) domain.RiskCheckResult {
	return domain.Pass()
}
func (e *fakeEngine) DailyPnL() float64 { return 0 }
func (e *fakeEngine) ResetDailyPnL() {}
func (e *fakeEngine) RiskMetrics() domain.RiskMetrics { return domain.RiskMetrics{} }
func (e *fakeEngine) UpdatePrice(context.Context, string, float64) (domain.Position, bool) {
	return domain.Position{}, false
}
func (e *fakeEngine) ClosePosition(context.Context, string) (domain.Position, error) {
	return domain.Position{}, e.closeErr
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestSignalHandler_CancelledBeforeExecution(t *testing.T) {
	h := NewSignalHandler(&fakeEngine{cancelErr: context.Canceled}, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/signals",
		strings.NewReader(`{"symbol":"X","direction":"LONG","confidence":1}`))
	rec := httptest.NewRecorder()
	h.Submit(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestSignalHandler_ExecutionFailure(t *testing.T) {
	h := NewSignalHandler(&fakeEngine{processErr: domain.ErrAdapterFault}, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/signals",
		strings.NewReader(`{"symbol":"X","direction":"LONG","confidence":1}`))
	rec := httptest.NewRecorder()
	h.Submit(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestSignalHandler_BodyTooLarge(t *testing.T) {
	h := NewSignalHandler(&fakeEngine{}, discardLogger())

	big := `{"symbol":"` + strings.Repeat("A", maxBodyBytes) + `"}`
	rec := httptest.NewRecorder()
	h.Submit(rec, httptest.NewRequest(http.MethodPost, "/api/signals", strings.NewReader(big)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "too large") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestPositionHandler_UpdatePriceValidation(t *testing.T) {
	h := NewPositionHandler(&fakeEngine{}, nil, nil, nil, discardLogger())

	for _, body := range []string{`{"price":0}`, `{"price":-3}`, `{}`} {
		req := httptest.NewRequest(http.MethodPut, "/api/prices/X", strings.NewReader(body))
		req.SetPathValue("symbol", "x")
		rec := httptest.NewRecorder()
		h.UpdatePrice(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestPositionHandler_CloseErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		h := NewPositionHandler(&fakeEngine{closeErr: tt.err}, nil, nil, nil, discardLogger())
		req := httptest.NewRequest(http.MethodDelete, "/api/positions/X", nil)
		req.SetPathValue("symbol", "x")
		rec := httptest.NewRecorder()
		h.ClosePosition(rec, req)
		if rec.Code != tt.want {
			t.Errorf("err %v: status = %d, want %d", tt.err, rec.Code, tt.want)
		}
	}
}

func TestPositionHandler_TradesDisabled(t *testing.T) {
	h := NewPositionHandler(&fakeEngine{}, nil, nil, nil, discardLogger())
	req := httptest.NewRequest(http.MethodGet, "/api/trades/X", nil)
	rec := httptest.NewRecorder()
	h.ListTrades(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestHealthHandler_Degraded(t *testing.T) {
	h := NewHealthHandler("trade", map[string]Pinger{
		"redis":    pingFunc(func(context.Context) error { return nil }),
		"postgres": pingFunc(func(context.Context) error { return errors.New("refused") }),
	}, discardLogger())

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"postgres":"down"`) || !strings.Contains(body, `"redis":"up"`) {
		t.Errorf("body = %s", body)
	}
}
