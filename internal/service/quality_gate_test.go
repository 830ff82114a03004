package service

import (
	"context"
	"testing"
	"time"

	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/domain"
)

func TestConfidenceGate(t *testing.T) {
	now := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	gate := NewConfidenceGate(QualityConfig{
		MinConfidence:     0.6,
		MaxSignalAge:      5 * time.Minute,
		AllowedStrategies: []string{"breakout", "Momentum"},
	})
	gate.now = func() time.Time { return now }

	base := func() domain.TradeSignal {
		return domain.TradeSignal{
			ID:         "s1",
			Symbol:     "AAPL",
			Direction:  domain.DirectionLong,
			Confidence: 0.8,
			Strategy:   "breakout",
			CreatedAt:  now.Add(-time.Minute),
		}
	}

	tests := []struct {
		name   string
		mutate func(*domain.TradeSignal)
		pass   bool
	}{
		{"valid", func(*domain.TradeSignal) {}, true},
		{"allow-list is case insensitive", func(s *domain.TradeSignal) { s.Strategy = "momentum" }, true},
		{"confidence at minimum", func(s *domain.TradeSignal) { s.Confidence = 0.6 }, true},
		{"low confidence", func(s *domain.TradeSignal) { s.Confidence = 0.59 }, false},
		{"missing symbol", func(s *domain.TradeSignal) { s.Symbol = " " }, false},
		{"bad direction", func(s *domain.TradeSignal) { s.Direction = "HOLD" }, false},
		{"negative price", func(s *domain.TradeSignal) { s.Price = domain.Float(-1) }, false},
		{"zero quantity", func(s *domain.TradeSignal) { s.Quantity = domain.Float(0) }, false},
		{"stale", func(s *domain.TradeSignal) { s.CreatedAt = now.Add(-10 * time.Minute) }, false},
		{"unknown strategy", func(s *domain.TradeSignal) { s.Strategy = "scalper" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := base()
			tt.mutate(&sig)
			res, err := gate.Evaluate(context.Background(), sig)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Passed != tt.pass {
				t.Fatalf("passed = %v, want %v (%s)", res.Passed, tt.pass, res.Reason)
			}
			if !res.Passed && res.Check != domain.CheckQualityGate {
				t.Errorf("check = %q", res.Check)
			}
		})
	}
}
