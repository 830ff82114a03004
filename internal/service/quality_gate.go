package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/domain"
)

// QualityGate accepts or rejects a signal on quality grounds before any risk
// logic runs. Implementations must not have side effects.
type QualityGate interface {
	Evaluate(ctx context.Context, sig domain.TradeSignal) (domain.RiskCheckResult, error)
}

// QualityConfig holds the thresholds for ConfidenceGate.
type QualityConfig struct {
	MinConfidence     float64
	MaxSignalAge      time.Duration // 0 disables the age check
	AllowedStrategies []string      // empty allows every strategy
}

// ConfidenceGate is the default quality gate: it rejects malformed signals,
// low-confidence signals, stale signals and strategies outside the allow-list.
type ConfidenceGate struct {
	cfg     QualityConfig
	allowed map[string]struct{}
	now     func() time.Time
}

// NewConfidenceGate creates a ConfidenceGate.
func NewConfidenceGate(cfg QualityConfig) *ConfidenceGate {
	g := &ConfidenceGate{cfg: cfg, now: time.Now}
	if len(cfg.AllowedStrategies) > 0 {
		g.allowed = make(map[string]struct{}, len(cfg.AllowedStrategies))
		for _, s := range cfg.AllowedStrategies {
			g.allowed[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
		}
	}
	return g
}

func reject(format string, args ...any) (domain.RiskCheckResult, error) {
	return domain.Fail(domain.CheckQualityGate, fmt.Sprintf(format, args...)), nil
}

func invalid(v *float64) bool {
	return v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0)
}

// Evaluate implements QualityGate.
func (g *ConfidenceGate) Evaluate(_ context.Context, sig domain.TradeSignal) (domain.RiskCheckResult, error) {
	switch {
	case strings.TrimSpace(sig.Symbol) == "":
		return reject("missing symbol")
	case !sig.Direction.Valid():
		return reject("unknown direction %q", sig.Direction)
	case math.IsNaN(sig.Confidence) || sig.Confidence < g.cfg.MinConfidence:
		return reject("confidence %.2f below minimum %.2f", sig.Confidence, g.cfg.MinConfidence)
	case invalid(sig.Price), invalid(sig.Quantity), invalid(sig.StopLoss), invalid(sig.TakeProfit):
		return reject("negative or non-finite price field")
	case sig.Quantity != nil && *sig.Quantity == 0:
		return reject("zero quantity")
	}

	if g.cfg.MaxSignalAge > 0 && !sig.CreatedAt.IsZero() {
		if age := g.now().Sub(sig.CreatedAt); age > g.cfg.MaxSignalAge {
			return reject("signal is %s old, max %s", age.Round(time.Second), g.cfg.MaxSignalAge)
		}
	}

	if g.allowed != nil {
		if _, ok := g.allowed[strings.ToLower(sig.Strategy)]; !ok {
			return reject("strategy %q not allowed", sig.Strategy)
		}
	}

	return domain.Pass(), nil
}
