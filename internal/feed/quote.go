// Package feed moves prices and signals from the bus and external streams
// into the execution pipeline.
package feed

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Quote is the JSON shape published on the prices channel.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// decodeQuote parses and validates a quote. A missing timestamp is set to now.
func decodeQuote(data []byte, now time.Time) (Quote, error) {
	var q Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return q, fmt.Errorf("decode quote: %w", err)
	}
	q.Symbol = strings.ToUpper(strings.TrimSpace(q.Symbol))
	if q.Symbol == "" {
		return q, fmt.Errorf("quote without symbol")
	}
	if math.IsNaN(q.Price) || math.IsInf(q.Price, 0) || q.Price <= 0 {
		return q, fmt.Errorf("quote %s: invalid price %v", q.Symbol, q.Price)
	}
	if q.Timestamp.IsZero() {
		q.Timestamp = now
	}
	return q, nil
}
