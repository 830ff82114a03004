package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// LedgerSnapshot is the end-of-day state archived before a daily reset.
type LedgerSnapshot struct {
	TakenAt   time.Time   `json:"taken_at"`
	DailyPnL  float64     `json:"daily_pnl"`
	Risk      RiskMetrics `json:"risk"`
	Positions []Position  `json:"positions"`
}

// SnapshotArchiver stores ledger snapshots in cold storage.
type SnapshotArchiver interface {
	ArchiveSnapshot(ctx context.Context, snap LedgerSnapshot) (string, error)
}
