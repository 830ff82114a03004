package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/domain"
)

// SnapshotArchiver writes end-of-day ledger snapshots as JSON objects keyed
// by date: <prefix>/snapshots/YYYY/MM/DD/ledger-HHMMSS.json.
type SnapshotArchiver struct {
	blob   domain.BlobWriter
	prefix string
}

// NewSnapshotArchiver creates a SnapshotArchiver. prefix may be empty.
func NewSnapshotArchiver(blob domain.BlobWriter, prefix string) *SnapshotArchiver {
	return &SnapshotArchiver{blob: blob, prefix: strings.Trim(prefix, "/")}
}

// ObjectKey returns the key snap is stored under.
func (a *SnapshotArchiver) ObjectKey(snap domain.LedgerSnapshot) string {
	ts := snap.TakenAt.UTC()
	return path.Join(a.prefix, "snapshots", ts.Format("2006/01/02"), "ledger-"+ts.Format("150405")+".json")
}

// ArchiveSnapshot implements domain.SnapshotArchiver.
func (a *SnapshotArchiver) ArchiveSnapshot(ctx context.Context, snap domain.LedgerSnapshot) (string, error) {
	if snap.Positions == nil {
		snap.Positions = []domain.Position{}
	}
	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal snapshot: %w", err)
	}

	key := a.ObjectKey(snap)
	if err := a.blob.Put(ctx, key, bytes.NewReader(body), "application/json"); err != nil {
		return "", fmt.Errorf("s3blob: archive snapshot: %w", err)
	}
	return key, nil
}
