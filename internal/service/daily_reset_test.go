package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/domain"
)

type fakeRoller struct {
	resets int
	pnl    float64
}

func (r *fakeRoller) Snapshot() domain.LedgerSnapshot {
	return domain.LedgerSnapshot{DailyPnL: r.pnl}
}

func (r *fakeRoller) ResetDailyPnL() {
	r.resets++
	r.pnl = 0
}

type fakeArchiver struct {
	got []domain.LedgerSnapshot
	err error
}

func (a *fakeArchiver) ArchiveSnapshot(_ context.Context, snap domain.LedgerSnapshot) (string, error) {
	a.got = append(a.got, snap)
	return "snapshots/x.json", a.err
}

func TestDailyReset_Next(t *testing.T) {
	d, err := NewDailyReset(&fakeRoller{}, nil, "09:30", "America/New_York", discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	ny, _ := time.LoadLocation("America/New_York")

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before today's reset", time.Date(2024, 3, 1, 8, 0, 0, 0, ny), time.Date(2024, 3, 1, 9, 30, 0, 0, ny)},
		{"exactly at reset", time.Date(2024, 3, 1, 9, 30, 0, 0, ny), time.Date(2024, 3, 2, 9, 30, 0, 0, ny)},
		{"after reset", time.Date(2024, 3, 1, 17, 0, 0, 0, ny), time.Date(2024, 3, 2, 9, 30, 0, 0, ny)},
		{"across dst change", time.Date(2024, 3, 9, 12, 0, 0, 0, ny), time.Date(2024, 3, 10, 9, 30, 0, 0, ny)},
		{"input in utc", time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 9, 30, 0, 0, ny)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Next(tt.now); !got.Equal(tt.want) {
				t.Errorf("Next = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDailyReset_InvalidConfig(t *testing.T) {
	if _, err := NewDailyReset(&fakeRoller{}, nil, "25:99", "", discardLogger()); err == nil {
		t.Error("expected error for bad time")
	}
	if _, err := NewDailyReset(&fakeRoller{}, nil, "00:00", "Mars/Olympus", discardLogger()); err == nil {
		t.Error("expected error for bad timezone")
	}
}

func TestDailyReset_Reset(t *testing.T) {
	roller := &fakeRoller{pnl: -120}
	arch := &fakeArchiver{err: errors.New("s3 down")}
	d, err := NewDailyReset(roller, arch, "00:00", "", discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	d.Reset(context.Background())

	if roller.resets != 1 || roller.pnl != 0 {
		t.Errorf("reset not applied: %+v", roller)
	}
	if len(arch.got) != 1 || arch.got[0].DailyPnL != -120 {
		t.Errorf("archived = %+v", arch.got)
	}
}

func TestDailyReset_RunStopsOnCancel(t *testing.T) {
	d, _ := NewDailyReset(&fakeRoller{}, nil, "00:00", "", discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}
