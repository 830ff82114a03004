package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	_ "time/tzdata" // schedule.timezone must resolve on hosts without zoneinfo

	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/domain"
)

// DayRoller is the part of the orchestrator the scheduler drives.
type DayRoller interface {
	Snapshot() domain.LedgerSnapshot
	ResetDailyPnL()
}

// DailyReset resets the daily P&L accumulator once per trading day at a fixed
// wall-clock time, archiving an end-of-day snapshot first when an archiver is
// configured.
type DailyReset struct {
	roller   DayRoller
	archiver domain.SnapshotArchiver
	hour     int
	minute   int
	loc      *time.Location
	now      func() time.Time
	logger   *slog.Logger
}

// NewDailyReset parses at ("HH:MM") in timezone tz. archiver may be nil.
func NewDailyReset(roller DayRoller, archiver domain.SnapshotArchiver, at, tz string, logger *slog.Logger) (*DailyReset, error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return nil, fmt.Errorf("daily_reset: parse time %q: %w", at, err)
	}
	loc := time.UTC
	if tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("daily_reset: load timezone %q: %w", tz, err)
		}
	}
	return &DailyReset{
		roller:   roller,
		archiver: archiver,
		hour:     t.Hour(),
		minute:   t.Minute(),
		loc:      loc,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "daily_reset")),
	}, nil
}

// Next returns the first reset time strictly after now.
func (d *DailyReset) Next(now time.Time) time.Time {
	local := now.In(d.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.hour, d.minute, 0, 0, d.loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, d.hour, d.minute, 0, 0, d.loc)
	}
	return next
}

// Run blocks until ctx is cancelled, resetting at every scheduled time.
// Call in a goroutine.
func (d *DailyReset) Run(ctx context.Context) error {
	for {
		next := d.Next(d.now())
		d.logger.InfoContext(ctx, "daily_reset: next reset scheduled", slog.Time("at", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			d.Reset(ctx)
		}
	}
}

// Reset archives a snapshot (best effort) and resets the daily P&L.
func (d *DailyReset) Reset(ctx context.Context) {
	snap := d.roller.Snapshot()
	if d.archiver != nil {
		key, err := d.archiver.ArchiveSnapshot(ctx, snap)
		if err != nil {
			d.logger.ErrorContext(ctx, "daily_reset: archive snapshot failed",
				slog.String("error", err.Error()),
			)
		} else {
			d.logger.InfoContext(ctx, "daily_reset: snapshot archived", slog.String("key", key))
		}
	}

	d.roller.ResetDailyPnL()
	d.logger.InfoContext(ctx, "daily_reset: daily pnl reset",
		slog.Float64("closing_daily_pnl", snap.DailyPnL),
		slog.Int("open_positions", len(snap.Positions)),
	)
}
