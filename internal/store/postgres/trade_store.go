package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/domain"
)

// TradeStore implements domain.TradeStore on the fills table.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const fillCols = `id, signal_id, symbol, side, quantity, price, status, strategy, executed_at`

// Record inserts a fill. A second fill for the same signal is ignored.
func (s *TradeStore) Record(ctx context.Context, t domain.Trade) error {
	const q = `
		INSERT INTO fills (` + fillCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (signal_id) DO NOTHING`

	_, err := s.pool.Exec(ctx, q,
		t.ID, t.SignalID, t.Symbol, string(t.Side),
		decimal.NewFromFloat(t.Quantity), decimal.NewFromFloat(t.Price),
		string(t.Status), t.Strategy, t.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: record fill %s: %w", t.ID, err)
	}
	return nil
}

// ExistsForSignal reports whether a fill was recorded for signalID.
func (s *TradeStore) ExistsForSignal(ctx context.Context, signalID string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM fills WHERE signal_id = $1)`, signalID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("postgres: fill exists %s: %w", signalID, err)
	}
	return ok, nil
}

// ListBySymbol returns fills for symbol, newest first.
func (s *TradeStore) ListBySymbol(ctx context.Context, symbol string, opts domain.ListOpts) ([]domain.Trade, error) {
	q, args := listQuery(`SELECT `+fillCols+` FROM fills WHERE symbol = $1`,
		[]any{symbol}, "executed_at", opts)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fills %s: %w", symbol, err)
	}
	trades, err := pgx.CollectRows(rows, scanFill)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan fills %s: %w", symbol, err)
	}
	return trades, nil
}

func scanFill(row pgx.CollectableRow) (domain.Trade, error) {
	var (
		t           domain.Trade
		side, state string
		qty, price  decimal.Decimal
	)
	err := row.Scan(&t.ID, &t.SignalID, &t.Symbol, &side, &qty, &price, &state, &t.Strategy, &t.Timestamp)
	if err != nil {
		return t, err
	}
	t.Side = domain.OrderSide(side)
	t.Status = domain.TradeStatus(state)
	t.Quantity = qty.InexactFloat64()
	t.Price = price.InexactFloat64()
	return t, nil
}
