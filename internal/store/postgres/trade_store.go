package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tradedesk/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Numerics travel as text so no precision is lost in either direction.
const tradeSelectCols = `id::text, session_id, pair, side, price::text, amount::text, executed_at`

const insertTradeSQL = `
	INSERT INTO executed_trades (id, session_id, pair, side, price, amount, executed_at)
	VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7)
	ON CONFLICT (id) DO NOTHING`

func tradeArgs(t domain.ExecutedTrade) []any {
	return []any{t.ID, t.SessionID, t.Pair, string(t.Side), t.Price.String(), t.Amount.String(), t.ExecutedAt}
}

func scanTradeRows(rows pgx.Rows) ([]domain.ExecutedTrade, error) {
	var trades []domain.ExecutedTrade
	for rows.Next() {
		var (
			t             domain.ExecutedTrade
			side          string
			price, amount string
		)
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Pair, &side, &price, &amount, &t.ExecutedAt); err != nil {
			return nil, err
		}
		var err error
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("trade %s price: %w", t.ID, err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("trade %s amount: %w", t.ID, err)
		}
		t.Side = domain.Side(side)
		t.Time = t.ExecutedAt.Format("15:04:05")
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Insert stores one trade. Re-inserting the same id is a no-op.
func (s *TradeStore) Insert(ctx context.Context, t domain.ExecutedTrade) error {
	if _, err := s.pool.Exec(ctx, insertTradeSQL, tradeArgs(t)...); err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", t.ID, err)
	}
	return nil
}

// InsertBatch inserts trades in one round trip using a pgx Batch.
func (s *TradeStore) InsertBatch(ctx context.Context, trades []domain.ExecutedTrade) error {
	if len(trades) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, t := range trades {
		batch.Queue(insertTradeSQL, tradeArgs(t)...)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range trades {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert trade batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListByPair returns trades of one pair, newest first. An empty pair lists
// every pair.
func (s *TradeStore) ListByPair(ctx context.Context, pair string, opts domain.ListOpts) ([]domain.ExecutedTrade, error) {
	var where []filter
	if pair != "" {
		where = append(where, filter{"pair =", pair})
	}
	return s.list(ctx, "by pair", where, opts)
}

// ListBySession returns trades placed by one session, newest first.
func (s *TradeStore) ListBySession(ctx context.Context, sessionID string, opts domain.ListOpts) ([]domain.ExecutedTrade, error) {
	return s.list(ctx, "by session", []filter{{"session_id =", sessionID}}, opts)
}

// ListBefore returns all trades executed strictly before the cutoff, oldest
// first, for archiving.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ExecutedTrade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM executed_trades WHERE executed_at < $1 ORDER BY executed_at ASC`
	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before: %w", err)
	}
	defer rows.Close()
	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades before: %w", err)
	}
	return trades, nil
}

// DeleteBefore removes trades executed before the cutoff and returns how
// many were deleted.
func (s *TradeStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM executed_trades WHERE executed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete trades before: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *TradeStore) list(ctx context.Context, what string, where []filter, opts domain.ListOpts) ([]domain.ExecutedTrade, error) {
	query, args := buildListQuery(`SELECT `+tradeSelectCols+` FROM executed_trades`, "executed_at", where, opts)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades %s: %w", what, err)
	}
	defer rows.Close()
	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades %s: %w", what, err)
	}
	return trades, nil
}

var _ domain.TradeStore = (*TradeStore)(nil)
