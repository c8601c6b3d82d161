package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/domain"
)

// multipartThreshold switches uploads to the multipart manager.
const multipartThreshold = 16 * 1024 * 1024

// TradeSource is the part of domain.TradeStore the archiver needs.
type TradeSource interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.ExecutedTrade, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// TradeArchiver implements domain.Archiver: it writes executed trades older
// than a cutoff to object storage as JSONL and, when purging is enabled,
// deletes them from the primary store after a successful upload.
type TradeArchiver struct {
	writer domain.BlobWriter
	trades TradeSource
	audit  domain.AuditStore
	purge  bool
	now    func() time.Time
	logger *slog.Logger
}

// NewTradeArchiver creates a TradeArchiver. audit may be nil.
func NewTradeArchiver(writer domain.BlobWriter, trades TradeSource, audit domain.AuditStore, purge bool, logger *slog.Logger) *TradeArchiver {
	return &TradeArchiver{
		writer: writer,
		trades: trades,
		audit:  audit,
		purge:  purge,
		now:    time.Now,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// archivedTrade is the JSONL record layout.
type archivedTrade struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Pair       string    `json:"pair"`
	Side       string    `json:"side"`
	Price      string    `json:"price"`
	Amount     string    `json:"amount"`
	Total      string    `json:"total"`
	ExecutedAt time.Time `json:"executed_at"`
}

// ArchiveTrades uploads every trade executed before the cutoff and returns
// the number archived. Nothing is written when there are no trades.
func (a *TradeArchiver) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	trades, err := a.trades.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	records := make([]archivedTrade, 0, len(trades))
	for _, t := range trades {
		records = append(records, archivedTrade{
			ID:         t.ID,
			SessionID:  t.SessionID,
			Pair:       t.Pair,
			Side:       string(t.Side),
			Price:      t.Price.String(),
			Amount:     t.Amount.String(),
			Total:      t.Total().String(),
			ExecutedAt: t.ExecutedAt.UTC(),
		})
	}
	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}

	path := ArchivePath(before, a.now())
	if len(buf) >= multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades upload: %w", err)
	}

	count := int64(len(trades))
	a.logger.Info("trades archived", slog.String("path", path), slog.Int64("count", count))

	if a.purge {
		deleted, err := a.trades.DeleteBefore(ctx, before)
		if err != nil {
			return count, fmt.Errorf("s3blob: archive trades purge: %w", err)
		}
		a.logger.Info("archived trades purged", slog.Int64("deleted", deleted))
	}

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.trades", map[string]any{
			"path":   path,
			"count":  count,
			"before": before.UTC().Format(time.RFC3339),
			"purged": a.purge,
		}); err != nil {
			return count, fmt.Errorf("s3blob: archive trades audit log: %w", err)
		}
	}
	return count, nil
}

// ArchivePath builds the object key for an archive run, partitioned by the
// cutoff date:
//
//	trades/2026/03/14/trades-1773484013.jsonl
func ArchivePath(before, runAt time.Time) string {
	d := before.UTC()
	return fmt.Sprintf("trades/%04d/%02d/%02d/trades-%d.jsonl", d.Year(), d.Month(), d.Day(), runAt.Unix())
}

// marshalJSONL encodes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*TradeArchiver)(nil)
