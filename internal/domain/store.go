package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// TradeStore persists executed trades beyond the lifetime of a session.
type TradeStore interface {
	Insert(ctx context.Context, trade ExecutedTrade) error
	InsertBatch(ctx context.Context, trades []ExecutedTrade) error
	// ListByPair lists newest first; an empty pair lists every pair.
	ListByPair(ctx context.Context, pair string, opts ListOpts) ([]ExecutedTrade, error)
	ListBySession(ctx context.Context, sessionID string, opts ListOpts) ([]ExecutedTrade, error)
	// ListBefore lists oldest first, for archiving.
	ListBefore(ctx context.Context, before time.Time) ([]ExecutedTrade, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
