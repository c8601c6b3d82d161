package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/domain"
)

// Event types published on the SignalBus.
const (
	EventSessionCreated        = "session_created"
	EventSessionClosed         = "session_closed"
	EventPairSelected          = "pair_selected"
	EventDraftUpdated          = "draft_updated"
	EventTradeExecuted         = "trade_executed"
	EventNotification          = "notification"
	EventNotificationDismissed = "notification_dismissed"
	EventBookSnapshot          = "book_snapshot"
)

// Event is the envelope of every bus message.
type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Pair      string    `json:"pair,omitempty"`
	Data      any       `json:"data,omitempty"`
	Time      time.Time `json:"time"`
}

// publisher marshals events onto a bus. Failures are logged, never returned:
// a lost push must not fail the user's operation.
type publisher struct {
	bus    domain.SignalBus
	logger *slog.Logger
	now    func() time.Time
}

func (p publisher) publish(ctx context.Context, channel string, evt Event) {
	if p.bus == nil {
		return
	}
	evt.Time = p.now().UTC()
	payload, err := json.Marshal(evt)
	if err != nil {
		p.logger.WarnContext(ctx, "marshal event failed",
			slog.String("type", evt.Type),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := p.bus.Publish(ctx, channel, payload); err != nil {
		p.logger.WarnContext(ctx, "publish event failed",
			slog.String("channel", channel),
			slog.String("type", evt.Type),
			slog.String("error", err.Error()),
		)
	}
}
