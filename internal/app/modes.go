package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/tradedesk/internal/notify"
	"github.com/alanyoungcy/tradedesk/internal/quote"
	"github.com/alanyoungcy/tradedesk/internal/server"
	"github.com/alanyoungcy/tradedesk/internal/server/handler"
	"github.com/alanyoungcy/tradedesk/internal/server/ws"
	"github.com/alanyoungcy/tradedesk/internal/service"
)

// limiterIdle is how long an in-process rate-limit bucket may sit unused
// before it is pruned.
const limiterIdle = 10 * time.Minute

// ServerMode runs the HTTP API, WebSocket hub, session sweeper, book
// publisher and notifier until ctx is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")
	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps, nil)
	return g.Wait()
}

// FullMode is ServerMode plus the periodic trade archiver.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	if deps.Archiver == nil {
		return errors.New("app: full mode requires postgres and s3")
	}
	g, ctx := errgroup.WithContext(ctx)
	archives := a.newArchiveService(deps, deps.Notifier)
	a.startServer(ctx, g, deps, archives)
	g.Go(func() error { return archives.Run(ctx) })
	return g.Wait()
}

// ArchiveMode runs a single archive pass and returns.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	if deps.Archiver == nil {
		return errors.New("app: archive mode requires postgres and s3")
	}
	archives := a.newArchiveService(deps, nil)
	n, err := archives.RunOnce(ctx)
	if err != nil {
		a.alert(ctx, deps.Notifier, notify.EventArchiveFailed, "Archive Failed", err.Error())
		return fmt.Errorf("app: archive: %w", err)
	}
	if n > 0 {
		a.alert(ctx, deps.Notifier, notify.EventArchiveComplete, "Archive Complete", fmt.Sprintf("%d trades archived", n))
	}
	a.logger.InfoContext(ctx, "archive mode finished", slog.Int64("archived", n))
	return nil
}

func (a *App) newArchiveService(deps *Dependencies, notifier *notify.Notifier) *service.ArchiveService {
	return service.NewArchiveService(service.ArchiveConfig{
		Retention: a.cfg.Archive.Retention.Duration,
		Interval:  a.cfg.Archive.Interval.Duration,
		LockTTL:   a.cfg.Archive.LockTTL.Duration,
	}, deps.Archiver, deps.BlobReader, deps.LockManager, notifier, a.logger)
}

// alert delivers synchronously; used when no notifier loop is running.
func (a *App) alert(ctx context.Context, n *notify.Notifier, event, title, msg string) {
	if err := n.Notify(ctx, event, title, msg); err != nil {
		a.logger.WarnContext(ctx, "notification failed", slog.String("error", err.Error()))
	}
}

// startServer builds the services and handlers and starts every
// long-running goroutine of the HTTP surface on g. archives may be nil.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, archives *service.ArchiveService) {
	scfg := a.cfg.Session
	sessions := service.NewSessionService(service.SessionConfig{
		TradeLogSize:    scfg.TradeLogSize,
		NotificationTTL: scfg.NotificationTTL.Duration,
		IdleTTL:         scfg.IdleTTL.Duration,
		SweepInterval:   scfg.SweepInterval.Duration,
		MaxSessions:     scfg.MaxSessions,
		OrderRateLimit:  scfg.OrderRateLimit,
		OrderRateWindow: scfg.OrderRateWindow.Duration,
		DefaultPair:     a.cfg.Market.DefaultPair,
	}, deps.Markets, deps.TradeStore, deps.AuditStore, deps.SignalBus, deps.RateLimiter, deps.Notifier, a.logger)
	markets := service.NewMarketService(deps.Markets, deps.TradeStore, deps.SignalBus, a.logger)

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
		Sessions:  sessions.Count,
	})

	handlers := server.Handlers{
		Health:   handler.NewHealthHandler(a.cfg.Mode, sessions.Count, deps.Backends, a.logger),
		Markets:  handler.NewMarketHandler(markets, a.logger),
		Sessions: handler.NewSessionHandler(sessions, a.logger),
		Orders:   handler.NewOrderHandler(sessions, a.logger),
		Quotes:   handler.NewQuoteHandler(quote.NewCalculator(deps.Markets, nil), a.logger),
	}
	if deps.TradeStore != nil {
		handlers.Trades = handler.NewTradeHandler(markets, a.logger)
	}
	if archives != nil {
		handlers.Archives = handler.NewArchiveHandler(archives, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
	g.Go(func() error { return hub.Run(ctx) })
	g.Go(func() error { return sessions.Run(ctx) })
	g.Go(func() error { return markets.Run(ctx, a.cfg.Market.BookInterval.Duration) })
	g.Go(func() error { return deps.Notifier.Run(ctx) })
	if deps.LocalLimiter != nil {
		g.Go(func() error { return pruneLimiter(ctx, deps.LocalLimiter.Prune) })
	}
}

func pruneLimiter(ctx context.Context, prune func(time.Duration) int) error {
	ticker := time.NewTicker(limiterIdle)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			prune(limiterIdle)
		}
	}
}
