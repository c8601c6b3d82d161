package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alanyoungcy/tradedesk/internal/cache/memory"
	"github.com/alanyoungcy/tradedesk/internal/config"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWireStandalone(t *testing.T) {
	cfg := config.Defaults()
	deps, cleanup, err := Wire(context.Background(), &cfg, discard())
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()

	if _, ok := deps.SignalBus.(*memory.SignalBus); !ok {
		t.Fatalf("bus = %T, want in-process bus", deps.SignalBus)
	}
	if deps.LocalLimiter == nil || deps.LockManager == nil {
		t.Fatal("in-process limiter and locks not wired")
	}
	if deps.TradeStore != nil || deps.Archiver != nil || deps.BlobReader != nil {
		t.Fatal("optional backends wired without config")
	}
	if len(deps.Backends) != 0 {
		t.Fatalf("backends = %v, want none", deps.Backends)
	}
	pairs, err := deps.Markets.Pairs(context.Background())
	if err != nil || len(pairs) != 6 {
		t.Fatalf("pairs = %d, %v", len(pairs), err)
	}
	if deps.Notifier == nil || deps.Notifier.Enabled() {
		t.Fatal("notifier should exist with no senders")
	}
}

func TestWireCustomCatalogue(t *testing.T) {
	cfg := config.Defaults()
	cfg.Market.Pairs = []config.PairConfig{{Symbol: "doge/usdt", Price: "0.12", Change: "1", Volume: "1M", Decimals: 4}}
	cfg.Market.DefaultPair = "DOGE/USDT"
	deps, cleanup, err := Wire(context.Background(), &cfg, discard())
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()

	p, err := deps.Markets.Pair(context.Background(), "DOGE/USDT")
	if err != nil {
		t.Fatal(err)
	}
	if p.LastPrice() != "0.1200" {
		t.Fatalf("price = %s, want 0.1200", p.LastPrice())
	}
}

func TestArchiveModesNeedBackends(t *testing.T) {
	cfg := config.Defaults()
	a := New(&cfg, discard())
	deps, cleanup, err := Wire(context.Background(), &cfg, discard())
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()

	if err := a.ArchiveMode(context.Background(), deps); err == nil {
		t.Fatal("archive mode without s3 should fail")
	}
	if err := a.FullMode(context.Background(), deps); err == nil {
		t.Fatal("full mode without s3 should fail")
	}
}

func TestRunUnknownMode(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = "replay"
	a := New(&cfg, discard())
	defer a.Close()
	if err := a.Run(context.Background()); err == nil {
		t.Fatal("unknown mode should fail")
	}
}
