package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tradedesk.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.Session.TradeLogSize != 10 || cfg.Session.NotificationTTL.Duration != 3*time.Second {
		t.Fatalf("session defaults = %+v", cfg.Session)
	}
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	t.Chdir(t.TempDir()) // keep any developer .env out of the test
	path := writeFile(t, `
mode = "server"

[server]
port = 9100

[session]
trade_log_size = 25
notification_ttl = "5s"

[[market.pairs]]
symbol = "doge/usdt"
price = "0.1234"
change = "-3.5"
vol = "1B"
decimals = 4
`)
	t.Setenv("TRADEDESK_SERVER_PORT", "9200")
	t.Setenv("TRADEDESK_REDIS_ENABLED", "true")
	t.Setenv("TRADEDESK_SERVER_CORS_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9200 {
		t.Errorf("port = %d, env should win", cfg.Server.Port)
	}
	if cfg.Session.TradeLogSize != 25 || cfg.Session.NotificationTTL.Duration != 5*time.Second {
		t.Errorf("session = %+v", cfg.Session)
	}
	if cfg.Session.MaxSessions != 1000 {
		t.Errorf("unset field lost its default: %d", cfg.Session.MaxSessions)
	}
	if !cfg.Redis.Enabled {
		t.Error("redis not enabled from env")
	}
	if got := cfg.Server.CORSOrigins; len(got) != 2 || got[1] != "https://b.example" {
		t.Errorf("cors = %v", got)
	}

	pairs, err := cfg.Market.TradingPairs()
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 1 || pairs[0].Symbol != "DOGE/USDT" || pairs[0].Price.String() != "0.1234" {
		t.Fatalf("pairs = %+v", pairs)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "[server]\nprot = 1\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "server.prot") {
		t.Fatalf("err = %v", err)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "full"
	cfg.LogLevel = "loud"
	cfg.Session.TradeLogSize = 0
	cfg.Market.Depth = 9
	cfg.Market.Pairs = []PairConfig{{Symbol: "X/Y", Price: "cheap"}}
	cfg.Notify.TelegramToken = "t"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{
		"log_level", "trade_log_size", "depth", `price "cheap"`,
		"postgres must be enabled", "s3 must be enabled", "telegram_chat_id",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing %q in:\n%v", want, err)
		}
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Server.APIKey = "key"
	cfg.Postgres.Password = "pw"
	cfg.S3.SecretKey = "s3"
	cfg.Notify.TelegramToken = "tg"

	out := RedactedConfig(&cfg)
	for name, v := range map[string]string{
		"api_key": out.Server.APIKey, "password": out.Postgres.Password,
		"secret_key": out.S3.SecretKey, "telegram": out.Notify.TelegramToken,
	} {
		if v != redacted {
			t.Errorf("%s = %q", name, v)
		}
	}
	if out.Redis.Password != "" {
		t.Errorf("empty secret redacted: %q", out.Redis.Password)
	}
	out.Server.CORSOrigins[0] = "changed"
	if cfg.Server.CORSOrigins[0] == "changed" {
		t.Fatal("redacted copy aliases original slice")
	}
	if cfg.Server.APIKey != "key" {
		t.Fatal("original mutated")
	}
}
