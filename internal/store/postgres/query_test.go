package postgres

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/domain"
)

func TestBuildListQuery(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	until := since.Add(time.Hour)

	cases := []struct {
		name     string
		where    []filter
		opts     domain.ListOpts
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "bare",
			wantSQL: "SELECT x FROM t ORDER BY ts DESC",
		},
		{
			name:     "filter and page",
			where:    []filter{{"pair =", "BTC/USDT"}},
			opts:     domain.ListOpts{Limit: 50, Offset: 100},
			wantSQL:  "SELECT x FROM t WHERE pair = $1 ORDER BY ts DESC LIMIT $2 OFFSET $3",
			wantArgs: []any{"BTC/USDT", 50, 100},
		},
		{
			name:     "time bounds",
			where:    []filter{{"session_id =", "s1"}},
			opts:     domain.ListOpts{Since: &since, Until: &until, Limit: 10},
			wantSQL:  "SELECT x FROM t WHERE session_id = $1 AND ts >= $2 AND ts <= $3 ORDER BY ts DESC LIMIT $4",
			wantArgs: []any{"s1", since, until, 10},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sql, args := buildListQuery("SELECT x FROM t", "ts", tc.where, tc.opts)
			if sql != tc.wantSQL {
				t.Fatalf("sql = %q\nwant  %q", sql, tc.wantSQL)
			}
			if !reflect.DeepEqual(args, tc.wantArgs) {
				t.Fatalf("args = %v, want %v", args, tc.wantArgs)
			}
		})
	}
}

func TestMigrationFiles(t *testing.T) {
	names, err := migrationFiles()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) == 0 || names[0] != "001_init.sql" {
		t.Fatalf("migrations = %v", names)
	}
	data, err := migrationsFS.ReadFile("migrations/" + names[0])
	if err != nil {
		t.Fatal(err)
	}
	for _, table := range []string{"executed_trades", "audit_log"} {
		if !strings.Contains(string(data), "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("initial migration does not create %s", table)
		}
	}
}

func TestDSN(t *testing.T) {
	got := DSN(ClientConfig{Host: "db", Database: "tradedesk", User: "u", Password: "p"})
	want := "postgres://u:p@db:5432/tradedesk?sslmode=disable"
	if got != want {
		t.Fatalf("DSN = %q, want %q", got, want)
	}
	if got := DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}); got != "postgres://x" {
		t.Fatalf("explicit DSN not preferred: %q", got)
	}
}
