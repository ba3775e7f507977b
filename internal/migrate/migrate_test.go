package migrate

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestApply_IsIdempotentAndLogsVersion(t *testing.T) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	if err := Apply(ctx, pool, nil); err != nil {
		t.Fatalf("first apply: %v", err)
	}

	core, logs := observer.New(zap.InfoLevel)
	if err := Apply(ctx, pool, zap.New(core)); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	entries := logs.FilterMessage("schema up to date").All()
	if len(entries) != 1 {
		t.Fatalf("expected one up-to-date entry, got %d", len(entries))
	}
	if v, ok := entries[0].ContextMap()["version"].(uint64); !ok || v < 2 {
		t.Fatalf("expected version >= 2, got %v", entries[0].ContextMap()["version"])
	}
}
