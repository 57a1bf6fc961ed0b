package migrations

import (
	"testing"

	"solana-dex-bot/internal/storage"
	chstore "solana-dex-bot/internal/storage/clickhouse"
)

func TestEmbeddedMigrations(t *testing.T) {
	pg, err := storage.LoadMigrations(Postgres())
	if err != nil || len(pg) == 0 {
		t.Fatalf("postgres migrations: %d, %v", len(pg), err)
	}
	if pg[0].Version != "001_journal.sql" {
		t.Errorf("first postgres migration = %s", pg[0].Version)
	}

	ch, err := storage.LoadMigrations(Clickhouse())
	if err != nil || len(ch) == 0 {
		t.Fatalf("clickhouse migrations: %d, %v", len(ch), err)
	}
	for _, m := range ch {
		stmts, err := chstore.SplitStatements(m.SQL)
		if err != nil {
			t.Errorf("%s: %v", m.Version, err)
		}
		if len(stmts) == 0 {
			t.Errorf("%s: no statements", m.Version)
		}
	}
}
