package seed

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/dltaller/internal/db"
	"github.com/Simplici0/dltaller/internal/migrations"
)

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dbPath := filepath.Join(t.TempDir(), "seed-test.db")
	database, err := db.Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	defer database.Close()

	if err := migrations.Up(ctx, database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	cfg := Config{GlobalIndirectPct: decimal.NewFromInt(10)}

	for i := 0; i < 10; i++ {
		stats, err := Run(ctx, database, cfg)
		if err != nil {
			t.Fatalf("run seed (iteration=%d): %v", i, err)
		}
		if i == 0 {
			if stats.Inserts == 0 {
				t.Fatalf("expected inserts in first run, got 0")
			}
			continue
		}
		if stats.Inserts != 0 {
			t.Fatalf("expected 0 inserts in iteration %d, got %d", i, stats.Inserts)
		}
	}

	assertCount(t, database, `SELECT COUNT(*) FROM uom`, nil, 2)
	assertCount(t, database, `SELECT COUNT(*) FROM products WHERE kind = ?`, "MP", 2)
	assertCount(t, database, `SELECT COUNT(*) FROM products WHERE kind = ?`, "PT", 1)
	assertCount(t, database, `SELECT COUNT(*) FROM purchase_items`, nil, 2)
	assertCount(t, database, `SELECT COUNT(*) FROM settings`, nil, 3)
	assertCount(t, database, `SELECT COUNT(*) FROM recipes WHERE name = ?`, DemoRecipeName, 1)
	assertCount(t, database, `SELECT COUNT(*) FROM recipe_items`, nil, 2)
	assertCount(t, database, `SELECT COUNT(*) FROM batches WHERE produced_on = ?`, DemoBatchDate, 1)
	assertCount(t, database, `SELECT COUNT(*) FROM employees`, nil, 2)
	assertCount(t, database, `SELECT COUNT(*) FROM payroll_weeks WHERE week_start = ?`, DemoWeekStart, 1)
	assertCount(t, database, `SELECT COUNT(*) FROM payroll_details`, nil, 2)
	assertCount(t, database, `SELECT COUNT(*) FROM payroll_days`, nil, 4)
	assertCount(t, database, `SELECT COUNT(*) FROM payroll_payments`, nil, 1)
}

func TestRunKeepsExistingSettings(t *testing.T) {
	ctx := context.Background()

	database, err := db.Open(ctx, filepath.Join(t.TempDir(), "seed-settings.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	defer database.Close()

	if err := migrations.Up(ctx, database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	if _, err := database.ExecContext(ctx, `INSERT INTO settings (key, value) VALUES ('global_indirect_pct', '25')`); err != nil {
		t.Fatalf("insert setting: %v", err)
	}

	if _, err := Run(ctx, database, Config{GlobalIndirectPct: decimal.NewFromInt(10)}); err != nil {
		t.Fatalf("run seed: %v", err)
	}

	var value string
	if err := database.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = 'global_indirect_pct'`).Scan(&value); err != nil {
		t.Fatalf("query setting: %v", err)
	}
	if value != "25" {
		t.Fatalf("expected existing setting to be kept, got %q", value)
	}
}

func assertCount(t *testing.T, database *sql.DB, query string, args any, expected int) {
	t.Helper()

	var count int
	var err error
	switch v := args.(type) {
	case nil:
		err = database.QueryRow(query).Scan(&count)
	case []any:
		err = database.QueryRow(query, v...).Scan(&count)
	default:
		err = database.QueryRow(query, v).Scan(&count)
	}
	if err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != expected {
		t.Fatalf("expected count %d for %q, got %d", expected, query, count)
	}
}
