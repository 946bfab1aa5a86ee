// Package store reads and writes the persisted records the costing and payroll
// engines run on.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/dltaller/internal/apperror"
	"github.com/Simplici0/dltaller/internal/civil"
)

// Setting keys.
const (
	KeyGlobalIndirectPct = "global_indirect_pct"
	KeyDefaultMarginPct  = "default_margin_pct"
	KeyDefaultTaxPct     = "default_tax_pct"
)

// Store is a sqlite-backed collaborator.
type Store struct {
	db *sql.DB
}

// New returns a Store over an open database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Settings are workshop-wide defaults. Missing margin and tax read as zero; a missing
// global indirect percentage stays null so callers can fall back to configuration.
type Settings struct {
	GlobalIndirectPct decimal.NullDecimal `json:"globalIndirectPct"`
	DefaultMarginPct  decimal.Decimal     `json:"defaultMarginPct"`
	DefaultTaxPct     decimal.Decimal     `json:"defaultTaxPct"`
}

// GetSettings loads the workshop-wide defaults.
func (s *Store) GetSettings(ctx context.Context) (Settings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return Settings{}, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	settings := Settings{
		DefaultMarginPct: decimal.Zero,
		DefaultTaxPct:    decimal.Zero,
	}
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return Settings{}, fmt.Errorf("scan setting: %w", err)
		}
		value, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return Settings{}, fmt.Errorf("parse setting %s=%q: %w", key, raw, err)
		}
		switch key {
		case KeyGlobalIndirectPct:
			settings.GlobalIndirectPct = decimal.NewNullDecimal(value)
		case KeyDefaultMarginPct:
			settings.DefaultMarginPct = value
		case KeyDefaultTaxPct:
			settings.DefaultTaxPct = value
		}
	}
	if err := rows.Err(); err != nil {
		return Settings{}, fmt.Errorf("iterate settings: %w", err)
	}

	return settings, nil
}

// SetGlobalIndirectPct stores the global indirect percentage.
func (s *Store) SetGlobalIndirectPct(ctx context.Context, pct decimal.Decimal) error {
	if pct.IsNegative() {
		return apperror.InvalidInput("globalIndirectPct", "must be >= 0, got %s", pct.String())
	}
	return s.setSetting(ctx, KeyGlobalIndirectPct, pct)
}

func (s *Store) setSetting(ctx context.Context, key string, value decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, key, value.String())
	if err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}

func scanDate(raw string) (civil.Date, error) {
	return civil.Parse(strings.TrimSpace(raw))
}

func notFound(err error, kind string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NotFound(kind, id)
	}
	return fmt.Errorf("query %s %d: %w", kind, id, err)
}
