// services/billing-service/internal/store/sqlstore/migrations.sqlstore.go
package sqlstore

import (
	"context"
	"fmt"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS rules (
		id          UUID PRIMARY KEY,
		name        TEXT NOT NULL,
		price_cents BIGINT NOT NULL CHECK (price_cents >= 0),
		active      BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS visit_notes (
		id         UUID PRIMARY KEY,
		visit_id   UUID NOT NULL UNIQUE,
		text       TEXT NOT NULL DEFAULT '',
		finalized  BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS visit_note_items (
		id               UUID PRIMARY KEY,
		seq              BIGSERIAL,
		note_id          UUID NOT NULL REFERENCES visit_notes(id),
		rule_id          UUID NOT NULL REFERENCES rules(id),
		quantity         INTEGER NOT NULL CHECK (quantity >= 1),
		unit_price_cents BIGINT NOT NULL CHECK (unit_price_cents >= 0),
		CONSTRAINT visit_note_items_note_rule_key UNIQUE (note_id, rule_id)
	);`,
	`CREATE TABLE IF NOT EXISTS billings (
		id          UUID PRIMARY KEY,
		note_id     UUID NOT NULL UNIQUE REFERENCES visit_notes(id),
		total_cents BIGINT NOT NULL CHECK (total_cents >= 0),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS payments (
		id              UUID PRIMARY KEY,
		billing_id      UUID NOT NULL REFERENCES billings(id),
		amount_cents    BIGINT NOT NULL CHECK (amount_cents > 0),
		method          TEXT NOT NULL CHECK (method IN ('cash', 'card')),
		reference       TEXT,
		created_by      TEXT,
		created_by_name TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS payments_billing_reference_key
		ON payments (billing_id, reference) WHERE reference IS NOT NULL;`,
	`CREATE INDEX IF NOT EXISTS payments_created_at_idx ON payments (created_at);`,
	`CREATE TABLE IF NOT EXISTS settlement_exceptions (
		billing_id      UUID NOT NULL REFERENCES billings(id),
		reference       TEXT NOT NULL,
		unapplied_cents BIGINT NOT NULL CHECK (unapplied_cents > 0),
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (billing_id, reference)
	);`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS rules (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		price_cents INTEGER NOT NULL CHECK (price_cents >= 0),
		active      BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS visit_notes (
		id         TEXT PRIMARY KEY,
		visit_id   TEXT NOT NULL UNIQUE,
		text       TEXT NOT NULL DEFAULT '',
		finalized  BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS visit_note_items (
		seq              INTEGER PRIMARY KEY AUTOINCREMENT,
		id               TEXT NOT NULL UNIQUE,
		note_id          TEXT NOT NULL REFERENCES visit_notes(id),
		rule_id          TEXT NOT NULL REFERENCES rules(id),
		quantity         INTEGER NOT NULL CHECK (quantity >= 1),
		unit_price_cents INTEGER NOT NULL CHECK (unit_price_cents >= 0),
		UNIQUE (note_id, rule_id)
	);`,
	`CREATE TABLE IF NOT EXISTS billings (
		id          TEXT PRIMARY KEY,
		note_id     TEXT NOT NULL UNIQUE REFERENCES visit_notes(id),
		total_cents INTEGER NOT NULL CHECK (total_cents >= 0),
		created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS payments (
		id              TEXT PRIMARY KEY,
		billing_id      TEXT NOT NULL REFERENCES billings(id),
		amount_cents    INTEGER NOT NULL CHECK (amount_cents > 0),
		method          TEXT NOT NULL CHECK (method IN ('cash', 'card')),
		reference       TEXT,
		created_by      TEXT,
		created_by_name TEXT,
		created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS payments_billing_reference_key
		ON payments (billing_id, reference) WHERE reference IS NOT NULL;`,
	`CREATE INDEX IF NOT EXISTS payments_created_at_idx ON payments (created_at);`,
	`CREATE TABLE IF NOT EXISTS settlement_exceptions (
		billing_id      TEXT NOT NULL REFERENCES billings(id),
		reference       TEXT NOT NULL,
		unapplied_cents INTEGER NOT NULL CHECK (unapplied_cents > 0),
		created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (billing_id, reference)
	);`,
}

// Migrate creates the schema. Every statement is idempotent, so it runs on each start-up.
func (db *DB) Migrate(ctx context.Context) error {
	schema := postgresSchema
	if db.dialect == SQLite {
		schema = sqliteSchema
	}
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
