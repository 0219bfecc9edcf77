// services/billing-service/internal/store/sqlstore/catalog_store.sqlstore.go
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/pricing"
	"github.com/google/uuid"
)

// CatalogStore implements pricing.Catalog and pricing.CatalogWriter over the rules table.
type CatalogStore struct {
	db *DB
}

func NewCatalogStore(db *DB) *CatalogStore {
	return &CatalogStore{db: db}
}

// LookupRule returns inactive rules too; pricing.TimedCatalog decides what is billable.
func (s *CatalogStore) LookupRule(ctx context.Context, ruleID uuid.UUID) (*pricing.Rule, error) {
	var rule pricing.Rule
	query := `SELECT id, name, price_cents, active, updated_at FROM rules WHERE id = $1`
	if err := sqlx.GetContext(ctx, s.db.conn(ctx), &rule, query, ruleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", pricing.ErrRuleNotFound, ruleID)
		}
		return nil, classify(fmt.Errorf("database error looking up price: %w", err))
	}
	return &rule, nil
}

// UpsertRule creates or replaces a rule. Existing item snapshots are unaffected.
func (s *CatalogStore) UpsertRule(ctx context.Context, rule *pricing.Rule) error {
	if rule.UpdatedAt.IsZero() {
		rule.UpdatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO rules (id, name, price_cents, active, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			price_cents = excluded.price_cents,
			active = excluded.active,
			updated_at = excluded.updated_at`
	_, err := s.db.conn(ctx).ExecContext(ctx, query, rule.ID, rule.Name, rule.PriceCents, rule.Active, rule.UpdatedAt)
	if err != nil {
		return classify(fmt.Errorf("db: failed to upsert rule: %w", err))
	}
	return nil
}
