// services/billing-service/internal/pricing/pricing_rules.model.go
package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrRuleNotFound = errors.New("billing rule not found")

// MaxPriceCents caps a catalog price at 1,000,000.00 so quantity * price stays far inside int64.
const MaxPriceCents int64 = 100_000_000

// Rule is a billable service in the clinic price list.
// Items snapshot PriceCents at add-time, so later edits here never change an existing bill.
type Rule struct {
	ID         uuid.UUID `db:"id"`
	Name       string    `db:"name"`
	PriceCents int64     `db:"price_cents"`
	Active     bool      `db:"active"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Catalog is the price lookup the item service consults.
// Implementations return ErrRuleNotFound (wrapped in domain NotFound) for unknown or inactive rules.
type Catalog interface {
	LookupRule(ctx context.Context, ruleID uuid.UUID) (*Rule, error)
}

// CatalogWriter is used by administrators to maintain the price list.
type CatalogWriter interface {
	UpsertRule(ctx context.Context, rule *Rule) error
}
