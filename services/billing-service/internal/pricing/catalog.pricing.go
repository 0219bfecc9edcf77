// services/billing-service/internal/pricing/catalog.pricing.go
package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domainErr "github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/domain/errors"
	"github.com/google/uuid"
)

// TimedCatalog bounds every lookup with a timeout and translates failures into the domain taxonomy.
type TimedCatalog struct {
	inner   Catalog
	timeout time.Duration
}

func NewTimedCatalog(inner Catalog, timeout time.Duration) *TimedCatalog {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TimedCatalog{inner: inner, timeout: timeout}
}

func (c *TimedCatalog) LookupRule(ctx context.Context, ruleID uuid.UUID) (*Rule, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rule, err := c.inner.LookupRule(lookupCtx, ruleID)
	switch {
	case err == nil:
	case errors.Is(err, ErrRuleNotFound), errors.Is(err, domainErr.ErrNotFound):
		return nil, fmt.Errorf("%w: rule %s", domainErr.ErrNotFound, ruleID)
	case errors.Is(err, context.DeadlineExceeded):
		return nil, domainErr.External("price catalog lookup timed out", err, true)
	case errors.Is(err, context.Canceled):
		return nil, err
	default:
		return nil, domainErr.External("price catalog lookup", err, domainErr.IsRetryable(err))
	}
	if !rule.Active {
		return nil, fmt.Errorf("%w: rule %s is inactive", domainErr.ErrNotFound, ruleID)
	}
	return rule, nil
}

// ValidateRule checks an admin-supplied rule before it is written.
func ValidateRule(rule *Rule) error {
	rule.Name = strings.TrimSpace(rule.Name)
	if rule.ID == uuid.Nil {
		return fmt.Errorf("%w: rule id is required", domainErr.ErrInvalidInput)
	}
	if rule.Name == "" {
		return fmt.Errorf("%w: rule name is required", domainErr.ErrInvalidInput)
	}
	if rule.PriceCents < 0 {
		return fmt.Errorf("%w: rule price cannot be negative", domainErr.ErrInvalidInput)
	}
	if rule.PriceCents > MaxPriceCents {
		return fmt.Errorf("%w: rule price cannot exceed %d cents", domainErr.ErrInvalidInput, MaxPriceCents)
	}
	return nil
}
