// services/billing-service/internal/billingTypes/types.billing.go
package billingtypes

import (
	"errors"

	"github.com/shopspring/decimal"
)

// PaymentMethod is how money reached the clinic.
type PaymentMethod string

const (
	MethodCash PaymentMethod = "cash"
	MethodCard PaymentMethod = "card"
)

func (m PaymentMethod) Valid() bool {
	return m == MethodCash || m == MethodCard
}

// Staff roles carried in the caller identity.
const (
	RoleAdmin        = "admin"
	RoleReceptionist = "receptionist"
	RoleDoctor       = "doctor"
)

// MinChargeCents is the smallest amount the card gateway accepts ($0.50).
const MinChargeCents int64 = 50

// DefaultCurrency is the only currency the clinic bills in.
const DefaultCurrency = "usd"

var ErrAmountOutOfRange = errors.New("amount does not fit in minor units")

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a decimal amount into cents, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	cents := amount.Mul(hundred).Round(0)
	if !cents.IsInteger() || cents.Abs().GreaterThan(decimal.NewFromInt(1<<53)) {
		return 0, ErrAmountOutOfRange
	}
	return cents.IntPart(), nil
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Actor is the authenticated staff member behind a request.
// Webhook-driven payments carry whatever actor was attached to the intent, if any.
type Actor struct {
	ID   string
	Name string
	Role string
}
