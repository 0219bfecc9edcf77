// services/billing-service/internal/payment/intent_attributes.payment.go
package payment

import (
	"strings"
	"unicode/utf8"

	billingtypes "github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/billingTypes"
	"github.com/google/uuid"
)

// Gateway metadata keys. The settlement callback has no user session, so this bag is
// the only way a card payment can be attributed to the staff member who opened it.
const (
	metaBillingID = "billing_id"
	metaNoteID    = "note_id"
	metaActorID   = "posted_by_id"
	metaActorName = "posted_by_name"
	metaActorRole = "posted_by_role"

	maxAttributeLen = 200
)

// IntentAttributes is the typed attribute bag carried on a payment intent.
type IntentAttributes struct {
	BillingID uuid.UUID
	NoteID    uuid.UUID
	Actor     billingtypes.Actor
}

// Metadata encodes the bag for the gateway. Empty actor fields are omitted.
func (a IntentAttributes) Metadata() map[string]string {
	md := map[string]string{
		metaBillingID: a.BillingID.String(),
		metaNoteID:    a.NoteID.String(),
	}
	put := func(k, v string) {
		if v = clean(v); v != "" {
			md[k] = v
		}
	}
	put(metaActorID, a.Actor.ID)
	put(metaActorName, a.Actor.Name)
	put(metaActorRole, a.Actor.Role)
	return md
}

// ParseIntentAttributes reads the bag back from untrusted callback metadata.
// A missing or unparsable billing id is an error; every other field degrades to empty.
func ParseIntentAttributes(md map[string]string) (IntentAttributes, error) {
	var a IntentAttributes

	raw := strings.TrimSpace(md[metaBillingID])
	if raw == "" {
		return a, ErrMissingBilling
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return a, ErrInvalidBillingID
	}
	a.BillingID = id

	if noteID, err := uuid.Parse(strings.TrimSpace(md[metaNoteID])); err == nil {
		a.NoteID = noteID
	}
	a.Actor = billingtypes.Actor{
		ID:   clean(md[metaActorID]),
		Name: clean(md[metaActorName]),
		Role: clean(md[metaActorRole]),
	}
	return a, nil
}

// clean trims, drops invalid UTF-8 and bounds the length of a metadata value.
func clean(v string) string {
	v = strings.TrimSpace(strings.ToValidUTF8(v, ""))
	if utf8.RuneCountInString(v) > maxAttributeLen {
		v = string([]rune(v)[:maxAttributeLen])
	}
	return v
}
