// services/billing-service/internal/api/dto.api.go
package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	billingtypes "github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/billingTypes"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/ledger"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/reports"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/visitnote"
)

// Money crosses the wire as a decimal string with two places ("55.50").
func money(cents int64) string {
	return billingtypes.FromMinorUnits(cents).StringFixed(2)
}

type createNoteRequest struct {
	VisitID string `json:"visit_id" validate:"required,uuid"`
	Text    string `json:"text" validate:"max=20000"`
}

type noteResponse struct {
	ID        uuid.UUID `json:"id"`
	VisitID   uuid.UUID `json:"visit_id"`
	Text      string    `json:"text"`
	Finalized bool      `json:"finalized"`
	CreatedAt time.Time `json:"created_at"`
}

type addItemRequest struct {
	RuleID   string `json:"rule_id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,min=1,max=10000"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=10000"`
}

type itemResponse struct {
	ID        uuid.UUID `json:"id"`
	NoteID    uuid.UUID `json:"note_id"`
	RuleID    uuid.UUID `json:"rule_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
	LineTotal string    `json:"line_total"`
}

func toItemResponse(i visitnote.BillableItem) itemResponse {
	return itemResponse{
		ID:        i.ID,
		NoteID:    i.NoteID,
		RuleID:    i.RuleID,
		Quantity:  i.Quantity,
		UnitPrice: money(i.UnitPriceCents),
		LineTotal: money(i.LineTotalCents()),
	}
}

type previewLineResponse struct {
	ItemID      uuid.UUID `json:"item_id"`
	RuleID      uuid.UUID `json:"rule_id"`
	Description string    `json:"description"`
	Quantity    int       `json:"quantity"`
	UnitPrice   string    `json:"unit_price"`
	LineTotal   string    `json:"line_total"`
}

type previewResponse struct {
	NoteID    uuid.UUID             `json:"note_id"`
	VisitID   uuid.UUID             `json:"visit_id"`
	Finalized bool                  `json:"finalized"`
	Lines     []previewLineResponse `json:"lines"`
	Total     string                `json:"total"`
}

func toPreviewResponse(p *visitnote.Preview) previewResponse {
	out := previewResponse{
		NoteID:    p.NoteID,
		VisitID:   p.VisitID,
		Finalized: p.Finalized,
		Lines:     make([]previewLineResponse, 0, len(p.Lines)),
		Total:     money(p.TotalCents),
	}
	for _, l := range p.Lines {
		out.Lines = append(out.Lines, previewLineResponse{
			ItemID:      l.ItemID,
			RuleID:      l.RuleID,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   money(l.UnitPriceCents),
			LineTotal:   money(l.LineTotalCents),
		})
	}
	return out
}

type paymentResponse struct {
	ID            uuid.UUID `json:"id"`
	BillingID     uuid.UUID `json:"billing_id"`
	Amount        string    `json:"amount"`
	Method        string    `json:"method"`
	Reference     *string   `json:"reference,omitempty"`
	CreatedBy     *string   `json:"created_by,omitempty"`
	CreatedByName *string   `json:"created_by_name,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toPaymentResponses(payments []ledger.Payment) []paymentResponse {
	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, paymentResponse{
			ID:            p.ID,
			BillingID:     p.BillingID,
			Amount:        money(p.AmountCents),
			Method:        string(p.Method),
			Reference:     p.Reference,
			CreatedBy:     p.CreatedBy,
			CreatedByName: p.CreatedByName,
			CreatedAt:     p.CreatedAt,
		})
	}
	return out
}

type summaryResponse struct {
	BillingID uuid.UUID         `json:"billing_id"`
	NoteID    uuid.UUID         `json:"note_id"`
	Total     string            `json:"total"`
	Paid      string            `json:"paid"`
	Balance   string            `json:"balance"`
	Payments  []paymentResponse `json:"payments"`
}

func toSummaryResponse(s *ledger.Summary) summaryResponse {
	return summaryResponse{
		BillingID: s.BillingID,
		NoteID:    s.NoteID,
		Total:     money(s.TotalCents),
		Paid:      money(s.PaidCents),
		Balance:   money(s.BalanceCents),
		Payments:  toPaymentResponses(s.Payments),
	}
}

type cashRequest struct {
	NoteID    string          `json:"note_id" validate:"required,uuid"`
	Amount    decimal.Decimal `json:"amount"`
	Reference *string         `json:"reference" validate:"omitempty,max=200"`
}

type intentRequest struct {
	NoteID string           `json:"note_id" validate:"required,uuid"`
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

type intentResponse struct {
	IntentID     string    `json:"intent_id"`
	ClientSecret string    `json:"client_secret"`
	BillingID    uuid.UUID `json:"billing_id"`
	Amount       string    `json:"amount"`
}

type ruleRequest struct {
	Name   string          `json:"name" validate:"required,max=200"`
	Price  decimal.Decimal `json:"price"`
	Active *bool           `json:"active"`
}

type ruleResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Price     string    `json:"price"`
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updated_at"`
}

type collectionsResponse struct {
	Date     string            `json:"date"`
	Total    string            `json:"total"`
	ByMethod map[string]string `json:"by_method"`
	Payments []paymentResponse `json:"payments"`
}

func toCollectionsResponse(c *reports.Collections) collectionsResponse {
	byMethod := make(map[string]string, len(c.ByMethodCents))
	for m, cents := range c.ByMethodCents {
		byMethod[string(m)] = money(cents)
	}
	return collectionsResponse{
		Date:     c.Date.Format(time.DateOnly),
		Total:    money(c.TotalCents),
		ByMethod: byMethod,
		Payments: toPaymentResponses(c.Payments),
	}
}

type outstandingBill struct {
	BillingID uuid.UUID `json:"billing_id"`
	NoteID    uuid.UUID `json:"note_id"`
	Total     string    `json:"total"`
	Paid      string    `json:"paid"`
	Balance   string    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

type outstandingResponse struct {
	Balance string            `json:"balance"`
	Bills   []outstandingBill `json:"bills"`
}

func toOutstandingResponse(rep *reports.Receivables) outstandingResponse {
	bills := make([]outstandingBill, 0, len(rep.Bills))
	for _, b := range rep.Bills {
		bills = append(bills, outstandingBill{
			BillingID: b.BillingID,
			NoteID:    b.NoteID,
			Total:     money(b.TotalCents),
			Paid:      money(b.PaidCents),
			Balance:   money(b.BalanceCents),
			CreatedAt: b.CreatedAt,
		})
	}
	return outstandingResponse{Balance: money(rep.BalanceCents), Bills: bills}
}
