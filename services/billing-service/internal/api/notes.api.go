// services/billing-service/internal/api/notes.api.go
package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	billingtypes "github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/billingTypes"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/pricing"
)

// pathID parses a uuid route parameter, writing a 400 when it is malformed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) createNote(w http.ResponseWriter, r *http.Request) {
	var req createNoteRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	note, err := h.deps.Items.CreateNote(r.Context(), uuid.MustParse(req.VisitID), req.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, noteResponse{
		ID:        note.ID,
		VisitID:   note.VisitID,
		Text:      note.Text,
		Finalized: note.Finalized,
		CreatedAt: note.CreatedAt,
	})
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	noteID, ok := pathID(w, r, "noteID")
	if !ok {
		return
	}
	items, err := h.deps.Items.ListByNote(r.Context(), noteID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]itemResponse, 0, len(items))
	for _, i := range items {
		out = append(out, toItemResponse(i))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	noteID, ok := pathID(w, r, "noteID")
	if !ok {
		return
	}
	var req addItemRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := h.deps.Items.AddItem(r.Context(), noteID, uuid.MustParse(req.RuleID), req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toItemResponse(*item))
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(w, r, "itemID")
	if !ok {
		return
	}
	var req updateItemRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := h.deps.Items.UpdateQuantity(r.Context(), itemID, req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toItemResponse(*item))
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(w, r, "itemID")
	if !ok {
		return
	}
	if err := h.deps.Items.RemoveItem(r.Context(), itemID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	noteID, ok := pathID(w, r, "noteID")
	if !ok {
		return
	}
	p, err := h.deps.Items.Preview(r.Context(), noteID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toPreviewResponse(p))
}

func (h *Handler) finalize(w http.ResponseWriter, r *http.Request) {
	noteID, ok := pathID(w, r, "noteID")
	if !ok {
		return
	}
	if _, err := h.deps.Finalizer.Finalize(r.Context(), noteID); err != nil {
		h.fail(w, r, err)
		return
	}
	sum, err := h.deps.Ledger.GetSummary(r.Context(), noteID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toSummaryResponse(sum))
}

func (h *Handler) billing(w http.ResponseWriter, r *http.Request) {
	noteID, ok := pathID(w, r, "noteID")
	if !ok {
		return
	}
	sum, err := h.deps.Ledger.GetSummary(r.Context(), noteID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toSummaryResponse(sum))
}

func (h *Handler) upsertRule(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := pathID(w, r, "ruleID")
	if !ok {
		return
	}
	var req ruleRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	cents, err := billingtypes.ToMinorUnits(req.Price)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	rule := &pricing.Rule{
		ID:         ruleID,
		Name:       strings.TrimSpace(req.Name),
		PriceCents: cents,
		Active:     req.Active == nil || *req.Active,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := pricing.ValidateRule(rule); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.deps.Rules.UpsertRule(r.Context(), rule); err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ruleResponse{
		ID:        rule.ID,
		Name:      rule.Name,
		Price:     money(rule.PriceCents),
		Active:    rule.Active,
		UpdatedAt: rule.UpdatedAt,
	})
}
