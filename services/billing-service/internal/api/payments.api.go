// services/billing-service/internal/api/payments.api.go
package api

import (
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

func (h *Handler) recordCash(w http.ResponseWriter, r *http.Request) {
	var req cashRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	sum, err := h.deps.Payments.RecordCash(r.Context(), actorFrom(r.Context()), uuid.MustParse(req.NoteID), req.Amount, req.Reference)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toSummaryResponse(sum))
}

func (h *Handler) createIntent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	intent, err := h.deps.Payments.CreateIntent(r.Context(), actorFrom(r.Context()), uuid.MustParse(req.NoteID), req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, intentResponse{
		IntentID:     intent.IntentID,
		ClientSecret: intent.ClientSecret,
		BillingID:    intent.BillingID,
		Amount:       money(intent.AmountCents),
	})
}

// stripeWebhook hands the raw body to the coordinator. The signature covers the exact bytes,
// so the body must not be decoded before verification.
func (h *Handler) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}
	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}
	if err := h.deps.Payments.HandleSettlementEvent(r.Context(), payload, headers); err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *Handler) collections(w http.ResponseWriter, r *http.Request) {
	day := time.Now().UTC()
	if raw := r.URL.Query().Get("on"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "on must be a date like 2006-01-02")
			return
		}
		day = parsed
	}
	report, err := h.deps.Reports.Collections(r.Context(), day)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toCollectionsResponse(report))
}

func (h *Handler) outstanding(w http.ResponseWriter, r *http.Request) {
	report, err := h.deps.Reports.Outstanding(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toOutstandingResponse(report))
}
