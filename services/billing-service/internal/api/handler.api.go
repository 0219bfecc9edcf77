// services/billing-service/internal/api/handler.api.go
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	billingtypes "github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/billingTypes"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/invoice"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/ledger"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/payment"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/pricing"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/reports"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/visitnote"
)

// The slices of each service the HTTP layer calls.
type (
	ItemService interface {
		CreateNote(ctx context.Context, visitID uuid.UUID, text string) (*visitnote.VisitNote, error)
		AddItem(ctx context.Context, noteID, ruleID uuid.UUID, quantity int) (*visitnote.BillableItem, error)
		UpdateQuantity(ctx context.Context, itemID uuid.UUID, quantity int) (*visitnote.BillableItem, error)
		RemoveItem(ctx context.Context, itemID uuid.UUID) error
		ListByNote(ctx context.Context, noteID uuid.UUID) ([]visitnote.BillableItem, error)
		Preview(ctx context.Context, noteID uuid.UUID) (*visitnote.Preview, error)
	}
	Finalizer interface {
		Finalize(ctx context.Context, noteID uuid.UUID) (*invoice.Billing, error)
	}
	LedgerReader interface {
		GetSummary(ctx context.Context, noteID uuid.UUID) (*ledger.Summary, error)
	}
	PaymentService interface {
		RecordCash(ctx context.Context, actor billingtypes.Actor, noteID uuid.UUID, amount decimal.Decimal, reference *string) (*ledger.Summary, error)
		CreateIntent(ctx context.Context, actor billingtypes.Actor, noteID uuid.UUID, amount *decimal.Decimal) (*payment.Intent, error)
		HandleSettlementEvent(ctx context.Context, payload []byte, headers map[string]string) error
	}
	ReportService interface {
		Collections(ctx context.Context, day time.Time) (*reports.Collections, error)
		Outstanding(ctx context.Context) (*reports.Receivables, error)
	}
)

// Deps are the services behind the HTTP API.
type Deps struct {
	Items     ItemService
	Finalizer Finalizer
	Ledger    LedgerReader
	Payments  PaymentService
	Reports   ReportService
	Rules     pricing.CatalogWriter
}

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	deps     Deps
	secret   []byte
	validate *validator.Validate
	logger   *slog.Logger
}

// New constructs a Handler. secret is the HS256 key used to verify staff tokens.
func New(deps Deps, secret string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		deps:     deps,
		secret:   []byte(secret),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With(slog.String("component", "HTTP")),
	}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	// Authenticated by the Stripe signature, not by a staff token.
	r.Post("/payments/webhook", h.stripeWebhook)

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)
		editors := requireRole(billingtypes.RoleReceptionist, billingtypes.RoleAdmin)
		admins := requireRole(billingtypes.RoleAdmin)

		pr.Post("/notes", h.createNote)
		pr.Route("/notes/{noteID}", func(r chi.Router) {
			r.Get("/items", h.listItems)
			r.With(editors).Post("/items", h.addItem)
			r.Get("/preview", h.preview)
			r.Post("/finalize", h.finalize)
			r.Get("/billing", h.billing)
		})

		pr.With(editors).Put("/items/{itemID}", h.updateItem)
		pr.With(editors).Delete("/items/{itemID}", h.removeItem)

		pr.Route("/payments", func(r chi.Router) {
			r.Post("/cash", h.recordCash)
			r.Post("/intent", h.createIntent)
		})

		pr.With(admins).Get("/reports/collections", h.collections)
		pr.With(admins).Get("/reports/outstanding", h.outstanding)
		pr.With(admins).Put("/rules/{ruleID}", h.upsertRule)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
