// services/billing-service/internal/api/error_mapper.go
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	domainErr "github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/domain/errors"
)

// mapError translates domain errors into transport-safe status codes and messages.
// Domain messages are user-actionable; anything unknown is flattened so internals never leak.
func mapError(err error) (int, errorResponse) {
	switch {
	case errors.Is(err, domainErr.ErrUnauthorized):
		return http.StatusUnauthorized, errorResponse{Error: "unauthorized"}
	case errors.Is(err, domainErr.ErrNoteLocked):
		return http.StatusPreconditionFailed, errorResponse{Error: err.Error()}
	case errors.Is(err, domainErr.ErrInvalidInput):
		return http.StatusBadRequest, errorResponse{Error: err.Error()}
	case errors.Is(err, domainErr.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: err.Error()}
	case errors.Is(err, domainErr.ErrConflict):
		return http.StatusConflict, errorResponse{Error: err.Error()}
	case errors.Is(err, domainErr.ErrExternalService):
		retry := domainErr.IsRetryable(err)
		return http.StatusBadGateway, errorResponse{Error: "external service failure, no payment was recorded", Retryable: &retry}
	case errors.Is(err, context.DeadlineExceeded):
		retry := true
		return http.StatusGatewayTimeout, errorResponse{Error: "request timed out", Retryable: &retry}
	case domainErr.IsRetryable(err):
		// Lock or serialization failure in the store.
		retry := true
		return http.StatusServiceUnavailable, errorResponse{Error: "temporarily unavailable", Retryable: &retry}
	}
	//  Fallback (never leak internals)
	return http.StatusInternalServerError, errorResponse{Error: "internal error"}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := mapError(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Any("error", err))
	}
	respondJSON(w, status, body)
}
