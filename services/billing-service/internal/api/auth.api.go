// services/billing-service/internal/api/auth.api.go
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	billingtypes "github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/billingTypes"
)

type ctxKey string

const ctxActor ctxKey = "actor"

// staffClaims is what the upstream auth service puts in a staff token.
type staffClaims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenString := strings.TrimSpace(header[len("Bearer "):])
		token, err := jwt.ParseWithClaims(tokenString, &staffClaims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return h.secret, nil
		}, jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		claims, ok := token.Claims.(*staffClaims)
		if !ok || claims.Subject == "" {
			respondError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}
		switch claims.Role {
		case billingtypes.RoleAdmin, billingtypes.RoleReceptionist, billingtypes.RoleDoctor:
		default:
			respondError(w, http.StatusForbidden, "unknown role")
			return
		}

		actor := billingtypes.Actor{ID: claims.Subject, Name: strings.TrimSpace(claims.Name), Role: claims.Role}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxActor, actor)))
	})
}

// requireRole lets the request through only for the listed roles.
func requireRole(allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			current := actorFrom(r.Context()).Role
			for _, role := range allowed {
				if current == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			respondError(w, http.StatusForbidden, "insufficient permissions")
		})
	}
}

func actorFrom(ctx context.Context) billingtypes.Actor {
	actor, _ := ctx.Value(ctxActor).(billingtypes.Actor)
	return actor
}
