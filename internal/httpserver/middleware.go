package httpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/auth"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/httputil"
)

type ctxKey string

const traderIDKey ctxKey = "trader_id"

const internalTokenHeader = "X-Internal-Token"

// bearerToken extracts the credential from an Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", false
	}
	return token, true
}

// WithAuth resolves the bearer token to a trader id and stashes it in
// the request context for OwnerFunc to pick up.
func WithAuth(svc *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "missing bearer token"})
				return
			}
			traderID, err := svc.ParseToken(token)
			if err != nil {
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "invalid token"})
				return
			}
			ctx := context.WithValue(r.Context(), traderIDKey, traderID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func UserID(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(traderIDKey).(string)
	return id, ok && id != ""
}

// OwnerFunc adapts an owner-scoped handler to http.HandlerFunc. Routes
// wrapped with it must sit behind WithAuth; a request that reaches one
// without an authenticated trader is rejected here.
func OwnerFunc(h func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := UserID(r)
		if !ok {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
			return
		}
		h(w, r, owner)
	}
}

// InternalAuth gates the operator surface behind a shared token.
func InternalAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get(internalTokenHeader) != token {
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "invalid internal token"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
