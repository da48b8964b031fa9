package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/auth"

	"github.com/stretchr/testify/require"
)

func newAuthService(t *testing.T) (*auth.Service, string, string) {
	t.Helper()
	svc := auth.NewService(auth.NewMemUserStore(), "test-issuer", []byte("test-secret"), time.Hour)
	id, token, err := svc.Register(context.Background(), "alice@example.com", "hunter22")
	require.NoError(t, err)
	return svc, id, token
}

func TestWithAuthResolvesTrader(t *testing.T) {
	svc, id, token := newAuthService(t)

	var got string
	h := WithAuth(svc)(OwnerFunc(func(w http.ResponseWriter, r *http.Request, owner string) {
		got = owner
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, id, got)
}

func TestWithAuthRejectsBadCredentials(t *testing.T) {
	svc, _, _ := newAuthService(t)
	h := WithAuth(svc)(OwnerFunc(func(w http.ResponseWriter, r *http.Request, owner string) {
		t.Fatal("handler must not run")
	}))

	for _, header := range []string{"", "Bearer", "Bearer not-a-token", "Basic dXNlcjpwdw=="} {
		req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

func TestOwnerFuncRequiresAuthenticatedContext(t *testing.T) {
	h := OwnerFunc(func(w http.ResponseWriter, r *http.Request, owner string) {
		t.Fatal("handler must not run")
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/me", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInternalAuth(t *testing.T) {
	h := InternalAuth("sekret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/internal/deposits", nil)
	req.Header.Set(internalTokenHeader, "sekret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/internal/deposits", nil)
	req.Header.Set(internalTokenHeader, "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
