package middleware_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Temutjin2k/ride-match/internal/adapter/http/middleware"
	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	"github.com/Temutjin2k/ride-match/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authFunc func(ctx context.Context, token string) (models.Identity, error)

func (f authFunc) Validate(ctx context.Context, token string) (models.Identity, error) {
	return f(ctx, token)
}

var _ middleware.AuthService = authFunc(nil)

func newMiddleware(riderID uuid.UUID) *middleware.Middleware {
	auth := authFunc(func(_ context.Context, token string) (models.Identity, error) {
		if token != "good" {
			return models.Identity{}, errors.New("bad token")
		}
		return models.Identity{UserID: riderID, Role: types.RiderRole}, nil
	})
	return middleware.NewMiddleware(auth, logger.New(io.Discard, "test", logger.LevelError))
}

func TestAuthAndRequireRoles(t *testing.T) {
	riderID := uuid.New()
	m := newMiddleware(riderID)

	var seen models.Identity
	ok := func(w http.ResponseWriter, r *http.Request) {
		seen, _ = models.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}

	tests := []struct {
		name   string
		roles  []types.UserRole
		header string
		query  string
		want   int
	}{
		{name: "anonymous", want: http.StatusUnauthorized},
		{name: "malformed header", header: "Token good", want: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "valid header", header: "Bearer good", want: http.StatusNoContent},
		{name: "valid query token", query: "?token=good", want: http.StatusNoContent},
		{name: "role allowed", roles: []types.UserRole{types.RiderRole}, header: "Bearer good", want: http.StatusNoContent},
		{name: "role forbidden", roles: []types.UserRole{types.CustomerRole}, header: "Bearer good", want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := m.Auth(m.RequireRoles(ok, tt.roles...))

			req := httptest.NewRequest(http.MethodGet, "/rides/open"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusNoContent {
				assert.Equal(t, riderID, seen.UserID)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	m := newMiddleware(uuid.New())
	h := m.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	generated := rec.Header().Get(middleware.RequestIDHeader)
	_, err := uuid.Parse(generated)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(middleware.RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(middleware.RequestIDHeader))
}

func TestRecover(t *testing.T) {
	m := newMiddleware(uuid.New())
	h := m.Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "close", rec.Header().Get("Connection"))
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := middleware.Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}), mw("a"), mw("b"), mw("c"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}
