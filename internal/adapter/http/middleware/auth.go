package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	wrap "github.com/Temutjin2k/ride-match/pkg/logger/wrapper"
)

var errInvalidAuthHeader = errors.New("invalid Authorization header format")

// --- base auth middleware ---

// Auth validates JWT and injects the caller identity into context.
// Missing token means anonymous caller, protected endpoints answer 401 via RequireRoles.
// Browsers can't set headers on a websocket handshake, so the token may come as ?token= too.
func (h *Middleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token, err := tokenFromRequest(r)
		if err != nil {
			errorResponse(w, http.StatusUnauthorized, err.Error())
			return
		}
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := h.auth.Validate(ctx, token)
		if err != nil {
			h.log.Warn(wrap.ErrorCtx(ctx, err), "failed to authenticate user", "error", err.Error())
			errorResponse(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		ctx = wrap.WithUserID(ctx, identity.UserID.String())
		next.ServeHTTP(w, r.WithContext(models.WithIdentity(ctx, identity)))
	})
}

// RequireRoles wraps a handler and allows only callers with one of the given roles.
// Without roles any authenticated caller passes.
func (h *Middleware) RequireRoles(next http.HandlerFunc, allowedRoles ...types.UserRole) http.Handler {
	allowed := make(map[types.UserRole]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := models.IdentityFromContext(r.Context())
		if !ok {
			errorResponse(w, http.StatusUnauthorized, "authorization required")
			return
		}
		if len(allowed) > 0 {
			if _, ok := allowed[identity.Role]; !ok {
				errorResponse(w, http.StatusForbidden, "forbidden: insufficient role")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// --- token lookup ---

func tokenFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		return extractBearerToken(header)
	}
	return r.URL.Query().Get("token"), nil
}

func extractBearerToken(header string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", errInvalidAuthHeader
	}
	return parts[1], nil
}
