package models

import (
	"context"

	"github.com/Temutjin2k/ride-match/internal/domain/types"
	"github.com/google/uuid"
)

// Identity is the authenticated caller of an operation.
type Identity struct {
	UserID uuid.UUID
	Role   types.UserRole
}

func (i Identity) IsRider() bool {
	return i.Role == types.RiderRole
}

func (i Identity) IsCustomer() bool {
	return i.Role == types.CustomerRole
}

type identityCtxKey struct{}

// WithIdentity stores the authenticated caller in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// IdentityFromContext returns the caller, ok is false for anonymous requests.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(Identity)
	return id, ok
}
