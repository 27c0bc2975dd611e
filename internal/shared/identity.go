package shared

import (
	"context"

	"github.com/google/uuid"
)

// Role is the coarse role assigned by the upstream identity provider.
type Role string

const (
	RoleOwner Role = "OWNER"
	RoleAdmin Role = "ADMIN"
	RoleStaff Role = "STAFF"
)

// Identity is the (tenant, actor, role) triple the gateway resolves for every
// request. The core trusts it and re-checks tenant scope on every query, never
// the role.
type Identity struct {
	TenantID uuid.UUID
	ActorID  uuid.UUID
	Role     Role
}

// Valid reports whether the identity carries both tenant and actor.
func (id Identity) Valid() bool {
	return id.TenantID != uuid.Nil && id.ActorID != uuid.Nil
}

type identityContextKey struct{}

// ContextWithIdentity stores the resolved identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}
