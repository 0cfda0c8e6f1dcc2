package auth

import "context"

// Identity is the verified per-request identity and permission context.
// It is constructed exclusively by the request authorizer (or by the
// login flow at issuance) and injected into the request context;
// handlers must treat it as the only authoritative source of identity.
// Client-supplied values are never consulted.
type Identity struct {
	ActorID     int64
	Email       string
	Name        string
	PrimariaID  int64
	Roles       []RoleClaim
	Permissions []string
	AccessLevel int

	permSet map[string]struct{}
}

// NewIdentity builds an Identity from an actor and its resolved access.
func NewIdentity(actor *Actor, access ResolvedAccess, roles []RoleClaim) *Identity {
	id := &Identity{
		ActorID:     actor.ID,
		Email:       actor.Email,
		Name:        actor.Name,
		PrimariaID:  actor.PrimariaID,
		Roles:       roles,
		Permissions: access.Permissions,
		AccessLevel: access.AccessLevel,
	}
	id.buildSet()
	return id
}

// IdentityFromClaims rebuilds the identity embedded in verified token
// claims. The access level is recomputed from the role claims; the
// permission set is taken as signed, not re-resolved from storage.
func IdentityFromClaims(claims *Claims) *Identity {
	id := &Identity{
		ActorID:     claims.ActorID,
		Email:       claims.Email,
		Name:        claims.Name,
		PrimariaID:  claims.PrimariaID,
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
	}
	for _, role := range claims.Roles {
		if role.AccessLevel > id.AccessLevel {
			id.AccessLevel = role.AccessLevel
		}
	}
	id.buildSet()
	return id
}

func (id *Identity) buildSet() {
	id.permSet = make(map[string]struct{}, len(id.Permissions))
	for _, p := range id.Permissions {
		id.permSet[p] = struct{}{}
	}
}

// HasPermission reports whether the identity holds the named permission.
func (id *Identity) HasPermission(name string) bool {
	if id == nil {
		return false
	}
	_, ok := id.permSet[name]
	return ok
}

// HasAny reports whether the identity holds at least one of the named
// permissions (logical OR).
func (id *Identity) HasAny(names ...string) bool {
	for _, name := range names {
		if id.HasPermission(name) {
			return true
		}
	}
	return false
}

type identityContextKey struct{}

// WithIdentity stores the identity in the context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity from the context. Nil when
// the request was not authenticated.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey{}).(*Identity)
	return id
}
