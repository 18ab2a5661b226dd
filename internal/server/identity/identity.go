// Package identity carries the authenticated principal of a request.
//
// Absence is a first-class outcome: FromContext reports whether an identity
// was published, and handlers that need one decide for themselves how to
// react when it is missing.
package identity

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/auth"
)

// Identity is the principal established from a verified access token.
type Identity struct {
	Subject   string
	Roles     []string
	TokenID   string
	ExpiresAt time.Time
}

// FromClaims builds an Identity from verified access-token claims.
func FromClaims(c *auth.Claims) *Identity {
	id := &Identity{
		Subject: c.Subject,
		Roles:   slices.Clone(c.Roles),
		TokenID: c.ID,
	}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time
	}
	return id
}

// HasRole reports whether role was granted to the identity.
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	return slices.Contains(i.Roles, role)
}

// String omits everything but the subject and token id.
func (i *Identity) String() string {
	if i == nil {
		return "<nil>"
	}
	return fmt.Sprintf("Identity{Subject:%q, TokenID:%q}", i.Subject, i.TokenID)
}

type contextKey struct{}

// WithIdentity stores id in ctx. A nil identity leaves ctx unchanged.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	if id == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity published for this request, if any.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(*Identity)
	return id, ok && id != nil
}
