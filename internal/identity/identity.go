package identity

import (
	"context"

	"github.com/lguportal/portal/internal/models"
)

// Identity describes the authenticated caller of a request. It is built by the
// session middleware and carried in the request context so services can
// attribute audit entries without global state.
type Identity struct {
	UserID    uint
	Email     string
	Role      models.Role
	SessionID string
	CSRFToken string
	IPAddress string
	UserAgent string
	ViaBearer bool
}

// Authenticated reports whether the identity belongs to a logged-in user.
func (i Identity) Authenticated() bool {
	return i.UserID != 0
}

// HasRole reports an exact role match.
func (i Identity) HasRole(role models.Role) bool {
	return i.Authenticated() && i.Role == role
}

type contextKey struct{}

// WithIdentity returns a derived context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext extracts the identity stored by WithIdentity. The boolean is
// false when no authenticated identity is present.
func FromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(contextKey{}).(Identity)
	if !ok || !id.Authenticated() {
		return Identity{}, false
	}
	return id, true
}

// Client carries request metadata for anonymous callers, such as a failed login.
type Client struct {
	IPAddress string
	UserAgent string
}

type clientKey struct{}

// WithClient stores request metadata on the context.
func WithClient(ctx context.Context, client Client) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, clientKey{}, client)
}

// ClientFromContext returns request metadata, preferring the authenticated identity.
func ClientFromContext(ctx context.Context) Client {
	if id, ok := FromContext(ctx); ok {
		return Client{IPAddress: id.IPAddress, UserAgent: id.UserAgent}
	}
	if ctx == nil {
		return Client{}
	}
	client, _ := ctx.Value(clientKey{}).(Client)
	return client
}
