package auth

import (
	"context"

	"github.com/google/uuid"
)

type identityKey struct{}

// WithIdentity returns a context carrying a user id whose token has already
// been verified. Only the authentication middleware should call it.
func WithIdentity(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, identityKey{}, userID)
}

// IdentityFrom returns the verified user id stored by WithIdentity.
func IdentityFrom(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(identityKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}
