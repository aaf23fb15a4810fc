package auth

import (
	"context"

	"github.com/fjod/go_pos/internal/domain"
)

type ctxKey struct{}

type Identity struct {
	UserID string
	Name   string
	Role   domain.Role
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && id.UserID != ""
}
