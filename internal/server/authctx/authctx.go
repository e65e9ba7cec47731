package authctx

import (
	"context"

	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/domain"
)

type contextKey string

const actorContextKey contextKey = "currentActor"

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

func FromContext(ctx context.Context) *domain.Actor {
	val, ok := ctx.Value(actorContextKey).(domain.Actor)
	if !ok {
		return nil
	}
	return &val
}
