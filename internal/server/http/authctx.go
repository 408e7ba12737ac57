package httpserver

import (
	"context"

	"github.com/gofrs/uuid/v5"
)

type ctxKey string

const actorKey ctxKey = "buyers.actor"

// WithActor stores the authenticated identity in ctx.
func WithActor(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, actorKey, id)
}

// ActorFromCtx returns the authenticated identity, or uuid.Nil when there is none.
func ActorFromCtx(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(actorKey).(uuid.UUID)
	return id
}
