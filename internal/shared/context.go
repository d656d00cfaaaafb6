package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the acting user's identity in context. Identity is
// asserted by an upstream provider; the ledger only records it.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor identity from context.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorContextKey{}).(string)
	return actor
}
