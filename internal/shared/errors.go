package shared

import "errors"

var (
	// ErrActorMissing indicates a mutating request without an actor identity.
	ErrActorMissing = errors.New("actor identity missing")
)
