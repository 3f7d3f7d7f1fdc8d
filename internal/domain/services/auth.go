package services

import "context"

// RoleProvider resolves the current role names of an actor.
// Roles can change between requests, so services ask on every mutation
// and never cache the answer.
type RoleProvider interface {
	// Roles returns the role names held by actorID (empty when none)
	Roles(ctx context.Context, actorID string) ([]string, error)
}
