// Package identity resolves actor roles for the policy evaluator
package identity

import (
	"context"
	"strings"
)

// Role names handed out by StaticRoleProvider
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// StaticRoleProvider grants admin to a fixed set of actor IDs and user to
// everyone else. The set comes from ADMIN_USER_IDS.
type StaticRoleProvider struct {
	admins map[string]bool
}

// NewStaticRoleProvider creates a provider for the given admin IDs
func NewStaticRoleProvider(adminIDs []string) *StaticRoleProvider {
	admins := make(map[string]bool, len(adminIDs))
	for _, id := range adminIDs {
		if id = strings.TrimSpace(id); id != "" {
			admins[id] = true
		}
	}
	return &StaticRoleProvider{admins: admins}
}

// Roles returns the roles of actorID
func (p *StaticRoleProvider) Roles(ctx context.Context, actorID string) ([]string, error) {
	if p.admins[actorID] {
		return []string{RoleUser, RoleAdmin}, nil
	}
	return []string{RoleUser}, nil
}
