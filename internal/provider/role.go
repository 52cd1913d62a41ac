package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Built-in role definition GUIDs supported out of the box. Additional roles
// can be supplied through configuration.
var DefaultRoleDefinitions = map[string]string{
	"Key Vault Secrets User":        "4633458b-17de-408a-b874-0445c86b69e6",
	"Key Vault Secrets Officer":     "b86a8fe4-44ce-4948-aee5-eccb2c155cd7",
	"Key Vault Reader":              "21090545-7ca7-4776-b22c-e363652d74d2",
	"Storage Blob Data Reader":      "2a2b9908-6ea1-4ae2-8e65-a410df84e7d1",
	"Storage Blob Data Contributor": "ba92f5b4-2d11-453d-a403-e96b0029c9fe",
	"Reader":                        "acdd72a7-3385-48ef-bd42-f606fba81ae7",
	"Contributor":                   "b24988ac-6180-42a0-ab88-20f7382dd24c",
}

// RoleAccess grants and revokes scoped role assignments for non-human
// identities. Assignments are addressed only by the handle returned at
// creation; (principal, scope, role) alone cannot delete one.
type RoleAccess struct {
	authority AuthorityClient
	roles     map[string]string
	now       func() time.Time
}

// NewRoleAccess wires the adapter over a resource authority client.
// Extra role definitions are merged over the built-in set.
func NewRoleAccess(authority AuthorityClient, extraRoles map[string]string) *RoleAccess {
	roles := make(map[string]string, len(DefaultRoleDefinitions)+len(extraRoles))
	for name, id := range DefaultRoleDefinitions {
		roles[name] = id
	}
	for name, id := range extraRoles {
		roles[name] = id
	}
	return &RoleAccess{authority: authority, roles: roles, now: time.Now}
}

// Grant creates a role assignment binding the principal to roleName at scope.
// The returned handle is the full resource identifier of the assignment and
// is the only way to revoke it later.
func (r *RoleAccess) Grant(ctx context.Context, principalID, scope, roleName string, duration time.Duration) (GrantResult, error) {
	definitionID, err := r.roleDefinitionID(roleName, scope)
	if err != nil {
		return GrantResult{}, err
	}

	name := uuid.NewString()
	handle, err := r.authority.CreateAssignment(ctx, scope, name, principalID, definitionID)
	if err != nil {
		return GrantResult{}, fmt.Errorf("create role assignment: %w", err)
	}
	return GrantResult{
		Handle:    handle,
		ExpiresAt: r.now().UTC().Add(duration),
	}, nil
}

// Revoke deletes the assignment by handle. Deleting an assignment that is
// already gone reports StatusAlreadyRevoked rather than an error.
func (r *RoleAccess) Revoke(ctx context.Context, handle string) (RevokeStatus, error) {
	if err := r.authority.DeleteAssignment(ctx, handle); err != nil {
		if errors.Is(err, ErrAssignmentNotFound) {
			return StatusAlreadyRevoked, nil
		}
		return "", fmt.Errorf("delete role assignment: %w", err)
	}
	return StatusRevoked, nil
}

func (r *RoleAccess) roleDefinitionID(roleName, scope string) (string, error) {
	guid, ok := r.roles[roleName]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownRole, roleName)
	}
	subscription, err := SubscriptionFromScope(scope)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("/subscriptions/%s/providers/Microsoft.Authorization/roleDefinitions/%s", subscription, guid), nil
}

// SubscriptionFromScope extracts the owning subscription from a resource
// scope or assignment identifier. The scope itself carries the context;
// callers never pass a subscription separately.
func SubscriptionFromScope(scope string) (string, error) {
	parts := strings.Split(scope, "/")
	for i, part := range parts {
		if part == "subscriptions" && i+1 < len(parts) && parts[i+1] != "" {
			return parts[i+1], nil
		}
	}
	return "", fmt.Errorf("%w: no subscription in %q", ErrInvalidScope, scope)
}
