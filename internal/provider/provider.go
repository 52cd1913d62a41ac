package provider

import (
	"context"
	"errors"
	"time"
)

// Client-level conditions. Already-member and not-member are ordinary
// outcomes of idempotent grant/revoke, not failures; adapters map them
// instead of propagating.
var (
	ErrAlreadyMember      = errors.New("provider: principal already a member")
	ErrNotMember          = errors.New("provider: principal is not a member")
	ErrAssignmentNotFound = errors.New("provider: role assignment not found")
	ErrUnknownRole        = errors.New("provider: unknown role")
	ErrInvalidScope       = errors.New("provider: invalid resource scope")
)

// RevokeStatus distinguishes "I removed it" from "it was already gone".
// Both are non-fatal; callers audit them the same way but may log differently.
type RevokeStatus string

const (
	StatusRevoked        RevokeStatus = "revoked"
	StatusAlreadyRevoked RevokeStatus = "already_revoked"
)

// GrantResult is returned once the external system has confirmed the grant.
// ExpiresAt is computed at confirmation time and is the authoritative
// instant the orchestrator schedules revocation for.
type GrantResult struct {
	Handle    string
	ExpiresAt time.Time
}

// GroupClient is the directory surface needed for human group membership.
type GroupClient interface {
	AddMember(ctx context.Context, groupID, principalID string) error
	RemoveMember(ctx context.Context, groupID, principalID string) error
}

// AuthorityClient is the resource-authority surface needed for role assignments.
type AuthorityClient interface {
	CreateAssignment(ctx context.Context, scope, name, principalID, roleDefinitionID string) (string, error)
	DeleteAssignment(ctx context.Context, assignmentID string) error
}
