package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zspgw.org/internal/obs"
)

// GroupAccess grants and revokes membership of security groups for human
// administrators.
type GroupAccess struct {
	dir GroupClient
	now func() time.Time
}

// NewGroupAccess wires the adapter over a directory client.
func NewGroupAccess(dir GroupClient) *GroupAccess {
	return &GroupAccess{dir: dir, now: time.Now}
}

// Grant adds the principal to the group. Adding a principal that is already
// a member is treated as success, so retried or overlapping requests cannot
// fail here. The handle identifies the membership relation itself.
func (g *GroupAccess) Grant(ctx context.Context, principalID, groupID string, duration time.Duration) (GrantResult, error) {
	if err := g.dir.AddMember(ctx, groupID, principalID); err != nil {
		if errors.Is(err, ErrAlreadyMember) {
			obs.Log(map[string]any{
				"level":        "info",
				"msg":          "principal already a member, treating grant as success",
				"principal_id": principalID,
				"group_id":     groupID,
			})
		} else {
			return GrantResult{}, fmt.Errorf("add member: %w", err)
		}
	}
	return GrantResult{
		Handle:    MembershipHandle(principalID, groupID),
		ExpiresAt: g.now().UTC().Add(duration),
	}, nil
}

// Revoke removes the principal from the group. A principal that is already
// absent reports StatusAlreadyRevoked rather than an error.
func (g *GroupAccess) Revoke(ctx context.Context, principalID, groupID string) (RevokeStatus, error) {
	if err := g.dir.RemoveMember(ctx, groupID, principalID); err != nil {
		if errors.Is(err, ErrNotMember) {
			return StatusAlreadyRevoked, nil
		}
		return "", fmt.Errorf("remove member: %w", err)
	}
	return StatusRevoked, nil
}

// MembershipHandle encodes the (principal, group) pair that identifies a
// group membership. Memberships have no identifier of their own.
func MembershipHandle(principalID, groupID string) string {
	return principalID + "@" + groupID
}
