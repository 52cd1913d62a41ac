package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGroupGrantAddsMemberAndSetsExpiry(t *testing.T) {
	dir := NewDirectory()
	g := NewGroupAccess(dir)
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	result, err := g.Grant(context.Background(), "user-1", "group-admins", 60*time.Minute)
	require.NoError(t, err)
	require.True(t, dir.IsMember("group-admins", "user-1"))
	require.Equal(t, MembershipHandle("user-1", "group-admins"), result.Handle)

	// Expiry is measured from grant confirmation, to the second.
	require.Equal(t, now.Add(60*time.Minute), result.ExpiresAt)
}

func TestGroupGrantIdempotentWhenAlreadyMember(t *testing.T) {
	dir := NewDirectory()
	g := NewGroupAccess(dir)

	_, err := g.Grant(context.Background(), "user-1", "group-admins", 30*time.Minute)
	require.NoError(t, err)

	// A second overlapping grant finds the membership in place; that is a
	// success, not a conflict.
	result, err := g.Grant(context.Background(), "user-1", "group-admins", 90*time.Minute)
	require.NoError(t, err)
	require.Equal(t, MembershipHandle("user-1", "group-admins"), result.Handle)
}

func TestGroupRevoke(t *testing.T) {
	dir := NewDirectory()
	g := NewGroupAccess(dir)

	_, err := g.Grant(context.Background(), "user-1", "group-admins", time.Hour)
	require.NoError(t, err)

	status, err := g.Revoke(context.Background(), "user-1", "group-admins")
	require.NoError(t, err)
	require.Equal(t, StatusRevoked, status)
	require.False(t, dir.IsMember("group-admins", "user-1"))

	// Revoking again reports the already-clean state without an error.
	status, err = g.Revoke(context.Background(), "user-1", "group-admins")
	require.NoError(t, err)
	require.Equal(t, StatusAlreadyRevoked, status)
}

func TestGroupRevokeNeverMember(t *testing.T) {
	g := NewGroupAccess(NewDirectory())
	status, err := g.Revoke(context.Background(), "stranger", "group-admins")
	require.NoError(t, err)
	require.Equal(t, StatusAlreadyRevoked, status)
}
