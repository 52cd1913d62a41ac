package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"zspgw.org/internal/audit"
	"zspgw.org/internal/provider"
	"zspgw.org/internal/scheduler"
)

type fakeGroups struct {
	grantErr  error
	revokeErr error
	status    provider.RevokeStatus
	expiresAt time.Time

	grantCalls  int
	revokeCalls int
}

func (f *fakeGroups) Grant(_ context.Context, principalID, groupID string, _ time.Duration) (provider.GrantResult, error) {
	f.grantCalls++
	if f.grantErr != nil {
		return provider.GrantResult{}, f.grantErr
	}
	return provider.GrantResult{
		Handle:    provider.MembershipHandle(principalID, groupID),
		ExpiresAt: f.expiresAt,
	}, nil
}

func (f *fakeGroups) Revoke(context.Context, string, string) (provider.RevokeStatus, error) {
	f.revokeCalls++
	if f.revokeErr != nil {
		return "", f.revokeErr
	}
	return f.status, nil
}

type fakeRoles struct {
	grantErr  error
	revokeErr error
	status    provider.RevokeStatus
	handle    string
	expiresAt time.Time

	grantCalls    int
	revokeCalls   int
	lastRevokedBy string
}

func (f *fakeRoles) Grant(context.Context, string, string, string, time.Duration) (provider.GrantResult, error) {
	f.grantCalls++
	if f.grantErr != nil {
		return provider.GrantResult{}, f.grantErr
	}
	return provider.GrantResult{Handle: f.handle, ExpiresAt: f.expiresAt}, nil
}

func (f *fakeRoles) Revoke(_ context.Context, handle string) (provider.RevokeStatus, error) {
	f.revokeCalls++
	f.lastRevokedBy = handle
	if f.revokeErr != nil {
		return "", f.revokeErr
	}
	return f.status, nil
}

type fakeRegistry struct {
	err     error
	entries []scheduler.Entry
}

func (f *fakeRegistry) Schedule(_ context.Context, entry scheduler.Entry) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.entries = append(f.entries, entry)
	return "sched-1", nil
}

type fakeAuditor struct {
	events []audit.Event
}

func (f *fakeAuditor) Record(_ context.Context, event audit.Event) {
	f.events = append(f.events, event)
}

func TestGrantSchedulesExactlyOneRevocation(t *testing.T) {
	expires := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	groups := &fakeGroups{expiresAt: expires}
	registry := &fakeRegistry{}
	auditor := &fakeAuditor{}
	svc := NewService(groups, &fakeRoles{}, registry, auditor)

	record, err := svc.Grant(context.Background(), GrantRequest{
		PrincipalID:     "user-1",
		Kind:            KindHuman,
		Target:          "group-admins",
		DurationMinutes: 60,
		Justification:   "patching incident follow-up",
		TicketID:        "INC-1",
	})
	if err != nil {
		t.Fatalf("grant: %v", err)
	}

	if record.Status != StatusGranted {
		t.Fatalf("status = %q, want %q", record.Status, StatusGranted)
	}
	if !record.ExpiresAt.Equal(expires) {
		t.Fatalf("expires_at = %v, want %v", record.ExpiresAt, expires)
	}
	if record.ScheduleID != "sched-1" {
		t.Fatalf("schedule_id = %q, want sched-1", record.ScheduleID)
	}

	if len(registry.entries) != 1 {
		t.Fatalf("scheduled %d entries, want 1", len(registry.entries))
	}
	entry := registry.entries[0]
	if entry.Kind != scheduler.KindGroupMembership {
		t.Fatalf("entry kind = %q, want %q", entry.Kind, scheduler.KindGroupMembership)
	}
	if !entry.FireAt.Equal(expires) {
		t.Fatalf("entry fires at %v, want the grant expiry %v", entry.FireAt, expires)
	}

	if len(auditor.events) != 1 {
		t.Fatalf("recorded %d audit events, want 1", len(auditor.events))
	}
	event := auditor.events[0]
	if event.EventType != audit.EventAccessGrant || event.Result != audit.ResultSuccess {
		t.Fatalf("event = %s/%s, want %s/%s", event.EventType, event.Result, audit.EventAccessGrant, audit.ResultSuccess)
	}
	if event.IdentityType != audit.IdentityHuman || event.TargetType != audit.TargetEntraGroup {
		t.Fatalf("event identity/target = %s/%s", event.IdentityType, event.TargetType)
	}
	if event.ExpiresAt != expires.Format(time.RFC3339) {
		t.Fatalf("event expires_at = %q", event.ExpiresAt)
	}
}

func TestGrantNHIRoutesToRoleProvider(t *testing.T) {
	expires := time.Date(2026, 3, 2, 2, 30, 0, 0, time.UTC)
	roles := &fakeRoles{handle: "/subscriptions/s/providers/Microsoft.Authorization/roleAssignments/ra-1", expiresAt: expires}
	registry := &fakeRegistry{}
	auditor := &fakeAuditor{}
	svc := NewService(&fakeGroups{}, roles, registry, auditor)

	record, err := svc.Grant(context.Background(), GrantRequest{
		PrincipalID:     "sp-1",
		Kind:            KindNonHuman,
		Target:          "/subscriptions/s/resourceGroups/rg",
		Role:            "Key Vault Secrets User",
		DurationMinutes: 35,
		WorkflowID:      "nightly-backup",
	})
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if roles.grantCalls != 1 {
		t.Fatalf("role provider called %d times, want 1", roles.grantCalls)
	}
	if record.AssignmentHandle != roles.handle {
		t.Fatalf("assignment handle = %q", record.AssignmentHandle)
	}

	if len(registry.entries) != 1 {
		t.Fatalf("scheduled %d entries, want 1", len(registry.entries))
	}
	entry := registry.entries[0]
	if entry.Kind != scheduler.KindRoleAssignment {
		t.Fatalf("entry kind = %q, want %q", entry.Kind, scheduler.KindRoleAssignment)
	}
	if entry.AssignmentHandle != roles.handle {
		t.Fatalf("entry handle = %q", entry.AssignmentHandle)
	}

	event := auditor.events[0]
	if event.IdentityType != audit.IdentityNHI || event.TargetType != audit.TargetAzureResource {
		t.Fatalf("event identity/target = %s/%s", event.IdentityType, event.TargetType)
	}
	if event.WorkflowID != "nightly-backup" {
		t.Fatalf("event workflow_id = %q", event.WorkflowID)
	}
}

func TestGrantProviderFailureSchedulesNothing(t *testing.T) {
	boom := errors.New("directory unavailable")
	groups := &fakeGroups{grantErr: boom}
	registry := &fakeRegistry{}
	auditor := &fakeAuditor{}
	svc := NewService(groups, &fakeRoles{}, registry, auditor)

	_, err := svc.Grant(context.Background(), GrantRequest{
		PrincipalID:     "user-1",
		Kind:            KindHuman,
		Target:          "group-admins",
		DurationMinutes: 60,
		Justification:   "routine maintenance work",
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}

	if len(registry.entries) != 0 {
		t.Fatalf("scheduled %d entries after failed grant, want 0", len(registry.entries))
	}
	if len(auditor.events) != 1 {
		t.Fatalf("recorded %d audit events, want 1", len(auditor.events))
	}
	event := auditor.events[0]
	if event.Result != audit.ResultFailed {
		t.Fatalf("event result = %q, want %q", event.Result, audit.ResultFailed)
	}
	if event.ErrorMessage != boom.Error() {
		t.Fatalf("event error = %q", event.ErrorMessage)
	}
}

func TestGrantSurvivesScheduleFailure(t *testing.T) {
	groups := &fakeGroups{expiresAt: time.Now().Add(time.Hour)}
	registry := &fakeRegistry{err: errors.New("store down")}
	auditor := &fakeAuditor{}
	svc := NewService(groups, &fakeRoles{}, registry, auditor)

	record, err := svc.Grant(context.Background(), GrantRequest{
		PrincipalID:     "user-1",
		Kind:            KindHuman,
		Target:          "group-admins",
		DurationMinutes: 60,
		Justification:   "routine maintenance work",
	})
	if err != nil {
		t.Fatalf("grant should succeed despite schedule failure, got %v", err)
	}
	if record.ScheduleID != "" {
		t.Fatalf("schedule_id = %q, want empty", record.ScheduleID)
	}
	if auditor.events[0].Result != audit.ResultSuccess {
		t.Fatalf("event result = %q, want %q", auditor.events[0].Result, audit.ResultSuccess)
	}
}

func TestExecuteRevocationSuccess(t *testing.T) {
	groups := &fakeGroups{status: provider.StatusRevoked}
	auditor := &fakeAuditor{}
	svc := NewService(groups, &fakeRoles{}, &fakeRegistry{}, auditor)

	err := svc.ExecuteRevocation(context.Background(), scheduler.Entry{
		ID:          "e-1",
		Kind:        scheduler.KindGroupMembership,
		PrincipalID: "user-1",
		Target:      "group-admins",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if groups.revokeCalls != 1 {
		t.Fatalf("revoke called %d times, want 1", groups.revokeCalls)
	}
	event := auditor.events[0]
	if event.EventType != audit.EventAccessRevoke || event.Result != audit.ResultSuccess {
		t.Fatalf("event = %s/%s", event.EventType, event.Result)
	}
}

func TestExecuteRevocationAlreadyRevokedIsSuccess(t *testing.T) {
	groups := &fakeGroups{status: provider.StatusAlreadyRevoked}
	auditor := &fakeAuditor{}
	svc := NewService(groups, &fakeRoles{}, &fakeRegistry{}, auditor)

	err := svc.ExecuteRevocation(context.Background(), scheduler.Entry{
		ID:          "e-1",
		Kind:        scheduler.KindGroupMembership,
		PrincipalID: "user-1",
		Target:      "group-admins",
	})
	if err != nil {
		t.Fatalf("already-revoked must not be an error, got %v", err)
	}
	if auditor.events[0].Result != audit.ResultSuccess {
		t.Fatalf("event result = %q", auditor.events[0].Result)
	}
}

func TestExecuteRevocationFailureReturnsError(t *testing.T) {
	boom := errors.New("authority unavailable")
	roles := &fakeRoles{revokeErr: boom}
	auditor := &fakeAuditor{}
	svc := NewService(&fakeGroups{}, roles, &fakeRegistry{}, auditor)

	err := svc.ExecuteRevocation(context.Background(), scheduler.Entry{
		ID:               "e-2",
		Kind:             scheduler.KindRoleAssignment,
		PrincipalID:      "sp-1",
		Target:           "/subscriptions/s",
		AssignmentHandle: "ra-1",
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
	if roles.lastRevokedBy != "ra-1" {
		t.Fatalf("revoked by handle %q, want ra-1", roles.lastRevokedBy)
	}
	event := auditor.events[0]
	if event.Result != audit.ResultFailed || event.ErrorMessage == "" {
		t.Fatalf("event = %s, error %q", event.Result, event.ErrorMessage)
	}
	if event.IdentityType != audit.IdentityNHI {
		t.Fatalf("event identity = %q", event.IdentityType)
	}
}

func TestOverlappingGrantsGetIndependentTimers(t *testing.T) {
	// Two grants for the same principal and group keep separate revocation
	// timers; the expiries are not merged or extended.
	groups := &fakeGroups{expiresAt: time.Now().Add(30 * time.Minute)}
	registry := &fakeRegistry{}
	svc := NewService(groups, &fakeRoles{}, registry, &fakeAuditor{})

	req := GrantRequest{
		PrincipalID:     "user-1",
		Kind:            KindHuman,
		Target:          "group-admins",
		DurationMinutes: 30,
		Justification:   "first overlapping window",
	}
	if _, err := svc.Grant(context.Background(), req); err != nil {
		t.Fatalf("first grant: %v", err)
	}

	groups.expiresAt = time.Now().Add(90 * time.Minute)
	req.DurationMinutes = 90
	req.Justification = "second overlapping window"
	if _, err := svc.Grant(context.Background(), req); err != nil {
		t.Fatalf("second grant: %v", err)
	}

	if len(registry.entries) != 2 {
		t.Fatalf("scheduled %d entries, want 2 independent timers", len(registry.entries))
	}
	if registry.entries[0].FireAt.Equal(registry.entries[1].FireAt) {
		t.Fatal("overlapping grants share a fire instant, want independent expiries")
	}
}
