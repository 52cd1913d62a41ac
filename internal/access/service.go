package access

import (
	"context"
	"fmt"
	"time"

	"zspgw.org/internal/audit"
	"zspgw.org/internal/ids"
	"zspgw.org/internal/obs"
	"zspgw.org/internal/provider"
	"zspgw.org/internal/scheduler"
)

// GroupGranter is the group-membership variant of the access provider.
type GroupGranter interface {
	Grant(ctx context.Context, principalID, groupID string, duration time.Duration) (provider.GrantResult, error)
	Revoke(ctx context.Context, principalID, groupID string) (provider.RevokeStatus, error)
}

// RoleGranter is the role-assignment variant of the access provider.
type RoleGranter interface {
	Grant(ctx context.Context, principalID, scope, roleName string, duration time.Duration) (provider.GrantResult, error)
	Revoke(ctx context.Context, handle string) (provider.RevokeStatus, error)
}

// Registrar durably registers a revocation timer.
type Registrar interface {
	Schedule(ctx context.Context, entry scheduler.Entry) (string, error)
}

// Auditor records lifecycle events; it never fails the operation it describes.
type Auditor interface {
	Record(ctx context.Context, event audit.Event)
}

// Service is the access lifecycle orchestrator. Each grant moves through
// Requested -> Granted -> Scheduled and later, when its timer fires,
// -> Revoked. A failed provider call terminates at GrantFailed with no
// schedule created. There is no shared mutable state between grants: the
// persisted schedule entry fully describes a grant's remaining lifecycle.
type Service struct {
	groups   GroupGranter
	roles    RoleGranter
	registry Registrar
	recorder Auditor
}

// NewService wires the orchestrator.
func NewService(groups GroupGranter, roles RoleGranter, registry Registrar, recorder Auditor) *Service {
	return &Service{groups: groups, roles: roles, registry: registry, recorder: recorder}
}

// Grant performs the provider grant, registers the revocation timer, and
// records the audit event. The request must already be validated.
//
// If the grant succeeds but the timer cannot be durably registered, the
// grant still succeeds for the caller; the failure is escalated through the
// orphaned-access alarm because nothing else will revoke that access.
func (s *Service) Grant(ctx context.Context, req GrantRequest) (GrantRecord, error) {
	duration := time.Duration(req.DurationMinutes) * time.Minute

	var result provider.GrantResult
	var err error
	switch req.Kind {
	case KindNonHuman:
		result, err = s.roles.Grant(ctx, req.PrincipalID, req.Target, req.Role, duration)
	default:
		result, err = s.groups.Grant(ctx, req.PrincipalID, req.Target, duration)
	}
	if err != nil {
		event := s.grantEvent(req, audit.ResultFailed)
		event.ErrorMessage = err.Error()
		s.recorder.Record(ctx, event)
		obs.ObserveGrant(string(req.Kind), audit.ResultFailed)
		return GrantRecord{}, fmt.Errorf("grant %s access: %w", req.Kind, err)
	}

	record := GrantRecord{
		ID:               ids.New(),
		Status:           StatusGranted,
		PrincipalID:      req.PrincipalID,
		Kind:             req.Kind,
		Target:           req.Target,
		Role:             req.Role,
		DurationMinutes:  req.DurationMinutes,
		Justification:    req.Justification,
		TicketID:         req.TicketID,
		WorkflowID:       req.WorkflowID,
		ExpiresAt:        result.ExpiresAt,
		AssignmentHandle: result.Handle,
	}

	entry := scheduler.Entry{
		Kind:             scheduler.KindGroupMembership,
		PrincipalID:      req.PrincipalID,
		Target:           req.Target,
		Role:             req.Role,
		AssignmentHandle: result.Handle,
		FireAt:           result.ExpiresAt,
	}
	if req.Kind == KindNonHuman {
		entry.Kind = scheduler.KindRoleAssignment
	}

	scheduleID, schedErr := s.registry.Schedule(ctx, entry)
	if schedErr != nil {
		// Orphaned access: the grant holds but nothing will revoke it.
		obs.ObserveScheduleFailure()
		obs.Log(map[string]any{
			"level":        "critical",
			"msg":          "grant succeeded but revocation could not be scheduled",
			"principal_id": req.PrincipalID,
			"target":       req.Target,
			"expires_at":   result.ExpiresAt.Format(time.RFC3339),
			"error":        schedErr.Error(),
		})
	}
	record.ScheduleID = scheduleID

	event := s.grantEvent(req, audit.ResultSuccess)
	event.ExpiresAt = result.ExpiresAt.Format(time.RFC3339)
	s.recorder.Record(ctx, event)
	obs.ObserveGrant(string(req.Kind), audit.ResultSuccess)

	return record, nil
}

// ExecuteRevocation is the scheduler wake-up callback. Both "revoked" and
// "already revoked" are terminal successes; only an unexpected provider
// failure returns an error, which makes the scheduler retry. Safe to run
// more than once for the same entry.
func (s *Service) ExecuteRevocation(ctx context.Context, entry scheduler.Entry) error {
	var status provider.RevokeStatus
	var err error
	switch entry.Kind {
	case scheduler.KindRoleAssignment:
		status, err = s.roles.Revoke(ctx, entry.AssignmentHandle)
	default:
		status, err = s.groups.Revoke(ctx, entry.PrincipalID, entry.Target)
	}

	event := s.revokeEvent(entry)
	if err != nil {
		event.Result = audit.ResultFailed
		event.ErrorMessage = err.Error()
		s.recorder.Record(ctx, event)
		obs.ObserveRevocation(audit.ResultFailed)
		return fmt.Errorf("revoke %s: %w", entry.Kind, err)
	}

	event.Result = audit.ResultSuccess
	s.recorder.Record(ctx, event)
	obs.ObserveRevocation(audit.ResultSuccess)
	obs.Log(map[string]any{
		"level":        "info",
		"msg":          "access revoked",
		"status":       string(status),
		"kind":         string(entry.Kind),
		"principal_id": entry.PrincipalID,
		"target":       entry.Target,
	})
	return nil
}

func (s *Service) grantEvent(req GrantRequest, result string) audit.Event {
	event := audit.Event{
		EventType:       audit.EventAccessGrant,
		IdentityType:    audit.IdentityHuman,
		TargetType:      audit.TargetEntraGroup,
		PrincipalID:     req.PrincipalID,
		Target:          req.Target,
		Role:            req.Role,
		DurationMinutes: req.DurationMinutes,
		Justification:   req.Justification,
		TicketID:        req.TicketID,
		WorkflowID:      req.WorkflowID,
		Result:          result,
	}
	if req.Kind == KindNonHuman {
		event.IdentityType = audit.IdentityNHI
		event.TargetType = audit.TargetAzureResource
	}
	return event
}

func (s *Service) revokeEvent(entry scheduler.Entry) audit.Event {
	event := audit.Event{
		EventType:    audit.EventAccessRevoke,
		IdentityType: audit.IdentityHuman,
		TargetType:   audit.TargetEntraGroup,
		PrincipalID:  entry.PrincipalID,
		Target:       entry.Target,
		Role:         entry.Role,
	}
	if entry.Kind == scheduler.KindRoleAssignment {
		event.IdentityType = audit.IdentityNHI
		event.TargetType = audit.TargetAzureResource
	}
	return event
}
