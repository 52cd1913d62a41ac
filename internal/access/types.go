package access

import "time"

// IdentityKind separates human administrators from non-human (service or
// workload) identities. The two kinds follow different grant paths: group
// membership for humans, scoped role assignments for NHIs.
type IdentityKind string

const (
	KindHuman    IdentityKind = "human"
	KindNonHuman IdentityKind = "nhi"
)

// StatusGranted is the only status a successful grant reports.
const StatusGranted = "granted"

// GrantRequest is the immutable input to the access lifecycle. Target is a
// group identifier for humans and a resource scope for NHIs.
type GrantRequest struct {
	PrincipalID     string       `json:"principal_id"`
	Kind            IdentityKind `json:"identity_kind"`
	Target          string       `json:"target"`
	Role            string       `json:"role,omitempty"`
	DurationMinutes int          `json:"duration_minutes"`
	Justification   string       `json:"justification,omitempty"`
	TicketID        string       `json:"ticket_id,omitempty"`
	WorkflowID      string       `json:"workflow_id,omitempty"`
}

// GrantRecord is produced by a successful grant and returned to the caller.
// ExpiresAt comes from the provider at grant-confirmation time and is the
// instant the scheduled revocation fires. The record is never mutated.
type GrantRecord struct {
	ID               string       `json:"id"`
	Status           string       `json:"status"`
	PrincipalID      string       `json:"principal_id"`
	Kind             IdentityKind `json:"identity_kind"`
	Target           string       `json:"target"`
	Role             string       `json:"role,omitempty"`
	DurationMinutes  int          `json:"duration_minutes"`
	Justification    string       `json:"justification,omitempty"`
	TicketID         string       `json:"ticket_id,omitempty"`
	WorkflowID       string       `json:"workflow_id,omitempty"`
	ExpiresAt        time.Time    `json:"expires_at"`
	AssignmentHandle string       `json:"assignment_id,omitempty"`
	ScheduleID       string       `json:"schedule_id,omitempty"`
}
