package scheduler

import (
	"context"
	"errors"
	"time"
)

// Kind selects the revocation path for an entry.
type Kind string

const (
	KindGroupMembership Kind = "group_membership"
	KindRoleAssignment  Kind = "role_assignment"
)

// Entry statuses.
const (
	StatusPending = "pending"
	StatusDone    = "done"
)

// RedeliveryLease is how long a claimed entry stays invisible before the
// store offers it again. A worker that dies mid-execution loses its claim
// after the lease; execution is idempotent, so redelivery is safe.
const RedeliveryLease = time.Minute

var ErrNotFound = errors.New("scheduler: entry not found")

// Entry is one durable revocation timer. It carries the complete payload
// needed to revoke without calling back into the grant path, and it is the
// sole mechanism ensuring revocation happens, so it must outlive the process
// that created it.
type Entry struct {
	ID               string    `json:"id"`
	Kind             Kind      `json:"kind"`
	PrincipalID      string    `json:"principal_id"`
	Target           string    `json:"target"`
	Role             string    `json:"role,omitempty"`
	AssignmentHandle string    `json:"assignment_handle,omitempty"`
	FireAt           time.Time `json:"fire_at"`
	Attempts         int       `json:"attempts"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

// Store persists entries across restarts. Due must claim what it returns:
// a claimed entry is not offered again until the redelivery lease elapses,
// so two workers never process the same entry concurrently.
type Store interface {
	Create(ctx context.Context, entry Entry) error
	Due(ctx context.Context, now time.Time, limit int) ([]Entry, error)
	// MarkDone records the completion marker. It reports false when the
	// entry was already done, letting a second delivery short-circuit.
	MarkDone(ctx context.Context, id string) (bool, error)
	RecordAttempt(ctx context.Context, id string, attempts int, nextFire time.Time, lastErr string) error
	PendingCount(ctx context.Context) (int, error)
}
