package pg

import (
	"context"
	"database/sql"

	"zspgw.org/internal/audit"
)

// AuditSink appends audit events to the audit_events table. The table is
// append-only; nothing in the service updates or deletes rows.
type AuditSink struct {
	db *sql.DB
}

var _ audit.Sink = (*AuditSink)(nil)

// Audit returns the audit sink backed by this database.
func (s *Store) Audit() *AuditSink {
	return &AuditSink{db: s.db}
}

func (a *AuditSink) Append(ctx context.Context, event audit.Event) error {
	_, err := a.db.ExecContext(ctx, `
		insert into audit_events
			(time_generated, event_type, identity_type, principal_id, target, target_type,
			 result, role, duration_minutes, justification, ticket_id, workflow_id,
			 expires_at, error_message)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, event.TimeGenerated.UTC(), event.EventType, event.IdentityType, event.PrincipalID,
		event.Target, event.TargetType, event.Result, event.Role, event.DurationMinutes,
		event.Justification, event.TicketID, event.WorkflowID, event.ExpiresAt, event.ErrorMessage)
	return err
}
