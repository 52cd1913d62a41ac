package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"zspgw.org/internal/scheduler"
)

// RevocationStore is the durable scheduler store. Rows survive process and
// host restarts; a fresh scheduler instance resumes every pending timer by
// polling the same table.
type RevocationStore struct {
	db *sql.DB
}

var _ scheduler.Store = (*RevocationStore)(nil)

// Revocations returns the scheduler store backed by this database.
func (s *Store) Revocations() *RevocationStore {
	return &RevocationStore{db: s.db}
}

func (r *RevocationStore) Create(ctx context.Context, entry scheduler.Entry) error {
	_, err := r.db.ExecContext(ctx, `
		insert into scheduled_revocations
			(id, kind, principal_id, target, role, assignment_handle, fire_at, attempts, status, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, entry.ID, string(entry.Kind), entry.PrincipalID, entry.Target, entry.Role,
		entry.AssignmentHandle, entry.FireAt.UTC(), entry.Attempts, entry.Status, entry.CreatedAt.UTC())
	return err
}

// Due claims up to limit pending entries whose fire instant has passed.
// The claim pushes fire_at forward by the redelivery lease inside the same
// statement, so concurrent workers (or a second process) cannot pick up the
// same entry until the lease elapses. SKIP LOCKED keeps pollers from
// serializing on each other.
func (r *RevocationStore) Due(ctx context.Context, now time.Time, limit int) ([]scheduler.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		update scheduled_revocations
		   set fire_at = $2
		 where id in (
		       select id from scheduled_revocations
		        where status = $3 and fire_at <= $1
		        order by fire_at
		        limit $4
		          for update skip locked)
		returning id, kind, principal_id, target, role, assignment_handle, fire_at, attempts, status, created_at
	`, now.UTC(), now.UTC().Add(scheduler.RedeliveryLease), scheduler.StatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []scheduler.Entry
	for rows.Next() {
		var e scheduler.Entry
		var kind string
		if err := rows.Scan(&e.ID, &kind, &e.PrincipalID, &e.Target, &e.Role,
			&e.AssignmentHandle, &e.FireAt, &e.Attempts, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = scheduler.Kind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *RevocationStore) MarkDone(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		update scheduled_revocations
		   set status = $2, completed_at = now()
		 where id = $1 and status = $3
	`, id, scheduler.StatusDone, scheduler.StatusPending)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		// Either already done (benign double delivery) or unknown.
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`select exists(select 1 from scheduled_revocations where id = $1)`, id).Scan(&exists); err != nil {
			return false, err
		}
		if !exists {
			return false, scheduler.ErrNotFound
		}
		return false, nil
	}
	return true, nil
}

func (r *RevocationStore) RecordAttempt(ctx context.Context, id string, attempts int, nextFire time.Time, lastErr string) error {
	res, err := r.db.ExecContext(ctx, `
		update scheduled_revocations
		   set attempts = $2, fire_at = $3, last_error = $4
		 where id = $1 and status = $5
	`, id, attempts, nextFire.UTC(), lastErr, scheduler.StatusPending)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil // entry completed meanwhile; nothing to record
	}
	return nil
}

func (r *RevocationStore) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`select count(*) from scheduled_revocations where status = $1`, scheduler.StatusPending).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}
