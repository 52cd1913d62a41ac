// Package workflow issues routine, timer-triggered grants for automated
// processes, such as the nightly backup job that needs short-lived access to
// a key vault and a storage account. Each grant goes through the normal
// orchestrator path and gets its own scheduled revocation.
package workflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"zspgw.org/internal/access"
	"zspgw.org/internal/obs"
)

// Granter is the slice of the orchestrator the runner needs.
type Granter interface {
	Grant(ctx context.Context, req access.GrantRequest) (access.GrantRecord, error)
}

// RoleGrant is one scope/role pair a job requests.
type RoleGrant struct {
	Scope string
	Role  string
}

// Job is a recurring grant: every day at FireAt (UTC, "HH:MM") the
// principal receives each listed role for DurationMinutes.
type Job struct {
	WorkflowID      string
	PrincipalID     string
	Grants          []RoleGrant
	DurationMinutes int
	FireAt          string
}

// Runner fires jobs on their daily schedule. It runs as a background
// goroutine and stops via its context or Stop.
type Runner struct {
	granter Granter
	jobs    []Job

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunner creates a runner but does not start it.
func NewRunner(granter Granter, jobs []Job) *Runner {
	return &Runner{granter: granter, jobs: jobs, done: make(chan struct{})}
}

// Start begins the schedule loops, one per job. Jobs with an unparsable
// fire time are skipped with an error log rather than aborting the service.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	go r.loop(ctx)
}

// Stop signals the runner to exit and waits for it to finish.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)

	type pending struct {
		job  Job
		hour int
		min  int
	}
	var scheduled []pending
	for _, job := range r.jobs {
		hour, min, err := parseFireAt(job.FireAt)
		if err != nil {
			obs.Log(map[string]any{
				"level":    "error",
				"msg":      "workflow job skipped: bad fire time",
				"workflow": job.WorkflowID,
				"fire_at":  job.FireAt,
				"error":    err.Error(),
			})
			continue
		}
		scheduled = append(scheduled, pending{job: job, hour: hour, min: min})
	}
	if len(scheduled) == 0 {
		return
	}

	timers := make([]*time.Timer, len(scheduled))
	fire := make(chan int, len(scheduled))
	for i, p := range scheduled {
		i := i
		timers[i] = time.AfterFunc(time.Until(nextFire(time.Now().UTC(), p.hour, p.min)), func() {
			fire <- i
		})
	}
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case i := <-fire:
			p := scheduled[i]
			r.run(ctx, p.job)
			timers[i].Reset(time.Until(nextFire(time.Now().UTC(), p.hour, p.min)))
		}
	}
}

func (r *Runner) run(ctx context.Context, job Job) {
	for _, g := range job.Grants {
		record, err := r.granter.Grant(ctx, access.GrantRequest{
			PrincipalID:     job.PrincipalID,
			Kind:            access.KindNonHuman,
			Target:          g.Scope,
			Role:            g.Role,
			DurationMinutes: job.DurationMinutes,
			WorkflowID:      job.WorkflowID,
		})
		if err != nil {
			obs.Log(map[string]any{
				"level":    "error",
				"msg":      "workflow grant failed",
				"workflow": job.WorkflowID,
				"scope":    g.Scope,
				"role":     g.Role,
				"error":    err.Error(),
			})
			continue
		}
		obs.Log(map[string]any{
			"level":      "info",
			"msg":        "workflow grant issued",
			"workflow":   job.WorkflowID,
			"scope":      g.Scope,
			"role":       g.Role,
			"expires_at": record.ExpiresAt.Format(time.RFC3339),
		})
	}
}

func parseFireAt(v string) (hour, min int, err error) {
	parts := strings.Split(strings.TrimSpace(v), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want HH:MM, got %q", v)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("bad hour in %q", v)
	}
	min, err = strconv.Atoi(parts[1])
	if err != nil || min < 0 || min > 59 {
		return 0, 0, fmt.Errorf("bad minute in %q", v)
	}
	return hour, min, nil
}

func nextFire(now time.Time, hour, min int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, min, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
