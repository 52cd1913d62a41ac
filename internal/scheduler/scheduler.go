package scheduler

import (
	"context"
	"time"

	"zspgw.org/internal/ids"
	"zspgw.org/internal/obs"
)

const defaultBatchSize = 50

// maxBackoff caps the retry delay for failing revocations.
const maxBackoff = 5 * time.Minute

// ExecuteFunc performs the revocation carried by an entry. It must be
// idempotent: the scheduler delivers at least once.
type ExecuteFunc func(ctx context.Context, entry Entry) error

// Config holds scheduler tuning.
type Config struct {
	// Interval between polls of the store. Defaults to 5s.
	Interval time.Duration

	// AlarmAttempts is the retry count after which a failing revocation is
	// escalated. Retries continue past the threshold; un-revoked access is
	// the highest-severity failure mode and must never fail silently.
	AlarmAttempts int
}

// Scheduler drives durable revocation timers: it registers entries at grant
// time and wakes them up once their expiry instant passes. The store is the
// source of truth, so a fresh process resumes every pending wait simply by
// polling the same store.
type Scheduler struct {
	store   Store
	execute ExecuteFunc
	cfg     Config

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a scheduler but does not start it. Call Start to begin polling.
func New(store Store, execute ExecuteFunc, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.AlarmAttempts <= 0 {
		cfg.AlarmAttempts = 5
	}
	return &Scheduler{
		store:   store,
		execute: execute,
		cfg:     cfg,
		done:    make(chan struct{}),
	}
}

// Schedule durably registers a revocation to fire at entry.FireAt and
// returns the schedule handle. The entry must carry everything revoke needs.
func (s *Scheduler) Schedule(ctx context.Context, entry Entry) (string, error) {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	entry.Status = StatusPending
	entry.CreatedAt = time.Now().UTC()
	if err := s.store.Create(ctx, entry); err != nil {
		return "", err
	}
	return entry.ID, nil
}

// Start begins the poll loop. The first sweep runs immediately, which is
// also the restart recovery path: anything persisted as pending and past
// due is picked up before the ticker starts.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
}

// Stop signals the loop to exit and waits for it to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	s.Sweep(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep claims due entries and executes them. Exported so tests and the
// startup path can drive the scheduler without waiting on the ticker.
func (s *Scheduler) Sweep(ctx context.Context) {
	now := time.Now().UTC()
	entries, err := s.store.Due(ctx, now, defaultBatchSize)
	if err != nil {
		obs.Log(map[string]any{
			"level": "error",
			"msg":   "scheduler: listing due revocations failed",
			"error": err.Error(),
		})
		return
	}
	for _, entry := range entries {
		s.dispatch(ctx, entry)
	}
	if n, err := s.store.PendingCount(ctx); err == nil {
		obs.SetPendingRevocations(n)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, entry Entry) {
	err := s.execute(ctx, entry)
	if err == nil {
		if _, err := s.store.MarkDone(ctx, entry.ID); err != nil {
			obs.Log(map[string]any{
				"level":    "error",
				"msg":      "scheduler: completion marker write failed",
				"entry_id": entry.ID,
				"error":    err.Error(),
			})
		}
		return
	}

	attempts := entry.Attempts + 1
	backoff := time.Duration(attempts) * s.cfg.Interval
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	nextFire := time.Now().UTC().Add(backoff)
	if recErr := s.store.RecordAttempt(ctx, entry.ID, attempts, nextFire, err.Error()); recErr != nil {
		obs.Log(map[string]any{
			"level":    "error",
			"msg":      "scheduler: attempt record failed",
			"entry_id": entry.ID,
			"error":    recErr.Error(),
		})
	}

	fields := map[string]any{
		"level":        "error",
		"msg":          "scheduler: revocation failed, will retry",
		"entry_id":     entry.ID,
		"kind":         string(entry.Kind),
		"principal_id": entry.PrincipalID,
		"target":       entry.Target,
		"attempts":     attempts,
		"next_fire":    nextFire.Format(time.RFC3339),
		"error":        err.Error(),
	}
	if attempts == s.cfg.AlarmAttempts {
		fields["level"] = "critical"
		fields["msg"] = "scheduler: revocation retry threshold crossed, escalating"
		obs.ObserveRevocationAlarm()
	}
	obs.Log(fields)
}
