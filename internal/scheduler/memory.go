package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps entries in process memory. It backs dev mode and tests;
// deployments that need restart safety use the Postgres store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

func (s *MemoryStore) Create(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := entry
	s.entries[entry.ID] = &clone
	return nil
}

func (s *MemoryStore) Due(_ context.Context, now time.Time, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*Entry
	for _, e := range s.entries {
		if e.Status == StatusPending && !e.FireAt.After(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].FireAt.Before(due[j].FireAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]Entry, 0, len(due))
	for _, e := range due {
		e.FireAt = now.Add(RedeliveryLease)
		claimed = append(claimed, *e)
	}
	return claimed, nil
}

func (s *MemoryStore) MarkDone(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return false, ErrNotFound
	}
	if e.Status == StatusDone {
		return false, nil
	}
	e.Status = StatusDone
	return true, nil
}

func (s *MemoryStore) RecordAttempt(_ context.Context, id string, attempts int, nextFire time.Time, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}
	if e.Status != StatusPending {
		return nil
	}
	e.Attempts = attempts
	e.FireAt = nextFire
	return nil
}

func (s *MemoryStore) PendingCount(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.Status == StatusPending {
			n++
		}
	}
	return n, nil
}

// Get returns a copy of the entry. Test helper.
func (s *MemoryStore) Get(id string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}
