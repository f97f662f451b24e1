package notify

import (
	"context"
	"sync"
	"time"

	"tvnotifyd/pkg/logx"
)

// Store holds the in-memory set of pending pre-alert notifications.
//
// It starts stale so the first due scan loads from the provider. MarkStale
// may be called from any goroutine (the bridge, the bus, the UI); the next
// refresh folds any number of MarkStale calls into a single reload.
type Store struct {
	provider Provider
	log      logx.Logger

	mu      sync.Mutex
	pending []PendingNotification
	stale   bool
}

func NewStore(provider Provider, log logx.Logger) *Store {
	return &Store{provider: provider, log: log, stale: true}
}

// MarkStale requests a reload before the next scan. Idempotent.
func (s *Store) MarkStale() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

// RefreshIfStale reloads the pending set when marked stale.
//
// Reload is best-effort: on failure the previous contents are retained, the
// error is logged, and the store stays stale so the next cycle retries.
func (s *Store) RefreshIfStale(ctx context.Context) {
	s.mu.Lock()
	stale := s.stale
	s.mu.Unlock()
	if !stale {
		return
	}

	list, err := s.provider.PendingNotifications(ctx)
	if err != nil {
		s.log.Error("pending notifications reload failed", logx.Err(err))
		return
	}

	s.mu.Lock()
	s.pending = list
	s.stale = false
	s.mu.Unlock()
	s.log.Info("pending notifications loaded", logx.Int("count", len(list)))
}

// FirstDue returns the first entry whose start time is strictly before the
// threshold. The entry stays in the store until Remove is called.
func (s *Store) FirstDue(threshold time.Time) (PendingNotification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pending {
		if p.StartTime.Before(threshold) {
			return p, true
		}
	}
	return PendingNotification{}, false
}

// Remove drops the entry with the given program id from the in-memory set.
func (s *Store) Remove(programID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.pending {
		if p.ProgramID == programID {
			continue
		}
		s.pending[n] = p
		n++
	}
	s.pending = s.pending[:n]
}

// Len reports the current number of pending entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
