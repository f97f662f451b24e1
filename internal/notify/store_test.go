package notify

import (
	"context"
	"testing"
	"time"
)

func TestStoreLoadsOnceWhenMarkedStaleRepeatedly(t *testing.T) {
	t.Parallel()
	p := newFakeProvider()
	p.pending = []PendingNotification{{ProgramID: 1, Title: "News"}}
	s := NewStore(p, testLogger())

	// Fresh store is stale; multiple MarkStale calls fold into one reload.
	s.MarkStale()
	s.MarkStale()
	s.RefreshIfStale(context.Background())
	s.RefreshIfStale(context.Background())

	if got := p.loadCount(); got != 1 {
		t.Fatalf("loads = %d, want 1", got)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
}

func TestStoreKeepsPreviousContentsOnReloadFailure(t *testing.T) {
	t.Parallel()
	p := newFakeProvider()
	p.pending = []PendingNotification{{ProgramID: 1, Title: "News"}}
	s := NewStore(p, testLogger())
	s.RefreshIfStale(context.Background())

	p.mu.Lock()
	p.loadErr = errBoom
	p.mu.Unlock()

	s.MarkStale()
	s.RefreshIfStale(context.Background())
	if s.Len() != 1 {
		t.Fatalf("previous contents lost on failed reload: Len = %d", s.Len())
	}

	// The store stays stale, so a later cycle retries once the provider
	// recovers.
	p.mu.Lock()
	p.loadErr = nil
	p.pending = append(p.pending, PendingNotification{ProgramID: 2, Title: "Movie"})
	p.mu.Unlock()

	s.RefreshIfStale(context.Background())
	if s.Len() != 2 {
		t.Fatalf("retry after recovery: Len = %d, want 2", s.Len())
	}
}

func TestStoreFirstDueUsesStrictThreshold(t *testing.T) {
	t.Parallel()
	threshold := time.Date(2026, 8, 29, 12, 5, 0, 0, time.UTC)
	p := newFakeProvider()
	s := NewStore(p, testLogger())
	s.mu.Lock()
	s.pending = []PendingNotification{{ProgramID: 1, StartTime: threshold}}
	s.stale = false
	s.mu.Unlock()

	if _, ok := s.FirstDue(threshold); ok {
		t.Fatal("entry starting exactly at threshold must not be due")
	}

	s.mu.Lock()
	s.pending[0].StartTime = threshold.Add(-time.Second)
	s.mu.Unlock()
	if _, ok := s.FirstDue(threshold); !ok {
		t.Fatal("entry starting before threshold must be due")
	}
}

func TestStoreRemove(t *testing.T) {
	t.Parallel()
	p := newFakeProvider()
	s := NewStore(p, testLogger())
	s.mu.Lock()
	s.pending = []PendingNotification{
		{ProgramID: 1}, {ProgramID: 2}, {ProgramID: 3},
	}
	s.stale = false
	s.mu.Unlock()

	s.Remove(2)
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	s.Remove(2) // absent id is a no-op
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
}
