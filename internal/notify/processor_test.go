package notify

import (
	"context"
	"strings"
	"testing"
	"time"
)

func newProcessor(p *fakeProvider) (*Processor, *Store, *fakeSink) {
	store := NewStore(p, testLogger())
	sink := &fakeSink{}
	return NewProcessor(store, p, sink, testLogger()), store, sink
}

func TestProcessDueEmitsAtMostOnePerTick(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	lead := 5 * time.Minute

	p := newFakeProvider()
	p.pending = []PendingNotification{
		{ProgramID: 1, Title: "A", StartTime: now.Add(time.Minute), NotifyPending: true},
		{ProgramID: 2, Title: "B", StartTime: now.Add(2 * time.Minute), NotifyPending: true},
		{ProgramID: 3, Title: "C", StartTime: now.Add(3 * time.Minute), NotifyPending: true},
	}
	proc, store, sink := newProcessor(p)

	proc.ProcessDue(context.Background(), now, lead)
	if got := len(sink.emissions()); got != 1 {
		t.Fatalf("emissions after tick 1 = %d, want 1", got)
	}
	if store.Len() != 2 {
		t.Fatalf("store Len = %d, want 2", store.Len())
	}

	// Earliest-due wins; the rest wait for following ticks.
	if sink.emissions()[0].body[:1] != "A" {
		t.Fatalf("first emission = %q, want title A first", sink.emissions()[0].body)
	}

	proc.ProcessDue(context.Background(), now, lead)
	proc.ProcessDue(context.Background(), now, lead)
	if got := len(sink.emissions()); got != 3 {
		t.Fatalf("emissions after 3 ticks = %d, want 3", got)
	}
	if store.Len() != 0 {
		t.Fatalf("store Len = %d, want 0", store.Len())
	}
}

func TestProcessDueThresholdScenario(t *testing.T) {
	t.Parallel()
	// lead=300s, now=12:00:00: a 12:04:30 start is due (threshold 12:05:00),
	// a 12:05:30 start is not.
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	p := newFakeProvider()
	p.pending = []PendingNotification{
		{ProgramID: 1, Title: "Early", StartTime: time.Date(2026, 8, 29, 12, 4, 30, 0, time.UTC), NotifyPending: true},
		{ProgramID: 2, Title: "Late", StartTime: time.Date(2026, 8, 29, 12, 5, 30, 0, time.UTC), NotifyPending: true},
	}
	proc, store, sink := newProcessor(p)

	proc.ProcessDue(context.Background(), now, 300*time.Second)
	got := sink.emissions()
	if len(got) != 1 || !strings.HasPrefix(got[0].body, "Early") {
		t.Fatalf("emissions = %+v, want exactly the 12:04:30 program", got)
	}

	// Second tick: the 12:05:30 entry is still outside the window.
	proc.ProcessDue(context.Background(), now, 300*time.Second)
	if len(sink.emissions()) != 1 {
		t.Fatalf("12:05:30 program fired early")
	}
	if store.Len() != 1 {
		t.Fatalf("store Len = %d, want 1", store.Len())
	}
}

func TestProcessDueExactBoundaryNotDue(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	lead := 5 * time.Minute
	p := newFakeProvider()
	p.pending = []PendingNotification{
		{ProgramID: 1, Title: "Edge", StartTime: now.Add(lead), NotifyPending: true},
	}
	proc, _, sink := newProcessor(p)

	proc.ProcessDue(context.Background(), now, lead)
	if len(sink.emissions()) != 0 {
		t.Fatal("entry at now+lead exactly must not be due")
	}

	// One second inside the window it fires.
	p.mu.Lock()
	p.pending[0].StartTime = now.Add(lead - time.Second)
	p.mu.Unlock()
	proc2, _, sink2 := newProcessor(p)
	proc2.ProcessDue(context.Background(), now, lead)
	if len(sink2.emissions()) != 1 {
		t.Fatal("entry at now+lead-1s must be due")
	}
}

func TestProcessDuePersistsFlagAndConsumesEntry(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	ch := Channel{ID: 7, Name: "One"}
	p := newFakeProvider()
	p.pending = []PendingNotification{
		{ProgramID: 42, Channel: ch, Title: "News", StartTime: now.Add(time.Minute), NotifyPending: true},
	}
	proc, store, sink := newProcessor(p)

	proc.ProcessDue(context.Background(), now, 5*time.Minute)

	flag, ok := p.persistedFlag(42)
	if !ok || flag {
		t.Fatalf("persisted flag = (%v, %v), want (false, true)", flag, ok)
	}
	if store.Len() != 0 {
		t.Fatal("entry still in store after emission")
	}
	got := sink.emissions()
	if len(got) != 1 || got[0].heading != "Starting soon" || got[0].ch != ch {
		t.Fatalf("emission = %+v", got)
	}

	// Next tick does nothing, and without a MarkStale there is no reload.
	proc.ProcessDue(context.Background(), now, 5*time.Minute)
	if len(sink.emissions()) != 1 {
		t.Fatal("consumed entry re-emitted")
	}
	if p.loadCount() != 1 {
		t.Fatalf("loads = %d, want 1", p.loadCount())
	}
}

func TestProcessDuePersistFailureRetainsEntry(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	p := newFakeProvider()
	p.pending = []PendingNotification{
		{ProgramID: 1, Title: "News", StartTime: now.Add(time.Minute), NotifyPending: true},
	}
	p.persistErr = errBoom
	proc, store, sink := newProcessor(p)

	proc.ProcessDue(context.Background(), now, 5*time.Minute)
	if len(sink.emissions()) != 0 {
		t.Fatal("emitted despite persist failure")
	}
	if store.Len() != 1 {
		t.Fatal("entry dropped despite persist failure")
	}

	// Next cycle retries naturally.
	p.mu.Lock()
	p.persistErr = nil
	p.mu.Unlock()
	proc.ProcessDue(context.Background(), now, 5*time.Minute)
	if len(sink.emissions()) != 1 {
		t.Fatal("retry after persist recovery did not emit")
	}
}

func TestProcessDueEmptyStoreIsNoop(t *testing.T) {
	t.Parallel()
	p := newFakeProvider()
	proc, _, sink := newProcessor(p)
	proc.ProcessDue(context.Background(), time.Now(), 5*time.Minute)
	if len(sink.emissions()) != 0 {
		t.Fatal("emission from empty store")
	}
}

func TestProcessDueReloadFailureScansPreviousContents(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	p := newFakeProvider()
	p.pending = []PendingNotification{
		{ProgramID: 1, Title: "News", StartTime: now.Add(time.Minute), NotifyPending: true},
	}
	proc, store, sink := newProcessor(p)

	// Prime the store, then make reloads fail and mark it stale.
	store.RefreshIfStale(context.Background())
	p.mu.Lock()
	p.loadErr = errBoom
	p.mu.Unlock()
	store.MarkStale()

	proc.ProcessDue(context.Background(), now, 5*time.Minute)
	if len(sink.emissions()) != 1 {
		t.Fatal("previous contents not scanned after failed reload")
	}
}
