package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"tvnotifyd/pkg/logx"
)

// fakeProvider is an in-memory Provider with failure injection.
type fakeProvider struct {
	mu sync.Mutex

	pending []PendingNotification
	loadErr error
	loads   int

	persistErr error
	persisted  map[int64]bool // programID -> NotifyPending value written

	recordings map[int64]Recording
	schedules  map[int64]Schedule
	programs   []Program

	lookupErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		persisted:  map[int64]bool{},
		recordings: map[int64]Recording{},
		schedules:  map[int64]Schedule{},
	}
}

func (f *fakeProvider) PendingNotifications(ctx context.Context) ([]PendingNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return append([]PendingNotification(nil), f.pending...), nil
}

func (f *fakeProvider) Persist(ctx context.Context, p PendingNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.persistErr != nil {
		return f.persistErr
	}
	f.persisted[p.ProgramID] = p.NotifyPending
	return nil
}

func (f *fakeProvider) RecordingByID(ctx context.Context, id int64) (Recording, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return Recording{}, false, f.lookupErr
	}
	r, ok := f.recordings[id]
	return r, ok, nil
}

func (f *fakeProvider) ScheduleByID(ctx context.Context, id int64) (Schedule, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return Schedule{}, false, f.lookupErr
	}
	s, ok := f.schedules[id]
	return s, ok, nil
}

func (f *fakeProvider) ProgramsByTitleWithin(ctx context.Context, title string, start, end time.Time) ([]Program, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	var out []Program
	for _, p := range f.programs {
		if p.Title == title && p.StartTime.Before(end) && p.EndTime.After(start) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProvider) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

func (f *fakeProvider) persistedFlag(programID int64) (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.persisted[programID]
	return v, ok
}

type emission struct {
	heading string
	body    string
	ch      Channel
}

// fakeSink records every emission.
type fakeSink struct {
	mu   sync.Mutex
	sent []emission
}

func (s *fakeSink) Emit(heading, body string, ch Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, emission{heading: heading, body: body, ch: ch})
}

func (s *fakeSink) emissions() []emission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]emission(nil), s.sent...)
}

type fakeLink struct{ up bool }

func (l *fakeLink) Connected() bool { return l.up }

var errBoom = errors.New("boom")

func testLogger() logx.Logger { return logx.Nop() }
