package notify

import (
	"context"
	"time"
)

// Channel is a reference to the channel a program airs on. It is looked up
// from the TV library, never owned by this package.
type Channel struct {
	ID   int64
	Name string
}

// PendingNotification is one flagged program awaiting its pre-alert.
//
// NotifyPending stays true until the alert fires; the flag flip is persisted
// through the Provider so the entry does not reappear on the next reload.
type PendingNotification struct {
	ProgramID   int64
	Channel     Channel
	Title       string
	Description string
	Genre       string
	StartTime   time.Time
	EndTime     time.Time

	NotifyPending bool
}

// Recording is a recorder-side recording row.
type Recording struct {
	ID         int64
	ScheduleID int64 // 0 when the recording has no parent schedule
	Channel    Channel
	Title      string
	StartTime  time.Time
	EndTime    time.Time
}

// Schedule is a recorder-side schedule row.
type Schedule struct {
	ID          int64
	Channel     Channel
	ProgramName string
	StartTime   time.Time
	EndTime     time.Time

	// PostRecord extends the displayed end time of a started recording.
	PostRecord time.Duration
}

// Program is an EPG row, used to resolve the display times of an ended
// recording.
type Program struct {
	ID        int64
	Channel   Channel
	Title     string
	StartTime time.Time
	EndTime   time.Time
}

// Provider is the external data source for programs, schedules and
// recordings.
//
// Lookups report "not found" via the ok result; err is reserved for I/O
// failures. A miss is a normal outcome and must not be treated as an error.
type Provider interface {
	// PendingNotifications returns the programs whose notify flag is set,
	// ordered by start time ascending.
	PendingNotifications(ctx context.Context) ([]PendingNotification, error)

	// Persist writes the entry's NotifyPending flag back to the library.
	Persist(ctx context.Context, p PendingNotification) error

	RecordingByID(ctx context.Context, id int64) (Recording, bool, error)
	ScheduleByID(ctx context.Context, id int64) (Schedule, bool, error)

	// ProgramsByTitleWithin returns programs with the given title overlapping
	// [start, end), ordered by start time ascending.
	ProgramsByTitleWithin(ctx context.Context, title string, start, end time.Time) ([]Program, error)
}

// Link reports whether the recorder backend is reachable. Ticks are no-ops
// while disconnected.
type Link interface {
	Connected() bool
}

// Sink hands a formatted notification to the host UI. Fire-and-forget:
// implementations must not block for long and have no acknowledgment.
type Sink interface {
	Emit(heading, body string, ch Channel)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(heading, body string, ch Channel)

func (f SinkFunc) Emit(heading, body string, ch Channel) { f(heading, body, ch) }
