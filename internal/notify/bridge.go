package notify

import (
	"context"
	"sync"
	"time"

	"tvnotifyd/internal/eventbus"
	"tvnotifyd/pkg/logx"
)

// Bridge translates recorder lifecycle events from the bus into outbound
// notifications. Handlers are best-effort: a lookup miss is a silent no-op,
// an I/O failure is logged and swallowed, and nothing ever propagates back
// to the event source.
type Bridge struct {
	provider Provider
	sink     Sink
	log      logx.Logger

	// current resolves the channel the user is watching, used for the
	// "recording failed" alert. Optional; the schedule's own channel is the
	// fallback.
	current func() (Channel, bool)

	mu    sync.Mutex
	unsub func()
	wg    sync.WaitGroup

	// lookupTimeout bounds each provider call made from a handler.
	lookupTimeout time.Duration

	now func() time.Time
}

func NewBridge(provider Provider, sink Sink, current func() (Channel, bool), log logx.Logger) *Bridge {
	return &Bridge{
		provider:      provider,
		sink:          sink,
		current:       current,
		log:           log,
		lookupTimeout: 5 * time.Second,
		now:           time.Now,
	}
}

// Attach subscribes to recorder lifecycle events. Idempotent.
func (b *Bridge) Attach(bus eventbus.Bus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unsub != nil {
		return
	}
	ch, unsub := bus.Subscribe(32)
	b.unsub = unsub
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.loop(ch)
	}()
}

// Detach unsubscribes and waits for the dispatch goroutine to drain.
// In-flight handlers run to completion. Idempotent.
func (b *Bridge) Detach() {
	b.mu.Lock()
	unsub := b.unsub
	b.unsub = nil
	b.mu.Unlock()
	if unsub == nil {
		return
	}
	unsub()
	b.wg.Wait()
}

func (b *Bridge) loop(ch <-chan eventbus.Event) {
	for ev := range ch {
		b.dispatch(ev)
	}
}

func (b *Bridge) dispatch(ev eventbus.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic in recording event handler",
				logx.String("event", ev.Type),
				logx.Any("panic", r),
				logx.Stack(logx.StackTrace(3, 16)))
		}
	}()

	re, ok := ev.Data.(eventbus.RecorderEvent)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.lookupTimeout)
	defer cancel()

	switch ev.Type {
	case eventbus.TypeRecordingStarted:
		b.onRecordingStarted(ctx, re.ID)
	case eventbus.TypeRecordingEnded:
		b.onRecordingEnded(ctx, re.ID)
	case eventbus.TypeRecordingFailed:
		b.onRecordingFailed(ctx, re.ID)
	}
}

// onRecordingStarted announces a recording with its title and the scheduled
// time range. The end time includes the schedule's post-record padding.
func (b *Bridge) onRecordingStarted(ctx context.Context, recordingID int64) {
	rec, ok, err := b.provider.RecordingByID(ctx, recordingID)
	if err != nil {
		b.log.Error("recording lookup failed", logx.Int64("recording_id", recordingID), logx.Err(err))
		return
	}
	if !ok || rec.ScheduleID <= 0 {
		return
	}

	sched, ok, err := b.provider.ScheduleByID(ctx, rec.ScheduleID)
	if err != nil {
		b.log.Error("schedule lookup failed", logx.Int64("schedule_id", rec.ScheduleID), logx.Err(err))
		return
	}
	if !ok {
		return
	}

	end := sched.EndTime.Add(sched.PostRecord)
	b.log.Debug("recording started", logx.String("title", rec.Title))
	b.sink.Emit(headingRecordingStarted, formatTimeRange(rec.Title, rec.StartTime, end), rec.Channel)
}

// onRecordingEnded announces a finished recording. When an EPG program with
// the same title overlaps the recording window, its own airing times are
// shown; otherwise the recording's start and the current time are used.
func (b *Bridge) onRecordingEnded(ctx context.Context, recordingID int64) {
	rec, ok, err := b.provider.RecordingByID(ctx, recordingID)
	if err != nil {
		b.log.Error("recording lookup failed", logx.Int64("recording_id", recordingID), logx.Err(err))
		return
	}
	if !ok {
		return
	}

	var body string
	prgs, err := b.provider.ProgramsByTitleWithin(ctx, rec.Title, rec.StartTime, rec.EndTime)
	if err != nil {
		b.log.Error("program lookup failed", logx.String("title", rec.Title), logx.Err(err))
		prgs = nil
	}
	if len(prgs) > 0 {
		prg := prgs[0]
		body = formatTimeRange(prg.Title, prg.StartTime, prg.EndTime)
	} else {
		body = formatTimeRange(rec.Title, rec.StartTime, b.now())
	}

	b.log.Debug("recording stopped", logx.String("title", rec.Title))
	b.sink.Emit(headingRecordingStopped, body, rec.Channel)
}

// onRecordingFailed tells the user no tuner was free for the schedule.
func (b *Bridge) onRecordingFailed(ctx context.Context, scheduleID int64) {
	sched, ok, err := b.provider.ScheduleByID(ctx, scheduleID)
	if err != nil {
		b.log.Error("schedule lookup failed", logx.Int64("schedule_id", scheduleID), logx.Err(err))
		return
	}
	if !ok {
		return
	}

	ch := sched.Channel
	if b.current != nil {
		if cur, ok := b.current(); ok {
			ch = cur
		}
	}

	b.log.Debug("no free tuner", logx.String("program", sched.ProgramName))
	b.sink.Emit(headingRecordingFailed, sched.ProgramName+". "+noFreeTunerText, ch)
}
