package notify

import (
	"context"
	"time"

	"tvnotifyd/pkg/logx"
)

// Processor scans the store for due pre-alerts and surfaces at most one
// notification per call. Remaining due entries wait for the next tick; with
// a lead time measured in minutes and a tick measured in seconds, the
// throttle never loses an alert.
type Processor struct {
	store    *Store
	provider Provider
	sink     Sink
	log      logx.Logger
}

func NewProcessor(store *Store, provider Provider, sink Sink, log logx.Logger) *Processor {
	return &Processor{store: store, provider: provider, sink: sink, log: log}
}

// ProcessDue emits the first entry whose start time has entered the
// pre-alert window: start < now+lead (an entry starting exactly at the
// window edge is not yet due).
//
// The flag flip is persisted before anything becomes user-visible; if the
// write fails the entry stays in the store and the next tick retries.
func (p *Processor) ProcessDue(ctx context.Context, now time.Time, lead time.Duration) {
	p.store.RefreshIfStale(ctx)

	threshold := now.Add(lead)
	entry, ok := p.store.FirstDue(threshold)
	if !ok {
		return
	}

	entry.NotifyPending = false
	if err := p.provider.Persist(ctx, entry); err != nil {
		p.log.Error("notify flag persist failed",
			logx.Int64("program_id", entry.ProgramID), logx.Err(err))
		return
	}
	p.store.Remove(entry.ProgramID)

	p.log.Info("program pre-alert",
		logx.String("title", entry.Title),
		logx.String("channel", entry.Channel.Name),
		logx.Time("start", entry.StartTime))

	p.sink.Emit(headingStartingSoon, formatProgramBody(entry), entry.Channel)
}
