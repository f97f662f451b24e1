package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"tvnotifyd/internal/eventbus"
	"tvnotifyd/pkg/logx"
)

// tickEvery is the fixed poll cadence. Due entries are spaced out one per
// tick, so the cadence doubles as the alert throttle.
const tickEvery = 15 * time.Second

// Config is read once at construction and immutable for the process
// lifetime.
type Config struct {
	// RecordingAlerts attaches the recorder event bridge on Start.
	RecordingAlerts bool

	// PreAlertLead is how long before a program's start the pre-alert fires.
	PreAlertLead time.Duration
}

// Manager drives the notification core: a cron-backed 15 second tick that
// runs the due-notification processor, and the event bridge reacting to
// recorder signals.
//
// The busy flag guards tick against tick only; bridge handlers run on the
// bus dispatch goroutine and synchronize with the tick through the Store.
type Manager struct {
	cfg    Config
	link   Link
	proc   *Processor
	bridge *Bridge
	store  *Store
	bus    eventbus.Bus
	log    logx.Logger

	busy atomic.Bool

	mu       sync.Mutex
	c        *cron.Cron
	busUnsub func()
	wg       sync.WaitGroup

	// tickTimeout bounds the provider/sink work of one tick.
	tickTimeout time.Duration
}

func NewManager(cfg Config, link Link, store *Store, proc *Processor, bridge *Bridge, bus eventbus.Bus, log logx.Logger) *Manager {
	return &Manager{
		cfg:         cfg,
		link:        link,
		store:       store,
		proc:        proc,
		bridge:      bridge,
		bus:         bus,
		log:         log,
		tickTimeout: 10 * time.Second,
	}
}

// Start begins ticking and, when recording alerts are enabled, attaches the
// bridge. Idempotent; callable from any lifecycle point.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.c != nil {
		return nil
	}

	m.log.Info("notify manager start",
		logx.Bool("recording_alerts", m.cfg.RecordingAlerts),
		logx.Duration("pre_alert_lead", m.cfg.PreAlertLead))

	if m.cfg.RecordingAlerts && m.bridge != nil {
		m.bridge.Attach(m.bus)
	}

	// External edits of the notify list invalidate the in-memory set.
	ch, unsub := m.bus.Subscribe(8)
	m.busUnsub = unsub
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for ev := range ch {
			if ev.Type == eventbus.TypeNotifiesChanged {
				m.log.Info("notify list changed")
				m.store.MarkStale()
			}
		}
	}()

	c := cron.New()
	if _, err := c.AddFunc("@every "+tickEvery.String(), m.tick); err != nil {
		unsub()
		m.busUnsub = nil
		if m.cfg.RecordingAlerts && m.bridge != nil {
			m.bridge.Detach()
		}
		return err
	}
	c.Start()
	m.c = c
	return nil
}

// Stop halts ticking and detaches the bridge. An in-flight tick runs to
// completion. Idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	c := m.c
	m.c = nil
	unsub := m.busUnsub
	m.busUnsub = nil
	m.mu.Unlock()
	if c == nil {
		return
	}

	m.log.Info("notify manager stop")
	c.Stop()
	if unsub != nil {
		unsub()
	}
	if m.cfg.RecordingAlerts && m.bridge != nil {
		m.bridge.Detach()
	}
	m.wg.Wait()
}

// tick is the poll body. At most one tick's work runs at a time: a tick
// arriving while busy is dropped, not queued. Skipping is harmless because
// the pre-alert window is minutes wide against a 15 second cadence.
func (m *Manager) tick() {
	if !m.link.Connected() {
		return
	}

	if !m.busy.CompareAndSwap(false, true) {
		return
	}
	defer m.busy.Store(false)

	defer func() {
		if r := recover(); r != nil {
			m.log.Error("panic in notify tick",
				logx.Any("panic", r),
				logx.Stack(logx.StackTrace(3, 16)))
		}
	}()

	// The link may have dropped between the first check and winning the
	// busy flag.
	if !m.link.Connected() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.tickTimeout)
	defer cancel()
	m.proc.ProcessDue(ctx, time.Now(), m.cfg.PreAlertLead)
}
