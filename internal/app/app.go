// Package app wires the daemon together: config, logging, the event bus,
// the TV library, the recorder link and the notification core.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"tvnotifyd/internal/config"
	"tvnotifyd/internal/eventbus"
	"tvnotifyd/internal/notify"
	"tvnotifyd/internal/recorder"
	"tvnotifyd/internal/sink"
	"tvnotifyd/internal/storage"
	"tvnotifyd/pkg/logx"
)

const defaultPreAlertLead = 300 * time.Second

type App struct {
	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger

	bus eventbus.Bus
	lib *storage.Library
	rec *recorder.Client
	mgr *notify.Manager

	mu       sync.Mutex
	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
	started  bool
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(mapLogging(cfg.Logging))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(logs.Logger().With(logx.String("comp", "config")))

	bus := eventbus.New()

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	lib, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, logs.Logger().With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	recCfg, err := mapRecorder(cfg.Recorder)
	if err != nil {
		_ = lib.Close()
		return nil, err
	}
	rec := recorder.New(recCfg, bus, logs.Logger().With(logx.String("comp", "recorder")))

	sinks := sink.Multi{sink.NewBus(bus)}
	if cfg.Telegram != nil && cfg.Telegram.Enabled {
		tg, err := sink.NewTelegram(sink.TelegramConfig{
			Token:      cfg.Telegram.Token,
			ChatID:     cfg.Telegram.ChatID,
			RatePerSec: cfg.Telegram.RatePerSec,
		}, logs.Logger().With(logx.String("comp", "telegram")))
		if err != nil {
			_ = lib.Close()
			return nil, err
		}
		sinks = append(sinks, tg)
	}

	lead, err := config.ParseDurationOrDefault("notifications.pre_alert_lead",
		cfg.Notifications.PreAlertLead, defaultPreAlertLead)
	if err != nil {
		_ = lib.Close()
		return nil, err
	}

	nlog := logs.Logger().With(logx.String("comp", "notify"))
	store := notify.NewStore(lib, nlog)
	proc := notify.NewProcessor(store, lib, sinks, nlog)
	bridge := notify.NewBridge(lib, sinks, nil, nlog)
	mgr := notify.NewManager(notify.Config{
		RecordingAlerts: cfg.Notifications.RecordingAlerts,
		PreAlertLead:    lead,
	}, rec, store, proc, bridge, bus, nlog)

	return &App{
		cfgm: cfgm,
		logs: logs,
		log:  log,
		bus:  bus,
		lib:  lib,
		rec:  rec,
		mgr:  mgr,
	}, nil
}

// Start brings the daemon up and reports readiness to systemd.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return nil
	}

	bgCtx, cancel := context.WithCancel(context.Background())
	a.bgCancel = cancel

	// Hot-apply the logging section on config edits; notification and
	// recorder knobs stay fixed until restart.
	a.cfgm.OnChange(func(cfg *config.Config) {
		a.logs.Apply(mapLogging(cfg.Logging))
	})
	a.bgWG.Add(1)
	go func() {
		defer a.bgWG.Done()
		_ = a.cfgm.Watch(bgCtx)
	}()

	a.rec.Start(bgCtx)
	if err := a.mgr.Start(); err != nil {
		a.rec.Stop()
		cancel()
		a.bgWG.Wait()
		a.bgCancel = nil
		return err
	}

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
	} else if ok {
		a.startWatchdog(bgCtx)
	}

	a.started = true
	a.log.Info("tvnotifyd started")
	return nil
}

// startWatchdog feeds the systemd watchdog at half its timeout.
func (a *App) startWatchdog(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	a.bgWG.Add(1)
	go func() {
		defer a.bgWG.Done()
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	}()
}

// Stop shuts everything down; an in-flight tick runs to completion.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return nil
	}
	a.started = false

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	a.mgr.Stop()
	a.rec.Stop()
	if a.bgCancel != nil {
		a.bgCancel()
		a.bgCancel = nil
	}
	a.bgWG.Wait()

	if err := a.lib.Close(); err != nil {
		a.log.Warn("library close failed", logx.Err(err))
	}
	a.log.Info("tvnotifyd stopped")
	return a.logs.Close()
}

func mapLogging(lc config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File: logx.FileConfig{
			Enabled: lc.File.Enabled,
			Path:    lc.File.Path,
		},
	}
}

func mapRecorder(rc config.RecorderConfig) (recorder.Config, error) {
	dial, err := config.ParseDurationOrDefault("recorder.dial_timeout", rc.DialTimeout, 5*time.Second)
	if err != nil {
		return recorder.Config{}, err
	}
	minB, err := config.ParseDurationOrDefault("recorder.reconnect_min", rc.ReconnectMin, time.Second)
	if err != nil {
		return recorder.Config{}, err
	}
	maxB, err := config.ParseDurationOrDefault("recorder.reconnect_max", rc.ReconnectMax, 30*time.Second)
	if err != nil {
		return recorder.Config{}, err
	}
	return recorder.Config{
		Addr:         rc.Addr,
		DialTimeout:  dial,
		ReconnectMin: minB,
		ReconnectMax: maxB,
	}, nil
}
