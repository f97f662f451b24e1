// Package recorder maintains the event link to the recorder backend.
//
// The backend pushes line-delimited lifecycle signals over TCP
// ("started <recordingID>", "ended <recordingID>", "failed <scheduleID>");
// the client republishes them on the event bus and tracks connectivity for
// the poll loop's connected gate.
package recorder

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"tvnotifyd/internal/eventbus"
	"tvnotifyd/pkg/logx"
)

type Config struct {
	Addr        string
	DialTimeout time.Duration

	// Reconnect backoff bounds.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

func (c Config) withDefaults() Config {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReconnectMin <= 0 {
		c.ReconnectMin = time.Second
	}
	if c.ReconnectMax < c.ReconnectMin {
		c.ReconnectMax = 30 * time.Second
	}
	return c
}

// Client owns the connection goroutine. Safe for concurrent use.
type Client struct {
	cfg Config
	bus eventbus.Bus
	log logx.Logger

	connected atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, bus eventbus.Bus, log logx.Logger) *Client {
	return &Client{cfg: cfg.withDefaults(), bus: bus, log: log}
}

// Connected reports whether the event link is currently up.
func (c *Client) Connected() bool { return c.connected.Load() }

// Start launches the connect/read loop. Idempotent.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	rctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(rctx)
	}()
}

// Stop tears the link down and waits for the loop to exit. Idempotent.
func (c *Client) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	c.wg.Wait()
}

func (c *Client) run(ctx context.Context) {
	backoff := c.cfg.ReconnectMin
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.log.Warn("recorder dial failed",
				logx.String("addr", c.cfg.Addr),
				logx.Duration("retry_in", backoff),
				logx.Err(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < c.cfg.ReconnectMax {
				backoff *= 2
				if backoff > c.cfg.ReconnectMax {
					backoff = c.cfg.ReconnectMax
				}
			}
			continue
		}

		backoff = c.cfg.ReconnectMin
		c.connected.Store(true)
		c.log.Info("recorder connected", logx.String("addr", c.cfg.Addr))

		err = c.readLoop(ctx, conn)
		c.connected.Store(false)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		c.log.Warn("recorder link lost", logx.Err(err))
	}
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: c.cfg.DialTimeout}
	return d.DialContext(ctx, "tcp", c.cfg.Addr)
}

func (c *Client) readLoop(ctx context.Context, conn net.Conn) error {
	// Unblock the scanner when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		ev, ok := parseEvent(sc.Text())
		if !ok {
			c.log.Debug("unrecognized recorder event", logx.String("line", sc.Text()))
			continue
		}
		c.bus.Publish(ev)
	}
	return sc.Err()
}

// parseEvent decodes one event line. Unknown kinds and malformed ids are
// skipped, not errors: the backend may speak a newer dialect.
func parseEvent(line string) (eventbus.Event, bool) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) != 2 {
		return eventbus.Event{}, false
	}
	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || id <= 0 {
		return eventbus.Event{}, false
	}

	var typ string
	switch strings.ToLower(fields[0]) {
	case "started":
		typ = eventbus.TypeRecordingStarted
	case "ended":
		typ = eventbus.TypeRecordingEnded
	case "failed":
		typ = eventbus.TypeRecordingFailed
	default:
		return eventbus.Event{}, false
	}
	return eventbus.Event{Type: typ, Data: eventbus.RecorderEvent{ID: id}}, true
}
