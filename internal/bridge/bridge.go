// Package bridge maintains the persistent push channel to the server and
// translates pushed events into cache invalidations. While the channel is
// down it switches the cache to its polling fallback; the cache never knows
// which trigger fired.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/sitesentry/livesync/internal/events"
	"github.com/sitesentry/livesync/internal/logger"
	"github.com/sitesentry/livesync/internal/querycache"
	"github.com/sitesentry/livesync/internal/retry"
)

// ErrNotConnected is returned by Emit while the channel is down.
var ErrNotConnected = errors.New("bridge: not connected")

// Config configures the event bridge.
type Config struct {
	// URL is the websocket endpoint, e.g. ws://host:port/ws.
	URL string
	// PollInterval is the cache refresh interval used while disconnected.
	PollInterval time.Duration
	// Reconnect tunes the backoff between connection attempts.
	Reconnect retry.Config
	// OnStateChange, when set, observes connectivity transitions. Views
	// use it for the stale/offline indicator.
	OnStateChange func(connected bool)
}

// Bridge owns one websocket connection per session.
type Bridge struct {
	cfg   Config
	cache *querycache.Cache
	log   logger.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// New creates a bridge bound to the session cache.
func New(cfg Config, cache *querycache.Cache, log logger.Logger) *Bridge {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.Reconnect.InitialDelay <= 0 {
		cfg.Reconnect = retry.DefaultConfig()
	}
	return &Bridge{cfg: cfg, cache: cache, log: log}
}

// Run connects and pumps events until ctx is cancelled, reconnecting with
// backoff after every drop. It always returns ctx.Err().
func (b *Bridge) Run(ctx context.Context) error {
	// Until the first connect succeeds the cache polls.
	b.setConnected(false)

	attempt := 0
	for {
		if err := b.connectAndPump(ctx); err != nil && ctx.Err() == nil {
			b.log.Warn("push channel dropped", logger.Error(err))
		}

		// On shutdown the polling fallback must stay off; the refresh
		// goroutine would outlive Run otherwise.
		if ctx.Err() != nil {
			b.cache.SetRefreshInterval(0)
			return ctx.Err()
		}
		b.setConnected(false)

		attempt++
		delay := b.cfg.Reconnect.DelayFor(attempt)
		b.log.Info("reconnecting push channel",
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			b.cache.SetRefreshInterval(0)
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (b *Bridge) connectAndPump(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, b.cfg.URL, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("dial %s: %w", b.cfg.URL, err)
	}

	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()
	b.setConnected(true)
	b.log.Info("push channel connected", logger.String("url", b.cfg.URL))

	defer func() {
		b.mu.Lock()
		b.conn = nil
		b.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		var env events.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return fmt.Errorf("read event: %w", err)
		}
		b.dispatch(env)
	}
}

func (b *Bridge) dispatch(env events.Envelope) {
	ks := InvalidationKeys(env)
	if len(ks) == 0 {
		b.log.Debug("ignoring event without invalidation mapping",
			logger.String("event", string(env.Event)),
		)
		return
	}
	for _, key := range ks {
		b.cache.Invalidate(key)
	}
	b.log.Debug("event dispatched",
		logger.String("event", string(env.Event)),
		logger.String("event_id", env.EventID.String()),
		logger.Int64("website_id", env.Data.WebsiteID),
	)
}

// Emit sends a client-originated event over the channel. Pass-through only;
// no invalidation happens locally.
func (b *Bridge) Emit(ctx context.Context, event events.Type, data events.Payload) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return wsjson.Write(ctx, conn, events.New(event, data))
}

// setConnected toggles the polling fallback and notifies the observer.
func (b *Bridge) setConnected(connected bool) {
	if connected {
		b.cache.SetRefreshInterval(0)
	} else {
		b.cache.SetRefreshInterval(b.cfg.PollInterval)
	}
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(connected)
	}
}
