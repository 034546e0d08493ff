package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"LiveChart/internal/domain/models"
	drepo "LiveChart/internal/domain/repository"
	"LiveChart/pkg/logger"

	"github.com/gorilla/websocket"
)

// WSOption configures WSTransport.
type WSOption func(*WSTransport)

// WithWSHeader adds a header to the upgrade request, e.g. an API key.
func WithWSHeader(key, value string) WSOption {
	return func(t *WSTransport) {
		if value != "" {
			t.header.Set(key, value)
		}
	}
}

// WithPingInterval sets the keepalive ping period.
func WithPingInterval(d time.Duration) WSOption {
	return func(t *WSTransport) {
		if d > 0 {
			t.pingInterval = d
		}
	}
}

// WithReconnectDelay sets the pause before a reconnect dial.
func WithReconnectDelay(d time.Duration) WSOption {
	return func(t *WSTransport) {
		if d >= 0 {
			t.reconnectDelay = d
		}
	}
}

// WithEventBuffer sets the capacity of the event channel returned by Read.
func WithEventBuffer(n int) WSOption {
	return func(t *WSTransport) {
		if n > 0 {
			t.buffer = n
		}
	}
}

// WithWSLogger sets the transport logger.
func WithWSLogger(l *logger.Logger) WSOption {
	return func(t *WSTransport) {
		if l != nil {
			t.log = l
		}
	}
}

// WSTransport is a StreamTransport over one upstream websocket. Frames of sessions that are
// not subscribed are dropped before they reach the reader.
type WSTransport struct {
	url            string
	header         http.Header
	pingInterval   time.Duration
	reconnectDelay time.Duration
	buffer         int
	log            *logger.Logger

	writeMu   sync.Mutex
	conn      *websocket.Conn
	connected atomic.Bool

	subsMu sync.RWMutex
	subs   map[models.ChartSession]struct{}
}

var _ drepo.StreamTransport = (*WSTransport)(nil)

// NewWSTransport creates a websocket transport for url.
func NewWSTransport(url string, opts ...WSOption) *WSTransport {
	t := &WSTransport{
		url:            url,
		header:         http.Header{},
		pingInterval:   30 * time.Second,
		reconnectDelay: time.Second,
		buffer:         1024,
		log:            logger.Nop(),
		subs:           make(map[models.ChartSession]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Connect dials the upstream.
func (t *WSTransport) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.url, t.header)
	if err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}
	t.writeMu.Lock()
	t.conn = conn
	t.writeMu.Unlock()
	t.connected.Store(true)
	t.log.Info("stream connected", logger.String("url", t.url))
	return nil
}

// Subscribe sends a subscribe intent and starts accepting frames of s.
func (t *WSTransport) Subscribe(ctx context.Context, s models.ChartSession) error {
	t.subsMu.Lock()
	t.subs[s] = struct{}{}
	t.subsMu.Unlock()
	return t.send(NewIntent(IntentSubscribe, s))
}

// Unsubscribe stops accepting frames of s, then sends the unsubscribe intent.
func (t *WSTransport) Unsubscribe(ctx context.Context, s models.ChartSession) error {
	t.subsMu.Lock()
	delete(t.subs, s)
	t.subsMu.Unlock()
	return t.send(NewIntent(IntentUnsubscribe, s))
}

func (t *WSTransport) send(in Intent) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if t.conn == nil || !t.connected.Load() {
		return errors.New("stream not connected")
	}
	if err := t.conn.WriteJSON(in); err != nil {
		return fmt.Errorf("%s %s@%s: %w", in.Type, in.Symbol, in.Timeframe, err)
	}
	t.log.Debug("intent sent", logger.String("type", in.Type), logger.String("symbol", in.Symbol), logger.String("timeframe", in.Timeframe))
	return nil
}

func (t *WSTransport) subscribed(s models.ChartSession) bool {
	t.subsMu.RLock()
	defer t.subsMu.RUnlock()
	_, ok := t.subs[s]
	return ok
}

// Read streams decoded events of subscribed sessions until the connection fails or ctx is
// done. The first read error is sent on the error channel, then both channels close.
func (t *WSTransport) Read(ctx context.Context) (<-chan models.Event, <-chan error) {
	events := make(chan models.Event, t.buffer)
	errs := make(chan error, 1)

	t.writeMu.Lock()
	conn := t.conn
	t.writeMu.Unlock()

	done := make(chan struct{})

	// ping loop
	go func() {
		ticker := time.NewTicker(t.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				t.writeMu.Lock()
				if conn != nil {
					_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				}
				t.writeMu.Unlock()
			}
		}
	}()

	// read loop
	go func() {
		defer close(done)
		defer close(events)
		defer close(errs)
		if conn == nil {
			errs <- errors.New("stream conn nil")
			return
		}
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		defer stop()
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				t.writeMu.Lock()
				if t.conn == conn {
					t.connected.Store(false)
				}
				t.writeMu.Unlock()
				if ctx.Err() == nil {
					errs <- fmt.Errorf("stream read: %w", err)
				}
				return
			}
			ev, err := DecodeEvent(b)
			if err != nil {
				t.log.Warn("malformed frame dropped", logger.Int("bytes", len(b)), logger.Error(err))
				continue
			}
			if !t.subscribed(ev.Session()) {
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, errs
}

// Reconnect closes the connection, waits the reconnect delay and dials again. Subscriptions
// are forgotten; callers resubscribe.
func (t *WSTransport) Reconnect(ctx context.Context) error {
	_ = t.Close()
	t.subsMu.Lock()
	clear(t.subs)
	t.subsMu.Unlock()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(t.reconnectDelay):
	}
	return t.Connect(ctx)
}

// Close closes the websocket connection.
func (t *WSTransport) Close() error {
	t.connected.Store(false)
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// IsConnected indicates status.
func (t *WSTransport) IsConnected() bool { return t.connected.Load() }
