package events

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pasapalabra/go/clients"
)

const (
	SyncPath     = "/ws/sync"
	LastPath     = "/api/sync/last"
	writeTimeout = 10 * time.Second
)

// ErrNotConnected is returned by Publish while the websocket is reconnecting.
var ErrNotConnected = errors.New("events: websocket not connected")

// WebSocketTransport exchanges events through a sync gateway. The gateway
// relays each message to every other connection and keeps the latest one.
type WebSocketTransport struct {
	wsURL          string
	api            *clients.BaseClient
	dialer         *websocket.Dialer
	reconnectDelay time.Duration

	writeMu sync.Mutex
	conn    *websocket.Conn

	mu       sync.Mutex
	watchers map[int]func([]byte)
	nextID   int
	closed   bool

	cancel context.CancelFunc
	done   chan struct{}
}

// DialWebSocket connects to the gateway at baseURL (http or https).
func DialWebSocket(ctx context.Context, baseURL string) (*WebSocketTransport, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid gateway url: %w", err)
	}
	httpBase := u.String()
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	default:
		return nil, fmt.Errorf("unsupported gateway scheme %q", u.Scheme)
	}
	u.Path += SyncPath

	t := &WebSocketTransport{
		wsURL:          u.String(),
		api:            clients.NewBaseClient(httpBase),
		dialer:         websocket.DefaultDialer,
		reconnectDelay: time.Second,
		watchers:       make(map[int]func([]byte)),
		done:           make(chan struct{}),
	}

	conn, _, err := t.dialer.DialContext(ctx, t.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial gateway: %w", err)
	}
	t.conn = conn

	loopCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	go t.readLoop(loopCtx)

	log.Info().Str("url", t.wsURL).Msg("connected to sync gateway")
	return t, nil
}

func (t *WebSocketTransport) Publish(ctx context.Context, data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.conn == nil {
		return ErrNotConnected
	}
	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = t.conn.SetWriteDeadline(deadline)
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write message to gateway: %w", err)
	}
	return nil
}

func (t *WebSocketTransport) Last(ctx context.Context) ([]byte, error) {
	return t.api.Get(ctx, LastPath)
}

func (t *WebSocketTransport) Clear(ctx context.Context) error {
	_, err := t.api.Delete(ctx, LastPath)
	return err
}

func (t *WebSocketTransport) Watch(ctx context.Context, fn func([]byte)) (func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrNotConnected
	}

	id := t.nextID
	t.nextID++
	t.watchers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.watchers, id)
			t.mu.Unlock()
		})
	}, nil
}

func (t *WebSocketTransport) readLoop(ctx context.Context) {
	defer close(t.done)

	for {
		t.writeMu.Lock()
		conn := t.conn
		t.writeMu.Unlock()

		if conn == nil {
			if !t.reconnect(ctx) {
				return
			}
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("gateway connection lost")
			}
			t.writeMu.Lock()
			if t.conn == conn {
				t.conn = nil
			}
			t.writeMu.Unlock()
			conn.Close()
			continue
		}

		t.deliver(message)
	}
}

// reconnect retries the dial until it succeeds or ctx is cancelled.
func (t *WebSocketTransport) reconnect(ctx context.Context) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(t.reconnectDelay):
		}

		conn, _, err := t.dialer.DialContext(ctx, t.wsURL, nil)
		if err != nil {
			log.Debug().Err(err).Msg("gateway reconnect failed")
			continue
		}
		t.writeMu.Lock()
		if ctx.Err() != nil {
			t.writeMu.Unlock()
			conn.Close()
			return false
		}
		t.conn = conn
		t.writeMu.Unlock()
		log.Info().Str("url", t.wsURL).Msg("reconnected to sync gateway")
		return true
	}
}

func (t *WebSocketTransport) deliver(message []byte) {
	t.mu.Lock()
	fns := make([]func([]byte), 0, len(t.watchers))
	for id := 0; id < t.nextID; id++ {
		if fn, ok := t.watchers[id]; ok {
			fns = append(fns, fn)
		}
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(message)
	}
}

// Close sends a close frame and stops the read loop.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.watchers = map[int]func([]byte){}
	t.mu.Unlock()

	t.cancel()

	t.writeMu.Lock()
	conn := t.conn
	t.conn = nil
	if conn != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}
	t.writeMu.Unlock()

	<-t.done
	return nil
}
