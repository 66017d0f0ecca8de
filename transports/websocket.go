// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package transports

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	closeWriteTimeout       = time.Second
)

// DefaultSubprotocols are offered when a config does not specify any.
var DefaultSubprotocols = []string{"v12.stomp", "v11.stomp", "v10.stomp"}

// WebsocketDialer dials websocket transports.
type WebsocketDialer struct{}

// NewWebsocketDialer returns a new websocket dialer.
func NewWebsocketDialer() *WebsocketDialer {
	return new(WebsocketDialer)
}

// Dial validates the config and starts connecting in the background.
func (d *WebsocketDialer) Dial(cfg *Config, h Handler) (Transport, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: no config", ErrInvalidURL)
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}

	subprotocols := cfg.Subprotocols
	if len(subprotocols) == 0 {
		subprotocols = DefaultSubprotocols
	}

	timeout := cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}

	t := &Websocket{
		handler: h,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: timeout,
			Subprotocols:     subprotocols,
			TLSClientConfig:  cfg.TLSConfig,
		},
	}

	go t.run(u.String(), cfg.Header.Clone())
	return t, nil
}

// Websocket is a transport over a gorilla websocket connection.
type Websocket struct {
	sync.RWMutex
	handler  Handler
	dialer   *websocket.Dialer
	conn     *websocket.Conn
	protocol string
	closed   bool
	end      uint32
	cancel   context.CancelFunc
}

// Subprotocol returns the subprotocol selected by the server, if any.
func (t *Websocket) Subprotocol() string {
	t.RLock()
	defer t.RUnlock()
	return t.protocol
}

// run dials the server and then reads messages until the connection ends.
func (t *Websocket) run(u string, header map[string][]string) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Lock()
	if t.closed {
		t.Unlock()
		cancel()
		return
	}
	t.cancel = cancel
	t.Unlock()

	conn, _, err := t.dialer.DialContext(ctx, u, header)
	cancel()
	if err != nil {
		if !t.isClosed() {
			t.handler.OnError(err)
		}
		return
	}

	t.Lock()
	if t.closed {
		t.Unlock()
		conn.Close()
		return
	}
	t.conn = conn
	t.protocol = conn.Subprotocol()
	t.Unlock()

	t.handler.OnOpen()
	t.read(conn)
}

// read delivers each inbound message to the handler.
func (t *Websocket) read(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.finish(err)
			return
		}

		t.handler.OnMessage(data)
	}
}

// finish reports the end of the connection exactly once.
func (t *Websocket) finish(err error) {
	if !atomic.CompareAndSwapUint32(&t.end, 0, 1) {
		return
	}

	if t.isClosed() {
		t.handler.OnClose(CloseNormal, "")
		return
	}

	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		t.handler.OnClose(ce.Code, ce.Text)
		return
	}

	t.handler.OnError(err)
}

func (t *Websocket) isClosed() bool {
	t.RLock()
	defer t.RUnlock()
	return t.closed
}

// Send writes a single text message. Only one goroutine may call Send at a time.
func (t *Websocket) Send(b []byte) error {
	t.RLock()
	conn, closed := t.conn, t.closed
	t.RUnlock()

	if conn == nil || closed {
		return ErrNotOpen
	}

	return conn.WriteMessage(websocket.TextMessage, b)
}

// Close sends a close frame and closes the connection. Closing a transport which
// is still connecting abandons the attempt.
func (t *Websocket) Close(code int, reason string) error {
	t.Lock()
	if t.closed {
		t.Unlock()
		return nil
	}
	t.closed = true
	conn, cancel := t.conn, t.cancel
	t.Unlock()

	if conn == nil {
		if cancel != nil {
			cancel()
		}
		return nil
	}

	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(closeWriteTimeout),
	)

	return conn.Close()
}
