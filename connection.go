// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package stomp

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mochi-mqtt/stompws/frames"
	"github.com/mochi-mqtt/stompws/mempool"
	"github.com/mochi-mqtt/stompws/transports"
)

// outbound is a frame waiting to be written to the transport.
type outbound struct {
	frame frames.Frame // the frame, for hooks and statistics
	data  []byte       // the encoded frame
	close bool         // close the connection after all preceding frames are written
}

// connection is a single transport connection and the state bound to it.
type connection struct {
	transport         transports.Transport
	cfg               *transports.Config
	headers           frames.Header  // headers given to Open for CONNECT
	parser            *frames.Parser // reassembles frames from transport messages
	outbound          chan outbound  // frames waiting for the writer
	done              chan struct{}  // closed when the connection is torn down
	disconnectTimer   *time.Timer    // closes the connection if the disconnect receipt is late
	disconnectReceipt string         // the receipt id sent with DISCONNECT
	epoch             uint64         // the connection attempt this belongs to
	lastRead          int64          // unix nanoseconds of the last bytes received
	heartbeat         HeartBeat      // the heart-beat sent with CONNECT
	opened            bool           // the transport reported open
	once              sync.Once
}

// newConnection returns a connection for a dialed transport.
func newConnection(epoch uint64, t transports.Transport, cfg *transports.Config, headers frames.Header, o *Options) *connection {
	return &connection{
		epoch:     epoch,
		transport: t,
		cfg:       cfg,
		headers:   headers.Clone(),
		parser:    frames.NewParser(frames.V10, o.MaximumFrameSize),
		outbound:  make(chan outbound, o.MaximumWritesPending),
		done:      make(chan struct{}),
		lastRead:  time.Now().UnixNano(),
	}
}

// stop ends the connection's goroutines and timers.
func (cn *connection) stop() {
	cn.once.Do(func() {
		close(cn.done)
		if cn.disconnectTimer != nil {
			cn.disconnectTimer.Stop()
		}
	})
}

// touch records that bytes were received.
func (cn *connection) touch() {
	atomic.StoreInt64(&cn.lastRead, time.Now().UnixNano())
}

// idle returns the time since bytes were last received.
func (cn *connection) idle() time.Duration {
	return time.Since(time.Unix(0, atomic.LoadInt64(&cn.lastRead)))
}

// connHandler receives the transport events of one connection attempt.
type connHandler struct {
	c     *Client
	epoch uint64
}

func (h *connHandler) OnOpen()                         { h.c.onOpen(h.epoch) }
func (h *connHandler) OnMessage(b []byte)              { h.c.onMessage(h.epoch, b) }
func (h *connHandler) OnClose(code int, reason string) { h.c.onClose(h.epoch, code, reason) }
func (h *connHandler) OnError(err error)               { h.c.onError(h.epoch, err) }

// current returns the live connection if it belongs to epoch. The lock must be held.
func (c *Client) current(epoch uint64) *connection {
	if c.conn == nil || c.conn.epoch != epoch {
		return nil
	}

	return c.conn
}

// onOpen sends CONNECT once the transport is open.
func (c *Client) onOpen(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cn := c.current(epoch)
	if cn == nil || c.state != Connecting {
		return
	}

	cn.opened = true
	f := c.connectFrame(cn)

	cx, cy, err := frames.ParseHeartBeat(f.Header.Get(frames.HeaderHeartBeat))
	if err != nil {
		c.Log.Warn("heartbeats disabled", "error", err)
		f.Header.Set(frames.HeaderHeartBeat, frames.FormatHeartBeat(0, 0))
	}
	cn.heartbeat = HeartBeat{Outgoing: cx, Incoming: cy}

	c.Log.Debug("transport open, sending CONNECT", "epoch", epoch)
	if err := c.enqueue(cn, f); err != nil {
		c.teardown(cn, err, true)
	}
}

// onMessage parses the frames in a transport message and processes them in order.
func (c *Client) onMessage(epoch uint64, b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cn := c.current(epoch)
	if cn == nil {
		return
	}

	cn.touch()
	atomic.AddInt64(&c.Info.BytesReceived, int64(len(b)))
	cn.parser.Feed(b)

	for c.conn == cn {
		f, ok, err := cn.parser.Next()
		if err != nil {
			c.Log.Error("failed to decode frame", "error", err, "epoch", epoch)
			c.teardown(cn, err, true)
			return
		}

		if !ok {
			return
		}

		c.processFrame(cn, f)
	}
}

// onClose handles the transport closing.
func (c *Client) onClose(epoch uint64, code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cn := c.current(epoch)
	if cn == nil {
		return
	}

	if c.state == Disconnecting {
		c.teardown(cn, nil, false)
		return
	}

	c.teardown(cn, fmt.Errorf("%w: code %d %s", frames.ErrConnectionClosed, code, reason), true)
}

// onError handles the transport failing, including failing to open.
func (c *Client) onError(epoch uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cn := c.current(epoch)
	if cn == nil {
		return
	}

	c.transportFailed(cn, err)
}

// transportFailed tears down a connection after a transport error. The lock must be held.
func (c *Client) transportFailed(cn *connection, err error) {
	switch {
	case c.state == Disconnecting:
		c.teardown(cn, nil, false)
	case !cn.opened:
		c.teardown(cn, fmt.Errorf("%w: %w", frames.ErrTransportOpen, err), true)
	default:
		c.teardown(cn, fmt.Errorf("%w: %w", frames.ErrConnectionClosed, err), true)
	}
}

// processFrame acts on a single decoded frame. The lock must be held.
func (c *Client) processFrame(cn *connection, f frames.Frame) {
	if f.IsHeartbeat() {
		atomic.AddInt64(&c.Info.HeartbeatsReceived, 1)
		if c.hooks.Provides(OnServerHeartbeat) {
			c.emit(func() {
				c.hooks.OnServerHeartbeat(c)
			})
		}
		return
	}

	atomic.AddInt64(&c.Info.FramesReceived, 1)

	f, err := c.hooks.OnFrameRead(c, f)
	if err != nil {
		return
	}

	switch f.Command {
	case frames.Connected:
		c.processConnected(cn, f)
	case frames.Message:
		c.processMessage(f)
	case frames.Receipt:
		c.processReceipt(cn, f)
	case frames.Error:
		c.processError(cn, f)
	default:
		c.Log.Warn("ignored unexpected frame", "command", f.Command.String())
	}
}

// processConnected completes the handshake and negotiates the version and heartbeats.
func (c *Client) processConnected(cn *connection, f frames.Frame) {
	if c.state != Connecting {
		c.Log.Warn("ignored unexpected CONNECTED frame", "state", c.state.String())
		return
	}

	v, err := frames.ParseVersion(f.Header.Get(frames.HeaderVersion))
	if err == nil && !slices.Contains(c.Options.AcceptVersion, v) {
		err = fmt.Errorf("%w: server chose %s", frames.ErrUnsupportedVersion, v)
	}

	var sx, sy int
	if err == nil {
		sx, sy, err = frames.ParseHeartBeat(f.Header.Get(frames.HeaderHeartBeat))
	}

	if err != nil {
		c.Log.Error("invalid CONNECTED frame", "error", err)
		c.cancelReconnect()
		c.teardown(cn, err, false)
		return
	}

	out, in := frames.NegotiateHeartBeat(cn.heartbeat.Outgoing, cn.heartbeat.Incoming, sx, sy)

	c.version = v
	c.session = f.Header.Get(frames.HeaderSession)
	c.server = f.Header.Get(frames.HeaderServer)
	c.state = Connected
	c.Info.Version = string(v)
	cn.parser.SetVersion(v)
	atomic.AddInt64(&c.Info.Connections, 1)
	atomic.StoreInt64(&c.Info.Connected, 1)

	if out > 0 || in > 0 {
		go c.superviseHeartbeats(cn, out, in)
	}

	c.Log.Info("connected", "version", v, "session", c.session, "server", c.server, "heartbeat_out", out, "heartbeat_in", in)
	c.emit(func() {
		c.hooks.OnConnect(c, f)
	})
}

// processMessage routes a MESSAGE frame to its subscription. Messages for a
// subscription which is not active are dropped.
func (c *Client) processMessage(f frames.Frame) {
	id := f.Header.Get(frames.HeaderSubscription)
	sub, ok := c.Subscriptions.Get(id)
	if !ok {
		c.dropMessage(f)
		return
	}

	msg := newMessage(f)
	c.dispatch.Enqueue(sub.ID, func() {
		// the subscription may have ended while the message was queued.
		if _, ok := c.Subscriptions.Get(sub.ID); !ok {
			c.dropMessage(f)
			return
		}

		atomic.AddInt64(&c.Info.MessagesReceived, 1)
		if sub.Handler != nil {
			sub.Handler(msg)
		}

		c.hooks.OnMessage(c, msg)
	})
}

// dropMessage reports a MESSAGE frame which has no active subscription.
func (c *Client) dropMessage(f frames.Frame) {
	c.Log.Warn("ignored MESSAGE for unknown subscription",
		"subscription", f.Header.Get(frames.HeaderSubscription),
		"message_id", f.Header.Get(frames.HeaderMessageID))
	atomic.AddInt64(&c.Info.MessagesDropped, 1)
	c.emit(func() {
		c.hooks.OnMessageDropped(c, f)
	})
}

// processReceipt resolves the receipt named by a RECEIPT frame.
func (c *Client) processReceipt(cn *connection, f frames.Frame) {
	id := f.Header.Get(frames.HeaderReceiptID)
	fn, ok := c.Receipts.Resolve(id)
	if !ok {
		c.Log.Warn("ignored RECEIPT for unknown receipt", "receipt_id", id)
		return
	}

	atomic.AddInt64(&c.Info.ReceiptsResolved, 1)
	atomic.StoreInt64(&c.Info.ReceiptsPending, int64(c.Receipts.Len()))
	c.emit(func() {
		if fn != nil {
			fn(id)
		}
		c.hooks.OnReceipt(c, id)
	})

	if c.state == Disconnecting && id == cn.disconnectReceipt {
		c.teardown(cn, nil, false)
	}
}

// processError reports a server ERROR frame and ends the connection. A pending
// reconnect is cancelled.
func (c *Client) processError(cn *connection, f frames.Frame) {
	msg := f.Header.Get(frames.HeaderMessage)
	atomic.AddInt64(&c.Info.ServerErrors, 1)
	c.Log.Error("server error", "message", msg)

	c.emit(func() {
		c.hooks.OnError(c, msg, f.Body)
	})

	c.cancelReconnect()
	c.teardown(cn, fmt.Errorf("%w: %s", frames.ErrProtocolError, msg), false)
}

// enqueue encodes a frame and queues it for the writer without blocking. The
// lock must be held.
func (c *Client) enqueue(cn *connection, f frames.Frame) error {
	if !f.IsHeartbeat() {
		f = c.hooks.OnFrameEncode(c, f)
	}

	buf := mempool.GetBuffer()
	defer mempool.PutBuffer(buf)

	if err := f.Encode(buf, c.version); err != nil {
		return err
	}

	data := make([]byte, buf.Len())
	copy(data, buf.Bytes())

	select {
	case cn.outbound <- outbound{frame: f, data: data}:
		return nil
	default:
		c.Log.Warn("too many pending writes", "command", f.Command.String(), "pending", len(cn.outbound))
		return frames.ErrPendingWritesExceeded
	}
}

// writeLoop writes queued frames to the transport in order until the connection ends.
func (c *Client) writeLoop(cn *connection) {
	for {
		select {
		case <-cn.done:
			return
		case out := <-cn.outbound:
			if out.close {
				c.closeAfterDisconnect(cn)
				return
			}

			if err := cn.transport.Send(out.data); err != nil {
				c.writeFailed(cn, err)
				return
			}

			atomic.AddInt64(&c.Info.BytesSent, int64(len(out.data)))
			if out.frame.IsHeartbeat() {
				atomic.AddInt64(&c.Info.HeartbeatsSent, 1)
				continue
			}

			atomic.AddInt64(&c.Info.FramesSent, 1)
			if c.hooks.Provides(OnFrameSent) {
				c.emit(func() {
					c.hooks.OnFrameSent(c, out.frame, out.data)
				})
			}
		}
	}
}

// closeAfterDisconnect ends a connection whose DISCONNECT frame has been written.
func (c *Client) closeAfterDisconnect(cn *connection) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == cn && c.state == Disconnecting {
		c.teardown(cn, nil, false)
	}
}

// writeFailed tears down a connection whose transport rejected a write.
func (c *Client) writeFailed(cn *connection, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != cn {
		return
	}

	c.Log.Error("failed to write frame", "error", err, "epoch", cn.epoch)
	c.transportFailed(cn, err)
}
