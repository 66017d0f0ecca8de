// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

// Package stomp provides a STOMP 1.0, 1.1 and 1.2 client which runs over a
// websocket, or any other message transport.
package stomp

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mochi-mqtt/stompws/frames"
	"github.com/mochi-mqtt/stompws/hooks/storage"
	"github.com/mochi-mqtt/stompws/system"
	"github.com/mochi-mqtt/stompws/transports"
)

const (
	Version = "1.0.0" // the current client version.

	eventLane = "$events" // the dispatch lane key for lifecycle events
)

var (
	ErrInvalidAckMode = errors.New("invalid ack mode") // the ack mode is not auto, client or client-individual
)

// Client is a STOMP client. It owns at most one connection at a time, along with
// the subscriptions and receipts of that connection. It should be created with
// stomp.New() in order to ensure all the internal fields are correctly populated.
//
// No method blocks on network I/O. The outcome of an operation is reported
// asynchronously through hooks, subscription handlers and receipt functions,
// which are called from the client's dispatcher, never concurrently for the
// same subscription.
type Client struct {
	Options       *Options       // configurable client options
	Info          *system.Info   // client statistics
	Log           *slog.Logger   // structured logger for the client
	Subscriptions *Subscriptions // active subscriptions of the current connection
	Receipts      *Receipts      // receipts awaited on the current connection
	ID            string         // the client id, from Options.ClientID
	hooks         *Hooks         // hooks contains hooks for extra functionality such as journals and debugging
	dispatch      *FanPool       // ordered delivery of callbacks
	mu            sync.Mutex     // guards all fields below, state transitions and the registries
	state         State          // the lifecycle state
	conn          *connection    // the live connection, if any
	epoch         uint64         // incremented for each connection attempt
	version       frames.Version // the negotiated protocol version
	session       string         // the session id sent by the server
	server        string         // the server header sent by the server
	lastCfg       *transports.Config
	lastHeaders   frames.Header
	reconnect     *time.Timer // the pending reconnect, if any
	reconnectGen  uint64      // invalidates superseded reconnect timers
	autoStop      *time.Timer // the pending auto-disconnect, if any
	autoStopGen   uint64      // invalidates superseded auto-disconnect timers
	nextSubID     uint64      // the last subscription id issued
	hooksLoaded   bool        // Options.Hooks have been added
	closed        bool        // Close has been called
}

// New returns a new client. Optional parameters can be specified to override
// some default settings (see Options).
func New(opts *Options) *Client {
	if opts == nil {
		opts = new(Options)
	}

	opts.ensureDefaults()

	c := &Client{
		ID:            opts.ClientID,
		Options:       opts,
		Subscriptions: NewSubscriptions(),
		Receipts:      NewReceipts(),
		Info: &system.Info{
			Started: time.Now().Unix(),
		},
		Log: opts.Logger.With("client", opts.ClientID),
		hooks: &Hooks{
			Log: opts.Logger,
		},
		dispatch: NewFanPool(opts.DispatchLanes),
		version:  frames.V10,
		lastCfg:  &opts.Transport,
	}

	return c
}

// AddHook attaches a new Hook to the client. Ideally, this should be called
// before the client is opened.
func (c *Client) AddHook(hook Hook, config any) error {
	nl := c.Log.With("hook", hook.ID())
	hook.SetOpts(nl, &HookOptions{
		ClientID: c.ID,
	})

	c.Log.Info("added hook", "hook", hook.ID())
	return c.hooks.Add(hook, config)
}

// AddHooksFromConfig adds hooks to the client which were specified in the hooks
// config (usually from a config file).
func (c *Client) AddHooksFromConfig(hooks []HookLoadConfig) error {
	for _, h := range hooks {
		if err := c.AddHook(h.Hook, h.Config); err != nil {
			return err
		}
	}
	return nil
}

// Open starts a connection to the server described by cfg, or by Options.Transport
// if cfg is nil. The headers are added to the CONNECT frame, taking precedence
// over the headers derived from the options. Open returns once the transport has
// been dialed; OnConnect is called when the server accepts the connection.
// Opening cancels any pending reconnect.
func (c *Client) Open(cfg *transports.Config, headers frames.Header) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return frames.ErrClientClosed
	}

	if !c.state.idle() {
		return frames.ErrAlreadyOpen
	}

	c.cancelReconnect()
	return c.open(cfg, headers)
}

// open dials a new connection. The lock must be held.
func (c *Client) open(cfg *transports.Config, headers frames.Header) error {
	if !c.hooksLoaded {
		c.hooksLoaded = true
		if err := c.AddHooksFromConfig(c.Options.Hooks); err != nil {
			return err
		}
	}

	if cfg == nil {
		cfg = c.lastCfg
	}

	c.lastCfg = cfg
	c.lastHeaders = headers.Clone()
	c.epoch++
	atomic.AddInt64(&c.Info.ConnectAttempts, 1)

	c.Log.Debug("opening transport", "url", cfg.URL, "epoch", c.epoch)
	t, err := c.Options.Dialer.Dial(cfg, &connHandler{c: c, epoch: c.epoch})
	if err != nil {
		err = fmt.Errorf("%w: %w", frames.ErrTransportOpen, err)
		c.state = Disconnected
		c.Log.Error("failed to open transport", "error", err, "url", cfg.URL)
		c.emit(func() {
			c.hooks.OnConnectFailed(c, err)
		})
		return err
	}

	cn := newConnection(c.epoch, t, cfg, headers, c.Options)
	c.conn = cn
	c.state = Connecting
	go c.writeLoop(cn)

	return nil
}

// Disconnect starts an orderly disconnect by sending DISCONNECT. If a receipt is
// requested with WithReceipt the transport is closed when the server's receipt
// arrives, or after Options.DisconnectTimeout; otherwise it is closed once the
// frame has been written. Disconnect does nothing unless the client is connected.
// A pending reconnect is kept; use StopReconnect to cancel it.
func (c *Client) Disconnect(opts ...FrameOption) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnect(opts)
}

// disconnect sends DISCONNECT. The lock must be held.
func (c *Client) disconnect(opts []FrameOption) error {
	cn := c.conn
	if cn == nil || c.state != Connected {
		return nil
	}

	fo := newFrameOptions(opts)
	f := frames.New(frames.Disconnect)
	f.Header.Merge(fo.header)
	id, err := c.addReceipt(&f, fo)
	if err != nil {
		return err
	}

	c.stopAutoDisconnect()
	cn.disconnectReceipt = id

	c.state = Disconnecting
	c.Log.Info("disconnecting", "receipt", cn.disconnectReceipt)

	if err := c.enqueue(cn, f); err != nil {
		c.teardown(cn, nil, false)
		return err
	}

	if cn.disconnectReceipt == "" {
		select {
		case cn.outbound <- outbound{close: true}:
		default:
			c.teardown(cn, nil, false)
			return nil
		}
	}

	cn.disconnectTimer = time.AfterFunc(c.Options.DisconnectTimeout, func() {
		c.disconnectExpired(cn)
	})

	return nil
}

// disconnectExpired closes a connection which is still waiting for its
// disconnect receipt.
func (c *Client) disconnectExpired(cn *connection) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != cn || c.state != Disconnecting {
		return
	}

	c.Log.Warn("disconnect receipt not received", "receipt", cn.disconnectReceipt, "timeout", c.Options.DisconnectTimeout)
	c.teardown(cn, nil, false)
}

// Reconnect schedules a new connection after delay, using cfg and headers, or
// those of the previous attempt if they are empty. Only the most recent call takes
// effect. When the timer fires the connection is opened only if no connection is
// live by then.
func (c *Client) Reconnect(cfg *transports.Config, headers frames.Header, delay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.cancelReconnect()
	gen := c.reconnectGen
	c.reconnect = time.AfterFunc(delay, func() {
		c.fireReconnect(gen, cfg, headers)
	})

	if c.state == Disconnected {
		c.state = Reconnecting
	}

	atomic.AddInt64(&c.Info.ReconnectsScheduled, 1)
	c.Log.Info("reconnect scheduled", "delay", delay)
	c.emit(func() {
		c.hooks.OnReconnectScheduled(c, delay)
	})
}

// fireReconnect opens the scheduled connection if the timer is still current.
func (c *Client) fireReconnect(gen uint64, cfg *transports.Config, headers frames.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.reconnectGen {
		return
	}

	c.reconnect = nil
	if !c.state.idle() {
		c.Log.Info("reconnect skipped", "state", c.state.String())
		return
	}

	if headers.Len() == 0 {
		headers = c.lastHeaders
	}

	_ = c.open(cfg, headers) // failures are logged and reported to OnConnectFailed
}

// StopReconnect cancels a pending reconnect.
func (c *Client) StopReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelReconnect()
	if c.state == Reconnecting {
		c.state = Disconnected
	}
}

// cancelReconnect stops any pending reconnect timer. The lock must be held.
func (c *Client) cancelReconnect() {
	c.reconnectGen++
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
}

// AutoDisconnect schedules an orderly Disconnect after d. Only the most recent
// call takes effect, and the timer is cancelled by a manual disconnect or when
// the connection ends.
func (c *Client) AutoDisconnect(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.stopAutoDisconnect()
	gen := c.autoStopGen
	c.autoStop = time.AfterFunc(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		if gen != c.autoStopGen {
			return
		}

		c.autoStop = nil
		if c.state == Connected {
			c.Log.Info("auto-disconnect", "after", d)
			if err := c.disconnect(nil); err != nil {
				c.Log.Warn("auto-disconnect failed", "error", err)
			}
		}
	})
}

// stopAutoDisconnect stops any pending auto-disconnect timer. The lock must be held.
func (c *Client) stopAutoDisconnect() {
	c.autoStopGen++
	if c.autoStop != nil {
		c.autoStop.Stop()
		c.autoStop = nil
	}
}

// Close permanently shuts the client down. Timers are cancelled, any connection
// is closed without a DISCONNECT, pending receipts are discarded, and the hooks
// are stopped after all queued callbacks have run. Close must not be called from
// a hook or subscription handler.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	c.closed = true
	c.cancelReconnect()
	c.stopAutoDisconnect()
	if c.conn != nil {
		c.teardown(c.conn, frames.ErrClientClosed, false)
	}
	c.state = Disconnected
	c.mu.Unlock()

	c.dispatch.Close()
	c.dispatch.Wait()
	c.hooks.Stop()
	c.Log.Info("client closed")
}

// teardown ends a connection, discarding its subscriptions and receipts. It does
// nothing if cn is not the live connection. The lock must be held.
func (c *Client) teardown(cn *connection, err error, unexpected bool) {
	if cn == nil || c.conn != cn {
		return
	}

	wasConnecting := c.state == Connecting
	c.conn = nil
	cn.stop()
	go func() {
		_ = cn.transport.Close(transports.CloseNormal, "")
	}()

	discarded := c.Receipts.Clear()
	c.Subscriptions.Clear()
	atomic.StoreInt64(&c.Info.ReceiptsPending, 0)
	atomic.StoreInt64(&c.Info.Subscriptions, 0)
	c.stopAutoDisconnect()

	c.state = Disconnected
	if c.reconnect != nil {
		c.state = Reconnecting
	}

	c.version = frames.V10
	c.session, c.server = "", ""
	c.Info.Version = ""
	atomic.AddInt64(&c.Info.Disconnects, 1)
	atomic.StoreInt64(&c.Info.Connected, 0)

	if unexpected {
		c.Log.Warn("connection lost", "error", err, "epoch", cn.epoch, "receipts_discarded", discarded)
	} else {
		c.Log.Info("disconnected", "error", err, "epoch", cn.epoch, "receipts_discarded", discarded)
	}

	c.emit(func() {
		if wasConnecting {
			c.hooks.OnConnectFailed(c, err)
		}
		c.hooks.OnDisconnect(c, err, unexpected)
	})
}

// emit queues a lifecycle event on the dispatcher.
func (c *Client) emit(fn func()) {
	c.dispatch.Enqueue(eventLane, fn)
}

// State returns the lifecycle state of the client.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected returns true if the server has accepted the current connection and
// it is not disconnecting.
func (c *Client) Connected() bool {
	return c.State() == Connected
}

// Version returns the negotiated protocol version of the current connection.
func (c *Client) Version() frames.Version {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Session returns the session id the server sent with CONNECTED.
func (c *Client) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Server returns the server header the server sent with CONNECTED.
func (c *Client) Server() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.server
}

// SysInfo returns a snapshot of the client statistics.
func (c *Client) SysInfo() *system.Info {
	c.mu.Lock()
	info := c.Info.Clone()
	c.mu.Unlock()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	now := time.Now().Unix()
	info.Time = now
	info.Uptime = now - info.Started
	info.MemoryAlloc = int64(m.HeapInuse)
	info.Threads = int64(runtime.NumGoroutine())

	return info
}

// StoredSubscriptions returns the subscriptions journaled for this client by the
// storage hooks.
func (c *Client) StoredSubscriptions() ([]storage.Subscription, error) {
	subs, err := c.hooks.StoredSubscriptions()
	if err != nil {
		return nil, err
	}

	var m []storage.Subscription
	for _, sub := range subs {
		if sub.Client == c.ID {
			m = append(m, sub)
		}
	}

	return m, nil
}

// StoredMessages returns the messages journaled for this client by the storage
// hooks, in the order they were received.
func (c *Client) StoredMessages() ([]storage.Message, error) {
	msgs, err := c.hooks.StoredMessages()
	if err != nil {
		return nil, err
	}

	var m []storage.Message
	for _, msg := range msgs {
		if msg.Client == c.ID {
			m = append(m, msg)
		}
	}

	return m, nil
}

// connectFrame builds the CONNECT frame for a connection. Headers given to Open
// take precedence over those derived from the options.
func (c *Client) connectFrame(cn *connection) frames.Frame {
	o := c.Options
	f := frames.Frame{
		Command: frames.Connect,
		Header:  cn.headers.Clone(),
	}

	host := o.Host
	if host == "" {
		if u, err := url.Parse(cn.cfg.URL); err == nil {
			host = u.Hostname()
		}
	}

	f.Header.Merge(frames.NewHeader(
		frames.HeaderAcceptVersion, frames.JoinVersions(o.AcceptVersion),
		frames.HeaderHost, host,
		frames.HeaderHeartBeat, frames.FormatHeartBeat(o.HeartBeat.Outgoing, o.HeartBeat.Incoming),
	))

	if o.Login != "" {
		f.Header.Merge(frames.NewHeader(frames.HeaderLogin, o.Login))
	}

	if o.Passcode != "" {
		f.Header.Merge(frames.NewHeader(frames.HeaderPasscode, o.Passcode))
	}

	keys := make([]string, 0, len(o.ConnectHeaders))
	for k := range o.ConnectHeaders {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		f.Header.Merge(frames.NewHeader(k, o.ConnectHeaders[k]))
	}

	return f
}
