// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package debug

import (
	"log/slog"
	"time"

	stomp "github.com/mochi-mqtt/stompws"
	"github.com/mochi-mqtt/stompws/frames"
	"github.com/mochi-mqtt/stompws/hooks/storage"
)

// Options contains configuration settings for the debug output.
type Options struct {
	ShowFrameData  bool `yaml:"show_frame_data" json:"show_frame_data"` // include frame headers and body (default false)
	ShowHeartbeats bool `yaml:"show_heartbeats" json:"show_heartbeats"` // show heartbeats received from the server (default false)
	ShowPasscodes  bool `yaml:"show_passcodes" json:"show_passcodes"`   // show the passcode sent with CONNECT (default false)
}

// Hook is a debugging hook which logs additional low-level information from the client.
type Hook struct {
	stomp.HookBase
	config *Options
	Log    *slog.Logger
}

// ID returns the ID of the hook.
func (h *Hook) ID() string {
	return "debug"
}

// Provides indicates that this hook provides all methods.
func (h *Hook) Provides(b byte) bool {
	return true
}

// Init is called when the hook is initialized.
func (h *Hook) Init(config any) error {
	if _, ok := config.(*Options); !ok && config != nil {
		return stomp.ErrInvalidConfigType
	}

	if o, _ := config.(*Options); o == nil {
		config = new(Options)
	}

	h.config = config.(*Options)

	return nil
}

// SetOpts is called when the hook receives inheritable client parameters.
func (h *Hook) SetOpts(l *slog.Logger, opts *stomp.HookOptions) {
	h.Log = l
	h.Log.Debug("", "method", "SetOpts")
}

// Stop is called when the hook is stopped.
func (h *Hook) Stop() error {
	h.Log.Debug("", "method", "Stop")
	return nil
}

// OnConnect is called when the server accepts the connection.
func (h *Hook) OnConnect(cl *stomp.Client, f frames.Frame) {
	h.Log.Debug("connected", "client", cl.ID, "m", h.frameMeta(f))
}

// OnConnectFailed is called when a connection attempt fails.
func (h *Hook) OnConnectFailed(cl *stomp.Client, err error) {
	h.Log.Debug("connect failed", "client", cl.ID, "error", err)
}

// OnDisconnect is called when a connection ends.
func (h *Hook) OnDisconnect(cl *stomp.Client, err error, unexpected bool) {
	h.Log.Debug("disconnected", "client", cl.ID, "unexpected", unexpected, "error", err)
}

// OnFrameRead is called when a frame is received from the server.
func (h *Hook) OnFrameRead(cl *stomp.Client, f frames.Frame) (frames.Frame, error) {
	h.Log.Debug(f.Command.String()+" << "+cl.ID, "m", h.frameMeta(f))
	return f, nil
}

// OnFrameSent is called when a frame has been written to the transport.
func (h *Hook) OnFrameSent(cl *stomp.Client, f frames.Frame, b []byte) {
	h.Log.Debug(f.Command.String()+" >> "+cl.ID, "m", h.frameMeta(f), "bytes", len(b))
}

// OnMessage is called when a message has been delivered to a subscription.
func (h *Hook) OnMessage(cl *stomp.Client, msg stomp.Message) {
	h.Log.Debug("message delivered", "client", cl.ID, "subscription", msg.Subscription, "message_id", msg.MessageID)
}

// OnMessageDropped is called when a message arrives for no active subscription.
func (h *Hook) OnMessageDropped(cl *stomp.Client, f frames.Frame) {
	h.Log.Debug("message dropped", "client", cl.ID, "m", h.frameMeta(f))
}

// OnReceipt is called when a receipt is resolved.
func (h *Hook) OnReceipt(cl *stomp.Client, id string) {
	h.Log.Debug("receipt", "client", cl.ID, "receipt", id)
}

// OnError is called when the server sends an ERROR frame.
func (h *Hook) OnError(cl *stomp.Client, message string, detail []byte) {
	h.Log.Debug("server error", "client", cl.ID, "message", message, "detail", string(detail))
}

// OnServerHeartbeat is called when a heartbeat is received from the server.
func (h *Hook) OnServerHeartbeat(cl *stomp.Client) {
	if !h.config.ShowHeartbeats {
		return
	}

	h.Log.Debug("heartbeat << "+cl.ID, "method", "OnServerHeartbeat")
}

// OnSubscribed is called when a subscription is made.
func (h *Hook) OnSubscribed(cl *stomp.Client, sub stomp.Subscription) {
	h.Log.Debug("subscribed", "client", cl.ID, "subscription", sub.ID, "destination", sub.Destination, "ack", sub.Ack)
}

// OnUnsubscribed is called when a subscription is ended.
func (h *Hook) OnUnsubscribed(cl *stomp.Client, sub stomp.Subscription) {
	h.Log.Debug("unsubscribed", "client", cl.ID, "subscription", sub.ID, "destination", sub.Destination)
}

// OnReconnectScheduled is called when a reconnect is scheduled.
func (h *Hook) OnReconnectScheduled(cl *stomp.Client, delay time.Duration) {
	h.Log.Debug("reconnect scheduled", "client", cl.ID, "delay", delay)
}

// OnACLCheck logs a destination check without affecting its outcome.
func (h *Hook) OnACLCheck(cl *stomp.Client, destination string, write bool) bool {
	h.Log.Debug("acl check", "client", cl.ID, "destination", destination, "write", write)
	return true
}

// StoredSubscriptions is called when the client loads journaled subscriptions.
func (h *Hook) StoredSubscriptions() (v []storage.Subscription, err error) {
	h.Log.Debug("", "method", "StoredSubscriptions")
	return v, nil
}

// StoredMessages is called when the client loads journaled messages.
func (h *Hook) StoredMessages() (v []storage.Message, err error) {
	h.Log.Debug("", "method", "StoredMessages")
	return v, nil
}

// frameMeta returns the loggable parts of a frame.
func (h *Hook) frameMeta(f frames.Frame) map[string]any {
	m := map[string]any{
		"command": f.Command.String(),
		"id":      f.FormatID(),
	}

	if !h.config.ShowFrameData {
		return m
	}

	hd := f.Header.Clone()
	if _, ok := hd.Contains(frames.HeaderPasscode); ok && !h.config.ShowPasscodes {
		hd.Set(frames.HeaderPasscode, "[redacted]")
	}

	m["header"] = hd.Fields
	m["body"] = string(f.Body)

	return m
}
