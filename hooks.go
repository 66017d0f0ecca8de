// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co, thedevop, dgduncan

package stomp

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mochi-mqtt/stompws/frames"
	"github.com/mochi-mqtt/stompws/hooks/storage"
)

const (
	SetOptions byte = iota
	OnConnect
	OnConnectFailed
	OnDisconnect
	OnFrameRead
	OnFrameEncode
	OnFrameSent
	OnMessage
	OnMessageDropped
	OnReceipt
	OnError
	OnServerHeartbeat
	OnSubscribed
	OnUnsubscribed
	OnReconnectScheduled
	OnACLCheck
	StoredSubscriptions
	StoredMessages
)

var (
	// ErrInvalidConfigType indicates a different Type of config value was expected to what was received.
	ErrInvalidConfigType = errors.New("invalid config type provided")
)

// Hook provides an interface of handlers for different events which occur
// during the lifecycle of a client connection.
//
// OnFrameRead, OnFrameEncode and OnACLCheck are called while the client holds its
// lock and must not call back into the client. All other events are delivered from the
// client's dispatcher and may call any client method.
type Hook interface {
	ID() string
	Provides(b byte) bool
	Init(config any) error
	Stop() error
	SetOpts(l *slog.Logger, o *HookOptions)
	OnConnect(cl *Client, f frames.Frame)
	OnConnectFailed(cl *Client, err error)
	OnDisconnect(cl *Client, err error, unexpected bool)
	OnFrameRead(cl *Client, f frames.Frame) (frames.Frame, error) // triggers when a frame is received, before it is processed
	OnFrameEncode(cl *Client, f frames.Frame) frames.Frame        // modify a frame before it is byte-encoded and written
	OnFrameSent(cl *Client, f frames.Frame, b []byte)             // triggers when frame bytes have been written to the transport
	OnMessage(cl *Client, msg Message)
	OnMessageDropped(cl *Client, f frames.Frame)
	OnReceipt(cl *Client, id string)
	OnError(cl *Client, message string, detail []byte)
	OnServerHeartbeat(cl *Client)
	OnSubscribed(cl *Client, sub Subscription)
	OnUnsubscribed(cl *Client, sub Subscription)
	OnReconnectScheduled(cl *Client, delay time.Duration)
	OnACLCheck(cl *Client, destination string, write bool) bool
	StoredSubscriptions() ([]storage.Subscription, error)
	StoredMessages() ([]storage.Message, error)
}

// HookOptions contains values which are inherited from the client on initialisation.
type HookOptions struct {
	ClientID string
}

// Hooks is a slice of Hook interfaces to be called in sequence.
type Hooks struct {
	Log        *slog.Logger   // a logger for the hook (from the client)
	internal   atomic.Value   // a slice of []Hook
	wg         sync.WaitGroup // a waitgroup for syncing hook shutdown
	qty        int64          // the number of hooks in use
	sync.Mutex                // a mutex for locking when adding hooks
}

// Len returns the number of hooks added.
func (h *Hooks) Len() int64 {
	return atomic.LoadInt64(&h.qty)
}

// Provides returns true if any one hook provides any of the requested hook methods.
func (h *Hooks) Provides(b ...byte) bool {
	for _, hook := range h.GetAll() {
		for _, hb := range b {
			if hook.Provides(hb) {
				return true
			}
		}
	}

	return false
}

// Add adds and initializes a new hook.
func (h *Hooks) Add(hook Hook, config any) error {
	h.Lock()
	defer h.Unlock()

	err := hook.Init(config)
	if err != nil {
		return fmt.Errorf("failed initialising %s hook: %w", hook.ID(), err)
	}

	i, ok := h.internal.Load().([]Hook)
	if !ok {
		i = []Hook{}
	}

	i = append(i, hook)
	h.internal.Store(i)
	atomic.AddInt64(&h.qty, 1)
	h.wg.Add(1)

	return nil
}

// GetAll returns a slice of all the hooks.
func (h *Hooks) GetAll() []Hook {
	i, ok := h.internal.Load().([]Hook)
	if !ok {
		return []Hook{}
	}

	return i
}

// Stop indicates all attached hooks to gracefully end.
func (h *Hooks) Stop() {
	go func() {
		for _, hook := range h.GetAll() {
			h.Log.Info("stopping hook", "hook", hook.ID())
			if err := hook.Stop(); err != nil {
				h.Log.Debug("problem stopping hook", "error", err, "hook", hook.ID())
			}

			h.wg.Done()
		}
	}()

	h.wg.Wait()
}

// OnConnect is called when the server accepts the connection with a CONNECTED frame.
func (h *Hooks) OnConnect(cl *Client, f frames.Frame) {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnConnect) {
			hook.OnConnect(cl, f)
		}
	}
}

// OnConnectFailed is called when a connection attempt ends before the server accepted it.
func (h *Hooks) OnConnectFailed(cl *Client, err error) {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnConnectFailed) {
			hook.OnConnectFailed(cl, err)
		}
	}
}

// OnDisconnect is called when a connection is torn down for any reason. Unexpected
// is true if the transport ended without an orderly disconnect or server error.
func (h *Hooks) OnDisconnect(cl *Client, err error, unexpected bool) {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnDisconnect) {
			hook.OnDisconnect(cl, err, unexpected)
		}
	}
}

// OnFrameRead is called when a frame is received from the server. A hook may modify
// the frame, or return frames.ErrRejectFrame to have the client ignore it.
func (h *Hooks) OnFrameRead(cl *Client, f frames.Frame) (fx frames.Frame, err error) {
	fx = f
	for _, hook := range h.GetAll() {
		if hook.Provides(OnFrameRead) {
			nf, err := hook.OnFrameRead(cl, fx)
			if err != nil && errors.Is(err, frames.ErrRejectFrame) {
				h.Log.Debug("frame rejected", "hook", hook.ID(), "command", fx.Command.String())
				return f, err
			} else if err != nil {
				continue
			}

			fx = nf
		}
	}

	return
}

// OnFrameEncode is called immediately before a frame is encoded to be sent to the server.
func (h *Hooks) OnFrameEncode(cl *Client, f frames.Frame) frames.Frame {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnFrameEncode) {
			f = hook.OnFrameEncode(cl, f)
		}
	}

	return f
}

// OnFrameSent is called when a frame has been written to the transport. It takes a
// bytes parameter containing the bytes sent.
func (h *Hooks) OnFrameSent(cl *Client, f frames.Frame, b []byte) {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnFrameSent) {
			hook.OnFrameSent(cl, f, b)
		}
	}
}

// OnMessage is called after a message has been delivered to its subscription handler.
func (h *Hooks) OnMessage(cl *Client, msg Message) {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnMessage) {
			hook.OnMessage(cl, msg)
		}
	}
}

// OnMessageDropped is called when a MESSAGE frame names no active subscription.
func (h *Hooks) OnMessageDropped(cl *Client, f frames.Frame) {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnMessageDropped) {
			hook.OnMessageDropped(cl, f)
		}
	}
}

// OnReceipt is called when the server acknowledges a frame sent with a receipt.
func (h *Hooks) OnReceipt(cl *Client, id string) {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnReceipt) {
			hook.OnReceipt(cl, id)
		}
	}
}

// OnError is called when the server sends an ERROR frame. The connection is
// torn down immediately afterwards.
func (h *Hooks) OnError(cl *Client, message string, detail []byte) {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnError) {
			hook.OnError(cl, message, detail)
		}
	}
}

// OnServerHeartbeat is called when the server sends a heartbeat.
func (h *Hooks) OnServerHeartbeat(cl *Client) {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnServerHeartbeat) {
			hook.OnServerHeartbeat(cl)
		}
	}
}

// OnSubscribed is called when a SUBSCRIBE frame has been queued for the server.
func (h *Hooks) OnSubscribed(cl *Client, sub Subscription) {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnSubscribed) {
			hook.OnSubscribed(cl, sub)
		}
	}
}

// OnUnsubscribed is called when an UNSUBSCRIBE frame has been queued for the server.
func (h *Hooks) OnUnsubscribed(cl *Client, sub Subscription) {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnUnsubscribed) {
			hook.OnUnsubscribed(cl, sub)
		}
	}
}

// OnReconnectScheduled is called when a reconnect timer is set.
func (h *Hooks) OnReconnectScheduled(cl *Client, delay time.Duration) {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnReconnectScheduled) {
			hook.OnReconnectScheduled(cl, delay)
		}
	}
}

// OnACLCheck is called before a frame is sent to, or a subscription made on, a
// destination. write is true for SEND. Access is denied if any hook denies it.
func (h *Hooks) OnACLCheck(cl *Client, destination string, write bool) bool {
	for _, hook := range h.GetAll() {
		if hook.Provides(OnACLCheck) && !hook.OnACLCheck(cl, destination, write) {
			h.Log.Debug("destination denied", "hook", hook.ID(), "destination", destination, "write", write)
			return false
		}
	}

	return true
}

// StoredSubscriptions returns all journaled subscriptions, e.g. from a persistent store.
// The first hook to return a non-empty result wins.
func (h *Hooks) StoredSubscriptions() (v []storage.Subscription, err error) {
	for _, hook := range h.GetAll() {
		if hook.Provides(StoredSubscriptions) {
			v, err := hook.StoredSubscriptions()
			if err != nil {
				h.Log.Error("failed to load subscriptions", "error", err, "hook", hook.ID())
				return v, err
			}

			if len(v) > 0 {
				return v, nil
			}
		}
	}

	return
}

// StoredMessages returns all journaled messages in the order they were received.
func (h *Hooks) StoredMessages() (v []storage.Message, err error) {
	for _, hook := range h.GetAll() {
		if hook.Provides(StoredMessages) {
			v, err := hook.StoredMessages()
			if err != nil {
				h.Log.Error("failed to load messages", "error", err, "hook", hook.ID())
				return v, err
			}

			if len(v) > 0 {
				sort.SliceStable(v, func(i, j int) bool {
					return v[i].Received < v[j].Received
				})
				return v, nil
			}
		}
	}

	return
}

// HookBase provides a set of default methods for each hook. It should be embedded in
// all hooks.
type HookBase struct {
	Hook
	Log  *slog.Logger
	Opts *HookOptions
}

// ID returns the ID of the hook.
func (h *HookBase) ID() string {
	return "base"
}

// Provides indicates which methods a hook provides. The default is none - this method
// should be overridden by the embedding hook.
func (h *HookBase) Provides(b byte) bool {
	return false
}

// Init performs any pre-start initializations for the hook, such as connecting to databases
// or opening files.
func (h *HookBase) Init(config any) error {
	return nil
}

// SetOpts is called by the client to propagate internal values and generally should
// not be called manually.
func (h *HookBase) SetOpts(l *slog.Logger, opts *HookOptions) {
	h.Log = l
	h.Opts = opts
}

// Stop is called to gracefully shut down the hook.
func (h *HookBase) Stop() error {
	return nil
}

// OnConnect is called when the server accepts the connection.
func (h *HookBase) OnConnect(cl *Client, f frames.Frame) {}

// OnConnectFailed is called when a connection attempt fails.
func (h *HookBase) OnConnectFailed(cl *Client, err error) {}

// OnDisconnect is called when a connection is torn down.
func (h *HookBase) OnDisconnect(cl *Client, err error, unexpected bool) {}

// OnFrameRead is called when a frame is received.
func (h *HookBase) OnFrameRead(cl *Client, f frames.Frame) (frames.Frame, error) {
	return f, nil
}

// OnFrameEncode is called before a frame is encoded.
func (h *HookBase) OnFrameEncode(cl *Client, f frames.Frame) frames.Frame {
	return f
}

// OnFrameSent is called when a frame is written to the transport.
func (h *HookBase) OnFrameSent(cl *Client, f frames.Frame, b []byte) {}

// OnMessage is called when a message is delivered.
func (h *HookBase) OnMessage(cl *Client, msg Message) {}

// OnMessageDropped is called when a message has no subscription.
func (h *HookBase) OnMessageDropped(cl *Client, f frames.Frame) {}

// OnReceipt is called when a receipt is resolved.
func (h *HookBase) OnReceipt(cl *Client, id string) {}

// OnError is called when the server sends an ERROR frame.
func (h *HookBase) OnError(cl *Client, message string, detail []byte) {}

// OnServerHeartbeat is called when the server sends a heartbeat.
func (h *HookBase) OnServerHeartbeat(cl *Client) {}

// OnSubscribed is called when a subscription is made.
func (h *HookBase) OnSubscribed(cl *Client, sub Subscription) {}

// OnUnsubscribed is called when a subscription is removed.
func (h *HookBase) OnUnsubscribed(cl *Client, sub Subscription) {}

// OnReconnectScheduled is called when a reconnect is scheduled.
func (h *HookBase) OnReconnectScheduled(cl *Client, delay time.Duration) {}

// OnACLCheck returns true if the client may use the destination.
func (h *HookBase) OnACLCheck(cl *Client, destination string, write bool) bool {
	return false
}

// StoredSubscriptions returns all stored subscriptions.
func (h *HookBase) StoredSubscriptions() (v []storage.Subscription, err error) {
	return
}

// StoredMessages returns all stored messages.
func (h *HookBase) StoredMessages() (v []storage.Message, err error) {
	return
}
