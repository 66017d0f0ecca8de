// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package stomp

import (
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mochi-mqtt/stompws/frames"
	"github.com/mochi-mqtt/stompws/hooks/storage"
	"github.com/stretchr/testify/require"
)

type modifiedHookBase struct {
	HookBase
	err  error
	fail bool
	deny bool
}

var errTestHook = errors.New("error")

func (h *modifiedHookBase) ID() string {
	return "modified"
}

func (h *modifiedHookBase) Init(config any) error {
	if config != nil {
		return errTestHook
	}
	return nil
}

func (h *modifiedHookBase) Provides(b byte) bool {
	return true
}

func (h *modifiedHookBase) Stop() error {
	if h.fail {
		return errTestHook
	}

	return nil
}

func (h *modifiedHookBase) OnFrameRead(cl *Client, f frames.Frame) (frames.Frame, error) {
	if h.fail {
		if h.err != nil {
			return f, h.err
		}

		return f, errTestHook
	}

	f.Header.Set("modified", "true")
	return f, nil
}

func (h *modifiedHookBase) OnFrameEncode(cl *Client, f frames.Frame) frames.Frame {
	f.Header.Set("encoded", "true")
	return f
}

func (h *modifiedHookBase) OnACLCheck(cl *Client, destination string, write bool) bool {
	return !h.deny
}

func (h *modifiedHookBase) StoredSubscriptions() (v []storage.Subscription, err error) {
	if h.fail {
		return v, errTestHook
	}

	return []storage.Subscription{
		{ID: "cl1:1", Client: "cl1", Identifier: "1", Destination: "/queue/a"},
		{ID: "cl1:2", Client: "cl1", Identifier: "2", Destination: "/queue/b"},
		{ID: "cl2:1", Client: "cl2", Identifier: "1", Destination: "/queue/a"},
	}, nil
}

func (h *modifiedHookBase) StoredMessages() (v []storage.Message, err error) {
	if h.fail {
		return v, errTestHook
	}

	return []storage.Message{
		{ID: "cl1:m3", Client: "cl1", MessageID: "m3", Received: 3},
		{ID: "cl1:m1", Client: "cl1", MessageID: "m1", Received: 1},
		{ID: "cl2:m2", Client: "cl2", MessageID: "m2", Received: 2},
	}, nil
}

type providesCheckHook struct {
	HookBase
}

func (h *providesCheckHook) Provides(b byte) bool {
	return b == OnConnect
}

func TestHooksProvides(t *testing.T) {
	h := new(Hooks)
	err := h.Add(new(providesCheckHook), nil)
	require.NoError(t, err)

	err = h.Add(new(HookBase), nil)
	require.NoError(t, err)

	require.True(t, h.Provides(OnConnect, OnDisconnect))
	require.False(t, h.Provides(OnDisconnect))
}

func TestHooksAddLenGetAll(t *testing.T) {
	h := new(Hooks)
	err := h.Add(new(HookBase), nil)
	require.NoError(t, err)

	err = h.Add(new(modifiedHookBase), nil)
	require.NoError(t, err)

	require.Equal(t, int64(2), atomic.LoadInt64(&h.qty))
	require.Equal(t, int64(2), h.Len())

	all := h.GetAll()
	require.Equal(t, "base", all[0].ID())
	require.Equal(t, "modified", all[1].ID())
}

func TestHooksAddInitFailure(t *testing.T) {
	h := new(Hooks)
	err := h.Add(new(modifiedHookBase), map[string]any{})
	require.Error(t, err)
	require.ErrorIs(t, err, errTestHook)
	require.Equal(t, int64(0), atomic.LoadInt64(&h.qty))
}

func TestHooksStop(t *testing.T) {
	h := new(Hooks)
	h.Log = logger

	err := h.Add(new(HookBase), nil)
	require.NoError(t, err)

	hook := new(modifiedHookBase)
	hook.fail = true
	err = h.Add(hook, nil)
	require.NoError(t, err)
	require.Equal(t, int64(2), h.Len())

	h.Stop()
}

// coverage: also cover some empty functions
func TestHooksNonReturns(t *testing.T) {
	h := new(Hooks)
	h.Log = logger
	cl := new(Client)

	for i := 0; i < 2; i++ {
		t.Run("step-"+strconv.Itoa(i), func(t *testing.T) {
			// on first iteration, check without hook methods
			h.OnConnect(cl, frames.Frame{})
			h.OnConnectFailed(cl, nil)
			h.OnDisconnect(cl, nil, false)
			h.OnFrameSent(cl, frames.Frame{}, []byte{})
			h.OnMessage(cl, Message{})
			h.OnMessageDropped(cl, frames.Frame{})
			h.OnReceipt(cl, "r1")
			h.OnError(cl, "bad", nil)
			h.OnServerHeartbeat(cl)
			h.OnSubscribed(cl, Subscription{})
			h.OnUnsubscribed(cl, Subscription{})
			h.OnReconnectScheduled(cl, time.Second)

			// on second iteration, check added hook methods
			err := h.Add(new(modifiedHookBase), nil)
			require.NoError(t, err)
		})
	}
}

func TestHooksOnFrameRead(t *testing.T) {
	h := new(Hooks)
	h.Log = logger

	hook := new(modifiedHookBase)
	err := h.Add(hook, nil)
	require.NoError(t, err)

	f, err := h.OnFrameRead(new(Client), frames.New(frames.Message, frames.HeaderMessageID, "m1"))
	require.NoError(t, err)
	require.Equal(t, "true", f.Header.Get("modified"))

	// coverage: failure keeps the frame as it was
	hook.fail = true
	f, err = h.OnFrameRead(new(Client), frames.New(frames.Message, frames.HeaderMessageID, "m1"))
	require.NoError(t, err)
	require.Equal(t, "m1", f.Header.Get(frames.HeaderMessageID))
	require.Equal(t, "", f.Header.Get("modified"))

	// coverage: reject frame
	hook.err = frames.ErrRejectFrame
	f, err = h.OnFrameRead(new(Client), frames.New(frames.Message, frames.HeaderMessageID, "m1"))
	require.Error(t, err)
	require.ErrorIs(t, err, frames.ErrRejectFrame)
	require.Equal(t, "m1", f.Header.Get(frames.HeaderMessageID))
}

func TestHooksOnFrameEncode(t *testing.T) {
	h := new(Hooks)
	h.Log = logger

	f := h.OnFrameEncode(new(Client), frames.New(frames.Send))
	require.Equal(t, "", f.Header.Get("encoded"))

	err := h.Add(new(modifiedHookBase), nil)
	require.NoError(t, err)

	f = h.OnFrameEncode(new(Client), frames.New(frames.Send))
	require.Equal(t, "true", f.Header.Get("encoded"))
}

func TestHooksOnACLCheck(t *testing.T) {
	h := new(Hooks)
	h.Log = logger
	require.True(t, h.OnACLCheck(new(Client), "/queue/a", true))

	require.NoError(t, h.Add(new(modifiedHookBase), nil))
	require.True(t, h.OnACLCheck(new(Client), "/queue/a", false))

	// any denying hook refuses access.
	hook := new(modifiedHookBase)
	hook.deny = true
	require.NoError(t, h.Add(hook, nil))
	require.False(t, h.OnACLCheck(new(Client), "/queue/a", true))
}

func TestHooksStoredSubscriptions(t *testing.T) {
	h := new(Hooks)
	h.Log = logger

	v, err := h.StoredSubscriptions()
	require.NoError(t, err)
	require.Len(t, v, 0)

	hook := new(modifiedHookBase)
	err = h.Add(hook, nil)
	require.NoError(t, err)

	v, err = h.StoredSubscriptions()
	require.NoError(t, err)
	require.Len(t, v, 3)

	hook.fail = true
	v, err = h.StoredSubscriptions()
	require.Error(t, err)
	require.Len(t, v, 0)
}

func TestHooksStoredMessages(t *testing.T) {
	h := new(Hooks)
	h.Log = logger

	v, err := h.StoredMessages()
	require.NoError(t, err)
	require.Len(t, v, 0)

	hook := new(modifiedHookBase)
	err = h.Add(hook, nil)
	require.NoError(t, err)

	v, err = h.StoredMessages()
	require.NoError(t, err)
	require.Len(t, v, 3)
	require.Equal(t, "m1", v[0].MessageID)
	require.Equal(t, "m2", v[1].MessageID)
	require.Equal(t, "m3", v[2].MessageID)

	hook.fail = true
	v, err = h.StoredMessages()
	require.Error(t, err)
	require.Len(t, v, 0)
}

func TestHookBaseID(t *testing.T) {
	h := new(HookBase)
	require.Equal(t, "base", h.ID())
}

func TestHookBaseProvidesNone(t *testing.T) {
	h := new(HookBase)
	require.False(t, h.Provides(OnConnect))
	require.False(t, h.Provides(OnDisconnect))
}

func TestHookBaseInit(t *testing.T) {
	h := new(HookBase)
	require.Nil(t, h.Init(nil))
}

func TestHookBaseSetOpts(t *testing.T) {
	h := new(HookBase)
	h.SetOpts(logger, &HookOptions{ClientID: "cl1"})
	require.NotNil(t, h.Log)
	require.Equal(t, "cl1", h.Opts.ClientID)
}

func TestHookBaseClose(t *testing.T) {
	h := new(HookBase)
	require.Nil(t, h.Stop())
}

func TestHookBaseOnFrameRead(t *testing.T) {
	h := new(HookBase)
	f, err := h.OnFrameRead(new(Client), frames.New(frames.Receipt, frames.HeaderReceiptID, "r1"))
	require.NoError(t, err)
	require.Equal(t, "r1", f.Header.Get(frames.HeaderReceiptID))
}

func TestHookBaseOnFrameEncode(t *testing.T) {
	h := new(HookBase)
	f := h.OnFrameEncode(new(Client), frames.New(frames.Send, frames.HeaderDestination, "/queue/a"))
	require.Equal(t, "/queue/a", f.Header.Get(frames.HeaderDestination))
}

func TestHookBaseOnACLCheck(t *testing.T) {
	h := new(HookBase)
	require.False(t, h.OnACLCheck(new(Client), "/queue/a", true))
}

func TestHookBaseStoredSubscriptions(t *testing.T) {
	h := new(HookBase)
	v, err := h.StoredSubscriptions()
	require.NoError(t, err)
	require.Empty(t, v)
}

func TestHookBaseStoredMessages(t *testing.T) {
	h := new(HookBase)
	v, err := h.StoredMessages()
	require.NoError(t, err)
	require.Empty(t, v)
}
