// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package debug

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	stomp "github.com/mochi-mqtt/stompws"
	"github.com/mochi-mqtt/stompws/frames"
	"github.com/stretchr/testify/require"
)

var client = &stomp.Client{ID: "test"}

func newHook(t *testing.T, opts *Options) (*Hook, *bytes.Buffer) {
	t.Helper()
	buf := new(bytes.Buffer)
	h := new(Hook)
	h.SetOpts(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), nil)
	require.NoError(t, h.Init(opts))
	buf.Reset()
	return h, buf
}

func TestID(t *testing.T) {
	require.Equal(t, "debug", new(Hook).ID())
}

func TestProvides(t *testing.T) {
	h := new(Hook)
	require.True(t, h.Provides(stomp.OnConnect))
	require.True(t, h.Provides(stomp.OnFrameRead))
	require.True(t, h.Provides(stomp.StoredMessages))
}

func TestInit(t *testing.T) {
	h, _ := newHook(t, nil)
	require.Equal(t, new(Options), h.config)

	err := h.Init(map[string]any{})
	require.ErrorIs(t, err, stomp.ErrInvalidConfigType)
}

func TestInitUntypedNil(t *testing.T) {
	h := new(Hook)
	h.SetOpts(slog.New(slog.NewTextHandler(new(bytes.Buffer), nil)), nil)
	require.NoError(t, h.Init(nil))
	require.Equal(t, new(Options), h.config)
}

func TestNilOptionsFrameHandling(t *testing.T) {
	h, buf := newHook(t, (*Options)(nil))
	require.NotNil(t, h.config)

	f := frames.New(frames.Message, frames.HeaderMessageID, "m-1")
	require.NotPanics(t, func() {
		_, err := h.OnFrameRead(client, f)
		require.NoError(t, err)
		h.OnServerHeartbeat(client)
	})
	require.Contains(t, buf.String(), "MESSAGE << test")
}

func TestOnFrameRead(t *testing.T) {
	h, buf := newHook(t, nil)

	f := frames.New(frames.Message, frames.HeaderMessageID, "m-1")
	f.Body = []byte("secret body")
	out, err := h.OnFrameRead(client, f)
	require.NoError(t, err)
	require.Equal(t, f, out)

	require.Contains(t, buf.String(), "MESSAGE << test")
	require.Contains(t, buf.String(), "m-1")
	require.NotContains(t, buf.String(), "secret body")
}

func TestOnFrameSentShowFrameData(t *testing.T) {
	h, buf := newHook(t, &Options{ShowFrameData: true})

	f := frames.New(frames.Connect, frames.HeaderLogin, "guest", frames.HeaderPasscode, "hunter2")
	h.OnFrameSent(client, f, []byte("..."))

	require.Contains(t, buf.String(), "CONNECT >> test")
	require.Contains(t, buf.String(), "guest")
	require.Contains(t, buf.String(), "[redacted]")
	require.NotContains(t, buf.String(), "hunter2")
	require.Equal(t, "hunter2", f.Header.Get(frames.HeaderPasscode))
}

func TestOnFrameSentShowPasscodes(t *testing.T) {
	h, buf := newHook(t, &Options{ShowFrameData: true, ShowPasscodes: true})

	h.OnFrameSent(client, frames.New(frames.Connect, frames.HeaderPasscode, "hunter2"), nil)
	require.Contains(t, buf.String(), "hunter2")
}

func TestOnServerHeartbeat(t *testing.T) {
	h, buf := newHook(t, nil)
	h.OnServerHeartbeat(client)
	require.Empty(t, buf.String())

	h.config.ShowHeartbeats = true
	h.OnServerHeartbeat(client)
	require.Contains(t, buf.String(), "heartbeat << test")
}

func TestLifecycle(t *testing.T) {
	h, buf := newHook(t, nil)

	h.OnConnect(client, frames.New(frames.Connected, frames.HeaderVersion, "1.2"))
	h.OnConnectFailed(client, errors.New("refused"))
	h.OnDisconnect(client, errors.New("gone"), true)
	h.OnMessage(client, stomp.Message{Subscription: "1", MessageID: "m-2"})
	h.OnMessageDropped(client, frames.New(frames.Message, frames.HeaderMessageID, "m-3"))
	h.OnReceipt(client, "r-1")
	h.OnError(client, "bad frame", []byte("detail"))
	h.OnSubscribed(client, stomp.Subscription{ID: "1", Destination: "/queue/a"})
	h.OnUnsubscribed(client, stomp.Subscription{ID: "1", Destination: "/queue/a"})
	h.OnReconnectScheduled(client, time.Second)
	require.True(t, h.OnACLCheck(client, "/queue/a", true))

	subs, err := h.StoredSubscriptions()
	require.NoError(t, err)
	require.Empty(t, subs)

	msgs, err := h.StoredMessages()
	require.NoError(t, err)
	require.Empty(t, msgs)

	require.NoError(t, h.Stop())

	for _, s := range []string{
		"connected", "connect failed", "refused", "unexpected=true", "m-2", "m-3",
		"r-1", "bad frame", "subscribed", "unsubscribed", "reconnect scheduled", "acl check", "Stop",
	} {
		require.Contains(t, buf.String(), s)
	}
}
