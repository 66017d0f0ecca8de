// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package transports

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMockDialer(t *testing.T) {
	d := new(MockDialer)
	require.Nil(t, d.Last())

	cfg := &Config{URL: "ws://mock"}
	tr, err := d.Dial(cfg, newRecorder())
	require.NoError(t, err)
	require.Equal(t, 1, d.Len())
	require.Equal(t, tr, d.Last())
	require.Equal(t, cfg, d.Configs[0])

	d.ErrDial = errors.New("dial")
	_, err = d.Dial(cfg, newRecorder())
	require.Error(t, err)
	require.Equal(t, 1, d.Len())
}

func TestMockTransportEvents(t *testing.T) {
	r := newRecorder()
	tr := NewMockTransport(r)

	tr.Open()
	require.Equal(t, "open", r.next(t).kind)

	tr.Receive([]byte("a"))
	require.Equal(t, []byte("a"), r.next(t).data)

	tr.Drop(CloseAbnormal, "gone")
	require.Equal(t, CloseAbnormal, r.next(t).code)

	tr.Fail(errors.New("boom"))
	require.Equal(t, "error", r.next(t).kind)
}

func TestMockTransportSend(t *testing.T) {
	tr := NewMockTransport(newRecorder())
	require.NoError(t, tr.Send([]byte("one")))

	b, ok := tr.Next(time.Second)
	require.True(t, ok)
	require.Equal(t, []byte("one"), b)

	_, ok = tr.Next(time.Millisecond)
	require.False(t, ok)

	tr.SetErrSend(errors.New("send"))
	require.Error(t, tr.Send([]byte("two")))
	require.Len(t, tr.Sent, 1)

	require.NoError(t, tr.Close(CloseNormal, "done"))
	require.True(t, tr.IsClosed())
	require.Equal(t, "done", tr.CloseReason)
}
