// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2023 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package mempool

import (
	"bytes"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultPool(t *testing.T) {
	defer debug.SetGCPercent(debug.SetGCPercent(-1))
	buf := GetBuffer()
	buf.WriteString("SEND\n\n\x00")
	PutBuffer(buf)

	buf = GetBuffer()
	require.Equal(t, 0, buf.Len())
	require.Equal(t, DefaultMaxCapacity, defaultPool.Max())
}

func TestPoolResetsBuffers(t *testing.T) {
	defer debug.SetGCPercent(debug.SetGCPercent(-1))
	p := New(0)
	buf := p.Get()
	buf.Write(bytes.Repeat([]byte{'a'}, 101))

	p.Put(buf)
	buf = p.Get()
	require.Equal(t, 0, buf.Len())
}

func TestPoolDiscardsOversizedBuffers(t *testing.T) {
	defer debug.SetGCPercent(debug.SetGCPercent(-1))
	p := New(100)
	buf := p.Get()
	buf.Write(bytes.Repeat([]byte{'a'}, 101))

	p.Put(buf)
	buf = p.Get()
	require.Equal(t, 0, buf.Len())
	require.Equal(t, 0, buf.Cap())
}
