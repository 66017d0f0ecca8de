// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package stomp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffDefaults(t *testing.T) {
	b := new(Backoff)
	require.Equal(t, time.Second, b.Next())
	require.Equal(t, 2*time.Second, b.Next())
	require.Equal(t, 4*time.Second, b.Next())
	require.Equal(t, 3, b.Attempts())
}

func TestBackoffCapped(t *testing.T) {
	b := &Backoff{
		Initial:    100 * time.Millisecond,
		Max:        time.Second,
		Multiplier: 3,
	}

	want := []time.Duration{
		100 * time.Millisecond,
		300 * time.Millisecond,
		900 * time.Millisecond,
		time.Second,
		time.Second,
	}

	for _, w := range want {
		require.Equal(t, w, b.Next())
	}
}

func TestBackoffReset(t *testing.T) {
	b := &Backoff{Initial: time.Millisecond}
	b.Next()
	b.Next()
	b.Reset()

	require.Equal(t, 0, b.Attempts())
	require.Equal(t, time.Millisecond, b.Next())
}

func TestBackoffJitter(t *testing.T) {
	b := &Backoff{
		Initial: 100 * time.Millisecond,
		Max:     time.Second,
		Jitter:  true,
	}

	for i := 0; i < 100; i++ {
		d := b.Next()
		require.LessOrEqual(t, d, time.Second)
		require.GreaterOrEqual(t, d, 100*time.Millisecond)
	}
	require.Equal(t, 100, b.Attempts())
}

func TestBackoffInitialAboveMax(t *testing.T) {
	b := &Backoff{
		Initial: 2 * time.Minute,
	}

	require.Equal(t, time.Minute, b.Next())
}
