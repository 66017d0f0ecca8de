// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-co
// SPDX-FileContributor: mochi-co

package system

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestClone(t *testing.T) {
	o := &Info{
		Version:             "1.2",
		Started:             1,
		Time:                2,
		Uptime:              3,
		BytesReceived:       4,
		BytesSent:           5,
		FramesReceived:      6,
		FramesSent:          7,
		MessagesReceived:    8,
		MessagesSent:        9,
		MessagesDropped:     10,
		ReceiptsPending:     11,
		ReceiptsResolved:    12,
		Subscriptions:       13,
		HeartbeatsReceived:  14,
		HeartbeatsSent:      15,
		ConnectAttempts:     16,
		Connections:         17,
		Connected:           1,
		Disconnects:         18,
		ServerErrors:        19,
		ReconnectsScheduled: 20,
		MemoryAlloc:         21,
		Threads:             22,
	}

	n := o.Clone()

	require.Equal(t, o, n)
}

func TestRegisterPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := &Info{MessagesReceived: 3, Subscriptions: 2}
	o.RegisterPrometheusMetrics(reg, "stomp")

	expected := `
# HELP stomp_messages_received A counter of total number of messages delivered to subscriptions
# TYPE stomp_messages_received counter
stomp_messages_received 3
# HELP stomp_subscriptions A gauge of the number of active subscriptions
# TYPE stomp_subscriptions gauge
stomp_subscriptions 2
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "stomp_messages_received", "stomp_subscriptions")
	require.NoError(t, err)
}

func TestRegisterPrometheusMetricsDuplicatePanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := new(Info)
	o.RegisterPrometheusMetrics(reg, "")
	require.Panics(t, func() {
		o.RegisterPrometheusMetrics(reg, "")
	})
}
