// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-co
// SPDX-FileContributor: mochi-co

package system

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Info contains atomic counters and values for various client statistics.
type Info struct {
	Version             string `json:"version"`              // the negotiated protocol version of the current connection
	Started             int64  `json:"started"`              // the time the client was created in unix seconds
	Time                int64  `json:"time"`                 // current time on the client
	Uptime              int64  `json:"uptime"`               // the number of seconds the client has existed
	BytesReceived       int64  `json:"bytes_received"`       // total number of bytes received from the transport
	BytesSent           int64  `json:"bytes_sent"`           // total number of bytes written to the transport
	FramesReceived      int64  `json:"frames_received"`      // total number of frames received, excluding heartbeats
	FramesSent          int64  `json:"frames_sent"`          // total number of frames sent, excluding heartbeats
	MessagesReceived    int64  `json:"messages_received"`    // total number of MESSAGE frames delivered to a subscription
	MessagesSent        int64  `json:"messages_sent"`        // total number of SEND frames queued
	MessagesDropped     int64  `json:"messages_dropped"`     // total number of MESSAGE frames for no active subscription
	ReceiptsPending     int64  `json:"receipts_pending"`     // the number of receipts currently awaited
	ReceiptsResolved    int64  `json:"receipts_resolved"`    // total number of receipts resolved
	Subscriptions       int64  `json:"subscriptions"`        // the number of currently active subscriptions
	HeartbeatsReceived  int64  `json:"heartbeats_received"`  // total number of heartbeats received from the server
	HeartbeatsSent      int64  `json:"heartbeats_sent"`      // total number of heartbeats sent to the server
	ConnectAttempts     int64  `json:"connect_attempts"`     // total number of transport dials
	Connections         int64  `json:"connections"`          // total number of connections accepted by the server
	Connected           int64  `json:"connected"`            // 1 while a connection is established
	Disconnects         int64  `json:"disconnects"`          // total number of connection teardowns
	ServerErrors        int64  `json:"server_errors"`        // total number of ERROR frames received
	ReconnectsScheduled int64  `json:"reconnects_scheduled"` // total number of reconnects scheduled
	MemoryAlloc         int64  `json:"memory_alloc"`         // memory currently allocated
	Threads             int64  `json:"threads"`              // number of active goroutines, named as threads for platform ambiguity
}

// Clone makes a copy of Info using atomic operation
func (i *Info) Clone() *Info {
	return &Info{
		Version:             i.Version,
		Started:             atomic.LoadInt64(&i.Started),
		Time:                atomic.LoadInt64(&i.Time),
		Uptime:              atomic.LoadInt64(&i.Uptime),
		BytesReceived:       atomic.LoadInt64(&i.BytesReceived),
		BytesSent:           atomic.LoadInt64(&i.BytesSent),
		FramesReceived:      atomic.LoadInt64(&i.FramesReceived),
		FramesSent:          atomic.LoadInt64(&i.FramesSent),
		MessagesReceived:    atomic.LoadInt64(&i.MessagesReceived),
		MessagesSent:        atomic.LoadInt64(&i.MessagesSent),
		MessagesDropped:     atomic.LoadInt64(&i.MessagesDropped),
		ReceiptsPending:     atomic.LoadInt64(&i.ReceiptsPending),
		ReceiptsResolved:    atomic.LoadInt64(&i.ReceiptsResolved),
		Subscriptions:       atomic.LoadInt64(&i.Subscriptions),
		HeartbeatsReceived:  atomic.LoadInt64(&i.HeartbeatsReceived),
		HeartbeatsSent:      atomic.LoadInt64(&i.HeartbeatsSent),
		ConnectAttempts:     atomic.LoadInt64(&i.ConnectAttempts),
		Connections:         atomic.LoadInt64(&i.Connections),
		Connected:           atomic.LoadInt64(&i.Connected),
		Disconnects:         atomic.LoadInt64(&i.Disconnects),
		ServerErrors:        atomic.LoadInt64(&i.ServerErrors),
		ReconnectsScheduled: atomic.LoadInt64(&i.ReconnectsScheduled),
		MemoryAlloc:         atomic.LoadInt64(&i.MemoryAlloc),
		Threads:             atomic.LoadInt64(&i.Threads),
	}
}

// RegisterPrometheusMetrics registers a collector for each counter. Metric names
// are prefixed with namespace, which may be empty.
func (i *Info) RegisterPrometheusMetrics(registry prometheus.Registerer, namespace string) {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	type metrics struct {
		metricType string
		name       string
		help       string
		value      *int64
	}

	metricsList := []metrics{
		{"c", "bytes_received", "A counter of total number of bytes received", &i.BytesReceived},
		{"c", "bytes_sent", "A counter of total number of bytes sent", &i.BytesSent},
		{"c", "frames_received", "A counter of total number of frames received", &i.FramesReceived},
		{"c", "frames_sent", "A counter of total number of frames sent", &i.FramesSent},
		{"c", "messages_received", "A counter of total number of messages delivered to subscriptions", &i.MessagesReceived},
		{"c", "messages_sent", "A counter of total number of messages sent", &i.MessagesSent},
		{"c", "messages_dropped", "A counter of total number of messages for unknown subscriptions", &i.MessagesDropped},
		{"g", "receipts_pending", "A gauge of the number of receipts currently awaited", &i.ReceiptsPending},
		{"c", "receipts_resolved", "A counter of total number of receipts resolved", &i.ReceiptsResolved},
		{"g", "subscriptions", "A gauge of the number of active subscriptions", &i.Subscriptions},
		{"c", "heartbeats_received", "A counter of total number of heartbeats received", &i.HeartbeatsReceived},
		{"c", "heartbeats_sent", "A counter of total number of heartbeats sent", &i.HeartbeatsSent},
		{"c", "connect_attempts", "A counter of total number of connection attempts", &i.ConnectAttempts},
		{"c", "connections", "A counter of total number of established connections", &i.Connections},
		{"g", "connected", "A gauge which is 1 while connected", &i.Connected},
		{"c", "disconnects", "A counter of total number of disconnections", &i.Disconnects},
		{"c", "server_errors", "A counter of total number of server ERROR frames", &i.ServerErrors},
		{"c", "reconnects_scheduled", "A counter of total number of reconnects scheduled", &i.ReconnectsScheduled},
	}

	for _, m := range metricsList {
		m := m
		fn := func() float64 {
			return float64(atomic.LoadInt64(m.value))
		}

		switch m.metricType {
		case "c":
			registry.MustRegister(
				prometheus.NewCounterFunc(
					prometheus.CounterOpts{
						Namespace: namespace,
						Name:      m.name,
						Help:      m.help,
					},
					fn,
				),
			)
		case "g":
			registry.MustRegister(
				prometheus.NewGaugeFunc(
					prometheus.GaugeOpts{
						Namespace: namespace,
						Name:      m.name,
						Help:      m.help,
					},
					fn,
				),
			)
		}
	}
}
