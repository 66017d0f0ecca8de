// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package stomp

import (
	"log/slog"
	"os"
	"time"

	"github.com/mochi-mqtt/stompws/frames"
	"github.com/mochi-mqtt/stompws/transports"
	"github.com/rs/xid"
)

const (
	defaultHeartbeatInterval    = 10000 // default heart-beat in each direction in milliseconds
	defaultHeartbeatTolerance   = 2.0   // multiple of the incoming interval before the server is presumed dead
	defaultMaximumWritesPending = 1024  // default size of the outbound frame queue
	defaultDispatchLanes        = 1     // default number of callback dispatch lanes
	defaultDisconnectTimeout    = 5 * time.Second
)

// HeartBeat is the heart-beat a client offers in its CONNECT frame, in milliseconds.
// Outgoing is the smallest interval at which the client can send heartbeats and
// Incoming the interval at which it would like to receive them. Zero disables a direction.
type HeartBeat struct {
	Outgoing int `yaml:"outgoing" json:"outgoing"`
	Incoming int `yaml:"incoming" json:"incoming"`
}

// HookLoadConfig contains the hook and configuration as loaded from a configuration (usually file).
type HookLoadConfig struct {
	Hook   Hook
	Config any
}

// Options contains configurable options for the client.
type Options struct {
	// ClientID identifies the client in logs, metrics and storage journals. A
	// random id is generated if none is set.
	ClientID string `yaml:"client_id" json:"client_id"`

	// Transport is the default transport configuration used by Open and Reconnect
	// when they are not given one.
	Transport transports.Config `yaml:"transport" json:"transport"`

	// Host is sent as the CONNECT host header. If empty, the host of the
	// transport url is used.
	Host string `yaml:"host" json:"host"`

	// Login and Passcode are sent with CONNECT if set.
	Login    string `yaml:"login" json:"login"`
	Passcode string `yaml:"passcode" json:"passcode"`

	// AcceptVersion lists the protocol versions offered to the server.
	AcceptVersion []frames.Version `yaml:"accept_version" json:"accept_version"`

	// ConnectHeaders are added to every CONNECT frame.
	ConnectHeaders map[string]string `yaml:"connect_headers" json:"connect_headers"`

	// HeartBeat is the heart-beat offered to the server. Defaults to 10000,10000.
	HeartBeat *HeartBeat `yaml:"heart_beat" json:"heart_beat"`

	// HeartbeatTolerance is the multiple of the negotiated incoming interval
	// allowed to pass without traffic before the connection is considered dead.
	HeartbeatTolerance float64 `yaml:"heartbeat_tolerance" json:"heartbeat_tolerance"`

	// MaximumWritesPending is the number of frames which may be queued for the
	// transport before sends fail with ErrPendingWritesExceeded.
	MaximumWritesPending int `yaml:"maximum_writes_pending" json:"maximum_writes_pending"`

	// MaximumFrameSize is the largest frame accepted from the server, no limit if 0.
	MaximumFrameSize int `yaml:"maximum_frame_size" json:"maximum_frame_size"`

	// DispatchLanes is the number of goroutines delivering messages and events.
	// Messages for one subscription are always delivered in order on a single lane.
	DispatchLanes uint64 `yaml:"dispatch_lanes" json:"dispatch_lanes"`

	// DisconnectTimeout is how long an orderly disconnect waits for the server's
	// receipt before the transport is closed anyway.
	DisconnectTimeout time.Duration `yaml:"disconnect_timeout" json:"disconnect_timeout"`

	// Hooks specifies any hooks which should be dynamically added on the first open.
	// Used when setting hooks by config.
	Hooks []HookLoadConfig `yaml:"-" json:"-"`

	// Logger specifies a custom configured implementation of log/slog to override
	// the client's default logger configuration.
	Logger *slog.Logger `yaml:"-" json:"-"`

	// Dialer creates the transport for each connection. Defaults to a websocket dialer.
	Dialer transports.Dialer `yaml:"-" json:"-"`
}

// ensureDefaults ensures that the client starts with sane default values, if none are provided.
func (o *Options) ensureDefaults() {
	if o.ClientID == "" {
		o.ClientID = xid.New().String()
	}

	if len(o.AcceptVersion) == 0 {
		o.AcceptVersion = frames.SupportedVersions
	}

	if o.HeartBeat == nil {
		o.HeartBeat = &HeartBeat{
			Outgoing: defaultHeartbeatInterval,
			Incoming: defaultHeartbeatInterval,
		}
	}

	if o.HeartbeatTolerance <= 0 {
		o.HeartbeatTolerance = defaultHeartbeatTolerance
	}

	if o.MaximumWritesPending <= 0 {
		o.MaximumWritesPending = defaultMaximumWritesPending
	}

	if o.DispatchLanes == 0 {
		o.DispatchLanes = defaultDispatchLanes
	}

	if o.DisconnectTimeout <= 0 {
		o.DisconnectTimeout = defaultDisconnectTimeout
	}

	if o.Logger == nil {
		log := slog.New(slog.NewTextHandler(os.Stdout, nil))
		o.Logger = log
	}

	if o.Dialer == nil {
		o.Dialer = transports.NewWebsocketDialer()
	}
}
