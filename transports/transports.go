// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

// Package transports provides the byte-stream transports a client uses to reach a
// broker. A transport delivers whole messages and reports its lifecycle through a
// Handler; it knows nothing of the protocol carried over it.
package transports

import (
	"crypto/tls"
	"errors"
	"net/http"
	"time"
)

var (
	// ErrNotOpen indicates that a transport was used before it opened or after it closed.
	ErrNotOpen = errors.New("transport not open")

	// ErrInvalidURL indicates the transport url could not be used.
	ErrInvalidURL = errors.New("invalid transport url")
)

// Close codes reported to Handler.OnClose.
const (
	CloseNormal    = 1000
	CloseGoingAway = 1001
	CloseAbnormal  = 1006
)

// Config contains configuration values for a transport.
type Config struct {
	URL              string        `yaml:"url" json:"url"`
	Header           http.Header   `yaml:"header" json:"header"`
	Subprotocols     []string      `yaml:"subprotocols" json:"subprotocols"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" json:"handshake_timeout"`
	TLSConfig        *tls.Config   `yaml:"-" json:"-"`
}

// Handler receives transport events. Events for a single transport are delivered
// from one goroutine, never from within Dial, Send or Close.
type Handler interface {
	OnOpen()
	OnMessage(b []byte)
	OnClose(code int, reason string)
	OnError(err error)
}

// Transport is an open, or opening, connection to a broker.
type Transport interface {
	Send(b []byte) error
	Close(code int, reason string) error
}

// Dialer creates transports. Dial returns as soon as the transport has been
// constructed; the outcome of the connection attempt arrives through the handler.
// An error is only returned if the attempt could not be started at all.
type Dialer interface {
	Dial(cfg *Config, h Handler) (Transport, error)
}
