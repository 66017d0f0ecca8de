// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package main

import (
	"sync/atomic"

	stomp "github.com/mochi-mqtt/stompws"
	"github.com/mochi-mqtt/stompws/config"
	"github.com/mochi-mqtt/stompws/frames"
)

// sessionHook runs the configured session each time the server accepts a
// connection, and schedules reconnects when a connection is lost.
type sessionHook struct {
	stomp.HookBase
	session   config.Session
	backoff   *stomp.Backoff // nil if reconnects are disabled
	connected atomic.Bool
}

func newSessionHook(session config.Session) *sessionHook {
	h := &sessionHook{
		session: session,
	}

	if session.Reconnect != nil {
		h.backoff = session.Reconnect.Backoff()
	}

	return h
}

// ID returns the ID of the hook.
func (h *sessionHook) ID() string {
	return "session"
}

// Provides indicates which hook methods this hook provides.
func (h *sessionHook) Provides(b byte) bool {
	return b == stomp.OnConnect ||
		b == stomp.OnConnectFailed ||
		b == stomp.OnDisconnect
}

// OnConnect subscribes to the configured destinations and sends the configured messages.
func (h *sessionHook) OnConnect(cl *stomp.Client, f frames.Frame) {
	h.connected.Store(true)
	if h.backoff != nil {
		h.backoff.Reset()
	}

	for _, s := range h.session.Subscriptions {
		ack := stomp.AckMode(s.Ack)
		if ack == "" {
			ack = stomp.AckAuto
		}

		destination := s.Destination
		_, err := cl.Subscribe(destination, ack, func(msg stomp.Message) {
			h.Log.Info("message",
				"destination", msg.Destination,
				"message_id", msg.MessageID,
				"content_type", msg.ContentType,
				"body", string(msg.Body))

			if ack != stomp.AckAuto {
				if err := cl.Ack(msg); err != nil {
					h.Log.Error("failed to ack message", "error", err, "message_id", msg.MessageID)
				}
			}
		}, stomp.WithHeaders(s.Headers))
		if err != nil {
			h.Log.Error("failed to subscribe", "error", err, "destination", destination)
		}
	}

	for _, s := range h.session.Send {
		opts := []stomp.FrameOption{stomp.WithHeaders(s.Headers)}
		if s.ContentType != "" {
			opts = append(opts, stomp.WithContentType(s.ContentType))
		}

		destination := s.Destination
		if s.Receipt {
			opts = append(opts, stomp.WithReceipt(func(id string) {
				h.Log.Info("send confirmed", "destination", destination, "receipt", id)
			}))
		}

		if err := cl.Send(destination, []byte(s.Body), opts...); err != nil {
			h.Log.Error("failed to send", "error", err, "destination", destination)
		}
	}

	if h.session.AutoDisconnect > 0 {
		cl.AutoDisconnect(h.session.AutoDisconnect)
	}
}

// OnConnectFailed schedules a reconnect when a connection attempt fails.
func (h *sessionHook) OnConnectFailed(cl *stomp.Client, err error) {
	h.reconnect(cl)
}

// OnDisconnect schedules a reconnect when an established connection is lost.
// Attempts which never connected are handled by OnConnectFailed.
func (h *sessionHook) OnDisconnect(cl *stomp.Client, err error, unexpected bool) {
	if !h.connected.Swap(false) {
		return
	}

	if unexpected {
		h.reconnect(cl)
	}
}

func (h *sessionHook) reconnect(cl *stomp.Client) {
	if h.backoff == nil {
		return
	}

	cl.Reconnect(nil, frames.Header{}, h.backoff.Next())
}
