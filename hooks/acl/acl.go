// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

// Package acl provides a hook which restricts the destinations a client may send
// to and subscribe to.
package acl

import (
	"bytes"

	stomp "github.com/mochi-mqtt/stompws"
	"github.com/mochi-mqtt/stompws/frames"
)

// Options contains the configuration/rules data for the acl ledger.
type Options struct {
	Data   []byte
	Ledger *Ledger
}

// Hook is an access control hook which implements an acl ledger. Sends and
// subscriptions to denied destinations fail, and MESSAGE frames from destinations
// the client may not read are ignored.
type Hook struct {
	stomp.HookBase
	config *Options
	ledger *Ledger
}

// ID returns the ID of the hook.
func (h *Hook) ID() string {
	return "acl-ledger"
}

// Provides indicates which hook methods this hook provides.
func (h *Hook) Provides(b byte) bool {
	return bytes.Contains([]byte{
		stomp.OnACLCheck,
		stomp.OnFrameRead,
	}, []byte{b})
}

// Init configures the hook with the acl ledger to be used for checking.
func (h *Hook) Init(config any) error {
	if _, ok := config.(*Options); !ok && config != nil {
		return stomp.ErrInvalidConfigType
	}

	if o, _ := config.(*Options); o == nil {
		config = new(Options)
	}

	h.config = config.(*Options)

	var err error
	if h.config.Ledger != nil {
		h.ledger = h.config.Ledger
	} else if len(h.config.Data) > 0 {
		h.ledger = new(Ledger)
		err = h.ledger.Unmarshal(h.config.Data)
	}
	if err != nil {
		return err
	}

	if h.ledger == nil {
		h.ledger = &Ledger{
			ACL: ACLRules{},
		}
	}

	h.Log.Info("loaded acl rules", "acl", len(h.ledger.ACL))

	return nil
}

// OnACLCheck returns true if the client has matching read or write access to
// subscribe or send to a given destination.
func (h *Hook) OnACLCheck(cl *stomp.Client, destination string, write bool) bool {
	if _, ok := h.ledger.ACLOk(cl, destination, write); ok {
		return true
	}

	h.Log.Debug("client failed allowed acl check",
		"client", cl.ID,
		"destination", destination,
		"write", write)

	return false
}

// OnFrameRead rejects MESSAGE frames from destinations the client may not read.
func (h *Hook) OnFrameRead(cl *stomp.Client, f frames.Frame) (frames.Frame, error) {
	if f.Command != frames.Message {
		return f, nil
	}

	destination := f.Header.Get(frames.HeaderDestination)
	if _, ok := h.ledger.ACLOk(cl, destination, false); ok {
		return f, nil
	}

	h.Log.Warn("message from denied destination ignored",
		"client", cl.ID,
		"destination", destination,
		"message_id", f.Header.Get(frames.HeaderMessageID))

	return f, frames.ErrRejectFrame
}
