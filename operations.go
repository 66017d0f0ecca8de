// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package stomp

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"

	"github.com/mochi-mqtt/stompws/frames"
	"github.com/rs/xid"
)

// frameOptions contains the values set by FrameOptions for a single frame.
type frameOptions struct {
	header    frames.Header // extra headers
	receipt   bool          // request a receipt
	receiptID string        // the receipt id to use, generated if empty
	onReceipt ReceiptFunc   // called when the receipt arrives
}

// FrameOption sets an optional value on an outgoing frame.
type FrameOption func(o *frameOptions)

// newFrameOptions applies opts in order.
func newFrameOptions(opts []FrameOption) *frameOptions {
	fo := new(frameOptions)
	for _, opt := range opts {
		if opt != nil {
			opt(fo)
		}
	}
	return fo
}

// WithHeader sets a header on the frame. Headers the client sets itself, such as
// destination or id, cannot be overridden.
func WithHeader(key, value string) FrameOption {
	return func(o *frameOptions) {
		o.header.Set(key, value)
	}
}

// WithHeaders sets each of the headers on the frame, in key order.
func WithHeaders(h map[string]string) FrameOption {
	return func(o *frameOptions) {
		keys := make([]string, 0, len(h))
		for k := range h {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			o.header.Set(k, h[k])
		}
	}
}

// WithContentType sets the content-type header.
func WithContentType(ct string) FrameOption {
	return WithHeader(frames.HeaderContentType, ct)
}

// WithTransaction includes the frame in a transaction started with Begin.
func WithTransaction(tx string) FrameOption {
	return WithHeader(frames.HeaderTransaction, tx)
}

// WithReceipt requests a receipt for the frame with a generated id. fn, which may
// be nil, is called with the id once the server confirms the frame.
func WithReceipt(fn ReceiptFunc) FrameOption {
	return WithReceiptID("", fn)
}

// WithReceiptID requests a receipt for the frame using id.
func WithReceiptID(id string, fn ReceiptFunc) FrameOption {
	return func(o *frameOptions) {
		o.receipt = true
		o.receiptID = id
		o.onReceipt = fn
	}
}

// addReceipt sets the receipt header on f and registers the waiter, returning
// the receipt id, or an empty string if no receipt was requested. An id which
// is still pending is refused with ErrReceiptPending. The lock must be held.
func (c *Client) addReceipt(f *frames.Frame, fo *frameOptions) (string, error) {
	if !fo.receipt {
		return "", nil
	}

	id := fo.receiptID
	if id == "" {
		id = xid.New().String()
	}

	if !c.Receipts.Set(id, fo.onReceipt) {
		return "", fmt.Errorf("%w: %s", frames.ErrReceiptPending, id)
	}

	f.Header.Set(frames.HeaderReceipt, id)
	atomic.StoreInt64(&c.Info.ReceiptsPending, int64(c.Receipts.Len()))

	return id, nil
}

// sendFrame queues a frame on the live connection, merging in the optional
// headers and registering any receipt. The lock must be held.
func (c *Client) sendFrame(f frames.Frame, fo *frameOptions) error {
	cn := c.conn
	if cn == nil || c.state != Connected {
		return frames.ErrNotConnected
	}

	f.Header.Merge(fo.header)
	id, err := c.addReceipt(&f, fo)
	if err != nil {
		return err
	}

	if err := c.enqueue(cn, f); err != nil {
		if id != "" {
			c.Receipts.Delete(id)
			atomic.StoreInt64(&c.Info.ReceiptsPending, int64(c.Receipts.Len()))
		}
		return err
	}

	return nil
}

// Send sends a message to a destination. A content-length header is always set.
func (c *Client) Send(destination string, body []byte, opts ...FrameOption) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hooks.OnACLCheck(c, destination, true) {
		return fmt.Errorf("%w: %s", frames.ErrDestinationDenied, destination)
	}

	f := frames.New(frames.Send,
		frames.HeaderDestination, destination,
		frames.HeaderContentLength, strconv.Itoa(len(body)),
	)
	f.Body = body

	if err := c.sendFrame(f, newFrameOptions(opts)); err != nil {
		return err
	}

	atomic.AddInt64(&c.Info.MessagesSent, 1)
	return nil
}

// SendJSON sends v encoded as json to a destination, with an application/json
// content-type unless another is given.
func (c *Client) SendJSON(destination string, v any, opts ...FrameOption) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	opts = append([]FrameOption{WithContentType("application/json")}, opts...)
	return c.Send(destination, b, opts...)
}

// Subscribe subscribes to a destination, delivering each message to handler. It
// returns the id of the new subscription. An empty ack mode is auto.
func (c *Client) Subscribe(destination string, ack AckMode, handler MessageHandler, opts ...FrameOption) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.state != Connected {
		return "", frames.ErrNotConnected
	}

	if ack == "" {
		ack = AckAuto
	}

	if !ack.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAckMode, ack)
	}

	if !c.hooks.OnACLCheck(c, destination, false) {
		return "", fmt.Errorf("%w: %s", frames.ErrDestinationDenied, destination)
	}

	fo := newFrameOptions(opts)
	sub := Subscription{
		ID:          c.nextSubscriptionID(),
		Destination: destination,
		Ack:         ack,
		Handler:     handler,
		Header:      fo.header.Clone(),
	}

	f := frames.New(frames.Subscribe,
		frames.HeaderID, sub.ID,
		frames.HeaderDestination, destination,
		frames.HeaderAck, string(ack),
	)

	if err := c.sendFrame(f, fo); err != nil {
		return "", err
	}

	c.Subscriptions.Add(sub)
	atomic.StoreInt64(&c.Info.Subscriptions, int64(c.Subscriptions.Len()))
	c.Log.Debug("subscribed", "subscription", sub.ID, "destination", destination, "ack", ack)
	c.emit(func() {
		c.hooks.OnSubscribed(c, sub)
	})

	return sub.ID, nil
}

// nextSubscriptionID returns a new subscription id which is not in use. The lock
// must be held.
func (c *Client) nextSubscriptionID() string {
	for {
		c.nextSubID++
		id := strconv.FormatUint(c.nextSubID, 10)
		if _, ok := c.Subscriptions.Get(id); !ok {
			return id
		}
	}
}

// Unsubscribe ends a subscription. Unsubscribing an unknown id does nothing.
func (c *Client) Unsubscribe(id string, opts ...FrameOption) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, ok := c.Subscriptions.Get(id)
	if !ok {
		return nil
	}

	return c.unsubscribe(sub, newFrameOptions(opts))
}

// UnsubscribeDestination ends every subscription to a destination.
func (c *Client) UnsubscribeDestination(destination string, opts ...FrameOption) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, sub := range c.Subscriptions.ByDestination(destination) {
		// each frame carries its own receipt, if one was requested.
		if err := c.unsubscribe(sub, newFrameOptions(opts)); err != nil {
			return err
		}
	}

	return nil
}

// unsubscribe sends UNSUBSCRIBE and removes the subscription. The lock must be held.
func (c *Client) unsubscribe(sub Subscription, fo *frameOptions) error {
	if fo.receipt && fo.receiptID != "" {
		fo.receiptID += "-" + sub.ID
	}

	f := frames.New(frames.Unsubscribe, frames.HeaderID, sub.ID)
	if err := c.sendFrame(f, fo); err != nil {
		return err
	}

	c.Subscriptions.Delete(sub.ID)
	atomic.StoreInt64(&c.Info.Subscriptions, int64(c.Subscriptions.Len()))
	c.Log.Debug("unsubscribed", "subscription", sub.ID, "destination", sub.Destination)
	c.emit(func() {
		c.hooks.OnUnsubscribed(c, sub)
	})

	return nil
}

// Ack acknowledges a message received on a client or client-individual subscription.
func (c *Client) Ack(msg Message, opts ...FrameOption) error {
	return c.acknowledge(frames.Ack, msg, opts)
}

// Nack rejects a message received on a client or client-individual subscription.
// NACK is not available on 1.0 connections.
func (c *Client) Nack(msg Message, opts ...FrameOption) error {
	return c.acknowledge(frames.Nack, msg, opts)
}

// acknowledge sends ACK or NACK using the headers the negotiated version expects.
func (c *Client) acknowledge(cmd frames.Command, msg Message, opts []FrameOption) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.state != Connected {
		return frames.ErrNotConnected
	}

	f := frames.New(cmd)
	switch c.version {
	case frames.V12:
		id := msg.Ack
		if id == "" {
			id = msg.MessageID
		}
		f.Header.Add(frames.HeaderID, id)
	case frames.V10:
		if cmd == frames.Nack {
			return fmt.Errorf("%w: NACK requires 1.1 or later", frames.ErrUnsupportedVersion)
		}
		f.Header.Add(frames.HeaderMessageID, msg.MessageID)
		f.Header.Add(frames.HeaderSubscription, msg.Subscription)
	default:
		f.Header.Add(frames.HeaderMessageID, msg.MessageID)
		f.Header.Add(frames.HeaderSubscription, msg.Subscription)
	}

	return c.sendFrame(f, newFrameOptions(opts))
}

// Begin starts a transaction.
func (c *Client) Begin(tx string, opts ...FrameOption) error {
	return c.transaction(frames.Begin, tx, opts)
}

// Commit commits a transaction.
func (c *Client) Commit(tx string, opts ...FrameOption) error {
	return c.transaction(frames.Commit, tx, opts)
}

// Abort rolls back a transaction.
func (c *Client) Abort(tx string, opts ...FrameOption) error {
	return c.transaction(frames.Abort, tx, opts)
}

// transaction sends BEGIN, COMMIT or ABORT.
func (c *Client) transaction(cmd frames.Command, tx string, opts []FrameOption) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sendFrame(frames.New(cmd, frames.HeaderTransaction, tx), newFrameOptions(opts))
}
