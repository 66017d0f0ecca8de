// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package transports

import (
	"sync"
	"time"
)

// MockDialer is a dialer of mock transports which can be used in testing.
type MockDialer struct {
	sync.Mutex
	ErrDial    error            // return an error from Dial
	Transports []*MockTransport // every transport dialed, in order
	Configs    []*Config        // the config passed to each dial
}

// Dial returns a new mock transport. The transport does not open until the test
// calls Open on it.
func (d *MockDialer) Dial(cfg *Config, h Handler) (Transport, error) {
	d.Lock()
	defer d.Unlock()

	if d.ErrDial != nil {
		return nil, d.ErrDial
	}

	t := NewMockTransport(h)
	d.Transports = append(d.Transports, t)
	d.Configs = append(d.Configs, cfg)
	return t, nil
}

// Len returns the number of transports dialed.
func (d *MockDialer) Len() int {
	d.Lock()
	defer d.Unlock()
	return len(d.Transports)
}

// Last returns the most recently dialed transport.
func (d *MockDialer) Last() *MockTransport {
	d.Lock()
	defer d.Unlock()
	if len(d.Transports) == 0 {
		return nil
	}
	return d.Transports[len(d.Transports)-1]
}

// MockTransport is a transport which records sent messages and lets a test
// drive the handler events.
type MockTransport struct {
	sync.RWMutex
	handler     Handler
	sent        chan []byte
	Sent        [][]byte // every message sent, in order
	ErrSend     error    // return an error from Send
	Closed      bool     // Close was called
	CloseCode   int      // the code passed to Close
	CloseReason string   // the reason passed to Close
}

// NewMockTransport returns a new mock transport reporting to h.
func NewMockTransport(h Handler) *MockTransport {
	return &MockTransport{
		handler: h,
		sent:    make(chan []byte, 1024),
	}
}

// Send records a copy of the message.
func (t *MockTransport) Send(b []byte) error {
	t.Lock()
	if t.ErrSend != nil {
		t.Unlock()
		return t.ErrSend
	}

	c := append([]byte{}, b...)
	t.Sent = append(t.Sent, c)
	t.Unlock()

	select {
	case t.sent <- c:
	default:
	}

	return nil
}

// Close marks the transport closed.
func (t *MockTransport) Close(code int, reason string) error {
	t.Lock()
	defer t.Unlock()
	t.Closed = true
	t.CloseCode = code
	t.CloseReason = reason
	return nil
}

// IsClosed returns true if Close was called.
func (t *MockTransport) IsClosed() bool {
	t.RLock()
	defer t.RUnlock()
	return t.Closed
}

// SetErrSend sets the error returned by subsequent sends.
func (t *MockTransport) SetErrSend(err error) {
	t.Lock()
	defer t.Unlock()
	t.ErrSend = err
}

// Next waits up to d for the next sent message.
func (t *MockTransport) Next(d time.Duration) ([]byte, bool) {
	select {
	case b := <-t.sent:
		return b, true
	case <-time.After(d):
		return nil, false
	}
}

// Open reports the transport as open.
func (t *MockTransport) Open() {
	t.handler.OnOpen()
}

// Receive delivers an inbound message.
func (t *MockTransport) Receive(b []byte) {
	t.handler.OnMessage(b)
}

// Drop reports the transport closed by the remote side.
func (t *MockTransport) Drop(code int, reason string) {
	t.handler.OnClose(code, reason)
}

// Fail reports a transport error.
func (t *MockTransport) Fail(err error) {
	t.handler.OnError(err)
}
