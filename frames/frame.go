// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package frames

import (
	"fmt"
	"strings"
)

// Command is the type of a frame. The zero value marks a heartbeat, which is
// not a frame on the wire but a bare end-of-line.
type Command byte

const (
	Heartbeat Command = iota
	Connect
	Stomp
	Connected
	Send
	Subscribe
	Unsubscribe
	Ack
	Nack
	Begin
	Commit
	Abort
	Disconnect
	Message
	Receipt
	Error
)

// CommandNames maps each command to its wire token.
var CommandNames = map[Command]string{
	Heartbeat:   "HEARTBEAT",
	Connect:     "CONNECT",
	Stomp:       "STOMP",
	Connected:   "CONNECTED",
	Send:        "SEND",
	Subscribe:   "SUBSCRIBE",
	Unsubscribe: "UNSUBSCRIBE",
	Ack:         "ACK",
	Nack:        "NACK",
	Begin:       "BEGIN",
	Commit:      "COMMIT",
	Abort:       "ABORT",
	Disconnect:  "DISCONNECT",
	Message:     "MESSAGE",
	Receipt:     "RECEIPT",
	Error:       "ERROR",
}

var commandTokens = func() map[string]Command {
	m := make(map[string]Command, len(CommandNames))
	for c, s := range CommandNames {
		if c != Heartbeat {
			m[s] = c
		}
	}
	return m
}()

// String returns the wire token of the command.
func (c Command) String() string {
	if s, ok := CommandNames[c]; ok {
		return s
	}

	return fmt.Sprintf("UNKNOWN(%d)", byte(c))
}

// ParseCommand returns the command for a wire token.
func ParseCommand(s string) (Command, bool) {
	c, ok := commandTokens[s]
	return c, ok
}

// Version is a STOMP protocol version.
type Version string

const (
	V10 Version = "1.0"
	V11 Version = "1.1"
	V12 Version = "1.2"
)

// SupportedVersions lists the versions this client speaks, newest first.
var SupportedVersions = []Version{V12, V11, V10}

// ParseVersion validates a version header value. An empty value means the
// server did not negotiate and speaks 1.0.
func ParseVersion(s string) (Version, error) {
	switch Version(s) {
	case "":
		return V10, nil
	case V10, V11, V12:
		return Version(s), nil
	}

	return "", fmt.Errorf("%w: %s", ErrUnsupportedVersion, s)
}

// JoinVersions formats versions as an accept-version header value.
func JoinVersions(vs []Version) string {
	s := make([]string, len(vs))
	for i, v := range vs {
		s[i] = string(v)
	}
	return strings.Join(s, ",")
}

// escapes reports whether header escaping applies to the version.
func (v Version) escapes() bool {
	return v == V11 || v == V12
}

// Frame is a single STOMP frame.
type Frame struct {
	Header  Header  `json:"header"`
	Body    []byte  `json:"body,omitempty"`
	Command Command `json:"command"`
}

// New returns a frame of the given command with headers from alternating key
// and value strings.
func New(cmd Command, kv ...string) Frame {
	return Frame{
		Command: cmd,
		Header:  NewHeader(kv...),
	}
}

// IsHeartbeat returns true if the frame is the heartbeat marker.
func (f Frame) IsHeartbeat() bool {
	return f.Command == Heartbeat
}

// Copy returns a deep copy of the frame.
func (f Frame) Copy() Frame {
	c := Frame{
		Command: f.Command,
		Header:  f.Header.Clone(),
	}

	if f.Body != nil {
		c.Body = append([]byte{}, f.Body...)
	}

	return c
}

// FormatID returns a string describing the frame for logs and storage keys. It
// prefers the identifiers carried by the frame's own command.
func (f Frame) FormatID() string {
	for _, k := range []string{HeaderMessageID, HeaderReceiptID, HeaderReceipt, HeaderID} {
		if v, ok := f.Header.Contains(k); ok {
			return v
		}
	}

	return ""
}
