// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package stomp

// State is the lifecycle state of a client connection.
type State byte

const (
	Disconnected  State = iota // no connection and nothing scheduled
	Connecting                 // the transport is opening or CONNECT awaits CONNECTED
	Connected                  // the server accepted the connection
	Disconnecting              // DISCONNECT was sent and the connection is closing
	Reconnecting               // no connection, a reconnect is scheduled
)

var stateNames = map[State]string{
	Disconnected:  "disconnected",
	Connecting:    "connecting",
	Connected:     "connected",
	Disconnecting: "disconnecting",
	Reconnecting:  "reconnecting",
}

// String returns the name of the state.
func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}

	return "unknown"
}

// idle returns true if no connection is live, so a new one may be opened.
func (s State) idle() bool {
	return s == Disconnected || s == Reconnecting
}
