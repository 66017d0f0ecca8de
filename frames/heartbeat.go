// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package frames

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseHeartBeat parses a heart-beat header value of the form "x,y" where each
// side is a non-negative number of milliseconds. An empty value is 0,0.
func ParseHeartBeat(s string) (x, y int, err error) {
	if s == "" {
		return 0, 0, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidHeartBeat, s)
	}

	x, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || x < 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidHeartBeat, s)
	}

	y, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || y < 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidHeartBeat, s)
	}

	return x, y, nil
}

// FormatHeartBeat returns a heart-beat header value.
func FormatHeartBeat(x, y int) string {
	return strconv.Itoa(x) + "," + strconv.Itoa(y)
}

// NegotiateHeartBeat returns the heartbeat periods in effect given the client's
// heart-beat header cx,cy and the server's sx,sy. Outgoing is how often the client
// must send, incoming is how often the server will send. Zero disables a direction.
func NegotiateHeartBeat(cx, cy, sx, sy int) (outgoing, incoming time.Duration) {
	if cx != 0 && sy != 0 {
		outgoing = time.Duration(max(cx, sy)) * time.Millisecond
	}

	if cy != 0 && sx != 0 {
		incoming = time.Duration(max(cy, sx)) * time.Millisecond
	}

	return
}
