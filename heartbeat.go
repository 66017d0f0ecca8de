// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package stomp

import (
	"errors"
	"fmt"
	"time"

	"github.com/mochi-mqtt/stompws/frames"
)

// superviseHeartbeats sends a heartbeat every out and tears the connection down
// if nothing is received from the server for in multiplied by the heartbeat
// tolerance. A zero duration disables that direction. It returns when the
// connection ends.
func (c *Client) superviseHeartbeats(cn *connection, out, in time.Duration) {
	var tick <-chan time.Time
	if out > 0 {
		ticker := time.NewTicker(out)
		defer ticker.Stop()
		tick = ticker.C
	}

	var expire <-chan time.Time
	var timer *time.Timer
	window := time.Duration(float64(in) * c.Options.HeartbeatTolerance)
	if in > 0 {
		timer = time.NewTimer(window)
		defer timer.Stop()
		expire = timer.C
	}

	for {
		select {
		case <-cn.done:
			return
		case <-tick:
			c.sendHeartbeat(cn)
		case <-expire:
			idle := cn.idle()
			if idle < window {
				timer.Reset(window - idle)
				continue
			}

			c.livenessExpired(cn, idle)
			return
		}
	}
}

// sendHeartbeat queues a heartbeat on the connection's outbound path.
func (c *Client) sendHeartbeat(cn *connection) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != cn {
		return
	}

	err := c.enqueue(cn, frames.Frame{Command: frames.Heartbeat})
	if err != nil && !errors.Is(err, frames.ErrPendingWritesExceeded) {
		c.Log.Error("failed to queue heartbeat", "error", err)
	}
}

// livenessExpired tears down a connection from which the server has gone silent.
func (c *Client) livenessExpired(cn *connection, idle time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != cn {
		return
	}

	c.teardown(cn, fmt.Errorf("%w: nothing received for %s", frames.ErrLivenessTimeout, idle.Round(time.Millisecond)), true)
}
