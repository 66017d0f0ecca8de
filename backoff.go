// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package stomp

import (
	"sync"
	"time"

	"github.com/jpillora/backoff"
)

const (
	defaultBackoffInitial    = time.Second
	defaultBackoffMax        = time.Minute
	defaultBackoffMultiplier = 2.0
)

// Backoff produces exponentially increasing reconnect delays for use with
// Client.Reconnect. The zero value starts at one second, doubles each attempt
// and never exceeds one minute.
type Backoff struct {
	Initial    time.Duration `yaml:"initial" json:"initial"`       // the first delay
	Max        time.Duration `yaml:"max" json:"max"`               // the largest delay returned
	Multiplier float64       `yaml:"multiplier" json:"multiplier"` // growth factor applied after each attempt
	Jitter     bool          `yaml:"jitter" json:"jitter"`         // randomise each delay between Initial and its full value
	once       sync.Once
	policy     *backoff.Backoff
}

// init builds the underlying policy from the configured values on first use.
func (b *Backoff) init() *backoff.Backoff {
	b.once.Do(func() {
		b.policy = &backoff.Backoff{
			Min:    b.Initial,
			Max:    b.Max,
			Factor: b.Multiplier,
			Jitter: b.Jitter,
		}

		if b.policy.Min <= 0 {
			b.policy.Min = defaultBackoffInitial
		}

		if b.policy.Max <= 0 {
			b.policy.Max = defaultBackoffMax
		}

		if b.policy.Factor < 1 {
			b.policy.Factor = defaultBackoffMultiplier
		}
	})

	return b.policy
}

// Next returns the delay for the next attempt.
func (b *Backoff) Next() time.Duration {
	return b.init().Duration()
}

// Attempts returns the number of delays handed out since the last reset.
func (b *Backoff) Attempts() int {
	return int(b.init().Attempt())
}

// Reset starts the sequence again from the initial delay, typically after a
// successful connection.
func (b *Backoff) Reset() {
	b.init().Reset()
}
