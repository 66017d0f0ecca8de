// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2023 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

// Package mempool pools the buffers frames are encoded into.
package mempool

import (
	"bytes"
	"sync"
)

// DefaultMaxCapacity is the largest buffer the default pool keeps. Buffers
// grown by unusually large frames are left for the garbage collector.
const DefaultMaxCapacity = 64 * 1024

var defaultPool = New(DefaultMaxCapacity)

// GetBuffer takes an empty buffer from the default pool.
func GetBuffer() *bytes.Buffer { return defaultPool.Get() }

// PutBuffer returns a buffer to the default pool.
func PutBuffer(x *bytes.Buffer) { defaultPool.Put(x) }

// Pool is a pool of reusable byte buffers.
type Pool struct {
	pool sync.Pool
	max  int // buffers with a larger capacity are discarded, no limit if <= 0
}

// New returns a buffer pool which discards buffers whose capacity exceeds max.
// If max <= 0 every buffer is kept.
func New(max int) *Pool {
	return &Pool{
		pool: sync.Pool{
			New: func() any { return new(bytes.Buffer) },
		},
		max: max,
	}
}

// Get returns an empty buffer.
func (p *Pool) Get() *bytes.Buffer {
	return p.pool.Get().(*bytes.Buffer)
}

// Put resets a buffer and returns it to the pool, unless it has grown beyond
// the pool's maximum capacity.
func (p *Pool) Put(x *bytes.Buffer) {
	if p.max > 0 && x.Cap() > p.max {
		return
	}

	x.Reset()
	p.pool.Put(x)
}

// Max returns the largest buffer capacity the pool keeps.
func (p *Pool) Max() int {
	return p.max
}
