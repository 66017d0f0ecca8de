// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-co
// SPDX-FileContributor: mochi-co, chowyu08, muXxer

package stomp

import (
	"sync"
	"sync/atomic"

	xh "github.com/cespare/xxhash/v2"
)

// lane is an unbounded queue of tasks processed in order by a single goroutine.
type lane struct {
	sync.Mutex
	cond   *sync.Cond
	tasks  []func()
	closed bool
}

// FanPool is a fan-style worker pool with multiple working 'columns'. Each column
// is a queue processed by a single goroutine, and every key is bound to one column,
// so tasks enqueued under the same key run one at a time in the order they were
// enqueued. Enqueue never blocks, which allows it to be called while holding locks
// that the tasks themselves may need.
// Very special thanks are given to the authors of HMQ in particular
// @chowyu08 and @muXxer for their work on the fixpool worker pool
// https://github.com/fhmq/hmq/blob/master/pool/fixpool.go
// from which this fan-pool is heavily inspired.
type FanPool struct {
	queue    []*lane
	wg       sync.WaitGroup
	capacity uint64
}

// NewFanPool returns a new instance of FanPool. fanSize controls the number of
// 'columns' of the fan.
func NewFanPool(fanSize uint64) *FanPool {
	pool := &FanPool{
		capacity: fanSize,
		queue:    make([]*lane, fanSize),
	}

	pool.fillWorkers(fanSize)

	return pool
}

// fillWorkers adds columns to the fan pool with an associated worker goroutine.
func (p *FanPool) fillWorkers(n uint64) {
	for i := uint64(0); i < n; i++ {
		l := new(lane)
		l.cond = sync.NewCond(l)
		p.queue[i] = l
		p.wg.Add(1)
		go p.worker(l)
	}
}

// worker is a worker goroutine which processes tasks from a single queue until
// the queue is closed and empty.
func (p *FanPool) worker(l *lane) {
	defer p.wg.Done()
	for {
		l.Lock()
		for len(l.tasks) == 0 && !l.closed {
			l.cond.Wait()
		}

		if len(l.tasks) == 0 {
			l.Unlock()
			return
		}

		task := l.tasks[0]
		l.tasks[0] = nil
		l.tasks = l.tasks[1:]
		l.Unlock()

		task()
	}
}

// Enqueue adds a new task to the column for id. It returns false if the pool is closed.
func (p *FanPool) Enqueue(id string, task func()) bool {
	size := p.Size()
	if size == 0 {
		return false
	}

	// We can use xh.Sum64 to get a specific queue index
	// which remains the same for an id, giving each
	// id their own queue.
	l := p.queue[xh.Sum64String(id)%size]
	l.Lock()
	defer l.Unlock()
	if l.closed {
		return false
	}

	l.tasks = append(l.tasks, task)
	l.cond.Signal()
	return true
}

// Wait blocks until all the workers in the pool have completed.
func (p *FanPool) Wait() {
	p.wg.Wait()
}

// Close issues a shutdown signal to the workers. Tasks already enqueued are still run.
func (p *FanPool) Close() {
	if !atomic.CompareAndSwapUint64(&p.capacity, uint64(len(p.queue)), 0) {
		return
	}

	for _, l := range p.queue {
		l.Lock()
		l.closed = true
		l.cond.Broadcast()
		l.Unlock()
	}
}

// Size returns the current number of workers in the pool.
func (p *FanPool) Size() uint64 {
	return atomic.LoadUint64(&p.capacity)
}
