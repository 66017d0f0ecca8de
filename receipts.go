// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 J. Blake / mochi-co
// SPDX-FileContributor: mochi-co

package stomp

import (
	"sort"
	"sync"
)

// ReceiptFunc is called once when the server acknowledges a frame sent with a receipt.
type ReceiptFunc func(id string)

// Receipts is a map of pending receipt waiters keyed on receipt id.
type Receipts struct {
	sync.RWMutex
	internal map[string]ReceiptFunc
}

// NewReceipts returns a new instance of a Receipts map.
func NewReceipts() *Receipts {
	return &Receipts{
		internal: map[string]ReceiptFunc{},
	}
}

// Set adds a pending receipt. fn may be nil. If the id is already pending the
// existing waiter is kept and false is returned.
func (r *Receipts) Set(id string, fn ReceiptFunc) bool {
	r.Lock()
	defer r.Unlock()

	if _, ok := r.internal[id]; ok {
		return false
	}

	r.internal[id] = fn
	return true
}

// Resolve removes and returns the waiter for id. A receipt resolves at most once,
// so a second call for the same id returns false.
func (r *Receipts) Resolve(id string) (ReceiptFunc, bool) {
	r.Lock()
	defer r.Unlock()

	fn, ok := r.internal[id]
	if ok {
		delete(r.internal, id)
	}

	return fn, ok
}

// Delete removes a pending receipt without resolving it.
func (r *Receipts) Delete(id string) bool {
	r.Lock()
	defer r.Unlock()

	_, ok := r.internal[id]
	delete(r.internal, id)
	return ok
}

// Len returns the number of pending receipts.
func (r *Receipts) Len() int {
	r.RLock()
	defer r.RUnlock()
	return len(r.internal)
}

// IDs returns the ids of all pending receipts in sorted order.
func (r *Receipts) IDs() []string {
	r.RLock()
	defer r.RUnlock()

	ids := make([]string, 0, len(r.internal))
	for k := range r.internal {
		ids = append(ids, k)
	}

	sort.Strings(ids)
	return ids
}

// Clear discards all pending receipts unresolved and returns how many were discarded.
func (r *Receipts) Clear() int {
	r.Lock()
	defer r.Unlock()

	n := len(r.internal)
	r.internal = map[string]ReceiptFunc{}
	return n
}
