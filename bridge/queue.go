// Copyright 2024-2025 The Flowbridge Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package bridge

import (
	"sync"
	"sync/atomic"
)

const queueDefaultMaxRecycleSize = 4 * 1024

// This is a lock-free unbounded multi-producer queue. Elements are
// stored whole, so a writeEntry's promise and payload are offered as
// one atomic pair and can never interleave with another entry under
// concurrent pushes. It is drained by a single consumer at a time,
// which is enforced by the handler's drain ownership counter, not by
// the queue itself.
type mpscQueue[T any] struct {
	head   atomic.Pointer[queueElement[T]] // First element in the queue
	tail   atomic.Pointer[queueElement[T]] // Last element in the queue
	sz     atomic.Int64                    // Current length of the queue
	closed atomic.Bool                     // No further pushes accepted
	pool   *sync.Pool                      // pop() slices are recycled here
	mrs    int                             // Max recycle size
}

type queueElement[T any] struct {
	v    atomic.Pointer[T]
	next atomic.Pointer[queueElement[T]]
}

func newMPSCQueue[T any]() *mpscQueue[T] {
	return &mpscQueue[T]{
		pool: &sync.Pool{},
		mrs:  queueDefaultMaxRecycleSize,
	}
}

// Add the element `e` to the queue and return true, or return false if
// the queue has been closed. Safe for any number of concurrent pushers.
func (q *mpscQueue[T]) push(e T) bool {
	elem := &queueElement[T]{}
	elem.v.Store(&e)
	for {
		if q.closed.Load() {
			return false
		}
		tail := q.tail.Load()
		if !q.tail.CompareAndSwap(tail, elem) {
			continue
		}
		if tail != nil {
			tail.next.CompareAndSwap(nil, elem)
		}
		q.head.CompareAndSwap(nil, elem)
		q.sz.Add(1)
		return true
	}
}

// Returns the first element from the queue, if any. The caller should
// always check the boolean return value to ensure that the value is
// genuine and not a default empty value.
func (q *mpscQueue[T]) popOne() (T, bool) {
	var elt T
	for {
		head := q.head.Load()
		if head == nil {
			return elt, false
		}
		next := head.next.Load()
		if q.head.CompareAndSwap(head, next) {
			if v := head.v.Load(); v != nil {
				elt = *v
			}
			q.tail.CompareAndSwap(head, nil)
			q.sz.Add(-1)
			return elt, true
		}
	}
}

// Returns the whole list of elements currently present in the queue,
// emptying the queue, or nil if it is empty. A pusher racing with pop()
// may land its element after the swap, so the caller should not assume
// a pop() that returned elements left the queue empty.
func (q *mpscQueue[T]) pop() []T {
	for {
		head := q.head.Load()
		if head == nil {
			return nil
		}
		tail := q.tail.Load()
		if !q.head.CompareAndSwap(head, nil) {
			continue
		}
		q.tail.CompareAndSwap(tail, nil)
		var elts []T
		if eltsi := q.pool.Get(); eltsi != nil {
			// Reason we use pointer to slice instead of slice is explained
			// here: https://staticcheck.io/docs/checks#SA6002
			elts = (*(eltsi.(*[]T)))[:0]
		}
		if cap(elts) == 0 {
			elts = make([]T, 0, 32)
		}
		for ptr := head; ptr != nil; ptr = ptr.next.Load() {
			if v := ptr.v.Load(); v != nil {
				elts = append(elts, *v)
			}
		}
		q.sz.Add(-int64(len(elts)))
		return elts
	}
}

// After a pop(), the slice can be given back for reuse by a later pop().
func (q *mpscQueue[T]) recycle(elts *[]T) {
	if elts == nil || *elts == nil {
		return
	}
	// We don't want to recycle huge slices, so check against the max.
	if cap(*elts) > q.mrs {
		return
	}
	q.pool.Put(elts)
}

// Returns the current length of the queue.
func (q *mpscQueue[T]) len() int {
	return int(q.sz.Load())
}

// Close the queue: all subsequent pushes return false. Elements already
// queued are left for the consumer to pop.
func (q *mpscQueue[T]) close() {
	q.closed.Store(true)
}
