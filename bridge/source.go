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
	"math"
	"sync/atomic"
)

// Demand-based flow control: a Source emits payloads to a Subscriber,
// but only up to the amount the Subscriber has requested through the
// Subscription. The callbacks on a Subscriber are logically serial.

// Subscription controls demand toward one source.
type Subscription interface {
	// Request asks the source for n more payloads. n must be positive.
	Request(n int64)
	// Cancel asks the source to stop. Idempotent.
	Cancel()
}

// Subscriber receives payloads from a source.
type Subscriber interface {
	OnSubscribe(s Subscription)
	OnNext(p Payload)
	OnError(err error)
	OnComplete()
}

// Source is a demand-driven producer of payloads.
type Source interface {
	Subscribe(s Subscriber)
}

// ScalarSource is a source that can also be evaluated synchronously to
// at most one payload. The drain loop evaluates it inline instead of
// opening a full session when it can.
type ScalarSource interface {
	Source
	// Get returns the single payload, or nil if the source is empty.
	Get() (Payload, error)
}

// unboundedDemand is the sentinel at which demand saturates. Once
// reached, demand never decreases and further requests are no-ops.
const unboundedDemand = math.MaxInt64

// addCap adds two non-negative demands, saturating at the sentinel.
func addCap(a, b int64) int64 {
	s := a + b
	if s < 0 {
		return unboundedDemand
	}
	return s
}

// addCapAtomic folds n into v with saturating addition.
func addCapAtomic(v *atomic.Int64, n int64) int64 {
	for {
		cur := v.Load()
		nv := addCap(cur, n)
		if v.CompareAndSwap(cur, nv) {
			return nv
		}
	}
}

// validDemand reports whether n is an acceptable request amount,
// logging a protocol violation if it is not.
func validDemand(n int64) bool {
	if n <= 0 {
		Errorf("Non-positive demand request: %d", n)
		return false
	}
	return true
}

func reportMoreProduced() {
	Errorf("More items produced than requested, demand clamped to zero")
}

// scalarSubscription delivers exactly one payload on the first
// positive request, then completes.
type scalarSubscription struct {
	sub   Subscriber
	value Payload
	state atomic.Int32 // 0: fresh, 1: delivered, 2: cancelled
}

func newScalarSubscription(sub Subscriber, value Payload) *scalarSubscription {
	return &scalarSubscription{sub: sub, value: value}
}

func (c *scalarSubscription) Request(n int64) {
	if !validDemand(n) {
		return
	}
	if c.state.CompareAndSwap(0, 1) {
		c.sub.OnNext(c.value)
		if c.state.Load() != 2 {
			c.sub.OnComplete()
		}
	}
}

func (c *scalarSubscription) Cancel() {
	c.state.Store(2)
}

// scalarSource is the ScalarSource returned by ScalarOf.
type scalarSource struct {
	value Payload
}

// ScalarOf returns a source of a single payload. A nil payload yields
// an empty source, which the handler completes without writing.
func ScalarOf(p Payload) ScalarSource {
	return &scalarSource{value: p}
}

func (s *scalarSource) Get() (Payload, error) {
	return s.value, nil
}

func (s *scalarSource) Subscribe(sub Subscriber) {
	if s.value == nil {
		sub.OnSubscribe(emptySubscription{})
		sub.OnComplete()
		return
	}
	sub.OnSubscribe(newScalarSubscription(sub, s.value))
}

type emptySubscription struct{}

func (emptySubscription) Request(n int64) { validDemand(n) }
func (emptySubscription) Cancel()         {}

// SliceSource emits a fixed sequence of payloads, honoring demand.
// Mostly a convenience for callers with already materialized data.
type SliceSource struct {
	payloads []Payload
}

func NewSliceSource(payloads ...Payload) *SliceSource {
	return &SliceSource{payloads: payloads}
}

func (s *SliceSource) Subscribe(sub Subscriber) {
	sub.OnSubscribe(&sliceSubscription{sub: sub, items: s.payloads})
}

type sliceSubscription struct {
	sub       Subscriber
	items     []Payload
	idx       int // consumed only under wip ownership
	requested atomic.Int64
	wip       atomic.Int32
	cancelled atomic.Bool
}

func (c *sliceSubscription) Request(n int64) {
	if !validDemand(n) {
		return
	}
	addCapAtomic(&c.requested, n)
	if c.wip.Add(1) != 1 {
		return
	}
	missed := int32(1)
	for {
		for c.requested.Load() > 0 && c.idx < len(c.items) && !c.cancelled.Load() {
			p := c.items[c.idx]
			c.idx++
			c.requested.Add(-1)
			c.sub.OnNext(p)
		}
		if c.idx == len(c.items) && c.cancelled.CompareAndSwap(false, true) {
			c.sub.OnComplete()
		}
		missed = c.wip.Add(-missed)
		if missed == 0 {
			return
		}
	}
}

func (c *sliceSubscription) Cancel() {
	c.cancelled.Store(true)
}
