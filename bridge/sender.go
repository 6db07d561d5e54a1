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

import "sync/atomic"

// subRef boxes a Subscription so it can live in an atomic pointer cell
// regardless of its dynamic type.
type subRef struct {
	s Subscription
}

// sender is the nested demand controller: the subscriber the handler
// points at a nested data source, and at the same time the demand
// controller the rest of the handler issues requests through.
//
// All mutable session state (requested, actual, produced, promise,
// lastWrite) is owned by whichever goroutine holds the wip counter.
// Threads that lose the ownership race deposit their change in one of
// the missed* cells and schedule a reconciliation pass; the owner folds
// the cells back in before releasing ownership.
type sender struct {
	parent *Handler

	missedSubscription atomic.Pointer[subRef]
	missedRequested    atomic.Int64
	missedProduced     atomic.Int64
	wip                atomic.Int32

	inactive  atomic.Bool
	unbounded atomic.Bool

	// The current outstanding request amount. wip-owner only.
	requested int64
	// The current subscription, nil until a source subscribes.
	// wip-owner only.
	actual Subscription

	// Per-session state, confined to the session's producer by the
	// serial callback guarantee of the source protocol.
	produced  int64
	termErr   error
	promise   *Promise
	lastWrite *Promise
}

func newSender(parent *Handler) *sender {
	return &sender{parent: parent}
}

// begin binds the original caller's promise for a new session. Called
// by the outer drain owner right before subscribing.
func (s *sender) begin(pr *Promise) {
	s.promise = pr
	s.lastWrite = nil
	s.termErr = nil
	s.produced = 0
}

// Cancel flips the session inactive and schedules a reconciliation
// pass; the upstream subscription is cancelled during that pass rather
// than on the caller's stack. Idempotent.
func (s *sender) Cancel() {
	if s.inactive.CompareAndSwap(false, true) {
		s.drain()
	}
}

func (s *sender) OnSubscribe(sub Subscription) {
	if sub == nil {
		Errorf("%s - %v", s.parent, ErrNilSubscription)
		return
	}
	if s.inactive.Load() {
		sub.Cancel()
		return
	}
	if s.wip.Load() == 0 && s.wip.CompareAndSwap(0, 1) {
		s.actual = sub
		r := s.requested
		if s.wip.Add(-1) != 0 {
			s.drainLoop()
		}
		// Forward demand recorded before this source arrived, but only
		// once the subscription is installed.
		if r != 0 {
			sub.Request(r)
		}
		// A cancel whose pass ran before the install would have found
		// nothing to cancel; make sure the handle doesn't leak.
		if s.inactive.Load() {
			s.drain()
		}
		return
	}
	s.missedSubscription.Store(&subRef{s: sub})
	s.drain()
}

func (s *sender) OnNext(p Payload) {
	s.produced++
	s.lastWrite = s.parent.doWrite(p, NewPromise(), s)
	// Keep the pipe full while the channel can take more.
	if s.parent.ch.IsWritable() {
		s.Request(1)
	}
}

func (s *sender) OnComplete() {
	s.finish(nil)
}

func (s *sender) OnError(err error) {
	if err == nil {
		err = ErrPromiseFailed
	}
	s.finish(err)
}

// finish ends the session: reconcile the produced count against
// demand, flush if anything was written, and settle the original
// promise, chained on the last per-item write when one is still in
// flight.
func (s *sender) finish(err error) {
	p := s.produced
	f := s.lastWrite
	s.termErr = err
	s.parent.innerActive.Store(false)

	if p != 0 {
		s.produced = 0
		s.producedCount(p)
		s.parent.ch.Flush()
	}

	if f != nil {
		f.AddListener(s.settleSession)
	} else {
		if err != nil {
			s.promise.TryFailure(err)
		} else {
			s.promise.TrySuccess()
		}
		s.parent.drain()
	}
}

// settleSession runs when the session's last per-item write settles.
func (s *sender) settleSession(w *Promise) {
	switch {
	case s.termErr != nil:
		s.promise.TryFailure(s.termErr)
	case w.Succeeded():
		s.promise.TrySuccess()
	default:
		s.promise.TryFailure(w.Err())
	}
	s.parent.drain()
}

// Request merges n into outstanding demand with saturating addition and
// forwards the raw increment upstream. A thread that cannot take
// ownership accumulates into the missed-demand cell instead.
func (s *sender) Request(n int64) {
	if !validDemand(n) {
		return
	}
	if s.unbounded.Load() {
		return
	}
	if s.wip.Load() == 0 && s.wip.CompareAndSwap(0, 1) {
		r := s.requested
		if r != unboundedDemand {
			r = addCap(r, n)
			s.requested = r
			if r == unboundedDemand {
				s.unbounded.Store(true)
			}
		}
		a := s.actual
		if s.wip.Add(-1) != 0 {
			s.drainLoop()
		}
		if a != nil {
			a.Request(n)
		}
		return
	}
	addCapAtomic(&s.missedRequested, n)
	s.drain()
}

// producedCount reconciles n produced items against outstanding
// demand, clamping at zero (and reporting) if the source over-produced.
func (s *sender) producedCount(n int64) {
	if s.unbounded.Load() {
		return
	}
	if s.wip.Load() == 0 && s.wip.CompareAndSwap(0, 1) {
		r := s.requested
		if r != unboundedDemand {
			u := r - n
			if u < 0 {
				reportMoreProduced()
				u = 0
			}
			s.requested = u
		} else {
			s.unbounded.Store(true)
		}
		if s.wip.Add(-1) == 0 {
			return
		}
		s.drainLoop()
		return
	}
	addCapAtomic(&s.missedProduced, n)
	s.drain()
}

func (s *sender) drain() {
	if s.wip.Add(1) != 1 {
		return
	}
	s.drainLoop()
}

// drainLoop is the reconciliation pass. It swaps out the missed cells,
// folds them into the live counters with the same saturating/clamping
// rules, switches to a newly installed subscription, and issues at most
// one aggregated request once all passes are paid for.
func (s *sender) drainLoop() {
	missed := int32(1)

	var requestAmount int64
	var requestTarget Subscription

	for {
		var ms Subscription
		if ref := s.missedSubscription.Swap(nil); ref != nil {
			ms = ref.s
		}
		mr := s.missedRequested.Load()
		if mr != 0 {
			mr = s.missedRequested.Swap(0)
		}
		mp := s.missedProduced.Load()
		if mp != 0 {
			mp = s.missedProduced.Swap(0)
		}
		a := s.actual

		if s.inactive.Load() {
			if a != nil {
				a.Cancel()
				s.actual = nil
			}
			if ms != nil {
				ms.Cancel()
			}
		} else {
			r := s.requested
			if r != unboundedDemand {
				u := addCap(r, mr)
				if u != unboundedDemand {
					v := u - mp
					if v < 0 {
						reportMoreProduced()
						v = 0
					}
					r = v
				} else {
					r = u
				}
				s.requested = r
				if r == unboundedDemand {
					s.unbounded.Store(true)
				}
			}

			if ms != nil {
				s.actual = ms
				if r != 0 {
					requestAmount = addCap(requestAmount, r)
					requestTarget = ms
				}
			} else if mr != 0 && a != nil {
				requestAmount = addCap(requestAmount, mr)
				requestTarget = a
			}
		}

		missed = s.wip.Add(-missed)
		if missed == 0 {
			if requestAmount != 0 && requestTarget != nil {
				requestTarget.Request(requestAmount)
			}
			return
		}
	}
}
