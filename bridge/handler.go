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
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nuid"
	"golang.org/x/time/rate"
)

const (
	// defaultPrefetch is the demand pre-requested from nested sources
	// when the handler attaches to its connection.
	defaultPrefetch = 32
)

// writeEntry pairs one payload with its completion handle. Entries go
// through the outbound queue whole, so the pair can never be split by
// a concurrent submission.
type writeEntry struct {
	pr *Promise
	p  Payload
}

// Handler is the outbound write bridge for one connection. Arbitrary
// goroutines submit writes; a single drain pass at a time serializes
// them into the channel, interleaving nested data sources atomically.
type Handler struct {
	ch    Channel
	queue *mpscQueue[writeEntry]
	inner *sender

	// Approximate bytes queued or in flight. Mutated only under drain
	// ownership (or by the active session's producer, which excludes
	// the drain loop by construction).
	pendingBytes int64

	wip         atomic.Int32
	innerActive atomic.Bool
	removed     atomic.Bool
	limited     atomic.Bool

	prefetch int
	limit    int

	enc     Encoder
	limiter *rate.Limiter
	burst   int

	reg *Registry
	cid string
}

type handlerOpts struct {
	prefetch int
	enc      Encoder
	limiter  *rate.Limiter
	burst    int
	reg      *Registry
	cid      string
}

// HandlerOpt configures a Handler.
type HandlerOpt func(*handlerOpts)

// WithPrefetch sets how much demand is pre-requested from nested
// sources when the handler attaches.
func WithPrefetch(n int) HandlerOpt {
	return func(o *handlerOpts) {
		if n > 0 {
			o.prefetch = n
		}
	}
}

// WithEncoder installs an outbound payload encoder.
func WithEncoder(enc Encoder) HandlerOpt {
	return func(o *handlerOpts) {
		o.enc = enc
	}
}

// WithRateLimit caps the outbound byte rate. burst should be at least
// the largest expected payload; reservations are clamped to it.
func WithRateLimit(bytesPerSec float64, burst int) HandlerOpt {
	return func(o *handlerOpts) {
		if bytesPerSec > 0 && burst > 0 {
			o.limiter = rate.NewLimiter(rate.Limit(bytesPerSec), burst)
			o.burst = burst
		}
	}
}

// WithRegistry connects the handler to the inbound-sink registry.
func WithRegistry(reg *Registry) HandlerOpt {
	return func(o *handlerOpts) {
		o.reg = reg
	}
}

// WithConnectionID overrides the generated connection ID.
func WithConnectionID(cid string) HandlerOpt {
	return func(o *handlerOpts) {
		o.cid = cid
	}
}

// NewHandler creates the outbound bridge for one channel. The caller
// is expected to invoke Attached once the handler is wired into the
// transport.
func NewHandler(ch Channel, opts ...HandlerOpt) *Handler {
	o := handlerOpts{prefetch: defaultPrefetch}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cid == "" {
		o.cid = nuid.Next()
	}
	h := &Handler{
		ch:       ch,
		queue:    newMPSCQueue[writeEntry](),
		prefetch: o.prefetch,
		limit:    o.prefetch - (o.prefetch >> 2),
		enc:      o.enc,
		limiter:  o.limiter,
		burst:    o.burst,
		reg:      o.reg,
		cid:      o.cid,
	}
	h.inner = newSender(h)
	return h
}

func (h *Handler) String() string {
	return fmt.Sprintf("cid:%s", h.cid)
}

// ConnectionID returns the handler's connection ID, used as the key
// into the inbound-sink registry.
func (h *Handler) ConnectionID() string {
	return h.cid
}

// Submit enqueues one write. It returns false, after failing the
// promise, only if the entry could not be accepted (the handler has
// been detached, or the queue refused the entry). Safe for any number
// of concurrent callers.
func (h *Handler) Submit(p Payload, pr *Promise) bool {
	if trace.Load() == 1 {
		Tracef("%s - submitting %T", h, p)
	}
	if h.removed.Load() {
		pr.TryFailure(ErrHandlerDetached)
		return false
	}
	if !h.queue.push(writeEntry{pr: pr, p: p}) {
		pr.TryFailure(ErrQueueClosed)
		return false
	}
	h.drain()
	return true
}

// Attached is invoked by the transport once the handler is wired in.
// It primes the demand window nested sources will draw from.
func (h *Handler) Attached() {
	h.inner.Request(int64(h.prefetch))
}

// Detached is invoked by the transport when the handler is removed
// from its connection. It cancels any active session exactly once and
// fails everything still queued.
func (h *Handler) Detached() {
	if !h.removed.CompareAndSwap(false, true) {
		return
	}
	h.queue.close()
	h.inner.Cancel()
	if h.reg != nil {
		h.reg.Detach(h.cid)
	}
	h.drain()
}

// Flush is the transport's flush hook.
func (h *Handler) Flush() {
	h.drain()
}

// WritabilityChanged is invoked when the channel's writability flag
// flips. Becoming writable replenishes one unit of nested demand and
// resumes the drain.
func (h *Handler) WritabilityChanged() {
	Debugf("%s - write state change: %v", h, h.ch.IsWritable())
	if h.ch.IsWritable() {
		h.inner.Request(1)
	}
	h.drain()
}

// InboundReceived routes one inbound message to the registered inbound
// handler. Nil and empty-buffer messages are skipped. Panics from the
// sink become inbound errors unless fatal.
func (h *Handler) InboundReceived(msg any) {
	if msg == nil {
		return
	}
	if b, ok := msg.(Buffer); ok && len(b.Data) == 0 {
		return
	}
	h.guard(func() {
		if ops := h.inbound(); ops != nil {
			ops.OnInboundNext(msg)
		}
	})
}

// ConnectionInactive notifies the inbound handler that the connection
// went away.
func (h *Handler) ConnectionInactive() {
	h.guard(func() {
		if ops := h.inbound(); ops != nil {
			ops.OnChannelInactive()
		}
	})
}

// HandleEvent receives out-of-band transport events.
func (h *Handler) HandleEvent(evt any) {
	if trace.Load() == 1 {
		Tracef("%s - event: %v", h, evt)
	}
}

// HandleError is the error hook: fatal errors are re-panicked,
// ordinary ones are reported to the inbound handler.
func (h *Handler) HandleError(err error) {
	if err == nil {
		return
	}
	if IsFatal(err) {
		panic(err)
	}
	h.handleError(err)
}

func (h *Handler) handleError(err error) {
	Debugf("%s - handler failure: %v", h, err)
	if ops := h.inbound(); ops != nil {
		ops.OnInboundError(err)
	}
}

// guard runs f, converting panics into inbound errors. Runtime errors
// and Fatal-wrapped errors are re-panicked.
func (h *Handler) guard(f func()) {
	defer func() {
		if r := recover(); r != nil {
			rethrowIfFatal(r)
			h.handleError(recoveredError(r))
		}
	}()
	f()
}

func (h *Handler) inbound() InboundHandler {
	if h.reg == nil {
		return nil
	}
	ops := h.reg.Lookup(h.cid)
	if ops == nil {
		if h.reg.WasDetached(h.cid) {
			Debugf("%s - event for detached connection dropped", h)
		} else {
			Errorf("%s - no inbound handler registered", h)
		}
	}
	return ops
}

// writable is the drain gate: channel writability plus the optional
// rate limiter's verdict.
func (h *Handler) writable() bool {
	return h.ch.IsWritable() && !h.limited.Load()
}

// drain pulls write entries one at a time and serializes them into the
// channel. Ownership is claimed by the 0->1 transition of wip; losers
// only record a missed signal and the owner trampolines until all
// signals are paid for.
func (h *Handler) drain() {
	if h.wip.Add(1) != 1 {
		return
	}

	for {
		if h.removed.Load() {
			h.failPending(ErrHandlerDetached)
			if h.wip.Add(-1) == 0 {
				return
			}
			continue
		}

		if h.innerActive.Load() || !h.writable() {
			if h.wip.Add(-1) == 0 {
				return
			}
			continue
		}

		entry, ok := h.queue.popOne()
		if !ok {
			if h.wip.Add(-1) == 0 {
				return
			}
			continue
		}

		pr := entry.pr

		switch v := entry.p.(type) {
		case Stream:
			src := v.Source
			if sc, ok := src.(ScalarSource); ok {
				out, err := evalScalar(sc)
				if err != nil {
					pr.TryFailure(err)
					continue
				}
				if out == nil {
					pr.TrySuccess()
					continue
				}
				if h.inner.unbounded.Load() {
					h.doWrite(out, pr, nil)
					continue
				}
				h.innerActive.Store(true)
				h.inner.begin(pr)
				h.inner.OnSubscribe(newScalarSubscription(h.inner, out))
				continue
			}
			h.innerActive.Store(true)
			h.inner.begin(pr)
			src.Subscribe(h.inner)
		default:
			h.doWrite(entry.p, pr, nil)
		}
	}
}

// doWrite performs one low-level write. With no inner session and an
// empty queue it takes the fast path: reset the pending-byte counter
// and write-and-flush directly.
func (h *Handler) doWrite(p Payload, pr *Promise, inner *sender) *Promise {
	if h.enc != nil {
		ep, err := h.enc.Encode(p)
		if err != nil {
			pr.TryFailure(err)
			return pr
		}
		p = ep
	}
	if h.limiter != nil {
		h.reserve(p.pendingSize())
	}
	pr.AddListener(h.writeFinished)
	if inner == nil && h.queue.len() == 0 {
		h.pendingBytes = 0
		h.ch.WriteAndFlush(p, pr)
		return pr
	}
	h.pendingBytes += p.pendingSize()
	if debug.Load() == 1 {
		Debugf("%s - pending bytes: %d", h, h.pendingBytes)
	}
	h.ch.Write(p, pr)
	return pr
}

// writeFinished runs whenever a low-level write settles: replenish the
// nested demand window and resume the drain.
func (h *Handler) writeFinished(*Promise) {
	h.inner.Request(int64(h.limit))
	h.drain()
}

// reserve charges n bytes against the rate limiter. A non-zero delay
// parks the drain and re-arms it when the reservation matures; the
// drain never blocks a goroutine.
func (h *Handler) reserve(n int64) {
	if n <= 0 {
		return
	}
	if n > int64(h.burst) {
		n = int64(h.burst)
	}
	now := time.Now()
	res := h.limiter.ReserveN(now, int(n))
	if !res.OK() {
		return
	}
	if d := res.DelayFrom(now); d > 0 {
		h.limited.Store(true)
		time.AfterFunc(d, func() {
			h.limited.Store(false)
			h.drain()
		})
	}
}

// failPending scrubs the queue after detach, failing every stranded
// promise with err.
func (h *Handler) failPending(err error) {
	entries := h.queue.pop()
	if entries == nil {
		return
	}
	for _, e := range entries {
		e.pr.TryFailure(err)
	}
	h.queue.recycle(&entries)
}

// evalScalar evaluates a synchronous single-value source, converting a
// panic into that one write's failure.
func evalScalar(src ScalarSource) (p Payload, err error) {
	defer func() {
		if r := recover(); r != nil {
			rethrowIfFatal(r)
			err = recoveredError(r)
		}
	}()
	return src.Get()
}
