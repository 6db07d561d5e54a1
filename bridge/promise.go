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

import "sync"

// Promise is the completion handle for one outbound write. It is
// settled exactly once, with success or with an error, from any
// goroutine. Listeners run on the settling goroutine, or immediately
// on the adding goroutine if the promise is already settled.
type Promise struct {
	mu        sync.Mutex
	done      chan struct{}
	err       error
	settled   bool
	listeners []func(*Promise)
}

func NewPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

// TrySuccess settles the promise with success. It returns false if the
// promise was already settled.
func (p *Promise) TrySuccess() bool {
	return p.settle(nil)
}

// TryFailure settles the promise with err. A nil err is replaced with
// ErrPromiseFailed so a failed promise always carries a cause. It
// returns false if the promise was already settled.
func (p *Promise) TryFailure(err error) bool {
	if err == nil {
		err = ErrPromiseFailed
	}
	return p.settle(err)
}

func (p *Promise) settle(err error) bool {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return false
	}
	p.settled = true
	p.err = err
	ls := p.listeners
	p.listeners = nil
	close(p.done)
	p.mu.Unlock()
	for _, l := range ls {
		l(p)
	}
	return true
}

// AddListener registers f to run once the promise settles. If the
// promise is already settled, f runs before AddListener returns.
func (p *Promise) AddListener(f func(*Promise)) {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		f(p)
		return
	}
	p.listeners = append(p.listeners, f)
	p.mu.Unlock()
}

// Done returns a channel closed when the promise settles.
func (p *Promise) Done() <-chan struct{} {
	return p.done
}

// IsDone reports whether the promise has been settled.
func (p *Promise) IsDone() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settled
}

// Succeeded reports whether the promise settled with success.
func (p *Promise) Succeeded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settled && p.err == nil
}

// Err returns the settlement error, or nil if the promise succeeded or
// has not settled yet.
func (p *Promise) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}
