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
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const registryDefaultDetachedSize = 1024

// Registry maps connection IDs to their inbound handlers. It also
// remembers recently detached connections in a bounded LRU so late
// events for a connection that just went away can be told apart from
// events for a connection that was never registered.
type Registry struct {
	mu       sync.RWMutex
	active   map[string]InboundHandler
	detached *lru.Cache[string, time.Time]
}

// NewRegistry creates a registry keeping up to detachedSize recently
// detached connection IDs (0 selects the default).
func NewRegistry(detachedSize int) (*Registry, error) {
	if detachedSize <= 0 {
		detachedSize = registryDefaultDetachedSize
	}
	d, err := lru.New[string, time.Time](detachedSize)
	if err != nil {
		return nil, err
	}
	return &Registry{
		active:   make(map[string]InboundHandler),
		detached: d,
	}, nil
}

// Register installs ops as the inbound handler for cid, replacing any
// previous one.
func (r *Registry) Register(cid string, ops InboundHandler) {
	r.mu.Lock()
	r.active[cid] = ops
	r.mu.Unlock()
	r.detached.Remove(cid)
}

// Lookup returns the inbound handler for cid, or nil.
func (r *Registry) Lookup(cid string) InboundHandler {
	r.mu.RLock()
	ops := r.active[cid]
	r.mu.RUnlock()
	return ops
}

// Detach removes cid's inbound handler and records the detach time.
func (r *Registry) Detach(cid string) {
	r.mu.Lock()
	delete(r.active, cid)
	r.mu.Unlock()
	r.detached.Add(cid, time.Now())
}

// WasDetached reports whether cid was recently detached.
func (r *Registry) WasDetached(cid string) bool {
	return r.detached.Contains(cid)
}

// Len returns the number of active registrations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}
