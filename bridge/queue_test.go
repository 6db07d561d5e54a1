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
	"sync"
	"testing"
)

func TestMPSCQueueBasic(t *testing.T) {
	q := newMPSCQueue[int]()
	require_Equal(t, q.len(), 0)

	if _, ok := q.popOne(); ok {
		t.Fatalf("Expected no element from empty queue")
	}

	require_True(t, q.push(1))
	require_True(t, q.push(2))
	require_Equal(t, q.len(), 2)

	v, ok := q.popOne()
	require_True(t, ok)
	require_Equal(t, v, 1)
	v, ok = q.popOne()
	require_True(t, ok)
	require_Equal(t, v, 2)
	require_Equal(t, q.len(), 0)
}

func TestMPSCQueuePopAndRecycle(t *testing.T) {
	q := newMPSCQueue[int]()
	if elts := q.pop(); elts != nil {
		t.Fatalf("Expected nil from empty queue, got %v", elts)
	}
	for i := 0; i < 10; i++ {
		q.push(i)
	}
	elts := q.pop()
	require_Len(t, len(elts), 10)
	for i, v := range elts {
		require_Equal(t, v, i)
	}
	require_Equal(t, q.len(), 0)
	q.recycle(&elts)

	// The recycled slice should be reused by the next pop.
	q.push(42)
	elts = q.pop()
	require_Len(t, len(elts), 1)
	require_Equal(t, elts[0], 42)
}

func TestMPSCQueueClose(t *testing.T) {
	q := newMPSCQueue[int]()
	require_True(t, q.push(1))
	q.close()
	require_False(t, q.push(2))
	// Already queued elements remain poppable.
	v, ok := q.popOne()
	require_True(t, ok)
	require_Equal(t, v, 1)
}

func TestMPSCQueueConcurrentPush(t *testing.T) {
	const producers = 8
	const perProducer = 1000

	q := newMPSCQueue[[2]int]()
	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.push([2]int{p, i})
			}
		}(p)
	}
	wg.Wait()

	require_Equal(t, q.len(), producers*perProducer)

	// Each producer's elements must come out in that producer's order.
	next := make([]int, producers)
	count := 0
	for {
		e, ok := q.popOne()
		if !ok {
			break
		}
		p, i := e[0], e[1]
		if next[p] != i {
			t.Fatalf("Producer %d out of order: expected %d, got %d", p, next[p], i)
		}
		next[p]++
		count++
	}
	require_Equal(t, count, producers*perProducer)
}

// Entries must come off the queue as the same (promise, payload) pair
// they were offered as, no matter how submissions interleave.
func TestMPSCQueuePairAtomicity(t *testing.T) {
	const producers = 8
	const perProducer = 500

	q := newMPSCQueue[writeEntry]()
	pairs := make(map[*Promise]string)
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				pr := NewPromise()
				tag := fmt.Sprintf("%d/%d", p, i)
				mu.Lock()
				pairs[pr] = tag
				mu.Unlock()
				q.push(writeEntry{pr: pr, p: Buffer{Data: []byte(tag)}})
			}
		}(p)
	}
	wg.Wait()

	count := 0
	for {
		e, ok := q.popOne()
		if !ok {
			break
		}
		tag := pairs[e.pr]
		got := string(e.p.(Buffer).Data)
		if tag != got {
			t.Fatalf("Pair split: promise tagged %q carried payload %q", tag, got)
		}
		count++
	}
	require_Equal(t, count, producers*perProducer)
}
