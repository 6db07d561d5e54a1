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

import "os"

// Payload is the closed set of shapes the handler knows how to write.
// The pendingSize method is unexported on purpose: it seals the set so
// the drain loop can switch exhaustively, and it centralizes the
// pending-byte bookkeeping rules.
type Payload interface {
	// pendingSize is the payload's contribution to the handler's
	// pending-byte counter.
	pendingSize() int64
}

// Buffer is a plain byte-bearing payload.
type Buffer struct {
	Data []byte
}

func (b Buffer) pendingSize() int64 { return int64(len(b.Data)) }

// BufferHolder wraps a byte buffer together with opaque metadata the
// channel may care about (headers, trailers, frame type...). Only the
// contained buffer counts toward pending bytes.
type BufferHolder struct {
	Content []byte
	Meta    any
}

func (h BufferHolder) pendingSize() int64 { return int64(len(h.Content)) }

// FileSegment describes a zero-copy region of a file to transfer. The
// remaining transfer count is what contributes to pending bytes.
type FileSegment struct {
	File        *os.File
	Offset      int64
	Count       int64
	Transferred int64
}

func (f FileSegment) pendingSize() int64 { return f.Count - f.Transferred }

// Stream carries a nested data source. It never reaches the low-level
// write path as-is: the drain loop intercepts it and opens a session,
// so it contributes nothing to pending bytes.
type Stream struct {
	Source Source
}

func (Stream) pendingSize() int64 { return 0 }
