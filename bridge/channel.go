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

// Channel is the non-blocking write primitive the handler drives. An
// implementation is expected to be confined to a single event-loop
// goroutine, to never block, and to settle the promise attached to a
// write once the write has been taken over (or has failed). It must
// invoke the handler's WritabilityChanged hook whenever IsWritable
// flips.
type Channel interface {
	// Write hands one payload to the channel without forcing a flush.
	Write(p Payload, pr *Promise)
	// WriteAndFlush hands one payload to the channel and flushes.
	WriteAndFlush(p Payload, pr *Promise)
	// Flush asks the channel to flush anything it has buffered.
	Flush()
	// IsWritable reports whether the channel currently accepts writes
	// without excessive buffering.
	IsWritable() bool
}

// InboundHandler is the inbound-sink collaborator. The handler routes
// inbound data, connection-inactive and error notifications to it when
// one is registered for the connection.
type InboundHandler interface {
	OnInboundNext(msg any)
	OnInboundError(err error)
	OnChannelInactive()
}
