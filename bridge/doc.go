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

// Package bridge is the outbound write side of an asynchronous
// transport. It accepts writes from arbitrary goroutines, serializes
// them into a single ordered stream toward a non-blocking channel,
// honors the channel's writability signal, and settles each write's
// promise individually without ever blocking a caller.
//
// Plain payloads go out in submission order. A payload carrying a
// nested data source suspends the plain queue: the handler subscribes
// to the source with demand-based flow control, writes its items as
// they are produced, and resumes the queue once the source terminates.
// Nothing in the hot path takes a lock; cross-goroutine handoff runs
// on ownership counters and lock-free queues.
package bridge
