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
	"errors"
	"fmt"
)

var (
	// ErrHandlerDetached is used to fail writes submitted to, or still
	// queued on, a handler that has been detached from its connection.
	ErrHandlerDetached = errors.New("handler detached")

	// ErrQueueClosed is used to fail a write whose entry could not be
	// accepted by the outbound queue.
	ErrQueueClosed = errors.New("outbound queue closed")

	// ErrNilSubscription is reported when a source hands the sender a
	// nil subscription.
	ErrNilSubscription = errors.New("nil subscription")

	// ErrPromiseFailed is the fallback cause when a promise is failed
	// without an explicit error.
	ErrPromiseFailed = errors.New("write failed")
)

// fatalError marks an error as non-recoverable. Handler hooks re-panic
// fatal errors instead of routing them to the inbound handler.
type fatalError struct {
	err error
}

// Fatal wraps err so that it is treated as non-recoverable by the
// handler hooks.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

func (f *fatalError) Error() string { return fmt.Sprintf("fatal: %v", f.err) }

func (f *fatalError) Unwrap() error { return f.err }

// IsFatal reports whether err was marked with Fatal.
func IsFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}

// rethrowIfFatal re-panics recovered values that must not be handled:
// runtime errors and errors marked with Fatal. Everything else is left
// for the caller to report through the normal error path.
func rethrowIfFatal(r any) {
	switch e := r.(type) {
	case interface{ RuntimeError() }:
		panic(r)
	case error:
		if IsFatal(e) {
			panic(r)
		}
	}
}

// recoveredError converts a recovered panic value to an error.
func recoveredError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}
