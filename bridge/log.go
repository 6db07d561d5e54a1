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
	"sync/atomic"
)

var debug atomic.Int32
var trace atomic.Int32

var log = struct {
	logger Logger
	sync.Mutex
}{}

// Logger is the interface the package logs through. See the logger
// package for a stdlib-backed implementation.
type Logger interface {
	Noticef(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
	Fatalf(format string, v ...any)
	Debugf(format string, v ...any)
	Tracef(format string, v ...any)
}

// SetLogger installs the package logger. Passing nil disables logging.
// The d and t flags enable debug and trace output respectively.
func SetLogger(logger Logger, d, t bool) {
	if d {
		debug.Store(1)
	} else {
		debug.Store(0)
	}
	if t {
		trace.Store(1)
	} else {
		trace.Store(0)
	}
	log.Lock()
	defer log.Unlock()
	log.logger = logger
}

func Noticef(format string, v ...any) {
	executeLogCall(func(logger Logger, format string, v ...any) {
		logger.Noticef(format, v...)
	}, format, v...)
}

func Warnf(format string, v ...any) {
	executeLogCall(func(logger Logger, format string, v ...any) {
		logger.Warnf(format, v...)
	}, format, v...)
}

func Errorf(format string, v ...any) {
	executeLogCall(func(logger Logger, format string, v ...any) {
		logger.Errorf(format, v...)
	}, format, v...)
}

func Debugf(format string, v ...any) {
	if debug.Load() == 0 {
		return
	}
	executeLogCall(func(logger Logger, format string, v ...any) {
		logger.Debugf(format, v...)
	}, format, v...)
}

func Tracef(format string, v ...any) {
	if trace.Load() == 0 {
		return
	}
	executeLogCall(func(logger Logger, format string, v ...any) {
		logger.Tracef(format, v...)
	}, format, v...)
}

func executeLogCall(f func(logger Logger, format string, v ...any), format string, args ...any) {
	log.Lock()
	defer log.Unlock()
	if log.logger == nil {
		return
	}
	f(log.logger, format, args...)
}
