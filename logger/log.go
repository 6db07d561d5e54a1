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

// Package logger provides a stdlib-backed implementation of the bridge
// Logger interface.
package logger

import (
	"log"
	"os"
)

// Logger writes labeled log lines through the standard library logger.
type Logger struct {
	logger *log.Logger
	debug  bool
	trace  bool
}

// NewStdLogger creates a logger to stderr. The time flag adds
// timestamps; debug and trace enable the corresponding levels.
func NewStdLogger(time, debug, trace bool) *Logger {
	flags := 0
	if time {
		flags = log.LstdFlags
	}
	return &Logger{
		logger: log.New(os.Stderr, "", flags),
		debug:  debug,
		trace:  trace,
	}
}

// NewFileLogger creates a logger appending to the given file.
func NewFileLogger(filename string, time, debug, trace bool) (*Logger, error) {
	fileflags := os.O_WRONLY | os.O_APPEND | os.O_CREATE
	f, err := os.OpenFile(filename, fileflags, 0660)
	if err != nil {
		return nil, err
	}
	flags := 0
	if time {
		flags = log.LstdFlags
	}
	return &Logger{
		logger: log.New(f, "", flags),
		debug:  debug,
		trace:  trace,
	}, nil
}

func (l *Logger) Noticef(format string, v ...any) {
	l.logger.Printf("[INF] "+format, v...)
}

func (l *Logger) Warnf(format string, v ...any) {
	l.logger.Printf("[WRN] "+format, v...)
}

func (l *Logger) Errorf(format string, v ...any) {
	l.logger.Printf("[ERR] "+format, v...)
}

func (l *Logger) Fatalf(format string, v ...any) {
	l.logger.Fatalf("[FTL] "+format, v...)
}

func (l *Logger) Debugf(format string, v ...any) {
	if l.debug {
		l.logger.Printf("[DBG] "+format, v...)
	}
}

func (l *Logger) Tracef(format string, v ...any) {
	if l.trace {
		l.logger.Printf("[TRC] "+format, v...)
	}
}
