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

package testhelper

// These routines need to be accessible from any package's tests, and
// tests importing a package don't get symbols from its _test.go files,
// so they live here where they can be used freely.

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

// DummyLogger captures log lines so tests can assert on them.
type DummyLogger struct {
	sync.Mutex
	Msg     string
	AllMsgs []string
}

// NewDummyLogger creates a logger aggregating every line it sees.
func NewDummyLogger() *DummyLogger {
	return &DummyLogger{AllMsgs: []string{}}
}

func (l *DummyLogger) CheckContent(t *testing.T, expectedStr string) {
	t.Helper()
	l.Lock()
	defer l.Unlock()
	if l.Msg != expectedStr {
		t.Fatalf("Expected log to be: %v, got %v", expectedStr, l.Msg)
	}
}

// CheckForProhibited fails the test if any captured line contains str.
func (l *DummyLogger) CheckForProhibited(t *testing.T, reason, str string) {
	t.Helper()
	l.Lock()
	defer l.Unlock()
	for _, msg := range l.AllMsgs {
		if strings.Contains(msg, str) {
			t.Fatalf("Found %s: %v", reason, msg)
		}
	}
}

// Contains reports whether any captured line contains str.
func (l *DummyLogger) Contains(str string) bool {
	l.Lock()
	defer l.Unlock()
	for _, msg := range l.AllMsgs {
		if strings.Contains(msg, str) {
			return true
		}
	}
	return false
}

func (l *DummyLogger) aggregate() {
	if l.AllMsgs != nil {
		l.AllMsgs = append(l.AllMsgs, l.Msg)
	}
}

func (l *DummyLogger) Noticef(format string, v ...any) {
	l.Lock()
	defer l.Unlock()
	l.Msg = fmt.Sprintf(format, v...)
	l.aggregate()
}

func (l *DummyLogger) Warnf(format string, v ...any) {
	l.Lock()
	defer l.Unlock()
	l.Msg = fmt.Sprintf(format, v...)
	l.aggregate()
}

func (l *DummyLogger) Errorf(format string, v ...any) {
	l.Lock()
	defer l.Unlock()
	l.Msg = fmt.Sprintf(format, v...)
	l.aggregate()
}

func (l *DummyLogger) Fatalf(format string, v ...any) {
	l.Lock()
	defer l.Unlock()
	l.Msg = fmt.Sprintf(format, v...)
	l.aggregate()
}

func (l *DummyLogger) Debugf(format string, v ...any) {
	l.Lock()
	defer l.Unlock()
	l.Msg = fmt.Sprintf(format, v...)
	l.aggregate()
}

func (l *DummyLogger) Tracef(format string, v ...any) {
	l.Lock()
	defer l.Unlock()
	l.Msg = fmt.Sprintf(format, v...)
	l.aggregate()
}
