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

import "testing"

func TestRegistryRegisterLookup(t *testing.T) {
	reg, err := NewRegistry(0)
	require_NoError(t, err)

	ops := &recordingInbound{}
	reg.Register("c1", ops)
	require_Equal(t, reg.Len(), 1)
	require_True(t, reg.Lookup("c1") == InboundHandler(ops))
	require_True(t, reg.Lookup("c2") == nil)

	// Re-registering replaces.
	ops2 := &recordingInbound{}
	reg.Register("c1", ops2)
	require_Equal(t, reg.Len(), 1)
	require_True(t, reg.Lookup("c1") == InboundHandler(ops2))
}

func TestRegistryDetach(t *testing.T) {
	reg, err := NewRegistry(0)
	require_NoError(t, err)

	reg.Register("c1", &recordingInbound{})
	require_False(t, reg.WasDetached("c1"))

	reg.Detach("c1")
	require_Equal(t, reg.Len(), 0)
	require_True(t, reg.Lookup("c1") == nil)
	require_True(t, reg.WasDetached("c1"))
	require_False(t, reg.WasDetached("never-seen"))

	// Re-registering clears the detached mark.
	reg.Register("c1", &recordingInbound{})
	require_False(t, reg.WasDetached("c1"))
}

func TestRegistryDetachedEviction(t *testing.T) {
	reg, err := NewRegistry(2)
	require_NoError(t, err)

	reg.Detach("c1")
	reg.Detach("c2")
	reg.Detach("c3")
	require_False(t, reg.WasDetached("c1"))
	require_True(t, reg.WasDetached("c2"))
	require_True(t, reg.WasDetached("c3"))
}
