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
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/s2"
)

func snappyDecompress(t *testing.T, data []byte) []byte {
	t.Helper()
	r := s2.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(r)
	require_NoError(t, err)
	return out
}

func TestSnappyEncoderBuffer(t *testing.T) {
	plain := bytes.Repeat([]byte("payload bytes, quite compressible. "), 64)
	out, err := SnappyEncoder{}.Encode(Buffer{Data: plain})
	require_NoError(t, err)

	b, ok := out.(Buffer)
	require_True(t, ok)
	require_True(t, len(b.Data) < len(plain))
	require_True(t, bytes.Equal(snappyDecompress(t, b.Data), plain))
}

func TestSnappyEncoderBufferHolder(t *testing.T) {
	plain := bytes.Repeat([]byte("holder content. "), 32)
	out, err := SnappyEncoder{}.Encode(BufferHolder{Content: plain, Meta: "frame-7"})
	require_NoError(t, err)

	h, ok := out.(BufferHolder)
	require_True(t, ok)
	require_Equal(t, h.Meta.(string), "frame-7")
	require_True(t, bytes.Equal(snappyDecompress(t, h.Content), plain))
}

func TestSnappyEncoderPassthrough(t *testing.T) {
	fs := FileSegment{Offset: 10, Count: 100}
	out, err := SnappyEncoder{}.Encode(fs)
	require_NoError(t, err)
	require_Equal(t, out.(FileSegment), fs)

	st := Stream{Source: ScalarOf(nil)}
	out, err = SnappyEncoder{}.Encode(st)
	require_NoError(t, err)
	_, ok := out.(Stream)
	require_True(t, ok)
}

func TestSnappyEncoderOnHandlerPath(t *testing.T) {
	tc := newTestChannel()
	h := NewHandler(tc, WithEncoder(SnappyEncoder{}))
	h.Attached()

	plain := bytes.Repeat([]byte("wire data "), 50)
	pr := NewPromise()
	require_True(t, h.Submit(Buffer{Data: plain}, pr))
	require_True(t, pr.Succeeded())
	require_Equal(t, tc.writeCount(), 1)

	tc.mu.Lock()
	written := tc.writes[0].(Buffer).Data
	tc.mu.Unlock()
	require_True(t, bytes.Equal(snappyDecompress(t, written), plain))
}

func TestSnappyWriterPoolReuse(t *testing.T) {
	// Back-to-back compressions share pooled writers and must still
	// produce independent, self-contained streams.
	for i := 0; i < 10; i++ {
		plain := bytes.Repeat([]byte{byte('a' + i)}, 500)
		out, err := snappyCompress(plain)
		require_NoError(t, err)
		require_True(t, bytes.Equal(snappyDecompress(t, out), plain))
	}
}
