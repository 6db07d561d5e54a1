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
	"sync"

	"github.com/klauspost/compress/s2"
)

// Encoder transforms outbound payloads right before the low-level
// write. An encoding failure fails that single write only.
type Encoder interface {
	Encode(p Payload) (Payload, error)
}

var Snappy snappyPool

type snappyPool struct {
	writers sync.Pool
}

func (pool *snappyPool) GetWriter(dst io.Writer) *s2.Writer {
	var writer *s2.Writer
	if w := pool.writers.Get(); w != nil {
		writer = w.(*s2.Writer)
		writer.Reset(dst)
	} else {
		writer = s2.NewWriter(dst, s2.WriterSnappyCompat())
	}
	return writer
}

func (pool *snappyPool) PutWriter(writer *s2.Writer) {
	writer.Close()
	pool.writers.Put(writer)
}

// SnappyEncoder compresses Buffer and BufferHolder payloads with the
// snappy-compatible s2 framing. File segments and nested sources pass
// through untouched.
type SnappyEncoder struct{}

func (SnappyEncoder) Encode(p Payload) (Payload, error) {
	switch v := p.(type) {
	case Buffer:
		data, err := snappyCompress(v.Data)
		if err != nil {
			return nil, err
		}
		return Buffer{Data: data}, nil
	case BufferHolder:
		data, err := snappyCompress(v.Content)
		if err != nil {
			return nil, err
		}
		return BufferHolder{Content: data, Meta: v.Meta}, nil
	default:
		return p, nil
	}
}

func snappyCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := Snappy.GetWriter(&buf)
	_, err := w.Write(data)
	// PutWriter closes the writer, which flushes the stream.
	Snappy.PutWriter(w)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
