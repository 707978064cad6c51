/*
 * Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License").
 * You may not use this file except in compliance with the License.
 * A copy of the License is located at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * or in the "license" file accompanying this file. This file is distributed
 * on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either
 * express or implied. See the License for the specific language governing
 * permissions and limitations under the License.
 */

package construct

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// A Codec is a whole-buffer byte transformation used by tunnels.
type Codec interface {
	Name() string
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

type streamCodec struct {
	name      string
	newReader func(io.Reader) (io.ReadCloser, error)
	newWriter func(io.Writer) io.WriteCloser
}

func (c *streamCodec) Name() string {
	return c.name
}

func (c *streamCodec) Decode(data []byte) ([]byte, error) {
	r, err := c.newReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (c *streamCodec) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := c.newWriter(&buf)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var (
	// ZlibCodec is RFC 1950 zlib.
	ZlibCodec Codec = &streamCodec{
		name: "zlib",
		newReader: func(r io.Reader) (io.ReadCloser, error) {
			return zlib.NewReader(r)
		},
		newWriter: func(w io.Writer) io.WriteCloser {
			return zlib.NewWriter(w)
		},
	}

	// GzipCodec is RFC 1952 gzip.
	GzipCodec Codec = &streamCodec{
		name: "gzip",
		newReader: func(r io.Reader) (io.ReadCloser, error) {
			return gzip.NewReader(r)
		},
		newWriter: func(w io.Writer) io.WriteCloser {
			return gzip.NewWriter(w)
		},
	}

	// LZ4Codec is the LZ4 frame format.
	LZ4Codec Codec = &streamCodec{
		name: "lz4",
		newReader: func(r io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(lz4.NewReader(r)), nil
		},
		newWriter: func(w io.Writer) io.WriteCloser {
			return lz4.NewWriter(w)
		},
	}

	// ZstdCodec is Zstandard.
	ZstdCodec Codec = zstdCodec{}
)

var (
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil)
	})
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil)
	})
)

type zstdCodec struct{}

func (zstdCodec) Name() string {
	return "zstd"
}

func (zstdCodec) Decode(data []byte) ([]byte, error) {
	d, err := zstdDecoder()
	if err != nil {
		return nil, err
	}
	return d.DecodeAll(data, nil)
}

func (zstdCodec) Encode(data []byte) ([]byte, error) {
	e, err := zstdEncoder()
	if err != nil {
		return nil, err
	}
	return e.EncodeAll(data, nil), nil
}

// CodecByName returns the codec registered under name.
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "zlib":
		return ZlibCodec, nil
	case "gzip", "gz":
		return GzipCodec, nil
	case "zstd", "zstandard":
		return ZstdCodec, nil
	case "lz4":
		return LZ4Codec, nil
	}
	return nil, fmt.Errorf("construct: unknown codec %q", name)
}
