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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecByName(t *testing.T) {
	tests := []struct {
		name     string
		expected Codec
	}{
		{"zlib", ZlibCodec},
		{"gzip", GzipCodec},
		{"GZ", GzipCodec},
		{"zstd", ZstdCodec},
		{"Zstandard", ZstdCodec},
		{"lz4", LZ4Codec},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c, err := CodecByName(test.name)
			require.NoError(t, err)
			assert.Equal(t, test.expected.Name(), c.Name())
		})
	}

	_, err := CodecByName("brotli")
	assert.EqualError(t, err, `construct: unknown codec "brotli"`)
}

func TestCodecs(t *testing.T) {
	data := bytes.Repeat([]byte("construct "), 100)
	for _, c := range []Codec{ZlibCodec, GzipCodec, ZstdCodec, LZ4Codec} {
		t.Run(c.Name(), func(t *testing.T) {
			enc, err := c.Encode(data)
			require.NoError(t, err)
			assert.Less(t, len(enc), len(data))

			dec, err := c.Decode(enc)
			require.NoError(t, err)
			assert.Equal(t, data, dec)

			_, err = c.Decode([]byte("definitely not compressed"))
			assert.Error(t, err)
		})
	}
}
