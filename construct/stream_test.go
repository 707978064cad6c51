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
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferRead(t *testing.T) {
	b := NewBytesStream([]byte{1, 2, 3})

	v, err := b.Read(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, v)
	assert.Equal(t, int64(2), b.Tell())

	_, err = b.Read(2)
	assertKind(t, KindField, err)
	assert.Equal(t, int64(2), b.Tell(), "a short read must not move the position")

	_, err = b.Read(-1)
	assertKind(t, KindField, err)
}

func TestBufferWritePastEnd(t *testing.T) {
	b := &Buffer{}
	require.NoError(t, b.Seek(4))
	require.NoError(t, b.Write([]byte{9}))
	assert.Equal(t, []byte{0, 0, 0, 0, 9}, b.Bytes())

	require.NoError(t, b.Seek(1))
	require.NoError(t, b.Write([]byte{7, 7}))
	assert.Equal(t, []byte{0, 7, 7, 0, 9}, b.Bytes())
	assert.Equal(t, int64(3), b.Tell())

	size, err := b.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	assertKind(t, KindStream, b.Seek(-1))
}

func TestParseStream(t *testing.T) {
	r := bytes.NewReader([]byte{0xAA, 0x01, 0x02, 0x03})
	_, err := r.Seek(1, io.SeekStart)
	require.NoError(t, err)

	v, err := ParseStream(UBInt16("x"), r)
	require.NoError(t, err)
	assertValue(t, 0x0102, v)

	_, err = ParseStream(UBInt32("x"), bytes.NewReader([]byte{1}))
	assertKind(t, KindField, err)
}

func TestFileStream(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.bin"))
	require.NoError(t, err)
	defer f.Close()

	format := Struct("rec", UBInt16("a"), Pointer(Fixed(6), UBInt8("tail")), UBInt8("b"))
	require.NoError(t, BuildStream(format, cont("a", 0x0102, "tail", 9, "b", 3), f))

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 0, 0, 0, 9}, data)

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	v, err := ParseStream(format, f)
	require.NoError(t, err)
	assertValue(t, cont("a", 0x0102, "tail", 9, "b", 3), v)

	s := NewStream(f)
	require.NoError(t, s.Seek(6))
	last, err := s.Read(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, last)

	_, err = s.Read(1)
	assertKind(t, KindField, err)
	assert.Equal(t, int64(7), s.Tell())
}
