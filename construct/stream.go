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
	"errors"
	"io"
)

// A Stream is a seekable, position-tracked sequence of units. Byte streams count bytes;
// inside Bitwise the stream counts bits and every unit read or written is a single
// 0 or 1 byte.
type Stream interface {
	// Read returns exactly n units and advances. On a short read it fails with a
	// field error and leaves the position where it was.
	Read(n int64) ([]byte, error)

	// Write emits p at the current position, overwriting and extending as needed.
	Write(p []byte) error

	// Tell returns the current position.
	Tell() int64

	// Seek moves to an absolute position. Positions past the end are allowed; a
	// subsequent write zero-fills the gap.
	Seek(pos int64) error

	// Size returns the total length of the stream.
	Size() (int64, error)
}

// Buffer is an in-memory Stream. Its zero value is an empty buffer ready for use.
type Buffer struct {
	buf []byte
	pos int64
}

var _ Stream = (*Buffer)(nil)

// NewBytesStream returns a Buffer positioned at the start of data. The buffer takes
// ownership of data.
func NewBytesStream(data []byte) *Buffer {
	return &Buffer{buf: data}
}

// Bytes returns the full contents of the buffer.
func (b *Buffer) Bytes() []byte {
	return b.buf
}

func (b *Buffer) Read(n int64) ([]byte, error) {
	if n < 0 {
		return nil, newError(KindField, b, "negative read length %v", n)
	}
	remain := int64(len(b.buf)) - b.pos
	if remain < 0 {
		remain = 0
	}
	if n > remain {
		return nil, newError(KindField, b, "expected %v bytes, found %v", n, remain)
	}
	out := make([]byte, n)
	copy(out, b.buf[b.pos:b.pos+n])
	b.pos += n
	return out, nil
}

func (b *Buffer) Write(p []byte) error {
	end := b.pos + int64(len(p))
	if end > int64(len(b.buf)) {
		if end > int64(cap(b.buf)) {
			nb := make([]byte, end, end*2)
			copy(nb, b.buf)
			b.buf = nb
		} else {
			old := len(b.buf)
			b.buf = b.buf[:end]
			for i := old; i < int(b.pos) && i < len(b.buf); i++ {
				b.buf[i] = 0
			}
		}
	}
	copy(b.buf[b.pos:], p)
	b.pos = end
	return nil
}

func (b *Buffer) Tell() int64 {
	return b.pos
}

func (b *Buffer) Seek(pos int64) error {
	if pos < 0 {
		return newError(KindStream, b, "seek to negative position %v", pos)
	}
	b.pos = pos
	return nil
}

func (b *Buffer) Size() (int64, error) {
	return int64(len(b.buf)), nil
}

// ioStream adapts an io.Reader/io.Writer plus io.Seeker to a Stream. Either side may be
// nil, in which case the matching operation fails with a stream error.
type ioStream struct {
	r   io.Reader
	w   io.Writer
	sk  io.Seeker
	pos int64
}

// NewStream wraps a seekable reader-writer such as an *os.File.
func NewStream(rws io.ReadWriteSeeker) Stream {
	return newIOStream(rws, rws, rws)
}

func newIOStream(r io.Reader, w io.Writer, sk io.Seeker) *ioStream {
	pos, _ := sk.Seek(0, io.SeekCurrent)
	return &ioStream{r: r, w: w, sk: sk, pos: pos}
}

func (s *ioStream) Read(n int64) ([]byte, error) {
	if s.r == nil {
		return nil, newError(KindStream, s, "stream is not readable")
	}
	if n < 0 {
		return nil, newError(KindField, s, "negative read length %v", n)
	}
	out := make([]byte, n)
	got, err := io.ReadFull(s.r, out)
	if err != nil {
		if _, serr := s.sk.Seek(s.pos, io.SeekStart); serr != nil {
			return nil, wrapError(KindStream, s, serr, "restore after short read")
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, newError(KindField, s, "expected %v bytes, found %v", n, got)
		}
		return nil, wrapError(KindStream, s, err, "read")
	}
	s.pos += n
	return out, nil
}

func (s *ioStream) Write(p []byte) error {
	if s.w == nil {
		return newError(KindStream, s, "stream is not writable")
	}
	n, err := s.w.Write(p)
	s.pos += int64(n)
	if err != nil {
		return wrapError(KindStream, s, err, "write")
	}
	return nil
}

func (s *ioStream) Tell() int64 {
	return s.pos
}

func (s *ioStream) Seek(pos int64) error {
	if pos < 0 {
		return newError(KindStream, s, "seek to negative position %v", pos)
	}
	if _, err := s.sk.Seek(pos, io.SeekStart); err != nil {
		return wrapError(KindStream, s, err, "seek")
	}
	s.pos = pos
	return nil
}

func (s *ioStream) Size() (int64, error) {
	end, err := s.sk.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, wrapError(KindStream, s, err, "size")
	}
	if _, err := s.sk.Seek(s.pos, io.SeekStart); err != nil {
		return 0, wrapError(KindStream, s, err, "size")
	}
	return end, nil
}

// restoring runs fn and puts the stream back where it was, on every exit path.
func restoring(s Stream, fn func() error) (err error) {
	pos := s.Tell()
	defer func() {
		if serr := s.Seek(pos); serr != nil && err == nil {
			err = serr
		}
	}()
	return fn()
}

// readRest reads everything from the current position to the end of the stream.
func readRest(s Stream) ([]byte, error) {
	size, err := s.Size()
	if err != nil {
		return nil, err
	}
	n := size - s.Tell()
	if n < 0 {
		n = 0
	}
	return s.Read(n)
}

// remaining reports how many units are left after the current position.
func remaining(s Stream) (int64, error) {
	size, err := s.Size()
	if err != nil {
		return 0, err
	}
	if n := size - s.Tell(); n > 0 {
		return n, nil
	}
	return 0, nil
}
