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

// A bitStream exposes a byte stream one bit at a time. Each unit is a 0 or 1 byte,
// most significant bit first. Bytes are fetched from the parent on demand while
// parsing; while building, bits accumulate until finish packs them back.
type bitStream struct {
	parent  Stream
	base    int64
	bits    []byte
	fetched int64
	pos     int64
}

var _ Stream = (*bitStream)(nil)

func newBitStream(parent Stream) *bitStream {
	return &bitStream{parent: parent, base: parent.Tell()}
}

// fill makes sure the first n bits are loaded from the parent.
func (b *bitStream) fill(n int64) error {
	need := (n + 7) / 8
	if need <= b.fetched {
		return nil
	}
	if err := b.parent.Seek(b.base + b.fetched); err != nil {
		return err
	}
	chunk, err := b.parent.Read(need - b.fetched)
	if err != nil {
		if cerr, ok := err.(*Error); ok && cerr.Kind == KindField {
			have := int64(len(b.bits))
			if size, serr := b.parent.Size(); serr == nil {
				have = (size - b.base) * 8
			}
			return newError(KindField, b, "expected %v bits, found %v", n-b.pos, have-b.pos)
		}
		return err
	}
	unpacked := bytesToBits(chunk)
	if int64(len(b.bits)) < b.fetched*8+int64(len(unpacked)) {
		grown := make([]byte, b.fetched*8+int64(len(unpacked)))
		copy(grown, b.bits)
		b.bits = grown
	}
	copy(b.bits[b.fetched*8:], unpacked)
	b.fetched = need
	return nil
}

func (b *bitStream) Read(n int64) ([]byte, error) {
	if n < 0 {
		return nil, newError(KindField, b, "negative read length %v", n)
	}
	if b.pos+n > int64(len(b.bits)) {
		if err := b.fill(b.pos + n); err != nil {
			return nil, err
		}
	}
	out := make([]byte, n)
	copy(out, b.bits[b.pos:b.pos+n])
	b.pos += n
	return out, nil
}

func (b *bitStream) Write(p []byte) error {
	for _, v := range p {
		if v > 1 {
			return newError(KindBitInteger, b, "bit value %v is not 0 or 1", v)
		}
	}
	end := b.pos + int64(len(p))
	if end > int64(len(b.bits)) {
		grown := make([]byte, end)
		copy(grown, b.bits)
		b.bits = grown
	}
	copy(b.bits[b.pos:], p)
	b.pos = end
	return nil
}

func (b *bitStream) Tell() int64 {
	return b.pos
}

func (b *bitStream) Seek(pos int64) error {
	if pos < 0 {
		return newError(KindStream, b, "seek to negative position %v", pos)
	}
	b.pos = pos
	return nil
}

func (b *bitStream) Size() (int64, error) {
	size, err := b.parent.Size()
	if err != nil {
		return 0, err
	}
	total := (size - b.base) * 8
	if n := int64(len(b.bits)); n > total {
		total = n
	}
	return total, nil
}

// finishParse leaves the parent just after the last consumed byte.
func (b *bitStream) finishParse() error {
	if b.pos%8 != 0 {
		return newError(KindBitInteger, b, "unaligned: %v bits consumed is not a whole number of bytes", b.pos)
	}
	return b.parent.Seek(b.base + b.pos/8)
}

// finishBuild packs everything written and emits it to the parent.
func (b *bitStream) finishBuild() error {
	if len(b.bits)%8 != 0 {
		return newError(KindBitInteger, b, "unaligned: %v bits written is not a whole number of bytes", len(b.bits))
	}
	if err := b.parent.Seek(b.base); err != nil {
		return err
	}
	return b.parent.Write(bitsToBytes(b.bits))
}

// A byteStream regroups a bit stream into bytes for Bytewise.
type byteStream struct {
	parent Stream
	base   int64
}

var _ Stream = (*byteStream)(nil)

func newByteStream(parent Stream) (*byteStream, error) {
	base := parent.Tell()
	if base%8 != 0 {
		return nil, newError(KindBitInteger, parent, "unaligned: bytewise region starts at bit %v", base)
	}
	return &byteStream{parent: parent, base: base}, nil
}

func (b *byteStream) Read(n int64) ([]byte, error) {
	if n < 0 {
		return nil, newError(KindField, b, "negative read length %v", n)
	}
	bits, err := b.parent.Read(n * 8)
	if err != nil {
		if cerr, ok := err.(*Error); ok && cerr.Kind == KindField {
			return nil, newError(KindField, b, "expected %v bytes", n)
		}
		return nil, err
	}
	return bitsToBytes(bits), nil
}

func (b *byteStream) Write(p []byte) error {
	return b.parent.Write(bytesToBits(p))
}

func (b *byteStream) Tell() int64 {
	return (b.parent.Tell() - b.base) / 8
}

func (b *byteStream) Seek(pos int64) error {
	if pos < 0 {
		return newError(KindStream, b, "seek to negative position %v", pos)
	}
	return b.parent.Seek(b.base + pos*8)
}

func (b *byteStream) Size() (int64, error) {
	size, err := b.parent.Size()
	if err != nil {
		return 0, err
	}
	return (size - b.base) / 8, nil
}

func isBitStream(s Stream) bool {
	_, ok := s.(*bitStream)
	return ok
}
