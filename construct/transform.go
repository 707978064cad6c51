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

type bitwise struct {
	Subconstruct
}

// Bitwise runs sub over a bit-addressed view of the stream: every unit sub reads or
// writes is a single bit. The region must cover whole bytes.
func Bitwise(sub Construct) Construct {
	return &bitwise{Subconstruct{sub}}
}

// BitStruct is a Struct parsed bit by bit.
func BitStruct(name string, subs ...Construct) Construct {
	return Bitwise(Struct(name, subs...))
}

func (b *bitwise) Parse(s Stream, ctx *Context) (interface{}, error) {
	if isBitStream(s) {
		return b.Sub.Parse(s, ctx)
	}
	bs := newBitStream(s)
	v, err := b.Sub.Parse(bs, ctx)
	if err != nil {
		return nil, err
	}
	if err := bs.finishParse(); err != nil {
		return nil, err
	}
	return v, nil
}

func (b *bitwise) Build(v interface{}, s Stream, ctx *Context) error {
	if isBitStream(s) {
		return b.Sub.Build(v, s, ctx)
	}
	bs := newBitStream(s)
	if err := b.Sub.Build(v, bs, ctx); err != nil {
		return err
	}
	return bs.finishBuild()
}

func (b *bitwise) Sizeof(ctx *Context) (int64, error) {
	n, err := b.Sub.Sizeof(ctx)
	if err != nil {
		return 0, err
	}
	if n%8 != 0 {
		return 0, newError(KindSizeof, nil, "%v bits is not a whole number of bytes", n)
	}
	return n / 8, nil
}

type bytewise struct {
	Subconstruct
}

// Bytewise runs sub over whole bytes again inside a Bitwise region. It must start
// on a byte boundary.
func Bytewise(sub Construct) Construct {
	return &bytewise{Subconstruct{sub}}
}

func (b *bytewise) Parse(s Stream, ctx *Context) (interface{}, error) {
	if !isBitStream(s) {
		return b.Sub.Parse(s, ctx)
	}
	bs, err := newByteStream(s)
	if err != nil {
		return nil, err
	}
	return b.Sub.Parse(bs, ctx)
}

func (b *bytewise) Build(v interface{}, s Stream, ctx *Context) error {
	if !isBitStream(s) {
		return b.Sub.Build(v, s, ctx)
	}
	bs, err := newByteStream(s)
	if err != nil {
		return err
	}
	return b.Sub.Build(v, bs, ctx)
}

func (b *bytewise) Sizeof(ctx *Context) (int64, error) {
	n, err := b.Sub.Sizeof(ctx)
	if err != nil {
		return 0, err
	}
	return n * 8, nil
}

// restreamed runs sub over a transformed copy of a fixed-size region.
type restreamed struct {
	Subconstruct
	decode func([]byte, Stream) ([]byte, error)
	encode func([]byte, Stream) ([]byte, error)
}

func (r *restreamed) Parse(s Stream, ctx *Context) (interface{}, error) {
	n, err := r.Sub.Sizeof(ctx)
	if err != nil {
		return nil, err
	}
	data, err := s.Read(n)
	if err != nil {
		return nil, err
	}
	data, err = r.decode(data, s)
	if err != nil {
		return nil, err
	}
	return r.Sub.Parse(NewBytesStream(data), ctx)
}

func (r *restreamed) Build(v interface{}, s Stream, ctx *Context) error {
	buf := &Buffer{}
	if err := r.Sub.Build(v, buf, ctx); err != nil {
		return err
	}
	data, err := r.encode(buf.Bytes(), s)
	if err != nil {
		return err
	}
	return s.Write(data)
}

func swapBitOrder(data []byte, s Stream) ([]byte, error) {
	if isBitStream(s) {
		return reversed(data), nil
	}
	return bitsToBytes(reversed(bytesToBits(data))), nil
}

func swapByteOrder(data []byte, s Stream) ([]byte, error) {
	if isBitStream(s) {
		if len(data)%8 != 0 {
			return nil, newError(KindBitInteger, s, "unaligned: %v bits cannot be byte-swapped", len(data))
		}
		out, _ := swapChunks(data, 8)
		return out, nil
	}
	return reversed(data), nil
}

// BitsSwapped reverses the bit order of sub's whole region. sub needs a static size.
func BitsSwapped(sub Construct) Construct {
	return &restreamed{Subconstruct: Subconstruct{sub}, decode: swapBitOrder, encode: swapBitOrder}
}

// ByteSwapped reverses the byte order of sub's whole region. sub needs a static size.
func ByteSwapped(sub Construct) Construct {
	return &restreamed{Subconstruct: Subconstruct{sub}, decode: swapByteOrder, encode: swapByteOrder}
}

type aligned struct {
	Subconstruct
	modulus int64
}

// Aligned pads sub's encoding with zeros up to the next multiple of modulus.
func Aligned(modulus int64, sub Construct) Construct {
	return &aligned{Subconstruct: Subconstruct{sub}, modulus: modulus}
}

func (a *aligned) pad(n int64) int64 {
	if a.modulus <= 0 {
		return 0
	}
	return (a.modulus - n%a.modulus) % a.modulus
}

func (a *aligned) Parse(s Stream, ctx *Context) (interface{}, error) {
	start := s.Tell()
	v, err := a.Sub.Parse(s, ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.Read(a.pad(s.Tell() - start)); err != nil {
		return nil, err
	}
	return v, nil
}

func (a *aligned) Build(v interface{}, s Stream, ctx *Context) error {
	start := s.Tell()
	if err := a.Sub.Build(v, s, ctx); err != nil {
		return err
	}
	return s.Write(make([]byte, a.pad(s.Tell()-start)))
}

func (a *aligned) Sizeof(ctx *Context) (int64, error) {
	n, err := a.Sub.Sizeof(ctx)
	if err != nil {
		return 0, err
	}
	return n + a.pad(n), nil
}

type padded struct {
	Subconstruct
	length Expr[int64]
}

// Padded gives sub a fixed-size slot of length units, zero-padding what it leaves
// unused. Overflowing the slot is a padding error.
func Padded(length Expr[int64], sub Construct) Construct {
	return &padded{Subconstruct: Subconstruct{sub}, length: length}
}

func (p *padded) Parse(s Stream, ctx *Context) (interface{}, error) {
	n, err := evalCount(p.length, KindPadding, s, ctx)
	if err != nil {
		return nil, err
	}
	start := s.Tell()
	v, err := p.Sub.Parse(s, ctx)
	if err != nil {
		return nil, err
	}
	used := s.Tell() - start
	if used > n {
		return nil, newError(KindPadding, s, "%v units used, slot holds %v", used, n)
	}
	if _, err := s.Read(n - used); err != nil {
		return nil, err
	}
	return v, nil
}

func (p *padded) Build(v interface{}, s Stream, ctx *Context) error {
	n, err := evalCount(p.length, KindPadding, s, ctx)
	if err != nil {
		return err
	}
	start := s.Tell()
	if err := p.Sub.Build(v, s, ctx); err != nil {
		return err
	}
	used := s.Tell() - start
	if used > n {
		return newError(KindPadding, s, "%v units used, slot holds %v", used, n)
	}
	return s.Write(make([]byte, n-used))
}

func (p *padded) Sizeof(ctx *Context) (int64, error) {
	return sizeFromExpr(p.length, ctx)
}
