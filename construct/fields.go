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
	"encoding/binary"
	"math"
	"math/big"
)

// A ByteOrder selects how multi-byte numbers are laid out.
type ByteOrder uint8

const (
	// BigEndian stores the most significant byte first.
	BigEndian ByteOrder = iota

	// LittleEndian stores the least significant byte first.
	LittleEndian

	// NativeEndian uses the order of the machine running the program.
	NativeEndian
)

var nativeIsLittle = binary.NativeEndian.Uint16([]byte{1, 0}) == 1

func (o ByteOrder) little() bool {
	switch o {
	case LittleEndian:
		return true
	case NativeEndian:
		return nativeIsLittle
	default:
		return false
	}
}

// A NumberKind says how FormatField interprets its bytes.
type NumberKind uint8

const (
	// Unsigned is an unsigned two's complement integer.
	Unsigned NumberKind = iota
	// Signed is a signed two's complement integer.
	Signed
	// Float is an IEEE 754 binary float of 2, 4 or 8 bytes.
	Float
)

type formatField struct {
	meta
	order ByteOrder
	size  int64
	kind  NumberKind
}

// FormatField is a fixed-width number. Integers decode to int64, except unsigned
// 8-byte integers which decode to uint64; floats decode to float64.
func FormatField(name string, order ByteOrder, size int64, kind NumberKind) Construct {
	return &formatField{meta: meta{name: name}, order: order, size: size, kind: kind}
}

func (f *formatField) Parse(s Stream, ctx *Context) (interface{}, error) {
	data, err := s.Read(f.size)
	if err != nil {
		return nil, err
	}
	if f.order.little() {
		data = reversed(data)
	}
	if f.kind == Float {
		bits := decodeUint(data, 8).Uint64()
		switch f.size {
		case 2:
			return halfToFloat(uint16(bits)), nil
		case 4:
			return float64(math.Float32frombits(uint32(bits))), nil
		default:
			return math.Float64frombits(bits), nil
		}
	}
	return decodeInteger(data, 8, f.kind == Signed), nil
}

func (f *formatField) Build(v interface{}, s Stream, ctx *Context) error {
	var data []byte
	if f.kind == Float {
		fv, ok := toFloat64(v)
		if !ok {
			return newError(KindFormatField, s, "expected a number, got %T", v)
		}
		var bits uint64
		switch f.size {
		case 2:
			bits = uint64(floatToHalf(fv))
		case 4:
			bits = uint64(math.Float32bits(float32(fv)))
		default:
			bits = math.Float64bits(fv)
		}
		data = encodeUint(new(big.Int).SetUint64(bits), f.size, 8)
	} else {
		n, ok := toBigIntStrict(v)
		if !ok {
			return newError(KindFormatField, s, "expected an integer, got %T", v)
		}
		enc, err := encodeInteger(n, f.size, 8, f.kind == Signed)
		if err != nil {
			return wrapError(KindFormatField, s, err, "cannot pack")
		}
		data = enc
	}
	if f.order.little() {
		data = reversed(data)
	}
	return s.Write(data)
}

func (f *formatField) Sizeof(ctx *Context) (int64, error) {
	return f.size, nil
}

// UBInt8 is an unsigned big-endian 8-bit integer.
func UBInt8(name string) Construct { return FormatField(name, BigEndian, 1, Unsigned) }

// UBInt16 is an unsigned big-endian 16-bit integer.
func UBInt16(name string) Construct { return FormatField(name, BigEndian, 2, Unsigned) }

// UBInt32 is an unsigned big-endian 32-bit integer.
func UBInt32(name string) Construct { return FormatField(name, BigEndian, 4, Unsigned) }

// UBInt64 is an unsigned big-endian 64-bit integer, decoded as uint64.
func UBInt64(name string) Construct { return FormatField(name, BigEndian, 8, Unsigned) }

// SBInt8 is a signed big-endian 8-bit integer.
func SBInt8(name string) Construct { return FormatField(name, BigEndian, 1, Signed) }

// SBInt16 is a signed big-endian 16-bit integer.
func SBInt16(name string) Construct { return FormatField(name, BigEndian, 2, Signed) }

// SBInt32 is a signed big-endian 32-bit integer.
func SBInt32(name string) Construct { return FormatField(name, BigEndian, 4, Signed) }

// SBInt64 is a signed big-endian 64-bit integer.
func SBInt64(name string) Construct { return FormatField(name, BigEndian, 8, Signed) }

// ULInt8 is an unsigned little-endian 8-bit integer.
func ULInt8(name string) Construct { return FormatField(name, LittleEndian, 1, Unsigned) }

// ULInt16 is an unsigned little-endian 16-bit integer.
func ULInt16(name string) Construct { return FormatField(name, LittleEndian, 2, Unsigned) }

// ULInt32 is an unsigned little-endian 32-bit integer.
func ULInt32(name string) Construct { return FormatField(name, LittleEndian, 4, Unsigned) }

// ULInt64 is an unsigned little-endian 64-bit integer, decoded as uint64.
func ULInt64(name string) Construct { return FormatField(name, LittleEndian, 8, Unsigned) }

// SLInt8 is a signed little-endian 8-bit integer.
func SLInt8(name string) Construct { return FormatField(name, LittleEndian, 1, Signed) }

// SLInt16 is a signed little-endian 16-bit integer.
func SLInt16(name string) Construct { return FormatField(name, LittleEndian, 2, Signed) }

// SLInt32 is a signed little-endian 32-bit integer.
func SLInt32(name string) Construct { return FormatField(name, LittleEndian, 4, Signed) }

// SLInt64 is a signed little-endian 64-bit integer.
func SLInt64(name string) Construct { return FormatField(name, LittleEndian, 8, Signed) }

// UNInt8 is an unsigned native-endian 8-bit integer.
func UNInt8(name string) Construct { return FormatField(name, NativeEndian, 1, Unsigned) }

// UNInt16 is an unsigned native-endian 16-bit integer.
func UNInt16(name string) Construct { return FormatField(name, NativeEndian, 2, Unsigned) }

// UNInt32 is an unsigned native-endian 32-bit integer.
func UNInt32(name string) Construct { return FormatField(name, NativeEndian, 4, Unsigned) }

// UNInt64 is an unsigned native-endian 64-bit integer.
func UNInt64(name string) Construct { return FormatField(name, NativeEndian, 8, Unsigned) }

// SNInt8 is a signed native-endian 8-bit integer.
func SNInt8(name string) Construct { return FormatField(name, NativeEndian, 1, Signed) }

// SNInt16 is a signed native-endian 16-bit integer.
func SNInt16(name string) Construct { return FormatField(name, NativeEndian, 2, Signed) }

// SNInt32 is a signed native-endian 32-bit integer.
func SNInt32(name string) Construct { return FormatField(name, NativeEndian, 4, Signed) }

// SNInt64 is a signed native-endian 64-bit integer.
func SNInt64(name string) Construct { return FormatField(name, NativeEndian, 8, Signed) }

// BFloat32 is a big-endian single precision float.
func BFloat32(name string) Construct { return FormatField(name, BigEndian, 4, Float) }

// BFloat64 is a big-endian double precision float.
func BFloat64(name string) Construct { return FormatField(name, BigEndian, 8, Float) }

// LFloat32 is a little-endian single precision float.
func LFloat32(name string) Construct { return FormatField(name, LittleEndian, 4, Float) }

// LFloat64 is a little-endian double precision float.
func LFloat64(name string) Construct { return FormatField(name, LittleEndian, 8, Float) }

// Half is a big-endian half precision float.
func Half(name string) Construct { return FormatField(name, BigEndian, 2, Float) }

// Byte is UBInt8.
func Byte(name string) Construct { return UBInt8(name) }

type bytesInteger struct {
	meta
	length  Expr[int64]
	signed  bool
	swapped bool
}

// BytesInteger is a big-endian integer of any byte length. swapped reads it
// little-endian instead. Results wider than 8 bytes are *big.Int.
func BytesInteger(name string, length Expr[int64], signed, swapped bool) Construct {
	return &bytesInteger{meta: meta{name: name}, length: length, signed: signed, swapped: swapped}
}

func (b *bytesInteger) Parse(s Stream, ctx *Context) (interface{}, error) {
	n, err := evalCount(b.length, KindInteger, s, ctx)
	if err != nil {
		return nil, err
	}
	data, err := s.Read(n)
	if err != nil {
		return nil, err
	}
	if b.swapped {
		data = reversed(data)
	}
	return decodeInteger(data, 8, b.signed), nil
}

func (b *bytesInteger) Build(v interface{}, s Stream, ctx *Context) error {
	n, err := evalCount(b.length, KindInteger, s, ctx)
	if err != nil {
		return err
	}
	iv, ok := toBigIntStrict(v)
	if !ok {
		return newError(KindInteger, s, "expected an integer, got %T", v)
	}
	data, err := encodeInteger(iv, n, 8, b.signed)
	if err != nil {
		return wrapError(KindInteger, s, err, "cannot pack")
	}
	if b.swapped {
		data = reversed(data)
	}
	return s.Write(data)
}

func (b *bytesInteger) Sizeof(ctx *Context) (int64, error) {
	return sizeFromExpr(b.length, ctx)
}

// UBInt24 is an unsigned big-endian 24-bit integer.
func UBInt24(name string) Construct { return BytesInteger(name, Fixed(3), false, false) }

// ULInt24 is an unsigned little-endian 24-bit integer.
func ULInt24(name string) Construct { return BytesInteger(name, Fixed(3), false, true) }

// SBInt24 is a signed big-endian 24-bit integer.
func SBInt24(name string) Construct { return BytesInteger(name, Fixed(3), true, false) }

// SLInt24 is a signed little-endian 24-bit integer.
func SLInt24(name string) Construct { return BytesInteger(name, Fixed(3), true, true) }

type bitsInteger struct {
	meta
	length   Expr[int64]
	signed   bool
	swapped  bool
	bytesize int
}

// BitsInteger is an integer made of length bits, for use inside Bitwise. When swapped,
// the bits are taken in groups of bytesize and the group order is reversed, which
// turns a little-endian field into a big-endian one.
func BitsInteger(name string, length Expr[int64], signed, swapped bool, bytesize int) Construct {
	return &bitsInteger{meta: meta{name: name}, length: length, signed: signed, swapped: swapped, bytesize: bytesize}
}

func (b *bitsInteger) Parse(s Stream, ctx *Context) (interface{}, error) {
	n, err := evalCount(b.length, KindBitInteger, s, ctx)
	if err != nil {
		return nil, err
	}
	bits, err := s.Read(n)
	if err != nil {
		return nil, err
	}
	if b.swapped {
		if bits, err = swapChunks(bits, b.bytesize); err != nil {
			return nil, wrapError(KindBitInteger, s, err, "cannot swap")
		}
	}
	return decodeInteger(bits, 1, b.signed), nil
}

func (b *bitsInteger) Build(v interface{}, s Stream, ctx *Context) error {
	n, err := evalCount(b.length, KindBitInteger, s, ctx)
	if err != nil {
		return err
	}
	iv, ok := toBigIntStrict(v)
	if !ok {
		return newError(KindBitInteger, s, "expected an integer, got %T", v)
	}
	if iv.Sign() < 0 && !b.signed {
		return newError(KindBitInteger, s, "object is negative, but field is not signed: %v", iv)
	}
	bits, err := encodeInteger(iv, n, 1, b.signed)
	if err != nil {
		return wrapError(KindBitInteger, s, err, "cannot pack")
	}
	if b.swapped {
		if bits, err = swapChunks(bits, b.bytesize); err != nil {
			return wrapError(KindBitInteger, s, err, "cannot swap")
		}
	}
	return s.Write(bits)
}

func (b *bitsInteger) Sizeof(ctx *Context) (int64, error) {
	return sizeFromExpr(b.length, ctx)
}

// Bit is a single-bit unsigned integer.
func Bit(name string) Construct { return BitsInteger(name, Fixed(1), false, false, 8) }

// Nibble is a four-bit unsigned integer.
func Nibble(name string) Construct { return BitsInteger(name, Fixed(4), false, false, 8) }

// Octet is an eight-bit unsigned integer.
func Octet(name string) Construct { return BitsInteger(name, Fixed(8), false, false, 8) }

type bytesField struct {
	meta
	length Expr[int64]
}

// Bytes is a raw run of length units.
func Bytes(name string, length Expr[int64]) Construct {
	return &bytesField{meta: meta{name: name}, length: length}
}

func (b *bytesField) Parse(s Stream, ctx *Context) (interface{}, error) {
	n, err := evalCount(b.length, KindField, s, ctx)
	if err != nil {
		return nil, err
	}
	return s.Read(n)
}

func (b *bytesField) Build(v interface{}, s Stream, ctx *Context) error {
	n, err := evalCount(b.length, KindField, s, ctx)
	if err != nil {
		return err
	}
	data, ok := asBytes(v)
	if !ok {
		return newError(KindField, s, "expected bytes, got %T", v)
	}
	if int64(len(data)) != n {
		return newError(KindField, s, "expected %v bytes, got %v", n, len(data))
	}
	return s.Write(data)
}

func (b *bytesField) Sizeof(ctx *Context) (int64, error) {
	return sizeFromExpr(b.length, ctx)
}

// Field is Bytes with a fixed length.
func Field(name string, length int64) Construct {
	return Bytes(name, Fixed(length))
}

type greedyBytes struct {
	meta
}

// GreedyBytes consumes everything up to the end of the stream.
func GreedyBytes(name string) Construct {
	return &greedyBytes{meta: meta{name: name}}
}

func (g *greedyBytes) Parse(s Stream, ctx *Context) (interface{}, error) {
	return readRest(s)
}

func (g *greedyBytes) Build(v interface{}, s Stream, ctx *Context) error {
	data, ok := asBytes(v)
	if !ok {
		return newError(KindField, s, "expected bytes, got %T", v)
	}
	return s.Write(data)
}

func (g *greedyBytes) Sizeof(ctx *Context) (int64, error) {
	return 0, newError(KindSizeof, nil, "greedy field has no fixed size")
}

type varInt struct {
	meta
}

// VarInt is an unsigned little-endian base-128 integer, decoded as uint64.
func VarInt(name string) Construct {
	return &varInt{meta: meta{name: name}}
}

func (*varInt) Parse(s Stream, ctx *Context) (interface{}, error) {
	var v uint64
	for i := uint(0); ; i++ {
		b, err := s.Read(1)
		if err != nil {
			return nil, err
		}
		if i == 9 && b[0] > 1 {
			return nil, newError(KindInteger, s, "varint overflows 64 bits")
		}
		v |= uint64(b[0]&0x7F) << (7 * i)
		if b[0]&0x80 == 0 {
			return v, nil
		}
	}
}

func (*varInt) Build(v interface{}, s Stream, ctx *Context) error {
	n, ok := toBigIntStrict(v)
	if !ok {
		return newError(KindInteger, s, "expected an integer, got %T", v)
	}
	if n.Sign() < 0 {
		return newError(KindInteger, s, "varint cannot encode negative value %v", n)
	}
	if !n.IsUint64() {
		return newError(KindInteger, s, "varint cannot encode %v", n)
	}
	return s.Write(packVarUint(n.Uint64()))
}

func (*varInt) Sizeof(ctx *Context) (int64, error) {
	return 0, newError(KindSizeof, nil, "varint has no fixed size")
}

type zigZag struct {
	varInt
}

// ZigZag is a signed VarInt using zigzag encoding, decoded as int64.
func ZigZag(name string) Construct {
	return &zigZag{varInt{meta: meta{name: name}}}
}

func (z *zigZag) Parse(s Stream, ctx *Context) (interface{}, error) {
	v, err := z.varInt.Parse(s, ctx)
	if err != nil {
		return nil, err
	}
	return zigzagDecode(v.(uint64)), nil
}

func (z *zigZag) Build(v interface{}, s Stream, ctx *Context) error {
	n, ok := toInt64(v)
	if !ok {
		return newError(KindInteger, s, "expected a 64-bit integer, got %v", v)
	}
	return s.Write(packVarUint(zigzagEncode(n)))
}

type flagField struct {
	meta
}

// Flag is a one-unit boolean: zero is false, anything else true.
func Flag(name string) Construct {
	return &flagField{meta: meta{name: name}}
}

func (*flagField) Parse(s Stream, ctx *Context) (interface{}, error) {
	b, err := s.Read(1)
	if err != nil {
		return nil, err
	}
	return b[0] != 0, nil
}

func (*flagField) Build(v interface{}, s Stream, ctx *Context) error {
	if truthy(v) {
		return s.Write([]byte{1})
	}
	return s.Write([]byte{0})
}

func (*flagField) Sizeof(ctx *Context) (int64, error) {
	return 1, nil
}

type pass struct {
	meta
}

// Pass does nothing: it parses to nil, builds nothing and has size zero.
var Pass Construct = &pass{}

func (*pass) Parse(s Stream, ctx *Context) (interface{}, error) { return nil, nil }

func (*pass) Build(v interface{}, s Stream, ctx *Context) error { return nil }

func (*pass) Sizeof(ctx *Context) (int64, error) { return 0, nil }

type computed struct {
	meta
	expr Expr[interface{}]
}

// Computed produces a value from the context without touching the stream.
func Computed(name string, expr Expr[interface{}]) Construct {
	return &computed{meta: meta{name: name}, expr: expr}
}

func (c *computed) Parse(s Stream, ctx *Context) (interface{}, error) {
	return c.expr(ctx)
}

func (c *computed) Build(v interface{}, s Stream, ctx *Context) error {
	return nil
}

func (c *computed) buildValue(v interface{}, s Stream, ctx *Context) (interface{}, error) {
	return c.expr(ctx)
}

func (c *computed) Sizeof(ctx *Context) (int64, error) {
	return 0, nil
}

type rebuild struct {
	Subconstruct
	value func(ctx *Context) (interface{}, error)
}

// Rebuild parses sub as usual but builds it from expr, ignoring any value supplied
// for it. Inside a Struct expr sees every value of the object being built, so a
// length prefix can be derived from the data that follows it:
//
//	Struct("msg",
//		Rebuild(UBInt8("len"), Len("data")),
//		Bytes("data", This[int64]("len")),
//	)
func Rebuild[T any](sub Construct, expr Expr[T]) Construct {
	return &rebuild{
		Subconstruct: Subconstruct{sub},
		value: func(ctx *Context) (interface{}, error) {
			return expr(ctx)
		},
	}
}

func (r *rebuild) Build(v interface{}, s Stream, ctx *Context) error {
	nv, err := r.value(ctx)
	if err != nil {
		return err
	}
	return r.Sub.Build(nv, s, ctx)
}

func (r *rebuild) buildValue(v interface{}, s Stream, ctx *Context) (interface{}, error) {
	return r.value(ctx)
}

type tell struct {
	meta
}

// Tell records the current stream position.
func Tell(name string) Construct {
	return &tell{meta: meta{name: name}}
}

func (*tell) Parse(s Stream, ctx *Context) (interface{}, error) {
	return s.Tell(), nil
}

func (*tell) Build(v interface{}, s Stream, ctx *Context) error {
	return nil
}

func (*tell) buildValue(v interface{}, s Stream, ctx *Context) (interface{}, error) {
	return s.Tell(), nil
}

func (*tell) Sizeof(ctx *Context) (int64, error) {
	return 0, nil
}

type terminated struct {
	meta
}

// Terminated fails unless the stream has been consumed entirely.
var Terminated Construct = &terminated{}

func (*terminated) Parse(s Stream, ctx *Context) (interface{}, error) {
	n, err := remaining(s)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, newError(KindTerminated, s, "expected end of stream, %v units remain", n)
	}
	return nil, nil
}

func (*terminated) Build(v interface{}, s Stream, ctx *Context) error { return nil }

func (*terminated) Sizeof(ctx *Context) (int64, error) { return 0, nil }

type padding struct {
	meta
	length  Expr[int64]
	pattern byte
	strict  bool
}

// Padding skips length units on parse and writes length copies of pattern on build.
// A strict padding rejects any unit that is not the pattern.
func Padding(length Expr[int64], pattern byte, strict bool) Construct {
	return &padding{length: length, pattern: pattern, strict: strict}
}

func (p *padding) Parse(s Stream, ctx *Context) (interface{}, error) {
	n, err := evalCount(p.length, KindPadding, s, ctx)
	if err != nil {
		return nil, err
	}
	data, err := s.Read(n)
	if err != nil {
		return nil, err
	}
	if p.strict {
		for _, b := range data {
			if b != p.pattern {
				return nil, newError(KindPadding, s, "expected %v bytes of %#x, found %x", n, p.pattern, data)
			}
		}
	}
	return nil, nil
}

func (p *padding) Build(v interface{}, s Stream, ctx *Context) error {
	n, err := evalCount(p.length, KindPadding, s, ctx)
	if err != nil {
		return err
	}
	data := make([]byte, n)
	for i := range data {
		data[i] = p.pattern
	}
	return s.Write(data)
}

func (p *padding) Sizeof(ctx *Context) (int64, error) {
	return sizeFromExpr(p.length, ctx)
}

type index struct {
	meta
}

// Index yields the position of the element currently being processed by the
// innermost repetition.
func Index(name string) Construct {
	return &index{meta: meta{name: name}}
}

func (*index) Parse(s Stream, ctx *Context) (interface{}, error) {
	v, ok := ctx.Get(IndexKey)
	if !ok {
		return nil, newError(KindIndexField, s, "index is only available inside a repetition")
	}
	return v, nil
}

func (*index) Build(v interface{}, s Stream, ctx *Context) error {
	if _, ok := ctx.Get(IndexKey); !ok {
		return newError(KindIndexField, s, "index is only available inside a repetition")
	}
	return nil
}

func (i *index) buildValue(v interface{}, s Stream, ctx *Context) (interface{}, error) {
	return i.Parse(s, ctx)
}

func (*index) Sizeof(ctx *Context) (int64, error) {
	return 0, nil
}

type raise struct {
	meta
	msg string
}

// Raise always fails with an explicit error. It marks branches that must not occur.
func Raise(msg string) Construct {
	return &raise{msg: msg}
}

func (r *raise) Parse(s Stream, ctx *Context) (interface{}, error) {
	return nil, newError(KindExplicit, s, "%v", r.msg)
}

func (r *raise) Build(v interface{}, s Stream, ctx *Context) error {
	return newError(KindExplicit, s, "%v", r.msg)
}

func (r *raise) Sizeof(ctx *Context) (int64, error) {
	return 0, newError(KindSizeof, nil, "%v", r.msg)
}

// sizeFromExpr evaluates a length expression for Sizeof. A missing context name
// means the size depends on data not yet available.
func sizeFromExpr(e Expr[int64], ctx *Context) (int64, error) {
	n, err := e(ctx)
	if err != nil {
		if IsConstructError(err) {
			return 0, err
		}
		return 0, wrapError(KindSizeof, nil, err, "size depends on context")
	}
	return n, nil
}

func asBytes(v interface{}) ([]byte, bool) {
	switch b := v.(type) {
	case []byte:
		return b, true
	case string:
		return []byte(b), true
	}
	return nil, false
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []byte:
		return len(t) > 0
	}
	if n, ok := toBigInt(v); ok {
		return n.Sign() != 0
	}
	return true
}

// halfToFloat decodes an IEEE 754 binary16 value.
func halfToFloat(h uint16) float64 {
	sign := 1.0
	if h&0x8000 != 0 {
		sign = -1.0
	}
	exp := int(h>>10) & 0x1F
	frac := float64(h & 0x3FF)
	switch exp {
	case 0:
		return sign * math.Ldexp(frac, -24)
	case 0x1F:
		if frac == 0 {
			return math.Inf(int(sign))
		}
		return math.NaN()
	}
	return sign * math.Ldexp(1+frac/1024, exp-15)
}

// floatToHalf encodes f as IEEE 754 binary16, rounding to nearest.
func floatToHalf(f float64) uint16 {
	var sign uint16
	if math.Signbit(f) {
		sign = 0x8000
		f = -f
	}
	switch {
	case math.IsNaN(f):
		return 0x7E00
	case math.IsInf(f, 0) || f >= 65520:
		return sign | 0x7C00
	case f < math.Ldexp(1, -14):
		return sign | uint16(math.RoundToEven(f/math.Ldexp(1, -24)))
	}
	frac, exp := math.Frexp(f)
	// f = frac * 2^exp with frac in [0.5, 1); the half mantissa wants [1, 2).
	m := math.RoundToEven((frac*2 - 1) * 1024)
	e := exp - 1 + 15
	if m == 1024 {
		m = 0
		e++
	}
	if e >= 0x1F {
		return sign | 0x7C00
	}
	return sign | uint16(e)<<10 | uint16(m)
}
