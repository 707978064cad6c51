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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatFields(t *testing.T) {
	test := func(name string, c Construct, data []byte, expected interface{}) {
		t.Run(name, func(t *testing.T) {
			roundTrip(t, c, data, expected)

			n, err := Sizeof(c)
			require.NoError(t, err)
			assert.Equal(t, int64(len(data)), n)
		})
	}

	test("byte", Byte("b"), []byte{0x00}, 0)
	test("ubint8", UBInt8("x"), []byte{0x01}, 1)
	test("sbint8", SBInt8("x"), []byte{0xFF}, -1)
	test("ubint16", UBInt16("x"), []byte{0x01, 0x02}, 0x0102)
	test("ulint16", ULInt16("x"), []byte{0x01, 0x02}, 0x0201)
	test("slint32", SLInt32("x"), []byte{0xFE, 0xFF, 0xFF, 0xFF}, -2)
	test("sbint64", SBInt64("x"), []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFE}, -2)
	test("ubint64", UBInt64("x"), []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, uint64(math.MaxUint64))
	test("ulint24", ULInt24("int24"), []byte{0x01, 0x02, 0x03}, 197121)
	test("ubint24", UBInt24("int24"), []byte{0x01, 0x02, 0x03}, 0x010203)
	test("sbint24", SBInt24("int24"), []byte{0xFF, 0xFF, 0xFE}, -2)
	test("bfloat32", BFloat32("f"), []byte{0x3F, 0x80, 0x00, 0x00}, 1.0)
	test("lfloat64", LFloat64("f"), []byte{0, 0, 0, 0, 0, 0, 0xF0, 0x3F}, 1.0)
	test("half", Half("f"), []byte{0x3C, 0x00}, 1.0)
	test("half negative", Half("f"), []byte{0xC0, 0x00}, -2.0)
	test("half subnormal", Half("f"), []byte{0x00, 0x01}, math.Ldexp(1, -24))
}

func TestFormatFieldValueTypes(t *testing.T) {
	v, err := Parse(UBInt32("x"), []byte{0, 0, 0, 1})
	require.NoError(t, err)
	assert.IsType(t, int64(0), v)

	v, err = Parse(ULInt64("x"), []byte{1, 0, 0, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)

	v, err = Parse(LFloat32("x"), []byte{0, 0, 0xC0, 0x3F})
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)

	for _, in := range []interface{}{int8(5), uint16(5), int32(5), uint(5), 5} {
		out, err := Build(UBInt8("x"), in)
		require.NoError(t, err)
		assert.Equal(t, []byte{5}, out)
	}
}

func TestFormatFieldErrors(t *testing.T) {
	_, err := Build(UBInt8("x"), 256)
	assertKind(t, KindFormatField, err)
	assert.True(t, errors.Is(err, ErrFormatField))

	_, err = Build(SBInt8("x"), -129)
	assertKind(t, KindFormatField, err)

	_, err = Build(UBInt16("x"), "two")
	assertKind(t, KindFormatField, err)

	_, err = Build(BFloat64("x"), "two")
	assertKind(t, KindFormatField, err)

	_, err = Parse(UBInt16("x"), []byte{1})
	assertKind(t, KindField, err)

	_, err = Build(BytesInteger("x", Fixed(3), false, false), 1<<24)
	assertKind(t, KindInteger, err)
}

func TestNativeEndian(t *testing.T) {
	out, err := Build(UNInt16("x"), 0x0102)
	require.NoError(t, err)
	if nativeIsLittle {
		assert.Equal(t, []byte{0x02, 0x01}, out)
	} else {
		assert.Equal(t, []byte{0x01, 0x02}, out)
	}

	v, err := Parse(SNInt32("x"), []byte{0xFF, 0xFF, 0xFF, 0xFF})
	require.NoError(t, err)
	assertValue(t, -1, v)
}

func TestBytesInteger(t *testing.T) {
	roundTrip(t, BytesInteger("x", Fixed(9), false, false),
		[]byte{0, 0, 0, 0, 0, 0, 0, 0, 7}, 7)

	v, err := Parse(BytesInteger("x", Fixed(9), false, false), []byte{1, 0, 0, 0, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	n, ok := toBigInt(v)
	require.True(t, ok)
	assert.Equal(t, "18446744073709551616", n.String())

	roundTrip(t, Struct("s", UBInt8("n"), BytesInteger("v", This[int64]("n"), true, true)),
		[]byte{2, 0xFE, 0xFF}, cont("n", 2, "v", -2))
}

func TestBitsInteger(t *testing.T) {
	test := func(name string, c Construct, bits []byte, expected interface{}) {
		t.Run(name, func(t *testing.T) {
			bs := newBitStream(NewBytesStream(nil))
			require.NoError(t, bs.Write(bits))
			require.NoError(t, bs.Seek(0))

			v, err := c.Parse(bs, NewContext(nil))
			require.NoError(t, err)
			assertValue(t, expected, v)

			out := newBitStream(NewBytesStream(nil))
			require.NoError(t, c.Build(expected, out, NewContext(nil)))
			assert.Equal(t, bits, out.bits)
		})
	}

	ones := []byte{1, 1, 1, 1, 1, 1, 1, 1}
	test("unsigned", BitsInteger("x", Fixed(8), false, false, 8), ones, 255)
	test("signed", BitsInteger("x", Fixed(8), true, false, 8), ones, -1)
	test("swapped", BitsInteger("x", Fixed(8), false, true, 4), []byte{1, 1, 1, 1, 0, 0, 0, 0}, 0x0F)
	test("context length", BitsInteger("x", Func(func(*Context) int64 { return 8 }), false, false, 8), ones, 255)

	_, err := Build(Bitwise(BitsInteger("x", Fixed(8), false, false, 8)), -1)
	assertKind(t, KindBitInteger, err)

	out, err := Build(Bitwise(BitsInteger("x", Fixed(8), true, false, 8)), -1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF}, out)

	roundTrip(t, Bitwise(BitsInteger("x", Fixed(16), false, true, 8)), []byte{0x01, 0x02}, 0x0201)
}

func TestVarInt(t *testing.T) {
	roundTrip(t, VarInt("varint"), []byte{0x05}, uint64(5))
	roundTrip(t, VarInt("varint"), []byte{0x85, 0x05}, uint64(645))

	v, err := Parse(VarInt("varint"), []byte{0x85, 0x05})
	require.NoError(t, err)
	assert.Equal(t, uint64(645), v)

	_, err = Parse(VarInt("varint"), nil)
	assertKind(t, KindField, err)

	_, err = Build(VarInt("varint"), -1)
	assertKind(t, KindInteger, err)

	_, err = Parse(VarInt("varint"), []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x02})
	assertKind(t, KindInteger, err)

	_, err = Sizeof(VarInt("varint"))
	assert.True(t, errors.Is(err, ErrSizeof))
}

func TestZigZagField(t *testing.T) {
	roundTrip(t, ZigZag("z"), []byte{0x01}, -1)
	roundTrip(t, ZigZag("z"), []byte{0x02}, 1)
	roundTrip(t, ZigZag("z"), []byte{0x7F}, -64)
	roundTrip(t, ZigZag("z"), []byte{0x80, 0x01}, 64)
}

func TestBytesFields(t *testing.T) {
	v, err := Parse(Field("f", 3), []byte("abcd"))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), v)

	out, err := Build(Field("f", 3), "xyz")
	require.NoError(t, err)
	assert.Equal(t, []byte("xyz"), out)

	_, err = Build(Field("f", 3), []byte("ab"))
	assertKind(t, KindField, err)

	roundTrip(t, Struct("s", UBInt8("n"), Bytes("d", This[int64]("n"))),
		[]byte{2, 'a', 'b'}, cont("n", 2, "d", []byte("ab")))

	roundTrip(t, Struct("s", UBInt8("a"), GreedyBytes("rest")),
		[]byte{1, 2, 3}, cont("a", 1, "rest", []byte{2, 3}))

	_, err = Sizeof(GreedyBytes("rest"))
	assertKind(t, KindSizeof, err)

	_, err = Sizeof(Struct("s", UBInt8("n"), Bytes("d", This[int64]("n"))))
	assertKind(t, KindSizeof, err)

	n, err := Sizeof(Bytes("d", This[int64]("n")), WithParams(map[string]interface{}{"n": 5}))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestFlagField(t *testing.T) {
	v, err := Parse(Flag("f"), []byte{0})
	require.NoError(t, err)
	assert.Equal(t, false, v)

	v, err = Parse(Flag("f"), []byte{5})
	require.NoError(t, err)
	assert.Equal(t, true, v)

	out, err := Build(Flag("f"), true)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, out)
}

func TestMarkerFields(t *testing.T) {
	v, err := Parse(Pass, nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = Parse(Computed("computed", Value[interface{}]("moo")), nil)
	require.NoError(t, err)
	assert.Equal(t, "moo", v)

	out, err := Build(Struct("s", Computed("c", Value[interface{}](nil))), NewContainer())
	require.NoError(t, err)
	assert.Empty(t, out)

	double := Func(func(ctx *Context) interface{} {
		a, _ := ctx.Get("a")
		n, _ := toInt64(a)
		return n * 2
	})
	v, err = Parse(Struct("s", UBInt8("a"), Computed("b", double)), []byte{3})
	require.NoError(t, err)
	assertValue(t, cont("a", 3, "b", 6), v)

	v, err = Parse(Struct("s", UBInt8("a"), Tell("pos"), UBInt16("b")), []byte{1, 0, 2})
	require.NoError(t, err)
	assertValue(t, cont("a", 1, "pos", 1, "b", 2), v)

	_, err = Parse(Terminated, []byte("x"))
	assertKind(t, KindTerminated, err)
	_, err = Parse(Struct("s", UBInt8("a"), Terminated), []byte{1})
	require.NoError(t, err)

	_, err = Parse(Raise("unreachable"), nil)
	assertKind(t, KindExplicit, err)
	_, err = Build(Raise("unreachable"), nil)
	assertKind(t, KindExplicit, err)
}

func TestRebuild(t *testing.T) {
	c := Struct("msg",
		Rebuild(UBInt8("len"), Len("data")),
		Bytes("data", This[int64]("len")),
	)
	roundTrip(t, c, []byte{2, 'h', 'i'}, cont("len", 2, "data", []byte("hi")))

	items := Struct("s",
		Rebuild(UBInt8("count"), Len("items")),
		Array(This[int64]("count"), UBInt16("items")),
	)

	tests := []struct {
		name     string
		c        Construct
		value    *Container
		expected []byte
	}{
		{"length left out", c, cont("data", []byte("abc")), []byte{3, 'a', 'b', 'c'}},
		{"stale length replaced", c, cont("len", 9, "data", []byte("a")), []byte{1, 'a'}},
		{"element count", items, cont("items", list(1, 2)), []byte{2, 0, 1, 0, 2}},
		{"string length", Struct("s", Rebuild(UBInt8("n"), Len("name")), Computed("name", Value[interface{}]("abcd"))),
			cont("name", "abcd"), []byte{4}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			out, err := Build(test.c, test.value)
			require.NoError(t, err)
			assert.Equal(t, test.expected, out)
		})
	}

	out, err := Build(Rebuild(UBInt8("n"), Fixed(7)), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{7}, out)

	n, err := Sizeof(Rebuild(UBInt16("n"), Fixed(7)))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = Build(c, cont())
	assert.ErrorContains(t, err, `name "data" not found`)

	_, err = Build(Struct("s", Rebuild(UBInt8("n"), Len("x")), UBInt8("x")), cont("x", 5))
	assert.ErrorContains(t, err, "has no length")
}

func TestPadding(t *testing.T) {
	_, err := Parse(Padding(Fixed(4), 0, false), []byte("????"))
	require.NoError(t, err)

	_, err = Parse(Padding(Fixed(4), 0, true), []byte{0, 0, 0, 0})
	require.NoError(t, err)

	_, err = Parse(Padding(Fixed(4), 0, true), []byte("????"))
	assertKind(t, KindPadding, err)

	out, err := Build(Padding(Fixed(4), 0, true), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, out)

	out, err = Build(Padding(Fixed(2), 0xFF, false), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF}, out)
}

func TestIndexField(t *testing.T) {
	roundTrip(t, Array(Fixed(2), Struct("e", Index("i"), UBInt8("v"))),
		[]byte{7, 8}, list(cont("i", 0, "v", 7), cont("i", 1, "v", 8)))

	out, err := Build(Array(Fixed(2), Struct("e", Index("i"), UBInt8("v"))),
		list(cont("v", 7), cont("v", 8)))
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 8}, out)

	_, err = Parse(Index("i"), nil)
	assertKind(t, KindIndexField, err)
}
