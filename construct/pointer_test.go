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
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointer(t *testing.T) {
	p := Pointer(Fixed(2), UBInt8("p"))

	s := NewBytesStream([]byte{0, 0, 7})
	v, err := p.Parse(s, NewContext(nil))
	require.NoError(t, err)
	assertValue(t, 7, v)
	assert.Equal(t, int64(0), s.Tell())

	out, err := Build(p, 7)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 7}, out)

	n, err := Sizeof(p)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPointerRestoresOnFailure(t *testing.T) {
	tests := []struct {
		name string
		c    Construct
	}{
		{"short read", Pointer(Fixed(2), UBInt16("p"))},
		{"relative", RelativePointer(Fixed(1), UBInt32("r"))},
		{"bad const", Pointer(Fixed(2), Const(UBInt8("m"), 9))},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s := NewBytesStream([]byte{1, 2, 3})
			_, err := s.Read(1)
			require.NoError(t, err)

			_, err = test.c.Parse(s, NewContext(nil))
			require.Error(t, err)
			assert.True(t, IsConstructError(err))
			assert.Equal(t, int64(1), s.Tell())
		})
	}
}

func TestPointerInStruct(t *testing.T) {
	tests := []struct {
		name     string
		c        Construct
		data     []byte
		expected *Container
	}{
		{
			name:     "absolute",
			c:        Struct("s", UBInt8("a"), Pointer(Fixed(4), UBInt8("p")), UBInt8("b")),
			data:     []byte{1, 2, 0, 0, 9},
			expected: cont("a", 1, "p", 9, "b", 2),
		},
		{
			name:     "relative",
			c:        Struct("s", UBInt8("a"), RelativePointer(Fixed(2), UBInt8("r")), UBInt8("b")),
			data:     []byte{1, 2, 0, 9},
			expected: cont("a", 1, "r", 9, "b", 2),
		},
		{
			name:     "offset from field",
			c:        Struct("s", UBInt8("off"), Pointer(This[int64]("off"), UBInt16("p"))),
			data:     []byte{2, 0, 1, 0},
			expected: cont("off", 2, "p", 256),
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			roundTrip(t, test.c, test.data, test.expected)
		})
	}
}

func TestPointerFromEnd(t *testing.T) {
	v, err := Parse(Pointer(Fixed(-1), UBInt8("last")), []byte{1, 2, 3})
	require.NoError(t, err)
	assertValue(t, 3, v)

	_, err = Parse(Pointer(Fixed(-5), UBInt8("last")), []byte{1})
	assertKind(t, KindStream, err)
}

func TestSeek(t *testing.T) {
	c := Struct("s", UBInt8("a"), Seek("pos", Fixed(3), io.SeekStart), UBInt8("b"))

	v, err := Parse(c, []byte{1, 0, 0, 4})
	require.NoError(t, err)
	assertValue(t, cont("a", 1, "pos", 3, "b", 4), v)

	out, err := Build(c, cont("a", 1, "b", 4))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0, 4}, out)

	tests := []struct {
		name     string
		at       int64
		whence   int
		expected int64
	}{
		{"from start", 2, io.SeekStart, 2},
		{"forward", 3, io.SeekCurrent, 7},
		{"backward", -1, io.SeekCurrent, 3},
		{"from end", -2, io.SeekEnd, 8},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s := NewBytesStream(make([]byte, 10))
			require.NoError(t, s.Seek(4))

			v, err := Seek("pos", Fixed(test.at), test.whence).Parse(s, NewContext(nil))
			require.NoError(t, err)
			assert.Equal(t, test.expected, v)
			assert.Equal(t, test.expected, s.Tell())
		})
	}

	_, err = Parse(Seek("pos", Fixed(0), 7), nil)
	assertKind(t, KindStream, err)
	_, err = Parse(Seek("pos", Fixed(-1), io.SeekStart), nil)
	assertKind(t, KindStream, err)
	_, err = Sizeof(Seek("pos", Fixed(0), io.SeekStart))
	assertKind(t, KindSizeof, err)
}

func TestPeek(t *testing.T) {
	c := Struct("s", Peek(UBInt16("peek"), false), UBInt8("a"), UBInt8("b"))
	roundTrip(t, c, []byte{1, 2}, cont("peek", 0x0102, "a", 1, "b", 2))

	v, err := Parse(Peek(UBInt32("x"), false), []byte{1})
	require.NoError(t, err)
	assert.Nil(t, v)

	out, err := Build(Peek(UBInt8("p"), false), 5)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = Build(Peek(UBInt8("p"), true), 5)
	require.NoError(t, err)
	assert.Equal(t, []byte{5}, out)

	n, err := Sizeof(Peek(UBInt32("x"), true))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func lazyField(t *testing.T, v interface{}, name string) *LazyContainer {
	t.Helper()
	c, ok := v.(*Container)
	require.True(t, ok, "expected a container, got %T", v)
	f, _ := c.Get(name)
	lc, ok := f.(*LazyContainer)
	require.True(t, ok, "expected a lazy value, got %T", f)
	return lc
}

func TestOnDemand(t *testing.T) {
	c := Struct("s", UBInt8("a"), OnDemand(UBInt8("b")), UBInt8("c"))

	v, err := Parse(c, []byte{7, 8, 9})
	require.NoError(t, err)
	lc := lazyField(t, v, "b")
	assert.False(t, lc.Materialized())
	assert.Equal(t, int64(1), lc.Offset())
	assert.Equal(t, "<unread b at 1>", lc.String())

	cv, _ := v.(*Container).Get("c")
	assertValue(t, 9, cv)

	bv, err := lc.Value()
	require.NoError(t, err)
	assertValue(t, 8, bv)
	assert.True(t, lc.Materialized())
	assert.Equal(t, "8", lc.String())

	out, err := Build(c, v)
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 8, 9}, out)

	out, err = Build(c, cont("a", 7, "b", 8, "c", 9))
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 8, 9}, out)
}

func TestOnDemandOptions(t *testing.T) {
	tests := []struct {
		name   string
		opts   []OnDemandOption
		data   []byte
		lazy   int64
		output []byte
	}{
		{"no advance", []OnDemandOption{AdvanceStream(false)}, []byte{7, 9}, 9, []byte{7, 9, 9}},
		{"no force", []OnDemandOption{ForceBuild(false)}, []byte{7, 8, 9}, 8, []byte{7, 0, 9}},
		{"neither", []OnDemandOption{AdvanceStream(false), ForceBuild(false)}, []byte{7, 9}, 9, []byte{7, 9}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := Struct("s", UBInt8("a"), OnDemand(UBInt8("b"), test.opts...), UBInt8("c"))
			v, err := Parse(c, test.data)
			require.NoError(t, err)

			out, err := Build(c, v)
			require.NoError(t, err)
			assert.Equal(t, test.output, out)

			bv, err := lazyField(t, v, "b").Value()
			require.NoError(t, err)
			assertValue(t, test.lazy, bv)
		})
	}

	n, err := Sizeof(OnDemand(UBInt16("w")))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = Sizeof(OnDemand(UBInt16("w"), AdvanceStream(false)))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOnDemandLazyError(t *testing.T) {
	v, err := Parse(OnDemand(UBInt16("w"), AdvanceStream(false)), []byte{1})
	require.NoError(t, err)
	lc := v.(*LazyContainer)

	_, err = lc.Value()
	assertKind(t, KindField, err)
	_, again := lc.Value()
	assert.Equal(t, err, again, "the failure is cached")
}

func TestLazyArray(t *testing.T) {
	la := LazyArray(Fixed(3), UBInt16("w"))

	v, err := Parse(la, []byte{0, 1, 0, 2, 0, 3})
	require.NoError(t, err)
	l, ok := v.(*LazyListContainer)
	require.True(t, ok)
	assert.Equal(t, 3, l.Len())

	second, err := l.Index(1)
	require.NoError(t, err)
	assertValue(t, 2, second)

	_, err = l.Index(5)
	require.Error(t, err)

	all, err := l.All()
	require.NoError(t, err)
	assertValue(t, list(1, 2, 3), all)

	out, err := Build(la, v)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 0, 2, 0, 3}, out)

	out, err = Build(la, list(4, 5, 6))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 4, 0, 5, 0, 6}, out)

	_, err = Build(la, list(4))
	assertKind(t, KindArray, err)

	_, err = Parse(la, []byte{0, 1})
	assertKind(t, KindArray, err)

	n, err := Sizeof(la)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	v, err = Parse(Struct("s", LazyArray(Fixed(2), UBInt8("xs")), UBInt8("t")), []byte{1, 2, 3})
	require.NoError(t, err)
	tv, _ := v.(*Container).Get("t")
	assertValue(t, 3, tv)
}

func TestLazyBoundRecursion(t *testing.T) {
	var node Construct
	node = Struct("node",
		UBInt8("value"),
		Flag("more"),
		If(This[bool]("more"), LazyBound("next", func() Construct { return node })),
	)

	expected := cont("value", 1, "more", true, "next",
		cont("value", 2, "more", true, "next",
			cont("value", 3, "more", false, "next", nil)))
	roundTrip(t, node, []byte{1, 1, 2, 1, 3, 0}, expected)

	_, err := Parse(node, []byte{1, 1, 2})
	assertKind(t, KindField, err)
}
