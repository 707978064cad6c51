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

package celexpr

import (
	"testing"

	"github.com/amzn/construct-go/construct"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustInt(t *testing.T, src string) construct.Expr[int64] {
	t.Helper()
	e, err := Int(src)
	require.NoError(t, err)
	return e
}

func cont(kv ...interface{}) *construct.Container {
	c := construct.NewContainer()
	for i := 0; i+1 < len(kv); i += 2 {
		c.Set(kv[i].(string), kv[i+1])
	}
	return c
}

func roundTrip(t *testing.T, c construct.Construct, data []byte, expected interface{}, opts ...construct.Option) {
	t.Helper()
	v, err := construct.Parse(c, data, opts...)
	require.NoError(t, err)
	assert.True(t, construct.Equal(expected, v), "expected %v, got %v", expected, v)

	out, err := construct.Build(c, expected, opts...)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestInt(t *testing.T) {
	tests := []struct {
		name     string
		c        construct.Construct
		data     []byte
		expected interface{}
	}{
		{
			name: "count",
			c: construct.Struct("s",
				construct.UBInt8("n"),
				construct.Array(mustInt(t, "this.n * 2"), construct.UBInt8("items"))),
			data:     []byte{2, 1, 2, 3, 4},
			expected: cont("n", 2, "items", construct.ListContainer{1, 2, 3, 4}),
		},
		{
			name: "parent scope",
			c: construct.Struct("outer",
				construct.UBInt8("len"),
				construct.Struct("inner", construct.Bytes("data", mustInt(t, "this._.len")))),
			data:     []byte{2, 'a', 'b'},
			expected: cont("len", 2, "inner", cont("data", []byte("ab"))),
		},
		{
			name: "unsigned",
			c: construct.Struct("s",
				construct.VarInt("v"),
				construct.Bytes("data", mustInt(t, "this.v"))),
			data:     []byte{1, 'x'},
			expected: cont("v", uint64(1), "data", []byte("x")),
		},
		{
			name: "nested field",
			c: construct.Struct("s",
				construct.Struct("hdr", construct.UBInt8("count")),
				construct.Array(mustInt(t, "this.hdr.count"), construct.UBInt8("xs"))),
			data:     []byte{1, 7},
			expected: cont("hdr", cont("count", 1), "xs", construct.ListContainer{7}),
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			roundTrip(t, test.c, test.data, test.expected)
		})
	}
}

func TestIntLazyFields(t *testing.T) {
	tests := []struct {
		name string
		c    construct.Construct
		data []byte
	}{
		{
			name: "on demand",
			c: construct.Struct("s",
				construct.OnDemand(construct.UBInt8("n")),
				construct.Bytes("data", mustInt(t, "this.n"))),
			data: []byte{2, 'a', 'b'},
		},
		{
			name: "lazy array",
			c: construct.Struct("s",
				construct.LazyArray(construct.Fixed(2), construct.UBInt8("xs")),
				construct.Bytes("data", mustInt(t, "this.xs[1]"))),
			data: []byte{0, 2, 'a', 'b'},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			v, err := construct.Parse(test.c, test.data)
			require.NoError(t, err)
			data, _ := v.(*construct.Container).Get("data")
			assert.Equal(t, []byte("ab"), data)
		})
	}
}

func TestIntParams(t *testing.T) {
	c := construct.Bytes("data", mustInt(t, "this.scale + 1"))
	roundTrip(t, c, []byte("abcd"), []byte("abcd"), construct.WithParams(map[string]interface{}{"scale": 3}))
}

func TestIntErrors(t *testing.T) {
	_, err := Int("this.n +")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `celexpr: compiling "this.n +"`)

	_, err = construct.Parse(construct.Bytes("data", mustInt(t, "'abc'")), []byte("abc"))
	assert.EqualError(t, err, `celexpr: "'abc'": abc (string) is not an integer`)

	_, err = construct.Parse(construct.Bytes("data", mustInt(t, "this.missing")), []byte("abc"))
	require.Error(t, err)
	assert.False(t, construct.IsConstructError(err))
	assert.Contains(t, err.Error(), `celexpr: evaluating "this.missing"`)

	v, err := construct.Parse(construct.Bytes("data", mustInt(t, "2.0")), []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), v)
}

func TestBool(t *testing.T) {
	cond, err := Bool("this.kind == 1")
	require.NoError(t, err)
	c := construct.Struct("s",
		construct.UBInt8("kind"),
		construct.IfThenElse("v", cond, construct.UBInt16("v"), construct.UBInt8("v")))

	roundTrip(t, c, []byte{1, 0, 5}, cont("kind", 1, "v", 5))
	roundTrip(t, c, []byte{2, 5}, cont("kind", 2, "v", 5))

	notBool, err := Bool("this.kind")
	require.NoError(t, err)
	_, err = construct.Parse(construct.Struct("s",
		construct.UBInt8("kind"),
		construct.If(notBool, construct.UBInt8("v"))), []byte{1, 2})
	assert.ErrorContains(t, err, "is not a bool")
}

func TestPredicate(t *testing.T) {
	until9, err := Predicate("obj == 9")
	require.NoError(t, err)
	roundTrip(t, construct.RepeatUntil(until9, construct.UBInt8("x")), []byte{1, 9}, construct.ListContainer{1, 9})

	zero, err := Predicate("obj.v == 0 || obj.v > this.limit")
	require.NoError(t, err)
	c := construct.Struct("s",
		construct.UBInt8("limit"),
		construct.RepeatUntil(zero, construct.Struct("e", construct.UBInt8("v"))))
	v, err := construct.Parse(c, []byte{5, 1, 2, 6, 4})
	require.NoError(t, err)
	assert.True(t, construct.Equal(cont("limit", 5, "e", construct.ListContainer{
		cont("v", 1), cont("v", 2), cont("v", 6),
	}), v), "got %v", v)
}

func TestBytes(t *testing.T) {
	data, err := Bytes("this.payload")
	require.NoError(t, err)
	c := construct.Struct("s",
		construct.Bytes("payload", construct.Fixed(5)),
		construct.Checksum(construct.UBInt32("crc"), construct.CRC32, data))
	roundTrip(t, c, []byte("hello\x36\x10\xa6\x86"), cont("payload", []byte("hello"), "crc", 0x3610a686))

	str, err := Bytes("'ab' + this.suffix")
	require.NoError(t, err)
	got, err := str(construct.NewContext(map[string]interface{}{"suffix": "c"}))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	num, err := Bytes("1")
	require.NoError(t, err)
	_, err = num(construct.NewContext(nil))
	assert.ErrorContains(t, err, "is not bytes")
}

func TestAny(t *testing.T) {
	double, err := Any("this.n * 2")
	require.NoError(t, err)
	c := construct.Struct("s", construct.UBInt8("n"), construct.Computed("double", double))

	v, err := construct.Parse(c, []byte{21})
	require.NoError(t, err)
	assert.True(t, construct.Equal(cont("n", 21, "double", 42), v), "got %v", v)

	out, err := construct.Build(c, cont("n", 21))
	require.NoError(t, err)
	assert.Equal(t, []byte{21}, out)

	greeting, err := Any("'hi ' + this.name")
	require.NoError(t, err)
	s, err := greeting(construct.NewContext(map[string]interface{}{"name": "there"}))
	require.NoError(t, err)
	assert.Equal(t, "hi there", s)

	null, err := Any("null")
	require.NoError(t, err)
	s, err = null(construct.NewContext(nil))
	require.NoError(t, err)
	assert.Nil(t, s)

	m, err := Any("{'a': 'b'}")
	require.NoError(t, err)
	s, err = m(construct.NewContext(nil))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"a": "b"}, s)
}

func TestCompile(t *testing.T) {
	p, err := Compile("obj + 1")
	require.NoError(t, err)
	assert.Equal(t, "obj + 1", p.String())

	v, err := p.Eval(construct.NewContext(nil), int64(41))
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
}
