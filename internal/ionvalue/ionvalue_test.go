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

package ionvalue

import (
	"math"
	"math/big"
	"testing"

	"github.com/amzn/construct-go/construct"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cont(kv ...interface{}) *construct.Container {
	c := construct.NewContainer()
	for i := 0; i+1 < len(kv); i += 2 {
		c.Set(kv[i].(string), kv[i+1])
	}
	return c
}

func TestRoundTrip(t *testing.T) {
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	tests := []struct {
		name string
		in   interface{}
	}{
		{"null", nil},
		{"bool", true},
		{"int", int64(-5)},
		{"uint64", uint64(math.MaxUint64)},
		{"big", huge},
		{"float", 2.5},
		{"string", "héllo"},
		{"bytes", []byte{0, 1, 0xff}},
		{"list", construct.ListContainer{int64(1), "two", nil}},
		{"container", cont("b", int64(1), "a", cont("x", []byte("hi")), "c", construct.ListContainer{true})},
	}
	for _, test := range tests {
		for _, binary := range []bool{false, true} {
			t.Run(test.name, func(t *testing.T) {
				data, err := Marshal(test.in, binary)
				require.NoError(t, err)
				out, err := Unmarshal(data)
				require.NoError(t, err)
				assert.True(t, construct.Equal(test.in, out), "expected %v, got %v", test.in, out)
			})
		}
	}
}

func TestFieldOrder(t *testing.T) {
	data, err := Marshal(cont("z", int64(1), "a", int64(2), "m", int64(3)), false)
	require.NoError(t, err)
	out, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "m"}, out.(*construct.Container).Keys())
}

func TestMarshalConversions(t *testing.T) {
	data, err := Marshal(cont(
		"n", 7,
		"u", uint16(9),
		"pair", construct.Keyed{Key: "k", Value: int64(1)},
	), true)
	require.NoError(t, err)
	out, err := Unmarshal(data)
	require.NoError(t, err)
	assert.True(t, construct.Equal(cont(
		"n", int64(7),
		"u", int64(9),
		"pair", construct.ListContainer{"k", int64(1)},
	), out), "got %v", out)

	_, err = Marshal(struct{}{}, false)
	assert.EqualError(t, err, "ionvalue: cannot write struct {}")
}

func TestUnmarshalText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected interface{}
	}{
		{"json", `{"len": 2, "items": [1, 2], "label": "hi"}`, cont("len", int64(2), "items", construct.ListContainer{int64(1), int64(2)}, "label", "hi")},
		{"ion", `{kind: data, body: {{aGk=}}, ok: true}`, cont("kind", "data", "body", []byte("hi"), "ok", true)},
		{"sexp", `(1 2)`, construct.ListContainer{int64(1), int64(2)}},
		{"typed null", `null.int`, nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			out, err := Unmarshal([]byte(test.text))
			require.NoError(t, err)
			assert.True(t, construct.Equal(test.expected, out), "expected %v, got %v", test.expected, out)
		})
	}

	_, err := Unmarshal(nil)
	assert.EqualError(t, err, "ionvalue: no value")

	_, err = Unmarshal([]byte("2020-01-01T"))
	assert.ErrorContains(t, err, "unsupported ion type")
}

func TestUnmarshalAll(t *testing.T) {
	out, err := UnmarshalAll([]byte(`1 {a: "x"} [true]`))
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.True(t, construct.Equal(int64(1), out[0]))
	assert.True(t, construct.Equal(cont("a", "x"), out[1]))
	assert.True(t, construct.Equal(construct.ListContainer{true}, out[2]))

	out, err = UnmarshalAll(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
