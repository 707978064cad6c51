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
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainer(t *testing.T) {
	c := NewContainer().Set("b", 2).Set("a", 1).Set("b", 3)

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"b", "a"}, c.Keys(), "resetting a field keeps its place")
	assert.True(t, c.Has("a"))
	assert.False(t, c.Has("z"))

	v, ok := c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	assert.Equal(t, map[string]interface{}{"a": 1, "b": 3}, c.Map())
	assert.Equal(t, "Container(b=3, a=1)", c.String())

	var seen []string
	c.Each(func(name string, _ interface{}) bool {
		seen = append(seen, name)
		return false
	})
	assert.Equal(t, []string{"b"}, seen)

	var zero Container
	assert.Zero(t, zero.Len())
	assert.Nil(t, zero.Keys())
	zero.Set("x", 1)
	assert.Equal(t, 1, zero.Len())

	var nilc *Container
	assert.Zero(t, nilc.Len())
	_, ok = nilc.Get("x")
	assert.False(t, ok)
}

func TestEqual(t *testing.T) {
	big1 := new(big.Int).Lsh(big.NewInt(1), 70)
	type boxed struct{ V interface{} }

	tests := []struct {
		name  string
		a, b  interface{}
		equal bool
	}{
		{"ints across types", 5, uint8(5), true},
		{"int64 and uint64", int64(7), uint64(7), true},
		{"big ints", big1, new(big.Int).Set(big1), true},
		{"big and small", big1, int64(1), false},
		{"floats", 1.5, float32(1.5), true},
		{"int is not float", 1, 1.0, false},
		{"bytes", []byte{1, 2}, []byte{1, 2}, true},
		{"bytes differ", []byte{1, 2}, []byte{1}, false},
		{"strings", "a", "a", true},
		{"nil", nil, nil, true},
		{"nil and zero", nil, 0, false},
		{"lists", list(1, list(2)), []interface{}{int64(1), ListContainer{uint16(2)}}, true},
		{"list lengths", list(1), list(1, 2), false},
		{"containers ignore order", cont("a", 1, "b", 2), cont("b", 2, "a", int64(1)), true},
		{"containers differ", cont("a", 1), cont("a", 2), false},
		{"keyed", Keyed{Key: "x", Value: 1}, Keyed{Key: "x", Value: int64(1)}, true},
		{"uncomparable", map[string]int{}, map[string]int{}, false},
		{"string and nil", "a", nil, false},
		{"comparable structs", boxed{"a"}, boxed{"a"}, true},
		{"struct holding a slice", boxed{[]int{1}}, boxed{[]int{1}}, false},
		{"different struct types", boxed{"a"}, struct{ V interface{} }{"a"}, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.equal, Equal(test.a, test.b))
		})
	}
}
