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
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/elliotchance/orderedmap/v3"
)

// A Container is the ordered name-to-value result of parsing a Struct. Fields keep
// the order they were parsed (or set) in.
type Container struct {
	m *orderedmap.OrderedMap[string, interface{}]
}

// NewContainer returns an empty container.
func NewContainer() *Container {
	return &Container{m: orderedmap.NewOrderedMap[string, interface{}]()}
}

func (c *Container) lazyInit() {
	if c.m == nil {
		c.m = orderedmap.NewOrderedMap[string, interface{}]()
	}
}

// Set stores a field and returns the container, so literals can be chained.
func (c *Container) Set(name string, v interface{}) *Container {
	c.lazyInit()
	c.m.Set(name, v)
	return c
}

// Get returns a field's value.
func (c *Container) Get(name string) (interface{}, bool) {
	if c == nil || c.m == nil {
		return nil, false
	}
	return c.m.Get(name)
}

// Has reports whether a field is present.
func (c *Container) Has(name string) bool {
	if c == nil || c.m == nil {
		return false
	}
	return c.m.Has(name)
}

// Len returns the number of fields.
func (c *Container) Len() int {
	if c == nil || c.m == nil {
		return 0
	}
	return c.m.Len()
}

// Keys returns the field names in order.
func (c *Container) Keys() []string {
	if c == nil || c.m == nil {
		return nil
	}
	keys := make([]string, 0, c.m.Len())
	for k := range c.m.Keys() {
		keys = append(keys, k)
	}
	return keys
}

// Each calls fn for every field, in order, until fn returns false.
func (c *Container) Each(fn func(name string, v interface{}) bool) {
	if c == nil || c.m == nil {
		return
	}
	for k, v := range c.m.AllFromFront() {
		if !fn(k, v) {
			return
		}
	}
}

// Map returns a shallow copy of the fields as a plain map.
func (c *Container) Map() map[string]interface{} {
	out := make(map[string]interface{}, c.Len())
	c.Each(func(k string, v interface{}) bool {
		out[k] = v
		return true
	})
	return out
}

// Equal compares two containers field by field, ignoring order.
func (c *Container) Equal(o *Container) bool {
	if c.Len() != o.Len() {
		return false
	}
	eq := true
	c.Each(func(k string, v interface{}) bool {
		ov, ok := o.Get(k)
		eq = ok && Equal(v, ov)
		return eq
	})
	return eq
}

func (c *Container) String() string {
	var b strings.Builder
	b.WriteString("Container(")
	first := true
	c.Each(func(k string, v interface{}) bool {
		if !first {
			b.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&b, "%v=%v", k, v)
		return true
	})
	b.WriteString(")")
	return b.String()
}

// A ListContainer is the result of parsing a repetition or a Sequence.
type ListContainer []interface{}

// A Keyed pairs a value with the key or alternative that produced it, as returned by
// Switch with IncludeKey and Select with IncludeName.
type Keyed struct {
	Key   interface{}
	Value interface{}
}

// Equal compares two engine values. Integers compare by numeric value whatever their
// Go type, byte slices by content, and containers structurally.
func Equal(a, b interface{}) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case *Container:
		bv, ok := b.(*Container)
		return ok && av.Equal(bv)
	case ListContainer:
		return equalList(av, b)
	case []interface{}:
		return equalList(av, b)
	case []byte:
		bv, ok := b.([]byte)
		return ok && bytes.Equal(av, bv)
	case Keyed:
		bv, ok := b.(Keyed)
		return ok && Equal(av.Key, bv.Key) && Equal(av.Value, bv.Value)
	case *LazyContainer:
		v, err := av.Value()
		return err == nil && Equal(v, b)
	}
	if ai, ok := toBigIntStrict(a); ok {
		bi, ok := toBigIntStrict(b)
		return ok && ai.Cmp(bi) == 0
	}
	if af, ok := a.(float64); ok {
		bf, ok := toFloat64(b)
		return ok && af == bf
	}
	if b == nil {
		return false
	}
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if av.Type() != bv.Type() || !av.Comparable() {
		return false
	}
	return a == b
}

func equalList(a []interface{}, b interface{}) bool {
	var bl []interface{}
	switch bv := b.(type) {
	case ListContainer:
		bl = bv
	case []interface{}:
		bl = bv
	default:
		return false
	}
	if len(a) != len(bl) {
		return false
	}
	for i := range a {
		if !Equal(a[i], bl[i]) {
			return false
		}
	}
	return true
}

// toBigIntStrict is toBigInt restricted to integer types.
func toBigIntStrict(v interface{}) (*big.Int, bool) {
	switch v.(type) {
	case float32, float64, bool:
		return nil, false
	}
	return toBigInt(v)
}

// normalizeKey maps numerically equal integer keys of different Go types onto one
// representation so they can be used to look up Switch cases.
func normalizeKey(k interface{}) interface{} {
	if b, ok := toBigIntStrict(k); ok {
		if b.IsInt64() {
			return b.Int64()
		}
		return b.String()
	}
	return k
}
