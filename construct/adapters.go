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
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// A TransformFunc converts a value in one direction of an adapter.
type TransformFunc func(v interface{}, ctx *Context) (interface{}, error)

type adapter struct {
	Subconstruct
	decode TransformFunc
	encode TransformFunc
}

// ExprAdapter converts values between the stored and the user-facing form. decode
// runs after sub parses; encode runs before sub builds. An *Error returned by either
// function is positioned at the current offset; any other error is returned as is
// and is fatal to Select, Range and the other recovering constructs.
func ExprAdapter(sub Construct, decode, encode TransformFunc) Construct {
	return &adapter{Subconstruct: Subconstruct{sub}, decode: decode, encode: encode}
}

// Adapter is ExprAdapter for conversions that do not need the context.
func Adapter(sub Construct, decode, encode func(v interface{}) (interface{}, error)) Construct {
	return ExprAdapter(sub,
		func(v interface{}, _ *Context) (interface{}, error) { return decode(v) },
		func(v interface{}, _ *Context) (interface{}, error) { return encode(v) })
}

// SymmetricAdapter applies the same conversion in both directions.
func SymmetricAdapter(sub Construct, fn func(v interface{}) (interface{}, error)) Construct {
	return Adapter(sub, fn, fn)
}

func (a *adapter) Parse(s Stream, ctx *Context) (interface{}, error) {
	v, err := a.Sub.Parse(s, ctx)
	if err != nil {
		return nil, err
	}
	out, err := a.decode(v, ctx)
	if err != nil {
		return nil, positioned(err, s)
	}
	return out, nil
}

func (a *adapter) Build(v interface{}, s Stream, ctx *Context) error {
	enc, err := a.encode(v, ctx)
	if err != nil {
		return positioned(err, s)
	}
	return a.Sub.Build(enc, s, ctx)
}

// positioned fills in the offset of an *Error raised without a stream.
func positioned(err error, s Stream) error {
	cerr, ok := err.(*Error)
	if !ok || cerr.Offset >= 0 {
		return err
	}
	cp := *cerr
	cp.Offset = s.Tell()
	return &cp
}

// adaptError is the error the adapters in this package return from their
// conversion functions.
func adaptError(format string, args ...interface{}) error {
	return newError(KindAdaptation, nil, format, args...)
}

type passthrough struct{}

func (passthrough) String() string { return "Passthrough" }

type noDefault struct{}

func (noDefault) String() string { return "NoDefault" }

var (
	// Passthrough as a mapping default returns unmapped values unchanged.
	Passthrough interface{} = passthrough{}

	// NoDefault as a mapping default makes unmapped values fail with a mapping error.
	NoDefault interface{} = noDefault{}
)

type mapping struct {
	Subconstruct
	decoding   map[interface{}]interface{}
	encoding   map[interface{}]interface{}
	decDefault interface{}
	encDefault interface{}
}

// Mapping translates values through lookup tables. decDefault and encDefault are
// returned for values missing from the tables; they may be Passthrough or NoDefault.
func Mapping(sub Construct, decoding, encoding map[interface{}]interface{}, decDefault, encDefault interface{}) Construct {
	return &mapping{
		Subconstruct: Subconstruct{sub},
		decoding:     normalizeTable(decoding),
		encoding:     normalizeTable(encoding),
		decDefault:   decDefault,
		encDefault:   encDefault,
	}
}

func normalizeTable(t map[interface{}]interface{}) map[interface{}]interface{} {
	out := make(map[interface{}]interface{}, len(t))
	for k, v := range t {
		out[normalizeKey(k)] = v
	}
	return out
}

func lookupTable(table map[interface{}]interface{}, v, def interface{}, s Stream, dir string) (interface{}, error) {
	key := normalizeKey(v)
	if isHashable(key) {
		if out, ok := table[key]; ok {
			return out, nil
		}
	}
	switch def {
	case NoDefault:
		return nil, newError(KindMapping, s, "no %v mapping for %v", dir, v)
	case Passthrough:
		return v, nil
	}
	return def, nil
}

func isHashable(v interface{}) bool {
	switch v.(type) {
	case []byte, []interface{}, ListContainer, map[string]interface{}:
		return false
	}
	return true
}

func (m *mapping) Parse(s Stream, ctx *Context) (interface{}, error) {
	v, err := m.Sub.Parse(s, ctx)
	if err != nil {
		return nil, err
	}
	return lookupTable(m.decoding, v, m.decDefault, s, "decoding")
}

func (m *mapping) Build(v interface{}, s Stream, ctx *Context) error {
	enc, err := lookupTable(m.encoding, v, m.encDefault, s, "encoding")
	if err != nil {
		return err
	}
	return m.Sub.Build(enc, s, ctx)
}

// An EnumOption configures Enum.
type EnumOption func(*enumConfig)

type enumConfig struct {
	def interface{}
}

// EnumDefault is used for unknown values in both directions. It may be Passthrough.
func EnumDefault(v interface{}) EnumOption {
	return func(c *enumConfig) {
		c.def = v
	}
}

// Enum names the values of an integer field. Parsing yields the label; building
// takes the label.
func Enum(sub Construct, labels map[string]interface{}, opts ...EnumOption) Construct {
	cfg := enumConfig{def: NoDefault}
	for _, opt := range opts {
		opt(&cfg)
	}
	dec := make(map[interface{}]interface{}, len(labels))
	enc := make(map[interface{}]interface{}, len(labels))
	for name, v := range labels {
		dec[v] = name
		enc[name] = v
	}
	return Mapping(sub, dec, enc, cfg.def, cfg.def)
}

type flagsEnum struct {
	Subconstruct
	names []string
	flags map[string]uint64
}

// FlagsEnum decodes a bit set into a Container with one boolean per named flag.
func FlagsEnum(sub Construct, flags map[string]uint64) Construct {
	names := make([]string, 0, len(flags))
	for n := range flags {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if flags[names[i]] != flags[names[j]] {
			return flags[names[i]] < flags[names[j]]
		}
		return names[i] < names[j]
	})
	return &flagsEnum{Subconstruct: Subconstruct{sub}, names: names, flags: flags}
}

func (f *flagsEnum) Parse(s Stream, ctx *Context) (interface{}, error) {
	v, err := f.Sub.Parse(s, ctx)
	if err != nil {
		return nil, err
	}
	n, ok := toBigIntStrict(v)
	if !ok || n.Sign() < 0 || !n.IsUint64() {
		return nil, newError(KindMapping, s, "flags value %v is not an unsigned integer", v)
	}
	bits := n.Uint64()
	out := NewContainer()
	for _, name := range f.names {
		out.Set(name, bits&f.flags[name] == f.flags[name])
	}
	return out, nil
}

func (f *flagsEnum) Build(v interface{}, s Stream, ctx *Context) error {
	var bits uint64
	set := func(name string, on interface{}) error {
		mask, ok := f.flags[name]
		if !ok {
			return newError(KindMapping, s, "unknown flag %q", name)
		}
		if truthy(on) {
			bits |= mask
		}
		return nil
	}
	switch t := v.(type) {
	case *Container:
		var err error
		t.Each(func(k string, on interface{}) bool {
			err = set(k, on)
			return err == nil
		})
		if err != nil {
			return err
		}
	case map[string]interface{}:
		for k, on := range t {
			if err := set(k, on); err != nil {
				return err
			}
		}
	case map[string]bool:
		for k, on := range t {
			if err := set(k, on); err != nil {
				return err
			}
		}
	default:
		if n, ok := toBigIntStrict(v); ok && n.IsUint64() {
			bits = n.Uint64()
			break
		}
		return newError(KindMapping, s, "expected a flag container, got %T", v)
	}
	return f.Sub.Build(bits, s, ctx)
}

type constant struct {
	Subconstruct
	value interface{}
}

// Const requires sub to hold value. Building with nil emits value.
func Const(sub Construct, value interface{}) Construct {
	return &constant{Subconstruct: Subconstruct{sub}, value: value}
}

// ConstBytes is a named literal byte string, such as a file magic.
func ConstBytes(name string, literal []byte) Construct {
	return Const(Bytes(name, Fixed(int64(len(literal)))), literal)
}

func (c *constant) Parse(s Stream, ctx *Context) (interface{}, error) {
	v, err := c.Sub.Parse(s, ctx)
	if err != nil {
		return nil, err
	}
	if !Equal(v, c.value) {
		return nil, newError(KindConst, s, "expected %v, found %v", c.value, v)
	}
	return v, nil
}

func (c *constant) Build(v interface{}, s Stream, ctx *Context) error {
	if v != nil && !Equal(v, c.value) {
		return newError(KindConst, s, "expected %v, got %v", c.value, v)
	}
	return c.Sub.Build(c.value, s, ctx)
}

func (c *constant) buildValue(v interface{}, s Stream, ctx *Context) (interface{}, error) {
	if v != nil && !Equal(v, c.value) {
		return nil, newError(KindConst, s, "expected %v, got %v", c.value, v)
	}
	return c.value, nil
}

// A Predicate tests a value against its context.
type Predicate func(v interface{}, ctx *Context) (bool, error)

type validator struct {
	Subconstruct
	pred Predicate
	desc string
}

// Validator rejects values for which pred is false, in both directions.
func Validator(sub Construct, pred Predicate) Construct {
	return &validator{Subconstruct: Subconstruct{sub}, pred: pred, desc: "invalid object"}
}

func (v *validator) check(val interface{}, s Stream, ctx *Context) error {
	ok, err := v.pred(val, ctx)
	if err != nil {
		return err
	}
	if !ok {
		return newError(KindValidation, s, "%v: %v", v.desc, val)
	}
	return nil
}

func (v *validator) Parse(s Stream, ctx *Context) (interface{}, error) {
	val, err := v.Sub.Parse(s, ctx)
	if err != nil {
		return nil, err
	}
	if err := v.check(val, s, ctx); err != nil {
		return nil, err
	}
	return val, nil
}

func (v *validator) Build(val interface{}, s Stream, ctx *Context) error {
	if err := v.check(val, s, ctx); err != nil {
		return err
	}
	return v.Sub.Build(val, s, ctx)
}

// OneOf accepts only the listed values.
func OneOf(sub Construct, values ...interface{}) Construct {
	return &validator{Subconstruct: Subconstruct{sub}, desc: "value not in allowed set", pred: func(v interface{}, _ *Context) (bool, error) {
		return containsValue(values, v), nil
	}}
}

// NoneOf rejects the listed values.
func NoneOf(sub Construct, values ...interface{}) Construct {
	return &validator{Subconstruct: Subconstruct{sub}, desc: "value in forbidden set", pred: func(v interface{}, _ *Context) (bool, error) {
		return !containsValue(values, v), nil
	}}
}

func containsValue(values []interface{}, v interface{}) bool {
	for _, c := range values {
		if Equal(c, v) {
			return true
		}
	}
	return false
}

type check struct {
	meta
	cond Expr[bool]
}

// Check fails with a check error when cond is false. It reads and writes nothing.
func Check(cond Expr[bool]) Construct {
	return &check{cond: cond}
}

func (c *check) run(s Stream, ctx *Context) error {
	ok, err := c.cond(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return newError(KindCheck, s, "check failed")
	}
	return nil
}

func (c *check) Parse(s Stream, ctx *Context) (interface{}, error) {
	return nil, c.run(s, ctx)
}

func (c *check) Build(v interface{}, s Stream, ctx *Context) error {
	return c.run(s, ctx)
}

func (c *check) Sizeof(ctx *Context) (int64, error) {
	return 0, nil
}

type defaultValue struct {
	Subconstruct
	value interface{}
}

// Default builds value when no value is supplied.
func Default(sub Construct, value interface{}) Construct {
	return &defaultValue{Subconstruct: Subconstruct{sub}, value: value}
}

func (d *defaultValue) Build(v interface{}, s Stream, ctx *Context) error {
	if v == nil {
		v = d.value
	}
	return d.Sub.Build(v, s, ctx)
}

func (d *defaultValue) buildValue(v interface{}, s Stream, ctx *Context) (interface{}, error) {
	if v == nil {
		return d.value, nil
	}
	return v, nil
}

// Indexing exposes one element of a count-element list. Building places the value at
// index and fills the other slots with empty.
func Indexing(sub Construct, count, index int, empty interface{}) Construct {
	return ExprAdapter(sub,
		func(v interface{}, _ *Context) (interface{}, error) {
			l, ok := asList(v)
			if !ok || index < 0 || index >= len(l) {
				return nil, adaptError("cannot index %v into %v", index, v)
			}
			return l[index], nil
		},
		func(v interface{}, _ *Context) (interface{}, error) {
			if index < 0 || index >= count {
				return nil, adaptError("index %v out of range for %v elements", index, count)
			}
			out := make(ListContainer, count)
			for i := range out {
				out[i] = empty
			}
			out[index] = v
			return out, nil
		})
}

// Slicing exposes list[start:stop:step]. A stop of zero or less counts back from the
// end. Building spreads the value over a count-element list padded with empty.
func Slicing(sub Construct, count, start, stop, step int, empty interface{}) Construct {
	if step <= 0 {
		step = 1
	}
	bounds := func(n int) (int, int) {
		lo, hi := start, stop
		if hi <= 0 {
			hi += n
		}
		if lo < 0 {
			lo = 0
		}
		if hi > n {
			hi = n
		}
		return lo, hi
	}
	return ExprAdapter(sub,
		func(v interface{}, _ *Context) (interface{}, error) {
			l, ok := asList(v)
			if !ok {
				return nil, adaptError("cannot slice %T", v)
			}
			lo, hi := bounds(len(l))
			out := ListContainer{}
			for i := lo; i < hi; i += step {
				out = append(out, l[i])
			}
			return out, nil
		},
		func(v interface{}, _ *Context) (interface{}, error) {
			l, ok := asList(v)
			if !ok {
				return nil, adaptError("cannot slice %T", v)
			}
			out := make(ListContainer, count)
			for i := range out {
				out[i] = empty
			}
			lo, hi := bounds(count)
			j := 0
			for i := lo; i < hi && j < len(l); i += step {
				out[i] = l[j]
				j++
			}
			if j != len(l) {
				return nil, adaptError("%v elements do not fit slice [%v:%v:%v] of %v", len(l), start, stop, step, count)
			}
			return out, nil
		})
}

func asList(v interface{}) ([]interface{}, bool) {
	switch l := v.(type) {
	case ListContainer:
		return l, true
	case []interface{}:
		return l, true
	}
	return nil, false
}

// NamedTuple presents the list sub parses, as a Sequence or Array does, as a
// Container keyed by fields in order. When sub is a Struct the named fields are
// picked out of its result instead. Building accepts a Container, a map or a list
// with one value per field.
func NamedTuple(fields []string, sub Construct) Construct {
	_, keyed := sub.(*structConstruct)
	return ExprAdapter(sub,
		func(v interface{}, _ *Context) (interface{}, error) {
			return namedTuple(fields, v)
		},
		func(v interface{}, _ *Context) (interface{}, error) {
			obj, err := namedTuple(fields, v)
			if err != nil || keyed {
				return obj, err
			}
			out := make(ListContainer, len(fields))
			for i, f := range fields {
				out[i], _ = obj.Get(f)
			}
			return out, nil
		})
}

func namedTuple(fields []string, v interface{}) (*Container, error) {
	obj := NewContainer()
	if items, ok := asList(v); ok {
		if len(items) != len(fields) {
			return nil, newError(KindNamedTuple, nil, "expected %v values for (%v), got %v",
				len(fields), strings.Join(fields, ", "), len(items))
		}
		for i, f := range fields {
			obj.Set(f, items[i])
		}
		return obj, nil
	}
	var get func(string) (interface{}, bool)
	switch t := v.(type) {
	case *Container:
		get = t.Get
	case map[string]interface{}:
		get = func(k string) (interface{}, bool) {
			fv, ok := t[k]
			return fv, ok
		}
	default:
		return nil, newError(KindNamedTuple, nil, "cannot use %T as a named tuple", v)
	}
	for _, f := range fields {
		fv, ok := get(f)
		if !ok {
			return nil, newError(KindNamedTuple, nil, "missing field %q", f)
		}
		obj.Set(f, fv)
	}
	return obj, nil
}

// Hex shows integers as "0x..." strings and byte strings as lowercase hex.
func Hex(sub Construct) Construct {
	return Adapter(sub,
		func(v interface{}) (interface{}, error) {
			if b, ok := v.([]byte); ok {
				return hex.EncodeToString(b), nil
			}
			if n, ok := toBigIntStrict(v); ok {
				return fmt.Sprintf("0x%x", n), nil
			}
			return nil, adaptError("cannot render %T as hex", v)
		},
		func(v interface{}) (interface{}, error) {
			str, ok := v.(string)
			if !ok {
				return v, nil
			}
			if strings.HasPrefix(str, "0x") || strings.HasPrefix(str, "-0x") {
				n, ok := new(big.Int).SetString(strings.Replace(str, "0x", "", 1), 16)
				if !ok {
					return nil, adaptError("invalid hex integer %q", str)
				}
				if n.IsInt64() {
					return n.Int64(), nil
				}
				return n, nil
			}
			b, err := hex.DecodeString(str)
			if err != nil {
				return nil, adaptError("invalid hex string %q: %v", str, err)
			}
			return b, nil
		})
}

type timestamp struct {
	Subconstruct
	unit  time.Duration
	epoch time.Time
}

// UnixEpoch is 1970-01-01T00:00:00Z.
var UnixEpoch = time.Unix(0, 0).UTC()

// Timestamp reads an integer count of units since epoch as a time.Time in UTC.
func Timestamp(sub Construct, unit time.Duration, epoch time.Time) Construct {
	return &timestamp{Subconstruct: Subconstruct{sub}, unit: unit, epoch: epoch}
}

func (t *timestamp) Parse(s Stream, ctx *Context) (interface{}, error) {
	v, err := t.Sub.Parse(s, ctx)
	if err != nil {
		return nil, err
	}
	n, ok := toInt64(v)
	if !ok {
		return nil, newError(KindTimestamp, s, "cannot convert %v to a time", v)
	}
	if t.unit <= 0 || (t.unit < time.Second && time.Second%t.unit != 0) {
		return nil, newError(KindTimestamp, s, "unsupported unit %v", t.unit)
	}
	return addUnits(t.epoch, n, t.unit), nil
}

func (t *timestamp) Build(v interface{}, s Stream, ctx *Context) error {
	tv, ok := v.(time.Time)
	if !ok {
		if str, isStr := v.(string); isStr {
			parsed, err := time.Parse(time.RFC3339Nano, str)
			if err != nil {
				return wrapError(KindTimestamp, s, err, "cannot parse time")
			}
			tv, ok = parsed, true
		}
	}
	if !ok {
		return newError(KindTimestamp, s, "expected a time.Time, got %T", v)
	}
	if t.unit <= 0 || (t.unit < time.Second && time.Second%t.unit != 0) {
		return newError(KindTimestamp, s, "unsupported unit %v", t.unit)
	}
	return t.Sub.Build(unitsSince(t.epoch, tv, t.unit), s, ctx)
}

func addUnits(epoch time.Time, n int64, unit time.Duration) time.Time {
	if unit >= time.Second {
		sec := n * int64(unit/time.Second)
		rem := time.Duration(n) * (unit % time.Second)
		return time.Unix(epoch.Unix()+sec, int64(epoch.Nanosecond())+int64(rem)).UTC()
	}
	per := int64(time.Second / unit)
	return time.Unix(epoch.Unix()+n/per, int64(epoch.Nanosecond())+(n%per)*int64(unit)).UTC()
}

func unitsSince(epoch, t time.Time, unit time.Duration) int64 {
	sec := t.Unix() - epoch.Unix()
	nsec := int64(t.Nanosecond() - epoch.Nanosecond())
	if unit >= time.Second {
		total := sec*int64(time.Second) + nsec
		return total / int64(unit)
	}
	per := int64(time.Second / unit)
	return sec*per + nsec/int64(unit)
}

type uuidAdapter struct {
	Subconstruct
	little bool
}

// UUID reads 16 bytes as a uuid.UUID. With littleEndian set the first three groups
// are byte-swapped, as in Microsoft GUIDs.
func UUID(name string, littleEndian bool) Construct {
	return &uuidAdapter{Subconstruct: Subconstruct{Bytes(name, Fixed(16))}, little: littleEndian}
}

func guidSwap(b []byte) []byte {
	out := make([]byte, 16)
	copy(out, b)
	out[0], out[1], out[2], out[3] = b[3], b[2], b[1], b[0]
	out[4], out[5] = b[5], b[4]
	out[6], out[7] = b[7], b[6]
	return out
}

func (u *uuidAdapter) Parse(s Stream, ctx *Context) (interface{}, error) {
	v, err := u.Sub.Parse(s, ctx)
	if err != nil {
		return nil, err
	}
	b := v.([]byte)
	if u.little {
		b = guidSwap(b)
	}
	id, err := uuid.FromBytes(b)
	if err != nil {
		return nil, wrapError(KindAdaptation, s, err, "invalid uuid")
	}
	return id, nil
}

func (u *uuidAdapter) Build(v interface{}, s Stream, ctx *Context) error {
	var id uuid.UUID
	switch t := v.(type) {
	case uuid.UUID:
		id = t
	case string:
		parsed, err := uuid.Parse(t)
		if err != nil {
			return wrapError(KindAdaptation, s, err, "invalid uuid")
		}
		id = parsed
	case []byte:
		parsed, err := uuid.FromBytes(t)
		if err != nil {
			return wrapError(KindAdaptation, s, err, "invalid uuid")
		}
		id = parsed
	default:
		return newError(KindAdaptation, s, "expected a uuid, got %T", v)
	}
	b := id[:]
	if u.little {
		b = guidSwap(b)
	}
	return u.Sub.Build(b, s, ctx)
}
