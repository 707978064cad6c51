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

package schema

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/amzn/construct-go/construct"
	"github.com/amzn/construct-go/construct/celexpr"
	"github.com/hengadev/errsx"
)

// A Schema is a compiled Document.
type Schema struct {
	Root  construct.Construct
	types map[string]construct.Construct
}

// Type returns the compiled named type.
func (s *Schema) Type(name string) (construct.Construct, bool) {
	c, ok := s.types[name]
	return c, ok
}

// Types lists the named types, sorted.
func (s *Schema) Types() []string {
	names := make([]string, 0, len(s.types))
	for n := range s.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type compiler struct {
	doc   *Document
	order construct.ByteOrder
	types map[string]construct.Construct
	errs  errsx.Map
}

// Compile turns a Document into constructs. Every problem found is reported, keyed
// by the dotted path of the field it concerns, in a single errsx.Map error.
func Compile(doc *Document) (*Schema, error) {
	c := &compiler{doc: doc, types: map[string]construct.Construct{}}
	c.order = c.byteOrder("endian", doc.Endian, construct.BigEndian)
	if len(doc.Root) == 0 {
		c.errs.Set("root", fmt.Errorf("no fields"))
	}

	names := make([]string, 0, len(doc.Types))
	for n := range doc.Types {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if _, builtin := primitives[n]; builtin || isComposite(n) {
			c.errs.Set("types."+n, fmt.Errorf("%q shadows a built-in type", n))
			continue
		}
		f := doc.Types[n]
		if f.Name == "" {
			f.Name = n
		}
		c.types[n] = c.field("types."+n, f, c.order)
	}

	name := doc.Name
	if name == "" {
		name = "root"
	}
	root := construct.Struct(name, c.fields("root", doc.Root, c.order)...)
	if !c.errs.IsEmpty() {
		return nil, c.errs.AsError()
	}
	return &Schema{Root: root, types: c.types}, nil
}

func (c *compiler) fields(path string, fs []Field, order construct.ByteOrder) []construct.Construct {
	out := make([]construct.Construct, 0, len(fs))
	for i, f := range fs {
		p := path + "." + f.Name
		if f.Name == "" {
			p = path + "." + strconv.Itoa(i)
		}
		out = append(out, c.field(p, f, order))
	}
	return out
}

func (c *compiler) byteOrder(path, endian string, def construct.ByteOrder) construct.ByteOrder {
	switch strings.ToLower(endian) {
	case "":
		return def
	case "big", "be":
		return construct.BigEndian
	case "little", "le":
		return construct.LittleEndian
	case "native":
		return construct.NativeEndian
	}
	c.errs.Set(path, fmt.Errorf("unknown byte order %q", endian))
	return def
}

type primitive struct {
	size int64
	kind construct.NumberKind
}

var primitives = map[string]primitive{
	"u8": {1, construct.Unsigned}, "u16": {2, construct.Unsigned}, "u32": {4, construct.Unsigned}, "u64": {8, construct.Unsigned},
	"s8": {1, construct.Signed}, "s16": {2, construct.Signed}, "s32": {4, construct.Signed}, "s64": {8, construct.Signed},
	"f16": {2, construct.Float}, "f32": {4, construct.Float}, "f64": {8, construct.Float},
}

var composites = []string{
	"u24", "s24", "varint", "zigzag", "flag", "bytes", "string", "struct", "seq", "bitstruct",
	"bits", "array", "range", "greedy", "until", "switch", "enum", "flags", "const", "if",
	"optional", "pointer", "padding", "aligned", "compressed", "prefixed", "checksum",
	"computed", "hex", "uuid", "rawcopy",
}

func isComposite(name string) bool {
	for _, n := range composites {
		if n == name {
			return true
		}
	}
	return false
}

// field compiles f. On error it records the problem and returns Pass so compilation
// can carry on and report everything at once.
func (c *compiler) field(path string, f Field, order construct.ByteOrder) construct.Construct {
	order = c.byteOrder(path+".endian", f.Endian, order)
	if p, ok := primitives[f.Type]; ok {
		return construct.FormatField(f.Name, order, p.size, p.kind)
	}
	switch f.Type {
	case "u24", "s24":
		return construct.BytesInteger(f.Name, construct.Fixed(3), f.Type == "s24", order == construct.LittleEndian)
	case "varint":
		return construct.VarInt(f.Name)
	case "zigzag":
		return construct.ZigZag(f.Name)
	case "flag":
		return construct.Flag(f.Name)
	case "bits":
		if f.Bits <= 0 {
			return c.fail(path, "bits needs a positive width")
		}
		return construct.BitsInteger(f.Name, construct.Fixed(int64(f.Bits)), f.Signed, false, 8)
	case "bytes":
		if f.Length == "" {
			return construct.GreedyBytes(f.Name)
		}
		return construct.Bytes(f.Name, c.intExpr(path+".length", f.Length))
	case "string":
		return c.stringField(path, f, order)
	case "struct":
		return construct.Struct(f.Name, c.fields(path, f.Fields, order)...)
	case "seq":
		return construct.Sequence(f.Name, c.fields(path, f.Fields, order)...)
	case "bitstruct":
		return construct.BitStruct(f.Name, c.fields(path, f.Fields, order)...)
	case "array":
		elem := c.elem(path, f, order)
		if f.Prefix != "" {
			return construct.PrefixedArray(c.prefix(path, f.Prefix, order), elem)
		}
		return construct.Array(c.intExpr(path+".count", f.Count), elem)
	case "range":
		return construct.Range(c.intExpr(path+".min", f.Min), c.intExpr(path+".max", f.Max), c.elem(path, f, order))
	case "greedy":
		return construct.GreedyRange(c.elem(path, f, order))
	case "until":
		pred, err := celexpr.Predicate(string(f.Until))
		if err != nil {
			c.errs.Set(path+".until", err)
		}
		return construct.RepeatUntil(pred, c.elem(path, f, order))
	case "switch":
		return c.switchField(path, f, order)
	case "enum", "flags":
		return c.enumField(path, f, order)
	case "const":
		return c.constField(path, f, order)
	case "if":
		cond := c.boolExpr(path+".if", f.If)
		if f.Then == nil {
			return c.fail(path, "if needs then")
		}
		thenCons := c.named(path+".then", *f.Then, f.Name, order)
		elseCons := construct.Pass
		if f.Else != nil {
			elseCons = c.named(path+".else", *f.Else, f.Name, order)
		}
		return construct.IfThenElse(f.Name, cond, thenCons, elseCons)
	case "optional":
		return construct.Optional(c.elem(path, f, order))
	case "pointer":
		return construct.Pointer(c.intExpr(path+".offset", f.Offset), c.elem(path, f, order))
	case "padding":
		return construct.Padding(c.intExpr(path+".length", f.Length), 0, false)
	case "aligned":
		if f.Modulus <= 0 {
			return c.fail(path, "aligned needs a positive modulus")
		}
		return construct.Aligned(int64(f.Modulus), c.elem(path, f, order))
	case "compressed":
		codec, err := construct.CodecByName(f.Codec)
		if err != nil {
			c.errs.Set(path+".codec", err)
			return construct.Pass
		}
		inner := construct.Compressed(c.elem(path, f, order), codec)
		if f.Prefix != "" {
			return construct.Prefixed(c.prefix(path, f.Prefix, order), inner)
		}
		return inner
	case "prefixed":
		return construct.Prefixed(c.prefix(path, f.Prefix, order), c.elem(path, f, order))
	case "checksum":
		return c.checksumField(path, f, order)
	case "computed":
		e, err := celexpr.Any(string(f.Expr))
		if err != nil {
			c.errs.Set(path+".expr", err)
		}
		return construct.Computed(f.Name, e)
	case "hex":
		return construct.Hex(c.elem(path, f, order))
	case "uuid":
		return construct.UUID(f.Name, order == construct.LittleEndian)
	case "rawcopy":
		return construct.RawCopy(c.elem(path, f, order))
	case "":
		return c.fail(path, "missing type")
	}
	if _, ok := c.doc.Types[f.Type]; ok {
		typ := f.Type
		return construct.Renamed(f.Name, construct.LazyBound(typ, func() construct.Construct {
			return c.types[typ]
		}))
	}
	return c.fail(path, fmt.Sprintf("unknown type %q", f.Type))
}

func (c *compiler) fail(path, msg string) construct.Construct {
	c.errs.Set(path, errors.New(msg))
	return construct.Pass
}

// elem compiles the element a wrapper applies to. It takes the wrapper's name, so
// the value lands under the name the schema author gave the wrapper.
func (c *compiler) elem(path string, f Field, order construct.ByteOrder) construct.Construct {
	if f.Of == nil {
		return c.fail(path+".of", fmt.Sprintf("%s needs an element type", f.Type))
	}
	return c.named(path+".of", *f.Of, f.Name, order)
}

func (c *compiler) named(path string, f Field, name string, order construct.ByteOrder) construct.Construct {
	f.Name = name
	return c.field(path, f, order)
}

func (c *compiler) prefix(path, typ string, order construct.ByteOrder) construct.Construct {
	return c.field(path+".prefix", Field{Name: "length", Type: typ}, order)
}

func (c *compiler) intExpr(path string, src Expr) construct.Expr[int64] {
	if src == "" {
		c.errs.Set(path, fmt.Errorf("missing expression"))
		return construct.Fixed(0)
	}
	if n, err := strconv.ParseInt(string(src), 10, 64); err == nil {
		return construct.Fixed(n)
	}
	e, err := celexpr.Int(string(src))
	if err != nil {
		c.errs.Set(path, err)
		return construct.Fixed(0)
	}
	return e
}

func (c *compiler) boolExpr(path string, src Expr) construct.Expr[bool] {
	e, err := celexpr.Bool(string(src))
	if err != nil {
		c.errs.Set(path, err)
		return construct.Value(false)
	}
	return e
}

func (c *compiler) stringField(path string, f Field, order construct.ByteOrder) construct.Construct {
	enc := f.Encoding
	if !construct.KnownEncoding(enc) {
		c.errs.Set(path+".encoding", fmt.Errorf("unknown encoding %q", enc))
		enc = ""
	}
	switch {
	case f.Length != "":
		return construct.PaddedString(f.Name, c.intExpr(path+".length", f.Length), enc)
	case f.Prefix != "":
		return construct.PascalString(f.Name, c.prefix(path, f.Prefix, order), enc)
	case f.Greedy:
		return construct.GreedyString(f.Name, enc)
	}
	return construct.CString(f.Name, enc)
}

// caseKey reads a case label as an integer when it looks like one.
func caseKey(k string) interface{} {
	if n, err := strconv.ParseInt(k, 0, 64); err == nil {
		return n
	}
	return k
}

func (c *compiler) switchField(path string, f Field, order construct.ByteOrder) construct.Construct {
	key, err := celexpr.Any(string(f.On))
	if err != nil {
		c.errs.Set(path+".on", err)
	}
	cases := make(map[interface{}]construct.Construct, len(f.Cases))
	for k, cf := range f.Cases {
		cases[caseKey(k)] = c.named(path+".cases."+k, cf, f.Name, order)
	}
	sw := construct.Switch(f.Name, key, cases)
	if f.Default != nil {
		sw = sw.Default(c.named(path+".default", *f.Default, f.Name, order))
	}
	return sw
}

func (c *compiler) enumField(path string, f Field, order construct.ByteOrder) construct.Construct {
	sub := construct.FormatField(f.Name, order, 1, construct.Unsigned)
	if f.Of != nil {
		sub = c.elem(path, f, order)
	}
	if len(f.Values) == 0 {
		c.errs.Set(path+".values", fmt.Errorf("%s needs values", f.Type))
	}
	if f.Type == "flags" {
		flags := make(map[string]uint64, len(f.Values))
		for k, v := range f.Values {
			if v < 0 {
				c.errs.Set(path+".values."+k, fmt.Errorf("negative flag %v", v))
				continue
			}
			flags[k] = uint64(v)
		}
		return construct.FlagsEnum(sub, flags)
	}
	labels := make(map[string]interface{}, len(f.Values))
	for k, v := range f.Values {
		labels[k] = v
	}
	return construct.Enum(sub, labels)
}

func (c *compiler) constField(path string, f Field, order construct.ByteOrder) construct.Construct {
	if f.Value == nil {
		return c.fail(path+".value", "const needs a value")
	}
	if f.Of == nil {
		s, ok := f.Value.(string)
		if !ok {
			return c.fail(path+".of", "const of a non-string value needs an element type")
		}
		return construct.ConstBytes(f.Name, []byte(s))
	}
	return construct.Const(c.elem(path, f, order), f.Value)
}

func (c *compiler) checksumField(path string, f Field, order construct.ByteOrder) construct.Construct {
	var hash construct.HashFunc
	var def Field
	switch strings.ToLower(f.Hash) {
	case "crc32":
		hash, def = construct.CRC32, Field{Type: "u32"}
	case "sha256":
		hash, def = construct.SHA256, Field{Type: "bytes", Length: "32"}
	default:
		c.errs.Set(path+".hash", fmt.Errorf("unknown hash %q", f.Hash))
		return construct.Pass
	}
	if f.Of == nil {
		f.Of = &def
	}
	data, err := celexpr.Bytes(string(f.Data))
	if err != nil {
		c.errs.Set(path+".data", err)
	}
	return construct.Checksum(c.elem(path, f, order), hash, data)
}
