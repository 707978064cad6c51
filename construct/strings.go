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
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

type textCodec struct {
	enc   encoding.Encoding
	unit  int
	check func([]byte) bool
}

var textCodecs = map[string]*textCodec{
	"utf8":     {enc: unicode.UTF8, unit: 1, check: utf8.Valid},
	"ascii":    {enc: unicode.UTF8, unit: 1, check: isASCII},
	"utf16le":  {enc: unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), unit: 2},
	"utf16be":  {enc: unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), unit: 2},
	"utf32le":  {enc: utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM), unit: 4},
	"utf32be":  {enc: utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM), unit: 4},
	"latin1":   {enc: charmap.ISO8859_1, unit: 1},
	"cp437":    {enc: charmap.CodePage437, unit: 1},
	"shiftjis": {enc: japanese.ShiftJIS, unit: 1},
}

var encodingAliases = map[string]string{
	"iso88591": "latin1",
	"ibm437":   "cp437",
	"sjis":     "shiftjis",
	"usascii":  "ascii",
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}

// Encodings lists the names accepted by the string constructs.
func Encodings() []string {
	names := make([]string, 0, len(textCodecs))
	for n := range textCodecs {
		names = append(names, n)
	}
	return names
}

// KnownEncoding reports whether name, or an alias of it, is an accepted encoding.
func KnownEncoding(name string) bool {
	_, ok := lookupEncoding(name)
	return ok
}

func lookupEncoding(name string) (*textCodec, bool) {
	key := strings.ToLower(name)
	key = strings.NewReplacer("-", "", "_", "", " ", "").Replace(key)
	if key == "" {
		key = "utf8"
	}
	if alias, ok := encodingAliases[key]; ok {
		key = alias
	}
	c, ok := textCodecs[key]
	return c, ok
}

func (t *textCodec) decode(data []byte) (string, error) {
	if t.check != nil && !t.check(data) {
		return "", fmt.Errorf("invalid encoded text %q", data)
	}
	out, err := t.enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (t *textCodec) encode(str string) ([]byte, error) {
	if !utf8.ValidString(str) {
		return nil, fmt.Errorf("invalid utf-8 in %q", str)
	}
	out, err := t.enc.NewEncoder().Bytes([]byte(str))
	if err != nil {
		return nil, err
	}
	if t.check != nil && !t.check(out) {
		return nil, fmt.Errorf("text %q is not representable", str)
	}
	return out, nil
}

// trimUnits drops trailing zero code units.
func (t *textCodec) trimUnits(data []byte) []byte {
	zero := make([]byte, t.unit)
	for len(data) >= t.unit && bytes.Equal(data[len(data)-t.unit:], zero) {
		data = data[:len(data)-t.unit]
	}
	return data
}

type stringBase struct {
	meta
	encoding string
}

func (b *stringBase) codec(s Stream) (*textCodec, error) {
	c, ok := lookupEncoding(b.encoding)
	if !ok {
		return nil, newError(KindString, s, "unknown encoding %q", b.encoding)
	}
	return c, nil
}

func (b *stringBase) decode(data []byte, s Stream) (interface{}, error) {
	c, err := b.codec(s)
	if err != nil {
		return nil, err
	}
	str, err := c.decode(data)
	if err != nil {
		return nil, wrapError(KindString, s, err, "cannot decode %v", b.encoding)
	}
	return str, nil
}

func (b *stringBase) encode(v interface{}, s Stream) ([]byte, *textCodec, error) {
	c, err := b.codec(s)
	if err != nil {
		return nil, nil, err
	}
	str, ok := v.(string)
	if !ok {
		return nil, nil, newError(KindString, s, "expected a string, got %T", v)
	}
	data, err := c.encode(str)
	if err != nil {
		return nil, nil, wrapError(KindString, s, err, "cannot encode %v", b.encoding)
	}
	return data, c, nil
}

type paddedString struct {
	stringBase
	length Expr[int64]
}

// PaddedString is text in a fixed-size field padded with zero code units.
func PaddedString(name string, length Expr[int64], encoding string) Construct {
	return &paddedString{stringBase: stringBase{meta{name: name}, encoding}, length: length}
}

func (p *paddedString) Parse(s Stream, ctx *Context) (interface{}, error) {
	n, err := evalCount(p.length, KindString, s, ctx)
	if err != nil {
		return nil, err
	}
	c, err := p.codec(s)
	if err != nil {
		return nil, err
	}
	data, err := s.Read(n)
	if err != nil {
		return nil, err
	}
	return p.decode(c.trimUnits(data), s)
}

func (p *paddedString) Build(v interface{}, s Stream, ctx *Context) error {
	n, err := evalCount(p.length, KindString, s, ctx)
	if err != nil {
		return err
	}
	data, _, err := p.encode(v, s)
	if err != nil {
		return err
	}
	if int64(len(data)) > n {
		return newError(KindPadding, s, "encoded string is %v bytes, field holds %v", len(data), n)
	}
	return s.Write(append(data, make([]byte, n-int64(len(data)))...))
}

func (p *paddedString) Sizeof(ctx *Context) (int64, error) {
	return sizeFromExpr(p.length, ctx)
}

type pascalString struct {
	stringBase
	lengthField Construct
}

// PascalString is text preceded by its encoded byte length.
func PascalString(name string, lengthField Construct, encoding string) Construct {
	return &pascalString{stringBase: stringBase{meta{name: name}, encoding}, lengthField: lengthField}
}

func (p *pascalString) Parse(s Stream, ctx *Context) (interface{}, error) {
	lv, err := p.lengthField.Parse(s, ctx)
	if err != nil {
		return nil, err
	}
	n, ok := toInt64(lv)
	if !ok || n < 0 {
		return nil, newError(KindString, s, "invalid length %v", lv)
	}
	data, err := s.Read(n)
	if err != nil {
		return nil, err
	}
	return p.decode(data, s)
}

func (p *pascalString) Build(v interface{}, s Stream, ctx *Context) error {
	data, _, err := p.encode(v, s)
	if err != nil {
		return err
	}
	if err := p.lengthField.Build(int64(len(data)), s, ctx); err != nil {
		return err
	}
	return s.Write(data)
}

func (p *pascalString) Sizeof(ctx *Context) (int64, error) {
	return 0, newError(KindSizeof, nil, "pascal string size depends on its content")
}

type cString struct {
	stringBase
}

// CString is text terminated by a zero code unit.
func CString(name string, encoding string) Construct {
	return &cString{stringBase{meta{name: name}, encoding}}
}

func (c *cString) Parse(s Stream, ctx *Context) (interface{}, error) {
	codec, err := c.codec(s)
	if err != nil {
		return nil, err
	}
	zero := make([]byte, codec.unit)
	var data []byte
	for {
		u, err := s.Read(int64(codec.unit))
		if err != nil {
			return nil, err
		}
		if bytes.Equal(u, zero) {
			break
		}
		data = append(data, u...)
	}
	return c.decode(data, s)
}

func (c *cString) Build(v interface{}, s Stream, ctx *Context) error {
	data, codec, err := c.encode(v, s)
	if err != nil {
		return err
	}
	zero := make([]byte, codec.unit)
	for i := 0; i+codec.unit <= len(data); i += codec.unit {
		if bytes.Equal(data[i:i+codec.unit], zero) {
			return newError(KindString, s, "string contains a terminator at byte %v", i)
		}
	}
	return s.Write(append(data, zero...))
}

func (c *cString) Sizeof(ctx *Context) (int64, error) {
	return 0, newError(KindSizeof, nil, "c string size depends on its content")
}

type greedyString struct {
	stringBase
}

// GreedyString is text running to the end of the stream.
func GreedyString(name string, encoding string) Construct {
	return &greedyString{stringBase{meta{name: name}, encoding}}
}

func (g *greedyString) Parse(s Stream, ctx *Context) (interface{}, error) {
	data, err := readRest(s)
	if err != nil {
		return nil, err
	}
	return g.decode(data, s)
}

func (g *greedyString) Build(v interface{}, s Stream, ctx *Context) error {
	data, _, err := g.encode(v, s)
	if err != nil {
		return err
	}
	return s.Write(data)
}

func (g *greedyString) Sizeof(ctx *Context) (int64, error) {
	return 0, newError(KindSizeof, nil, "greedy string has no fixed size")
}
