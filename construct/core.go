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
	"log/slog"
)

// Flags modify how a construct's result is bound by its enclosing composite.
type Flags uint8

const (
	// FlagEmbed merges a construct's fields into the enclosing Struct or Sequence.
	FlagEmbed Flags = 1 << iota

	// FlagHidden keeps a parsed field in the context but out of the result.
	FlagHidden
)

// A Construct is one node of a binary format description. The same node parses,
// builds and sizes; nodes hold no per-call state and may be shared freely.
type Construct interface {
	// Name returns the field name, or "" for an anonymous node.
	Name() string

	// Flags returns the embedding flags.
	Flags() Flags

	// Parse decodes a value from the stream's current position.
	Parse(s Stream, ctx *Context) (interface{}, error)

	// Build encodes v at the stream's current position.
	Build(v interface{}, s Stream, ctx *Context) error

	// Sizeof returns the encoded size in stream units, or a sizeof error.
	Sizeof(ctx *Context) (int64, error)
}

type meta struct {
	name  string
	flags Flags
}

func (m meta) Name() string {
	return m.name
}

func (m meta) Flags() Flags {
	return m.flags
}

type reconfig struct {
	Construct
	name  string
	flags Flags
}

func (r *reconfig) Name() string {
	return r.name
}

func (r *reconfig) Flags() Flags {
	return r.flags
}

// Renamed returns c under a new name.
func Renamed(name string, c Construct) Construct {
	return &reconfig{Construct: c, name: name, flags: c.Flags()}
}

// Embedded marks c so its fields are flattened into the enclosing Struct or Sequence.
func Embedded(c Construct) Construct {
	return &reconfig{Construct: c, name: c.Name(), flags: c.Flags() | FlagEmbed}
}

// Hidden marks c so its value is kept in the context but left out of the result.
func Hidden(c Construct) Construct {
	return &reconfig{Construct: c, name: c.Name(), flags: c.Flags() | FlagHidden}
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type options struct {
	logger *slog.Logger
	params map[string]interface{}
}

// An Option configures a single Parse, Build or Sizeof call.
type Option func(*options)

// WithLogger routes debug output (Probe, lazy materialization) to l.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithParams seeds the root context, so expressions can refer to values supplied
// from outside the stream.
func WithParams(params map[string]interface{}) Option {
	return func(o *options) {
		o.params = params
	}
}

func rootContext(opts []Option) *Context {
	o := options{logger: discardLogger}
	for _, opt := range opts {
		opt(&o)
	}
	ctx := NewContext(o.params)
	if o.logger != nil {
		ctx.logger = o.logger
	}
	return ctx
}

// Parse decodes data with c.
func Parse(c Construct, data []byte, opts ...Option) (interface{}, error) {
	return parseRoot(c, NewBytesStream(data), opts)
}

// ParseStream decodes from r starting at its current offset.
func ParseStream(c Construct, r io.ReadSeeker, opts ...Option) (interface{}, error) {
	return parseRoot(c, newIOStream(r, nil, r), opts)
}

func parseRoot(c Construct, s Stream, opts []Option) (interface{}, error) {
	ctx := rootContext(opts)
	v, err := c.Parse(s, ctx)
	if err != nil {
		return nil, withPath(err, c.Name())
	}
	return v, nil
}

// Build encodes v with c and returns the bytes.
func Build(c Construct, v interface{}, opts ...Option) ([]byte, error) {
	buf := &Buffer{}
	if err := buildRoot(c, v, buf, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildStream encodes v with c into w starting at its current offset.
func BuildStream(c Construct, v interface{}, w io.WriteSeeker, opts ...Option) error {
	return buildRoot(c, v, newIOStream(nil, w, w), opts)
}

func buildRoot(c Construct, v interface{}, s Stream, opts []Option) error {
	ctx := rootContext(opts)
	return withPath(c.Build(v, s, ctx), c.Name())
}

// Sizeof returns the encoded size of c, evaluating size expressions against the
// parameters supplied with WithParams.
func Sizeof(c Construct, opts ...Option) (int64, error) {
	ctx := rootContext(opts)
	n, err := c.Sizeof(ctx)
	if err != nil {
		return 0, withPath(err, c.Name())
	}
	return n, nil
}

// A Subconstruct wraps a single inner construct and delegates everything to it.
// Wrappers that only change one direction embed it.
type Subconstruct struct {
	Sub Construct
}

func (s Subconstruct) Name() string {
	return s.Sub.Name()
}

func (s Subconstruct) Flags() Flags {
	return s.Sub.Flags()
}

func (s Subconstruct) Parse(st Stream, ctx *Context) (interface{}, error) {
	return s.Sub.Parse(st, ctx)
}

func (s Subconstruct) Build(v interface{}, st Stream, ctx *Context) error {
	return s.Sub.Build(v, st, ctx)
}

func (s Subconstruct) Sizeof(ctx *Context) (int64, error) {
	return s.Sub.Sizeof(ctx)
}
