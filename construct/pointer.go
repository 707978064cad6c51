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
	"fmt"
	"io"
	"sync"
)

type pointer struct {
	meta
	offset   Expr[int64]
	sub      Construct
	relative bool
}

// Pointer runs sub at an absolute offset and then returns to where it was. A
// negative offset counts back from the end of the stream. Building past the end
// zero-fills the gap.
func Pointer(offset Expr[int64], sub Construct) Construct {
	return &pointer{meta: meta{name: sub.Name()}, offset: offset, sub: sub}
}

// RelativePointer is Pointer with the offset taken from the current position.
func RelativePointer(offset Expr[int64], sub Construct) Construct {
	return &pointer{meta: meta{name: sub.Name()}, offset: offset, sub: sub, relative: true}
}

func (p *pointer) target(s Stream, ctx *Context) (int64, error) {
	off, err := p.offset(ctx)
	if err != nil {
		return 0, err
	}
	if p.relative {
		off += s.Tell()
	} else if off < 0 {
		size, err := s.Size()
		if err != nil {
			return 0, err
		}
		off += size
	}
	if off < 0 {
		return 0, newError(KindStream, s, "pointer resolves to negative offset %v", off)
	}
	return off, nil
}

func (p *pointer) Parse(s Stream, ctx *Context) (interface{}, error) {
	var v interface{}
	err := restoring(s, func() error {
		pos, err := p.target(s, ctx)
		if err != nil {
			return err
		}
		if err := s.Seek(pos); err != nil {
			return err
		}
		v, err = p.sub.Parse(s, ctx)
		return err
	})
	return v, err
}

func (p *pointer) Build(v interface{}, s Stream, ctx *Context) error {
	return restoring(s, func() error {
		pos, err := p.target(s, ctx)
		if err != nil {
			return err
		}
		if err := s.Seek(pos); err != nil {
			return err
		}
		return p.sub.Build(v, s, ctx)
	})
}

func (p *pointer) Sizeof(ctx *Context) (int64, error) {
	return 0, nil
}

type seek struct {
	meta
	at     Expr[int64]
	whence int
}

// Seek moves the stream to at, counted from the start, the current position or the
// end as whence is io.SeekStart, io.SeekCurrent or io.SeekEnd. Unlike Pointer it
// stays there. Its value is the new position.
func Seek(name string, at Expr[int64], whence int) Construct {
	return &seek{meta: meta{name: name}, at: at, whence: whence}
}

func (sk *seek) move(s Stream, ctx *Context) (int64, error) {
	pos, err := sk.at(ctx)
	if err != nil {
		return 0, err
	}
	switch sk.whence {
	case io.SeekStart:
	case io.SeekCurrent:
		pos += s.Tell()
	case io.SeekEnd:
		size, err := s.Size()
		if err != nil {
			return 0, err
		}
		pos += size
	default:
		return 0, newError(KindStream, s, "invalid whence %v", sk.whence)
	}
	if err := s.Seek(pos); err != nil {
		return 0, err
	}
	return pos, nil
}

func (sk *seek) Parse(s Stream, ctx *Context) (interface{}, error) {
	return sk.move(s, ctx)
}

func (sk *seek) Build(v interface{}, s Stream, ctx *Context) error {
	_, err := sk.move(s, ctx)
	return err
}

func (sk *seek) Sizeof(ctx *Context) (int64, error) {
	return 0, newError(KindSizeof, nil, "seek size depends on the stream position")
}

type peek struct {
	meta
	sub          Construct
	performBuild bool
}

// Peek parses sub without consuming anything, yielding nil if sub fails. It builds
// nothing unless performBuild is set, in which case the bytes are written without
// moving the position.
func Peek(sub Construct, performBuild bool) Construct {
	return &peek{meta: meta{name: sub.Name()}, sub: sub, performBuild: performBuild}
}

func (p *peek) Parse(s Stream, ctx *Context) (interface{}, error) {
	var v interface{}
	err := restoring(s, func() error {
		var perr error
		v, perr = p.sub.Parse(s, ctx)
		return perr
	})
	if err != nil {
		if IsConstructError(err) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

func (p *peek) Build(v interface{}, s Stream, ctx *Context) error {
	if !p.performBuild {
		return nil
	}
	return restoring(s, func() error {
		return p.sub.Build(v, s, ctx)
	})
}

func (p *peek) Sizeof(ctx *Context) (int64, error) {
	return 0, nil
}

// A LazyContainer is a value that is parsed only when first asked for. It keeps
// the stream alive until then.
type LazyContainer struct {
	s   Stream
	pos int64
	sub Construct
	ctx *Context

	done bool
	v    interface{}
	err  error
}

// Value parses the deferred value on first use and caches the outcome, error
// included. The stream position is left untouched.
func (l *LazyContainer) Value() (interface{}, error) {
	if l.done {
		return l.v, l.err
	}
	l.ctx.logger.Debug("materializing lazy value", "name", l.sub.Name(), "offset", l.pos)
	l.err = restoring(l.s, func() error {
		if err := l.s.Seek(l.pos); err != nil {
			return err
		}
		var err error
		l.v, err = l.sub.Parse(l.s, l.ctx)
		return err
	})
	l.done = true
	return l.v, l.err
}

// Materialized reports whether Value has already run.
func (l *LazyContainer) Materialized() bool {
	return l.done
}

// Offset returns where the deferred value starts.
func (l *LazyContainer) Offset() int64 {
	return l.pos
}

func (l *LazyContainer) String() string {
	if !l.done {
		return fmt.Sprintf("<unread %v at %v>", l.sub.Name(), l.pos)
	}
	return fmt.Sprintf("%v", l.v)
}

// An OnDemandOption configures OnDemand.
type OnDemandOption func(*onDemand)

// AdvanceStream controls whether parsing skips over the deferred value, which needs
// a static size. It defaults to true.
func AdvanceStream(advance bool) OnDemandOption {
	return func(o *onDemand) {
		o.advance = advance
	}
}

// ForceBuild controls whether building writes the value. When false, a LazyContainer
// value is replaced by zero filler (or nothing, if the stream is not advanced). It
// defaults to true.
func ForceBuild(force bool) OnDemandOption {
	return func(o *onDemand) {
		o.force = force
	}
}

type onDemand struct {
	meta
	sub     Construct
	advance bool
	force   bool
}

// OnDemand defers parsing sub until its LazyContainer is read.
func OnDemand(sub Construct, opts ...OnDemandOption) Construct {
	o := &onDemand{meta: meta{name: sub.Name()}, sub: sub, advance: true, force: true}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *onDemand) Parse(s Stream, ctx *Context) (interface{}, error) {
	lc := &LazyContainer{s: s, pos: s.Tell(), sub: o.sub, ctx: ctx}
	if o.advance {
		n, err := o.sub.Sizeof(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.Seek(lc.pos + n); err != nil {
			return nil, err
		}
	}
	return lc, nil
}

func (o *onDemand) Build(v interface{}, s Stream, ctx *Context) error {
	lc, lazy := v.(*LazyContainer)
	if !lazy {
		return o.sub.Build(v, s, ctx)
	}
	if o.force {
		inner, err := lc.Value()
		if err != nil {
			return err
		}
		return o.sub.Build(inner, s, ctx)
	}
	if !o.advance {
		return nil
	}
	n, err := o.sub.Sizeof(ctx)
	if err != nil {
		return err
	}
	return s.Write(make([]byte, n))
}

func (o *onDemand) Sizeof(ctx *Context) (int64, error) {
	if !o.advance {
		return 0, nil
	}
	return o.sub.Sizeof(ctx)
}

// A LazyListContainer is a list whose elements are parsed when first indexed.
type LazyListContainer struct {
	s     Stream
	pos   int64
	size  int64
	sub   Construct
	ctx   *Context
	items []*LazyContainer
}

// Len returns the number of elements.
func (l *LazyListContainer) Len() int {
	return len(l.items)
}

// Index parses (once) and returns element i.
func (l *LazyListContainer) Index(i int) (interface{}, error) {
	if i < 0 || i >= len(l.items) {
		return nil, fmt.Errorf("construct: lazy index %v out of range [0, %v)", i, len(l.items))
	}
	if l.items[i] == nil {
		ectx := l.ctx.child(true)
		ectx.set(IndexKey, int64(i))
		l.items[i] = &LazyContainer{s: l.s, pos: l.pos + int64(i)*l.size, sub: l.sub, ctx: ectx}
	}
	return l.items[i].Value()
}

// All materializes every element.
func (l *LazyListContainer) All() (ListContainer, error) {
	out := make(ListContainer, len(l.items))
	for i := range l.items {
		v, err := l.Index(i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type lazyArray struct {
	meta
	count Expr[int64]
	sub   Construct
}

// LazyArray is an Array whose elements are parsed on access. sub must have a static
// size.
func LazyArray(count Expr[int64], sub Construct) Construct {
	return &lazyArray{meta: meta{name: sub.Name()}, count: count, sub: sub}
}

func (a *lazyArray) Parse(s Stream, ctx *Context) (interface{}, error) {
	n, err := evalCount(a.count, KindArray, s, ctx)
	if err != nil {
		return nil, err
	}
	size, err := a.sub.Sizeof(ctx)
	if err != nil {
		return nil, err
	}
	l := &LazyListContainer{s: s, pos: s.Tell(), size: size, sub: a.sub, ctx: ctx, items: make([]*LazyContainer, n)}
	rest, err := remaining(s)
	if err != nil {
		return nil, err
	}
	if rest < n*size {
		return nil, newError(KindArray, s, "expected %v elements of %v bytes, found %v bytes", n, size, rest)
	}
	if err := s.Seek(l.pos + n*size); err != nil {
		return nil, err
	}
	return l, nil
}

func (a *lazyArray) Build(v interface{}, s Stream, ctx *Context) error {
	if l, ok := v.(*LazyListContainer); ok {
		all, err := l.All()
		if err != nil {
			return err
		}
		v = all
	}
	n, err := evalCount(a.count, KindArray, s, ctx)
	if err != nil {
		return err
	}
	items, ok := asList(v)
	if !ok {
		return newError(KindArray, s, "expected a list, got %T", v)
	}
	if int64(len(items)) != n {
		return newError(KindArray, s, "expected %v elements, found %v", n, len(items))
	}
	return buildItems(a.sub, items, s, ctx)
}

func (a *lazyArray) Sizeof(ctx *Context) (int64, error) {
	n, err := sizeFromExpr(a.count, ctx)
	if err != nil {
		return 0, err
	}
	each, err := a.sub.Sizeof(ctx)
	if err != nil {
		return 0, err
	}
	return n * each, nil
}

type lazyBound struct {
	meta
	resolve func() Construct
}

// LazyBound resolves its construct on first use, so a format can refer to itself.
func LazyBound(name string, fn func() Construct) Construct {
	return &lazyBound{meta: meta{name: name}, resolve: sync.OnceValue(fn)}
}

func (l *lazyBound) Parse(s Stream, ctx *Context) (interface{}, error) {
	return l.resolve().Parse(s, ctx)
}

func (l *lazyBound) Build(v interface{}, s Stream, ctx *Context) error {
	return l.resolve().Build(v, s, ctx)
}

func (l *lazyBound) Sizeof(ctx *Context) (int64, error) {
	return l.resolve().Sizeof(ctx)
}
