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

// A buildValuer supplies the value a field contributes to the context during build
// when the caller's value is absent or ignored (Const, Default, Computed, Tell).
type buildValuer interface {
	buildValue(v interface{}, s Stream, ctx *Context) (interface{}, error)
}

func (r *reconfig) buildValue(v interface{}, s Stream, ctx *Context) (interface{}, error) {
	if bv, ok := r.Construct.(buildValuer); ok {
		return bv.buildValue(v, s, ctx)
	}
	return v, nil
}

func resolveBuildValue(c Construct, v interface{}, s Stream, ctx *Context) (interface{}, error) {
	if bv, ok := c.(buildValuer); ok {
		return bv.buildValue(v, s, ctx)
	}
	return v, nil
}

func isEmbedded(c Construct) bool {
	return c.Flags()&FlagEmbed != 0
}

func isStop(err error) bool {
	cerr, ok := err.(*Error)
	return ok && cerr.Kind == KindStopField
}

type structConstruct struct {
	meta
	subs []Construct
}

// Struct parses its members in order into a Container. Each member sees the values
// of the members before it through the context.
func Struct(name string, subs ...Construct) Construct {
	return &structConstruct{meta: meta{name: name}, subs: subs}
}

func (st *structConstruct) Parse(s Stream, ctx *Context) (interface{}, error) {
	sctx, _ := ctx.scope()
	obj := NewContainer()
	for _, sub := range st.subs {
		var v interface{}
		var err error
		if isEmbedded(sub) {
			err = sctx.embed(nil, func() error {
				var perr error
				v, perr = sub.Parse(s, sctx)
				return perr
			})
		} else {
			v, err = sub.Parse(s, sctx)
		}
		if err != nil {
			if isStop(err) {
				break
			}
			return nil, withPath(err, sub.Name())
		}
		if isEmbedded(sub) {
			if inner, ok := v.(*Container); ok {
				inner.Each(func(k string, fv interface{}) bool {
					obj.Set(k, fv)
					sctx.set(k, fv)
					return true
				})
			}
			continue
		}
		if sub.Name() == "" {
			continue
		}
		sctx.set(sub.Name(), v)
		if sub.Flags()&FlagHidden == 0 {
			obj.Set(sub.Name(), v)
		}
	}
	return obj, nil
}

func (st *structConstruct) Build(v interface{}, s Stream, ctx *Context) error {
	obj, err := asContainer(v, s)
	if err != nil {
		return err
	}
	sctx, _ := ctx.scope()
	// Members see the whole object up front; each one replaces its entry with the
	// value it actually builds.
	obj.Each(func(k string, fv interface{}) bool {
		if _, ok := sctx.vals.Get(k); !ok {
			sctx.set(k, fv)
		}
		return true
	})
	for _, sub := range st.subs {
		if isEmbedded(sub) {
			err := sctx.embed(nil, func() error {
				return sub.Build(obj, s, sctx)
			})
			if err != nil {
				if isStop(err) {
					return nil
				}
				return withPath(err, sub.Name())
			}
			continue
		}
		var subobj interface{}
		if sub.Name() != "" {
			subobj, _ = obj.Get(sub.Name())
		}
		subobj, err := resolveBuildValue(sub, subobj, s, sctx)
		if err != nil {
			return withPath(err, sub.Name())
		}
		sctx.set(sub.Name(), subobj)
		if err := sub.Build(subobj, s, sctx); err != nil {
			if isStop(err) {
				return nil
			}
			return withPath(err, sub.Name())
		}
	}
	return nil
}

func (st *structConstruct) Sizeof(ctx *Context) (int64, error) {
	return sumSizes(st.subs, ctx.child(false))
}

func sumSizes(subs []Construct, ctx *Context) (int64, error) {
	var total int64
	for _, sub := range subs {
		n, err := sub.Sizeof(ctx)
		if err != nil {
			return 0, withPath(err, sub.Name())
		}
		total += n
	}
	return total, nil
}

// asContainer accepts a Container or a plain map as a build value. Plain maps have
// no order; lookups by name do not need one.
func asContainer(v interface{}, s Stream) (*Container, error) {
	switch t := v.(type) {
	case *Container:
		return t, nil
	case map[string]interface{}:
		c := NewContainer()
		for k, fv := range t {
			c.Set(k, fv)
		}
		return c, nil
	case nil:
		return NewContainer(), nil
	}
	return nil, newError(KindAdaptation, s, "expected a container, got %T", v)
}

// seqCursor walks a Sequence's build items; embedded sequences share it.
type seqCursor struct {
	items []interface{}
	pos   int
}

func (c *seqCursor) next() interface{} {
	if c.pos >= len(c.items) {
		c.pos++
		return nil
	}
	v := c.items[c.pos]
	c.pos++
	return v
}

type sequence struct {
	meta
	subs []Construct
}

// Sequence parses its members in order into a ListContainer. Embedded members are
// spliced into the list.
func Sequence(name string, subs ...Construct) Construct {
	return &sequence{meta: meta{name: name}, subs: subs}
}

func (sq *sequence) Parse(s Stream, ctx *Context) (interface{}, error) {
	sctx, _ := ctx.scope()
	out := ListContainer{}
	for _, sub := range sq.subs {
		var v interface{}
		var err error
		if isEmbedded(sub) {
			err = sctx.embed(nil, func() error {
				var perr error
				v, perr = sub.Parse(s, sctx)
				return perr
			})
		} else {
			v, err = sub.Parse(s, sctx)
		}
		if err != nil {
			if isStop(err) {
				break
			}
			return nil, withPath(err, sub.Name())
		}
		if isEmbedded(sub) {
			if l, ok := asList(v); ok {
				out = append(out, l...)
				continue
			}
		}
		sctx.set(sub.Name(), v)
		out = append(out, v)
	}
	return out, nil
}

func (sq *sequence) Build(v interface{}, s Stream, ctx *Context) error {
	cursor := ctx.seq
	sctx, inline := ctx.scope()
	if !inline || cursor == nil {
		items, ok := asList(v)
		if !ok && v != nil {
			return newError(KindAdaptation, s, "expected a list, got %T", v)
		}
		cursor = &seqCursor{items: items}
	}
	for _, sub := range sq.subs {
		if isEmbedded(sub) {
			err := sctx.embed(cursor, func() error {
				return sub.Build(nil, s, sctx)
			})
			if err != nil {
				return withPath(err, sub.Name())
			}
			continue
		}
		subobj, err := resolveBuildValue(sub, cursor.next(), s, sctx)
		if err != nil {
			return withPath(err, sub.Name())
		}
		sctx.set(sub.Name(), subobj)
		if err := sub.Build(subobj, s, sctx); err != nil {
			if isStop(err) {
				return nil
			}
			return withPath(err, sub.Name())
		}
	}
	return nil
}

func (sq *sequence) Sizeof(ctx *Context) (int64, error) {
	return sumSizes(sq.subs, ctx.child(false))
}

type focusedSeq struct {
	meta
	focus string
	subs  []Construct
}

// FocusedSeq parses all members like a Struct but yields only the member named focus.
// Building takes that member's value; the others get nil, so they should be
// constants, defaults or computed.
func FocusedSeq(name, focus string, subs ...Construct) Construct {
	return &focusedSeq{meta: meta{name: name}, focus: focus, subs: subs}
}

func (f *focusedSeq) Parse(s Stream, ctx *Context) (interface{}, error) {
	sctx := ctx.child(false)
	var focused interface{}
	for _, sub := range f.subs {
		v, err := sub.Parse(s, sctx)
		if err != nil {
			return nil, withPath(err, sub.Name())
		}
		sctx.set(sub.Name(), v)
		if sub.Name() == f.focus {
			focused = v
		}
	}
	return focused, nil
}

func (f *focusedSeq) Build(v interface{}, s Stream, ctx *Context) error {
	sctx := ctx.child(false)
	for _, sub := range f.subs {
		var subobj interface{}
		if sub.Name() == f.focus {
			subobj = v
		}
		subobj, err := resolveBuildValue(sub, subobj, s, sctx)
		if err != nil {
			return withPath(err, sub.Name())
		}
		sctx.set(sub.Name(), subobj)
		if err := sub.Build(subobj, s, sctx); err != nil {
			return withPath(err, sub.Name())
		}
	}
	return nil
}

func (f *focusedSeq) Sizeof(ctx *Context) (int64, error) {
	return sumSizes(f.subs, ctx.child(false))
}

type stopIf struct {
	meta
	cond Expr[bool]
}

// StopIf ends the enclosing Struct, Sequence or GreedyRange when cond holds.
func StopIf(cond Expr[bool]) Construct {
	return &stopIf{cond: cond}
}

func (st *stopIf) run(s Stream, ctx *Context) error {
	stop, err := st.cond(ctx)
	if err != nil {
		return err
	}
	if stop {
		return newError(KindStopField, s, "stop")
	}
	return nil
}

func (st *stopIf) Parse(s Stream, ctx *Context) (interface{}, error) {
	return nil, st.run(s, ctx)
}

func (st *stopIf) Build(v interface{}, s Stream, ctx *Context) error {
	return st.run(s, ctx)
}

func (st *stopIf) Sizeof(ctx *Context) (int64, error) {
	return 0, newError(KindSizeof, nil, "StopIf makes size depend on data")
}
