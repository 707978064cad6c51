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

import "fmt"

// SwitchConstruct picks one of several constructs by a key computed from the context.
type SwitchConstruct struct {
	meta
	key        Expr[interface{}]
	cases      map[interface{}]Construct
	def        Construct
	includeKey bool
}

var _ Construct = (*SwitchConstruct)(nil)

// Switch dispatches on key. Integer keys match whatever their Go type.
func Switch(name string, key Expr[interface{}], cases map[interface{}]Construct) *SwitchConstruct {
	norm := make(map[interface{}]Construct, len(cases))
	for k, c := range cases {
		norm[normalizeKey(k)] = c
	}
	return &SwitchConstruct{meta: meta{name: name}, key: key, cases: norm}
}

// Default returns a copy of the switch that uses c when no case matches.
func (sw *SwitchConstruct) Default(c Construct) *SwitchConstruct {
	cp := *sw
	cp.def = c
	return &cp
}

// IncludeKey returns a copy of the switch whose values are Keyed pairs of the key
// and the case's value. Building takes the key from the pair.
func (sw *SwitchConstruct) IncludeKey() *SwitchConstruct {
	cp := *sw
	cp.includeKey = true
	return &cp
}

func (sw *SwitchConstruct) pick(key interface{}, s Stream) (Construct, error) {
	nk := normalizeKey(key)
	if isHashable(nk) {
		if c, ok := sw.cases[nk]; ok {
			return c, nil
		}
	}
	if sw.def != nil {
		return sw.def, nil
	}
	return nil, newError(KindSwitch, s, "no case for key %v", key)
}

func (sw *SwitchConstruct) Parse(s Stream, ctx *Context) (interface{}, error) {
	key, err := sw.key(ctx)
	if err != nil {
		return nil, err
	}
	c, err := sw.pick(key, s)
	if err != nil {
		return nil, err
	}
	v, err := c.Parse(s, ctx)
	if err != nil {
		return nil, err
	}
	if sw.includeKey {
		return Keyed{Key: key, Value: v}, nil
	}
	return v, nil
}

func (sw *SwitchConstruct) Build(v interface{}, s Stream, ctx *Context) error {
	var key interface{}
	if sw.includeKey {
		kv, ok := asKeyed(v)
		if !ok {
			return newError(KindSwitch, s, "expected a key and value pair, got %T", v)
		}
		key, v = kv.Key, kv.Value
	} else {
		k, err := sw.key(ctx)
		if err != nil {
			return err
		}
		key = k
	}
	c, err := sw.pick(key, s)
	if err != nil {
		return err
	}
	return c.Build(v, s, ctx)
}

func (sw *SwitchConstruct) Sizeof(ctx *Context) (int64, error) {
	key, err := sw.key(ctx)
	if err != nil {
		if IsConstructError(err) {
			return 0, err
		}
		return 0, wrapError(KindSizeof, nil, err, "switch key depends on context")
	}
	c, err := sw.pick(key, nil)
	if err != nil {
		return 0, err
	}
	return c.Sizeof(ctx)
}

func asKeyed(v interface{}) (Keyed, bool) {
	switch t := v.(type) {
	case Keyed:
		return t, true
	case *Keyed:
		return *t, t != nil
	}
	if l, ok := asList(v); ok && len(l) == 2 {
		return Keyed{Key: l[0], Value: l[1]}, true
	}
	return Keyed{}, false
}

// SelectConstruct tries alternatives in order and keeps the first that works.
type SelectConstruct struct {
	meta
	subs        []Construct
	includeName bool
	buildFrom   interface{}
}

var _ Construct = (*SelectConstruct)(nil)

// Select parses with the first alternative that succeeds. Only construct errors make
// it move on; any other error aborts. Building writes the first alternative that can
// encode the value, unless BuildFrom or IncludeName names one.
func Select(name string, subs ...Construct) *SelectConstruct {
	return &SelectConstruct{meta: meta{name: name}, subs: subs}
}

// IncludeName returns a copy whose values are Keyed pairs of the alternative's name
// and its value. Building then uses the named alternative.
func (sel *SelectConstruct) IncludeName() *SelectConstruct {
	cp := *sel
	cp.includeName = true
	return &cp
}

// BuildFrom returns a copy that always builds with the alternative at the given index
// (an int) or with the given name (a string).
func (sel *SelectConstruct) BuildFrom(which interface{}) *SelectConstruct {
	cp := *sel
	cp.buildFrom = which
	return &cp
}

func (sel *SelectConstruct) Parse(s Stream, ctx *Context) (interface{}, error) {
	start := s.Tell()
	for _, sub := range sel.subs {
		v, err := sub.Parse(s, ctx)
		if err == nil {
			if sel.includeName {
				return Keyed{Key: sub.Name(), Value: v}, nil
			}
			return v, nil
		}
		if !IsConstructError(err) {
			return nil, err
		}
		if err := s.Seek(start); err != nil {
			return nil, err
		}
	}
	return nil, newError(KindSelect, s, "no alternative matched")
}

func (sel *SelectConstruct) Build(v interface{}, s Stream, ctx *Context) error {
	if sel.includeName {
		kv, ok := asKeyed(v)
		if !ok {
			return newError(KindSelect, s, "expected a name and value pair, got %T", v)
		}
		for _, sub := range sel.subs {
			if sub.Name() == kv.Key {
				return sub.Build(kv.Value, s, ctx)
			}
		}
		return newError(KindSelect, s, "no alternative named %v", kv.Key)
	}
	if sel.buildFrom != nil {
		sub, err := pick(sel.subs, sel.buildFrom)
		if err != nil {
			return newError(KindSelect, s, "%v", err)
		}
		return withPath(sub.Build(v, s, ctx), sub.Name())
	}
	for _, sub := range sel.subs {
		data, err := buildDetached(sub, v, ctx)
		if err == nil {
			return s.Write(data)
		}
		if !IsConstructError(err) {
			return err
		}
	}
	return newError(KindSelect, s, "no alternative could build %v", v)
}

func (sel *SelectConstruct) Sizeof(ctx *Context) (int64, error) {
	return 0, newError(KindSizeof, nil, "select size depends on data")
}

// buildDetached builds c into a scratch buffer so a failed attempt leaves nothing
// behind in the real stream.
func buildDetached(c Construct, v interface{}, ctx *Context) ([]byte, error) {
	buf := &Buffer{}
	if err := c.Build(v, buf, ctx.child(true)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type ifThenElse struct {
	meta
	cond     Expr[bool]
	thenCons Construct
	elseCons Construct
}

// IfThenElse uses thenCons when cond holds and elseCons otherwise.
func IfThenElse(name string, cond Expr[bool], thenCons, elseCons Construct) Construct {
	return &ifThenElse{meta: meta{name: name}, cond: cond, thenCons: thenCons, elseCons: elseCons}
}

// If is IfThenElse with Pass in the else branch; the value is nil when cond is false.
func If(cond Expr[bool], sub Construct) Construct {
	return IfThenElse(sub.Name(), cond, sub, Pass)
}

func (ite *ifThenElse) pick(ctx *Context) (Construct, error) {
	ok, err := ite.cond(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return ite.thenCons, nil
	}
	return ite.elseCons, nil
}

func (ite *ifThenElse) Parse(s Stream, ctx *Context) (interface{}, error) {
	c, err := ite.pick(ctx)
	if err != nil {
		return nil, err
	}
	return c.Parse(s, ctx)
}

func (ite *ifThenElse) Build(v interface{}, s Stream, ctx *Context) error {
	c, err := ite.pick(ctx)
	if err != nil {
		return err
	}
	return c.Build(v, s, ctx)
}

func (ite *ifThenElse) Sizeof(ctx *Context) (int64, error) {
	c, err := ite.pick(ctx)
	if err != nil {
		if IsConstructError(err) {
			return 0, err
		}
		return 0, wrapError(KindSizeof, nil, err, "condition depends on context")
	}
	return c.Sizeof(ctx)
}

type optional struct {
	Subconstruct
}

// Optional parses sub if it can and yields nil otherwise, leaving the stream where
// it was. Building nil writes nothing.
func Optional(sub Construct) Construct {
	return &optional{Subconstruct{sub}}
}

func (o *optional) Parse(s Stream, ctx *Context) (interface{}, error) {
	start := s.Tell()
	v, err := o.Sub.Parse(s, ctx)
	if err != nil {
		if !IsConstructError(err) {
			return nil, err
		}
		return nil, s.Seek(start)
	}
	return v, nil
}

func (o *optional) Build(v interface{}, s Stream, ctx *Context) error {
	if v == nil {
		return nil
	}
	return o.Sub.Build(v, s, ctx)
}

func (o *optional) Sizeof(ctx *Context) (int64, error) {
	return 0, newError(KindSizeof, nil, "optional size depends on data")
}

// UnionConstruct overlays several views of the same bytes.
type UnionConstruct struct {
	meta
	subs      []Construct
	buildFrom interface{}
}

var _ Construct = (*UnionConstruct)(nil)

// Union parses every alternative from the same starting position and leaves the
// stream after the longest one. Alternatives that fail are left out of the result;
// if all fail the union fails.
func Union(name string, subs ...Construct) *UnionConstruct {
	return &UnionConstruct{meta: meta{name: name}, subs: subs}
}

// BuildFrom returns a copy that builds from the alternative at the given index (an
// int) or with the given name (a string). Without it the first alternative is used.
func (u *UnionConstruct) BuildFrom(which interface{}) *UnionConstruct {
	cp := *u
	cp.buildFrom = which
	return &cp
}

func (u *UnionConstruct) Parse(s Stream, ctx *Context) (interface{}, error) {
	uctx := ctx.child(false)
	obj := NewContainer()
	start := s.Tell()
	end := start
	parsed := 0
	var lastErr error
	for _, sub := range u.subs {
		var v interface{}
		err := restoring(s, func() error {
			var perr error
			v, perr = sub.Parse(s, uctx)
			if perr == nil && s.Tell() > end {
				end = s.Tell()
			}
			return perr
		})
		if err != nil {
			if !IsConstructError(err) {
				return nil, withPath(err, sub.Name())
			}
			lastErr = withPath(err, sub.Name())
			continue
		}
		parsed++
		if inner, ok := v.(*Container); ok && isEmbedded(sub) {
			inner.Each(func(k string, fv interface{}) bool {
				obj.Set(k, fv)
				uctx.set(k, fv)
				return true
			})
			continue
		}
		if sub.Name() != "" {
			obj.Set(sub.Name(), v)
			uctx.set(sub.Name(), v)
		}
	}
	if parsed == 0 && len(u.subs) > 0 {
		return nil, wrapError(KindUnion, s, lastErr, "no alternative parsed")
	}
	if err := s.Seek(end); err != nil {
		return nil, err
	}
	return obj, nil
}

func (u *UnionConstruct) chosen(s Stream) (Construct, error) {
	which := u.buildFrom
	if which == nil {
		which = 0
	}
	sub, err := pick(u.subs, which)
	if err != nil {
		return nil, newError(KindUnion, s, "%v", err)
	}
	return sub, nil
}

// pick finds an alternative by index (an int) or by name (a string).
func pick(subs []Construct, which interface{}) (Construct, error) {
	if name, ok := which.(string); ok {
		for _, sub := range subs {
			if sub.Name() == name {
				return sub, nil
			}
		}
		return nil, fmt.Errorf("no alternative named %q", name)
	}
	i, ok := toInt64(which)
	if !ok || i < 0 || i >= int64(len(subs)) {
		return nil, fmt.Errorf("invalid alternative %v", which)
	}
	return subs[i], nil
}

func (u *UnionConstruct) Build(v interface{}, s Stream, ctx *Context) error {
	obj, err := asContainer(v, s)
	if err != nil {
		return err
	}
	sub, err := u.chosen(s)
	if err != nil {
		return err
	}
	var subobj interface{} = obj
	if !isEmbedded(sub) {
		fv, ok := obj.Get(sub.Name())
		if sub.Name() == "" || !ok {
			return newError(KindUnion, s, "no value for alternative %q", sub.Name())
		}
		subobj = fv
	}
	data, err := buildDetached(sub, subobj, ctx.child(false))
	if err != nil {
		return withPath(err, sub.Name())
	}
	if size, serr := u.Sizeof(ctx); serr == nil && size > int64(len(data)) {
		data = append(data, make([]byte, size-int64(len(data)))...)
	}
	return s.Write(data)
}

func (u *UnionConstruct) Sizeof(ctx *Context) (int64, error) {
	var max int64
	for _, sub := range u.subs {
		n, err := sub.Sizeof(ctx)
		if err != nil {
			return 0, withPath(err, sub.Name())
		}
		if n > max {
			max = n
		}
	}
	return max, nil
}
