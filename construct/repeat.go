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

import "math"

// Repetitions take their name from the element construct and give each element a
// transparent scope holding IndexKey.

type array struct {
	meta
	count Expr[int64]
	sub   Construct
}

// Array repeats sub exactly count times.
func Array(count Expr[int64], sub Construct) Construct {
	return &array{meta: meta{name: sub.Name()}, count: count, sub: sub}
}

func (a *array) Parse(s Stream, ctx *Context) (interface{}, error) {
	n, err := evalCount(a.count, KindArray, s, ctx)
	if err != nil {
		return nil, err
	}
	return parseCount(a.sub, n, s, ctx)
}

func parseCount(sub Construct, n int64, s Stream, ctx *Context) (ListContainer, error) {
	rctx := ctx.child(true)
	out := make(ListContainer, 0, clampCap(n))
	for i := int64(0); i < n; i++ {
		rctx.set(IndexKey, i)
		v, err := sub.Parse(s, rctx)
		if err != nil {
			if IsConstructError(err) {
				return nil, wrapError(KindArray, s, err, "expected %v elements, found %v", n, i)
			}
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func clampCap(n int64) int {
	if n > 1024 {
		return 1024
	}
	return int(n)
}

func (a *array) Build(v interface{}, s Stream, ctx *Context) error {
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

func buildItems(sub Construct, items []interface{}, s Stream, ctx *Context) error {
	rctx := ctx.child(true)
	for i, item := range items {
		rctx.set(IndexKey, int64(i))
		if err := sub.Build(item, s, rctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *array) Sizeof(ctx *Context) (int64, error) {
	n, err := sizeFromExpr(a.count, ctx)
	if err != nil {
		return 0, err
	}
	rctx := ctx.child(true)
	rctx.set(IndexKey, int64(0))
	each, err := a.sub.Sizeof(rctx)
	if err != nil {
		return 0, err
	}
	return n * each, nil
}

type rangeRepeat struct {
	meta
	min, max Expr[int64]
	sub      Construct
	greedy   bool
}

// Range repeats sub at least min and at most max times. Parsing stops at the first
// element that fails to parse, rewinding to where that element started.
func Range(min, max Expr[int64], sub Construct) Construct {
	return &rangeRepeat{meta: meta{name: sub.Name()}, min: min, max: max, sub: sub}
}

// GreedyRange repeats sub for as long as it parses, including zero times.
func GreedyRange(sub Construct) Construct {
	return &rangeRepeat{meta: meta{name: sub.Name()}, min: Fixed(0), max: Fixed(math.MaxInt64), sub: sub, greedy: true}
}

func (r *rangeRepeat) bounds(s Stream, ctx *Context) (int64, int64, error) {
	lo, err := evalCount(r.min, KindRepeat, s, ctx)
	if err != nil {
		return 0, 0, err
	}
	hi, err := evalCount(r.max, KindRepeat, s, ctx)
	if err != nil {
		return 0, 0, err
	}
	if lo > hi {
		return 0, 0, newError(KindRepeat, s, "minimum %v exceeds maximum %v", lo, hi)
	}
	return lo, hi, nil
}

func (r *rangeRepeat) Parse(s Stream, ctx *Context) (interface{}, error) {
	lo, hi, err := r.bounds(s, ctx)
	if err != nil {
		return nil, err
	}
	rctx := ctx.child(true)
	out := ListContainer{}
	for i := int64(0); i < hi; i++ {
		rctx.set(IndexKey, i)
		start := s.Tell()
		v, err := r.sub.Parse(s, rctx)
		if err != nil {
			if !IsConstructError(err) {
				return nil, err
			}
			if serr := s.Seek(start); serr != nil {
				return nil, serr
			}
			if int64(len(out)) < lo {
				return nil, wrapError(KindRange, s, err, "expected %v to %v elements, found %v", lo, hi, len(out))
			}
			break
		}
		out = append(out, v)
		if s.Tell() == start && r.greedy {
			break
		}
	}
	return out, nil
}

func (r *rangeRepeat) Build(v interface{}, s Stream, ctx *Context) error {
	lo, hi, err := r.bounds(s, ctx)
	if err != nil {
		return err
	}
	items, ok := asList(v)
	if !ok {
		return newError(KindRange, s, "expected a list, got %T", v)
	}
	if n := int64(len(items)); n < lo || n > hi {
		return newError(KindRange, s, "expected %v to %v elements, found %v", lo, hi, n)
	}
	rctx := ctx.child(true)
	for i, item := range items {
		rctx.set(IndexKey, int64(i))
		if err := r.sub.Build(item, s, rctx); err != nil {
			if isStop(err) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (r *rangeRepeat) Sizeof(ctx *Context) (int64, error) {
	if r.greedy {
		return 0, newError(KindSizeof, nil, "greedy repetition has no fixed size")
	}
	lo, err := sizeFromExpr(r.min, ctx)
	if err != nil {
		return 0, err
	}
	hi, err := sizeFromExpr(r.max, ctx)
	if err != nil {
		return 0, err
	}
	if lo != hi {
		return 0, newError(KindSizeof, nil, "repetition count varies from %v to %v", lo, hi)
	}
	each, err := r.sub.Sizeof(ctx.child(true))
	if err != nil {
		return 0, err
	}
	return lo * each, nil
}

type repeatUntil struct {
	meta
	pred Predicate
	sub  Construct
}

// RepeatUntil repeats sub until pred holds for the element just processed. That
// element is included. Running out of data before pred holds is an array error.
func RepeatUntil(pred Predicate, sub Construct) Construct {
	return &repeatUntil{meta: meta{name: sub.Name()}, pred: pred, sub: sub}
}

func (r *repeatUntil) Parse(s Stream, ctx *Context) (interface{}, error) {
	rctx := ctx.child(true)
	out := ListContainer{}
	for i := int64(0); ; i++ {
		rctx.set(IndexKey, i)
		v, err := r.sub.Parse(s, rctx)
		if err != nil {
			if IsConstructError(err) {
				return nil, wrapError(KindArray, s, err, "missing terminator after %v elements", i)
			}
			return nil, err
		}
		out = append(out, v)
		done, err := r.pred(v, rctx)
		if err != nil {
			return nil, err
		}
		if done {
			return out, nil
		}
	}
}

func (r *repeatUntil) Build(v interface{}, s Stream, ctx *Context) error {
	items, ok := asList(v)
	if !ok {
		return newError(KindArray, s, "expected a list, got %T", v)
	}
	rctx := ctx.child(true)
	for i, item := range items {
		rctx.set(IndexKey, int64(i))
		if err := r.sub.Build(item, s, rctx); err != nil {
			return err
		}
		done, err := r.pred(item, rctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return newError(KindArray, s, "missing terminator in %v elements", len(items))
}

func (r *repeatUntil) Sizeof(ctx *Context) (int64, error) {
	return 0, newError(KindSizeof, nil, "repeat-until has no fixed size")
}

type prefixedArray struct {
	meta
	countField Construct
	sub        Construct
}

// PrefixedArray is a count followed by that many elements.
func PrefixedArray(countField, sub Construct) Construct {
	return &prefixedArray{meta: meta{name: sub.Name()}, countField: countField, sub: sub}
}

func (p *prefixedArray) Parse(s Stream, ctx *Context) (interface{}, error) {
	cv, err := p.countField.Parse(s, ctx)
	if err != nil {
		if IsConstructError(err) {
			return nil, wrapError(KindArray, s, err, "missing element count")
		}
		return nil, err
	}
	n, ok := toInt64(cv)
	if !ok || n < 0 {
		return nil, newError(KindArray, s, "invalid element count %v", cv)
	}
	return parseCount(p.sub, n, s, ctx)
}

func (p *prefixedArray) Build(v interface{}, s Stream, ctx *Context) error {
	items, ok := asList(v)
	if !ok {
		return newError(KindArray, s, "expected a list, got %T", v)
	}
	if err := p.countField.Build(int64(len(items)), s, ctx); err != nil {
		return err
	}
	return buildItems(p.sub, items, s, ctx)
}

func (p *prefixedArray) Sizeof(ctx *Context) (int64, error) {
	return 0, newError(KindSizeof, nil, "prefixed array size depends on its count")
}
