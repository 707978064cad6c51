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
	"log/slog"
	"sort"

	"github.com/elliotchance/orderedmap/v3"
)

// ParentKey names the enclosing scope in Lookup paths and in Map snapshots.
const ParentKey = "_"

// IndexKey holds the current element index inside a repetition.
const IndexKey = "_index"

// A Context is the scope of already-decoded (or about-to-be-encoded) sibling values a
// construct can consult. Contexts chain outward; lookups walk from the innermost scope
// to the root. A child never writes into its ancestors.
type Context struct {
	parent      *Context
	vals        *orderedmap.OrderedMap[string, interface{}]
	logger      *slog.Logger
	transparent bool

	// embedding is set while an enclosing Struct or Sequence runs an embedded
	// member; the first composite to see it shares this scope instead of
	// opening its own.
	embedding bool
	seq       *seqCursor
}

// scope returns the scope a Struct or Sequence should bind into: this one when it
// is being embedded, otherwise a fresh child.
func (c *Context) scope() (*Context, bool) {
	if c.embedding {
		c.embedding = false
		return c, true
	}
	return c.child(false), false
}

// embed runs fn with the embedding marker set on c.
func (c *Context) embed(seq *seqCursor, fn func() error) error {
	saved := c.seq
	c.embedding, c.seq = true, seq
	defer func() {
		c.embedding, c.seq = false, saved
	}()
	return fn()
}

// NewContext returns a root context seeded with params. Constructs usually receive
// one from Parse or Build; this is for evaluating expressions on their own.
func NewContext(params map[string]interface{}) *Context {
	c := &Context{
		vals:   orderedmap.NewOrderedMap[string, interface{}](),
		logger: discardLogger,
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		c.vals.Set(k, params[k])
	}
	return c
}

// child opens a nested scope. Repetitions open transparent scopes, which hold the
// element index but are skipped by Parent.
func (c *Context) child(transparent bool) *Context {
	return &Context{
		parent:      c,
		vals:        orderedmap.NewOrderedMap[string, interface{}](),
		logger:      c.logger,
		transparent: transparent,
	}
}

func (c *Context) set(name string, v interface{}) {
	if name == "" {
		return
	}
	c.vals.Set(name, v)
}

// Get resolves name in this scope, then in each enclosing scope in turn.
func (c *Context) Get(name string) (interface{}, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		if v, ok := cur.vals.Get(name); ok {
			return v, true
		}
	}
	return nil, false
}

// Lookup resolves a dotted path. ParentKey steps to the enclosing scope; the first
// other element is resolved with Get and the rest index into nested containers.
func (c *Context) Lookup(path ...string) (interface{}, error) {
	cur := c
	i := 0
	for ; i < len(path) && path[i] == ParentKey; i++ {
		if cur.Parent() == nil {
			return nil, fmt.Errorf("construct: context has no parent scope for %q", joinPath(path))
		}
		cur = cur.Parent()
	}
	if i == len(path) {
		return cur.Map(), nil
	}
	v, ok := cur.Get(path[i])
	if !ok {
		return nil, fmt.Errorf("construct: name %q not found in context", joinPath(path))
	}
	for _, name := range path[i+1:] {
		switch nv := v.(type) {
		case *Container:
			v, ok = nv.Get(name)
		case map[string]interface{}:
			v, ok = nv[name]
		case *LazyContainer:
			inner, err := nv.Value()
			if err != nil {
				return nil, err
			}
			c, isc := inner.(*Container)
			if !isc {
				ok = false
				break
			}
			v, ok = c.Get(name)
		default:
			ok = false
		}
		if !ok {
			return nil, fmt.Errorf("construct: name %q not found in context", joinPath(path))
		}
	}
	return v, nil
}

func joinPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += "."
		}
		out += p
	}
	return out
}

// Parent returns the enclosing structural scope, or nil at the root.
func (c *Context) Parent() *Context {
	p := c.parent
	for p != nil && p.transparent {
		p = p.parent
	}
	return p
}

// Root returns the outermost scope.
func (c *Context) Root() *Context {
	cur := c
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

// Keys returns the names bound directly in this scope, in binding order.
func (c *Context) Keys() []string {
	keys := make([]string, 0, c.vals.Len())
	for k := range c.vals.Keys() {
		keys = append(keys, k)
	}
	return keys
}

// Logger returns the logger supplied to Parse or Build.
func (c *Context) Logger() *slog.Logger {
	return c.logger
}

// Map snapshots every name visible from this scope into plain maps and slices, with
// the enclosing scope under ParentKey. It is the shape expression engines evaluate
// against.
func (c *Context) Map() map[string]interface{} {
	out := map[string]interface{}{}
	var chain []*Context
	for cur := c; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].vals.AllFromFront() {
			out[k] = Plain(v)
		}
	}
	if p := c.Parent(); p != nil {
		out[ParentKey] = p.Map()
	}
	return out
}

// Plain converts containers, lists and keyed pairs, recursively, into plain maps
// and slices. Lazy values are materialized first; one that fails to parse is left
// as it is. Other values are returned as they are.
func Plain(v interface{}) interface{} {
	switch t := v.(type) {
	case *LazyContainer:
		inner, err := t.Value()
		if err != nil {
			return v
		}
		return Plain(inner)
	case *LazyListContainer:
		all, err := t.All()
		if err != nil {
			return v
		}
		return plainList(all)
	case *Container:
		m := make(map[string]interface{}, t.Len())
		t.Each(func(k string, fv interface{}) bool {
			m[k] = Plain(fv)
			return true
		})
		return m
	case ListContainer:
		return plainList(t)
	case []interface{}:
		return plainList(t)
	case Keyed:
		return []interface{}{Plain(t.Key), Plain(t.Value)}
	}
	return v
}

func plainList(l []interface{}) []interface{} {
	out := make([]interface{}, len(l))
	for i, e := range l {
		out[i] = Plain(e)
	}
	return out
}
