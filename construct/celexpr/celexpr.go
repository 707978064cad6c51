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

// Package celexpr compiles CEL source into context expressions for the construct
// engine. Expressions see the current scope as the map variable this (with the
// enclosing scope under this._) and, for predicates, the element under test as obj.
package celexpr

import (
	"fmt"
	"math"
	"reflect"
	"sync"

	"github.com/amzn/construct-go/construct"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

var env = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("this", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("obj", cel.DynType),
		cel.CrossTypeNumericComparisons(true),
	)
})

// A Program is a compiled expression. It is safe for concurrent use.
type Program struct {
	src string
	prg cel.Program
}

// Compile parses and checks src.
func Compile(src string) (*Program, error) {
	e, err := env()
	if err != nil {
		return nil, err
	}
	ast, iss := e.Compile(src)
	if iss.Err() != nil {
		return nil, fmt.Errorf("celexpr: compiling %q: %w", src, iss.Err())
	}
	prg, err := e.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("celexpr: planning %q: %w", src, err)
	}
	return &Program{src: src, prg: prg}, nil
}

// String returns the source text.
func (p *Program) String() string {
	return p.src
}

// Eval runs the program against ctx, binding obj to the given value.
func (p *Program) Eval(ctx *construct.Context, obj interface{}) (interface{}, error) {
	vars := map[string]interface{}{
		"this": ctx.Map(),
		"obj":  activationValue(obj),
	}
	out, _, err := p.prg.Eval(vars)
	if err != nil {
		return nil, fmt.Errorf("celexpr: evaluating %q: %w", p.src, err)
	}
	return native(out)
}

func activationValue(v interface{}) interface{} {
	if v == nil {
		return types.NullValue
	}
	return construct.Plain(v)
}

func native(v ref.Val) (interface{}, error) {
	switch v.Type() {
	case types.ListType:
		return v.ConvertToNative(reflect.TypeOf([]interface{}{}))
	case types.MapType:
		return v.ConvertToNative(reflect.TypeOf(map[string]interface{}{}))
	case types.NullType:
		return nil, nil
	}
	return v.Value(), nil
}

// Any compiles src into an expression yielding whatever the program returns.
func Any(src string) (construct.Expr[interface{}], error) {
	p, err := Compile(src)
	if err != nil {
		return nil, err
	}
	return func(ctx *construct.Context) (interface{}, error) {
		return p.Eval(ctx, nil)
	}, nil
}

// Int compiles src into an integer expression, for counts, lengths and offsets.
func Int(src string) (construct.Expr[int64], error) {
	p, err := Compile(src)
	if err != nil {
		return nil, err
	}
	return func(ctx *construct.Context) (int64, error) {
		v, err := p.Eval(ctx, nil)
		if err != nil {
			return 0, err
		}
		switch n := v.(type) {
		case int64:
			return n, nil
		case uint64:
			if n > math.MaxInt64 {
				return 0, fmt.Errorf("celexpr: %q: %v overflows int64", src, n)
			}
			return int64(n), nil
		case float64:
			if n == math.Trunc(n) && math.Abs(n) < math.MaxInt64 {
				return int64(n), nil
			}
		}
		return 0, fmt.Errorf("celexpr: %q: %v (%T) is not an integer", src, v, v)
	}, nil
}

// Bool compiles src into a condition.
func Bool(src string) (construct.Expr[bool], error) {
	p, err := Compile(src)
	if err != nil {
		return nil, err
	}
	return func(ctx *construct.Context) (bool, error) {
		return evalBool(p, ctx, nil)
	}, nil
}

func evalBool(p *Program, ctx *construct.Context, obj interface{}) (bool, error) {
	v, err := p.Eval(ctx, obj)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("celexpr: %q: %v (%T) is not a bool", p.src, v, v)
	}
	return b, nil
}

// Bytes compiles src into a byte string expression. String results are taken as
// their UTF-8 encoding.
func Bytes(src string) (construct.Expr[[]byte], error) {
	p, err := Compile(src)
	if err != nil {
		return nil, err
	}
	return func(ctx *construct.Context) ([]byte, error) {
		v, err := p.Eval(ctx, nil)
		if err != nil {
			return nil, err
		}
		switch b := v.(type) {
		case []byte:
			return b, nil
		case string:
			return []byte(b), nil
		}
		return nil, fmt.Errorf("celexpr: %q: %v (%T) is not bytes", src, v, v)
	}, nil
}

// Predicate compiles src into an element predicate, with the element bound to obj.
func Predicate(src string) (construct.Predicate, error) {
	p, err := Compile(src)
	if err != nil {
		return nil, err
	}
	return func(obj interface{}, ctx *construct.Context) (bool, error) {
		return evalBool(p, ctx, obj)
	}, nil
}
