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
)

// An Expr is a value computed from the context at the moment it is needed, never at
// schema construction time. Errors from an Expr are returned to the caller as is.
type Expr[T any] func(ctx *Context) (T, error)

// Value returns an Expr that always yields v.
func Value[T any](v T) Expr[T] {
	return func(*Context) (T, error) {
		return v, nil
	}
}

// Fixed is Value for lengths and counts.
func Fixed(n int64) Expr[int64] {
	return Value(n)
}

// Func lifts an infallible function of the context into an Expr.
func Func[T any](fn func(ctx *Context) T) Expr[T] {
	return func(ctx *Context) (T, error) {
		return fn(ctx), nil
	}
}

// This looks up a context path (see Context.Lookup) and converts the result to T.
// Integer results convert between Go integer types when the value fits.
func This[T any](path ...string) Expr[T] {
	return func(ctx *Context) (T, error) {
		v, err := ctx.Lookup(path...)
		if err != nil {
			var zero T
			return zero, err
		}
		return convertTo[T](v)
	}
}

// Len looks up a context path and yields the length of the byte string, string, list
// or container found there. It is the usual expression for a Rebuild length prefix.
func Len(path ...string) Expr[int64] {
	return func(ctx *Context) (int64, error) {
		v, err := ctx.Lookup(path...)
		if err != nil {
			return 0, err
		}
		if lc, ok := v.(*LazyContainer); ok {
			if v, err = lc.Value(); err != nil {
				return 0, err
			}
		}
		switch t := v.(type) {
		case []byte:
			return int64(len(t)), nil
		case string:
			return int64(len(t)), nil
		case ListContainer:
			return int64(len(t)), nil
		case []interface{}:
			return int64(len(t)), nil
		case *Container:
			return int64(t.Len()), nil
		case *LazyListContainer:
			return int64(t.Len()), nil
		}
		return 0, fmt.Errorf("construct: %T value at %q has no length", v, joinPath(path))
	}
}

func convertTo[T any](v interface{}) (T, error) {
	var out T
	if t, ok := v.(T); ok {
		return t, nil
	}
	if lc, ok := v.(*LazyContainer); ok {
		inner, err := lc.Value()
		if err != nil {
			return out, err
		}
		return convertTo[T](inner)
	}
	switch p := interface{}(&out).(type) {
	case *interface{}:
		*p = v
		return out, nil
	case *int64:
		if n, ok := toInt64(v); ok {
			*p = n
			return out, nil
		}
	case *int:
		if n, ok := toInt64(v); ok {
			*p = int(n)
			return out, nil
		}
	case *uint64:
		if b, ok := toBigInt(v); ok && b.IsUint64() {
			*p = b.Uint64()
			return out, nil
		}
	case *float64:
		if f, ok := toFloat64(v); ok {
			*p = f
			return out, nil
		}
	case *bool:
		if n, ok := toInt64(v); ok {
			*p = n != 0
			return out, nil
		}
	case *[]byte:
		if s, ok := v.(string); ok {
			*p = []byte(s)
			return out, nil
		}
	case *string:
		if b, ok := v.([]byte); ok {
			*p = string(b)
			return out, nil
		}
	}
	return out, fmt.Errorf("construct: cannot use %T value %v as %T", v, v, out)
}

// evalCount evaluates a length or count and rejects negative results.
func evalCount(e Expr[int64], kind Kind, s Stream, ctx *Context) (int64, error) {
	n, err := e(ctx)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, newError(kind, s, "negative count %v", n)
	}
	return n, nil
}
