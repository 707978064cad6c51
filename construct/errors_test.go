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
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	test := func(err *Error, expected string) {
		t.Run(expected, func(t *testing.T) {
			assert.Equal(t, expected, err.Error())
		})
	}

	test(&Error{Kind: KindRange, Offset: -1}, "construct: range error")
	test(&Error{Kind: KindRange, Path: "hdr.items", Offset: 3, Msg: "expected 3 to 5 elements, found 2"},
		"construct: range error in hdr.items: expected 3 to 5 elements, found 2 (offset 3)")
	test(&Error{Kind: KindTransform, Offset: 0, Msg: "zlib decode", Err: errors.New("unexpected EOF")},
		"construct: transform error: zlib decode: unexpected EOF (offset 0)")
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "bit integer", KindBitInteger.String())
	assert.Equal(t, "explicit", KindExplicit.String())
	assert.Equal(t, "<invalid kind 200>", Kind(200).String())
}

func TestErrorIs(t *testing.T) {
	err := newError(KindRange, nil, "bad")
	assert.True(t, errors.Is(err, ErrRange))
	assert.False(t, errors.Is(err, ErrArray))

	wrapped := fmt.Errorf("reading header: %w", err)
	assert.True(t, errors.Is(wrapped, ErrRange))
	assert.True(t, IsConstructError(wrapped))
	assert.Equal(t, KindRange, KindOf(wrapped))

	// A repetition failure keeps its cause reachable.
	outer := wrapError(KindArray, nil, newError(KindField, nil, "short"), "expected 3 elements")
	assert.True(t, errors.Is(outer, ErrArray))
	assert.True(t, errors.Is(outer, ErrField))
	assert.Equal(t, KindArray, KindOf(outer))

	plain := errors.New("boom")
	assert.False(t, IsConstructError(plain))
	assert.Equal(t, KindUnknown, KindOf(plain))
}

func TestWithPath(t *testing.T) {
	base := newError(KindField, nil, "short")
	inner := withPath(base, "b")
	outer := withPath(inner, "a")

	var cerr *Error
	require.True(t, errors.As(outer, &cerr))
	assert.Equal(t, "a.b", cerr.Path)
	assert.Equal(t, "", base.Path, "withPath must not modify its argument")

	plain := errors.New("boom")
	assert.Same(t, plain, withPath(plain, "a"))
	assert.Nil(t, withPath(nil, "a"))
}

func TestErrorPathFromParse(t *testing.T) {
	_, err := Parse(Struct("hdr", UBInt8("a"), Struct("inner", UBInt16("b"))), []byte{1, 2})

	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, KindField, cerr.Kind)
	assert.Equal(t, "hdr.inner.b", cerr.Path)
	assert.Equal(t, int64(1), cerr.Offset)
}
