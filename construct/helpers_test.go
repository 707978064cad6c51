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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var containerComparer = cmp.Comparer(func(a, b *Container) bool {
	return a.Equal(b)
})

// cont builds a Container from alternating names and values.
func cont(kv ...interface{}) *Container {
	c := NewContainer()
	for i := 0; i+1 < len(kv); i += 2 {
		c.Set(kv[i].(string), kv[i+1])
	}
	return c
}

func list(vs ...interface{}) ListContainer {
	return ListContainer(vs)
}

func assertValue(t *testing.T, expected, actual interface{}) {
	t.Helper()
	assert.True(t, Equal(expected, actual), "expected %v (%T), got %v (%T)", expected, expected, actual, actual)
}

func assertKind(t *testing.T, kind Kind, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, KindOf(err), "unexpected error: %v", err)
}

// roundTrip parses data, checks the value, then builds the value back into data.
func roundTrip(t *testing.T, c Construct, data []byte, expected interface{}, opts ...Option) {
	t.Helper()
	v, err := Parse(c, data, opts...)
	require.NoError(t, err)
	assertValue(t, expected, v)

	out, err := Build(c, expected, opts...)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}
