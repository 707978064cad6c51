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
	"math"
	"math/big"
)

// bytesToBits expands each byte into eight 0/1 bytes, most significant first.
func bytesToBits(b []byte) []byte {
	out := make([]byte, len(b)*8)
	for i, v := range b {
		for j := 0; j < 8; j++ {
			out[i*8+j] = (v >> uint(7-j)) & 1
		}
	}
	return out
}

// bitsToBytes packs 0/1 bytes back into bytes. len(bits) must be a multiple of 8.
func bitsToBytes(bits []byte) []byte {
	out := make([]byte, len(bits)/8)
	for i := range out {
		var v byte
		for j := 0; j < 8; j++ {
			v = v<<1 | bits[i*8+j]&1
		}
		out[i] = v
	}
	return out
}

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

// swapChunks reverses the order of size-unit chunks, keeping each chunk intact.
func swapChunks(b []byte, size int) ([]byte, error) {
	if size <= 0 || len(b)%size != 0 {
		return nil, fmt.Errorf("%v units cannot be split into chunks of %v", len(b), size)
	}
	out := make([]byte, 0, len(b))
	for i := len(b) - size; i >= 0; i -= size {
		out = append(out, b[i:i+size]...)
	}
	return out, nil
}

// decodeUint reads an unsigned big-endian magnitude from digits of the given radix
// width (8 for bytes, 1 for bits).
func decodeUint(digits []byte, width uint) *big.Int {
	v := new(big.Int)
	for _, d := range digits {
		v.Lsh(v, width)
		v.Or(v, big.NewInt(int64(d)))
	}
	return v
}

// encodeUint writes v as n big-endian digits of the given width. The caller has
// checked that v fits.
func encodeUint(v *big.Int, n int64, width uint) []byte {
	out := make([]byte, n)
	mask := big.NewInt(int64(1)<<width - 1)
	t := new(big.Int).Set(v)
	d := new(big.Int)
	for i := n - 1; i >= 0; i-- {
		d.And(t, mask)
		out[i] = byte(d.Int64())
		t.Rsh(t, width)
	}
	return out
}

// decodeInteger turns n-digit big-endian data into an engine integer value.
func decodeInteger(digits []byte, width uint, signed bool) interface{} {
	bits := uint(len(digits)) * width
	v := decodeUint(digits, width)
	if signed && bits > 0 && v.Bit(int(bits-1)) == 1 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), bits))
	}
	switch {
	case bits > 64:
		return v
	case signed || bits < 64:
		return v.Int64()
	default:
		return v.Uint64()
	}
}

// encodeInteger validates that v fits in n digits of the given width and encodes it.
func encodeInteger(v *big.Int, n int64, width uint, signed bool) ([]byte, error) {
	bits := uint(n) * width
	lo, hi := integerBounds(bits, signed)
	if v.Cmp(lo) < 0 || v.Cmp(hi) > 0 {
		return nil, fmt.Errorf("%v out of range for %v-bit %v integer", v, bits, signedness(signed))
	}
	u := new(big.Int).Set(v)
	if u.Sign() < 0 {
		u.Add(u, new(big.Int).Lsh(big.NewInt(1), bits))
	}
	return encodeUint(u, n, width), nil
}

func integerBounds(bits uint, signed bool) (*big.Int, *big.Int) {
	if bits == 0 {
		return big.NewInt(0), big.NewInt(0)
	}
	if signed {
		hi := new(big.Int).Lsh(big.NewInt(1), bits-1)
		lo := new(big.Int).Neg(hi)
		return lo, hi.Sub(hi, big.NewInt(1))
	}
	hi := new(big.Int).Lsh(big.NewInt(1), bits)
	return big.NewInt(0), hi.Sub(hi, big.NewInt(1))
}

func signedness(signed bool) string {
	if signed {
		return "signed"
	}
	return "unsigned"
}

// packVarUint encodes v as a little-endian base-128 varint: seven bits per byte,
// high bit set on every byte but the last.
func packVarUint(v uint64) []byte {
	var buf [10]byte

	i := 0
	for v >= 0x80 {
		buf[i] = byte(v&0x7F) | 0x80
		v >>= 7
		i++
	}
	buf[i] = byte(v)

	return buf[:i+1]
}

func zigzagEncode(v int64) uint64 {
	return uint64(v<<1) ^ uint64(v>>63)
}

func zigzagDecode(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}

// toBigInt coerces any Go integer (or an integral float) to a big.Int.
func toBigInt(v interface{}) (*big.Int, bool) {
	switch n := v.(type) {
	case int:
		return big.NewInt(int64(n)), true
	case int8:
		return big.NewInt(int64(n)), true
	case int16:
		return big.NewInt(int64(n)), true
	case int32:
		return big.NewInt(int64(n)), true
	case int64:
		return big.NewInt(n), true
	case uint:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint8:
		return big.NewInt(int64(n)), true
	case uint16:
		return big.NewInt(int64(n)), true
	case uint32:
		return big.NewInt(int64(n)), true
	case uint64:
		return new(big.Int).SetUint64(n), true
	case *big.Int:
		if n == nil {
			return nil, false
		}
		return new(big.Int).Set(n), true
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			b, _ := big.NewFloat(n).Int(nil)
			return b, true
		}
	case float32:
		f := float64(n)
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			b, _ := big.NewFloat(f).Int(nil)
			return b, true
		}
	case bool:
		if n {
			return big.NewInt(1), true
		}
		return big.NewInt(0), true
	}
	return nil, false
}

// toInt64 coerces any Go integer that fits in an int64.
func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	b, ok := toBigInt(v)
	if !ok || !b.IsInt64() {
		return 0, false
	}
	return b.Int64(), true
}

// toFloat64 coerces any Go number.
func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	b, ok := toBigInt(v)
	if !ok {
		return 0, false
	}
	f, _ := new(big.Float).SetInt(b).Float64()
	return f, true
}
