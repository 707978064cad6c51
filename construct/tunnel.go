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
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"hash/crc32"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

type tunnel struct {
	Subconstruct
	codec Codec
}

// Tunnel decodes everything from the current position to the end of the stream with
// codec and parses sub from the result. Delimit the region with Prefixed or
// FixedSized when more data follows.
func Tunnel(codec Codec, sub Construct) Construct {
	return &tunnel{Subconstruct: Subconstruct{sub}, codec: codec}
}

// Compressed is Tunnel for a compression codec.
func Compressed(sub Construct, codec Codec) Construct {
	return Tunnel(codec, sub)
}

// CompressedLZ4 is Compressed with the LZ4 frame codec.
func CompressedLZ4(sub Construct) Construct {
	return Tunnel(LZ4Codec, sub)
}

func (t *tunnel) Parse(s Stream, ctx *Context) (interface{}, error) {
	data, err := readRest(s)
	if err != nil {
		return nil, err
	}
	dec, err := t.codec.Decode(data)
	if err != nil {
		return nil, wrapError(KindTransform, s, err, "%v decode", t.codec.Name())
	}
	return t.Sub.Parse(NewBytesStream(dec), ctx)
}

func (t *tunnel) Build(v interface{}, s Stream, ctx *Context) error {
	buf := &Buffer{}
	if err := t.Sub.Build(v, buf, ctx); err != nil {
		return err
	}
	enc, err := t.codec.Encode(buf.Bytes())
	if err != nil {
		return wrapError(KindTransform, s, err, "%v encode", t.codec.Name())
	}
	return s.Write(enc)
}

func (t *tunnel) Sizeof(ctx *Context) (int64, error) {
	return 0, newError(KindSizeof, nil, "%v tunnel size depends on data", t.codec.Name())
}

type tunnelAdapter struct {
	Subconstruct
	framing Construct
}

// TunnelAdapter parses raw bytes with framing, then parses sub from those bytes.
// framing must yield (and accept) a byte string.
func TunnelAdapter(framing, sub Construct) Construct {
	return &tunnelAdapter{Subconstruct: Subconstruct{sub}, framing: framing}
}

func (t *tunnelAdapter) Parse(s Stream, ctx *Context) (interface{}, error) {
	raw, err := t.framing.Parse(s, ctx)
	if err != nil {
		return nil, err
	}
	data, ok := asBytes(raw)
	if !ok {
		return nil, newError(KindTransform, s, "framing produced %T, not bytes", raw)
	}
	return t.Sub.Parse(NewBytesStream(data), ctx)
}

func (t *tunnelAdapter) Build(v interface{}, s Stream, ctx *Context) error {
	buf := &Buffer{}
	if err := t.Sub.Build(v, buf, ctx); err != nil {
		return err
	}
	return t.framing.Build(buf.Bytes(), s, ctx)
}

func (t *tunnelAdapter) Sizeof(ctx *Context) (int64, error) {
	return t.framing.Sizeof(ctx)
}

type prefixed struct {
	Subconstruct
	lengthField Construct
}

// Prefixed confines sub to a region whose byte length precedes it.
func Prefixed(lengthField, sub Construct) Construct {
	return &prefixed{Subconstruct: Subconstruct{sub}, lengthField: lengthField}
}

func (p *prefixed) Parse(s Stream, ctx *Context) (interface{}, error) {
	lv, err := p.lengthField.Parse(s, ctx)
	if err != nil {
		return nil, err
	}
	n, ok := toInt64(lv)
	if !ok || n < 0 {
		return nil, newError(KindField, s, "invalid length %v", lv)
	}
	data, err := s.Read(n)
	if err != nil {
		return nil, err
	}
	return p.Sub.Parse(NewBytesStream(data), ctx)
}

func (p *prefixed) Build(v interface{}, s Stream, ctx *Context) error {
	buf := &Buffer{}
	if err := p.Sub.Build(v, buf, ctx); err != nil {
		return err
	}
	if err := p.lengthField.Build(int64(len(buf.Bytes())), s, ctx); err != nil {
		return err
	}
	return s.Write(buf.Bytes())
}

func (p *prefixed) Sizeof(ctx *Context) (int64, error) {
	ln, err := p.lengthField.Sizeof(ctx)
	if err != nil {
		return 0, err
	}
	n, err := p.Sub.Sizeof(ctx)
	if err != nil {
		return 0, err
	}
	return ln + n, nil
}

type fixedSized struct {
	Subconstruct
	length Expr[int64]
}

// FixedSized confines sub to exactly length bytes, zero-padding on build.
func FixedSized(length Expr[int64], sub Construct) Construct {
	return &fixedSized{Subconstruct: Subconstruct{sub}, length: length}
}

func (f *fixedSized) Parse(s Stream, ctx *Context) (interface{}, error) {
	n, err := evalCount(f.length, KindField, s, ctx)
	if err != nil {
		return nil, err
	}
	data, err := s.Read(n)
	if err != nil {
		return nil, err
	}
	return f.Sub.Parse(NewBytesStream(data), ctx)
}

func (f *fixedSized) Build(v interface{}, s Stream, ctx *Context) error {
	n, err := evalCount(f.length, KindField, s, ctx)
	if err != nil {
		return err
	}
	buf := &Buffer{}
	if err := f.Sub.Build(v, buf, ctx); err != nil {
		return err
	}
	data := buf.Bytes()
	if int64(len(data)) > n {
		return newError(KindPadding, s, "%v bytes do not fit in %v", len(data), n)
	}
	return s.Write(append(data, make([]byte, n-int64(len(data)))...))
}

func (f *fixedSized) Sizeof(ctx *Context) (int64, error) {
	return sizeFromExpr(f.length, ctx)
}

type nullTerminated struct {
	Subconstruct
	term    []byte
	include bool
	consume bool
}

// NullTerminated confines sub to the bytes before term. include keeps the
// terminator in sub's region; consume skips past it afterwards.
func NullTerminated(sub Construct, term []byte, include, consume bool) Construct {
	if len(term) == 0 {
		term = []byte{0}
	}
	return &nullTerminated{Subconstruct: Subconstruct{sub}, term: term, include: include, consume: consume}
}

func (n *nullTerminated) Parse(s Stream, ctx *Context) (interface{}, error) {
	unit := int64(len(n.term))
	var data []byte
	for {
		u, err := s.Read(unit)
		if err != nil {
			return nil, wrapError(KindField, s, err, "terminator %x not found", n.term)
		}
		if bytes.Equal(u, n.term) {
			break
		}
		data = append(data, u...)
	}
	if n.include {
		data = append(data, n.term...)
	}
	if !n.consume {
		if err := s.Seek(s.Tell() - unit); err != nil {
			return nil, err
		}
	}
	return n.Sub.Parse(NewBytesStream(data), ctx)
}

func (n *nullTerminated) Build(v interface{}, s Stream, ctx *Context) error {
	buf := &Buffer{}
	if err := n.Sub.Build(v, buf, ctx); err != nil {
		return err
	}
	if err := s.Write(buf.Bytes()); err != nil {
		return err
	}
	if n.include {
		return nil
	}
	return s.Write(n.term)
}

func (n *nullTerminated) Sizeof(ctx *Context) (int64, error) {
	return 0, newError(KindSizeof, nil, "null-terminated size depends on data")
}

type rawCopy struct {
	Subconstruct
}

// RawCopy parses sub and also returns the bytes it covered, as a Container with
// data, value, offset1, offset2 and length. Building writes data when present and
// builds value otherwise.
func RawCopy(sub Construct) Construct {
	return &rawCopy{Subconstruct{sub}}
}

func (r *rawCopy) Parse(s Stream, ctx *Context) (interface{}, error) {
	start := s.Tell()
	v, err := r.Sub.Parse(s, ctx)
	if err != nil {
		return nil, err
	}
	end := s.Tell()
	var data []byte
	err = restoring(s, func() error {
		if err := s.Seek(start); err != nil {
			return err
		}
		var rerr error
		data, rerr = s.Read(end - start)
		return rerr
	})
	if err != nil {
		return nil, err
	}
	return NewContainer().
		Set("data", data).
		Set("value", v).
		Set("offset1", start).
		Set("offset2", end).
		Set("length", end-start), nil
}

func (r *rawCopy) Build(v interface{}, s Stream, ctx *Context) error {
	obj, err := asContainer(v, s)
	if err != nil {
		return err
	}
	if raw, ok := obj.Get("data"); ok && raw != nil {
		data, ok := asBytes(raw)
		if !ok {
			return newError(KindAdaptation, s, "raw data is %T, not bytes", raw)
		}
		return s.Write(data)
	}
	value, _ := obj.Get("value")
	return r.Sub.Build(value, s, ctx)
}

// A HashFunc computes a checksum value over data.
type HashFunc func(data []byte) interface{}

// CRC32 is the IEEE CRC-32, as an int64.
func CRC32(data []byte) interface{} {
	return int64(crc32.ChecksumIEEE(data))
}

// SHA256 is the SHA-256 digest, as 32 bytes.
func SHA256(data []byte) interface{} {
	sum := sha256.Sum256(data)
	return sum[:]
}

type checksum struct {
	Subconstruct
	hash HashFunc
	data Expr[[]byte]
}

// Checksum stores hash(data) in checksumField. Parsing verifies it; building
// computes it, ignoring any supplied value.
func Checksum(checksumField Construct, hash HashFunc, data Expr[[]byte]) Construct {
	return &checksum{Subconstruct: Subconstruct{checksumField}, hash: hash, data: data}
}

func (c *checksum) compute(ctx *Context) (interface{}, error) {
	data, err := c.data(ctx)
	if err != nil {
		return nil, err
	}
	return c.hash(data), nil
}

func (c *checksum) Parse(s Stream, ctx *Context) (interface{}, error) {
	stored, err := c.Sub.Parse(s, ctx)
	if err != nil {
		return nil, err
	}
	want, err := c.compute(ctx)
	if err != nil {
		return nil, err
	}
	if !Equal(stored, want) {
		return nil, newError(KindChecksum, s, "stored %x, computed %x", stored, want)
	}
	return stored, nil
}

func (c *checksum) Build(v interface{}, s Stream, ctx *Context) error {
	sum, err := c.compute(ctx)
	if err != nil {
		return err
	}
	return c.Sub.Build(sum, s, ctx)
}

func (c *checksum) buildValue(v interface{}, s Stream, ctx *Context) (interface{}, error) {
	return c.compute(ctx)
}

type encrypted struct {
	Subconstruct
	key Expr[[]byte]
}

// EncryptedSym seals sub's encoding with ChaCha20-Poly1305 under a 32-byte key. The
// region is a random nonce followed by the ciphertext and tag, and runs to the end
// of the stream.
func EncryptedSym(sub Construct, key Expr[[]byte]) Construct {
	return &encrypted{Subconstruct: Subconstruct{sub}, key: key}
}

// DeriveKey stretches a passphrase into an EncryptedSym key with Argon2id.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, chacha20poly1305.KeySize)
}

func (e *encrypted) Parse(s Stream, ctx *Context) (interface{}, error) {
	key, err := e.key(ctx)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, wrapError(KindCipher, s, err, "invalid key")
	}
	data, err := readRest(s)
	if err != nil {
		return nil, err
	}
	if len(data) < aead.NonceSize()+aead.Overhead() {
		return nil, newError(KindCipher, s, "%v bytes is too short for a sealed message", len(data))
	}
	nonce, sealed := data[:aead.NonceSize()], data[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, wrapError(KindCipher, s, err, "cannot open")
	}
	return e.Sub.Parse(NewBytesStream(plain), ctx)
}

func (e *encrypted) Build(v interface{}, s Stream, ctx *Context) error {
	key, err := e.key(ctx)
	if err != nil {
		return err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return wrapError(KindCipher, s, err, "invalid key")
	}
	buf := &Buffer{}
	if err := e.Sub.Build(v, buf, ctx); err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(buf.Bytes())+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return wrapError(KindCipher, s, err, "nonce")
	}
	return s.Write(aead.Seal(nonce, nonce, buf.Bytes(), nil))
}

func (e *encrypted) Sizeof(ctx *Context) (int64, error) {
	n, err := e.Sub.Sizeof(ctx)
	if err != nil {
		return 0, err
	}
	return n + chacha20poly1305.NonceSize + chacha20poly1305.Overhead, nil
}

type processed struct {
	Subconstruct
	decode func(data []byte, s Stream, ctx *Context) ([]byte, error)
	encode func(data []byte, s Stream, ctx *Context) ([]byte, error)
}

func (p *processed) Parse(s Stream, ctx *Context) (interface{}, error) {
	data, err := readRest(s)
	if err != nil {
		return nil, err
	}
	out, err := p.decode(data, s, ctx)
	if err != nil {
		return nil, err
	}
	return p.Sub.Parse(NewBytesStream(out), ctx)
}

func (p *processed) Build(v interface{}, s Stream, ctx *Context) error {
	buf := &Buffer{}
	if err := p.Sub.Build(v, buf, ctx); err != nil {
		return err
	}
	out, err := p.encode(buf.Bytes(), s, ctx)
	if err != nil {
		return err
	}
	return s.Write(out)
}

// ProcessXor xors the rest of the stream with a repeating key before sub sees it.
func ProcessXor(key Expr[[]byte], sub Construct) Construct {
	xor := func(data []byte, s Stream, ctx *Context) ([]byte, error) {
		k, err := key(ctx)
		if err != nil {
			return nil, err
		}
		if len(k) == 0 {
			return nil, newError(KindTransform, s, "empty xor key")
		}
		out := make([]byte, len(data))
		for i, b := range data {
			out[i] = b ^ k[i%len(k)]
		}
		return out, nil
	}
	return &processed{Subconstruct: Subconstruct{sub}, decode: xor, encode: xor}
}

// ProcessRotateLeft rotates every group of bytes left by amount bits on parse, and
// right on build. The data must be a whole number of groups.
func ProcessRotateLeft(amount, group int, sub Construct) Construct {
	rotate := func(left bool) func([]byte, Stream, *Context) ([]byte, error) {
		return func(data []byte, s Stream, _ *Context) ([]byte, error) {
			if group <= 0 || amount < 0 {
				return nil, newError(KindRotation, s, "invalid rotation of %v bits over %v-byte groups", amount, group)
			}
			if len(data)%group != 0 {
				return nil, newError(KindRotation, s, "%v bytes is not a multiple of the %v-byte group", len(data), group)
			}
			width := group * 8
			shift := amount % width
			if !left {
				shift = (width - shift) % width
			}
			out := make([]byte, 0, len(data))
			for i := 0; i < len(data); i += group {
				bits := bytesToBits(data[i : i+group])
				rotated := append(append([]byte{}, bits[shift:]...), bits[:shift]...)
				out = append(out, bitsToBytes(rotated)...)
			}
			return out, nil
		}
	}
	return &processed{Subconstruct: Subconstruct{sub}, decode: rotate(true), encode: rotate(false)}
}
