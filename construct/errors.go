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
	"strings"
)

// A Kind classifies a construct failure.
type Kind uint8

const (
	// KindUnknown is never produced by the engine itself.
	KindUnknown Kind = iota

	// KindSizeof is used when a size is not statically or contextually determinable.
	KindSizeof

	// KindAdaptation is used when an adapter cannot convert a value.
	KindAdaptation

	// KindArray is used when a fixed-count or predicate-terminated repetition is under-filled.
	KindArray

	// KindRange is used when a bounded repetition falls outside [min, max].
	KindRange

	// KindRepeat is used when a repetition's bounds are negative or inverted.
	KindRepeat

	// KindSwitch is used when no case matches and there is no default.
	KindSwitch

	// KindSelect is used when no alternative parses, or a build selector matches nothing.
	KindSelect

	// KindUnion is used when no union alternative can parse or build.
	KindUnion

	// KindMapping is used when a value is absent from a mapping table.
	KindMapping

	// KindConst is used when a literal does not match.
	KindConst

	// KindPadding is used when padding content or length is wrong.
	KindPadding

	// KindField is used when fewer bytes or bits remain than a field needs.
	KindField

	// KindTerminated is used when trailing bytes remain where the stream must end.
	KindTerminated

	// KindValidation is used when a validator rejects a value.
	KindValidation

	// KindCheck is used when a Check predicate fails.
	KindCheck

	// KindBitInteger is used for bit-packed integer failures.
	KindBitInteger

	// KindRotation is used when a rotation transform is misconfigured or misaligned.
	KindRotation

	// KindFormatField is used when a value cannot be packed into a fixed-width field.
	KindFormatField

	// KindNamedTuple is used when a value cannot be mapped to a named tuple.
	KindNamedTuple

	// KindIndexField is used when an Index field is used outside of a repetition.
	KindIndexField

	// KindStopField signals StopIf; repetitions and structs stop on it.
	KindStopField

	// KindCipher is used when decryption or authentication fails.
	KindCipher

	// KindChecksum is used when a computed checksum does not match the stored one.
	KindChecksum

	// KindStream is used when the underlying stream fails.
	KindStream

	// KindString is used when text cannot be encoded or decoded.
	KindString

	// KindInteger is used when an integer is out of the encodable domain.
	KindInteger

	// KindTimestamp is used when a timestamp cannot be converted.
	KindTimestamp

	// KindTransform is used when a tunnel codec fails to encode or decode.
	KindTransform

	// KindExplicit is raised on purpose by the Error construct.
	KindExplicit
)

var kindNames = [...]string{
	KindUnknown:     "unknown",
	KindSizeof:      "sizeof",
	KindAdaptation:  "adaptation",
	KindArray:       "array",
	KindRange:       "range",
	KindRepeat:      "repeat",
	KindSwitch:      "switch",
	KindSelect:      "select",
	KindUnion:       "union",
	KindMapping:     "mapping",
	KindConst:       "const",
	KindPadding:     "padding",
	KindField:       "field",
	KindTerminated:  "terminated",
	KindValidation:  "validation",
	KindCheck:       "check",
	KindBitInteger:  "bit integer",
	KindRotation:    "rotation",
	KindFormatField: "format field",
	KindNamedTuple:  "named tuple",
	KindIndexField:  "index field",
	KindStopField:   "stop field",
	KindCipher:      "cipher",
	KindChecksum:    "checksum",
	KindStream:      "stream",
	KindString:      "string",
	KindInteger:     "integer",
	KindTimestamp:   "timestamp",
	KindTransform:   "transform",
	KindExplicit:    "explicit",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("<invalid kind %d>", uint8(k))
}

// An Error is returned for every failure the engine itself detects. Errors returned by
// caller-supplied expressions are passed through untouched and are not Errors.
type Error struct {
	Kind   Kind
	Path   string
	Offset int64
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "construct: %v error", e.Kind)
	if e.Path != "" {
		fmt.Fprintf(&b, " in %v", e.Path)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Offset >= 0 {
		fmt.Fprintf(&b, " (offset %v)", e.Offset)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels below, so errors.Is(err, ErrRange) works on any
// RangeError regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Msg != "" || t.Path != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrSizeof      = &Error{Kind: KindSizeof, Offset: -1}
	ErrAdaptation  = &Error{Kind: KindAdaptation, Offset: -1}
	ErrArray       = &Error{Kind: KindArray, Offset: -1}
	ErrRange       = &Error{Kind: KindRange, Offset: -1}
	ErrRepeat      = &Error{Kind: KindRepeat, Offset: -1}
	ErrSwitch      = &Error{Kind: KindSwitch, Offset: -1}
	ErrSelect      = &Error{Kind: KindSelect, Offset: -1}
	ErrUnion       = &Error{Kind: KindUnion, Offset: -1}
	ErrMapping     = &Error{Kind: KindMapping, Offset: -1}
	ErrConst       = &Error{Kind: KindConst, Offset: -1}
	ErrPadding     = &Error{Kind: KindPadding, Offset: -1}
	ErrField       = &Error{Kind: KindField, Offset: -1}
	ErrTerminated  = &Error{Kind: KindTerminated, Offset: -1}
	ErrValidation  = &Error{Kind: KindValidation, Offset: -1}
	ErrCheck       = &Error{Kind: KindCheck, Offset: -1}
	ErrBitInteger  = &Error{Kind: KindBitInteger, Offset: -1}
	ErrRotation    = &Error{Kind: KindRotation, Offset: -1}
	ErrFormatField = &Error{Kind: KindFormatField, Offset: -1}
	ErrNamedTuple  = &Error{Kind: KindNamedTuple, Offset: -1}
	ErrIndexField  = &Error{Kind: KindIndexField, Offset: -1}
	ErrStopField   = &Error{Kind: KindStopField, Offset: -1}
	ErrCipher      = &Error{Kind: KindCipher, Offset: -1}
	ErrChecksum    = &Error{Kind: KindChecksum, Offset: -1}
	ErrStream      = &Error{Kind: KindStream, Offset: -1}
	ErrString      = &Error{Kind: KindString, Offset: -1}
	ErrInteger     = &Error{Kind: KindInteger, Offset: -1}
	ErrTimestamp   = &Error{Kind: KindTimestamp, Offset: -1}
	ErrTransform   = &Error{Kind: KindTransform, Offset: -1}
	ErrExplicit    = &Error{Kind: KindExplicit, Offset: -1}
)

// IsConstructError reports whether err (or anything it wraps) is an *Error. Select,
// Optional and Range only recover from these; anything else is fatal.
func IsConstructError(err error) bool {
	var cerr *Error
	return errors.As(err, &cerr)
}

// KindOf returns the kind of the outermost *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return KindUnknown
}

// newError builds an Error positioned at the stream's current offset. s may be nil.
func newError(kind Kind, s Stream, format string, args ...interface{}) *Error {
	off := int64(-1)
	if s != nil {
		off = s.Tell()
	}
	return &Error{Kind: kind, Offset: off, Msg: fmt.Sprintf(format, args...)}
}

// wrapError builds an Error of the given kind around a cause.
func wrapError(kind Kind, s Stream, cause error, format string, args ...interface{}) *Error {
	e := newError(kind, s, format, args...)
	e.Err = cause
	return e
}

// withPath prefixes the field name to an Error's path. Other errors pass through.
func withPath(err error, name string) error {
	if err == nil || name == "" {
		return err
	}
	cerr, ok := err.(*Error)
	if !ok {
		return err
	}
	cp := *cerr
	if cp.Path == "" {
		cp.Path = name
	} else {
		cp.Path = name + "." + cp.Path
	}
	return &cp
}
