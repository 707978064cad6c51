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

// Package ionvalue converts between parsed construct values and Ion, text or
// binary. Ion text is a superset of JSON, so JSON input reads as well.
package ionvalue

import (
	"bytes"
	"fmt"
	"math/big"
	"time"

	"github.com/amazon-ion/ion-go/ion"
	"github.com/amzn/construct-go/construct"
	"github.com/google/uuid"
)

// Marshal writes v as a single Ion value. Containers keep their field order.
func Marshal(v interface{}, binary bool) ([]byte, error) {
	var buf bytes.Buffer
	var w ion.Writer
	if binary {
		w = ion.NewBinaryWriter(&buf)
	} else {
		w = ion.NewTextWriter(&buf)
	}
	if err := Write(w, v); err != nil {
		return nil, err
	}
	if err := w.Finish(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write writes v to w without finishing it, so several values can share a stream.
func Write(w ion.Writer, v interface{}) error {
	switch t := v.(type) {
	case nil:
		return w.WriteNull()
	case bool:
		return w.WriteBool(t)
	case int:
		return w.WriteInt(int64(t))
	case int8:
		return w.WriteInt(int64(t))
	case int16:
		return w.WriteInt(int64(t))
	case int32:
		return w.WriteInt(int64(t))
	case int64:
		return w.WriteInt(t)
	case uint8:
		return w.WriteInt(int64(t))
	case uint16:
		return w.WriteInt(int64(t))
	case uint32:
		return w.WriteInt(int64(t))
	case uint64:
		return w.WriteBigInt(new(big.Int).SetUint64(t))
	case *big.Int:
		return w.WriteBigInt(t)
	case float32:
		return w.WriteFloat(float64(t))
	case float64:
		return w.WriteFloat(t)
	case string:
		return w.WriteString(t)
	case []byte:
		return w.WriteBlob(t)
	case uuid.UUID:
		return w.WriteString(t.String())
	case time.Time:
		return w.WriteString(t.UTC().Format(time.RFC3339Nano))
	case *construct.Container:
		if err := w.BeginStruct(); err != nil {
			return err
		}
		var err error
		t.Each(func(k string, fv interface{}) bool {
			if err = w.FieldName(ion.NewSymbolTokenFromString(k)); err != nil {
				return false
			}
			err = Write(w, fv)
			return err == nil
		})
		if err != nil {
			return err
		}
		return w.EndStruct()
	case construct.ListContainer:
		return writeList(w, t)
	case []interface{}:
		return writeList(w, t)
	case construct.Keyed:
		return writeList(w, []interface{}{t.Key, t.Value})
	case *construct.LazyContainer:
		inner, err := t.Value()
		if err != nil {
			return err
		}
		return Write(w, inner)
	case *construct.LazyListContainer:
		all, err := t.All()
		if err != nil {
			return err
		}
		return writeList(w, all)
	case fmt.Stringer:
		return w.WriteString(t.String())
	}
	return fmt.Errorf("ionvalue: cannot write %T", v)
}

func writeList(w ion.Writer, items []interface{}) error {
	if err := w.BeginList(); err != nil {
		return err
	}
	for _, item := range items {
		if err := Write(w, item); err != nil {
			return err
		}
	}
	return w.EndList()
}

// Unmarshal reads the first Ion value in data. Structs become Containers, lists
// and s-expressions ListContainers. Integers come back as int64 when they fit,
// then uint64, then *big.Int.
func Unmarshal(data []byte) (interface{}, error) {
	r := ion.NewReaderBytes(data)
	if !r.Next() {
		if err := r.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("ionvalue: no value")
	}
	return read(r)
}

// UnmarshalAll reads every top-level value in data.
func UnmarshalAll(data []byte) ([]interface{}, error) {
	r := ion.NewReaderBytes(data)
	var out []interface{}
	for r.Next() {
		v, err := read(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func read(r ion.Reader) (interface{}, error) {
	if r.IsNull() {
		return nil, nil
	}
	switch r.Type() {
	case ion.BoolType:
		b, err := r.BoolValue()
		if err != nil {
			return nil, err
		}
		return *b, nil
	case ion.IntType:
		n, err := r.BigIntValue()
		if err != nil {
			return nil, err
		}
		switch {
		case n.IsInt64():
			return n.Int64(), nil
		case n.IsUint64():
			return n.Uint64(), nil
		}
		return n, nil
	case ion.FloatType:
		f, err := r.FloatValue()
		if err != nil {
			return nil, err
		}
		return *f, nil
	case ion.StringType:
		s, err := r.StringValue()
		if err != nil {
			return nil, err
		}
		return *s, nil
	case ion.SymbolType:
		tok, err := r.SymbolValue()
		if err != nil {
			return nil, err
		}
		if tok.Text == nil {
			return nil, fmt.Errorf("ionvalue: symbol without text")
		}
		return *tok.Text, nil
	case ion.BlobType, ion.ClobType:
		return r.ByteValue()
	case ion.ListType, ion.SexpType:
		return readList(r)
	case ion.StructType:
		return readStruct(r)
	}
	return nil, fmt.Errorf("ionvalue: unsupported ion type %v", r.Type())
}

func readList(r ion.Reader) (interface{}, error) {
	if err := r.StepIn(); err != nil {
		return nil, err
	}
	out := construct.ListContainer{}
	for r.Next() {
		v, err := read(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, r.StepOut()
}

func readStruct(r ion.Reader) (interface{}, error) {
	if err := r.StepIn(); err != nil {
		return nil, err
	}
	out := construct.NewContainer()
	for r.Next() {
		name, err := r.FieldName()
		if err != nil {
			return nil, err
		}
		if name == nil || name.Text == nil {
			return nil, fmt.Errorf("ionvalue: field without a name")
		}
		v, err := read(r)
		if err != nil {
			return nil, err
		}
		out.Set(*name.Text, v)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, r.StepOut()
}
