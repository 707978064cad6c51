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

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/amazon-ion/ion-go/ion"
	"github.com/amzn/construct-go/construct"
)

type errortype uint8

const (
	read errortype = iota
	write
	parse
	build
	state
)

func (e errortype) String() string {
	switch e {
	case read:
		return "READ"
	case write:
		return "WRITE"
	case parse:
		return "PARSE"
	case build:
		return "BUILD"
	case state:
		return "STATE"
	default:
		panic(fmt.Sprintf("unknown errortype %d", e))
	}
}

func (e errortype) MarshalIon(w ion.Writer) error {
	return w.WriteSymbolFromString(e.String())
}

// errordescription describes an error during processing.
type errordescription struct {
	ErrorType errortype `ion:"error_type"`
	Kind      string    `ion:"kind,omitempty"`
	Path      string    `ion:"path,omitempty"`
	Message   string    `ion:"message"`
	Location  string    `ion:"location"`
	Index     int       `ion:"value_index"`
	Offset    int64     `ion:"offset"`
}

func describe(typ errortype, err error, loc string, idx int) errordescription {
	d := errordescription{ErrorType: typ, Message: err.Error(), Location: loc, Index: idx, Offset: -1}
	var cerr *construct.Error
	if errors.As(err, &cerr) {
		d.Kind = cerr.Kind.String()
		d.Path = cerr.Path
		d.Offset = cerr.Offset
	}
	return d
}

// OpenInput opens an input file.
func OpenInput(in string) (io.ReadCloser, error) {
	return os.Open(in)
}

type uncloseable struct {
	w io.Writer
}

func (u uncloseable) Write(bs []byte) (int, error) {
	return u.w.Write(bs)
}

func (u uncloseable) Close() error {
	return nil
}

// OpenOutput opens the output stream.
func OpenOutput(outf string) (io.WriteCloser, error) {
	if outf == "" {
		return uncloseable{os.Stdout}, nil
	}
	return os.OpenFile(outf, os.O_RDWR|os.O_TRUNC|os.O_CREATE, 0644)
}

// OpenError opens the error stream.
func OpenError(errf string) (io.WriteCloser, error) {
	if errf == "" {
		return uncloseable{os.Stderr}, nil
	}
	return os.OpenFile(errf, os.O_RDWR|os.O_TRUNC|os.O_CREATE, 0644)
}

// ErrorReport is a (serialized) report of errors that occur during processing.
type ErrorReport struct {
	w *ion.Encoder
}

// NewErrorReport creates a new ErrorReport.
func NewErrorReport(w io.Writer) *ErrorReport {
	return &ErrorReport{
		w: ion.NewTextEncoder(w),
	}
}

// Append appends an error to this report.
func (r *ErrorReport) Append(d errordescription) error {
	return r.w.Encode(d)
}

// Finish finishes writing this report.
func (r *ErrorReport) Finish() error {
	return r.w.Finish()
}
