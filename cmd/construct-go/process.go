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
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/amazon-ion/ion-go/ion"
	"github.com/amzn/construct-go/construct"
	"github.com/amzn/construct-go/internal/ionvalue"
	"github.com/amzn/construct-go/schema"
)

type command uint8

const (
	parseCommand command = iota
	buildCommand
	sizeofCommand
)

// process runs cmd over the inputs named in args, or stdin when there are none.
func process(cmd command, args []string) error {
	p, err := newProcessor(cmd, args)
	if err != nil {
		return err
	}
	return p.run(os.Stdin)
}

type processor struct {
	cmd  command
	infs []string
	outf string
	errf string

	schemaf string
	typ     string
	format  string
	params  map[string]interface{}

	root construct.Construct
	log  *slog.Logger
	err  *ErrorReport
	loc  string
	idx  int
}

func newProcessor(cmd command, args []string) (*processor, error) {
	ret := &processor{cmd: cmd, params: map[string]interface{}{}, log: slog.Default()}

	i := 0
	for ; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			break
		}
		if arg == "-" || arg == "--" {
			i++
			break
		}

		i++
		if i >= len(args) {
			return nil, fmt.Errorf("option %v needs a value", arg)
		}
		val := args[i]

		switch arg {
		case "-s", "--schema":
			ret.schemaf = val

		case "-t", "--type":
			ret.typ = val

		case "-o", "--output":
			ret.outf = val

		case "-f", "--output-format":
			ret.format = val

		case "-e", "--error-report":
			ret.errf = val

		case "-p", "--param":
			name, value, ok := strings.Cut(val, "=")
			if !ok || name == "" {
				return nil, errors.New("malformed parameter \"" + val + "\", expected name=value")
			}
			ret.params[name] = paramValue(value)

		default:
			return nil, errors.New("unrecognized option \"" + arg + "\"")
		}
	}

	if ret.schemaf == "" {
		return nil, errors.New("no schema file specified")
	}

	// Any remaining args are input files.
	ret.infs = append(ret.infs, args[i:]...)

	return ret, nil
}

// paramValue reads integers as integers and leaves everything else a string.
func paramValue(s string) interface{} {
	if n, err := strconv.ParseInt(s, 0, 64); err == nil {
		return n
	}
	return s
}

func (p *processor) options() []construct.Option {
	return []construct.Option{construct.WithLogger(p.log), construct.WithParams(p.params)}
}

func (p *processor) load() error {
	doc, err := schema.Load(p.schemaf)
	if err != nil {
		return err
	}
	s, err := schema.Compile(doc)
	if err != nil {
		return fmt.Errorf("compiling %s: %w", p.schemaf, err)
	}
	p.root = s.Root
	if p.typ != "" {
		c, ok := s.Type(p.typ)
		if !ok {
			return fmt.Errorf("schema %s has no type %q (it has %v)", p.schemaf, p.typ, s.Types())
		}
		p.root = c
	}
	return nil
}

func (p *processor) run(stdin io.Reader) (deferredErr error) {
	if err := p.load(); err != nil {
		return err
	}

	outf, err := OpenOutput(p.outf)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := outf.Close(); deferredErr == nil {
			deferredErr = closeErr
		}
	}()

	errf, err := OpenError(p.errf)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := errf.Close(); deferredErr == nil {
			deferredErr = closeErr
		}
	}()

	p.err = NewErrorReport(errf)
	defer func() {
		if finishErr := p.err.Finish(); deferredErr == nil {
			deferredErr = finishErr
		}
	}()

	switch p.cmd {
	case sizeofCommand:
		n, err := construct.Sizeof(p.root, p.options()...)
		if err != nil {
			return p.error(state, err)
		}
		_, err = fmt.Fprintln(outf, n)
		return err

	case parseCommand:
		var w ion.Writer
		switch p.format {
		case "", "pretty":
			w = ion.NewTextWriterOpts(outf, ion.TextWriterPretty)
		case "text":
			w = ion.NewTextWriter(outf)
		case "binary":
			w = ion.NewBinaryWriter(outf)
		default:
			return errors.New("unrecognized output format \"" + p.format + "\"")
		}
		if err := p.each(stdin, func(data []byte) error { return p.parse(w, data) }); err != nil {
			return err
		}
		if err := w.Finish(); err != nil {
			return p.error(write, err)
		}
		return nil

	case buildCommand:
		return p.each(stdin, func(data []byte) error { return p.build(outf, data) })
	}
	return fmt.Errorf("unknown command %v", p.cmd)
}

// each hands the full contents of every input to fn.
func (p *processor) each(stdin io.Reader, fn func([]byte) error) error {
	if len(p.infs) == 0 {
		p.loc = "stdin"
		data, err := io.ReadAll(stdin)
		if err != nil {
			return p.error(read, err)
		}
		return fn(data)
	}
	for _, inf := range p.infs {
		if err := p.processFile(inf, fn); err != nil {
			return err
		}
	}
	return nil
}

func (p *processor) processFile(in string, fn func([]byte) error) (err error) {
	f, err := OpenInput(in)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()

	p.loc = in
	data, err := io.ReadAll(f)
	if err != nil {
		return p.error(read, err)
	}
	return fn(data)
}

func (p *processor) parse(w ion.Writer, data []byte) error {
	p.log.Debug("parsing input", "location", p.loc, "bytes", len(data))
	v, err := construct.Parse(p.root, data, p.options()...)
	if err != nil {
		return p.error(parse, err)
	}
	if err := ionvalue.Write(w, v); err != nil {
		return p.error(write, err)
	}
	p.idx++
	return nil
}

func (p *processor) build(out io.Writer, data []byte) error {
	values, err := ionvalue.UnmarshalAll(data)
	if err != nil {
		return p.error(read, err)
	}
	for _, v := range values {
		p.log.Debug("building value", "location", p.loc, "index", p.idx)
		b, err := construct.Build(p.root, v, p.options()...)
		if err != nil {
			return p.error(build, err)
		}
		if _, err := out.Write(b); err != nil {
			return p.error(write, err)
		}
		p.idx++
	}
	return nil
}

// error records err in the report and hands it back to stop processing.
func (p *processor) error(typ errortype, err error) error {
	if rerr := p.err.Append(describe(typ, err, p.loc, p.idx)); rerr != nil {
		p.log.Error("writing error report", "error", rerr)
	}
	return err
}
