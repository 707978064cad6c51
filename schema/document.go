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

// Package schema reads declarative format descriptions from YAML or TOML and
// compiles them into construct graphs.
package schema

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// A Format is a schema file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatOf guesses a file's format from its extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("schema: cannot tell the format of %q", path)
}

// A Document is a whole schema: the root fields plus named types they may refer to.
type Document struct {
	Name   string           `yaml:"name" toml:"name"`
	Endian string           `yaml:"endian" toml:"endian"`
	Root   []Field          `yaml:"root" toml:"root"`
	Types  map[string]Field `yaml:"types" toml:"types"`
}

// An Expr is CEL source evaluated against the enclosing scope, bound as this. A
// plain integer is accepted wherever an expression is.
type Expr string

// UnmarshalTOML accepts strings and integers.
func (e *Expr) UnmarshalTOML(v interface{}) error {
	switch t := v.(type) {
	case string:
		*e = Expr(t)
	case int64:
		*e = Expr(strconv.FormatInt(t, 10))
	default:
		return fmt.Errorf("expected an expression, got %T", v)
	}
	return nil
}

// A Field describes one construct. Which attributes apply depends on Type.
type Field struct {
	Name   string `yaml:"name" toml:"name"`
	Type   string `yaml:"type" toml:"type"`
	Endian string `yaml:"endian" toml:"endian"`

	// Sizes and counts.
	Length  Expr `yaml:"length" toml:"length"`
	Count   Expr `yaml:"count" toml:"count"`
	Min     Expr `yaml:"min" toml:"min"`
	Max     Expr `yaml:"max" toml:"max"`
	Offset  Expr `yaml:"offset" toml:"offset"`
	Bits    int  `yaml:"bits" toml:"bits"`
	Signed  bool `yaml:"signed" toml:"signed"`
	Modulus int  `yaml:"modulus" toml:"modulus"`

	// Length prefix for strings, arrays and prefixed regions, as a type name.
	Prefix   string `yaml:"prefix" toml:"prefix"`
	Encoding string `yaml:"encoding" toml:"encoding"`
	Greedy   bool   `yaml:"greedy" toml:"greedy"`

	// Nested constructs.
	Fields []Field `yaml:"fields" toml:"fields"`
	Of     *Field  `yaml:"of" toml:"of"`

	// Branching.
	On      Expr             `yaml:"on" toml:"on"`
	Cases   map[string]Field `yaml:"cases" toml:"cases"`
	Default *Field           `yaml:"default" toml:"default"`
	If      Expr             `yaml:"if" toml:"if"`
	Then    *Field           `yaml:"then" toml:"then"`
	Else    *Field           `yaml:"else" toml:"else"`
	Until   Expr             `yaml:"until" toml:"until"`

	// Values.
	Values map[string]int64 `yaml:"values" toml:"values"`
	Value  interface{}      `yaml:"value" toml:"value"`
	Expr   Expr             `yaml:"expr" toml:"expr"`

	// Tunnels.
	Codec string `yaml:"codec" toml:"codec"`
	Hash  string `yaml:"hash" toml:"hash"`
	Data  Expr   `yaml:"data" toml:"data"`
}

// Load reads a schema file, choosing the syntax from its extension.
func Load(path string) (*Document, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: reading %s: %w", path, err)
	}
	doc, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("schema: %s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes a schema document.
func Parse(data []byte, format Format) (*Document, error) {
	doc := &Document{}
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(doc); err != nil {
			return nil, fmt.Errorf("decoding yaml: %w", err)
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), doc)
		if err != nil {
			return nil, fmt.Errorf("decoding toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("decoding toml: unknown key %s", undecoded[0])
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	return doc, nil
}
