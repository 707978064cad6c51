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
	"context"
	"log/slog"
)

type probe struct {
	meta
	label string
}

// Probe logs the stream position and the names in scope, at debug level, through
// the logger given to WithLogger. It is anonymous and reads and writes nothing.
func Probe(label string) Construct {
	return &probe{label: label}
}

func (p *probe) log(dir string, s Stream, ctx *Context) {
	l := ctx.Logger()
	if !l.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	l.Debug("probe",
		slog.String("probe", p.label),
		slog.String("direction", dir),
		slog.Int64("offset", s.Tell()),
		slog.Any("keys", ctx.Keys()))
}

func (p *probe) Parse(s Stream, ctx *Context) (interface{}, error) {
	p.log("parse", s, ctx)
	return nil, nil
}

func (p *probe) Build(v interface{}, s Stream, ctx *Context) error {
	p.log("build", s, ctx)
	return nil
}

func (p *probe) Sizeof(ctx *Context) (int64, error) {
	return 0, nil
}
