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

// Package logging configures the process-wide slog logger from the environment.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const (
	EnvLogLevel  = "CONSTRUCT_LOG_LEVEL"
	EnvLogFormat = "CONSTRUCT_LOG_FORMAT"
)

// LevelOff is above every level slog emits.
const LevelOff = slog.Level(16)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Config is what New needs to build a logger.
type Config struct {
	Level  slog.Level
	JSON   bool
	Output io.Writer
}

var configureOnce sync.Once

func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

func ConfigureTests() {
	Configure(ProfileTest)
}

// Configure installs the default logger for profile, once per process. Later calls
// do nothing.
func Configure(profile Profile) {
	configureOnce.Do(func() {
		cfg := DefaultConfig(profile)
		applyEnvOverrides(&cfg)
		slog.SetDefault(New(cfg))
	})
}

func DefaultConfig(profile Profile) Config {
	cfg := Config{Output: os.Stderr}
	switch profile {
	case ProfileTest:
		cfg.Level = slog.LevelDebug
	default:
		cfg.Level = slog.LevelWarn
	}
	return cfg
}

// New returns a logger writing to cfg.Output.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}

func applyEnvOverrides(cfg *Config) {
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if json, ok := parseFormat(os.Getenv(EnvLogFormat)); ok {
		cfg.JSON = json
	}
}

func parseLevel(raw string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return slog.LevelInfo, false
	case "debug", "trace":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	case "off", "none", "disabled":
		return LevelOff, true
	default:
		return slog.LevelInfo, false
	}
}

func parseFormat(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "json":
		return true, true
	case "text", "logfmt":
		return false, true
	}
	return false, false
}
