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

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw      string
		expected slog.Level
		ok       bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, true},
		{" INFO ", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"off", LevelOff, true},
		{"loud", slog.LevelInfo, false},
	}
	for _, test := range tests {
		t.Run(test.raw, func(t *testing.T) {
			lvl, ok := parseLevel(test.raw)
			assert.Equal(t, test.ok, ok)
			assert.Equal(t, test.expected, lvl)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")

	cfg := DefaultConfig(ProfileRuntime)
	assert.Equal(t, slog.LevelWarn, cfg.Level)
	applyEnvOverrides(&cfg)
	assert.Equal(t, slog.LevelError, cfg.Level)
	assert.True(t, cfg.JSON)

	t.Setenv(EnvLogLevel, "nonsense")
	t.Setenv(EnvLogFormat, "xml")
	cfg = DefaultConfig(ProfileTest)
	applyEnvOverrides(&cfg)
	assert.Equal(t, slog.LevelDebug, cfg.Level)
	assert.False(t, cfg.JSON)
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, JSON: true, Output: &buf})
	log.Debug("hidden")
	log.Info("parsed", "offset", 4)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "parsed", rec["msg"])
	assert.Equal(t, float64(4), rec["offset"])

	buf.Reset()
	New(Config{Level: LevelOff, Output: &buf}).Error("dropped")
	assert.Empty(t, buf.String())
}
