// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	return entry
}

func TestNew(t *testing.T) {
	t.Setenv("INSTANCE_ID", "instance-123")
	l := New("service")
	assert.Equal(t, "service", l.Component)
	assert.Equal(t, "instance-123", l.InstanceID)
	assert.NotEmpty(t, l.Container)

	t.Setenv("INSTANCE_ID", "")
	assert.Equal(t, "unknown", New("service").InstanceID)
}

func TestLogEntryFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New("service", WithOutput(&buf))

	l.Info("caller-1", "req-1", "provider failed over", map[string]interface{}{"from": "openai"})

	entry := decodeLine(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "service", entry["component"])
	assert.Equal(t, "caller-1", entry["client_id"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "provider failed over", entry["message"])
	assert.NotEmpty(t, entry["timestamp"])
	assert.Equal(t, map[string]interface{}{"from": "openai"}, entry["fields"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New("service", WithOutput(&buf), WithLevel("warn"))

	l.Debug("c", "", "hidden", nil)
	l.Info("c", "", "hidden", nil)
	assert.Zero(t, buf.Len())

	l.Warn("c", "", "shown", nil)
	entry := decodeLine(t, &buf)
	assert.Equal(t, "warn", entry["level"])
	assert.NotContains(t, entry, "request_id")
	assert.NotContains(t, entry, "fields")
}

func TestErrorWithCode(t *testing.T) {
	var buf bytes.Buffer
	l := New("service", WithOutput(&buf))

	l.ErrorWithCode("c", "r", "upstream failed", 503, errors.New("overloaded"), nil)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "error", entry["level"])
	fields := entry["fields"].(map[string]interface{})
	assert.Equal(t, float64(503), fields["status_code"])
	assert.Equal(t, "overloaded", fields["error"])
}

func TestInfoWithDuration(t *testing.T) {
	var buf bytes.Buffer
	New("service", WithOutput(&buf)).InfoWithDuration("c", "r", "done", 12.5, nil)

	fields := decodeLine(t, &buf)["fields"].(map[string]interface{})
	assert.Equal(t, 12.5, fields["duration_ms"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "debug", ParseLevel("DEBUG").String())
	assert.Equal(t, "warn", ParseLevel("warning").String())
	assert.Equal(t, "info", ParseLevel("bogus").String())
}

func TestOpenChannel(t *testing.T) {
	w, closeFn, err := OpenChannel("stderr")
	require.NoError(t, err)
	assert.Equal(t, os.Stderr, w)
	assert.NoError(t, closeFn())

	path := filepath.Join(t.TempDir(), "ai.log")
	w, closeFn, err = OpenChannel(path)
	require.NoError(t, err)
	New("service", WithOutput(w)).Info("c", "r", "to file", nil)
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"to file"`)
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().Error("c", "r", "dropped", nil)
	})
}
