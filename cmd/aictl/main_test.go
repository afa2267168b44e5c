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

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axonflow/aiservice/bootstrap"
	"axonflow/aiservice/usage"
)

// fakeOpenAI answers chat and embedding requests and keeps the last body.
type fakeOpenAI struct {
	mu   sync.Mutex
	last map[string]any
}

func (f *fakeOpenAI) lastBody() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *fakeOpenAI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	f.last = body
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/v1/embeddings":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "text-embedding-3-small",
			"data":  []map[string]any{{"index": 0, "embedding": []float64{0.1, 0.2}}},
			"usage": map[string]any{"prompt_tokens": 3, "total_tokens": 3},
		})
	default:
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":   "gpt-4o-mini-2024-07-18",
			"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": "Hello!"}, "finish_reason": "stop"}},
			"usage":   map[string]any{"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16},
		})
	}
}

func writeConfig(t *testing.T, baseURI string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ai.yaml")
	content := fmt.Sprintf(`default_provider: openai
providers:
  openai:
    type: openai
    api_key: sk-test
    base_uri: %s
logging:
  enabled: true
  channel: stdout
  level: info
`, baseURI)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

type cliResult struct {
	stdout string
	stderr string
	err    error
}

func execute(opts bootstrap.Options, stdin string, args ...string) cliResult {
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(opts)
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func setup(t *testing.T) (*fakeOpenAI, string) {
	t.Helper()
	fake := &fakeOpenAI{}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	return fake, writeConfig(t, server.URL)
}

func TestGenerate(t *testing.T) {
	fake, path := setup(t)
	store := usage.NewMemoryStore()

	res := execute(bootstrap.Options{UsageStore: store}, "", "--config", path, "--temperature", "0.2", "generate", "Say", "hello")
	require.NoError(t, res.err)
	assert.Equal(t, "Hello!\n", res.stdout)
	assert.Contains(t, res.stderr, "AI request completed")

	body := fake.lastBody()
	assert.Equal(t, 0.2, body["temperature"])
	assert.NotContains(t, body, "max_tokens")

	records, err := store.Query(context.Background(), usage.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "aictl", records[0].CallerID)
	assert.Equal(t, "Say hello", records[0].Prompt)
	assert.Equal(t, "aictl", records[0].Metadata["source"])
}

func TestGenerate_Stdin(t *testing.T) {
	fake, path := setup(t)

	res := execute(bootstrap.Options{}, "  Explain retries\n", "--config", path, "--model", "gpt-4o", "generate")
	require.NoError(t, res.err)
	assert.Equal(t, "Hello!\n", res.stdout)
	assert.Equal(t, "gpt-4o", fake.lastBody()["model"])
}

func TestEmbed(t *testing.T) {
	_, path := setup(t)

	res := execute(bootstrap.Options{}, "", "--config", path, "embed", "hello")
	require.NoError(t, res.err)

	var vectors [][]float64
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &vectors))
	assert.Equal(t, [][]float64{{0.1, 0.2}}, vectors)
}

func TestClassify_RequiresCategories(t *testing.T) {
	_, path := setup(t)

	res := execute(bootstrap.Options{}, "", "--config", path, "classify", "text")
	assert.EqualError(t, res.err, "--categories is required")
}

func TestUnknownProvider(t *testing.T) {
	_, path := setup(t)

	res := execute(bootstrap.Options{}, "", "--config", path, "--provider", "nope", "generate", "hi")
	assert.Error(t, res.err)
}

func TestProviders(t *testing.T) {
	_, path := setup(t)

	res := execute(bootstrap.Options{}, "", "--config", path, "providers")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "* openai")
}

func TestMetricsFlag(t *testing.T) {
	_, path := setup(t)

	res := execute(bootstrap.Options{}, "", "--config", path, "--metrics", "generate", "hi")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, `axonflow_ai_provider_attempts_total{operation="generate_text",provider="openai",status="success"} 1`)
}

func TestUsageSummaryAndList(t *testing.T) {
	_, path := setup(t)
	store := usage.NewMemoryStore()
	opts := bootstrap.Options{UsageStore: store}

	for i := 0; i < 2; i++ {
		require.NoError(t, execute(opts, "", "--config", path, "generate", "hi").err)
	}

	res := execute(opts, "", "--config", path, "usage", "summary", "--since", "1h", "--status", "success")
	require.NoError(t, res.err)
	var summary usage.Summary
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &summary))
	assert.Equal(t, int64(2), summary.Requests)
	assert.Equal(t, int64(32), summary.TotalTokens)
	assert.Equal(t, 16.0, summary.AvgTokensPerRequest)

	res = execute(opts, "", "--config", path, "usage", "list", "--limit", "1")
	require.NoError(t, res.err)
	var records []usage.Record
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &records))
	assert.Len(t, records, 1)

	res = execute(opts, "", "--config", path, "usage", "summary", "--status", "maybe")
	assert.Error(t, res.err)
}

func TestUsage_StorageDisabled(t *testing.T) {
	_, path := setup(t)

	res := execute(bootstrap.Options{}, "", "--config", path, "usage", "summary")
	assert.ErrorIs(t, res.err, errStorageDisabled)
}

func TestUsagePurge(t *testing.T) {
	_, path := setup(t)
	store := usage.NewMemoryStore()
	now := time.Now().UTC()
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, &usage.Record{ID: "old", CreatedAt: now.AddDate(0, 0, -40)}))
	require.NoError(t, store.Append(ctx, &usage.Record{ID: "recent", CreatedAt: now.AddDate(0, 0, -3)}))
	opts := bootstrap.Options{UsageStore: store}

	res := execute(opts, "", "--config", path, "usage", "purge")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Purged 1 records")

	res = execute(opts, "", "--config", path, "usage", "purge", "--days", "1")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Purged 1 records")

	records, err := store.Query(ctx, usage.Filter{})
	require.NoError(t, err)
	assert.Empty(t, records)

	res = execute(opts, "", "--config", path, "usage", "purge", "--days", "0")
	assert.Error(t, res.err)
}

func TestConfigCommands(t *testing.T) {
	res := execute(bootstrap.Options{}, "", "config", "example")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "providers:")

	_, path := setup(t)
	res = execute(bootstrap.Options{}, "", "config", "validate", path)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "is valid")

	res = execute(bootstrap.Options{}, "", "config", "validate", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, res.err)
}

func TestParseTime(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	got, err := parseTime("", now)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	got, err = parseTime("24h", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-24*time.Hour), got)

	got, err = parseTime("2025-01-02", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), got)

	_, err = parseTime("yesterday", now)
	assert.Error(t, err)
}
