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

package bootstrap

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axonflow/aiservice/config"
	"axonflow/aiservice/llm"
	"axonflow/aiservice/usage"
)

// openAIServer answers chat completions and counts requests.
func openAIServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":   "gpt-4o-mini-2024-07-18",
			"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": "Hello!"}, "finish_reason": "stop"}},
			"usage":   map[string]any{"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16},
		})
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func baseConfig(baseURI string) *config.Config {
	cfg := config.Default()
	cfg.Providers["openai"] = llm.ProviderConfig{Name: "openai", Type: llm.ProviderTypeOpenAI, APIKey: "sk-test", BaseURI: baseURI}
	return cfg
}

func TestBuild_EndToEnd(t *testing.T) {
	server, hits := openAIServer(t)
	cfg := baseConfig(server.URL)
	cfg.Cache.Enabled = true
	cfg.Metrics.Enabled = true

	var logs bytes.Buffer
	store := usage.NewMemoryStore()
	res, err := Build(context.Background(), cfg, Options{
		Registerer: prometheus.NewRegistry(),
		LogOutput:  &logs,
		UsageStore: store,
	})
	require.NoError(t, err)
	defer res.Close()

	for i := 0; i < 2; i++ {
		out, err := res.Service.Caller("tests").GenerateText(context.Background(), "Say hello", nil)
		require.NoError(t, err)
		assert.Equal(t, "Hello!", out)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))

	records, err := res.Usage.Query(context.Background(), usage.Filter{CallerID: "tests"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "gpt-4o-mini-2024-07-18", records[0].Model)
	assert.Equal(t, 16, records[0].TotalTokens)

	assert.Contains(t, logs.String(), "AI service ready")
	assert.Contains(t, logs.String(), "AI request completed")
}

func TestBuild_NilConfig(t *testing.T) {
	_, err := Build(context.Background(), nil, Options{})
	assert.Error(t, err)
}

func TestBuild_DefaultProviderFailure(t *testing.T) {
	cfg := config.Default()
	cfg.DefaultProvider = "anthropic"
	cfg.Providers["anthropic"] = llm.ProviderConfig{Name: "anthropic"}

	_, err := Build(context.Background(), cfg, Options{LogOutput: &bytes.Buffer{}})
	assert.Error(t, err)
}

func TestBuild_SkipsFailedFallbackProviders(t *testing.T) {
	server, _ := openAIServer(t)
	cfg := baseConfig(server.URL)
	cfg.Providers["gemini"] = llm.ProviderConfig{Name: "gemini"}
	cfg.Fallback = config.FallbackConfig{Enabled: true, Providers: []string{"gemini"}}

	var logs bytes.Buffer
	res, err := Build(context.Background(), cfg, Options{LogOutput: &logs})
	require.NoError(t, err)
	defer res.Close()

	assert.Contains(t, res.ProvidersFailed, "gemini")
	assert.Empty(t, res.Service.FallbackProviders())
	assert.Equal(t, []string{"openai"}, res.Registry.List())
	assert.Contains(t, logs.String(), "Skipping fallback provider")
}

func TestBuild_PostgresStorage(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS ai_usage_logs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	server, _ := openAIServer(t)
	cfg := baseConfig(server.URL)
	cfg.Storage = config.StorageConfig{Enabled: true, DatabaseURL: "postgres://ai@localhost/ai"}

	var openedURL string
	res, err := Build(context.Background(), cfg, Options{
		LogOutput: &bytes.Buffer{},
		OpenDB: func(url string) (*sql.DB, error) {
			openedURL = url
			return db, nil
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "postgres://ai@localhost/ai", openedURL)
	assert.IsType(t, &usage.PostgresStore{}, res.Usage)
	require.NoError(t, res.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuild_PostgresSchemaFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectExec("CREATE TABLE").WillReturnError(sql.ErrConnDone)
	mock.ExpectClose()

	server, _ := openAIServer(t)
	cfg := baseConfig(server.URL)
	cfg.Storage = config.StorageConfig{Enabled: true, DatabaseURL: "postgres://x"}

	_, err = Build(context.Background(), cfg, Options{
		LogOutput: &bytes.Buffer{},
		OpenDB:    func(string) (*sql.DB, error) { return db, nil },
	})
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuild_CacheDrivers(t *testing.T) {
	mr := miniredis.RunT(t)
	server, hits := openAIServer(t)

	tests := []struct {
		name  string
		cache config.CacheConfig
	}{
		{"memory", config.CacheConfig{Enabled: true, Driver: config.CacheDriverMemory}},
		{"redis", config.CacheConfig{Enabled: true, Driver: config.CacheDriverRedis, RedisURL: "redis://" + mr.Addr()}},
		{"badger", config.CacheConfig{Enabled: true, Driver: config.CacheDriverBadger}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			atomic.StoreInt32(hits, 0)
			mr.FlushAll()
			cfg := baseConfig(server.URL)
			cfg.Cache = tt.cache

			res, err := Build(context.Background(), cfg, Options{LogOutput: &bytes.Buffer{}})
			require.NoError(t, err)
			defer res.Close()

			for i := 0; i < 3; i++ {
				_, err := res.Service.GenerateText(context.Background(), "cache me", nil)
				require.NoError(t, err)
			}
			assert.Equal(t, int32(1), atomic.LoadInt32(hits))
		})
	}
}

func TestBuild_RedisUnavailable(t *testing.T) {
	server, _ := openAIServer(t)
	cfg := baseConfig(server.URL)
	cfg.Cache = config.CacheConfig{Enabled: true, Driver: config.CacheDriverRedis, RedisURL: "not-a-url"}

	_, err := Build(context.Background(), cfg, Options{LogOutput: &bytes.Buffer{}})
	assert.Error(t, err)
}

func TestBuild_FailedAttemptRecordsRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	t.Cleanup(server.Close)

	store := usage.NewMemoryStore()
	res, err := Build(context.Background(), baseConfig(server.URL), Options{
		LogOutput:  &bytes.Buffer{},
		UsageStore: store,
	})
	require.NoError(t, err)
	defer res.Close()

	_, err = res.Service.GenerateText(context.Background(), "Say hello", nil)
	require.Error(t, err)

	records, err := store.Query(context.Background(), usage.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, usage.StatusError, records[0].Status)

	var req map[string]any
	require.NoError(t, json.Unmarshal(records[0].RequestData, &req))
	assert.Equal(t, "gpt-4o-mini", req["model"])
	assert.Empty(t, records[0].ResponseData)
}
