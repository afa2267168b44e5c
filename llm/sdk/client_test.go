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

package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axonflow/aiservice/llm"
)

// =============================================================================
// Auth
// =============================================================================

func TestAuthProviders(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "https://example.com/v1/x?a=1", nil)

	require.NoError(t, NewBearerTokenAuth("tok").Apply(req))
	assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))

	require.NoError(t, NewAPIKeyAuthWithHeader("k1", "x-api-key").Apply(req))
	assert.Equal(t, "k1", req.Header.Get("x-api-key"))

	require.NoError(t, NewAPIKeyAuthWithQuery("k2", "key").Apply(req))
	assert.Equal(t, "k2", req.URL.Query().Get("key"))
	assert.Equal(t, "1", req.URL.Query().Get("a"))

	require.NoError(t, NewHeaderAuth("anthropic-version", "2023-06-01").Apply(req))
	assert.Equal(t, "2023-06-01", req.Header.Get("anthropic-version"))
}

func TestAuthProviders_EmptyValuesNotSent(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "https://example.com", nil)

	chain := NewChainedAuth(
		NewBearerTokenAuth(""),
		NewAPIKeyAuthWithHeader("", "x-api-key"),
		NewHeaderAuth("OpenAI-Organization", ""),
		NoAuth{},
	)
	require.NoError(t, chain.Apply(req))
	assert.Empty(t, req.Header.Get("Authorization"))
	assert.Empty(t, req.Header.Get("x-api-key"))
	assert.Empty(t, req.Header.Get("OpenAI-Organization"))
}

// =============================================================================
// Client
// =============================================================================

func TestClient_PostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/echo", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "yes", r.Header.Get("X-Extra"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"echo": body["msg"]})
	}))
	defer server.Close()

	c := NewClient("test", server.URL+"/", WithAuth(NewBearerTokenAuth("secret")), WithHeader("X-Extra", "yes"))

	ctx, trace := llm.WithTrace(context.Background())
	var out struct {
		Echo string `json:"echo"`
	}
	err := c.PostJSON(ctx, "/v1/echo", "m", map[string]any{"msg": "hi"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "hi", out.Echo)

	req, resp := trace.Payloads()
	assert.JSONEq(t, `{"msg":"hi"}`, string(req.(json.RawMessage)))
	assert.JSONEq(t, `{"echo":"hi"}`, string(resp.(json.RawMessage)))
}

func TestClient_StatusMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached"}}`))
	}))
	defer server.Close()

	c := NewClient("openai", server.URL)
	err := c.PostJSON(context.Background(), "/x", "gpt-4o", map[string]any{}, nil)

	pe, ok := llm.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, llm.KindRateLimitExceeded, pe.Kind)
	assert.Equal(t, "openai", pe.Provider)
	assert.Equal(t, "gpt-4o", pe.Model)
	assert.Equal(t, 2*time.Second, pe.RetryAfter())
	assert.Equal(t, "Rate limit reached", pe.Message)
}

func TestClient_FailedRequestKeepsRequestPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream exploded"}}`))
	}))
	defer server.Close()

	c := NewClient("openai", server.URL)
	ctx, trace := llm.WithTrace(context.Background())
	err := c.PostJSON(ctx, "/v1/chat/completions", "gpt-4o", map[string]any{"prompt": "hi"}, nil)
	assert.True(t, llm.IsKind(err, llm.KindServiceUnavailable))

	req, resp := trace.Payloads()
	require.NotNil(t, req)
	assert.JSONEq(t, `{"prompt":"hi"}`, string(req.(json.RawMessage)))
	assert.Nil(t, resp)
}

func TestClient_DecodeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	c := NewClient("p", server.URL)
	var out map[string]any
	err := c.PostJSON(context.Background(), "/x", "", map[string]any{}, &out)
	assert.True(t, llm.IsKind(err, llm.KindAPIError))
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	c := NewClient("slow", server.URL, WithTimeout(50*time.Millisecond))
	_, err := c.Post(context.Background(), "/x", "m", map[string]any{})
	assert.True(t, llm.IsKind(err, llm.KindServiceUnavailable), "got %v", err)
}

type failingTransport struct{}

func (failingTransport) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestClient_TransportFailure(t *testing.T) {
	c := NewClient("p", "http://unused", WithHTTPClient(failingTransport{}))
	_, err := c.Post(context.Background(), "/x", "m", map[string]any{})

	pe, ok := llm.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, llm.KindAPIError, pe.Kind)
	assert.Contains(t, pe.Message, "connection refused")
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	retry := DefaultRetryConfig(3)
	retry.InitialBackoff = time.Millisecond
	retry.Jitter = 0
	c := NewClient("p", server.URL, WithRetry(retry))

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, c.PostJSON(context.Background(), "/x", "", map[string]any{}, &out))
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_DoesNotRetryPermanentFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	retry := DefaultRetryConfig(3)
	retry.InitialBackoff = time.Millisecond
	c := NewClient("p", server.URL, WithRetry(retry))

	_, err := c.Post(context.Background(), "/x", "", map[string]any{})
	assert.True(t, llm.IsKind(err, llm.KindAuthenticationFailed))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOptionsFromConfig(t *testing.T) {
	c := NewClient("p", "http://x", OptionsFromConfig(llm.ProviderConfig{
		TimeoutSeconds: 5,
		Settings:       map[string]any{"max_retries": 2, "requests_per_second": 10.0},
	})...)

	assert.Equal(t, 5*time.Second, c.Timeout())
	require.NotNil(t, c.retry)
	assert.Equal(t, 2, c.retry.MaxRetries)
	require.NotNil(t, c.limiter)

	def := NewClient("p", "http://x", OptionsFromConfig(llm.ProviderConfig{})...)
	assert.Equal(t, DefaultTimeout, def.Timeout())
	assert.Nil(t, def.retry)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1000, 2)
	assert.True(t, rl.TryAcquire())
	assert.True(t, rl.TryAcquire())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rl.Wait(ctx))

	stalled := NewRateLimiter(0, 1)
	assert.True(t, stalled.TryAcquire())
	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	assert.Error(t, stalled.Wait(short))
}
