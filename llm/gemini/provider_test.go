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

package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axonflow/aiservice/llm"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewProvider(Config{APIKey: "AIza-test", BaseURL: server.URL})
	require.NoError(t, err)
	return p
}

func candidateReply(text, finish string) string {
	body, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{{
			"content":      map[string]any{"role": "model", "parts": []map[string]string{{"text": text}}},
			"finishReason": finish,
		}},
		"usageMetadata": map[string]int{"promptTokenCount": 7, "candidatesTokenCount": 3, "totalTokenCount": 10},
		"modelVersion":  "gemini-2.0-flash-001",
	})
	return string(body)
}

func TestNewProvider(t *testing.T) {
	_, err := NewProvider(Config{})
	assert.Error(t, err)

	p, err := NewFactory(llm.ProviderConfig{Name: "google", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "google", p.Name())
	assert.Equal(t, llm.ProviderTypeGemini, p.Type())
}

func TestGenerateText(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "AIza-test", r.URL.Query().Get("key"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Equal(t, "Name a color", req.Contents[0].Parts[0].Text)
		require.NotNil(t, req.SystemInstruction)
		assert.Equal(t, "One word.", req.SystemInstruction.Parts[0].Text)
		require.NotNil(t, req.GenerationConfig)
		assert.Equal(t, 20, req.GenerationConfig.MaxOutputTokens)
		assert.Nil(t, req.GenerationConfig.Temperature)

		_, _ = w.Write([]byte(candidateReply("Blue", "STOP")))
	})

	ctx, trace := llm.WithTrace(context.Background())
	out, err := p.GenerateText(ctx, "Name a color", llm.Options{
		llm.OptionSystemPrompt: "One word.",
		llm.OptionMaxTokens:    20,
	})
	require.NoError(t, err)
	assert.Equal(t, "Blue", out)
	assert.Equal(t, "gemini-2.0-flash-001", trace.Model())
	assert.Equal(t, llm.UsageStats{PromptTokens: 7, CompletionTokens: 3, TotalTokens: 10}, trace.Usage())
}

func TestGenerateText_NoConfigWhenUnset(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotContains(t, req, "generationConfig")
		assert.NotContains(t, req, "systemInstruction")
		_, _ = w.Write([]byte(candidateReply("ok", "STOP")))
	})
	_, err := p.GenerateText(context.Background(), "x", nil)
	require.NoError(t, err)
}

func TestGenerateText_ModelOverride(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-1.5-pro:generateContent", r.URL.Path)
		_, _ = w.Write([]byte(candidateReply("ok", "STOP")))
	})
	_, err := p.GenerateText(context.Background(), "x", llm.Options{llm.OptionModel: "models/gemini-1.5-pro"})
	require.NoError(t, err)
}

func TestGenerateText_Blocked(t *testing.T) {
	t.Run("candidate safety", func(t *testing.T) {
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(candidateReply("", "SAFETY")))
		})
		_, err := p.GenerateText(context.Background(), "x", nil)
		assert.True(t, llm.IsKind(err, llm.KindContentFiltered))
	})

	t.Run("prompt feedback", func(t *testing.T) {
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
		})
		_, err := p.GenerateText(context.Background(), "x", nil)
		assert.True(t, llm.IsKind(err, llm.KindContentFiltered))
	})
}

func TestGenerateText_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   llm.ErrorKind
	}{
		{"quota", 429, `{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`, llm.KindRateLimitExceeded},
		{"invalid key", 400, `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`, llm.KindAuthenticationFailed},
		{"unknown model", 404, `{"error":{"code":404,"message":"models/gemini-9 is not found for API version v1beta","status":"NOT_FOUND"}}`, llm.KindInvalidModel},
		{"unavailable", 503, `{"error":{"code":503,"message":"The model is overloaded.","status":"UNAVAILABLE"}}`, llm.KindServiceUnavailable},
		{"bad request", 400, `{"error":{"code":400,"message":"Invalid JSON payload","status":"INVALID_ARGUMENT"}}`, llm.KindAPIError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := p.GenerateText(context.Background(), "x", nil)
			pe, ok := llm.AsProviderError(err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, pe.Kind)
			assert.Equal(t, tt.status, pe.StatusCode)
		})
	}
}

func TestGenerateEmbeddings(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/text-embedding-004:batchEmbedContents", r.URL.Path)

		var req batchEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Requests, 2)
		assert.Equal(t, "models/text-embedding-004", req.Requests[0].Model)
		assert.Equal(t, "second", req.Requests[1].Content.Parts[0].Text)

		_, _ = w.Write([]byte(`{"embeddings":[{"values":[0.1,0.2]},{"values":[0.3,0.4]}]}`))
	})

	vectors, err := p.GenerateEmbeddings(context.Background(), []string{"first", "second"}, nil)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.1, 0.2}, {0.3, 0.4}}, vectors)
}

func TestGenerateEmbeddings_CountMismatch(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[{"values":[0.1]}]}`))
	})
	_, err := p.GenerateEmbeddings(context.Background(), []string{"a", "b"}, nil)
	assert.True(t, llm.IsKind(err, llm.KindAPIError))
}

func TestGenerateImage_Unsupported(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := p.GenerateImage(context.Background(), "a cat", nil)
	assert.True(t, llm.IsKind(err, llm.KindMissingCapability))
}

func TestClassifyText_Emulated(t *testing.T) {
	categories := []string{"hardware_issue", "software_bug", "compatibility_problem", "user_error"}
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.GenerationConfig)
		require.NotNil(t, req.GenerationConfig.Temperature)
		assert.Equal(t, 0.0, *req.GenerationConfig.Temperature)
		_, _ = w.Write([]byte(candidateReply("Category: software_bug\nConfidence: 85%", "STOP")))
	})

	got, err := p.ClassifyText(context.Background(), "The screen keeps freezing after the update", categories, nil)
	require.NoError(t, err)
	assert.Equal(t, "software_bug", got.Category)
	assert.InDelta(t, 0.85, got.Confidence, 1e-9)
}
