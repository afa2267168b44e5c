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

// Package gemini provides a provider implementation for Google Gemini models
// via the Generative Language API. Text and embeddings are native; image
// generation is not offered, and the analysis capabilities are emulated.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"axonflow/aiservice/llm"
	"axonflow/aiservice/llm/emulation"
	"axonflow/aiservice/llm/sdk"
)

const (
	// DefaultBaseURL is the default Gemini API endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	// DefaultAPIVersion is the Gemini API version.
	DefaultAPIVersion = "v1beta"
)

// Model constants for supported Gemini models.
const (
	ModelGemini25Flash = "gemini-2.5-flash"
	ModelGemini2Flash  = "gemini-2.0-flash"
	ModelGemini15Pro   = "gemini-1.5-pro"

	ModelTextEmbedding004 = "text-embedding-004"

	// Default model - use latest Flash for best availability
	DefaultModel = ModelGemini2Flash

	// DefaultEmbeddingModel is used for embeddings.
	DefaultEmbeddingModel = ModelTextEmbedding004
)

// Config contains configuration for the Gemini provider.
type Config struct {
	Name           string        // Optional: instance name (default: "gemini")
	APIKey         string        // Required: Google AI API key
	BaseURL        string        // Optional: API base URL
	APIVersion     string        // Optional: API version (default: v1beta)
	Model          string        // Optional: default model
	EmbeddingModel string        // Optional: default embedding model
	Timeout        time.Duration // Optional: HTTP timeout (default: 30s)

	// HTTPClient overrides the transport (testing).
	HTTPClient sdk.HTTPClient

	// ClientOptions are applied after the defaults above.
	ClientOptions []sdk.ClientOption
}

// Provider implements llm.Provider for Google Gemini.
type Provider struct {
	name           string
	apiVersion     string
	model          string
	embeddingModel string
	client         *sdk.Client
	emulator       *emulation.Emulator
}

// NewProvider creates a new Gemini provider.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Name == "" {
		cfg.Name = string(llm.ProviderTypeGemini)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}

	opts := []sdk.ClientOption{
		sdk.WithTimeout(cfg.Timeout),
		sdk.WithHTTPClient(cfg.HTTPClient),
		sdk.WithAuth(sdk.NewAPIKeyAuthWithQuery(cfg.APIKey, "key")),
	}
	opts = append(opts, cfg.ClientOptions...)

	p := &Provider{
		name:           cfg.Name,
		apiVersion:     cfg.APIVersion,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		client:         sdk.NewClient(cfg.Name, cfg.BaseURL, opts...),
	}
	p.emulator = emulation.New(p)
	return p, nil
}

// NewFactory creates a Gemini provider from registry configuration.
func NewFactory(config llm.ProviderConfig) (llm.Provider, error) {
	return NewProvider(Config{
		Name:           config.Name,
		APIKey:         config.APIKey,
		BaseURL:        config.BaseURI,
		APIVersion:     config.Setting("api_version", ""),
		Model:          config.DefaultModel,
		EmbeddingModel: config.DefaultEmbeddingModel,
		ClientOptions:  sdk.OptionsFromConfig(config),
	})
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return p.name
}

// Type returns the provider type.
func (p *Provider) Type() llm.ProviderType {
	return llm.ProviderTypeGemini
}

// Client returns the underlying HTTP client.
func (p *Provider) Client() any {
	return p.client
}

func (p *Provider) modelPath(model, method string) string {
	return fmt.Sprintf("/%s/models/%s:%s", p.apiVersion, strings.TrimPrefix(model, "models/"), method)
}

// Internal API types

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

type embedRequest struct {
	Model   string  `json:"model"`
	Content content `json:"content"`
}

type batchEmbedRequest struct {
	Requests []embedRequest `json:"requests"`
}

type batchEmbedResponse struct {
	Embeddings []struct {
		Values []float64 `json:"values"`
	} `json:"embeddings"`
}

// GenerateText calls generateContent.
func (p *Provider) GenerateText(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	model := opts.Model(p.model)

	req := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	}
	if system := opts.String(llm.OptionSystemPrompt, ""); system != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: system}}}
	}
	gc := &generationConfig{MaxOutputTokens: opts.Int(llm.OptionMaxTokens, 0)}
	if opts.Has(llm.OptionTemperature) {
		t := opts.Float(llm.OptionTemperature, 0)
		gc.Temperature = &t
	}
	if opts.Has(llm.OptionTopP) {
		tp := opts.Float(llm.OptionTopP, 1)
		gc.TopP = &tp
	}
	if gc.Temperature != nil || gc.TopP != nil || gc.MaxOutputTokens > 0 {
		req.GenerationConfig = gc
	}

	var resp generateResponse
	if err := p.client.PostJSON(ctx, p.modelPath(model, "generateContent"), model, req, &resp); err != nil {
		return "", p.mapError(err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", llm.NewContentFilteredError(p.name, model, "prompt blocked: "+resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", llm.NewAPIError(p.name, model, "response contained no candidates", nil)
	}
	candidate := resp.Candidates[0]
	switch candidate.FinishReason {
	case "SAFETY", "RECITATION", "PROHIBITED_CONTENT", "BLOCKLIST":
		return "", llm.NewContentFilteredError(p.name, model, "candidate blocked: "+candidate.FinishReason)
	}

	var text strings.Builder
	for _, pt := range candidate.Content.Parts {
		text.WriteString(pt.Text)
	}

	if resp.ModelVersion == "" {
		resp.ModelVersion = model
	}
	llm.RecordModel(ctx, resp.ModelVersion)
	llm.RecordUsage(ctx, llm.UsageStats{
		PromptTokens:     resp.UsageMetadata.PromptTokenCount,
		CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
		TotalTokens:      resp.UsageMetadata.TotalTokenCount,
	})
	return text.String(), nil
}

// GenerateEmbeddings calls batchEmbedContents with one request per input.
func (p *Provider) GenerateEmbeddings(ctx context.Context, input []string, opts llm.Options) ([][]float64, error) {
	if len(input) == 0 {
		return [][]float64{}, nil
	}
	model := opts.Model(p.embeddingModel)
	qualified := "models/" + strings.TrimPrefix(model, "models/")

	req := batchEmbedRequest{Requests: make([]embedRequest, len(input))}
	for i, text := range input {
		req.Requests[i] = embedRequest{Model: qualified, Content: content{Parts: []part{{Text: text}}}}
	}

	var resp batchEmbedResponse
	if err := p.client.PostJSON(ctx, p.modelPath(model, "batchEmbedContents"), model, req, &resp); err != nil {
		return nil, p.mapError(err)
	}
	if len(resp.Embeddings) != len(input) {
		return nil, llm.NewAPIError(p.name, model,
			fmt.Sprintf("expected %d embeddings, got %d", len(input), len(resp.Embeddings)), nil)
	}

	vectors := make([][]float64, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vectors[i] = e.Values
	}
	llm.RecordModel(ctx, model)
	return vectors, nil
}

// GenerateImage is not offered through this API.
func (p *Provider) GenerateImage(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	return "", llm.NewMissingCapabilityError(p.name, llm.OpGenerateImage)
}

// AnalyzeSentiment is emulated through generateContent.
func (p *Provider) AnalyzeSentiment(ctx context.Context, text string, opts llm.Options) (*llm.SentimentResult, error) {
	return p.emulator.AnalyzeSentiment(ctx, text, opts)
}

// ClassifyText is emulated through generateContent.
func (p *Provider) ClassifyText(ctx context.Context, text string, categories []string, opts llm.Options) (*llm.ClassificationResult, error) {
	return p.emulator.ClassifyText(ctx, text, categories, opts)
}

// ExtractEntities is emulated through generateContent.
func (p *Provider) ExtractEntities(ctx context.Context, text string, opts llm.Options) ([]llm.Entity, error) {
	return p.emulator.ExtractEntities(ctx, text, opts)
}

// mapError reclassifies Gemini specific failures. An invalid key is reported
// as 400 INVALID_ARGUMENT rather than 401.
func (p *Provider) mapError(err error) error {
	var pe *llm.ProviderError
	if !errors.As(err, &pe) {
		return err
	}
	if pe.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(pe.Message), "api key not valid") {
		mapped := llm.NewAuthenticationError(pe.Provider, pe.Model, pe.Message)
		mapped.StatusCode = pe.StatusCode
		return mapped
	}
	return err
}

// Verify interface compliance at compile time.
var _ llm.Provider = (*Provider)(nil)
