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

// Package openai provides a provider implementation for OpenAI and
// OpenAI-compatible APIs. Text, embeddings and images are native; sentiment,
// classification and entity extraction are emulated through chat completions.
package openai

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"axonflow/aiservice/llm"
	"axonflow/aiservice/llm/emulation"
	"axonflow/aiservice/llm/sdk"
)

const (
	// DefaultBaseURL is the default OpenAI API endpoint
	DefaultBaseURL = "https://api.openai.com"

	// DefaultModel is used for chat completions and emulation
	DefaultModel = "gpt-4o-mini"

	// DefaultEmbeddingModel is used for embeddings
	DefaultEmbeddingModel = "text-embedding-3-small"

	// DefaultImageModel is used for image generation
	DefaultImageModel = "dall-e-3"

	// DefaultImageSize is the default generated image size
	DefaultImageSize = "1024x1024"
)

// Config contains configuration for the OpenAI provider
type Config struct {
	Name           string        // Optional: instance name (default: "openai")
	APIKey         string        // Required: OpenAI API key
	OrganizationID string        // Optional: sent as OpenAI-Organization
	BaseURL        string        // Optional: API base URL (default: https://api.openai.com)
	Model          string        // Optional: default chat model
	EmbeddingModel string        // Optional: default embedding model
	ImageModel     string        // Optional: default image model
	Timeout        time.Duration // Optional: HTTP timeout (default: 30s)

	// HTTPClient overrides the transport (testing).
	HTTPClient sdk.HTTPClient

	// ClientOptions are applied after the defaults above.
	ClientOptions []sdk.ClientOption
}

// Provider implements llm.Provider for OpenAI
type Provider struct {
	name           string
	model          string
	embeddingModel string
	imageModel     string
	client         *sdk.Client
	emulator       *emulation.Emulator
}

// NewProvider creates a new OpenAI provider instance
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if cfg.Name == "" {
		cfg.Name = string(llm.ProviderTypeOpenAI)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = DefaultImageModel
	}

	opts := []sdk.ClientOption{
		sdk.WithTimeout(cfg.Timeout),
		sdk.WithHTTPClient(cfg.HTTPClient),
		sdk.WithAuth(sdk.NewChainedAuth(
			sdk.NewBearerTokenAuth(cfg.APIKey),
			sdk.NewHeaderAuth("OpenAI-Organization", cfg.OrganizationID),
		)),
	}
	opts = append(opts, cfg.ClientOptions...)

	p := &Provider{
		name:           cfg.Name,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		imageModel:     cfg.ImageModel,
		client:         sdk.NewClient(cfg.Name, cfg.BaseURL, opts...),
	}
	p.emulator = emulation.New(p)
	return p, nil
}

// NewFactory creates an OpenAI provider from registry configuration.
func NewFactory(config llm.ProviderConfig) (llm.Provider, error) {
	return NewProvider(Config{
		Name:           config.Name,
		APIKey:         config.APIKey,
		OrganizationID: config.OrganizationID,
		BaseURL:        config.BaseURI,
		Model:          config.DefaultModel,
		EmbeddingModel: config.DefaultEmbeddingModel,
		ImageModel:     config.DefaultImageModel,
		ClientOptions:  sdk.OptionsFromConfig(config),
	})
}

// Name returns the provider name
func (p *Provider) Name() string {
	return p.name
}

// Type returns the provider type
func (p *Provider) Type() llm.ProviderType {
	return llm.ProviderTypeOpenAI
}

// Client returns the underlying HTTP client
func (p *Provider) Client() any {
	return p.client
}

// =============================================================================
// Wire types
// =============================================================================

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Model string `json:"model"`
	Data  []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type imageResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// =============================================================================
// Capabilities
// =============================================================================

// GenerateText calls the chat completions endpoint
func (p *Provider) GenerateText(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	model := opts.Model(p.model)

	messages := make([]chatMessage, 0, 2)
	if system := opts.String(llm.OptionSystemPrompt, ""); system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	req := chatRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: opts.Int(llm.OptionMaxTokens, 0),
	}
	if opts.Has(llm.OptionTemperature) {
		t := opts.Float(llm.OptionTemperature, 0)
		req.Temperature = &t
	}
	if opts.Has(llm.OptionTopP) {
		tp := opts.Float(llm.OptionTopP, 1)
		req.TopP = &tp
	}

	var resp chatResponse
	if err := p.client.PostJSON(ctx, "/v1/chat/completions", model, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", llm.NewAPIError(p.name, model, "response contained no choices", nil)
	}
	if resp.Choices[0].FinishReason == "content_filter" {
		return "", llm.NewContentFilteredError(p.name, model, "completion was stopped by the content filter")
	}

	llm.RecordModel(ctx, firstNonEmpty(resp.Model, model))
	llm.RecordUsage(ctx, llm.UsageStats{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	})
	return resp.Choices[0].Message.Content, nil
}

// GenerateEmbeddings calls the embeddings endpoint; vectors are returned in input order
func (p *Provider) GenerateEmbeddings(ctx context.Context, input []string, opts llm.Options) ([][]float64, error) {
	if len(input) == 0 {
		return [][]float64{}, nil
	}
	model := opts.Model(p.embeddingModel)

	var resp embeddingResponse
	if err := p.client.PostJSON(ctx, "/v1/embeddings", model, embeddingRequest{Model: model, Input: input}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(input) {
		return nil, llm.NewAPIError(p.name, model,
			fmt.Sprintf("expected %d embeddings, got %d", len(input), len(resp.Data)), nil)
	}

	sort.SliceStable(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	vectors := make([][]float64, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}

	llm.RecordModel(ctx, firstNonEmpty(resp.Model, model))
	llm.RecordUsage(ctx, llm.UsageStats{PromptTokens: resp.Usage.PromptTokens, TotalTokens: resp.Usage.TotalTokens})
	return vectors, nil
}

// GenerateImage calls the image generation endpoint and returns a URL or a data URI
func (p *Provider) GenerateImage(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	model := opts.Model(p.imageModel)
	req := imageRequest{
		Model:          model,
		Prompt:         prompt,
		N:              1,
		Size:           opts.String(llm.OptionImageSize, DefaultImageSize),
		ResponseFormat: opts.String(llm.OptionImageFormat, ""),
	}

	var resp imageResponse
	if err := p.client.PostJSON(ctx, "/v1/images/generations", model, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "", llm.NewAPIError(p.name, model, "response contained no images", nil)
	}

	llm.RecordModel(ctx, model)
	if resp.Data[0].URL != "" {
		return resp.Data[0].URL, nil
	}
	if resp.Data[0].B64JSON != "" {
		return "data:image/png;base64," + resp.Data[0].B64JSON, nil
	}
	return "", llm.NewAPIError(p.name, model, "image response carried neither url nor b64_json", nil)
}

// AnalyzeSentiment is emulated through chat completions
func (p *Provider) AnalyzeSentiment(ctx context.Context, text string, opts llm.Options) (*llm.SentimentResult, error) {
	return p.emulator.AnalyzeSentiment(ctx, text, opts)
}

// ClassifyText is emulated through chat completions
func (p *Provider) ClassifyText(ctx context.Context, text string, categories []string, opts llm.Options) (*llm.ClassificationResult, error) {
	return p.emulator.ClassifyText(ctx, text, categories, opts)
}

// ExtractEntities is emulated through chat completions
func (p *Provider) ExtractEntities(ctx context.Context, text string, opts llm.Options) ([]llm.Entity, error) {
	return p.emulator.ExtractEntities(ctx, text, opts)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Verify interface compliance at compile time.
var _ llm.Provider = (*Provider)(nil)
