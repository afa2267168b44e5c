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

// Package anthropic provides a provider implementation for Anthropic's Claude
// models via the Messages API. Claude has no embedding or image endpoints;
// sentiment, classification and entity extraction are emulated.
package anthropic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"axonflow/aiservice/llm"
	"axonflow/aiservice/llm/emulation"
	"axonflow/aiservice/llm/sdk"
)

const (
	// DefaultBaseURL is the default Anthropic API endpoint
	DefaultBaseURL = "https://api.anthropic.com"

	// DefaultAPIVersion is the Anthropic API version
	DefaultAPIVersion = "2023-06-01"

	// DefaultMaxTokens is sent when the caller sets no limit; the API requires one
	DefaultMaxTokens = 1024
)

const (
	ModelClaude35Sonnet = "claude-3-5-sonnet-20241022"
	ModelClaude35Haiku  = "claude-3-5-haiku-20241022"
	ModelClaude3Haiku   = "claude-3-haiku-20240307"

	// Default model
	DefaultModel = ModelClaude35Haiku
)

// Config contains configuration for the Anthropic provider
type Config struct {
	Name       string        // Optional: instance name (default: "anthropic")
	APIKey     string        // Required: Anthropic API key
	BaseURL    string        // Optional: API base URL (default: https://api.anthropic.com)
	APIVersion string        // Optional: API version (default: 2023-06-01)
	Model      string        // Optional: default model
	MaxTokens  int           // Optional: default max tokens (default: 1024)
	Timeout    time.Duration // Optional: HTTP timeout (default: 30s)

	// HTTPClient overrides the transport (testing).
	HTTPClient sdk.HTTPClient

	// ClientOptions are applied after the defaults above.
	ClientOptions []sdk.ClientOption
}

// Provider implements llm.Provider for Anthropic
type Provider struct {
	name      string
	model     string
	maxTokens int
	client    *sdk.Client
	emulator  *emulation.Emulator
}

// NewProvider creates a new Anthropic provider instance
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if cfg.Name == "" {
		cfg.Name = string(llm.ProviderTypeAnthropic)
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
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	opts := []sdk.ClientOption{
		sdk.WithTimeout(cfg.Timeout),
		sdk.WithHTTPClient(cfg.HTTPClient),
		sdk.WithAuth(sdk.NewAPIKeyAuthWithHeader(cfg.APIKey, "x-api-key")),
		sdk.WithHeader("anthropic-version", cfg.APIVersion),
	}
	opts = append(opts, cfg.ClientOptions...)

	p := &Provider{
		name:      cfg.Name,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		client:    sdk.NewClient(cfg.Name, cfg.BaseURL, opts...),
	}
	p.emulator = emulation.New(p)
	return p, nil
}

// NewFactory creates an Anthropic provider from registry configuration.
// The api_version setting overrides the API version header.
func NewFactory(config llm.ProviderConfig) (llm.Provider, error) {
	return NewProvider(Config{
		Name:          config.Name,
		APIKey:        config.APIKey,
		BaseURL:       config.BaseURI,
		APIVersion:    config.Setting("api_version", ""),
		Model:         config.DefaultModel,
		ClientOptions: sdk.OptionsFromConfig(config),
	})
}

// Name returns the provider name
func (p *Provider) Name() string {
	return p.name
}

// Type returns the provider type
func (p *Provider) Type() llm.ProviderType {
	return llm.ProviderTypeAnthropic
}

// Client returns the underlying HTTP client
func (p *Provider) Client() any {
	return p.client
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []message `json:"messages"`
	System      string    `json:"system,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
}

type messagesResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// GenerateText calls the Messages API and joins the returned text blocks
func (p *Provider) GenerateText(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	model := opts.Model(p.model)

	maxTokens := opts.Int(llm.OptionMaxTokens, p.maxTokens)
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}

	req := messagesRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
		System:    opts.String(llm.OptionSystemPrompt, ""),
	}
	if opts.Has(llm.OptionTemperature) {
		t := opts.Float(llm.OptionTemperature, 0)
		req.Temperature = &t
	}
	if opts.Has(llm.OptionTopP) {
		tp := opts.Float(llm.OptionTopP, 1)
		req.TopP = &tp
	}

	var resp messagesResponse
	if err := p.client.PostJSON(ctx, "/v1/messages", model, req, &resp); err != nil {
		return "", err
	}
	if resp.StopReason == "refusal" {
		return "", llm.NewContentFilteredError(p.name, model, "the model declined to respond")
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if resp.Model == "" {
		resp.Model = model
	}
	llm.RecordModel(ctx, resp.Model)
	llm.RecordUsage(ctx, llm.UsageStats{
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
	})
	return text.String(), nil
}

// GenerateEmbeddings is not offered by Anthropic
func (p *Provider) GenerateEmbeddings(ctx context.Context, input []string, opts llm.Options) ([][]float64, error) {
	return nil, llm.NewMissingCapabilityError(p.name, llm.OpGenerateEmbeddings)
}

// GenerateImage is not offered by Anthropic
func (p *Provider) GenerateImage(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	return "", llm.NewMissingCapabilityError(p.name, llm.OpGenerateImage)
}

// AnalyzeSentiment is emulated through the Messages API
func (p *Provider) AnalyzeSentiment(ctx context.Context, text string, opts llm.Options) (*llm.SentimentResult, error) {
	return p.emulator.AnalyzeSentiment(ctx, text, opts)
}

// ClassifyText is emulated through the Messages API
func (p *Provider) ClassifyText(ctx context.Context, text string, categories []string, opts llm.Options) (*llm.ClassificationResult, error) {
	return p.emulator.ClassifyText(ctx, text, categories, opts)
}

// ExtractEntities is emulated through the Messages API
func (p *Provider) ExtractEntities(ctx context.Context, text string, opts llm.Options) ([]llm.Entity, error) {
	return p.emulator.ExtractEntities(ctx, text, opts)
}

// Verify interface compliance at compile time.
var _ llm.Provider = (*Provider)(nil)
