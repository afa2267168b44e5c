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

package llm

import (
	"context"
)

// Provider is the uniform capability contract every adapter implements.
// Implementations must be safe for concurrent use.
//
// Every network failure is returned as a *ProviderError. Specialized
// operations a provider has no native endpoint for are emulated through
// GenerateText; operations that can be neither served nor emulated fail
// with KindMissingCapability.
type Provider interface {
	// Name returns the unique identifier for this provider instance.
	// This is used for routing, logging, and metrics.
	Name() string

	// Type returns the upstream API family.
	Type() ProviderType

	// GenerateText returns the completion for prompt.
	GenerateText(ctx context.Context, prompt string, opts Options) (string, error)

	// GenerateEmbeddings returns one vector per input, in input order.
	GenerateEmbeddings(ctx context.Context, input []string, opts Options) ([][]float64, error)

	// AnalyzeSentiment scores the polarity of text.
	AnalyzeSentiment(ctx context.Context, text string, opts Options) (*SentimentResult, error)

	// ClassifyText picks one of categories for text. categories must be non-empty.
	ClassifyText(ctx context.Context, text string, categories []string, opts Options) (*ClassificationResult, error)

	// GenerateImage returns an image URL or a base64 data URI.
	GenerateImage(ctx context.Context, prompt string, opts Options) (string, error)

	// ExtractEntities returns de-duplicated entities sorted by count then score.
	ExtractEntities(ctx context.Context, text string, opts Options) ([]Entity, error)

	// Client exposes the underlying transport handle for provider-specific
	// use outside the uniform contract.
	Client() any
}

// ProviderConfig contains configuration for creating a provider.
type ProviderConfig struct {
	// Name is the unique identifier for this provider instance.
	Name string `json:"name" yaml:"-"`

	// Type identifies the adapter to use. Defaults to Name when empty.
	Type ProviderType `json:"type" yaml:"type"`

	// APIKey is passed through to the upstream API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key"`

	// OrganizationID is sent by providers that support it (OpenAI).
	OrganizationID string `json:"organization_id,omitempty" yaml:"organization_id"`

	// BaseURI overrides the API endpoint.
	BaseURI string `json:"base_uri,omitempty" yaml:"base_uri"`

	// TimeoutSeconds is the per-request timeout (0 = 30s).
	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds"`

	// DefaultModel is used for text generation and emulation.
	DefaultModel string `json:"default_model,omitempty" yaml:"default_model"`

	// DefaultEmbeddingModel is used for embeddings.
	DefaultEmbeddingModel string `json:"default_embedding_model,omitempty" yaml:"default_embedding_model"`

	// DefaultImageModel is used for image generation.
	DefaultImageModel string `json:"default_image_model,omitempty" yaml:"default_image_model"`

	// Region is the cloud region (Bedrock).
	Region string `json:"region,omitempty" yaml:"region"`

	// Settings contains provider-specific configuration.
	Settings map[string]any `json:"settings,omitempty" yaml:"settings"`
}

// ResolvedType returns Type, falling back to Name.
func (c ProviderConfig) ResolvedType() ProviderType {
	if c.Type != "" {
		return c.Type
	}
	return ProviderType(c.Name)
}

// Setting returns a string setting or def.
func (c ProviderConfig) Setting(key, def string) string {
	return Options(c.Settings).String(key, def)
}
