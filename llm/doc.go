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

/*
Package llm defines the uniform capability contract shared by every AI
provider adapter.

# Overview

Six capabilities are exposed identically across providers: text generation,
embeddings, sentiment analysis, classification, image generation and entity
extraction. Each upstream API (OpenAI, HuggingFace, Anthropic, Gemini, AWS
Bedrock) has its own adapter package implementing Provider.

# Provider Interface

	type Provider interface {
		Name() string
		Type() ProviderType
		GenerateText(ctx context.Context, prompt string, opts Options) (string, error)
		GenerateEmbeddings(ctx context.Context, input []string, opts Options) ([][]float64, error)
		AnalyzeSentiment(ctx context.Context, text string, opts Options) (*SentimentResult, error)
		ClassifyText(ctx context.Context, text string, categories []string, opts Options) (*ClassificationResult, error)
		GenerateImage(ctx context.Context, prompt string, opts Options) (string, error)
		ExtractEntities(ctx context.Context, text string, opts Options) ([]Entity, error)
		Client() any
	}

# Registries

Providers are created from ProviderConfig through a FactoryManager and held
by name in a Registry. Both are plain values; nothing is registered globally.

	factories := llm.NewFactoryManager()
	factories.Register(llm.ProviderTypeOpenAI, openai.NewFactory)

	registry := llm.NewRegistry()
	_, err := registry.RegisterFromConfig(factories, llm.ProviderConfig{
		Name:   "openai",
		APIKey: os.Getenv("OPENAI_API_KEY"),
	})

# Error Handling

Adapter failures are *ProviderError values classified by ErrorKind:

	_, err := provider.GenerateText(ctx, prompt, nil)
	if pe, ok := llm.AsProviderError(err); ok {
		switch pe.Kind {
		case llm.KindRateLimitExceeded:
			time.Sleep(pe.RetryAfter())
		case llm.KindAuthenticationFailed:
			// rotate credentials
		}
	}

# Thread Safety

All provider implementations must be safe for concurrent use. The registry
and factory manager use sync.RWMutex.
*/
package llm
