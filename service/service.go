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

// Package service is the dispatcher in front of the provider registry. It
// resolves the provider for each call, wraps the call in the cache, retries
// sequentially through the configured fallback providers on ProviderError,
// and writes one usage record and one metric sample per attempt.
//
// Provider and model selection is carried by the immutable Call value, so a
// single Service is safe for concurrent use:
//
//	svc, err := service.New(registry,
//	    service.WithDefaultProvider("openai"),
//	    service.WithFallback(true, "anthropic", "gemini"),
//	)
//	text, err := svc.Provider("anthropic").Model("claude-3-5-haiku-latest").
//	    GenerateText(ctx, "Summarize this ticket", nil)
package service

import (
	"context"
	"errors"
	"fmt"

	"axonflow/aiservice/cache"
	"axonflow/aiservice/llm"
	"axonflow/aiservice/shared/logger"
	"axonflow/aiservice/usage"
)

// Service dispatches capability calls to registered providers.
type Service struct {
	registry        *llm.Registry
	defaultProvider string
	fallbackEnabled bool
	fallback        []string
	cache           *cache.Strategy
	recorder        usage.Recorder
	metrics         *Metrics
	log             *logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithDefaultProvider sets the provider used when a call does not select one.
func WithDefaultProvider(name string) Option {
	return func(s *Service) { s.defaultProvider = name }
}

// WithFallback sets the ordered fallback providers.
func WithFallback(enabled bool, providers ...string) Option {
	return func(s *Service) {
		s.fallbackEnabled = enabled
		s.fallback = append([]string(nil), providers...)
	}
}

// WithCache wraps calls in the cache strategy.
func WithCache(strategy *cache.Strategy) Option {
	return func(s *Service) { s.cache = strategy }
}

// WithRecorder writes a usage record for every attempt.
func WithRecorder(recorder usage.Recorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

// WithMetrics updates m for every attempt and cache lookup.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger for failovers and swallowed sink failures.
func WithLogger(log *logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a Service over registry. The default provider defaults to the
// only registered provider when exactly one exists. Every named provider
// must be registered.
func New(registry *llm.Registry, opts ...Option) (*Service, error) {
	if registry == nil {
		return nil, errors.New("provider registry is required")
	}
	s := &Service{registry: registry, log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	if s.defaultProvider == "" {
		names := registry.List()
		if len(names) != 1 {
			return nil, fmt.Errorf("default provider is required when %d providers are registered", len(names))
		}
		s.defaultProvider = names[0]
	}
	if !registry.Has(s.defaultProvider) {
		return nil, fmt.Errorf("default provider %q is not registered", s.defaultProvider)
	}
	for _, name := range s.fallback {
		if !registry.Has(name) {
			return nil, fmt.Errorf("fallback provider %q is not registered", name)
		}
	}
	return s, nil
}

// Call returns the default call scope.
func (s *Service) Call() Call {
	return Call{svc: s, provider: s.defaultProvider}
}

// Provider returns a call scope using the named provider.
func (s *Service) Provider(name string) Call {
	return s.Call().Provider(name)
}

// Model returns a call scope overriding the default provider's model.
func (s *Service) Model(name string) Call {
	return s.Call().Model(name)
}

// Caller returns a call scope attributing usage records to id.
func (s *Service) Caller(id string) Call {
	return s.Call().Caller(id)
}

// GenerateText runs Call().GenerateText.
func (s *Service) GenerateText(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	return s.Call().GenerateText(ctx, prompt, opts)
}

// GenerateEmbeddings runs Call().GenerateEmbeddings.
func (s *Service) GenerateEmbeddings(ctx context.Context, input any, opts llm.Options) ([][]float64, error) {
	return s.Call().GenerateEmbeddings(ctx, input, opts)
}

// AnalyzeSentiment runs Call().AnalyzeSentiment.
func (s *Service) AnalyzeSentiment(ctx context.Context, text string, opts llm.Options) (*llm.SentimentResult, error) {
	return s.Call().AnalyzeSentiment(ctx, text, opts)
}

// ClassifyText runs Call().ClassifyText.
func (s *Service) ClassifyText(ctx context.Context, text string, categories []string, opts llm.Options) (*llm.ClassificationResult, error) {
	return s.Call().ClassifyText(ctx, text, categories, opts)
}

// GenerateImage runs Call().GenerateImage.
func (s *Service) GenerateImage(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	return s.Call().GenerateImage(ctx, prompt, opts)
}

// ExtractEntities runs Call().ExtractEntities.
func (s *Service) ExtractEntities(ctx context.Context, text string, opts llm.Options) ([]llm.Entity, error) {
	return s.Call().ExtractEntities(ctx, text, opts)
}

// DefaultProvider returns the configured default provider name.
func (s *Service) DefaultProvider() string {
	return s.defaultProvider
}

// FallbackProviders returns the configured fallback order, or nil when
// fallback is disabled.
func (s *Service) FallbackProviders() []string {
	if !s.fallbackEnabled {
		return nil
	}
	return append([]string(nil), s.fallback...)
}

// Registry returns the provider registry.
func (s *Service) Registry() *llm.Registry {
	return s.registry
}

// Close releases the cache backend.
func (s *Service) Close() error {
	return s.cache.Close()
}

// candidates returns the attempt order for a call starting at primary.
func (s *Service) candidates(primary string) []string {
	out := []string{primary}
	if !s.fallbackEnabled {
		return out
	}
	for _, name := range s.fallback {
		dup := false
		for _, seen := range out {
			if seen == name {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, name)
		}
	}
	return out
}
