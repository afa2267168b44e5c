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

package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"axonflow/aiservice/llm"
	"axonflow/aiservice/usage"
)

// Call is an immutable per-call configuration: provider, model override,
// caller identity and usage metadata. Every selector returns a copy.
type Call struct {
	svc      *Service
	provider string
	model    string
	caller   string
	metadata map[string]any
}

// Provider selects the provider tried first.
func (c Call) Provider(name string) Call {
	c.provider = name
	return c
}

// Model overrides the model of the selected provider. Fallback providers
// keep their configured defaults.
func (c Call) Model(name string) Call {
	c.model = name
	return c
}

// Caller attributes usage records to id.
func (c Call) Caller(id string) Call {
	c.caller = id
	return c
}

// WithMetadata adds key to the metadata of every usage record of the call.
func (c Call) WithMetadata(key string, value any) Call {
	md := make(map[string]any, len(c.metadata)+1)
	for k, v := range c.metadata {
		md[k] = v
	}
	md[key] = value
	c.metadata = md
	return c
}

// ProviderName returns the selected provider.
func (c Call) ProviderName() string {
	return c.provider
}

// ModelName returns the model override, if any.
func (c Call) ModelName() string {
	return c.model
}

// GenerateText generates a completion for prompt.
func (c Call) GenerateText(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	return execute(ctx, c, llm.OpGenerateText, prompt, opts,
		func(ctx context.Context, p llm.Provider, opts llm.Options) (string, error) {
			return p.GenerateText(ctx, prompt, opts)
		})
}

// GenerateEmbeddings embeds input, a string or a list of strings.
func (c Call) GenerateEmbeddings(ctx context.Context, input any, opts llm.Options) ([][]float64, error) {
	texts := llm.ToInputs(input)
	return execute(ctx, c, llm.OpGenerateEmbeddings, texts, opts,
		func(ctx context.Context, p llm.Provider, opts llm.Options) ([][]float64, error) {
			return p.GenerateEmbeddings(ctx, texts, opts)
		})
}

// AnalyzeSentiment scores the polarity of text.
func (c Call) AnalyzeSentiment(ctx context.Context, text string, opts llm.Options) (*llm.SentimentResult, error) {
	return execute(ctx, c, llm.OpAnalyzeSentiment, text, opts,
		func(ctx context.Context, p llm.Provider, opts llm.Options) (*llm.SentimentResult, error) {
			return p.AnalyzeSentiment(ctx, text, opts)
		})
}

// ClassifyText picks one of categories for text.
func (c Call) ClassifyText(ctx context.Context, text string, categories []string, opts llm.Options) (*llm.ClassificationResult, error) {
	if len(categories) == 0 {
		return nil, llm.ErrNoCategories
	}
	input := map[string]any{"text": text, "categories": categories}
	return execute(ctx, c, llm.OpClassifyText, input, opts,
		func(ctx context.Context, p llm.Provider, opts llm.Options) (*llm.ClassificationResult, error) {
			return p.ClassifyText(ctx, text, categories, opts)
		})
}

// GenerateImage returns an image URL or data URI for prompt.
func (c Call) GenerateImage(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	if prompt == "" {
		return "", llm.ErrEmptyPrompt
	}
	return execute(ctx, c, llm.OpGenerateImage, prompt, opts,
		func(ctx context.Context, p llm.Provider, opts llm.Options) (string, error) {
			return p.GenerateImage(ctx, prompt, opts)
		})
}

// ExtractEntities returns the entities found in text.
func (c Call) ExtractEntities(ctx context.Context, text string, opts llm.Options) ([]llm.Entity, error) {
	return execute(ctx, c, llm.OpExtractEntities, text, opts,
		func(ctx context.Context, p llm.Provider, opts llm.Options) ([]llm.Entity, error) {
			return p.ExtractEntities(ctx, text, opts)
		})
}

// execute runs one capability call: cache lookup, then the provider
// sequence until the first success. Only ProviderErrors advance to the next
// provider; the last one is returned on exhaustion.
func execute[T any](ctx context.Context, c Call, op llm.Operation, input any, opts llm.Options,
	invoke func(ctx context.Context, p llm.Provider, opts llm.Options) (T, error)) (T, error) {
	var zero T
	s := c.svc
	requestID := uuid.New().String()

	primaryOpts := opts
	if c.model != "" {
		primaryOpts = opts.With(llm.OptionModel, c.model)
	}

	cacheable := s.cache.Cacheable(op)
	var key string
	if cacheable {
		key = s.cache.Key(op, c.provider, input, primaryOpts)
		var cached T
		hit := s.cache.Lookup(ctx, key, &cached)
		s.metrics.observeCache(op, hit)
		if hit {
			s.log.Debug(c.caller, requestID, "Cache hit", map[string]interface{}{
				"operation": string(op),
				"key":       key,
			})
			return cached, nil
		}
	}

	candidates := s.candidates(c.provider)
	var lastErr error
	for i, name := range candidates {
		provider, err := s.registry.Get(name)
		if err != nil {
			return zero, err
		}

		attemptOpts := primaryOpts
		if i > 0 {
			attemptOpts = opts.Without(llm.OptionModel)
		}

		attemptCtx, trace := llm.WithTrace(ctx)
		start := time.Now()
		result, err := invoke(attemptCtx, provider, attemptOpts)
		elapsed := time.Since(start)

		s.metrics.observeAttempt(name, op, err, elapsed)
		c.record(ctx, requestID, op, name, attemptOpts, trace, input, result, err, elapsed, i, candidates[0])

		if err == nil {
			if cacheable {
				s.cache.Store(ctx, key, result, 0)
			}
			return result, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return zero, err
		}
		pe, ok := llm.AsProviderError(err)
		if !ok {
			return zero, err
		}
		if i+1 < len(candidates) {
			next := candidates[i+1]
			s.metrics.observeFailover(name, next, op)
			s.log.Warn(c.caller, requestID, "Provider failed, falling back", map[string]interface{}{
				"operation": string(op),
				"provider":  name,
				"next":      next,
				"kind":      string(pe.Kind),
				"error":     pe.Error(),
			})
		}
	}
	return zero, lastErr
}

// record writes the usage record of one attempt. Sink failures are logged
// and dropped.
func (c Call) record(ctx context.Context, requestID string, op llm.Operation, provider string, opts llm.Options,
	trace *llm.Trace, input, result any, callErr error, elapsed time.Duration, attempt int, primary string) {
	s := c.svc
	if s.recorder == nil {
		return
	}

	model := trace.Model()
	if model == "" {
		model = opts.Model("")
	}
	metadata := make(map[string]any, len(c.metadata)+2)
	for k, v := range c.metadata {
		metadata[k] = v
	}
	metadata["request_id"] = requestID
	if attempt > 0 {
		metadata["fallback_from"] = primary
	}

	reqPayload, respPayload := trace.Payloads()
	recordCtx := context.WithoutCancel(ctx)

	var err error
	if callErr == nil {
		u := trace.Usage()
		err = s.recorder.RecordSuccess(recordCtx, provider, model, usage.Text(input), usage.Text(result), usage.SuccessDetails{
			Operation:       op,
			Usage:           &u,
			ExecutionTime:   elapsed,
			CallerID:        c.caller,
			RequestPayload:  reqPayload,
			ResponsePayload: respPayload,
			Metadata:        metadata,
		})
	} else {
		err = s.recorder.RecordFailure(recordCtx, provider, model, usage.Text(input), callErr.Error(), usage.FailureDetails{
			Operation:      op,
			ExecutionTime:  elapsed,
			CallerID:       c.caller,
			RequestPayload: reqPayload,
			Metadata:       metadata,
		})
	}
	if err != nil {
		s.log.Warn(c.caller, requestID, "Usage record failed", map[string]interface{}{
			"provider":  provider,
			"operation": string(op),
			"error":     err.Error(),
		})
	}
}
