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

package emulation

import (
	"context"

	"axonflow/aiservice/llm"
)

// TextGenerator is the single capability emulation needs from an adapter.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, opts llm.Options) (string, error)
}

// Emulator synthesizes sentiment analysis, classification and entity
// extraction on top of a text generation endpoint. Upstream failures are
// returned unchanged; parsing never fails.
type Emulator struct {
	gen TextGenerator
}

// New creates an emulator backed by gen.
func New(gen TextGenerator) *Emulator {
	return &Emulator{gen: gen}
}

// AnalyzeSentiment emulates sentiment analysis.
func (e *Emulator) AnalyzeSentiment(ctx context.Context, text string, opts llm.Options) (*llm.SentimentResult, error) {
	raw, err := e.gen.GenerateText(ctx, SentimentPrompt(text), generationOptions(opts))
	if err != nil {
		return nil, err
	}
	return ParseSentiment(raw), nil
}

// ClassifyText emulates classification. categories must be non-empty.
func (e *Emulator) ClassifyText(ctx context.Context, text string, categories []string, opts llm.Options) (*llm.ClassificationResult, error) {
	if len(categories) == 0 {
		return nil, llm.ErrNoCategories
	}
	raw, err := e.gen.GenerateText(ctx, ClassificationPrompt(text, categories), generationOptions(opts))
	if err != nil {
		return nil, err
	}
	return ParseClassification(raw, categories), nil
}

// ExtractEntities emulates entity extraction and merges the detections.
func (e *Emulator) ExtractEntities(ctx context.Context, text string, opts llm.Options) ([]llm.Entity, error) {
	raw, err := e.gen.GenerateText(ctx, EntityPrompt(text), generationOptions(opts))
	if err != nil {
		return nil, err
	}
	return MergeEntities(ParseEntities(raw), EntityThreshold(opts)), nil
}

// generationOptions pins temperature to 0 unless the caller set one and
// strips options only meaningful to the emulated operation.
func generationOptions(opts llm.Options) llm.Options {
	out := opts.Without(llm.OptionEntityThreshold)
	if !out.Has(llm.OptionTemperature) {
		out[llm.OptionTemperature] = 0.0
	}
	return out
}
