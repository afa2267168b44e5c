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

// Package capability attaches AI helpers to domain records. Each helper reads
// one field, short-circuits to a neutral result when the field is empty, and
// otherwise delegates to the dispatcher.
package capability

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"axonflow/aiservice/llm"
)

// Dispatcher is the subset of the service the helpers call. Both
// *service.Service and service.Call satisfy it.
type Dispatcher interface {
	GenerateText(ctx context.Context, prompt string, opts llm.Options) (string, error)
	GenerateEmbeddings(ctx context.Context, input any, opts llm.Options) ([][]float64, error)
	AnalyzeSentiment(ctx context.Context, text string, opts llm.Options) (*llm.SentimentResult, error)
	ClassifyText(ctx context.Context, text string, categories []string, opts llm.Options) (*llm.ClassificationResult, error)
	ExtractEntities(ctx context.Context, text string, opts llm.Options) ([]llm.Entity, error)
}

// Instruction templates for the generated-text helpers.
const (
	summarizeTemplate      = "Summarize the following text concisely:\n\n%s"
	summarizeWordsTemplate = "Summarize the following text in at most %d words:\n\n%s"
	translateTemplate      = "Translate the following text to %s. Respond with the translation only.\n\n%s"
	templatePlaceholder    = "%s"
)

// Mixin binds a record to a dispatcher.
type Mixin struct {
	ai     Dispatcher
	record Record
}

// New creates a Mixin for record.
func New(ai Dispatcher, record Record) *Mixin {
	return &Mixin{ai: ai, record: record}
}

// Text returns the trimmed text of field.
func (m *Mixin) Text(field string) string {
	return Text(m.record, field)
}

// GenerateFrom generates text from field. When template is non-empty its
// first %s is replaced by the field value; a template without %s gets the
// value appended after a blank line.
func (m *Mixin) GenerateFrom(ctx context.Context, field, template string, opts llm.Options) (string, error) {
	value := m.Text(field)
	if value == "" {
		return "", nil
	}
	return m.ai.GenerateText(ctx, applyTemplate(template, value), opts)
}

// EmbeddingsFor returns the embedding of field, or an empty vector.
func (m *Mixin) EmbeddingsFor(ctx context.Context, field string, opts llm.Options) ([]float64, error) {
	value := m.Text(field)
	if value == "" {
		return []float64{}, nil
	}
	vectors, err := m.ai.GenerateEmbeddings(ctx, value, opts)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return []float64{}, nil
	}
	return vectors[0], nil
}

// AnalyzeSentimentOf scores field, or returns a neutral result when empty.
func (m *Mixin) AnalyzeSentimentOf(ctx context.Context, field string, opts llm.Options) (*llm.SentimentResult, error) {
	value := m.Text(field)
	if value == "" {
		return llm.NeutralSentiment(), nil
	}
	return m.ai.AnalyzeSentiment(ctx, value, opts)
}

// ClassifyField classifies field into categories. An empty field yields
// UnknownCategory with zero confidence.
func (m *Mixin) ClassifyField(ctx context.Context, field string, categories []string, opts llm.Options) (*llm.ClassificationResult, error) {
	if len(categories) == 0 {
		return nil, llm.ErrNoCategories
	}
	value := m.Text(field)
	if value == "" {
		return &llm.ClassificationResult{Category: llm.UnknownCategory}, nil
	}
	return m.ai.ClassifyText(ctx, value, categories, opts)
}

// ExtractEntitiesFrom returns the entities in field, or an empty list.
func (m *Mixin) ExtractEntitiesFrom(ctx context.Context, field string, opts llm.Options) ([]llm.Entity, error) {
	value := m.Text(field)
	if value == "" {
		return []llm.Entity{}, nil
	}
	return m.ai.ExtractEntities(ctx, value, opts)
}

// Summarize summarizes field. maxWords <= 0 leaves the length to the model.
func (m *Mixin) Summarize(ctx context.Context, field string, maxWords int, opts llm.Options) (string, error) {
	value := m.Text(field)
	if value == "" {
		return "", nil
	}
	prompt := fmt.Sprintf(summarizeTemplate, value)
	if maxWords > 0 {
		prompt = fmt.Sprintf(summarizeWordsTemplate, maxWords, value)
	}
	return m.ai.GenerateText(ctx, prompt, opts)
}

// Translate translates field into language.
func (m *Mixin) Translate(ctx context.Context, field, language string, opts llm.Options) (string, error) {
	value := m.Text(field)
	if value == "" {
		return "", nil
	}
	if strings.TrimSpace(language) == "" {
		return "", errors.New("target language is required")
	}
	return m.ai.GenerateText(ctx, fmt.Sprintf(translateTemplate, language, value), opts)
}

func applyTemplate(template, value string) string {
	if template == "" {
		return value
	}
	if strings.Contains(template, templatePlaceholder) {
		return strings.Replace(template, templatePlaceholder, value, 1)
	}
	return template + "\n\n" + value
}
