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
	"fmt"
	"strings"
)

// ProviderType identifies the upstream API family an adapter speaks.
// Standard types are defined as constants, but custom types can be used
// for third-party or self-hosted providers.
type ProviderType string

// Standard provider types supported out of the box.
const (
	// ProviderTypeOpenAI represents OpenAI and OpenAI-compatible APIs.
	ProviderTypeOpenAI ProviderType = "openai"

	// ProviderTypeHuggingFace represents the HuggingFace Inference API.
	ProviderTypeHuggingFace ProviderType = "huggingface"

	// ProviderTypeAnthropic represents Anthropic's Claude models.
	ProviderTypeAnthropic ProviderType = "anthropic"

	// ProviderTypeGemini represents Google's Gemini models.
	ProviderTypeGemini ProviderType = "gemini"

	// ProviderTypeBedrock represents AWS Bedrock managed models.
	ProviderTypeBedrock ProviderType = "bedrock"
)

// Operation names one capability of the uniform contract.
type Operation string

// Capabilities exposed identically across providers.
const (
	OpGenerateText       Operation = "generate_text"
	OpGenerateEmbeddings Operation = "generate_embeddings"
	OpAnalyzeSentiment   Operation = "analyze_sentiment"
	OpClassifyText       Operation = "classify_text"
	OpGenerateImage      Operation = "generate_image"
	OpExtractEntities    Operation = "extract_entities"
)

// Operations lists every capability in declaration order.
func Operations() []Operation {
	return []Operation{
		OpGenerateText,
		OpGenerateEmbeddings,
		OpAnalyzeSentiment,
		OpClassifyText,
		OpGenerateImage,
		OpExtractEntities,
	}
}

// ParseOperation resolves an operation name, accepting the canonical
// snake_case form and the camelCase form used by older configs.
func ParseOperation(s string) (Operation, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for _, op := range Operations() {
		if norm == string(op) || norm == strings.ReplaceAll(string(op), "_", "") {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operation %q", s)
}

// Sentiment is the polarity label of a sentiment analysis.
type Sentiment string

// Sentiment labels.
const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// UnknownCategory is returned by classification when no supplied category
// could be chosen (for example when the classified field was empty).
const UnknownCategory = "unknown"

// SentimentResult is the normalized output of sentiment analysis.
type SentimentResult struct {
	// Score is the polarity in [-1, 1].
	Score float64 `json:"score"`

	// Category is consistent with Score: a positive score is never
	// "negative" and a negative score is never "positive".
	Category Sentiment `json:"category"`

	// Details carries provider-specific extras such as per-label scores.
	Details map[string]any `json:"details,omitempty"`

	// Raw preserves the upstream text when the result was emulated.
	Raw string `json:"raw,omitempty"`
}

// NeutralSentiment returns the default sentiment result.
func NeutralSentiment() *SentimentResult {
	return &SentimentResult{Score: 0, Category: SentimentNeutral}
}

// ClassificationResult is the normalized output of text classification.
type ClassificationResult struct {
	// Category is always one of the supplied categories or UnknownCategory.
	Category string `json:"category"`

	// Confidence is in [0, 1].
	Confidence float64 `json:"confidence"`

	// Details maps categories to scores when the provider reports them.
	Details map[string]float64 `json:"details,omitempty"`

	// Raw preserves the upstream text when the result was emulated.
	Raw string `json:"raw,omitempty"`
}

// Entity is one de-duplicated named entity.
type Entity struct {
	Entity string  `json:"entity"`
	Type   string  `json:"type"`
	Count  int     `json:"count"`
	Score  float64 `json:"score"`
}

// UsageStats tracks token usage for billing and monitoring.
type UsageStats struct {
	// PromptTokens is the number of tokens in the input.
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens generated.
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the sum of prompt and completion tokens.
	TotalTokens int `json:"total_tokens"`
}

// ToInputs coerces a primary input value into a list of texts.
// A single string becomes a one-element list; nil becomes an empty list.
func ToInputs(v any) []string {
	switch t := v.(type) {
	case nil:
		return []string{}
	case string:
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case fmt.Stringer:
		return []string{t.String()}
	default:
		return []string{fmt.Sprint(t)}
	}
}
