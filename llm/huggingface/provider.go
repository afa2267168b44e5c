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

// Package huggingface provides a provider implementation for the HuggingFace
// Inference API. Every capability maps to a native task pipeline, so nothing
// is emulated: each operation just targets a different hosted model.
package huggingface

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"axonflow/aiservice/llm"
	"axonflow/aiservice/llm/emulation"
	"axonflow/aiservice/llm/sdk"
)

const (
	// DefaultBaseURL is the default Inference API endpoint
	DefaultBaseURL = "https://api-inference.huggingface.co"

	// DefaultModel is the text-generation model
	DefaultModel = "mistralai/Mistral-7B-Instruct-v0.3"

	// DefaultEmbeddingModel is the feature-extraction model
	DefaultEmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"

	// DefaultImageModel is the text-to-image model
	DefaultImageModel = "stabilityai/stable-diffusion-xl-base-1.0"

	// DefaultSentimentModel is the text-classification model used for sentiment
	DefaultSentimentModel = "distilbert-base-uncased-finetuned-sst-2-english"

	// DefaultClassificationModel is the zero-shot classification model
	DefaultClassificationModel = "facebook/bart-large-mnli"

	// DefaultNERModel is the token-classification model
	DefaultNERModel = "dslim/bert-base-NER"
)

// Config contains configuration for the HuggingFace provider
type Config struct {
	Name                string        // Optional: instance name (default: "huggingface")
	APIKey              string        // Required: HuggingFace access token
	BaseURL             string        // Optional: API base URL
	Model               string        // Optional: text-generation model
	EmbeddingModel      string        // Optional: feature-extraction model
	ImageModel          string        // Optional: text-to-image model
	SentimentModel      string        // Optional: sentiment model
	ClassificationModel string        // Optional: zero-shot model
	NERModel            string        // Optional: token-classification model
	Timeout             time.Duration // Optional: HTTP timeout (default: 30s)

	// HTTPClient overrides the transport (testing).
	HTTPClient sdk.HTTPClient

	// ClientOptions are applied after the defaults above.
	ClientOptions []sdk.ClientOption
}

// Provider implements llm.Provider for the HuggingFace Inference API
type Provider struct {
	name                string
	model               string
	embeddingModel      string
	imageModel          string
	sentimentModel      string
	classificationModel string
	nerModel            string
	client              *sdk.Client
}

// NewProvider creates a new HuggingFace provider instance
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("huggingface API key is required")
	}
	if cfg.Name == "" {
		cfg.Name = string(llm.ProviderTypeHuggingFace)
	}

	opts := []sdk.ClientOption{
		sdk.WithTimeout(cfg.Timeout),
		sdk.WithHTTPClient(cfg.HTTPClient),
		sdk.WithAuth(sdk.NewBearerTokenAuth(cfg.APIKey)),
	}
	opts = append(opts, cfg.ClientOptions...)

	return &Provider{
		name:                cfg.Name,
		model:               orDefault(cfg.Model, DefaultModel),
		embeddingModel:      orDefault(cfg.EmbeddingModel, DefaultEmbeddingModel),
		imageModel:          orDefault(cfg.ImageModel, DefaultImageModel),
		sentimentModel:      orDefault(cfg.SentimentModel, DefaultSentimentModel),
		classificationModel: orDefault(cfg.ClassificationModel, DefaultClassificationModel),
		nerModel:            orDefault(cfg.NERModel, DefaultNERModel),
		client:              sdk.NewClient(cfg.Name, orDefault(cfg.BaseURL, DefaultBaseURL), opts...),
	}, nil
}

// NewFactory creates a HuggingFace provider from registry configuration.
// Task models come from the sentiment_model, classification_model and
// ner_model settings.
func NewFactory(config llm.ProviderConfig) (llm.Provider, error) {
	return NewProvider(Config{
		Name:                config.Name,
		APIKey:              config.APIKey,
		BaseURL:             config.BaseURI,
		Model:               config.DefaultModel,
		EmbeddingModel:      config.DefaultEmbeddingModel,
		ImageModel:          config.DefaultImageModel,
		SentimentModel:      config.Setting("sentiment_model", ""),
		ClassificationModel: config.Setting("classification_model", ""),
		NERModel:            config.Setting("ner_model", ""),
		ClientOptions:       sdk.OptionsFromConfig(config),
	})
}

// Name returns the provider name
func (p *Provider) Name() string {
	return p.name
}

// Type returns the provider type
func (p *Provider) Type() llm.ProviderType {
	return llm.ProviderTypeHuggingFace
}

// Client returns the underlying HTTP client
func (p *Provider) Client() any {
	return p.client
}

func modelPath(model string) string {
	parts := strings.Split(model, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return "/models/" + strings.Join(parts, "/")
}

type inferenceRequest struct {
	Inputs     any            `json:"inputs"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Options    map[string]any `json:"options,omitempty"`
}

// waitForModel asks the API to block while a cold model loads instead of
// failing with 503.
var waitForModel = map[string]any{"wait_for_model": true}

// =============================================================================
// Text generation
// =============================================================================

// GenerateText calls a text-generation pipeline
func (p *Provider) GenerateText(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	model := opts.Model(p.model)

	params := map[string]any{"return_full_text": false}
	if opts.Has(llm.OptionTemperature) {
		params["temperature"] = opts.Float(llm.OptionTemperature, 0)
	}
	if n := opts.Int(llm.OptionMaxTokens, 0); n > 0 {
		params["max_new_tokens"] = n
	}
	if opts.Has(llm.OptionTopP) {
		params["top_p"] = opts.Float(llm.OptionTopP, 1)
	}
	if system := opts.String(llm.OptionSystemPrompt, ""); system != "" {
		prompt = system + "\n\n" + prompt
	}

	resp, err := p.client.Post(ctx, modelPath(model), model, inferenceRequest{Inputs: prompt, Parameters: params, Options: waitForModel})
	if err != nil {
		return "", err
	}

	// The pipeline answers with a list of generations or, for some
	// deployments, a single object.
	var list []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(resp.Body, &list); err == nil && len(list) > 0 {
		llm.RecordModel(ctx, model)
		return list[0].GeneratedText, nil
	}
	var single struct {
		GeneratedText *string `json:"generated_text"`
	}
	if err := json.Unmarshal(resp.Body, &single); err == nil && single.GeneratedText != nil {
		llm.RecordModel(ctx, model)
		return *single.GeneratedText, nil
	}
	return "", llm.NewAPIError(p.name, model, "unexpected text-generation response", nil)
}

// =============================================================================
// Embeddings
// =============================================================================

// GenerateEmbeddings calls a feature-extraction pipeline. Models that return
// per-token vectors are mean-pooled into one vector per input.
func (p *Provider) GenerateEmbeddings(ctx context.Context, input []string, opts llm.Options) ([][]float64, error) {
	if len(input) == 0 {
		return [][]float64{}, nil
	}
	model := opts.Model(p.embeddingModel)

	resp, err := p.client.Post(ctx, modelPath(model), model, inferenceRequest{Inputs: input, Options: waitForModel})
	if err != nil {
		return nil, err
	}

	var vectors [][]float64
	if err := json.Unmarshal(resp.Body, &vectors); err != nil {
		var tokens [][][]float64
		if err := json.Unmarshal(resp.Body, &tokens); err != nil {
			return nil, llm.NewAPIError(p.name, model, "unexpected feature-extraction response", err)
		}
		vectors = make([][]float64, len(tokens))
		for i, t := range tokens {
			vectors[i] = meanPool(t)
		}
	}
	if len(vectors) != len(input) {
		return nil, llm.NewAPIError(p.name, model,
			fmt.Sprintf("expected %d embeddings, got %d", len(input), len(vectors)), nil)
	}

	llm.RecordModel(ctx, model)
	return vectors, nil
}

func meanPool(tokens [][]float64) []float64 {
	if len(tokens) == 0 {
		return []float64{}
	}
	out := make([]float64, len(tokens[0]))
	for _, tok := range tokens {
		for i := range out {
			if i < len(tok) {
				out[i] += tok[i]
			}
		}
	}
	for i := range out {
		out[i] /= float64(len(tokens))
	}
	return out
}

// =============================================================================
// Sentiment
// =============================================================================

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// AnalyzeSentiment calls a text-classification pipeline. The score is the
// positive probability minus the negative probability.
func (p *Provider) AnalyzeSentiment(ctx context.Context, text string, opts llm.Options) (*llm.SentimentResult, error) {
	model := opts.Model(p.sentimentModel)

	resp, err := p.client.Post(ctx, modelPath(model), model, inferenceRequest{Inputs: text, Options: waitForModel})
	if err != nil {
		return nil, err
	}

	labels, err := decodeLabelScores(resp.Body)
	if err != nil {
		return nil, llm.NewAPIError(p.name, model, "unexpected text-classification response", err)
	}

	llm.RecordModel(ctx, model)
	return sentimentFromLabels(labels), nil
}

// decodeLabelScores accepts [[{label,score}]] and [{label,score}].
func decodeLabelScores(body []byte) ([]labelScore, error) {
	var nested [][]labelScore
	if err := json.Unmarshal(body, &nested); err == nil {
		if len(nested) == 0 {
			return nil, nil
		}
		return nested[0], nil
	}
	var flat []labelScore
	if err := json.Unmarshal(body, &flat); err != nil {
		return nil, err
	}
	return flat, nil
}

func sentimentFromLabels(labels []labelScore) *llm.SentimentResult {
	if len(labels) == 0 {
		return llm.NeutralSentiment()
	}

	var pos, neg float64
	details := make(map[string]any, len(labels))
	best := labels[0]
	for _, l := range labels {
		details[strings.ToLower(l.Label)] = l.Score
		if l.Score > best.Score {
			best = l
		}
		switch sentimentOf(l.Label) {
		case llm.SentimentPositive:
			pos = l.Score
		case llm.SentimentNegative:
			neg = l.Score
		}
	}

	return emulation.NormalizeSentiment(&llm.SentimentResult{
		Score:    pos - neg,
		Category: sentimentOf(best.Label),
		Details:  details,
	})
}

func sentimentOf(label string) llm.Sentiment {
	switch strings.ToLower(label) {
	case "positive", "pos", "label_2", "5 stars", "4 stars":
		return llm.SentimentPositive
	case "negative", "neg", "label_0", "1 star", "2 stars":
		return llm.SentimentNegative
	default:
		return llm.SentimentNeutral
	}
}

// =============================================================================
// Classification
// =============================================================================

type zeroShotResponse struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

// ClassifyText calls a zero-shot-classification pipeline with categories as
// candidate labels.
func (p *Provider) ClassifyText(ctx context.Context, text string, categories []string, opts llm.Options) (*llm.ClassificationResult, error) {
	if len(categories) == 0 {
		return nil, llm.ErrNoCategories
	}
	model := opts.Model(p.classificationModel)

	req := inferenceRequest{
		Inputs:     text,
		Parameters: map[string]any{"candidate_labels": categories},
		Options:    waitForModel,
	}
	var resp zeroShotResponse
	if err := p.client.PostJSON(ctx, modelPath(model), model, req, &resp); err != nil {
		return nil, err
	}

	result := &llm.ClassificationResult{Category: categories[0], Details: make(map[string]float64)}
	for i, label := range resp.Labels {
		if i >= len(resp.Scores) {
			break
		}
		category, ok := emulation.MatchCategory(label, categories)
		if !ok {
			continue
		}
		score := emulation.NormalizeConfidence(resp.Scores[i])
		result.Details[category] = score
		if score > result.Confidence {
			result.Category = category
			result.Confidence = score
		}
	}

	llm.RecordModel(ctx, model)
	return result, nil
}

// =============================================================================
// Entities
// =============================================================================

type nerEntity struct {
	EntityGroup string  `json:"entity_group"`
	Entity      string  `json:"entity"`
	Word        string  `json:"word"`
	Score       float64 `json:"score"`
}

// ExtractEntities calls a token-classification pipeline with grouped output
// and merges the detections.
func (p *Provider) ExtractEntities(ctx context.Context, text string, opts llm.Options) ([]llm.Entity, error) {
	model := opts.Model(p.nerModel)

	req := inferenceRequest{
		Inputs:     text,
		Parameters: map[string]any{"aggregation_strategy": "simple"},
		Options:    waitForModel,
	}
	var resp []nerEntity
	if err := p.client.PostJSON(ctx, modelPath(model), model, req, &resp); err != nil {
		return nil, err
	}

	detections := make([]emulation.Detection, 0, len(resp))
	for _, e := range resp {
		typ := e.EntityGroup
		if typ == "" {
			// Ungrouped output tags tokens as B-ORG / I-ORG.
			typ = strings.TrimPrefix(strings.TrimPrefix(e.Entity, "B-"), "I-")
		}
		detections = append(detections, emulation.Detection{Text: e.Word, Type: typ, Score: e.Score})
	}

	llm.RecordModel(ctx, model)
	return emulation.MergeEntities(detections, emulation.EntityThreshold(opts)), nil
}

// =============================================================================
// Images
// =============================================================================

// GenerateImage calls a text-to-image pipeline and returns the image as a
// base64 data URI.
func (p *Provider) GenerateImage(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	model := opts.Model(p.imageModel)

	resp, err := p.client.Post(ctx, modelPath(model), model, inferenceRequest{Inputs: prompt, Options: waitForModel})
	if err != nil {
		return "", err
	}
	if resp.IsJSON() || len(resp.Body) == 0 {
		return "", llm.NewAPIError(p.name, model, "text-to-image response carried no image", nil)
	}

	contentType := strings.TrimSpace(strings.Split(resp.ContentType, ";")[0])
	if !strings.HasPrefix(contentType, "image/") {
		contentType = "image/jpeg"
	}
	llm.RecordModel(ctx, model)
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(resp.Body), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Verify interface compliance at compile time.
var _ llm.Provider = (*Provider)(nil)
