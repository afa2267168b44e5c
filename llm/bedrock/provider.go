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

// Package bedrock provides a provider implementation for AWS Bedrock using
// AWS SDK v2. Requests are signed with Signature V4 from static keys when
// configured, otherwise from the default credential chain.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"axonflow/aiservice/llm"
	"axonflow/aiservice/llm/emulation"
	"axonflow/aiservice/llm/sdk"
)

const (
	// DefaultRegion is used when no region is configured
	DefaultRegion = "us-east-1"

	// DefaultModel is the text model
	DefaultModel = "anthropic.claude-3-5-sonnet-20240620-v1:0"

	// DefaultEmbeddingModel is the embedding model
	DefaultEmbeddingModel = "amazon.titan-embed-text-v2:0"

	// DefaultImageModel is the image model
	DefaultImageModel = "amazon.titan-image-generator-v1"

	// DefaultMaxTokens is sent when the caller sets no limit
	DefaultMaxTokens = 1024

	anthropicVersion = "bedrock-2023-05-31"
)

// InvokeModelAPI is the subset of the Bedrock runtime client used here.
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Config contains configuration for the Bedrock provider
type Config struct {
	Name           string        // Optional: instance name (default: "bedrock")
	Region         string        // Optional: AWS region (default: us-east-1)
	Model          string        // Optional: text model ID
	EmbeddingModel string        // Optional: embedding model ID
	ImageModel     string        // Optional: image model ID
	Timeout        time.Duration // Optional: per-call timeout (default: 30s)
	Endpoint       string        // Optional: runtime endpoint override

	// Static credentials. Both keys must be set to take effect.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// Client overrides the runtime client (testing). When nil a client is
	// built from the default AWS configuration.
	Client InvokeModelAPI
}

// Provider implements llm.Provider for AWS Bedrock
type Provider struct {
	name           string
	region         string
	model          string
	embeddingModel string
	imageModel     string
	timeout        time.Duration
	client         InvokeModelAPI
	emulator       *emulation.Emulator
}

// NewProvider creates a new Bedrock provider
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Name == "" {
		cfg.Name = string(llm.ProviderTypeBedrock)
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
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
	if cfg.Timeout <= 0 {
		cfg.Timeout = sdk.DefaultTimeout
	}

	if cfg.Client == nil {
		client, err := newRuntimeClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		cfg.Client = client
	}

	if family := modelFamily(cfg.Model); family == "" {
		return nil, fmt.Errorf("unsupported Bedrock model family: %s", cfg.Model)
	}

	p := &Provider{
		name:           cfg.Name,
		region:         cfg.Region,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		imageModel:     cfg.ImageModel,
		timeout:        cfg.Timeout,
		client:         cfg.Client,
	}
	p.emulator = emulation.New(p)
	return p, nil
}

// newRuntimeClient loads the AWS configuration for cfg.Region.
func newRuntimeClient(ctx context.Context, cfg Config) (*bedrockruntime.Client, error) {
	optFns := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
		optFns = append(optFns, awsconfig.WithCredentialsProvider(creds))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for Bedrock (region: %s): %w", cfg.Region, err)
	}

	var clientOpts []func(*bedrockruntime.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *bedrockruntime.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	return bedrockruntime.NewFromConfig(awsCfg, clientOpts...), nil
}

// NewFactory creates a Bedrock provider from registry configuration. Static
// keys are read from the access_key_id, secret_access_key and session_token
// settings; without them the AWS default chain applies.
func NewFactory(config llm.ProviderConfig) (llm.Provider, error) {
	return NewProvider(context.Background(), Config{
		Name:           config.Name,
		Region:         config.Region,
		Model:          config.DefaultModel,
		EmbeddingModel: config.DefaultEmbeddingModel,
		ImageModel:     config.DefaultImageModel,
		Timeout:        time.Duration(config.TimeoutSeconds) * time.Second,
		Endpoint:       config.BaseURI,

		AccessKeyID:     config.Setting("access_key_id", ""),
		SecretAccessKey: config.Setting("secret_access_key", ""),
		SessionToken:    config.Setting("session_token", ""),
	})
}

// Name returns the provider name
func (p *Provider) Name() string {
	return p.name
}

// Type returns the provider type
func (p *Provider) Type() llm.ProviderType {
	return llm.ProviderTypeBedrock
}

// Client returns the Bedrock runtime client
func (p *Provider) Client() any {
	return p.client
}

// Region returns the configured AWS region
func (p *Provider) Region() string {
	return p.region
}

// invoke sends one InvokeModel call and returns the raw response body.
func (p *Provider) invoke(ctx context.Context, model string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, llm.NewGeneralError(p.name, model, fmt.Errorf("failed to marshal request: %w", err))
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.client.InvokeModel(callCtx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		Body:        payload,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &llm.ProviderError{
				Kind:     llm.KindServiceUnavailable,
				Message:  "request timed out",
				Provider: p.name,
				Model:    model,
				Cause:    err,
			}
		}
		return nil, mapError(p.name, model, err)
	}

	llm.RecordPayloads(ctx, json.RawMessage(payload), json.RawMessage(out.Body))
	return out.Body, nil
}

// =============================================================================
// Text generation
// =============================================================================

// GenerateText invokes the text model with the body format of its family
func (p *Provider) GenerateText(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	model := opts.Model(p.model)
	family := modelFamily(model)
	if family == "" {
		return "", llm.NewInvalidModelError(p.name, model)
	}

	body := buildTextRequest(family, prompt, opts)
	raw, err := p.invoke(ctx, model, body)
	if err != nil {
		return "", err
	}

	text, usage, err := parseTextResponse(family, raw)
	if err != nil {
		return "", llm.NewAPIError(p.name, model, "failed to parse response", err)
	}
	llm.RecordModel(ctx, model)
	llm.RecordUsage(ctx, usage)
	return text, nil
}

func buildTextRequest(family, prompt string, opts llm.Options) map[string]any {
	maxTokens := opts.Int(llm.OptionMaxTokens, DefaultMaxTokens)
	system := opts.String(llm.OptionSystemPrompt, "")

	var body map[string]any
	switch family {
	case "anthropic":
		body = map[string]any{
			"anthropic_version": anthropicVersion,
			"max_tokens":        maxTokens,
			"messages":          []map[string]string{{"role": "user", "content": prompt}},
		}
		if system != "" {
			body["system"] = system
		}
		setSampling(body, opts, "temperature", "top_p")
	case "amazon":
		if system != "" {
			prompt = system + "\n\n" + prompt
		}
		gen := map[string]any{"maxTokenCount": maxTokens}
		setSampling(gen, opts, "temperature", "topP")
		body = map[string]any{"inputText": prompt, "textGenerationConfig": gen}
	case "meta":
		if system != "" {
			prompt = system + "\n\n" + prompt
		}
		body = map[string]any{"prompt": prompt, "max_gen_len": maxTokens}
		setSampling(body, opts, "temperature", "top_p")
	case "mistral":
		if system != "" {
			prompt = system + "\n\n" + prompt
		}
		body = map[string]any{"prompt": prompt, "max_tokens": maxTokens}
		setSampling(body, opts, "temperature", "top_p")
	}
	return body
}

func setSampling(m map[string]any, opts llm.Options, temperatureKey, topPKey string) {
	if opts.Has(llm.OptionTemperature) {
		m[temperatureKey] = opts.Float(llm.OptionTemperature, 0)
	}
	if opts.Has(llm.OptionTopP) {
		m[topPKey] = opts.Float(llm.OptionTopP, 1)
	}
}

func parseTextResponse(family string, raw []byte) (string, llm.UsageStats, error) {
	switch family {
	case "anthropic":
		var resp struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			Usage struct {
				InputTokens  int `json:"input_tokens"`
				OutputTokens int `json:"output_tokens"`
			} `json:"usage"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			return "", llm.UsageStats{}, err
		}
		var text strings.Builder
		for _, block := range resp.Content {
			if block.Type == "" || block.Type == "text" {
				text.WriteString(block.Text)
			}
		}
		return text.String(), llm.UsageStats{PromptTokens: resp.Usage.InputTokens, CompletionTokens: resp.Usage.OutputTokens}, nil

	case "amazon":
		var resp struct {
			InputTextTokenCount int `json:"inputTextTokenCount"`
			Results             []struct {
				OutputText string `json:"outputText"`
				TokenCount int    `json:"tokenCount"`
			} `json:"results"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			return "", llm.UsageStats{}, err
		}
		usage := llm.UsageStats{PromptTokens: resp.InputTextTokenCount}
		if len(resp.Results) == 0 {
			return "", usage, nil
		}
		usage.CompletionTokens = resp.Results[0].TokenCount
		return resp.Results[0].OutputText, usage, nil

	case "meta":
		var resp struct {
			Generation       string `json:"generation"`
			PromptTokenCount int    `json:"prompt_token_count"`
			GenTokenCount    int    `json:"generation_token_count"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			return "", llm.UsageStats{}, err
		}
		return resp.Generation, llm.UsageStats{PromptTokens: resp.PromptTokenCount, CompletionTokens: resp.GenTokenCount}, nil

	case "mistral":
		var resp struct {
			Outputs []struct {
				Text string `json:"text"`
			} `json:"outputs"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			return "", llm.UsageStats{}, err
		}
		// Mistral reports no token counts.
		if len(resp.Outputs) == 0 {
			return "", llm.UsageStats{}, nil
		}
		return resp.Outputs[0].Text, llm.UsageStats{}, nil
	}
	return "", llm.UsageStats{}, fmt.Errorf("unsupported model family: %s", family)
}

// =============================================================================
// Embeddings and images (Amazon Titan)
// =============================================================================

// GenerateEmbeddings invokes the Titan embedding model once per input
func (p *Provider) GenerateEmbeddings(ctx context.Context, input []string, opts llm.Options) ([][]float64, error) {
	if len(input) == 0 {
		return [][]float64{}, nil
	}
	model := opts.Model(p.embeddingModel)

	vectors := make([][]float64, 0, len(input))
	var promptTokens int
	for _, text := range input {
		raw, err := p.invoke(ctx, model, map[string]any{"inputText": text})
		if err != nil {
			return nil, err
		}
		var resp struct {
			Embedding           []float64 `json:"embedding"`
			InputTextTokenCount int       `json:"inputTextTokenCount"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, llm.NewAPIError(p.name, model, "failed to parse embedding response", err)
		}
		vectors = append(vectors, resp.Embedding)
		promptTokens += resp.InputTextTokenCount
	}

	llm.RecordModel(ctx, model)
	llm.RecordUsage(ctx, llm.UsageStats{PromptTokens: promptTokens})
	return vectors, nil
}

// GenerateImage invokes the Titan image model and returns a PNG data URI
func (p *Provider) GenerateImage(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	model := opts.Model(p.imageModel)
	width, height := parseSize(opts.String(llm.OptionImageSize, "1024x1024"))

	body := map[string]any{
		"taskType":          "TEXT_IMAGE",
		"textToImageParams": map[string]any{"text": prompt},
		"imageGenerationConfig": map[string]any{
			"numberOfImages": 1,
			"width":          width,
			"height":         height,
		},
	}
	raw, err := p.invoke(ctx, model, body)
	if err != nil {
		return "", err
	}

	var resp struct {
		Images []string `json:"images"`
		Error  string   `json:"error"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", llm.NewAPIError(p.name, model, "failed to parse image response", err)
	}
	if resp.Error != "" {
		return "", llm.NewAPIError(p.name, model, resp.Error, nil)
	}
	if len(resp.Images) == 0 {
		return "", llm.NewAPIError(p.name, model, "response contained no images", nil)
	}

	llm.RecordModel(ctx, model)
	return "data:image/png;base64," + resp.Images[0], nil
}

func parseSize(size string) (width, height int) {
	if _, err := fmt.Sscanf(size, "%dx%d", &width, &height); err != nil || width <= 0 || height <= 0 {
		return 1024, 1024
	}
	return width, height
}

// AnalyzeSentiment is emulated through the text model
func (p *Provider) AnalyzeSentiment(ctx context.Context, text string, opts llm.Options) (*llm.SentimentResult, error) {
	return p.emulator.AnalyzeSentiment(ctx, text, opts)
}

// ClassifyText is emulated through the text model
func (p *Provider) ClassifyText(ctx context.Context, text string, categories []string, opts llm.Options) (*llm.ClassificationResult, error) {
	return p.emulator.ClassifyText(ctx, text, categories, opts)
}

// ExtractEntities is emulated through the text model
func (p *Provider) ExtractEntities(ctx context.Context, text string, opts llm.Options) ([]llm.Entity, error) {
	return p.emulator.ExtractEntities(ctx, text, opts)
}

// =============================================================================
// Model families
// =============================================================================

// inferenceProfilePrefixes are the known AWS Bedrock inference profile prefixes.
var inferenceProfilePrefixes = []string{"eu", "us", "apac", "global"}

// supportedFamilies are the text model families this provider can address.
var supportedFamilies = []string{"anthropic", "amazon", "meta", "mistral"}

// modelFamily returns the family of a model ID such as
// "anthropic.claude-3-5-sonnet-20240620-v1:0" or the inference profile form
// "us.anthropic.claude-...". Unknown families return "".
func modelFamily(modelID string) string {
	segments := strings.Split(modelID, ".")
	if len(segments) < 2 {
		return ""
	}
	family := segments[0]
	for _, prefix := range inferenceProfilePrefixes {
		if family == prefix {
			family = segments[1]
			break
		}
	}
	for _, supported := range supportedFamilies {
		if family == supported {
			return family
		}
	}
	return ""
}

// Verify interface compliance at compile time.
var _ llm.Provider = (*Provider)(nil)
