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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOperation(t *testing.T) {
	tests := []struct {
		in   string
		want Operation
	}{
		{"generate_text", OpGenerateText},
		{"generateText", OpGenerateText},
		{"GenerateEmbeddings", OpGenerateEmbeddings},
		{"analyze-sentiment", OpAnalyzeSentiment},
		{" classify_text ", OpClassifyText},
		{"extractEntities", OpExtractEntities},
		{"generate_image", OpGenerateImage},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOperation(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseOperation("summarize")
	assert.Error(t, err)
}

func TestToInputs(t *testing.T) {
	assert.Equal(t, []string{}, ToInputs(nil))
	assert.Equal(t, []string{"hello"}, ToInputs("hello"))
	assert.Equal(t, []string{"a", "b"}, ToInputs([]string{"a", "b"}))
	assert.Equal(t, []string{"a", "1"}, ToInputs([]any{"a", 1}))
	assert.Equal(t, []string{"42"}, ToInputs(42))
}

func TestOptions(t *testing.T) {
	var nilOpts Options
	assert.Equal(t, "def", nilOpts.String(OptionModel, "def"))
	assert.Equal(t, 0.7, nilOpts.Float(OptionTemperature, 0.7))
	assert.False(t, nilOpts.Has(OptionModel))

	opts := Options{OptionModel: "gpt-4o", OptionMaxTokens: 256.0, OptionTemperature: "0.2"}
	assert.Equal(t, "gpt-4o", opts.Model("fallback"))
	assert.Equal(t, 256, opts.Int(OptionMaxTokens, 0))
	assert.Equal(t, 0.2, opts.Float(OptionTemperature, 1))

	derived := opts.With(OptionModel, "gpt-4o-mini")
	assert.Equal(t, "gpt-4o", opts.Model(""), "With must not mutate the receiver")
	assert.Equal(t, "gpt-4o-mini", derived.Model(""))

	stripped := opts.Without(OptionModel)
	assert.True(t, opts.Has(OptionModel))
	assert.False(t, stripped.Has(OptionModel))
}

func TestTrace(t *testing.T) {
	// Helpers are no-ops without a trace.
	RecordModel(context.Background(), "m")
	RecordUsage(context.Background(), UsageStats{PromptTokens: 1})

	ctx, trace := WithTrace(context.Background())
	RecordModel(ctx, "gpt-4o")
	RecordUsage(ctx, UsageStats{PromptTokens: 10, CompletionTokens: 5})
	RecordUsage(ctx, UsageStats{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2})
	RecordPayloads(ctx, map[string]any{"q": 1}, "resp")

	assert.Equal(t, "gpt-4o", trace.Model())
	assert.Equal(t, UsageStats{PromptTokens: 11, CompletionTokens: 6, TotalTokens: 17}, trace.Usage())
	req, resp := trace.Payloads()
	assert.Equal(t, map[string]any{"q": 1}, req)
	assert.Equal(t, "resp", resp)
	assert.Same(t, trace, TraceFrom(ctx))
}
