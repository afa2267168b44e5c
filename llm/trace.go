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
	"sync"
)

// Trace collects what an adapter observed during one attempt: the model that
// served it, token usage and the raw wire payloads. The dispatcher attaches a
// fresh Trace to the context of every attempt and reads it back for usage
// records; adapters report into it with the Record* helpers, which are no-ops
// when no Trace is attached.
type Trace struct {
	mu       sync.Mutex
	model    string
	usage    UsageStats
	request  any
	response any
}

type traceKey struct{}

// WithTrace returns a context carrying a new Trace.
func WithTrace(ctx context.Context) (context.Context, *Trace) {
	t := &Trace{}
	return context.WithValue(ctx, traceKey{}, t), t
}

// TraceFrom returns the Trace attached to ctx, or nil.
func TraceFrom(ctx context.Context) *Trace {
	t, _ := ctx.Value(traceKey{}).(*Trace)
	return t
}

// RecordModel notes the model that served the request.
func RecordModel(ctx context.Context, model string) {
	if t := TraceFrom(ctx); t != nil && model != "" {
		t.mu.Lock()
		t.model = model
		t.mu.Unlock()
	}
}

// RecordUsage adds token usage. Emulated operations may call it more than
// once per attempt, so counts accumulate.
func RecordUsage(ctx context.Context, usage UsageStats) {
	t := TraceFrom(ctx)
	if t == nil {
		return
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	t.mu.Lock()
	t.usage.PromptTokens += usage.PromptTokens
	t.usage.CompletionTokens += usage.CompletionTokens
	t.usage.TotalTokens += usage.TotalTokens
	t.mu.Unlock()
}

// RecordPayloads stores the raw request and response bodies.
func RecordPayloads(ctx context.Context, request, response any) {
	if t := TraceFrom(ctx); t != nil {
		t.mu.Lock()
		t.request = request
		t.response = response
		t.mu.Unlock()
	}
}

// Model returns the recorded model.
func (t *Trace) Model() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.model
}

// Usage returns the accumulated token usage.
func (t *Trace) Usage() UsageStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usage
}

// Payloads returns the recorded request and response bodies.
func (t *Trace) Payloads() (request, response any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.request, t.response
}
