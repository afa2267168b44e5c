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

// Package usage records one append-only entry per provider attempt and
// answers queries and token summaries over them.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"axonflow/aiservice/llm"
)

// Status is the outcome of one attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Record is one persisted attempt.
type Record struct {
	ID               string          `json:"id"`
	Provider         string          `json:"provider"`
	Model            string          `json:"model"`
	Operation        llm.Operation   `json:"operation"`
	Prompt           string          `json:"prompt"`
	Completion       string          `json:"completion,omitempty"`
	PromptTokens     int             `json:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens"`
	TotalTokens      int             `json:"total_tokens"`
	CallerID         string          `json:"caller_id,omitempty"`
	RequestData      json.RawMessage `json:"request_data,omitempty"`
	ResponseData     json.RawMessage `json:"response_data,omitempty"`
	ExecutionTime    float64         `json:"execution_time"` // seconds
	Status           Status          `json:"status"`
	Error            string          `json:"error,omitempty"`
	Metadata         map[string]any  `json:"metadata,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// SuccessDetails are the optional attributes of a successful attempt.
type SuccessDetails struct {
	Operation       llm.Operation
	Usage           *llm.UsageStats
	ExecutionTime   time.Duration
	CallerID        string
	RequestPayload  any
	ResponsePayload any
	Metadata        map[string]any
}

// FailureDetails are the optional attributes of a failed attempt.
type FailureDetails struct {
	Operation      llm.Operation
	ExecutionTime  time.Duration
	CallerID       string
	RequestPayload any
	Metadata       map[string]any
}

// Filter selects records. Zero fields match everything.
type Filter struct {
	Provider string
	Model    string
	Status   Status
	CallerID string
	Since    time.Time // inclusive
	Until    time.Time // exclusive
	Limit    int
}

// Summary aggregates token usage over a set of records.
type Summary struct {
	PromptTokens        int64   `json:"prompt_tokens"`
	CompletionTokens    int64   `json:"completion_tokens"`
	TotalTokens         int64   `json:"total_tokens"`
	Requests            int64   `json:"requests"`
	ActiveDays          int64   `json:"active_days"`
	AvgTokensPerRequest float64 `json:"avg_tokens_per_request"`
}

func (s *Summary) finish() *Summary {
	if s.Requests > 0 {
		s.AvgTokensPerRequest = float64(s.TotalTokens) / float64(s.Requests)
	}
	return s
}

// Recorder is the sink the dispatcher writes attempts to.
type Recorder interface {
	RecordSuccess(ctx context.Context, provider, model, input, output string, details SuccessDetails) error
	RecordFailure(ctx context.Context, provider, model, input, errMessage string, details FailureDetails) error
}

// Sink appends finished records.
type Sink interface {
	Append(ctx context.Context, rec *Record) error
}

// Store is a queryable Sink.
type Store interface {
	Sink
	Query(ctx context.Context, filter Filter) ([]Record, error)
	Summarize(ctx context.Context, filter Filter) (*Summary, error)
	Purge(ctx context.Context, olderThan time.Time) (int64, error)
}

// Text renders an operation input or output for the prompt/completion
// columns: strings as-is, everything else as JSON.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func payload(v any) json.RawMessage {
	switch t := v.(type) {
	case nil:
		return nil
	case json.RawMessage:
		if len(t) == 0 {
			return nil
		}
		return t
	case []byte:
		if json.Valid(t) {
			return t
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
