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

package usage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"axonflow/aiservice/shared/logger"
)

// SinkRecorder builds records and appends them to every sink.
type SinkRecorder struct {
	sinks []Sink
	now   func() time.Time
}

// NewRecorder creates a Recorder writing to sinks. Nil sinks are skipped.
func NewRecorder(sinks ...Sink) *SinkRecorder {
	r := &SinkRecorder{now: time.Now}
	for _, s := range sinks {
		if s != nil {
			r.sinks = append(r.sinks, s)
		}
	}
	return r
}

// RecordSuccess implements Recorder.
func (r *SinkRecorder) RecordSuccess(ctx context.Context, provider, model, input, output string, d SuccessDetails) error {
	rec := r.newRecord(provider, model, input, StatusSuccess)
	rec.Operation = d.Operation
	rec.Completion = output
	if d.Usage != nil {
		rec.PromptTokens = d.Usage.PromptTokens
		rec.CompletionTokens = d.Usage.CompletionTokens
		rec.TotalTokens = d.Usage.TotalTokens
		if rec.TotalTokens == 0 {
			rec.TotalTokens = rec.PromptTokens + rec.CompletionTokens
		}
	}
	rec.ExecutionTime = d.ExecutionTime.Seconds()
	rec.CallerID = d.CallerID
	rec.RequestData = payload(d.RequestPayload)
	rec.ResponseData = payload(d.ResponsePayload)
	rec.Metadata = d.Metadata
	return r.append(ctx, rec)
}

// RecordFailure implements Recorder.
func (r *SinkRecorder) RecordFailure(ctx context.Context, provider, model, input, errMessage string, d FailureDetails) error {
	rec := r.newRecord(provider, model, input, StatusError)
	rec.Operation = d.Operation
	rec.Error = errMessage
	rec.ExecutionTime = d.ExecutionTime.Seconds()
	rec.CallerID = d.CallerID
	rec.RequestData = payload(d.RequestPayload)
	rec.Metadata = d.Metadata
	return r.append(ctx, rec)
}

func (r *SinkRecorder) newRecord(provider, model, input string, status Status) *Record {
	now := r.now().UTC()
	return &Record{
		ID:        uuid.New().String(),
		Provider:  provider,
		Model:     model,
		Prompt:    input,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r *SinkRecorder) append(ctx context.Context, rec *Record) error {
	var errs []error
	for _, s := range r.sinks {
		if err := s.Append(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes each record to the component logger.
type LogSink struct {
	log *logger.Logger
}

// NewLogSink creates a sink over log.
func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log}
}

// Append implements Sink.
func (s *LogSink) Append(_ context.Context, rec *Record) error {
	fields := map[string]interface{}{
		"usage_id":          rec.ID,
		"provider":          rec.Provider,
		"model":             rec.Model,
		"operation":         string(rec.Operation),
		"status":            string(rec.Status),
		"prompt_tokens":     rec.PromptTokens,
		"completion_tokens": rec.CompletionTokens,
		"total_tokens":      rec.TotalTokens,
	}
	if len(rec.Metadata) > 0 {
		fields["metadata"] = rec.Metadata
	}
	if rec.Status == StatusError {
		fields["error"] = rec.Error
		fields["duration_ms"] = rec.ExecutionTime * 1000
		s.log.Warn(rec.CallerID, rec.ID, "AI request failed", fields)
		return nil
	}
	s.log.InfoWithDuration(rec.CallerID, rec.ID, "AI request completed", rec.ExecutionTime*1000, fields)
	return nil
}
