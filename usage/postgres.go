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
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"axonflow/aiservice/llm"
)

// TableName is the usage table.
const TableName = "ai_usage_logs"

const schema = `
CREATE TABLE IF NOT EXISTS ai_usage_logs (
	id VARCHAR(36) PRIMARY KEY,
	provider VARCHAR(100) NOT NULL,
	model VARCHAR(255) NOT NULL DEFAULT '',
	operation VARCHAR(50) NOT NULL DEFAULT '',
	prompt TEXT NOT NULL DEFAULT '',
	completion TEXT,
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens INTEGER NOT NULL DEFAULT 0,
	caller_id VARCHAR(255),
	request_data JSONB,
	response_data JSONB,
	execution_time DOUBLE PRECISION NOT NULL DEFAULT 0,
	status VARCHAR(20) NOT NULL,
	error TEXT,
	metadata JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_ai_usage_logs_provider_model ON ai_usage_logs (provider, model);
CREATE INDEX IF NOT EXISTS idx_ai_usage_logs_created_at ON ai_usage_logs (created_at);
CREATE INDEX IF NOT EXISTS idx_ai_usage_logs_caller ON ai_usage_logs (caller_id)`

const selectColumns = `id, provider, model, operation, prompt, completion,
	prompt_tokens, completion_tokens, total_tokens, caller_id,
	request_data, response_data, execution_time, status, error, metadata,
	created_at, updated_at`

// PostgresStore persists usage records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store over an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the usage table and its indexes if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create usage table: %w", err)
	}
	return nil
}

// Append inserts one record.
func (s *PostgresStore) Append(ctx context.Context, rec *Record) error {
	var metadata []byte
	if len(rec.Metadata) > 0 {
		b, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal usage metadata: %w", err)
		}
		metadata = b
	}

	query := `
		INSERT INTO ai_usage_logs (
			id, provider, model, operation, prompt, completion,
			prompt_tokens, completion_tokens, total_tokens, caller_id,
			request_data, response_data, execution_time, status, error, metadata,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Provider, rec.Model, string(rec.Operation), rec.Prompt, nullString(rec.Completion),
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, nullString(rec.CallerID),
		nullJSON(rec.RequestData), nullJSON(rec.ResponseData), rec.ExecutionTime, string(rec.Status),
		nullString(rec.Error), nullJSON(metadata),
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}
	return nil
}

// Query returns matching records, newest first.
func (s *PostgresStore) Query(ctx context.Context, f Filter) ([]Record, error) {
	where, args := f.where()
	query := "SELECT " + selectColumns + " FROM ai_usage_logs" + where + " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage records: %w", err)
	}
	return records, nil
}

// Summarize aggregates token usage over matching records.
func (s *PostgresStore) Summarize(ctx context.Context, f Filter) (*Summary, error) {
	where, args := f.where()
	query := `
		SELECT
			COALESCE(SUM(prompt_tokens), 0),
			COALESCE(SUM(completion_tokens), 0),
			COALESCE(SUM(total_tokens), 0),
			COUNT(*),
			COUNT(DISTINCT DATE(created_at))
		FROM ai_usage_logs` + where

	sum := &Summary{}
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&sum.PromptTokens, &sum.CompletionTokens, &sum.TotalTokens, &sum.Requests, &sum.ActiveDays,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize usage: %w", err)
	}
	return sum.finish(), nil
}

// Purge deletes records created before olderThan.
func (s *PostgresStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM ai_usage_logs WHERE created_at < $1", olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to purge usage records: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// where renders the filter as a WHERE clause with positional arguments.
func (f Filter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Provider != "" {
		add("provider = $%d", f.Provider)
	}
	if f.Model != "" {
		add("model = $%d", f.Model)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.CallerID != "" {
		add("caller_id = $%d", f.CallerID)
	}
	if !f.Since.IsZero() {
		add("created_at >= $%d", f.Since)
	}
	if !f.Until.IsZero() {
		add("created_at < $%d", f.Until)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec                           Record
		operation, status             string
		completion, callerID, errText sql.NullString
		requestData, responseData, md []byte
	)
	err := row.Scan(
		&rec.ID, &rec.Provider, &rec.Model, &operation, &rec.Prompt, &completion,
		&rec.PromptTokens, &rec.CompletionTokens, &rec.TotalTokens, &callerID,
		&requestData, &responseData, &rec.ExecutionTime, &status, &errText, &md,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return Record{}, fmt.Errorf("failed to scan usage record: %w", err)
	}
	rec.Operation = llm.Operation(operation)
	rec.Status = Status(status)
	rec.Completion = completion.String
	rec.CallerID = callerID.String
	rec.Error = errText.String
	if len(requestData) > 0 {
		rec.RequestData = json.RawMessage(requestData)
	}
	if len(responseData) > 0 {
		rec.ResponseData = json.RawMessage(responseData)
	}
	if len(md) > 0 {
		if err := json.Unmarshal(md, &rec.Metadata); err != nil {
			return Record{}, fmt.Errorf("failed to unmarshal usage metadata: %w", err)
		}
	}
	return rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullJSON passes JSON columns as strings so lib/pq sends text rather than bytea.
func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
