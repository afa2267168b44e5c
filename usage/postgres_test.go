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
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axonflow/aiservice/llm"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

var usageColumns = []string{
	"id", "provider", "model", "operation", "prompt", "completion",
	"prompt_tokens", "completion_tokens", "total_tokens", "caller_id",
	"request_data", "response_data", "execution_time", "status", "error", "metadata",
	"created_at", "updated_at",
}

func TestPostgresStore_EnsureSchema(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS ai_usage_logs").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Append(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := &Record{
		ID:               "4b9d6c1e-0000-4000-8000-000000000001",
		Provider:         "openai",
		Model:            "gpt-4o-mini",
		Operation:        llm.OpGenerateText,
		Prompt:           "Hello",
		Completion:       "Hi",
		PromptTokens:     3,
		CompletionTokens: 1,
		TotalTokens:      4,
		RequestData:      []byte(`{"model":"gpt-4o-mini"}`),
		ExecutionTime:    0.25,
		Status:           StatusSuccess,
		Metadata:         map[string]any{"feature": "chat"},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	mock.ExpectExec("INSERT INTO ai_usage_logs").
		WithArgs(
			rec.ID, "openai", "gpt-4o-mini", "generate_text", "Hello", "Hi",
			3, 1, 4, nil,
			`{"model":"gpt-4o-mini"}`, nil, 0.25, "success", nil, `{"feature":"chat"}`,
			now, now,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.Append(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO ai_usage_logs").WillReturnError(errors.New("connection reset"))

	err := store.Append(context.Background(), &Record{ID: "x", Provider: "openai", Status: StatusError})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert usage record")
}

func TestPostgresStore_Query(t *testing.T) {
	store, mock := newMockStore(t)
	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	created := since.Add(2 * time.Hour)

	rows := sqlmock.NewRows(usageColumns).
		AddRow("id-1", "anthropic", "claude-3-5-haiku-latest", "classify_text", "ticket", nil,
			12, 4, 16, "user-7",
			nil, []byte(`{"content":[]}`), 1.5, "error", "rate limit", []byte(`{"team":"support"}`),
			created, created)

	mock.ExpectQuery(`SELECT (.+) FROM ai_usage_logs WHERE provider = \$1 AND status = \$2 AND created_at >= \$3 ORDER BY created_at DESC LIMIT \$4`).
		WithArgs("anthropic", "error", since, 10).
		WillReturnRows(rows)

	records, err := store.Query(context.Background(), Filter{
		Provider: "anthropic",
		Status:   StatusError,
		Since:    since,
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "id-1", rec.ID)
	assert.Equal(t, llm.OpClassifyText, rec.Operation)
	assert.Equal(t, StatusError, rec.Status)
	assert.Equal(t, "", rec.Completion)
	assert.Equal(t, "user-7", rec.CallerID)
	assert.Equal(t, "rate limit", rec.Error)
	assert.Nil(t, rec.RequestData)
	assert.JSONEq(t, `{"content":[]}`, string(rec.ResponseData))
	assert.Equal(t, map[string]any{"team": "support"}, rec.Metadata)
	assert.Equal(t, 16, rec.TotalTokens)
	assert.Equal(t, created, rec.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_QueryNoFilter(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT (.+) FROM ai_usage_logs ORDER BY created_at DESC`).
		WillReturnRows(sqlmock.NewRows(usageColumns))

	records, err := store.Query(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Summarize(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT (.+) FROM ai_usage_logs WHERE model = \$1 AND caller_id = \$2`).
		WithArgs("gpt-4o-mini", "svc-a").
		WillReturnRows(sqlmock.NewRows([]string{"prompt", "completion", "total", "count", "days"}).
			AddRow(300, 100, 400, 8, 3))

	sum, err := store.Summarize(context.Background(), Filter{Model: "gpt-4o-mini", CallerID: "svc-a"})
	require.NoError(t, err)
	assert.Equal(t, &Summary{
		PromptTokens:        300,
		CompletionTokens:    100,
		TotalTokens:         400,
		Requests:            8,
		ActiveDays:          3,
		AvgTokensPerRequest: 50,
	}, sum)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SummarizeEmpty(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM ai_usage_logs").
		WillReturnRows(sqlmock.NewRows([]string{"prompt", "completion", "total", "count", "days"}).
			AddRow(0, 0, 0, 0, 0))

	sum, err := store.Summarize(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), sum.Requests)
	assert.Equal(t, 0.0, sum.AvgTokensPerRequest)
}

func TestPostgresStore_Purge(t *testing.T) {
	store, mock := newMockStore(t)
	cutoff := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`DELETE FROM ai_usage_logs WHERE created_at < \$1`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 42))

	n, err := store.Purge(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PurgeError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("DELETE FROM ai_usage_logs").WillReturnError(sql.ErrConnDone)

	_, err := store.Purge(context.Background(), time.Now())
	assert.ErrorIs(t, err, sql.ErrConnDone)
}
