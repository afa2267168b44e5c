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
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append implements Sink.
func (s *MemoryStore) Append(_ context.Context, rec *Record) error {
	s.mu.Lock()
	s.records = append(s.records, *rec)
	s.mu.Unlock()
	return nil
}

// Query returns matching records, newest first.
func (s *MemoryStore) Query(_ context.Context, f Filter) ([]Record, error) {
	s.mu.RLock()
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		if f.matches(&r) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Summarize implements Store.
func (s *MemoryStore) Summarize(_ context.Context, f Filter) (*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := &Summary{}
	days := make(map[string]struct{})
	for _, r := range s.records {
		if !f.matches(&r) {
			continue
		}
		sum.PromptTokens += int64(r.PromptTokens)
		sum.CompletionTokens += int64(r.CompletionTokens)
		sum.TotalTokens += int64(r.TotalTokens)
		sum.Requests++
		days[r.CreatedAt.UTC().Format("2006-01-02")] = struct{}{}
	}
	sum.ActiveDays = int64(len(days))
	return sum.finish(), nil
}

// Purge implements Store.
func (s *MemoryStore) Purge(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0]
	var removed int64
	for _, r := range s.records {
		if r.CreatedAt.Before(olderThan) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return removed, nil
}

func (f Filter) matches(r *Record) bool {
	switch {
	case f.Provider != "" && r.Provider != f.Provider:
		return false
	case f.Model != "" && r.Model != f.Model:
		return false
	case f.Status != "" && r.Status != f.Status:
		return false
	case f.CallerID != "" && r.CallerID != f.CallerID:
		return false
	case !f.Since.IsZero() && r.CreatedAt.Before(f.Since):
		return false
	case !f.Until.IsZero() && !r.CreatedAt.Before(f.Until):
		return false
	}
	return true
}
