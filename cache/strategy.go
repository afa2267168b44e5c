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

package cache

import (
	"context"
	"encoding/json"
	"time"

	"axonflow/aiservice/llm"
	"axonflow/aiservice/shared/logger"
)

// DefaultTTLMinutes applies when neither the config nor the caller sets a TTL.
const DefaultTTLMinutes = 60

// Config controls which requests are cached and for how long.
type Config struct {
	Enabled        bool
	TTLMinutes     int
	Operations     []llm.Operation // default: generate_text
	ProviderScoped bool            // include the provider in the key
}

// Strategy decides what is cached and serializes results in and out of a
// Store. Backend failures are logged and treated as misses; they never fail
// the caller's operation.
type Strategy struct {
	store          Store
	enabled        bool
	ttl            time.Duration
	operations     map[llm.Operation]bool
	providerScoped bool
	log            *logger.Logger
}

// NewStrategy creates a strategy over store. A nil store disables caching.
func NewStrategy(store Store, cfg Config, log *logger.Logger) *Strategy {
	if log == nil {
		log = logger.Nop()
	}
	ttl := cfg.TTLMinutes
	if ttl <= 0 {
		ttl = DefaultTTLMinutes
	}
	ops := cfg.Operations
	if len(ops) == 0 {
		ops = []llm.Operation{llm.OpGenerateText}
	}
	operations := make(map[llm.Operation]bool, len(ops))
	for _, op := range ops {
		// Image generation is never idempotent.
		if op != llm.OpGenerateImage {
			operations[op] = true
		}
	}
	return &Strategy{
		store:          store,
		enabled:        cfg.Enabled && store != nil,
		ttl:            time.Duration(ttl) * time.Minute,
		operations:     operations,
		providerScoped: cfg.ProviderScoped,
		log:            log,
	}
}

// Enabled reports whether the strategy caches anything.
func (s *Strategy) Enabled() bool {
	return s != nil && s.enabled
}

// Cacheable reports whether results of op are cached.
func (s *Strategy) Cacheable(op llm.Operation) bool {
	return s.Enabled() && s.operations[op]
}

// Key computes the key for a request. provider only contributes when the
// strategy is provider scoped.
func (s *Strategy) Key(op llm.Operation, provider string, input any, opts llm.Options) string {
	if !s.providerScoped {
		provider = ""
	}
	return ComputeKey(op, input, opts, provider)
}

// Lookup decodes the cached value for key into out and reports a hit.
func (s *Strategy) Lookup(ctx context.Context, key string, out any) bool {
	if !s.Enabled() {
		return false
	}
	raw, found, err := s.store.Get(ctx, key)
	if err != nil {
		s.log.Warn("", "", "Cache lookup failed", map[string]interface{}{"key": key, "error": err.Error()})
		return false
	}
	if !found {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.log.Warn("", "", "Discarding undecodable cache entry", map[string]interface{}{"key": key, "error": err.Error()})
		_ = s.store.Delete(ctx, key)
		return false
	}
	return true
}

// Store saves result under key. ttlMinutes <= 0 uses the configured TTL.
func (s *Strategy) Store(ctx context.Context, key string, result any, ttlMinutes int) {
	if !s.Enabled() {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		s.log.Warn("", "", "Cache encode failed", map[string]interface{}{"key": key, "error": err.Error()})
		return
	}
	ttl := s.ttl
	if ttlMinutes > 0 {
		ttl = time.Duration(ttlMinutes) * time.Minute
	}
	if err := s.store.Set(ctx, key, raw, ttl); err != nil {
		s.log.Warn("", "", "Cache store failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

// Close closes the underlying store.
func (s *Strategy) Close() error {
	if s == nil || s.store == nil {
		return nil
	}
	return s.store.Close()
}
