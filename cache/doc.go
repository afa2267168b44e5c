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

// Package cache caches capability results by semantic request.
//
// ComputeKey derives a deterministic key from the operation, the input and
// the options. Strategy layers policy on top of a Store: the global enable
// flag, the set of cacheable operations and the TTL. Three stores are
// provided: MemoryStore for a single process, RedisStore for a shared cache
// and BadgerStore for an embedded persistent cache.
//
// The cache has no notion of sampling freshness. Callers who want a fresh
// completion for an identical request must vary the options, for example
// with a nonce.
package cache
