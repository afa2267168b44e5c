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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"axonflow/aiservice/llm"
)

// KeyPrefix namespaces every cache key.
const KeyPrefix = "ai:"

type keyMaterial struct {
	Operation llm.Operation `json:"op"`
	Provider  string        `json:"provider,omitempty"`
	Input     any           `json:"input"`
	Options   llm.Options   `json:"options,omitempty"`
}

// ComputeKey returns the cache key for one request. The key is a SHA-256
// over the canonical JSON of (operation, input, options); map keys are
// serialized in sorted order, so option order never matters. provider is
// only mixed in when non-empty.
func ComputeKey(op llm.Operation, input any, opts llm.Options, provider string) string {
	if len(opts) == 0 {
		opts = nil
	}
	material, err := json.Marshal(keyMaterial{Operation: op, Provider: provider, Input: input, Options: opts})
	if err != nil {
		// Unserializable values still need a stable key.
		material = []byte(fmt.Sprintf("%s|%s|%#v|%#v", op, provider, input, opts))
	}
	sum := sha256.Sum256(material)
	return KeyPrefix + string(op) + ":" + hex.EncodeToString(sum[:])
}
