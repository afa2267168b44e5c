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

package emulation

import (
	"sort"
	"strings"

	"axonflow/aiservice/llm"
)

// DefaultEntityThreshold is the minimum detection score kept by MergeEntities.
const DefaultEntityThreshold = 0.5

// Detection is one raw entity occurrence before de-duplication.
type Detection struct {
	Text  string
	Type  string
	Score float64
}

// EntityThreshold returns the entity_threshold option or the default.
func EntityThreshold(opts llm.Options) float64 {
	return opts.Float(llm.OptionEntityThreshold, DefaultEntityThreshold)
}

// MergeEntities drops detections scoring below threshold, merges the rest on
// (text, type) counting occurrences and keeping the highest score, and sorts
// by count descending then score descending. Ties keep first-seen order.
func MergeEntities(detections []Detection, threshold float64) []llm.Entity {
	type key struct{ text, typ string }

	index := make(map[key]int)
	merged := make([]llm.Entity, 0, len(detections))
	for _, d := range detections {
		text := strings.TrimSpace(d.Text)
		typ := strings.TrimSpace(d.Type)
		if text == "" || d.Score < threshold {
			continue
		}
		score := clamp(d.Score, 0, 1)

		k := key{text, typ}
		if i, ok := index[k]; ok {
			merged[i].Count++
			if score > merged[i].Score {
				merged[i].Score = score
			}
			continue
		}
		index[k] = len(merged)
		merged = append(merged, llm.Entity{Entity: text, Type: typ, Count: 1, Score: score})
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Count != merged[j].Count {
			return merged[i].Count > merged[j].Count
		}
		return merged[i].Score > merged[j].Score
	})
	return merged
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
