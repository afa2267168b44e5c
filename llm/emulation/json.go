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
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fencePattern         = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// maxJSONCandidates bounds how many opening brackets decodeJSON tries.
const maxJSONCandidates = 8

// decodeJSON decodes the structured part of a model reply into v. It strips
// markdown fences and surrounding prose and retries each candidate once after
// repairing the usual model formatting mistakes. Candidates start at each
// "{" or "[" in turn, so bracketed prose before the payload is skipped.
func decodeJSON(raw string, v any) bool {
	for _, body := range jsonCandidates(raw) {
		if json.Unmarshal([]byte(body), v) == nil {
			return true
		}
		if json.Unmarshal([]byte(repairJSON(body)), v) == nil {
			return true
		}
	}
	return false
}

// extractJSON returns the first JSON object or array candidate in s, or "".
func extractJSON(s string) string {
	if candidates := jsonCandidates(s); len(candidates) > 0 {
		return candidates[0]
	}
	return ""
}

// jsonCandidates returns, in order, the spans from each "{" or "[" to the
// last matching closer.
func jsonCandidates(s string) []string {
	s = strings.TrimSpace(s)
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}

	var candidates []string
	for offset := 0; offset < len(s) && len(candidates) < maxJSONCandidates; {
		i := strings.IndexAny(s[offset:], "{[")
		if i < 0 {
			break
		}
		start := offset + i
		closer := byte('}')
		if s[start] == '[' {
			closer = ']'
		}
		if end := strings.LastIndexByte(s, closer); end > start {
			candidates = append(candidates, s[start:end+1])
		}
		offset = start + 1
	}
	return candidates
}

// repairJSON fixes common JSON formatting issues in model output:
// single-quoted strings, keys missing their opening quote and trailing commas.
func repairJSON(s string) string {
	if !strings.Contains(s, `"`) {
		s = strings.ReplaceAll(s, "'", `"`)
	}
	s = trailingCommaPattern.ReplaceAllString(s, "$1")

	result := []rune(s)
	fixed := make([]rune, 0, len(result)+16)

	i := 0
	for i < len(result) {
		ch := result[i]
		if ch != '{' && ch != ',' {
			fixed = append(fixed, ch)
			i++
			continue
		}

		fixed = append(fixed, ch)
		i++
		for i < len(result) && isSpace(result[i]) {
			fixed = append(fixed, result[i])
			i++
		}
		if i >= len(result) || result[i] == '"' || !isLetter(result[i]) {
			continue
		}

		keyStart := i
		for i < len(result) && (isLetter(result[i]) || result[i] == '_') {
			i++
		}
		keyEnd := i

		switch {
		case i+1 < len(result) && result[i] == '"' && result[i+1] == ':':
			// `, type":` -> `, "type":`
			fixed = append(fixed, '"')
			fixed = append(fixed, result[keyStart:keyEnd]...)
		case i < len(result) && result[i] == ':':
			// `{type: ` -> `{"type": `
			fixed = append(fixed, '"')
			fixed = append(fixed, result[keyStart:keyEnd]...)
			fixed = append(fixed, '"')
		default:
			fixed = append(fixed, result[keyStart:keyEnd]...)
		}
	}

	return string(fixed)
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
