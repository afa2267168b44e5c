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
	"math"
	"regexp"
	"strconv"
	"strings"

	"axonflow/aiservice/llm"
)

// Parse stages, reported in result Details under "parsed_by".
const (
	ParsedByJSON    = "json"
	ParsedByPattern = "pattern"
	ParsedByDefault = "default"
)

var (
	scorePattern      = regexp.MustCompile(`(?i)(?:\b(\w+)[\s-]+)?\b(?:score|polarity)\b["']?\s*[:=]\s*["']?([-+]?\d*\.?\d+)`)
	sentimentWord     = regexp.MustCompile(`(?i)\b(positive|negative|neutral)\b`)
	sentimentField    = regexp.MustCompile(`(?i)\b(?:category|sentiment|label)\b["']?\s*[:=]\s*["']?(positive|negative|neutral)\b`)
	confidencePattern = regexp.MustCompile(`(?i)\b(?:confidence|probability|score)\b["']?\s*[:=(]?\s*["']?(\d*\.?\d+)\s*(%)?`)
	percentPattern    = regexp.MustCompile(`(\d*\.?\d+)\s*%`)
	categoryField     = regexp.MustCompile(`(?i)\b(?:category|label|class)\b["']?\s*[:=]\s*["']?([^"',\n}]+)`)
	entityParenLine   = regexp.MustCompile(`^(.+?)\s*\(\s*([A-Za-z][A-Za-z_ ]*?)\s*(?:[,;]\s*(?:score|confidence)?\s*[:=]?\s*(\d*\.?\d+))?\s*\)\s*[.,;]?$`)
	entitySepLine     = regexp.MustCompile(`^(.+?)\s*(?:[:|]|\s-\s|\s–\s)\s*([A-Z][A-Za-z_]*)\s*(?:[,;(]\s*(?:score|confidence)?\s*[:=]?\s*(\d*\.?\d+)\)?)?\s*[.,;]?$`)
	listMarker        = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)
)

// =============================================================================
// Sentiment
// =============================================================================

type sentimentJSON struct {
	Score     json.RawMessage `json:"score"`
	Category  string          `json:"category"`
	Sentiment string          `json:"sentiment"`
	Label     string          `json:"label"`
}

// ParseSentiment turns a model reply into a SentimentResult. It tries strict
// JSON decoding, then field-level pattern extraction, then falls back to a
// neutral result. It never fails; Raw always carries the reply.
func ParseSentiment(raw string) *llm.SentimentResult {
	result := parseSentimentJSON(raw)
	if result == nil {
		result = parseSentimentPattern(raw)
	}
	if result == nil {
		result = llm.NeutralSentiment()
		result.Details = map[string]any{"parsed_by": ParsedByDefault}
	}
	result.Raw = raw
	return NormalizeSentiment(result)
}

func parseSentimentJSON(raw string) *llm.SentimentResult {
	var parsed sentimentJSON
	if !decodeJSON(raw, &parsed) {
		return nil
	}
	score, hasScore := rawNumber(parsed.Score)
	category, hasCategory := parseSentimentLabel(firstNonEmpty(parsed.Category, parsed.Sentiment, parsed.Label))
	if !hasScore && !hasCategory {
		return nil
	}
	return &llm.SentimentResult{
		Score:    score,
		Category: category,
		Details:  map[string]any{"parsed_by": ParsedByJSON},
	}
}

func parseSentimentPattern(raw string) *llm.SentimentResult {
	var (
		score       float64
		hasScore    bool
		category    llm.Sentiment
		hasCategory bool
	)
	score, hasScore = polarityScore(raw)
	if m := sentimentField.FindStringSubmatch(raw); m != nil {
		category, hasCategory = parseSentimentLabel(m[1])
	} else if m := sentimentWord.FindStringSubmatch(raw); m != nil {
		category, hasCategory = parseSentimentLabel(m[1])
	}
	if !hasScore && !hasCategory {
		return nil
	}
	return &llm.SentimentResult{
		Score:    score,
		Category: category,
		Details:  map[string]any{"parsed_by": ParsedByPattern},
	}
}

// polarityScore returns the first "score" or "polarity" value that is not
// qualified as a confidence.
func polarityScore(raw string) (float64, bool) {
	for _, m := range scorePattern.FindAllStringSubmatch(raw, -1) {
		if q := strings.ToLower(m[1]); q == "confidence" || q == "certainty" {
			continue
		}
		if f, err := strconv.ParseFloat(m[2], 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// NormalizeSentiment clamps the score to [-1, 1] and makes it agree with the
// category. An explicit positive or negative category keeps its label and
// the score takes its sign, since models often report a confidence in the
// score field. A missing category is derived from the score.
func NormalizeSentiment(r *llm.SentimentResult) *llm.SentimentResult {
	if math.IsNaN(r.Score) {
		r.Score = 0
	}
	r.Score = clamp(r.Score, -1, 1)

	category, _ := parseSentimentLabel(string(r.Category))
	switch category {
	case llm.SentimentPositive:
		r.Score = math.Abs(r.Score)
	case llm.SentimentNegative:
		r.Score = -math.Abs(r.Score)
	case llm.SentimentNeutral:
	default:
		switch {
		case r.Score > 0:
			category = llm.SentimentPositive
		case r.Score < 0:
			category = llm.SentimentNegative
		default:
			category = llm.SentimentNeutral
		}
	}
	r.Category = category
	return r
}

func parseSentimentLabel(s string) (llm.Sentiment, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive", "pos", "label_2":
		return llm.SentimentPositive, true
	case "negative", "neg", "label_0":
		return llm.SentimentNegative, true
	case "neutral", "mixed", "label_1":
		return llm.SentimentNeutral, true
	}
	return "", false
}

// =============================================================================
// Classification
// =============================================================================

type classificationJSON struct {
	Category   string             `json:"category"`
	Label      string             `json:"label"`
	Class      string             `json:"class"`
	Confidence json.RawMessage    `json:"confidence"`
	Score      json.RawMessage    `json:"score"`
	Scores     map[string]float64 `json:"scores"`
}

// ParseClassification turns a model reply into a ClassificationResult whose
// category is always drawn from categories. It tries strict JSON decoding,
// then pattern extraction, then falls back to the first category with zero
// confidence. It never fails; Raw always carries the reply. With no
// categories the result is UnknownCategory.
func ParseClassification(raw string, categories []string) *llm.ClassificationResult {
	if len(categories) == 0 {
		return &llm.ClassificationResult{
			Category: llm.UnknownCategory,
			Raw:      raw,
			Details:  map[string]float64{},
		}
	}

	result := parseClassificationJSON(raw, categories)
	if result == nil {
		result = parseClassificationPattern(raw, categories)
	}
	if result == nil {
		result = &llm.ClassificationResult{
			Category:   categories[0],
			Confidence: 0,
		}
	}
	result.Raw = raw
	return result
}

func parseClassificationJSON(raw string, categories []string) *llm.ClassificationResult {
	var parsed classificationJSON
	if !decodeJSON(raw, &parsed) {
		return nil
	}
	category, ok := MatchCategory(firstNonEmpty(parsed.Category, parsed.Label, parsed.Class), categories)
	if !ok {
		return nil
	}
	confidence, hasConfidence := rawNumber(parsed.Confidence)
	if !hasConfidence {
		confidence, _ = rawNumber(parsed.Score)
	}

	var details map[string]float64
	for label, score := range parsed.Scores {
		if c, ok := MatchCategory(label, categories); ok {
			if details == nil {
				details = make(map[string]float64)
			}
			details[c] = NormalizeConfidence(score)
		}
	}
	return &llm.ClassificationResult{
		Category:   category,
		Confidence: NormalizeConfidence(confidence),
		Details:    details,
	}
}

func parseClassificationPattern(raw string, categories []string) *llm.ClassificationResult {
	category, ok := "", false
	if m := categoryField.FindStringSubmatch(raw); m != nil {
		category, ok = MatchCategory(m[1], categories)
	}
	if !ok {
		category, ok = findCategoryMention(raw, categories)
	}
	if !ok {
		return nil
	}

	var confidence float64
	if m := confidencePattern.FindStringSubmatch(raw); m != nil {
		confidence, _ = strconv.ParseFloat(m[1], 64)
		if m[2] == "%" {
			confidence /= 100
		}
	} else if m := percentPattern.FindStringSubmatch(raw); m != nil {
		confidence, _ = strconv.ParseFloat(m[1], 64)
		confidence /= 100
	}
	return &llm.ClassificationResult{
		Category:   category,
		Confidence: NormalizeConfidence(confidence),
	}
}

// MatchCategory resolves a label to one of categories, ignoring case,
// surrounding punctuation and the difference between spaces, hyphens and
// underscores.
func MatchCategory(label string, categories []string) (string, bool) {
	want := normalizeLabel(label)
	if want == "" {
		return "", false
	}
	for _, c := range categories {
		if normalizeLabel(c) == want {
			return c, true
		}
	}
	return "", false
}

// findCategoryMention returns the category mentioned earliest in raw;
// a longer category wins when two start at the same position.
func findCategoryMention(raw string, categories []string) (string, bool) {
	text := normalizeLabel(raw)
	best, bestPos := "", -1
	for _, c := range categories {
		norm := normalizeLabel(c)
		if norm == "" {
			continue
		}
		pos := strings.Index(text, norm)
		if pos < 0 {
			continue
		}
		if bestPos < 0 || pos < bestPos || (pos == bestPos && len(norm) > len(normalizeLabel(best))) {
			best, bestPos = c, pos
		}
	}
	return best, bestPos >= 0
}

// NormalizeConfidence maps a confidence into [0, 1]. Values in (1, 100]
// are read as percentages.
func NormalizeConfidence(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v > 1 && v <= 100 {
		v /= 100
	}
	return clamp(v, 0, 1)
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, `"'.,;:!?*()[]{}`+"`")
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// =============================================================================
// Entities
// =============================================================================

type entityJSON struct {
	Entity      string          `json:"entity"`
	Text        string          `json:"text"`
	Name        string          `json:"name"`
	Word        string          `json:"word"`
	Type        string          `json:"type"`
	Label       string          `json:"label"`
	EntityGroup string          `json:"entity_group"`
	Score       json.RawMessage `json:"score"`
	Confidence  json.RawMessage `json:"confidence"`
}

// ParseEntities turns a model reply into raw detections. It accepts a JSON
// array or an object with an "entities" array, then falls back to one
// "Text (TYPE)" or "Text: TYPE" entry per line, then to no detections.
// Detections without a score get 1.0.
func ParseEntities(raw string) []Detection {
	if dets, ok := parseEntitiesJSON(raw); ok {
		return dets
	}
	return parseEntitiesPattern(raw)
}

func parseEntitiesJSON(raw string) ([]Detection, bool) {
	var list []entityJSON
	if !decodeJSON(raw, &list) {
		var wrapped struct {
			Entities []entityJSON `json:"entities"`
		}
		if !decodeJSON(raw, &wrapped) || wrapped.Entities == nil {
			return nil, false
		}
		list = wrapped.Entities
	}

	dets := make([]Detection, 0, len(list))
	for _, e := range list {
		text := firstNonEmpty(e.Entity, e.Text, e.Name, e.Word)
		if text == "" {
			continue
		}
		score, ok := rawNumber(e.Score)
		if !ok {
			score, ok = rawNumber(e.Confidence)
		}
		if !ok {
			score = 1
		}
		dets = append(dets, Detection{
			Text:  text,
			Type:  strings.ToUpper(firstNonEmpty(e.Type, e.Label, e.EntityGroup)),
			Score: NormalizeConfidence(score),
		})
	}
	return dets, true
}

func parseEntitiesPattern(raw string) []Detection {
	var dets []Detection
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		m := entityParenLine.FindStringSubmatch(line)
		if m == nil {
			m = entitySepLine.FindStringSubmatch(line)
		}
		if m == nil {
			continue
		}
		score := 1.0
		if m[3] != "" {
			if f, err := strconv.ParseFloat(m[3], 64); err == nil {
				score = NormalizeConfidence(f)
			}
		}
		dets = append(dets, Detection{
			Text:  strings.Trim(strings.TrimSpace(m[1]), `"'*`),
			Type:  strings.ToUpper(strings.TrimSpace(m[2])),
			Score: score,
		})
	}
	return dets
}

// =============================================================================
// helpers
// =============================================================================

// rawNumber reads a JSON number or numeric string.
func rawNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		pct := strings.HasSuffix(s, "%")
		if f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64); err == nil {
			if pct {
				f /= 100
			}
			return f, true
		}
	}
	return 0, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
