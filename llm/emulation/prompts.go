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
	"fmt"
	"strings"
)

const sentimentTemplate = `Analyze the sentiment of the following text.
Respond with JSON only, no prose, in exactly this shape:
{"score": <number between -1 (very negative) and 1 (very positive)>, "category": "<positive|negative|neutral>"}

Text: %s`

const classificationTemplate = `Classify the following text into exactly one of these categories: %s.
Respond with JSON only, no prose, in exactly this shape:
{"category": "<one of the categories above, spelled exactly>", "confidence": <number between 0 and 1>}

Text: %s`

const entityTemplate = `Extract the named entities (people, organizations, locations, dates, products and other proper nouns) from the following text.
Respond with a JSON array only, no prose. Each element must have this shape:
{"entity": "<text as it appears>", "type": "<PERSON|ORG|LOC|DATE|PRODUCT|MISC>", "score": <confidence between 0 and 1>}
List an entity once per occurrence. Respond with [] if there are none.

Text: %s`

// SentimentPrompt builds the instruction used to emulate sentiment analysis.
func SentimentPrompt(text string) string {
	return fmt.Sprintf(sentimentTemplate, text)
}

// ClassificationPrompt builds the instruction used to emulate classification.
func ClassificationPrompt(text string, categories []string) string {
	return fmt.Sprintf(classificationTemplate, strings.Join(categories, ", "), text)
}

// EntityPrompt builds the instruction used to emulate entity extraction.
func EntityPrompt(text string) string {
	return fmt.Sprintf(entityTemplate, text)
}
