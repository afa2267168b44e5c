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

package config

// Example returns an annotated configuration file.
func Example() string {
	return `# AxonFlow AI service configuration
# Environment variables can be referenced using ${VAR_NAME} or ${VAR_NAME:-default} syntax

default_provider: ${AI_DEFAULT_PROVIDER:-openai}

providers:
  openai:
    type: openai
    api_key: ${OPENAI_API_KEY}
    organization_id: ${OPENAI_ORGANIZATION}
    timeout_seconds: 30
    default_model: gpt-4o-mini
    default_embedding_model: text-embedding-3-small
    default_image_model: dall-e-3

  huggingface:
    type: huggingface
    api_key: ${HUGGINGFACE_API_KEY}
    default_model: mistralai/Mistral-7B-Instruct-v0.3
    settings:
      sentiment_model: cardiffnlp/twitter-roberta-base-sentiment-latest
      ner_model: dslim/bert-base-NER

  anthropic:
    type: anthropic
    api_key: ${ANTHROPIC_API_KEY}
    default_model: claude-3-5-haiku-latest

  gemini:
    type: gemini
    api_key: ${GEMINI_API_KEY}
    default_model: gemini-2.0-flash

  bedrock:
    type: bedrock
    region: ${BEDROCK_REGION:-us-east-1}
    default_model: anthropic.claude-3-5-sonnet-20240620-v1:0
    # Static keys; omit to use the AWS default credential chain
    # settings:
    #   access_key_id: ${AWS_ACCESS_KEY_ID}
    #   secret_access_key: ${AWS_SECRET_ACCESS_KEY}

cache:
  enabled: true
  ttl_minutes: 60
  driver: memory          # memory, redis or badger
  redis_url: ${AI_REDIS_URL:-redis://localhost:6379/0}
  badger_path: ""         # empty keeps badger in memory
  operations: [generate_text]
  provider_scoped: false

fallback:
  enabled: true
  providers: [anthropic, gemini]

logging:
  enabled: true
  channel: stdout         # stdout, stderr or a file path
  level: info

storage:
  enabled: false
  database_url: ${AI_DATABASE_URL}
  purge_after_days: 30

metrics:
  enabled: true
`
}
