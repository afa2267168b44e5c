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

// Package providers wires the built-in adapters into a factory manager.
// It lives outside package llm so the adapters can depend on llm without an
// import cycle.
package providers

import (
	"axonflow/aiservice/llm"
	"axonflow/aiservice/llm/anthropic"
	"axonflow/aiservice/llm/bedrock"
	"axonflow/aiservice/llm/gemini"
	"axonflow/aiservice/llm/huggingface"
	"axonflow/aiservice/llm/openai"
)

// Register adds every built-in provider factory to m.
func Register(m *llm.FactoryManager) {
	m.Register(llm.ProviderTypeOpenAI, openai.NewFactory)
	m.Register(llm.ProviderTypeHuggingFace, huggingface.NewFactory)
	m.Register(llm.ProviderTypeAnthropic, anthropic.NewFactory)
	m.Register(llm.ProviderTypeGemini, gemini.NewFactory)
	m.Register(llm.ProviderTypeBedrock, bedrock.NewFactory)
}

// Default returns a factory manager with every built-in provider registered.
func Default() *llm.FactoryManager {
	m := llm.NewFactoryManager()
	Register(m)
	return m
}
