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

import (
	"fmt"
	"strconv"
	"strings"

	"axonflow/aiservice/llm"
)

// providerKeys maps API key variables to the provider they configure.
var providerKeys = []struct {
	env      string
	provider llm.ProviderType
}{
	{"OPENAI_API_KEY", llm.ProviderTypeOpenAI},
	{"HUGGINGFACE_API_KEY", llm.ProviderTypeHuggingFace},
	{"ANTHROPIC_API_KEY", llm.ProviderTypeAnthropic},
	{"GEMINI_API_KEY", llm.ProviderTypeGemini},
}

// ApplyEnv applies environment overrides. A provider key variable creates
// the provider entry of that name when it is not configured yet.
func ApplyEnv(c *Config, lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("AI_DEFAULT_PROVIDER"); ok {
		c.DefaultProvider = v
	}

	for _, pk := range providerKeys {
		if v, ok := get(pk.env); ok {
			c.updateProvider(pk.provider, func(p *llm.ProviderConfig) { p.APIKey = v })
		}
	}
	if v, ok := get("OPENAI_ORGANIZATION"); ok {
		c.updateProvider(llm.ProviderTypeOpenAI, func(p *llm.ProviderConfig) { p.OrganizationID = v })
	}
	if v, ok := get("BEDROCK_REGION"); ok {
		c.updateProvider(llm.ProviderTypeBedrock, func(p *llm.ProviderConfig) { p.Region = v })
	}

	bools := []struct {
		env    string
		target *bool
	}{
		{"AI_CACHE_ENABLED", &c.Cache.Enabled},
		{"AI_FALLBACK_ENABLED", &c.Fallback.Enabled},
		{"AI_LOGGING_ENABLED", &c.Logging.Enabled},
		{"AI_STORAGE_ENABLED", &c.Storage.Enabled},
	}
	for _, b := range bools {
		if v, ok := get(b.env); ok {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s value %q: %w", b.env, v, err)
			}
			*b.target = parsed
		}
	}

	if v, ok := get("AI_CACHE_TTL"); ok {
		ttl, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid AI_CACHE_TTL value %q: %w", v, err)
		}
		c.Cache.TTLMinutes = ttl
	}
	if v, ok := get("AI_FALLBACK_PROVIDERS"); ok {
		var providers []string
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				providers = append(providers, name)
			}
		}
		c.Fallback.Providers = providers
	}
	if v, ok := get("AI_DATABASE_URL"); ok {
		c.Storage.DatabaseURL = v
	}
	if v, ok := get("AI_REDIS_URL"); ok {
		c.Cache.RedisURL = v
		if c.Cache.Driver == "" || c.Cache.Driver == CacheDriverMemory {
			c.Cache.Driver = CacheDriverRedis
		}
	}
	return nil
}

func (c *Config) updateProvider(t llm.ProviderType, update func(*llm.ProviderConfig)) {
	if c.Providers == nil {
		c.Providers = map[string]llm.ProviderConfig{}
	}
	name := string(t)
	p, ok := c.Providers[name]
	if !ok {
		p = llm.ProviderConfig{Name: name, Type: t}
	}
	update(&p)
	c.Providers[name] = p
}
