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

// Package config loads the service configuration from YAML with environment
// variable expansion and overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"axonflow/aiservice/llm"
)

// Cache drivers.
const (
	CacheDriverMemory = "memory"
	CacheDriverRedis  = "redis"
	CacheDriverBadger = "badger"
)

// Config is the root configuration.
type Config struct {
	DefaultProvider string                        `yaml:"default_provider"`
	Providers       map[string]llm.ProviderConfig `yaml:"providers"`
	Cache           CacheConfig                   `yaml:"cache"`
	Fallback        FallbackConfig                `yaml:"fallback"`
	Logging         LoggingConfig                 `yaml:"logging"`
	Storage         StorageConfig                 `yaml:"storage"`
	Metrics         MetricsConfig                 `yaml:"metrics"`
}

// CacheConfig configures response caching.
type CacheConfig struct {
	Enabled        bool     `yaml:"enabled"`
	TTLMinutes     int      `yaml:"ttl_minutes"`
	Driver         string   `yaml:"driver"`
	RedisURL       string   `yaml:"redis_url,omitempty"`
	BadgerPath     string   `yaml:"badger_path,omitempty"`
	Operations     []string `yaml:"operations,omitempty"`
	ProviderScoped bool     `yaml:"provider_scoped"`
}

// FallbackConfig configures the ordered fallback providers.
type FallbackConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Providers []string `yaml:"providers,omitempty"`
}

// LoggingConfig configures the usage log channel and the service logger.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Channel string `yaml:"channel"`
	Level   string `yaml:"level"`
}

// StorageConfig configures persistent usage records.
type StorageConfig struct {
	Enabled        bool   `yaml:"enabled"`
	DatabaseURL    string `yaml:"database_url,omitempty"`
	PurgeAfterDays int    `yaml:"purge_after_days"`
}

// MetricsConfig toggles Prometheus collectors.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used for unset fields.
func Default() *Config {
	return &Config{
		DefaultProvider: string(llm.ProviderTypeOpenAI),
		Providers:       map[string]llm.ProviderConfig{},
		Cache: CacheConfig{
			TTLMinutes: 60,
			Driver:     CacheDriverMemory,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Channel: "stdout",
			Level:   "info",
		},
		Storage: StorageConfig{
			PurgeAfterDays: 30,
		},
	}
}

// Load reads path, expands environment references, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := Parse(data, os.LookupEnv)
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a configuration from defaults and environment overrides
// only, for running without a config file.
func FromEnv() (*Config, error) {
	cfg := Default()
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults after expanding ${VAR} and
// ${VAR:-default} references with lookup. It does not validate.
func Parse(data []byte, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data), lookup)), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Providers == nil {
		cfg.Providers = map[string]llm.ProviderConfig{}
	}
	cfg.normalize()
	return cfg, nil
}

// envVarRegex matches ${VAR_NAME} or $VAR_NAME patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces variable references. Undefined variables without a
// default expand to "".
func expandEnvVars(content string, lookup func(string) (string, bool)) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		defaultVal := ""
		if idx := strings.Index(varName, ":-"); idx != -1 {
			defaultVal = varName[idx+2:]
			varName = varName[:idx]
		}

		if value, ok := lookup(varName); ok && value != "" {
			return value
		}
		return defaultVal
	})
}

// normalize fills provider names from their map keys.
func (c *Config) normalize() {
	for name, p := range c.Providers {
		p.Name = name
		c.Providers[name] = p
	}
}

// ProviderNames returns the configured provider names, sorted.
func (c *Config) ProviderNames() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CacheOperations resolves the configured cacheable operations.
func (c *Config) CacheOperations() ([]llm.Operation, error) {
	ops := make([]llm.Operation, 0, len(c.Cache.Operations))
	for _, name := range c.Cache.Operations {
		op, err := llm.ParseOperation(name)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Providers) == 0 {
		errs = append(errs, errors.New("at least one provider must be configured"))
	}
	if _, ok := c.Providers[c.DefaultProvider]; !ok && len(c.Providers) > 0 {
		errs = append(errs, fmt.Errorf("default provider '%s' is not configured", c.DefaultProvider))
	}
	for _, name := range c.ProviderNames() {
		p := c.Providers[name]
		if p.TimeoutSeconds < 0 {
			errs = append(errs, fmt.Errorf("provider '%s' timeout_seconds must not be negative", name))
		}
	}

	if c.Fallback.Enabled {
		for _, name := range c.Fallback.Providers {
			if _, ok := c.Providers[name]; !ok {
				errs = append(errs, fmt.Errorf("fallback provider '%s' is not configured", name))
			}
		}
	}

	if c.Cache.TTLMinutes < 0 {
		errs = append(errs, errors.New("cache ttl_minutes must not be negative"))
	}
	switch c.Cache.Driver {
	case CacheDriverMemory, CacheDriverBadger:
	case CacheDriverRedis:
		if c.Cache.Enabled && c.Cache.RedisURL == "" {
			errs = append(errs, errors.New("cache driver 'redis' requires redis_url"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache driver '%s' is invalid", c.Cache.Driver))
	}
	if _, err := c.CacheOperations(); err != nil {
		errs = append(errs, fmt.Errorf("cache operations: %w", err))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging level '%s' is invalid", c.Logging.Level))
	}

	if c.Storage.Enabled && c.Storage.DatabaseURL == "" {
		errs = append(errs, errors.New("storage requires database_url when enabled"))
	}
	if c.Storage.PurgeAfterDays < 0 {
		errs = append(errs, errors.New("storage purge_after_days must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
