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

package llm

import (
	"fmt"
	"sort"
	"sync"
)

// ProviderFactory creates a Provider instance from configuration.
// Factories should validate the config and return an error if invalid.
type ProviderFactory func(config ProviderConfig) (Provider, error)

// FactoryManager maps provider types to factories. There is no package-level
// registry: callers build one explicitly (see package providers) and pass it
// where providers are constructed.
type FactoryManager struct {
	factories map[ProviderType]ProviderFactory
	mu        sync.RWMutex
}

// NewFactoryManager creates a new factory manager with an empty registry.
func NewFactoryManager() *FactoryManager {
	return &FactoryManager{
		factories: make(map[ProviderType]ProviderFactory),
	}
}

// Register registers a factory for a provider type, replacing any existing one.
func (m *FactoryManager) Register(providerType ProviderType, factory ProviderFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[providerType] = factory
}

// Has returns true if a factory is registered for the provider type.
func (m *FactoryManager) Has(providerType ProviderType) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.factories[providerType]
	return ok
}

// List returns all registered provider types, sorted.
func (m *FactoryManager) List() []ProviderType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	types := make([]ProviderType, 0, len(m.factories))
	for pt := range m.factories {
		types = append(types, pt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Create creates a provider using the registered factory.
func (m *FactoryManager) Create(config ProviderConfig) (Provider, error) {
	providerType := config.ResolvedType()
	if providerType == "" {
		return nil, fmt.Errorf("provider %q: type is required", config.Name)
	}

	m.mu.RLock()
	factory, ok := m.factories[providerType]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("provider %q: no factory registered for type %q", config.Name, providerType)
	}

	provider, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("provider %q: %w", config.Name, err)
	}
	return provider, nil
}
