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

package sdk

import (
	"net/http"
)

// AuthProvider provides authentication for HTTP requests.
type AuthProvider interface {
	// Apply adds authentication to an HTTP request.
	Apply(req *http.Request) error
}

// APIKeyLocation specifies where to place the API key.
type APIKeyLocation int

const (
	// APIKeyHeader places the API key in a header.
	APIKeyHeader APIKeyLocation = iota
	// APIKeyQuery places the API key in a query parameter.
	APIKeyQuery
)

// APIKeyAuth provides API key authentication.
type APIKeyAuth struct {
	key      string
	name     string
	location APIKeyLocation
}

// NewAPIKeyAuthWithHeader places the raw key in a custom header
// (Anthropic "x-api-key", Gemini "x-goog-api-key").
func NewAPIKeyAuthWithHeader(key, headerName string) *APIKeyAuth {
	return &APIKeyAuth{
		key:      key,
		name:     headerName,
		location: APIKeyHeader,
	}
}

// NewAPIKeyAuthWithQuery places the key in a query parameter.
func NewAPIKeyAuthWithQuery(key, paramName string) *APIKeyAuth {
	return &APIKeyAuth{
		key:      key,
		name:     paramName,
		location: APIKeyQuery,
	}
}

// Apply adds the API key to the request. An empty key is not sent.
func (a *APIKeyAuth) Apply(req *http.Request) error {
	if a.key == "" {
		return nil
	}
	switch a.location {
	case APIKeyHeader:
		req.Header.Set(a.name, a.key)
	case APIKeyQuery:
		q := req.URL.Query()
		q.Set(a.name, a.key)
		req.URL.RawQuery = q.Encode()
	}
	return nil
}

// BearerTokenAuth provides bearer token authentication (OpenAI, HuggingFace).
type BearerTokenAuth struct {
	token string
}

// NewBearerTokenAuth creates a bearer token authenticator.
func NewBearerTokenAuth(token string) *BearerTokenAuth {
	return &BearerTokenAuth{token: token}
}

// Apply adds the bearer token to the request. An empty token is not sent.
func (a *BearerTokenAuth) Apply(req *http.Request) error {
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	return nil
}

// HeaderAuth sets a fixed header when its value is non-empty
// (OpenAI-Organization, anthropic-version).
type HeaderAuth struct {
	name  string
	value string
}

// NewHeaderAuth creates a fixed header authenticator.
func NewHeaderAuth(name, value string) *HeaderAuth {
	return &HeaderAuth{name: name, value: value}
}

// Apply sets the header.
func (a *HeaderAuth) Apply(req *http.Request) error {
	if a.value != "" {
		req.Header.Set(a.name, a.value)
	}
	return nil
}

// NoAuth is a no-op authentication provider for unauthenticated requests.
type NoAuth struct{}

// Apply does nothing.
func (NoAuth) Apply(req *http.Request) error {
	return nil
}

// ChainedAuth applies multiple auth providers in order.
type ChainedAuth struct {
	providers []AuthProvider
}

// NewChainedAuth creates a chained authenticator.
func NewChainedAuth(providers ...AuthProvider) *ChainedAuth {
	return &ChainedAuth{providers: providers}
}

// Apply applies all auth providers in order.
func (a *ChainedAuth) Apply(req *http.Request) error {
	for _, p := range a.providers {
		if err := p.Apply(req); err != nil {
			return err
		}
	}
	return nil
}

// Ensure implementations satisfy the interface.
var (
	_ AuthProvider = (*APIKeyAuth)(nil)
	_ AuthProvider = (*BearerTokenAuth)(nil)
	_ AuthProvider = (*HeaderAuth)(nil)
	_ AuthProvider = NoAuth{}
	_ AuthProvider = (*ChainedAuth)(nil)
)
