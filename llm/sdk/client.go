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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"axonflow/aiservice/llm"
)

// DefaultTimeout is the per-request timeout when none is configured.
const DefaultTimeout = 30 * time.Second

// maxResponseBytes bounds how much of an upstream body is read.
const maxResponseBytes = 32 << 20

// HTTPClient interface for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Response is a successful upstream reply.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// IsJSON reports whether the body is JSON.
func (r *Response) IsJSON() bool {
	return strings.Contains(r.ContentType, "json") || (len(r.Body) > 0 && (r.Body[0] == '{' || r.Body[0] == '['))
}

// Client sends JSON requests to one upstream API and converts every failure
// into an *llm.ProviderError. It is safe for concurrent use.
type Client struct {
	provider   string
	baseURL    string
	httpClient HTTPClient
	auth       AuthProvider
	headers    map[string]string
	timeout    time.Duration
	retry      *RetryConfig
	limiter    *RateLimiter
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the transport.
func WithHTTPClient(c HTTPClient) ClientOption {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithAuth sets the authentication provider.
func WithAuth(auth AuthProvider) ClientOption {
	return func(cl *Client) { cl.auth = auth }
}

// WithHeader adds a fixed header to every request.
func WithHeader(name, value string) ClientOption {
	return func(cl *Client) { cl.headers[name] = value }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

// WithRetry enables same-provider retry of transient failures.
func WithRetry(config *RetryConfig) ClientOption {
	return func(cl *Client) { cl.retry = config }
}

// WithRateLimiter throttles outgoing requests.
func WithRateLimiter(limiter *RateLimiter) ClientOption {
	return func(cl *Client) { cl.limiter = limiter }
}

// NewClient creates a client for the named provider rooted at baseURL.
func NewClient(provider, baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		provider: provider,
		baseURL:  strings.TrimRight(baseURL, "/"),
		auth:     NoAuth{},
		headers:  make(map[string]string),
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c
}

// OptionsFromConfig derives client options from provider configuration:
// timeout_seconds, and the max_retries / requests_per_second settings.
func OptionsFromConfig(config llm.ProviderConfig) []ClientOption {
	var opts []ClientOption
	if config.TimeoutSeconds > 0 {
		opts = append(opts, WithTimeout(time.Duration(config.TimeoutSeconds)*time.Second))
	}
	settings := llm.Options(config.Settings)
	if n := settings.Int("max_retries", 0); n > 0 {
		opts = append(opts, WithRetry(DefaultRetryConfig(n)))
	}
	if rps := settings.Float("requests_per_second", 0); rps > 0 {
		opts = append(opts, WithRateLimiter(NewRateLimiter(rps, rps)))
	}
	return opts
}

// BaseURL returns the configured endpoint root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPClient returns the underlying transport.
func (c *Client) HTTPClient() HTTPClient {
	return c.httpClient
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// PostJSON posts body as JSON to path and decodes the JSON reply into out.
// model is used only for error context.
func (c *Client) PostJSON(ctx context.Context, path, model string, body, out any) error {
	resp, err := c.Post(ctx, path, model, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return llm.NewAPIError(c.provider, model, "failed to decode response: "+err.Error(), err)
	}
	return nil
}

// Post posts body as JSON to path and returns the raw successful reply.
func (c *Client) Post(ctx context.Context, path, model string, body any) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, llm.NewGeneralError(c.provider, model, fmt.Errorf("failed to marshal request: %w", err))
	}

	// The request is traced before sending so failed attempts keep it.
	llm.RecordPayloads(ctx, json.RawMessage(payload), nil)

	call := func(ctx context.Context) (*Response, error) {
		return c.send(ctx, http.MethodPost, path, model, payload)
	}

	var resp *Response
	if c.retry != nil && c.retry.MaxRetries > 0 {
		resp, err = RetryWithBackoff(ctx, *c.retry, call)
	} else {
		resp, err = call(ctx)
	}
	if err != nil {
		return nil, err
	}

	var recorded any
	if resp.IsJSON() {
		recorded = json.RawMessage(resp.Body)
	}
	llm.RecordPayloads(ctx, json.RawMessage(payload), recorded)
	return resp, nil
}

func (c *Client) send(ctx context.Context, method, path, model string, payload []byte) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, llm.NewAPIError(c.provider, model, "rate limiter wait aborted", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, llm.NewGeneralError(c.provider, model, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if err := c.auth.Apply(req); err != nil {
		return nil, llm.NewAuthenticationError(c.provider, model, err.Error())
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			pe := llm.NewServiceUnavailableError(c.provider, model, fmt.Sprintf("request timed out after %s", c.timeout))
			pe.Cause = err
			return nil, pe
		}
		return nil, llm.NewAPIError(c.provider, model, "request failed: "+err.Error(), err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, llm.NewAPIError(c.provider, model, "failed to read response: "+err.Error(), err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, llm.FromHTTPStatus(c.provider, model, httpResp.StatusCode, body, httpResp.Header.Get("Retry-After"))
	}

	return &Response{
		StatusCode:  httpResp.StatusCode,
		ContentType: httpResp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
