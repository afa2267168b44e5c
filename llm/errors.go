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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Input validation errors. They are plain errors, not ProviderErrors, so
// the dispatcher never falls over to another provider because of them.
var (
	ErrNoCategories = errors.New("categories must not be empty")
	ErrEmptyPrompt  = errors.New("prompt must not be empty")
)

// ErrorKind classifies a provider failure.
type ErrorKind string

// Failure kinds.
const (
	// KindRateLimitExceeded indicates rate limiting; Details carry "retry_after_seconds".
	KindRateLimitExceeded ErrorKind = "rate_limit_exceeded"

	// KindAuthenticationFailed indicates rejected or missing credentials.
	KindAuthenticationFailed ErrorKind = "authentication_failed"

	// KindInvalidModel indicates the requested model does not exist.
	KindInvalidModel ErrorKind = "invalid_model"

	// KindMissingCapability indicates the provider has neither native nor
	// emulated support for the operation.
	KindMissingCapability ErrorKind = "missing_capability"

	// KindServiceUnavailable indicates the upstream is down or overloaded.
	KindServiceUnavailable ErrorKind = "service_unavailable"

	// KindContextLengthExceeded indicates the input exceeds the context
	// window; Details carry "tokens" and "limit" when known.
	KindContextLengthExceeded ErrorKind = "context_length_exceeded"

	// KindContentFiltered indicates the upstream refused the content.
	KindContentFiltered ErrorKind = "content_filtered"

	// KindAPIError is a generic transport or response decoding failure.
	KindAPIError ErrorKind = "api_error"

	// KindGeneralError is the catch-all.
	KindGeneralError ErrorKind = "general_error"
)

// ProviderError represents a failure of one adapter call.
// It is constructed at the failure site and never mutated afterwards.
type ProviderError struct {
	// Kind is the machine-readable classification.
	Kind ErrorKind `json:"kind"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// Provider is the name of the provider that failed.
	Provider string `json:"provider"`

	// Model is the model involved, when known.
	Model string `json:"model,omitempty"`

	// StatusCode is the upstream HTTP status code (if applicable).
	StatusCode int `json:"status_code,omitempty"`

	// Details carries kind-specific context.
	Details map[string]any `json:"details,omitempty"`

	// Cause is the underlying error (if any).
	Cause error `json:"-"`
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	if e.Model != "" {
		b.WriteString("/")
		b.WriteString(e.Model)
	}
	b.WriteString(" ")
	b.WriteString(string(e.Kind))
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether retrying the same request later may succeed.
func (e *ProviderError) Retryable() bool {
	switch e.Kind {
	case KindRateLimitExceeded, KindServiceUnavailable, KindAPIError:
		return true
	default:
		return false
	}
}

// RetryAfter returns the upstream retry hint, or zero.
func (e *ProviderError) RetryAfter() time.Duration {
	if e.Details == nil {
		return 0
	}
	switch v := e.Details["retry_after_seconds"].(type) {
	case int:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	}
	return 0
}

// newError copies details so callers cannot mutate a constructed error.
func newError(kind ErrorKind, provider, model, message string, details map[string]any, cause error) *ProviderError {
	var d map[string]any
	if len(details) > 0 {
		d = make(map[string]any, len(details))
		for k, v := range details {
			d[k] = v
		}
	}
	return &ProviderError{
		Kind:     kind,
		Message:  message,
		Provider: provider,
		Model:    model,
		Details:  d,
		Cause:    cause,
	}
}

// NewProviderError creates a ProviderError of the given kind.
func NewProviderError(kind ErrorKind, provider, model, message string) *ProviderError {
	return newError(kind, provider, model, message, nil, nil)
}

// NewRateLimitError creates a rate limit error with an optional retry hint.
func NewRateLimitError(provider, model, message string, retryAfter time.Duration) *ProviderError {
	var details map[string]any
	if retryAfter > 0 {
		details = map[string]any{"retry_after_seconds": retryAfter.Seconds()}
	}
	return newError(KindRateLimitExceeded, provider, model, message, details, nil)
}

// NewAuthenticationError creates an authentication failure.
func NewAuthenticationError(provider, model, message string) *ProviderError {
	return newError(KindAuthenticationFailed, provider, model, message, nil, nil)
}

// NewInvalidModelError creates an invalid model failure.
func NewInvalidModelError(provider, model string) *ProviderError {
	return newError(KindInvalidModel, provider, model, fmt.Sprintf("model %q is not available", model), nil, nil)
}

// NewMissingCapabilityError reports an operation the provider cannot serve.
func NewMissingCapabilityError(provider string, op Operation) *ProviderError {
	return newError(KindMissingCapability, provider, "",
		fmt.Sprintf("%s is not supported by this provider", op),
		map[string]any{"operation": string(op)}, nil)
}

// NewServiceUnavailableError creates a service unavailable failure.
func NewServiceUnavailableError(provider, model, message string) *ProviderError {
	return newError(KindServiceUnavailable, provider, model, message, nil, nil)
}

// NewContextLengthError creates a context window failure. Zero values mean unknown.
func NewContextLengthError(provider, model, message string, tokens, limit int) *ProviderError {
	details := map[string]any{}
	if tokens > 0 {
		details["tokens"] = tokens
	}
	if limit > 0 {
		details["limit"] = limit
	}
	return newError(KindContextLengthExceeded, provider, model, message, details, nil)
}

// NewContentFilteredError creates a content filter failure.
func NewContentFilteredError(provider, model, message string) *ProviderError {
	return newError(KindContentFiltered, provider, model, message, nil, nil)
}

// NewAPIError wraps a transport or decoding failure.
func NewAPIError(provider, model, message string, cause error) *ProviderError {
	return newError(KindAPIError, provider, model, message, nil, cause)
}

// NewGeneralError wraps any other failure.
func NewGeneralError(provider, model string, cause error) *ProviderError {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return newError(KindGeneralError, provider, model, msg, nil, cause)
}

// AsProviderError extracts a ProviderError from an error chain.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsKind reports whether err is a ProviderError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	pe, ok := AsProviderError(err)
	return ok && pe.Kind == kind
}

var (
	contextLengthPattern = regexp.MustCompile(`(?i)(context[ _]length|context[ _]window|maximum context|too many tokens|prompt is too long|input is too long)`)
	limitPattern         = regexp.MustCompile(`(?i)maximum context length is (\d+)`)
	tokensPattern        = regexp.MustCompile(`(?i)(?:resulted in|requested|contains?) (\d+) tokens`)
	contentFilterPattern = regexp.MustCompile(`(?i)(content[_ ]filter|content[_ ]policy|safety|blocked)`)
	modelPattern         = regexp.MustCompile(`(?i)model`)
)

// FromHTTPStatus maps an upstream HTTP failure to a ProviderError.
// body is the raw response body; retryAfter is the Retry-After header value.
func FromHTTPStatus(provider, model string, status int, body []byte, retryAfter string) *ProviderError {
	message, code := extractErrorMessage(body)
	if message == "" {
		message = http.StatusText(status)
	}
	classifier := message + " " + code

	var pe *ProviderError
	switch {
	case status == http.StatusTooManyRequests:
		pe = NewRateLimitError(provider, model, message, parseRetryAfter(retryAfter))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		pe = NewAuthenticationError(provider, model, message)
	case status == http.StatusRequestEntityTooLarge || contextLengthPattern.MatchString(classifier):
		pe = NewContextLengthError(provider, model, message, firstInt(tokensPattern, message), firstInt(limitPattern, message))
	case contentFilterPattern.MatchString(code):
		pe = NewContentFilteredError(provider, model, message)
	case status == http.StatusNotFound && modelPattern.MatchString(classifier):
		pe = NewInvalidModelError(provider, model)
		pe.Message = message
	case status >= 500:
		pe = NewServiceUnavailableError(provider, model, message)
	default:
		pe = NewAPIError(provider, model, message, nil)
	}
	pe.StatusCode = status
	return pe
}

// extractErrorMessage pulls a message and code out of the common upstream
// error envelopes: {"error":{"message","type","code","status"}},
// {"error":"..."} and {"message":"..."}.
func extractErrorMessage(body []byte) (message, code string) {
	if len(body) == 0 {
		return "", ""
	}
	var envelope map[string]any
	if err := json.Unmarshal(body, &envelope); err != nil {
		return strings.TrimSpace(string(body)), ""
	}
	switch e := envelope["error"].(type) {
	case string:
		return e, ""
	case map[string]any:
		message, _ = e["message"].(string)
		for _, k := range []string{"code", "type", "status"} {
			if s, ok := e[k].(string); ok && s != "" {
				code = s
				break
			}
		}
		return message, code
	}
	if m, ok := envelope["message"].(string); ok {
		return m, ""
	}
	return strings.TrimSpace(string(body)), ""
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func firstInt(re *regexp.Regexp, s string) int {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}
