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

package bedrock

import (
	"errors"
	"strings"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"

	"axonflow/aiservice/llm"
)

// mapError converts an InvokeModel failure into a ProviderError using the
// modeled exception code.
func mapError(provider, model string, err error) *llm.ProviderError {
	var (
		code    string
		message = err.Error()
		status  int
	)
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code = apiErr.ErrorCode()
		if m := apiErr.ErrorMessage(); m != "" {
			message = m
		}
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		status = respErr.HTTPStatusCode()
	}

	var pe *llm.ProviderError
	switch code {
	case "ThrottlingException", "ServiceQuotaExceededException":
		pe = llm.NewRateLimitError(provider, model, message, 0)
	case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException":
		pe = llm.NewAuthenticationError(provider, model, message)
	case "ResourceNotFoundException":
		pe = llm.NewInvalidModelError(provider, model)
		pe.Message = message
	case "ModelNotReadyException", "InternalServerException", "ModelTimeoutException", "ServiceUnavailableException":
		pe = llm.NewServiceUnavailableError(provider, model, message)
	case "ValidationException":
		lower := strings.ToLower(message)
		switch {
		case strings.Contains(lower, "too long") || strings.Contains(lower, "too many") || strings.Contains(lower, "context"):
			pe = llm.NewContextLengthError(provider, model, message, 0, 0)
		case strings.Contains(lower, "content filter") || strings.Contains(lower, "blocked"):
			pe = llm.NewContentFilteredError(provider, model, message)
		default:
			pe = llm.NewAPIError(provider, model, message, err)
		}
	default:
		if status >= 500 {
			pe = llm.NewServiceUnavailableError(provider, model, message)
		} else {
			pe = llm.NewAPIError(provider, model, message, err)
		}
	}
	if pe.Cause == nil {
		pe.Cause = err
	}
	pe.StatusCode = status
	return pe
}
