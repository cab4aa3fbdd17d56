package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"

	"github.com/hyperjump/chatdata/internal/apperrors"
)

// ErrorType classifies an upstream failure.
type ErrorType string

const (
	ErrorTypeAuth      ErrorType = "auth"
	ErrorTypeRateLimit ErrorType = "rate_limit"
	ErrorTypeRequest   ErrorType = "invalid_request"
	ErrorTypeModel     ErrorType = "model"
	ErrorTypeServer    ErrorType = "server"
	ErrorTypeNetwork   ErrorType = "network"
	ErrorTypeUnknown   ErrorType = "unknown"
)

// UpstreamError is a failed call to the text-generation provider. Calls are
// never retried; the error is surfaced to the caller as is.
type UpstreamError struct {
	Provider string
	Type     ErrorType
	// StatusCode is the HTTP status of the provider response, 0 for transport failures.
	StatusCode int
	Message    string
	// Details is the provider's error payload when one was returned.
	Details any
	Cause   error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	var parts []string
	parts = append(parts, e.Provider+" API error")
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	parts = append(parts, e.Message)
	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// missingCredential is returned before any network I/O when no API key is configured.
func missingCredential(provider, envVar string) error {
	return fmt.Errorf("%w: %s API key is not configured (set %s)", apperrors.ErrConfiguration, DisplayName(provider), envVar)
}

// DisplayName returns the human-readable name of a provider.
func DisplayName(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "OpenAI"
	case ProviderAnthropic:
		return "Anthropic"
	}
	return provider
}

func typeForStatus(status int) ErrorType {
	switch {
	case status == 401 || status == 403:
		return ErrorTypeAuth
	case status == 429:
		return ErrorTypeRateLimit
	case status == 404:
		return ErrorTypeModel
	case status >= 500:
		return ErrorTypeServer
	case status >= 400:
		return ErrorTypeRequest
	}
	return ErrorTypeUnknown
}

// classifyOpenAI converts a go-openai error into an UpstreamError.
func classifyOpenAI(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		details := map[string]any{"message": apiErr.Message, "type": apiErr.Type}
		if apiErr.Code != nil {
			details["code"] = apiErr.Code
		}
		if apiErr.Param != nil {
			details["param"] = *apiErr.Param
		}
		return &UpstreamError{
			Provider:   ProviderOpenAI,
			Type:       typeForStatus(apiErr.HTTPStatusCode),
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Details:    details,
			Cause:      err,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &UpstreamError{
			Provider:   ProviderOpenAI,
			Type:       typeForStatus(reqErr.HTTPStatusCode),
			StatusCode: reqErr.HTTPStatusCode,
			Message:    fmt.Sprintf("unexpected response (%s)", reqErr.HTTPStatus),
			Details:    string(reqErr.Body),
			Cause:      err,
		}
	}
	return networkError(ProviderOpenAI, err)
}

// anthropicStatus maps Anthropic error types to the HTTP status the API documents for them.
var anthropicStatus = map[string]int{
	"invalid_request_error": 400,
	"authentication_error":  401,
	"permission_error":      403,
	"not_found_error":       404,
	"request_too_large":     413,
	"rate_limit_error":      429,
	"api_error":             500,
	"overloaded_error":      529,
}

// classifyAnthropic converts a go-anthropic error into an UpstreamError.
func classifyAnthropic(err error) error {
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		status := anthropicStatus[string(apiErr.Type)]
		return &UpstreamError{
			Provider:   ProviderAnthropic,
			Type:       typeForStatus(status),
			StatusCode: status,
			Message:    apiErr.Message,
			Details:    map[string]any{"type": string(apiErr.Type), "message": apiErr.Message},
			Cause:      err,
		}
	}
	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) {
		return &UpstreamError{
			Provider:   ProviderAnthropic,
			Type:       typeForStatus(reqErr.StatusCode),
			StatusCode: reqErr.StatusCode,
			Message:    "unexpected response",
			Cause:      err,
		}
	}
	return networkError(ProviderAnthropic, err)
}

func networkError(provider string, err error) *UpstreamError {
	return &UpstreamError{
		Provider: provider,
		Type:     ErrorTypeNetwork,
		Message:  "request failed: " + err.Error(),
		Cause:    err,
	}
}
