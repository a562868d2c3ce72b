package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrNotAuthenticated is returned when no bearer token is available.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 401 and 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassAuth represents 401 responses and missing credentials.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport failures and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassCancelled represents requests abandoned by their caller.
	// It is never a user-facing failure.
	ErrorClassCancelled ErrorClass = "cancelled"
)

// APIError is the error type returned for every failed request.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the request may be attempted again.
func (e *APIError) Retryable() bool {
	return shouldRetry(e.ErrorClass)
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassNetwork, ErrorClassRateLimit:
		return true
	default:
		// client, auth and cancelled are terminal
		return false
	}
}

// ClassOf returns the ErrorClass carried by err, or "" for foreign errors.
// Context cancellation is reported as ErrorClassCancelled.
func ClassOf(err error) ErrorClass {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrContextCancelled) {
		return ErrorClassCancelled
	}
	return ""
}

// IsCancelled reports whether err only signals an abandoned request.
func IsCancelled(err error) bool {
	return ClassOf(err) == ErrorClassCancelled
}

// AsAPIError converts any error into an *APIError. Malformed JSON is a
// client failure; other unknown errors are treated as network failures.
func AsAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrContextCancelled) {
		return &APIError{ErrorClass: ErrorClassCancelled, Message: "request cancelled", Err: err}
	}
	if isDecodeError(err) {
		return &APIError{ErrorClass: ErrorClassClient, Message: "decode response", Err: err}
	}
	return &APIError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

// classifyStatus maps an HTTP status code to an ErrorClass.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusUnauthorized:
		return ErrorClassAuth
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// errorEnvelope covers both error shapes the backend emits.
type errorEnvelope struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

// extractMessage pulls a user-facing message from an error body. The
// backend uses either {"detail": "..."} or {"message": "..."}; anything
// else falls back to the status text.
func extractMessage(status int, body []byte) string {
	var env errorEnvelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil {
		if len(env.Detail) > 0 {
			var detail string
			if json.Unmarshal(env.Detail, &detail) == nil && strings.TrimSpace(detail) != "" {
				return detail
			}
		}
		if strings.TrimSpace(env.Message) != "" {
			return env.Message
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP %d", status)
}
