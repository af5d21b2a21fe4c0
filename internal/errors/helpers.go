package errors

import (
	"fmt"
	"net/http"
)

// Sentinels for state machine rejections. Compare with errors.Is.
var (
	ErrSendInProgress = &AppError{
		Code:        ErrCodeSendInProgress,
		Message:     "a send is already in progress for this chat",
		UserMessage: "Please wait for the current message to finish sending",
	}
	ErrLoadInProgress = &AppError{
		Code:    ErrCodeLoadInProgress,
		Message: "a page fetch is already in progress",
	}
	ErrRegistrationInProgress = &AppError{
		Code:        ErrCodeRegistrationInProgress,
		Message:     "device registration already running",
		UserMessage: "Registration is already in progress",
	}
	ErrTokenUnavailable = &AppError{
		Code:    ErrCodeTokenUnavailable,
		Message: "push token unavailable",
	}
	ErrMalformedDataURI = &AppError{
		Code:        ErrCodeMalformedInput,
		Message:     "malformed data URI",
		UserMessage: "This attachment cannot be opened",
	}
)

// NewValidationError creates a validation error with field context
func NewValidationError(field, message string) *AppError {
	return New(ErrCodeValidationFailed, message).
		WithContext("field", field).
		WithUserMessage(fmt.Sprintf("Invalid %s: %s", field, message))
}

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key).
		WithUserMessage("Configuration error")
}

// NewDatabaseError creates a database error with operation context
func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseQuery, fmt.Sprintf("database %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Local storage failed")
}

// NewNetworkError wraps a transport failure. These are always retryable.
func NewNetworkError(endpoint string, err error) *AppError {
	return WrapRetryable(err, ErrCodeNetwork, "request failed").
		WithContext("endpoint", endpoint).
		WithUserMessage("Network error, please check your connection and try again")
}

// NewAPIError maps a non-2xx response to an AppError. serverMessage, when the
// backend supplied one, becomes the user message.
func NewAPIError(endpoint string, statusCode int, serverMessage string) *AppError {
	retryable := statusCode >= 500 || statusCode == http.StatusTooManyRequests || statusCode == http.StatusRequestTimeout

	code := ErrCodeBackendRejected
	if retryable {
		code = ErrCodeNetwork
	}
	if statusCode == http.StatusNotFound {
		code = ErrCodeNotFound
	}

	appErr := New(code, fmt.Sprintf("API returned status %d", statusCode)).
		WithContext("endpoint", endpoint).
		WithContext("status_code", statusCode)
	appErr.Retryable = retryable

	switch {
	case serverMessage != "":
		appErr.UserMessage = serverMessage
	case retryable:
		appErr.UserMessage = "The server is unavailable, please try again"
	default:
		appErr.UserMessage = "The request was rejected"
	}
	return appErr
}

// NewUploadError wraps a failed attachment upload
func NewUploadError(kind string, err error) *AppError {
	appErr := Wrap(err, ErrCodeUploadFailed, fmt.Sprintf("%s upload failed", kind)).
		WithContext("kind", kind)
	appErr.Retryable = IsRetryable(err)
	appErr.UserMessage = fmt.Sprintf("Could not upload the %s, please try again", kind)
	if cause, ok := As(err); ok && cause.UserMessage != "" {
		appErr.UserMessage = cause.UserMessage
	}
	return appErr
}

// NewPermissionError marks a denied OS permission
func NewPermissionError(permission string) *AppError {
	return New(ErrCodePermissionDenied, fmt.Sprintf("%s permission denied", permission)).
		WithContext("permission", permission).
		WithUserMessage(fmt.Sprintf("Allow %s access in system settings to continue", permission))
}

// NewNotFoundError creates a not found error with resource context
func NewNotFoundError(resource, identifier string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("resource", resource).
		WithContext("identifier", identifier).
		WithUserMessage(fmt.Sprintf("%s not found", resource))
}
