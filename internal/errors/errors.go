// Package errors provides unified error handling for the voice pipeline.
// Every failure inside a turn carries a Code so the session controller can
// decide between the apology path, the silent-discard path, and termination.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code classifies pipeline failures.
type Code int

const (
	CodeUnknown Code = iota
	CodeCaptureDeviceUnavailable
	CodeEmptyUtterance
	CodeTranscriptionFailed
	CodeGenerationFailed
	CodeSynthesisFailed
	CodeNotUnlocked
	CodeAutoplayBlocked
	CodePlaybackFailed
	CodeSessionCancelled
	CodeUnavailable
	CodeTimeout
	CodeRateLimited
	CodeInvalidArgument
)

var codeNames = map[Code]string{
	CodeUnknown:                  "UNKNOWN",
	CodeCaptureDeviceUnavailable: "CAPTURE_DEVICE_UNAVAILABLE",
	CodeEmptyUtterance:           "EMPTY_UTTERANCE",
	CodeTranscriptionFailed:      "TRANSCRIPTION_FAILED",
	CodeGenerationFailed:         "GENERATION_FAILED",
	CodeSynthesisFailed:          "SYNTHESIS_FAILED",
	CodeNotUnlocked:              "NOT_UNLOCKED",
	CodeAutoplayBlocked:          "AUTOPLAY_BLOCKED",
	CodePlaybackFailed:           "PLAYBACK_FAILED",
	CodeSessionCancelled:         "SESSION_CANCELLED",
	CodeUnavailable:              "UNAVAILABLE",
	CodeTimeout:                  "TIMEOUT",
	CodeRateLimited:              "RATE_LIMITED",
	CodeInvalidArgument:          "INVALID_ARGUMENT",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return "UNKNOWN"
}

// AppError is the base error type with a structured code and optional cause.
type AppError struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Cause != nil {
		s += fmt.Sprintf(": %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with a formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// CodeOf extracts the code from an error chain, CodeUnknown if none.
func CodeOf(err error) Code {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// IsCode reports whether the error chain carries the given code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeUnavailable, CodeTimeout, CodeRateLimited:
		return true
	default:
		return false
	}
}

// IsPlaybackError reports whether the error is one of the playback-tier
// failures that resume listening without the apology message.
func IsPlaybackError(err error) bool {
	switch CodeOf(err) {
	case CodeNotUnlocked, CodeAutoplayBlocked, CodePlaybackFailed:
		return true
	default:
		return false
	}
}
