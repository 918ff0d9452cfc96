package stt

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNoAPIKey is returned when the API key is missing.
	ErrNoAPIKey = errors.New("stt: API key required")

	// ErrNoModel is returned when the local model path is missing or unreadable.
	ErrNoModel = errors.New("stt: model file required")

	// ErrEmptyClip is returned when a nil or empty clip is submitted.
	ErrEmptyClip = errors.New("stt: empty audio clip")

	// ErrAllRecognizersFailed is returned when every recognizer in a router fails.
	ErrAllRecognizersFailed = errors.New("stt: all recognizers failed")

	// ErrNoRecognizer is returned when no recognizer backend can be constructed.
	ErrNoRecognizer = errors.New("stt: no recognizer available")
)

// RecognizerError wraps an error with backend context.
type RecognizerError struct {
	Recognizer string
	Err        error
}

// Error implements the error interface.
func (e *RecognizerError) Error() string {
	return fmt.Sprintf("stt [%s]: %v", e.Recognizer, e.Err)
}

// Unwrap returns the underlying error.
func (e *RecognizerError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with backend context.
func WrapError(recognizer string, err error) error {
	if err == nil {
		return nil
	}
	return &RecognizerError{Recognizer: recognizer, Err: err}
}
