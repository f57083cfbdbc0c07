// Package apperr defines the coded errors surfaced by the pipeline.
package apperr

import (
	"errors"
	"fmt"
)

// Code classifies an error for the UI layer.
type Code string

const (
	CodeUpload          Code = "UPLOAD_ERROR"
	CodeEmptySelection  Code = "EMPTY_SELECTION"
	CodeRequest         Code = "REQUEST_ERROR"
	CodePayloadParse    Code = "PAYLOAD_PARSE_ERROR"
	CodeRequestInFlight Code = "REQUEST_IN_FLIGHT"
)

// Error is a coded error with an optional HTTP status and cause.
type Error struct {
	Code       Code
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause attaches the underlying cause.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus records the backend status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// Upload reports a failed or rejected upload.
func Upload(message string) *Error { return New(CodeUpload, message) }

// EmptySelection reports a pipeline call with no techniques chosen.
func EmptySelection(kind string) *Error {
	return New(CodeEmptySelection, fmt.Sprintf("select at least one %s technique", kind))
}

// Request reports a backend-reported or transport failure.
func Request(message string) *Error { return New(CodeRequest, message) }

// PayloadParse reports a malformed structured payload.
func PayloadParse(message string) *Error { return New(CodePayloadParse, message) }

// RequestInFlight reports a call rejected because one of the same kind is outstanding.
func RequestInFlight(kind string) *Error {
	return New(CodeRequestInFlight, fmt.Sprintf("a %s request is already in progress", kind))
}

// CodeOf extracts the code from err, searching the wrap chain.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
