package errors

import (
	stdErrors "errors"
	"net/http"
)

// Code is the stable, client-visible error identifier.
type Code string

const (
	CodeValidation       Code = "VALIDATION_ERROR"
	CodeSignatureInvalid Code = "SIGNATURE_INVALID"
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeForbidden        Code = "FORBIDDEN"
	CodeNotFound         Code = "NOT_FOUND"
	CodeConflict         Code = "CONFLICT"
	CodeStateConflict    Code = "STATE_CONFLICT"
	CodeIdempotency      Code = "IDEMPOTENCY_KEY_REUSED"
	CodeStorage          Code = "STORAGE_ERROR"
	CodeInternal         Code = "INTERNAL_ERROR"
	CodeDependency       Code = "DEPENDENCY_ERROR"
)

// Metadata describes how a code is surfaced over HTTP.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

// A 5xx status tells the gateway to redeliver, so every retryable code
// maps to one.
var metadataByCode = map[Code]Metadata{
	CodeValidation:       {http.StatusBadRequest, false, "validation failed", true},
	CodeSignatureInvalid: {http.StatusBadRequest, false, "signature verification failed", false},
	CodeUnauthorized:     {http.StatusUnauthorized, false, "authentication required", false},
	CodeForbidden:        {http.StatusForbidden, false, "access denied", false},
	CodeNotFound:         {http.StatusNotFound, false, "resource not found", false},
	CodeConflict:         {http.StatusConflict, false, "conflict detected", false},
	CodeStateConflict:    {http.StatusUnprocessableEntity, false, "state transition disallowed", true},
	CodeIdempotency:      {http.StatusConflict, false, "idempotency key reused", false},
	CodeStorage:          {http.StatusInternalServerError, true, "storage unavailable", false},
	CodeInternal:         {http.StatusInternalServerError, true, "internal server error", false},
	CodeDependency:       {http.StatusServiceUnavailable, true, "dependency unavailable", true},
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error carries a Code, an internal message, optional client details and
// the underlying cause.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches cause; a nil cause behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	s := string(e.code) + ": " + e.message
	if e.cause != nil {
		s += ": " + e.cause.Error()
	}
	return s
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in the chain, or nil.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code of the first typed error in the chain, or
// CodeInternal for untyped errors.
func CodeOf(err error) Code {
	return As(err).Code()
}

func IsRetryable(err error) bool {
	return err != nil && MetadataFor(CodeOf(err)).Retryable
}
