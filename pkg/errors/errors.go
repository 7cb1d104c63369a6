// Package errors defines the typed error carried from services to the HTTP
// layer. The code decides the status and how much of the message is public.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"

	"go.uber.org/multierr"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	// CodeInvalidArgs answers 404 so probing a foreign id looks like a missing one.
	CodeInvalidArgs Code = "INVALID_ARGUMENTS"
	CodeRateLimit   Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal    Code = "INTERNAL_ERROR"
	CodeDependency  Code = "DEPENDENCY_ERROR"
)

// Metadata is the HTTP face of a Code.
type Metadata struct {
	HTTPStatus    int
	Retryable     bool
	PublicMessage string
	// DetailsAllowed lets Error.Details reach the response body.
	DetailsAllowed bool
	// MessagePublic exposes Error.Message instead of PublicMessage.
	MessagePublic bool
}

var codeTable = map[Code]Metadata{
	CodeValidation:    {http.StatusBadRequest, false, "validation failed", true, true},
	CodeUnauthorized:  {http.StatusUnauthorized, false, "authentication required", false, true},
	CodeForbidden:     {http.StatusForbidden, false, "access denied", false, true},
	CodeNotFound:      {http.StatusNotFound, false, "resource not found", false, true},
	CodeInvalidArgs:   {http.StatusNotFound, false, "invalid arguments", false, true},
	CodeConflict:      {http.StatusConflict, false, "conflict detected", false, true},
	CodeStateConflict: {http.StatusUnprocessableEntity, false, "state transition disallowed", true, true},
	CodeIdempotency:   {http.StatusConflict, false, "idempotency key reused", true, true},
	CodeRateLimit:     {http.StatusTooManyRequests, false, "rate limit exceeded", false, true},
	CodeInternal:      {http.StatusInternalServerError, true, "internal server error", false, false},
	CodeDependency:    {http.StatusServiceUnavailable, true, "dependency unavailable", true, false},
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	if meta, ok := codeTable[code]; ok {
		return meta
	}
	return codeTable[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap keeps err reachable through errors.Is/As. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// Newf is New with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
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
	switch {
	case e == nil:
		return ""
	case e.cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	default:
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// Combine turns a multierr into one typed error listing every message in
// its details. A nil err yields nil.
func Combine(code Code, err error, message string) *Error {
	if err == nil {
		return nil
	}
	var details []string
	for _, e := range multierr.Errors(err) {
		details = append(details, e.Error())
	}
	return Wrap(code, err, message).WithDetails(details)
}

// Chain lists each link of err's unwrap chain with its concrete type, outermost first.
func Chain(err error) []string {
	var chain []string
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T: %v", e, e))
	}
	return chain
}
