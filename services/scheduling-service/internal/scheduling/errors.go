package scheduling

import (
	"errors"
	"fmt"
)

// Kind classifies an Error for the transport layer.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindUnauthorized Kind = "unauthorized"
	KindConflict     Kind = "conflict"
	KindStorage      Kind = "storage"
)

// Stable machine-readable codes returned to clients.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeForbidden          = "FORBIDDEN"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInvalidStatus      = "INVALID_STATUS"
	CodeCannotCancelBooked = "CANNOT_CANCEL_BOOKED_SCHEDULE"
	CodeInternal           = "INTERNAL_ERROR"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain, or KindStorage for
// anything unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func validationError(field, msg string) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: msg, Field: field}
}

func notFoundError(what string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: what + " not found"}
}

func forbiddenError() *Error {
	return &Error{Kind: KindForbidden, Code: CodeForbidden, Message: "you do not have access to this candidate"}
}

func unauthorizedError() *Error {
	return &Error{Kind: KindUnauthorized, Code: CodeUnauthorized, Message: "staff identity is required"}
}

func conflictError(code, msg string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: msg}
}

func storageError(op string, err error) *Error {
	return &Error{Kind: KindStorage, Code: CodeInternal, Message: op, Err: err}
}
