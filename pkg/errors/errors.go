package errors

import (
	stdErrors "errors"
	"fmt"
)

type Code string

const (
	// CodeValidation covers malformed caller input and structured backend
	// rejections of an order payload.
	CodeValidation Code = "VALIDATION_ERROR"
	// CodeConnection means the backend could not be reached at all.
	CodeConnection Code = "CONNECTION_ERROR"
	// CodeAuthRejected means the backend answered and refused the credentials.
	CodeAuthRejected Code = "AUTH_REJECTED"
	CodeNotFound     Code = "NOT_FOUND"
	// CodeCorruptState marks an unreadable persisted snapshot. Stores resolve
	// it internally by resetting to defaults, so it never reaches a caller.
	CodeCorruptState Code = "CORRUPT_STATE"
	CodeDependency   Code = "DEPENDENCY_ERROR"
	CodeInternal     Code = "INTERNAL_ERROR"
)

type Metadata struct {
	Retryable     bool
	PublicMessage string
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		Retryable:     false,
		PublicMessage: "validation failed",
	},
	CodeConnection: {
		Retryable:     true,
		PublicMessage: "cannot reach the storefront backend",
	},
	CodeAuthRejected: {
		Retryable:     false,
		PublicMessage: "authentication rejected",
	},
	CodeNotFound: {
		Retryable:     false,
		PublicMessage: "resource not found",
	},
	CodeCorruptState: {
		Retryable:     false,
		PublicMessage: "stored state unreadable",
	},
	CodeDependency: {
		Retryable:     true,
		PublicMessage: "backend unavailable",
	},
	CodeInternal: {
		Retryable:     false,
		PublicMessage: "internal error",
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
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

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
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
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err carries the given domain code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}
