package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers can branch without reading messages
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindRender     ErrorKind = "render"
	KindTimeout    ErrorKind = "timeout"
	KindTransport  ErrorKind = "transport"
	KindCanceled   ErrorKind = "canceled"
	KindTextLayer  ErrorKind = "text_layer"
)

// Error is a classified failure with optional cause
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified error
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func ValidationError(message string, err error) *Error {
	return NewError(KindValidation, message, err)
}

func RenderError(message string, err error) *Error {
	return NewError(KindRender, message, err)
}

func TimeoutError(message string, err error) *Error {
	return NewError(KindTimeout, message, err)
}

func TransportError(message string, err error) *Error {
	return NewError(KindTransport, message, err)
}

func CanceledError(message string, err error) *Error {
	return NewError(KindCanceled, message, err)
}

func TextLayerError(message string, err error) *Error {
	return NewError(KindTextLayer, message, err)
}

// KindOf returns the kind of the first *Error in the chain, or "" if there is none
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether a page-scoped retry makes sense for err
func Retryable(err error) bool {
	k := KindOf(err)
	return k == KindTimeout || k == KindTransport
}
