package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure reported across a surface boundary.
type ErrorKind string

const (
	KindMissingCredential    ErrorKind = "MissingCredential"
	KindElementTimeout       ErrorKind = "ElementTimeout"
	KindProviderHTTPError    ErrorKind = "ProviderHttpError"
	KindMalformedResponse    ErrorKind = "MalformedResponse"
	KindPageStructureMissing ErrorKind = "PageStructureMissing"
	KindTransport            ErrorKind = "Transport"
	KindInvalidInput         ErrorKind = "InvalidInput"
	KindInternal             ErrorKind = "Internal"
)

// Sentinels matched with errors.Is against any *Error of the same kind.
var (
	ErrMissingCredential    = errors.New("missing credential")
	ErrElementTimeout       = errors.New("element timeout")
	ErrProviderHTTP         = errors.New("provider request failed")
	ErrMalformedResponse    = errors.New("malformed response")
	ErrPageStructureMissing = errors.New("page structure missing")
	ErrTransport            = errors.New("transport failure")
	ErrInvalidInput         = errors.New("invalid input")
)

var kindSentinel = map[ErrorKind]error{
	KindMissingCredential:    ErrMissingCredential,
	KindElementTimeout:       ErrElementTimeout,
	KindProviderHTTPError:    ErrProviderHTTP,
	KindMalformedResponse:    ErrMalformedResponse,
	KindPageStructureMissing: ErrPageStructureMissing,
	KindTransport:            ErrTransport,
	KindInvalidInput:         ErrInvalidInput,
}

// Error is a classified failure. Message is what the user sees.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() []error {
	var errs []error
	if s, ok := kindSentinel[e.Kind]; ok {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewError creates a classified error with a user-facing message.
func NewError(kind ErrorKind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// WrapError classifies err under kind, keeping err's text as the message.
func WrapError(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Message: err.Error(), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
