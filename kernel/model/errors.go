package model

import (
	"fmt"

	"github.com/pkg/errors"
)

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindApplianceNotFound
	KindMultipleAppliancesFound
	KindImageImport
	KindTimeout
	KindBackend
	KindNoBucketPermission
	KindImageDownload
	KindInvalidConfiguration
	KindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindApplianceNotFound:
		return "ApplianceNotFound"
	case KindMultipleAppliancesFound:
		return "MultipleAppliancesFound"
	case KindImageImport:
		return "ImageImport"
	case KindTimeout:
		return "Timeout"
	case KindBackend:
		return "Backend"
	case KindNoBucketPermission:
		return "NoBucketPermission"
	case KindImageDownload:
		return "ImageDownload"
	case KindInvalidConfiguration:
		return "InvalidConfiguration"
	case KindCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error is the single error type raised by the connector. Kind is the
// discriminant used to map the error to a transport status.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches kind and message to cause. A nil cause yields nil.
func WrapError(kind ErrorKind, cause error, format string, args ...interface{}) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Cause() error { return e.cause }
func (e *Error) Unwrap() error { return e.cause }

// KindOf returns the kind of the outermost *Error in the chain of err, or
// KindUnknown when err carries none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
