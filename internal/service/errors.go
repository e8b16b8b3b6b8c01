package service

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for surfacing to the user.
type Kind int

const (
	// KindUnknown is any unclassified failure from the remote service.
	KindUnknown Kind = iota

	// KindValidation is a locally detected input problem.
	KindValidation

	// KindPermission means the remote service denied read or write access.
	KindPermission

	// KindAuth is a classified auth provider failure.
	KindAuth

	// KindNotFound means the addressed document does not exist.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPermission:
		return "permission"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not found"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Code carries the provider error code for
// KindAuth errors and is empty otherwise.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf returns a classified error with a formatted message.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. It returns nil when err is nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// ErrNotSignedIn is returned by operations that require a current user.
var ErrNotSignedIn = &Error{Kind: KindAuth, Code: "not-signed-in", Message: "not signed in"}

// KindOf reports the classification of err; unclassified errors are KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the provider error code carried by err, if any.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsPermission reports whether err is a permission denial.
func IsPermission(err error) bool { return KindOf(err) == KindPermission }

// IsNotFound reports whether err addresses a missing document.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }
