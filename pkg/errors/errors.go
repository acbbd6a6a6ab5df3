package errors

import (
	goErrors "errors"
	"fmt"
)

// New returns an error that formats as the given text.
func New(msg string) error {
	return goErrors.New(msg)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return goErrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return goErrors.As(err, target)
}

// contextError annotates an error with the operation that was being
// performed when it occurred.
type contextError struct {
	context string
	err     error
}

// WithContext wraps `err` with a short description of what was being done
// when it happened. It returns nil if `err` is nil.
func WithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return contextError{context: context, err: err}
}

func (err contextError) Error() string {
	return fmt.Sprintf("%s: %s", err.context, err.err)
}

func (err contextError) Unwrap() error {
	return err.err
}

// FriendlyError is an error with a message that's suitable for showing
// directly to users, without the chain of context that led to it.
type FriendlyError interface {
	error
	FriendlyMessage() string
}

type friendlyError struct {
	msg string
}

// NewFriendlyError creates an error whose message is shown as-is to users.
func NewFriendlyError(format string, a ...interface{}) error {
	return friendlyError{fmt.Sprintf(format, a...)}
}

func (err friendlyError) Error() string {
	return err.msg
}

func (err friendlyError) FriendlyMessage() string {
	return err.msg
}

// GetFriendlyError returns the first FriendlyError in err's chain.
func GetFriendlyError(err error) (FriendlyError, bool) {
	var friendly FriendlyError
	if As(err, &friendly) {
		return friendly, true
	}
	return nil, false
}

// RootCause returns the innermost error in err's chain.
func RootCause(err error) error {
	for {
		next := goErrors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
