package dynerrors

import "errors"

// dynError implements the dynerrors.Error interface. It provides error
// wrapping and carries the structured message list from the API.
type dynError struct {
	msg           string    // primary error message
	base          error     // base error for errors.Is/As compatibility
	wrappedErrors []error   // additional wrapped errors
	messages      []Message // server message list, nil for local errors
}

// Error returns the error message.
func (e *dynError) Error() string {
	return e.msg
}

// Unwrap returns the base error for compatibility with errors.Is / errors.As.
func (e *dynError) Unwrap() error {
	return e.base
}

// UnwrapAll returns all wrapped errors in the order they were added.
func (e *dynError) UnwrapAll() []error {
	return e.wrappedErrors
}

// New creates a fresh error using the current error as a template. The new
// error starts with a new message and no message list.
func (e *dynError) New(msg string) Error {
	return &dynError{
		msg:  msg,
		base: e,
	}
}

// Msg creates a new error with a new message and wraps the original error.
// The new error inherits the original's message list.
func (e *dynError) Msg(msg string) Error {
	return &dynError{
		msg:           msg,
		base:          e,
		wrappedErrors: append([]error{e}, e.wrappedErrors...),
		messages:      e.messages,
	}
}

// Err creates a new error by attaching additional errors to the current
// error. The message and message list carry over.
func (e *dynError) Err(errs ...error) Error {
	all := append([]error{e}, errs...)
	return &dynError{
		msg:           e.msg,
		base:          e,
		wrappedErrors: all,
		messages:      e.messages,
	}
}

// Msgs returns a shallow copy carrying the given server message list.
// The original error remains unchanged.
func (e *dynError) Msgs(msgs []Message) Error {
	cp := *e
	cp.messages = msgs
	return &cp
}

// Messages returns the attached server message list, or nil for errors that
// never reached the network.
func (e *dynError) Messages() []Message {
	return e.messages
}

// Is checks if the error matches the target by checking both the base error
// and all wrapped errors.
func (e *dynError) Is(target error) bool {
	if target == nil {
		return false
	}
	if errors.Is(e.base, target) {
		return true
	}
	for _, err := range e.wrappedErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// New creates a root-level error with the given message. This is the entry
// point for creating new error templates.
func New(msg string) Error {
	return &dynError{
		msg: msg,
	}
}
