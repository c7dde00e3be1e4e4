// Package dynerrors provides the error taxonomy for the DynECT client. It
// supports error wrapping and chaining while carrying the structured message
// list the API returns on failure. All errors raised by the SDK descend from
// one of the sentinel errors declared here, so callers can classify failures
// with errors.Is without string matching.
package dynerrors

import "strings"

// Message is one entry of the API's msgs array. The API reports every
// failure (and many successes) as a list of these.
type Message struct {
	Source    string `json:"SOURCE"`
	Level     string `json:"LVL"`
	Info      string `json:"INFO"`
	ErrorCode string `json:"ERR_CD"`
}

// Error defines the interface for SDK errors. It extends the standard error
// interface with wrapping, message-list carriage, and chaining. Methods that
// derive new errors return Error to support chaining.
type Error interface {
	error
	Unwrap() error // support for errors.Is / errors.As

	New(msg string) Error      // creates a new error using current as template
	Msg(msg string) Error      // creates a new error with message and wraps original
	Err(err ...error) Error    // attaches additional errors to current error
	Msgs(msgs []Message) Error // attaches the server's message list
	Messages() []Message       // returns the attached message list, if any
	UnwrapAll() []error        // returns all wrapped errors
}

// Sentinel roots. ErrSession is the base of everything the session engine
// raises; the method-specific errors mirror the API's failure classification.
var (
	ErrSession      = New("session error")
	ErrArgument     = ErrSession.New("invalid argument")
	ErrAuth         = ErrSession.New("authentication failed")
	ErrCreate       = ErrSession.New("create failed")
	ErrGet          = ErrSession.New("get failed")
	ErrUpdate       = ErrSession.New("update failed")
	ErrDelete       = ErrSession.New("delete failed")
	ErrQueryTimeout = ErrSession.New("query timed out")
	ErrTransport    = ErrSession.New("unable to access the API host")

	// Multi-session sentinels.
	ErrNoOpenSession    = ErrSession.New("no matching open session")
	ErrAmbiguousSession = ErrSession.New("more than one open session matches")
)

// Message Management sentinels. The MM API reports numeric statuses rather
// than a msgs list; these map 451/452/453 respectively.
var (
	ErrEmailKey             = ErrSession.New("missing or invalid API key")
	ErrEmailInvalidArgument = ErrSession.New("invalid argument")
	ErrEmailObject          = ErrSession.New("email object error")
)

// JoinMessages flattens a msgs array into the human-readable string used as
// the error text, matching the API documentation's presentation: the INFO
// fields joined with periods.
func JoinMessages(msgs []Message) string {
	var parts []string
	for _, m := range msgs {
		if m.Info != "" {
			parts = append(parts, m.Info)
		}
	}
	if len(parts) == 0 {
		return "an unknown error occurred"
	}
	return strings.Join(parts, ". ")
}

// FromMessages derives an error from base carrying the server's message
// list, with the joined INFO text as its message.
func FromMessages(base Error, msgs []Message) Error {
	return base.Msg(JoinMessages(msgs)).Msgs(msgs)
}
