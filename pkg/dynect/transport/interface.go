package transport

import "context"

// Doer is the exchange surface the session engine depends on. The concrete
// Conn implements it for real endpoints; tests substitute scripted stubs.
type Doer interface {
	// Do performs one raw exchange, connecting first if necessary.
	Do(ctx context.Context, req Request) (*Response, error)

	// Connect opens a fresh connection, replacing any existing one.
	Connect() error

	// Close tears down the current connection.
	Close()

	// Connected reports whether a connection is currently open.
	Connected() bool
}

// Verify that Conn implements the Doer interface.
var _ Doer = &Conn{}
