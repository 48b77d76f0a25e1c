package transport

import "errors"

// ErrClosed is returned for operations on a closed transport.
var ErrClosed = errors.New("transport closed")

// Transport moves whole top-level XML elements. ReadElement blocks until
// an element arrives and returns ErrClosed once the transport is closed
// and drained. WriteElement sends one serialized element; implementations
// must preserve element boundaries on the wire.
type Transport interface {
	ReadElement() ([]byte, error)
	WriteElement(p []byte) error
	Close() error
}
