// Package transport carries serialized top-level stream elements between
// a client and its peer.
//
// The stream layer is transport-agnostic: it reads and writes one
// complete element at a time through the Transport interface. Pipe is an
// in-memory implementation for tests; WebSocket implements the RFC 7395
// binding, one element per text frame.
package transport
