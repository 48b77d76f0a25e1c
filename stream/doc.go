// Package stream implements the live XMPP client stream.
//
// A Stream negotiates the open and features exchange with the peer over
// a transport, then serves inbound stanzas: each received element is
// parsed through the stanza schemas and routed via inbound filters to
// the registered iq, message and presence handlers. All registration
// surfaces return an io.Closer that undoes the registration, which is
// what the service runtime stacks up for teardown.
package stream
