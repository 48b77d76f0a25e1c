/*
Package xmpp is a set of XMPP (RFC6120) client support libraries.

Doing the heavy lifting of stanza mapping (decoding and encoding),
stream management and service composition, these libraries allow easy
XMPP client application development.

The xso package maps XML subtrees to schema-described objects and back,
driven one token at a time so a stream can be parsed as it arrives. The
stanza package builds the RFC6120 stanza vocabulary on top of it, and
the stream package runs a negotiated session over a framed transport,
dispatching stanzas to registered handlers.

Services declare their stream registrations and relative ordering
declaratively; the service package resolves the order, instantiates the
services against a stream and tears them down again in reverse.

See the stream and service sub-directories for more information about
Stream objects and Descriptor implementations.
*/
package xmpp
