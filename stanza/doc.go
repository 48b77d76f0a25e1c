// Package stanza declares the schemas and typed wrappers for the three
// XMPP stanza kinds of RFC 6120: iq, message and presence.
//
// The schemas share one set of header descriptors (from, to, id,
// xml:lang), so header access is uniform. IQ payload schemas are
// registered by protocol extensions through RegisterIQPayload before
// stream processing starts.
package stanza
