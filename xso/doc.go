// Package xso implements declarative mapping between XML elements and
// typed record objects.
//
// A Schema names an element tag and a list of field descriptors binding
// attributes, character data and child elements to typed slots. Parsing
// is event driven and suspendable: a Parser consumes one Event at a time
// and can be resumed with fresh input mid-element, which suits stream
// protocols where elements arrive in fragments. A Driver dispatches a
// whole token stream across a Registry of top-level schemas.
//
// Field values pass through a Type for string conversion and optionally
// a Validator; unrecognized content is handled per schema policies, with
// an optional Collector field capturing it verbatim for round-tripping.
package xso
