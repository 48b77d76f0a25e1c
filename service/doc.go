// Package service composes pluggable protocol-handling components over a
// stream.
//
// A Descriptor declares a service: its setup ordering relative to other
// services (before/after relations, closed transitively by a Graph with
// cycle detection and a stable topological sort) and the registrations
// it performs against the stream (iq, message and presence handlers,
// filter chain entries, dependency signal connections, scoped
// resources). An Instance binds one descriptor to one live stream with
// exit-stack semantics: every registration made during construction is
// undone in reverse order at shutdown, regardless of partial failures.
// A Summoner instantiates whole dependency closures in order.
package service
