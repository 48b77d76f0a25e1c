// Package provision manages throwaway test accounts against a live
// server: configuration of the target host, certificate pinning,
// server quirk handling, account acquisition and release, and service
// discovery of the server's feature set.
package provision
