package stream

import (
	"bytes"
	"errors"
	"fmt"
)

// Status is a Stream's (present) state.
type Status int

const (
	// StatusInactive is the initial stream state, indicating that
	// I/O has not yet been started.
	StatusInactive Status = iota
	// StatusNegotiating is set while the open and features exchange
	// with the peer is in progress.
	StatusNegotiating
	// StatusEstablished is set after the features exchange finishes
	// if the stream has been successfully established. Otherwise,
	// the state machine will proceed to StatusError.
	StatusEstablished

	// StatusError indicates the stream has encountered an error.
	StatusError
	// StatusClosed indicates the stream closed normally.
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusInactive:
		return "inactive"
	case StatusNegotiating:
		return "negotiating"
	case StatusEstablished:
		return "established"
	case StatusError:
		return "error"
	case StatusClosed:
		return "closed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	switch string(bytes.TrimSpace(b)) {
	case "inactive":
		*s = StatusInactive
	case "negotiating":
		*s = StatusNegotiating
	case "established":
		*s = StatusEstablished
	case "error":
		*s = StatusError
	case "closed":
		*s = StatusClosed
	default:
		return errors.New("unknown value")
	}
	return nil
}
