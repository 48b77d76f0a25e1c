package service

import (
	"io"
	"sync"
)

// Signal is a named broadcast point a service exposes to its dependents.
// Connect returns an undo handle suitable for the instance exit stack.
type Signal struct {
	mu       sync.Mutex
	next     int
	handlers map[int]func(interface{})
}

// NewSignal returns an empty signal.
func NewSignal() *Signal {
	return &Signal{handlers: map[int]func(interface{}){}}
}

// Connect attaches h. Closing the returned handle detaches it.
func (s *Signal) Connect(h func(interface{})) io.Closer {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.handlers[id] = h
	return closerFunc(func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handlers, id)
		return nil
	})
}

// Emit calls every connected handler with v, in an unspecified order.
func (s *Signal) Emit(v interface{}) {
	s.mu.Lock()
	handlers := make([]func(interface{}), 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()
	for _, h := range handlers {
		h(v)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
