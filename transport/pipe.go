package transport

import "sync"

// Pipe is one end of an in-memory element pipe. It is used by tests and
// by in-process client/server pairs.
type Pipe struct {
	in   chan []byte
	out  chan []byte
	done chan struct{}
	once *sync.Once
}

// NewPipe returns two connected transports. Elements written to one end
// are read from the other. Closing either end closes both.
func NewPipe() (*Pipe, *Pipe) {
	ab := make(chan []byte, 64)
	ba := make(chan []byte, 64)
	done := make(chan struct{})
	once := &sync.Once{}
	a := &Pipe{in: ba, out: ab, done: done, once: once}
	b := &Pipe{in: ab, out: ba, done: done, once: once}
	return a, b
}

// ReadElement returns the next element from the peer. Elements already
// in flight remain readable after close; ErrClosed follows.
func (p *Pipe) ReadElement() ([]byte, error) {
	select {
	case el := <-p.in:
		return el, nil
	default:
	}
	select {
	case el := <-p.in:
		return el, nil
	case <-p.done:
		// drain anything raced in before the close
		select {
		case el := <-p.in:
			return el, nil
		default:
			return nil, ErrClosed
		}
	}
}

// WriteElement sends one element to the peer.
func (p *Pipe) WriteElement(el []byte) error {
	buf := make([]byte, len(el))
	copy(buf, el)
	select {
	case <-p.done:
		return ErrClosed
	case p.out <- buf:
		return nil
	}
}

// Close closes both directions of the pipe.
func (p *Pipe) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
