package stream

import (
	"bytes"
	"context"
	"encoding/xml"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/varka/xmpp/jid"
	"github.com/varka/xmpp/stanza"
	"github.com/varka/xmpp/transport"
	"github.com/varka/xmpp/xso"
)

// New returns a new XMPP client stream over t.
func New(t transport.Transport, config Config) *Stream {
	s := &Stream{
		Config: &config,
		State:  &State{},
		t:      t,
		log:    config.Logger,

		iqHandlers:   map[iqKey]IQHandler{},
		msgHandlers:  map[chatKey]MessageHandler{},
		presHandlers: map[chatKey]PresenceHandler{},
		pending:      map[string]chan stanza.IQ{},
	}
	s.metrics = newMetrics(config.Registerer)
	s.driver = xso.NewDriver(stanza.Registry, s.dispatch, s.onStreamError)
	return s
}

// Stream represents an XMPP client stream: the live object protocol
// services register their handlers and filters into.
type Stream struct {
	Config *Config
	State  *State

	t       transport.Transport
	log     zerolog.Logger
	metrics *metrics
	driver  *xso.Driver

	// wmu serializes writers. The transport admits one writer at a
	// time and the tx counter moves with each write.
	wmu sync.Mutex

	mu           sync.Mutex
	iqHandlers   map[iqKey]IQHandler
	msgHandlers  map[chatKey]MessageHandler
	presHandlers map[chatKey]PresenceHandler
	inFilters    []*filterEntry
	outFilters   []*filterEntry
	pending      map[string]chan stanza.IQ

	closeOnce sync.Once
}

// Config contains Stream configuration
type Config struct {
	// Domain is the server domain addressed in the stream open element.
	Domain jid.JID
	// Lang is the stream-level xml:lang, optional.
	Lang string
	// Logger receives stream-level log events.
	Logger zerolog.Logger
	// Registerer receives the stream's stanza counters. Nil disables
	// metric registration.
	Registerer prometheus.Registerer
}

// State contains runtime Stream state
type State struct {
	// Status is the stream status
	Status Status
	// ID is the stream id assigned by the peer during negotiation.
	ID string
	// From is the peer's stream-level from address.
	From jid.JID
	// Features holds the peer's announced stream features.
	Features Features
	// Counters contains stream counters
	Counters struct {
		// RxStanzas is the number of stanzas received on the stream
		RxStanzas int
		// TxStanzas is the number of stanzas sent on the stream
		TxStanzas int
	}

	errs []error
}

// Handler is the Stream handler interface.
// Client applications implement this interface.
//
// See Run() for usage.
type Handler interface {
	// OnEstablish is called when the stream is established.
	// When called, features processing has completed.
	OnEstablish(*Stream)
	// OnError is called once if the stream transitions to the
	// StatusError state.
	OnError(*Stream)
	// OnClose is called immediately after the stream closes.
	OnClose(*Stream)
}

// Run negotiates and serves the stream s, using Handler h.
func Run(ctx context.Context, s *Stream, h Handler) {
	if s.Negotiate() {
		h.OnEstablish(s)
		s.AddError(s.Serve(ctx))
	}
	if s.State.Status == StatusError {
		h.OnError(s)
	}
	s.Close()
	h.OnClose(s)
}

// Negotiate performs the stream open and features exchange.
//
// Returns true if negotiation completed successfully, in which case the
// stream status will be StatusEstablished; otherwise returns false, the
// status will be StatusError and Errors will return non-nil.
func (s *Stream) Negotiate() (ok bool) {
	if s.State.Status == StatusInactive {
		s.State.Status = StatusNegotiating
		if s.sendOpen(); len(s.State.errs) == 0 {
			s.recvOpen()
		}
		if len(s.State.errs) == 0 {
			s.recvFeatures()
		}
		ok = len(s.State.errs) == 0
	}
	if !ok {
		s.State.Status = StatusError
	}
	return ok
}

// Serve reads elements from the transport and dispatches stanzas to the
// registered handlers until the peer closes the stream, the transport
// fails or ctx is done. Closing the stream unblocks a Serve in progress.
func (s *Stream) Serve(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		el, err := s.t.ReadElement()
		if err == transport.ErrClosed {
			s.State.Status = StatusClosed
			return nil
		}
		if err != nil {
			s.State.Status = StatusError
			return err
		}
		if isClose(el) {
			s.sendClose()
			s.State.Status = StatusClosed
			return nil
		}
		dec := xml.NewDecoder(bytes.NewReader(el))
		if err := s.driver.DriveDecoder(ctx, dec); err != nil {
			s.State.Status = StatusError
			return errors.Wrap(err, "stream decode")
		}
	}
}

// Send serializes o and writes it to the transport, after running the
// outbound filter chain. A filter returning nil swallows the stanza.
// Send is safe for concurrent use.
func (s *Stream) Send(o *xso.Object) error {
	for _, f := range s.outboundFilters() {
		if o = f.fn(o); o == nil {
			return nil
		}
	}
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	if err := o.Encode(enc); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := s.t.WriteElement(buf.Bytes()); err != nil {
		return err
	}
	s.State.Counters.TxStanzas++
	s.metrics.tx(o.Schema().Name())
	return nil
}

// SendIQ sends a request iq and waits for the matching response. A
// missing id is filled in with a fresh unique value.
func (s *Stream) SendIQ(ctx context.Context, iq stanza.IQ) (stanza.IQ, error) {
	if !iq.Type().IsRequest() {
		return stanza.IQ{}, errors.Errorf("iq type %q is not a request", iq.Type())
	}
	id := iq.ID()
	if id == "" {
		id = uuid.NewString()
		if err := iq.SetID(id); err != nil {
			return stanza.IQ{}, err
		}
	}

	ch := make(chan stanza.IQ, 1)
	s.mu.Lock()
	if _, busy := s.pending[id]; busy {
		s.mu.Unlock()
		return stanza.IQ{}, errors.Errorf("iq id %q already in flight", id)
	}
	s.pending[id] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	if err := s.Send(iq.Object()); err != nil {
		return stanza.IQ{}, err
	}
	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		return stanza.IQ{}, ctx.Err()
	}
}

// Close closes the Stream and its transport.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.State.Status == StatusEstablished {
			s.sendClose()
		}
		if s.State.Status != StatusError {
			s.State.Status = StatusClosed
		}
		err = s.t.Close()
	})
	return err
}

// AddError adds an error to the stream state
func (s *Stream) AddError(errs ...error) (added int) {
	for _, err := range errs {
		if err != nil {
			s.State.errs = append(s.State.errs, err)
			added++
		}
	}
	return added
}

// Errors returns all stream errors
func (s *Stream) Errors() []error { return s.State.errs }

// onStreamError handles recoverable decode problems reported by the
// driver: unknown top-level tags and per-stanza parse failures.
func (s *Stream) onStreamError(err error) {
	s.metrics.dropped()
	s.log.Warn().Err(err).Msg("dropped unparseable stream element")
}

// dispatch routes one completed stanza record through the inbound filter
// chain to the matching handler.
func (s *Stream) dispatch(o *xso.Object) {
	s.State.Counters.RxStanzas++
	s.metrics.rx(o.Schema().Name())

	for _, f := range s.inboundFilters() {
		if o = f.fn(o); o == nil {
			return
		}
	}

	switch o.Schema() {
	case stanza.IQSchema:
		s.dispatchIQ(stanza.AsIQ(o))
	case stanza.MessageSchema:
		s.dispatchMessage(stanza.AsMessage(o))
	case stanza.PresenceSchema:
		s.dispatchPresence(stanza.AsPresence(o))
	}
}
