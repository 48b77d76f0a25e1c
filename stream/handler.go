package stream

import (
	"encoding/xml"
	"io"

	"github.com/pkg/errors"

	"github.com/varka/xmpp/jid"
	"github.com/varka/xmpp/stanza"
	"github.com/varka/xmpp/stanzaerr"
	"github.com/varka/xmpp/xmlutil"
	"github.com/varka/xmpp/xso"
)

// IQHandler answers one request iq. It returns the result payload (which
// may be nil for an empty result) or an error; a *stanzaerr.Error is
// relayed to the requester as-is, any other error becomes
// internal-server-error.
type IQHandler func(stanza.IQ) (*xso.Object, error)

// MessageHandler consumes one inbound message stanza.
type MessageHandler func(stanza.Message)

// PresenceHandler consumes one inbound presence stanza.
type PresenceHandler func(stanza.Presence)

// Filter inspects or rewrites a stanza record in the filter chain.
// Returning nil swallows the stanza.
type Filter func(*xso.Object) *xso.Object

type iqKey struct {
	typ     stanza.IQType
	payload xml.Name
}

// chatKey addresses message and presence handlers. Empty members are
// wildcards.
type chatKey struct {
	typ  string
	from string
}

type filterEntry struct {
	fn Filter
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// RegisterIQRequest registers h for request iqs of the given type whose
// payload element carries the given tag. At most one handler may exist
// per type and payload combination.
func (s *Stream) RegisterIQRequest(t stanza.IQType, payload xml.Name, h IQHandler) (io.Closer, error) {
	if !t.IsRequest() {
		return nil, errors.Errorf("iq type %q is not a request type", t)
	}
	k := iqKey{typ: t, payload: payload}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.iqHandlers[k]; dup {
		return nil, errors.Errorf("iq handler for %s %s already registered",
			t, xmlutil.NameString(payload))
	}
	s.iqHandlers[k] = h
	return closerFunc(func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.iqHandlers, k)
		return nil
	}), nil
}

// RegisterMessage registers h for inbound messages of the given type
// from the given bare sender. A zero from matches any sender; an empty
// type matches any type.
func (s *Stream) RegisterMessage(t stanza.MessageType, from jid.JID, h MessageHandler) (io.Closer, error) {
	k := chatKey{typ: string(t), from: bareKey(from)}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.msgHandlers[k]; dup {
		return nil, errors.Errorf("message handler for (%q, %q) already registered",
			k.typ, k.from)
	}
	s.msgHandlers[k] = h
	return closerFunc(func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.msgHandlers, k)
		return nil
	}), nil
}

// RegisterPresence registers h for inbound presence of the given type
// from the given bare sender. A zero from matches any sender.
func (s *Stream) RegisterPresence(t stanza.PresenceType, from jid.JID, h PresenceHandler) (io.Closer, error) {
	k := chatKey{typ: string(t), from: bareKey(from)}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.presHandlers[k]; dup {
		return nil, errors.Errorf("presence handler for (%q, %q) already registered",
			k.typ, k.from)
	}
	s.presHandlers[k] = h
	return closerFunc(func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.presHandlers, k)
		return nil
	}), nil
}

// AddInboundFilter appends f to the inbound filter chain. Filters run in
// registration order before handler dispatch.
func (s *Stream) AddInboundFilter(f Filter) io.Closer {
	return s.addFilter(&s.inFilters, f)
}

// AddOutboundFilter appends f to the outbound filter chain. Filters run
// in registration order before serialization.
func (s *Stream) AddOutboundFilter(f Filter) io.Closer {
	return s.addFilter(&s.outFilters, f)
}

func (s *Stream) addFilter(chain *[]*filterEntry, f Filter) io.Closer {
	e := &filterEntry{fn: f}
	s.mu.Lock()
	*chain = append(*chain, e)
	s.mu.Unlock()
	return closerFunc(func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, got := range *chain {
			if got == e {
				*chain = append((*chain)[:i], (*chain)[i+1:]...)
				break
			}
		}
		return nil
	})
}

func (s *Stream) inboundFilters() []*filterEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*filterEntry, len(s.inFilters))
	copy(out, s.inFilters)
	return out
}

func (s *Stream) outboundFilters() []*filterEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*filterEntry, len(s.outFilters))
	copy(out, s.outFilters)
	return out
}

func bareKey(j jid.JID) string {
	if j.IsZero() {
		return ""
	}
	return j.Bare().String()
}

func (s *Stream) dispatchIQ(iq stanza.IQ) {
	if iq.Type().IsResponse() {
		s.mu.Lock()
		ch := s.pending[iq.ID()]
		s.mu.Unlock()
		if ch == nil {
			s.log.Debug().Str("id", iq.ID()).Msg("response iq with no request in flight")
			return
		}
		ch <- iq
		return
	}

	var payloadTag xml.Name
	if p := iq.Payload(); p != nil {
		payloadTag = p.Schema().Tag()
	}
	s.mu.Lock()
	h := s.iqHandlers[iqKey{typ: iq.Type(), payload: payloadTag}]
	s.mu.Unlock()

	if h == nil {
		s.replyError(iq, stanzaerr.ServiceUnavailable())
		return
	}
	payload, err := h(iq)
	if err != nil {
		se, ok := err.(*stanzaerr.Error)
		if !ok {
			se = stanzaerr.InternalServerError(stanzaerr.WithText(err.Error()))
		}
		s.replyError(iq, se)
		return
	}
	res, err := iq.MakeResult()
	if err == nil && payload != nil {
		err = res.SetPayload(payload)
	}
	if err != nil {
		s.log.Error().Err(err).Str("id", iq.ID()).Msg("cannot build iq result")
		return
	}
	if err := s.Send(res.Object()); err != nil {
		s.log.Error().Err(err).Str("id", iq.ID()).Msg("cannot send iq result")
	}
}

func (s *Stream) replyError(iq stanza.IQ, se *stanzaerr.Error) {
	res, err := iq.MakeError(se)
	if err != nil {
		s.log.Error().Err(err).Str("id", iq.ID()).Msg("cannot build iq error")
		return
	}
	if err := s.Send(res.Object()); err != nil {
		s.log.Error().Err(err).Str("id", iq.ID()).Msg("cannot send iq error")
	}
}

func (s *Stream) dispatchMessage(m stanza.Message) {
	var from jid.JID
	if f, ok := m.From(); ok {
		from = f
	}
	if h := s.lookupMessage(string(m.Type()), bareKey(from)); h != nil {
		h(m)
		return
	}
	s.log.Debug().Str("type", string(m.Type())).Msg("unhandled message stanza")
}

func (s *Stream) lookupMessage(typ, from string) MessageHandler {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range lookupKeys(typ, from) {
		if h := s.msgHandlers[k]; h != nil {
			return h
		}
	}
	return nil
}

func (s *Stream) dispatchPresence(p stanza.Presence) {
	var from jid.JID
	if f, ok := p.From(); ok {
		from = f
	}
	if h := s.lookupPresence(string(p.Type()), bareKey(from)); h != nil {
		h(p)
		return
	}
	s.log.Debug().Str("type", string(p.Type())).Msg("unhandled presence stanza")
}

func (s *Stream) lookupPresence(typ, from string) PresenceHandler {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range lookupKeys(typ, from) {
		if h := s.presHandlers[k]; h != nil {
			return h
		}
	}
	return nil
}

// lookupKeys yields the handler keys for a stanza from most to least
// specific: exact match, any-sender, any-type, fully wildcarded.
func lookupKeys(typ, from string) [4]chatKey {
	return [4]chatKey{
		{typ: typ, from: from},
		{typ: typ, from: ""},
		{typ: "", from: from},
		{typ: "", from: ""},
	}
}
