package stream

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varka/xmpp/jid"
	"github.com/varka/xmpp/stanza"
	"github.com/varka/xmpp/stanzaerr"
	"github.com/varka/xmpp/transport"
	"github.com/varka/xmpp/xso"
)

var pingSchema = xso.MustSchema("ping", "{urn:xmpp:ping}ping", nil)

func init() {
	if err := stanza.RegisterIQPayload(pingSchema); err != nil {
		panic(err)
	}
}

func testConfig() Config {
	return Config{
		Domain: jid.MustParse("capulet.lit"),
		Logger: zerolog.Nop(),
	}
}

const (
	peerOpen = `<open xmlns="urn:ietf:params:xml:ns:xmpp-framing"` +
		` from="capulet.lit" id="s1" version="1.0"/>`
	peerFeatures = `<features xmlns="http://etherx.jabber.org/streams">` +
		`<mechanisms xmlns="urn:ietf:params:xml:ns:xmpp-sasl">` +
		`<mechanism>SCRAM-SHA-1</mechanism><mechanism>PLAIN</mechanism>` +
		`</mechanisms>` +
		`<bind xmlns="urn:ietf:params:xml:ns:xmpp-bind"/>` +
		`</features>`
	peerClose = `<close xmlns="urn:ietf:params:xml:ns:xmpp-framing"/>`
)

// negotiated returns an established stream and the peer end of its pipe.
// The peer's negotiation elements are pre-seeded so no goroutine is
// needed.
func negotiated(t *testing.T) (*Stream, *transport.Pipe) {
	t.Helper()
	client, peer := transport.NewPipe()
	require.NoError(t, peer.WriteElement([]byte(peerOpen)))
	require.NoError(t, peer.WriteElement([]byte(peerFeatures)))

	s := New(client, testConfig())
	require.True(t, s.Negotiate(), "negotiation failed: %v", s.Errors())

	// drain the client's open element from the peer side
	el, err := peer.ReadElement()
	require.NoError(t, err)
	require.Contains(t, string(el), "urn:ietf:params:xml:ns:xmpp-framing")
	return s, peer
}

func TestNegotiate(t *testing.T) {
	ck := assert.New(t)

	s, _ := negotiated(t)
	ck.Equal(StatusEstablished, s.State.Status)
	ck.Equal("s1", s.State.ID)
	ck.Equal(jid.MustParse("capulet.lit"), s.State.From)
	ck.True(s.State.Features.Bind)
	ck.True(s.State.Features.HasMechanism("PLAIN"))
	ck.False(s.State.Features.HasMechanism("EXTERNAL"))
}

func TestNegotiateMissingFeatures(t *testing.T) {
	ck := assert.New(t)

	client, peer := transport.NewPipe()
	require.NoError(t, peer.WriteElement([]byte(peerOpen)))
	require.NoError(t, peer.WriteElement([]byte(`<iq xmlns="jabber:client"/>`)))

	s := New(client, testConfig())
	ck.False(s.Negotiate())
	ck.Equal(StatusError, s.State.Status)
	ck.NotEmpty(s.Errors())
}

func TestServeDispatchesMessage(t *testing.T) {
	ck := assert.New(t)

	s, peer := negotiated(t)

	var got []stanza.Message
	_, err := s.RegisterMessage(stanza.MessageChat, jid.JID{}, func(m stanza.Message) {
		got = append(got, m)
	})
	require.NoError(t, err)

	require.NoError(t, peer.WriteElement([]byte(
		`<message xmlns="jabber:client" type="chat"`+
			` from="romeo@montague.lit/orchard"><body>hi</body></message>`)))
	require.NoError(t, peer.WriteElement([]byte(peerClose)))

	ck.NoError(s.Serve(context.Background()))
	ck.Equal(StatusClosed, s.State.Status)
	if ck.Len(got, 1) {
		ck.Equal("hi", got[0].Body())
	}
	ck.Equal(1, s.State.Counters.RxStanzas)
}

func TestServeAnswersIQRequest(t *testing.T) {
	ck := assert.New(t)

	s, peer := negotiated(t)

	var served []stanza.IQ
	_, err := s.RegisterIQRequest(stanza.IQGet, pingSchema.Tag(),
		func(iq stanza.IQ) (*xso.Object, error) {
			served = append(served, iq)
			return nil, nil
		})
	require.NoError(t, err)

	require.NoError(t, peer.WriteElement([]byte(
		`<iq xmlns="jabber:client" type="get" id="p1"`+
			` from="romeo@montague.lit/orchard">`+
			`<ping xmlns="urn:xmpp:ping"/></iq>`)))
	require.NoError(t, peer.WriteElement([]byte(peerClose)))

	ck.NoError(s.Serve(context.Background()))
	ck.Len(served, 1)

	res, err := peer.ReadElement()
	require.NoError(t, err)
	doc, err := xmlquery.Parse(bytes.NewReader(res))
	require.NoError(t, err)
	iqNode := xmlquery.FindOne(doc, "/iq")
	require.NotNil(t, iqNode)
	ck.Equal("result", iqNode.SelectAttr("type"))
	ck.Equal("p1", iqNode.SelectAttr("id"))
	ck.Equal("romeo@montague.lit/orchard", iqNode.SelectAttr("to"))
}

func TestServeRejectsUnhandledIQRequest(t *testing.T) {
	ck := assert.New(t)

	s, peer := negotiated(t)

	require.NoError(t, peer.WriteElement([]byte(
		`<iq xmlns="jabber:client" type="get" id="q9">`+
			`<ping xmlns="urn:xmpp:ping"/></iq>`)))
	require.NoError(t, peer.WriteElement([]byte(peerClose)))

	ck.NoError(s.Serve(context.Background()))

	res, err := peer.ReadElement()
	require.NoError(t, err)
	ck.Contains(string(res), `type="error"`)
	ck.Contains(string(res), "service-unavailable")
}

func TestIQHandlerErrorRelayed(t *testing.T) {
	ck := assert.New(t)

	s, peer := negotiated(t)

	_, err := s.RegisterIQRequest(stanza.IQGet, pingSchema.Tag(),
		func(stanza.IQ) (*xso.Object, error) {
			return nil, stanzaerr.NotAllowed()
		})
	require.NoError(t, err)

	require.NoError(t, peer.WriteElement([]byte(
		`<iq xmlns="jabber:client" type="get" id="e2">`+
			`<ping xmlns="urn:xmpp:ping"/></iq>`)))
	require.NoError(t, peer.WriteElement([]byte(peerClose)))

	ck.NoError(s.Serve(context.Background()))

	res, err := peer.ReadElement()
	require.NoError(t, err)
	ck.Contains(string(res), "not-allowed")
}

func TestSendIQ(t *testing.T) {
	ck := assert.New(t)

	s, peer := negotiated(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		// play the server: answer the request with a bare result
		el, err := peer.ReadElement()
		if err != nil {
			return
		}
		doc, err := xmlquery.Parse(bytes.NewReader(el))
		if err != nil {
			return
		}
		iqNode := xmlquery.FindOne(doc, "/iq")
		if iqNode == nil {
			return
		}
		id := iqNode.SelectAttr("id")
		peer.WriteElement([]byte(
			`<iq xmlns="jabber:client" type="result" id="` + id + `"/>`))
		peer.WriteElement([]byte(peerClose))
	}()

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	req, err := stanza.NewIQ(stanza.IQGet)
	require.NoError(t, err)
	p := pingSchema.New()
	require.NoError(t, req.SetPayload(p))
	res, err := s.SendIQ(ctx, req)
	require.NoError(t, err)
	ck.Equal(stanza.IQResult, res.Type())
	ck.NotEmpty(res.ID())

	require.NoError(t, <-done)
}

func TestDuplicateRegistrationRejected(t *testing.T) {
	ck := assert.New(t)

	s, _ := negotiated(t)
	h := func(stanza.IQ) (*xso.Object, error) { return nil, nil }

	c, err := s.RegisterIQRequest(stanza.IQGet, pingSchema.Tag(), h)
	require.NoError(t, err)

	_, err = s.RegisterIQRequest(stanza.IQGet, pingSchema.Tag(), h)
	ck.Error(err)
	ck.Contains(err.Error(), "already registered")

	// releasing the registration frees the key
	ck.NoError(c.Close())
	_, err = s.RegisterIQRequest(stanza.IQGet, pingSchema.Tag(), h)
	ck.NoError(err)

	_, err = s.RegisterIQRequest(stanza.IQResult, pingSchema.Tag(), h)
	ck.Error(err)
}

func TestFilters(t *testing.T) {
	ck := assert.New(t)

	s, peer := negotiated(t)

	// outbound filter swallows everything
	stop := s.AddOutboundFilter(func(*xso.Object) *xso.Object { return nil })
	m, err := stanza.NewMessage(stanza.MessageChat)
	require.NoError(t, err)
	require.NoError(t, m.SetBody("swallowed"))
	ck.NoError(s.Send(m.Object()))
	ck.Equal(0, s.State.Counters.TxStanzas)

	ck.NoError(stop.Close())
	ck.NoError(s.Send(m.Object()))
	ck.Equal(1, s.State.Counters.TxStanzas)
	el, err := peer.ReadElement()
	require.NoError(t, err)
	ck.Contains(string(el), "swallowed")

	// inbound filter drops error messages before dispatch
	var seen int
	_, err = s.RegisterMessage("", jid.JID{}, func(stanza.Message) { seen++ })
	require.NoError(t, err)
	s.AddInboundFilter(func(o *xso.Object) *xso.Object {
		if o.Schema() == stanza.MessageSchema &&
			stanza.AsMessage(o).Type() == stanza.MessageError {
			return nil
		}
		return o
	})

	require.NoError(t, peer.WriteElement([]byte(
		`<message xmlns="jabber:client" type="error"><error type="cancel">`+
			`<service-unavailable xmlns="urn:ietf:params:xml:ns:xmpp-stanzas"/>`+
			`</error></message>`)))
	require.NoError(t, peer.WriteElement([]byte(
		`<message xmlns="jabber:client"><body>kept</body></message>`)))
	require.NoError(t, peer.WriteElement([]byte(peerClose)))

	ck.NoError(s.Serve(context.Background()))
	ck.Equal(1, seen)
}

func TestSendConcurrent(t *testing.T) {
	ck := assert.New(t)

	s, peer := negotiated(t)

	const writers, perWriter = 4, 8
	read := make(chan struct{})
	go func() {
		defer close(read)
		for i := 0; i < writers*perWriter; i++ {
			if _, err := peer.ReadElement(); err != nil {
				t.Error(err)
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				m, err := stanza.NewMessage(stanza.MessageChat)
				if err != nil {
					t.Error(err)
					return
				}
				if err := m.SetBody("hello"); err != nil {
					t.Error(err)
					return
				}
				if err := s.Send(m.Object()); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
	<-read

	ck.Equal(writers*perWriter, s.State.Counters.TxStanzas)
}

func TestUnknownTopLevelElementSurvivable(t *testing.T) {
	ck := assert.New(t)

	s, peer := negotiated(t)

	var got []string
	_, err := s.RegisterMessage("", jid.JID{}, func(m stanza.Message) {
		got = append(got, m.Body())
	})
	require.NoError(t, err)

	require.NoError(t, peer.WriteElement([]byte(`<bogus xmlns="nowhere"/>`)))
	require.NoError(t, peer.WriteElement([]byte(
		`<message xmlns="jabber:client"><body>after</body></message>`)))
	require.NoError(t, peer.WriteElement([]byte(peerClose)))

	ck.NoError(s.Serve(context.Background()))
	ck.Equal([]string{"after"}, got)
}

func TestRunHandlerCallbacks(t *testing.T) {
	ck := assert.New(t)

	client, peer := transport.NewPipe()
	require.NoError(t, peer.WriteElement([]byte(peerOpen)))
	require.NoError(t, peer.WriteElement([]byte(peerFeatures)))
	require.NoError(t, peer.WriteElement([]byte(peerClose)))

	s := New(client, testConfig())
	h := &recordingHandler{}
	Run(context.Background(), s, h)

	ck.True(h.established)
	ck.False(h.failed)
	ck.True(h.closed)
	ck.Equal(StatusClosed, s.State.Status)
}

func TestRunNegotiationFailure(t *testing.T) {
	ck := assert.New(t)

	client, peer := transport.NewPipe()
	require.NoError(t, peer.WriteElement([]byte(`<wrong/>`)))

	s := New(client, testConfig())
	h := &recordingHandler{}
	Run(context.Background(), s, h)

	ck.False(h.established)
	ck.True(h.failed)
	ck.True(h.closed)
}

type recordingHandler struct {
	established bool
	failed      bool
	closed      bool
}

func (h *recordingHandler) OnEstablish(*Stream) { h.established = true }
func (h *recordingHandler) OnError(*Stream)     { h.failed = true }
func (h *recordingHandler) OnClose(*Stream)     { h.closed = true }

func TestStatusStrings(t *testing.T) {
	ck := assert.New(t)
	for _, tc := range []struct {
		status Status
		want   string
	}{
		{StatusInactive, "inactive"},
		{StatusNegotiating, "negotiating"},
		{StatusEstablished, "established"},
		{StatusError, "error"},
		{StatusClosed, "closed"},
	} {
		ck.Equal(tc.want, tc.status.String())
		var back Status
		ck.NoError(back.UnmarshalText([]byte(tc.want)))
		ck.Equal(tc.status, back)
	}
	var s Status
	ck.Error(s.UnmarshalText([]byte("bogus")))
	ck.Equal("Status(42)", Status(42).String())
}
