package stream

import (
	"bytes"
	"encoding/xml"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"github.com/pkg/errors"

	"github.com/varka/xmpp/jid"
)

const (
	// NSFraming is the stream framing namespace of RFC 7395.
	NSFraming = "urn:ietf:params:xml:ns:xmpp-framing"
	// NSStreams is the stream features namespace of RFC 6120.
	NSStreams = "http://etherx.jabber.org/streams"

	nsSASL = "urn:ietf:params:xml:ns:xmpp-sasl"
	nsBind = "urn:ietf:params:xml:ns:xmpp-bind"
	nsXML  = "http://www.w3.org/XML/1998/namespace"
)

var (
	xpNSetOpen = xpath.MustCompile(
		`/open[namespace-uri()='urn:ietf:params:xml:ns:xmpp-framing']`)
	xpNSetClose = xpath.MustCompile(
		`/close[namespace-uri()='urn:ietf:params:xml:ns:xmpp-framing']`)
	xpNSetFeatures = xpath.MustCompile(
		`/features[namespace-uri()='http://etherx.jabber.org/streams']`)
	xpNSetMechanism = xpath.MustCompile(
		`/features[namespace-uri()='http://etherx.jabber.org/streams']` +
			`/mechanisms[namespace-uri()='urn:ietf:params:xml:ns:xmpp-sasl']/mechanism`)
	xpNSetBind = xpath.MustCompile(
		`/features[namespace-uri()='http://etherx.jabber.org/streams']` +
			`/bind[namespace-uri()='urn:ietf:params:xml:ns:xmpp-bind']`)

	seOpen  = xml.StartElement{Name: xml.Name{Space: NSFraming, Local: "open"}}
	seClose = xml.StartElement{Name: xml.Name{Space: NSFraming, Local: "close"}}
)

// Features holds what the peer's features document announced.
type Features struct {
	// Mechanisms lists the offered SASL mechanism names.
	Mechanisms []string
	// Bind reports whether resource binding was offered.
	Bind bool
}

// HasMechanism reports whether the peer offered the named SASL mechanism.
func (f Features) HasMechanism(name string) bool {
	for _, m := range f.Mechanisms {
		if m == name {
			return true
		}
	}
	return false
}

// sendOpen sends the stream open element with our addressing.
func (s *Stream) sendOpen() {
	var buf bytes.Buffer
	xe := xml.NewEncoder(&buf)
	se := seOpen
	se.Attr = append(se.Attr,
		xml.Attr{Name: xml.Name{Local: "to"}, Value: s.Config.Domain.String()},
		xml.Attr{Name: xml.Name{Local: "version"}, Value: "1.0"},
	)
	if s.Config.Lang != "" {
		se.Attr = append(se.Attr, xml.Attr{
			Name: xml.Name{Space: nsXML, Local: "lang"}, Value: s.Config.Lang,
		})
	}
	err := xe.EncodeToken(se)
	if err == nil {
		err = xe.EncodeToken(se.End())
	}
	if err == nil {
		err = xe.Flush()
	}
	if err == nil {
		err = s.t.WriteElement(buf.Bytes())
	}
	if s.AddError(err) > 0 {
		s.State.Status = StatusError
	}
}

// recvOpen reads and validates the peer's open element.
func (s *Stream) recvOpen() {
	el, err := s.t.ReadElement()
	if s.AddError(err) > 0 {
		s.State.Status = StatusError
		return
	}
	doc, err := xmlquery.Parse(bytes.NewReader(el))
	if s.AddError(err) > 0 {
		s.State.Status = StatusError
		return
	}
	open := xmlquery.QuerySelector(doc, xpNSetOpen)
	if open == nil {
		s.AddError(errors.New("missing <open> element"))
		s.State.Status = StatusError
		return
	}
	if v := open.SelectAttr("version"); v != "" && v != "1.0" {
		s.AddError(errors.Errorf("unsupported stream version %q", v))
		s.State.Status = StatusError
		return
	}
	s.State.ID = open.SelectAttr("id")
	if from := strings.TrimSpace(open.SelectAttr("from")); from != "" {
		j, perr := jid.Parse(from)
		if perr != nil {
			s.AddError(errors.Wrap(perr, "invalid stream from"))
			s.State.Status = StatusError
			return
		}
		s.State.From = j
	}
}

// recvFeatures reads the peer's features document.
func (s *Stream) recvFeatures() {
	el, err := s.t.ReadElement()
	if s.AddError(err) > 0 {
		s.State.Status = StatusError
		return
	}
	doc, err := xmlquery.Parse(bytes.NewReader(el))
	if s.AddError(err) > 0 {
		s.State.Status = StatusError
		return
	}
	if xmlquery.QuerySelector(doc, xpNSetFeatures) == nil {
		s.AddError(errors.New("missing <features> element"))
		s.State.Status = StatusError
		return
	}
	for _, mech := range xmlquery.QuerySelectorAll(doc, xpNSetMechanism) {
		if x := strings.TrimSpace(mech.InnerText()); x != "" {
			s.State.Features.Mechanisms = append(s.State.Features.Mechanisms, x)
		}
	}
	s.State.Features.Bind = xmlquery.QuerySelector(doc, xpNSetBind) != nil
	s.State.Status = StatusEstablished
}

// isClose reports whether el is the peer's stream close element.
func isClose(el []byte) bool {
	doc, err := xmlquery.Parse(bytes.NewReader(el))
	if err != nil {
		return false
	}
	return xmlquery.QuerySelector(doc, xpNSetClose) != nil
}

// sendClose sends the stream close element.
func (s *Stream) sendClose() error {
	var buf bytes.Buffer
	xe := xml.NewEncoder(&buf)
	if err := xe.EncodeToken(seClose); err != nil {
		return err
	}
	if err := xe.EncodeToken(seClose.End()); err != nil {
		return err
	}
	if err := xe.Flush(); err != nil {
		return err
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.t.WriteElement(buf.Bytes())
}
