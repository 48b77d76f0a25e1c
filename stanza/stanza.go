package stanza

import (
	"github.com/varka/xmpp/jid"
	"github.com/varka/xmpp/xso"
)

// NSClient is the content namespace of client to server streams.
const NSClient = "jabber:client"

// NSXML is the xml: prefix namespace, used for the lang attribute.
const NSXML = "http://www.w3.org/XML/1998/namespace"

// IQType enumerates the iq stanza type attribute values.
type IQType string

const (
	IQGet    IQType = "get"
	IQSet    IQType = "set"
	IQResult IQType = "result"
	IQError  IQType = "error"
)

// IsRequest reports whether the type demands a response.
func (t IQType) IsRequest() bool { return t == IQGet || t == IQSet }

// IsResponse reports whether the type concludes a request.
func (t IQType) IsResponse() bool { return t == IQResult || t == IQError }

// MessageType enumerates the message stanza type attribute values.
type MessageType string

const (
	MessageChat      MessageType = "chat"
	MessageError     MessageType = "error"
	MessageGroupchat MessageType = "groupchat"
	MessageHeadline  MessageType = "headline"
	MessageNormal    MessageType = "normal"
)

// PresenceType enumerates the presence stanza type attribute values. The
// empty string is the absent attribute, meaning available.
type PresenceType string

const (
	PresenceAvailable    PresenceType = ""
	PresenceError        PresenceType = "error"
	PresenceProbe        PresenceType = "probe"
	PresenceSubscribe    PresenceType = "subscribe"
	PresenceSubscribed   PresenceType = "subscribed"
	PresenceUnavailable  PresenceType = "unavailable"
	PresenceUnsubscribe  PresenceType = "unsubscribe"
	PresenceUnsubscribed PresenceType = "unsubscribed"
)

// Shared stanza header descriptors. They occupy the same slots on every
// stanza schema, so header access is uniform across iq, message and
// presence.
var (
	fFrom = xso.Attr("from", xso.WithType(xso.JID{}))
	fTo   = xso.Attr("to", xso.WithType(xso.JID{}))
	fID   = xso.Attr("id")
	fLang = xso.Attr("{" + NSXML + "}lang")
)

var baseSchema = xso.MustSchema("stanza", "{"+NSClient+"}stanza",
	[]xso.Field{fFrom, fTo, fID, fLang})

// iq descriptors
var (
	fIQType = xso.Attr("type", xso.Required(), xso.WithValidator(
		xso.RestrictToSet{"get", "set", "result", "error"}, xso.ValidateAlways))
	fIQPayload = xso.Child(nil)
	fIQError   = xso.Child([]*xso.Schema{errorSchema})
)

// IQSchema parses {jabber:client}iq elements.
var IQSchema = xso.MustSchema("iq", "{"+NSClient+"}iq",
	[]xso.Field{fIQType, fIQPayload, fIQError},
	xso.WithBase(baseSchema))

// message descriptors
var (
	fMsgType = xso.Attr("type",
		xso.WithDefault(string(MessageNormal)),
		xso.WithValidator(xso.RestrictToSet{
			"chat", "error", "groupchat", "headline", "normal",
		}, xso.ValidateAlways))
	fMsgBody    = xso.ChildText("{"+NSClient+"}body", xso.WithAttrPolicy(xso.UnknownAttrDrop))
	fMsgSubject = xso.ChildText("{"+NSClient+"}subject", xso.WithAttrPolicy(xso.UnknownAttrDrop))
	fMsgThread  = xso.ChildText("{" + NSClient + "}thread")
	fMsgError   = xso.Child([]*xso.Schema{errorSchema})
	fMsgExt     = xso.Collector()
)

// MessageSchema parses {jabber:client}message elements. Unrecognized
// payloads are collected for round-tripping.
var MessageSchema = xso.MustSchema("message", "{"+NSClient+"}message",
	[]xso.Field{fMsgType, fMsgBody, fMsgSubject, fMsgThread, fMsgError, fMsgExt},
	xso.WithBase(baseSchema),
	xso.WithUnknownChildPolicy(xso.UnknownChildDrop),
	xso.WithUnknownAttrPolicy(xso.UnknownAttrDrop))

// presence descriptors
var (
	fPresType = xso.Attr("type", xso.WithValidator(xso.RestrictToSet{
		"error", "probe", "subscribe", "subscribed",
		"unavailable", "unsubscribe", "unsubscribed",
	}, xso.ValidateAlways))
	fPresShow = xso.ChildText("{"+NSClient+"}show", xso.WithValidator(
		xso.RestrictToSet{"away", "chat", "dnd", "xa"}, xso.ValidateAlways))
	fPresStatus   = xso.ChildText("{"+NSClient+"}status", xso.WithAttrPolicy(xso.UnknownAttrDrop))
	fPresPriority = xso.ChildText("{"+NSClient+"}priority",
		xso.WithType(xso.Integer{}), xso.WithDefault(int64(0)))
	fPresError = xso.Child([]*xso.Schema{errorSchema})
	fPresExt   = xso.Collector()
)

// PresenceSchema parses {jabber:client}presence elements.
var PresenceSchema = xso.MustSchema("presence", "{"+NSClient+"}presence",
	[]xso.Field{fPresType, fPresShow, fPresStatus, fPresPriority, fPresError, fPresExt},
	xso.WithBase(baseSchema),
	xso.WithUnknownChildPolicy(xso.UnknownChildDrop),
	xso.WithUnknownAttrPolicy(xso.UnknownAttrDrop))

// Registry dispatches the three stanza kinds of a client stream.
var Registry = xso.MustRegistry(IQSchema, MessageSchema, PresenceSchema)

// RegisterIQPayload registers an iq payload schema for dispatch inside
// iq stanzas. Registration must finish before stream processing begins.
func RegisterIQPayload(s *xso.Schema) error {
	return fIQPayload.Register(s)
}

// Header is the common read and write surface of the three stanza kinds.
type Header struct {
	o *xso.Object
}

func header(o *xso.Object) Header { return Header{o: o} }

// Object returns the backing record.
func (h Header) Object() *xso.Object { return h.o }

// From returns the sender address and whether it was present.
func (h Header) From() (jid.JID, bool) {
	if !h.o.Has(fFrom) {
		return jid.JID{}, false
	}
	return h.o.Get(fFrom).(jid.JID), true
}

// To returns the recipient address and whether it was present.
func (h Header) To() (jid.JID, bool) {
	if !h.o.Has(fTo) {
		return jid.JID{}, false
	}
	return h.o.Get(fTo).(jid.JID), true
}

// ID returns the stanza id, or empty.
func (h Header) ID() string {
	if !h.o.Has(fID) {
		return ""
	}
	return h.o.Get(fID).(string)
}

// Lang returns the stanza xml:lang, or empty.
func (h Header) Lang() string {
	if !h.o.Has(fLang) {
		return ""
	}
	return h.o.Get(fLang).(string)
}

// SetFrom sets the sender address.
func (h Header) SetFrom(j jid.JID) error { return h.o.Set(fFrom, j) }

// SetTo sets the recipient address.
func (h Header) SetTo(j jid.JID) error { return h.o.Set(fTo, j) }

// SetID sets the stanza id.
func (h Header) SetID(id string) error { return h.o.Set(fID, id) }
