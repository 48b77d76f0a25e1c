package stanzaerr

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
)

// NSStanzas is the namespace of the defined stanza error conditions.
const NSStanzas = "urn:ietf:params:xml:ns:xmpp-stanzas"

// Type represents the XMPP stanza error-type attribute enumerate
type Type int

const (
	// TypeCancel indicates the'requester should not retry the request
	TypeCancel Type = iota
	// TypeAuth indicates the request should be retried after providing credentials
	TypeAuth
	// TypeContinue indicates the request may proceed (the condition was a warning)
	TypeContinue
	// TypeModify indicates the request should be retried after changing the data sent
	TypeModify
	// TypeWait indicates the request is temporarily refused and may be retried
	TypeWait
)

func (t Type) String() string {
	switch t {
	case TypeCancel:
		return "cancel"
	case TypeAuth:
		return "auth"
	case TypeContinue:
		return "continue"
	case TypeModify:
		return "modify"
	case TypeWait:
		return "wait"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

func (t Type) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Type) UnmarshalText(b []byte) error {
	b = bytes.TrimSpace(b)
	switch string(b) {
	case "cancel":
		*t = TypeCancel
	case "auth":
		*t = TypeAuth
	case "continue":
		*t = TypeContinue
	case "modify":
		*t = TypeModify
	case "wait":
		*t = TypeWait
	default:
		return errors.New("unknown value")
	}
	return nil
}

// Error represents an XMPP stanza error (RFC6120 s8.3).
//
// Condition holds the defined-condition element name in the
// urn:ietf:params:xml:ns:xmpp-stanzas namespace. By is the JID of the
// entity that generated the error, if different from the stanza recipient.
type Error struct {
	XMLName   xml.Name `xml:"jabber:client error" json:"-"`
	Type      Type     `xml:"type,attr" json:"type"`
	By        string   `xml:"by,attr,omitempty" json:"by,omitempty"`
	Condition string   `xml:"-" json:"condition"`
	Text      string   `xml:"-" json:"text,omitempty"`
}

func (e Error) Error() string {
	s := fmt.Sprintf("%s error condition:%s", e.Type, e.Condition)
	if e.By != "" {
		s += " by:" + e.By
	}
	if e.Text != "" {
		s += " " + e.Text
	}
	return s
}

func BadRequest(opts ...Option) *Error {
	e := &Error{Condition: "bad-request", Type: TypeModify}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func Conflict(opts ...Option) *Error {
	e := &Error{Condition: "conflict", Type: TypeCancel}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func FeatureNotImplemented(opts ...Option) *Error {
	e := &Error{Condition: "feature-not-implemented", Type: TypeCancel}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func Forbidden(opts ...Option) *Error {
	e := &Error{Condition: "forbidden", Type: TypeAuth}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func Gone(opts ...Option) *Error {
	e := &Error{Condition: "gone", Type: TypeCancel}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func InternalServerError(opts ...Option) *Error {
	e := &Error{Condition: "internal-server-error", Type: TypeCancel}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func ItemNotFound(opts ...Option) *Error {
	e := &Error{Condition: "item-not-found", Type: TypeCancel}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func JIDMalformed(opts ...Option) *Error {
	e := &Error{Condition: "jid-malformed", Type: TypeModify}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func NotAcceptable(opts ...Option) *Error {
	e := &Error{Condition: "not-acceptable", Type: TypeModify}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func NotAllowed(opts ...Option) *Error {
	e := &Error{Condition: "not-allowed", Type: TypeCancel}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func NotAuthorized(opts ...Option) *Error {
	e := &Error{Condition: "not-authorized", Type: TypeAuth}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func PolicyViolation(opts ...Option) *Error {
	e := &Error{Condition: "policy-violation", Type: TypeModify}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func RecipientUnavailable(opts ...Option) *Error {
	e := &Error{Condition: "recipient-unavailable", Type: TypeWait}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func Redirect(opts ...Option) *Error {
	e := &Error{Condition: "redirect", Type: TypeModify}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func RegistrationRequired(opts ...Option) *Error {
	e := &Error{Condition: "registration-required", Type: TypeAuth}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func RemoteServerNotFound(opts ...Option) *Error {
	e := &Error{Condition: "remote-server-not-found", Type: TypeCancel}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func RemoteServerTimeout(opts ...Option) *Error {
	e := &Error{Condition: "remote-server-timeout", Type: TypeWait}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func ResourceConstraint(opts ...Option) *Error {
	e := &Error{Condition: "resource-constraint", Type: TypeWait}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func ServiceUnavailable(opts ...Option) *Error {
	e := &Error{Condition: "service-unavailable", Type: TypeCancel}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func SubscriptionRequired(opts ...Option) *Error {
	e := &Error{Condition: "subscription-required", Type: TypeAuth}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func UndefinedCondition(opts ...Option) *Error {
	e := &Error{Condition: "undefined-condition", Type: TypeCancel}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func UnexpectedRequest(opts ...Option) *Error {
	e := &Error{Condition: "unexpected-request", Type: TypeWait}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
