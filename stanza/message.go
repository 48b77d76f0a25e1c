package stanza

import (
	"github.com/varka/xmpp/stanzaerr"
	"github.com/varka/xmpp/xso"
)

// Message wraps a message stanza record with typed accessors.
type Message struct {
	Header
}

// NewMessage builds a message stanza of the given type. A value outside
// the closed message type set is a ValidationError.
func NewMessage(t MessageType) (Message, error) {
	o := MessageSchema.New()
	if err := o.Set(fMsgType, string(t)); err != nil {
		return Message{}, err
	}
	return Message{header(o)}, nil
}

// AsMessage wraps a record parsed against MessageSchema.
func AsMessage(o *xso.Object) Message { return Message{header(o)} }

// Type returns the stanza type, defaulting to normal.
func (m Message) Type() MessageType {
	return MessageType(m.o.Get(fMsgType).(string))
}

// Body returns the message body, or empty.
func (m Message) Body() string {
	if !m.o.Has(fMsgBody) {
		return ""
	}
	return m.o.Get(fMsgBody).(string)
}

// SetBody sets the message body.
func (m Message) SetBody(s string) error { return m.o.Set(fMsgBody, s) }

// Subject returns the message subject, or empty.
func (m Message) Subject() string {
	if !m.o.Has(fMsgSubject) {
		return ""
	}
	return m.o.Get(fMsgSubject).(string)
}

// SetSubject sets the message subject.
func (m Message) SetSubject(s string) error { return m.o.Set(fMsgSubject, s) }

// Thread returns the conversation thread id, or empty.
func (m Message) Thread() string {
	if !m.o.Has(fMsgThread) {
		return ""
	}
	return m.o.Get(fMsgThread).(string)
}

// SetThread sets the conversation thread id.
func (m Message) SetThread(s string) error { return m.o.Set(fMsgThread, s) }

// Error returns the stanza error carried by a type="error" message, or nil.
func (m Message) Error() *stanzaerr.Error {
	if !m.o.Has(fMsgError) {
		return nil
	}
	e, err := ErrorFromObject(m.o.Get(fMsgError).(*xso.Object))
	if err != nil {
		return nil
	}
	return e
}

// SetError attaches a stanza error.
func (m Message) SetError(e *stanzaerr.Error) error {
	o, err := ErrorObject(e)
	if err != nil {
		return err
	}
	return m.o.Set(fMsgError, o)
}
