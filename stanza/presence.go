package stanza

import (
	"github.com/varka/xmpp/stanzaerr"
	"github.com/varka/xmpp/xso"
)

// Presence wraps a presence stanza record with typed accessors.
type Presence struct {
	Header
}

// NewPresence builds a presence stanza of the given type.
func NewPresence(t PresenceType) (Presence, error) {
	o := PresenceSchema.New()
	if t != PresenceAvailable {
		if err := o.Set(fPresType, string(t)); err != nil {
			return Presence{}, err
		}
	}
	return Presence{header(o)}, nil
}

// AsPresence wraps a record parsed against PresenceSchema.
func AsPresence(o *xso.Object) Presence { return Presence{header(o)} }

// Type returns the stanza type; the absent attribute is PresenceAvailable.
func (p Presence) Type() PresenceType {
	if !p.o.Has(fPresType) {
		return PresenceAvailable
	}
	return PresenceType(p.o.Get(fPresType).(string))
}

// Show returns the availability show value, or empty.
func (p Presence) Show() string {
	if !p.o.Has(fPresShow) {
		return ""
	}
	return p.o.Get(fPresShow).(string)
}

// SetShow sets the availability show value.
func (p Presence) SetShow(s string) error { return p.o.Set(fPresShow, s) }

// Status returns the status text, or empty.
func (p Presence) Status() string {
	if !p.o.Has(fPresStatus) {
		return ""
	}
	return p.o.Get(fPresStatus).(string)
}

// SetStatus sets the status text.
func (p Presence) SetStatus(s string) error { return p.o.Set(fPresStatus, s) }

// Priority returns the resource priority, defaulting to 0.
func (p Presence) Priority() int64 {
	return p.o.Get(fPresPriority).(int64)
}

// SetPriority sets the resource priority.
func (p Presence) SetPriority(n int64) error { return p.o.Set(fPresPriority, n) }

// Error returns the stanza error carried by a type="error" presence, or nil.
func (p Presence) Error() *stanzaerr.Error {
	if !p.o.Has(fPresError) {
		return nil
	}
	e, err := ErrorFromObject(p.o.Get(fPresError).(*xso.Object))
	if err != nil {
		return nil
	}
	return e
}

// SetError attaches a stanza error.
func (p Presence) SetError(e *stanzaerr.Error) error {
	o, err := ErrorObject(e)
	if err != nil {
		return err
	}
	return p.o.Set(fPresError, o)
}
