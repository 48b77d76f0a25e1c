package stanza

import (
	"github.com/varka/xmpp/stanzaerr"
	"github.com/varka/xmpp/xso"
)

// IQ wraps an iq stanza record with typed accessors.
type IQ struct {
	Header
}

// NewIQ builds an iq stanza of the given type. A value outside the
// closed iq type set is a ValidationError.
func NewIQ(t IQType) (IQ, error) {
	o := IQSchema.New()
	if err := o.Set(fIQType, string(t)); err != nil {
		return IQ{}, err
	}
	return IQ{header(o)}, nil
}

// AsIQ wraps a record parsed against IQSchema.
func AsIQ(o *xso.Object) IQ { return IQ{header(o)} }

// Type returns the stanza type.
func (iq IQ) Type() IQType {
	return IQType(iq.o.Get(fIQType).(string))
}

// Payload returns the iq payload record, or nil.
func (iq IQ) Payload() *xso.Object {
	if !iq.o.Has(fIQPayload) {
		return nil
	}
	return iq.o.Get(fIQPayload).(*xso.Object)
}

// SetPayload attaches a payload record. Its schema must be registered
// via RegisterIQPayload.
func (iq IQ) SetPayload(o *xso.Object) error {
	return iq.o.Set(fIQPayload, o)
}

// Error returns the stanza error carried by a type="error" iq, or nil.
func (iq IQ) Error() *stanzaerr.Error {
	if !iq.o.Has(fIQError) {
		return nil
	}
	e, err := ErrorFromObject(iq.o.Get(fIQError).(*xso.Object))
	if err != nil {
		return nil
	}
	return e
}

// SetError attaches a stanza error.
func (iq IQ) SetError(e *stanzaerr.Error) error {
	o, err := ErrorObject(e)
	if err != nil {
		return err
	}
	return iq.o.Set(fIQError, o)
}

// MakeResult builds the type="result" response to a request iq: the id is
// kept and the addressing is reversed.
func (iq IQ) MakeResult() (IQ, error) {
	res, err := NewIQ(IQResult)
	if err != nil {
		return IQ{}, err
	}
	if id := iq.ID(); id != "" {
		if err := res.SetID(id); err != nil {
			return IQ{}, err
		}
	}
	if from, ok := iq.From(); ok {
		if err := res.SetTo(from); err != nil {
			return IQ{}, err
		}
	}
	if to, ok := iq.To(); ok {
		if err := res.SetFrom(to); err != nil {
			return IQ{}, err
		}
	}
	return res, nil
}

// MakeError builds the type="error" response to a request iq.
func (iq IQ) MakeError(e *stanzaerr.Error) (IQ, error) {
	res, err := iq.MakeResult()
	if err != nil {
		return IQ{}, err
	}
	if err := res.o.Set(fIQType, string(IQError)); err != nil {
		return IQ{}, err
	}
	if err := res.SetError(e); err != nil {
		return IQ{}, err
	}
	return res, nil
}
