package xso

import (
	"encoding/xml"
	"fmt"
	"sort"
)

// Tokens serializes the object to an XML token sequence. Set fields are
// emitted in declaration order; an unset required field without a default
// fails with a MissingDataError. Collector content is replayed verbatim.
func (o *Object) Tokens() ([]xml.Token, error) {
	var e tokenSink
	if err := o.encode(&e); err != nil {
		return nil, err
	}
	return e.toks, nil
}

// Encode serializes the object into enc without flushing it.
func (o *Object) Encode(enc *xml.Encoder) error {
	toks, err := o.Tokens()
	if err != nil {
		return err
	}
	for _, tok := range toks {
		if err := enc.EncodeToken(tok); err != nil {
			return err
		}
	}
	return nil
}

type tokenSink struct {
	toks []xml.Token
}

func (e *tokenSink) emit(toks ...xml.Token) { e.toks = append(e.toks, toks...) }

func (o *Object) encode(e *tokenSink) error {
	start := xml.StartElement{Name: o.schema.tag}
	start.Attr = append(start.Attr, o.nsdecl.Attr()...)

	for _, f := range o.schema.fields {
		fd, ok := f.(*AttrField)
		if !ok {
			continue
		}
		s, present, err := o.formatScalar(&fd.scalar, fd)
		if err != nil {
			return err
		}
		if present {
			start.Attr = append(start.Attr, xml.Attr{Name: fd.tag, Value: s})
		}
	}
	if o.schema.collector != nil {
		for _, tok := range *o.Collected(o.schema.collector) {
			if attr, ok := tok.(xml.Attr); ok {
				start.Attr = append(start.Attr, attr)
			}
		}
	}
	e.emit(start)

	if o.schema.text != nil {
		s, present, err := o.formatScalar(&o.schema.text.scalar, o.schema.text)
		if err != nil {
			return err
		}
		if present {
			e.emit(xml.CharData(s))
		}
	}

	for _, f := range o.schema.fields {
		if err := o.encodeChild(e, f); err != nil {
			return err
		}
	}

	if o.schema.collector != nil {
		for _, tok := range *o.Collected(o.schema.collector) {
			if _, ok := tok.(xml.Attr); ok {
				continue
			}
			e.emit(tok)
		}
	}

	e.emit(xml.EndElement{Name: o.schema.tag})
	return nil
}

func (o *Object) encodeChild(e *tokenSink, f Field) error {
	switch fd := f.(type) {
	case *ChildField:
		if !o.Has(fd) {
			if fd.required {
				return &MissingDataError{Schema: o.schema.name, Field: fd.describe()}
			}
			return nil
		}
		return o.slots[fd.slotIndex()].(*Object).encode(e)
	case *ChildListField:
		for _, sub := range *o.Children(fd) {
			if err := sub.encode(e); err != nil {
				return err
			}
		}
	case *ChildMapField:
		m := o.ChildMap(fd)
		keys := make([]interface{}, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j])
		})
		for _, k := range keys {
			for _, sub := range m[k] {
				if err := sub.encode(e); err != nil {
					return err
				}
			}
		}
	case *ChildTagField:
		if !o.Has(fd) {
			if fd.required {
				return &MissingDataError{Schema: o.schema.name, Field: fd.describe()}
			}
			return nil
		}
		n := o.slots[fd.slotIndex()].(xml.Name)
		e.emit(xml.StartElement{Name: n}, xml.EndElement{Name: n})
	case *ChildTextField:
		s, present, err := o.formatScalar(&fd.scalar, fd)
		if err != nil {
			return err
		}
		if present {
			e.emit(
				xml.StartElement{Name: fd.tag},
				xml.CharData(s),
				xml.EndElement{Name: fd.tag},
			)
		}
	}
	return nil
}

// formatScalar resolves the wire form of a scalar field: the set value,
// or for required fields the default, or absent.
func (o *Object) formatScalar(sc *scalar, f Field) (string, bool, error) {
	i := f.slotIndex()
	v := o.slots[i]
	if !o.set[i] {
		if !sc.required {
			return "", false, nil
		}
		if sc.def == nil {
			return "", false, &MissingDataError{Schema: o.schema.name, Field: f.describe()}
		}
		v = sc.def
	}
	s, err := sc.typ.Format(v)
	if err != nil {
		return "", false, err
	}
	return s, true, nil
}
