package xso

import (
	"encoding/xml"

	"github.com/varka/xmpp/xmlutil"
)

// Object is an instance of a Schema: one parsed or locally built element.
// Field values live in slots addressed through the declaring descriptors,
// so access is by descriptor identity rather than by name lookup.
type Object struct {
	schema *Schema
	slots  []interface{}
	set    []bool
	nsdecl xmlutil.PrefixMap
}

// Schema returns the schema the object instantiates.
func (o *Object) Schema() *Schema { return o.schema }

// NamespaceDecls returns the xmlns declarations seen on the element, if
// it was parsed from the wire.
func (o *Object) NamespaceDecls() xmlutil.PrefixMap { return o.nsdecl }

// Get returns the value stored for a scalar field, or the field's default
// while unset. For container fields it returns the container itself;
// prefer the typed accessors Children, ChildMap and Collected.
func (o *Object) Get(f Field) interface{} {
	i := f.slotIndex()
	if o.set[i] {
		return o.slots[i]
	}
	if sc, ok := f.(interface{ defaultValue() interface{} }); ok {
		if def := sc.defaultValue(); def != nil {
			return def
		}
	}
	return o.slots[i]
}

// Has reports whether the field holds an explicitly set value.
func (o *Object) Has(f Field) bool { return o.set[f.slotIndex()] }

// Set assigns a value to a scalar field, coercing it through the field's
// type and validating per the field's from-code validate mode.
func (o *Object) Set(f Field, v interface{}) error {
	i := f.slotIndex()
	switch fd := f.(type) {
	case *AttrField:
		v, err := fd.fromCode(v, fd.describe())
		if err != nil {
			return err
		}
		o.slots[i], o.set[i] = v, true
	case *TextField:
		v, err := fd.fromCode(v, fd.describe())
		if err != nil {
			return err
		}
		o.slots[i], o.set[i] = v, true
	case *ChildTextField:
		v, err := fd.fromCode(v, fd.describe())
		if err != nil {
			return err
		}
		o.slots[i], o.set[i] = v, true
	case *ChildField:
		sub, ok := v.(*Object)
		if !ok {
			return &FormatError{Msg: fd.describe() + " takes a record value"}
		}
		if fd.registry.Resolve(sub.schema.tag) != sub.schema {
			return &FormatError{
				Msg: "schema " + sub.schema.name + " is not registered with " + fd.describe(),
			}
		}
		o.slots[i], o.set[i] = sub, true
	case *ChildTagField:
		n, err := resolveTag(v)
		if err != nil {
			return err
		}
		if !fd.tags[n] {
			return &FormatError{
				Msg: "tag " + xmlutil.NameString(n) + " is not in " + fd.describe(),
			}
		}
		o.slots[i], o.set[i] = n, true
	default:
		return &FormatError{Msg: f.describe() + " is not settable"}
	}
	return nil
}

// Unset clears a scalar field back to its unset state.
func (o *Object) Unset(f Field) {
	i := f.slotIndex()
	o.slots[i] = f.newSlot()
	o.set[i] = false
}

// Children returns the mutable sequence behind a child list field.
func (o *Object) Children(f *ChildListField) *[]*Object {
	return o.slots[f.slotIndex()].(*[]*Object)
}

// ChildMap returns the keyed collection behind a child map field.
func (o *Object) ChildMap(f *ChildMapField) map[interface{}][]*Object {
	return o.slots[f.slotIndex()].(map[interface{}][]*Object)
}

// Collected returns the raw tokens caught by a collector field.
func (o *Object) Collected(f *CollectorField) *[]xml.Token {
	return o.slots[f.slotIndex()].(*[]xml.Token)
}

func (o *Object) setRaw(f Field, v interface{}) {
	i := f.slotIndex()
	o.slots[i], o.set[i] = v, true
}

func (o *Object) appendChild(f Field, sub *Object) {
	switch fd := f.(type) {
	case *ChildField:
		o.setRaw(fd, sub)
	case *ChildListField:
		lst := o.Children(fd)
		*lst = append(*lst, sub)
		o.set[fd.slotIndex()] = true
	case *ChildMapField:
		m := o.ChildMap(fd)
		k := fd.key(sub)
		m[k] = append(m[k], sub)
		o.set[fd.slotIndex()] = true
	}
}

func (o *Object) collect(toks ...xml.Token) {
	if o.schema.collector == nil {
		return
	}
	c := o.Collected(o.schema.collector)
	*c = append(*c, toks...)
	o.set[o.schema.collector.slotIndex()] = true
}

func (o *Object) checkRequired() error {
	for _, f := range o.schema.requiredFields() {
		if !o.set[f.slotIndex()] {
			return &MissingDataError{Schema: o.schema.name, Field: f.describe()}
		}
	}
	return nil
}
