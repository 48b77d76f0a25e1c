package xso

import (
	"encoding/xml"

	"github.com/varka/xmpp/xmlutil"
)

// Schema describes one element type: its tag, its fields and the policies
// applied to unrecognized content. Schemas are immutable after NewSchema
// except for late child registration, which must finish before parsing.
type Schema struct {
	name   string
	tag    xml.Name
	fields []Field

	attrs     map[xml.Name]*AttrField
	text      *TextField
	collector *CollectorField
	children  []Field

	attrPolicy  UnknownAttrPolicy
	childPolicy UnknownChildPolicy
	textPolicy  UnknownTextPolicy
}

// SchemaOption configures NewSchema.
type SchemaOption func(*schemaSettings)

type schemaSettings struct {
	base        *Schema
	attrPolicy  *UnknownAttrPolicy
	childPolicy *UnknownChildPolicy
	textPolicy  *UnknownTextPolicy
}

// WithBase derives the schema from parent: the parent's fields come first,
// keeping their slots, and its policies apply unless overridden.
func WithBase(parent *Schema) SchemaOption {
	return func(ss *schemaSettings) { ss.base = parent }
}

// WithUnknownAttrPolicy sets the handling of unrecognized attributes.
func WithUnknownAttrPolicy(p UnknownAttrPolicy) SchemaOption {
	return func(ss *schemaSettings) { ss.attrPolicy = &p }
}

// WithUnknownChildPolicy sets the handling of unrecognized child elements.
func WithUnknownChildPolicy(p UnknownChildPolicy) SchemaOption {
	return func(ss *schemaSettings) { ss.childPolicy = &p }
}

// WithUnknownTextPolicy sets the handling of unexpected character data.
func WithUnknownTextPolicy(p UnknownTextPolicy) SchemaOption {
	return func(ss *schemaSettings) { ss.textPolicy = &p }
}

// NewSchema declares a schema named name for the element tag, over the
// given fields in order. Tag accepts combined-string or xml.Name form.
// Declaration problems (bad tags, duplicate attribute bindings, colliding
// child dispatch tags, multiple text or collector fields) are reported
// here rather than at parse time.
func NewSchema(name string, tag interface{}, fields []Field, opts ...SchemaOption) (*Schema, error) {
	var ss schemaSettings
	for _, opt := range opts {
		opt(&ss)
	}

	s := &Schema{
		name:  name,
		attrs: map[xml.Name]*AttrField{},
	}

	var err error
	s.tag, err = resolveTag(tag)
	if err != nil {
		return nil, &DeclarationError{Schema: name, Msg: err.Error()}
	}

	if ss.base != nil {
		s.fields = append(s.fields, ss.base.fields...)
		s.attrPolicy = ss.base.attrPolicy
		s.childPolicy = ss.base.childPolicy
		s.textPolicy = ss.base.textPolicy
	}
	s.fields = append(s.fields, fields...)
	if ss.attrPolicy != nil {
		s.attrPolicy = *ss.attrPolicy
	}
	if ss.childPolicy != nil {
		s.childPolicy = *ss.childPolicy
	}
	if ss.textPolicy != nil {
		s.textPolicy = *ss.textPolicy
	}

	for slot, f := range s.fields {
		if err := f.bindSchema(s, slot); err != nil {
			if derr, ok := err.(*DeclarationError); ok && derr.Schema == "" {
				derr.Schema = name
			}
			return nil, err
		}
		if err := s.index(f); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on error. Intended for
// package-level schema variables.
func MustSchema(name string, tag interface{}, fields []Field, opts ...SchemaOption) *Schema {
	s, err := NewSchema(name, tag, fields, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) index(f Field) error {
	switch fd := f.(type) {
	case *AttrField:
		if prev, ok := s.attrs[fd.tag]; ok && prev != fd {
			return &DeclarationError{
				Schema: s.name,
				Msg:    "attribute " + xmlutil.NameString(fd.tag) + " is bound twice",
			}
		}
		s.attrs[fd.tag] = fd
	case *TextField:
		if s.text != nil && s.text != fd {
			return &DeclarationError{Schema: s.name, Msg: "more than one text field"}
		}
		s.text = fd
	case *CollectorField:
		if s.collector != nil && s.collector != fd {
			return &DeclarationError{Schema: s.name, Msg: "more than one collector field"}
		}
		s.collector = fd
	case *ChildField, *ChildListField, *ChildMapField, *ChildTagField, *ChildTextField:
		if err := s.checkChildOverlap(f); err != nil {
			return err
		}
		s.children = append(s.children, f)
	default:
		return &DeclarationError{Schema: s.name, Msg: "unknown field kind"}
	}
	return nil
}

func (s *Schema) checkChildOverlap(f Field) error {
	for _, tag := range childTags(f) {
		for _, g := range s.children {
			if g == f {
				continue
			}
			if fieldRecognizes(g, tag) {
				return &DeclarationError{
					Schema: s.name,
					Msg: "tag " + xmlutil.NameString(tag) + " is recognized by both " +
						g.describe() + " and " + f.describe(),
				}
			}
		}
	}
	return nil
}

// childFor returns the child-consuming field recognizing tag, or nil.
// It scans dynamically so that late registrations take effect.
func (s *Schema) childFor(tag xml.Name) Field {
	for _, f := range s.children {
		if fieldRecognizes(f, tag) {
			return f
		}
	}
	return nil
}

func fieldRecognizes(f Field, tag xml.Name) bool {
	switch fd := f.(type) {
	case *ChildField:
		return fd.registry.Resolve(tag) != nil
	case *ChildListField:
		return fd.registry.Resolve(tag) != nil
	case *ChildMapField:
		return fd.registry.Resolve(tag) != nil
	case *ChildTagField:
		return fd.tags[tag]
	case *ChildTextField:
		return fd.tag == tag
	}
	return false
}

func childTags(f Field) []xml.Name {
	switch fd := f.(type) {
	case *ChildField:
		return fd.registry.Tags()
	case *ChildListField:
		return fd.registry.Tags()
	case *ChildMapField:
		return fd.registry.Tags()
	case *ChildTagField:
		return fd.order
	case *ChildTextField:
		return []xml.Name{fd.tag}
	}
	return nil
}

// Name returns the schema's declared name.
func (s *Schema) Name() string { return s.name }

// Tag returns the element tag the schema parses.
func (s *Schema) Tag() xml.Name { return s.tag }

// Fields returns the schema's fields in slot order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// New allocates an empty instance of the schema. Container fields start
// out with empty collections, scalar fields unset.
func (s *Schema) New() *Object {
	o := &Object{
		schema: s,
		slots:  make([]interface{}, len(s.fields)),
		set:    make([]bool, len(s.fields)),
	}
	for i, f := range s.fields {
		o.slots[i] = f.newSlot()
	}
	return o
}

func (s *Schema) requiredFields() []Field {
	var out []Field
	for _, f := range s.fields {
		switch fd := f.(type) {
		case *AttrField:
			if fd.required {
				out = append(out, fd)
			}
		case *TextField:
			if fd.required {
				out = append(out, fd)
			}
		case *ChildTextField:
			if fd.required {
				out = append(out, fd)
			}
		case *ChildField:
			if fd.required {
				out = append(out, fd)
			}
		case *ChildTagField:
			if fd.required {
				out = append(out, fd)
			}
		}
	}
	return out
}
