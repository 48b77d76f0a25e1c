package xso

import (
	"encoding/xml"
	"strings"

	"github.com/varka/xmpp/xmlutil"
)

// Field is a declarative binding between one aspect of an XML element
// (an attribute, character data, child elements) and a slot on the record
// instances of the owning schema.
//
// Field values are created by the constructor functions in this package
// (Attr, Text, Child, ChildList, ChildMap, ChildTag, ChildText, Collector)
// and handed to NewSchema, which binds them to instance slots. A field may
// be reused by a derived schema (via WithBase) but not bound at two
// different positions.
type Field interface {
	describe() string
	slotIndex() int
	bindSchema(s *Schema, slot int) error
	newSlot() interface{}
}

// FieldOption configures a field constructor.
type FieldOption func(*fieldSettings)

type fieldSettings struct {
	typ         Type
	def         interface{}
	required    bool
	validator   Validator
	vmode       ValidateMode
	attrPolicy  UnknownAttrPolicy
	childPolicy UnknownChildPolicy
	textPolicy  UnknownTextPolicy
}

// WithType sets the field's conversion type. The default is String.
func WithType(t Type) FieldOption { return func(fs *fieldSettings) { fs.typ = t } }

// WithDefault sets the value scalar accessors return while the field is
// unset.
func WithDefault(v interface{}) FieldOption { return func(fs *fieldSettings) { fs.def = v } }

// Required marks the field as mandatory: an element parsed without it fails
// with a MissingDataError at element end.
func Required() FieldOption { return func(fs *fieldSettings) { fs.required = true } }

// WithValidator attaches a validator to the field, run per the given mode.
func WithValidator(v Validator, mode ValidateMode) FieldOption {
	return func(fs *fieldSettings) {
		fs.validator = v
		fs.vmode = mode
	}
}

// WithAttrPolicy overrides the unknown-attribute policy for field kinds
// that consume a whole child element (ChildText, ChildTag).
func WithAttrPolicy(p UnknownAttrPolicy) FieldOption {
	return func(fs *fieldSettings) { fs.attrPolicy = p }
}

// WithChildPolicy overrides the unknown-child policy for field kinds that
// consume a whole child element (ChildText, ChildTag).
func WithChildPolicy(p UnknownChildPolicy) FieldOption {
	return func(fs *fieldSettings) { fs.childPolicy = p }
}

// WithTextPolicy overrides the unknown-text policy for ChildTag fields.
func WithTextPolicy(p UnknownTextPolicy) FieldOption {
	return func(fs *fieldSettings) { fs.textPolicy = p }
}

func applyFieldOptions(opts []FieldOption) fieldSettings {
	fs := fieldSettings{typ: String{}}
	for _, opt := range opts {
		opt(&fs)
	}
	return fs
}

// fieldCore carries slot binding state common to all field kinds.
type fieldCore struct {
	slot   int
	owners []*Schema
	err    error // deferred constructor error, surfaced at NewSchema
}

func (c *fieldCore) slotIndex() int { return c.slot }

func (c *fieldCore) bind(s *Schema, slot int, desc string) error {
	if c.err != nil {
		return c.err
	}
	if len(c.owners) > 0 && c.slot != slot {
		return &DeclarationError{
			Schema: s.name,
			Msg:    "descriptor " + desc + " is already bound at a different position",
		}
	}
	c.slot = slot
	c.owners = append(c.owners, s)
	return nil
}

// scalar carries conversion and validation state shared by the scalar field
// kinds (Attr, Text, ChildText).
type scalar struct {
	fieldCore
	typ       Type
	def       interface{}
	required  bool
	validator Validator
	vmode     ValidateMode
}

func newScalar(fs fieldSettings) scalar {
	return scalar{
		typ:       fs.typ,
		def:       fs.def,
		required:  fs.required,
		validator: fs.validator,
		vmode:     fs.vmode,
	}
}

func (sc *scalar) newSlot() interface{} { return nil }

func (sc *scalar) defaultValue() interface{} { return sc.def }

// fromWire converts and, per the validate mode, validates character data
// received from parsing.
func (sc *scalar) fromWire(s, field string) (interface{}, error) {
	v, err := sc.typ.Parse(s)
	if err != nil {
		return nil, err
	}
	if sc.validator != nil && sc.vmode.FromRecv() {
		if err := validateAs(sc.validator, v, field); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// fromCode coerces and, per the validate mode, validates a locally
// assigned value.
func (sc *scalar) fromCode(v interface{}, field string) (interface{}, error) {
	v, err := sc.typ.Coerce(v)
	if err != nil {
		return nil, err
	}
	if sc.validator != nil && sc.vmode.FromCode() {
		if err := validateAs(sc.validator, v, field); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func validateAs(val Validator, v interface{}, field string) error {
	err := val.Validate(v)
	if verr, ok := err.(*ValidationError); ok && verr.Field == "" {
		verr.Field = field
	}
	return err
}

// AttrField binds a scalar XML attribute.
type AttrField struct {
	scalar
	tag xml.Name
}

// Attr declares a scalar field bound to the attribute named by tag, which
// may be given in combined-string form or as an xml.Name.
func Attr(tag interface{}, opts ...FieldOption) *AttrField {
	f := &AttrField{scalar: newScalar(applyFieldOptions(opts))}
	f.tag, f.err = resolveTag(tag)
	return f
}

func (f *AttrField) describe() string { return "attribute " + xmlutil.NameString(f.tag) }

func (f *AttrField) bindSchema(s *Schema, slot int) error { return f.bind(s, slot, f.describe()) }

// Tag returns the attribute name the field binds.
func (f *AttrField) Tag() xml.Name { return f.tag }

// TextField binds the element's own character data.
type TextField struct {
	scalar
}

// Text declares a scalar field bound to the element's character data.
func Text(opts ...FieldOption) *TextField {
	return &TextField{scalar: newScalar(applyFieldOptions(opts))}
}

func (f *TextField) describe() string { return "text" }

func (f *TextField) bindSchema(s *Schema, slot int) error { return f.bind(s, slot, f.describe()) }

// ChildField binds a single nested record, chosen by tag from the
// registered child schemas.
type ChildField struct {
	fieldCore
	registry *Registry
	required bool
}

// Child declares a scalar field holding one nested record. Repeated
// occurrences of a matching child overwrite the previous value.
func Child(schemas []*Schema, opts ...FieldOption) *ChildField {
	fs := applyFieldOptions(opts)
	f := &ChildField{required: fs.required}
	f.registry, f.err = NewRegistry(schemas...)
	return f
}

func (f *ChildField) describe() string { return "child " + tagSetString(f.registry) }

func (f *ChildField) bindSchema(s *Schema, slot int) error { return f.bind(s, slot, f.describe()) }

func (f *ChildField) newSlot() interface{} { return nil }

// Register adds a schema to the field's dispatch registry after
// declaration time. Registration must complete before parsing begins.
func (f *ChildField) Register(sub *Schema) error {
	return registerLate(&f.fieldCore, f.registry, sub)
}

// ChildListField binds an ordered sequence of nested records.
type ChildListField struct {
	fieldCore
	registry *Registry
}

// ChildList declares a field holding an ordered, mutable sequence of
// nested records; each matching child appends.
func ChildList(schemas []*Schema) *ChildListField {
	f := &ChildListField{}
	f.registry, f.err = NewRegistry(schemas...)
	return f
}

func (f *ChildListField) describe() string { return "child list " + tagSetString(f.registry) }

func (f *ChildListField) bindSchema(s *Schema, slot int) error { return f.bind(s, slot, f.describe()) }

func (f *ChildListField) newSlot() interface{} { return &[]*Object{} }

// Register adds a schema to the field's dispatch registry after
// declaration time.
func (f *ChildListField) Register(sub *Schema) error {
	return registerLate(&f.fieldCore, f.registry, sub)
}

// KeyFunc derives the map key for a parsed child record.
type KeyFunc func(*Object) interface{}

// KeyByAttr returns a KeyFunc projecting the given attribute of the child.
func KeyByAttr(f *AttrField) KeyFunc {
	return func(o *Object) interface{} { return o.Get(f) }
}

// KeyByTag returns a KeyFunc projecting the child's element tag.
func KeyByTag() KeyFunc {
	return func(o *Object) interface{} { return o.Schema().Tag() }
}

// ChildMapField binds a keyed collection of nested records, the key
// derived from a declared projection of each child.
type ChildMapField struct {
	fieldCore
	registry *Registry
	key      KeyFunc
}

// ChildMap declares a field holding nested records grouped by the key
// projection.
func ChildMap(schemas []*Schema, key KeyFunc) *ChildMapField {
	f := &ChildMapField{key: key}
	f.registry, f.err = NewRegistry(schemas...)
	if f.err == nil && key == nil {
		f.err = &DeclarationError{Msg: "child map requires a key projection"}
	}
	return f
}

func (f *ChildMapField) describe() string { return "child map " + tagSetString(f.registry) }

func (f *ChildMapField) bindSchema(s *Schema, slot int) error { return f.bind(s, slot, f.describe()) }

func (f *ChildMapField) newSlot() interface{} { return map[interface{}][]*Object{} }

// Register adds a schema to the field's dispatch registry after
// declaration time.
func (f *ChildMapField) Register(sub *Schema) error {
	return registerLate(&f.fieldCore, f.registry, sub)
}

// ChildTagField binds the presence of one of a set of empty child
// elements; the stored value is the tag seen.
type ChildTagField struct {
	fieldCore
	tags        map[xml.Name]bool
	order       []xml.Name
	required    bool
	attrPolicy  UnknownAttrPolicy
	childPolicy UnknownChildPolicy
	textPolicy  UnknownTextPolicy
}

// ChildTag declares a field whose value is the tag of whichever of the
// given empty child elements occurs. Content inside the child is handled
// per the configured policies (default: fail).
func ChildTag(tags []interface{}, opts ...FieldOption) *ChildTagField {
	fs := applyFieldOptions(opts)
	f := &ChildTagField{
		tags:        map[xml.Name]bool{},
		required:    fs.required,
		attrPolicy:  fs.attrPolicy,
		childPolicy: fs.childPolicy,
		textPolicy:  fs.textPolicy,
	}
	for _, t := range tags {
		n, err := resolveTag(t)
		if err != nil {
			f.err = err
			return f
		}
		if f.tags[n] {
			f.err = &DeclarationError{Msg: "duplicate tag " + xmlutil.NameString(n) + " in child tag set"}
			return f
		}
		f.tags[n] = true
		f.order = append(f.order, n)
	}
	if len(f.order) == 0 {
		f.err = &DeclarationError{Msg: "child tag set must not be empty"}
	}
	return f
}

func (f *ChildTagField) describe() string {
	names := make([]string, len(f.order))
	for i, n := range f.order {
		names[i] = xmlutil.NameString(n)
	}
	return "child tag {" + strings.Join(names, ", ") + "}"
}

func (f *ChildTagField) bindSchema(s *Schema, slot int) error { return f.bind(s, slot, f.describe()) }

func (f *ChildTagField) newSlot() interface{} { return nil }

// ChildTextField binds the character data of a single named child element.
type ChildTextField struct {
	scalar
	tag         xml.Name
	attrPolicy  UnknownAttrPolicy
	childPolicy UnknownChildPolicy
}

// ChildText declares a scalar field bound to the text of the child element
// named by tag. Attributes and nested elements inside that child are
// handled per the configured policies (default: fail).
func ChildText(tag interface{}, opts ...FieldOption) *ChildTextField {
	fs := applyFieldOptions(opts)
	f := &ChildTextField{
		scalar:      newScalar(fs),
		attrPolicy:  fs.attrPolicy,
		childPolicy: fs.childPolicy,
	}
	f.tag, f.err = resolveTag(tag)
	return f
}

func (f *ChildTextField) describe() string { return "child text " + xmlutil.NameString(f.tag) }

func (f *ChildTextField) bindSchema(s *Schema, slot int) error { return f.bind(s, slot, f.describe()) }

// Tag returns the child element name the field binds.
func (f *ChildTextField) Tag() xml.Name { return f.tag }

// CollectorField catches otherwise-unrecognized content verbatim as a
// token sequence.
type CollectorField struct {
	fieldCore
}

// Collector declares a field capturing unrecognized child elements,
// character data and (under UnknownAttrDrop) attributes as raw tokens.
func Collector() *CollectorField { return &CollectorField{} }

func (f *CollectorField) describe() string { return "collector" }

func (f *CollectorField) bindSchema(s *Schema, slot int) error { return f.bind(s, slot, f.describe()) }

func (f *CollectorField) newSlot() interface{} { return &[]xml.Token{} }

func resolveTag(tag interface{}) (xml.Name, error) {
	switch t := tag.(type) {
	case string:
		return xmlutil.ParseName(t)
	case xml.Name:
		if err := xmlutil.CheckName(t); err != nil {
			return xml.Name{}, err
		}
		return t, nil
	default:
		return xml.Name{}, &DeclarationError{Msg: "tag must be a combined string or an xml.Name"}
	}
}

func tagSetString(r *Registry) string {
	if r == nil {
		return "{}"
	}
	tags := r.Tags()
	names := make([]string, len(tags))
	for i, n := range tags {
		names[i] = xmlutil.NameString(n)
	}
	return "{" + strings.Join(names, ", ") + "}"
}

func registerLate(core *fieldCore, reg *Registry, sub *Schema) error {
	for _, owner := range core.owners {
		if g := owner.childFor(sub.tag); g != nil {
			return &DeclarationError{
				Schema: owner.name,
				Msg: "tag " + xmlutil.NameString(sub.tag) + " is already recognized by " +
					g.describe(),
			}
		}
	}
	return reg.Register(sub)
}
