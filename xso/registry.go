package xso

import (
	"encoding/xml"

	"github.com/varka/xmpp/xmlutil"
)

// Registry maps element tags to the schemas that parse them. It backs
// the dispatch of child fields and of top-level driver parsing.
type Registry struct {
	m     map[xml.Name]*Schema
	order []xml.Name
}

// NewRegistry builds a registry over the given schemas. Two schemas with
// the same tag are a declaration error.
func NewRegistry(schemas ...*Schema) (*Registry, error) {
	r := &Registry{m: map[xml.Name]*Schema{}}
	for _, s := range schemas {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustRegistry is like NewRegistry but panics on error. Intended for
// package-level registry variables.
func MustRegistry(schemas ...*Schema) *Registry {
	r, err := NewRegistry(schemas...)
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds a schema to the registry. Registration must complete
// before parsing against the registry begins.
func (r *Registry) Register(s *Schema) error {
	if prev, ok := r.m[s.tag]; ok {
		return &DeclarationError{
			Schema: s.name,
			Msg: "tag " + xmlutil.NameString(s.tag) + " is already registered to schema " +
				prev.name,
		}
	}
	r.m[s.tag] = s
	r.order = append(r.order, s.tag)
	return nil
}

// Resolve returns the schema registered for tag, or nil.
func (r *Registry) Resolve(tag xml.Name) *Schema {
	return r.m[tag]
}

// Tags returns the registered tags in registration order.
func (r *Registry) Tags() []xml.Name {
	out := make([]xml.Name, len(r.order))
	copy(out, r.order)
	return out
}
