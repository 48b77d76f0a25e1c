package service

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/varka/xmpp/jid"
	"github.com/varka/xmpp/stanza"
	"github.com/varka/xmpp/stream"
	"github.com/varka/xmpp/xmlutil"
)

// HandlerSpec describes one registration a service performs against the
// stream when instantiated. Specs marked Unique may not share a Key
// across the descriptor; RequireDeps must be a subset of the
// descriptor's after-set.
type HandlerSpec struct {
	// Origin names the builder call that produced the spec, for
	// conflict reports.
	Origin string
	// Key is the uniqueness discriminator.
	Key string
	// Unique marks the Key as exclusive within the descriptor.
	Unique bool
	// RequireDeps lists services whose instances the spec needs.
	RequireDeps []string
	// Apply performs the registration and returns its undo handle.
	Apply func(inst *Instance) (io.Closer, error)
}

// ResourceSpec describes a scoped resource acquired at instantiation and
// released at shutdown.
type ResourceSpec struct {
	Name    string
	Acquire func(inst *Instance) (io.Closer, error)
}

// Descriptor is a finalized service declaration: its ordering relations,
// handler specifications and resource descriptors. Descriptors are built
// with NewDescriptor and immutable after Build.
type Descriptor struct {
	Name string

	before    []string
	after     []string
	legacy    bool
	handlers  []HandlerSpec
	resources []ResourceSpec
	signals   []string
	onInit    func(*Instance) error
	onDown    func(context.Context, *Instance) error
}

// Before returns the directly declared before-set.
func (d *Descriptor) Before() []string { return append([]string(nil), d.before...) }

// After returns the directly declared after-set.
func (d *Descriptor) After() []string { return append([]string(nil), d.after...) }

// Builder collects a service declaration. Calls may be chained; Build
// validates and produces the immutable Descriptor.
type Builder struct {
	d       Descriptor
	base    *Descriptor
	baseErr error
	legacy  bool
	modern  bool
	n       int
}

// NewDescriptor starts a service declaration under the given name.
func NewDescriptor(name string) *Builder {
	return &Builder{d: Descriptor{Name: name}}
}

// WithBase merges the ordering declarations of parent into this
// descriptor. A parent carrying handler specifications or resource
// descriptors is finalized and may not be derived from.
func (b *Builder) WithBase(parent *Descriptor) *Builder {
	if len(parent.handlers) > 0 || len(parent.resources) > 0 {
		b.baseErr = &DeclarationError{
			Service: b.d.Name,
			Msg:     "cannot derive from " + parent.Name + ": it carries handlers or resources",
		}
		return b
	}
	b.base = parent
	return b
}

// OrderBefore declares that this service must be set up before the named
// services.
func (b *Builder) OrderBefore(names ...string) *Builder {
	b.modern = true
	b.d.before = append(b.d.before, names...)
	return b
}

// OrderAfter declares that this service must be set up after the named
// services.
func (b *Builder) OrderAfter(names ...string) *Builder {
	b.modern = true
	b.d.after = append(b.d.after, names...)
	return b
}

// ServiceBefore is the legacy spelling of OrderBefore.
//
// Deprecated: use OrderBefore. Mixing both spellings on one descriptor
// is a declaration error.
func (b *Builder) ServiceBefore(names ...string) *Builder {
	b.legacy = true
	b.d.before = append(b.d.before, names...)
	return b
}

// ServiceAfter is the legacy spelling of OrderAfter.
//
// Deprecated: use OrderAfter.
func (b *Builder) ServiceAfter(names ...string) *Builder {
	b.legacy = true
	b.d.after = append(b.d.after, names...)
	return b
}

// AddIQHandler wires h as the iq request handler for the given type and
// payload tag. The registration is unique per type and payload.
func (b *Builder) AddIQHandler(t stanza.IQType, payload xml.Name, h stream.IQHandler) *Builder {
	origin := b.origin("AddIQHandler")
	b.d.handlers = append(b.d.handlers, HandlerSpec{
		Origin: origin,
		Key:    fmt.Sprintf("iq/%s/%s", t, xmlutil.NameString(payload)),
		Unique: true,
		Apply: func(inst *Instance) (io.Closer, error) {
			return inst.stream.RegisterIQRequest(t, payload, h)
		},
	})
	return b
}

// AddMessageHandler wires h for inbound messages of the given type and
// bare sender. The registration is unique per type and sender.
func (b *Builder) AddMessageHandler(t stanza.MessageType, from jid.JID, h stream.MessageHandler) *Builder {
	origin := b.origin("AddMessageHandler")
	b.d.handlers = append(b.d.handlers, HandlerSpec{
		Origin: origin,
		Key:    fmt.Sprintf("message/%s/%s", t, from.Bare()),
		Unique: true,
		Apply: func(inst *Instance) (io.Closer, error) {
			return inst.stream.RegisterMessage(t, from, h)
		},
	})
	return b
}

// AddPresenceHandler wires h for inbound presence of the given type and
// bare sender. The registration is unique per type and sender.
func (b *Builder) AddPresenceHandler(t stanza.PresenceType, from jid.JID, h stream.PresenceHandler) *Builder {
	origin := b.origin("AddPresenceHandler")
	b.d.handlers = append(b.d.handlers, HandlerSpec{
		Origin: origin,
		Key:    fmt.Sprintf("presence/%s/%s", t, from.Bare()),
		Unique: true,
		Apply: func(inst *Instance) (io.Closer, error) {
			return inst.stream.RegisterPresence(t, from, h)
		},
	})
	return b
}

// AddInboundFilter appends f to the stream's inbound filter chain on
// instantiation.
func (b *Builder) AddInboundFilter(f stream.Filter) *Builder {
	origin := b.origin("AddInboundFilter")
	b.d.handlers = append(b.d.handlers, HandlerSpec{
		Origin: origin,
		Key:    origin,
		Apply: func(inst *Instance) (io.Closer, error) {
			return inst.stream.AddInboundFilter(f), nil
		},
	})
	return b
}

// AddOutboundFilter appends f to the stream's outbound filter chain on
// instantiation.
func (b *Builder) AddOutboundFilter(f stream.Filter) *Builder {
	origin := b.origin("AddOutboundFilter")
	b.d.handlers = append(b.d.handlers, HandlerSpec{
		Origin: origin,
		Key:    origin,
		Apply: func(inst *Instance) (io.Closer, error) {
			return inst.stream.AddOutboundFilter(f), nil
		},
	})
	return b
}

// AddSignal declares a named signal the service exposes to its
// dependents.
func (b *Builder) AddSignal(name string) *Builder {
	b.d.signals = append(b.d.signals, name)
	return b
}

// ConnectSignal wires h to the named signal of the named dependency at
// instantiation. The dependency must appear in the after-set.
func (b *Builder) ConnectSignal(dep, signal string, h func(interface{})) *Builder {
	origin := b.origin("ConnectSignal")
	b.d.handlers = append(b.d.handlers, HandlerSpec{
		Origin:      origin,
		Key:         fmt.Sprintf("signal/%s/%s", dep, signal),
		Unique:      true,
		RequireDeps: []string{dep},
		Apply: func(inst *Instance) (io.Closer, error) {
			target := inst.Dependency(dep)
			if target == nil {
				return nil, &DeclarationError{
					Service: inst.desc.Name,
					Msg:     "dependency " + dep + " was not injected",
				}
			}
			sig := target.Signal(signal)
			if sig == nil {
				return nil, &DeclarationError{
					Service: inst.desc.Name,
					Msg:     dep + " exposes no signal " + signal,
				}
			}
			return sig.Connect(h), nil
		},
	})
	return b
}

// AddResource declares a scoped resource acquired at instantiation.
func (b *Builder) AddResource(name string, acquire func(inst *Instance) (io.Closer, error)) *Builder {
	b.d.resources = append(b.d.resources, ResourceSpec{Name: name, Acquire: acquire})
	return b
}

// OnInit sets a hook run before any handler specification is applied.
func (b *Builder) OnInit(f func(*Instance) error) *Builder {
	b.d.onInit = f
	return b
}

// OnShutdown sets the shutdown hook, run before the exit stack unwinds.
func (b *Builder) OnShutdown(f func(context.Context, *Instance) error) *Builder {
	b.d.onDown = f
	return b
}

// Build validates the declaration and returns the immutable descriptor.
func (b *Builder) Build() (*Descriptor, error) {
	if b.baseErr != nil {
		return nil, b.baseErr
	}
	if b.legacy && b.modern {
		return nil, &DeclarationError{
			Service: b.d.Name,
			Msg:     "both ServiceBefore/ServiceAfter and OrderBefore/OrderAfter declared",
		}
	}
	b.d.legacy = b.legacy

	d := b.d
	if b.base != nil {
		d.before = union(b.base.before, d.before)
		d.after = union(b.base.after, d.after)
	}

	afterSet := map[string]bool{}
	for _, a := range d.after {
		afterSet[a] = true
	}
	seen := map[string]string{}
	for _, h := range d.handlers {
		if h.Unique {
			if first, dup := seen[h.Key]; dup {
				return nil, &HandlerConflictError{Key: h.Key, First: first, Second: h.Origin}
			}
			seen[h.Key] = h.Origin
		}
		for _, dep := range h.RequireDeps {
			if !afterSet[dep] {
				return nil, &DeclarationError{
					Service: d.Name,
					Msg:     h.Origin + " requires " + dep + " which is not in the after-set",
				}
			}
		}
	}
	return &d, nil
}

// MustBuild is Build panicking on error, for package-level descriptors.
func (b *Builder) MustBuild() *Descriptor {
	d, err := b.Build()
	if err != nil {
		panic(err)
	}
	return d
}

func (b *Builder) origin(kind string) string {
	b.n++
	return fmt.Sprintf("%s#%d(%s)", b.d.Name, b.n, kind)
}

// union keeps declaration order, bases first, without duplicates.
func union(base, own []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range append(append([]string(nil), base...), own...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
