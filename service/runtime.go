package service

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/varka/xmpp/stream"
)

// Instance is one service bound to a live stream. Construction applies
// the descriptor's handler specifications and resource descriptors in
// declaration order, pushing each undo handle onto an exit stack; the
// stack unwinds in reverse on shutdown, on all paths.
type Instance struct {
	desc   *Descriptor
	stream *stream.Stream
	log    zerolog.Logger

	deps    map[string]*Instance
	signals map[string]*Signal
	stack   []io.Closer

	// Value is service-private state, typically set by the OnInit hook.
	Value interface{}
}

// NewInstance binds the descriptor to st and performs every declared
// registration. deps maps dependency names to their already-constructed
// instances. On partial failure everything already registered is undone
// before the error returns.
func NewInstance(d *Descriptor, st *stream.Stream, log zerolog.Logger, deps map[string]*Instance) (*Instance, error) {
	inst := &Instance{
		desc:    d,
		stream:  st,
		log:     log.With().Str("service", d.Name).Logger(),
		deps:    deps,
		signals: map[string]*Signal{},
	}
	for _, name := range d.signals {
		inst.signals[name] = NewSignal()
	}

	if d.onInit != nil {
		if err := d.onInit(inst); err != nil {
			return nil, err
		}
	}

	for _, h := range d.handlers {
		c, err := h.Apply(inst)
		if err != nil {
			inst.unwind()
			return nil, err
		}
		if c != nil {
			inst.stack = append(inst.stack, c)
		}
	}
	for _, r := range d.resources {
		c, err := r.Acquire(inst)
		if err != nil {
			inst.unwind()
			return nil, err
		}
		if c != nil {
			inst.stack = append(inst.stack, c)
		}
	}
	return inst, nil
}

// Name returns the service name.
func (inst *Instance) Name() string { return inst.desc.Name }

// Stream returns the stream the instance is bound to.
func (inst *Instance) Stream() *stream.Stream { return inst.stream }

// Log returns the instance's derived logger.
func (inst *Instance) Log() zerolog.Logger { return inst.log }

// Dependency returns the injected instance of the named dependency, or
// nil.
func (inst *Instance) Dependency(name string) *Instance { return inst.deps[name] }

// Signal returns the named signal the service exposes, or nil.
func (inst *Instance) Signal(name string) *Signal { return inst.signals[name] }

// Shutdown runs the descriptor's shutdown hook, then unconditionally
// unwinds the exit stack in reverse acquisition order. The hook error,
// if any, takes precedence; unwind failures are aggregated either way.
func (inst *Instance) Shutdown(ctx context.Context) error {
	var hookErr error
	if inst.desc.onDown != nil {
		hookErr = inst.desc.onDown(ctx, inst)
	}
	unwindErr := inst.unwind()
	if hookErr != nil {
		if unwindErr != nil {
			inst.log.Error().Err(unwindErr).Msg("teardown failures after shutdown hook error")
		}
		return hookErr
	}
	return unwindErr
}

func (inst *Instance) unwind() error {
	var agg *TeardownError
	for i := len(inst.stack) - 1; i >= 0; i-- {
		agg = appendTeardown(agg, inst.stack[i].Close())
	}
	inst.stack = nil
	return teardownOrNil(agg)
}

// Summoner instantiates declared services against a stream in dependency
// order, injecting each instance's after-set dependencies.
type Summoner struct {
	log   zerolog.Logger
	graph *Graph
	descs map[string]*Descriptor
}

// NewSummoner builds a summoner over the given descriptors. The ordering
// graph is built and finalized here; declaration problems surface now,
// before any instance exists.
func NewSummoner(log zerolog.Logger, descs ...*Descriptor) (*Summoner, error) {
	s := &Summoner{
		log:   log,
		graph: NewGraph(log),
		descs: map[string]*Descriptor{},
	}
	for _, d := range descs {
		if err := s.graph.Add(d); err != nil {
			return nil, err
		}
		s.descs[d.Name] = d
	}
	if err := s.graph.Finalize(); err != nil {
		return nil, err
	}
	return s, nil
}

// Graph returns the finalized ordering graph.
func (s *Summoner) Graph() *Graph { return s.graph }

// Summon instantiates the named services plus every service in their
// transitive after-sets, in topological order. On failure, instances
// already constructed are shut down in reverse before the error returns.
func (s *Summoner) Summon(ctx context.Context, st *stream.Stream, names ...string) (*Set, error) {
	want := map[string]bool{}
	for _, n := range names {
		if _, ok := s.descs[n]; !ok {
			return nil, &DeclarationError{Service: n, Msg: "not declared with this summoner"}
		}
		want[n] = true
		for _, dep := range s.graph.OrderAfter(n) {
			want[dep] = true
		}
	}
	ordered := s.graph.Sort(setSlice(want))

	set := &Set{log: s.log, byName: map[string]*Instance{}}
	for _, name := range ordered {
		deps := map[string]*Instance{}
		for _, dep := range s.graph.OrderAfter(name) {
			if inst := set.byName[dep]; inst != nil {
				deps[dep] = inst
			}
		}
		inst, err := NewInstance(s.descs[name], st, s.log, deps)
		if err != nil {
			set.Shutdown(ctx)
			return nil, err
		}
		set.order = append(set.order, inst)
		set.byName[name] = inst
	}
	return set, nil
}

// Set is a group of summoned service instances, shut down together.
type Set struct {
	log    zerolog.Logger
	order  []*Instance
	byName map[string]*Instance
}

// Get returns the named instance, or nil.
func (s *Set) Get(name string) *Instance { return s.byName[name] }

// Instances returns the instances in construction order.
func (s *Set) Instances() []*Instance {
	out := make([]*Instance, len(s.order))
	copy(out, s.order)
	return out
}

// Shutdown tears the set down in reverse construction order. Failures do
// not stop the remaining shutdowns; all errors are aggregated.
func (s *Set) Shutdown(ctx context.Context) error {
	var agg *TeardownError
	for i := len(s.order) - 1; i >= 0; i-- {
		agg = appendTeardown(agg, s.order[i].Shutdown(ctx))
	}
	s.order = nil
	return teardownOrNil(agg)
}
