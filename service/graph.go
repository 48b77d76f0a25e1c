package service

import (
	"sort"

	"github.com/rs/zerolog"
)

// Graph is the service ordering engine: it closes the declared before and
// after relations transitively over the full set of added descriptors,
// detects cycles and produces a stable total-order comparison and
// topological sort.
//
// A Graph is built once, before any service instance exists: Add every
// descriptor, then Finalize. Adding after Finalize is an error.
type Graph struct {
	log zerolog.Logger

	order     []string
	index     map[string]int
	before    map[string]map[string]bool
	after     map[string]map[string]bool
	finalized bool
}

// NewGraph returns an empty ordering graph.
func NewGraph(log zerolog.Logger) *Graph {
	return &Graph{
		log:    log,
		index:  map[string]int{},
		before: map[string]map[string]bool{},
		after:  map[string]map[string]bool{},
	}
}

// Add registers a descriptor's ordering declarations with the graph.
func (g *Graph) Add(d *Descriptor) error {
	if g.finalized {
		return &DeclarationError{Service: d.Name, Msg: "graph is finalized, registration is closed"}
	}
	if _, dup := g.index[d.Name]; dup {
		return &DeclarationError{Service: d.Name, Msg: "already added to the graph"}
	}
	if d.legacy {
		g.log.Warn().Str("service", d.Name).
			Msg("deprecated ServiceBefore/ServiceAfter ordering used, migrate to OrderBefore/OrderAfter")
	}
	g.index[d.Name] = len(g.order)
	g.order = append(g.order, d.Name)
	g.before[d.Name] = map[string]bool{}
	g.after[d.Name] = map[string]bool{}
	for _, b := range d.before {
		g.before[d.Name][b] = true
	}
	for _, a := range d.after {
		g.after[d.Name][a] = true
	}
	return nil
}

// Finalize completes symmetric edges, closes the relations transitively
// and checks for cycles. After Finalize the graph is immutable.
func (g *Graph) Finalize() error {
	if g.finalized {
		return nil
	}

	// every named neighbour must itself be declared
	for _, name := range g.order {
		for _, rel := range []map[string]bool{g.before[name], g.after[name]} {
			for other := range rel {
				if _, ok := g.index[other]; !ok {
					return &DeclarationError{
						Service: name,
						Msg:     "ordering names undeclared service " + other,
					}
				}
			}
		}
	}

	// A before B implies B after A, and vice versa
	for _, name := range g.order {
		for b := range g.before[name] {
			g.after[b][name] = true
		}
		for a := range g.after[name] {
			g.before[a][name] = true
		}
	}

	// transitive closure, re-propagating until a fixed point
	for changed := true; changed; {
		changed = false
		for _, x := range g.order {
			for y := range g.before[x] {
				for z := range g.before[y] {
					if !g.before[x][z] {
						g.before[x][z] = true
						g.after[z][x] = true
						changed = true
					}
				}
			}
		}
	}

	for _, name := range g.order {
		if g.before[name][name] || g.after[name][name] {
			return &DependencyLoopError{Member: name}
		}
		for other := range g.before[name] {
			if g.after[name][other] {
				return &DependencyLoopError{Member: name}
			}
		}
	}

	g.finalized = true
	return nil
}

// OrderBefore returns the set of services name must run before, after
// transitive closure. Finalize must have succeeded.
func (g *Graph) OrderBefore(name string) []string {
	return setSlice(g.before[name])
}

// OrderAfter returns the set of services name must run after, after
// transitive closure.
func (g *Graph) OrderAfter(name string) []string {
	return setSlice(g.after[name])
}

// Less reports whether x must be set up before y: x is in y's after-set.
func (g *Graph) Less(x, y string) bool {
	return g.after[y][x]
}

// Sort orders names topologically, consistent with the closed relation.
// Unrelated services break ties by graph declaration order, so repeated
// sorts of the same input are reproducible.
func (g *Graph) Sort(names []string) []string {
	pending := make([]string, len(names))
	copy(pending, names)
	sort.Slice(pending, func(i, j int) bool {
		return g.index[pending[i]] < g.index[pending[j]]
	})

	member := map[string]bool{}
	for _, n := range pending {
		member[n] = true
	}
	indeg := map[string]int{}
	for _, n := range pending {
		for dep := range g.after[n] {
			if member[dep] {
				indeg[n]++
			}
		}
	}

	out := make([]string, 0, len(pending))
	for len(pending) > 0 {
		// the declaration-earliest name with no unsatisfied dependency
		picked := -1
		for i, n := range pending {
			if indeg[n] == 0 {
				picked = i
				break
			}
		}
		if picked < 0 {
			// cannot happen on a finalized acyclic graph
			break
		}
		n := pending[picked]
		pending = append(pending[:picked], pending[picked+1:]...)
		out = append(out, n)
		for succ := range g.before[n] {
			if member[succ] {
				indeg[succ]--
			}
		}
	}
	return out
}

func setSlice(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
