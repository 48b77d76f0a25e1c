package service

import (
	"encoding/xml"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varka/xmpp/stanza"
	"github.com/varka/xmpp/xso"
)

func build(t *testing.T, b *Builder) *Descriptor {
	t.Helper()
	d, err := b.Build()
	require.NoError(t, err)
	return d
}

func chainGraph(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph(zerolog.Nop())
	require.NoError(t, g.Add(build(t, NewDescriptor("a").OrderBefore("b"))))
	require.NoError(t, g.Add(build(t, NewDescriptor("b").OrderBefore("c"))))
	require.NoError(t, g.Add(build(t, NewDescriptor("c"))))
	require.NoError(t, g.Finalize())
	return g
}

func TestChainClosure(t *testing.T) {
	ck := assert.New(t)
	g := chainGraph(t)

	ck.Contains(g.OrderBefore("a"), "b")
	ck.Contains(g.OrderBefore("a"), "c")
	ck.Contains(g.OrderAfter("c"), "a")
	ck.Contains(g.OrderAfter("c"), "b")
	ck.True(g.Less("a", "c"))
	ck.False(g.Less("c", "a"))
}

func TestChainSortAllPermutations(t *testing.T) {
	ck := assert.New(t)
	g := chainGraph(t)

	for _, in := range [][]string{
		{"a", "b", "c"}, {"a", "c", "b"}, {"b", "a", "c"},
		{"b", "c", "a"}, {"c", "a", "b"}, {"c", "b", "a"},
	} {
		ck.Equal([]string{"a", "b", "c"}, g.Sort(in), "input %v", in)
	}
}

func TestSortStability(t *testing.T) {
	ck := assert.New(t)

	// d and e are unrelated to the chain and to each other
	g := NewGraph(zerolog.Nop())
	require.NoError(t, g.Add(build(t, NewDescriptor("d"))))
	require.NoError(t, g.Add(build(t, NewDescriptor("a").OrderBefore("b"))))
	require.NoError(t, g.Add(build(t, NewDescriptor("e"))))
	require.NoError(t, g.Add(build(t, NewDescriptor("b"))))
	require.NoError(t, g.Finalize())

	first := g.Sort([]string{"b", "e", "d", "a"})
	for i := 0; i < 10; i++ {
		ck.Equal(first, g.Sort([]string{"b", "e", "d", "a"}))
	}
	// ties fall back to declaration order
	ck.Equal([]string{"d", "a", "e", "b"}, first)
}

func TestDirectCycleRejected(t *testing.T) {
	ck := assert.New(t)

	g := NewGraph(zerolog.Nop())
	require.NoError(t, g.Add(build(t, NewDescriptor("x").OrderAfter("y"))))
	require.NoError(t, g.Add(build(t, NewDescriptor("y").OrderAfter("x"))))
	err := g.Finalize()
	ck.Error(err)
	ck.IsType(&DependencyLoopError{}, err)
}

func TestTransitiveCycleRejected(t *testing.T) {
	ck := assert.New(t)

	g := NewGraph(zerolog.Nop())
	require.NoError(t, g.Add(build(t, NewDescriptor("x").OrderBefore("y"))))
	require.NoError(t, g.Add(build(t, NewDescriptor("y").OrderBefore("z"))))
	require.NoError(t, g.Add(build(t, NewDescriptor("z").OrderBefore("x"))))
	err := g.Finalize()
	ck.Error(err)
	loop, ok := err.(*DependencyLoopError)
	if ck.True(ok) {
		ck.NotEmpty(loop.Member)
	}
}

func TestUndeclaredNeighbourRejected(t *testing.T) {
	ck := assert.New(t)

	g := NewGraph(zerolog.Nop())
	require.NoError(t, g.Add(build(t, NewDescriptor("a").OrderBefore("ghost"))))
	err := g.Finalize()
	ck.Error(err)
	ck.Contains(err.Error(), "ghost")
}

func TestAddAfterFinalizeRejected(t *testing.T) {
	ck := assert.New(t)

	g := NewGraph(zerolog.Nop())
	require.NoError(t, g.Add(build(t, NewDescriptor("a"))))
	require.NoError(t, g.Finalize())
	err := g.Add(build(t, NewDescriptor("late")))
	ck.Error(err)
	ck.Contains(err.Error(), "finalized")
}

func TestMixedOrderingSpellingsRejected(t *testing.T) {
	ck := assert.New(t)

	_, err := NewDescriptor("mixed").OrderBefore("a").ServiceAfter("b").Build()
	ck.Error(err)
	ck.IsType(&DeclarationError{}, err)

	// legacy-only still builds (with a migration warning at Add time)
	d, err := NewDescriptor("old").ServiceBefore("a").Build()
	ck.NoError(err)
	ck.Equal([]string{"a"}, d.Before())
}

func TestBaseMergesOrdering(t *testing.T) {
	ck := assert.New(t)

	base := build(t, NewDescriptor("base").OrderAfter("core"))
	d := build(t, NewDescriptor("derived").WithBase(base).OrderAfter("extra"))
	ck.Equal([]string{"core", "extra"}, d.After())
}

func TestBaseWithHandlersRejected(t *testing.T) {
	ck := assert.New(t)

	parent := build(t, NewDescriptor("parent").
		AddInboundFilter(func(o *xso.Object) *xso.Object { return o }))
	_, err := NewDescriptor("child").WithBase(parent).Build()
	ck.Error(err)
	ck.Contains(err.Error(), "parent")
}

func TestUniqueHandlerConflict(t *testing.T) {
	ck := assert.New(t)

	ping := xml.Name{Space: "urn:xmpp:ping", Local: "ping"}
	h := func(stanza.IQ) (*xso.Object, error) { return nil, nil }
	_, err := NewDescriptor("dup").
		AddIQHandler(stanza.IQGet, ping, h).
		AddIQHandler(stanza.IQGet, ping, h).
		Build()
	ck.Error(err)
	conflict, ok := err.(*HandlerConflictError)
	if ck.True(ok) {
		ck.Contains(conflict.First, "AddIQHandler")
		ck.Contains(conflict.Second, "AddIQHandler")
		ck.NotEqual(conflict.First, conflict.Second)
	}
}

func TestConnectSignalRequiresDependency(t *testing.T) {
	ck := assert.New(t)

	_, err := NewDescriptor("listener").
		ConnectSignal("emitter", "changed", func(interface{}) {}).
		Build()
	ck.Error(err)
	ck.Contains(err.Error(), "after-set")

	_, err = NewDescriptor("listener").
		OrderAfter("emitter").
		ConnectSignal("emitter", "changed", func(interface{}) {}).
		Build()
	ck.NoError(err)
}
