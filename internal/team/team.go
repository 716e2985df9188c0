package team

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"elfin/internal/geom"
)

var ErrEmptyTeam = errors.New("team has no nodes")

// Node is one placed module. Chain is the module chain the path runs
// through and InLink the forward proto-link docking the previous node onto
// this one, -1 for the head.
type Node struct {
	Module int
	Chain  int
	InLink int
	Tx     geom.Transform
}

// Team is one candidate chain. It is not safe for concurrent mutation.
type Team struct {
	ctx   *Context
	nodes []Node

	checksum uint64
	hasSum   bool
	score    float64
	hasScore bool
}

func New(ctx *Context) *Team {
	return &Team{ctx: ctx}
}

// FromNodes validates nodes and returns a team holding a copy of them.
// A collision is reported as an error here since the caller asserted the
// chain is valid.
func FromNodes(ctx *Context, nodes []Node) (*Team, error) {
	t := New(ctx)
	nodes = slices.Clone(nodes)
	ok, err := ctx.synthesize(nodes)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("chain collides")
	}
	if !ctx.topo.accepts(ctx, nodes) {
		return nil, fmt.Errorf("chain does not satisfy %s topology", ctx.topo.kind())
	}
	t.commit(nodes)
	return t, nil
}

// FromModules builds a team from module names, docking each pair through
// the first link the graph offers.
func FromModules(ctx *Context, names ...string) (*Team, error) {
	nodes := make([]Node, 0, len(names))
	for i, name := range names {
		id, ok := ctx.DB.ModuleID(name)
		if !ok {
			return nil, fmt.Errorf("unknown module %s", name)
		}
		if i == 0 {
			n := Node{Module: id, InLink: -1}
			if ctx.first != nil {
				n.Chain = ctx.first.chain
			}
			nodes = append(nodes, n)
			continue
		}
		prev := nodes[i-1]
		linked := false
		for _, l := range ctx.outOf(prev) {
			if ctx.link(l).Dst.Module == id {
				nodes = append(nodes, ctx.entered(l))
				linked = true
				break
			}
		}
		if !linked {
			return nil, &GraphError{From: ctx.DB.ModuleName(prev.Module), To: name, Link: -1}
		}
	}
	return FromNodes(ctx, nodes)
}

func (t *Team) Context() *Context {
	return t.ctx
}

func (t *Team) Len() int {
	return len(t.nodes)
}

// Nodes returns the placed nodes. Callers must not modify them.
func (t *Team) Nodes() []Node {
	return t.nodes
}

// Clone returns a deep copy sharing only the immutable context.
func (t *Team) Clone() *Team {
	c := *t
	c.nodes = slices.Clone(t.nodes)
	return &c
}

// CopyFrom overwrites t with a deep copy of o, reusing t's storage.
func (t *Team) CopyFrom(o *Team) {
	nodes := append(t.nodes[:0], o.nodes...)
	*t = *o
	t.nodes = nodes
}

// ModuleNames lists node module names from head to tail.
func (t *Team) ModuleNames() []string {
	out := make([]string, len(t.nodes))
	for i, n := range t.nodes {
		out[i] = t.ctx.DB.ModuleName(n.Module)
	}
	return out
}

// Centers lists placed module centers from head to tail.
func (t *Team) Centers() []r3.Vec {
	return centers(t.nodes)
}

func centers(nodes []Node) []r3.Vec {
	out := make([]r3.Vec, len(nodes))
	for i, n := range nodes {
		out[i] = n.Tx.Center()
	}
	return out
}

// Checksum identifies the chain's module and link sequence.
func (t *Team) Checksum() uint64 {
	if !t.hasSum {
		t.checksum = t.ctx.topo.checksum(t.ctx, t.nodes)
		t.hasSum = true
	}
	return t.checksum
}

// Evaluate scores the team against the work area and caches the result.
func (t *Team) Evaluate() error {
	if len(t.nodes) == 0 {
		return ErrEmptyTeam
	}
	s, err := t.ctx.topo.score(t.ctx, t.nodes)
	if err != nil {
		return err
	}
	t.score = s
	t.hasScore = true
	return nil
}

// Score returns the cached score, +Inf until Evaluate has run.
func (t *Team) Score() float64 {
	if !t.hasScore {
		return math.Inf(1)
	}
	return t.score
}

// Validate re-synthesizes the chain from its link sequence and checks that
// it places every node where it already is without collisions.
func (t *Team) Validate() error {
	if len(t.nodes) == 0 {
		return ErrEmptyTeam
	}
	if head := t.nodes[0]; head.InLink != -1 {
		return fmt.Errorf("head %s has in-link %d", t.ctx.DB.ModuleName(head.Module), head.InLink)
	}
	again := slices.Clone(t.nodes)
	ok, err := t.ctx.synthesize(again)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("chain collides")
	}
	for i := range again {
		if !again[i].Tx.ApproxEqual(t.nodes[i].Tx, geom.Tolerance) {
			return fmt.Errorf("node %d placement drifted", i)
		}
	}
	if !t.ctx.topo.accepts(t.ctx, t.nodes) {
		return fmt.Errorf("chain does not satisfy %s topology", t.ctx.topo.kind())
	}
	return nil
}

// commit replaces the node sequence and drops cached values.
func (t *Team) commit(nodes []Node) {
	t.nodes = nodes
	t.hasSum = false
	t.hasScore = false
}
