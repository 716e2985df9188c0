// Package team grows, mutates and scores chains of placed modules.
//
// A Team is one candidate design: an ordered run of nodes, each a module
// placed by composing proto-link transforms from the head. Every Team of a
// work area shares one immutable Context carrying the module graph, the
// target shape and the topology rules.
package team

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"elfin/internal/workarea"
	"elfin/internal/xdb"
)

// MaxMutateFails bounds the retries of every randomized operator.
const MaxMutateFails = 10

var ErrBadLengths = errors.New("invalid length bounds")

// GraphError reports a link the module graph does not provide. It means
// the chain and the database disagree and is never recoverable.
type GraphError struct {
	From string
	To   string
	Link int
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("no proto-link %d from %s to %s", e.Link, e.From, e.To)
}

// Lengths bounds the node count of a chain.
type Lengths struct {
	Min      int
	Expected int
	Max      int
}

// DeriveLengths estimates the chain length covering pathLength when
// consecutive modules sit avgPairDist apart, allowing dev nodes of slack
// on either side. floor is the smallest length the topology can express.
func DeriveLengths(pathLength, avgPairDist float64, dev, floor int) (Lengths, error) {
	if avgPairDist <= 0 || dev < 0 {
		return Lengths{}, fmt.Errorf("%w: avg pair distance %v, deviation %d", ErrBadLengths, avgPairDist, dev)
	}
	exp := 1 + int(math.Round(pathLength/avgPairDist))
	l := Lengths{
		Expected: exp,
		Min:      max(exp-dev, floor, 1),
		Max:      exp + dev,
	}
	l.Max = max(l.Max, l.Min)
	return l, nil
}

func (l Lengths) Contains(n int) bool {
	return n >= l.Min && n <= l.Max
}

// anchorNode is a resolved work area anchor.
type anchorNode struct {
	name  string
	node  Node
	chain int // -1 accepts any chain
}

// Context is the read-only state shared by all teams of one work area.
type Context struct {
	DB      *xdb.Database
	Area    *workarea.WorkArea
	Lengths Lengths

	topo      topology
	reference []r3.Vec
	first     *anchorNode
	last      *anchorNode
}

// NewContext resolves the work area against db and derives length bounds.
func NewContext(db *xdb.Database, area *workarea.WorkArea, lenDev int, avgPairDist float64) (*Context, error) {
	c := &Context{DB: db, Area: area}

	switch area.Kind {
	case workarea.KindFree, "":
		c.topo = freeTopology{}
		c.reference = area.Points
	case workarea.KindHinge, workarea.KindDoubleHinge:
		p, ok := area.Primary()
		if !ok {
			return nil, fmt.Errorf("work area %s: %w", area.Name, workarea.ErrAnchorCount)
		}
		a, err := resolveAnchor(db, p)
		if err != nil {
			return nil, fmt.Errorf("work area %s: %w", area.Name, err)
		}
		if a.chain < 0 {
			a.chain = 0
		}
		a.node.Chain = a.chain
		c.first = a
		c.reference = area.Reading(p)
		c.topo = hingeTopology{}

		if area.Kind == workarea.KindDoubleHinge {
			s, ok := area.Secondary()
			if !ok {
				return nil, fmt.Errorf("work area %s: %w", area.Name, workarea.ErrAnchorCount)
			}
			b, err := resolveAnchor(db, s)
			if err != nil {
				return nil, fmt.Errorf("work area %s: %w", area.Name, err)
			}
			c.last = b
			c.topo = doubleHingeTopology{}
		}
	default:
		return nil, fmt.Errorf("work area %s: unknown kind %q", area.Name, area.Kind)
	}

	l, err := DeriveLengths(area.PathLength(), avgPairDist, lenDev, c.topo.minLen())
	if err != nil {
		return nil, err
	}
	c.Lengths = l
	return c, nil
}

func resolveAnchor(db *xdb.Database, a workarea.Anchor) (*anchorNode, error) {
	id, ok := db.ModuleID(a.Module)
	if !ok {
		return nil, fmt.Errorf("anchor %s: %w: %s", a.Name, xdb.ErrUnknownModule, a.Module)
	}
	an := &anchorNode{name: a.Name, node: Node{Module: id, InLink: -1, Tx: a.Tx}, chain: -1}
	if a.Chain != "" {
		m := db.Module(id)
		for i, ch := range m.Chains {
			if ch.Name == a.Chain {
				an.chain = i
			}
		}
		if an.chain < 0 {
			return nil, fmt.Errorf("anchor %s: %w: %s.%s", a.Name, xdb.ErrUnknownChain, a.Module, a.Chain)
		}
	}
	return an, nil
}

// Kind reports the topology teams of this context follow.
func (c *Context) Kind() workarea.Kind {
	return c.topo.kind()
}

// Reference is the target path teams are scored against.
func (c *Context) Reference() []r3.Vec {
	return c.reference
}

func (c *Context) module(n Node) *xdb.Module {
	return c.DB.Module(n.Module)
}

// outOf lists the forward links leaving the C terminus n runs through.
func (c *Context) outOf(n Node) []int {
	return c.module(n).Chains[n.Chain].C.Links
}

// inOf lists the reverse links leaving the N terminus n runs through.
func (c *Context) inOf(n Node) []int {
	return c.module(n).Chains[n.Chain].N.Links
}

func (c *Context) link(id int) *xdb.ProtoLink {
	l, _ := c.DB.Link(id)
	return l
}

// entered returns the node a link docks onto, without a transform.
func (c *Context) entered(linkID int) Node {
	l := c.link(linkID)
	return Node{Module: l.Dst.Module, Chain: l.Dst.Chain, InLink: linkID}
}

// matches reports whether n runs through the module and chain of a.
func (a *anchorNode) matches(n Node) bool {
	return n.Module == a.node.Module && (a.chain < 0 || n.Chain == a.chain)
}
