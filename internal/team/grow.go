package team

import (
	"math/rand"

	"elfin/internal/geom"
	"elfin/internal/xdb"
)

// synthesize places nodes in order, head first. The head goes to the
// topology's origin and each later node to its predecessor's transform
// composed with its in-link. It reports false on the first collision and
// an error when a link does not join its two nodes.
func (c *Context) synthesize(nodes []Node) (bool, error) {
	if len(nodes) == 0 {
		return false, nil
	}
	if _, ok := c.DB.Lookup(nodes[0].Module); !ok {
		return false, &GraphError{From: "<origin>", To: c.DB.ModuleName(nodes[0].Module), Link: -1}
	}
	nodes[0].Tx = c.topo.origin(c)
	for i := 1; i < len(nodes); i++ {
		if err := c.checkLink(nodes[i-1], nodes[i]); err != nil {
			return false, err
		}
		nodes[i].Tx = nodes[i-1].Tx.Mul(c.link(nodes[i].InLink).Tx)
		if c.collides(nodes[:i], nodes[i], i-1) {
			return false, nil
		}
	}
	return true, nil
}

func (c *Context) checkLink(prev, next Node) error {
	l, ok := c.DB.Link(next.InLink)
	if !ok || !l.Forward() ||
		l.Src != (xdb.TermRef{Module: prev.Module, Chain: prev.Chain, Term: xdb.TermC}) ||
		l.Dst != (xdb.TermRef{Module: next.Module, Chain: next.Chain, Term: xdb.TermN}) {
		return &GraphError{
			From: c.DB.ModuleName(prev.Module),
			To:   c.DB.ModuleName(next.Module),
			Link: next.InLink,
		}
	}
	return nil
}

// collides reports whether n overlaps any of placed other than the node at
// index bonded, which n docks onto.
func (c *Context) collides(placed []Node, n Node, bonded int) bool {
	rn := c.module(n).Radius
	at := n.Tx.Center()
	for j := range placed {
		if j == bonded {
			continue
		}
		r := rn + c.module(placed[j]).Radius
		if geom.SqDist(at, placed[j].Tx.Center()) < r*r {
			return true
		}
	}
	return false
}

type growChoice struct {
	node   Node
	link   int
	weight int
}

// roulette picks a choice with probability proportional to its weight.
func roulette(rng *rand.Rand, choices []growChoice) (growChoice, bool) {
	total := 0
	for _, ch := range choices {
		total += ch.weight
	}
	if total == 0 {
		return growChoice{}, false
	}
	x := rng.Intn(total)
	for _, ch := range choices {
		if x < ch.weight {
			return ch, true
		}
		x -= ch.weight
	}
	return choices[len(choices)-1], true
}

// tailChoices lists the non-colliding placements after the tail of nodes,
// weighted by how many links leave the new node onward.
func (c *Context) tailChoices(nodes []Node, buf []growChoice) []growChoice {
	buf = buf[:0]
	tip := nodes[len(nodes)-1]
	for _, id := range c.outOf(tip) {
		n := c.entered(id)
		n.Tx = tip.Tx.Mul(c.link(id).Tx)
		if c.collides(nodes, n, len(nodes)-1) {
			continue
		}
		buf = append(buf, growChoice{node: n, link: id, weight: len(c.outOf(n))})
	}
	return buf
}

// headChoices lists the non-colliding placements before the head.
func (c *Context) headChoices(nodes []Node, buf []growChoice) []growChoice {
	buf = buf[:0]
	head := nodes[0]
	for _, id := range c.inOf(head) {
		l := c.link(id)
		n := Node{Module: l.Dst.Module, Chain: l.Dst.Chain, InLink: -1, Tx: head.Tx.Mul(l.Tx)}
		if c.collides(nodes, n, 0) {
			continue
		}
		buf = append(buf, growChoice{node: n, link: l.Reverse, weight: len(c.inOf(n))})
	}
	return buf
}

// growTail appends random nodes until nodes reaches target length or no
// placement is possible. Only the new nodes are placed.
func (c *Context) growTail(rng *rand.Rand, nodes []Node, target int) []Node {
	var buf []growChoice
	for len(nodes) < target {
		buf = c.tailChoices(nodes, buf)
		ch, ok := roulette(rng, buf)
		if !ok {
			break
		}
		nodes = append(nodes, ch.node)
	}
	return nodes
}

// growHead prepends random nodes until nodes reaches target length or no
// placement is possible.
func (c *Context) growHead(rng *rand.Rand, nodes []Node, target int) []Node {
	var buf []growChoice
	for len(nodes) < target {
		buf = c.headChoices(nodes, buf)
		ch, ok := roulette(rng, buf)
		if !ok {
			break
		}
		nodes[0].InLink = ch.link
		nodes = append([]Node{ch.node}, nodes...)
	}
	return nodes
}

// closeOnto finishes a chain by docking the far anchor onto its tail,
// dropping tail nodes until a non-colliding dock exists. The result has
// at least `least` nodes or ok is false.
func (c *Context) closeOnto(rng *rand.Rand, nodes []Node, a *anchorNode, least int) ([]Node, bool) {
	for k := len(nodes); k >= 1 && k+1 >= least; k-- {
		prefix := nodes[:k]
		tip := prefix[k-1]
		var docks []Node
		for _, id := range c.outOf(tip) {
			n := c.entered(id)
			if !a.matches(n) {
				continue
			}
			n.Tx = tip.Tx.Mul(c.link(id).Tx)
			if c.collides(prefix, n, k-1) {
				continue
			}
			docks = append(docks, n)
		}
		if len(docks) > 0 {
			out := make([]Node, k, k+1)
			copy(out, prefix)
			return append(out, docks[rng.Intn(len(docks))]), true
		}
	}
	return nil, false
}

// normalize moves the chain rigidly so the head sits at the identity.
func normalize(nodes []Node) {
	if len(nodes) == 0 {
		return
	}
	inv := nodes[0].Tx.Inverse()
	for i := range nodes {
		nodes[i].Tx = inv.Mul(nodes[i].Tx)
	}
	nodes[0].Tx = geom.Identity()
}

// pickHead draws a head node for a free chain, each module chain weighted
// by the number of links leaving its C terminus.
func (c *Context) pickHead(rng *rand.Rand) (Node, bool) {
	pool := c.DB.HeadPool()
	if len(pool) == 0 {
		return Node{}, false
	}
	m := c.DB.Module(pool[rng.Intn(len(pool))])
	x := rng.Intn(m.Counts.CLinks)
	for i, ch := range m.Chains {
		if x < len(ch.C.Links) {
			return Node{Module: m.ID, Chain: i, InLink: -1, Tx: geom.Identity()}, true
		}
		x -= len(ch.C.Links)
	}
	return Node{}, false
}

// randomTarget draws a chain length within the bounds.
func (c *Context) randomTarget(rng *rand.Rand) int {
	return c.Lengths.Min + rng.Intn(c.Lengths.Max-c.Lengths.Min+1)
}
