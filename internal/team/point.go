package team

import (
	"math/rand"
	"slices"
)

type pointMode int

const (
	modeSwap pointMode = iota
	modeInsert
	modeDelete
)

// pointEdit describes one single-node change. node is the swapped in or
// inserted node and next the in-link the node after pos ends up with.
type pointEdit struct {
	mode pointMode
	pos  int
	node Node
	next int
}

// PointMutate swaps, inserts or deletes one node. The three modes are tried
// in random order as independent trials; the first mode with at least one
// valid edit wins and one of its valid edits is committed at random.
func (t *Team) PointMutate(rng *rand.Rand) (bool, error) {
	modes := []pointMode{modeSwap, modeInsert, modeDelete}
	rng.Shuffle(len(modes), func(i, j int) { modes[i], modes[j] = modes[j], modes[i] })

	for _, m := range modes {
		var valid []pointEdit
		for _, e := range t.pointEdits(m) {
			ok, err := t.fits(e.apply(t.nodes))
			if err != nil {
				return false, err
			}
			if ok {
				valid = append(valid, e)
			}
		}
		if len(valid) == 0 {
			continue
		}
		e := valid[rng.Intn(len(valid))]
		return t.try(e.apply(t.nodes))
	}
	return false, nil
}

// pointEdits enumerates the edits of one mode that the module graph allows,
// before any collision check.
func (t *Team) pointEdits(mode pointMode) []pointEdit {
	c := t.ctx
	nodes := t.nodes
	n := len(nodes)
	lo, hi := c.topo.editRange(n)
	var out []pointEdit

	switch mode {
	case modeSwap:
		for i := lo; i < hi; i++ {
			cur := nodes[i]
			switch {
			case n == 1:
				for _, m := range c.DB.Modules() {
					for ch := range m.Chains {
						if m.ID == cur.Module && ch == cur.Chain {
							continue
						}
						out = append(out, pointEdit{mode: mode, pos: i, node: Node{Module: m.ID, Chain: ch, InLink: -1}, next: -1})
					}
				}
			case i == 0:
				next := nodes[1]
				for _, r := range c.inOf(next) {
					rl := c.link(r)
					if rl.Reverse == next.InLink {
						continue
					}
					head := Node{Module: rl.Dst.Module, Chain: rl.Dst.Chain, InLink: -1}
					out = append(out, pointEdit{mode: mode, pos: i, node: head, next: rl.Reverse})
				}
			case i == n-1:
				for _, l := range c.outOf(nodes[i-1]) {
					if l == cur.InLink {
						continue
					}
					out = append(out, pointEdit{mode: mode, pos: i, node: c.entered(l), next: -1})
				}
			default:
				next := nodes[i+1]
				for _, pair := range c.bridges(nodes[i-1], next) {
					if pair[0] == cur.InLink && pair[1] == next.InLink {
						continue
					}
					out = append(out, pointEdit{mode: mode, pos: i, node: c.entered(pair[0]), next: pair[1]})
				}
			}
		}

	case modeInsert:
		if n+1 > c.Lengths.Max {
			return nil
		}
		for p := lo; p <= hi; p++ {
			switch {
			case p == 0:
				for _, r := range c.inOf(nodes[0]) {
					rl := c.link(r)
					head := Node{Module: rl.Dst.Module, Chain: rl.Dst.Chain, InLink: -1}
					out = append(out, pointEdit{mode: mode, pos: p, node: head, next: rl.Reverse})
				}
			case p == n:
				for _, l := range c.outOf(nodes[n-1]) {
					out = append(out, pointEdit{mode: mode, pos: p, node: c.entered(l), next: -1})
				}
			default:
				for _, pair := range c.bridges(nodes[p-1], nodes[p]) {
					out = append(out, pointEdit{mode: mode, pos: p, node: c.entered(pair[0]), next: pair[1]})
				}
			}
		}

	case modeDelete:
		if n-1 < c.Lengths.Min || n < 2 {
			return nil
		}
		for i := lo; i < hi; i++ {
			switch {
			case i == 0 || i == n-1:
				out = append(out, pointEdit{mode: mode, pos: i, next: -1})
			default:
				next := nodes[i+1]
				for _, l := range c.outOf(nodes[i-1]) {
					dst := c.link(l).Dst
					if dst.Module == next.Module && dst.Chain == next.Chain {
						out = append(out, pointEdit{mode: mode, pos: i, next: l})
					}
				}
			}
		}
	}
	return out
}

// bridges lists (in, out) link pairs that fit one new node between prev
// and next.
func (c *Context) bridges(prev, next Node) [][2]int {
	var out [][2]int
	for _, l := range c.outOf(prev) {
		mid := c.entered(l)
		for _, r := range c.outOf(mid) {
			dst := c.link(r).Dst
			if dst.Module == next.Module && dst.Chain == next.Chain {
				out = append(out, [2]int{l, r})
			}
		}
	}
	return out
}

// apply returns a new unplaced node sequence with the edit made.
func (e pointEdit) apply(nodes []Node) []Node {
	n := len(nodes)
	switch e.mode {
	case modeSwap:
		out := slices.Clone(nodes)
		out[e.pos] = e.node
		if e.pos+1 < n {
			out[e.pos+1].InLink = e.next
		}
		return out
	case modeInsert:
		out := make([]Node, 0, n+1)
		out = append(out, nodes[:e.pos]...)
		out = append(out, e.node)
		out = append(out, nodes[e.pos:]...)
		if e.pos < n {
			out[e.pos+1].InLink = e.next
		}
		return out
	default:
		out := make([]Node, 0, n-1)
		out = append(out, nodes[:e.pos]...)
		out = append(out, nodes[e.pos+1:]...)
		switch {
		case e.pos == 0:
			out[0].InLink = -1
		case e.pos < len(out):
			out[e.pos].InLink = e.next
		}
		return out
	}
}
