package team

import (
	"math/rand"
	"slices"
)

// LimbMutate cuts the chain at a random sever point and regrows the cut
// side from scratch. It retries up to MaxMutateFails sever points and
// leaves the team untouched when none regrows to the minimum length.
func (t *Team) LimbMutate(rng *rand.Rand) (bool, error) {
	c := t.ctx
	n := len(t.nodes)
	if n == 0 {
		return false, ErrEmptyTeam
	}
	for try := 0; try < MaxMutateFails; try++ {
		idx, left, ok := t.severPoint(rng)
		if !ok {
			continue
		}
		// regrow at least one node
		target := c.randomTarget(rng)
		var nodes []Node
		if left {
			target = max(target, n-idx+1)
			if target > c.Lengths.Max {
				continue
			}
			kept := slices.Clone(t.nodes[idx:])
			kept[0].InLink = -1
			nodes = c.growHead(rng, kept, target)
			if len(nodes) <= len(kept) {
				continue
			}
			normalize(nodes)
		} else {
			target = max(target, idx+2)
			if target > c.Lengths.Max {
				continue
			}
			nodes, ok = c.topo.complete(c, rng, slices.Clone(t.nodes[:idx+1]), target)
			if !ok || len(nodes) <= idx+1 {
				continue
			}
		}
		if len(nodes) < c.Lengths.Min || !c.topo.accepts(c, nodes) {
			continue
		}
		t.commit(nodes)
		return true, nil
	}
	return false, nil
}

// severPoint draws an interior node and the side to cut off. A node whose
// module has a single N link and a single C link cannot be severed since
// regrowing either side reproduces the same neighbour. Otherwise a side
// the module has only one link on is avoided.
func (t *Team) severPoint(rng *rand.Rand) (idx int, left bool, ok bool) {
	n := len(t.nodes)
	if n > 2 {
		idx = 1 + rng.Intn(n-2)
	} else {
		idx = rng.Intn(n)
	}
	leftOK, rightOK := t.ctx.topo.sides(n, idx)
	counts := t.ctx.module(t.nodes[idx]).Counts
	if counts.NLinks == 1 && counts.CLinks == 1 {
		return 0, false, false
	}
	leftOK = leftOK && counts.NLinks > 0
	rightOK = rightOK && counts.CLinks > 0

	switch {
	case leftOK && rightOK:
		switch {
		case counts.NLinks == 1:
			return idx, false, true
		case counts.CLinks == 1:
			return idx, true, true
		default:
			return idx, rng.Intn(2) == 0, true
		}
	case leftOK:
		return idx, true, true
	case rightOK:
		return idx, false, true
	default:
		return 0, false, false
	}
}
