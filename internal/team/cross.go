package team

import (
	"math/rand"
)

// Cross replaces t with mother's prefix spliced onto father's suffix at a
// node both share. Crossing points are pairs (i, j) where mother node i
// and father node j run through the same module chain and the spliced
// length i + len(father) - j is within bounds. Up to MaxMutateFails random
// points are tried; t is left untouched when none synthesizes.
func (t *Team) Cross(rng *rand.Rand, mother, father *Team) (bool, error) {
	points := crossingPoints(t.ctx, mother.nodes, father.nodes)
	if len(points) == 0 {
		return false, nil
	}
	for try := 0; try < MaxMutateFails; try++ {
		p := points[rng.Intn(len(points))]
		nodes := splice(mother.nodes, father.nodes, p[0], p[1])
		ok, err := t.try(nodes)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func crossingPoints(c *Context, mother, father []Node) [][2]int {
	var out [][2]int
	for i, m := range mother {
		for j, f := range father {
			if m.Module != f.Module || m.Chain != f.Chain {
				continue
			}
			if !c.Lengths.Contains(i + len(father) - j) {
				continue
			}
			out = append(out, [2]int{i, j})
		}
	}
	return out
}

// splice keeps mother[0..i] and appends father[j+1..]. Father's node j+1
// keeps its in-link, which docks onto the shared module chain.
func splice(mother, father []Node, i, j int) []Node {
	out := make([]Node, 0, i+len(father)-j)
	out = append(out, mother[:i+1]...)
	return append(out, father[j+1:]...)
}
