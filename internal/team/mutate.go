package team

import (
	"math/rand"
)

// Mutation names the operator that produced a team.
type Mutation int

const (
	MutationNone Mutation = iota
	MutationCross
	MutationPoint
	MutationLimb
	MutationRandomize
)

func (m Mutation) String() string {
	switch m {
	case MutationCross:
		return "cross"
	case MutationPoint:
		return "point"
	case MutationLimb:
		return "limb"
	case MutationRandomize:
		return "randomize"
	default:
		return "none"
	}
}

// Randomize replaces the chain with a freshly grown one of random length
// within the context's bounds. It leaves the team untouched and reports
// false when no attempt reaches the minimum length.
func (t *Team) Randomize(rng *rand.Rand) bool {
	c := t.ctx
	for try := 0; try < MaxMutateFails; try++ {
		nodes, ok := c.topo.seed(c, rng)
		if !ok {
			return false
		}
		nodes, ok = c.topo.complete(c, rng, nodes, c.randomTarget(rng))
		if ok && c.topo.accepts(c, nodes) {
			t.commit(nodes)
			return true
		}
	}
	return false
}

// AutoMutate tries point mutation, then limb mutation, then
// randomization, and reports which one changed the team.
func (t *Team) AutoMutate(rng *rand.Rand) (Mutation, error) {
	ok, err := t.PointMutate(rng)
	if err != nil {
		return MutationNone, err
	}
	if ok {
		return MutationPoint, nil
	}
	ok, err = t.LimbMutate(rng)
	if err != nil {
		return MutationNone, err
	}
	if ok {
		return MutationLimb, nil
	}
	if t.Randomize(rng) {
		return MutationRandomize, nil
	}
	return MutationNone, nil
}

// try synthesizes a candidate node sequence and commits it when it is
// collision free and keeps the topology's fixed ends.
func (t *Team) try(nodes []Node) (bool, error) {
	ok, err := t.ctx.synthesize(nodes)
	if err != nil || !ok {
		return false, err
	}
	if !t.ctx.topo.accepts(t.ctx, nodes) {
		return false, nil
	}
	t.commit(nodes)
	return true, nil
}

// fits is try without the commit.
func (t *Team) fits(nodes []Node) (bool, error) {
	ok, err := t.ctx.synthesize(nodes)
	if err != nil || !ok {
		return false, err
	}
	return t.ctx.topo.accepts(t.ctx, nodes), nil
}
