package evo

import (
	"fmt"
	"math/rand"
)

// Selector draws a parent from the ranked, selected previous generation.
// The first survivors entries are the distinct elite.
type Selector interface {
	Name() string
	PickParent(rng *rand.Rand, ranked []*Candidate, survivors int) (*Candidate, error)
}

// SurvivorSelector picks uniformly among the survivors.
type SurvivorSelector struct{}

func (SurvivorSelector) Name() string {
	return "survivor"
}

func (SurvivorSelector) PickParent(rng *rand.Rand, ranked []*Candidate, survivors int) (*Candidate, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if survivors <= 0 || survivors > len(ranked) {
		return nil, fmt.Errorf("invalid survivor count: %d", survivors)
	}
	return ranked[rng.Intn(survivors)], nil
}

// MixedSelector picks among the survivors or, with probability
// WholeGeneration, uniformly from the whole previous generation.
type MixedSelector struct {
	WholeGeneration float64
}

func (MixedSelector) Name() string {
	return "mixed"
}

func (s MixedSelector) PickParent(rng *rand.Rand, ranked []*Candidate, survivors int) (*Candidate, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if survivors <= 0 || survivors > len(ranked) {
		return nil, fmt.Errorf("invalid survivor count: %d", survivors)
	}
	if rng.Float64() < s.WholeGeneration {
		return ranked[rng.Intn(len(ranked))], nil
	}
	return ranked[rng.Intn(survivors)], nil
}
