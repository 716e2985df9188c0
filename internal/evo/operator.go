package evo

import (
	"math/rand"

	"elfin/internal/team"
)

// Operator rebuilds dst from its parents. dst arrives as a copy of mother;
// Apply reports false when it could not produce a valid chain, in which
// case dst is left as it was.
type Operator interface {
	Name() string
	Apply(rng *rand.Rand, dst, mother, father *team.Team) (bool, error)
}

type CrossOperator struct{}

func (CrossOperator) Name() string { return team.MutationCross.String() }

func (CrossOperator) Apply(rng *rand.Rand, dst, mother, father *team.Team) (bool, error) {
	return dst.Cross(rng, mother, father)
}

type PointOperator struct{}

func (PointOperator) Name() string { return team.MutationPoint.String() }

func (PointOperator) Apply(rng *rand.Rand, dst, _, _ *team.Team) (bool, error) {
	return dst.PointMutate(rng)
}

type LimbOperator struct{}

func (LimbOperator) Name() string { return team.MutationLimb.String() }

func (LimbOperator) Apply(rng *rand.Rand, dst, _, _ *team.Team) (bool, error) {
	return dst.LimbMutate(rng)
}

type RandomizeOperator struct{}

func (RandomizeOperator) Name() string { return team.MutationRandomize.String() }

func (RandomizeOperator) Apply(rng *rand.Rand, dst, _, _ *team.Team) (bool, error) {
	return dst.Randomize(rng), nil
}
