package evo

import (
	"errors"
	"fmt"
	"math"

	"elfin/internal/team"
)

var ErrBadRates = errors.New("invalid population rates")

// Rates are the fractions that split a population into bands. Survive is a
// fraction of the whole population; Cross, Point and Limb are fractions of
// the non-survivors, applied cumulatively.
type Rates struct {
	Survive float64
	Cross   float64
	Point   float64
	Limb    float64
}

// Cutoffs are band boundaries in a ranked population:
// [0, Survivors) clone, [Survivors, Cross) cross, [Cross, Point) point,
// [Point, Limb) limb and [Limb, Size) randomize.
type Cutoffs struct {
	Size      int
	Survivors int
	Cross     int
	Point     int
	Limb      int
}

func DeriveCutoffs(size int, r Rates) (Cutoffs, error) {
	if size <= 0 {
		return Cutoffs{}, fmt.Errorf("%w: population size must be > 0", ErrBadRates)
	}
	for name, v := range map[string]float64{"survive": r.Survive, "cross": r.Cross, "point": r.Point, "limb": r.Limb} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return Cutoffs{}, fmt.Errorf("%w: %s rate %v outside [0, 1]", ErrBadRates, name, v)
		}
	}

	c := Cutoffs{Size: size}
	c.Survivors = min(max(int(math.Round(r.Survive*float64(size))), 1), size)
	non := float64(size - c.Survivors)
	c.Cross = min(c.Survivors+int(math.Round(r.Cross*non)), size)
	c.Point = min(c.Cross+int(math.Round(r.Point*non)), size)
	c.Limb = min(c.Point+int(math.Round(r.Limb*non)), size)
	return c, nil
}

// Band returns the operator producing slot i.
func (c Cutoffs) Band(i int) team.Mutation {
	switch {
	case i < c.Survivors:
		return team.MutationNone
	case i < c.Cross:
		return team.MutationCross
	case i < c.Point:
		return team.MutationPoint
	case i < c.Limb:
		return team.MutationLimb
	default:
		return team.MutationRandomize
	}
}
