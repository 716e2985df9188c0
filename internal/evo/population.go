package evo

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"elfin/internal/team"
)

var ErrGrowthFailed = errors.New("cannot grow a chain within the length bounds")

// Population holds two candidate buffers. front is the ranked and selected
// previous generation, back the generation being built. Phases write only
// their own slot of back, so workers never share state.
type Population struct {
	ctx      *team.Context
	cutoffs  Cutoffs
	pool     *pool
	selector Selector
	ops      [numMutations]Operator

	front    []*Candidate
	back     []*Candidate
	counters []MutationCounters
}

// NewPopulation allocates both buffers. Operators are resolved from the
// registry by band name.
func NewPopulation(ctx *team.Context, cutoffs Cutoffs, p *pool, selector Selector) (*Population, error) {
	pop := &Population{
		ctx:      ctx,
		cutoffs:  cutoffs,
		pool:     p,
		selector: selector,
		front:    make([]*Candidate, cutoffs.Size),
		back:     make([]*Candidate, cutoffs.Size),
		counters: make([]MutationCounters, p.workers()),
	}
	for _, m := range []team.Mutation{team.MutationCross, team.MutationPoint, team.MutationLimb, team.MutationRandomize} {
		op, err := ResolveOperator(m.String())
		if err != nil {
			return nil, err
		}
		pop.ops[m] = op
	}
	for i := range pop.front {
		pop.front[i] = NewCandidate(team.New(ctx))
		pop.back[i] = NewCandidate(team.New(ctx))
	}
	return pop, nil
}

func (p *Population) Cutoffs() Cutoffs {
	return p.cutoffs
}

// Ranked returns the selected previous generation, best first.
func (p *Population) Ranked() []*Candidate {
	return p.front
}

// Init fills the back buffer with randomly grown chains.
func (p *Population) Init() error {
	p.resetCounters()
	return p.pool.run(len(p.back), func(w int, rng *rand.Rand, i int) error {
		c := p.back[i]
		ok := c.team.Randomize(rng)
		p.counters[w].record(team.MutationRandomize, ok)
		if !ok {
			return fmt.Errorf("%w: work area %s, lengths %+v", ErrGrowthFailed, p.ctx.Area.Name, p.ctx.Lengths)
		}
		c.origin = team.MutationRandomize
		return nil
	})
}

// Evolve builds the back buffer from the front one, each slot by the
// operator of its band. A failed cross falls back to mutating a copy of the
// mother; a failed point or limb mutation falls back to randomization.
func (p *Population) Evolve() error {
	p.resetCounters()
	survivors := p.cutoffs.Survivors
	return p.pool.run(len(p.back), func(w int, rng *rand.Rand, i int) error {
		dst := p.back[i]
		band := p.cutoffs.Band(i)
		if band == team.MutationNone {
			dst.copyFrom(p.front[i])
			dst.origin = team.MutationNone
			return nil
		}
		counters := &p.counters[w]

		var mother, father *Candidate
		var err error
		switch band {
		case team.MutationCross:
			mix := MixedSelector{WholeGeneration: 0.5}
			if mother, err = mix.PickParent(rng, p.front, survivors); err != nil {
				return err
			}
			if father, err = mix.PickParent(rng, p.front, survivors); err != nil {
				return err
			}
		default:
			if mother, err = p.selector.PickParent(rng, p.front, survivors); err != nil {
				return err
			}
			father = mother
		}
		dst.copyFrom(mother)

		ok, err := p.ops[band].Apply(rng, dst.team, mother.team, father.team)
		if err != nil {
			return err
		}
		counters.record(band, ok)
		if ok {
			dst.origin = band
			return nil
		}

		switch band {
		case team.MutationCross:
			m, err := dst.team.AutoMutate(rng)
			if err != nil {
				return err
			}
			if m != team.MutationNone {
				counters.record(m, true)
			}
			dst.origin = m
		case team.MutationPoint, team.MutationLimb:
			ok := dst.team.Randomize(rng)
			counters.record(team.MutationRandomize, ok)
			if ok {
				dst.origin = team.MutationRandomize
			} else {
				dst.origin = team.MutationNone
			}
		default:
			// randomize failed; dst stays a copy of its survivor parent
			dst.origin = team.MutationNone
		}
		return nil
	})
}

// Score evaluates every candidate of the back buffer.
func (p *Population) Score() error {
	return p.pool.run(len(p.back), func(_ int, _ *rand.Rand, i int) error {
		if err := p.back[i].team.Evaluate(); err != nil {
			return fmt.Errorf("%w: candidate %d: %w", ErrInvariantViolation, i, err)
		}
		return nil
	})
}

// Rank sorts the back buffer by ascending score. Ties keep slot order.
func (p *Population) Rank() {
	sort.SliceStable(p.back, func(i, j int) bool {
		return p.back[i].Score() < p.back[j].Score()
	})
}

// Select moves the first occurrence of each distinct checksum to the front,
// in rank order, until there are as many as survivors. The remaining
// candidates follow in rank order. It returns the number of distinct
// checksums in the buffer.
func (p *Population) Select() int {
	seen := make(map[uint64]struct{}, len(p.back))
	unique := make([]*Candidate, 0, p.cutoffs.Survivors)
	rest := make([]*Candidate, 0, len(p.back))
	for _, c := range p.back {
		sum := c.Checksum()
		_, dup := seen[sum]
		seen[sum] = struct{}{}
		if !dup && len(unique) < p.cutoffs.Survivors {
			unique = append(unique, c)
			continue
		}
		rest = append(rest, c)
	}
	n := copy(p.back, unique)
	copy(p.back[n:], rest)
	return len(seen)
}

// Swap makes the back buffer the new ranked generation.
func (p *Population) Swap() {
	p.front, p.back = p.back, p.front
}

// Counters merges the per-worker counters of the latest phase.
func (p *Population) Counters() MutationCounters {
	var out MutationCounters
	for _, c := range p.counters {
		out.Merge(c)
	}
	return out
}

func (p *Population) resetCounters() {
	for i := range p.counters {
		p.counters[i] = MutationCounters{}
	}
}
