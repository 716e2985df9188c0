package evo

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ranked(n int) []*Candidate {
	out := make([]*Candidate, n)
	for i := range out {
		out[i] = &Candidate{}
	}
	return out
}

func TestSurvivorSelectorStaysInElite(t *testing.T) {
	pop := ranked(20)
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		got, err := SurvivorSelector{}.PickParent(rng, pop, 5)
		require.NoError(t, err)
		idx := indexOf(pop, got)
		require.True(t, idx >= 0 && idx < 5, "picked non-survivor index %d", idx)
	}
}

func TestMixedSelectorReachesWholeGeneration(t *testing.T) {
	pop := ranked(20)
	rng := rand.New(rand.NewSource(42))
	outside := 0
	for i := 0; i < 400; i++ {
		got, err := MixedSelector{WholeGeneration: 0.5}.PickParent(rng, pop, 5)
		require.NoError(t, err)
		if indexOf(pop, got) >= 5 {
			outside++
		}
	}
	// about 0.5 * 15/20 of the draws land outside the survivors
	assert.GreaterOrEqual(t, outside, 100)
	assert.LessOrEqual(t, outside, 200)
}

func TestSelectorsRejectBadInput(t *testing.T) {
	pop := ranked(3)
	rng := rand.New(rand.NewSource(1))
	for _, s := range []Selector{SurvivorSelector{}, MixedSelector{}} {
		_, err := s.PickParent(nil, pop, 1)
		assert.Error(t, err, "%s: nil rng", s.Name())
		_, err = s.PickParent(rng, pop, 0)
		assert.Error(t, err, "%s: zero survivors", s.Name())
		_, err = s.PickParent(rng, pop, 4)
		assert.Error(t, err, "%s: oversized survivors", s.Name())
	}
}

func indexOf(pop []*Candidate, c *Candidate) int {
	for i, p := range pop {
		if p == c {
			return i
		}
	}
	return -1
}
