package evo

import (
	"elfin/internal/team"
)

const numMutations = int(team.MutationRandomize) + 1

// MutationCounters tallies operator attempts and failures. A fallback that
// rescues a failed operator counts as an attempt of the fallback.
type MutationCounters struct {
	Attempts [numMutations]int64 `json:"attempts"`
	Failures [numMutations]int64 `json:"failures"`
}

func (c *MutationCounters) record(m team.Mutation, ok bool) {
	c.Attempts[m]++
	if !ok {
		c.Failures[m]++
	}
}

func (c *MutationCounters) Merge(o MutationCounters) {
	for i := range c.Attempts {
		c.Attempts[i] += o.Attempts[i]
		c.Failures[i] += o.Failures[i]
	}
}

func (c MutationCounters) Attempted(m team.Mutation) int64 {
	return c.Attempts[m]
}

func (c MutationCounters) Failed(m team.Mutation) int64 {
	return c.Failures[m]
}

// Map keys the counters by operator name, skipping operators never tried.
func (c MutationCounters) Map() map[string][2]int64 {
	out := make(map[string][2]int64)
	for i := range c.Attempts {
		if c.Attempts[i] == 0 {
			continue
		}
		out[team.Mutation(i).String()] = [2]int64{c.Attempts[i], c.Failures[i]}
	}
	return out
}
