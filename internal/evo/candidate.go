package evo

import (
	"elfin/internal/team"
)

// Candidate is one individual of a population.
type Candidate struct {
	team   *team.Team
	origin team.Mutation
}

func NewCandidate(t *team.Team) *Candidate {
	return &Candidate{team: t}
}

func (c *Candidate) Team() *team.Team {
	return c.team
}

// Origin is the operator that produced the candidate this generation.
func (c *Candidate) Origin() team.Mutation {
	return c.origin
}

func (c *Candidate) Score() float64 {
	return c.team.Score()
}

func (c *Candidate) Checksum() uint64 {
	return c.team.Checksum()
}

func (c *Candidate) Clone() *Candidate {
	return &Candidate{team: c.team.Clone(), origin: c.origin}
}

// copyFrom overwrites c with a deep copy of o.
func (c *Candidate) copyFrom(o *Candidate) {
	c.team.CopyFrom(o.team)
	c.origin = o.origin
}
