package evo

import (
	"sync"

	"elfin/internal/geom"
	"elfin/internal/team"
)

// SolutionNode is one placed module of a solution.
type SolutionNode struct {
	Module string         `json:"module"`
	Tx     geom.Transform `json:"-"`
	Matrix [4][4]float64  `json:"matrix"`
}

// Solution is a design result detached from any population.
type Solution struct {
	Area     string         `json:"work_area"`
	Modules  []string       `json:"modules"`
	Nodes    []SolutionNode `json:"nodes"`
	Score    float64        `json:"score"`
	Checksum uint64         `json:"checksum"`
}

// NewSolution copies everything it needs out of t.
func NewSolution(area string, t *team.Team) Solution {
	s := Solution{
		Area:     area,
		Modules:  t.ModuleNames(),
		Score:    t.Score(),
		Checksum: t.Checksum(),
	}
	for i, n := range t.Nodes() {
		s.Nodes = append(s.Nodes, SolutionNode{Module: s.Modules[i], Tx: n.Tx, Matrix: n.Tx.Matrix()})
	}
	return s
}

// Snapshot keeps the best solutions of every work area. Entries are
// replaced wholesale after each Select, so readers never observe a
// population mid-generation.
type Snapshot struct {
	mu    sync.RWMutex
	areas map[string][]Solution
}

func NewSnapshot() *Snapshot {
	return &Snapshot{areas: make(map[string][]Solution)}
}

func (s *Snapshot) set(area string, best []Solution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.areas[area] = best
}

// Get returns a copy of the solutions of area.
func (s *Snapshot) Get(area string) []Solution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSolutions(s.areas[area])
}

// All returns a copy of every work area's solutions.
func (s *Snapshot) All() map[string][]Solution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]Solution, len(s.areas))
	for k, v := range s.areas {
		out[k] = cloneSolutions(v)
	}
	return out
}

func cloneSolutions(in []Solution) []Solution {
	if in == nil {
		return nil
	}
	out := make([]Solution, len(in))
	for i, s := range in {
		s.Modules = append([]string(nil), s.Modules...)
		s.Nodes = append([]SolutionNode(nil), s.Nodes...)
		out[i] = s
	}
	return out
}
