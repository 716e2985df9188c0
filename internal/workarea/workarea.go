// Package workarea describes the target shapes a run designs chains for.
package workarea

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"elfin/internal/geom"
)

var (
	ErrDuplicateArea = errors.New("duplicate work area")
	ErrAnchorCount   = errors.New("wrong number of anchors for work area type")
	ErrUnknownArea   = errors.New("unknown work area")
)

// Kind is the topology of the chain designed for a work area.
type Kind string

const (
	KindFree        Kind = "free"
	KindHinge       Kind = "hinge"
	KindDoubleHinge Kind = "double_hinge"
)

// Anchors returns how many fixed anchors the kind requires.
func (k Kind) Anchors() int {
	switch k {
	case KindHinge:
		return 1
	case KindDoubleHinge:
		return 2
	default:
		return 0
	}
}

// End says which end of the reference path an anchor sits on.
type End string

const (
	EndStart End = "start"
	EndEnd   End = "end"
)

// Anchor is a fixed, already placed module the chain has to dock onto.
// Chain names the module chain the path runs through; empty means the
// module's first chain.
type Anchor struct {
	Name   string
	Module string
	Chain  string
	End    End
	Tx     geom.Transform
}

type WorkArea struct {
	Name    string
	Kind    Kind
	Points  []r3.Vec
	Anchors []Anchor
}

// Reading returns the reference path as seen when walking away from the
// anchor's end of the path. The returned slice is a copy.
func (w *WorkArea) Reading(a Anchor) []r3.Vec {
	pts := slices.Clone(w.Points)
	if a.End == EndEnd {
		slices.Reverse(pts)
	}
	return pts
}

// Primary returns the anchor growth starts from. For a double hinge this is
// the anchor on the start end.
func (w *WorkArea) Primary() (Anchor, bool) {
	if len(w.Anchors) == 0 {
		return Anchor{}, false
	}
	for _, a := range w.Anchors {
		if a.End == EndStart {
			return a, true
		}
	}
	return w.Anchors[0], true
}

// Secondary returns the far anchor of a double hinge.
func (w *WorkArea) Secondary() (Anchor, bool) {
	if w.Kind != KindDoubleHinge {
		return Anchor{}, false
	}
	p, _ := w.Primary()
	for _, a := range w.Anchors {
		if a.Name != p.Name {
			return a, true
		}
	}
	return Anchor{}, false
}

// PathLength is the length of the reference polyline.
func (w *WorkArea) PathLength() float64 {
	return geom.PathLength(w.Points)
}

func (w *WorkArea) validate() error {
	if len(w.Anchors) != w.Kind.Anchors() {
		return fmt.Errorf("%w: %s is %s with %d anchors", ErrAnchorCount, w.Name, w.Kind, len(w.Anchors))
	}
	if w.Kind == KindDoubleHinge && w.Anchors[0].End == w.Anchors[1].End {
		return fmt.Errorf("work area %s: double hinge anchors must sit on opposite ends", w.Name)
	}
	return nil
}

// Spec is the set of work areas of one design run.
type Spec struct {
	areas  []WorkArea
	byName map[string]int
}

// NewSpec validates areas and indexes them by name.
func NewSpec(areas ...WorkArea) (*Spec, error) {
	s := &Spec{byName: make(map[string]int, len(areas))}
	for _, a := range areas {
		if _, dup := s.byName[a.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateArea, a.Name)
		}
		if err := a.validate(); err != nil {
			return nil, err
		}
		s.byName[a.Name] = len(s.areas)
		s.areas = append(s.areas, a)
	}
	return s, nil
}

func (s *Spec) Len() int {
	return len(s.areas)
}

func (s *Spec) Get(name string) (*WorkArea, error) {
	i, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownArea, name)
	}
	return &s.areas[i], nil
}

// Names returns work area names in the sorted order runs solve them in.
func (s *Spec) Names() []string {
	names := make([]string, 0, len(s.areas))
	for _, a := range s.areas {
		names = append(names, a.Name)
	}
	sort.Strings(names)
	return names
}
