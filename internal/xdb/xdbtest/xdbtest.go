// Package xdbtest provides small module databases for tests.
//
// All modules have radius Radius and place their successor Spacing units
// along their local x axis. "rod" keeps the frame, "turn" yaws the frame
// by 90 degrees about z, "twist" rolls it by 90 degrees about x and "cap"
// only accepts incoming links, so it always ends a chain.
package xdbtest

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"elfin/internal/geom"
	"elfin/internal/xdb"
)

const (
	Radius  = 4.0
	Spacing = 10.0
)

// Step returns the link transform leaving a module of the given kind.
func Step(kind string) geom.Transform {
	step := geom.Translation(r3.Vec{X: Spacing})
	switch kind {
	case "turn":
		return step.Mul(geom.RotationZ(math.Pi / 2))
	case "twist":
		return step.Mul(geom.RotationX(math.Pi / 2))
	default:
		return step
	}
}

// Rods returns a database with a single self-linking straight module.
func Rods() *xdb.Database {
	return mustBuild(xdb.NewBuilder().
		AddModule("rod", xdb.ModuleSingle, Radius, "A").
		Link("rod", "A", "rod", "A", Step("rod")))
}

// Turns returns a database with a single self-linking module that turns
// 90 degrees per step, so five in a row collide.
func Turns() *xdb.Database {
	return mustBuild(xdb.NewBuilder().
		AddModule("turn", xdb.ModuleSingle, Radius, "A").
		Link("turn", "A", "turn", "A", Step("turn")))
}

// Lattice links rod, turn and twist to each other in every combination
// and lets each of them dock onto cap.
func Lattice() *xdb.Database {
	b := xdb.NewBuilder()
	kinds := []string{"rod", "turn", "twist"}
	for _, k := range kinds {
		b.AddModule(k, xdb.ModuleSingle, Radius, "A")
	}
	b.AddModule("cap", xdb.ModuleSingle, Radius, "A")
	for _, src := range kinds {
		for _, dst := range kinds {
			b.Link(src, "A", dst, "A", Step(src))
		}
		b.Link(src, "A", "cap", "A", Step(src))
	}
	return mustBuild(b)
}

// Fork links s1 and s2 into mid and mid into e1 and e2. The s modules
// have no N links and the e modules no C links.
func Fork() *xdb.Database {
	b := xdb.NewBuilder()
	for _, name := range []string{"s1", "s2", "mid", "e1", "e2"} {
		b.AddModule(name, xdb.ModuleSingle, Radius, "A")
	}
	for _, src := range []string{"s1", "s2"} {
		b.Link(src, "A", "mid", "A", Step("rod"))
	}
	for _, dst := range []string{"e1", "e2"} {
		b.Link("mid", "A", dst, "A", Step("rod"))
	}
	return mustBuild(b)
}

func mustBuild(b *xdb.Builder) *xdb.Database {
	db, err := b.Build()
	if err != nil {
		panic(err)
	}
	return db
}
