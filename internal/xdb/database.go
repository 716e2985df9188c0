// Package xdb is the in-memory module graph: modules, their chains and the
// proto-links describing how one chain terminus docks onto another.
//
// Modules and links live in flat arenas and refer to each other by index,
// so nodes placed by the growth engine hold plain integers and cloning a
// team never has to fix up pointers.
package xdb

import (
	"errors"
	"fmt"
	"sort"

	"elfin/internal/geom"
)

var (
	ErrUnknownModule   = errors.New("unknown module")
	ErrUnknownChain    = errors.New("unknown chain")
	ErrDuplicateModule = errors.New("duplicate module")
	ErrEmptyDatabase   = errors.New("database has no modules")
)

type ModuleType string

const (
	ModuleSingle ModuleType = "single"
	ModuleHub    ModuleType = "hub"
)

// Term names one end of a chain.
type Term int

const (
	TermN Term = iota
	TermC
)

func (t Term) String() string {
	if t == TermN {
		return "N"
	}
	return "C"
}

// TermRef addresses a chain terminus of a module.
type TermRef struct {
	Module int
	Chain  int
	Term   Term
}

// ProtoLink docks Src onto Dst. Tx expresses the Dst module frame in the
// Src module frame. Reverse is the index of the paired link going back.
type ProtoLink struct {
	ID      int
	Src     TermRef
	Dst     TermRef
	Tx      geom.Transform
	Reverse int
}

// Forward reports whether the link runs from a C terminus to an N terminus.
func (l ProtoLink) Forward() bool {
	return l.Src.Term == TermC
}

type Terminus struct {
	Links []int
}

type Chain struct {
	Name string
	N    Terminus
	C    Terminus
}

// Term returns the terminus of the given type.
func (c *Chain) Term(t Term) *Terminus {
	if t == TermN {
		return &c.N
	}
	return &c.C
}

// Counts tallies the links on each side of a module.
type Counts struct {
	NLinks int
	CLinks int
}

func (c Counts) Links(t Term) int {
	if t == TermN {
		return c.NLinks
	}
	return c.CLinks
}

type Module struct {
	ID     int
	Name   string
	Type   ModuleType
	Radius float64
	Chains []Chain
	Counts Counts
}

// Database is immutable once built. All accessors are safe for concurrent use.
type Database struct {
	modules []Module
	links   []ProtoLink
	byName  map[string]int

	// out[m] lists forward links leaving any C terminus of m, in[m] lists
	// reverse links leaving any N terminus of m.
	out      [][]int
	in       [][]int
	between  map[[2]int][]int
	headPool []int
}

func (db *Database) Len() int {
	return len(db.modules)
}

func (db *Database) Modules() []Module {
	return db.modules
}

// Module returns the module at id. It panics on an out-of-range id, which
// can only come from a corrupt caller; use Lookup for untrusted ids.
func (db *Database) Module(id int) *Module {
	return &db.modules[id]
}

// Lookup returns the module at id or false when id is out of range.
func (db *Database) Lookup(id int) (*Module, bool) {
	if id < 0 || id >= len(db.modules) {
		return nil, false
	}
	return &db.modules[id], true
}

func (db *Database) ModuleID(name string) (int, bool) {
	id, ok := db.byName[name]
	return id, ok
}

// ModuleName returns the name of id, or a placeholder for invalid ids so
// diagnostics never panic.
func (db *Database) ModuleName(id int) string {
	if m, ok := db.Lookup(id); ok {
		return m.Name
	}
	return fmt.Sprintf("<module#%d>", id)
}

func (db *Database) NumLinks() int {
	return len(db.links)
}

// Link returns the link at id or false when id is out of range.
func (db *Database) Link(id int) (*ProtoLink, bool) {
	if id < 0 || id >= len(db.links) {
		return nil, false
	}
	return &db.links[id], true
}

// OutLinks lists forward links leaving module m.
func (db *Database) OutLinks(m int) []int {
	return db.out[m]
}

// InLinks lists reverse links leaving module m through its N termini.
func (db *Database) InLinks(m int) []int {
	return db.in[m]
}

// LinksBetween lists forward links docking module from onto module to.
func (db *Database) LinksBetween(from, to int) []int {
	return db.between[[2]int{from, to}]
}

// Linked reports whether any forward link docks from onto to.
func (db *Database) Linked(from, to int) bool {
	return len(db.between[[2]int{from, to}]) > 0
}

// HeadPool is a roulette wheel of module ids, each repeated once per
// C link, used to pick the first module of a free chain.
func (db *Database) HeadPool() []int {
	return db.headPool
}

func (db *Database) finalize() {
	n := len(db.modules)
	db.out = make([][]int, n)
	db.in = make([][]int, n)
	db.between = make(map[[2]int][]int)
	for _, l := range db.links {
		if l.Forward() {
			db.out[l.Src.Module] = append(db.out[l.Src.Module], l.ID)
			key := [2]int{l.Src.Module, l.Dst.Module}
			db.between[key] = append(db.between[key], l.ID)
		} else {
			db.in[l.Src.Module] = append(db.in[l.Src.Module], l.ID)
		}
	}
	for key := range db.between {
		sort.Ints(db.between[key])
	}

	db.headPool = db.headPool[:0]
	for _, m := range db.modules {
		for i := 0; i < m.Counts.CLinks; i++ {
			db.headPool = append(db.headPool, m.ID)
		}
	}
}
