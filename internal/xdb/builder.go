package xdb

import (
	"fmt"

	"elfin/internal/geom"
)

// Builder accumulates modules and links and produces an immutable Database.
type Builder struct {
	db  *Database
	err error
}

func NewBuilder() *Builder {
	return &Builder{db: &Database{byName: make(map[string]int)}}
}

// AddModule registers a module with the named chains.
func (b *Builder) AddModule(name string, typ ModuleType, radius float64, chains ...string) *Builder {
	if b.err != nil {
		return b
	}
	if _, exists := b.db.byName[name]; exists {
		b.err = fmt.Errorf("%w: %s", ErrDuplicateModule, name)
		return b
	}
	if len(chains) == 0 {
		b.err = fmt.Errorf("module %s has no chains", name)
		return b
	}
	if radius <= 0 {
		b.err = fmt.Errorf("module %s radius must be > 0", name)
		return b
	}
	if typ == "" {
		typ = ModuleSingle
	}
	m := Module{
		ID:     len(b.db.modules),
		Name:   name,
		Type:   typ,
		Radius: radius,
	}
	for _, c := range chains {
		m.Chains = append(m.Chains, Chain{Name: c})
	}
	b.db.byName[name] = m.ID
	b.db.modules = append(b.db.modules, m)
	return b
}

// Link docks the C terminus of srcChain on src onto the N terminus of
// dstChain on dst and records the paired reverse link.
func (b *Builder) Link(src, srcChain, dst, dstChain string, tx geom.Transform) *Builder {
	if b.err != nil {
		return b
	}
	a, err := b.resolve(src, srcChain)
	if err != nil {
		b.err = err
		return b
	}
	z, err := b.resolve(dst, dstChain)
	if err != nil {
		b.err = err
		return b
	}

	fwdID := len(b.db.links)
	revID := fwdID + 1
	a.Term = TermC
	z.Term = TermN
	b.db.links = append(b.db.links,
		ProtoLink{ID: fwdID, Src: a, Dst: z, Tx: tx, Reverse: revID},
		ProtoLink{ID: revID, Src: z, Dst: a, Tx: tx.Inverse(), Reverse: fwdID},
	)

	ma := &b.db.modules[a.Module]
	ct := ma.Chains[a.Chain].Term(TermC)
	ct.Links = append(ct.Links, fwdID)
	ma.Counts.CLinks++

	mz := &b.db.modules[z.Module]
	nt := mz.Chains[z.Chain].Term(TermN)
	nt.Links = append(nt.Links, revID)
	mz.Counts.NLinks++
	return b
}

// Build finalizes the database. The builder must not be reused.
func (b *Builder) Build() (*Database, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.db.modules) == 0 {
		return nil, ErrEmptyDatabase
	}
	db := b.db
	b.db = nil
	db.finalize()
	return db, nil
}

func (b *Builder) resolve(module, chain string) (TermRef, error) {
	id, ok := b.db.byName[module]
	if !ok {
		return TermRef{}, fmt.Errorf("%w: %s", ErrUnknownModule, module)
	}
	for i, c := range b.db.modules[id].Chains {
		if c.Name == chain {
			return TermRef{Module: id, Chain: i}, nil
		}
	}
	return TermRef{}, fmt.Errorf("%w: %s.%s", ErrUnknownChain, module, chain)
}
