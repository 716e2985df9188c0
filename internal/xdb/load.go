package xdb

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"elfin/internal/geom"
)

// File is the on-disk module database. JSON files parse as well since the
// decoder is YAML.
type File struct {
	Modules []ModuleSpec `yaml:"modules" validate:"required,min=1,dive"`
	Links   []LinkSpec   `yaml:"links" validate:"dive"`
}

type ModuleSpec struct {
	Name   string     `yaml:"name" validate:"required"`
	Type   ModuleType `yaml:"type" validate:"omitempty,oneof=single hub"`
	Radius float64    `yaml:"radius" validate:"gt=0"`
	Chains []string   `yaml:"chains" validate:"required,min=1,dive,required"`
}

type EndSpec struct {
	Module string `yaml:"module" validate:"required"`
	Chain  string `yaml:"chain" validate:"required"`
}

type LinkSpec struct {
	Src         EndSpec `yaml:"src"`
	Dst         EndSpec `yaml:"dst"`
	geom.TxSpec `yaml:",inline"`
}

var validate = validator.New()

// Load reads a module database from path.
func Load(path string) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	db, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("load module database %s: %w", path, err)
	}
	return db, nil
}

// Decode parses and builds a database from r.
func Decode(r io.Reader) (*Database, error) {
	var f File
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return f.Build()
}

// Build validates f and turns it into a Database.
func (f File) Build() (*Database, error) {
	if err := validate.Struct(f); err != nil {
		return nil, err
	}
	b := NewBuilder()
	for _, m := range f.Modules {
		b.AddModule(m.Name, m.Type, m.Radius, m.Chains...)
	}
	for i, l := range f.Links {
		tx, err := l.TxSpec.Transform()
		if err != nil {
			return nil, fmt.Errorf("link %d (%s.%s -> %s.%s): %w", i, l.Src.Module, l.Src.Chain, l.Dst.Module, l.Dst.Chain, err)
		}
		b.Link(l.Src.Module, l.Src.Chain, l.Dst.Module, l.Dst.Chain, tx)
	}
	return b.Build()
}

// Encode writes db in the format Load reads. Only forward links are
// written; reverse links are derived on load.
func Encode(w io.Writer, db *Database) error {
	var f File
	for _, m := range db.modules {
		spec := ModuleSpec{Name: m.Name, Type: m.Type, Radius: m.Radius}
		for _, c := range m.Chains {
			spec.Chains = append(spec.Chains, c.Name)
		}
		f.Modules = append(f.Modules, spec)
	}
	for _, l := range db.links {
		if !l.Forward() {
			continue
		}
		src, dst := db.modules[l.Src.Module], db.modules[l.Dst.Module]
		f.Links = append(f.Links, LinkSpec{
			Src:    EndSpec{Module: src.Name, Chain: src.Chains[l.Src.Chain].Name},
			Dst:    EndSpec{Module: dst.Name, Chain: dst.Chains[l.Dst.Chain].Name},
			TxSpec: geom.SpecOf(l.Tx),
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return err
	}
	return enc.Close()
}
