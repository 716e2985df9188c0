package workarea

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"elfin/internal/geom"
)

type fileSpec struct {
	WorkAreas []areaSpec `yaml:"work_areas" validate:"required,min=1,dive"`
}

type areaSpec struct {
	Name    string       `yaml:"name" validate:"required"`
	Type    Kind         `yaml:"type" validate:"omitempty,oneof=free hinge double_hinge"`
	Points  [][]float64  `yaml:"points" validate:"required,min=2,dive,len=3"`
	Anchors []anchorSpec `yaml:"anchors" validate:"dive"`
}

type anchorSpec struct {
	Name        string `yaml:"name" validate:"required"`
	Module      string `yaml:"module" validate:"required"`
	Chain       string `yaml:"chain,omitempty"`
	End         End    `yaml:"end" validate:"omitempty,oneof=start end"`
	geom.TxSpec `yaml:",inline"`
}

var validate = validator.New()

// Load reads a design spec file. JSON is accepted as well.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("load spec %s: %w", path, err)
	}
	return s, nil
}

func Decode(r io.Reader) (*Spec, error) {
	var f fileSpec
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := validate.Struct(f); err != nil {
		return nil, err
	}

	areas := make([]WorkArea, 0, len(f.WorkAreas))
	for _, as := range f.WorkAreas {
		w := WorkArea{Name: as.Name, Kind: as.Type}
		if w.Kind == "" {
			w.Kind = KindFree
		}
		for _, p := range as.Points {
			w.Points = append(w.Points, r3.Vec{X: p[0], Y: p[1], Z: p[2]})
		}
		for _, an := range as.Anchors {
			tx, err := an.TxSpec.Transform()
			if err != nil {
				return nil, fmt.Errorf("work area %s anchor %s: %w", as.Name, an.Name, err)
			}
			end := an.End
			if end == "" {
				end = EndStart
			}
			w.Anchors = append(w.Anchors, Anchor{Name: an.Name, Module: an.Module, Chain: an.Chain, End: end, Tx: tx})
		}
		areas = append(areas, w)
	}
	return NewSpec(areas...)
}

// Encode writes s in the format Decode reads, areas in sorted name order.
func Encode(w io.Writer, s *Spec) error {
	var f fileSpec
	for _, name := range s.Names() {
		a, _ := s.Get(name)
		as := areaSpec{Name: a.Name, Type: a.Kind}
		for _, p := range a.Points {
			as.Points = append(as.Points, []float64{p.X, p.Y, p.Z})
		}
		for _, an := range a.Anchors {
			as.Anchors = append(as.Anchors, anchorSpec{Name: an.Name, Module: an.Module, Chain: an.Chain, End: an.End, TxSpec: geom.SpecOf(an.Tx)})
		}
		f.WorkAreas = append(f.WorkAreas, as)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return err
	}
	return enc.Close()
}
