// Package config holds the run options of a design run and loads them from
// YAML or JSON files.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

const (
	DefaultLenDev      = 3
	DefaultAvgPairDist = 39.016398521130355
	DefaultSeed        = 0x1337cafe
	DefaultPopSize     = 8096
	DefaultSurviveRate = 0.05
	DefaultCrossRate   = 0.5
	DefaultPointRate   = 0.3
	DefaultLimbRate    = 0.15
	DefaultStopScore   = 0.001
	DefaultStagnancy   = 50
	DefaultMaxGens     = 1000
	DefaultKeepN       = 3
	DefaultOutputDir   = "output"
)

var ErrRateSum = errors.New("survive, cross, point and limb rates add up to more than 1")

// Options are the parameters of one design run. Field names double as the
// keys accepted in option files.
type Options struct {
	XDBPath   string `mapstructure:"xdb_path" json:"xdb_path" validate:"required"`
	SpecPath  string `mapstructure:"spec_path" json:"spec_path" validate:"required"`
	OutputDir string `mapstructure:"output_dir" json:"output_dir"`

	LenDev      int     `mapstructure:"len_dev" json:"len_dev" validate:"gte=0"`
	AvgPairDist float64 `mapstructure:"avg_pair_dist" json:"avg_pair_dist" validate:"gt=0"`
	Seed        int64   `mapstructure:"seed" json:"seed"`
	PopSize     int     `mapstructure:"pop_size" json:"pop_size" validate:"gte=1"`
	SurviveRate float64 `mapstructure:"survive_rate" json:"survive_rate" validate:"gte=0,lte=1"`
	CrossRate   float64 `mapstructure:"cross_rate" json:"cross_rate" validate:"gte=0,lte=1"`
	PointRate   float64 `mapstructure:"point_rate" json:"point_rate" validate:"gte=0,lte=1"`
	LimbRate    float64 `mapstructure:"limb_rate" json:"limb_rate" validate:"gte=0,lte=1"`
	StopScore   float64 `mapstructure:"stop_score" json:"stop_score" validate:"gte=0"`
	// Stagnancy of -1 disables the stagnancy stop.
	Stagnancy int `mapstructure:"stagnancy" json:"stagnancy" validate:"gte=-1"`
	MaxGens   int `mapstructure:"max_gens" json:"max_gens" validate:"gte=1"`
	KeepN     int `mapstructure:"keep_n" json:"keep_n" validate:"gte=1"`
	// Workers of 0 uses GOMAXPROCS.
	Workers int `mapstructure:"workers" json:"workers" validate:"gte=0"`

	Store  string `mapstructure:"store" json:"store" validate:"omitempty,oneof=memory sqlite badger"`
	DBPath string `mapstructure:"db_path" json:"db_path,omitempty" validate:"required_if=Store sqlite,required_if=Store badger"`
	DryRun bool   `mapstructure:"dry_run" json:"dry_run"`
}

func Default() Options {
	return Options{
		OutputDir:   DefaultOutputDir,
		LenDev:      DefaultLenDev,
		AvgPairDist: DefaultAvgPairDist,
		Seed:        DefaultSeed,
		PopSize:     DefaultPopSize,
		SurviveRate: DefaultSurviveRate,
		CrossRate:   DefaultCrossRate,
		PointRate:   DefaultPointRate,
		LimbRate:    DefaultLimbRate,
		StopScore:   DefaultStopScore,
		Stagnancy:   DefaultStagnancy,
		MaxGens:     DefaultMaxGens,
		KeepN:       DefaultKeepN,
		Store:       "memory",
	}
}

var validate = validator.New()

func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return err
	}
	if sum := o.SurviveRate + o.CrossRate + o.PointRate + o.LimbRate; sum > 1+1e-9 {
		return fmt.Errorf("%w: %g", ErrRateSum, sum)
	}
	return nil
}

// Load reads an option file on top of Default. Keys missing from the file
// keep their defaults; unknown keys are rejected. The result is not
// validated so that callers can still apply overrides.
func Load(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, err
	}
	opts, err := Decode(data, Default())
	if err != nil {
		return Options{}, fmt.Errorf("load options %s: %w", path, err)
	}
	return opts, nil
}

// Decode merges a YAML or JSON document into base.
func Decode(data []byte, base Options) (Options, error) {
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Options{}, fmt.Errorf("decode: %w", err)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &base,
		TagName:          "mapstructure",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Options{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Options{}, err
	}
	return base, nil
}
