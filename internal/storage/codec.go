package storage

import (
	"encoding/json"
	"errors"
	"maps"
	"slices"
	"strings"

	"elfin/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// Stamp sets the current versions on a record about to be saved.
func Stamp() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(r model.Run) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.Run, error) {
	var run model.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return model.Run{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.Run{}, err
	}
	return run, nil
}

func EncodeSolutions(solutions []model.Solution) ([]byte, error) {
	return json.Marshal(solutions)
}

func DecodeSolutions(data []byte) ([]model.Solution, error) {
	var solutions []model.Solution
	if err := json.Unmarshal(data, &solutions); err != nil {
		return nil, err
	}
	for _, s := range solutions {
		if err := checkVersion(s.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return solutions, nil
}

func EncodeGenerationDiagnostics(diagnostics []model.GenerationDiagnostics) ([]byte, error) {
	return json.Marshal(diagnostics)
}

func DecodeGenerationDiagnostics(data []byte) ([]model.GenerationDiagnostics, error) {
	var diagnostics []model.GenerationDiagnostics
	if err := json.Unmarshal(data, &diagnostics); err != nil {
		return nil, err
	}
	return diagnostics, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}

func sortRuns(runs []model.Run) {
	slices.SortStableFunc(runs, func(a, b model.Run) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func cloneRun(r model.Run) model.Run {
	r.Areas = slices.Clone(r.Areas)
	return r
}

func cloneSolutions(in []model.Solution) []model.Solution {
	out := make([]model.Solution, len(in))
	for i, s := range in {
		s.Modules = slices.Clone(s.Modules)
		s.Transforms = slices.Clone(s.Transforms)
		out[i] = s
	}
	return out
}

func cloneDiagnostics(in []model.GenerationDiagnostics) []model.GenerationDiagnostics {
	out := make([]model.GenerationDiagnostics, len(in))
	for i, d := range in {
		d.Attempts = maps.Clone(d.Attempts)
		d.Failures = maps.Clone(d.Failures)
		out[i] = d
	}
	return out
}
