package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

type RunStatus string

const (
	RunCompleted   RunStatus = "completed"
	RunInterrupted RunStatus = "interrupted"
	RunFailed      RunStatus = "failed"
	RunPlanned     RunStatus = "planned"
)

// Run is the summary of one design run.
type Run struct {
	VersionedRecord
	ID             string        `json:"id"`
	XDBPath        string        `json:"xdb_path"`
	SpecPath       string        `json:"spec_path"`
	Seed           int64         `json:"seed"`
	PopulationSize int           `json:"population_size"`
	Workers        int           `json:"workers"`
	Status         RunStatus     `json:"status"`
	Error          string        `json:"error,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
	Areas          []AreaSummary `json:"areas"`
}

type AreaSummary struct {
	Area        string  `json:"work_area"`
	Kind        string  `json:"kind"`
	MinLength   int     `json:"min_length"`
	MaxLength   int     `json:"max_length"`
	Generations int     `json:"generations"`
	BestScore   float64 `json:"best_score"`
	Stop        string  `json:"stop,omitempty"`
}

// Solution is one kept design: the module chain and where each module sits.
type Solution struct {
	VersionedRecord
	Area       string          `json:"work_area"`
	Rank       int             `json:"rank"`
	Modules    []string        `json:"modules"`
	Transforms [][4][4]float64 `json:"transforms"`
	Score      float64         `json:"score"`
	Checksum   uint64          `json:"checksum"`
}

// GenerationDiagnostics is one generation of one work area.
type GenerationDiagnostics struct {
	Area            string           `json:"work_area"`
	Generation      int              `json:"generation"`
	BestScore       float64          `json:"best_score"`
	BestPerModule   float64          `json:"best_per_module"`
	WorstScore      float64          `json:"worst_score"`
	MeanScore       float64          `json:"mean_score"`
	BestLength      int              `json:"best_length"`
	UniqueChecksums int              `json:"unique_checksums"`
	EvolveMillis    float64          `json:"evolve_ms"`
	ScoreMillis     float64          `json:"score_ms"`
	RankMillis      float64          `json:"rank_ms"`
	SelectMillis    float64          `json:"select_ms"`
	Attempts        map[string]int64 `json:"attempts,omitempty"`
	Failures        map[string]int64 `json:"failures,omitempty"`
}
