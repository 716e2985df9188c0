package storage

import (
	"context"

	"elfin/internal/model"
)

// Store defines transaction-like persistence operations for design runs.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, id string) (model.Run, bool, error)
	// ListRuns returns every run, most recently started first.
	ListRuns(ctx context.Context) ([]model.Run, error)
	SaveSolutions(ctx context.Context, runID string, solutions []model.Solution) error
	GetSolutions(ctx context.Context, runID string) ([]model.Solution, bool, error)
	SaveGenerationDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error
	GetGenerationDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error)
}
