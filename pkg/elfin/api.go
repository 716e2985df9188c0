// Package elfin is the embedding API: it loads inputs, runs the solver and
// persists what a run produced.
package elfin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"elfin/internal/config"
	"elfin/internal/evo"
	"elfin/internal/kabsch"
	"elfin/internal/model"
	"elfin/internal/stats"
	"elfin/internal/storage"
	"elfin/internal/workarea"
	"elfin/internal/xdb"
)

const (
	defaultExportsDir = "exports"
	defaultRunsLimit  = 20
)

// NoScore stands in for the score of a work area that never got a scored
// generation.
const NoScore = -1.0

type Options struct {
	StoreKind  string
	DBPath     string
	OutputDir  string
	ExportsDir string
	Logger     *slog.Logger
}

type Client struct {
	store      storage.Store
	outputDir  string
	exportsDir string
	log        *slog.Logger
}

type RunRequest struct {
	Options config.Options
	// OnGeneration receives every generation's diagnostics as they happen.
	OnGeneration func(evo.GenerationDiagnostics)
}

type RunSummary struct {
	RunID        string
	ArtifactsDir string
	Status       model.RunStatus
	Plans        []evo.AreaPlan
	Areas        []model.AreaSummary
	Solutions    []model.Solution
	Elapsed      time.Duration
}

type RunsRequest struct {
	Limit int
}

type SolutionsRequest struct {
	RunID  string
	Latest bool
	Area   string
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type DiagnosticsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ScoreRequest struct {
	MobilePath    string
	ReferencePath string
}

func New(opts Options) (*Client, error) {
	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = config.DefaultOutputDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	store, err := storage.NewStore(opts.StoreKind, opts.DBPath)
	if err != nil {
		return nil, err
	}
	if bs, ok := store.(*storage.BadgerStore); ok {
		bs.WithLogger(logger.With("component", "badger"))
	}

	return &Client{
		store:      store,
		outputDir:  outputDir,
		exportsDir: exportsDir,
		log:        logger,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// Run loads the module database and the design spec named in req, evolves
// every work area and persists the outcome. An interrupted or failed run
// still returns a summary of what was kept, together with the error.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	opts := req.Options
	if err := opts.Validate(); err != nil {
		return RunSummary{}, err
	}

	db, err := xdb.Load(opts.XDBPath)
	if err != nil {
		return RunSummary{}, err
	}
	spec, err := workarea.Load(opts.SpecPath)
	if err != nil {
		return RunSummary{}, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	runID := uuid.NewString()
	log := c.log.With("run_id", runID)

	solver, err := evo.NewSolver(evo.SolverConfig{
		DB:             db,
		Spec:           spec,
		PopulationSize: opts.PopSize,
		Rates: evo.Rates{
			Survive: opts.SurviveRate,
			Cross:   opts.CrossRate,
			Point:   opts.PointRate,
			Limb:    opts.LimbRate,
		},
		StopScore:    opts.StopScore,
		Stagnancy:    opts.Stagnancy,
		MaxGens:      opts.MaxGens,
		LenDev:       opts.LenDev,
		AvgPairDist:  opts.AvgPairDist,
		KeepN:        opts.KeepN,
		Seed:         opts.Seed,
		Workers:      workers,
		Logger:       log,
		OnGeneration: req.OnGeneration,
	})
	if err != nil {
		return RunSummary{}, err
	}

	plans, err := solver.Plan()
	if err != nil {
		return RunSummary{}, err
	}

	started := time.Now().UTC()
	run := model.Run{
		VersionedRecord: storage.Stamp(),
		ID:              runID,
		XDBPath:         opts.XDBPath,
		SpecPath:        opts.SpecPath,
		Seed:            opts.Seed,
		PopulationSize:  opts.PopSize,
		Workers:         workers,
		StartedAt:       started,
	}

	var (
		result *evo.Result
		runErr error
	)
	if opts.DryRun {
		log.Info("dry run", "work_areas", len(plans))
		run.Status = model.RunPlanned
		result = &evo.Result{}
		for _, p := range plans {
			result.Areas = append(result.Areas, evo.AreaResult{AreaPlan: p, BestScore: math.Inf(1)})
		}
	} else {
		result, runErr = solver.Run(ctx)
		switch {
		case runErr == nil:
			run.Status = model.RunCompleted
		case errors.Is(runErr, evo.ErrInterrupted):
			run.Status = model.RunInterrupted
		default:
			run.Status = model.RunFailed
		}
		if runErr != nil {
			run.Error = runErr.Error()
		}
	}
	run.FinishedAt = time.Now().UTC()
	run.Areas = areaSummaries(result.Areas)

	summary := RunSummary{
		RunID:     runID,
		Status:    run.Status,
		Plans:     plans,
		Areas:     run.Areas,
		Solutions: toModelSolutions(result.Solutions),
		Elapsed:   run.FinishedAt.Sub(started),
	}

	dir, err := c.persist(context.WithoutCancel(ctx), opts, run, summary.Solutions, toModelDiagnostics(result.Areas))
	if err != nil {
		return summary, errors.Join(runErr, fmt.Errorf("persist run %s: %w", runID, err))
	}
	summary.ArtifactsDir = dir
	log.Info("run finished", "status", run.Status, "artifacts", dir, "elapsed", summary.Elapsed)
	return summary, runErr
}

func (c *Client) persist(ctx context.Context, opts config.Options, run model.Run, solutions []model.Solution, diagnostics []model.GenerationDiagnostics) (string, error) {
	if err := c.store.SaveRun(ctx, run); err != nil {
		return "", err
	}
	if err := c.store.SaveSolutions(ctx, run.ID, solutions); err != nil {
		return "", err
	}
	if err := c.store.SaveGenerationDiagnostics(ctx, run.ID, diagnostics); err != nil {
		return "", err
	}

	runDir, err := stats.WriteRunArtifacts(c.outputDir, stats.RunArtifacts{
		Config:      stats.RunConfig{RunID: run.ID, Options: opts},
		Run:         run,
		Solutions:   solutions,
		Diagnostics: diagnostics,
	})
	if err != nil {
		return "", err
	}

	var total float64
	for _, a := range run.Areas {
		if a.BestScore != NoScore {
			total += a.BestScore
		}
	}
	if err := stats.AppendRunIndex(c.outputDir, stats.RunIndexEntry{
		RunID:          run.ID,
		Status:         string(run.Status),
		XDBPath:        run.XDBPath,
		SpecPath:       run.SpecPath,
		PopulationSize: run.PopulationSize,
		Seed:           run.Seed,
		Workers:        run.Workers,
		WorkAreas:      len(run.Areas),
		TotalScore:     total,
		CreatedAtUTC:   run.StartedAt.Format(time.RFC3339Nano),
	}); err != nil {
		return "", err
	}
	return filepath.Clean(runDir), nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]stats.RunIndexEntry, error) {
	if req.Limit <= 0 {
		req.Limit = defaultRunsLimit
	}
	entries, err := stats.ListRunIndex(c.outputDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}
	return entries, nil
}

// Solutions returns the kept solutions of a run, from the store when it
// still holds them and from the run's artifacts otherwise.
func (c *Client) Solutions(ctx context.Context, req SolutionsRequest) ([]model.Solution, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}

	solutions, ok, err := c.store.GetSolutions(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		solutions, ok, err = stats.ReadSolutions(c.outputDir, runID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("solutions not found for run id: %s", runID)
		}
	}
	if req.Area == "" {
		return solutions, nil
	}
	out := solutions[:0:0]
	for _, s := range solutions {
		if s.Area == req.Area {
			out = append(out, s)
		}
	}
	return out, nil
}

func (c *Client) Diagnostics(ctx context.Context, req DiagnosticsRequest) ([]model.GenerationDiagnostics, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		diagnostics, ok, err = stats.ReadDiagnostics(c.outputDir, runID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
		}
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	return diagnostics, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	exportedDir, err := stats.ExportRunArtifacts(c.outputDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// Score superposes the mobile point set onto the reference one and returns
// the RMSD. Point sets of different sizes are resampled along their paths.
func (c *Client) Score(_ context.Context, req ScoreRequest) (float64, error) {
	mobile, err := loadPoints(req.MobilePath)
	if err != nil {
		return 0, err
	}
	ref, err := loadPoints(req.ReferencePath)
	if err != nil {
		return 0, err
	}
	if len(mobile) == len(ref) {
		return kabsch.Score(mobile, ref)
	}
	return kabsch.ScorePath(mobile, ref)
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", errors.New("run id or latest is required")
	}
	entries, err := stats.ListRunIndex(c.outputDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}

// loadPoints reads a YAML or JSON list of [x, y, z] triples, either bare or
// under a "points" key.
func loadPoints(path string) ([]r3.Vec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw [][]float64
	if err := yaml.Unmarshal(data, &raw); err != nil {
		var wrapped struct {
			Points [][]float64 `yaml:"points"`
		}
		if err2 := yaml.Unmarshal(data, &wrapped); err2 != nil {
			return nil, fmt.Errorf("decode points %s: %w", path, err)
		}
		raw = wrapped.Points
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("decode points %s: no points", path)
	}

	pts := make([]r3.Vec, len(raw))
	for i, p := range raw {
		if len(p) != 3 {
			return nil, fmt.Errorf("decode points %s: point %d has %d coordinates", path, i, len(p))
		}
		pts[i] = r3.Vec{X: p[0], Y: p[1], Z: p[2]}
	}
	return pts, nil
}

func areaSummaries(areas []evo.AreaResult) []model.AreaSummary {
	out := make([]model.AreaSummary, 0, len(areas))
	for _, a := range areas {
		out = append(out, model.AreaSummary{
			Area:        a.Area,
			Kind:        string(a.Kind),
			MinLength:   a.Lengths.Min,
			MaxLength:   a.Lengths.Max,
			Generations: a.Generations,
			BestScore:   finiteOr(a.BestScore, NoScore),
			Stop:        string(a.Stop),
		})
	}
	return out
}

func toModelSolutions(byArea map[string][]evo.Solution) []model.Solution {
	areas := make([]string, 0, len(byArea))
	for area := range byArea {
		areas = append(areas, area)
	}
	sort.Strings(areas)

	var out []model.Solution
	for _, area := range areas {
		for rank, s := range byArea[area] {
			rec := model.Solution{
				VersionedRecord: storage.Stamp(),
				Area:            area,
				Rank:            rank,
				Modules:         append([]string(nil), s.Modules...),
				Score:           s.Score,
				Checksum:        s.Checksum,
			}
			for _, n := range s.Nodes {
				rec.Transforms = append(rec.Transforms, n.Matrix)
			}
			out = append(out, rec)
		}
	}
	return out
}

func toModelDiagnostics(areas []evo.AreaResult) []model.GenerationDiagnostics {
	var out []model.GenerationDiagnostics
	for _, a := range areas {
		for _, d := range a.History {
			rec := model.GenerationDiagnostics{
				Area:            d.Area,
				Generation:      d.Generation,
				BestScore:       d.BestScore,
				BestPerModule:   d.BestPerModule,
				WorstScore:      d.WorstScore,
				MeanScore:       d.MeanScore,
				BestLength:      d.BestLength,
				UniqueChecksums: d.UniqueChecksums,
				EvolveMillis:    millis(d.EvolveTime),
				ScoreMillis:     millis(d.ScoreTime),
				RankMillis:      millis(d.RankTime),
				SelectMillis:    millis(d.SelectTime),
				Attempts:        map[string]int64{},
				Failures:        map[string]int64{},
			}
			for name, c := range d.Counters.Map() {
				rec.Attempts[name] = c[0]
				rec.Failures[name] = c[1]
			}
			out = append(out, rec)
		}
	}
	return out
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func finiteOr(v, fallback float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return fallback
	}
	return v
}
