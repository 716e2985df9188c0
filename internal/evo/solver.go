package evo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"time"

	"elfin/internal/team"
	"elfin/internal/workarea"
	"elfin/internal/xdb"
)

// StagnancyTolerance is the best score change below which a generation
// counts as not improving.
const StagnancyTolerance = 1e-6

var (
	// ErrInvariantViolation marks a broken engine invariant. It is never
	// retried.
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrInterrupted is returned when the context ends a run at a
	// generation boundary. The result carries the snapshot up to then.
	ErrInterrupted = errors.New("run interrupted")
)

type StopReason string

const (
	StopScore       StopReason = "score"
	StopStagnant    StopReason = "stagnant"
	StopMaxGens     StopReason = "max_gens"
	StopInterrupted StopReason = "interrupted"
)

type SolverConfig struct {
	DB   *xdb.Database
	Spec *workarea.Spec

	PopulationSize int
	Rates          Rates
	StopScore      float64
	// Stagnancy stops a work area after this many generations without
	// improvement. Zero or negative disables the check.
	Stagnancy   int
	MaxGens     int
	LenDev      int
	AvgPairDist float64
	KeepN       int
	Seed        int64
	Workers     int

	// Selector picks point and limb parents; survivors only by default.
	Selector Selector
	Logger   *slog.Logger
	// OnGeneration is called from the solving goroutine after every
	// generation.
	OnGeneration func(GenerationDiagnostics)
}

// GenerationDiagnostics summarizes one generation of one work area.
type GenerationDiagnostics struct {
	Area            string           `json:"work_area"`
	Generation      int              `json:"generation"`
	BestScore       float64          `json:"best_score"`
	BestPerModule   float64          `json:"best_per_module"`
	WorstScore      float64          `json:"worst_score"`
	MeanScore       float64          `json:"mean_score"`
	BestLength      int              `json:"best_length"`
	UniqueChecksums int              `json:"unique_checksums"`
	EvolveTime      time.Duration    `json:"evolve_ns"`
	ScoreTime       time.Duration    `json:"score_ns"`
	RankTime        time.Duration    `json:"rank_ns"`
	SelectTime      time.Duration    `json:"select_ns"`
	Counters        MutationCounters `json:"counters"`
}

// AreaPlan is what the solver derives for a work area before evolving.
type AreaPlan struct {
	Area    string        `json:"work_area"`
	Kind    workarea.Kind `json:"kind"`
	Lengths team.Lengths  `json:"lengths"`
	Cutoffs Cutoffs       `json:"cutoffs"`
}

type AreaResult struct {
	AreaPlan
	Generations int                     `json:"generations"`
	BestScore   float64                 `json:"best_score"`
	Stop        StopReason              `json:"stop"`
	History     []GenerationDiagnostics `json:"history"`
	Counters    MutationCounters        `json:"counters"`
}

type Result struct {
	Areas     []AreaResult          `json:"areas"`
	Solutions map[string][]Solution `json:"solutions"`
}

// Solver runs the generational loop for every work area of a spec.
type Solver struct {
	cfg      SolverConfig
	pool     *pool
	snapshot *Snapshot
	log      *slog.Logger
}

func NewSolver(cfg SolverConfig) (*Solver, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("module database is required")
	}
	if cfg.Spec == nil || cfg.Spec.Len() == 0 {
		return nil, fmt.Errorf("at least one work area is required")
	}
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.MaxGens < 0 {
		return nil, fmt.Errorf("max generations must be >= 0")
	}
	if cfg.KeepN <= 0 {
		return nil, fmt.Errorf("keep_n must be > 0")
	}
	if _, err := DeriveCutoffs(cfg.PopulationSize, cfg.Rates); err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Selector == nil {
		cfg.Selector = SurvivorSelector{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	return &Solver{
		cfg:      cfg,
		pool:     newPool(cfg.Workers, cfg.Seed),
		snapshot: NewSnapshot(),
		log:      cfg.Logger,
	}, nil
}

// Snapshot returns the best solutions found so far. It is safe to call
// while Run is in progress.
func (s *Solver) Snapshot() map[string][]Solution {
	return s.snapshot.All()
}

// Plan derives length bounds and cutoffs for every work area without
// evolving anything.
func (s *Solver) Plan() ([]AreaPlan, error) {
	var plans []AreaPlan
	for _, name := range s.cfg.Spec.Names() {
		_, plan, err := s.prepare(name)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func (s *Solver) prepare(name string) (*team.Context, AreaPlan, error) {
	area, err := s.cfg.Spec.Get(name)
	if err != nil {
		return nil, AreaPlan{}, err
	}
	tc, err := team.NewContext(s.cfg.DB, area, s.cfg.LenDev, s.cfg.AvgPairDist)
	if err != nil {
		return nil, AreaPlan{}, err
	}
	cut, err := DeriveCutoffs(s.cfg.PopulationSize, s.cfg.Rates)
	if err != nil {
		return nil, AreaPlan{}, err
	}
	return tc, AreaPlan{Area: name, Kind: tc.Kind(), Lengths: tc.Lengths, Cutoffs: cut}, nil
}

// Run solves work areas one after another in name order. Cancelling ctx
// stops at the next generation boundary with ErrInterrupted; the returned
// result is then still populated with what was found.
func (s *Solver) Run(ctx context.Context) (*Result, error) {
	res := &Result{}
	var runErr error
	for _, name := range s.cfg.Spec.Names() {
		if ctx.Err() != nil {
			runErr = fmt.Errorf("%w: %v", ErrInterrupted, context.Cause(ctx))
			break
		}
		ar, err := s.solve(ctx, name)
		res.Areas = append(res.Areas, ar)
		if err != nil {
			runErr = err
			break
		}
	}
	res.Solutions = s.snapshot.All()
	return res, runErr
}

func (s *Solver) solve(ctx context.Context, name string) (AreaResult, error) {
	tc, plan, err := s.prepare(name)
	if err != nil {
		return AreaResult{AreaPlan: AreaPlan{Area: name}}, err
	}
	ar := AreaResult{AreaPlan: plan, BestScore: math.Inf(1)}
	log := s.log.With("work_area", name)
	log.Info("solving work area",
		"kind", plan.Kind,
		"len_min", plan.Lengths.Min,
		"len_expected", plan.Lengths.Expected,
		"len_max", plan.Lengths.Max,
		"survivors", plan.Cutoffs.Survivors,
		"cross", plan.Cutoffs.Cross,
		"point", plan.Cutoffs.Point,
		"limb", plan.Cutoffs.Limb,
	)

	pop, err := NewPopulation(tc, plan.Cutoffs, s.pool, s.cfg.Selector)
	if err != nil {
		return ar, err
	}

	stagnant := 0
	for gen := 0; gen <= s.cfg.MaxGens; gen++ {
		if gen > 0 && ctx.Err() != nil {
			ar.Stop = StopInterrupted
			log.Warn("interrupted", "generation", gen-1, "best", ar.BestScore)
			return ar, fmt.Errorf("%w: %v", ErrInterrupted, context.Cause(ctx))
		}

		diag, err := s.generation(pop, name, gen)
		if err != nil {
			return ar, fmt.Errorf("work area %s generation %d: %w", name, gen, err)
		}
		if err := checkProgress(name, gen, ar.BestScore, diag.BestScore); err != nil {
			return ar, err
		}
		if gen > 0 && math.Abs(ar.BestScore-diag.BestScore) <= StagnancyTolerance {
			stagnant++
		} else {
			stagnant = 0
		}

		ar.BestScore = diag.BestScore
		ar.Generations = gen
		ar.History = append(ar.History, diag)
		ar.Counters.Merge(diag.Counters)
		s.keepBest(name, pop)

		generations.WithLabelValues(name).Inc()
		bestScore.WithLabelValues(name).Set(diag.BestScore)
		observeCounters(diag.Counters)
		log.Info("generation",
			"generation", gen,
			"best", diag.BestScore,
			"best_per_module", diag.BestPerModule,
			"worst", diag.WorstScore,
			"mean", diag.MeanScore,
			"unique", diag.UniqueChecksums,
			"evolve", diag.EvolveTime,
			"score", diag.ScoreTime,
		)
		if s.cfg.OnGeneration != nil {
			s.cfg.OnGeneration(diag)
		}

		switch {
		case diag.BestScore <= s.cfg.StopScore:
			ar.Stop = StopScore
		case s.cfg.Stagnancy > 0 && stagnant >= s.cfg.Stagnancy:
			ar.Stop = StopStagnant
		case gen == s.cfg.MaxGens:
			ar.Stop = StopMaxGens
		}
		if ar.Stop != "" {
			log.Info("work area done", "stop", ar.Stop, "generations", gen, "best", ar.BestScore)
			return ar, nil
		}
	}
	return ar, nil
}

// generation runs one evolve, score, rank and select cycle. Generation 0
// grows the initial population instead of evolving.
func (s *Solver) generation(pop *Population, name string, gen int) (GenerationDiagnostics, error) {
	diag := GenerationDiagnostics{Area: name, Generation: gen}

	start := time.Now()
	var err error
	if gen == 0 {
		err = pop.Init()
	} else {
		err = pop.Evolve()
	}
	if err != nil {
		return diag, err
	}
	diag.Counters = pop.Counters()
	diag.EvolveTime = observe("evolve", start)

	start = time.Now()
	if err := pop.Score(); err != nil {
		return diag, err
	}
	diag.ScoreTime = observe("score", start)

	start = time.Now()
	pop.Rank()
	diag.RankTime = observe("rank", start)

	start = time.Now()
	diag.UniqueChecksums = pop.Select()
	pop.Swap()
	diag.SelectTime = observe("select", start)

	ranked := pop.Ranked()
	if len(ranked) == 0 || ranked[0].Team().Len() == 0 {
		return diag, fmt.Errorf("%w: empty best candidate", ErrInvariantViolation)
	}
	best := ranked[0]
	diag.BestScore = best.Score()
	diag.BestLength = best.Team().Len()
	diag.BestPerModule = diag.BestScore / float64(diag.BestLength)
	diag.WorstScore = diag.BestScore
	total := 0.0
	for _, c := range ranked {
		total += c.Score()
		diag.WorstScore = max(diag.WorstScore, c.Score())
	}
	diag.MeanScore = total / float64(len(ranked))
	return diag, nil
}

// checkProgress reports an invariant violation when the best score of a
// generation is worse than the one before it.
func checkProgress(name string, gen int, prev, best float64) error {
	if gen > 0 && best > prev {
		return fmt.Errorf("%w: work area %s best score regressed from %v to %v at generation %d",
			ErrInvariantViolation, name, prev, best, gen)
	}
	return nil
}

// keepBest replaces the snapshot of name with copies of the first keep_n
// selected candidates.
func (s *Solver) keepBest(name string, pop *Population) {
	ranked := pop.Ranked()
	n := min(s.cfg.KeepN, len(ranked))
	best := make([]Solution, 0, n)
	for _, c := range ranked[:n] {
		best = append(best, NewSolution(name, c.Team()))
	}
	s.snapshot.set(name, best)
}

func observe(phase string, start time.Time) time.Duration {
	d := time.Since(start)
	phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
	return d
}
