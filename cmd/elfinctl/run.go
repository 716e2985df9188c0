package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"elfin/internal/config"
	"elfin/internal/evo"
	"elfin/pkg/elfin"
)

type runFlags struct {
	configPath string
	jsonOut    bool
	opts       config.Options
}

func newRunCmd(a *app) *cobra.Command {
	rf := &runFlags{opts: config.Default()}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evolve module chains for every work area of a design spec",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := rf.resolve(cmd, a)
			if err != nil {
				return err
			}
			return a.runDesign(cmd, opts, rf.jsonOut)
		},
	}

	f := cmd.Flags()
	f.StringVar(&rf.configPath, "config", "", "YAML or JSON option file; flags override it")
	f.BoolVar(&rf.jsonOut, "json", false, "emit the run summary as JSON")
	f.StringVar(&rf.opts.XDBPath, "xdb", "", "module database file")
	f.StringVar(&rf.opts.SpecPath, "spec", "", "design spec file")
	f.IntVar(&rf.opts.LenDev, "len-dev", rf.opts.LenDev, "allowed deviation from the expected chain length")
	f.Float64Var(&rf.opts.AvgPairDist, "avg-pair-dist", rf.opts.AvgPairDist, "average distance between linked module centers")
	f.Int64Var(&rf.opts.Seed, "seed", rf.opts.Seed, "random seed")
	f.IntVar(&rf.opts.PopSize, "pop-size", rf.opts.PopSize, "population size")
	f.Float64Var(&rf.opts.SurviveRate, "survive-rate", rf.opts.SurviveRate, "share of the population kept unchanged")
	f.Float64Var(&rf.opts.CrossRate, "cross-rate", rf.opts.CrossRate, "share produced by cross mutation")
	f.Float64Var(&rf.opts.PointRate, "point-rate", rf.opts.PointRate, "share produced by point mutation")
	f.Float64Var(&rf.opts.LimbRate, "limb-rate", rf.opts.LimbRate, "share produced by limb mutation")
	f.Float64Var(&rf.opts.StopScore, "stop-score", rf.opts.StopScore, "stop a work area once its best score reaches this")
	f.IntVar(&rf.opts.Stagnancy, "stagnancy", rf.opts.Stagnancy, "generations without improvement before stopping; -1 disables")
	f.IntVar(&rf.opts.MaxGens, "max-gens", rf.opts.MaxGens, "maximum generations per work area")
	f.IntVar(&rf.opts.KeepN, "keep-n", rf.opts.KeepN, "best solutions kept per work area")
	f.IntVar(&rf.opts.Workers, "workers", rf.opts.Workers, "worker goroutines; 0 uses GOMAXPROCS")
	f.BoolVar(&rf.opts.DryRun, "dry-run", false, "derive lengths and cutoffs without evolving")
	return cmd
}

// resolve layers defaults, the option file and explicitly set flags.
func (rf *runFlags) resolve(cmd *cobra.Command, a *app) (config.Options, error) {
	base := config.Default()
	if rf.configPath != "" {
		loaded, err := config.Load(rf.configPath)
		if err != nil {
			return config.Options{}, err
		}
		base = loaded
	}

	f := cmd.Flags()
	src := rf.opts
	overrides := []struct {
		flag  string
		apply func()
	}{
		{"xdb", func() { base.XDBPath = src.XDBPath }},
		{"spec", func() { base.SpecPath = src.SpecPath }},
		{"len-dev", func() { base.LenDev = src.LenDev }},
		{"avg-pair-dist", func() { base.AvgPairDist = src.AvgPairDist }},
		{"seed", func() { base.Seed = src.Seed }},
		{"pop-size", func() { base.PopSize = src.PopSize }},
		{"survive-rate", func() { base.SurviveRate = src.SurviveRate }},
		{"cross-rate", func() { base.CrossRate = src.CrossRate }},
		{"point-rate", func() { base.PointRate = src.PointRate }},
		{"limb-rate", func() { base.LimbRate = src.LimbRate }},
		{"stop-score", func() { base.StopScore = src.StopScore }},
		{"stagnancy", func() { base.Stagnancy = src.Stagnancy }},
		{"max-gens", func() { base.MaxGens = src.MaxGens }},
		{"keep-n", func() { base.KeepN = src.KeepN }},
		{"workers", func() { base.Workers = src.Workers }},
		{"dry-run", func() { base.DryRun = src.DryRun }},
	}
	for _, o := range overrides {
		if f.Changed(o.flag) {
			o.apply()
		}
	}

	if f.Changed("output-dir") || base.OutputDir == "" {
		base.OutputDir = a.outputDir
	}
	if f.Changed("store") {
		base.Store = a.store
	}
	if f.Changed("db-path") {
		base.DBPath = a.dbPath
	}
	if err := base.Validate(); err != nil {
		return config.Options{}, err
	}
	return base, nil
}

func (a *app) runDesign(cmd *cobra.Command, opts config.Options, jsonOut bool) error {
	ctx := cmd.Context()
	a.outputDir = opts.OutputDir
	client, err := a.client(ctx, opts.Store, opts.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	progress := interactive(a.stderr) && !jsonOut
	req := elfin.RunRequest{Options: opts}
	if progress {
		req.OnGeneration = func(d evo.GenerationDiagnostics) {
			fmt.Fprintf(a.stderr, "\r\033[K%s gen=%d best=%.4f per_module=%.4f unique=%s",
				d.Area, d.Generation, d.BestScore, d.BestPerModule, humanize.Comma(int64(d.UniqueChecksums)))
		}
	}

	a.log.Info("starting run",
		"xdb", opts.XDBPath, "spec", opts.SpecPath,
		"population", humanize.Comma(int64(opts.PopSize)), "seed", opts.Seed)
	summary, runErr := client.Run(ctx, req)
	if progress {
		fmt.Fprintln(a.stderr)
	}
	if summary.RunID == "" {
		return runErr
	}

	if jsonOut {
		if err := writeJSON(a, summary); err != nil {
			return err
		}
		return runErr
	}

	fmt.Fprintf(a.stdout, "run_id=%s status=%s elapsed=%s artifacts=%s\n",
		summary.RunID, summary.Status, summary.Elapsed.Round(time.Millisecond), summary.ArtifactsDir)
	for _, p := range summary.Plans {
		fmt.Fprintf(a.stdout, "plan work_area=%s kind=%s lengths=%d..%d (expected %d) cutoffs=%d/%d/%d/%d\n",
			p.Area, p.Kind, p.Lengths.Min, p.Lengths.Max, p.Lengths.Expected,
			p.Cutoffs.Survivors, p.Cutoffs.Cross, p.Cutoffs.Point, p.Cutoffs.Limb)
	}
	for _, ar := range summary.Areas {
		if ar.BestScore == elfin.NoScore {
			continue
		}
		fmt.Fprintf(a.stdout, "work_area=%s generations=%d best=%.6f stop=%s\n",
			ar.Area, ar.Generations, ar.BestScore, ar.Stop)
	}
	for _, s := range summary.Solutions {
		if s.Rank != 0 {
			continue
		}
		fmt.Fprintf(a.stdout, "best work_area=%s score=%.6f modules=%s\n", s.Area, s.Score, strings.Join(s.Modules, ","))
	}
	return runErr
}
