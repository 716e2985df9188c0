package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"elfin/pkg/elfin"
)

func newRunsCmd(a *app) *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return errors.New("limit must be > 0")
			}
			client, err := a.client(cmd.Context(), a.store, a.dbPath)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			entries, err := client.Runs(cmd.Context(), elfin.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(a, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(a.stdout, "no runs found")
				return nil
			}
			for _, e := range entries {
				created := e.CreatedAtUTC
				if ts, err := time.Parse(time.RFC3339Nano, e.CreatedAtUTC); err == nil {
					created = humanize.Time(ts)
				}
				fmt.Fprintf(a.stdout, "run_id=%s status=%s created=%q work_areas=%d total_score=%.6f population=%s seed=%d\n",
					e.RunID, e.Status, created, e.WorkAreas, e.TotalScore, humanize.Comma(int64(e.PopulationSize)), e.Seed)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit runs as JSON")
	return cmd
}

func newSolutionsCmd(a *app) *cobra.Command {
	var (
		runID   string
		latest  bool
		area    string
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "solutions",
		Short: "Show the solutions a run kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.client(cmd.Context(), a.store, a.dbPath)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			sols, err := client.Solutions(cmd.Context(), elfin.SolutionsRequest{RunID: runID, Latest: latest, Area: area})
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(a, sols)
			}
			for _, s := range sols {
				fmt.Fprintf(a.stdout, "work_area=%s rank=%d score=%.6f length=%d checksum=%016x modules=%s\n",
					s.Area, s.Rank, s.Score, len(s.Modules), s.Checksum, strings.Join(s.Modules, ","))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run id")
	cmd.Flags().BoolVar(&latest, "latest", false, "use the most recent run")
	cmd.Flags().StringVar(&area, "work-area", "", "only this work area")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit solutions with transforms as JSON")
	return cmd
}

func newDiagnosticsCmd(a *app) *cobra.Command {
	var (
		runID   string
		latest  bool
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "diagnostics",
		Short: "Show per-generation diagnostics of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.client(cmd.Context(), a.store, a.dbPath)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			diags, err := client.Diagnostics(cmd.Context(), elfin.DiagnosticsRequest{RunID: runID, Latest: latest, Limit: limit})
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(a, diags)
			}
			for _, d := range diags {
				fmt.Fprintf(a.stdout, "work_area=%s generation=%d best=%.6f per_module=%.6f worst=%.6f unique=%d evolve_ms=%.1f score_ms=%.1f\n",
					d.Area, d.Generation, d.BestScore, d.BestPerModule, d.WorstScore, d.UniqueChecksums, d.EvolveMillis, d.ScoreMillis)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run id")
	cmd.Flags().BoolVar(&latest, "latest", false, "use the most recent run")
	cmd.Flags().IntVar(&limit, "limit", 0, "max generations to show; 0 shows all")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit diagnostics as JSON")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var (
		runID  string
		latest bool
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy a run's artifacts to an export directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.client(cmd.Context(), a.store, a.dbPath)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			exported, err := client.Export(cmd.Context(), elfin.ExportRequest{RunID: runID, Latest: latest, OutDir: outDir})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run id")
	cmd.Flags().BoolVar(&latest, "latest", false, "export the most recent run")
	cmd.Flags().StringVar(&outDir, "out", "", "export output directory; defaults to --exports-dir")
	return cmd
}

func newScoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "score MOBILE REFERENCE",
		Short: "Kabsch RMSD between two point files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client(cmd.Context(), "memory", "")
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			score, err := client.Score(cmd.Context(), elfin.ScoreRequest{MobilePath: args[0], ReferencePath: args[1]})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "rmsd=%.6f\n", score)
			return nil
		},
	}
}

func writeJSON(a *app, v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
