package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"elfin/internal/config"
	"elfin/pkg/elfin"
)

var version = "dev"

// app carries what the persistent flags configure for every command.
type app struct {
	stdout io.Writer
	stderr io.Writer

	logLevel  string
	logJSON   bool
	outputDir string
	exports   string
	store     string
	dbPath    string

	log *slog.Logger
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "elfinctl",
		Short:         "Design module chains that fit target shapes",
		Long:          "elfinctl evolves chains of dockable modules until they follow the work areas of a design spec.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setupLogger()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.logLevel, "log-level", "info", "log level: debug|info|warn|error")
	pf.BoolVar(&a.logJSON, "log-json", false, "log as JSON instead of text")
	pf.StringVar(&a.outputDir, "output-dir", config.DefaultOutputDir, "directory holding run artifacts")
	pf.StringVar(&a.exports, "exports-dir", "exports", "default export destination")
	pf.StringVar(&a.store, "store", "memory", "store backend: memory|sqlite|badger")
	pf.StringVar(&a.dbPath, "db-path", "", "sqlite file or badger directory")

	root.AddCommand(
		newRunCmd(a),
		newRunsCmd(a),
		newSolutionsCmd(a),
		newDiagnosticsCmd(a),
		newExportCmd(a),
		newScoreCmd(a),
		newVersionCmd(a),
	)
	return root
}

func (a *app) setupLogger() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(a.logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q", a.logLevel)
	}
	opts := &slog.HandlerOptions{Level: level}
	if a.logJSON {
		a.log = slog.New(slog.NewJSONHandler(a.stderr, opts))
	} else {
		a.log = slog.New(slog.NewTextHandler(a.stderr, opts))
	}
	return nil
}

// client opens a client on the configured store. Callers close it.
func (a *app) client(ctx context.Context, store, dbPath string) (*elfin.Client, error) {
	c, err := elfin.New(elfin.Options{
		StoreKind:  store,
		DBPath:     dbPath,
		OutputDir:  a.outputDir,
		ExportsDir: a.exports,
		Logger:     a.log,
	})
	if err != nil {
		return nil, err
	}
	if err := c.Init(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// interactive reports whether w is a terminal a progress line can be
// redrawn on.
func interactive(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of elfinctl",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(a.stdout, "elfinctl version %s\n", strings.TrimSpace(version))
		},
	}
}
