package elfin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elfin/internal/config"
	"elfin/internal/evo"
	"elfin/internal/model"
)

func testdata(name string) string {
	return filepath.Join("..", "..", "testdata", name)
}

func newTestClient(t *testing.T) (*Client, string) {
	t.Helper()
	base := t.TempDir()
	client, err := New(Options{
		StoreKind:  "memory",
		OutputDir:  filepath.Join(base, "runs"),
		ExportsDir: filepath.Join(base, "exports"),
	})
	require.NoError(t, err)
	require.NoError(t, client.Init(context.Background()))
	t.Cleanup(func() { _ = client.Close() })
	return client, base
}

func smallOptions() config.Options {
	opts := config.Default()
	opts.XDBPath = testdata("modules.yaml")
	opts.SpecPath = testdata("square.yaml")
	opts.PopSize = 24
	opts.MaxGens = 4
	opts.Stagnancy = -1
	opts.StopScore = 0
	opts.Workers = 2
	opts.KeepN = 2
	opts.Seed = 11
	return opts
}

func TestClientRunRunsAndExport(t *testing.T) {
	client, base := newTestClient(t)
	ctx := context.Background()

	var seen int
	summary, err := client.Run(ctx, RunRequest{
		Options:      smallOptions(),
		OnGeneration: func(evo.GenerationDiagnostics) { seen++ },
	})
	require.NoError(t, err)
	require.NotEmpty(t, summary.RunID)
	assert.Equal(t, model.RunCompleted, summary.Status)
	require.Len(t, summary.Areas, 2)
	assert.Equal(t, "arm", summary.Areas[0].Area)
	assert.Equal(t, "corner", summary.Areas[1].Area)
	assert.Positive(t, seen)

	for _, a := range summary.Areas {
		assert.GreaterOrEqual(t, a.BestScore, 0.0)
	}
	require.NotEmpty(t, summary.Solutions)
	for _, s := range summary.Solutions {
		assert.Len(t, s.Transforms, len(s.Modules))
		assert.LessOrEqual(t, s.Rank, 1)
	}

	runs, err := client.Runs(ctx, RunsRequest{Limit: 5})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, summary.RunID, runs[0].RunID)
	assert.Equal(t, 2, runs[0].WorkAreas)

	sols, err := client.Solutions(ctx, SolutionsRequest{Latest: true, Area: "corner"})
	require.NoError(t, err)
	require.NotEmpty(t, sols)
	for _, s := range sols {
		assert.Equal(t, "corner", s.Area)
	}

	diags, err := client.Diagnostics(ctx, DiagnosticsRequest{RunID: summary.RunID, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, diags, 2)

	exported, err := client.Export(ctx, ExportRequest{Latest: true})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "exports", summary.RunID), exported.Directory)
	_, err = os.Stat(filepath.Join(exported.Directory, "solutions.json"))
	require.NoError(t, err)
}

func TestClientReadsArtifactsAcrossClients(t *testing.T) {
	client, base := newTestClient(t)
	ctx := context.Background()
	summary, err := client.Run(ctx, RunRequest{Options: smallOptions()})
	require.NoError(t, err)

	other, err := New(Options{StoreKind: "memory", OutputDir: filepath.Join(base, "runs")})
	require.NoError(t, err)
	require.NoError(t, other.Init(ctx))

	sols, err := other.Solutions(ctx, SolutionsRequest{RunID: summary.RunID})
	require.NoError(t, err)
	assert.Len(t, sols, len(summary.Solutions))

	diags, err := other.Diagnostics(ctx, DiagnosticsRequest{RunID: summary.RunID})
	require.NoError(t, err)
	assert.NotEmpty(t, diags)
}

func TestClientDryRun(t *testing.T) {
	client, _ := newTestClient(t)
	opts := smallOptions()
	opts.DryRun = true

	summary, err := client.Run(context.Background(), RunRequest{Options: opts})
	require.NoError(t, err)
	assert.Equal(t, model.RunPlanned, summary.Status)
	require.Len(t, summary.Plans, 2)
	assert.Empty(t, summary.Solutions)
	for _, a := range summary.Areas {
		assert.Equal(t, NoScore, a.BestScore)
		assert.Zero(t, a.Generations)
		assert.LessOrEqual(t, a.MinLength, a.MaxLength)
	}
}

func TestClientRunInterrupted(t *testing.T) {
	client, _ := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := client.Run(ctx, RunRequest{Options: smallOptions()})
	require.ErrorIs(t, err, evo.ErrInterrupted)
	assert.Equal(t, model.RunInterrupted, summary.Status)
	assert.NotEmpty(t, summary.ArtifactsDir)

	runs, err := client.Runs(context.Background(), RunsRequest{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, string(model.RunInterrupted), runs[0].Status)
}

func TestClientRunRejectsInvalidOptions(t *testing.T) {
	client, _ := newTestClient(t)
	opts := smallOptions()
	opts.PopSize = 0
	_, err := client.Run(context.Background(), RunRequest{Options: opts})
	require.Error(t, err)

	opts = smallOptions()
	opts.XDBPath = testdata("missing.yaml")
	_, err = client.Run(context.Background(), RunRequest{Options: opts})
	require.Error(t, err)
}

func TestClientLookupsNeedARun(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	_, err := client.Solutions(ctx, SolutionsRequest{Latest: true})
	require.Error(t, err)
	_, err = client.Solutions(ctx, SolutionsRequest{})
	require.Error(t, err)
	_, err = client.Export(ctx, ExportRequest{RunID: "x", Latest: true})
	require.Error(t, err)
	_, err = client.Diagnostics(ctx, DiagnosticsRequest{RunID: "x", Limit: -1})
	require.Error(t, err)
}

func TestClientScore(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	score, err := client.Score(ctx, ScoreRequest{
		MobilePath:    testdata("points_b.yaml"),
		ReferencePath: testdata("points_a.yaml"),
	})
	require.NoError(t, err)
	assert.InDelta(t, 0, score, 1e-6)

	_, err = client.Score(ctx, ScoreRequest{
		MobilePath:    testdata("points_a.yaml"),
		ReferencePath: testdata("modules.yaml"),
	})
	require.Error(t, err)
}
