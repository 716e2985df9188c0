package stats

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elfin/internal/config"
	"elfin/internal/model"
)

func sampleArtifacts(runID string) RunArtifacts {
	opts := config.Default()
	opts.XDBPath = "modules.yaml"
	opts.SpecPath = "shape.yaml"
	return RunArtifacts{
		Config: RunConfig{RunID: runID, Options: opts},
		Run:    model.Run{ID: runID, Status: model.RunCompleted},
		Solutions: []model.Solution{{
			Area: "arm", Modules: []string{"rod", "turn"}, Score: 0.5,
		}},
		Diagnostics: []model.GenerationDiagnostics{
			{Area: "arm", Generation: 0, BestScore: 3},
			{Area: "arm", Generation: 1, BestScore: 0.5},
			{Area: "leg", Generation: 0, BestScore: 2},
		},
	}
}

func TestWriteAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	runDir, err := WriteRunArtifacts(baseDir, sampleArtifacts("run-123"))
	require.NoError(t, err)

	files := []string{"config.json", "run.json", "solutions.json", "generation_diagnostics.json", "history.csv"}
	for _, file := range files {
		_, err := os.Stat(filepath.Join(runDir, file))
		require.NoError(t, err, "expected file %s", file)
	}

	exportedDir, err := ExportRunArtifacts(baseDir, "run-123", outDir)
	require.NoError(t, err)
	for _, file := range files {
		_, err := os.Stat(filepath.Join(exportedDir, file))
		require.NoError(t, err, "expected exported file %s", file)
	}
}

func TestWriteRunArtifactsRequiresRunID(t *testing.T) {
	_, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{})
	require.Error(t, err)
}

func TestExportMissingRun(t *testing.T) {
	_, err := ExportRunArtifacts(t.TempDir(), "nope", t.TempDir())
	require.Error(t, err)
}

func TestReadBackConfigSolutionsAndHistory(t *testing.T) {
	baseDir := t.TempDir()
	_, err := WriteRunArtifacts(baseDir, sampleArtifacts("run-1"))
	require.NoError(t, err)

	cfg, ok, err := ReadRunConfig(baseDir, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "run-1", cfg.RunID)
	assert.Equal(t, config.DefaultPopSize, cfg.PopSize)
	assert.Equal(t, "modules.yaml", cfg.XDBPath)

	sols, ok, err := ReadSolutions(baseDir, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, sols, 1)
	assert.Equal(t, []string{"rod", "turn"}, sols[0].Modules)

	history, ok, err := ReadHistory(baseDir, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float64{3, 0.5}, history["arm"])
	assert.Len(t, history["leg"], 1)

	_, ok, err = ReadSolutions(baseDir, "run-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRunIndexAppendListAndUpsert(t *testing.T) {
	baseDir := t.TempDir()

	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "run-1", TotalScore: 0.8, CreatedAtUTC: "2026-02-10T10:00:00Z"}))
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "run-2", TotalScore: 0.7, CreatedAtUTC: "2026-02-10T11:00:00Z"}))

	entries, err := ListRunIndex(baseDir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "run-2", entries[0].RunID)
	assert.Equal(t, "run-1", entries[1].RunID)

	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "run-1", TotalScore: 0.1, CreatedAtUTC: "2026-02-10T12:00:00Z"}))
	entries, err = ListRunIndex(baseDir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "run-1", entries[0].RunID)
	assert.Equal(t, 0.1, entries[0].TotalScore)
}

func TestRunIndexEqualTimestampPrefersLaterAppend(t *testing.T) {
	baseDir := t.TempDir()
	ts := "2026-02-10T12:00:00Z"

	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "run-a", CreatedAtUTC: ts}))
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "run-b", CreatedAtUTC: ts}))

	entries, err := ListRunIndex(baseDir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "run-b", entries[0].RunID)
}

func TestRunIndexRequiresRunID(t *testing.T) {
	require.Error(t, AppendRunIndex(t.TempDir(), RunIndexEntry{}))
}
