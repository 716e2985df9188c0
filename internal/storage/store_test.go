package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elfin/internal/model"
)

func sampleRun(id string, started time.Time) model.Run {
	return model.Run{
		VersionedRecord: Stamp(),
		ID:              id,
		XDBPath:         "modules.yaml",
		SpecPath:        "shape.yaml",
		Seed:            7,
		PopulationSize:  32,
		Workers:         2,
		Status:          model.RunCompleted,
		StartedAt:       started.UTC(),
		FinishedAt:      started.Add(time.Minute).UTC(),
		Areas: []model.AreaSummary{{
			Area: "arm", Kind: "free", MinLength: 2, MaxLength: 8,
			Generations: 12, BestScore: 0.25, Stop: "stagnant",
		}},
	}
}

func sampleSolutions() []model.Solution {
	var tx [4][4]float64
	for i := range 4 {
		tx[i][i] = 1
	}
	return []model.Solution{
		{VersionedRecord: Stamp(), Area: "arm", Rank: 0, Modules: []string{"rod", "turn"}, Transforms: [][4][4]float64{tx, tx}, Score: 0.25, Checksum: 42},
		{VersionedRecord: Stamp(), Area: "arm", Rank: 1, Modules: []string{"rod"}, Transforms: [][4][4]float64{tx}, Score: 0.5, Checksum: 7},
	}
}

// exerciseStore runs the behavior every backend shares.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Init(ctx))

	_, ok, err := store.GetRun(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	older := sampleRun("run-a", base)
	newer := sampleRun("run-b", base.Add(time.Hour))
	require.NoError(t, store.SaveRun(ctx, older))
	require.NoError(t, store.SaveRun(ctx, newer))

	got, ok, err := store.GetRun(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, older.Seed, got.Seed)
	assert.True(t, older.StartedAt.Equal(got.StartedAt))
	require.Len(t, got.Areas, 1)
	assert.Equal(t, "stagnant", got.Areas[0].Stop)

	older.Status = model.RunInterrupted
	require.NoError(t, store.SaveRun(ctx, older))
	got, _, err = store.GetRun(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, model.RunInterrupted, got.Status)

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-b", runs[0].ID)
	assert.Equal(t, "run-a", runs[1].ID)

	require.NoError(t, store.SaveSolutions(ctx, "run-a", sampleSolutions()))
	sols, ok, err := store.GetSolutions(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, sols, 2)
	assert.Equal(t, []string{"rod", "turn"}, sols[0].Modules)
	assert.Equal(t, uint64(42), sols[0].Checksum)
	assert.InDelta(t, 1.0, sols[0].Transforms[1][3][3], 0)

	_, ok, err = store.GetSolutions(ctx, "run-b")
	require.NoError(t, err)
	assert.False(t, ok)

	diags := []model.GenerationDiagnostics{
		{Area: "arm", Generation: 0, BestScore: 2, Attempts: map[string]int64{"cross": 3}},
		{Area: "arm", Generation: 1, BestScore: 1, Failures: map[string]int64{"point": 1}},
	}
	require.NoError(t, store.SaveGenerationDiagnostics(ctx, "run-a", diags))
	gotDiags, ok, err := store.GetGenerationDiagnostics(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, gotDiags, 2)
	assert.Equal(t, int64(3), gotDiags[0].Attempts["cross"])
	assert.Equal(t, int64(1), gotDiags[1].Failures["point"])
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreCopiesRecords(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Init(ctx))

	sols := sampleSolutions()
	require.NoError(t, store.SaveSolutions(ctx, "r", sols))
	sols[0].Modules[0] = "mutated"

	got, _, err := store.GetSolutions(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, "rod", got[0].Modules[0])
}

func TestBadgerStoreInMemory(t *testing.T) {
	store := NewBadgerStore("")
	t.Cleanup(func() { _ = store.Close() })
	exerciseStore(t, store)
}

func TestBadgerStoreReopens(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store := NewBadgerStore(dir)
	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.SaveRun(ctx, sampleRun("run-x", time.Now())))
	require.NoError(t, store.Close())

	reopened := NewBadgerStore(dir)
	require.NoError(t, reopened.Init(ctx))
	t.Cleanup(func() { _ = reopened.Close() })

	run, ok, err := reopened.GetRun(ctx, "run-x")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(7), run.Seed)
}

func TestBadgerStoreRequiresInit(t *testing.T) {
	_, _, err := NewBadgerStore("").GetRun(context.Background(), "x")
	require.Error(t, err)
}
